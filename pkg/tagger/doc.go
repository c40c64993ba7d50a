// Package tagger turns raw text into the token sequences the markov package
// consumes: lowercased, Unicode-normalized words and punctuation, optionally
// paired with Penn Treebank part of speech tags.
package tagger
