/*
Package markov builds first-order word transition models from a token
sequence and generates sentences by random walks over them.

A model is built either from plain words, where P(next | word) is the
observed frequency of next after word, or from (word, tag) tokens, where the
word frequencies are blended with tag -> tag transition statistics so that
sparse word data is smoothed by grammatical role. Both kinds of model are
immutable once built and safe for concurrent reads.

Walks start from a seed word, sample each next word from the current word's
outgoing distribution and stop at a terminal marker (".", "!" or "?"), at a
word with no successors, or at a configurable step limit. All sampling draws
from an explicit *rand.Rand so runs can be reproduced.
*/
package markov
