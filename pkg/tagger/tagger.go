package tagger

import (
	"io"
	"strings"
	"unicode"

	"github.com/seboll13/TextGenerator/pkg/markov"
)

// Tagger assigns Penn Treebank part of speech tags to tokens. It uses a
// closed-class lexicon, then suffix heuristics for open-class words, then a
// pass of context rules over neighbouring tags.
type Tagger struct {
	tokenizer *Tokenizer
	lexicon   map[string]string
}

// NewTagger creates a tagger that splits text with tokenizer. A nil tokenizer
// uses NewTokenizer().
func NewTagger(tokenizer *Tokenizer) *Tagger {
	if tokenizer == nil {
		tokenizer = NewTokenizer()
	}
	lexicon := make(map[string]string, len(closedClass))
	for word, tag := range closedClass {
		lexicon[word] = tag
	}
	return &Tagger{tokenizer: tokenizer, lexicon: lexicon}
}

// AddWord registers a fixed tag for word, overriding the heuristics.
func (t *Tagger) AddWord(word, tag string) {
	t.lexicon[strings.ToLower(word)] = tag
}

// Tokenizer returns the tokenizer used by TagText and TagReader.
func (t *Tagger) Tokenizer() *Tokenizer {
	return t.tokenizer
}

// TagText tokenizes text and tags every token.
func (t *Tagger) TagText(text string) ([]markov.Token, error) {
	words, err := t.tokenizer.Tokenize(text)
	if err != nil {
		return nil, err
	}
	return t.Tag(words), nil
}

// TagReader tokenizes and tags everything readable from r.
func (t *Tagger) TagReader(r io.Reader) ([]markov.Token, error) {
	words, err := t.tokenizer.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return t.Tag(words), nil
}

// Tag processes already tokenized words and returns them paired with tags.
// Uses a 2-pass approach:
// 1. Baseline: lexicon lookup + suffix heuristics
// 2. Context: corrections based on the previous token
func (t *Tagger) Tag(words []string) []markov.Token {
	tokens := make([]markov.Token, len(words))

	// Pass 1: Baseline
	for i, word := range words {
		tokens[i] = markov.Token{Text: word, Tag: t.baseline(word)}
	}

	// Pass 2: Context
	for i := 1; i < len(tokens); i++ {
		prev := tokens[i-1].Tag
		cur := tokens[i].Tag

		switch {
		// "the [run]", "my [walk]": verb-like after a determiner is a noun
		case (prev == TagDeterminer || prev == TagPossessive || prev == TagAdjective) && isBaseOrPastVerb(cur):
			tokens[i].Tag = TagNoun
		// "can [run]", "to [walks]": base form after a modal or infinitive marker
		case (prev == TagModal || prev == TagTo) && (cur == TagNoun || cur == TagNounPlural || cur == TagVerbThird):
			tokens[i].Tag = TagVerb
		// "he [runs]": plural-looking word after a subject pronoun is a verb
		case prev == TagPronoun && cur == TagNounPlural:
			tokens[i].Tag = TagVerbThird
		// "has [walked]": past form after an auxiliary is a participle
		case (prev == TagVerbThird || prev == TagVerbPresent || prev == TagVerbPast) && cur == TagVerbPast && isAuxiliary(tokens[i-1].Text):
			tokens[i].Tag = TagVerbPartic
		}
	}

	return tokens
}

func (t *Tagger) baseline(word string) string {
	if tag, ok := t.lexicon[word]; ok {
		return tag
	}
	if isNumber(word) {
		return TagNumber
	}
	for _, rule := range suffixRules {
		if len(word) > len(rule.suffix)+1 && strings.HasSuffix(word, rule.suffix) {
			return rule.tag
		}
	}
	return TagNoun
}

func isNumber(word string) bool {
	if word == "" {
		return false
	}
	for _, r := range word {
		if !unicode.IsDigit(r) && r != '-' && r != '\'' {
			return false
		}
	}
	return unicode.IsDigit([]rune(word)[0])
}

func isBaseOrPastVerb(tag string) bool {
	return tag == TagVerb || tag == TagVerbPast || tag == TagVerbPresent
}

func isAuxiliary(word string) bool {
	switch word {
	case "has", "have", "had", "is", "are", "was", "were":
		return true
	}
	return false
}
