package markov

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

// Token is a single unit of text handed to the model by a tokenizer. In plain
// mode only Text is used; in tagged mode Tag carries the grammatical category
// assigned by the external tagger and is treated as an opaque label.
type Token struct {
	Text string
	Tag  string
}

// Mode selects how a Model was built.
type Mode int

const (
	// ModePlain builds word -> word transitions from raw counts.
	ModePlain Mode = iota
	// ModeTagged blends word counts with tag -> tag transition statistics.
	ModeTagged
)

// String returns the name used for the mode in logs and persisted models.
func (m Mode) String() string {
	switch m {
	case ModePlain:
		return "plain"
	case ModeTagged:
		return "tagged"
	default:
		return "unknown"
	}
}

// ParseMode is the inverse of Mode.String.
func ParseMode(s string) (Mode, bool) {
	switch strings.ToLower(s) {
	case "plain", "":
		return ModePlain, true
	case "tagged":
		return ModeTagged, true
	default:
		return ModePlain, false
	}
}

// TerminalMarkers are the tokens that end a sentence.
var TerminalMarkers = []string{".", "!", "?"}

// IsTerminal reports whether word is one of the sentence-ending markers.
func IsTerminal(word string) bool {
	switch word {
	case ".", "!", "?":
		return true
	}
	return false
}

// Normalize puts a word in NFC form and lowercases it the way the tokenizer
// does, so it can be matched against model keys. A Caser keeps state, so a
// new one is made per call.
func Normalize(word string) string {
	return cases.Lower(language.Und).String(norm.NFC.String(strings.TrimSpace(word)))
}

// Words returns the Text of each token in order.
func Words(tokens []Token) []string {
	words := make([]string, len(tokens))
	for i, t := range tokens {
		words[i] = t.Text
	}
	return words
}

// DefaultStarters is the closed set of sentence starters used for paragraphs:
// personal pronouns, articles and demonstratives.
var DefaultStarters = []string{
	"i", "you", "he", "she", "it", "we", "they",
	"the", "a", "an",
	"this", "that", "these", "those",
}
