package tagger

import (
	"bufio"
	"errors"
	"io"
	"regexp"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// defaultPattern finds words (letters and digits, with inner apostrophes or
// hyphens) OR single punctuation marks.
const defaultPattern = `[\p{L}\p{N}]+(?:['’-][\p{L}\p{N}]+)*|[.!?,;:"()]`

// maxLineSize bounds a single line read by a Stream.
const maxLineSize = 1 << 20

// Tokenizer lowercases and normalizes text and splits it into word and
// punctuation tokens. Its behavior can be customized with functional options.
// A Tokenizer is safe for concurrent use.
type Tokenizer struct {
	splitRegex  *regexp.Regexp
	foldAccents bool
}

// Option Is a function that configures a Tokenizer.
type Option func(*Tokenizer)

// WithPattern sets the regex used to find tokens in normalized text.
// Default: words with inner apostrophes or hyphens, or single punctuation marks.
func WithPattern(expr string) Option {
	return func(t *Tokenizer) {
		t.splitRegex = regexp.MustCompile(expr)
	}
}

// WithAccentFolding strips combining marks, so "café" and "cafe" become the
// same token. Default: false
func WithAccentFolding(fold bool) Option {
	return func(t *Tokenizer) {
		t.foldAccents = fold
	}
}

// NewTokenizer creates a new tokenizer with default settings, which can be
// overridden by providing one or more Option functions.
func NewTokenizer(opts ...Option) *Tokenizer {
	t := &Tokenizer{
		splitRegex: regexp.MustCompile(defaultPattern),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// transformer builds a fresh chain per call; x/text transformers carry state
// and must not be shared between goroutines.
func (t *Tokenizer) transformer() transform.Transformer {
	if t.foldAccents {
		return transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC, cases.Lower(language.Und))
	}
	return transform.Chain(norm.NFC, cases.Lower(language.Und))
}

// Normalize returns text in NFC form and lowercased.
func (t *Tokenizer) Normalize(text string) (string, error) {
	out, _, err := transform.String(t.transformer(), text)
	if err != nil {
		return "", err
	}
	return out, nil
}

// Tokenize normalizes text and returns its tokens in order.
func (t *Tokenizer) Tokenize(text string) ([]string, error) {
	normalized, err := t.Normalize(text)
	if err != nil {
		return nil, err
	}
	return t.splitRegex.FindAllString(normalized, -1), nil
}

// ReadAll tokenizes everything readable from r.
func (t *Tokenizer) ReadAll(r io.Reader) ([]string, error) {
	stream := t.NewStream(r)
	var tokens []string
	for {
		token, err := stream.Next()
		if errors.Is(err, io.EOF) {
			return tokens, nil
		}
		if err != nil {
			return nil, err
		}
		tokens = append(tokens, token)
	}
}

// NewStream Returns the stream processor.
func (t *Tokenizer) NewStream(r io.Reader) *Stream {
	scanner := bufio.NewScanner(transform.NewReader(r, t.transformer()))
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	return &Stream{
		scanner:    scanner,
		splitRegex: t.splitRegex,
	}
}

// Stream is a stateful tokenizer over an io.Reader, returning one token at a
// time. It reads line by line, so tokens never span lines.
type Stream struct {
	scanner    *bufio.Scanner
	buffer     []string
	splitRegex *regexp.Regexp
}

// Next returns the next token from the stream. When the stream is exhausted,
// it returns io.EOF. Any other error indicates a problem reading from the
// underlying stream.
func (s *Stream) Next() (string, error) {
	for len(s.buffer) == 0 { // Loop until we have tokens
		if !s.scanner.Scan() {
			if err := s.scanner.Err(); err != nil {
				return "", err
			}
			return "", io.EOF
		}
		s.buffer = s.splitRegex.FindAllString(s.scanner.Text(), -1)
	}

	token := s.buffer[0]
	s.buffer = s.buffer[1:] // Consume the token
	return token, nil
}
