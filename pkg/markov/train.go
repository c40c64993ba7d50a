package markov

import (
	"sort"
)

// CountTable maps a current key to the observed next keys and how many times
// each one followed it. Only observed transitions are stored, so every count
// is at least 1.
type CountTable[K comparable] map[K]map[K]int

// add increments cur -> next by n, creating the entry if absent.
func (c CountTable[K]) add(cur, next K, n int) {
	row, ok := c[cur]
	if !ok {
		row = make(map[K]int)
		c[cur] = row
	}
	row[next] += n
}

// Total returns the number of observed transitions leaving cur.
func (c CountTable[K]) Total(cur K) int {
	total := 0
	for _, n := range c[cur] {
		total += n
	}
	return total
}

// Len returns the number of distinct cur -> next links in the table.
func (c CountTable[K]) Len() int {
	n := 0
	for _, row := range c {
		n += len(row)
	}
	return n
}

// Counts holds the raw co-occurrence tables produced from a token sequence.
// Words is always filled. Tags and Tagged are only meaningful for sequences
// that carry tags; for a plain sequence every tag is empty.
type Counts struct {
	Words  CountTable[string]
	Tags   CountTable[string]
	Tagged CountTable[Token]
}

// NewCounts returns an empty set of tables.
func NewCounts() *Counts {
	return &Counts{
		Words:  make(CountTable[string]),
		Tags:   make(CountTable[string]),
		Tagged: make(CountTable[Token]),
	}
}

// CountWords counts every adjacent pair of a plain word sequence. Words are
// expected to be lowercased already.
func CountWords(words []string) *Counts {
	tokens := make([]Token, len(words))
	for i, w := range words {
		tokens[i] = Token{Text: w}
	}
	return CountTokens(tokens)
}

// CountTokens counts every adjacent pair (tokens[i], tokens[i+1]) of the
// sequence. The sequence is treated as one flat stream; document boundaries
// are the tokenizer's concern.
func CountTokens(tokens []Token) *Counts {
	c := NewCounts()
	for i := 0; i+1 < len(tokens); i++ {
		c.Add(tokens[i], tokens[i+1], 1)
	}
	return c
}

// Add records n occurrences of next following cur in all three tables. It is
// used by CountTokens and to re-inflate persisted counts.
func (c *Counts) Add(cur, next Token, n int) {
	if n <= 0 {
		return
	}
	c.Words.add(cur.Text, next.Text, n)
	c.Tags.add(cur.Tag, next.Tag, n)
	c.Tagged.add(cur, next, n)
}

// Transitions returns the number of adjacent pairs that were counted.
func (c *Counts) Transitions() int {
	total := 0
	for _, row := range c.Tagged {
		for _, n := range row {
			total += n
		}
	}
	return total
}

// Link is a single counted transition, used to iterate the tables in a stable
// order.
type Link struct {
	From  Token
	To    Token
	Count int
}

// Links returns every (word, tag) -> (word, tag) transition sorted by source
// and then target. The order is stable so exports and stores are reproducible.
func (c *Counts) Links() []Link {
	links := make([]Link, 0, c.Tagged.Len())
	for from, row := range c.Tagged {
		for to, n := range row {
			links = append(links, Link{From: from, To: to, Count: n})
		}
	}
	sort.Slice(links, func(i, j int) bool {
		if links[i].From != links[j].From {
			return lessToken(links[i].From, links[j].From)
		}
		return lessToken(links[i].To, links[j].To)
	})
	return links
}

// HasTags reports whether any counted token carries a non-empty tag.
func (c *Counts) HasTags() bool {
	for tag, row := range c.Tags {
		if tag != "" {
			return true
		}
		for next := range row {
			if next != "" {
				return true
			}
		}
	}
	return false
}

func lessToken(a, b Token) bool {
	if a.Text != b.Text {
		return a.Text < b.Text
	}
	return a.Tag < b.Tag
}
