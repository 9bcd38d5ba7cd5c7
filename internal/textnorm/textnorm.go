// Blogrec - Blog Recommendation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/blogrec

// Package textnorm turns raw post text into a normalized token string used
// by the content similarity engine.
//
// Steps, in order: lowercase and trim, strip everything that is not a word
// character or whitespace, split on whitespace, drop English stopwords,
// lemmatize, stem, rejoin with single spaces. Each of the last three steps
// is toggled by Options.
//
// Without stemming the output is a fixed point: normalizing it again
// returns it unchanged. Lemmas are followed until they stop changing (the
// smallest member wins if the dictionary maps words in a cycle), and a
// token whose lemma is a stopword is dropped when stopwords are removed.
package textnorm

import (
	_ "embed"
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"github.com/aaaton/golem/v4"
	"github.com/aaaton/golem/v4/dicts/en"
	"github.com/kljensen/snowball/english"
)

//go:embed stopwords.txt
var embeddedStopwords string

// nonWord matches anything that is neither a word character nor whitespace.
// RE2's \w is ASCII only, so letters, marks and digits are spelled out.
var nonWord = regexp.MustCompile(`[^\p{L}\p{M}\p{N}_\s]+`)

var stopwords = func() map[string]struct{} {
	set := make(map[string]struct{}, 179)
	for _, w := range strings.Fields(embeddedStopwords) {
		set[w] = struct{}{}
	}
	return set
}()

// Options selects the optional normalization steps.
type Options struct {
	RemoveStopwords bool
	Lemmatize       bool
	Stem            bool
}

// CorpusOptions are the options item content is normalized with.
var CorpusOptions = Options{Lemmatize: true}

// maxLemmaSteps bounds the lemma chain followed for one token.
const maxLemmaSteps = 16

// lemmatizer is the part of golem.Lemmatizer the normalizer uses.
type lemmatizer interface {
	Lemma(word string) string
}

// Normalizer is safe for concurrent use.
type Normalizer struct {
	lemmatizer lemmatizer
}

// New loads the English lemmatization dictionary.
func New() (*Normalizer, error) {
	lem, err := golem.New(en.New())
	if err != nil {
		return nil, fmt.Errorf("load english lemmatizer: %w", err)
	}
	return &Normalizer{lemmatizer: lem}, nil
}

// Normalize returns the normalized token string for text. Empty input
// yields "".
func (n *Normalizer) Normalize(text string, opts Options) string {
	text = strings.TrimSpace(strings.ToLower(text))
	if text == "" {
		return ""
	}
	text = nonWord.ReplaceAllString(text, "")

	tokens := strings.Fields(text)
	out := tokens[:0]
	for _, tok := range tokens {
		if opts.RemoveStopwords && IsStopword(tok) {
			continue
		}
		if opts.Lemmatize && n.lemmatizer != nil {
			tok = n.lemma(tok)
			if opts.RemoveStopwords && IsStopword(tok) {
				continue
			}
		}
		if opts.Stem {
			tok = english.Stem(tok, false)
		}
		if tok != "" {
			out = append(out, tok)
		}
	}
	return strings.Join(out, " ")
}

// lemma follows the lemma chain from tok to its end. A chain that cycles
// resolves to the cycle's smallest member, so every member maps to the same
// token.
func (n *Normalizer) lemma(tok string) string {
	path := []string{tok}
	cur := tok
	for range maxLemmaSteps {
		next := n.lemmaStep(cur)
		if next == cur {
			return cur
		}
		for i, p := range path {
			if p == next {
				return minString(path[i:])
			}
		}
		path = append(path, next)
		cur = next
	}
	return cur
}

// lemmaStep returns the cleaned dictionary lemma of tok, or tok itself when
// the lemma would not survive normalization as a single token.
func (n *Normalizer) lemmaStep(tok string) string {
	l := n.lemmatizer.Lemma(tok)
	if l == tok {
		return tok
	}
	l = nonWord.ReplaceAllString(strings.ToLower(l), "")
	if l == "" || strings.ContainsFunc(l, unicode.IsSpace) {
		return tok
	}
	return l
}

func minString(ss []string) string {
	m := ss[0]
	for _, s := range ss[1:] {
		if s < m {
			m = s
		}
	}
	return m
}

// IsStopword reports whether word is in the English stopword list.
func IsStopword(word string) bool {
	_, ok := stopwords[word]
	return ok
}

// StopwordCount returns the size of the stopword list.
func StopwordCount() int {
	return len(stopwords)
}
