package enrich

import (
	"sort"
	"strings"
	"unicode"
)

// DefaultKeywords is how many keywords are kept per article.
const DefaultKeywords = 5

var stopwords = map[string]bool{}

func init() {
	for _, w := range strings.Fields(`
		a about above after again against all also am an and any are as at be because been
		before being below between both but by can could did do does doing down during each
		few for from further had has have having he her here hers herself him himself his how
		i if in into is it its itself just me more most my myself no nor not now of off on
		once only or other our ours ourselves out over own said same says she should so some
		such than that the their theirs them themselves then there these they this those
		through to too under until up very was we were what when where which while who whom
		why will with would you your yours yourself yourselves new one two year years`) {
		stopwords[w] = true
	}
}

// tokenize lowercases text and splits it on anything that is not a letter or digit.
func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

func isKeyword(tok string) bool {
	if len(tok) < 3 || stopwords[tok] {
		return false
	}
	for _, r := range tok {
		if !unicode.IsDigit(r) {
			return true
		}
	}
	return false
}

// Keywords returns up to n terms of text ranked by frequency, ties broken by
// first occurrence.
func Keywords(text string, n int) []string {
	type term struct {
		word  string
		count int
		first int
	}

	index := map[string]*term{}
	var terms []*term
	for i, tok := range tokenize(text) {
		if !isKeyword(tok) {
			continue
		}
		if t, ok := index[tok]; ok {
			t.count++
			continue
		}
		t := &term{word: tok, count: 1, first: i}
		index[tok] = t
		terms = append(terms, t)
	}

	sort.SliceStable(terms, func(i, j int) bool {
		if terms[i].count != terms[j].count {
			return terms[i].count > terms[j].count
		}
		return terms[i].first < terms[j].first
	})

	if len(terms) > n {
		terms = terms[:n]
	}
	out := make([]string, len(terms))
	for i, t := range terms {
		out[i] = t.word
	}
	return out
}
