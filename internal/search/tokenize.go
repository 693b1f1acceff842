package search

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

const (
	hangulFirst = '가'
	hangulLast  = '힣'
)

type runeClass int

const (
	classOther runeClass = iota
	classHangul
	classDigit
)

func classify(r rune) runeClass {
	switch {
	case r >= hangulFirst && r <= hangulLast:
		return classHangul
	case r >= '0' && r <= '9':
		return classDigit
	default:
		return classOther
	}
}

// Tokenize splits text into maximal runs of Hangul syllables and maximal runs
// of ASCII digits. Input is NFC-normalized first so decomposed jamo typed by
// some keyboards still form syllables. Duplicates are dropped, order kept.
func Tokenize(text string) []string {
	text = norm.NFC.String(text)

	var tokens []string
	seen := make(map[string]struct{})
	var current strings.Builder
	currentClass := classOther

	flush := func() {
		if current.Len() == 0 {
			return
		}
		token := current.String()
		current.Reset()
		if _, ok := seen[token]; ok {
			return
		}
		seen[token] = struct{}{}
		tokens = append(tokens, token)
	}

	for _, r := range text {
		class := classify(r)
		if class != currentClass {
			flush()
			currentClass = class
		}
		if class != classOther {
			current.WriteRune(r)
		}
	}
	flush()
	return tokens
}
