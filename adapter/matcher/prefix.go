package matcher

import (
	"regexp/syntax"
	"strings"
	"unicode/utf8"
)

// Prefix returns the literal every string matched by pattern must start with.
// It is only found when the pattern is anchored at the start of the text and
// the anchor is followed by case-sensitive literal characters. The prefix ends
// before the first U+FFFD. bounded is false when no such prefix exists.
func Prefix(pattern string) (prefix string, bounded bool) {
	re, err := syntax.Parse(pattern, syntax.Perl)
	if err != nil {
		return "", false
	}

	var subs []*syntax.Regexp
	switch re.Op {
	case syntax.OpConcat:
		subs = re.Sub
	default:
		subs = []*syntax.Regexp{re}
	}
	if len(subs) == 0 || subs[0].Op != syntax.OpBeginText {
		return "", false
	}

	var b strings.Builder
literals:
	for _, sub := range subs[1:] {
		if sub.Op != syntax.OpLiteral || sub.Flags&syntax.FoldCase != 0 {
			break
		}
		for _, r := range sub.Rune {
			// the regexp engine reads invalid utf-8 bytes as U+FFFD, so
			// matched strings do not share its encoding
			if r == utf8.RuneError {
				break literals
			}
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return "", false
	}
	return b.String(), true
}

// Successor returns the smallest string greater than every string starting
// with prefix, by incrementing its last rune. Runes at [utf8.MaxRune] carry
// into the previous one and surrogates are skipped. ok is false when no such
// string exists, meaning the range has no upper bound.
func Successor(prefix string) (succ string, ok bool) {
	runes := []rune(prefix)
	for i := len(runes) - 1; i >= 0; i-- {
		r := runes[i]
		if r >= utf8.MaxRune {
			continue
		}
		r++
		if r >= 0xD800 && r <= 0xDFFF {
			r = 0xE000
		}
		runes[i] = r
		return string(runes[:i+1]), true
	}
	return "", false
}
