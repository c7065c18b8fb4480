// Package normalize collapses adversarial text obfuscation before pattern
// matching: unicode confusables, zero-width characters, leetspeak digits,
// and separator tricks all fold down to plain lowercase ASCII tokens so that
// "k1ll", "𝕜𝕚𝕝𝕝" and "k.i.l.l" match the same rule as "kill".
package normalize

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// Result holds the normalized forms of one message text.
type Result struct {
	// Tokens are the normalized words in order.
	Tokens []string

	// Joined is Tokens joined by single spaces. Regex and phrase rules
	// match against this form.
	Joined string

	// Compact is Tokens concatenated with no separators. Catches words
	// split by spacing or punctuation ("k i l l", "k.i.l.l").
	Compact string
}

// Text normalizes a message for matching. Pure function, no I/O.
func Text(input string) Result {
	// NFKC folds compatibility characters: mathematical alphanumerics,
	// fullwidth forms, ligatures all collapse to their plain equivalents.
	folded := norm.NFKC.String(input)

	var tokens []string
	var cur strings.Builder

	flush := func() {
		if cur.Len() > 0 {
			tokens = append(tokens, deleet(cur.String()))
			cur.Reset()
		}
	}

	for _, r := range folded {
		if isInvisible(r) {
			// Zero-width and bidi characters are dropped entirely so they
			// cannot split a token.
			continue
		}
		r = unicode.ToLower(r)
		if c, ok := confusables[r]; ok {
			r = c
		}
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			cur.WriteRune(r)
		case isLeetSymbol(r):
			cur.WriteRune(r)
		default:
			flush()
		}
	}
	flush()

	joined := strings.Join(tokens, " ")
	return Result{
		Tokens:  tokens,
		Joined:  joined,
		Compact: strings.Join(tokens, ""),
	}
}

// deleet substitutes leetspeak digits and symbols with letters, but only in
// tokens that contain at least one letter. Pure numbers ("2024") and pure
// symbol runs stay untouched so ordinary text is not mangled.
func deleet(token string) string {
	hasLetter := false
	for _, r := range token {
		if r >= 'a' && r <= 'z' {
			hasLetter = true
			break
		}
	}
	if !hasLetter {
		return stripLeetSymbols(token)
	}
	var b strings.Builder
	for _, r := range token {
		if sub, ok := leetSubstitutions[r]; ok {
			b.WriteRune(sub)
		} else {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func stripLeetSymbols(token string) string {
	return strings.Map(func(r rune) rune {
		if isLeetSymbol(r) {
			return -1
		}
		return r
	}, token)
}

func isLeetSymbol(r rune) bool {
	switch r {
	case '@', '$', '!', '+':
		return true
	}
	return false
}

// leetSubstitutions maps common leetspeak characters to the letter they
// stand in for. Single deterministic mapping; ambiguous variants (e.g. 1
// read as "l") are covered by obfuscated-variant regex rules instead.
var leetSubstitutions = map[rune]rune{
	'0': 'o',
	'1': 'i',
	'3': 'e',
	'4': 'a',
	'5': 's',
	'7': 't',
	'8': 'b',
	'@': 'a',
	'$': 's',
	'!': 'i',
	'+': 't',
}

func isInvisible(r rune) bool {
	switch r {
	case '\u200B', // ZERO WIDTH SPACE
		'\u200C', // ZERO WIDTH NON-JOINER
		'\u200D', // ZERO WIDTH JOINER
		'\uFEFF', // ZERO WIDTH NO-BREAK SPACE (BOM)
		'\u2060', // WORD JOINER
		'\u180E', // MONGOLIAN VOWEL SEPARATOR
		'\u200E', // LEFT-TO-RIGHT MARK
		'\u200F', // RIGHT-TO-LEFT MARK
		'\u202A', // LEFT-TO-RIGHT EMBEDDING
		'\u202B', // RIGHT-TO-LEFT EMBEDDING
		'\u202C', // POP DIRECTIONAL FORMATTING
		'\u202D', // LEFT-TO-RIGHT OVERRIDE
		'\u202E', // RIGHT-TO-LEFT OVERRIDE
		'\u2066', // LEFT-TO-RIGHT ISOLATE
		'\u2067', // RIGHT-TO-LEFT ISOLATE
		'\u2068', // FIRST STRONG ISOLATE
		'\u2069': // POP DIRECTIONAL ISOLATE
		return true
	}
	// Unicode tag characters can smuggle hidden content.
	if r >= 0xE0001 && r <= 0xE007F {
		return true
	}
	return false
}

// confusables maps lowercase Cyrillic and Greek homoglyphs to the Latin
// letters they visually imitate. Applied after case folding, so only the
// lowercase forms are listed.
var confusables = map[rune]rune{
	// Cyrillic
	'а': 'a', // CYRILLIC SMALL LETTER A
	'в': 'b', // CYRILLIC SMALL LETTER VE
	'с': 'c', // CYRILLIC SMALL LETTER ES
	'е': 'e', // CYRILLIC SMALL LETTER IE
	'ё': 'e', // CYRILLIC SMALL LETTER IO
	'н': 'h', // CYRILLIC SMALL LETTER EN
	'і': 'i', // CYRILLIC SMALL LETTER BYELORUSSIAN-UKRAINIAN I
	'ї': 'i', // CYRILLIC SMALL LETTER YI
	'к': 'k', // CYRILLIC SMALL LETTER KA
	'м': 'm', // CYRILLIC SMALL LETTER EM
	'о': 'o', // CYRILLIC SMALL LETTER O
	'р': 'p', // CYRILLIC SMALL LETTER ER
	'т': 't', // CYRILLIC SMALL LETTER TE
	'х': 'x', // CYRILLIC SMALL LETTER HA
	'у': 'y', // CYRILLIC SMALL LETTER U
	// Greek
	'α': 'a', // GREEK SMALL LETTER ALPHA
	'β': 'b', // GREEK SMALL LETTER BETA
	'ε': 'e', // GREEK SMALL LETTER EPSILON
	'η': 'n', // GREEK SMALL LETTER ETA
	'ι': 'i', // GREEK SMALL LETTER IOTA
	'κ': 'k', // GREEK SMALL LETTER KAPPA
	'ν': 'v', // GREEK SMALL LETTER NU
	'ο': 'o', // GREEK SMALL LETTER OMICRON
	'ρ': 'p', // GREEK SMALL LETTER RHO
	'τ': 't', // GREEK SMALL LETTER TAU
	'υ': 'y', // GREEK SMALL LETTER UPSILON
	'χ': 'x', // GREEK SMALL LETTER CHI
}
