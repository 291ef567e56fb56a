package chunker

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// DefaultMaxLength is the synthesis request ceiling in characters.
const DefaultMaxLength = 300

// Split breaks text into chunks of at most max runes, cutting only at
// sentence boundaries. A sentence longer than max becomes its own chunk.
// Empty or whitespace-only input yields an empty slice.
func Split(text string, max int) []string {
	if max < 1 {
		max = 1
	}
	chunks := []string{}
	var current string
	currentLen := 0
	for _, sentence := range Sentences(text) {
		fragment := spaceDots(sentence)
		if fragment == "" {
			continue
		}
		fragmentLen := utf8.RuneCountInString(fragment)
		switch {
		case current == "":
			current, currentLen = fragment, fragmentLen
		case currentLen+1+fragmentLen <= max:
			current += " " + fragment
			currentLen += 1 + fragmentLen
		default:
			chunks = append(chunks, current)
			current, currentLen = fragment, fragmentLen
		}
	}
	if current != "" {
		chunks = append(chunks, current)
	}
	return chunks
}

// Sentences splits text at each whitespace character that follows "." or "?",
// unless the period closes a title abbreviation ("Mr.") or a dotted sequence
// ("e.g.", "U.S."). Fragments are returned untrimmed.
func Sentences(text string) []string {
	runes := []rune(text)
	var out []string
	start := 0
	for i, r := range runes {
		if !unicode.IsSpace(r) || i == 0 {
			continue
		}
		if prev := runes[i-1]; prev != '.' && prev != '?' {
			continue
		}
		if dottedSequence(runes, i) || titleAbbreviation(runes, i) {
			continue
		}
		out = append(out, string(runes[start:i]))
		start = i + 1
	}
	out = append(out, string(runes[start:]))
	return out
}

// dottedSequence reports whether the four runes before i read word, '.', word, any.
func dottedSequence(runes []rune, i int) bool {
	if i < 4 {
		return false
	}
	return isWord(runes[i-4]) && runes[i-3] == '.' && isWord(runes[i-2])
}

// titleAbbreviation reports whether the three runes before i read upper, lower, '.'.
func titleAbbreviation(runes []rune, i int) bool {
	if i < 3 {
		return false
	}
	return runes[i-1] == '.' && unicode.IsUpper(runes[i-3]) && unicode.IsLower(runes[i-2])
}

func isWord(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

// spaceDots gives every period a following space and collapses the result so
// "weird.dots" reads "weird. dots" without introducing double spaces.
func spaceDots(sentence string) string {
	return strings.Join(strings.Fields(strings.ReplaceAll(sentence, ".", ". ")), " ")
}
