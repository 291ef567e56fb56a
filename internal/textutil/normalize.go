package textutil

import (
	"regexp"
	"sort"
	"strings"

	"golang.org/x/text/unicode/norm"
)

var (
	// demographicTagPattern matches age/gender tags such as "(24F)" or "31m".
	demographicTagPattern = regexp.MustCompile(`\(?\d{1,3}[mfMF]\)?`)
	spaceRunPattern       = regexp.MustCompile(` +`)
	whitespaceReplacer    = strings.NewReplacer("\r\n", " ", "\n", " ", "\r", " ", "\t", " ")
)

// Normalizer rewrites raw titles and bodies into the form items are stored,
// fingerprinted, and narrated in.
type Normalizer struct {
	replacements []replacement
}

type replacement struct {
	pattern *regexp.Regexp
	value   string
}

// NewNormalizer compiles the abbreviation table. Keys match whole words,
// case-insensitively; longer keys are tried first so "f*cked" wins over "f*ck".
func NewNormalizer(slang map[string]string) *Normalizer {
	keys := make([]string, 0, len(slang))
	for key := range slang {
		if strings.TrimSpace(key) != "" {
			keys = append(keys, key)
		}
	}
	sort.Slice(keys, func(i, j int) bool {
		if len(keys[i]) != len(keys[j]) {
			return len(keys[i]) > len(keys[j])
		}
		return keys[i] < keys[j]
	})

	n := &Normalizer{replacements: make([]replacement, 0, len(keys))}
	for _, key := range keys {
		n.replacements = append(n.replacements, replacement{
			pattern: regexp.MustCompile(`(?i)` + wordBoundary(key[0]) + regexp.QuoteMeta(key) + wordBoundary(key[len(key)-1])),
			value:   slang[key],
		})
	}
	return n
}

func wordBoundary(b byte) string {
	if b == '_' || (b >= '0' && b <= '9') || (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') {
		return `\b`
	}
	return ""
}

// Text applies, in order: Unicode NFC, abbreviation expansion, demographic
// tag removal, newline/tab flattening, and space collapsing.
func (n *Normalizer) Text(value string) string {
	value = norm.NFC.String(value)
	if n != nil {
		for _, r := range n.replacements {
			value = r.pattern.ReplaceAllLiteralString(value, r.value)
		}
	}
	value = demographicTagPattern.ReplaceAllString(value, "")
	return CollapseWhitespace(value)
}

// Author flattens newlines and tabs and collapses spaces.
func (n *Normalizer) Author(value string) string {
	return CollapseWhitespace(norm.NFC.String(value))
}

// CollapseWhitespace replaces newlines and tabs with spaces, collapses runs of
// spaces, and trims the result.
func CollapseWhitespace(value string) string {
	value = whitespaceReplacer.Replace(value)
	value = spaceRunPattern.ReplaceAllString(value, " ")
	return strings.TrimSpace(value)
}

// ContainsAnyWord reports the first blocked word found in text as a whole
// word, case-insensitively.
func ContainsAnyWord(text string, words []string) (string, bool) {
	if len(words) == 0 || text == "" {
		return "", false
	}
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !(r == '\'' || r == '*' || ('a' <= r && r <= 'z') || ('0' <= r && r <= '9') || r > 127)
	})
	present := make(map[string]struct{}, len(fields))
	for _, field := range fields {
		present[field] = struct{}{}
	}
	for _, word := range words {
		word = strings.ToLower(strings.TrimSpace(word))
		if word == "" {
			continue
		}
		if _, ok := present[word]; ok {
			return word, true
		}
	}
	return "", false
}
