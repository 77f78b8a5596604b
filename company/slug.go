package company

import (
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const maxSlugLen = 60

// slugSuffixRoom leaves space for suffixes up to "-999" when a slug is taken.
const slugSuffixRoom = 4

var stripMarks = transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Slugify derives a URL slug from a company name: accents are folded, runs
// of anything other than a-z and 0-9 become one dash.
func Slugify(name string) string {
	folded, _, err := transform.String(stripMarks, name)
	if err != nil {
		folded = name
	}

	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(folded) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			sep := dash && b.Len() > 0
			need := 1
			if sep {
				need = 2
			}
			if b.Len()+need > maxSlugLen {
				break
			}
			if sep {
				b.WriteByte('-')
			}
			b.WriteRune(r)
			dash = false
			continue
		}
		dash = true
	}
	if b.Len() == 0 {
		return "company"
	}
	return b.String()
}

// slugStem is the prefix every candidate uniqueSlug tries for base starts
// with. Taken slugs must be looked up by it.
func slugStem(base string) string {
	return trimSlug(base, maxSlugLen-slugSuffixRoom)
}

func trimSlug(s string, n int) string {
	if len(s) > n {
		s = s[:n]
	}
	return strings.TrimRight(s, "-")
}

// uniqueSlug returns base, or base-N with the lowest free N, given the slugs
// already taken that start with slugStem(base). base is shortened so the
// result never exceeds maxSlugLen.
func uniqueSlug(base string, taken []string) string {
	used := make(map[string]bool, len(taken))
	for _, s := range taken {
		used[s] = true
	}
	if !used[base] {
		return base
	}
	for n := 2; ; n++ {
		suffix := "-" + strconv.Itoa(n)
		candidate := trimSlug(base, maxSlugLen-len(suffix)) + suffix
		if !used[candidate] {
			return candidate
		}
	}
}
