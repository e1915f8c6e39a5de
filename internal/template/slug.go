package template

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/felixgeelhaar/blueprint/internal/diagram"
)

const fallbackSpecSlug = "component"

// Slugify lower-cases s and collapses every run of non-alphanumeric
// characters into a single hyphen. It may return "".
func Slugify(s string) string {
	var b strings.Builder
	pendingHyphen := false
	for _, r := range strings.ToLower(s) {
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			if pendingHyphen && b.Len() > 0 {
				b.WriteByte('-')
			}
			pendingHyphen = false
			b.WriteRune(r)
			continue
		}
		pendingHyphen = true
	}
	return b.String()
}

// SpecFileNames assigns each node a spec file name ("api.md") derived from its
// label. Colliding slugs get "-2", "-3" suffixes in node order.
func SpecFileNames(nodes []diagram.Node) map[string]string {
	names := make(map[string]string, len(nodes))
	used := make(map[string]bool, len(nodes))
	for _, n := range nodes {
		base := Slugify(n.Label)
		if base == "" {
			base = fallbackSpecSlug
		}
		slug := base
		for i := 2; used[slug]; i++ {
			slug = fmt.Sprintf("%s-%d", base, i)
		}
		used[slug] = true
		names[n.ID] = slug + ".md"
	}
	return names
}

// SpecPath is the archive path of a spec file.
func SpecPath(fileName string) string {
	return "specs/" + fileName
}
