package shared

import (
	"regexp"
	"strings"
)

var (
	uuidRe = regexp.MustCompile(`^[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}$`)

	likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
)

func IsUUID(s string) bool { return uuidRe.MatchString(s) }

// ContainsPattern builds an ILIKE pattern matching s anywhere, with LIKE
// metacharacters in s taken literally.
func ContainsPattern(s string) string {
	return "%" + likeEscaper.Replace(s) + "%"
}

// CompareFirst orders two field lookups by their first value; a missing
// value sorts as the empty string.
func CompareFirst(a, b []string) int {
	var x, y string
	if len(a) > 0 {
		x = a[0]
	}
	if len(b) > 0 {
		y = b[0]
	}
	return strings.Compare(x, y)
}
