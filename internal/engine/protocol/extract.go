package protocol

import (
	"regexp"
	"strings"

	"github.com/tidwall/gjson"
)

var (
	bracketIndex  = regexp.MustCompile(`\[(\d+)\]`)
	bracketQuoted = regexp.MustCompile(`\[['"]([^'"]+)['"]\]`)
)

// gjsonPath converts a JSONPath-style expression such as "$.pvs[0].moves"
// into gjson syntax ("pvs.0.moves").
func gjsonPath(path string) string {
	p := strings.TrimSpace(path)
	p = strings.TrimPrefix(p, "$")
	p = bracketQuoted.ReplaceAllString(p, ".$1")
	p = bracketIndex.ReplaceAllString(p, ".$1")
	return strings.TrimPrefix(p, ".")
}

// extractPath returns the value at path. Arrays yield their first element.
func extractPath(body []byte, path string) (string, bool) {
	res := gjson.GetBytes(body, gjsonPath(path))
	if !res.Exists() || res.Type == gjson.Null {
		return "", false
	}
	if res.IsArray() {
		items := res.Array()
		if len(items) == 0 {
			return "", false
		}
		res = items[0]
	}
	return res.String(), true
}

// extractFirst returns the first present path among paths.
func extractFirst(body []byte, paths ...string) (string, string, bool) {
	for _, p := range paths {
		if v, ok := extractPath(body, p); ok {
			return v, p, true
		}
	}
	return "", "", false
}

// firstToken keeps the first whitespace-separated token of a move sequence.
func firstToken(s string) string {
	if fields := strings.Fields(s); len(fields) > 0 {
		return fields[0]
	}
	return strings.TrimSpace(s)
}
