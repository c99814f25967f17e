package generate

import (
	"regexp"
	"strings"
)

var codeBlockPattern = regexp.MustCompile("(?s)```(?:go|golang)?[ \\t]*\\n(.*?)```")

// extractCode splits a model reply into its first fenced code block and the
// surrounding prose.
func extractCode(text string) (code string, prose string, ok bool) {
	loc := codeBlockPattern.FindStringSubmatchIndex(text)
	if loc == nil {
		return "", strings.TrimSpace(text), false
	}
	code = strings.TrimSpace(text[loc[2]:loc[3]])
	prose = strings.TrimSpace(text[:loc[0]] + " " + text[loc[1]:])
	return code, prose, code != ""
}
