package tree

import (
	"regexp"
	"strings"
)

func isGlob(s string) bool { return strings.ContainsAny(s, "*?") }

// compileGlob translates a shell glob into an anchored regexp. '*' also
// matches '/', so "table/*" covers "table/t/stream/s".
func compileGlob(pattern string) (*regexp.Regexp, error) {
	rs := []rune(pattern)
	var b strings.Builder
	b.WriteString(`(?s)^`)
	for i := 0; i < len(rs); i++ {
		switch rs[i] {
		case '*':
			b.WriteString(`.*`)
		case '?':
			b.WriteString(`.`)
		case '[':
			end := -1
			for j := i + 1; j < len(rs); j++ {
				if rs[j] == ']' {
					end = j
					break
				}
			}
			class := ""
			if end > 0 {
				class = string(rs[i+1 : end])
			}
			if class == "" || class == "!" {
				b.WriteString(`\[`)
				continue
			}
			i = end
			b.WriteByte('[')
			if strings.HasPrefix(class, "!") {
				b.WriteByte('^')
				class = class[1:]
			}
			b.WriteString(strings.ReplaceAll(class, `\`, `\\`))
			b.WriteByte(']')
		default:
			b.WriteString(regexp.QuoteMeta(string(rs[i])))
		}
	}
	b.WriteString(`$`)
	return regexp.Compile(b.String())
}
