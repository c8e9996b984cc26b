package validation

import (
	"fmt"
	"strings"

	"github.com/mdwoicke/dentix-ortho-sub002/common/models"
)

type opener struct {
	char byte
	line int
	col  int
}

var closerFor = map[byte]byte{'{': '}', '[': ']', '(': ')'}

// checkBalanced is the generic structural check for prompt text and any
// unrecognized kind: every {, [ and ( must have a matching closer. Characters
// inside string literals and comments do not count. Mismatches report the
// opener's position alongside the unexpected closer.
func (v *Validator) checkBalanced(content string, result *models.ValidationResult) {
	var stack []opener

	line, col := 1, 0
	inString := byte(0)
	inLineComment := false
	inBlockComment := false
	escaped := false

	for i := 0; i < len(content); i++ {
		c := content[i]
		if c == '\n' {
			line++
			col = 0
			inLineComment = false
			escaped = false
			continue
		}
		col++

		switch {
		case inLineComment:
			// skip to end of line

		case inBlockComment:
			if c == '*' && i+1 < len(content) && content[i+1] == '/' {
				inBlockComment = false
				i++
				col++
			}

		case inString != 0:
			if escaped {
				escaped = false
			} else if c == '\\' {
				escaped = true
			} else if c == inString {
				inString = 0
			}

		default:
			switch c {
			case '"', '\'', '`':
				inString = c
			case '/':
				if i+1 < len(content) {
					switch content[i+1] {
					case '/':
						inLineComment = true
						i++
						col++
					case '*':
						inBlockComment = true
						i++
						col++
					}
				}
			case '{', '[', '(':
				stack = append(stack, opener{char: c, line: line, col: col})
			case '}', ']', ')':
				if len(stack) == 0 {
					result.AddError(fmt.Sprintf("unexpected '%c' at line %d col %d: nothing open", c, line, col))
					continue
				}
				top := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				if closerFor[top.char] != c {
					result.AddError(fmt.Sprintf("unexpected '%c' at line %d col %d: expected '%c' to close '%c' opened at line %d col %d",
						c, line, col, closerFor[top.char], top.char, top.line, top.col))
				}
			}
		}
	}

	for _, o := range stack {
		result.AddError(fmt.Sprintf("unclosed '%c' opened at line %d col %d", o.char, o.line, o.col))
	}
}

// maskText blanks comment contents (and, when maskStrings is set, string
// contents) with spaces while preserving newlines and byte offsets, so
// regexes and brace counting can run without tripping over literals.
func maskText(content string, maskStrings bool) string {
	var b strings.Builder
	b.Grow(len(content))

	inString := byte(0)
	inLineComment := false
	inBlockComment := false
	escaped := false

	for i := 0; i < len(content); i++ {
		c := content[i]
		if c == '\n' {
			inLineComment = false
			escaped = false
			b.WriteByte('\n')
			continue
		}

		switch {
		case inLineComment:
			b.WriteByte(' ')

		case inBlockComment:
			if c == '*' && i+1 < len(content) && content[i+1] == '/' {
				inBlockComment = false
				b.WriteString("  ")
				i++
			} else {
				b.WriteByte(' ')
			}

		case inString != 0:
			if escaped {
				escaped = false
				writeMasked(&b, c, maskStrings)
			} else if c == '\\' {
				escaped = true
				writeMasked(&b, c, maskStrings)
			} else if c == inString {
				inString = 0
				b.WriteByte(c)
			} else {
				writeMasked(&b, c, maskStrings)
			}

		default:
			switch c {
			case '"', '\'', '`':
				inString = c
				b.WriteByte(c)
			case '/':
				if i+1 < len(content) && content[i+1] == '/' {
					inLineComment = true
					b.WriteString("  ")
					i++
				} else if i+1 < len(content) && content[i+1] == '*' {
					inBlockComment = true
					b.WriteString("  ")
					i++
				} else {
					b.WriteByte(c)
				}
			default:
				b.WriteByte(c)
			}
		}
	}

	return b.String()
}

func writeMasked(b *strings.Builder, c byte, mask bool) {
	if mask {
		b.WriteByte(' ')
	} else {
		b.WriteByte(c)
	}
}
