package merge

import (
	"regexp"
	"strings"

	"github.com/mdwoicke/dentix-ortho-sub002/common/models"
)

// sectionStrategy inserts before the closing tag of the first matching
// <Tag ...> ... </Tag> pair, case-insensitive.
type sectionStrategy struct{}

func (s *sectionStrategy) Name() string { return "section-hint" }

func (s *sectionStrategy) TryInsert(lines []string, patch *models.Patch) ([]string, bool) {
	tag := regexp.QuoteMeta(patch.Location.Section)
	openRe := regexp.MustCompile(`(?i)<\s*` + tag + `[\s>]`)
	closeRe := regexp.MustCompile(`(?i)</\s*` + tag + `\s*>`)

	openIdx := -1
	for i, line := range lines {
		if openRe.MatchString(line) {
			openIdx = i
			break
		}
	}
	if openIdx < 0 {
		return nil, false
	}

	for i := openIdx; i < len(lines); i++ {
		if closeRe.MatchString(lines[i]) {
			fragment := reindent(patch.ChangeCode, leadingIndent(lines[i]))
			return insertAt(lines, i, fragment), true
		}
	}

	return nil, false
}

// functionStrategy locates a function declaration by name and inserts just
// before its closing brace, re-indented to match the body.
type functionStrategy struct{}

func (s *functionStrategy) Name() string { return "function-hint" }

func (s *functionStrategy) TryInsert(lines []string, patch *models.Patch) ([]string, bool) {
	name := regexp.QuoteMeta(patch.Location.Function)
	declPatterns := []*regexp.Regexp{
		regexp.MustCompile(`\bfunction\s+` + name + `\s*\(`),
		regexp.MustCompile(`\b(?:const|let|var)\s+` + name + `\s*=\s*(?:async\s+)?function\b`),
		regexp.MustCompile(`\b(?:const|let|var)\s+` + name + `\s*=\s*(?:async\s*)?\(`),
		regexp.MustCompile(`\b` + name + `\s*=\s*(?:async\s+)?function\b`),
	}

	declIdx := -1
	for i, line := range lines {
		for _, re := range declPatterns {
			if re.MatchString(line) {
				declIdx = i
				break
			}
		}
		if declIdx >= 0 {
			break
		}
	}
	if declIdx < 0 {
		return nil, false
	}

	// Scan forward from the declaration counting brace depth, ignoring
	// braces inside strings, until the function body closes.
	sc := newCodeScanner()
	depth := 0
	opened := false
	for i := declIdx; i < len(lines); i++ {
		closeLine, closeCol := -1, -1
		sc.scanLine(lines[i], func(c byte, col int) {
			switch c {
			case '{':
				depth++
				opened = true
			case '}':
				depth--
				if opened && depth == 0 && closeLine < 0 {
					closeLine = i
					closeCol = col
				}
			}
		})
		if closeLine >= 0 {
			indent := leadingIndent(lines[declIdx]) + "  "
			fragment := reindent(patch.ChangeCode, indent)

			line := lines[closeLine]
			if strings.TrimSpace(line[:closeCol]) == "" {
				// Closing brace alone on its line: insert before the line
				return insertAt(lines, closeLine, fragment), true
			}

			// Closing brace shares its line with body code (single-line
			// function): split at the brace so the fragment stays inside
			// the body.
			head := strings.TrimRight(line[:closeCol], " \t")
			tail := leadingIndent(lines[declIdx]) + line[closeCol:]
			merged := make([]string, 0, len(lines)+len(fragment)+1)
			merged = append(merged, lines[:closeLine]...)
			merged = append(merged, head)
			merged = append(merged, fragment...)
			merged = append(merged, tail)
			merged = append(merged, lines[closeLine+1:]...)
			return merged, true
		}
	}

	return nil, false
}

// afterLineStrategy inserts on the line following the first match of a
// literal/regex anchor.
type afterLineStrategy struct{}

func (s *afterLineStrategy) Name() string { return "after-line-hint" }

func (s *afterLineStrategy) TryInsert(lines []string, patch *models.Patch) ([]string, bool) {
	anchor := patch.Location.AfterLine

	if re, err := regexp.Compile(anchor); err == nil {
		for i, line := range lines {
			if re.MatchString(line) {
				fragment := reindent(patch.ChangeCode, leadingIndent(line))
				return insertAt(lines, i+1, fragment), true
			}
		}
	}

	// Literal fallback: an anchor like `items[0]` compiles as a regex that
	// matches nothing, but it still names a real line.
	for i, line := range lines {
		if strings.Contains(line, anchor) {
			fragment := reindent(patch.ChangeCode, leadingIndent(line))
			return insertAt(lines, i+1, fragment), true
		}
	}

	return nil, false
}

var (
	fragmentCaseRe   = regexp.MustCompile(`^\s*case\s+['"](.+?)['"]\s*:\s*(.*)$`)
	fragmentAssignRe = regexp.MustCompile(`^\s*(?:const|let|var)\s+([A-Za-z_$][\w$]*)\s*=`)
	objectPropRe     = regexp.MustCompile(`^\s*['"]?[A-Za-z_$][\w$]*['"]?\s*:`)
)

// caseBlockStrategy handles fragments shaped like a case block: the code is
// inserted at the top of the body of the *existing* case with the same
// value. A label with no existing counterpart is not a match; inventing a
// new switch branch is not safe without a hint.
type caseBlockStrategy struct{}

func (s *caseBlockStrategy) Name() string { return "case-block" }

func (s *caseBlockStrategy) TryInsert(lines []string, patch *models.Patch) ([]string, bool) {
	fragLines := strings.Split(patch.ChangeCode, "\n")
	first := firstNonEmpty(fragLines)
	if first < 0 {
		return nil, false
	}

	m := fragmentCaseRe.FindStringSubmatch(fragLines[first])
	if m == nil {
		return nil, false
	}
	value, inline := m[1], m[2]

	// Body of the fragment: code on the label line plus remaining lines
	var body []string
	if strings.TrimSpace(inline) != "" {
		body = append(body, inline)
	}
	for _, l := range fragLines[first+1:] {
		body = append(body, l)
	}
	for len(body) > 0 && strings.TrimSpace(body[len(body)-1]) == "" {
		body = body[:len(body)-1]
	}
	if len(body) == 0 {
		return nil, false
	}

	labelRe := regexp.MustCompile(`^\s*case\s+['"]` + regexp.QuoteMeta(value) + `['"]\s*:`)
	for i, line := range lines {
		if labelRe.MatchString(line) {
			indent := leadingIndent(line) + "  "
			fragment := reindent(strings.Join(body, "\n"), indent)
			return insertAt(lines, i+1, fragment), true
		}
	}

	return nil, false
}

// assignmentStrategy handles fragments shaped like a variable assignment:
// the fragment is inserted right after the statement terminator of the
// existing declaration of the same name.
type assignmentStrategy struct{}

func (s *assignmentStrategy) Name() string { return "assignment" }

func (s *assignmentStrategy) TryInsert(lines []string, patch *models.Patch) ([]string, bool) {
	fragLines := strings.Split(patch.ChangeCode, "\n")
	first := firstNonEmpty(fragLines)
	if first < 0 {
		return nil, false
	}

	m := fragmentAssignRe.FindStringSubmatch(fragLines[first])
	if m == nil {
		return nil, false
	}
	name := m[1]

	declRe := regexp.MustCompile(`\b(?:const|let|var)\s+` + regexp.QuoteMeta(name) + `\b`)
	for i, line := range lines {
		if !declRe.MatchString(line) {
			continue
		}
		// Walk to the end of the statement
		for j := i; j < len(lines); j++ {
			if strings.HasSuffix(strings.TrimRight(lines[j], " \t"), ";") {
				fragment := reindent(patch.ChangeCode, leadingIndent(line))
				return insertAt(lines, j+1, fragment), true
			}
		}
		return nil, false
	}

	return nil, false
}

// objectPropertyStrategy recognizes object-property-shaped fragments and
// deliberately never matches: there is no safe way to pick the target
// object literal from text alone. Such patches need an explicit location
// hint. Kept as a named strategy so the shape is detected, not guessed at.
type objectPropertyStrategy struct{}

func (s *objectPropertyStrategy) Name() string { return "object-property" }

func (s *objectPropertyStrategy) TryInsert(lines []string, patch *models.Patch) ([]string, bool) {
	return nil, false
}

// Helpers

func insertAt(lines []string, idx int, fragment []string) []string {
	merged := make([]string, 0, len(lines)+len(fragment))
	merged = append(merged, lines[:idx]...)
	merged = append(merged, fragment...)
	merged = append(merged, lines[idx:]...)
	return merged
}

func leadingIndent(line string) string {
	for i := 0; i < len(line); i++ {
		if line[i] != ' ' && line[i] != '\t' {
			return line[:i]
		}
	}
	return line
}

func firstNonEmpty(lines []string) int {
	for i, l := range lines {
		if strings.TrimSpace(l) != "" {
			return i
		}
	}
	return -1
}

// reindent strips the fragment's own base indentation and applies indent
func reindent(fragment, indent string) []string {
	lines := strings.Split(strings.TrimRight(fragment, "\n"), "\n")

	base := ""
	baseSet := false
	for _, l := range lines {
		if strings.TrimSpace(l) == "" {
			continue
		}
		li := leadingIndent(l)
		if !baseSet || len(li) < len(base) {
			base = li
			baseSet = true
		}
	}

	out := make([]string, len(lines))
	for i, l := range lines {
		if strings.TrimSpace(l) == "" {
			out[i] = ""
			continue
		}
		out[i] = indent + strings.TrimPrefix(l, base)
	}
	return out
}

// codeScanner visits structural characters of JavaScript-ish text, skipping
// string literals and comments. State carries across lines so template
// literals and block comments spanning lines are handled.
type codeScanner struct {
	inString byte
	escaped  bool
	inBlock  bool
}

func newCodeScanner() *codeScanner {
	return &codeScanner{}
}

func (sc *codeScanner) scanLine(line string, visit func(c byte, col int)) {
	inLineComment := false

	for i := 0; i < len(line); i++ {
		c := line[i]

		switch {
		case inLineComment:
			// skip rest of line

		case sc.inBlock:
			if c == '*' && i+1 < len(line) && line[i+1] == '/' {
				sc.inBlock = false
				i++
			}

		case sc.inString != 0:
			if sc.escaped {
				sc.escaped = false
			} else if c == '\\' {
				sc.escaped = true
			} else if c == sc.inString {
				sc.inString = 0
			}

		default:
			switch c {
			case '"', '\'', '`':
				sc.inString = c
			case '/':
				if i+1 < len(line) && line[i+1] == '/' {
					inLineComment = true
					i++
				} else if i+1 < len(line) && line[i+1] == '*' {
					sc.inBlock = true
					i++
				}
			default:
				visit(c, i)
			}
		}
	}

	// Single and double quoted strings do not span lines; template
	// literals do.
	if sc.inString == '"' || sc.inString == '\'' {
		sc.inString = 0
	}
	sc.escaped = false
}
