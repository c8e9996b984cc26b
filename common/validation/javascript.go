package validation

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/javascript"

	"github.com/mdwoicke/dentix-ortho-sub002/common/models"
)

// Tool bodies run inside an async shell, so await and return are legal at
// the top level. The shell adds this many lines before the body; reported
// error lines are shifted back by the same amount.
const (
	jsWrapperHeader = "async function __toolShell__() {\n"
	jsWrapperLines  = 1
)

// entryFunctionName is the entry point every tool body must declare, and
// dispatchVariable the switch variable the calling convention injects.
const (
	entryFunctionName = "executeRequest"
	dispatchVariable  = "requestType"
)

// dispatchTypoAliases are misspellings of the dispatch variable that keep
// showing up in generated tool bodies. Referencing one without declaring it
// compiles fine and then fails at runtime, so they are rejected here.
var dispatchTypoAliases = []string{"requesttype", "request_type", "reqType"}

var (
	entryDeclRe    = regexp.MustCompile(`\basync\s+function\s+` + entryFunctionName + `\s*\(`)
	trailingCallRe = regexp.MustCompile(`^\s*(?:return\s+)?(?:await\s+)?` + entryFunctionName + `\(\s*\)\s*;?\s*$`)
	dispatchDeclRe = regexp.MustCompile(`\b(?:const|let|var)\s+` + dispatchVariable + `\b`)
	caseLabelRe    = regexp.MustCompile(`^\s*case\s+['"](.*?)['"]\s*:`)
	switchOpenRe   = regexp.MustCompile(`\bswitch\s*\(`)
)

// checkJavaScript validates a JavaScript tool body: syntax first, then the
// structural invariants of the tool-calling convention.
func (v *Validator) checkJavaScript(ctx context.Context, content string, result *models.ValidationResult) {
	v.checkJSSyntax(ctx, content, result)

	// masked: string and comment contents blanked, structure only.
	// visible: comments blanked, string contents kept (case values live there).
	masked := maskText(content, true)
	visible := maskText(content, false)

	if !entryDeclRe.MatchString(masked) {
		result.AddError(fmt.Sprintf("tool body must declare 'async function %s()'", entryFunctionName))
	}

	// Truncation detector: files cut off mid-generation are a known failure
	// mode. A complete body ends by invoking the entry function.
	if !endsWithEntryCall(masked) {
		result.AddError(fmt.Sprintf("tool body must end with a call to %s() as its final statement (file may be truncated)", entryFunctionName))
	}

	if !dispatchDeclRe.MatchString(masked) {
		result.AddError(fmt.Sprintf("tool body must declare the dispatch variable '%s'", dispatchVariable))
	}

	for _, alias := range dispatchTypoAliases {
		aliasRe := regexp.MustCompile(`\b` + regexp.QuoteMeta(alias) + `\b`)
		declRe := regexp.MustCompile(`\b(?:const|let|var)\s+` + regexp.QuoteMeta(alias) + `\b`)
		if aliasRe.MatchString(masked) && !declRe.MatchString(masked) {
			result.AddError(fmt.Sprintf("tool body references undeclared variable %q (did you mean '%s'?)", alias, dispatchVariable))
		}
	}

	checkDuplicateCases(masked, visible, result)
}

// checkJSSyntax compiles the body inside the async shell using tree-sitter,
// syntax only, nothing is executed. Error lines are adjusted for the shell.
func (v *Validator) checkJSSyntax(ctx context.Context, content string, result *models.ValidationResult) {
	wrapped := jsWrapperHeader + content + "\n}"

	parser := sitter.NewParser()
	parser.SetLanguage(javascript.GetLanguage())

	tree, err := parser.ParseCtx(ctx, nil, []byte(wrapped))
	if err != nil {
		result.AddError(fmt.Sprintf("javascript parse failed: %v", err))
		return
	}
	defer tree.Close()

	errs := collectSyntaxErrors(tree.RootNode(), []byte(wrapped))
	for i, e := range errs {
		if i >= 10 {
			result.AddError(fmt.Sprintf("... and %d more syntax errors", len(errs)-10))
			break
		}
		line := e.line - jsWrapperLines
		if line < 1 {
			line = 1
		}
		result.AddError(fmt.Sprintf("syntax error at line %d: %s", line, e.message))
	}
}

type syntaxError struct {
	line    int
	message string
}

// collectSyntaxErrors walks the tree for error and missing nodes. Error
// nodes are reported without descending further so nested fragments of the
// same breakage do not flood the result.
func collectSyntaxErrors(node *sitter.Node, src []byte) []syntaxError {
	var errs []syntaxError

	if node.IsMissing() {
		return append(errs, syntaxError{
			line:    int(node.StartPoint().Row) + 1,
			message: fmt.Sprintf("missing %s", node.Type()),
		})
	}

	if node.IsError() {
		snippet := string(src[node.StartByte():node.EndByte()])
		if len(snippet) > 40 {
			snippet = snippet[:40] + "..."
		}
		return append(errs, syntaxError{
			line:    int(node.StartPoint().Row) + 1,
			message: fmt.Sprintf("unexpected token near %q", strings.TrimSpace(snippet)),
		})
	}

	for i := 0; i < int(node.ChildCount()); i++ {
		errs = append(errs, collectSyntaxErrors(node.Child(i), src)...)
	}

	return errs
}

// endsWithEntryCall checks the last non-blank line of the masked body
func endsWithEntryCall(masked string) bool {
	lines := strings.Split(masked, "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if strings.TrimSpace(lines[i]) == "" {
			continue
		}
		return trailingCallRe.MatchString(lines[i])
	}
	return false
}

type switchScope struct {
	entryDepth int
	seen       map[string]int // case value -> first line
}

// checkDuplicateCases flags two case labels with the same value inside one
// switch. Brace depth and switch detection run on the fully masked text;
// case values are read from the comment-stripped text so string contents
// survive. Assumes the house style of 'switch (x) {' on a single line.
func checkDuplicateCases(masked, visible string, result *models.ValidationResult) {
	maskedLines := strings.Split(masked, "\n")
	visibleLines := strings.Split(visible, "\n")

	depth := 0
	var scopes []*switchScope

	for i, line := range maskedLines {
		if switchOpenRe.MatchString(line) {
			scopes = append(scopes, &switchScope{entryDepth: depth, seen: make(map[string]int)})
		}

		if len(scopes) > 0 && i < len(visibleLines) {
			if m := caseLabelRe.FindStringSubmatch(visibleLines[i]); m != nil {
				scope := scopes[len(scopes)-1]
				value := m[1]
				if first, dup := scope.seen[value]; dup {
					result.AddError(fmt.Sprintf("duplicate case '%s' at line %d (first at line %d)", value, i+1, first))
				} else {
					scope.seen[value] = i + 1
				}
			}
		}

		for _, c := range line {
			switch c {
			case '{':
				depth++
			case '}':
				depth--
				for len(scopes) > 0 && depth <= scopes[len(scopes)-1].entryDepth {
					scopes = scopes[:len(scopes)-1]
				}
			}
		}
	}
}
