package merge

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/mdwoicke/dentix-ortho-sub002/common/apperrors"
	"github.com/mdwoicke/dentix-ortho-sub002/common/models"
)

const toolBody = `const requestType = $input.requestType;
const apiUrl = 'https://api.example.com';

async function executeRequest() {
  switch (requestType) {
    case 'slots':
      const slots = await fetchSlots();
      return slots;
    case 'book':
      return await bookAppointment();
    default:
      return { error: 'unknown' };
  }
}

executeRequest();`

const promptText = `<Role>
You are a scheduling assistant.
</Role>
<Instructions>
Greet the caller.
Collect the patient name.
</Instructions>`

func mustMerge(t *testing.T, content string, patch *models.Patch, kind models.ArtifactKind) string {
	t.Helper()
	merged, err := NewMerger().Merge(content, patch, kind)
	if err != nil {
		t.Fatalf("Merge failed: %v", err)
	}
	return merged
}

func TestMerge_SectionHint(t *testing.T) {
	patch := &models.Patch{
		ChangeCode: "Confirm the appointment time before booking.",
		Location:   models.LocationHint{Section: "instructions"},
	}

	merged := mustMerge(t, promptText, patch, models.KindPromptText)

	lines := strings.Split(merged, "\n")
	closeIdx := -1
	for i, l := range lines {
		if strings.Contains(l, "</Instructions>") {
			closeIdx = i
		}
	}
	if closeIdx < 1 {
		t.Fatal("closing tag lost in merge")
	}
	if !strings.Contains(lines[closeIdx-1], "Confirm the appointment time") {
		t.Errorf("fragment should sit immediately before the closing tag, got %q", lines[closeIdx-1])
	}
}

func TestMerge_SectionHint_CaseInsensitive(t *testing.T) {
	patch := &models.Patch{
		ChangeCode: "Stay concise.",
		Location:   models.LocationHint{Section: "ROLE"},
	}

	merged := mustMerge(t, promptText, patch, models.KindPromptText)
	if !strings.Contains(merged, "Stay concise.\n</Role>") {
		t.Errorf("expected insertion before </Role>, got:\n%s", merged)
	}
}

func TestMerge_FunctionHint(t *testing.T) {
	patch := &models.Patch{
		ChangeCode: "logAttempt(requestType);",
		Location:   models.LocationHint{Function: "executeRequest"},
	}

	merged := mustMerge(t, toolBody, patch, models.KindJavaScriptTool)

	lines := strings.Split(merged, "\n")
	var fragIdx int
	for i, l := range lines {
		if strings.Contains(l, "logAttempt(requestType);") {
			fragIdx = i
		}
	}
	if fragIdx == 0 {
		t.Fatal("fragment not inserted")
	}
	// Just before the function's closing brace, indented one level in
	if strings.TrimSpace(lines[fragIdx+1]) != "}" {
		t.Errorf("fragment should sit before the closing brace, next line is %q", lines[fragIdx+1])
	}
	if !strings.HasPrefix(lines[fragIdx], "  ") {
		t.Errorf("fragment should be re-indented, got %q", lines[fragIdx])
	}
}

func TestMerge_FunctionHint_IgnoresBracesInStrings(t *testing.T) {
	content := `function greet() {
  const msg = "brace } in string";
  say(msg);
}`
	patch := &models.Patch{
		ChangeCode: "audit();",
		Location:   models.LocationHint{Function: "greet"},
	}

	merged := mustMerge(t, content, patch, models.KindJavaScriptTool)
	lines := strings.Split(merged, "\n")
	if strings.TrimSpace(lines[len(lines)-2]) != "audit();" {
		t.Errorf("fragment should land before the real closing brace:\n%s", merged)
	}
}

func TestMerge_FunctionHint_SingleLineBody(t *testing.T) {
	// The closing brace shares its line with body code; the fragment must
	// still land inside the body, not before the declaration.
	content := `function helper() { return 1; }`
	patch := &models.Patch{
		ChangeCode: "logEntry();",
		Location:   models.LocationHint{Function: "helper"},
	}

	merged := mustMerge(t, content, patch, models.KindJavaScriptTool)

	lines := strings.Split(merged, "\n")
	if len(lines) != 3 {
		t.Fatalf("expected the line to split around the brace, got:\n%s", merged)
	}
	if lines[0] != "function helper() { return 1;" {
		t.Errorf("body code should stay ahead of the fragment, got %q", lines[0])
	}
	if lines[1] != "  logEntry();" {
		t.Errorf("fragment should sit inside the body, re-indented, got %q", lines[1])
	}
	if lines[2] != "}" {
		t.Errorf("closing brace should move to its own line, got %q", lines[2])
	}
}

func TestMerge_FunctionHint_SingleLineBodyNested(t *testing.T) {
	content := `const api = {};
api.helper = function() { call({ a: 1 }); };
api.other = function() { return 2; };`
	patch := &models.Patch{
		ChangeCode: "audit();",
		Location:   models.LocationHint{Function: "helper"},
	}

	merged := mustMerge(t, content, patch, models.KindJavaScriptTool)

	lines := strings.Split(merged, "\n")
	if lines[1] != "api.helper = function() { call({ a: 1 });" {
		t.Errorf("split must happen at the body's own closing brace, got %q", lines[1])
	}
	if lines[2] != "  audit();" {
		t.Errorf("fragment should follow the body code, got %q", lines[2])
	}
	if strings.TrimSpace(lines[3]) != "};" {
		t.Errorf("brace and statement terminator should carry over, got %q", lines[3])
	}
	if !strings.Contains(merged, "api.other = function() { return 2; };") {
		t.Errorf("the sibling function must be untouched:\n%s", merged)
	}
}

func TestMerge_AfterLineHint(t *testing.T) {
	patch := &models.Patch{
		ChangeCode: "Ask for a callback number.",
		Location:   models.LocationHint{AfterLine: "Collect the patient name."},
	}

	merged := mustMerge(t, promptText, patch, models.KindPromptText)
	if !strings.Contains(merged, "Collect the patient name.\nAsk for a callback number.") {
		t.Errorf("fragment should follow the anchor line:\n%s", merged)
	}
}

func TestMerge_AfterLineHint_Regex(t *testing.T) {
	patch := &models.Patch{
		ChangeCode: "const retries = 3;",
		Location:   models.LocationHint{AfterLine: `^const apiUrl =.*$`},
	}

	merged := mustMerge(t, toolBody, patch, models.KindJavaScriptTool)
	if !strings.Contains(merged, "apiUrl = 'https://api.example.com';\nconst retries = 3;") {
		t.Errorf("fragment should follow the regex anchor:\n%s", merged)
	}
}

func TestMerge_AfterLineHint_LiteralWithMetacharacters(t *testing.T) {
	// An anchor like items[0] compiles as a regex that matches nothing;
	// the literal line must still be found.
	content := `const first = items[0];
use(first);`
	patch := &models.Patch{
		ChangeCode: "const second = items[1];",
		Location:   models.LocationHint{AfterLine: "items[0]"},
	}

	merged := mustMerge(t, content, patch, models.KindJavaScriptTool)
	if !strings.Contains(merged, "items[0];\nconst second = items[1];\nuse(first);") {
		t.Errorf("fragment should follow the literal anchor line:\n%s", merged)
	}
}

func TestMerge_CaseBlockHeuristic(t *testing.T) {
	patch := &models.Patch{
		ChangeCode: "case 'slots': validateDateRange();",
	}

	merged := mustMerge(t, toolBody, patch, models.KindJavaScriptTool)

	lines := strings.Split(merged, "\n")
	for i, l := range lines {
		if strings.Contains(l, "case 'slots':") {
			if !strings.Contains(lines[i+1], "validateDateRange();") {
				t.Errorf("fragment body should open the existing case body, got %q", lines[i+1])
			}
			return
		}
	}
	t.Fatal("case label lost in merge")
}

func TestMerge_CaseBlock_NoExistingLabelFails(t *testing.T) {
	// The heuristic only matches existing case labels; a new label has no
	// safe insertion point and must be rejected, not appended.
	patch := &models.Patch{
		ChangeDescription: "add newAction branch",
		ChangeCode:        "case 'newAction': return 42;",
	}

	_, err := NewMerger().Merge(toolBody, patch, models.KindJavaScriptTool)
	var nsip *apperrors.NoSafeInsertionPointError
	if !errors.As(err, &nsip) {
		t.Fatalf("expected NoSafeInsertionPointError, got %v", err)
	}
	if !strings.Contains(nsip.Error(), "add newAction branch") {
		t.Errorf("error should carry the target description: %v", nsip)
	}
}

func TestMerge_AssignmentHeuristic(t *testing.T) {
	patch := &models.Patch{
		ChangeCode: "const apiUrl = 'https://api.example.com/v2';",
	}

	merged := mustMerge(t, toolBody, patch, models.KindJavaScriptTool)
	if !strings.Contains(merged, "api.example.com';\nconst apiUrl = 'https://api.example.com/v2';") {
		t.Errorf("fragment should follow the existing declaration:\n%s", merged)
	}
}

func TestMerge_ObjectPropertyShapeUnsupported(t *testing.T) {
	patch := &models.Patch{
		TargetArtifactHint: "booking tool",
		ChangeCode:         `"timeout": 5000,`,
	}

	_, err := NewMerger().Merge(toolBody, patch, models.KindJavaScriptTool)
	var nsip *apperrors.NoSafeInsertionPointError
	if !errors.As(err, &nsip) {
		t.Fatalf("object-property fragments need an explicit hint, got %v", err)
	}
}

func TestMerge_HintMissThenHeuristic(t *testing.T) {
	// Unresolvable function hint falls through to the case heuristic
	patch := &models.Patch{
		ChangeCode: "case 'book': checkInsurance();",
		Location:   models.LocationHint{Function: "noSuchFunction"},
	}

	merged := mustMerge(t, toolBody, patch, models.KindJavaScriptTool)
	if !strings.Contains(merged, "case 'book':\n      checkInsurance();") {
		t.Errorf("expected fallthrough to case heuristic:\n%s", merged)
	}
}

func TestMerge_NoStrategyMatches(t *testing.T) {
	patch := &models.Patch{
		TargetArtifactHint: "system prompt",
		ChangeCode:         "just some prose with no recognizable shape",
		Location:           models.LocationHint{Section: "NoSuchSection"},
	}

	_, err := NewMerger().Merge(promptText, patch, models.KindPromptText)
	var nsip *apperrors.NoSafeInsertionPointError
	if !errors.As(err, &nsip) {
		t.Fatalf("expected NoSafeInsertionPointError, got %v", err)
	}
	if !strings.Contains(nsip.Error(), "section=NoSuchSection") {
		t.Errorf("error should carry the attempted hint: %v", nsip)
	}
}

func TestMerge_FlowJSONPatch(t *testing.T) {
	flow := `[{"id":"t1","type":"tab","label":"Main"},{"id":"n1","type":"function"}]`
	patch := &models.Patch{
		ChangeCode: `[{"op": "add", "path": "/-", "value": {"id": "n2", "type": "http in"}}]`,
	}

	merged := mustMerge(t, flow, patch, models.KindFlowJSON)

	var nodes []map[string]interface{}
	if err := json.Unmarshal([]byte(merged), &nodes); err != nil {
		t.Fatalf("merged flow is not valid JSON: %v", err)
	}
	if len(nodes) != 3 {
		t.Errorf("expected 3 nodes after patch, got %d", len(nodes))
	}
	if nodes[2]["id"] != "n2" {
		t.Errorf("new node should be appended by the patch op, got %v", nodes[2])
	}
}

func TestMerge_FlowJSON_BadPatchFallsThrough(t *testing.T) {
	flow := `[{"id":"t1","type":"tab"}]`
	patch := &models.Patch{
		TargetArtifactHint: "main flow",
		ChangeCode:         "not a patch document",
	}

	_, err := NewMerger().Merge(flow, patch, models.KindFlowJSON)
	var nsip *apperrors.NoSafeInsertionPointError
	if !errors.As(err, &nsip) {
		t.Fatalf("expected NoSafeInsertionPointError, got %v", err)
	}
}
