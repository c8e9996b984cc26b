package merge

import (
	"strings"

	jsonpatch "github.com/evanphx/json-patch/v5"

	"github.com/mdwoicke/dentix-ortho-sub002/common/models"
)

// jsonPatchStrategy applies RFC 6902 operation arrays to flow exports.
// Registered only for flow-json artifacts; a fragment that does not decode
// as a patch document falls through to the text strategies.
type jsonPatchStrategy struct{}

func (s *jsonPatchStrategy) Name() string { return "json-patch" }

func (s *jsonPatchStrategy) TryInsert(lines []string, patch *models.Patch) ([]string, bool) {
	trimmed := strings.TrimSpace(patch.ChangeCode)
	if !strings.HasPrefix(trimmed, "[") {
		return nil, false
	}

	decoded, err := jsonpatch.DecodePatch([]byte(trimmed))
	if err != nil {
		return nil, false
	}

	doc := []byte(strings.Join(lines, "\n"))
	patched, err := decoded.ApplyIndent(doc, "  ")
	if err != nil {
		return nil, false
	}

	return strings.Split(string(patched), "\n"), true
}
