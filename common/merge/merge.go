// Package merge inserts patch fragments into artifact content without a
// full parser. An ordered list of text-level strategies is tried in turn;
// the first match wins and a patch that matches none is rejected outright.
// There is no blind append: appending to the end of a prompt or tool body
// produces structurally valid but semantically broken merges (duplicate
// logic, unreachable code), so "no safe insertion point" is a hard error.
package merge

import (
	"strings"

	"github.com/mdwoicke/dentix-ortho-sub002/common/apperrors"
	"github.com/mdwoicke/dentix-ortho-sub002/common/models"
)

// Strategy is one insertion heuristic. TryInsert returns the merged lines
// and true on success, or nil and false when the strategy does not apply.
type Strategy interface {
	Name() string
	TryInsert(lines []string, patch *models.Patch) ([]string, bool)
}

// Merger merges patch fragments into content
type Merger struct{}

// NewMerger creates a new merger
func NewMerger() *Merger {
	return &Merger{}
}

// Merge inserts the patch fragment into content. Strategy order: the
// explicit location hint first, then shape heuristics, then rejection with
// the target and the attempted hint in the error.
func (m *Merger) Merge(content string, patch *models.Patch, kind models.ArtifactKind) (string, error) {
	lines := strings.Split(content, "\n")

	for _, s := range m.strategiesFor(patch, kind) {
		if merged, ok := s.TryInsert(lines, patch); ok {
			return strings.Join(merged, "\n"), nil
		}
	}

	target := patch.TargetArtifactHint
	if target == "" {
		target = patch.ChangeDescription
	}

	return "", &apperrors.NoSafeInsertionPointError{
		Target: target,
		Hint:   patch.Location.String(),
	}
}

// strategiesFor builds the ordered strategy list for one merge attempt
func (m *Merger) strategiesFor(patch *models.Patch, kind models.ArtifactKind) []Strategy {
	var strategies []Strategy

	// Flow exports take structured RFC 6902 patches when the fragment
	// parses as one; that beats any text heuristic.
	if kind == models.KindFlowJSON {
		strategies = append(strategies, &jsonPatchStrategy{})
	}

	// 1. Location-hinted insertion
	if patch.Location.Section != "" {
		strategies = append(strategies, &sectionStrategy{})
	}
	if patch.Location.Function != "" {
		strategies = append(strategies, &functionStrategy{})
	}
	if patch.Location.AfterLine != "" {
		strategies = append(strategies, &afterLineStrategy{})
	}

	// 2. Shape heuristics, used when no hint was given or it didn't resolve
	strategies = append(strategies,
		&caseBlockStrategy{},
		&assignmentStrategy{},
		&objectPropertyStrategy{},
	)

	return strategies
}
