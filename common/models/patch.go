package models

import (
	"time"

	"github.com/google/uuid"
)

// PatchKind distinguishes prompt patches from tool patches
type PatchKind string

const (
	PatchKindPrompt PatchKind = "prompt"
	PatchKindTool   PatchKind = "tool"
)

// PatchStatus tracks the single-use lifecycle of a patch
type PatchStatus string

const (
	PatchStatusPending  PatchStatus = "pending"
	PatchStatusApplied  PatchStatus = "applied"
	PatchStatusRejected PatchStatus = "rejected"
)

// LocationHint is a structural anchor guiding where a patch fragment is
// inserted. At most one of the fields is typically set.
type LocationHint struct {
	// Section is an XML-like tag name; insert before its closing tag
	Section string `db:"location_section" json:"section,omitempty"`

	// Function is a function name; insert before its closing brace
	Function string `db:"location_function" json:"function,omitempty"`

	// AfterLine is a literal/regex anchor; insert on the following line
	AfterLine string `db:"location_after_line" json:"after_line,omitempty"`
}

// Empty reports whether no hint was given
func (h LocationHint) Empty() bool {
	return h.Section == "" && h.Function == "" && h.AfterLine == ""
}

// String renders the hint for error messages
func (h LocationHint) String() string {
	switch {
	case h.Section != "":
		return "section=" + h.Section
	case h.Function != "":
		return "function=" + h.Function
	case h.AfterLine != "":
		return "after_line=" + h.AfterLine
	default:
		return ""
	}
}

// Patch is a proposed structural change produced by an external generator
// (LLM or operator) and consumed exactly once by the merger.
// Maps to: patch table
type Patch struct {
	PatchID  uuid.UUID `db:"patch_id" json:"patch_id"`
	TenantID string    `db:"tenant_id" json:"tenant_id"`
	Kind     PatchKind `db:"kind" json:"kind"`

	// Free text used to resolve the target artifact key
	TargetArtifactHint string `db:"target_artifact_hint" json:"target_artifact_hint"`

	ChangeDescription string `db:"change_description" json:"change_description"`

	// The fragment to merge in
	ChangeCode string `db:"change_code" json:"change_code"`

	Location LocationHint `json:"location,omitempty"`

	Status    PatchStatus `db:"status" json:"status"`
	CreatedAt time.Time   `db:"created_at" json:"created_at"`
	AppliedAt *time.Time  `db:"applied_at" json:"applied_at,omitempty"`
}

// IsPending reports whether the patch can still be applied
func (p *Patch) IsPending() bool {
	return p.Status == PatchStatusPending
}
