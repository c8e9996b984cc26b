package models

// ArtifactKind represents the type of artifact
type ArtifactKind string

const (
	KindPromptText     ArtifactKind = "prompt-text"
	KindJSONTool       ArtifactKind = "json-tool"
	KindJavaScriptTool ArtifactKind = "javascript-tool"
	KindFlowJSON       ArtifactKind = "flow-json"
)

// IsCode reports whether the artifact holds executable source. Code
// artifacts must never pass through the brace escaper.
func (k ArtifactKind) IsCode() bool {
	return k == KindJavaScriptTool
}

// IsTemplate reports whether the artifact is consumed by the template
// engine and therefore needs brace escaping.
func (k ArtifactKind) IsTemplate() bool {
	return k == KindPromptText
}

// Artifact describes a tenant-scoped document under version control.
// Identity is (ArtifactKey, TenantID). The mapping from key to source path
// is fixed configuration per tenant, not user-editable data.
type Artifact struct {
	ArtifactKey string       `db:"artifact_key" json:"artifact_key" yaml:"key"`
	TenantID    string       `db:"tenant_id" json:"tenant_id" yaml:"-"`
	Kind        ArtifactKind `db:"kind" json:"kind" yaml:"kind"`

	// On-disk canonical location, relative to the tenant root
	SourcePath string `db:"source_path" json:"source_path" yaml:"source"`

	DisplayName string `db:"display_name" json:"display_name" yaml:"display_name"`
}

// ValidationResult is transient, never persisted. Warnings never block a
// commit; they are surfaced on the successful result.
type ValidationResult struct {
	Valid    bool     `json:"valid"`
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
}

// AddError appends an error and marks the result invalid
func (r *ValidationResult) AddError(msg string) {
	r.Valid = false
	r.Errors = append(r.Errors, msg)
}

// AddWarning appends a non-fatal warning
func (r *ValidationResult) AddWarning(msg string) {
	r.Warnings = append(r.Warnings, msg)
}
