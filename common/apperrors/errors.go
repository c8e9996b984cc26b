package apperrors

import (
	"fmt"
	"strings"
)

// NotFoundError indicates an unknown artifact key, tenant, version, or patch.
type NotFoundError struct {
	Resource string // "artifact", "version", "patch", "tenant"
	Key      string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.Key)
}

// NewNotFound creates a NotFoundError
func NewNotFound(resource, key string) *NotFoundError {
	return &NotFoundError{Resource: resource, Key: key}
}

// ValidationError indicates structural validation failed.
// The candidate content must be discarded; no version is created.
type ValidationError struct {
	ArtifactKey string
	Errors      []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed for %s: %s", e.ArtifactKey, strings.Join(e.Errors, "; "))
}

// NewValidation creates a ValidationError
func NewValidation(artifactKey string, errs []string) *ValidationError {
	return &ValidationError{ArtifactKey: artifactKey, Errors: errs}
}

// NoSafeInsertionPointError indicates the merger exhausted all strategies.
// Target and Hint are included so the caller can supply a better hint.
type NoSafeInsertionPointError struct {
	Target string
	Hint   string
}

func (e *NoSafeInsertionPointError) Error() string {
	if e.Hint != "" {
		return fmt.Sprintf("no safe insertion point for %q (hint: %s)", e.Target, e.Hint)
	}
	return fmt.Sprintf("no safe insertion point for %q (no location hint given)", e.Target)
}

// ArtifactReadError indicates the seed file could not be read on first access.
type ArtifactReadError struct {
	SourcePath string
	Err        error
}

func (e *ArtifactReadError) Error() string {
	return fmt.Sprintf("failed to read artifact source %s: %v", e.SourcePath, e.Err)
}

func (e *ArtifactReadError) Unwrap() error {
	return e.Err
}

// VersionConflictError indicates the stored head moved past the caller's
// base version between read and commit.
type VersionConflictError struct {
	ArtifactKey string
	BaseVersion int
	HeadVersion int
}

func (e *VersionConflictError) Error() string {
	return fmt.Sprintf("version conflict on %s: base %d, head is now %d", e.ArtifactKey, e.BaseVersion, e.HeadVersion)
}

// PatchStateError indicates a patch is not in the state the operation requires,
// e.g. applying a patch that was already applied or rejected.
type PatchStateError struct {
	PatchID string
	Status  string
}

func (e *PatchStateError) Error() string {
	return fmt.Sprintf("patch %s is %s, expected pending", e.PatchID, e.Status)
}
