package models

import "github.com/google/uuid"

// CommitRequest carries everything one atomic commit writes: the new head,
// the immutable version record, the correlation event, and optionally the
// patch to retire. BaseVersion is the head version the caller read before
// building the candidate content; 0 means the artifact is being created.
type CommitRequest struct {
	BaseVersion int

	WorkingCopy *WorkingCopy
	Record      *VersionRecord
	Event       *DeployEvent

	// When set, the patch is flipped to applied in the same transaction
	MarkPatchApplied *uuid.UUID
}
