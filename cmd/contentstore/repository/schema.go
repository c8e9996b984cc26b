package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/mdwoicke/dentix-ortho-sub002/common/db"
)

// Schema DDL is idempotent so it can run on every startup via the
// bootstrap DB init hook.
const schemaDDL = `
CREATE TABLE IF NOT EXISTS working_copy (
	artifact_key  TEXT        NOT NULL,
	tenant_id     TEXT        NOT NULL,
	content       TEXT        NOT NULL,
	version       INTEGER     NOT NULL CHECK (version >= 1),
	last_patch_id UUID        NULL,
	updated_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (artifact_key, tenant_id)
);

CREATE TABLE IF NOT EXISTS version_history (
	artifact_key       TEXT        NOT NULL,
	tenant_id          TEXT        NOT NULL,
	version            INTEGER     NOT NULL CHECK (version >= 1),
	content            TEXT        NOT NULL,
	patch_id           UUID        NULL,
	change_description TEXT        NOT NULL DEFAULT '',
	created_at         TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (artifact_key, tenant_id, version)
);

CREATE TABLE IF NOT EXISTS deploy_event (
	event_id     UUID        PRIMARY KEY,
	artifact_key TEXT        NOT NULL,
	tenant_id    TEXT        NOT NULL,
	version      INTEGER     NOT NULL,
	kind         TEXT        NOT NULL,
	deployed_by  TEXT        NULL,
	notes        TEXT        NULL,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_deploy_event_artifact
	ON deploy_event (artifact_key, tenant_id, created_at DESC);

CREATE TABLE IF NOT EXISTS patch (
	patch_id             UUID        PRIMARY KEY,
	tenant_id            TEXT        NOT NULL,
	kind                 TEXT        NOT NULL,
	target_artifact_hint TEXT        NOT NULL DEFAULT '',
	change_description   TEXT        NOT NULL DEFAULT '',
	change_code          TEXT        NOT NULL,
	location_section     TEXT        NOT NULL DEFAULT '',
	location_function    TEXT        NOT NULL DEFAULT '',
	location_after_line  TEXT        NOT NULL DEFAULT '',
	status               TEXT        NOT NULL DEFAULT 'pending',
	created_at           TIMESTAMPTZ NOT NULL DEFAULT now(),
	applied_at           TIMESTAMPTZ NULL
);
`

// InitSchema creates the store tables. Safe to run on every startup.
func InitSchema(database *db.DB) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if _, err := database.Exec(ctx, schemaDDL); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	return nil
}
