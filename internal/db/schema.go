package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

// schema is the full DDL, idempotent so Migrate can run on every
// startup. JSONB columns hold vector clocks, custom fields, snapshots,
// and metadata; GIN indexes over tags and vector_clock support tag
// search and clock aggregation.
const schema = `
CREATE TABLE IF NOT EXISTS organizations (
    id               UUID PRIMARY KEY,
    name             TEXT NOT NULL,
    slug             TEXT NOT NULL UNIQUE,
    settings         JSONB NOT NULL DEFAULT '{}',
    storage_quota_mb BIGINT NOT NULL DEFAULT 10240,
    storage_used_mb  BIGINT NOT NULL DEFAULT 0,
    created_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
    updated_at       TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS users (
    id              UUID PRIMARY KEY,
    organization_id UUID NOT NULL REFERENCES organizations(id) ON DELETE CASCADE,
    email           TEXT NOT NULL,
    name            TEXT NOT NULL DEFAULT '',
    password_hash   TEXT NOT NULL,
    role            TEXT NOT NULL DEFAULT 'member'
                    CHECK (role IN ('admin', 'manager', 'member')),
    is_active       BOOLEAN NOT NULL DEFAULT TRUE,
    created_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
    updated_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
    deleted_at      TIMESTAMPTZ
);

CREATE UNIQUE INDEX IF NOT EXISTS users_org_email_live
    ON users (organization_id, email) WHERE deleted_at IS NULL;

CREATE TABLE IF NOT EXISTS devices (
    id           UUID PRIMARY KEY,
    user_id      UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
    fingerprint  TEXT NOT NULL,
    name         TEXT NOT NULL DEFAULT '',
    vector_clock JSONB NOT NULL DEFAULT '{}',
    last_sync_at TIMESTAMPTZ,
    is_active    BOOLEAN NOT NULL DEFAULT TRUE,
    created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
    updated_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
    UNIQUE (user_id, fingerprint)
);

CREATE TABLE IF NOT EXISTS projects (
    id              UUID PRIMARY KEY,
    organization_id UUID NOT NULL REFERENCES organizations(id) ON DELETE CASCADE,
    name            TEXT NOT NULL,
    description     TEXT NOT NULL DEFAULT '',
    is_archived     BOOLEAN NOT NULL DEFAULT FALSE,
    created_by      UUID NOT NULL REFERENCES users(id),
    created_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
    updated_at      TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS tasks (
    id                   UUID PRIMARY KEY,
    organization_id      UUID NOT NULL REFERENCES organizations(id) ON DELETE CASCADE,
    project_id           UUID REFERENCES projects(id) ON DELETE SET NULL,
    title                TEXT NOT NULL,
    description          TEXT NOT NULL DEFAULT '',
    status               TEXT NOT NULL DEFAULT 'todo'
                         CHECK (status IN ('todo', 'in_progress', 'blocked', 'done', 'cancelled')),
    priority             TEXT NOT NULL DEFAULT 'medium'
                         CHECK (priority IN ('low', 'medium', 'high', 'urgent')),
    due_date             TIMESTAMPTZ,
    completed_at         TIMESTAMPTZ,
    position             NUMERIC(20,10) NOT NULL DEFAULT 1000,
    created_by           UUID NOT NULL REFERENCES users(id),
    assigned_to          UUID REFERENCES users(id) ON DELETE SET NULL,
    tags                 TEXT[] NOT NULL DEFAULT '{}',
    custom_fields        JSONB NOT NULL DEFAULT '{}',
    version              INTEGER NOT NULL DEFAULT 1 CHECK (version >= 1),
    vector_clock         JSONB NOT NULL DEFAULT '{}',
    last_modified_by     UUID REFERENCES users(id) ON DELETE SET NULL,
    last_modified_device UUID REFERENCES devices(id) ON DELETE SET NULL,
    checksum             TEXT NOT NULL DEFAULT '',
    created_at           TIMESTAMPTZ NOT NULL DEFAULT now(),
    updated_at           TIMESTAMPTZ NOT NULL DEFAULT now(),
    deleted_at           TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS tasks_org_updated ON tasks (organization_id, updated_at);
CREATE INDEX IF NOT EXISTS tasks_org_status ON tasks (organization_id, status) WHERE deleted_at IS NULL;
CREATE INDEX IF NOT EXISTS tasks_assigned ON tasks (assigned_to) WHERE deleted_at IS NULL;
CREATE INDEX IF NOT EXISTS tasks_tags_gin ON tasks USING GIN (tags);
CREATE INDEX IF NOT EXISTS tasks_vclock_gin ON tasks USING GIN (vector_clock);

CREATE TABLE IF NOT EXISTS comments (
    id                   UUID PRIMARY KEY,
    task_id              UUID NOT NULL REFERENCES tasks(id) ON DELETE CASCADE,
    author_id            UUID NOT NULL REFERENCES users(id),
    parent_id            UUID REFERENCES comments(id) ON DELETE SET NULL,
    content              TEXT NOT NULL,
    edited               BOOLEAN NOT NULL DEFAULT FALSE,
    version              INTEGER NOT NULL DEFAULT 1 CHECK (version >= 1),
    vector_clock         JSONB NOT NULL DEFAULT '{}',
    last_modified_by     UUID REFERENCES users(id) ON DELETE SET NULL,
    last_modified_device UUID REFERENCES devices(id) ON DELETE SET NULL,
    created_at           TIMESTAMPTZ NOT NULL DEFAULT now(),
    updated_at           TIMESTAMPTZ NOT NULL DEFAULT now(),
    deleted_at           TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS comments_task_updated ON comments (task_id, updated_at);
CREATE INDEX IF NOT EXISTS comments_vclock_gin ON comments USING GIN (vector_clock);

CREATE TABLE IF NOT EXISTS tombstones (
    id                  UUID PRIMARY KEY,
    entity_type         TEXT NOT NULL CHECK (entity_type IN ('task', 'comment', 'attachment')),
    entity_id           UUID NOT NULL,
    organization_id     UUID NOT NULL REFERENCES organizations(id) ON DELETE CASCADE,
    deleted_by          UUID NOT NULL REFERENCES users(id),
    deleted_from_device UUID REFERENCES devices(id) ON DELETE SET NULL,
    vector_clock        JSONB NOT NULL DEFAULT '{}',
    entity_snapshot     JSONB NOT NULL DEFAULT '{}',
    created_at          TIMESTAMPTZ NOT NULL DEFAULT now(),
    expires_at          TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS tombstones_entity ON tombstones (entity_type, entity_id);
CREATE INDEX IF NOT EXISTS tombstones_org_created ON tombstones (organization_id, created_at);
CREATE INDEX IF NOT EXISTS tombstones_expires ON tombstones (expires_at);

CREATE TABLE IF NOT EXISTS conflicts (
    id                  UUID PRIMARY KEY,
    entity_type         TEXT NOT NULL CHECK (entity_type IN ('task', 'comment', 'attachment')),
    entity_id           UUID NOT NULL,
    user_id             UUID NOT NULL REFERENCES users(id),
    device_id           UUID REFERENCES devices(id) ON DELETE SET NULL,
    local_version       JSONB NOT NULL DEFAULT '{}',
    server_version      JSONB NOT NULL DEFAULT '{}',
    local_vector_clock  JSONB NOT NULL DEFAULT '{}',
    server_vector_clock JSONB NOT NULL DEFAULT '{}',
    conflict_reason     TEXT NOT NULL DEFAULT '',
    resolution_strategy TEXT CHECK (resolution_strategy IN
                        ('manual', 'auto_merge', 'local_wins', 'server_wins', 'auto_resolved')),
    resolved_version    JSONB,
    resolved_by         UUID REFERENCES users(id),
    created_at          TIMESTAMPTZ NOT NULL DEFAULT now(),
    resolved_at         TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS conflicts_entity ON conflicts (entity_type, entity_id);
CREATE INDEX IF NOT EXISTS conflicts_user_open ON conflicts (user_id, created_at) WHERE resolved_at IS NULL;

CREATE TABLE IF NOT EXISTS sync_logs (
    id                 UUID PRIMARY KEY,
    user_id            UUID NOT NULL REFERENCES users(id),
    device_id          UUID REFERENCES devices(id) ON DELETE SET NULL,
    sync_type          TEXT NOT NULL CHECK (sync_type IN ('push', 'pull', 'conflict')),
    entities_pushed    INTEGER NOT NULL DEFAULT 0 CHECK (entities_pushed >= 0),
    entities_pulled    INTEGER NOT NULL DEFAULT 0 CHECK (entities_pulled >= 0),
    conflicts_detected INTEGER NOT NULL DEFAULT 0 CHECK (conflicts_detected >= 0),
    conflicts_resolved INTEGER NOT NULL DEFAULT 0 CHECK (conflicts_resolved >= 0),
    duration_ms        BIGINT,
    status             TEXT CHECK (status IN ('success', 'partial', 'failed')),
    error_message      TEXT NOT NULL DEFAULT '',
    metadata           JSONB NOT NULL DEFAULT '{}',
    created_at         TIMESTAMPTZ NOT NULL DEFAULT now(),
    completed_at       TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS sync_logs_created ON sync_logs (created_at);
CREATE INDEX IF NOT EXISTS sync_logs_status_created ON sync_logs (status, created_at);

CREATE TABLE IF NOT EXISTS task_history (
    id             UUID PRIMARY KEY,
    task_id        UUID NOT NULL REFERENCES tasks(id) ON DELETE CASCADE,
    user_id        UUID NOT NULL REFERENCES users(id),
    device_id      UUID REFERENCES devices(id) ON DELETE SET NULL,
    change_type    TEXT NOT NULL CHECK (change_type IN ('created', 'updated', 'deleted', 'restored')),
    changes        JSONB NOT NULL DEFAULT '{}',
    previous_state JSONB,
    vector_clock   JSONB NOT NULL DEFAULT '{}',
    created_at     TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS task_history_task_created ON task_history (task_id, created_at);
`

// Migrate applies the schema. Exec carries no parameters so pgx sends
// it over the simple protocol, which permits a multi-statement script.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	log.Debug().Msg("schema migration applied")
	return nil
}
