package postgres

// Schema is the authoritative DDL for the service. The seed command applies
// it on deploy; integration tests apply it against a throwaway container.
const Schema = `
CREATE TABLE IF NOT EXISTS entries (
	id TEXT PRIMARY KEY,
	owner_id TEXT NOT NULL,
	status TEXT NOT NULL,
	is_local_job BOOLEAN NOT NULL DEFAULT FALSE,
	job_id TEXT NOT NULL DEFAULT '',
	processing_started_at TIMESTAMPTZ,
	final_video_url TEXT NOT NULL DEFAULT '',
	progress_percentage INT,
	progress_details JSONB,
	workflow_id TEXT NOT NULL DEFAULT '',
	iteration_steps INT NOT NULL DEFAULT 0,
	video_duration INT NOT NULL DEFAULT 0,
	video_resolution TEXT NOT NULL DEFAULT '',
	lora_weights TEXT NOT NULL DEFAULT '',
	seed BIGINT NOT NULL DEFAULT 0,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_entries_owner_created ON entries (owner_id, created_at);
CREATE INDEX IF NOT EXISTS idx_entries_local_waiting ON entries (created_at, id)
	WHERE is_local_job AND status IN ('uploaded', 'in_queue');

CREATE TABLE IF NOT EXISTS admin_settings (
	id INT PRIMARY KEY CHECK (id = 1),
	quota_per_day JSONB NOT NULL,
	max_concurrent_jobs INT NOT NULL,
	max_queue_threshold INT NOT NULL,
	local_queue_threshold INT NOT NULL,
	free_queue_limit INT NOT NULL,
	free_wait_minutes INT NOT NULL,
	paid_wait_minutes INT NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);`
