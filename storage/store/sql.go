package store

import "strings"

// sqlText replaces NUL, which Postgres TEXT cannot hold, with U+FFFD
func sqlText(s string) string {
	if strings.IndexByte(s, 0) < 0 {
		return s
	}
	return strings.ReplaceAll(s, "\x00", "\uFFFD")
}

// Both SQL backends share one table layout and accept $n placeholders.
const (
	upsertProcessedLogSQL = `
INSERT INTO processed_logs (
    tenant_id, log_id, source, original_text, modified_data,
    ingested_at, processed_at, character_count, processing_time_seconds, delivery_attempt
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
ON CONFLICT (tenant_id, log_id) DO UPDATE SET
    source = excluded.source,
    original_text = excluded.original_text,
    modified_data = excluded.modified_data,
    ingested_at = excluded.ingested_at,
    processed_at = excluded.processed_at,
    character_count = excluded.character_count,
    processing_time_seconds = excluded.processing_time_seconds,
    delivery_attempt = excluded.delivery_attempt`

	selectProcessedLogSQL = `
SELECT source, original_text, modified_data, ingested_at, processed_at,
       character_count, processing_time_seconds, delivery_attempt
FROM processed_logs
WHERE tenant_id = $1 AND log_id = $2`
)

const postgresSchemaSQL = `
CREATE TABLE IF NOT EXISTS processed_logs (
    tenant_id               TEXT             NOT NULL,
    log_id                  TEXT             NOT NULL,
    source                  TEXT             NOT NULL,
    original_text           TEXT             NOT NULL,
    modified_data           TEXT             NOT NULL,
    ingested_at             TIMESTAMPTZ      NOT NULL,
    processed_at            TIMESTAMPTZ      NOT NULL,
    character_count         INTEGER          NOT NULL,
    processing_time_seconds DOUBLE PRECISION NOT NULL,
    delivery_attempt        INTEGER          NOT NULL,
    PRIMARY KEY (tenant_id, log_id)
)`

// DuckDB stores plain TIMESTAMP; records are always written in UTC
const duckdbSchemaSQL = `
CREATE TABLE IF NOT EXISTS processed_logs (
    tenant_id               VARCHAR   NOT NULL,
    log_id                  VARCHAR   NOT NULL,
    source                  VARCHAR   NOT NULL,
    original_text           VARCHAR   NOT NULL,
    modified_data           VARCHAR   NOT NULL,
    ingested_at             TIMESTAMP NOT NULL,
    processed_at            TIMESTAMP NOT NULL,
    character_count         INTEGER   NOT NULL,
    processing_time_seconds DOUBLE    NOT NULL,
    delivery_attempt        INTEGER   NOT NULL,
    PRIMARY KEY (tenant_id, log_id)
)`
