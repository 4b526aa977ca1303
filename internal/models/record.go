package models

import "time"

// ProcessedRecord is the document stored per (tenant_id, log_id)
type ProcessedRecord struct {
	Source                Source    `json:"source"`
	OriginalText          string    `json:"original_text"`
	ModifiedData          string    `json:"modified_data"`
	IngestedAt            time.Time `json:"ingested_at"`
	ProcessedAt           time.Time `json:"processed_at"`
	CharacterCount        int       `json:"character_count"`
	ProcessingTimeSeconds float64   `json:"processing_time_seconds"`
	DeliveryAttempt       int       `json:"delivery_attempt"`
}
