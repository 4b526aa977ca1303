package models

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Source identifies which request shape produced an Envelope
type Source string

const (
	SourceJSONUpload Source = "json_upload"
	SourceTextUpload Source = "text_upload"
)

// Valid reports whether s is one of the known sources
func (s Source) Valid() bool {
	return s == SourceJSONUpload || s == SourceTextUpload
}

// Envelope is the unit of work passed from the ingestion gateway to the worker
// Constructed by the gateway only, see NewEnvelope
type Envelope struct {
	TenantID   string    `json:"tenant_id"`
	LogID      string    `json:"log_id"`
	Text       string    `json:"text"`
	Source     Source    `json:"source"`
	IngestedAt time.Time `json:"ingested_at"`
}

var (
	ErrMissingTenant = errors.New("tenant_id is required")
	ErrMissingText   = errors.New("text is required")
	ErrInvalidSource = errors.New("unknown source")
)

// NewEnvelope builds an Envelope, generating a log id when logID is empty
func NewEnvelope(tenantID, logID, text string, source Source, ingestedAt time.Time) (*Envelope, error) {
	if strings.TrimSpace(tenantID) == "" {
		return nil, ErrMissingTenant
	}
	if text == "" {
		return nil, ErrMissingText
	}
	if !source.Valid() {
		return nil, ErrInvalidSource
	}
	if logID == "" {
		logID = uuid.NewString()
	}
	return &Envelope{
		TenantID:   tenantID,
		LogID:      logID,
		Text:       text,
		Source:     source,
		IngestedAt: ingestedAt.UTC(),
	}, nil
}
