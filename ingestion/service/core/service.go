package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"mime"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"tdp/internal/messaging"
	"tdp/internal/messaging/producer"
	"tdp/internal/models"
)

// Client-visible failure reasons
const (
	ReasonInvalidJSON     = "Invalid JSON payload"
	ReasonTenantRequired  = "tenant_id required in JSON payload"
	ReasonLogIDNotString  = "log_id must be a string"
	ReasonTenantHeader    = "X-Tenant-ID header required for text/plain"
	ReasonInvalidUTF8     = "text/plain body must be valid UTF-8"
	ReasonUnsupportedType = "Unsupported content type. Use application/json or text/plain"
	ReasonMissingFields   = "Missing required fields"
	ReasonQueueFailed     = "Failed to queue message for processing"
	ReasonInternalError   = "Internal server error"
)

const (
	defaultPublishTimeout = 5 * time.Second
	mediaTypeJSON         = "application/json"
	mediaTypeText         = "text/plain"
)

// IngestRequest is the transport-neutral view of one upload
type IngestRequest struct {
	ContentType  string
	TenantHeader string // X-Tenant-ID
	Body         []byte
}

// Accepted is returned once the broker has confirmed the envelope
type Accepted struct {
	TenantID   string
	LogID      string
	MessageID  string
	Source     models.Source
	IngestedAt time.Time
}

// IngestError carries the HTTP status and client-visible reason of a rejected upload
type IngestError struct {
	Status int
	Reason string
	Err    error
}

func (e *IngestError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%d %s: %v", e.Status, e.Reason, e.Err)
	}
	return fmt.Sprintf("%d %s", e.Status, e.Reason)
}

func (e *IngestError) Unwrap() error { return e.Err }

func reject(status int, reason string, err error) *IngestError {
	return &IngestError{Status: status, Reason: reason, Err: err}
}

// StatusOf maps an Ingest error to its HTTP status; unknown errors are 500
func StatusOf(err error) int {
	var ie *IngestError
	if errors.As(err, &ie) {
		return ie.Status
	}
	return http.StatusInternalServerError
}

// Service encapsulates the core business logic of the ingestion gateway
type Service struct {
	producer       producer.Producer
	logger         *log.Logger
	publishTimeout time.Duration
	now            func() time.Time
}

// NewService creates a new Service instance
func NewService(p producer.Producer, l *log.Logger, publishTimeout time.Duration) *Service {
	if publishTimeout <= 0 {
		publishTimeout = defaultPublishTimeout
	}
	return &Service{
		producer:       p,
		logger:         l,
		publishTimeout: publishTimeout,
		now:            time.Now,
	}
}

// Ingest normalizes an upload into an Envelope and publishes it.
// It only returns Accepted after the broker confirmed the publish.
func (s *Service) Ingest(ctx context.Context, req IngestRequest) (*Accepted, error) {
	mediaType, _, err := mime.ParseMediaType(req.ContentType)
	if err != nil {
		return nil, reject(http.StatusUnsupportedMediaType, ReasonUnsupportedType, err)
	}

	var (
		tenantID, logID, text string
		source                models.Source
	)
	switch mediaType {
	case mediaTypeJSON:
		tenantID, logID, text, err = normalizeJSON(req.Body)
		if err != nil {
			return nil, err
		}
		source = models.SourceJSONUpload
	case mediaTypeText:
		tenantID = strings.TrimSpace(req.TenantHeader)
		if tenantID == "" {
			return nil, reject(http.StatusBadRequest, ReasonTenantHeader, nil)
		}
		if !utf8.Valid(req.Body) {
			return nil, reject(http.StatusBadRequest, ReasonInvalidUTF8, nil)
		}
		text = string(req.Body)
		source = models.SourceTextUpload
	default:
		return nil, reject(http.StatusUnsupportedMediaType, ReasonUnsupportedType, nil)
	}

	env, err := models.NewEnvelope(tenantID, logID, text, source, s.now())
	if err != nil {
		return nil, reject(http.StatusBadRequest, ReasonMissingFields, err)
	}
	data, err := models.EncodeEnvelope(env)
	if err != nil {
		return nil, reject(http.StatusInternalServerError, ReasonInternalError, err)
	}

	pubCtx, cancel := context.WithTimeout(ctx, s.publishTimeout)
	defer cancel()
	messageID, err := s.producer.Publish(pubCtx, &messaging.Message{
		Key:  env.TenantID,
		Data: data,
		Attributes: map[string]string{
			messaging.AttrTenantID: env.TenantID,
			messaging.AttrSource:   string(env.Source),
		},
	})
	if err != nil {
		s.logger.Printf("Service: Publish failed for tenant %s, log_id %s: %v", env.TenantID, env.LogID, err)
		return nil, reject(http.StatusInternalServerError, ReasonQueueFailed, err)
	}

	s.logger.Printf("Service: Published message %s for tenant %s (log_id %s, %s, %d bytes)",
		messageID, env.TenantID, env.LogID, env.Source, len(data))
	return &Accepted{
		TenantID:   env.TenantID,
		LogID:      env.LogID,
		MessageID:  messageID,
		Source:     env.Source,
		IngestedAt: env.IngestedAt,
	}, nil
}

// normalizeJSON extracts tenant_id, log_id and the text to process.
// A string "text" field is used verbatim; otherwise the whole payload is
// rendered as canonical JSON with sorted keys.
func normalizeJSON(body []byte) (tenantID, logID, text string, err error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()

	var payload map[string]interface{}
	if err := dec.Decode(&payload); err != nil {
		return "", "", "", reject(http.StatusBadRequest, ReasonInvalidJSON, err)
	}
	if payload == nil {
		return "", "", "", reject(http.StatusBadRequest, ReasonInvalidJSON, nil)
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return "", "", "", reject(http.StatusBadRequest, ReasonInvalidJSON, errors.New("trailing data after JSON object"))
	}

	tenantID, _ = payload["tenant_id"].(string)
	if strings.TrimSpace(tenantID) == "" {
		return "", "", "", reject(http.StatusBadRequest, ReasonTenantRequired, nil)
	}

	switch v := payload["log_id"].(type) {
	case nil:
	case string:
		logID = v
	default:
		return "", "", "", reject(http.StatusBadRequest, ReasonLogIDNotString, nil)
	}

	raw, hasText := payload["text"]
	switch v := raw.(type) {
	case string:
		text = v
	case nil:
		if hasText {
			return tenantID, logID, "", nil
		}
		text, err = canonicalJSON(payload)
	default:
		text, err = canonicalJSON(v)
	}
	if err != nil {
		return "", "", "", reject(http.StatusBadRequest, ReasonInvalidJSON, err)
	}
	return tenantID, logID, text, nil
}

// canonicalJSON relies on encoding/json writing map keys in sorted order
func canonicalJSON(v interface{}) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return "", err
	}
	return strings.TrimSuffix(buf.String(), "\n"), nil
}
