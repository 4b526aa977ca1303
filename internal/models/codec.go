package models

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrMalformedEnvelope is returned by DecodeEnvelope for unusable payloads
var ErrMalformedEnvelope = errors.New("malformed envelope")

// EncodeEnvelope serializes an envelope for the queue
func EncodeEnvelope(env *Envelope) ([]byte, error) {
	if env == nil {
		return nil, fmt.Errorf("%w: nil envelope", ErrMalformedEnvelope)
	}
	data, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize envelope (log_id: %s): %w", env.LogID, err)
	}
	return data, nil
}

// DecodeEnvelope is the inverse of EncodeEnvelope
// Every failure matches errors.Is(err, ErrMalformedEnvelope)
func DecodeEnvelope(data []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEnvelope, err)
	}

	switch {
	case env.TenantID == "":
		return nil, fmt.Errorf("%w: missing tenant_id", ErrMalformedEnvelope)
	case env.LogID == "":
		return nil, fmt.Errorf("%w: missing log_id", ErrMalformedEnvelope)
	case env.Text == "":
		return nil, fmt.Errorf("%w: missing text", ErrMalformedEnvelope)
	case !env.Source.Valid():
		return nil, fmt.Errorf("%w: unknown source %q", ErrMalformedEnvelope, env.Source)
	}
	return &env, nil
}
