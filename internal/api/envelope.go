package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrUnexpectedShape is returned when a payload does not match the schema a
// caller asked for.
var ErrUnexpectedShape = errors.New("unexpected response shape")

// Envelope is the backend's response wrapper: {success, data?, error?}.
type Envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data,omitempty"`
	Error   *EnvelopeError  `json:"error,omitempty"`
	Message string          `json:"message,omitempty"`
}

// EnvelopeError is the error member of an envelope. Some handlers send a bare
// string instead of an object; both decode here.
type EnvelopeError struct {
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
}

func (e *EnvelopeError) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		e.Message = s
		return nil
	}
	type plain EnvelopeError
	var p plain
	if err := json.Unmarshal(b, &p); err != nil {
		return fmt.Errorf("%w: error member: %v", ErrUnexpectedShape, err)
	}
	*e = EnvelopeError(p)
	return nil
}

// decodeEnvelope parses a response body. Blank bodies yield nil. Anything that
// is not a JSON object is rejected.
func decodeEnvelope(body []byte) (*Envelope, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil, nil
	}
	if trimmed[0] != '{' {
		return nil, fmt.Errorf("%w: body is not a JSON object", ErrUnexpectedShape)
	}
	var env Envelope
	if err := json.Unmarshal(trimmed, &env); err != nil {
		return nil, fmt.Errorf("malformed response body: %w", err)
	}
	return &env, nil
}

// ErrorMessage returns the most specific message the envelope carries.
func (e *Envelope) ErrorMessage() string {
	if e == nil {
		return ""
	}
	if e.Error != nil && e.Error.Message != "" {
		return e.Error.Message
	}
	return e.Message
}

// ErrorCode returns error.code, or "".
func (e *Envelope) ErrorCode() string {
	if e == nil || e.Error == nil {
		return ""
	}
	return e.Error.Code
}

// DecodeData unmarshals data into v.
func (e *Envelope) DecodeData(v any) error {
	if e == nil || len(e.Data) == 0 || string(e.Data) == "null" {
		return fmt.Errorf("%w: no data", ErrUnexpectedShape)
	}
	if err := json.Unmarshal(e.Data, v); err != nil {
		return fmt.Errorf("%w: %v", ErrUnexpectedShape, err)
	}
	return nil
}

type recordRef struct {
	ID json.RawMessage `json:"id"`
}

// RecordID extracts data.id. data must be an object whose id is a non-empty
// string or a number; nested or list payloads are rejected.
func (e *Envelope) RecordID() (string, error) {
	if e == nil {
		return "", fmt.Errorf("%w: no payload", ErrUnexpectedShape)
	}
	data := bytes.TrimSpace(e.Data)
	if len(data) == 0 || data[0] != '{' {
		return "", fmt.Errorf("%w: data is not an object", ErrUnexpectedShape)
	}
	var ref recordRef
	if err := json.Unmarshal(data, &ref); err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnexpectedShape, err)
	}
	if len(ref.ID) == 0 {
		return "", fmt.Errorf("%w: data.id missing", ErrUnexpectedShape)
	}
	var s string
	if err := json.Unmarshal(ref.ID, &s); err == nil {
		if s == "" {
			return "", fmt.Errorf("%w: data.id empty", ErrUnexpectedShape)
		}
		return s, nil
	}
	var n json.Number
	if err := json.Unmarshal(ref.ID, &n); err == nil {
		return n.String(), nil
	}
	return "", fmt.Errorf("%w: data.id is neither string nor number", ErrUnexpectedShape)
}
