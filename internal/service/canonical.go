package service

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// CanonicalJSON re-renders a payload with object keys in sorted order at
// every nesting depth, so semantically identical payloads serialize
// identically regardless of the key order they arrived with. Numbers are
// decoded as json.Number and re-emitted verbatim: the canonical form never
// alters a literal the connector submitted.
func CanonicalJSON(payload json.RawMessage) ([]byte, error) {
	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.UseNumber()

	var v interface{}
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("canonicalize payload: %w", err)
	}
	if dec.More() {
		return nil, fmt.Errorf("canonicalize payload: trailing data after value")
	}
	out, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("canonicalize payload: %w", err)
	}
	return out, nil
}

// ComputeDataHash is the content address of a record: a pure function of
// the tenant and the canonical payload. No I/O.
func ComputeDataHash(tenantID string, payload json.RawMessage) (string, error) {
	canonical, err := CanonicalJSON(payload)
	if err != nil {
		return "", err
	}
	h := sha256.New()
	h.Write([]byte(tenantID))
	h.Write([]byte{'\n'})
	h.Write(canonical)
	return hex.EncodeToString(h.Sum(nil)), nil
}
