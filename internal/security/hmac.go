package security

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Wire format of a machine-to-machine signed request:
//
//	Authorization: HMAC-SHA256 Credential=<prefix>/<yyyymmdd>, SignedHeaders=<h1;h2>, Signature=<hex>
//
// The string to sign is METHOD, PATH, DATE, the canonical rendering of the
// signed headers and the hex SHA-256 of the body, newline-joined. Parsing
// fails closed on any deviation from the grammar.

const HMACScheme = "HMAC-SHA256"

// TimestampHeader must itself be one of the signed headers when present;
// otherwise an attacker could replay a signature under a fresh timestamp.
const TimestampHeader = "x-timestamp"

var (
	ErrMalformedAuthorization = errors.New("malformed hmac authorization header")
	ErrUnsignedTimestamp      = errors.New("x-timestamp header present but not signed")
	ErrInvalidTimestamp       = errors.New("unparseable x-timestamp header")
	ErrExpiredSignature       = errors.New("signature outside freshness window")
	ErrSignatureMismatch      = errors.New("signature mismatch")
)

type HMACAuthorization struct {
	KeyPrefix      string
	CredentialDate string
	SignedHeaders  []string
	Signature      string
}

// ParseHMACAuthorization parses the Authorization header value. Any grammar
// deviation (wrong scheme, missing field, bad date, non-hex signature)
// returns ErrMalformedAuthorization.
func ParseHMACAuthorization(header string) (*HMACAuthorization, error) {
	rest, ok := strings.CutPrefix(strings.TrimSpace(header), HMACScheme+" ")
	if !ok {
		return nil, ErrMalformedAuthorization
	}

	parts := strings.Split(rest, ",")
	if len(parts) != 3 {
		return nil, ErrMalformedAuthorization
	}
	fields := make(map[string]string, 3)
	for _, part := range parts {
		name, value, found := strings.Cut(strings.TrimSpace(part), "=")
		if !found || value == "" {
			return nil, ErrMalformedAuthorization
		}
		if _, dup := fields[name]; dup {
			return nil, ErrMalformedAuthorization
		}
		fields[name] = value
	}

	credential, ok := fields["Credential"]
	if !ok {
		return nil, ErrMalformedAuthorization
	}
	prefix, date, found := strings.Cut(credential, "/")
	if !found || prefix == "" || !isCredentialDate(date) {
		return nil, ErrMalformedAuthorization
	}

	signedRaw, ok := fields["SignedHeaders"]
	if !ok {
		return nil, ErrMalformedAuthorization
	}
	var signed []string
	for _, h := range strings.Split(signedRaw, ";") {
		name := strings.ToLower(strings.TrimSpace(h))
		if name == "" {
			return nil, ErrMalformedAuthorization
		}
		signed = append(signed, name)
	}

	signature, ok := fields["Signature"]
	if !ok {
		return nil, ErrMalformedAuthorization
	}
	signature = strings.ToLower(signature)
	if len(signature) != sha256.Size*2 {
		return nil, ErrMalformedAuthorization
	}
	if _, err := hex.DecodeString(signature); err != nil {
		return nil, ErrMalformedAuthorization
	}

	return &HMACAuthorization{
		KeyPrefix:      prefix,
		CredentialDate: date,
		SignedHeaders:  signed,
		Signature:      signature,
	}, nil
}

func isCredentialDate(date string) bool {
	if len(date) != 8 {
		return false
	}
	for _, r := range date {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// StringToSign builds the canonical signing input. Only headers listed in
// signedHeaders enter the canonical form, in their given order, so transport
// level header reordering cannot change the signature.
func StringToSign(method, path, date string, signedHeaders []string, headerValue func(string) string, body []byte) string {
	bodyHash := sha256.Sum256(body)

	lines := make([]string, 0, len(signedHeaders))
	for _, name := range signedHeaders {
		lower := strings.ToLower(name)
		lines = append(lines, lower+":"+strings.TrimSpace(headerValue(lower)))
	}

	return strings.Join([]string{
		strings.ToUpper(method),
		path,
		date,
		strings.Join(lines, "\n"),
		hex.EncodeToString(bodyHash[:]),
	}, "\n")
}

// SignHMAC computes the hex HMAC-SHA256 signature over stringToSign.
func SignHMAC(secret, stringToSign string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(stringToSign))
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature recomputes the signature and compares it in constant time.
func VerifySignature(secret, stringToSign, presented string) error {
	expected := SignHMAC(secret, stringToSign)
	if !hmac.Equal([]byte(expected), []byte(strings.ToLower(presented))) {
		return ErrSignatureMismatch
	}
	return nil
}

// CheckStrictTimestamp enforces the strict freshness mode: the presented
// x-timestamp (RFC 3339 or unix seconds) must be within maxSkew of now.
func CheckStrictTimestamp(raw string, now time.Time, maxSkew time.Duration) error {
	ts, err := parseTimestamp(strings.TrimSpace(raw))
	if err != nil {
		return ErrInvalidTimestamp
	}
	delta := now.Sub(ts)
	if delta < 0 {
		delta = -delta
	}
	if delta > maxSkew {
		return ErrExpiredSignature
	}
	return nil
}

func parseTimestamp(raw string) (time.Time, error) {
	if ts, err := time.Parse(time.RFC3339, raw); err == nil {
		return ts, nil
	}
	secs, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q", raw)
	}
	return time.Unix(secs, 0), nil
}

// CheckLegacyDate enforces the legacy freshness mode: the 8-digit date baked
// into the credential must be the server-local calendar date, plus or minus
// one day.
func CheckLegacyDate(credentialDate string, now time.Time) error {
	for _, offset := range []int{-1, 0, 1} {
		if credentialDate == now.AddDate(0, 0, offset).Format("20060102") {
			return nil
		}
	}
	return ErrExpiredSignature
}
