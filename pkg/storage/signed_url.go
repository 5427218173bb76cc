package storage

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// SignedURLSigner creates and validates download tokens for locally stored files.
type SignedURLSigner struct {
	secret []byte
	ttl    time.Duration
}

// NewSignedURLSigner constructs a signer with the provided secret and TTL.
func NewSignedURLSigner(secret string, ttl time.Duration) *SignedURLSigner {
	if ttl <= 0 {
		ttl = 30 * 24 * time.Hour
	}
	return &SignedURLSigner{
		secret: []byte(secret),
		ttl:    ttl,
	}
}

// Generate returns a token of the form expiry.path.signature for relPath.
func (s *SignedURLSigner) Generate(relPath string) (string, time.Time, error) {
	if relPath == "" {
		return "", time.Time{}, fmt.Errorf("relPath required")
	}
	if len(s.secret) == 0 {
		return "", time.Time{}, fmt.Errorf("signing secret missing")
	}
	expiresAt := time.Now().Add(s.ttl)
	ts := strconv.FormatInt(expiresAt.Unix(), 10)
	encodedPath := base64.RawURLEncoding.EncodeToString([]byte(relPath))
	token := strings.Join([]string{ts, encodedPath, s.sign(ts, encodedPath)}, ".")
	return token, expiresAt, nil
}

// Parse validates a token and returns the embedded path.
func (s *SignedURLSigner) Parse(token string) (string, time.Time, error) {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return "", time.Time{}, fmt.Errorf("invalid token format")
	}
	ts, encodedPath, signature := parts[0], parts[1], parts[2]

	expUnix, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("invalid timestamp")
	}
	if !hmac.Equal([]byte(s.sign(ts, encodedPath)), []byte(signature)) {
		return "", time.Time{}, fmt.Errorf("invalid token signature")
	}
	expiresAt := time.Unix(expUnix, 0)
	if time.Now().After(expiresAt) {
		return "", time.Time{}, fmt.Errorf("token expired")
	}
	rawPath, err := base64.RawURLEncoding.DecodeString(encodedPath)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("decode path: %w", err)
	}
	return string(rawPath), expiresAt, nil
}

func (s *SignedURLSigner) sign(ts, encodedPath string) string {
	mac := hmac.New(sha256.New, s.secret)
	_, _ = mac.Write([]byte(ts + "|" + encodedPath))
	return hex.EncodeToString(mac.Sum(nil))
}
