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

// SignedURLSigner creates and validates public object URLs.
type SignedURLSigner struct {
	secret  []byte
	ttl     time.Duration
	baseURL string
}

// NewSignedURLSigner constructs a signer. baseURL is the prefix the download route is mounted at.
func NewSignedURLSigner(secret string, ttl time.Duration, baseURL string) *SignedURLSigner {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &SignedURLSigner{
		secret:  []byte(secret),
		ttl:     ttl,
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

// Generate returns a signed token referencing the bucket and object path.
func (s *SignedURLSigner) Generate(bucket, path string) (string, time.Time, error) {
	if bucket == "" || path == "" {
		return "", time.Time{}, fmt.Errorf("bucket and path required")
	}
	if len(s.secret) == 0 {
		return "", time.Time{}, fmt.Errorf("signing secret missing")
	}
	expiresAt := time.Now().Add(s.ttl)
	encodedPath := base64.RawURLEncoding.EncodeToString([]byte(path))
	ts := strconv.FormatInt(expiresAt.Unix(), 10)
	signature := s.sign(bucket, ts, encodedPath)
	return strings.Join([]string{bucket, ts, encodedPath, signature}, "."), expiresAt, nil
}

// PublicURL builds the download URL for an object.
func (s *SignedURLSigner) PublicURL(bucket, path string) (string, error) {
	token, _, err := s.Generate(bucket, path)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s/files/%s", s.baseURL, token), nil
}

// Parse validates a token and returns the embedded bucket and path.
func (s *SignedURLSigner) Parse(token string) (bucket, path string, expiresAt time.Time, err error) {
	parts := strings.Split(token, ".")
	if len(parts) != 4 {
		return "", "", time.Time{}, fmt.Errorf("invalid token format")
	}
	bucket, ts, encodedPath, signature := parts[0], parts[1], parts[2], parts[3]

	rawPath, err := base64.RawURLEncoding.DecodeString(encodedPath)
	if err != nil {
		return "", "", time.Time{}, fmt.Errorf("decode path: %w", err)
	}
	expUnix, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return "", "", time.Time{}, fmt.Errorf("invalid timestamp")
	}
	expiresAt = time.Unix(expUnix, 0)

	expected := s.sign(bucket, ts, encodedPath)
	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return "", "", time.Time{}, fmt.Errorf("invalid token signature")
	}
	if time.Now().After(expiresAt) {
		return "", "", time.Time{}, fmt.Errorf("token expired")
	}
	return bucket, string(rawPath), expiresAt, nil
}

func (s *SignedURLSigner) sign(bucket, ts, encodedPath string) string {
	mac := hmac.New(sha256.New, s.secret)
	_, _ = mac.Write([]byte(bucket + "|" + ts + "|" + encodedPath))
	return hex.EncodeToString(mac.Sum(nil))
}
