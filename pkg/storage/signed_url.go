package storage

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Download tokens authenticate report downloads without a session: the token
// itself carries the job ID, the stored file path and an expiry, sealed with
// an HMAC so none of it can be altered.
const tokenVersion = "r1"

// SignedURLSigner mints and validates report download tokens.
type SignedURLSigner struct {
	secret []byte
	ttl    time.Duration
}

// NewSignedURLSigner builds a signer. TTL defaults to 24h when unset.
func NewSignedURLSigner(secret string, ttl time.Duration) *SignedURLSigner {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &SignedURLSigner{secret: []byte(secret), ttl: ttl}
}

// Generate mints a token for the given report job and stored file.
func (s *SignedURLSigner) Generate(jobID, relPath string) (string, time.Time, error) {
	if jobID == "" || relPath == "" {
		return "", time.Time{}, fmt.Errorf("job ID and file path required")
	}
	if len(s.secret) == 0 {
		return "", time.Time{}, fmt.Errorf("signing secret missing")
	}
	expiresAt := time.Now().Add(s.ttl)
	fields := []string{
		tokenVersion,
		jobID,
		strconv.FormatInt(expiresAt.Unix(), 10),
		base64.RawURLEncoding.EncodeToString([]byte(relPath)),
	}
	token := strings.Join(append(fields, s.seal(fields)), ".")
	return token, expiresAt, nil
}

// Parse verifies a token and returns its contents. With allowExpired the
// expiry check is skipped, which cleanup needs to locate stale files.
func (s *SignedURLSigner) Parse(token string, allowExpired bool) (jobID, relPath string, expiresAt time.Time, err error) {
	fields := strings.Split(token, ".")
	if len(fields) != 5 || fields[0] != tokenVersion {
		return "", "", time.Time{}, fmt.Errorf("malformed download token")
	}
	if !hmac.Equal([]byte(s.seal(fields[:4])), []byte(fields[4])) {
		return "", "", time.Time{}, fmt.Errorf("download token signature mismatch")
	}

	expUnix, err := strconv.ParseInt(fields[2], 10, 64)
	if err != nil {
		return "", "", time.Time{}, fmt.Errorf("malformed download token expiry")
	}
	expiresAt = time.Unix(expUnix, 0)
	if !allowExpired && time.Now().After(expiresAt) {
		return "", "", time.Time{}, fmt.Errorf("download token expired")
	}

	rawPath, err := base64.RawURLEncoding.DecodeString(fields[3])
	if err != nil {
		return "", "", time.Time{}, fmt.Errorf("malformed download token path")
	}
	return fields[1], string(rawPath), expiresAt, nil
}

func (s *SignedURLSigner) seal(fields []string) string {
	mac := hmac.New(sha256.New, s.secret)
	_, _ = mac.Write([]byte(strings.Join(fields, ".")))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}
