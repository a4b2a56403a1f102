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

// SignedURLSigner mints and verifies the tokens embedded in report
// download URLs. Tokens are HMAC-signed so the download endpoint can
// authorize a fetch without a database lookup.
type SignedURLSigner struct {
	secret []byte
	ttl    time.Duration
}

// NewSignedURLSigner builds a signer. A non-positive TTL falls back to 24h.
func NewSignedURLSigner(secret string, ttl time.Duration) *SignedURLSigner {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &SignedURLSigner{secret: []byte(secret), ttl: ttl}
}

// Generate returns a token binding the job ID to its stored file, valid
// until the signer's TTL elapses.
func (s *SignedURLSigner) Generate(jobID, relPath string) (string, time.Time, error) {
	if jobID == "" || relPath == "" {
		return "", time.Time{}, fmt.Errorf("job id and file path required")
	}
	if len(s.secret) == 0 {
		return "", time.Time{}, fmt.Errorf("signing secret not configured")
	}
	expiresAt := time.Now().Add(s.ttl)
	claim := encodeClaim(jobID, relPath, expiresAt)
	return claim + "." + s.sign(claim), expiresAt, nil
}

// Parse verifies a token's signature and expiry and returns the job and
// file path it binds. allowExpired skips the expiry check so cleanup
// routines can still resolve stale tokens.
func (s *SignedURLSigner) Parse(token string, allowExpired bool) (string, string, time.Time, error) {
	claim, sig, ok := strings.Cut(token, ".")
	if !ok {
		return "", "", time.Time{}, fmt.Errorf("malformed token")
	}
	if !hmac.Equal([]byte(s.sign(claim)), []byte(sig)) {
		return "", "", time.Time{}, fmt.Errorf("token signature mismatch")
	}

	jobID, relPath, expiresAt, err := decodeClaim(claim)
	if err != nil {
		return "", "", time.Time{}, err
	}
	if !allowExpired && time.Now().After(expiresAt) {
		return "", "", time.Time{}, fmt.Errorf("token expired")
	}
	return jobID, relPath, expiresAt, nil
}

func (s *SignedURLSigner) sign(claim string) string {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(claim))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

func encodeClaim(jobID, relPath string, expiresAt time.Time) string {
	raw := jobID + "\n" + relPath + "\n" + strconv.FormatInt(expiresAt.Unix(), 10)
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

func decodeClaim(claim string) (string, string, time.Time, error) {
	raw, err := base64.RawURLEncoding.DecodeString(claim)
	if err != nil {
		return "", "", time.Time{}, fmt.Errorf("decode token claim: %w", err)
	}
	fields := strings.SplitN(string(raw), "\n", 3)
	if len(fields) != 3 {
		return "", "", time.Time{}, fmt.Errorf("malformed token claim")
	}
	expUnix, err := strconv.ParseInt(fields[2], 10, 64)
	if err != nil {
		return "", "", time.Time{}, fmt.Errorf("malformed token expiry")
	}
	return fields[0], fields[1], time.Unix(expUnix, 0), nil
}
