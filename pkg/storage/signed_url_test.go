package storage

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSignedURLRoundTrip(t *testing.T) {
	signer := NewSignedURLSigner("secret", time.Hour)

	token, expiresAt, err := signer.Generate("job-1", "reports/file.csv")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	jobID, relPath, parsedExpiry, err := signer.Parse(token, false)
	require.NoError(t, err)
	require.Equal(t, "job-1", jobID)
	require.Equal(t, "reports/file.csv", relPath)
	require.WithinDuration(t, expiresAt, parsedExpiry, time.Second)
}

func TestSignedURLExpiry(t *testing.T) {
	signer := NewSignedURLSigner("secret", 10*time.Millisecond)

	token, _, err := signer.Generate("job-1", "reports/file.csv")
	require.NoError(t, err)
	time.Sleep(20 * time.Millisecond)

	_, _, _, err = signer.Parse(token, false)
	require.Error(t, err)

	jobID, relPath, _, err := signer.Parse(token, true)
	require.NoError(t, err)
	require.Equal(t, "job-1", jobID)
	require.Equal(t, "reports/file.csv", relPath)
}

func TestSignedURLRejectsTampering(t *testing.T) {
	signer := NewSignedURLSigner("secret", time.Hour)
	token, _, err := signer.Generate("job-1", "reports/file.csv")
	require.NoError(t, err)

	claim, sig, ok := strings.Cut(token, ".")
	require.True(t, ok)

	forged := NewSignedURLSigner("other-secret", time.Hour)
	forgedToken, _, err := forged.Generate("job-1", "reports/file.csv")
	require.NoError(t, err)

	_, _, _, err = signer.Parse(forgedToken, false)
	require.Error(t, err)

	_, _, _, err = signer.Parse(claim+"x."+sig, false)
	require.Error(t, err)

	_, _, _, err = signer.Parse(claim, false)
	require.Error(t, err)
}
