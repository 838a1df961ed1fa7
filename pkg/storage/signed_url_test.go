package storage

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDownloadTokenRoundTrip(t *testing.T) {
	signer := NewSignedURLSigner("secret", time.Hour)

	token, expiresAt, err := signer.Generate("job-1", "2026/08/registro.csv")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	jobID, relPath, parsedExpiry, err := signer.Parse(token, false)
	require.NoError(t, err)
	assert.Equal(t, "job-1", jobID)
	assert.Equal(t, "2026/08/registro.csv", relPath)
	assert.WithinDuration(t, expiresAt, parsedExpiry, time.Second)
}

func TestDownloadTokenExpiry(t *testing.T) {
	signer := NewSignedURLSigner("secret", 10*time.Millisecond)

	token, _, err := signer.Generate("job-1", "2026/08/registro.csv")
	require.NoError(t, err)
	time.Sleep(20 * time.Millisecond)

	_, _, _, err = signer.Parse(token, false)
	require.Error(t, err)

	// Cleanup still needs the path out of expired tokens.
	jobID, relPath, _, err := signer.Parse(token, true)
	require.NoError(t, err)
	assert.Equal(t, "job-1", jobID)
	assert.Equal(t, "2026/08/registro.csv", relPath)
}

func TestDownloadTokenRejectsTampering(t *testing.T) {
	signer := NewSignedURLSigner("secret", time.Hour)

	token, _, err := signer.Generate("job-1", "2026/08/registro.csv")
	require.NoError(t, err)

	fields := strings.Split(token, ".")
	require.Len(t, fields, 5)
	fields[1] = "job-2"
	_, _, _, err = signer.Parse(strings.Join(fields, "."), false)
	require.Error(t, err, "swapping the job ID invalidates the signature")

	_, _, _, err = signer.Parse("garbage", false)
	require.Error(t, err)
}

func TestDownloadTokenRejectsForeignSecret(t *testing.T) {
	token, _, err := NewSignedURLSigner("secret-a", time.Hour).Generate("job-1", "2026/08/registro.csv")
	require.NoError(t, err)

	_, _, _, err = NewSignedURLSigner("secret-b", time.Hour).Parse(token, false)
	require.Error(t, err)
}

func TestDownloadTokenRequiresJobAndPath(t *testing.T) {
	signer := NewSignedURLSigner("secret", time.Hour)

	_, _, err := signer.Generate("", "2026/08/registro.csv")
	require.Error(t, err)
	_, _, err = signer.Generate("job-1", "")
	require.Error(t, err)
}
