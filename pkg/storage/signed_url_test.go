package storage

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSignedURLSignerRoundTrip(t *testing.T) {
	signer := NewSignedURLSigner("secret", time.Hour)
	token, expiresAt, err := signer.Generate("submissions/s1/a1/1_essay.pdf")
	require.NoError(t, err)
	require.NotEmpty(t, token)
	require.False(t, expiresAt.IsZero())

	key, err := signer.Verify(token)
	require.NoError(t, err)
	require.Equal(t, "submissions/s1/a1/1_essay.pdf", key)
}

func TestSignedURLSignerRejectsTamperedAndExpired(t *testing.T) {
	signer := NewSignedURLSigner("secret", time.Hour)
	token, _, err := signer.Generate("a.txt")
	require.NoError(t, err)

	other := NewSignedURLSigner("other", time.Hour)
	_, err = other.Verify(token)
	require.Error(t, err)

	short := NewSignedURLSigner("secret", 10*time.Millisecond)
	token, _, err = short.Generate("a.txt")
	require.NoError(t, err)
	time.Sleep(1100 * time.Millisecond)
	_, err = short.Verify(token)
	require.Error(t, err)
}
