package crypto

import (
	"crypto/ed25519"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignVerifyRoundTrip(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	var seed, pubArr [32]byte
	copy(seed[:], priv.Seed())
	copy(pubArr[:], pub)

	message := []byte("dtls certificate digest")
	sig, err := Sign(message, seed)
	require.NoError(t, err)

	ok, err := Verify(message, sig, pubArr)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestVerifyRejectsTamperedMessage(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	var seed, pubArr [32]byte
	copy(seed[:], priv.Seed())
	copy(pubArr[:], pub)

	sig, err := Sign([]byte("original"), seed)
	require.NoError(t, err)

	ok, err := Verify([]byte("tampered"), sig, pubArr)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSignRejectsEmptyMessage(t *testing.T) {
	_, err := Sign(nil, [32]byte{1})
	assert.Error(t, err)
}

func TestSignerPublicKeyVerifiesItsOwnSignatures(t *testing.T) {
	var seed [32]byte
	for i := range seed {
		seed[i] = byte(i + 1)
	}
	pub := SignerPublicKey(seed)

	sig, err := Sign([]byte("key exchange transcript"), seed)
	require.NoError(t, err)

	ok, err := Verify([]byte("key exchange transcript"), sig, pub)
	require.NoError(t, err)
	assert.True(t, ok)
}
