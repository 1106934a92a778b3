package vouchers_test

import (
	"testing"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/sporesmarket/settlement/internal/vouchers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignAndRecoverRoundTrip(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	want := crypto.PubkeyToAddress(key.PublicKey)

	digest, err := lazyMintFixture().Digest()
	require.NoError(t, err)

	sig, err := vouchers.SignDigest(digest, key)
	require.NoError(t, err)
	require.Len(t, sig, vouchers.SignatureLength)

	got, err := vouchers.RecoverSigner(digest, sig)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestRecoverSignerAcceptsLegacyV(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	want := crypto.PubkeyToAddress(key.PublicKey)

	digest, err := lazyMintFixture().Digest()
	require.NoError(t, err)

	sig, err := vouchers.SignDigest(digest, key)
	require.NoError(t, err)

	// Wallets commonly emit V as 27/28 rather than 0/1.
	legacy := make([]byte, len(sig))
	copy(legacy, sig)
	legacy[64] += 27

	got, err := vouchers.RecoverSigner(digest, legacy)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestRecoverSignerRejectsMalformed(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)

	digest, err := lazyMintFixture().Digest()
	require.NoError(t, err)

	sig, err := vouchers.SignDigest(digest, key)
	require.NoError(t, err)

	badV := make([]byte, len(sig))
	copy(badV, sig)
	badV[64] = 9

	tests := []struct {
		name string
		sig  []byte
	}{
		{"empty", nil},
		{"truncated", sig[:64]},
		{"oversized", append(append([]byte{}, sig...), 0)},
		{"bad recovery id", badV},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := vouchers.RecoverSigner(digest, tt.sig)
			assert.Error(t, err)
		})
	}
}

func TestRecoverSignerDetectsTampering(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	signer := crypto.PubkeyToAddress(key.PublicKey)

	digest, err := lazyMintFixture().Digest()
	require.NoError(t, err)

	sig, err := vouchers.SignDigest(digest, key)
	require.NoError(t, err)

	tampered := lazyMintFixture()
	tampered.MintAmount.SetInt64(5)
	tamperedDigest, err := tampered.Digest()
	require.NoError(t, err)

	got, err := vouchers.RecoverSigner(tamperedDigest, sig)
	if err == nil {
		assert.NotEqual(t, signer, got)
	}
}

func TestHashSignatureDistinguishesSignatures(t *testing.T) {
	a := vouchers.HashSignature([]byte{1, 2, 3})
	b := vouchers.HashSignature([]byte{1, 2, 4})
	assert.NotEqual(t, a, b)
	assert.Equal(t, a, vouchers.HashSignature([]byte{1, 2, 3}))
}
