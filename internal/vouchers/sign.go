package vouchers

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// SignatureLength is the expected length of a voucher signature: 65 bytes of
// [R || S || V].
const SignatureLength = 65

// ErrMalformedSignature is returned for signatures that are empty, the wrong
// length, or carry an unknown recovery id.
var ErrMalformedSignature = errors.New("malformed signature")

// SignDigest signs a voucher digest with the Ethereum signed-message prefix
// applied, producing a 65-byte [R || S || V] signature with V in {0, 1}.
func SignDigest(digest common.Hash, key *ecdsa.PrivateKey) ([]byte, error) {
	sig, err := crypto.Sign(prefixedHash(digest), key)
	if err != nil {
		return nil, fmt.Errorf("sign digest: %w", err)
	}
	return sig, nil
}

// RecoverSigner recovers the address that signed the given voucher digest.
// Both raw {0, 1} and Ethereum-style {27, 28} recovery ids are accepted.
func RecoverSigner(digest common.Hash, sig []byte) (common.Address, error) {
	if len(sig) != SignatureLength {
		return common.Address{}, fmt.Errorf("%w: length %d", ErrMalformedSignature, len(sig))
	}

	normalized := make([]byte, SignatureLength)
	copy(normalized, sig)
	if normalized[64] >= 27 {
		normalized[64] -= 27
	}
	if normalized[64] > 1 {
		return common.Address{}, fmt.Errorf("%w: recovery id %d", ErrMalformedSignature, sig[64])
	}

	pub, err := crypto.SigToPub(prefixedHash(digest), normalized)
	if err != nil {
		return common.Address{}, fmt.Errorf("%w: %v", ErrMalformedSignature, err)
	}

	return crypto.PubkeyToAddress(*pub), nil
}

// HashSignature returns the keccak256 hash of a signature blob. Authorized
// vouchers bind creator signatures through this hash.
func HashSignature(sig []byte) common.Hash {
	return crypto.Keccak256Hash(sig)
}

// Keypair couples a secp256k1 private key with its derived address. Creators
// and the authority sign vouchers with one of these.
type Keypair struct {
	Key     *ecdsa.PrivateKey
	Address common.Address
}

func NewKeypair() (*Keypair, error) {
	key, err := crypto.GenerateKey()
	if err != nil {
		return nil, fmt.Errorf("generate keypair: %w", err)
	}
	return &Keypair{Key: key, Address: crypto.PubkeyToAddress(key.PublicKey)}, nil
}

// KeypairFromHex loads a keypair from a hex-encoded private key, with or
// without the 0x prefix.
func KeypairFromHex(hexKey string) (*Keypair, error) {
	hexKey = strings.TrimPrefix(hexKey, "0x")
	key, err := crypto.HexToECDSA(hexKey)
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}
	return &Keypair{Key: key, Address: crypto.PubkeyToAddress(key.PublicKey)}, nil
}

// Sign signs a voucher digest with this keypair.
func (k *Keypair) Sign(digest common.Hash) ([]byte, error) {
	return SignDigest(digest, k.Key)
}

// prefixedHash applies the Ethereum signed-message prefix to a 32-byte
// digest, matching what wallet tooling signs.
func prefixedHash(digest common.Hash) []byte {
	return crypto.Keccak256([]byte("\x19Ethereum Signed Message:\n32"), digest.Bytes())
}
