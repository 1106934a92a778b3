// Package vouchers defines the canonical byte encodings and digests of every
// signed payload the marketplace accepts. Encoding is kept separate from
// signature recovery so the two can be tested in isolation: a voucher struct
// maps to one fixed byte sequence, the sequence to one keccak256 digest, and
// signing/recovery operate only on digests.
package vouchers

import (
	"encoding/binary"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// Domain tags keep field-identical encodings of different voucher types from
// ever producing the same digest.
const (
	tagLazyMint  = "SPORES/LAZY_MINT/V1"
	tagSale      = "SPORES/SALE/V1"
	tagAuthorize = "SPORES/AUTHORIZE/V1"
	tagPurchase  = "SPORES/PURCHASE/V1"
	tagCancel    = "SPORES/CANCEL/V1"
	tagCreation  = "SPORES/COLLECTION_CREATE/V1"
	tagMint      = "SPORES/MINT/V1"
	tagBatchMint = "SPORES/MINT_BATCH/V1"
)

// LazyMint is the creator's pre-authorization for a token that does not
// exist yet: it fixes who may be recorded as minter, on which contract, and
// for which exact token id.
type LazyMint struct {
	Creator     common.Address
	NFTContract common.Address
	TokenID     *big.Int
	MintAmount  *big.Int
	AssetType   uint16
}

// Digest returns the keccak256 digest of the canonical encoding.
func (v LazyMint) Digest() (common.Hash, error) {
	e := newEncoder(tagLazyMint)
	e.address(v.Creator)
	e.address(v.NFTContract)
	e.uint256(v.TokenID, "token id")
	e.uint256(v.MintAmount, "mint amount")
	e.uint16(v.AssetType)
	return e.digest()
}

// Sale is the creator's sale terms for a token: where payment goes, in which
// currency, and the floor unit price.
type Sale struct {
	TokenID         *big.Int
	NFTContract     common.Address
	Creator         common.Address
	PaymentReceiver common.Address
	PaymentToken    common.Address
	UnitPrice       *big.Int
}

// Digest returns the keccak256 digest of the canonical encoding.
func (v Sale) Digest() (common.Hash, error) {
	e := newEncoder(tagSale)
	e.uint256(v.TokenID, "token id")
	e.address(v.NFTContract)
	e.address(v.Creator)
	e.address(v.PaymentReceiver)
	e.address(v.PaymentToken)
	e.uint256(v.UnitPrice, "unit price")
	return e.digest()
}

// Authorized is the off-chain authority's clearance for one settlement. It
// binds the keccak256 hashes of the two creator signature blobs rather than
// their payloads: the authority attests that those exact signed blobs are
// cleared for this sale, price and fee without re-parsing creator intent.
type Authorized struct {
	SaleID          *big.Int
	OnSaleAmount    *big.Int
	PurchasePrice   *big.Int
	PurchaseAmount  *big.Int
	FeeRate         *big.Int
	LazyMintSigHash common.Hash
	SaleSigHash     common.Hash
}

// Digest returns the keccak256 digest of the canonical encoding.
func (v Authorized) Digest() (common.Hash, error) {
	e := newEncoder(tagAuthorize)
	e.uint256(v.SaleID, "sale id")
	e.uint256(v.OnSaleAmount, "on-sale amount")
	e.uint256(v.PurchasePrice, "purchase price")
	e.uint256(v.PurchaseAmount, "purchase amount")
	e.uint256(v.FeeRate, "fee rate")
	e.hash(v.LazyMintSigHash)
	e.hash(v.SaleSigHash)
	return e.digest()
}

// Purchase is the authority's clearance for settling a sale of an asset that
// already exists, so no creator voucher layer is involved.
type Purchase struct {
	Seller          common.Address
	PaymentReceiver common.Address
	NFTContract     common.Address
	TokenID         *big.Int
	PaymentToken    common.Address
	FeeRate         *big.Int
	Price           *big.Int
	Amount          *big.Int
	SaleID          *big.Int
	TradeType       string
}

// Digest returns the keccak256 digest of the canonical encoding.
func (v Purchase) Digest() (common.Hash, error) {
	e := newEncoder(tagPurchase)
	e.address(v.Seller)
	e.address(v.PaymentReceiver)
	e.address(v.NFTContract)
	e.uint256(v.TokenID, "token id")
	e.address(v.PaymentToken)
	e.uint256(v.FeeRate, "fee rate")
	e.uint256(v.Price, "price")
	e.uint256(v.Amount, "amount")
	e.uint256(v.SaleID, "sale id")
	e.str(v.TradeType)
	return e.digest()
}

// Cancel is the authority's clearance for a seller to permanently void a
// sale id.
type Cancel struct {
	Seller common.Address
	SaleID *big.Int
}

// Digest returns the keccak256 digest of the canonical encoding.
func (v Cancel) Digest() (common.Hash, error) {
	e := newEncoder(tagCancel)
	e.address(v.Seller)
	e.uint256(v.SaleID, "sale id")
	return e.digest()
}

// Creation authorizes constructing one collection instance. RequestID makes
// the voucher single-use and Registry pins which oracle it may be redeemed
// through.
type Creation struct {
	CollectionID *big.Int
	MaxEdition   uint64
	RequestID    *big.Int
	Admin        common.Address
	Registry     common.Address
}

// Digest returns the keccak256 digest of the canonical encoding.
func (v Creation) Digest() (common.Hash, error) {
	e := newEncoder(tagCreation)
	e.uint256(v.CollectionID, "collection id")
	e.uint64(v.MaxEdition)
	e.uint256(v.RequestID, "request id")
	e.address(v.Admin)
	e.address(v.Registry)
	return e.digest()
}

// Mint authorizes one eager (creator-initiated) mint.
type Mint struct {
	To        common.Address
	TokenID   *big.Int
	URI       string
	AssetType uint16
}

// Digest returns the keccak256 digest of the canonical encoding.
func (v Mint) Digest() (common.Hash, error) {
	e := newEncoder(tagMint)
	e.address(v.To)
	e.uint256(v.TokenID, "token id")
	e.str(v.URI)
	e.uint16(v.AssetType)
	return e.digest()
}

// BatchMint authorizes a batch of eager mints in one signature.
type BatchMint struct {
	To        common.Address
	TokenIDs  []*big.Int
	URIs      []string
	AssetType uint16
}

// Digest returns the keccak256 digest of the canonical encoding.
func (v BatchMint) Digest() (common.Hash, error) {
	e := newEncoder(tagBatchMint)
	e.address(v.To)
	e.count(len(v.TokenIDs))
	for i, id := range v.TokenIDs {
		e.uint256(id, fmt.Sprintf("token id %d", i))
	}
	e.count(len(v.URIs))
	for _, uri := range v.URIs {
		e.str(uri)
	}
	e.uint16(v.AssetType)
	return e.digest()
}

// encoder accumulates the canonical byte sequence for one voucher. Integers
// are 32-byte big-endian words, addresses raw 20 bytes, strings
// length-prefixed so encodings stay injective.
type encoder struct {
	buf []byte
	err error
}

func newEncoder(tag string) *encoder {
	e := &encoder{buf: make([]byte, 0, 256)}
	e.str(tag)
	return e
}

func (e *encoder) address(a common.Address) {
	e.buf = append(e.buf, a.Bytes()...)
}

func (e *encoder) hash(h common.Hash) {
	e.buf = append(e.buf, h.Bytes()...)
}

func (e *encoder) uint256(v *big.Int, field string) {
	if e.err != nil {
		return
	}
	if v == nil {
		e.err = fmt.Errorf("vouchers: %s is nil", field)
		return
	}
	if v.Sign() < 0 {
		e.err = fmt.Errorf("vouchers: %s is negative", field)
		return
	}
	if v.BitLen() > 256 {
		e.err = fmt.Errorf("vouchers: %s exceeds 256 bits", field)
		return
	}

	var word [32]byte
	v.FillBytes(word[:])
	e.buf = append(e.buf, word[:]...)
}

func (e *encoder) uint64(v uint64) {
	e.uint256(new(big.Int).SetUint64(v), "uint64")
}

func (e *encoder) uint16(v uint16) {
	e.uint256(new(big.Int).SetUint64(uint64(v)), "uint16")
}

func (e *encoder) count(n int) {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], uint32(n))
	e.buf = append(e.buf, b[:]...)
}

func (e *encoder) str(s string) {
	e.count(len(s))
	e.buf = append(e.buf, s...)
}

func (e *encoder) digest() (common.Hash, error) {
	if e.err != nil {
		return common.Hash{}, e.err
	}
	return crypto.Keccak256Hash(e.buf), nil
}
