package tokenid

import (
	"fmt"
	"math/big"
)

// Token IDs pack three decimal fields into one integer:
//
//	tokenId = collectionId*10^16 + subCollectionId*10^12 + edition
//
// so 7212690001000000000001 names edition 1 of sub-collection 1 inside
// collection 721269. The sub-collection field is 4 decimal digits wide and
// the edition field 12, which bounds what a single collection instance can
// ever mint.
const (
	// SubCollectionWidth is the decimal width of the sub-collection field.
	SubCollectionWidth = 4
	// EditionWidth is the decimal width of the edition field.
	EditionWidth = 12

	// MaxSubCollection is the largest encodable sub-collection id.
	MaxSubCollection = 9999
	// MaxEdition is the largest encodable edition number.
	MaxEdition = 999_999_999_999
)

var (
	editionMod = big.NewInt(1_000_000_000_000)
	subMod     = big.NewInt(10_000)
	packBase   = new(big.Int).Mul(editionMod, subMod)
)

// ID is the decoded form of a token identifier.
type ID struct {
	Collection    *big.Int
	SubCollection uint64
	Edition       uint64
}

// Decode splits a token identifier into its collection, sub-collection and
// edition fields. It is pure and total over non-negative integers: every
// value decodes, whether or not anything can mint it. A nil or negative
// token decodes to the zero ID.
func Decode(token *big.Int) ID {
	if token == nil || token.Sign() < 0 {
		return ID{Collection: new(big.Int)}
	}

	rest := new(big.Int)
	edition := new(big.Int)
	rest.QuoRem(token, editionMod, edition)

	collection := new(big.Int)
	sub := new(big.Int)
	collection.QuoRem(rest, subMod, sub)

	return ID{
		Collection:    collection,
		SubCollection: sub.Uint64(),
		Edition:       edition.Uint64(),
	}
}

// Encode packs the ID back into its integer form. Components outside their
// field widths are rejected so Encode(Decode(x)) == x holds for every
// non-negative x.
func (id ID) Encode() (*big.Int, error) {
	if id.Collection == nil || id.Collection.Sign() < 0 {
		return nil, fmt.Errorf("tokenid: collection must be non-negative")
	}
	if id.SubCollection > MaxSubCollection {
		return nil, fmt.Errorf("tokenid: sub-collection %d exceeds %d-digit field", id.SubCollection, SubCollectionWidth)
	}
	if id.Edition > MaxEdition {
		return nil, fmt.Errorf("tokenid: edition %d exceeds %d-digit field", id.Edition, EditionWidth)
	}

	token := new(big.Int).Mul(id.Collection, packBase)
	token.Add(token, new(big.Int).Mul(new(big.Int).SetUint64(id.SubCollection), editionMod))
	token.Add(token, new(big.Int).SetUint64(id.Edition))

	return token, nil
}

// MustEncode is Encode for callers holding components already known to fit,
// such as values produced by Decode.
func (id ID) MustEncode() *big.Int {
	token, err := id.Encode()
	if err != nil {
		panic(err)
	}
	return token
}

// String renders the ID as collection/sub-collection/edition.
func (id ID) String() string {
	collection := id.Collection
	if collection == nil {
		collection = new(big.Int)
	}
	return fmt.Sprintf("%s/%d/%d", collection.String(), id.SubCollection, id.Edition)
}
