package tokenid_test

import (
	"math/big"
	"testing"

	"github.com/sporesmarket/settlement/internal/tokenid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustBig(t *testing.T, s string) *big.Int {
	t.Helper()
	n, ok := new(big.Int).SetString(s, 10)
	require.True(t, ok, "bad big literal %q", s)
	return n
}

func TestDecode(t *testing.T) {
	tests := []struct {
		name          string
		token         string
		collection    string
		subCollection uint64
		edition       uint64
	}{
		{
			name:          "worked marketplace id",
			token:         "7212690001000000000001",
			collection:    "721269",
			subCollection: 1,
			edition:       1,
		},
		{
			name:          "second sub-collection high edition",
			token:         "7212690002000000000145",
			collection:    "721269",
			subCollection: 2,
			edition:       145,
		},
		{
			name:          "zero token",
			token:         "0",
			collection:    "0",
			subCollection: 0,
			edition:       0,
		},
		{
			name:          "edition only",
			token:         "42",
			collection:    "0",
			subCollection: 0,
			edition:       42,
		},
		{
			name:          "max widths",
			token:         "11550429999999999999999",
			collection:    "1155042",
			subCollection: 9999,
			edition:       999999999999,
		},
		{
			name:          "collection larger than uint64",
			token:         "123456789012345678901234567890120003000000000007",
			collection:    "12345678901234567890123456789012",
			subCollection: 3,
			edition:       7,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id := tokenid.Decode(mustBig(t, tt.token))

			assert.Equal(t, tt.collection, id.Collection.String())
			assert.Equal(t, tt.subCollection, id.SubCollection)
			assert.Equal(t, tt.edition, id.Edition)
		})
	}
}

func TestDecodeTotality(t *testing.T) {
	// Nil and negative inputs decode to the zero ID rather than failing.
	id := tokenid.Decode(nil)
	assert.Equal(t, "0", id.Collection.String())
	assert.Zero(t, id.SubCollection)
	assert.Zero(t, id.Edition)

	id = tokenid.Decode(big.NewInt(-5))
	assert.Equal(t, "0", id.Collection.String())
	assert.Zero(t, id.SubCollection)
	assert.Zero(t, id.Edition)
}

func TestEncodeRoundTrip(t *testing.T) {
	tokens := []string{
		"0",
		"1",
		"7212690001000000000001",
		"7212690001000000000002",
		"11550429999999999999999",
		"123456789012345678901234567890120003000000000007",
	}

	for _, s := range tokens {
		token := mustBig(t, s)
		id := tokenid.Decode(token)

		encoded, err := id.Encode()
		require.NoError(t, err)
		assert.Zero(t, token.Cmp(encoded), "round trip mismatch for %s", s)
	}
}

func TestEncodeRejectsOversizedFields(t *testing.T) {
	tests := []struct {
		name string
		id   tokenid.ID
	}{
		{
			name: "sub-collection too wide",
			id:   tokenid.ID{Collection: big.NewInt(721269), SubCollection: 10000, Edition: 1},
		},
		{
			name: "edition too wide",
			id:   tokenid.ID{Collection: big.NewInt(721269), SubCollection: 1, Edition: 1_000_000_000_000},
		},
		{
			name: "negative collection",
			id:   tokenid.ID{Collection: big.NewInt(-1), SubCollection: 1, Edition: 1},
		},
		{
			name: "nil collection",
			id:   tokenid.ID{SubCollection: 1, Edition: 1},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.id.Encode()
			assert.Error(t, err)
		})
	}
}

func TestString(t *testing.T) {
	id := tokenid.Decode(mustBig(t, "7212690001000000000001"))
	assert.Equal(t, "721269/1/1", id.String())

	assert.Equal(t, "0/0/0", tokenid.ID{}.String())
}
