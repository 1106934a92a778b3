package token_test

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sporesmarket/settlement/internal/token"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	alice    = common.HexToAddress("0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
	bob      = common.HexToAddress("0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb")
	carol    = common.HexToAddress("0xcccccccccccccccccccccccccccccccccccccccc")
	operator = common.HexToAddress("0xdddddddddddddddddddddddddddddddddddddddd")
)

func TestNFTMintOnce(t *testing.T) {
	ctx := context.Background()
	nft := token.NewInMemoryNFT()
	id := big.NewInt(42)

	require.NoError(t, nft.Mint(ctx, alice, id, "ipfs://42"))

	owner, err := nft.OwnerOf(id)
	require.NoError(t, err)
	assert.Equal(t, alice, owner)
	assert.Equal(t, uint64(1), nft.BalanceOf(alice))

	uri, err := nft.TokenURI(id)
	require.NoError(t, err)
	assert.Equal(t, "ipfs://42", uri)

	err = nft.Mint(ctx, bob, id, "ipfs://other")
	assert.ErrorIs(t, err, token.ErrTokenAlreadyMinted)

	owner, err = nft.OwnerOf(id)
	require.NoError(t, err)
	assert.Equal(t, alice, owner, "failed mint must not move ownership")
}

func TestNFTTransferAuthorization(t *testing.T) {
	tests := []struct {
		name    string
		setup   func(t *testing.T, ctx context.Context, nft *token.InMemoryNFT)
		op      common.Address
		wantErr error
	}{
		{
			name: "owner transfers own token",
			op:   alice,
		},
		{
			name: "approved address transfers",
			setup: func(t *testing.T, ctx context.Context, nft *token.InMemoryNFT) {
				require.NoError(t, nft.Approve(ctx, alice, operator, big.NewInt(1)))
			},
			op: operator,
		},
		{
			name: "operator for all transfers",
			setup: func(t *testing.T, ctx context.Context, nft *token.InMemoryNFT) {
				require.NoError(t, nft.SetApprovalForAll(ctx, alice, operator, true))
			},
			op: operator,
		},
		{
			name:    "stranger cannot transfer",
			op:      carol,
			wantErr: token.ErrNotAuthorized,
		},
		{
			name: "revoked operator cannot transfer",
			setup: func(t *testing.T, ctx context.Context, nft *token.InMemoryNFT) {
				require.NoError(t, nft.SetApprovalForAll(ctx, alice, operator, true))
				require.NoError(t, nft.SetApprovalForAll(ctx, alice, operator, false))
			},
			op:      operator,
			wantErr: token.ErrNotAuthorized,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			nft := token.NewInMemoryNFT()
			require.NoError(t, nft.Mint(ctx, alice, big.NewInt(1), ""))
			if tt.setup != nil {
				tt.setup(t, ctx, nft)
			}

			err := nft.TransferFrom(ctx, tt.op, alice, bob, big.NewInt(1))
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				owner, _ := nft.OwnerOf(big.NewInt(1))
				assert.Equal(t, alice, owner)
				return
			}
			require.NoError(t, err)
			owner, err := nft.OwnerOf(big.NewInt(1))
			require.NoError(t, err)
			assert.Equal(t, bob, owner)
			assert.Equal(t, uint64(0), nft.BalanceOf(alice))
			assert.Equal(t, uint64(1), nft.BalanceOf(bob))
		})
	}
}

func TestNFTTransferClearsApproval(t *testing.T) {
	ctx := context.Background()
	nft := token.NewInMemoryNFT()
	id := big.NewInt(7)
	require.NoError(t, nft.Mint(ctx, alice, id, ""))
	require.NoError(t, nft.Approve(ctx, alice, operator, id))
	require.NoError(t, nft.TransferFrom(ctx, operator, alice, bob, id))

	// Old approval must not survive into the new ownership.
	err := nft.TransferFrom(ctx, operator, bob, carol, id)
	assert.ErrorIs(t, err, token.ErrNotAuthorized)
}

func TestNFTWrongFromRejected(t *testing.T) {
	ctx := context.Background()
	nft := token.NewInMemoryNFT()
	require.NoError(t, nft.Mint(ctx, alice, big.NewInt(1), ""))

	err := nft.TransferFrom(ctx, bob, bob, carol, big.NewInt(1))
	assert.ErrorIs(t, err, token.ErrNotOwner)
}

func TestMultiTokenBalancesAndTransfers(t *testing.T) {
	ctx := context.Background()
	mt := token.NewInMemoryMultiToken()
	id := big.NewInt(11550001)

	require.NoError(t, mt.Mint(ctx, alice, id, big.NewInt(10), "ipfs://1155"))
	assert.Equal(t, big.NewInt(10), mt.BalanceOf(alice, id))

	err := mt.SafeTransferFrom(ctx, bob, alice, bob, id, big.NewInt(3))
	assert.ErrorIs(t, err, token.ErrNotAuthorized)

	require.NoError(t, mt.SetApprovalForAll(ctx, alice, bob, true))
	require.NoError(t, mt.SafeTransferFrom(ctx, bob, alice, bob, id, big.NewInt(3)))
	assert.Equal(t, big.NewInt(7), mt.BalanceOf(alice, id))
	assert.Equal(t, big.NewInt(3), mt.BalanceOf(bob, id))

	err = mt.SafeTransferFrom(ctx, alice, alice, bob, id, big.NewInt(8))
	assert.ErrorIs(t, err, token.ErrInsufficientBalance)
	assert.Equal(t, big.NewInt(7), mt.BalanceOf(alice, id), "failed transfer must not move balance")
}

func TestERC20AllowanceSpending(t *testing.T) {
	ctx := context.Background()
	erc20 := token.NewInMemoryERC20()
	require.NoError(t, erc20.Mint(ctx, alice, big.NewInt(1000)))

	err := erc20.TransferFrom(ctx, operator, alice, bob, big.NewInt(100))
	assert.ErrorIs(t, err, token.ErrInsufficientAllowance)

	require.NoError(t, erc20.Approve(ctx, alice, operator, big.NewInt(150)))
	require.NoError(t, erc20.TransferFrom(ctx, operator, alice, bob, big.NewInt(100)))
	assert.Equal(t, big.NewInt(900), erc20.BalanceOf(alice))
	assert.Equal(t, big.NewInt(100), erc20.BalanceOf(bob))
	assert.Equal(t, big.NewInt(50), erc20.Allowance(alice, operator))

	err = erc20.TransferFrom(ctx, operator, alice, bob, big.NewInt(60))
	assert.ErrorIs(t, err, token.ErrInsufficientAllowance)
}

func TestERC20TransferInsufficientBalance(t *testing.T) {
	ctx := context.Background()
	erc20 := token.NewInMemoryERC20()
	require.NoError(t, erc20.Mint(ctx, alice, big.NewInt(10)))

	err := erc20.Transfer(ctx, alice, bob, big.NewInt(11))
	assert.ErrorIs(t, err, token.ErrInsufficientBalance)
	assert.Equal(t, big.NewInt(10), erc20.BalanceOf(alice))
}

func TestBankTransfers(t *testing.T) {
	ctx := context.Background()
	bank := token.NewInMemoryBank()
	require.NoError(t, bank.Deposit(alice, big.NewInt(500)))

	require.NoError(t, bank.Transfer(ctx, alice, bob, big.NewInt(200)))
	assert.Equal(t, big.NewInt(300), bank.Balance(alice))
	assert.Equal(t, big.NewInt(200), bank.Balance(bob))

	err := bank.Transfer(ctx, alice, bob, big.NewInt(301))
	assert.ErrorIs(t, err, token.ErrInsufficientBalance)

	err = bank.Transfer(ctx, carol, bob, big.NewInt(1))
	assert.ErrorIs(t, err, token.ErrInsufficientBalance)
}

func TestBalanceCopiesDoNotAlias(t *testing.T) {
	ctx := context.Background()
	erc20 := token.NewInMemoryERC20()
	require.NoError(t, erc20.Mint(ctx, alice, big.NewInt(100)))

	got := erc20.BalanceOf(alice)
	got.SetInt64(0)
	assert.Equal(t, big.NewInt(100), erc20.BalanceOf(alice))
}

func TestDirectoryLookups(t *testing.T) {
	dir := token.NewDirectory()
	nftAddr := common.HexToAddress("0x0000000000000000000000000000000000000721")

	_, ok := dir.NFT(nftAddr)
	assert.False(t, ok)

	dir.AddNFT(nftAddr, token.NewInMemoryNFT())
	got, ok := dir.NFT(nftAddr)
	assert.True(t, ok)
	assert.NotNil(t, got)
}
