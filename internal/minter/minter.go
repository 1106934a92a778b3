// Package minter fronts eager mint traffic for the platform's registered
// minter role. Every call re-checks the registry, so a superseded instance
// is rejected immediately even if callers still hold a reference to it.
package minter

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/sporesmarket/settlement/internal/collection"
	"github.com/sporesmarket/settlement/internal/logger"
	"github.com/sporesmarket/settlement/internal/registry"
	"github.com/sporesmarket/settlement/internal/tokenid"
)

// Service is one minter instance. The registry decides whether it currently
// holds the minter role; the service itself keeps no authorization state.
type Service struct {
	address     common.Address
	oracle      collection.Oracle
	collections *collection.Factory
}

func New(address common.Address, oracle collection.Oracle, collections *collection.Factory) *Service {
	return &Service{
		address:     address,
		oracle:      oracle,
		collections: collections,
	}
}

func (s *Service) Address() common.Address { return s.address }

// Mint resolves the collection from the packed token id and mints the single
// edition under the given authority signature.
func (s *Service) Mint(ctx context.Context, to common.Address, tokenID *big.Int, uri string, authoritySig []byte) error {
	c, err := s.resolve(tokenID)
	if err != nil {
		return err
	}
	if err := c.Mint(ctx, s.address, to, tokenID, uri, authoritySig); err != nil {
		return err
	}
	logger.Info("minted edition",
		zap.String("collection", c.Address().Hex()),
		zap.String("to", to.Hex()),
		zap.String("token_id", tokenID.String()))
	return nil
}

// MintBatch mints a batch of editions of one collection. The first token id
// names the collection; the collection itself enforces that the rest agree.
func (s *Service) MintBatch(ctx context.Context, to common.Address, tokenIDs []*big.Int, uris []string, authoritySig []byte) error {
	if len(tokenIDs) == 0 {
		return collection.ErrInvalidTokenIds
	}
	c, err := s.resolve(tokenIDs[0])
	if err != nil {
		return err
	}
	if err := c.MintBatch(ctx, s.address, to, tokenIDs, uris, authoritySig); err != nil {
		return err
	}
	logger.Info("minted batch",
		zap.String("collection", c.Address().Hex()),
		zap.String("to", to.Hex()),
		zap.Int("count", len(tokenIDs)))
	return nil
}

// resolve runs the deprecation guard and looks up the collection the token
// id belongs to.
func (s *Service) resolve(tokenID *big.Int) (*collection.Collection, error) {
	if !s.oracle.IsMinter(s.address) {
		return nil, registry.ErrUnauthorized
	}
	c, ok := s.collections.Get(tokenid.Decode(tokenID).Collection)
	if !ok {
		return nil, collection.ErrInvalidCollection
	}
	return c, nil
}
