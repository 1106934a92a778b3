package collection

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"go.uber.org/zap"

	"github.com/sporesmarket/settlement/internal/events"
	"github.com/sporesmarket/settlement/internal/logger"
	"github.com/sporesmarket/settlement/internal/token"
	"github.com/sporesmarket/settlement/internal/tokenid"
	"github.com/sporesmarket/settlement/internal/vouchers"
)

var ErrCollectionExists = errors.New("collection already exists")

// Params describes one collection creation request. The authority signs
// exactly these values (plus the registry address) into the creation voucher.
type Params struct {
	CollectionID *big.Int
	MaxEdition   uint64
	RequestID    *big.Int
	Admin        common.Address
	Name         string
	BaseURI      string
}

// Factory deploys collections into the directory. Each creation voucher is
// consumed on use, so a given request id authorizes exactly one deployment.
type Factory struct {
	oracle       Oracle
	registryAddr common.Address
	directory    *token.Directory
	emitter      events.Emitter

	mu        sync.RWMutex
	byID      map[string]*Collection
	byAddress map[common.Address]*Collection
}

func NewFactory(oracle Oracle, registryAddr common.Address, directory *token.Directory, emitter events.Emitter) *Factory {
	return &Factory{
		oracle:       oracle,
		registryAddr: registryAddr,
		directory:    directory,
		emitter:      emitter,
		byID:         make(map[string]*Collection),
		byAddress:    make(map[common.Address]*Collection),
	}
}

// Create validates the creation voucher, consumes it, and deploys the
// collection with sub-collection #1 carrying the given capacity. The caller
// becomes the collection's creator of record.
func (f *Factory) Create(ctx context.Context, caller common.Address, params Params, creationSig []byte) (*Collection, error) {
	if params.CollectionID == nil || params.CollectionID.Sign() <= 0 {
		return nil, fmt.Errorf("collection id must be positive")
	}
	if params.MaxEdition == 0 || params.MaxEdition > tokenid.MaxEdition {
		return nil, fmt.Errorf("max edition %d out of range", params.MaxEdition)
	}
	if caller == (common.Address{}) {
		return nil, token.ErrZeroAddress
	}

	digest, err := (vouchers.Creation{
		CollectionID: params.CollectionID,
		MaxEdition:   params.MaxEdition,
		RequestID:    params.RequestID,
		Admin:        params.Admin,
		Registry:     f.registryAddr,
	}).Digest()
	if err != nil {
		return nil, err
	}
	if err := f.oracle.Verify(ctx, digest, creationSig); err != nil {
		return nil, err
	}

	key := params.CollectionID.String()

	f.mu.Lock()
	defer f.mu.Unlock()
	if _, exists := f.byID[key]; exists {
		return nil, ErrCollectionExists
	}
	if err := f.oracle.Consume(ctx, digest, creationSig); err != nil {
		return nil, err
	}

	c := &Collection{
		address:      collectionAddress(params.CollectionID),
		admin:        params.Admin,
		creator:      caller,
		id:           new(big.Int).Set(params.CollectionID),
		name:         params.Name,
		baseURI:      params.BaseURI,
		oracle:       f.oracle,
		registryAddr: f.registryAddr,
		assets:       token.NewInMemoryNFT(),
		subs:         map[uint64]*SubCollection{1: {MaxEdition: params.MaxEdition}},
		latestSub:    1,
		emitter:      f.emitter,
	}
	f.byID[key] = c
	f.byAddress[c.address] = c
	f.directory.AddNFT(c.address, c)

	logger.Info("collection created",
		zap.String("collection_id", key),
		zap.String("address", c.address.Hex()),
		zap.String("creator", caller.Hex()),
		zap.Uint64("max_edition", params.MaxEdition))

	f.emitter.Emit(ctx, events.NewCollection{
		CollectionID:    c.CollectionID(),
		SubCollectionID: 1,
		MaxEdition:      params.MaxEdition,
		CollectionAddr:  c.address,
	})
	return c, nil
}

func (f *Factory) Get(collectionID *big.Int) (*Collection, bool) {
	if collectionID == nil {
		return nil, false
	}
	f.mu.RLock()
	defer f.mu.RUnlock()
	c, ok := f.byID[collectionID.String()]
	return c, ok
}

func (f *Factory) GetByAddress(addr common.Address) (*Collection, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	c, ok := f.byAddress[addr]
	return c, ok
}

// List returns every deployed collection, in no particular order.
func (f *Factory) List() []*Collection {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make([]*Collection, 0, len(f.byID))
	for _, c := range f.byID {
		out = append(out, c)
	}
	return out
}

// collectionAddress derives a stable address for a collection from its id.
func collectionAddress(collectionID *big.Int) common.Address {
	return common.BytesToAddress(crypto.Keccak256([]byte("spores/collection/"), collectionID.Bytes())[12:])
}
