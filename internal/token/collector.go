package token

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

var (
	ErrReservationSettled = errors.New("reservation already settled")
	ErrSplitMismatch      = errors.New("splits do not sum to reserved amount")
)

// Split is one leg of a committed payment.
type Split struct {
	To     common.Address
	Amount *big.Int
}

// Collector implements two-phase payment settlement. Reserve pulls the full
// price into the escrow account up front; the reservation is then either
// committed out to the fee and payout legs or released back to the payer.
// Nothing irreversible may happen between Reserve and the decision.
type Collector struct {
	bank   Bank
	dir    *Directory
	escrow common.Address
}

func NewCollector(bank Bank, dir *Directory, escrow common.Address) *Collector {
	return &Collector{bank: bank, dir: dir, escrow: escrow}
}

// Escrow is the account reserved funds sit in while a settlement is pending.
func (c *Collector) Escrow() common.Address {
	return c.escrow
}

// Reserve moves price from the payer into escrow. Native payments debit the
// bank directly; token payments pull on the payer's prior approval of the
// escrow account, surfacing the ledger's own allowance and balance errors
// unmodified.
func (c *Collector) Reserve(ctx context.Context, payer, paymentToken common.Address, price *big.Int) (*Reservation, error) {
	if !positive(price) {
		return nil, ErrInvalidAmount
	}
	if paymentToken == NativeCoin {
		if err := c.bank.Transfer(ctx, payer, c.escrow, price); err != nil {
			return nil, err
		}
	} else {
		erc20, ok := c.dir.ERC20(paymentToken)
		if !ok {
			return nil, fmt.Errorf("payment token %s not bound", paymentToken.Hex())
		}
		if err := erc20.TransferFrom(ctx, c.escrow, payer, c.escrow, price); err != nil {
			return nil, err
		}
	}
	return &Reservation{
		collector: c,
		payer:     payer,
		token:     paymentToken,
		amount:    clone(price),
	}, nil
}

// Reservation holds funds parked in escrow for one settlement. It settles
// exactly once; Commit and Release are not safe for concurrent use.
type Reservation struct {
	collector *Collector
	payer     common.Address
	token     common.Address
	amount    *big.Int
	settled   bool
}

func (r *Reservation) Amount() *big.Int {
	return clone(r.amount)
}

// Commit pays the reserved funds out. The splits must account for the full
// reserved amount; zero-amount legs are allowed and skipped.
func (r *Reservation) Commit(ctx context.Context, splits ...Split) error {
	if r.settled {
		return ErrReservationSettled
	}
	total := new(big.Int)
	for _, s := range splits {
		if s.Amount == nil || s.Amount.Sign() < 0 {
			return ErrInvalidAmount
		}
		total.Add(total, s.Amount)
	}
	if total.Cmp(r.amount) != 0 {
		return ErrSplitMismatch
	}
	for _, s := range splits {
		if s.Amount.Sign() == 0 {
			continue
		}
		if err := r.payOut(ctx, s.To, s.Amount); err != nil {
			return fmt.Errorf("pay out %s to %s: %w", s.Amount, s.To.Hex(), err)
		}
	}
	r.settled = true
	return nil
}

// Release refunds the reserved funds to the payer.
func (r *Reservation) Release(ctx context.Context) error {
	if r.settled {
		return ErrReservationSettled
	}
	if err := r.payOut(ctx, r.payer, r.amount); err != nil {
		return fmt.Errorf("release reservation to %s: %w", r.payer.Hex(), err)
	}
	r.settled = true
	return nil
}

func (r *Reservation) payOut(ctx context.Context, to common.Address, amount *big.Int) error {
	c := r.collector
	if r.token == NativeCoin {
		return c.bank.Transfer(ctx, c.escrow, to, amount)
	}
	erc20, ok := c.dir.ERC20(r.token)
	if !ok {
		return fmt.Errorf("payment token %s not bound", r.token.Hex())
	}
	return erc20.Transfer(ctx, c.escrow, to, amount)
}
