package spores

import (
	"net/http"
)

// RedeemRequest carries a full lazy-mint voucher bundle. All three signatures
// must come from the same sale the authority countersigned.
type RedeemRequest struct {
	Buyer              string `json:"buyer"`
	Creator            string `json:"creator"`
	NFTContract        string `json:"nft_contract"`
	PaymentToken       string `json:"payment_token"`
	PaymentReceiver    string `json:"payment_receiver"`
	TokenID            string `json:"token_id"`
	UnitPrice          string `json:"unit_price"`
	SaleID             string `json:"sale_id"`
	PurchasePrice      string `json:"purchase_price"`
	FeeRate            string `json:"fee_rate"`
	URI                string `json:"uri"`
	LazyMintSignature  string `json:"lazy_mint_signature"`
	SaleSignature      string `json:"sale_signature"`
	AuthoritySignature string `json:"authority_signature"`
	Offered            string `json:"offered"`
}

// PurchaseRequest settles a secondary-market sale of an already minted token.
type PurchaseRequest struct {
	Buyer              string `json:"buyer"`
	Seller             string `json:"seller"`
	PaymentReceiver    string `json:"payment_receiver"`
	NFTContract        string `json:"nft_contract"`
	PaymentToken       string `json:"payment_token"`
	TokenID            string `json:"token_id"`
	Price              string `json:"price"`
	Amount             string `json:"amount"`
	FeeRate            string `json:"fee_rate"`
	SaleID             string `json:"sale_id"`
	TradeType          string `json:"trade_type"`
	AuthoritySignature string `json:"authority_signature"`
	Offered            string `json:"offered"`
}

// CancelRequest voids a sale id before it settles.
type CancelRequest struct {
	Seller             string `json:"seller"`
	SaleID             string `json:"sale_id"`
	AuthoritySignature string `json:"authority_signature"`
}

// Settlement is the record the engine writes once a sale clears.
type Settlement struct {
	Object          string `json:"object"`
	SaleID          string `json:"sale_id"`
	TradeType       string `json:"trade_type"`
	Buyer           string `json:"buyer"`
	Seller          string `json:"seller"`
	PaymentReceiver string `json:"payment_receiver"`
	NFTContract     string `json:"nft_contract"`
	TokenID         string `json:"token_id"`
	PaymentToken    string `json:"payment_token"`
	Amount          string `json:"amount"`
	Price           string `json:"price"`
	Fee             string `json:"fee"`
	Payout          string `json:"payout"`
	SettledAt       int64  `json:"settled_at"`
}

// SettlementList wraps the settlements collection endpoint.
type SettlementList struct {
	Object string       `json:"object"`
	Data   []Settlement `json:"data"`
}

// Redeem mints a lazy-minted edition to the buyer and settles payment in one
// call. The sale id is recorded as spent on success.
func (c *Client) Redeem(req *RedeemRequest) (*Settlement, error) {
	var out Settlement
	if _, err := c.send(http.MethodPost, "/api/v1/market/redeem", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Purchase settles a secondary sale of a minted token held by the seller.
func (c *Client) Purchase(req *PurchaseRequest) (*Settlement, error) {
	var out Settlement
	if _, err := c.send(http.MethodPost, "/api/v1/market/purchase", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Cancel voids the sale id so later redeem or purchase calls against it fail.
func (c *Client) Cancel(req *CancelRequest) error {
	var out SuccessResponse
	_, err := c.send(http.MethodPost, "/api/v1/market/cancel", req, &out)
	return err
}

// GetSettlement fetches a settled sale by its sale id.
func (c *Client) GetSettlement(saleID string) (*Settlement, error) {
	var out Settlement
	if _, err := c.get("/api/v1/market/settlements/"+saleID, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListSettlements returns every recorded settlement.
func (c *Client) ListSettlements() ([]Settlement, error) {
	var out SettlementList
	if _, err := c.get("/api/v1/market/settlements", nil, &out); err != nil {
		return nil, err
	}
	return out.Data, nil
}
