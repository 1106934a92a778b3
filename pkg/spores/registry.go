package spores

import (
	"net/http"
	"net/url"
	"strconv"
)

// Registry holds the five privileged addresses of the authorization oracle.
type Registry struct {
	Object   string `json:"object"`
	Admin    string `json:"admin"`
	Verifier string `json:"verifier"`
	Treasury string `json:"treasury"`
	Market   string `json:"market"`
	Minter   string `json:"minter"`
}

// NFTContract reports whether a contract address is tradeable and under which
// asset type.
type NFTContract struct {
	Object    string `json:"object"`
	Address   string `json:"address"`
	Supported bool   `json:"supported"`
	AssetType uint16 `json:"asset_type,omitempty"`
	IsERC1155 bool   `json:"is_erc1155,omitempty"`
}

// PaymentToken reports whether an ERC20 address is accepted for settlement.
type PaymentToken struct {
	Object    string `json:"object"`
	Address   string `json:"address"`
	Supported bool   `json:"supported"`
}

// RegisterNFTContractRequest whitelists a contract for trading.
type RegisterNFTContractRequest struct {
	Address   string `json:"address"`
	AssetType uint16 `json:"asset_type"`
	IsERC1155 bool   `json:"is_erc1155,omitempty"`
}

// RegisterPaymentTokenRequest whitelists an ERC20 for settlement.
type RegisterPaymentTokenRequest struct {
	Address string `json:"address"`
}

// UpdateAddressRequest rotates one privileged registry address.
type UpdateAddressRequest struct {
	Address string `json:"address"`
}

// GetRegistry returns the current privileged addresses.
func (c *Client) GetRegistry() (*Registry, error) {
	var out Registry
	if _, err := c.get("/api/v1/registry", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetNFTContract reports support status for a contract address.
func (c *Client) GetNFTContract(address string) (*NFTContract, error) {
	var out NFTContract
	if _, err := c.get("/api/v1/registry/nft-contracts/"+address, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetPaymentToken reports support status for an ERC20 address.
func (c *Client) GetPaymentToken(address string) (*PaymentToken, error) {
	var out PaymentToken
	if _, err := c.get("/api/v1/registry/payment-tokens/"+address, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// RegisterNFTContract whitelists a contract. Admin token required.
func (c *Client) RegisterNFTContract(req *RegisterNFTContractRequest) (*NFTContract, error) {
	var out NFTContract
	if _, err := c.send(http.MethodPost, "/api/v1/admin/registry/nft-contracts", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UnregisterNFTContract removes a contract from the whitelist. The asset type
// it was registered under must be passed back. Admin token required.
func (c *Client) UnregisterNFTContract(address string, assetType uint16) error {
	params := url.Values{}
	params.Set("asset_type", strconv.FormatUint(uint64(assetType), 10))
	_, _, err := c.doRequest(http.MethodDelete, "/api/v1/admin/registry/nft-contracts/"+address, nil, params)
	return err
}

// RegisterPaymentToken whitelists an ERC20 for settlement. Admin token required.
func (c *Client) RegisterPaymentToken(req *RegisterPaymentTokenRequest) (*PaymentToken, error) {
	var out PaymentToken
	if _, err := c.send(http.MethodPost, "/api/v1/admin/registry/payment-tokens", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UnregisterPaymentToken removes an ERC20 from the whitelist. Admin token required.
func (c *Client) UnregisterPaymentToken(address string) error {
	_, _, err := c.doRequest(http.MethodDelete, "/api/v1/admin/registry/payment-tokens/"+address, nil, nil)
	return err
}

func (c *Client) updateRegistryAddress(role, address string) error {
	var out SuccessResponse
	req := UpdateAddressRequest{Address: address}
	_, err := c.send(http.MethodPut, "/api/v1/admin/registry/"+role, &req, &out)
	return err
}

// UpdateMarket rotates the settlement engine address. Admin token required.
func (c *Client) UpdateMarket(address string) error {
	return c.updateRegistryAddress("market", address)
}

// UpdateMinter rotates the minter service address. Admin token required.
func (c *Client) UpdateMinter(address string) error {
	return c.updateRegistryAddress("minter", address)
}

// UpdateVerifier rotates the authority key address. Vouchers signed by the old
// key stop verifying immediately. Admin token required.
func (c *Client) UpdateVerifier(address string) error {
	return c.updateRegistryAddress("verifier", address)
}

// UpdateTreasury rotates the fee recipient. Admin token required.
func (c *Client) UpdateTreasury(address string) error {
	return c.updateRegistryAddress("treasury", address)
}

// UpdateAdmin hands the registry to a new admin. Admin token required.
func (c *Client) UpdateAdmin(address string) error {
	return c.updateRegistryAddress("admin", address)
}
