package spores

import (
	"net/http"
)

// CreateCollectionRequest deploys a collection from an authority-signed
// creation voucher.
type CreateCollectionRequest struct {
	Creator           string `json:"creator"`
	CollectionID      string `json:"collection_id"`
	MaxEdition        uint64 `json:"max_edition"`
	RequestID         string `json:"request_id"`
	Admin             string `json:"admin"`
	Name              string `json:"name"`
	BaseURI           string `json:"base_uri,omitempty"`
	CreationSignature string `json:"creation_signature"`
}

// AddSubCollectionRequest opens a fresh edition range. Only the collection
// creator may call it.
type AddSubCollectionRequest struct {
	Caller     string `json:"caller"`
	MaxEdition uint64 `json:"max_edition"`
}

// MintRequest mints one edition eagerly against an authority signature.
type MintRequest struct {
	To                 string `json:"to"`
	TokenID            string `json:"token_id"`
	URI                string `json:"uri,omitempty"`
	AuthoritySignature string `json:"authority_signature"`
}

// MintBatchRequest mints several editions under one authority signature.
type MintBatchRequest struct {
	To                 string   `json:"to"`
	TokenIDs           []string `json:"token_ids"`
	URIs               []string `json:"uris,omitempty"`
	AuthoritySignature string   `json:"authority_signature"`
}

// SubCollection is one edition range inside a collection.
type SubCollection struct {
	ID         uint64 `json:"id"`
	MaxEdition uint64 `json:"max_edition"`
	MintedAmt  uint64 `json:"minted_amt"`
}

// Collection is a deployed collection namespace.
type Collection struct {
	Object         string          `json:"object"`
	ID             string          `json:"id"`
	Address        string          `json:"address"`
	Creator        string          `json:"creator"`
	Admin          string          `json:"admin"`
	Name           string          `json:"name"`
	BaseURI        string          `json:"base_uri"`
	Registry       string          `json:"registry"`
	SubCollections []SubCollection `json:"sub_collections"`
}

// CollectionList wraps the collections listing endpoint.
type CollectionList struct {
	Object string       `json:"object"`
	Data   []Collection `json:"data"`
}

// Token is a minted edition.
type Token struct {
	Object       string `json:"object"`
	TokenID      string `json:"token_id"`
	CollectionID string `json:"collection_id"`
	Owner        string `json:"owner"`
	URI          string `json:"uri"`
}

// CreateCollection deploys a collection namespace from a creation voucher.
func (c *Client) CreateCollection(req *CreateCollectionRequest) (*Collection, error) {
	var out Collection
	if _, err := c.send(http.MethodPost, "/api/v1/collections", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetCollection fetches a collection by its decimal collection id.
func (c *Client) GetCollection(collectionID string) (*Collection, error) {
	var out Collection
	if _, err := c.get("/api/v1/collections/"+collectionID, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListCollections returns every deployed collection.
func (c *Client) ListCollections() ([]Collection, error) {
	var out CollectionList
	if _, err := c.get("/api/v1/collections", nil, &out); err != nil {
		return nil, err
	}
	return out.Data, nil
}

// AddSubCollection opens a new edition range on the collection. The caller
// must be the collection creator.
func (c *Client) AddSubCollection(collectionID string, req *AddSubCollectionRequest) (*SubCollection, error) {
	var out SubCollection
	if _, err := c.send(http.MethodPost, "/api/v1/collections/"+collectionID+"/subcollections", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetToken fetches a minted edition by its composite token id.
func (c *Client) GetToken(tokenID string) (*Token, error) {
	var out Token
	if _, err := c.get("/api/v1/tokens/"+tokenID, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Mint mints one edition with an authority signature, outside any sale.
func (c *Client) Mint(req *MintRequest) (*Token, error) {
	var out Token
	if _, err := c.send(http.MethodPost, "/api/v1/mint", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// MintBatch mints several editions under one authority signature.
func (c *Client) MintBatch(req *MintBatchRequest) error {
	var out SuccessResponse
	_, err := c.send(http.MethodPost, "/api/v1/mint/batch", req, &out)
	return err
}
