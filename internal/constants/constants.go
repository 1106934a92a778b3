package constants

// Deployment stages
const (
	StageProd  = "prod"
	StageDev   = "dev"
	StageLocal = "local"
	StageTest  = "test"
)

// Asset type codes carried in vouchers and contract registrations
const (
	AssetTypeERC721  = uint16(721)
	AssetTypeERC1155 = uint16(1155)
)

// Trade type tags stamped on settlement records
const (
	TradeRedeemNative  = "REDEEM_NATIVE"
	TradeRedeemERC20   = "REDEEM_ERC20"
	TradeBuy721Native  = "BUY_721_NATIVE"
	TradeBuy721ERC20   = "BUY_721_ERC20"
	TradeBuy1155Native = "BUY_1155_NATIVE"
	TradeBuy1155ERC20  = "BUY_1155_ERC20"
)

// Store drivers
const (
	StoreMemory   = "memory"
	StorePebble   = "pebble"
	StorePostgres = "postgres"
)

// Admin auth
const (
	AdminRole      = "admin"
	AdminTokenType = "settlement-admin"
)
