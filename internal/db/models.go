package db

import (
	"github.com/jackc/pgx/v5/pgtype"
)

type GasStationConfig struct {
	ID                     int16              `json:"id"`
	FeePayerAddress        string             `json:"fee_payer_address"`
	DefaultDailyLimit      int64              `json:"default_daily_limit"`
	MaxGasPerTransaction   int64              `json:"max_gas_per_transaction"`
	MaxTransactionsPerDay  int32              `json:"max_transactions_per_day"`
	WhitelistEnabled       bool               `json:"whitelist_enabled"`
	MarketWhitelistEnabled bool               `json:"market_whitelist_enabled"`
	Enabled                bool               `json:"enabled"`
	EmergencyStop          bool               `json:"emergency_stop"`
	UpdatedAt              pgtype.Timestamptz `json:"updated_at"`
}

type UserDailyQuotum struct {
	UserAddress              string             `json:"user_address"`
	UsageDate                pgtype.Date        `json:"usage_date"`
	GasUsed                  int64              `json:"gas_used"`
	TransactionCount         int32              `json:"transaction_count"`
	DailyLimitOverride       pgtype.Int8        `json:"daily_limit_override"`
	TransactionLimitOverride pgtype.Int4        `json:"transaction_limit_override"`
	UpdatedAt                pgtype.Timestamptz `json:"updated_at"`
}

type GasWhitelist struct {
	UserAddress      string             `json:"user_address"`
	Active           bool               `json:"active"`
	CustomDailyLimit pgtype.Int8        `json:"custom_daily_limit"`
	ExpiresAt        pgtype.Timestamptz `json:"expires_at"`
	CreatedAt        pgtype.Timestamptz `json:"created_at"`
}

type GasBlocklist struct {
	UserAddress  string             `json:"user_address"`
	BlockedUntil pgtype.Timestamptz `json:"blocked_until"`
	Reason       pgtype.Text        `json:"reason"`
	CreatedAt    pgtype.Timestamptz `json:"created_at"`
}

type SponsorshipRecord struct {
	TxHash          string             `json:"tx_hash"`
	UserAddress     string             `json:"user_address"`
	MarketID        string             `json:"market_id"`
	GasUnits        int64              `json:"gas_units"`
	GasUnitPrice    int64              `json:"gas_unit_price"`
	TotalFee        int64              `json:"total_fee"`
	FeePayerAddress string             `json:"fee_payer_address"`
	ConfirmedAt     pgtype.Timestamptz `json:"confirmed_at"`
	BlockHeight     int64              `json:"block_height"`
}
