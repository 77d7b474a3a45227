package db

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

const getGasStationConfig = `-- name: GetGasStationConfig :one
SELECT id, fee_payer_address, default_daily_limit, max_gas_per_transaction, max_transactions_per_day,
       whitelist_enabled, market_whitelist_enabled, enabled, emergency_stop, updated_at
FROM gas_station_config
WHERE id = 1
`

func (q *Queries) GetGasStationConfig(ctx context.Context) (GasStationConfig, error) {
	row := q.db.QueryRow(ctx, getGasStationConfig)
	var i GasStationConfig
	err := row.Scan(
		&i.ID,
		&i.FeePayerAddress,
		&i.DefaultDailyLimit,
		&i.MaxGasPerTransaction,
		&i.MaxTransactionsPerDay,
		&i.WhitelistEnabled,
		&i.MarketWhitelistEnabled,
		&i.Enabled,
		&i.EmergencyStop,
		&i.UpdatedAt,
	)
	return i, err
}

const getUserDailyQuota = `-- name: GetUserDailyQuota :one
SELECT user_address, usage_date, gas_used, transaction_count, daily_limit_override,
       transaction_limit_override, updated_at
FROM user_daily_quota
WHERE user_address = $1 AND usage_date = $2
`

type GetUserDailyQuotaParams struct {
	UserAddress string      `json:"user_address"`
	UsageDate   pgtype.Date `json:"usage_date"`
}

func (q *Queries) GetUserDailyQuota(ctx context.Context, arg GetUserDailyQuotaParams) (UserDailyQuotum, error) {
	row := q.db.QueryRow(ctx, getUserDailyQuota, arg.UserAddress, arg.UsageDate)
	var i UserDailyQuotum
	err := row.Scan(
		&i.UserAddress,
		&i.UsageDate,
		&i.GasUsed,
		&i.TransactionCount,
		&i.DailyLimitOverride,
		&i.TransactionLimitOverride,
		&i.UpdatedAt,
	)
	return i, err
}

const getWhitelistEntry = `-- name: GetWhitelistEntry :one
SELECT user_address, active, custom_daily_limit, expires_at, created_at
FROM gas_whitelist
WHERE user_address = $1
`

func (q *Queries) GetWhitelistEntry(ctx context.Context, userAddress string) (GasWhitelist, error) {
	row := q.db.QueryRow(ctx, getWhitelistEntry, userAddress)
	var i GasWhitelist
	err := row.Scan(
		&i.UserAddress,
		&i.Active,
		&i.CustomDailyLimit,
		&i.ExpiresAt,
		&i.CreatedAt,
	)
	return i, err
}

const getBlocklistEntry = `-- name: GetBlocklistEntry :one
SELECT user_address, blocked_until, reason, created_at
FROM gas_blocklist
WHERE user_address = $1
`

func (q *Queries) GetBlocklistEntry(ctx context.Context, userAddress string) (GasBlocklist, error) {
	row := q.db.QueryRow(ctx, getBlocklistEntry, userAddress)
	var i GasBlocklist
	err := row.Scan(
		&i.UserAddress,
		&i.BlockedUntil,
		&i.Reason,
		&i.CreatedAt,
	)
	return i, err
}

const getSponsorshipRecord = `-- name: GetSponsorshipRecord :one
SELECT tx_hash, user_address, market_id, gas_units, gas_unit_price, total_fee,
       fee_payer_address, confirmed_at, block_height
FROM sponsorship_records
WHERE tx_hash = $1
`

func (q *Queries) GetSponsorshipRecord(ctx context.Context, txHash string) (SponsorshipRecord, error) {
	row := q.db.QueryRow(ctx, getSponsorshipRecord, txHash)
	var i SponsorshipRecord
	err := row.Scan(
		&i.TxHash,
		&i.UserAddress,
		&i.MarketID,
		&i.GasUnits,
		&i.GasUnitPrice,
		&i.TotalFee,
		&i.FeePayerAddress,
		&i.ConfirmedAt,
		&i.BlockHeight,
	)
	return i, err
}

const insertSponsorshipRecord = `-- name: InsertSponsorshipRecord :execrows
INSERT INTO sponsorship_records (
    tx_hash, user_address, market_id, gas_units, gas_unit_price, total_fee,
    fee_payer_address, confirmed_at, block_height
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
ON CONFLICT (tx_hash) DO NOTHING
`

type InsertSponsorshipRecordParams struct {
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

func (q *Queries) InsertSponsorshipRecord(ctx context.Context, arg InsertSponsorshipRecordParams) (int64, error) {
	result, err := q.db.Exec(ctx, insertSponsorshipRecord,
		arg.TxHash,
		arg.UserAddress,
		arg.MarketID,
		arg.GasUnits,
		arg.GasUnitPrice,
		arg.TotalFee,
		arg.FeePayerAddress,
		arg.ConfirmedAt,
		arg.BlockHeight,
	)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}

const incrementUserDailyQuota = `-- name: IncrementUserDailyQuota :one
INSERT INTO user_daily_quota (user_address, usage_date, gas_used, transaction_count)
VALUES ($1, $2, $3, 1)
ON CONFLICT (user_address, usage_date) DO UPDATE
SET gas_used          = user_daily_quota.gas_used + EXCLUDED.gas_used,
    transaction_count = user_daily_quota.transaction_count + 1,
    updated_at        = now()
RETURNING user_address, usage_date, gas_used, transaction_count, daily_limit_override,
          transaction_limit_override, updated_at
`

type IncrementUserDailyQuotaParams struct {
	UserAddress string      `json:"user_address"`
	UsageDate   pgtype.Date `json:"usage_date"`
	GasUsed     int64       `json:"gas_used"`
}

func (q *Queries) IncrementUserDailyQuota(ctx context.Context, arg IncrementUserDailyQuotaParams) (UserDailyQuotum, error) {
	row := q.db.QueryRow(ctx, incrementUserDailyQuota, arg.UserAddress, arg.UsageDate, arg.GasUsed)
	var i UserDailyQuotum
	err := row.Scan(
		&i.UserAddress,
		&i.UsageDate,
		&i.GasUsed,
		&i.TransactionCount,
		&i.DailyLimitOverride,
		&i.TransactionLimitOverride,
		&i.UpdatedAt,
	)
	return i, err
}
