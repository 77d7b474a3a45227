package db

import (
	"context"
)

type Querier interface {
	GetGasStationConfig(ctx context.Context) (GasStationConfig, error)
	GetUserDailyQuota(ctx context.Context, arg GetUserDailyQuotaParams) (UserDailyQuotum, error)
	GetWhitelistEntry(ctx context.Context, userAddress string) (GasWhitelist, error)
	GetBlocklistEntry(ctx context.Context, userAddress string) (GasBlocklist, error)
	GetSponsorshipRecord(ctx context.Context, txHash string) (SponsorshipRecord, error)
	InsertSponsorshipRecord(ctx context.Context, arg InsertSponsorshipRecordParams) (int64, error)
	IncrementUserDailyQuota(ctx context.Context, arg IncrementUserDailyQuotaParams) (UserDailyQuotum, error)
}

var _ Querier = (*Queries)(nil)
