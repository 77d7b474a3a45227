package quota

import (
	"context"
	"time"

	"github.com/golang-sql/civil"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/pkg/errors"
	db "github.com/poly-pro/gas-station/internal/db"
	"go.uber.org/zap"
)

// TxPool is the subset of *pgxpool.Pool the Postgres store needs.
type TxPool interface {
	db.DBTX
	Begin(ctx context.Context) (pgx.Tx, error)
}

// txFunc runs fn with queries bound to a single transaction, committing when
// fn returns nil and rolling back otherwise.
type txFunc func(ctx context.Context, fn func(q db.Querier) error) error

// PostgresStore implements Store on top of the generated queries.
type PostgresStore struct {
	queries db.Querier
	inTx    txFunc
	logger  *zap.Logger
}

// NewPostgresStore creates a Store backed by a pgx pool.
func NewPostgresStore(pool TxPool, logger *zap.Logger) *PostgresStore {
	queries := db.New(pool)
	return &PostgresStore{
		queries: queries,
		inTx: func(ctx context.Context, fn func(q db.Querier) error) error {
			return pgx.BeginFunc(ctx, pool, func(tx pgx.Tx) error {
				return fn(queries.WithTx(tx))
			})
		},
		logger: logger,
	}
}

func (s *PostgresStore) GetConfig(ctx context.Context) (GasStationConfig, error) {
	row, err := s.queries.GetGasStationConfig(ctx)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return GasStationConfig{}, ErrConfigNotFound
		}
		return GasStationConfig{}, errors.Wrap(err, "failed to load gas station config")
	}
	return GasStationConfig{
		FeePayerAddress:        row.FeePayerAddress,
		DefaultDailyLimit:      row.DefaultDailyLimit,
		MaxGasPerTransaction:   row.MaxGasPerTransaction,
		MaxTransactionsPerDay:  row.MaxTransactionsPerDay,
		WhitelistEnabled:       row.WhitelistEnabled,
		MarketWhitelistEnabled: row.MarketWhitelistEnabled,
		Enabled:                row.Enabled,
		EmergencyStop:          row.EmergencyStop,
	}, nil
}

func (s *PostgresStore) GetDailyQuota(ctx context.Context, userAddress string, date civil.Date) (UserDailyQuota, error) {
	row, err := s.queries.GetUserDailyQuota(ctx, db.GetUserDailyQuotaParams{
		UserAddress: userAddress,
		UsageDate:   toPgDate(date),
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return UserDailyQuota{UserAddress: userAddress, Date: date}, nil
		}
		return UserDailyQuota{}, errors.Wrapf(err, "failed to load daily quota for %s", userAddress)
	}
	return quotaFromRow(row), nil
}

func (s *PostgresStore) GetWhitelistEntry(ctx context.Context, userAddress string) (*WhitelistEntry, error) {
	row, err := s.queries.GetWhitelistEntry(ctx, userAddress)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, errors.Wrapf(err, "failed to load whitelist entry for %s", userAddress)
	}
	return &WhitelistEntry{
		UserAddress:      row.UserAddress,
		Active:           row.Active,
		CustomDailyLimit: int8Ptr(row.CustomDailyLimit),
		ExpiresAt:        timePtr(row.ExpiresAt),
	}, nil
}

func (s *PostgresStore) GetBlockedEntry(ctx context.Context, userAddress string) (*BlockedEntry, error) {
	row, err := s.queries.GetBlocklistEntry(ctx, userAddress)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, errors.Wrapf(err, "failed to load blocklist entry for %s", userAddress)
	}
	return &BlockedEntry{
		UserAddress:  row.UserAddress,
		BlockedUntil: timePtr(row.BlockedUntil),
		Reason:       row.Reason.String,
	}, nil
}

// RecordUsage inserts the record and increments the ledger in one transaction.
// The insert uses ON CONFLICT DO NOTHING, so a duplicate hash affects zero rows
// and the increment is skipped. For a duplicate the ledger row of the original
// recording is returned unchanged.
func (s *PostgresStore) RecordUsage(ctx context.Context, record SponsorshipRecord) (UsageResult, error) {
	if err := record.Validate(); err != nil {
		return UsageResult{}, err
	}

	var result UsageResult
	err := s.inTx(ctx, func(q db.Querier) error {
		inserted, err := q.InsertSponsorshipRecord(ctx, db.InsertSponsorshipRecordParams{
			TxHash:          record.TxHash,
			UserAddress:     record.UserAddress,
			MarketID:        record.MarketID,
			GasUnits:        record.GasUnits,
			GasUnitPrice:    record.GasUnitPrice,
			TotalFee:        record.TotalFee,
			FeePayerAddress: record.FeePayerAddress,
			ConfirmedAt:     pgtype.Timestamptz{Time: record.ConfirmedAt, Valid: true},
			BlockHeight:     record.BlockHeight,
		})
		if err != nil {
			return errors.Wrap(err, "failed to insert sponsorship record")
		}
		if inserted == 0 {
			result.Duplicate = true
			return s.loadRecordedQuota(ctx, q, record.TxHash, &result)
		}

		row, err := q.IncrementUserDailyQuota(ctx, db.IncrementUserDailyQuotaParams{
			UserAddress: record.UserAddress,
			UsageDate:   toPgDate(UsageDate(record.ConfirmedAt)),
			GasUsed:     record.TotalFee,
		})
		if err != nil {
			return errors.Wrap(err, "failed to increment daily quota")
		}
		result.Quota = quotaFromRow(row)
		return nil
	})
	if err != nil {
		return UsageResult{}, err
	}

	if result.Duplicate {
		s.logger.Debug("sponsorship record already exists", zap.String("tx_hash", record.TxHash))
	}
	return result, nil
}

// loadRecordedQuota reads the ledger row the existing record was counted against.
func (s *PostgresStore) loadRecordedQuota(ctx context.Context, q db.Querier, txHash string, result *UsageResult) error {
	existing, err := q.GetSponsorshipRecord(ctx, txHash)
	if err != nil {
		return errors.Wrapf(err, "failed to load existing sponsorship record %s", txHash)
	}
	date := UsageDate(existing.ConfirmedAt.Time)
	row, err := q.GetUserDailyQuota(ctx, db.GetUserDailyQuotaParams{
		UserAddress: existing.UserAddress,
		UsageDate:   toPgDate(date),
	})
	if err != nil {
		return errors.Wrapf(err, "failed to load daily quota for %s", existing.UserAddress)
	}
	result.Quota = quotaFromRow(row)
	return nil
}

func quotaFromRow(row db.UserDailyQuotum) UserDailyQuota {
	q := UserDailyQuota{
		UserAddress:        row.UserAddress,
		Date:               civil.DateOf(row.UsageDate.Time),
		GasUsed:            row.GasUsed,
		TransactionCount:   row.TransactionCount,
		DailyLimitOverride: int8Ptr(row.DailyLimitOverride),
	}
	if row.TransactionLimitOverride.Valid {
		v := row.TransactionLimitOverride.Int32
		q.TransactionLimitOverride = &v
	}
	return q
}

func toPgDate(d civil.Date) pgtype.Date {
	return pgtype.Date{Time: d.In(time.UTC), Valid: true}
}

func int8Ptr(v pgtype.Int8) *int64 {
	if !v.Valid {
		return nil
	}
	out := v.Int64
	return &out
}

func timePtr(v pgtype.Timestamptz) *time.Time {
	if !v.Valid {
		return nil
	}
	out := v.Time
	return &out
}
