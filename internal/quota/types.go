/**
 * @description
 * This package is the QuotaStore: persistent bookkeeping for gas sponsorship.
 * It owns the gas station configuration, the per-user/per-day usage ledger,
 * the whitelist and blocklist, and the append-only sponsorship records.
 *
 * Key features:
 * - Storage port: the `Store` interface is the only thing the rest of the service
 *   depends on, so policy code is testable without a database.
 * - Idempotent recording: `RecordUsage` is keyed by transaction hash; a second
 *   recording of the same hash is reported as a duplicate and changes nothing.
 * - No business rules: eligibility decisions live in the policy package.
 *
 * @notes
 * - Usage is bucketed by UTC calendar date. A new day simply uses a new key;
 *   nothing in this package resets counters.
 */

package quota

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-sql/civil"
)

var (
	// ErrConfigNotFound is returned when the gas station has never been configured.
	ErrConfigNotFound = errors.New("gas station config not found")
	// ErrInvalidRecord is returned when a sponsorship record fails validation.
	ErrInvalidRecord = errors.New("invalid sponsorship record")
)

// GasStationConfig is the process-wide sponsorship configuration.
type GasStationConfig struct {
	FeePayerAddress        string `json:"fee_payer_address"`
	DefaultDailyLimit      int64  `json:"default_daily_limit"`
	MaxGasPerTransaction   int64  `json:"max_gas_per_transaction"`
	MaxTransactionsPerDay  int32  `json:"max_transactions_per_day"`
	WhitelistEnabled       bool   `json:"whitelist_enabled"`
	MarketWhitelistEnabled bool   `json:"market_whitelist_enabled"`
	Enabled                bool   `json:"enabled"`
	EmergencyStop          bool   `json:"emergency_stop"`
}

// Active reports whether sponsorship is switched on. EmergencyStop wins over Enabled.
func (c GasStationConfig) Active() bool {
	return c.Enabled && !c.EmergencyStop
}

// UserDailyQuota is one user's usage for one calendar day.
type UserDailyQuota struct {
	UserAddress              string     `json:"user_address"`
	Date                     civil.Date `json:"date"`
	GasUsed                  int64      `json:"gas_used"`
	TransactionCount         int32      `json:"transaction_count"`
	DailyLimitOverride       *int64     `json:"daily_limit_override,omitempty"`
	TransactionLimitOverride *int32     `json:"transaction_limit_override,omitempty"`
}

// WhitelistEntry grants a user access when the whitelist is enabled.
type WhitelistEntry struct {
	UserAddress      string     `json:"user_address"`
	Active           bool       `json:"active"`
	CustomDailyLimit *int64     `json:"custom_daily_limit,omitempty"`
	ExpiresAt        *time.Time `json:"expires_at,omitempty"`
}

// ValidAt reports whether the entry is active and unexpired at now.
func (w WhitelistEntry) ValidAt(now time.Time) bool {
	if !w.Active {
		return false
	}
	return w.ExpiresAt == nil || now.Before(*w.ExpiresAt)
}

// BlockedEntry denies a user. A nil BlockedUntil is a permanent block.
type BlockedEntry struct {
	UserAddress  string     `json:"user_address"`
	BlockedUntil *time.Time `json:"blocked_until,omitempty"`
	Reason       string     `json:"reason,omitempty"`
}

// BlockedAt reports whether the block is still in force at now.
func (b BlockedEntry) BlockedAt(now time.Time) bool {
	return b.BlockedUntil == nil || now.Before(*b.BlockedUntil)
}

// SponsorshipRecord is one confirmed sponsored transaction.
type SponsorshipRecord struct {
	TxHash          string    `json:"tx_hash"`
	UserAddress     string    `json:"user_address"`
	MarketID        string    `json:"market_id"`
	GasUnits        int64     `json:"gas_units"`
	GasUnitPrice    int64     `json:"gas_unit_price"`
	TotalFee        int64     `json:"total_fee"`
	FeePayerAddress string    `json:"fee_payer_address"`
	ConfirmedAt     time.Time `json:"confirmed_at"`
	BlockHeight     int64     `json:"block_height"`
}

// Validate checks the record's invariants before it is persisted.
func (r SponsorshipRecord) Validate() error {
	switch {
	case r.TxHash == "":
		return fmt.Errorf("%w: tx hash is required", ErrInvalidRecord)
	case r.UserAddress == "":
		return fmt.Errorf("%w: user address is required", ErrInvalidRecord)
	case r.GasUnits < 0 || r.GasUnitPrice < 0:
		return fmt.Errorf("%w: gas figures must be non-negative", ErrInvalidRecord)
	case r.TotalFee != r.GasUnits*r.GasUnitPrice:
		return fmt.Errorf("%w: total fee must equal units times price", ErrInvalidRecord)
	case r.ConfirmedAt.IsZero():
		return fmt.Errorf("%w: confirmation time is required", ErrInvalidRecord)
	}
	return nil
}

// UsageResult reports the outcome of RecordUsage.
type UsageResult struct {
	// Duplicate is true when the transaction hash had already been recorded.
	Duplicate bool
	// Quota is the user's ledger row after the call. For duplicates it is the
	// row the original recording was counted against.
	Quota UserDailyQuota
}

// Store is the storage port for all sponsorship state.
type Store interface {
	// GetConfig returns ErrConfigNotFound when no configuration row exists.
	GetConfig(ctx context.Context) (GasStationConfig, error)
	// GetDailyQuota returns a zero-usage row when the user has no usage that day.
	GetDailyQuota(ctx context.Context, userAddress string, date civil.Date) (UserDailyQuota, error)
	// GetWhitelistEntry returns nil when the user is not listed.
	GetWhitelistEntry(ctx context.Context, userAddress string) (*WhitelistEntry, error)
	// GetBlockedEntry returns nil when the user is not listed.
	GetBlockedEntry(ctx context.Context, userAddress string) (*BlockedEntry, error)
	// RecordUsage appends the record and adds its TotalFee to the user's usage for
	// the record's confirmation date, atomically. Duplicate hashes are no-ops.
	RecordUsage(ctx context.Context, record SponsorshipRecord) (UsageResult, error)
}

// UsageDate returns the ledger date for an instant.
func UsageDate(t time.Time) civil.Date {
	return civil.DateOf(t.UTC())
}
