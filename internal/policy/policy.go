/**
 * @description
 * This package decides whether a proposed transaction may be sponsored. It is a
 * pure function over a Snapshot of configuration and per-user ledger state: no I/O,
 * no mutation, safe to call speculatively (for example to render quota in the UI).
 *
 * Evaluation order is fixed and short-circuits at the first failing check so that
 * reason codes are deterministic:
 *  1. station enabled and not emergency-stopped
 *  2. user not blocked
 *  3. user whitelisted, when the whitelist is enabled
 *  4. market sponsorable, when the market whitelist is enabled
 *  5. daily quota headroom
 *  6. per-transaction ceiling
 *  7. approve
 * The optional daily transaction-count limit is checked after step 6.
 */

package policy

import (
	"errors"
	"time"

	"github.com/poly-pro/gas-station/internal/quota"
)

// Reason is a machine-readable denial code.
type Reason string

const (
	ReasonStationDisabled               Reason = "StationDisabled"
	ReasonEmergencyStop                 Reason = "EmergencyStop"
	ReasonUserBlocked                   Reason = "UserBlocked"
	ReasonUserNotWhitelisted            Reason = "UserNotWhitelisted"
	ReasonMarketNotSponsorable          Reason = "MarketNotSponsorable"
	ReasonDailyQuotaExceeded            Reason = "DailyQuotaExceeded"
	ReasonPerTransactionLimitExceeded   Reason = "PerTransactionLimitExceeded"
	ReasonDailyTransactionLimitExceeded Reason = "DailyTransactionLimitExceeded"

	// Reasons produced by the coordinator rather than Evaluate.
	ReasonMarketNotActive  Reason = "MarketNotActive"
	ReasonQuotaCheckFailed Reason = "QuotaCheckFailed"
)

// ErrInvalidRequest is returned for inputs Evaluate cannot judge.
var ErrInvalidRequest = errors.New("invalid sponsorship request")

// Snapshot is the state Evaluate reads. Whitelist and Blocked are nil when the
// user has no entry.
type Snapshot struct {
	Config    quota.GasStationConfig
	Daily     quota.UserDailyQuota
	Whitelist *quota.WhitelistEntry
	Blocked   *quota.BlockedEntry
	Now       time.Time
}

// Request is one proposed sponsorship.
type Request struct {
	UserAddress       string
	EstimatedGasCost  int64
	MarketSponsorable bool
}

// Validate rejects requests Evaluate cannot judge.
func (r Request) Validate() error {
	if r.UserAddress == "" {
		return errors.Join(ErrInvalidRequest, errors.New("user address is required"))
	}
	if r.EstimatedGasCost <= 0 {
		return errors.Join(ErrInvalidRequest, errors.New("estimated gas cost must be positive"))
	}
	return nil
}

// Decision is either an approval or a denial. The zero value is not meaningful.
type Decision struct {
	Approved            bool   `json:"approved"`
	Reason              Reason `json:"reason,omitempty"`
	EffectiveDailyLimit int64  `json:"effectiveDailyLimit"`
	GasUsedToday        int64  `json:"gasUsedToday"`
	RemainingQuotaAfter int64  `json:"remainingQuotaAfter"`
}

// Approve builds an approval.
func Approve(limit, used, cost int64) Decision {
	return Decision{
		Approved:            true,
		EffectiveDailyLimit: limit,
		GasUsedToday:        used,
		RemainingQuotaAfter: limit - used - cost,
	}
}

// Deny builds a denial.
func Deny(reason Reason) Decision {
	return Decision{Reason: reason}
}

// Evaluate applies the sponsorship rules to req against snap.
func Evaluate(snap Snapshot, req Request) (Decision, error) {
	if err := req.Validate(); err != nil {
		return Decision{}, err
	}

	cfg := snap.Config
	if cfg.EmergencyStop {
		return Deny(ReasonEmergencyStop), nil
	}
	if !cfg.Enabled {
		return Deny(ReasonStationDisabled), nil
	}

	if snap.Blocked != nil && snap.Blocked.BlockedAt(snap.Now) {
		return Deny(ReasonUserBlocked), nil
	}

	if cfg.WhitelistEnabled && (snap.Whitelist == nil || !snap.Whitelist.ValidAt(snap.Now)) {
		return Deny(ReasonUserNotWhitelisted), nil
	}

	if cfg.MarketWhitelistEnabled && !req.MarketSponsorable {
		return Deny(ReasonMarketNotSponsorable), nil
	}

	limit := EffectiveDailyLimit(snap)
	used := snap.Daily.GasUsed
	if req.EstimatedGasCost > limit-used {
		d := Deny(ReasonDailyQuotaExceeded)
		d.EffectiveDailyLimit, d.GasUsedToday = limit, used
		return d, nil
	}

	if req.EstimatedGasCost > cfg.MaxGasPerTransaction {
		d := Deny(ReasonPerTransactionLimitExceeded)
		d.EffectiveDailyLimit, d.GasUsedToday = limit, used
		return d, nil
	}

	if maxTx := EffectiveTransactionLimit(snap); maxTx > 0 && snap.Daily.TransactionCount >= maxTx {
		d := Deny(ReasonDailyTransactionLimitExceeded)
		d.EffectiveDailyLimit, d.GasUsedToday = limit, used
		return d, nil
	}

	return Approve(limit, used, req.EstimatedGasCost), nil
}

// EffectiveDailyLimit picks the whitelist custom limit, then the per-user ledger
// override, then the global default. An expired or inactive whitelist entry
// does not contribute its custom limit.
func EffectiveDailyLimit(snap Snapshot) int64 {
	if w := snap.Whitelist; w != nil && w.CustomDailyLimit != nil && w.ValidAt(snap.Now) {
		return *w.CustomDailyLimit
	}
	if snap.Daily.DailyLimitOverride != nil {
		return *snap.Daily.DailyLimitOverride
	}
	return snap.Config.DefaultDailyLimit
}

// EffectiveTransactionLimit returns the daily transaction cap; zero means unlimited.
func EffectiveTransactionLimit(snap Snapshot) int32 {
	if snap.Daily.TransactionLimitOverride != nil {
		return *snap.Daily.TransactionLimitOverride
	}
	return snap.Config.MaxTransactionsPerDay
}

// Remaining returns today's unused quota, never negative.
func Remaining(snap Snapshot) int64 {
	r := EffectiveDailyLimit(snap) - snap.Daily.GasUsed
	if r < 0 {
		return 0
	}
	return r
}
