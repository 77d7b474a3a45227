/**
 * @description
 * This service assembles the policy Snapshot for a user and runs the sponsorship
 * rules against it. It is the only place that turns storage failures into the
 * fail-closed `QuotaCheckFailed` denial.
 *
 * Key features:
 * - Parallel loads: configuration (through the bounded-staleness cache), today's
 *   ledger row, the whitelist entry and the blocklist entry are read concurrently.
 * - Speculative checks: `Check` and `Status` never mutate anything, so the UI can
 *   call them freely to render remaining quota.
 *
 * @dependencies
 * - golang.org/x/sync/errgroup: For the concurrent snapshot loads.
 * - go.uber.org/zap: For structured logging.
 */

package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/golang-sql/civil"
	"github.com/poly-pro/gas-station/internal/policy"
	"github.com/poly-pro/gas-station/internal/quota"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// ConfigSource returns the current gas station configuration.
type ConfigSource interface {
	Get(ctx context.Context) (quota.GasStationConfig, error)
}

// QuotaStatus is a read-only view of a user's sponsorship allowance for today.
type QuotaStatus struct {
	UserAddress           string          `json:"userAddress"`
	Date                  civil.Date      `json:"date"`
	SponsorshipAvailable  bool            `json:"sponsorshipAvailable"`
	DailyLimit            int64           `json:"dailyLimit"`
	GasUsedToday          int64           `json:"gasUsedToday"`
	Remaining             int64           `json:"remaining"`
	TransactionsToday     int32           `json:"transactionsToday"`
	TransactionLimit      int32           `json:"transactionLimit"`
	MaxGasPerTransaction  int64           `json:"maxGasPerTransaction"`
	WouldApproveDefaultTx bool            `json:"wouldApproveDefaultTx"`
	Reason                policy.Reason   `json:"reason,omitempty"`
	Decision              policy.Decision `json:"-"`
}

// QuotaService loads policy snapshots and evaluates them.
type QuotaService struct {
	store  quota.Store
	config ConfigSource
	now    func() time.Time
	logger *zap.Logger
}

// NewQuotaService creates a new QuotaService. config is usually a *quota.ConfigCache.
func NewQuotaService(store quota.Store, config ConfigSource, logger *zap.Logger) *QuotaService {
	return &QuotaService{
		store:  store,
		config: config,
		now:    time.Now,
		logger: logger,
	}
}

// NormalizeAddress is the canonical ledger key for a wallet address.
func NormalizeAddress(address string) string {
	return strings.ToLower(strings.TrimSpace(address))
}

// Snapshot reads everything the policy needs for userAddress at the current instant.
func (s *QuotaService) Snapshot(ctx context.Context, userAddress string) (policy.Snapshot, error) {
	user := NormalizeAddress(userAddress)
	now := s.now().UTC()
	snap := policy.Snapshot{Now: now}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		cfg, err := s.config.Get(gctx)
		snap.Config = cfg
		return err
	})
	g.Go(func() error {
		daily, err := s.store.GetDailyQuota(gctx, user, quota.UsageDate(now))
		snap.Daily = daily
		return err
	})
	g.Go(func() error {
		entry, err := s.store.GetWhitelistEntry(gctx, user)
		snap.Whitelist = entry
		return err
	})
	g.Go(func() error {
		entry, err := s.store.GetBlockedEntry(gctx, user)
		snap.Blocked = entry
		return err
	})
	if err := g.Wait(); err != nil {
		return policy.Snapshot{}, err
	}
	return snap, nil
}

// Check evaluates a proposed sponsorship. Storage failures become a
// QuotaCheckFailed denial; only malformed requests return an error.
func (s *QuotaService) Check(ctx context.Context, userAddress string, estimatedGasCost int64, marketSponsorable bool) (policy.Decision, error) {
	req := policy.Request{
		UserAddress:       NormalizeAddress(userAddress),
		EstimatedGasCost:  estimatedGasCost,
		MarketSponsorable: marketSponsorable,
	}
	if err := req.Validate(); err != nil {
		return policy.Decision{}, err
	}

	snap, err := s.Snapshot(ctx, req.UserAddress)
	if err != nil {
		return s.failClosed(req.UserAddress, err), nil
	}

	decision, err := policy.Evaluate(snap, req)
	if err != nil {
		return policy.Decision{}, err
	}
	if !decision.Approved {
		s.logger.Info("sponsorship denied",
			zap.String("user_address", req.UserAddress),
			zap.String("reason", string(decision.Reason)),
			zap.Int64("estimated_gas_cost", estimatedGasCost),
			zap.Int64("gas_used_today", decision.GasUsedToday))
	}
	return decision, nil
}

// Status reports the user's allowance and whether a transaction costing
// defaultCost would be approved right now. A non-positive defaultCost means the
// largest transaction the station sponsors.
func (s *QuotaService) Status(ctx context.Context, userAddress string, defaultCost int64) (QuotaStatus, error) {
	user := NormalizeAddress(userAddress)
	status := QuotaStatus{UserAddress: user, Date: quota.UsageDate(s.now())}

	snap, err := s.Snapshot(ctx, user)
	if err != nil {
		d := s.failClosed(user, err)
		status.Reason, status.Decision = d.Reason, d
		return status, nil
	}

	status.Date = snap.Daily.Date
	if !status.Date.IsValid() {
		status.Date = quota.UsageDate(snap.Now)
	}
	status.SponsorshipAvailable = snap.Config.Active()
	status.DailyLimit = policy.EffectiveDailyLimit(snap)
	status.GasUsedToday = snap.Daily.GasUsed
	status.Remaining = policy.Remaining(snap)
	status.TransactionsToday = snap.Daily.TransactionCount
	status.TransactionLimit = policy.EffectiveTransactionLimit(snap)
	status.MaxGasPerTransaction = snap.Config.MaxGasPerTransaction

	cost := defaultCost
	if cost <= 0 {
		cost = snap.Config.MaxGasPerTransaction
	}
	if cost > 0 {
		// market eligibility is unknown here, so assume the market is sponsorable
		d, err := policy.Evaluate(snap, policy.Request{UserAddress: user, EstimatedGasCost: cost, MarketSponsorable: true})
		if err != nil {
			return QuotaStatus{}, err
		}
		status.WouldApproveDefaultTx, status.Reason, status.Decision = d.Approved, d.Reason, d
	}
	return status, nil
}

// RecordUsage forwards a confirmed sponsorship to the store. Duplicates are not errors.
func (s *QuotaService) RecordUsage(ctx context.Context, record quota.SponsorshipRecord) (quota.UsageResult, error) {
	record.UserAddress = NormalizeAddress(record.UserAddress)
	res, err := s.store.RecordUsage(ctx, record)
	if err != nil {
		return quota.UsageResult{}, err
	}
	if res.Duplicate {
		s.logger.Debug("sponsorship already recorded", zap.String("tx_hash", record.TxHash))
	}
	return res, nil
}

func (s *QuotaService) failClosed(user string, err error) policy.Decision {
	if errors.Is(err, quota.ErrConfigNotFound) {
		s.logger.Warn("gas station is not configured, treating as disabled", zap.String("user_address", user))
		return policy.Deny(policy.ReasonStationDisabled)
	}
	s.logger.Error("quota check failed", zap.Error(err), zap.String("user_address", user))
	return policy.Deny(policy.ReasonQuotaCheckFailed)
}
