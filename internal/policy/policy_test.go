package policy

import (
	"testing"
	"time"

	"github.com/poly-pro/gas-station/internal/quota"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const userA = "0x00000000000000000000000000000000000000a1"

var now = time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

func baseSnapshot() Snapshot {
	return Snapshot{
		Config: quota.GasStationConfig{
			FeePayerAddress:      "0x00000000000000000000000000000000000000fe",
			DefaultDailyLimit:    5_000_000_000,
			MaxGasPerTransaction: 100_000_000,
			Enabled:              true,
		},
		Daily: quota.UserDailyQuota{UserAddress: userA, Date: quota.UsageDate(now)},
		Now:   now,
	}
}

func int64Ptr(v int64) *int64 { return &v }
func int32Ptr(v int32) *int32 { return &v }
func timePtr(t time.Time) *time.Time { return &t }

func TestEvaluate_Scenarios(t *testing.T) {
	tests := []struct {
		name       string
		mutate     func(*Snapshot)
		cost       int64
		sponsor    bool
		wantReason Reason
		wantRemain int64
	}{
		{
			name:       "fresh user is approved",
			cost:       100_000_000,
			sponsor:    true,
			wantRemain: 4_900_000_000,
		},
		{
			name:       "nearly exhausted quota is denied",
			mutate:     func(s *Snapshot) { s.Daily.GasUsed = 4_950_000_000 },
			cost:       100_000_000,
			sponsor:    true,
			wantReason: ReasonDailyQuotaExceeded,
		},
		{
			name: "whitelist checked before quota arithmetic",
			mutate: func(s *Snapshot) {
				s.Config.WhitelistEnabled = true
				s.Daily.GasUsed = 9_999_999_999
			},
			cost:       100_000_000,
			sponsor:    true,
			wantReason: ReasonUserNotWhitelisted,
		},
		{
			name:       "station disabled",
			mutate:     func(s *Snapshot) { s.Config.Enabled = false },
			cost:       1,
			sponsor:    true,
			wantReason: ReasonStationDisabled,
		},
		{
			name:       "emergency stop overrides enabled",
			mutate:     func(s *Snapshot) { s.Config.EmergencyStop = true },
			cost:       1,
			sponsor:    true,
			wantReason: ReasonEmergencyStop,
		},
		{
			name: "emergency stop reported when also disabled",
			mutate: func(s *Snapshot) {
				s.Config.Enabled = false
				s.Config.EmergencyStop = true
			},
			cost:       1,
			sponsor:    true,
			wantReason: ReasonEmergencyStop,
		},
		{
			name:       "permanent block",
			mutate:     func(s *Snapshot) { s.Blocked = &quota.BlockedEntry{UserAddress: userA} },
			cost:       1,
			sponsor:    true,
			wantReason: ReasonUserBlocked,
		},
		{
			name: "future block",
			mutate: func(s *Snapshot) {
				s.Blocked = &quota.BlockedEntry{UserAddress: userA, BlockedUntil: timePtr(now.Add(time.Hour))}
			},
			cost:       1,
			sponsor:    true,
			wantReason: ReasonUserBlocked,
		},
		{
			name: "expired block falls through to later rules",
			mutate: func(s *Snapshot) {
				s.Blocked = &quota.BlockedEntry{UserAddress: userA, BlockedUntil: timePtr(now.Add(-time.Second))}
				s.Config.MarketWhitelistEnabled = true
			},
			cost:       1,
			sponsor:    false,
			wantReason: ReasonMarketNotSponsorable,
		},
		{
			name: "expired whitelist entry",
			mutate: func(s *Snapshot) {
				s.Config.WhitelistEnabled = true
				s.Whitelist = &quota.WhitelistEntry{UserAddress: userA, Active: true, ExpiresAt: timePtr(now)}
			},
			cost:       1,
			sponsor:    true,
			wantReason: ReasonUserNotWhitelisted,
		},
		{
			name: "inactive whitelist entry",
			mutate: func(s *Snapshot) {
				s.Config.WhitelistEnabled = true
				s.Whitelist = &quota.WhitelistEntry{UserAddress: userA, Active: false}
			},
			cost:       1,
			sponsor:    true,
			wantReason: ReasonUserNotWhitelisted,
		},
		{
			name: "whitelisted user approved",
			mutate: func(s *Snapshot) {
				s.Config.WhitelistEnabled = true
				s.Whitelist = &quota.WhitelistEntry{UserAddress: userA, Active: true, ExpiresAt: timePtr(now.Add(time.Hour))}
			},
			cost:       1_000,
			sponsor:    true,
			wantRemain: 4_999_999_000,
		},
		{
			name:       "market flag ignored when market whitelist disabled",
			cost:       1_000,
			sponsor:    false,
			wantRemain: 4_999_999_000,
		},
		{
			name: "whitelist custom limit wins over ledger override",
			mutate: func(s *Snapshot) {
				s.Whitelist = &quota.WhitelistEntry{UserAddress: userA, Active: true, CustomDailyLimit: int64Ptr(200_000_000)}
				s.Daily.DailyLimitOverride = int64Ptr(10_000_000_000)
			},
			cost:       50_000_000,
			sponsor:    true,
			wantRemain: 150_000_000,
		},
		{
			name:       "ledger override wins over default",
			mutate:     func(s *Snapshot) { s.Daily.DailyLimitOverride = int64Ptr(150_000_000) },
			cost:       100_000_000,
			sponsor:    true,
			wantRemain: 50_000_000,
		},
		{
			name: "expired whitelist custom limit is ignored",
			mutate: func(s *Snapshot) {
				s.Whitelist = &quota.WhitelistEntry{
					UserAddress:      userA,
					Active:           true,
					CustomDailyLimit: int64Ptr(10),
					ExpiresAt:        timePtr(now.Add(-time.Hour)),
				}
			},
			cost:       100,
			sponsor:    true,
			wantRemain: 4_999_999_900,
		},
		{
			name: "daily quota checked before per-transaction limit",
			mutate: func(s *Snapshot) {
				s.Daily.GasUsed = 4_999_999_999
			},
			cost:       100_000_001,
			sponsor:    true,
			wantReason: ReasonDailyQuotaExceeded,
		},
		{
			name: "transaction count limit",
			mutate: func(s *Snapshot) {
				s.Config.MaxTransactionsPerDay = 3
				s.Daily.TransactionCount = 3
			},
			cost:       1,
			sponsor:    true,
			wantReason: ReasonDailyTransactionLimitExceeded,
		},
		{
			name: "per-user transaction override raises cap",
			mutate: func(s *Snapshot) {
				s.Config.MaxTransactionsPerDay = 3
				s.Daily.TransactionCount = 3
				s.Daily.TransactionLimitOverride = int32Ptr(10)
			},
			cost:       1,
			sponsor:    true,
			wantRemain: 4_999_999_999,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			snap := baseSnapshot()
			if tt.mutate != nil {
				tt.mutate(&snap)
			}
			d, err := Evaluate(snap, Request{UserAddress: userA, EstimatedGasCost: tt.cost, MarketSponsorable: tt.sponsor})
			require.NoError(t, err)

			if tt.wantReason != "" {
				assert.False(t, d.Approved)
				assert.Equal(t, tt.wantReason, d.Reason)
				return
			}
			assert.True(t, d.Approved, "denied with %s", d.Reason)
			assert.Empty(t, d.Reason)
			assert.Equal(t, tt.wantRemain, d.RemainingQuotaAfter)
		})
	}
}

func TestEvaluate_DisabledDeniesRegardlessOfQuota(t *testing.T) {
	for _, used := range []int64{0, 1, 4_999_999_999, 5_000_000_000, 7_000_000_000} {
		for _, cfg := range []struct{ enabled, stop bool }{{false, false}, {true, true}, {false, true}} {
			snap := baseSnapshot()
			snap.Daily.GasUsed = used
			snap.Config.Enabled = cfg.enabled
			snap.Config.EmergencyStop = cfg.stop

			d, err := Evaluate(snap, Request{UserAddress: userA, EstimatedGasCost: 1, MarketSponsorable: true})
			require.NoError(t, err)
			assert.False(t, d.Approved)
			assert.Contains(t, []Reason{ReasonStationDisabled, ReasonEmergencyStop}, d.Reason)
		}
	}
}

func TestEvaluate_DailyBoundary(t *testing.T) {
	for _, used := range []int64{0, 4_900_000_000, 4_999_999_999, 4_950_000_000} {
		snap := baseSnapshot()
		snap.Config.MaxGasPerTransaction = 5_000_000_000
		snap.Daily.GasUsed = used
		headroom := snap.Config.DefaultDailyLimit - used

		d, err := Evaluate(snap, Request{UserAddress: userA, EstimatedGasCost: headroom, MarketSponsorable: true})
		require.NoError(t, err)
		assert.True(t, d.Approved, "used=%d", used)
		assert.Zero(t, d.RemainingQuotaAfter)

		d, err = Evaluate(snap, Request{UserAddress: userA, EstimatedGasCost: headroom + 1, MarketSponsorable: true})
		require.NoError(t, err)
		assert.Equal(t, ReasonDailyQuotaExceeded, d.Reason, "used=%d", used)
	}
}

func TestEvaluate_PerTransactionLimit(t *testing.T) {
	for _, maxPerTx := range []int64{1, 21_000, 100_000_000} {
		snap := baseSnapshot()
		snap.Config.MaxGasPerTransaction = maxPerTx
		snap.Config.DefaultDailyLimit = 1 << 50

		d, err := Evaluate(snap, Request{UserAddress: userA, EstimatedGasCost: maxPerTx + 1, MarketSponsorable: true})
		require.NoError(t, err)
		assert.Equal(t, ReasonPerTransactionLimitExceeded, d.Reason)

		d, err = Evaluate(snap, Request{UserAddress: userA, EstimatedGasCost: maxPerTx, MarketSponsorable: true})
		require.NoError(t, err)
		assert.True(t, d.Approved)
	}
}

func TestEvaluate_OverdrawnLedgerDenies(t *testing.T) {
	snap := baseSnapshot()
	snap.Daily.GasUsed = 6_000_000_000

	d, err := Evaluate(snap, Request{UserAddress: userA, EstimatedGasCost: 1, MarketSponsorable: true})
	require.NoError(t, err)
	assert.Equal(t, ReasonDailyQuotaExceeded, d.Reason)
	assert.Zero(t, Remaining(snap))
}

func TestEvaluate_InvalidRequest(t *testing.T) {
	_, err := Evaluate(baseSnapshot(), Request{EstimatedGasCost: 1})
	assert.ErrorIs(t, err, ErrInvalidRequest)

	_, err = Evaluate(baseSnapshot(), Request{UserAddress: userA})
	assert.ErrorIs(t, err, ErrInvalidRequest)

	_, err = Evaluate(baseSnapshot(), Request{UserAddress: userA, EstimatedGasCost: -5})
	assert.ErrorIs(t, err, ErrInvalidRequest)
}

func TestEvaluate_DoesNotMutateSnapshot(t *testing.T) {
	snap := baseSnapshot()
	snap.Daily.GasUsed = 10
	before := snap

	_, err := Evaluate(snap, Request{UserAddress: userA, EstimatedGasCost: 5, MarketSponsorable: true})
	require.NoError(t, err)
	assert.Equal(t, before, snap)
}
