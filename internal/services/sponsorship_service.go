/**
 * @description
 * This service is the sponsorship coordinator. It runs the two-phase protocol that
 * turns a user's trade into a transaction the fee payer pays for.
 *
 * Key features:
 * - Prepare: validates the request, looks up the market, evaluates the quota
 *   policy, assembles the forwarder call and obtains the fee payer's co-signature.
 *   Nothing is reserved; a denial is returned as a value.
 * - Submit: checks that both signatures cover the same transaction, relays it,
 *   waits for finality and records the actual fee against the user's daily quota.
 * - Chain failures are returned as `SubmissionError` values so the caller can
 *   offer a self-paid fallback.
 *
 * @dependencies
 * - github.com/ethereum/go-ethereum: For addresses and signature checks.
 * - github.com/google/uuid: For sponsorship IDs.
 * - go.uber.org/zap: For structured logging.
 *
 * @notes
 * - The service keeps no state between the two phases. The fee payer's own
 *   signature on the returned transaction is what proves at submit time that
 *   this service prepared it.
 * - Usage is recorded only for confirmed transactions. A reverted or rejected
 *   submission costs the user no quota.
 */

package services

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
	"github.com/google/uuid"
	"github.com/poly-pro/gas-station/internal/chain"
	"github.com/poly-pro/gas-station/internal/feepayer"
	"github.com/poly-pro/gas-station/internal/market"
	"github.com/poly-pro/gas-station/internal/policy"
	"github.com/poly-pro/gas-station/internal/quota"
	"go.uber.org/zap"
)

// gasPriceHeadroomPercent is applied to the node's suggested price to derive MaxGasPrice.
const gasPriceHeadroomPercent = 150

var (
	// ErrInvalidSponsorship is returned for malformed prepare or submit requests.
	ErrInvalidSponsorship = errors.New("invalid sponsorship request")
	// ErrMarketAddressMismatch is returned when the caller's market address is not the market's.
	ErrMarketAddressMismatch = errors.New("market address does not match market")
	// ErrSponsorshipExpired is returned when a prepared transaction is submitted too late.
	ErrSponsorshipExpired = errors.New("prepared sponsorship has expired")
	// ErrSenderMismatch is returned when the transaction's sender is not the caller.
	ErrSenderMismatch = errors.New("transaction sender does not match caller")
	// ErrInvalidUserSignature is returned when the user signature does not recover to the sender.
	ErrInvalidUserSignature = errors.New("invalid user signature")
	// ErrFeePayerNotConfigured is returned when the signer is not the configured fee payer.
	ErrFeePayerNotConfigured = errors.New("signer is not the configured fee payer")
	// ErrNotPreparedHere is returned when the fee payer authorization was not issued by this service.
	ErrNotPreparedHere = errors.New("fee payer authorization is not valid for this transaction")
)

// Chain statuses carried by SubmissionError.
const (
	ChainStatusRejected = "rejected"
	ChainStatusReverted = "reverted"
	ChainStatusTimeout  = "timeout"
	ChainStatusUnknown  = "unknown"
)

// SubmissionError describes a sponsored transaction that did not confirm.
type SubmissionError struct {
	ChainStatus string      `json:"chainStatus"`
	TxHash      common.Hash `json:"transactionHash,omitempty"`
	Message     string      `json:"message,omitempty"`
}

func (e *SubmissionError) Error() string {
	if e.TxHash != (common.Hash{}) {
		return fmt.Sprintf("sponsored transaction %s %s: %s", e.TxHash.Hex(), e.ChainStatus, e.Message)
	}
	return fmt.Sprintf("sponsored transaction %s: %s", e.ChainStatus, e.Message)
}

// SponsorshipConfig holds the coordinator's chain parameters.
type SponsorshipConfig struct {
	ChainID         int64
	Forwarder       common.Address
	DefaultGasLimit uint64
	PreparedTxTTL   time.Duration
	FinalityTimeout time.Duration
}

// PrepareParams defines the parameters for preparing a sponsored call.
type PrepareParams struct {
	UserAddress string
	MarketID    string
	// MarketAddress is optional; when set it must equal the market's address.
	MarketAddress string
	// Method is a Solidity signature such as "buy(uint256,uint256)".
	Method string
	Args   []interface{}
	// GasLimit defaults to the configured limit when zero.
	GasLimit uint64
	// EstimatedGasCost replaces GasLimit * MaxGasPrice in the quota check only when larger.
	EstimatedGasCost int64
}

// PreparedSponsorship is everything the client needs to add the user signature.
type PreparedSponsorship struct {
	ID                  string                     `json:"sponsorshipId"`
	Transaction         chain.SponsoredTransaction `json:"transaction"`
	TypedData           apitypes.TypedData         `json:"typedData"`
	FeePayerAddress     common.Address             `json:"feePayerAddress"`
	FeePayerSignature   hexutil.Bytes              `json:"feePayerSignature"`
	Digest              common.Hash                `json:"digest"`
	EstimatedGasCost    int64                      `json:"estimatedGasCost"`
	RemainingQuotaAfter int64                      `json:"remainingQuotaAfter"`
	ExpiresAt           time.Time                  `json:"expiresAt"`
}

// PrepareResult is either a denial or a prepared sponsorship.
type PrepareResult struct {
	Decision policy.Decision
	Prepared *PreparedSponsorship
}

// SubmitParams carries a prepared transaction back with the user's signature.
type SubmitParams struct {
	UserAddress       string
	MarketID          string
	Transaction       chain.SponsoredTransaction
	FeePayerSignature []byte
	UserSignature     []byte
}

// SubmitResult describes a settled submission. Failure is set when the
// transaction did not confirm.
type SubmitResult struct {
	State           State
	TransactionHash common.Hash
	GasUnits        int64
	GasUnitPrice    int64
	TotalFee        int64
	BlockHeight     uint64
	GasUsedToday    int64
	Recorded        bool
	Failure         *SubmissionError
}

// SponsorshipService coordinates prepare and submit.
type SponsorshipService struct {
	quotas  *QuotaService
	markets market.Provider
	chain   chain.Client
	signer  feepayer.Signer
	events  EventPublisher
	cfg     SponsorshipConfig
	now     func() time.Time
	newID   func() string
	logger  *zap.Logger
}

// NewSponsorshipService creates a new coordinator. events may be nil.
func NewSponsorshipService(quotas *QuotaService, markets market.Provider, chainClient chain.Client, signer feepayer.Signer, events EventPublisher, cfg SponsorshipConfig, logger *zap.Logger) *SponsorshipService {
	if events == nil {
		events = nopPublisher{}
	}
	return &SponsorshipService{
		quotas:  quotas,
		markets: markets,
		chain:   chainClient,
		signer:  signer,
		events:  events,
		cfg:     cfg,
		now:     time.Now,
		newID:   uuid.NewString,
		logger:  logger,
	}
}

// FeePayerAddress is the sponsor account every prepared transaction names.
func (s *SponsorshipService) FeePayerAddress() common.Address {
	return s.signer.Address()
}

// verifyFeePayer checks that the signing key belongs to the account the station
// configuration names. A missing configuration is left to the policy, which
// reports it as StationDisabled.
func (s *SponsorshipService) verifyFeePayer(ctx context.Context) error {
	cfg, err := s.quotas.config.Get(ctx)
	if err != nil {
		return nil
	}
	if !common.IsHexAddress(cfg.FeePayerAddress) || common.HexToAddress(cfg.FeePayerAddress) != s.FeePayerAddress() {
		return fmt.Errorf("%w: configured %q, signer %s", ErrFeePayerNotConfigured, cfg.FeePayerAddress, s.FeePayerAddress().Hex())
	}
	return nil
}

/**
 * @description
 * Prepare runs phase one. It returns a denial in PrepareResult.Decision, or an
 * approved decision together with a co-signed transaction awaiting the user's
 * signature.
 *
 * @returns An error only for malformed requests and unexpected chain or signer failures.
 */
func (s *SponsorshipService) Prepare(ctx context.Context, params PrepareParams) (PrepareResult, error) {
	id := s.newID()
	att := newAttempt(id, StateRequested, s.logger)
	log := s.logger.With(zap.String("sponsorship_id", id), zap.String("user_address", params.UserAddress), zap.String("market_id", params.MarketID))

	// 1. Validate the request.
	if !common.IsHexAddress(params.UserAddress) {
		return PrepareResult{}, fmt.Errorf("%w: user address %q", ErrInvalidSponsorship, params.UserAddress)
	}
	if params.MarketID == "" {
		return PrepareResult{}, fmt.Errorf("%w: market id is required", ErrInvalidSponsorship)
	}
	if params.MarketAddress != "" && !common.IsHexAddress(params.MarketAddress) {
		return PrepareResult{}, fmt.Errorf("%w: market address %q", ErrInvalidSponsorship, params.MarketAddress)
	}
	if params.EstimatedGasCost < 0 {
		return PrepareResult{}, fmt.Errorf("%w: estimated gas cost must not be negative", ErrInvalidSponsorship)
	}
	sender := common.HexToAddress(params.UserAddress)
	callData, err := chain.EncodeCall(params.Method, params.Args...)
	if err != nil {
		return PrepareResult{}, fmt.Errorf("%w: %v", ErrInvalidSponsorship, err)
	}

	// 2. Look up the market. Lookup failures deny rather than approve.
	m, err := s.markets.GetMarket(ctx, params.MarketID)
	if errors.Is(err, market.ErrMarketNotFound) {
		return PrepareResult{}, err
	}
	if err != nil {
		log.Error("market lookup failed", zap.Error(err))
		return s.deny(att, log, policy.Deny(policy.ReasonQuotaCheckFailed))
	}
	if !common.IsHexAddress(m.Address) {
		log.Error("market has no valid contract address", zap.String("market_address", m.Address))
		return s.deny(att, log, policy.Deny(policy.ReasonQuotaCheckFailed))
	}
	target := common.HexToAddress(m.Address)
	if params.MarketAddress != "" && common.HexToAddress(params.MarketAddress) != target {
		return PrepareResult{}, fmt.Errorf("%w: got %s, market %s is %s", ErrMarketAddressMismatch, params.MarketAddress, m.ID, target.Hex())
	}
	if !m.Active() {
		return s.deny(att, log, policy.Deny(policy.ReasonMarketNotActive))
	}

	// 3. Evaluate the quota policy against the most the fee payer can be charged.
	if err := s.verifyFeePayer(ctx); err != nil {
		log.Error("fee payer is not the configured sponsor", zap.Error(err))
		return s.deny(att, log, policy.Deny(policy.ReasonStationDisabled))
	}
	gasLimit := params.GasLimit
	if gasLimit == 0 {
		gasLimit = s.cfg.DefaultGasLimit
	}
	maxGasPrice, err := s.maxGasPrice(ctx)
	if err != nil {
		log.Error("failed to fetch gas price", zap.Error(err))
		return PrepareResult{}, err
	}
	maxFee := new(big.Int).Mul(new(big.Int).SetUint64(gasLimit), maxGasPrice)
	if !maxFee.IsInt64() {
		return PrepareResult{}, fmt.Errorf("%w: maximum fee %s overflows the quota unit", ErrInvalidSponsorship, maxFee)
	}
	// A caller estimate can only raise the amount checked, never lower it.
	estimate := max(params.EstimatedGasCost, maxFee.Int64())

	decision, err := s.quotas.Check(ctx, params.UserAddress, estimate, m.GasSponsorshipEnabled)
	if err != nil {
		return PrepareResult{}, fmt.Errorf("%w: %v", ErrInvalidSponsorship, err)
	}
	if !decision.Approved {
		return s.deny(att, log, decision)
	}
	if err := att.advance(StateQuotaChecked); err != nil {
		return PrepareResult{}, err
	}

	// 4. Assemble the forwarder call.
	nonce, err := s.chain.PendingNonce(ctx, s.cfg.Forwarder, sender)
	if err != nil {
		log.Error("failed to fetch forwarder nonce", zap.Error(err))
		_ = att.advance(StateAbandoned)
		return PrepareResult{}, fmt.Errorf("failed to fetch forwarder nonce: %w", err)
	}
	expiresAt := s.now().Add(s.cfg.PreparedTxTTL).UTC().Truncate(time.Second)
	tx := chain.SponsoredTransaction{
		ChainID:     s.cfg.ChainID,
		Forwarder:   s.cfg.Forwarder,
		Sender:      sender,
		FeePayer:    s.signer.Address(),
		Target:      target,
		CallData:    callData,
		Nonce:       nonce,
		GasLimit:    gasLimit,
		MaxGasPrice: (*hexutil.Big)(maxGasPrice),
		ExpiresAt:   expiresAt.Unix(),
	}
	if err := tx.Validate(); err != nil {
		_ = att.advance(StateAbandoned)
		return PrepareResult{}, err
	}
	if err := att.advance(StateAssembled); err != nil {
		return PrepareResult{}, err
	}

	// 5. Co-sign as fee payer.
	auth, err := s.signer.Cosign(ctx, tx)
	if err != nil {
		log.Error("fee payer failed to co-sign", zap.Error(err))
		_ = att.advance(StateAbandoned)
		return PrepareResult{}, fmt.Errorf("fee payer failed to co-sign: %w", err)
	}
	if err := att.advance(StateAwaitingUserSignature); err != nil {
		return PrepareResult{}, err
	}

	log.Info("sponsorship prepared",
		zap.Uint64("nonce", nonce),
		zap.Int64("estimated_gas_cost", estimate),
		zap.Int64("remaining_quota_after", decision.RemainingQuotaAfter))

	return PrepareResult{
		Decision: decision,
		Prepared: &PreparedSponsorship{
			ID:                  id,
			Transaction:         tx,
			TypedData:           tx.TypedData(),
			FeePayerAddress:     auth.FeePayer,
			FeePayerSignature:   auth.Signature,
			Digest:              auth.Digest,
			EstimatedGasCost:    estimate,
			RemainingQuotaAfter: decision.RemainingQuotaAfter,
			ExpiresAt:           expiresAt,
		},
	}, nil
}

// maxGasPrice applies headroom to the node's suggested price.
func (s *SponsorshipService) maxGasPrice(ctx context.Context) (*big.Int, error) {
	suggested, err := s.chain.SuggestGasPrice(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch gas price: %w", err)
	}
	price := new(big.Int).Div(new(big.Int).Mul(suggested, big.NewInt(gasPriceHeadroomPercent)), big.NewInt(100))
	if price.Sign() <= 0 {
		price = big.NewInt(1)
	}
	return price, nil
}

func (s *SponsorshipService) deny(att *attempt, log *zap.Logger, decision policy.Decision) (PrepareResult, error) {
	if err := att.advance(StateDenied); err != nil {
		return PrepareResult{}, err
	}
	log.Info("sponsorship request denied", zap.String("reason", string(decision.Reason)))
	return PrepareResult{Decision: decision}, nil
}

/**
 * @description
 * Submit runs phase two: it relays the dual-signed transaction, waits for
 * finality and records the actual fee.
 *
 * @returns A SubmitResult whose Failure is set when the chain rejected or reverted
 * the transaction, or an error when the request itself is invalid.
 *
 * @notes
 * - Waiting for finality is detached from the caller's cancellation so a client
 *   that disconnects cannot cause a confirmed transaction to go unrecorded.
 */
func (s *SponsorshipService) Submit(ctx context.Context, params SubmitParams) (SubmitResult, error) {
	tx := params.Transaction
	att := newAttempt(fmt.Sprintf("%s:%d", tx.Sender.Hex(), tx.Nonce), StateAwaitingUserSignature, s.logger)
	log := s.logger.With(zap.String("user_address", params.UserAddress), zap.Uint64("nonce", tx.Nonce))

	// 1. Check that the transaction is one this service prepared for this caller.
	if err := tx.Validate(); err != nil {
		return SubmitResult{}, err
	}
	if !common.IsHexAddress(params.UserAddress) || common.HexToAddress(params.UserAddress) != tx.Sender {
		return SubmitResult{}, ErrSenderMismatch
	}
	if tx.ChainID != s.cfg.ChainID || tx.Forwarder != s.cfg.Forwarder {
		return SubmitResult{}, fmt.Errorf("%w: transaction targets another chain or forwarder", ErrInvalidSponsorship)
	}
	if tx.FeePayer != s.signer.Address() {
		return SubmitResult{}, feepayer.ErrFeePayerMismatch
	}
	if err := tx.VerifySigner(params.FeePayerSignature, tx.FeePayer); err != nil {
		return SubmitResult{}, fmt.Errorf("%w: %v", ErrNotPreparedHere, err)
	}
	if err := tx.VerifySigner(params.UserSignature, tx.Sender); err != nil {
		return SubmitResult{}, fmt.Errorf("%w: %v", ErrInvalidUserSignature, err)
	}
	if !s.now().Before(time.Unix(tx.ExpiresAt, 0)) {
		_ = att.advance(StateAbandoned)
		return SubmitResult{}, ErrSponsorshipExpired
	}
	// The market reference is recorded with the usage, so it must name the called contract.
	if params.MarketID == "" {
		return SubmitResult{}, fmt.Errorf("%w: market id is required", ErrInvalidSponsorship)
	}
	m, err := s.markets.GetMarket(ctx, params.MarketID)
	if err != nil {
		if errors.Is(err, market.ErrMarketNotFound) {
			return SubmitResult{}, err
		}
		return SubmitResult{}, fmt.Errorf("failed to look up market %s: %w", params.MarketID, err)
	}
	if !common.IsHexAddress(m.Address) || common.HexToAddress(m.Address) != tx.Target {
		return SubmitResult{}, fmt.Errorf("%w: market %s is %s, transaction calls %s", ErrMarketAddressMismatch, params.MarketID, m.Address, tx.Target.Hex())
	}

	// 2. Relay.
	hash, err := s.chain.SubmitSponsored(ctx, chain.SignedTransaction{
		Transaction:       tx,
		UserSignature:     params.UserSignature,
		FeePayerSignature: params.FeePayerSignature,
	})
	if err != nil {
		log.Warn("sponsored transaction rejected", zap.Error(err))
		_ = att.advance(StateAbandoned)
		return SubmitResult{
			State:   att.state,
			Failure: &SubmissionError{ChainStatus: ChainStatusRejected, Message: err.Error()},
		}, nil
	}
	if err := att.advance(StateSubmitted); err != nil {
		return SubmitResult{}, err
	}
	log = log.With(zap.String("tx_hash", hash.Hex()))
	log.Info("sponsored transaction submitted")

	// 3. Wait for finality.
	waitCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.FinalityTimeout)
	defer cancel()
	receipt, err := s.chain.WaitForFinality(waitCtx, hash)
	if err != nil {
		status := ChainStatusUnknown
		if errors.Is(err, chain.ErrFinalityTimeout) || errors.Is(err, context.DeadlineExceeded) {
			status = ChainStatusTimeout
		}
		log.Error("sponsored transaction did not reach finality", zap.Error(err), zap.String("chain_status", status))
		_ = att.advance(StateAbandoned)
		return SubmitResult{
			State:           att.state,
			TransactionHash: hash,
			Failure:         &SubmissionError{ChainStatus: status, TxHash: hash, Message: err.Error()},
		}, nil
	}
	if !receipt.Succeeded() {
		if err := att.advance(StateReverted); err != nil {
			return SubmitResult{}, err
		}
		log.Warn("sponsored transaction reverted", zap.Uint64("block_number", receipt.BlockNumber))
		s.publish(ctx, log, SponsorshipEvent{
			Type:            EventSponsorshipFailed,
			UserAddress:     params.UserAddress,
			TransactionHash: hash.Hex(),
			MarketID:        params.MarketID,
			ChainStatus:     ChainStatusReverted,
			Timestamp:       s.now().UTC(),
		})
		return SubmitResult{
			State:           att.state,
			TransactionHash: hash,
			BlockHeight:     receipt.BlockNumber,
			Failure:         &SubmissionError{ChainStatus: ChainStatusReverted, TxHash: hash, Message: "execution reverted"},
		}, nil
	}
	if err := att.advance(StateConfirmed); err != nil {
		return SubmitResult{}, err
	}

	// 4. Record the actual fee.
	result := SubmitResult{State: att.state, TransactionHash: hash, BlockHeight: receipt.BlockNumber}
	record, err := s.usageRecord(params, tx, hash, receipt)
	if err != nil {
		log.Error("confirmed sponsorship cannot be recorded", zap.Error(err))
		return result, nil
	}
	result.GasUnits, result.GasUnitPrice, result.TotalFee = record.GasUnits, record.GasUnitPrice, record.TotalFee

	recordCtx := context.WithoutCancel(ctx)
	usage, err := s.quotas.RecordUsage(recordCtx, record)
	if err != nil {
		log.Error("failed to record sponsorship usage", zap.Error(err), zap.Int64("total_fee", record.TotalFee))
		return result, nil
	}
	result.Recorded = !usage.Duplicate
	result.GasUsedToday = usage.Quota.GasUsed

	log.Info("sponsored transaction confirmed",
		zap.Int64("gas_units", record.GasUnits),
		zap.Int64("total_fee", record.TotalFee),
		zap.Int64("gas_used_today", result.GasUsedToday))

	if result.Recorded {
		s.publish(recordCtx, log, SponsorshipEvent{
			Type:            EventSponsorshipConfirmed,
			UserAddress:     record.UserAddress,
			TransactionHash: record.TxHash,
			MarketID:        record.MarketID,
			GasUsed:         record.TotalFee,
			GasUsedToday:    result.GasUsedToday,
			Timestamp:       record.ConfirmedAt,
		})
	}
	return result, nil
}

func (s *SponsorshipService) usageRecord(params SubmitParams, tx chain.SponsoredTransaction, hash common.Hash, receipt chain.Receipt) (quota.SponsorshipRecord, error) {
	price := receipt.EffectiveGasPrice
	if price == nil {
		price = tx.MaxGasPrice.ToInt()
	}
	units := new(big.Int).SetUint64(receipt.GasUsed)
	total := new(big.Int).Mul(units, price)
	if !price.IsInt64() || !units.IsInt64() || !total.IsInt64() {
		return quota.SponsorshipRecord{}, fmt.Errorf("fee %s overflows the quota unit", total)
	}
	confirmedAt := receipt.BlockTime
	if confirmedAt.IsZero() {
		confirmedAt = s.now()
	}
	return quota.SponsorshipRecord{
		TxHash:          hash.Hex(),
		UserAddress:     NormalizeAddress(params.UserAddress),
		MarketID:        params.MarketID,
		GasUnits:        units.Int64(),
		GasUnitPrice:    price.Int64(),
		TotalFee:        total.Int64(),
		FeePayerAddress: NormalizeAddress(tx.FeePayer.Hex()),
		ConfirmedAt:     confirmedAt.UTC(),
		BlockHeight:     int64(receipt.BlockNumber),
	}, nil
}

func (s *SponsorshipService) publish(ctx context.Context, log *zap.Logger, event SponsorshipEvent) {
	if err := s.events.Publish(ctx, event); err != nil {
		log.Warn("failed to publish sponsorship event", zap.Error(err), zap.String("event_type", event.Type))
	}
}
