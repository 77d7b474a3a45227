/**
 * @description
 * This file contains the HTTP handlers for the gas sponsorship endpoints.
 *
 * Key features:
 * - Quota: a read-only view of the caller's allowance, safe to poll from the UI.
 * - Prepare / Submit: the two halves of the sponsorship protocol. The wallet is
 *   always the authenticated caller's; request bodies cannot name another.
 * - Denials and chain failures are ordinary 200 responses with a machine-readable
 *   code, so the UI can fall back to a self-paid transaction.
 */

package api

import (
	"errors"
	"math/big"
	"net/http"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/gin-gonic/gin"
	"github.com/poly-pro/gas-station/internal/auth"
	"github.com/poly-pro/gas-station/internal/chain"
	"github.com/poly-pro/gas-station/internal/feepayer"
	"github.com/poly-pro/gas-station/internal/market"
	"github.com/poly-pro/gas-station/internal/services"
	"go.uber.org/zap"
)

// buyMethod is the market contract entry point sponsored trades call.
const buyMethod = "buy(uint256,uint256)"

// prepareRequest defines the JSON body for `POST /api/v1/sponsorship/prepare`.
type prepareRequest struct {
	MarketID         string  `json:"marketId" binding:"required,market_ref"`
	MarketAddress    string  `json:"marketAddress" binding:"omitempty,eth_addr"`
	OptionIndex      *uint64 `json:"optionIndex" binding:"required"`
	Amount           string  `json:"amount" binding:"required,base_units"`
	// EstimatedGasCost may raise the amount checked against the quota, never lower it.
	EstimatedGasCost int64   `json:"estimatedGasCost" binding:"gte=0"`
}

// submitRequest defines the JSON body for `POST /api/v1/sponsorship/submit`.
type submitRequest struct {
	Transaction       chain.SponsoredTransaction `json:"transaction"`
	FeePayerSignature hexutil.Bytes              `json:"feePayerSignature" binding:"required"`
	UserSignature     hexutil.Bytes              `json:"userSignature" binding:"required"`
	MarketID          string                     `json:"marketId" binding:"required,market_ref"`
}

func (server *Server) callerAddress(c *gin.Context) (string, bool) {
	address, ok := auth.WalletAddress(c)
	if !ok {
		server.logger.Error("wallet address not found in context")
		c.JSON(http.StatusInternalServerError, gin.H{"status": "error", "message": "Wallet address not found in request context"})
	}
	return address, ok
}

// getQuota returns the caller's sponsorship allowance for today.
func (server *Server) getQuota(c *gin.Context) {
	address, ok := server.callerAddress(c)
	if !ok {
		return
	}

	status, err := server.quotas.Status(c.Request.Context(), address, 0)
	if err != nil {
		server.logger.Error("failed to read quota", zap.Error(err), zap.String("user_address", address))
		c.JSON(http.StatusInternalServerError, gin.H{"status": "error", "message": "Failed to read quota"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "success",
		"data": gin.H{
			"quota": status,
			"display": gin.H{
				"dailyLimit":   displayAmount(status.DailyLimit),
				"gasUsedToday": displayAmount(status.GasUsedToday),
				"remaining":    displayAmount(status.Remaining),
			},
		},
	})
}

/**
 * @description
 * prepareSponsorship builds and co-signs a sponsored `buy` call for the caller.
 *
 * @notes
 * - A denial is returned with status "denied" and the reason code.
 * - The response carries the EIP-712 payload the wallet must sign.
 */
func (server *Server) prepareSponsorship(c *gin.Context) {
	address, ok := server.callerAddress(c)
	if !ok {
		return
	}

	var req prepareRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		server.logger.Warn("invalid prepare request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": "Invalid request body: " + err.Error()})
		return
	}
	amount, _ := parseBaseUnits(req.Amount)

	res, err := server.sponsorships.Prepare(c.Request.Context(), services.PrepareParams{
		UserAddress:      address,
		MarketID:         req.MarketID,
		MarketAddress:    req.MarketAddress,
		Method:           buyMethod,
		Args:             []interface{}{new(big.Int).SetUint64(*req.OptionIndex), amount.BigInt()},
		EstimatedGasCost: req.EstimatedGasCost,
	})
	switch {
	case errors.Is(err, market.ErrMarketNotFound):
		c.JSON(http.StatusNotFound, gin.H{"status": "error", "message": "Market not found"})
		return
	case errors.Is(err, services.ErrInvalidSponsorship), errors.Is(err, services.ErrMarketAddressMismatch):
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": err.Error()})
		return
	case err != nil:
		server.logger.Error("failed to prepare sponsorship", zap.Error(err), zap.String("user_address", address))
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "error", "message": "Sponsorship is temporarily unavailable"})
		return
	}

	if !res.Decision.Approved {
		c.JSON(http.StatusOK, gin.H{
			"status": "denied",
			"reason": res.Decision.Reason,
			"data":   res.Decision,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "success",
		"data":   res.Prepared,
		"display": gin.H{
			"estimatedGasCost":    displayAmount(res.Prepared.EstimatedGasCost),
			"remainingQuotaAfter": displayAmount(res.Prepared.RemainingQuotaAfter),
		},
	})
}

// submitSponsorship relays a dual-signed transaction and reports how it settled.
func (server *Server) submitSponsorship(c *gin.Context) {
	address, ok := server.callerAddress(c)
	if !ok {
		return
	}

	var req submitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		server.logger.Warn("invalid submit request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": "Invalid request body: " + err.Error()})
		return
	}

	res, err := server.sponsorships.Submit(c.Request.Context(), services.SubmitParams{
		UserAddress:       address,
		MarketID:          req.MarketID,
		Transaction:       req.Transaction,
		FeePayerSignature: req.FeePayerSignature,
		UserSignature:     req.UserSignature,
	})
	switch {
	case errors.Is(err, services.ErrSenderMismatch):
		c.JSON(http.StatusForbidden, gin.H{"status": "error", "message": err.Error()})
		return
	case errors.Is(err, services.ErrSponsorshipExpired):
		c.JSON(http.StatusGone, gin.H{"status": "error", "message": err.Error()})
		return
	case errors.Is(err, market.ErrMarketNotFound):
		c.JSON(http.StatusNotFound, gin.H{"status": "error", "message": "Market not found"})
		return
	case errors.Is(err, chain.ErrInvalidTransaction),
		errors.Is(err, services.ErrInvalidSponsorship),
		errors.Is(err, services.ErrInvalidUserSignature),
		errors.Is(err, services.ErrNotPreparedHere),
		errors.Is(err, services.ErrMarketAddressMismatch),
		errors.Is(err, feepayer.ErrFeePayerMismatch):
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": err.Error()})
		return
	case err != nil:
		server.logger.Error("failed to submit sponsorship", zap.Error(err), zap.String("user_address", address))
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "error", "message": "Sponsorship is temporarily unavailable"})
		return
	}

	if res.Failure != nil {
		c.JSON(http.StatusOK, gin.H{
			"status":          "failed",
			"chainStatus":     res.Failure.ChainStatus,
			"transactionHash": res.TransactionHash,
			"message":         res.Failure.Message,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "success",
		"data": gin.H{
			"transactionHash": res.TransactionHash,
			"blockNumber":     res.BlockHeight,
			"gasUsed":         res.GasUnits,
			"gasUnitPrice":    res.GasUnitPrice,
			"totalFee":        res.TotalFee,
			"totalFeeDisplay": displayAmount(res.TotalFee),
			"gasUsedToday":    res.GasUsedToday,
			"recorded":        res.Recorded,
		},
	})
}
