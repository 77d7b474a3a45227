package chain

import (
	"context"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// SendSponsoredMethod is the relay RPC that accepts a dual-signed call.
const SendSponsoredMethod = "sponsor_sendTransaction"

// ErrFinalityTimeout is returned when no receipt is final before the deadline.
var ErrFinalityTimeout = errors.New("timed out waiting for finality")

// Receipt is the subset of a transaction receipt the coordinator needs.
type Receipt struct {
	TxHash            common.Hash
	Status            uint64
	GasUsed           uint64
	EffectiveGasPrice *big.Int
	BlockNumber       uint64
	BlockTime         time.Time
}

// Succeeded reports whether the call executed without reverting.
func (r Receipt) Succeeded() bool {
	return r.Status == types.ReceiptStatusSuccessful
}

// Client is the chain RPC boundary. No method retries.
type Client interface {
	// PendingNonce returns the forwarder nonce the next call from sender must use.
	PendingNonce(ctx context.Context, forwarder, sender common.Address) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	// SubmitSponsored relays a dual-signed call and returns its transaction hash.
	SubmitSponsored(ctx context.Context, signed SignedTransaction) (common.Hash, error)
	// WaitForFinality blocks until hash has a receipt buried under the configured
	// number of confirmations, or ctx ends.
	WaitForFinality(ctx context.Context, hash common.Hash) (Receipt, error)
}

// RPCClient implements Client over JSON-RPC.
type RPCClient struct {
	rpc           *rpc.Client
	eth           *ethclient.Client
	pollInterval  time.Duration
	confirmations uint64
	logger        *zap.Logger
}

// RPCOption configures an RPCClient.
type RPCOption func(*RPCClient)

// WithPollInterval sets how often receipts are polled.
func WithPollInterval(d time.Duration) RPCOption {
	return func(c *RPCClient) { c.pollInterval = d }
}

// WithConfirmations sets how many blocks must follow the receipt's block.
func WithConfirmations(n uint64) RPCOption {
	return func(c *RPCClient) { c.confirmations = n }
}

// Dial connects to a node at url.
func Dial(ctx context.Context, url string, logger *zap.Logger, opts ...RPCOption) (*RPCClient, error) {
	rc, err := rpc.DialContext(ctx, url)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to dial chain rpc %s", url)
	}
	c := &RPCClient{
		rpc:          rc,
		eth:          ethclient.NewClient(rc),
		pollInterval: time.Second,
		logger:       logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *RPCClient) Close() {
	c.rpc.Close()
}

var getNonceMethod = func() Method {
	m, err := ParseMethod("getNonce(address)")
	if err != nil {
		panic(err)
	}
	return m
}()

var uint256Outputs = func() abi.Arguments {
	typ, err := abi.NewType("uint256", "", nil)
	if err != nil {
		panic(err)
	}
	return abi.Arguments{{Name: "nonce", Type: typ}}
}()

func (c *RPCClient) PendingNonce(ctx context.Context, forwarder, sender common.Address) (uint64, error) {
	data, err := getNonceMethod.Encode(sender)
	if err != nil {
		return 0, err
	}
	out, err := c.eth.PendingCallContract(ctx, ethereum.CallMsg{To: &forwarder, Data: data})
	if err != nil {
		return 0, errors.Wrap(err, "failed to read forwarder nonce")
	}
	values, err := uint256Outputs.Unpack(out)
	if err != nil {
		return 0, errors.Wrap(err, "failed to decode forwarder nonce")
	}
	nonce, ok := values[0].(*big.Int)
	if !ok || !nonce.IsUint64() {
		return 0, errors.Errorf("unexpected forwarder nonce %v", values[0])
	}
	return nonce.Uint64(), nil
}

func (c *RPCClient) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	price, err := c.eth.SuggestGasPrice(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to fetch gas price")
	}
	return price, nil
}

func (c *RPCClient) SubmitSponsored(ctx context.Context, signed SignedTransaction) (common.Hash, error) {
	var hash common.Hash
	if err := c.rpc.CallContext(ctx, &hash, SendSponsoredMethod, signed); err != nil {
		return common.Hash{}, err
	}
	c.logger.Info("sponsored transaction relayed",
		zap.String("tx_hash", hash.Hex()),
		zap.String("sender", signed.Transaction.Sender.Hex()))
	return hash, nil
}

func (c *RPCClient) WaitForFinality(ctx context.Context, hash common.Hash) (Receipt, error) {
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		receipt, err := c.finalReceipt(ctx, hash)
		if err != nil {
			return Receipt{}, err
		}
		if receipt != nil {
			return *receipt, nil
		}

		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return Receipt{}, ErrFinalityTimeout
			}
			return Receipt{}, ctx.Err()
		case <-ticker.C:
		}
	}
}

// finalReceipt returns nil, nil while the receipt is missing or not yet buried.
func (c *RPCClient) finalReceipt(ctx context.Context, hash common.Hash) (*Receipt, error) {
	r, err := c.eth.TransactionReceipt(ctx, hash)
	if err != nil {
		if errors.Is(err, ethereum.NotFound) {
			return nil, nil
		}
		if ctx.Err() != nil {
			return nil, nil
		}
		return nil, errors.Wrap(err, "failed to fetch receipt")
	}
	if r.BlockNumber == nil {
		return nil, nil
	}

	if c.confirmations > 0 {
		head, err := c.eth.BlockNumber(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil, nil
			}
			return nil, errors.Wrap(err, "failed to fetch head block")
		}
		if head < r.BlockNumber.Uint64()+c.confirmations {
			return nil, nil
		}
	}

	header, err := c.eth.HeaderByNumber(ctx, r.BlockNumber)
	if err != nil {
		if ctx.Err() != nil {
			return nil, nil
		}
		return nil, errors.Wrap(err, "failed to fetch receipt block")
	}

	price := r.EffectiveGasPrice
	if price == nil {
		price = new(big.Int)
	}
	return &Receipt{
		TxHash:            hash,
		Status:            r.Status,
		GasUsed:           r.GasUsed,
		EffectiveGasPrice: price,
		BlockNumber:       r.BlockNumber.Uint64(),
		BlockTime:         time.Unix(int64(header.Time), 0).UTC(),
	}, nil
}

var _ Client = (*RPCClient)(nil)
