package balance

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"token-alerts/internal/chain"
)

// NativeDecimals is the fixed precision of every supported network's native currency.
const NativeDecimals uint8 = 18

// Sample is one balance observation. It is never persisted.
type Sample struct {
	Chain    chain.ID
	Holder   common.Address
	Token    common.Address
	Native   bool
	Raw      *big.Int
	Decimals uint8
	Symbol   string
	Balance  decimal.Decimal
}

// Observer receives RPC timings.
type Observer interface {
	ObserveRPC(chainID chain.ID, method string, elapsed time.Duration, err error)
}

type tokenMeta struct {
	symbol   string
	decimals uint8
}

// Client reads balances on a single network.
type Client struct {
	network  chain.Network
	backend  Backend
	timeout  time.Duration
	observer Observer
	logger   zerolog.Logger

	mu   sync.Mutex
	meta map[common.Address]tokenMeta
}

// NewClient binds a backend to a network.
func NewClient(network chain.Network, backend Backend, timeout time.Duration, observer Observer, logger zerolog.Logger) *Client {
	return &Client{
		network:  network,
		backend:  backend,
		timeout:  timeout,
		observer: observer,
		logger:   logger.With().Str("component", "balance_reader").Str("chain", network.Name).Logger(),
		meta:     make(map[common.Address]tokenMeta),
	}
}

// Network returns the network this client reads from.
func (c *Client) Network() chain.Network {
	return c.network
}

// NativeBalance returns the native currency balance of holder.
func (c *Client) NativeBalance(ctx context.Context, holder common.Address) (Sample, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	start := time.Now()
	raw, err := c.backend.BalanceAt(ctx, holder, nil)
	c.observe("eth_getBalance", start, err)
	if err != nil {
		return Sample{}, fmt.Errorf("fetch native balance of %s: %w", holder.Hex(), err)
	}

	return Sample{
		Chain:    c.network.ID,
		Holder:   holder,
		Native:   true,
		Raw:      raw,
		Decimals: NativeDecimals,
		Balance:  ToDecimal(raw, NativeDecimals),
	}, nil
}

// TokenBalance returns holder's balance of an ERC-20 token, scaled by the token's own decimals.
func (c *Client) TokenBalance(ctx context.Context, token, holder common.Address) (Sample, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	erc20 := NewToken(token, c.backend)

	meta, err := c.tokenMeta(ctx, erc20)
	if err != nil {
		return Sample{}, err
	}

	start := time.Now()
	raw, err := erc20.BalanceOf(ctx, holder)
	c.observe("balanceOf", start, err)
	if err != nil {
		return Sample{}, fmt.Errorf("fetch %s balance of %s: %w", meta.symbol, holder.Hex(), err)
	}

	return Sample{
		Chain:    c.network.ID,
		Holder:   holder,
		Token:    token,
		Raw:      raw,
		Decimals: meta.decimals,
		Symbol:   meta.symbol,
		Balance:  ToDecimal(raw, meta.decimals),
	}, nil
}

func (c *Client) tokenMeta(ctx context.Context, token *Token) (tokenMeta, error) {
	c.mu.Lock()
	meta, ok := c.meta[token.Address()]
	c.mu.Unlock()
	if ok {
		return meta, nil
	}

	start := time.Now()
	decimals, err := token.Decimals(ctx)
	c.observe("decimals", start, err)
	if err != nil {
		return tokenMeta{}, fmt.Errorf("resolve token decimals: %w", err)
	}

	start = time.Now()
	symbol, err := token.Symbol(ctx)
	c.observe("symbol", start, err)
	if err != nil {
		return tokenMeta{}, fmt.Errorf("resolve token symbol: %w", err)
	}

	meta = tokenMeta{symbol: symbol, decimals: decimals}
	c.mu.Lock()
	c.meta[token.Address()] = meta
	c.mu.Unlock()

	c.logger.Debug().Str("token", token.Address().Hex()).
		Str("symbol", symbol).
		Uint8("decimals", decimals).
		Msg("token metadata cached")
	return meta, nil
}

func (c *Client) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.timeout)
}

func (c *Client) observe(method string, start time.Time, err error) {
	if c.observer == nil {
		return
	}
	c.observer.ObserveRPC(c.network.ID, method, time.Since(start), err)
}

// ToDecimal converts a raw integer amount to human units without float round-off.
func ToDecimal(raw *big.Int, decimals uint8) decimal.Decimal {
	if raw == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(raw, -int32(decimals))
}

// FromDecimal converts human units back to the raw integer amount, truncating excess precision.
func FromDecimal(amount decimal.Decimal, decimals uint8) *big.Int {
	return amount.Shift(int32(decimals)).BigInt()
}
