package balance

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/rs/zerolog"

	"token-alerts/internal/chain"
)

// Dialer opens a backend for an RPC endpoint.
type Dialer func(ctx context.Context, rpcURL string) (Backend, error)

// PoolOptions parameterise client construction.
type PoolOptions struct {
	Timeout   time.Duration
	Overrides map[chain.ID]string
	Dialer    Dialer
	Observer  Observer
}

// Pool caches one Client per RPC endpoint across invocations.
type Pool struct {
	opts   PoolOptions
	logger zerolog.Logger

	mu      sync.Mutex
	clients map[string]*Client
}

// NewPool constructs a client pool. A nil Dialer dials with ethclient.
func NewPool(opts PoolOptions, logger zerolog.Logger) *Pool {
	if opts.Dialer == nil {
		opts.Dialer = dialEthclient
	}
	return &Pool{
		opts:    opts,
		logger:  logger,
		clients: make(map[string]*Client),
	}
}

// Get returns the client for network, dialing on first use.
func (p *Pool) Get(ctx context.Context, network chain.Network, apiKey string) (*Client, error) {
	if apiKey == "" {
		return nil, errors.New("rpc api key is empty")
	}

	rpcURL := network.RPCURL(apiKey)
	if override := p.opts.Overrides[network.ID]; override != "" {
		rpcURL = override
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if client, ok := p.clients[rpcURL]; ok {
		return client, nil
	}

	backend, err := p.opts.Dialer(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("dial %s rpc: %w", network.Name, err)
	}

	client := NewClient(network, backend, p.opts.Timeout, p.opts.Observer, p.logger)
	p.clients[rpcURL] = client
	return client, nil
}

// Close releases every dialed backend that supports closing.
func (p *Pool) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()

	for key, client := range p.clients {
		if closer, ok := client.backend.(interface{ Close() }); ok {
			closer.Close()
		}
		delete(p.clients, key)
	}
}

func dialEthclient(ctx context.Context, rpcURL string) (Backend, error) {
	return ethclient.DialContext(ctx, rpcURL)
}
