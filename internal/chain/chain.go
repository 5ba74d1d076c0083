package chain

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// ErrUnsupported indicates a chain id missing from the registry.
var ErrUnsupported = errors.New("chain: unsupported network")

// ID identifies an EVM network by its chain id.
type ID uint64

const (
	Mainnet  ID = 1
	Optimism ID = 10
	Arbitrum ID = 42161
	Base     ID = 8453

	Sepolia         ID = 11155111
	OptimismSepolia ID = 11155420
	ArbitrumSepolia ID = 421614
	BaseSepolia     ID = 84532
)

// String renders the decimal chain id.
func (id ID) String() string {
	return strconv.FormatUint(uint64(id), 10)
}

// Network carries the static metadata of a supported chain.
type Network struct {
	ID          ID
	Name        string
	ExplorerURL string
	RPCBaseURL  string
	Testnet     bool
}

var registry = map[ID]Network{
	Mainnet:  {ID: Mainnet, Name: "Mainnet", ExplorerURL: "https://etherscan.io", RPCBaseURL: "https://eth-mainnet.g.alchemy.com/v2/"},
	Optimism: {ID: Optimism, Name: "Optimism", ExplorerURL: "https://optimistic.etherscan.io", RPCBaseURL: "https://opt-mainnet.g.alchemy.com/v2/"},
	Arbitrum: {ID: Arbitrum, Name: "Arbitrum One", ExplorerURL: "https://arbiscan.io", RPCBaseURL: "https://arb-mainnet.g.alchemy.com/v2/"},
	Base:     {ID: Base, Name: "Base", ExplorerURL: "https://basescan.org", RPCBaseURL: "https://base-mainnet.g.alchemy.com/v2/"},

	Sepolia:         {ID: Sepolia, Name: "Sepolia Testnet", ExplorerURL: "https://sepolia.etherscan.io", RPCBaseURL: "https://eth-sepolia.g.alchemy.com/v2/", Testnet: true},
	OptimismSepolia: {ID: OptimismSepolia, Name: "Optimism Sepolia Testnet", ExplorerURL: "https://sepolia-optimism.etherscan.io", RPCBaseURL: "https://opt-sepolia.g.alchemy.com/v2/", Testnet: true},
	ArbitrumSepolia: {ID: ArbitrumSepolia, Name: "Arbitrum Sepolia Testnet", ExplorerURL: "https://sepolia.arbiscan.io", RPCBaseURL: "https://arb-sepolia.g.alchemy.com/v2/", Testnet: true},
	BaseSepolia:     {ID: BaseSepolia, Name: "Base Sepolia Testnet", ExplorerURL: "https://sepolia.basescan.org", RPCBaseURL: "https://base-sepolia.g.alchemy.com/v2/", Testnet: true},
}

// Resolve looks up a network. The second value is false for unknown ids.
func Resolve(id ID) (Network, bool) {
	n, ok := registry[id]
	return n, ok
}

// MustResolve is Resolve returning ErrUnsupported for unknown ids.
func MustResolve(id ID) (Network, error) {
	n, ok := registry[id]
	if !ok {
		return Network{}, fmt.Errorf("%w: %d", ErrUnsupported, uint64(id))
	}
	return n, nil
}

// ParseID parses the decimal network string carried by transaction events.
func ParseID(raw string) (ID, error) {
	v, err := strconv.ParseUint(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse chain id %q: %w", raw, err)
	}
	return ID(v), nil
}

// Supported lists registered networks ordered by chain id.
func Supported() []Network {
	out := make([]Network, 0, len(registry))
	for _, n := range registry {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// TxURL links a transaction's event log on the block explorer.
func (n Network) TxURL(hash string) string {
	return fmt.Sprintf("%s/tx/%s#eventlog", n.ExplorerURL, hash)
}

// AddressURL links an account on the block explorer.
func (n Network) AddressURL(address string) string {
	return fmt.Sprintf("%s/address/%s", n.ExplorerURL, address)
}

// TokenURL links the token view filtered to one holder.
func (n Network) TokenURL(account, token string) string {
	return fmt.Sprintf("%s/token/%s?a=%s", n.ExplorerURL, token, account)
}

// RPCURL appends the provider API key to the network's RPC base.
func (n Network) RPCURL(apiKey string) string {
	return n.RPCBaseURL + apiKey
}
