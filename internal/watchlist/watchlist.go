// Package watchlist holds the typed threshold configuration: which accounts are
// watched on which chain, which tokens are monitored for them and who to contact.
package watchlist

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"token-alerts/internal/chain"
)

// StorageKey is the storage key under which the threshold configuration lives.
const StorageKey = "TOKEN_THRESHOLD"

// NativeToken is the sentinel token address standing for a chain's native currency.
var NativeToken = common.HexToAddress("0xEeeeeEeeeEeEeeEeEeEeeEEEeeeeEeeeeeeeEEeE")

// IsNative reports whether token is the native currency sentinel.
func IsNative(token common.Address) bool {
	return token == NativeToken
}

// Contact is a person paged by an alert.
type Contact struct {
	Name    string `json:"name"`
	SlackID string `json:"slackId"`
}

// MonitorToken is a token with its alert threshold in human units.
type MonitorToken struct {
	Address     common.Address  `json:"-"`
	Threshold   decimal.Decimal `json:"threshold"`
	Description string          `json:"description"`
}

// Entry describes one watched address.
type Entry struct {
	Label    string
	DocURL   string
	Contacts []Contact
	Tokens   []MonitorToken
}

// Watch binds an entry to its chain and watched address.
type Watch struct {
	Chain   chain.ID
	Address common.Address
	Entry   Entry
}

// Config is the full threshold configuration, indexed by chain.
type Config struct {
	Watches []Watch
	byChain map[chain.ID][]int
}

// New builds a Config from watches, rejecting duplicate (chain, address) keys.
func New(watches []Watch) (Config, error) {
	cfg := Config{Watches: watches, byChain: make(map[chain.ID][]int)}
	seen := make(map[string]struct{}, len(watches))
	for i, w := range watches {
		key := w.Chain.String() + "/" + w.Address.Hex()
		if _, dup := seen[key]; dup {
			return Config{}, fmt.Errorf("duplicate watch %s", key)
		}
		seen[key] = struct{}{}
		cfg.byChain[w.Chain] = append(cfg.byChain[w.Chain], i)
	}
	return cfg, nil
}

// ForChain returns the watches configured for id. Other chains are never visible.
func (c Config) ForChain(id chain.ID) []Watch {
	idx := c.byChain[id]
	out := make([]Watch, 0, len(idx))
	for _, i := range idx {
		out = append(out, c.Watches[i])
	}
	return out
}

// Chains lists the chain ids that carry at least one watch.
func (c Config) Chains() []chain.ID {
	out := make([]chain.ID, 0, len(c.byChain))
	for id := range c.byChain {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

type rawEntry struct {
	Label         string                  `json:"label"`
	DocURL        string                  `json:"docUrl"`
	Contacts      []Contact               `json:"contacts"`
	MonitorTokens map[string]MonitorToken `json:"monitorTokens"`
}

type rawConfig map[string]json.RawMessage

func decodeRaw(data []byte) (rawConfig, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	var raw rawConfig
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode threshold config: %w", err)
	}
	return raw, nil
}

// Parse decodes and validates the whole stored document.
func Parse(data []byte) (Config, error) {
	raw, err := decodeRaw(data)
	if err != nil {
		return Config{}, err
	}

	var watches []Watch
	for chainKey, body := range raw {
		id, err := chain.ParseID(chainKey)
		if err != nil {
			return Config{}, err
		}
		chainWatches, err := parseChainBody(id, chainKey, body)
		if err != nil {
			return Config{}, err
		}
		watches = append(watches, chainWatches...)
	}
	return build(watches)
}

// ParseChain decodes only the entries stored for id. Keys for other chains,
// including keys that are not chain ids at all, are skipped unvalidated.
func ParseChain(data []byte, id chain.ID) (Config, error) {
	raw, err := decodeRaw(data)
	if err != nil {
		return Config{}, err
	}

	var watches []Watch
	for chainKey, body := range raw {
		keyID, err := chain.ParseID(chainKey)
		if err != nil || keyID != id {
			continue
		}
		chainWatches, err := parseChainBody(id, chainKey, body)
		if err != nil {
			return Config{}, err
		}
		watches = append(watches, chainWatches...)
	}
	return build(watches)
}

func parseChainBody(id chain.ID, chainKey string, body json.RawMessage) ([]Watch, error) {
	var addresses map[string]rawEntry
	if err := json.Unmarshal(body, &addresses); err != nil {
		return nil, fmt.Errorf("chain %s: %w", chainKey, err)
	}

	watches := make([]Watch, 0, len(addresses))
	for addrKey, re := range addresses {
		if !common.IsHexAddress(addrKey) {
			return nil, fmt.Errorf("chain %s: invalid watched address %q", chainKey, addrKey)
		}
		entry, err := re.toEntry()
		if err != nil {
			return nil, fmt.Errorf("chain %s address %s: %w", chainKey, addrKey, err)
		}
		watches = append(watches, Watch{Chain: id, Address: common.HexToAddress(addrKey), Entry: entry})
	}
	return watches, nil
}

func build(watches []Watch) (Config, error) {
	sort.Slice(watches, func(i, j int) bool {
		if watches[i].Chain != watches[j].Chain {
			return watches[i].Chain < watches[j].Chain
		}
		return watches[i].Address.Cmp(watches[j].Address) < 0
	})
	return New(watches)
}

func (re rawEntry) toEntry() (Entry, error) {
	entry := Entry{
		Label:    strings.TrimSpace(re.Label),
		DocURL:   re.DocURL,
		Contacts: re.Contacts,
	}
	for tokenKey, mt := range re.MonitorTokens {
		if !common.IsHexAddress(tokenKey) {
			return Entry{}, fmt.Errorf("invalid token address %q", tokenKey)
		}
		mt.Address = common.HexToAddress(tokenKey)
		entry.Tokens = append(entry.Tokens, mt)
	}
	sort.Slice(entry.Tokens, func(i, j int) bool {
		return entry.Tokens[i].Address.Cmp(entry.Tokens[j].Address) < 0
	})
	return entry, nil
}

// Marshal renders the config in the stored JSON shape.
func Marshal(cfg Config) ([]byte, error) {
	raw := make(map[string]map[string]rawEntry)
	for _, w := range cfg.Watches {
		key := w.Chain.String()
		if raw[key] == nil {
			raw[key] = make(map[string]rawEntry)
		}
		tokens := make(map[string]MonitorToken, len(w.Entry.Tokens))
		for _, mt := range w.Entry.Tokens {
			tokens[mt.Address.Hex()] = mt
		}
		raw[key][w.Address.Hex()] = rawEntry{
			Label:         w.Entry.Label,
			DocURL:        w.Entry.DocURL,
			Contacts:      w.Entry.Contacts,
			MonitorTokens: tokens,
		}
	}
	return json.MarshalIndent(raw, "", "  ")
}
