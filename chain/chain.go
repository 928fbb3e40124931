package chain

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/abcfe/abcfe-keyring/config"
)

var (
	ErrUnknownChain     = errors.New("chain: unknown chain id")
	ErrOriginNotAllowed = errors.New("chain: origin not allowed")
)

// Info is the metadata a keeper needs to derive and format keys for a chain.
type Info struct {
	ChainID       string   `json:"chainId"`
	ChainName     string   `json:"chainName"`
	CoinType      uint32   `json:"coinType"`
	Bech32Prefix  string   `json:"bech32Prefix"`
	AccessOrigins []string `json:"accessOrigins,omitempty"`
}

// Registry answers chain metadata and origin access lookups.
type Registry struct {
	mu     sync.RWMutex
	chains map[string]Info
}

func NewRegistry(infos ...Info) (*Registry, error) {
	r := &Registry{chains: make(map[string]Info)}
	for _, info := range infos {
		if err := r.Add(info); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// NewRegistryFromConfig builds a registry from the [[Chains]] config section.
func NewRegistryFromConfig(cfg *config.Config) (*Registry, error) {
	infos := make([]Info, 0, len(cfg.Chains))
	for _, c := range cfg.Chains {
		infos = append(infos, Info{
			ChainID:       c.ChainID,
			ChainName:     c.ChainName,
			CoinType:      c.CoinType,
			Bech32Prefix:  c.Bech32Prefix,
			AccessOrigins: c.AccessOrigins,
		})
	}
	return NewRegistry(infos...)
}

// Add registers or replaces a chain.
func (r *Registry) Add(info Info) error {
	if info.ChainID == "" {
		return fmt.Errorf("chain id is empty")
	}
	if info.Bech32Prefix == "" {
		return fmt.Errorf("chain %s: bech32 prefix is empty", info.ChainID)
	}

	origins := make([]string, 0, len(info.AccessOrigins))
	for _, o := range info.AccessOrigins {
		if o = normalizeOrigin(o); o != "" {
			origins = append(origins, o)
		}
	}
	info.AccessOrigins = origins

	r.mu.Lock()
	r.chains[info.ChainID] = info
	r.mu.Unlock()
	return nil
}

func (r *Registry) GetChainInfo(chainID string) (Info, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	info, ok := r.chains[chainID]
	if !ok {
		return Info{}, fmt.Errorf("%w: %s", ErrUnknownChain, chainID)
	}
	return info, nil
}

// CheckAccessOrigin fails unless origin is listed for chainID. "*" allows any origin.
func (r *Registry) CheckAccessOrigin(chainID, origin string) error {
	info, err := r.GetChainInfo(chainID)
	if err != nil {
		return err
	}

	origin = normalizeOrigin(origin)
	for _, allowed := range info.AccessOrigins {
		if allowed == "*" || (origin != "" && allowed == origin) {
			return nil
		}
	}
	return fmt.Errorf("%w: %s for %s", ErrOriginNotAllowed, origin, chainID)
}

// ChainIDs lists the registered chains in sorted order.
func (r *Registry) ChainIDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.chains))
	for id := range r.chains {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func normalizeOrigin(o string) string {
	return strings.TrimRight(strings.ToLower(strings.TrimSpace(o)), "/")
}
