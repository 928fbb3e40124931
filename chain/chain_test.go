package chain

import (
	"errors"
	"testing"

	"github.com/abcfe/abcfe-keyring/config"
)

func TestGetChainInfo(t *testing.T) {
	r, err := NewRegistry(Info{ChainID: "cosmoshub-4", CoinType: 118, Bech32Prefix: "cosmos"})
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}

	info, err := r.GetChainInfo("cosmoshub-4")
	if err != nil {
		t.Fatalf("GetChainInfo: %v", err)
	}
	if info.CoinType != 118 || info.Bech32Prefix != "cosmos" {
		t.Fatalf("unexpected info: %+v", info)
	}

	if _, err := r.GetChainInfo("unknown-1"); !errors.Is(err, ErrUnknownChain) {
		t.Fatalf("expected ErrUnknownChain, got %v", err)
	}
}

func TestAddValidation(t *testing.T) {
	if _, err := NewRegistry(Info{Bech32Prefix: "cosmos"}); err == nil {
		t.Error("empty chain id should be rejected")
	}
	if _, err := NewRegistry(Info{ChainID: "cosmoshub-4"}); err == nil {
		t.Error("empty prefix should be rejected")
	}
}

func TestCheckAccessOrigin(t *testing.T) {
	r, _ := NewRegistry(
		Info{ChainID: "cosmoshub-4", Bech32Prefix: "cosmos", AccessOrigins: []string{"https://Wallet.Example.com/"}},
		Info{ChainID: "osmosis-1", Bech32Prefix: "osmo", AccessOrigins: []string{"*"}},
		Info{ChainID: "closed-1", Bech32Prefix: "closed"},
	)

	if err := r.CheckAccessOrigin("cosmoshub-4", "https://wallet.example.com"); err != nil {
		t.Errorf("listed origin rejected: %v", err)
	}
	if err := r.CheckAccessOrigin("cosmoshub-4", "https://evil.example.com"); !errors.Is(err, ErrOriginNotAllowed) {
		t.Errorf("expected ErrOriginNotAllowed, got %v", err)
	}
	if err := r.CheckAccessOrigin("cosmoshub-4", ""); !errors.Is(err, ErrOriginNotAllowed) {
		t.Errorf("empty origin should be rejected, got %v", err)
	}
	if err := r.CheckAccessOrigin("osmosis-1", "https://anything.io"); err != nil {
		t.Errorf("wildcard origin rejected: %v", err)
	}
	if err := r.CheckAccessOrigin("closed-1", "https://wallet.example.com"); !errors.Is(err, ErrOriginNotAllowed) {
		t.Errorf("chain without origins should reject, got %v", err)
	}
	if err := r.CheckAccessOrigin("nope", "https://wallet.example.com"); !errors.Is(err, ErrUnknownChain) {
		t.Errorf("expected ErrUnknownChain, got %v", err)
	}
}

func TestNewRegistryFromConfig(t *testing.T) {
	cfg := &config.Config{Chains: []config.Chain{
		{ChainID: "osmosis-1", ChainName: "Osmosis", CoinType: 118, Bech32Prefix: "osmo"},
		{ChainID: "cosmoshub-4", ChainName: "Cosmos Hub", CoinType: 118, Bech32Prefix: "cosmos"},
	}}

	r, err := NewRegistryFromConfig(cfg)
	if err != nil {
		t.Fatalf("NewRegistryFromConfig: %v", err)
	}
	ids := r.ChainIDs()
	if len(ids) != 2 || ids[0] != "cosmoshub-4" || ids[1] != "osmosis-1" {
		t.Fatalf("unexpected chain ids: %v", ids)
	}
}
