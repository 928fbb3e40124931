package keystore

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/btcsuite/btcd/btcutil/hdkeychain"
)

// Status is the lifecycle state of a KeyStore.
type Status int

const (
	StatusNotLoaded Status = iota // persisted material may exist but has not been read
	StatusEmpty                   // no key material
	StatusLocked                  // loaded, encrypted
	StatusUnlocked                // decrypted, usable
)

func (s Status) String() string {
	switch s {
	case StatusNotLoaded:
		return "NOT_LOADED"
	case StatusEmpty:
		return "EMPTY"
	case StatusLocked:
		return "LOCKED"
	case StatusUnlocked:
		return "UNLOCKED"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *Status) UnmarshalText(text []byte) error {
	switch string(text) {
	case "NOT_LOADED":
		*s = StatusNotLoaded
	case "EMPTY":
		*s = StatusEmpty
	case "LOCKED":
		*s = StatusLocked
	case "UNLOCKED":
		*s = StatusUnlocked
	default:
		return fmt.Errorf("unknown key status %q", text)
	}
	return nil
}

// BIP-44 path constants
const (
	BIP44Purpose = 44
	BIP44Change  = 0 // External
)

// Path is a BIP-44 derivation path m/44'/coin'/account'/change/index.
type Path struct {
	CoinType     uint32 `json:"coinType"`
	Account      uint32 `json:"account"`
	Change       uint32 `json:"change"`
	AddressIndex uint32 `json:"addressIndex"`
}

func (p Path) String() string {
	return fmt.Sprintf("m/%d'/%d'/%d'/%d/%d", BIP44Purpose, p.CoinType, p.Account, p.Change, p.AddressIndex)
}

// Indices returns the BIP-32 child indices, hardened where BIP-44 requires.
func (p Path) Indices() []uint32 {
	h := uint32(hdkeychain.HardenedKeyStart)
	return []uint32{h + BIP44Purpose, h + p.CoinType, h + p.Account, p.Change, p.AddressIndex}
}

// ParsePath parses "m/44'/118'/0'/0/0".
func ParsePath(s string) (Path, error) {
	parts := strings.Split(strings.TrimSpace(s), "/")
	if len(parts) != 6 || parts[0] != "m" {
		return Path{}, fmt.Errorf("invalid derivation path %q", s)
	}

	var vals [5]uint32
	for i, part := range parts[1:] {
		hardened := strings.HasSuffix(part, "'")
		if hardened != (i < 3) {
			return Path{}, fmt.Errorf("invalid hardening at %q in path %q", part, s)
		}
		v, err := strconv.ParseUint(strings.TrimSuffix(part, "'"), 10, 31)
		if err != nil {
			return Path{}, fmt.Errorf("invalid index %q in path %q: %w", part, s, err)
		}
		vals[i] = uint32(v)
	}
	if vals[0] != BIP44Purpose {
		return Path{}, fmt.Errorf("unsupported purpose %d in path %q", vals[0], s)
	}

	return Path{CoinType: vals[1], Account: vals[2], Change: vals[3], AddressIndex: vals[4]}, nil
}

// Key is derived on demand from the unlocked seed; never persisted.
type Key struct {
	Algo    string `json:"algo"`
	PubKey  []byte `json:"pubKey"`  // 33 byte compressed
	Address []byte `json:"address"` // 20 byte raw address
}

// keystore v3 style encrypted blob
type CipherParams struct {
	IV string `json:"iv"` // Initialization vector
}

type KDFParams struct {
	DkLen int    `json:"dklen"` // Derived key length
	N     int    `json:"n"`     // CPU/Memory cost
	P     int    `json:"p"`     // Parallelization parameter
	R     int    `json:"r"`     // Block size
	Salt  string `json:"salt"`  // Salt
}

type Crypto struct {
	Cipher       string       `json:"cipher"`     // "aes-128-ctr"
	CipherText   string       `json:"ciphertext"` // Encrypted mnemonic
	CipherParams CipherParams `json:"cipherparams"`
	KDF          string       `json:"kdf"` // "scrypt"
	KDFParams    KDFParams    `json:"kdfparams"`
	MAC          string       `json:"mac"` // Integrity check
}

// KeyFile is what gets persisted under protocol.PrefixKeyringCrypto.
type KeyFile struct {
	Version   int    `json:"version"`
	CreatedAt int64  `json:"createdAt"`
	Crypto    Crypto `json:"crypto"`
}

const keyFileVersion = 1
