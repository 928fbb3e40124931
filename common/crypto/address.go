package crypto

import (
	"crypto/sha256"
	"fmt"

	prt "github.com/abcfe/abcfe-keyring/protocol"
	"github.com/btcsuite/btcd/btcutil/bech32"
	"golang.org/x/crypto/ripemd160" //nolint:staticcheck // cosmos address hash
)

// PubKeyToAddress cosmos-style account address: ripemd160(sha256(compressed pubkey))
func PubKeyToAddress(pubKey []byte) (prt.Address, error) {
	var address prt.Address
	if len(pubKey) != prt.PubKeyLength {
		return address, fmt.Errorf("invalid compressed public key length: %d", len(pubKey))
	}

	sha := sha256.Sum256(pubKey)
	hasher := ripemd160.New()
	hasher.Write(sha[:])
	copy(address[:], hasher.Sum(nil))

	return address, nil
}

// Bech32Codec encodes raw address bytes with a chain specific human readable prefix.
type Bech32Codec struct{}

func (Bech32Codec) Encode(prefix string, address []byte) (string, error) {
	if prefix == "" {
		return "", fmt.Errorf("bech32 prefix is empty")
	}
	conv, err := bech32.ConvertBits(address, 8, 5, true)
	if err != nil {
		return "", fmt.Errorf("failed to convert address bits: %w", err)
	}
	encoded, err := bech32.Encode(prefix, conv)
	if err != nil {
		return "", fmt.Errorf("failed to encode bech32 address: %w", err)
	}
	return encoded, nil
}

// Decode returns the prefix and raw address bytes of a bech32 string.
func (Bech32Codec) Decode(address string) (string, []byte, error) {
	prefix, data, err := bech32.Decode(address)
	if err != nil {
		return "", nil, fmt.Errorf("failed to decode bech32 address: %w", err)
	}
	raw, err := bech32.ConvertBits(data, 5, 8, false)
	if err != nil {
		return "", nil, fmt.Errorf("failed to convert address bits: %w", err)
	}
	return prefix, raw, nil
}
