package crypto

import (
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btcd/chaincfg"
)

// DeriveAccountKey walks the BIP-32 tree from seed along path (indices
// already carry the hardened bit where needed). Every intermediate extended
// key is zeroed before returning.
func DeriveAccountKey(seed []byte, path []uint32) (*btcec.PrivateKey, error) {
	master, err := hdkeychain.NewMaster(seed, &chaincfg.MainNetParams)
	if err != nil {
		return nil, fmt.Errorf("failed to create master key: %w", err)
	}

	key := master
	for _, idx := range path {
		child, err := key.Derive(idx)
		key.Zero()
		if err != nil {
			return nil, fmt.Errorf("failed to derive child %d: %w", idx, err)
		}
		key = child
	}
	defer key.Zero()

	privateKey, err := key.ECPrivKey()
	if err != nil {
		return nil, fmt.Errorf("failed to get private key: %w", err)
	}
	return privateKey, nil
}

// PublicKeyToBytes compressed (33 byte) SEC encoding
func PublicKeyToBytes(publicKey *btcec.PublicKey) []byte {
	return publicKey.SerializeCompressed()
}

// BytesToPublicKey parses a compressed or uncompressed SEC public key
func BytesToPublicKey(data []byte) (*btcec.PublicKey, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("public key bytes is empty")
	}
	pub, err := btcec.ParsePubKey(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse public key: %w", err)
	}
	return pub, nil
}
