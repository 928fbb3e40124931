package keystore

import (
	"fmt"

	"github.com/abcfe/abcfe-keyring/common/utils"
	"github.com/tyler-smith/go-bip39"
)

// NewMnemonic generates a fresh BIP-39 mnemonic. bits is the entropy size:
// 128 gives 12 words, 256 gives 24.
func NewMnemonic(bits int) (string, error) {
	entropy, err := bip39.NewEntropy(bits)
	if err != nil {
		return "", fmt.Errorf("failed to generate entropy: %w", err)
	}
	defer utils.Zero(entropy)

	mnemonic, err := bip39.NewMnemonic(entropy)
	if err != nil {
		return "", fmt.Errorf("failed to generate mnemonic: %w", err)
	}
	return mnemonic, nil
}

// IsMnemonicValid reports whether m passes the BIP-39 word list and checksum check.
func IsMnemonicValid(m string) bool {
	return bip39.IsMnemonicValid(normalizeMnemonic(m))
}
