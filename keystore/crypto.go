package keystore

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"fmt"

	"github.com/abcfe/abcfe-keyring/common/utils"
	"golang.org/x/crypto/scrypt"
	"golang.org/x/crypto/sha3"
)

const (
	cipherAES128CTR = "aes-128-ctr"
	kdfScrypt       = "scrypt"

	scryptR     = 8
	scryptDKLen = 32
	saltLen     = 32
)

func keccak256(parts ...[]byte) []byte {
	h := sha3.NewLegacyKeccak256()
	for _, p := range parts {
		h.Write(p)
	}
	return h.Sum(nil)
}

func aesCTRXOR(key, in, iv []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	out := make([]byte, len(in))
	cipher.NewCTR(block, iv).XORKeyStream(out, in)
	return out, nil
}

// encryptSecret seals secret under password. The derived key never leaves this function.
func encryptSecret(secret []byte, password string, n, p int) (*Crypto, error) {
	salt := make([]byte, saltLen)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("failed to read salt: %w", err)
	}

	dk, err := scrypt.Key([]byte(password), salt, n, scryptR, p, scryptDKLen)
	if err != nil {
		return nil, fmt.Errorf("failed to derive key: %w", err)
	}
	defer utils.Zero(dk)

	iv := make([]byte, aes.BlockSize)
	if _, err := rand.Read(iv); err != nil {
		return nil, fmt.Errorf("failed to read iv: %w", err)
	}

	ciphertext, err := aesCTRXOR(dk[:16], secret, iv)
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt: %w", err)
	}

	return &Crypto{
		Cipher:       cipherAES128CTR,
		CipherText:   hex.EncodeToString(ciphertext),
		CipherParams: CipherParams{IV: hex.EncodeToString(iv)},
		KDF:          kdfScrypt,
		KDFParams: KDFParams{
			DkLen: scryptDKLen,
			N:     n,
			P:     p,
			R:     scryptR,
			Salt:  hex.EncodeToString(salt),
		},
		MAC: hex.EncodeToString(keccak256(dk[16:32], ciphertext)),
	}, nil
}

// decryptSecret returns the plaintext; the caller must zero it.
func decryptSecret(c *Crypto, password string) ([]byte, error) {
	if c.Cipher != cipherAES128CTR {
		return nil, fmt.Errorf("unsupported cipher %q", c.Cipher)
	}
	if c.KDF != kdfScrypt {
		return nil, fmt.Errorf("unsupported kdf %q", c.KDF)
	}
	if c.KDFParams.DkLen < 32 {
		return nil, fmt.Errorf("derived key length too short: %d", c.KDFParams.DkLen)
	}

	salt, err := hex.DecodeString(c.KDFParams.Salt)
	if err != nil {
		return nil, fmt.Errorf("invalid salt: %w", err)
	}
	iv, err := hex.DecodeString(c.CipherParams.IV)
	if err != nil {
		return nil, fmt.Errorf("invalid iv: %w", err)
	}
	if len(iv) != aes.BlockSize {
		return nil, fmt.Errorf("invalid iv length: %d", len(iv))
	}
	ciphertext, err := hex.DecodeString(c.CipherText)
	if err != nil {
		return nil, fmt.Errorf("invalid ciphertext: %w", err)
	}
	mac, err := hex.DecodeString(c.MAC)
	if err != nil {
		return nil, fmt.Errorf("invalid mac: %w", err)
	}

	p := c.KDFParams
	dk, err := scrypt.Key([]byte(password), salt, p.N, p.R, p.P, p.DkLen)
	if err != nil {
		return nil, fmt.Errorf("failed to derive key: %w", err)
	}
	defer utils.Zero(dk)

	if subtle.ConstantTimeCompare(keccak256(dk[16:32], ciphertext), mac) != 1 {
		return nil, ErrWrongPassword
	}

	plain, err := aesCTRXOR(dk[:16], ciphertext, iv)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt: %w", err)
	}
	return plain, nil
}
