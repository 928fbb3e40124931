package keystore

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/abcfe/abcfe-keyring/common/crypto"
	"github.com/abcfe/abcfe-keyring/common/logger"
	"github.com/abcfe/abcfe-keyring/common/utils"
	prt "github.com/abcfe/abcfe-keyring/protocol"
	"github.com/abcfe/abcfe-keyring/storage"
	"github.com/tyler-smith/go-bip39"
)

const (
	StandardScryptN = 1 << 18
	StandardScryptP = 1

	// LightScryptN is meant for tests and low-power devices
	LightScryptN = 1 << 12
	LightScryptP = 6
)

var keyFileKey = []byte(prt.PrefixKeyringCrypto)

// KeyStore owns the encrypted master secret. The decrypted BIP-39 seed is
// held only while the status is StatusUnlocked.
type KeyStore struct {
	mu      sync.RWMutex
	store   storage.Store
	status  Status
	file    *KeyFile
	seed    []byte
	scryptN int
	scryptP int
}

type Option func(*KeyStore)

// WithScryptParams overrides the scrypt cost used for newly created keys.
func WithScryptParams(n, p int) Option {
	return func(ks *KeyStore) {
		if n > 1 {
			ks.scryptN = n
		}
		if p > 0 {
			ks.scryptP = p
		}
	}
}

func New(store storage.Store, opts ...Option) *KeyStore {
	ks := &KeyStore{
		store:   store,
		status:  StatusNotLoaded,
		scryptN: StandardScryptN,
		scryptP: StandardScryptP,
	}
	for _, opt := range opts {
		opt(ks)
	}
	return ks
}

func (ks *KeyStore) Status() Status {
	ks.mu.RLock()
	defer ks.mu.RUnlock()
	return ks.status
}

// Restore reads persisted key material. Already loaded stores are left as they are.
func (ks *KeyStore) Restore() (Status, error) {
	ks.mu.Lock()
	defer ks.mu.Unlock()

	if err := ks.restore(); err != nil {
		return ks.status, err
	}
	return ks.status, nil
}

func (ks *KeyStore) restore() error {
	if ks.status != StatusNotLoaded && ks.status != StatusEmpty {
		return nil
	}

	data, err := ks.store.Get(keyFileKey)
	if errors.Is(err, storage.ErrNotFound) {
		ks.status = StatusEmpty
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read key file: %w", err)
	}

	file := new(KeyFile)
	if err := json.Unmarshal(data, file); err != nil {
		return fmt.Errorf("failed to parse key file: %w", err)
	}

	ks.file = file
	ks.status = StatusLocked
	logger.Info("[KeyStore] key restored, created at ", time.Unix(file.CreatedAt, 0).UTC())
	return nil
}

// Create validates mnemonic, encrypts it under password and persists it.
// The store ends up locked.
func (ks *KeyStore) Create(mnemonic, password string) error {
	ks.mu.Lock()
	defer ks.mu.Unlock()

	if ks.status == StatusNotLoaded {
		if err := ks.restore(); err != nil {
			return err
		}
	}
	if ks.status != StatusEmpty {
		return ErrKeyExists
	}

	mnemonic = normalizeMnemonic(mnemonic)
	if !bip39.IsMnemonicValid(mnemonic) {
		return ErrInvalidMnemonic
	}
	if password == "" {
		return fmt.Errorf("password is empty")
	}

	secret := []byte(mnemonic)
	defer utils.Zero(secret)

	c, err := encryptSecret(secret, password, ks.scryptN, ks.scryptP)
	if err != nil {
		return err
	}

	file := &KeyFile{
		Version:   keyFileVersion,
		CreatedAt: time.Now().Unix(),
		Crypto:    *c,
	}
	data, err := json.Marshal(file)
	if err != nil {
		return fmt.Errorf("failed to marshal key file: %w", err)
	}
	if err := ks.store.Set(keyFileKey, data); err != nil {
		return fmt.Errorf("failed to save key file: %w", err)
	}

	ks.file = file
	ks.status = StatusLocked
	logger.Info("[KeyStore] key created")
	return nil
}

// Unlock decrypts the master secret. Any failure leaves the store locked,
// even if it was unlocked before the call.
func (ks *KeyStore) Unlock(password string) error {
	ks.mu.Lock()
	defer ks.mu.Unlock()

	if ks.status == StatusEmpty || ks.status == StatusNotLoaded || ks.file == nil {
		return ErrKeyAbsent
	}

	mnemonic, err := decryptSecret(&ks.file.Crypto, password)
	if err != nil {
		ks.lock()
		return err
	}
	defer utils.Zero(mnemonic)

	seed, err := bip39.NewSeedWithErrorChecking(string(mnemonic), "")
	if err != nil {
		ks.lock()
		return fmt.Errorf("stored mnemonic is corrupt: %w", err)
	}

	if ks.seed != nil {
		utils.Zero(ks.seed)
	}
	ks.seed = seed
	ks.status = StatusUnlocked
	return nil
}

// Lock drops the decrypted seed from memory.
func (ks *KeyStore) Lock() {
	ks.mu.Lock()
	defer ks.mu.Unlock()
	ks.lock()
}

func (ks *KeyStore) lock() {
	if ks.seed != nil {
		utils.Zero(ks.seed)
		ks.seed = nil
	}
	if ks.status == StatusUnlocked {
		ks.status = StatusLocked
	}
}

// Clear irreversibly destroys persisted and in-memory key material.
func (ks *KeyStore) Clear() error {
	ks.mu.Lock()
	defer ks.mu.Unlock()

	ks.lock()
	if err := ks.store.Delete(keyFileKey); err != nil {
		return fmt.Errorf("failed to delete key file: %w", err)
	}
	ks.file = nil
	ks.status = StatusEmpty
	logger.Warn("[KeyStore] key material cleared")
	return nil
}

// Derive is a pure function of the unlocked seed and path.
func (ks *KeyStore) Derive(path Path) (Key, error) {
	ks.mu.RLock()
	defer ks.mu.RUnlock()

	if ks.status != StatusUnlocked {
		return Key{}, ErrNotUnlocked
	}

	privateKey, err := crypto.DeriveAccountKey(ks.seed, path.Indices())
	if err != nil {
		return Key{}, err
	}
	defer privateKey.Zero()

	pubKey := crypto.PublicKeyToBytes(privateKey.PubKey())
	address, err := crypto.PubKeyToAddress(pubKey)
	if err != nil {
		return Key{}, err
	}

	return Key{
		Algo:    prt.AlgoSecp256k1,
		PubKey:  pubKey,
		Address: address[:],
	}, nil
}

// Sign signs message with the key at path.
func (ks *KeyStore) Sign(path Path, message []byte) ([]byte, error) {
	ks.mu.RLock()
	defer ks.mu.RUnlock()

	if ks.status != StatusUnlocked {
		return nil, ErrNotUnlocked
	}

	privateKey, err := crypto.DeriveAccountKey(ks.seed, path.Indices())
	if err != nil {
		return nil, err
	}
	defer privateKey.Zero()

	return crypto.SignData(privateKey, message)
}

// KDFParams of the loaded key file, for diagnostics.
func (ks *KeyStore) KDFParams() (KDFParams, bool) {
	ks.mu.RLock()
	defer ks.mu.RUnlock()

	if ks.file == nil {
		return KDFParams{}, false
	}
	return ks.file.Crypto.KDFParams, true
}

func normalizeMnemonic(m string) string {
	return strings.Join(strings.Fields(strings.ToLower(m)), " ")
}
