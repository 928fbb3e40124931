package keystore

import "errors"

var (
	// ErrKeyAbsent is returned when an operation needs key material but none is loaded.
	ErrKeyAbsent = errors.New("keystore: key absent")
	// ErrNotUnlocked is returned by Derive and Sign unless the store is unlocked.
	ErrNotUnlocked = errors.New("keystore: not unlocked")
	// ErrWrongPassword is returned when the password does not decrypt the master secret.
	ErrWrongPassword = errors.New("keystore: wrong password")
	// ErrInvalidMnemonic is returned when a mnemonic fails BIP-39 validation.
	ErrInvalidMnemonic = errors.New("keystore: invalid mnemonic")
	// ErrKeyExists is returned by Create when key material already exists.
	ErrKeyExists = errors.New("keystore: key already exists")
)
