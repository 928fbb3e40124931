package protocol

const (
	// Keyring related prefixes
	PrefixKeyring       = "keyring:"
	PrefixKeyringCrypto = "keyring:crypto" // Encrypted master secret (keystore v3 json)
)
