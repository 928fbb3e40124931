package crypto

import (
	"crypto/sha256"
	"fmt"

	prt "github.com/abcfe/abcfe-keyring/protocol"
	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
)

// SignData signs sha256(data) and returns the 64 byte r||s form (low-S).
func SignData(privateKey *btcec.PrivateKey, data []byte) ([]byte, error) {
	if privateKey == nil {
		return nil, fmt.Errorf("private key is nil")
	}

	hash := sha256.Sum256(data)
	compact := ecdsa.SignCompact(privateKey, hash[:], true)

	// compact = recovery byte || r || s
	if len(compact) != prt.SignatureLength+1 {
		return nil, fmt.Errorf("unexpected compact signature length: %d", len(compact))
	}
	sig := make([]byte, prt.SignatureLength)
	copy(sig, compact[1:])
	return sig, nil
}

// VerifySignature verifies a 64 byte r||s signature over sha256(data)
func VerifySignature(publicKey *btcec.PublicKey, data []byte, sig []byte) bool {
	if publicKey == nil || len(sig) != prt.SignatureLength {
		return false
	}

	var r, s btcec.ModNScalar
	if overflow := r.SetByteSlice(sig[:32]); overflow {
		return false
	}
	if overflow := s.SetByteSlice(sig[32:]); overflow {
		return false
	}

	hash := sha256.Sum256(data)
	return ecdsa.NewSignature(&r, &s).Verify(hash[:], publicKey)
}

// VerifySignatureWithBytes verifies signature with byte public key
func VerifySignatureWithBytes(publicKeyBytes []byte, data []byte, sig []byte) (bool, error) {
	publicKey, err := BytesToPublicKey(publicKeyBytes)
	if err != nil {
		return false, err
	}
	return VerifySignature(publicKey, data, sig), nil
}
