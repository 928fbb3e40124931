package custody

import (
	"errors"

	"github.com/abcfe/abcfe-keyring/chain"
	"github.com/abcfe/abcfe-keyring/keystore"
)

var (
	ErrPathNotSet      = errors.New("custody: derivation path not set")
	ErrInvalidAddress  = errors.New("custody: address does not match current key")
	ErrApprovalMissing = errors.New("custody: approved without a payload")
)

// Kind names an approval surface.
type Kind string

const (
	KindUnlock   Kind = "unlock"
	KindTxConfig Kind = "tx-config"
	KindSign     Kind = "sign"
)

// unlockRequestID is fixed so concurrent unlock flows collapse onto one request.
const unlockRequestID = "unlock"

// KeyRing is the key material backend.
type KeyRing interface {
	Status() keystore.Status
	Restore() (keystore.Status, error)
	Create(mnemonic, password string) error
	Unlock(password string) error
	Lock()
	Clear() error
	Derive(path keystore.Path) (keystore.Key, error)
	Sign(path keystore.Path, message []byte) ([]byte, error)
}

type ChainInfoProvider interface {
	GetChainInfo(chainID string) (chain.Info, error)
	CheckAccessOrigin(chainID, origin string) error
}

// PromptSpawner opens a user facing approval surface. It must not block;
// the user answers through the keeper's Approve and Reject methods.
type PromptSpawner interface {
	SpawnApprovalPrompt(kind Kind, requestID string)
}

type AddressCodec interface {
	Encode(prefix string, address []byte) (string, error)
	Decode(address string) (prefix string, raw []byte, err error)
}

// DerivedKey is the current key formatted for its chain.
type DerivedKey struct {
	Algo          string `json:"algo"`
	PubKey        []byte `json:"pubKey"`
	Address       []byte `json:"address"`
	Bech32Address string `json:"bech32Address"`
}

// TxBuilderConfig is the fee and sequence detail a site proposes and the
// user may edit before approving.
type TxBuilderConfig struct {
	ChainID       string `json:"chainId"`
	AccountNumber uint64 `json:"accountNumber"`
	Sequence      uint64 `json:"sequence"`
	Gas           uint64 `json:"gas"`
	Fee           string `json:"fee"`
	Memo          string `json:"memo"`
}

type SignRequest struct {
	ChainID string `json:"chainId"`
	Message []byte `json:"message"`
}

// Signed is an approved signature and the public key that verifies it.
type Signed struct {
	Signature []byte
	PubKey    []byte
}

type nopSpawner struct{}

func (nopSpawner) SpawnApprovalPrompt(Kind, string) {}
