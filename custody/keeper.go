// Package custody gates every sensitive key operation behind an approval
// that the user grants from a separate surface.
package custody

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/abcfe/abcfe-keyring/approval"
	"github.com/abcfe/abcfe-keyring/common/crypto"
	"github.com/abcfe/abcfe-keyring/common/logger"
	"github.com/abcfe/abcfe-keyring/keystore"
	"github.com/jonboulle/clockwork"
)

type Keeper struct {
	ks      KeyRing
	chains  ChainInfoProvider
	spawner PromptSpawner
	codec   AddressCodec

	unlockTimeout   time.Duration
	txConfigTimeout time.Duration
	signTimeout     time.Duration

	unlocks   *approval.Registry[struct{}, struct{}]
	txConfigs *approval.Registry[TxBuilderConfig, *TxBuilderConfig]
	signs     *approval.Registry[SignRequest, struct{}]

	mu        sync.RWMutex
	path      *keystore.Path
	pathChain string
}

type options struct {
	spawner  PromptSpawner
	codec    AddressCodec
	unlock   time.Duration
	txConfig time.Duration
	sign     time.Duration
	clock    clockwork.Clock
}

type Option func(*options)

func WithPromptSpawner(s PromptSpawner) Option {
	return func(o *options) {
		if s != nil {
			o.spawner = s
		}
	}
}

func WithAddressCodec(c AddressCodec) Option {
	return func(o *options) {
		if c != nil {
			o.codec = c
		}
	}
}

// WithTimeouts sets the expiry of each approval kind. Zero keeps the default.
func WithTimeouts(unlock, txConfig, sign time.Duration) Option {
	return func(o *options) {
		if unlock > 0 {
			o.unlock = unlock
		}
		if txConfig > 0 {
			o.txConfig = txConfig
		}
		if sign > 0 {
			o.sign = sign
		}
	}
}

func WithClock(c clockwork.Clock) Option {
	return func(o *options) {
		o.clock = c
	}
}

func New(ks KeyRing, chains ChainInfoProvider, opts ...Option) *Keeper {
	o := options{
		spawner:  nopSpawner{},
		codec:    crypto.Bech32Codec{},
		unlock:   approval.DefaultTimeout,
		txConfig: approval.DefaultTimeout,
		sign:     approval.DefaultTimeout,
		clock:    clockwork.NewRealClock(),
	}
	for _, opt := range opts {
		opt(&o)
	}

	return &Keeper{
		ks:              ks,
		chains:          chains,
		spawner:         o.spawner,
		codec:           o.codec,
		unlockTimeout:   o.unlock,
		txConfigTimeout: o.txConfig,
		signTimeout:     o.sign,
		unlocks:         approval.New[struct{}, struct{}](string(KindUnlock), approval.WithTimeout(o.unlock), approval.WithClock(o.clock)),
		txConfigs:       approval.New[TxBuilderConfig, *TxBuilderConfig](string(KindTxConfig), approval.WithTimeout(o.txConfig), approval.WithClock(o.clock)),
		signs:           approval.New[SignRequest, struct{}](string(KindSign), approval.WithTimeout(o.sign), approval.WithClock(o.clock)),
	}
}

// Enable makes the key usable for the caller. A locked store raises a single
// unlock prompt shared by every concurrent caller and waits for it.
func (k *Keeper) Enable(ctx context.Context) (keystore.Status, error) {
	status := k.ks.Status()
	if status == keystore.StatusNotLoaded {
		var err error
		if status, err = k.ks.Restore(); err != nil {
			return status, err
		}
	}
	if status != keystore.StatusLocked {
		return status, nil
	}

	future, err := k.unlockFuture()
	if err != nil {
		return k.ks.Status(), err
	}
	if _, err := future.Wait(ctx); err != nil {
		return k.ks.Status(), err
	}
	return k.ks.Status(), nil
}

func (k *Keeper) unlockFuture() (*approval.Future[struct{}], error) {
	for {
		if f, ok := k.unlocks.Join(unlockRequestID); ok {
			return f, nil
		}

		f, err := k.unlocks.Register(unlockRequestID, struct{}{}, k.unlockTimeout)
		if errors.Is(err, approval.ErrDuplicateRequest) {
			// 다른 호출자가 먼저 등록함
			continue
		}
		if err != nil {
			return nil, err
		}

		// Unlock may have landed between the status read and Register,
		// when there was nothing pending to approve.
		if k.ks.Status() == keystore.StatusUnlocked {
			k.unlocks.Approve(unlockRequestID, struct{}{})
			return f, nil
		}

		logger.Info("[Custody] unlock requested")
		k.spawner.SpawnApprovalPrompt(KindUnlock, unlockRequestID)
		return f, nil
	}
}

// Unlock decrypts the key and approves the pending unlock request. A wrong
// password leaves the request pending so the user can retry.
func (k *Keeper) Unlock(password string) error {
	if err := k.ks.Unlock(password); err != nil {
		logger.Warn("[Custody] unlock failed: ", err)
		return err
	}
	if !k.unlocks.Approve(unlockRequestID, struct{}{}) {
		logger.Debug("[Custody] unlocked without a pending request")
	}
	logger.Info("[Custody] key unlocked")
	return nil
}

func (k *Keeper) RejectUnlock() {
	if !k.unlocks.Reject(unlockRequestID) {
		logger.Debug("[Custody] no unlock request to reject")
	}
}

func (k *Keeper) Lock() {
	k.ks.Lock()
	logger.Info("[Custody] key locked")
}

func (k *Keeper) Status() keystore.Status {
	return k.ks.Status()
}

func (k *Keeper) Restore() (keystore.Status, error) {
	return k.ks.Restore()
}

func (k *Keeper) CreateKey(mnemonic, password string) error {
	if err := k.ks.Create(mnemonic, password); err != nil {
		logger.Warn("[Custody] key creation failed: ", err)
		return err
	}
	return nil
}

// Clear destroys the key and forgets the current path.
func (k *Keeper) Clear() error {
	if err := k.ks.Clear(); err != nil {
		return err
	}
	k.mu.Lock()
	k.path = nil
	k.pathChain = ""
	k.mu.Unlock()
	return nil
}

func (k *Keeper) NewMnemonic(bits int) (string, error) {
	return keystore.NewMnemonic(bits)
}

// SetPath selects m/44'/<coin>'/<account>'/0/<index> for chainID.
func (k *Keeper) SetPath(chainID string, account, index uint32) error {
	info, err := k.chains.GetChainInfo(chainID)
	if err != nil {
		return err
	}

	path := keystore.Path{CoinType: info.CoinType, Account: account, AddressIndex: index}

	k.mu.Lock()
	k.path = &path
	k.pathChain = chainID
	k.mu.Unlock()

	logger.Info("[Custody] path set: ", chainID, " ", path.String())
	return nil
}

// CurrentPath returns the selected path and the chain it was set for.
func (k *Keeper) CurrentPath() (keystore.Path, string, error) {
	k.mu.RLock()
	defer k.mu.RUnlock()

	if k.path == nil {
		return keystore.Path{}, "", ErrPathNotSet
	}
	return *k.path, k.pathChain, nil
}

// GetKey derives the current key and formats its address for the chain the
// path was set for.
func (k *Keeper) GetKey() (DerivedKey, error) {
	path, chainID, err := k.CurrentPath()
	if err != nil {
		return DerivedKey{}, err
	}
	info, err := k.chains.GetChainInfo(chainID)
	if err != nil {
		return DerivedKey{}, err
	}
	return k.derive(path, info.Bech32Prefix)
}

func (k *Keeper) derive(path keystore.Path, prefix string) (DerivedKey, error) {
	key, err := k.ks.Derive(path)
	if err != nil {
		return DerivedKey{}, err
	}
	bech32Address, err := k.codec.Encode(prefix, key.Address)
	if err != nil {
		return DerivedKey{}, err
	}
	return DerivedKey{
		Algo:          key.Algo,
		PubKey:        key.PubKey,
		Address:       key.Address,
		Bech32Address: bech32Address,
	}, nil
}

// CheckBech32Address fails with ErrInvalidAddress unless address is the
// current key formatted for chainID.
func (k *Keeper) CheckBech32Address(chainID, address string) error {
	path, _, err := k.CurrentPath()
	if err != nil {
		return err
	}
	info, err := k.chains.GetChainInfo(chainID)
	if err != nil {
		return err
	}

	prefix, _, err := k.codec.Decode(address)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidAddress, err)
	}
	if prefix != info.Bech32Prefix {
		return fmt.Errorf("%w: prefix %q, chain %s uses %q", ErrInvalidAddress, prefix, chainID, info.Bech32Prefix)
	}

	key, err := k.derive(path, info.Bech32Prefix)
	if err != nil {
		return err
	}
	if key.Bech32Address != address {
		return fmt.Errorf("%w: %s", ErrInvalidAddress, address)
	}
	return nil
}

// RequestTxBuilderConfig waits for the user to approve, and possibly edit, config.
func (k *Keeper) RequestTxBuilderConfig(ctx context.Context, config TxBuilderConfig, id string, openPrompt bool) (TxBuilderConfig, error) {
	future, err := k.txConfigs.Register(id, config, k.txConfigTimeout)
	if err != nil {
		return TxBuilderConfig{}, err
	}
	logger.Info("[Custody] tx config requested: ", id, " chain: ", config.ChainID)
	if openPrompt {
		k.spawner.SpawnApprovalPrompt(KindTxConfig, id)
	}

	approved, err := future.Wait(ctx)
	if err != nil {
		return TxBuilderConfig{}, err
	}
	if approved == nil {
		return TxBuilderConfig{}, ErrApprovalMissing
	}
	return *approved, nil
}

// ApproveTxBuilderConfig resolves id with config. A nil config makes the
// requester fail with ErrApprovalMissing.
func (k *Keeper) ApproveTxBuilderConfig(id string, config *TxBuilderConfig) bool {
	if config != nil {
		c := *config
		config = &c
	}
	ok := k.txConfigs.Approve(id, config)
	if !ok {
		logger.Debug("[Custody] tx config approval ignored: ", id)
	}
	return ok
}

func (k *Keeper) RejectTxBuilderConfig(id string) bool {
	ok := k.txConfigs.Reject(id)
	if !ok {
		logger.Debug("[Custody] tx config rejection ignored: ", id)
	}
	return ok
}

func (k *Keeper) GetRequestedTxConfig(id string) (TxBuilderConfig, error) {
	return k.txConfigs.GetData(id)
}

// RequestSign waits for the user to approve signing message and signs it
// with the current path. The returned public key belongs to that same path.
func (k *Keeper) RequestSign(ctx context.Context, chainID string, message []byte, id string, openPrompt bool) (Signed, error) {
	if _, _, err := k.CurrentPath(); err != nil {
		return Signed{}, err
	}
	if _, err := k.chains.GetChainInfo(chainID); err != nil {
		return Signed{}, err
	}

	msg := append([]byte(nil), message...)
	future, err := k.signs.Register(id, SignRequest{ChainID: chainID, Message: msg}, k.signTimeout)
	if err != nil {
		return Signed{}, err
	}
	logger.Info("[Custody] sign requested: ", id, " chain: ", chainID)
	if openPrompt {
		k.spawner.SpawnApprovalPrompt(KindSign, id)
	}

	if _, err := future.Wait(ctx); err != nil {
		return Signed{}, err
	}

	path, _, err := k.CurrentPath()
	if err != nil {
		return Signed{}, err
	}
	key, err := k.ks.Derive(path)
	if err != nil {
		return Signed{}, err
	}
	sig, err := k.ks.Sign(path, msg)
	if err != nil {
		return Signed{}, err
	}
	return Signed{Signature: sig, PubKey: key.PubKey}, nil
}

func (k *Keeper) ApproveSign(id string) bool {
	ok := k.signs.Approve(id, struct{}{})
	if !ok {
		logger.Debug("[Custody] sign approval ignored: ", id)
	}
	return ok
}

func (k *Keeper) RejectSign(id string) bool {
	ok := k.signs.Reject(id)
	if !ok {
		logger.Debug("[Custody] sign rejection ignored: ", id)
	}
	return ok
}

func (k *Keeper) GetRequestedMessage(id string) (SignRequest, error) {
	req, err := k.signs.GetData(id)
	if err != nil {
		return SignRequest{}, err
	}
	req.Message = append([]byte(nil), req.Message...)
	return req, nil
}

func (k *Keeper) CheckAccessOrigin(chainID, origin string) error {
	return k.chains.CheckAccessOrigin(chainID, origin)
}

// PendingApprovals lists pending request ids per kind.
func (k *Keeper) PendingApprovals() map[Kind][]string {
	return map[Kind][]string{
		KindUnlock:   k.unlocks.Pending(),
		KindTxConfig: k.txConfigs.Pending(),
		KindSign:     k.signs.Pending(),
	}
}

