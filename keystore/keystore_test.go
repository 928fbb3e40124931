package keystore

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/abcfe/abcfe-keyring/common/crypto"
	prt "github.com/abcfe/abcfe-keyring/protocol"
	"github.com/abcfe/abcfe-keyring/storage"
)

const (
	testMnemonic = "abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon about"
	testPassword = "pw1"
)

var cosmosPath = Path{CoinType: 118}

func newTestKeyStore(t *testing.T, store storage.Store) *KeyStore {
	t.Helper()
	if store == nil {
		store = storage.NewMemStore()
	}
	return New(store, WithScryptParams(LightScryptN, LightScryptP))
}

func createUnlocked(t *testing.T) *KeyStore {
	t.Helper()
	ks := newTestKeyStore(t, nil)
	if err := ks.Create(testMnemonic, testPassword); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := ks.Unlock(testPassword); err != nil {
		t.Fatalf("Unlock: %v", err)
	}
	return ks
}

func TestCreateLockUnlock_SameKey(t *testing.T) {
	ks := newTestKeyStore(t, nil)
	if got := ks.Status(); got != StatusNotLoaded {
		t.Fatalf("expected NOT_LOADED, got %s", got)
	}

	if err := ks.Create(testMnemonic, testPassword); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if got := ks.Status(); got != StatusLocked {
		t.Fatalf("expected LOCKED after create, got %s", got)
	}

	if err := ks.Unlock(testPassword); err != nil {
		t.Fatalf("Unlock: %v", err)
	}
	if got := ks.Status(); got != StatusUnlocked {
		t.Fatalf("expected UNLOCKED, got %s", got)
	}

	first, err := ks.Derive(cosmosPath)
	if err != nil {
		t.Fatalf("Derive: %v", err)
	}

	ks.Lock()
	if got := ks.Status(); got != StatusLocked {
		t.Fatalf("expected LOCKED after lock, got %s", got)
	}

	if err := ks.Unlock(testPassword); err != nil {
		t.Fatalf("Unlock: %v", err)
	}
	second, err := ks.Derive(cosmosPath)
	if err != nil {
		t.Fatalf("Derive: %v", err)
	}

	if !bytes.Equal(first.PubKey, second.PubKey) || !bytes.Equal(first.Address, second.Address) {
		t.Fatal("derived key changed across lock/unlock")
	}
	if first.Algo != prt.AlgoSecp256k1 {
		t.Errorf("expected secp256k1, got %s", first.Algo)
	}
	if len(first.PubKey) != 33 || len(first.Address) != 20 {
		t.Errorf("unexpected key sizes: pub=%d addr=%d", len(first.PubKey), len(first.Address))
	}
}

func TestUnlock_WrongPassword(t *testing.T) {
	ks := newTestKeyStore(t, nil)
	if err := ks.Create(testMnemonic, testPassword); err != nil {
		t.Fatalf("Create: %v", err)
	}

	if err := ks.Unlock("wrong"); !errors.Is(err, ErrWrongPassword) {
		t.Fatalf("expected ErrWrongPassword, got %v", err)
	}
	if got := ks.Status(); got != StatusLocked {
		t.Fatalf("expected LOCKED after wrong password, got %s", got)
	}

	// 잠금 해제 상태에서도 잘못된 비밀번호는 잠금 상태로 되돌림
	if err := ks.Unlock(testPassword); err != nil {
		t.Fatalf("Unlock: %v", err)
	}
	if err := ks.Unlock("wrong"); !errors.Is(err, ErrWrongPassword) {
		t.Fatalf("expected ErrWrongPassword, got %v", err)
	}
	if got := ks.Status(); got != StatusLocked {
		t.Fatalf("expected LOCKED, got %s", got)
	}
	if ks.seed != nil {
		t.Fatal("seed should be dropped after failed unlock")
	}
}

func TestDeriveSign_RequireUnlocked(t *testing.T) {
	store := storage.NewMemStore()

	notLoaded := newTestKeyStore(t, store)

	empty := newTestKeyStore(t, storage.NewMemStore())
	if _, err := empty.Restore(); err != nil {
		t.Fatalf("Restore: %v", err)
	}

	locked := newTestKeyStore(t, store)
	if err := locked.Create(testMnemonic, testPassword); err != nil {
		t.Fatalf("Create: %v", err)
	}

	relocked := createUnlocked(t)
	relocked.Lock()

	cleared := createUnlocked(t)
	if err := cleared.Clear(); err != nil {
		t.Fatalf("Clear: %v", err)
	}

	cases := []struct {
		name   string
		ks     *KeyStore
		status Status
	}{
		{"not loaded", notLoaded, StatusNotLoaded},
		{"empty", empty, StatusEmpty},
		{"locked", locked, StatusLocked},
		{"relocked", relocked, StatusLocked},
		{"cleared", cleared, StatusEmpty},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.ks.Status(); got != tc.status {
				t.Fatalf("expected %s, got %s", tc.status, got)
			}
			if _, err := tc.ks.Derive(cosmosPath); !errors.Is(err, ErrNotUnlocked) {
				t.Errorf("Derive: expected ErrNotUnlocked, got %v", err)
			}
			if _, err := tc.ks.Sign(cosmosPath, []byte("msg")); !errors.Is(err, ErrNotUnlocked) {
				t.Errorf("Sign: expected ErrNotUnlocked, got %v", err)
			}
		})
	}
}

func TestCreate_InvalidMnemonic(t *testing.T) {
	ks := newTestKeyStore(t, nil)

	bad := strings.TrimSuffix(testMnemonic, "about") + "abandon" // checksum mismatch
	if err := ks.Create(bad, testPassword); !errors.Is(err, ErrInvalidMnemonic) {
		t.Fatalf("expected ErrInvalidMnemonic, got %v", err)
	}
	if err := ks.Create("not a mnemonic", testPassword); !errors.Is(err, ErrInvalidMnemonic) {
		t.Fatalf("expected ErrInvalidMnemonic, got %v", err)
	}
	if got := ks.Status(); got != StatusEmpty {
		t.Fatalf("expected EMPTY, got %s", got)
	}
}

func TestCreate_NormalizesMnemonic(t *testing.T) {
	ks := newTestKeyStore(t, nil)
	messy := "  ABANDON abandon\tabandon abandon abandon abandon abandon abandon abandon abandon abandon   about "
	if err := ks.Create(messy, testPassword); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := ks.Unlock(testPassword); err != nil {
		t.Fatalf("Unlock: %v", err)
	}
	got, _ := ks.Derive(cosmosPath)

	want := createUnlocked(t)
	wantKey, _ := want.Derive(cosmosPath)
	if !bytes.Equal(got.PubKey, wantKey.PubKey) {
		t.Fatal("normalized mnemonic should derive the same key")
	}
}

func TestCreate_Twice(t *testing.T) {
	ks := newTestKeyStore(t, nil)
	if err := ks.Create(testMnemonic, testPassword); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := ks.Create(testMnemonic, "pw2"); !errors.Is(err, ErrKeyExists) {
		t.Fatalf("expected ErrKeyExists, got %v", err)
	}
}

func TestCreate_DoesNotOverwritePersistedKey(t *testing.T) {
	store := storage.NewMemStore()
	first := newTestKeyStore(t, store)
	if err := first.Create(testMnemonic, testPassword); err != nil {
		t.Fatalf("Create: %v", err)
	}

	// 새 인스턴스는 NOT_LOADED 상태지만 저장된 키를 덮어쓰면 안 됨
	second := newTestKeyStore(t, store)
	other, _ := NewMnemonic(128)
	if err := second.Create(other, "pw2"); !errors.Is(err, ErrKeyExists) {
		t.Fatalf("expected ErrKeyExists, got %v", err)
	}
}

func TestCreate_EmptyPassword(t *testing.T) {
	ks := newTestKeyStore(t, nil)
	if err := ks.Create(testMnemonic, ""); err == nil {
		t.Fatal("expected error for empty password")
	}
	if got := ks.Status(); got != StatusEmpty {
		t.Fatalf("expected EMPTY, got %s", got)
	}
}

func TestRestore(t *testing.T) {
	store := storage.NewMemStore()

	ks := newTestKeyStore(t, store)
	status, err := ks.Restore()
	if err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if status != StatusEmpty {
		t.Fatalf("expected EMPTY on fresh store, got %s", status)
	}

	if err := ks.Create(testMnemonic, testPassword); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := ks.Unlock(testPassword); err != nil {
		t.Fatalf("Unlock: %v", err)
	}
	want, _ := ks.Derive(cosmosPath)

	// 재시작 시뮬레이션
	restarted := newTestKeyStore(t, store)
	status, err = restarted.Restore()
	if err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if status != StatusLocked {
		t.Fatalf("expected LOCKED after restore, got %s", status)
	}
	if err := restarted.Unlock(testPassword); err != nil {
		t.Fatalf("Unlock: %v", err)
	}
	got, _ := restarted.Derive(cosmosPath)
	if !bytes.Equal(got.Address, want.Address) {
		t.Fatal("restored key derives a different address")
	}

	// 로드된 상태에서 Restore는 상태를 바꾸지 않음
	status, _ = restarted.Restore()
	if status != StatusUnlocked {
		t.Fatalf("expected UNLOCKED to be kept, got %s", status)
	}
}

func TestRestore_CorruptBlob(t *testing.T) {
	store := storage.NewMemStore()
	_ = store.Set([]byte(prt.PrefixKeyringCrypto), []byte("{not json"))

	ks := newTestKeyStore(t, store)
	if _, err := ks.Restore(); err == nil {
		t.Fatal("expected parse error")
	}
	if got := ks.Status(); got != StatusNotLoaded {
		t.Fatalf("expected NOT_LOADED after failed restore, got %s", got)
	}
}

func TestUnlock_KeyAbsent(t *testing.T) {
	ks := newTestKeyStore(t, nil)
	if err := ks.Unlock(testPassword); !errors.Is(err, ErrKeyAbsent) {
		t.Fatalf("NOT_LOADED: expected ErrKeyAbsent, got %v", err)
	}
	_, _ = ks.Restore()
	if err := ks.Unlock(testPassword); !errors.Is(err, ErrKeyAbsent) {
		t.Fatalf("EMPTY: expected ErrKeyAbsent, got %v", err)
	}
}

func TestLock_ZeroesSeed(t *testing.T) {
	ks := createUnlocked(t)

	seed := ks.seed
	if len(seed) != 64 {
		t.Fatalf("expected 64 byte seed, got %d", len(seed))
	}
	ks.Lock()

	if !bytes.Equal(seed, make([]byte, len(seed))) {
		t.Fatal("seed not zeroed on lock")
	}
	if ks.seed != nil {
		t.Fatal("seed reference not dropped on lock")
	}

	// 잠긴 상태에서 Lock은 아무 일도 하지 않음
	ks.Lock()
	if got := ks.Status(); got != StatusLocked {
		t.Fatalf("expected LOCKED, got %s", got)
	}
}

func TestClear(t *testing.T) {
	store := storage.NewMemStore()
	ks := newTestKeyStore(t, store)
	if err := ks.Create(testMnemonic, testPassword); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := ks.Unlock(testPassword); err != nil {
		t.Fatalf("Unlock: %v", err)
	}
	seed := ks.seed

	if err := ks.Clear(); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if got := ks.Status(); got != StatusEmpty {
		t.Fatalf("expected EMPTY, got %s", got)
	}
	if !bytes.Equal(seed, make([]byte, len(seed))) {
		t.Fatal("seed not zeroed on clear")
	}
	if _, err := store.Get([]byte(prt.PrefixKeyringCrypto)); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected key file deleted, got %v", err)
	}

	// 삭제 후 새 키 생성 가능
	if err := ks.Create(testMnemonic, "pw2"); err != nil {
		t.Fatalf("Create after clear: %v", err)
	}
}

func TestPersistedBlob_NoPlaintext(t *testing.T) {
	store := storage.NewMemStore()
	ks := newTestKeyStore(t, store)
	if err := ks.Create(testMnemonic, testPassword); err != nil {
		t.Fatalf("Create: %v", err)
	}

	data, err := store.Get([]byte(prt.PrefixKeyringCrypto))
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if bytes.Contains(data, []byte("abandon")) {
		t.Fatal("persisted blob contains plaintext mnemonic")
	}

	var file KeyFile
	if err := json.Unmarshal(data, &file); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if file.Crypto.Cipher != "aes-128-ctr" || file.Crypto.KDF != "scrypt" {
		t.Errorf("unexpected crypto header: %+v", file.Crypto)
	}
	if file.Crypto.KDFParams.N != LightScryptN || file.Crypto.KDFParams.R != 8 {
		t.Errorf("unexpected kdf params: %+v", file.Crypto.KDFParams)
	}

	params, ok := ks.KDFParams()
	if !ok || params.N != LightScryptN {
		t.Errorf("KDFParams: %+v %t", params, ok)
	}
}

func TestSign_Verifies(t *testing.T) {
	ks := createUnlocked(t)

	msg := []byte(`{"chain_id":"cosmoshub-4"}`)
	sig, err := ks.Sign(cosmosPath, msg)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	key, _ := ks.Derive(cosmosPath)

	ok, err := crypto.VerifySignatureWithBytes(key.PubKey, msg, sig)
	if err != nil || !ok {
		t.Fatalf("signature does not verify: ok=%t err=%v", ok, err)
	}

	other, _ := ks.Derive(Path{CoinType: 118, AddressIndex: 1})
	if ok, _ := crypto.VerifySignatureWithBytes(other.PubKey, msg, sig); ok {
		t.Fatal("signature should not verify under another path's key")
	}
}

func TestNewMnemonic(t *testing.T) {
	for bits, words := range map[int]int{128: 12, 256: 24} {
		m, err := NewMnemonic(bits)
		if err != nil {
			t.Fatalf("NewMnemonic(%d): %v", bits, err)
		}
		if n := len(strings.Fields(m)); n != words {
			t.Errorf("expected %d words, got %d", words, n)
		}
		if !IsMnemonicValid(m) {
			t.Errorf("generated mnemonic is invalid: %s", m)
		}
	}

	if _, err := NewMnemonic(100); err == nil {
		t.Error("expected error for invalid entropy size")
	}
}

func TestPath(t *testing.T) {
	p := Path{CoinType: 118, Account: 2, Change: 0, AddressIndex: 7}
	if s := p.String(); s != "m/44'/118'/2'/0/7" {
		t.Fatalf("unexpected path string %s", s)
	}

	parsed, err := ParsePath(p.String())
	if err != nil {
		t.Fatalf("ParsePath: %v", err)
	}
	if parsed != p {
		t.Fatalf("round trip mismatch: %+v", parsed)
	}

	for _, bad := range []string{"", "m/44'/118'/0'/0", "m/44/118'/0'/0/0", "m/44'/118'/0'/0'/0", "m/45'/118'/0'/0/0", "x/44'/118'/0'/0/0"} {
		if _, err := ParsePath(bad); err == nil {
			t.Errorf("expected error for %q", bad)
		}
	}
}

func TestStatus_JSON(t *testing.T) {
	data, err := json.Marshal(map[string]Status{"status": StatusUnlocked})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(data) != `{"status":"UNLOCKED"}` {
		t.Fatalf("unexpected json %s", data)
	}

	var out map[string]Status
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if out["status"] != StatusUnlocked {
		t.Fatalf("unexpected status %s", out["status"])
	}
}
