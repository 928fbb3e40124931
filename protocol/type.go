package protocol

const (
	AddressLength   = 20 // ripemd160(sha256(pubkey))
	PubKeyLength    = 33 // compressed secp256k1
	SignatureLength = 64 // r || s
)

type Address [AddressLength]byte
type PubKey [PubKeyLength]byte
type Signature [SignatureLength]byte

// Algo 파생 키 알고리즘 식별자
const AlgoSecp256k1 = "secp256k1"
