// Package identity is the opaque keypair provider for the daemon: the core
// only ever needs a hex-encodable public key and a signing function, never
// the private scalar directly.
package identity

import (
	"crypto/ecdsa"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/crypto"
)

// KeyPair wraps a secp256k1 key and exposes the daemon's public identity as
// a 64-hex-character (32-byte) string, the wire format used throughout the
// envelope/tag/address schema.
type KeyPair struct {
	private *ecdsa.PrivateKey
	public  *ecdsa.PublicKey

	PublicKeyHex string
}

func fromPrivateKey(pk *ecdsa.PrivateKey) *KeyPair {
	pub, ok := pk.Public().(*ecdsa.PublicKey)
	if !ok {
		panic("identity: unexpected public key type")
	}
	return &KeyPair{
		private:      pk,
		public:       pub,
		PublicKeyHex: fmt.Sprintf("%064x", pub.X),
	}
}

// Generate creates a new random keypair.
func Generate() (*KeyPair, error) {
	pk, err := crypto.GenerateKey()
	if err != nil {
		return nil, fmt.Errorf("identity: generate key: %w", err)
	}
	return fromPrivateKey(pk), nil
}

// FromHex loads a keypair from a hex-encoded secp256k1 private key, with or
// without a "0x" prefix.
func FromHex(hexKey string) (*KeyPair, error) {
	pk, err := crypto.HexToECDSA(strings.TrimPrefix(hexKey, "0x"))
	if err != nil {
		return nil, fmt.Errorf("identity: parse private key: %w", err)
	}
	return fromPrivateKey(pk), nil
}

// Sign signs a 32-byte hash, returning a 65-byte [R||S||V] signature.
func (k *KeyPair) Sign(hash []byte) ([]byte, error) {
	if len(hash) != 32 {
		return nil, fmt.Errorf("identity: hash must be 32 bytes, got %d", len(hash))
	}
	sig, err := crypto.Sign(hash, k.private)
	if err != nil {
		return nil, fmt.Errorf("identity: sign: %w", err)
	}
	return sig, nil
}

// PrivateScalarBytes returns the 32-byte big-endian private scalar. Used
// only by pkg/tagcipher to derive an X25519 static key via SHA-256; never
// logged, never sent over the wire.
func (k *KeyPair) PrivateScalarBytes() []byte {
	return crypto.FromECDSA(k.private)
}
