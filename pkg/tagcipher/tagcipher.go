// Package tagcipher resolves an event's effective tag list: cleartext
// events pass through unchanged; events carrying an "encrypted"
// marker tag are decrypted via an ephemeral-key X25519 ECDH scheme tied to
// the event author, and are dropped if the daemon is not the named
// recipient.
package tagcipher

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/cloudflare/circl/dh/x25519"
	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"

	"github.com/rad-roots-labs/rhi/pkg/identity"
	"github.com/rad-roots-labs/rhi/pkg/transport"
)

const encryptedMarkerTag = "encrypted"

// NotRecipient is returned when an encrypted event names a different
// recipient; the subscriber drops such events rather than treating this as
// a protocol error.
type NotRecipient struct{ Recipient string }

func (e *NotRecipient) Error() string {
	return fmt.Sprintf("tagcipher: daemon is not the recipient (p=%s)", e.Recipient)
}

// StaticKey derives a stable X25519 static key from the daemon's secp256k1
// identity. The two curves are unrelated; deriving one from the other via a
// fixed one-way hash is the accepted boundary for bridging a daemon that
// already has one signing identity into a second, purely-for-ECDH key
// space, without asking pkg/identity to understand X25519 at all.
func StaticKey(kp *identity.KeyPair) (pub, priv x25519.Key) {
	seed := sha256.Sum256(append([]byte("rhi-tagcipher-x25519-v1:"), kp.PrivateScalarBytes()...))
	priv = x25519.Key(seed)
	x25519.KeyGen(&pub, &priv)
	return pub, priv
}

// Resolve returns the effective tag list for ev and whether the daemon is
// its recipient (false means "drop silently").
func Resolve(kp *identity.KeyPair, ev transport.SignedEvent) (tags [][]string, isRecipient bool, err error) {
	if !hasEncryptedMarker(ev.Tags) {
		return ev.Tags, true, nil
	}

	recipient, ok := ev.TagValue("p")
	if !ok {
		return nil, false, fmt.Errorf("tagcipher: encrypted event missing p tag")
	}
	if recipient != kp.PublicKeyHex {
		return nil, false, &NotRecipient{Recipient: recipient}
	}

	ephemeralHex, ok := ev.TagValue(encryptedMarkerTag)
	if !ok || ephemeralHex == "" {
		return nil, true, fmt.Errorf("tagcipher: encrypted event missing ephemeral pubkey")
	}
	ephemeralBytes, err := hex.DecodeString(ephemeralHex)
	if err != nil || len(ephemeralBytes) != 32 {
		return nil, true, fmt.Errorf("tagcipher: malformed ephemeral pubkey")
	}
	var ephemeralPub x25519.Key
	copy(ephemeralPub[:], ephemeralBytes)

	_, staticPriv := StaticKey(kp)

	var shared x25519.Key
	if !x25519.Shared(&shared, &staticPriv, &ephemeralPub) {
		return nil, true, fmt.Errorf("tagcipher: ECDH produced a low-order point")
	}

	key, err := deriveKey(shared[:], ephemeralHex)
	if err != nil {
		return nil, true, err
	}

	cleartext, err := decrypt(key, ev.Content)
	if err != nil {
		return nil, true, err
	}

	var resolvedTags [][]string
	if err := json.Unmarshal(cleartext, &resolvedTags); err != nil {
		return nil, true, fmt.Errorf("tagcipher: decrypted content is not a tag list: %w", err)
	}
	return resolvedTags, true, nil
}

func hasEncryptedMarker(tags [][]string) bool {
	for _, t := range tags {
		if len(t) >= 1 && t[0] == encryptedMarkerTag {
			return true
		}
	}
	return false
}

func deriveKey(sharedPoint []byte, salt string) ([]byte, error) {
	r := hkdf.New(sha256.New, sharedPoint, []byte(salt), []byte("rhi-tagcipher-v1"))
	key := make([]byte, chacha20poly1305.KeySize)
	if _, err := r.Read(key); err != nil {
		return nil, fmt.Errorf("tagcipher: hkdf expand: %w", err)
	}
	return key, nil
}

func decrypt(key []byte, ciphertextHex string) ([]byte, error) {
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, fmt.Errorf("tagcipher: aead init: %w", err)
	}
	ciphertext, err := hex.DecodeString(ciphertextHex)
	if err != nil {
		return nil, fmt.Errorf("tagcipher: content is not hex ciphertext: %w", err)
	}
	nonce := make([]byte, chacha20poly1305.NonceSize)
	cleartext, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("tagcipher: decrypt failed: %w", err)
	}
	return cleartext, nil
}

// Encrypt is the sender-side counterpart used by cmd/rhi-envtool to build a
// test encrypted envelope: a fresh ephemeral key is generated per call
// (single-use, matching the zero-nonce AEAD construction above). The salt
// fed to HKDF is the ephemeral public key itself rather than the eventual
// event id, since the id is only computable after content (which embeds the
// ciphertext) is finalized.
func Encrypt(recipientPub x25519.Key, tags [][]string) (ephemeralPubHex, ciphertextHex string, err error) {
	var ephemeralPub, ephemeralPriv x25519.Key
	if _, err := rand.Read(ephemeralPriv[:]); err != nil {
		return "", "", err
	}
	x25519.KeyGen(&ephemeralPub, &ephemeralPriv)
	ephemeralPubHex = hex.EncodeToString(ephemeralPub[:])

	var shared x25519.Key
	if !x25519.Shared(&shared, &ephemeralPriv, &recipientPub) {
		return "", "", fmt.Errorf("tagcipher: ECDH produced a low-order point")
	}

	key, err := deriveKey(shared[:], ephemeralPubHex)
	if err != nil {
		return "", "", err
	}

	cleartext, err := json.Marshal(tags)
	if err != nil {
		return "", "", err
	}

	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return "", "", err
	}
	nonce := make([]byte, chacha20poly1305.NonceSize)
	ciphertext := aead.Seal(nil, nonce, cleartext, nil)

	return ephemeralPubHex, hex.EncodeToString(ciphertext), nil
}
