package tagcipher

import (
	"encoding/hex"
	"errors"
	"testing"

	"github.com/rad-roots-labs/rhi/pkg/identity"
	"github.com/rad-roots-labs/rhi/pkg/transport"
)

func mustKeyPair(t *testing.T) *identity.KeyPair {
	t.Helper()
	kp, err := identity.Generate()
	if err != nil {
		t.Fatalf("identity.Generate: %v", err)
	}
	return kp
}

func TestResolvePassesThroughCleartextEvents(t *testing.T) {
	kp := mustKeyPair(t)
	ev := transport.SignedEvent{
		AuthorPubkey: "someone-else",
		Tags:         [][]string{{"p", kp.PublicKeyHex}, {"a", "30402:s:l"}},
	}
	tags, isRecipient, err := Resolve(kp, ev)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if !isRecipient {
		t.Fatal("expected isRecipient = true for a cleartext event naming this daemon")
	}
	if len(tags) != 2 {
		t.Fatalf("tags = %v, want the event's own tags unchanged", tags)
	}
}

func TestEncryptResolveRoundTrip(t *testing.T) {
	recipient := mustKeyPair(t)
	recipientPub, _ := StaticKey(recipient)

	original := [][]string{{"p", recipient.PublicKeyHex}, {"a", "30402:s:l"}, {"d", "ord-1"}}
	ephemeralPubHex, ciphertextHex, err := Encrypt(recipientPub, original)
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}

	ev := transport.SignedEvent{
		AuthorPubkey: "buyer-hex",
		Content:      ciphertextHex,
		Tags:         [][]string{{"p", recipient.PublicKeyHex}, {"encrypted", ephemeralPubHex}},
	}

	resolvedTags, isRecipient, err := Resolve(recipient, ev)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if !isRecipient {
		t.Fatal("expected isRecipient = true for the named recipient")
	}
	if len(resolvedTags) != len(original) {
		t.Fatalf("resolvedTags = %v, want %v", resolvedTags, original)
	}
	for i := range original {
		if len(resolvedTags[i]) != len(original[i]) || resolvedTags[i][0] != original[i][0] || resolvedTags[i][1] != original[i][1] {
			t.Fatalf("resolvedTags[%d] = %v, want %v", i, resolvedTags[i], original[i])
		}
	}
}

func TestResolveRejectsNonRecipient(t *testing.T) {
	recipient := mustKeyPair(t)
	bystander := mustKeyPair(t)
	recipientPub, _ := StaticKey(recipient)

	ephemeralPubHex, ciphertextHex, err := Encrypt(recipientPub, [][]string{{"p", recipient.PublicKeyHex}})
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}

	ev := transport.SignedEvent{
		AuthorPubkey: "buyer-hex",
		Content:      ciphertextHex,
		Tags:         [][]string{{"p", recipient.PublicKeyHex}, {"encrypted", ephemeralPubHex}},
	}

	_, isRecipient, err := Resolve(bystander, ev)
	if isRecipient {
		t.Fatal("expected isRecipient = false for a non-addressed daemon")
	}
	var notRecipient *NotRecipient
	if !errors.As(err, &notRecipient) {
		t.Fatalf("expected *NotRecipient error, got %v", err)
	}
	if notRecipient.Recipient != recipient.PublicKeyHex {
		t.Fatalf("NotRecipient.Recipient = %q, want %q", notRecipient.Recipient, recipient.PublicKeyHex)
	}
}

func TestResolveRejectsMalformedEphemeralKey(t *testing.T) {
	kp := mustKeyPair(t)
	ev := transport.SignedEvent{
		Tags: [][]string{{"p", kp.PublicKeyHex}, {"encrypted", "not-hex"}},
	}
	_, isRecipient, err := Resolve(kp, ev)
	if err == nil {
		t.Fatal("expected an error for a malformed ephemeral pubkey")
	}
	if !isRecipient {
		t.Fatal("a malformed-payload error for the named recipient is not a NotRecipient case")
	}
}

func TestResolveRejectsTamperedCiphertext(t *testing.T) {
	recipient := mustKeyPair(t)
	recipientPub, _ := StaticKey(recipient)

	ephemeralPubHex, ciphertextHex, err := Encrypt(recipientPub, [][]string{{"p", recipient.PublicKeyHex}})
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	tampered, err := hex.DecodeString(ciphertextHex)
	if err != nil {
		t.Fatalf("decode ciphertext: %v", err)
	}
	tampered[0] ^= 0xff

	ev := transport.SignedEvent{
		Content: hex.EncodeToString(tampered),
		Tags:    [][]string{{"p", recipient.PublicKeyHex}, {"encrypted", ephemeralPubHex}},
	}

	_, _, err = Resolve(recipient, ev)
	if err == nil {
		t.Fatal("expected AEAD authentication failure on tampered ciphertext")
	}
}

func TestStaticKeyIsDeterministicPerIdentity(t *testing.T) {
	kp := mustKeyPair(t)
	pub1, priv1 := StaticKey(kp)
	pub2, priv2 := StaticKey(kp)
	if pub1 != pub2 || priv1 != priv2 {
		t.Fatal("StaticKey must derive the same X25519 pair for the same identity every time")
	}
}
