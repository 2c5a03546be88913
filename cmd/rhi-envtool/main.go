// Command rhi-envtool builds and signs a trade-listing envelope for manual
// testing against a relay: it generates a throwaway seller/buyer keypair
// pair, builds one outbound message, optionally wraps its addressing tags
// in an encrypted tag, and prints the finished signed event as JSON.
package main

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/rad-roots-labs/rhi/pkg/identity"
	"github.com/rad-roots-labs/rhi/pkg/protocol"
	"github.com/rad-roots-labs/rhi/pkg/tagcipher"
)

func main() {
	listingID := flag.String("listing-id", "listing-demo-1", "listing identifier (d tag)")
	orderID := flag.String("order-id", "order-demo-1", "order identifier")
	encrypt := flag.Bool("encrypt", false, "wrap the addressing tags in an encrypted tag")
	flag.Parse()

	fmt.Println("Generating seller keypair...")
	seller, err := identity.Generate()
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Seller pubkey: %s\n\n", seller.PublicKeyHex)

	fmt.Println("Generating buyer keypair...")
	buyer, err := identity.Generate()
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Buyer pubkey:  %s\n\n", buyer.PublicKeyHex)

	listingAddr := protocol.ListingAddress{Kind: protocol.ListingKind, SellerPubkey: seller.PublicKeyHex, ListingID: *listingID}.String()
	fmt.Printf("Listing address: %s\n\n", listingAddr)

	payload := protocol.OrderRequestPayload{
		OrderID:      *orderID,
		ListingAddr:  listingAddr,
		BuyerPubkey:  buyer.PublicKeyHex,
		SellerPubkey: seller.PublicKeyHex,
	}

	kind, content, tags, err := protocol.BuildOutbound(protocol.MessageOrderRequest, listingAddr, orderID, seller.PublicKeyHex, payload)
	if err != nil {
		fmt.Printf("Error building envelope: %v\n", err)
		os.Exit(1)
	}

	if *encrypt {
		fmt.Println("Encrypting addressing tags for the seller...")
		sellerX25519Pub, _ := tagcipher.StaticKey(seller)
		ephemeralPubHex, ciphertextHex, err := tagcipher.Encrypt(sellerX25519Pub, tags)
		if err != nil {
			fmt.Printf("Error encrypting tags: %v\n", err)
			os.Exit(1)
		}
		tags = [][]string{{"p", seller.PublicKeyHex}, {"encrypted", ephemeralPubHex}}
		content = ciphertextHex
		fmt.Printf("Ephemeral pubkey: %s\n\n", ephemeralPubHex)
	}

	createdAt := time.Now().Unix()
	preimage, err := json.Marshal([]any{0, buyer.PublicKeyHex, createdAt, int(kind), tags, content})
	if err != nil {
		fmt.Printf("Error serializing preimage: %v\n", err)
		os.Exit(1)
	}
	sum := sha256.Sum256(preimage)
	id := hex.EncodeToString(sum[:])

	sig, err := buyer.Sign(sum[:])
	if err != nil {
		fmt.Printf("Error signing: %v\n", err)
		os.Exit(1)
	}

	event := map[string]any{
		"id":         id,
		"pubkey":     buyer.PublicKeyHex,
		"created_at": createdAt,
		"kind":       kind,
		"tags":       tags,
		"content":    content,
		"sig":        hex.EncodeToString(sig),
	}

	eventJSON, err := json.MarshalIndent(event, "", "  ")
	if err != nil {
		fmt.Printf("Error marshaling event: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("Signed order_request event:")
	fmt.Println(string(eventJSON))
}
