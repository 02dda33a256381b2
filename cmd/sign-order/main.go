package main

import (
	"encoding/json"
	"fmt"
	"math/big"
	"os"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/openloot/exchange/params"
	"github.com/openloot/exchange/pkg/api"
	"github.com/openloot/exchange/pkg/crypto"
	"github.com/openloot/exchange/pkg/order"
)

// Demo tool: generates a keypair, signs a fixed-price ask, self-verifies the
// signature and prints a ready-to-POST match request.
func main() {
	cfg := params.LoadFromEnv("")

	// Step 1: Generate or load key
	var signer *crypto.Signer
	var err error
	if pk := os.Getenv("PRIVATE_KEY"); pk != "" {
		signer, err = crypto.FromPrivateKeyHex(pk)
	} else {
		fmt.Println("Generating new keypair...")
		signer, err = crypto.GenerateKey()
	}
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Address: %s\n", signer.Address().Hex())
	fmt.Printf("Private Key: %s (KEEP SECRET!)\n\n", signer.PrivateKeyHex())

	// Step 2: Create a maker ask
	now := time.Now().Unix()
	maker := &order.MakerOrder{
		Signer:     signer.Address(),
		IsAsk:      true,
		Collection: common.HexToAddress("0x00000000000000000000000000000000000000AA"),
		TokenID:    big.NewInt(7),
		Amount:     big.NewInt(1),
		Price:      big.NewInt(100),
		Currency:   common.HexToAddress("0x00000000000000000000000000000000000000CC"),
		StartTime:  now,
		EndTime:    now + 86400,
		Nonce:      1,
		Strategy:   "fixed-price",
	}

	fmt.Println("Order Details:")
	fmt.Printf("  Collection: %s\n", maker.Collection.Hex())
	fmt.Printf("  TokenID: %s\n", maker.TokenID.String())
	fmt.Printf("  Price: %s\n", maker.Price.String())
	fmt.Printf("  Currency: %s\n", maker.Currency.Hex())
	fmt.Printf("  Nonce: %d\n", maker.Nonce)
	fmt.Printf("  Strategy: %s\n\n", maker.Strategy)

	// Step 3: Hash and sign
	codec := order.NewCodec(order.Domain{
		Name:              cfg.Chain.DomainName,
		Version:           cfg.Chain.DomainVersion,
		ChainID:           big.NewInt(cfg.Chain.ID),
		VerifyingContract: common.HexToAddress(cfg.Chain.VerifyingContract),
	})
	hash, err := codec.Hash(maker)
	if err != nil {
		fmt.Printf("Error hashing: %v\n", err)
		os.Exit(1)
	}
	sigBytes, err := signer.Sign(hash.Bytes())
	if err != nil {
		fmt.Printf("Error signing: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Order Hash: %s\n", hash.Hex())
	fmt.Printf("Signature: 0x%x\n\n", sigBytes)

	// Step 4: Verify
	fmt.Println("Verifying signature...")
	verifier := order.NewVerifier(codec)
	recovered, err := verifier.VerifyOrder(maker, order.Signature{
		Scheme: order.SchemeECDSA,
		Bytes:  sigBytes,
	})
	if err != nil {
		fmt.Printf("✗ Signature INVALID: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("✓ Signature VALID")
	fmt.Printf("  Order hash: %s\n\n", recovered.Hex())

	// Step 5: Sign the taker side. A match request must carry the taker's
	// own signature bound to this maker's hash, so generate a demo taker
	// keypair (TAKER_PRIVATE_KEY overrides).
	var takerSigner *crypto.Signer
	if pk := os.Getenv("TAKER_PRIVATE_KEY"); pk != "" {
		takerSigner, err = crypto.FromPrivateKeyHex(pk)
	} else {
		fmt.Println("Generating taker keypair...")
		takerSigner, err = crypto.GenerateKey()
	}
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Taker Address: %s\n", takerSigner.Address().Hex())

	taker := &order.TakerOrder{
		Taker:   takerSigner.Address(),
		IsAsk:   false,
		TokenID: maker.TokenID,
		Price:   maker.Price,
		Amount:  maker.Amount,
	}
	takerHash, err := codec.HashTaker(taker, hash)
	if err != nil {
		fmt.Printf("Error hashing taker order: %v\n", err)
		os.Exit(1)
	}
	takerSig, err := takerSigner.Sign(takerHash.Bytes())
	if err != nil {
		fmt.Printf("Error signing taker order: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Taker Signature: 0x%x\n\n", takerSig)

	// Step 6: Build the match request a taker would POST
	req := api.MatchRequest{
		Maker: api.MakerOrderPayload{
			Signer:     maker.Signer.Hex(),
			IsAsk:      maker.IsAsk,
			Collection: maker.Collection.Hex(),
			TokenID:    maker.TokenID.String(),
			Amount:     maker.Amount.String(),
			Price:      maker.Price.String(),
			Currency:   maker.Currency.Hex(),
			StartTime:  maker.StartTime,
			EndTime:    maker.EndTime,
			Nonce:      maker.Nonce,
			Strategy:   string(maker.Strategy),
		},
		Taker: api.TakerOrderPayload{
			Taker:   taker.Taker.Hex(),
			IsAsk:   false,
			TokenID: maker.TokenID.String(),
			Price:   maker.Price.String(),
			Amount:  maker.Amount.String(),
		},
		Signature: api.SignaturePayload{
			Scheme: uint8(order.SchemeECDSA),
			Bytes:  hexutil.Encode(sigBytes),
		},
		TakerSignature: hexutil.Encode(takerSig),
	}

	reqJSON, err := json.MarshalIndent(req, "", "  ")
	if err != nil {
		fmt.Printf("Error marshaling JSON: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("To settle this order against a taker bid:")
	fmt.Println("  POST http://localhost:8080/api/v1/match")
	fmt.Println("  Content-Type: application/json")
	fmt.Println("  Body:")
	fmt.Println(string(reqJSON))
}
