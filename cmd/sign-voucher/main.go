// Command sign-voucher generates a keypair (or loads one from
// PRIVATE_KEY) and prints signed bid and mint vouchers for use against a
// local marketd instance.
package main

import (
	"encoding/json"
	"fmt"
	"math/big"
	"os"

	"github.com/ethereum/go-ethereum/common"

	"github.com/vizvalabs/marketd/params"
	"github.com/vizvalabs/marketd/pkg/crypto"
)

func main() {
	cfg := params.LoadFromEnv("")

	var signer *crypto.Signer
	var err error
	if hexKey := os.Getenv("PRIVATE_KEY"); hexKey != "" {
		signer, err = crypto.FromPrivateKeyHex(hexKey)
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

	domain := crypto.DefaultDomain(cfg.Market.ChainID, common.HexToAddress(cfg.Market.Self))
	verifier := crypto.NewVoucherVerifier(domain)

	bid := &crypto.BidVoucher{
		Asset:        crypto.DeriveAddress("marketd/weth"),
		TokenAddress: common.HexToAddress(cfg.Market.LazyMintToken),
		TokenID:      big.NewInt(1),
		MarketID:     big.NewInt(0),
		Bid:          big.NewInt(1_000_000_000_000_000_000), // 1 unit in wei
	}
	if err := verifier.SignBidVoucher(signer, bid); err != nil {
		fmt.Printf("Error signing bid voucher: %v\n", err)
		os.Exit(1)
	}
	printJSON("Bid Voucher", bid)
	fmt.Printf("Bid Signature (hex): 0x%x\n\n", bid.Signature)

	mint := &crypto.NFTVoucher{
		TokenID:  big.NewInt(1),
		MinPrice: big.NewInt(1_000_000_000_000_000_000),
		Royalty:  10,
		URI:      "ipfs://bafybeigdyrzt5sfp7udm7hu76uh7y26nf3efuylqabf3oclgtqy55fbzdi",
	}
	if err := verifier.SignNFTVoucher(signer, mint); err != nil {
		fmt.Printf("Error signing mint voucher: %v\n", err)
		os.Exit(1)
	}
	printJSON("Mint Voucher", mint)
	fmt.Printf("Mint Signature (hex): 0x%x\n\n", mint.Signature)

	// Round-trip check: both signatures must recover to our key.
	if addr, err := verifier.RecoverBidSigner(bid); err != nil || addr != signer.Address() {
		fmt.Printf("Bid voucher verification failed: %v\n", err)
		os.Exit(1)
	}
	if addr, err := verifier.RecoverNFTSigner(mint); err != nil || addr != signer.Address() {
		fmt.Printf("Mint voucher verification failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("Signatures verified.")
}

func printJSON(label string, v any) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Printf("Error marshaling %s: %v\n", label, err)
		os.Exit(1)
	}
	fmt.Printf("%s:\n%s\n\n", label, out)
}
