package assets

import (
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"github.com/vizvalabs/marketd/pkg/market"
)

var (
	alice    = common.HexToAddress("0x0000000000000000000000000000000000000a11")
	bob      = common.HexToAddress("0x0000000000000000000000000000000000000b0b")
	market1  = common.HexToAddress("0x0000000000000000000000000000000000000002")
	collAddr = common.HexToAddress("0x00000000000000000000000000000000000000cc")
)

func newERC721(t *testing.T) *Registry {
	t.Helper()
	r := NewRegistry()
	if err := r.CreateCollection(collAddr, market.TokenERC721); err != nil {
		t.Fatalf("create collection: %v", err)
	}
	return r
}

func TestMintAndOwnership(t *testing.T) {
	r := newERC721(t)

	if err := r.Mint(collAddr, alice, big.NewInt(1), "ipfs://one"); err != nil {
		t.Fatalf("mint: %v", err)
	}
	owner, err := r.OwnerOf(collAddr, big.NewInt(1))
	if err != nil || owner != alice {
		t.Errorf("owner = %s (%v), want alice", owner.Hex(), err)
	}
	uri, err := r.TokenURI(collAddr, big.NewInt(1))
	if err != nil || uri != "ipfs://one" {
		t.Errorf("uri = %q (%v)", uri, err)
	}
	controls, err := r.Controls(collAddr, alice, big.NewInt(1), 1)
	if err != nil || !controls {
		t.Errorf("controls = %v (%v), want true", controls, err)
	}
}

func TestMintSameIDTwice(t *testing.T) {
	r := newERC721(t)

	if err := r.Mint(collAddr, alice, big.NewInt(1), "ipfs://one"); err != nil {
		t.Fatal(err)
	}
	err := r.Mint(collAddr, bob, big.NewInt(1), "ipfs://dupe")
	if !errors.Is(err, ErrAlreadyMinted) {
		t.Errorf("err = %v, want ErrAlreadyMinted", err)
	}
	// The original mint must be untouched.
	owner, _ := r.OwnerOf(collAddr, big.NewInt(1))
	if owner != alice {
		t.Errorf("owner = %s after rejected re-mint", owner.Hex())
	}
}

func TestMintUnknownCollection(t *testing.T) {
	r := NewRegistry()
	err := r.Mint(collAddr, alice, big.NewInt(1), "")
	if err == nil {
		t.Error("mint into unknown collection succeeded")
	}
}

func TestTransferOwnershipEnforced(t *testing.T) {
	r := newERC721(t)
	if err := r.Mint(collAddr, alice, big.NewInt(1), ""); err != nil {
		t.Fatal(err)
	}

	if err := r.SafeTransferFrom(collAddr, bob, alice, big.NewInt(1), 1); err == nil {
		t.Error("transfer by non-holder succeeded")
	}
	if err := r.SafeTransferFrom(collAddr, alice, bob, big.NewInt(1), 1); err != nil {
		t.Errorf("transfer by holder: %v", err)
	}
	owner, _ := r.OwnerOf(collAddr, big.NewInt(1))
	if owner != bob {
		t.Errorf("owner = %s, want bob", owner.Hex())
	}
}

func TestApprovalForAll(t *testing.T) {
	r := newERC721(t)

	approved, err := r.IsApprovedForAll(collAddr, alice, market1)
	if err != nil || approved {
		t.Errorf("default approval = %v (%v), want false", approved, err)
	}
	if err := r.SetApprovalForAll(collAddr, alice, market1, true); err != nil {
		t.Fatal(err)
	}
	approved, _ = r.IsApprovedForAll(collAddr, alice, market1)
	if !approved {
		t.Error("approval not recorded")
	}
	if err := r.SetApprovalForAll(collAddr, alice, market1, false); err != nil {
		t.Fatal(err)
	}
	approved, _ = r.IsApprovedForAll(collAddr, alice, market1)
	if approved {
		t.Error("revocation not recorded")
	}
}

func TestSemiFungibleBalances(t *testing.T) {
	r := NewRegistry()
	multi := common.HexToAddress("0x00000000000000000000000000000000000000dd")
	if err := r.CreateCollection(multi, market.TokenERC1155); err != nil {
		t.Fatal(err)
	}
	if err := r.MintAmount(multi, alice, big.NewInt(7), "ipfs://batch", 10); err != nil {
		t.Fatal(err)
	}

	controls, _ := r.Controls(multi, alice, big.NewInt(7), 10)
	if !controls {
		t.Error("holder does not control full minted quantity")
	}
	controls, _ = r.Controls(multi, alice, big.NewInt(7), 11)
	if controls {
		t.Error("holder controls more than minted")
	}

	if err := r.SafeTransferFrom(multi, alice, bob, big.NewInt(7), 4); err != nil {
		t.Fatalf("partial transfer: %v", err)
	}
	controls, _ = r.Controls(multi, alice, big.NewInt(7), 6)
	if !controls {
		t.Error("sender balance not reduced to 6")
	}
	controls, _ = r.Controls(multi, bob, big.NewInt(7), 4)
	if !controls {
		t.Error("receiver balance not 4")
	}

	if err := r.SafeTransferFrom(multi, alice, bob, big.NewInt(7), 7); err == nil {
		t.Error("over-balance transfer succeeded")
	}
}

func TestTokenAllowanceSpend(t *testing.T) {
	tok := NewToken("WETH")
	tok.Deposit(alice, big.NewInt(100))

	// Pull without approval fails.
	if err := tok.TransferFrom(market1, alice, bob, big.NewInt(40)); err == nil {
		t.Error("pull without allowance succeeded")
	}

	tok.Approve(alice, market1, big.NewInt(50))
	if err := tok.TransferFrom(market1, alice, bob, big.NewInt(40)); err != nil {
		t.Fatalf("approved pull: %v", err)
	}
	if got := tok.BalanceOf(bob); got.Cmp(big.NewInt(40)) != 0 {
		t.Errorf("bob = %s, want 40", got)
	}
	if got := tok.Allowance(alice, market1); got.Cmp(big.NewInt(10)) != 0 {
		t.Errorf("remaining allowance = %s, want 10", got)
	}
	// Remaining allowance is too small for another 40.
	if err := tok.TransferFrom(market1, alice, bob, big.NewInt(40)); err == nil {
		t.Error("pull beyond remaining allowance succeeded")
	}
}

func TestTokenSelfTransferSkipsAllowance(t *testing.T) {
	tok := NewToken("WETH")
	tok.Deposit(alice, big.NewInt(100))

	if err := tok.TransferFrom(alice, alice, bob, big.NewInt(30)); err != nil {
		t.Errorf("holder moving own funds: %v", err)
	}
	if got := tok.BalanceOf(alice); got.Cmp(big.NewInt(70)) != 0 {
		t.Errorf("alice = %s, want 70", got)
	}
}

func TestTokenInsufficientBalance(t *testing.T) {
	tok := NewToken("WETH")
	tok.Deposit(alice, big.NewInt(10))
	tok.Approve(alice, market1, big.NewInt(100))

	if err := tok.TransferFrom(market1, alice, bob, big.NewInt(11)); err == nil {
		t.Error("over-balance pull succeeded")
	}
}

func TestTokenSetResolution(t *testing.T) {
	set := NewTokenSet()
	tok := NewToken("WETH")
	addr := common.HexToAddress("0x00000000000000000000000000000000000000aa")

	if _, ok := set.Token(addr); ok {
		t.Error("empty set resolved an address")
	}
	set.Register(addr, tok)
	got, ok := set.Token(addr)
	if !ok || got == nil {
		t.Fatal("registered token not resolved")
	}
}

func TestBankTransfer(t *testing.T) {
	b := NewBank()
	b.Credit(alice, big.NewInt(100))

	if err := b.Transfer(alice, bob, big.NewInt(60)); err != nil {
		t.Fatalf("transfer: %v", err)
	}
	if got := b.BalanceOf(alice); got.Cmp(big.NewInt(40)) != 0 {
		t.Errorf("alice = %s, want 40", got)
	}
	if got := b.BalanceOf(bob); got.Cmp(big.NewInt(60)) != 0 {
		t.Errorf("bob = %s, want 60", got)
	}
	if err := b.Transfer(alice, bob, big.NewInt(41)); err == nil {
		t.Error("over-balance transfer succeeded")
	}
}

func TestBankBalanceCopy(t *testing.T) {
	b := NewBank()
	b.Credit(alice, big.NewInt(5))

	got := b.BalanceOf(alice)
	got.SetInt64(999)
	if b.BalanceOf(alice).Cmp(big.NewInt(5)) != 0 {
		t.Error("BalanceOf leaked internal state")
	}
}
