package crypto

import (
	"encoding/hex"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/crypto/sha3"
)

// DeriveAddress derives a deterministic address from a label: the last
// 20 bytes of keccak256(label). Used to mint stable identities for
// collaborator contracts (collections, payment tokens) in dev setups
// and tests.
func DeriveAddress(label string) common.Address {
	h := sha3.NewLegacyKeccak256()
	h.Write([]byte(label))
	sum := h.Sum(nil)
	return common.BytesToAddress(sum[12:])
}

// EIP55 computes the checksummed hex string for a 20-byte raw address.
func EIP55(addr20 []byte) string {
	hexaddr := hex.EncodeToString(addr20)
	h := sha3.NewLegacyKeccak256()
	h.Write([]byte(hexaddr))
	hash := h.Sum(nil)

	out := make([]byte, 2+len(hexaddr))
	copy(out, "0x")
	for i, c := range []byte(hexaddr) {
		if c >= '0' && c <= '9' {
			out[2+i] = c
			continue
		}
		// Each hex char maps to a nibble of the hash; a nibble >= 8
		// uppercases the corresponding letter.
		nibble := hash[i>>1]
		if i%2 == 0 {
			nibble = (nibble >> 4) & 0x0f
		} else {
			nibble &= 0x0f
		}
		if nibble >= 8 {
			out[2+i] = byte(strings.ToUpper(string(c))[0])
		} else {
			out[2+i] = c
		}
	}
	return string(out)
}
