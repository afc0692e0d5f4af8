package reward

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

// codeAlphabet leaves out 0/O and 1/I so codes survive being read aloud.
const codeAlphabet = "23456789ABCDEFGHJKLMNPQRSTUVWXYZ"

const codeLength = 8

// CodeGenerator mints coupon codes. Uniqueness is enforced by storage.
type CodeGenerator func() (string, error)

// NewCodeGenerator returns a generator producing PREFIX-XXXXXXXX codes.
func NewCodeGenerator(prefix string) CodeGenerator {
	max := big.NewInt(int64(len(codeAlphabet)))
	return func() (string, error) {
		buf := make([]byte, codeLength)
		for i := range buf {
			n, err := rand.Int(rand.Reader, max)
			if err != nil {
				return "", fmt.Errorf("generate coupon code: %w", err)
			}
			buf[i] = codeAlphabet[n.Int64()]
		}
		if prefix == "" {
			return string(buf), nil
		}
		return prefix + "-" + string(buf), nil
	}
}
