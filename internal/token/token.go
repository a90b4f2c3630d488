// Package token generates the opaque secrets used in password reset links and
// signup confirmation emails.
package token

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

// Length is the number of characters in a generated token.
const Length = 32

const alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// Generator produces unguessable alphanumeric tokens of fixed length.
type Generator interface {
	Generate() (string, error)
}

type cryptoGenerator struct{}

// NewGenerator creates a Generator backed by crypto/rand.
func NewGenerator() Generator {
	return cryptoGenerator{}
}

func (cryptoGenerator) Generate() (string, error) {
	buf := make([]byte, Length)
	max := big.NewInt(int64(len(alphabet)))
	for i := range buf {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("failed to read random bytes: %w", err)
		}
		buf[i] = alphabet[n.Int64()]
	}

	return string(buf), nil
}
