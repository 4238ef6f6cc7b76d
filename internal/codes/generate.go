package codes

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

const (
	// CodeLength is the length of every code family.
	CodeLength = 6

	base36Alphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"
)

var numericSpace = big.NewInt(1_000_000)

// Generator produces random codes. Tests swap it for a deterministic one.
type Generator interface {
	Numeric() (string, error)
	Base36() (string, error)
}

// RandomGenerator draws from crypto/rand.
type RandomGenerator struct{}

// Numeric returns a zero-padded 6-digit code.
func (RandomGenerator) Numeric() (string, error) {
	n, err := rand.Int(rand.Reader, numericSpace)
	if err != nil {
		return "", fmt.Errorf("generate numeric code: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}

// Base36 returns 6 uppercase base-36 characters.
func (RandomGenerator) Base36() (string, error) {
	buf := make([]byte, CodeLength)
	max := big.NewInt(int64(len(base36Alphabet)))
	for i := range buf {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("generate transfer code: %w", err)
		}
		buf[i] = base36Alphabet[n.Int64()]
	}
	return string(buf), nil
}

// IsNumeric reports whether code has the join/staff code shape.
func IsNumeric(code string) bool {
	if len(code) != CodeLength {
		return false
	}
	for i := 0; i < len(code); i++ {
		if code[i] < '0' || code[i] > '9' {
			return false
		}
	}
	return true
}

// IsBase36 reports whether code has the transfer code shape.
func IsBase36(code string) bool {
	if len(code) != CodeLength {
		return false
	}
	for i := 0; i < len(code); i++ {
		c := code[i]
		if !(c >= '0' && c <= '9') && !(c >= 'A' && c <= 'Z') {
			return false
		}
	}
	return true
}
