package discount

import (
	"crypto/rand"
	"fmt"
	"strings"
)

const (
	CodePrefix = "GZM-"

	// 32 symbols without look-alikes (0/O, 1/I), so every symbol carries 5 bits
	codeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

	DefaultCodeLength = 10
	MinCodeLength     = 6
	MaxCodeLength     = 32
)

// NewCode returns CodePrefix followed by length random symbols
func NewCode(length int) (string, error) {
	if length < MinCodeLength || length > MaxCodeLength {
		return "", fmt.Errorf("code length must be within [%d, %d], got %d", MinCodeLength, MaxCodeLength, length)
	}

	b := make([]byte, length)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to read random bytes: %w", err)
	}

	var sb strings.Builder
	sb.Grow(len(CodePrefix) + length)
	sb.WriteString(CodePrefix)
	for _, v := range b {
		// 256 is multiple of 32, so masking keeps distribution uniform
		sb.WriteByte(codeAlphabet[v&31])
	}

	return sb.String(), nil
}

// Bits of entropy of code with given length
func CodeEntropy(length int) int {
	return length * 5
}
