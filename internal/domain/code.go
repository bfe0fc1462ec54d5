package domain

import (
	"crypto/rand"
	"fmt"
	"math/big"
	mrand "math/rand/v2"
	"strings"

	"github.com/victornm/quizsync/internal/errors"
)

const (
	CodeLength   = 6
	codeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

var Avatars = []string{"🦊", "🐼", "🐸", "🦁", "🐙", "🦉", "🐢", "🐝", "🦄", "🐧", "🐳", "🦖"}

// NewCode generates a room code.
func NewCode() (string, error) {
	b := make([]byte, CodeLength)
	size := big.NewInt(int64(len(codeAlphabet)))
	for i := range b {
		n, err := rand.Int(rand.Reader, size)
		if err != nil {
			return "", fmt.Errorf("generate room code: %w", err)
		}
		b[i] = codeAlphabet[n.Int64()]
	}

	return string(b), nil
}

func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// ValidateCode normalizes and checks a room code typed by a user.
func ValidateCode(code string) (string, error) {
	c := NormalizeCode(code)
	if len(c) != CodeLength {
		return "", errors.InvalidField("code", "room code must be %d characters", CodeLength)
	}

	for _, r := range c {
		if !strings.ContainsRune(codeAlphabet, r) {
			return "", errors.InvalidField("code", "room code must be alphanumeric")
		}
	}

	return c, nil
}

func RandomAvatar() string {
	return Avatars[mrand.IntN(len(Avatars))]
}
