package protocol

import (
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"
)

// ErrBadToken is returned when the handshake token does not match the
// expected <XXXXXXXX> format.
var ErrBadToken = errors.New("malformed session token")

// GenerateToken returns a fresh session token such as "<1f56xc5d>".
// The body is drawn uniformly from TokenAlphabet using crypto/rand.
func GenerateToken() (string, error) {
	max := big.NewInt(int64(len(TokenAlphabet)))
	var b strings.Builder
	b.Grow(TokenLength)
	b.WriteByte(TokenOpen)
	for i := 0; i < TokenBody; i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("failed to generate token: %w", err)
		}
		b.WriteByte(TokenAlphabet[n.Int64()])
	}
	b.WriteByte(TokenClose)
	return b.String(), nil
}

// ValidToken reports whether s is a well-formed session token.
func ValidToken(s string) bool {
	if len(s) != TokenLength || s[0] != TokenOpen || s[len(s)-1] != TokenClose {
		return false
	}
	for i := 1; i < len(s)-1; i++ {
		if strings.IndexByte(TokenAlphabet, s[i]) < 0 {
			return false
		}
	}
	return true
}
