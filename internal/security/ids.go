package security

import (
	"crypto/rand"
	"fmt"
	"io"

	"github.com/google/uuid"
)

// ProxyIDLength is the number of characters in a proxy identifier.
const ProxyIDLength = 12

const proxyIDAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"

// maxUnbiasedByte is the largest multiple of the alphabet size that fits in a byte.
const maxUnbiasedByte = 256 - 256%len(proxyIDAlphabet)

// GenerateProxyID returns a random 12-character alphanumeric proxy identifier.
func GenerateProxyID() (string, error) {
	out := make([]byte, 0, ProxyIDLength)
	buf := make([]byte, ProxyIDLength*2)
	for len(out) < ProxyIDLength {
		if _, err := io.ReadFull(rand.Reader, buf); err != nil {
			return "", fmt.Errorf("generate proxy id: %w", err)
		}
		for _, b := range buf {
			if int(b) >= maxUnbiasedByte {
				continue
			}
			out = append(out, proxyIDAlphabet[int(b)%len(proxyIDAlphabet)])
			if len(out) == ProxyIDLength {
				break
			}
		}
	}
	return string(out), nil
}

// ValidProxyID reports whether id has the shape of a generated proxy identifier.
func ValidProxyID(id string) bool {
	if len(id) != ProxyIDLength {
		return false
	}
	for i := 0; i < len(id); i++ {
		c := id[i]
		switch {
		case c >= '0' && c <= '9', c >= 'A' && c <= 'Z', c >= 'a' && c <= 'z':
		default:
			return false
		}
	}
	return true
}

// NewEndpointID returns a fresh endpoint identifier.
func NewEndpointID() string {
	return uuid.NewString()
}
