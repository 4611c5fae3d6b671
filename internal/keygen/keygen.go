package keygen

import (
	"crypto/rand"
	"fmt"
	"strings"
)

// Prefixes for generated key values. Keys whose name suggests a production
// deployment get the live prefix so they are recognizable at a glance.
const (
	LivePrefix = "pk_live_"
	DevPrefix  = "pk_dev_"
)

const (
	suffixLength = 32
	alphabet     = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

// Generator produces new API key values. It is an interface so callers can
// substitute a deterministic implementation in tests.
type Generator interface {
	Generate(name string) (string, error)
}

type randomGenerator struct{}

// New returns a Generator backed by crypto/rand.
func New() Generator {
	return randomGenerator{}
}

// Generate returns a new key value for a key with the given name. Names
// containing "prod" in any casing get the live prefix, everything else the
// dev prefix. Uniqueness is not checked here; the database's unique index
// on the key column is the authority.
func (randomGenerator) Generate(name string) (string, error) {
	prefix := DevPrefix
	if strings.Contains(strings.ToLower(name), "prod") {
		prefix = LivePrefix
	}

	suffix, err := randomString(suffixLength)
	if err != nil {
		return "", fmt.Errorf("failed to generate key suffix: %w", err)
	}
	return prefix + suffix, nil
}

func randomString(n int) (string, error) {
	// 256 is not a multiple of the alphabet size, so bytes at or above the
	// largest multiple are rejected to keep the distribution uniform.
	limit := byte(256 - 256%len(alphabet))
	out := make([]byte, 0, n)
	buf := make([]byte, n)
	for len(out) < n {
		if _, err := rand.Read(buf); err != nil {
			return "", err
		}
		for _, b := range buf {
			if b >= limit {
				continue
			}
			out = append(out, alphabet[int(b)%len(alphabet)])
			if len(out) == n {
				break
			}
		}
	}
	return string(out), nil
}
