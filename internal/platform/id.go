package platform

import (
	"crypto/rand"

	"github.com/google/uuid"
)

const randomAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

// NewID returns a random UUID string, used for audit entries.
func NewID() string {
	return uuid.New().String()
}

// RandomString returns n characters drawn from [a-z0-9]. The output is safe
// to embed in PostgreSQL identifiers.
func RandomString(n int) string {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		panic("crypto/rand: " + err.Error())
	}
	for i := range b {
		b[i] = randomAlphabet[b[i]%byte(len(randomAlphabet))]
	}
	return string(b)
}
