package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"math/big"
	"strings"

	"parkshare/config"
	"parkshare/internal/domain/entity"
	"parkshare/internal/domain/service"

	"github.com/pkg/errors"
)

const linkTokenBytes = 32

type randomSecretGenerator struct {
	pinLength int
}

// NewSecretGenerator builds the generator of PINs and link tokens.
func NewSecretGenerator(cfg *config.Config) service.SecretGenerator {
	pinLength := 6
	if cfg.Secrets != nil && cfg.Secrets.PinLength > 0 {
		pinLength = cfg.Secrets.PinLength
	}

	return &randomSecretGenerator{pinLength: pinLength}
}

// Generate returns a numeric PIN for entity.SecretPurposePin and a hex token otherwise.
func (g *randomSecretGenerator) Generate(purpose entity.SecretPurpose) (string, error) {
	if purpose == entity.SecretPurposePin {
		return g.pin()
	}

	buf := make([]byte, linkTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", errors.Wrap(err, "failed to read random bytes")
	}

	return hex.EncodeToString(buf), nil
}

// Digest returns the hex SHA-256 of the plaintext.
func (g *randomSecretGenerator) Digest(plaintext string) string {
	sum := sha256.Sum256([]byte(plaintext))

	return hex.EncodeToString(sum[:])
}

func (g *randomSecretGenerator) pin() (string, error) {
	var b strings.Builder
	b.Grow(g.pinLength)

	ten := big.NewInt(10)
	for range g.pinLength {
		n, err := rand.Int(rand.Reader, ten)
		if err != nil {
			return "", errors.Wrap(err, "failed to draw pin digit")
		}
		b.WriteByte(byte('0' + n.Int64()))
	}

	return b.String(), nil
}
