package testutil

import (
	"reel-go/internal/encryption"
	"reel-go/internal/reel"
)

// NewTestEncryptor returns the deterministic header-framing encryptor.
func NewTestEncryptor() reel.Encryptor {
	return encryption.NewTestEncryptor()
}
