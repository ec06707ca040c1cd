package encryption

import (
	"fmt"

	"reel-go/internal/config"
	"reel-go/internal/reel"
)

// NewEncryptorFromConfig returns nil for "none": synced files are stored in
// the vault as-is.
func NewEncryptorFromConfig(cfg config.EncryptionConfig) (reel.Encryptor, error) {
	switch cfg.Type {
	case "none", "":
		return nil, nil
	case "age":
		return NewAgeEncryptor(cfg), nil
	case "test":
		return NewTestEncryptor(), nil
	default:
		return nil, fmt.Errorf("unknown encryption type: %q", cfg.Type)
	}
}
