package sops

import (
	"fmt"

	"github.com/getsops/sops/v3/decrypt"
	"github.com/rs/zerolog/log"
)

// Decrypter implements filetypes.Decrypter for files written with `sops --input-type binary`
type Decrypter struct{}

// IsEncrypted checks whether the content is a sops envelope rather than plain PEM
func IsEncrypted(data []byte) bool {
	return ReadMetadata(data) != nil
}

// Decrypt attempts to decrypt SOPS-encrypted PEM content
// Returns the original content if not encrypted, or error if decryption fails
func (Decrypter) Decrypt(data []byte) ([]byte, error) {
	metadata := ReadMetadata(data)
	if metadata == nil {
		return data, nil
	}

	log.Debug().Strs("keyTypes", metadata.KeyTypes()).Msg("Decrypting sops envelope")

	decrypted, err := decrypt.Data(data, "binary")
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt SOPS-encrypted content: %w", err)
	}

	return decrypted, nil
}
