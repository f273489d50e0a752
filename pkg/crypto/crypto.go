package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"encoding/base64"
	"errors"
	"fmt"
)

// DecryptWithBase64 decrypts an AES-CBC value encoded as raw (unpadded) base64,
// with the IV stored in the first block and PKCS#7 padding.
func DecryptWithBase64(block *cipher.Block, encrypted string) (string, error) {
	decoded, err := base64.RawStdEncoding.DecodeString(encrypted)
	if err != nil {
		return "", fmt.Errorf("failed to decode base64: %w", err)
	}
	decrypted, err := decrypt(block, decoded)
	if err != nil {
		return "", err
	}

	// Unpadding
	padSize := int(decrypted[len(decrypted)-1])
	if padSize < 1 || padSize > aes.BlockSize || padSize > len(decrypted) {
		return "", errors.New("invalid padding")
	}
	return string(decrypted[:len(decrypted)-padSize]), nil
}

func decrypt(block *cipher.Block, encrypted []byte) ([]byte, error) {
	if len(encrypted) < 2*aes.BlockSize || len(encrypted)%aes.BlockSize != 0 {
		return nil, fmt.Errorf("invalid cipher text length: %d", len(encrypted))
	}
	iv := encrypted[:aes.BlockSize] // Get Initial Vector form first head block.
	decrypted := make([]byte, len(encrypted[aes.BlockSize:]))
	decrypter := cipher.NewCBCDecrypter(*block, iv)
	decrypter.CryptBlocks(decrypted, encrypted[aes.BlockSize:])
	return decrypted, nil
}
