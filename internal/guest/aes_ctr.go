package guest

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"encoding/hex"
)

// AES-CTR parameters: AES-256 with a full 16-byte big-endian counter block.
const (
	aesKeySize = 32
	aesIVSize  = aes.BlockSize
)

// VerifyAESCTR encrypts the plaintext with AES-256-CTR under the given key
// and IV and reports whether it equals the claimed ciphertext.
func VerifyAESCTR(in AESCTRInput) AESCTROutput {
	key, err := hex.DecodeString(in.AESKeyHex)
	if err != nil {
		return AESCTROutput{Message: "invalid AES key hex"}
	}
	iv, err := hex.DecodeString(in.IVHex)
	if err != nil {
		return AESCTROutput{Message: "invalid IV hex"}
	}
	expected, err := hex.DecodeString(in.CiphertextHex)
	if err != nil {
		return AESCTROutput{Message: "invalid ciphertext hex"}
	}
	if len(key) != aesKeySize || len(iv) != aesIVSize {
		return AESCTROutput{Message: "invalid key or IV length"}
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return AESCTROutput{Message: "invalid key or IV length"}
	}

	ciphertext := []byte(in.PlaintextUTF8)
	cipher.NewCTR(block, iv).XORKeyStream(ciphertext, ciphertext)

	if bytes.Equal(ciphertext, expected) {
		return AESCTROutput{IsValid: true, Message: "ciphertext matches AES-CTR encryption"}
	}
	return AESCTROutput{Message: "ciphertext mismatch"}
}
