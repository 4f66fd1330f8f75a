package guest

import (
	"bytes"
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"encoding/hex"
)

// parseRSAPublicKey decodes a base64 DER SubjectPublicKeyInfo holding an RSA key.
func parseRSAPublicKey(b64 string) (*rsa.PublicKey, string) {
	der, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return nil, "invalid RSA pubkey base64"
	}
	parsed, err := x509.ParsePKIXPublicKey(der)
	if err != nil {
		return nil, "RSA pubkey parse error"
	}
	pub, ok := parsed.(*rsa.PublicKey)
	if !ok {
		return nil, "RSA pubkey parse error"
	}
	return pub, ""
}

// deterministicEncrypt wraps key under pub with OAEP padding drawn from the
// fixed seed stream.
func deterministicEncrypt(pub *rsa.PublicKey, key []byte) ([]byte, error) {
	return encryptOAEP(pub, key, newSeededStream(OAEPSeed))
}

// EncryptAESKey wraps the AES key with RSA-OAEP-SHA256 under the given
// public key and commits the hex ciphertext.
func EncryptAESKey(in RSAEncryptInput) RSAEncryptOutput {
	key, err := hex.DecodeString(in.AESKeyHex)
	if err != nil {
		return RSAEncryptOutput{Message: "invalid AES key hex"}
	}
	pub, msg := parseRSAPublicKey(in.RSAPubKeyBase64)
	if pub == nil {
		return RSAEncryptOutput{Message: msg}
	}

	enc, err := deterministicEncrypt(pub, key)
	if err != nil {
		return RSAEncryptOutput{Message: "encryption failed"}
	}
	return RSAEncryptOutput{
		IsValid:      true,
		Message:      "RSA encryption successful",
		EncAESKeyHex: hex.EncodeToString(enc),
	}
}

// VerifyEncryptedAESKey re-encrypts the AES key and reports whether the
// result equals the claimed ciphertext.
func VerifyEncryptedAESKey(in RSAVerifyInput) RSAVerifyOutput {
	key, err := hex.DecodeString(in.AESKeyHex)
	if err != nil {
		return RSAVerifyOutput{Message: "invalid AES key hex"}
	}
	pub, msg := parseRSAPublicKey(in.RSAPubKeyBase64)
	if pub == nil {
		return RSAVerifyOutput{Message: msg}
	}
	claimed, err := hex.DecodeString(in.EncAESKeyHex)
	if err != nil {
		return RSAVerifyOutput{Message: "invalid encrypted AES key hex"}
	}

	enc, err := deterministicEncrypt(pub, key)
	if err != nil {
		return RSAVerifyOutput{Message: "encryption failed"}
	}
	if bytes.Equal(enc, claimed) {
		return RSAVerifyOutput{IsValid: true, Message: "RSA encryption matches"}
	}
	return RSAVerifyOutput{Message: "mismatch in RSA encryption"}
}
