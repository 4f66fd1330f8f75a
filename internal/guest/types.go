// Package guest holds the programs executed inside the prover: an AES-CTR
// decryption check and RSA-OAEP encryption and verification of an AES key.
//
// Guests never fail on malformed fields; they commit is_valid=false with a
// message so the receipt still attests to the rejection. Callers at the
// request boundary use the Validate methods to reject bad input early.
package guest

// AESCTRInput is the input of the aes-ctr-verifier program.
type AESCTRInput struct {
	// AESKeyHex is the AES-256 key, hex-encoded (64 hex chars).
	AESKeyHex string `json:"aes_key_hex"`
	// IVHex is the 16-byte initial counter block, hex-encoded.
	IVHex string `json:"iv_hex"`
	// PlaintextUTF8 is the original plaintext.
	PlaintextUTF8 string `json:"plaintext_utf8"`
	// CiphertextHex is the claimed AES-CTR ciphertext, hex-encoded.
	CiphertextHex string `json:"ciphertext_hex"`
}

// AESCTROutput is committed by the aes-ctr-verifier program.
type AESCTROutput struct {
	IsValid bool   `json:"is_valid"`
	Message string `json:"message"`
}

// RSAEncryptInput is the input of the rsa-encrypter program.
type RSAEncryptInput struct {
	// AESKeyHex is the symmetric key to wrap, hex-encoded.
	AESKeyHex string `json:"aes_key_hex"`
	// RSAPubKeyBase64 is a DER SubjectPublicKeyInfo, standard base64.
	RSAPubKeyBase64 string `json:"rsa_pubkey_base64"`
}

// RSAEncryptOutput is committed by the rsa-encrypter program.
type RSAEncryptOutput struct {
	IsValid      bool   `json:"is_valid"`
	Message      string `json:"message"`
	EncAESKeyHex string `json:"enc_aes_key_hex"`
}

// RSAVerifyInput is the input of the rsa-verifier program.
type RSAVerifyInput struct {
	AESKeyHex       string `json:"aes_key_hex"`
	RSAPubKeyBase64 string `json:"rsa_pubkey_base64"`
	// EncAESKeyHex is the claimed RSA-OAEP ciphertext of the AES key.
	EncAESKeyHex string `json:"enc_aes_key_hex"`
}

// RSAVerifyOutput is committed by the rsa-verifier program.
type RSAVerifyOutput struct {
	IsValid bool   `json:"is_valid"`
	Message string `json:"message"`
}
