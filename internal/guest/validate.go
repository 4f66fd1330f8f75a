package guest

import (
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"encoding/hex"
	"fmt"

	zkerrors "github.com/mrz1836/zkdrop/internal/errors"
)

func decodeHexField(name, value string) ([]byte, error) {
	b, err := hex.DecodeString(value)
	if err != nil {
		return nil, fmt.Errorf("%w: %s is not valid hex", zkerrors.ErrInputDecode, name)
	}
	return b, nil
}

func validateRSAPublicKey(value string) error {
	der, err := base64.StdEncoding.DecodeString(value)
	if err != nil {
		return fmt.Errorf("%w: rsa_pubkey_base64 is not valid base64", zkerrors.ErrInputDecode)
	}
	pub, err := x509.ParsePKIXPublicKey(der)
	if err != nil {
		return fmt.Errorf("%w: rsa_pubkey_base64: %w", zkerrors.ErrInputDecode, err)
	}
	if _, ok := pub.(*rsa.PublicKey); !ok {
		return fmt.Errorf("%w: rsa_pubkey_base64 is not an RSA key", zkerrors.ErrInputDecode)
	}
	return nil
}

func validateWrappedKey(value string) error {
	key, err := decodeHexField("aes_key_hex", value)
	if err != nil {
		return err
	}
	switch len(key) {
	case 16, 24, 32:
		return nil
	default:
		return fmt.Errorf("%w: aes_key_hex must be 16, 24 or 32 bytes, got %d", zkerrors.ErrInputDecode, len(key))
	}
}

// Validate checks encodings and lengths.
func (in AESCTRInput) Validate() error {
	key, err := decodeHexField("aes_key_hex", in.AESKeyHex)
	if err != nil {
		return err
	}
	if len(key) != aesKeySize {
		return fmt.Errorf("%w: aes_key_hex must be %d bytes, got %d", zkerrors.ErrInputDecode, aesKeySize, len(key))
	}
	iv, err := decodeHexField("iv_hex", in.IVHex)
	if err != nil {
		return err
	}
	if len(iv) != aesIVSize {
		return fmt.Errorf("%w: iv_hex must be %d bytes, got %d", zkerrors.ErrInputDecode, aesIVSize, len(iv))
	}
	_, err = decodeHexField("ciphertext_hex", in.CiphertextHex)
	return err
}

// Validate checks encodings and that the public key parses.
func (in RSAEncryptInput) Validate() error {
	if err := validateWrappedKey(in.AESKeyHex); err != nil {
		return err
	}
	return validateRSAPublicKey(in.RSAPubKeyBase64)
}

// Validate checks encodings and that the public key parses.
func (in RSAVerifyInput) Validate() error {
	if err := validateWrappedKey(in.AESKeyHex); err != nil {
		return err
	}
	if err := validateRSAPublicKey(in.RSAPubKeyBase64); err != nil {
		return err
	}
	_, err := decodeHexField("enc_aes_key_hex", in.EncAESKeyHex)
	return err
}
