package zkvm

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"io"

	"github.com/klauspost/compress/gzip"

	zkerrors "github.com/mrz1836/zkdrop/internal/errors"
)

// maxDecodedReceipt caps the inflated size accepted by DecodeBase64.
const maxDecodedReceipt = 64 << 20

// EncodeBase64 serializes the receipt, gzips it and returns standard base64.
// This is the transport form returned to HTTP clients.
func EncodeBase64(r *Receipt) (string, error) {
	raw, err := r.Marshal()
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write(raw); err != nil {
		return "", fmt.Errorf("compress receipt: %w", err)
	}
	if err := zw.Close(); err != nil {
		return "", fmt.Errorf("compress receipt: %w", err)
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// DecodeBase64 reverses EncodeBase64.
func DecodeBase64(s string) (*Receipt, error) {
	compressed, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: base64: %w", zkerrors.ErrReceiptDecode, err)
	}
	zr, err := gzip.NewReader(bytes.NewReader(compressed))
	if err != nil {
		return nil, fmt.Errorf("%w: gzip: %w", zkerrors.ErrReceiptDecode, err)
	}
	defer func() { _ = zr.Close() }()

	raw, err := io.ReadAll(io.LimitReader(zr, maxDecodedReceipt))
	if err != nil {
		return nil, fmt.Errorf("%w: gzip: %w", zkerrors.ErrReceiptDecode, err)
	}
	return UnmarshalReceipt(raw)
}
