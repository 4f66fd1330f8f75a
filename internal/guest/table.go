package guest

import (
	"encoding/json"
	"fmt"
	"sort"

	zkerrors "github.com/mrz1836/zkdrop/internal/errors"
)

// Entrypoint names referenced by program images.
const (
	EntryAESCTRVerify = "aes_ctr_verify"
	EntryRSAEncrypt   = "rsa_encrypt"
	EntryRSAVerify    = "rsa_verify"
)

// Func runs a guest over a JSON input and returns its JSON journal.
// An error means the input was not a JSON object of the expected shape;
// field-level problems are reported in the journal instead.
type Func func(input []byte) ([]byte, error)

//nolint:gochecknoglobals // fixed dispatch table
var entrypoints = map[string]Func{
	EntryAESCTRVerify: jsonGuest(VerifyAESCTR),
	EntryRSAEncrypt:   jsonGuest(EncryptAESKey),
	EntryRSAVerify:    jsonGuest(VerifyEncryptedAESKey),
}

func jsonGuest[I, O any](run func(I) O) Func {
	return func(input []byte) ([]byte, error) {
		var in I
		if err := json.Unmarshal(input, &in); err != nil {
			return nil, fmt.Errorf("%w: %w", zkerrors.ErrInputDecode, err)
		}
		return json.Marshal(run(in))
	}
}

// Lookup returns the guest registered under entry.
func Lookup(entry string) (Func, error) {
	fn, ok := entrypoints[entry]
	if !ok {
		return nil, fmt.Errorf("%w: %q", zkerrors.ErrGuestNotFound, entry)
	}
	return fn, nil
}

// Entrypoints lists the implemented entrypoint names in sorted order.
func Entrypoints() []string {
	names := make([]string, 0, len(entrypoints))
	for name := range entrypoints {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
