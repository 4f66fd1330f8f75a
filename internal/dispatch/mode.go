package dispatch

import (
	"fmt"
	"strings"

	zkerrors "github.com/mrz1836/zkdrop/internal/errors"
)

// Mode selects where a proof is produced. It is fixed for one job.
type Mode int

// Execution modes.
const (
	// ModeLocal proves in-process.
	ModeLocal Mode = iota
	// ModeRemote proves on the remote proving service.
	ModeRemote
	// ModeRemoteWithCompression proves remotely, then compresses the receipt.
	ModeRemoteWithCompression
)

// Mode tokens accepted from clients.
const (
	TokenLocal                 = "local"
	TokenRemote                = "bonsai"
	TokenRemoteWithCompression = "bonsai_snark"
)

// String returns the client token for m.
func (m Mode) String() string {
	switch m {
	case ModeLocal:
		return TokenLocal
	case ModeRemote:
		return TokenRemote
	case ModeRemoteWithCompression:
		return TokenRemoteWithCompression
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// IsRemote reports whether m uses the remote proving service.
func (m Mode) IsRemote() bool {
	return m == ModeRemote || m == ModeRemoteWithCompression
}

// ResolveMode maps a client hint to a mode. It never fails: anything other
// than the two remote tokens, including the empty hint, selects ModeLocal.
func ResolveMode(hint string) Mode {
	switch hint {
	case TokenRemote:
		return ModeRemote
	case TokenRemoteWithCompression:
		return ModeRemoteWithCompression
	default:
		return ModeLocal
	}
}

// ParseMode is the strict form of ResolveMode used for configuration and
// flags, where a typo should be reported rather than silently run locally.
func ParseMode(s string) (Mode, error) {
	switch strings.TrimSpace(s) {
	case TokenLocal, "":
		return ModeLocal, nil
	case TokenRemote:
		return ModeRemote, nil
	case TokenRemoteWithCompression:
		return ModeRemoteWithCompression, nil
	default:
		return ModeLocal, fmt.Errorf("%w: %q", zkerrors.ErrInvalidMode, s)
	}
}
