package remote

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/mrz1836/zkdrop/internal/guest"
	"github.com/mrz1836/zkdrop/internal/programs"
	"github.com/mrz1836/zkdrop/internal/retry"
	"github.com/mrz1836/zkdrop/internal/testutil"
)

func newTestClient(t *testing.T, baseURL, apiKey string) *Client {
	t.Helper()
	c, err := NewClient(baseURL, apiKey, WithRetryConfig(retry.Config{
		MaxAttempts:  3,
		InitialDelay: time.Second,
		MaxDelay:     4 * time.Second,
		Multiplier:   2,
		Clock:        testutil.NewFakeClock(time.Unix(0, 0)),
	}))
	require.NoError(t, err)
	return c
}

func testPoller(clk *testutil.FakeClock) Poller {
	return Poller{
		Interval: 15 * time.Second,
		Timeout:  time.Hour,
		Clock:    clk,
		Logger:   zerolog.Nop(),
	}
}

func testProgram(t *testing.T, name string) programs.Program {
	t.Helper()
	reg, err := programs.Builtin()
	require.NoError(t, err)
	p, err := reg.Resolve(name)
	require.NoError(t, err)
	return p
}

func aesInput(t *testing.T) []byte {
	t.Helper()
	data, err := json.Marshal(guest.AESCTRInput{
		AESKeyHex:     "de15a7f6957c3eb9a86689106a98e3bea6f4b7222a63aa0ba7afda647d2ff98d",
		IVHex:         "01020300000000000000000000000000",
		PlaintextUTF8: "example fileeee ! ",
		CiphertextHex: "ef8d7b4abcaea121953432bd58aa69589312",
	})
	require.NoError(t, err)
	return data
}
