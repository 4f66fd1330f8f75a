package testutil

import (
	"context"
	"crypto/ed25519"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/mrz1836/zkdrop/internal/constants"
	"github.com/mrz1836/zkdrop/internal/prover"
	"github.com/mrz1836/zkdrop/internal/zkvm"
)

// BonsaiScript controls how FakeBonsai answers status polls.
type BonsaiScript struct {
	// SessionStatuses are reported, in order, before SessionFinal.
	SessionStatuses []constants.SessionStatus
	// SessionFinal is the terminal session status (default SUCCEEDED).
	SessionFinal constants.SessionStatus
	// SessionError is reported as error_msg with a non-success final status.
	SessionError string
	// OmitReceiptURL drops receipt_url from a succeeded session.
	OmitReceiptURL bool
	// MutateReceipt edits the base receipt before it is served.
	MutateReceipt func(*zkvm.Receipt)
	// CorruptArtifact serves bytes that do not decode as a receipt.
	CorruptArtifact bool

	// SnarkStatuses are reported, in order, before SnarkFinal.
	SnarkStatuses []constants.SessionStatus
	// SnarkFinal is the terminal compression status (default SUCCEEDED).
	SnarkFinal constants.SessionStatus
	// SnarkError is reported as error_msg with a non-success final status.
	SnarkError string
	// MutateSnark edits the compressed receipt before it is served.
	MutateSnark func(*zkvm.Receipt)

	// TransientFailures makes the first N status requests answer 503.
	TransientFailures int

	// ProverKey seals receipts. Nil means a fresh ephemeral key.
	ProverKey ed25519.PrivateKey
}

type fakeSession struct {
	id      string
	image   []byte
	input   []byte
	baseID  string
	polls   int
	receipt []byte
	err     string
}

// FakeBonsai is an in-process fake of the remote proving service. Proofs
// come from a real reference prover so downloaded receipts verify.
type FakeBonsai struct {
	URL    string
	APIKey string
	Engine *prover.Engine

	mu       sync.Mutex
	script   BonsaiScript
	images   map[string][]byte
	inputs   map[string][]byte
	sessions map[string]*fakeSession
	snarks   map[string]*fakeSession
	requests []string
	failures int
}

// NewFakeBonsai starts a fake service. It is closed when the test ends.
func NewFakeBonsai(t testing.TB, script BonsaiScript) *FakeBonsai {
	t.Helper()

	key := script.ProverKey
	if key == nil {
		var err error
		if key, err = prover.EphemeralKey(); err != nil {
			t.Fatalf("prover key: %v", err)
		}
	}

	f := &FakeBonsai{
		APIKey:   "test-api-key",
		Engine:   prover.NewEngine(key, zerolog.Nop()),
		script:   script,
		images:   make(map[string][]byte),
		inputs:   make(map[string][]byte),
		sessions: make(map[string]*fakeSession),
		snarks:   make(map[string]*fakeSession),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /images/upload/{id}", f.authed(f.handleImageQuery))
	mux.HandleFunc("PUT /upload/images/{id}", f.handleImagePut)
	mux.HandleFunc("GET /inputs/upload", f.authed(f.handleInputQuery))
	mux.HandleFunc("PUT /upload/inputs/{id}", f.handleInputPut)
	mux.HandleFunc("POST /sessions/create", f.authed(f.handleSessionCreate))
	mux.HandleFunc("GET /sessions/status/{id}", f.authed(f.transient(f.handleSessionStatus)))
	mux.HandleFunc("POST /snark/create", f.authed(f.handleSnarkCreate))
	mux.HandleFunc("GET /snark/status/{id}", f.authed(f.transient(f.handleSnarkStatus)))
	mux.HandleFunc("GET /receipts/{kind}/{id}", f.handleReceipt)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.requests = append(f.requests, r.Method+" "+r.URL.Path)
		f.mu.Unlock()
		mux.ServeHTTP(w, r)
	}))
	t.Cleanup(srv.Close)
	f.URL = srv.URL
	return f
}

// Requests returns "METHOD /path" for every request received.
func (f *FakeBonsai) Requests() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.requests...)
}

// Count returns how many received requests equal "METHOD /path" prefix p.
func (f *FakeBonsai) Count(prefix string) int {
	n := 0
	for _, r := range f.Requests() {
		if len(r) >= len(prefix) && r[:len(prefix)] == prefix {
			n++
		}
	}
	return n
}

// ImageCount returns the number of stored images.
func (f *FakeBonsai) ImageCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.images)
}

func (f *FakeBonsai) authed(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get(constants.HeaderAPIKey) != f.APIKey {
			http.Error(w, "invalid api key", http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}

func (f *FakeBonsai) transient(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		fail := f.failures < f.script.TransientFailures
		if fail {
			f.failures++
		}
		f.mu.Unlock()
		if fail {
			http.Error(w, "try again", http.StatusServiceUnavailable)
			return
		}
		next(w, r)
	}
}

func (f *FakeBonsai) handleImageQuery(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	f.mu.Lock()
	_, ok := f.images[id]
	f.mu.Unlock()
	if ok {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	// relative on purpose: clients resolve it against the API base
	writeJSON(w, map[string]string{"url": "upload/images/" + id})
}

func (f *FakeBonsai) handleImagePut(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	f.mu.Lock()
	f.images[r.PathValue("id")] = data
	f.mu.Unlock()
	w.WriteHeader(http.StatusOK)
}

func (f *FakeBonsai) handleInputQuery(w http.ResponseWriter, _ *http.Request) {
	id := uuid.NewString()
	writeJSON(w, map[string]string{"uuid": id, "url": f.URL + "/upload/inputs/" + id})
}

func (f *FakeBonsai) handleInputPut(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	f.mu.Lock()
	f.inputs[r.PathValue("id")] = data
	f.mu.Unlock()
	w.WriteHeader(http.StatusOK)
}

func (f *FakeBonsai) handleSessionCreate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Img         string   `json:"img"`
		Input       string   `json:"input"`
		Assumptions []string `json:"assumptions"`
		ExecuteOnly bool     `json:"execute_only"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	f.mu.Lock()
	image, okImg := f.images[req.Img]
	input, okIn := f.inputs[req.Input]
	f.mu.Unlock()
	if !okImg || !okIn || req.Assumptions == nil || req.ExecuteOnly {
		http.Error(w, "bad session request", http.StatusBadRequest)
		return
	}

	s := &fakeSession{id: uuid.NewString(), image: image, input: input}
	f.mu.Lock()
	f.sessions[s.id] = s
	f.mu.Unlock()
	writeJSON(w, map[string]string{"uuid": s.id})
}

func (f *FakeBonsai) handleSessionStatus(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	s, ok := f.sessions[r.PathValue("id")]
	if !ok {
		http.Error(w, "no such session", http.StatusNotFound)
		return
	}

	status := nextStatus(s, f.script.SessionStatuses, f.script.SessionFinal)
	resp := map[string]any{"status": status}
	if status.InProgress() {
		resp["state"] = "Executing"
		writeJSON(w, resp)
		return
	}
	if status != constants.SessionSucceeded {
		resp["error_msg"] = f.script.SessionError
		writeJSON(w, resp)
		return
	}

	if s.receipt == nil && s.err == "" {
		f.proveLocked(r.Context(), s)
	}
	if s.err != "" {
		resp["status"] = constants.SessionFailed
		resp["error_msg"] = s.err
		writeJSON(w, resp)
		return
	}
	if !f.script.OmitReceiptURL {
		resp["receipt_url"] = f.URL + "/receipts/session/" + s.id
	}
	resp["elapsed_time"] = 1.5
	writeJSON(w, resp)
}

func (f *FakeBonsai) proveLocked(ctx context.Context, s *fakeSession) {
	r, err := f.Engine.Prove(ctx, s.image, s.input)
	if err != nil {
		s.err = err.Error()
		return
	}
	if f.script.MutateReceipt != nil {
		f.script.MutateReceipt(r)
	}
	s.receipt, s.err = marshalArtifact(r, f.script.CorruptArtifact)
}

func (f *FakeBonsai) handleSnarkCreate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SessionID string `json:"session_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	base, ok := f.sessions[req.SessionID]
	if !ok || base.receipt == nil {
		http.Error(w, "session not succeeded", http.StatusBadRequest)
		return
	}
	s := &fakeSession{id: uuid.NewString(), baseID: base.id}
	f.snarks[s.id] = s
	writeJSON(w, map[string]string{"uuid": s.id})
}

func (f *FakeBonsai) handleSnarkStatus(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	s, ok := f.snarks[r.PathValue("id")]
	if !ok {
		http.Error(w, "no such snark", http.StatusNotFound)
		return
	}

	status := nextStatus(s, f.script.SnarkStatuses, f.script.SnarkFinal)
	resp := map[string]any{"status": status}
	if status.InProgress() {
		writeJSON(w, resp)
		return
	}
	if status != constants.SessionSucceeded {
		resp["error_msg"] = f.script.SnarkError
		writeJSON(w, resp)
		return
	}

	if s.receipt == nil && s.err == "" {
		base, err := zkvm.UnmarshalReceipt(f.sessions[s.baseID].receipt)
		if err == nil {
			var c *zkvm.Receipt
			if c, err = f.Engine.Compress(r.Context(), base); err == nil {
				if f.script.MutateSnark != nil {
					f.script.MutateSnark(c)
				}
				s.receipt, s.err = marshalArtifact(c, false)
			}
		}
		if err != nil {
			s.err = err.Error()
		}
	}
	if s.err != "" {
		resp["status"] = constants.SessionFailed
		resp["error_msg"] = s.err
		writeJSON(w, resp)
		return
	}
	resp["output"] = "/receipts/snark/" + s.id
	writeJSON(w, resp)
}

func (f *FakeBonsai) handleReceipt(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	table := f.sessions
	if r.PathValue("kind") == "snark" {
		table = f.snarks
	}
	s, ok := table[r.PathValue("id")]
	var data []byte
	if ok {
		data = s.receipt
	}
	f.mu.Unlock()

	if data == nil {
		http.Error(w, "no receipt", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/octet-stream")
	_, _ = w.Write(data)
}

func nextStatus(s *fakeSession, script []constants.SessionStatus, final constants.SessionStatus) constants.SessionStatus {
	defer func() { s.polls++ }()
	if s.polls < len(script) {
		return script[s.polls]
	}
	if final == "" {
		return constants.SessionSucceeded
	}
	return final
}

func marshalArtifact(r *zkvm.Receipt, corrupt bool) ([]byte, string) {
	if corrupt {
		return []byte("\x00not a receipt"), ""
	}
	data, err := r.Marshal()
	if err != nil {
		return nil, fmt.Sprintf("marshal receipt: %v", err)
	}
	return data, ""
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
