package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mrz1836/zkdrop/internal/dispatch"
	zkerrors "github.com/mrz1836/zkdrop/internal/errors"
	"github.com/mrz1836/zkdrop/internal/programs"
	"github.com/mrz1836/zkdrop/internal/zkvm"
)

// ProveModeParam is the query parameter selecting the execution mode.
const ProveModeParam = "prove_mode"

// ProofResponse is returned by the proof endpoints.
type ProofResponse[O any] struct {
	Output        O      `json:"output"`
	ReceiptBase64 string `json:"receipt_base64"`
	ImageID       string `json:"image_id"`
	Mode          string `json:"mode"`
	JobID         string `json:"job_id"`
	SessionID     string `json:"session_id,omitempty"`
}

// ProgramInfo describes one registered program.
type ProgramInfo struct {
	Name        string `json:"name"`
	ImageID     string `json:"image_id"`
	Entry       string `json:"entry,omitempty"`
	Description string `json:"description,omitempty"`
}

// HealthResponse is returned by /healthz.
type HealthResponse struct {
	Status        string `json:"status"`
	Programs      int    `json:"programs"`
	RemoteEnabled bool   `json:"remote_enabled"`
}

type validatable interface {
	Validate() error
}

// proveHandler decodes I, proves it with program and answers with the
// journal decoded as O.
func proveHandler[I validatable, O any](s *Server, program string) gin.HandlerFunc {
	return func(c *gin.Context) {
		var in I
		if err := c.ShouldBindJSON(&in); err != nil {
			writeError(c, fmt.Errorf("%w: %w", zkerrors.ErrInputDecode, err))
			return
		}
		if err := in.Validate(); err != nil {
			writeError(c, err)
			return
		}

		payload, err := json.Marshal(in)
		if err != nil {
			writeError(c, err)
			return
		}

		ctx := c.Request.Context()
		if s.cfg.RequestTimeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, s.cfg.RequestTimeout)
			defer cancel()
		}

		mode := dispatch.ResolveMode(c.Query(ProveModeParam))
		res, err := s.dispatcher.Run(ctx, program, payload, mode)
		if err != nil {
			writeError(c, err)
			return
		}

		var out O
		if err := res.Receipt.DecodeJournal(&out); err != nil {
			writeError(c, err)
			return
		}
		encoded, err := zkvm.EncodeBase64(res.Receipt)
		if err != nil {
			writeError(c, err)
			return
		}

		c.JSON(http.StatusOK, ProofResponse[O]{
			Output:        out,
			ReceiptBase64: encoded,
			ImageID:       res.Program.ImageID.String(),
			Mode:          res.Mode.String(),
			JobID:         res.JobID,
			SessionID:     res.SessionID,
		})
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{
		Status:        "ok",
		Programs:      s.dispatcher.Registry().Len(),
		RemoteEnabled: s.dispatcher.RemoteEnabled(),
	})
}

func (s *Server) handlePrograms(c *gin.Context) {
	c.JSON(http.StatusOK, DescribePrograms(s.dispatcher.Registry()))
}

// DescribePrograms lists the registry for display.
func DescribePrograms(reg *programs.Registry) []ProgramInfo {
	list := reg.Programs()
	out := make([]ProgramInfo, 0, len(list))
	for _, p := range list {
		info := ProgramInfo{Name: p.Name, ImageID: p.ImageID.String()}
		if img, err := programs.ParseImage(p.Image); err == nil {
			info.Entry = img.Entry
			info.Description = img.Description
		}
		out = append(out, info)
	}
	return out
}
