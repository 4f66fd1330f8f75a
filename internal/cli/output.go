package cli

import (
	"bytes"
	"crypto/ed25519"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/mrz1836/zkdrop/internal/server"
)

// outputStyles holds the lipgloss styles for text output.
type outputStyles struct {
	header lipgloss.Style
	cell   lipgloss.Style
	label  lipgloss.Style
	dim    lipgloss.Style
	ok     lipgloss.Style
	bad    lipgloss.Style
}

// newOutputStyles creates styles bound to w; writers that are not a color
// terminal get plain text.
func newOutputStyles(w io.Writer) *outputStyles {
	r := lipgloss.NewRenderer(w)
	return &outputStyles{
		header: r.NewStyle().
			Bold(true).
			Foreground(lipgloss.AdaptiveColor{Light: "#333333", Dark: "#DDDDDD"}),
		cell:  r.NewStyle(),
		label: r.NewStyle().Bold(true),
		dim: r.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "#666666", Dark: "#888888"}),
		ok:  r.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#008700", Dark: "#00D787"}),
		bad: r.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#AF0000", Dark: "#FF5F5F"}),
	}
}

// writeJSON writes v as indented JSON.
func writeJSON(w io.Writer, v any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

// hexKey renders a public key for display.
func hexKey(k ed25519.PublicKey) string {
	return hex.EncodeToString(k)
}

// renderPrograms prints the registry as an aligned table.
func renderPrograms(w io.Writer, list []server.ProgramInfo) error {
	s := newOutputStyles(w)

	headers := []string{"NAME", "IMAGE ID", "DESCRIPTION"}
	rows := make([][]string, 0, len(list))
	for _, p := range list {
		rows = append(rows, []string{p.Name, p.ImageID, p.Description})
	}

	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = lipgloss.Width(h)
	}
	for _, row := range rows {
		for i, cell := range row {
			widths[i] = max(widths[i], lipgloss.Width(cell))
		}
	}

	var b strings.Builder
	for i, h := range headers {
		b.WriteString(s.header.Width(widths[i] + 2).Render(h))
	}
	b.WriteString("\n")
	for _, row := range rows {
		b.WriteString(s.cell.Width(widths[0] + 2).Render(row[0]))
		b.WriteString(s.dim.Width(widths[1] + 2).Render(row[1]))
		b.WriteString(row[2])
		b.WriteString("\n")
	}

	_, err := io.WriteString(w, b.String())
	return err
}

// outputSummary extracts the fields every program commits.
type outputSummary struct {
	IsValid *bool  `json:"is_valid"`
	Message string `json:"message"`
}

// renderOutput prints the committed output with its validity highlighted.
func renderOutput(b *strings.Builder, s *outputStyles, output json.RawMessage) {
	var summary outputSummary
	if err := json.Unmarshal(output, &summary); err == nil && summary.IsValid != nil {
		status := s.ok.Render("valid")
		if !*summary.IsValid {
			status = s.bad.Render("invalid")
		}
		fmt.Fprintf(b, "%s %s (%s)\n", s.label.Render("Result:"), status, summary.Message)
	}

	var pretty bytes.Buffer
	if err := json.Indent(&pretty, output, "", "  "); err != nil {
		pretty.Reset()
		pretty.Write(output)
	}
	fmt.Fprintf(b, "%s\n%s\n", s.label.Render("Output:"), pretty.String())
}

// renderProve prints a prove result.
func renderProve(w io.Writer, resp ProveResponse) error {
	s := newOutputStyles(w)

	var b strings.Builder
	fmt.Fprintf(&b, "%s %s\n", s.label.Render("Program:"), resp.Program)
	fmt.Fprintf(&b, "%s %s\n", s.label.Render("Image ID:"), s.dim.Render(resp.ImageID))
	fmt.Fprintf(&b, "%s %s\n", s.label.Render("Mode:"), resp.Mode)
	fmt.Fprintf(&b, "%s %s\n", s.label.Render("Job ID:"), resp.JobID)
	if resp.SessionID != "" {
		fmt.Fprintf(&b, "%s %s\n", s.label.Render("Session:"), resp.SessionID)
	}
	renderOutput(&b, s, resp.Output)
	if resp.ReceiptFile != "" {
		fmt.Fprintf(&b, "%s written to %s\n", s.label.Render("Receipt:"), resp.ReceiptFile)
	} else {
		fmt.Fprintf(&b, "%s\n%s\n", s.label.Render("Receipt:"), resp.ReceiptBase64)
	}

	_, err := io.WriteString(w, b.String())
	return err
}

// renderVerify prints a verify result.
func renderVerify(w io.Writer, resp VerifyResponse) error {
	s := newOutputStyles(w)

	var b strings.Builder
	fmt.Fprintf(&b, "%s receipt belongs to %s\n", s.ok.Render("Verified:"), resp.Program)
	fmt.Fprintf(&b, "%s %s\n", s.label.Render("Image ID:"), s.dim.Render(resp.ImageID))
	fmt.Fprintf(&b, "%s %s\n", s.label.Render("Seal:"), resp.SealKind)
	fmt.Fprintf(&b, "%s %s\n", s.label.Render("Prover key:"), s.dim.Render(resp.ProverKey))
	renderOutput(&b, s, resp.Output)

	_, err := io.WriteString(w, b.String())
	return err
}
