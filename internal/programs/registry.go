// Package programs holds the registry of provable programs and their
// expected image identities.
package programs

import (
	"embed"
	"fmt"
	"path"
	"sort"

	zkerrors "github.com/mrz1836/zkdrop/internal/errors"
	"github.com/mrz1836/zkdrop/internal/zkvm"
)

// Names of the built-in programs.
const (
	AESCTRVerifier = "aes-ctr-verifier"
	RSAEncrypter   = "rsa-encrypter"
	RSAVerifier    = "rsa-verifier"
)

//go:embed images/*.yaml
var imageFS embed.FS

// Program is a registered program: its image bytes and the digest every
// receipt for it must carry.
type Program struct {
	Name    string
	Image   []byte
	ImageID zkvm.Digest
}

func (p Program) clone() Program {
	p.Image = append([]byte(nil), p.Image...)
	return p
}

// Entry is a (name, image) pair used to build a Registry.
type Entry struct {
	Name  string
	Image []byte
}

// Registry maps program names to programs. It is immutable after New
// returns and safe for concurrent use without locking.
type Registry struct {
	programs map[string]Program
}

// New builds a registry, computing each image id from the image bytes.
func New(entries ...Entry) (*Registry, error) {
	programs := make(map[string]Program, len(entries))
	for _, e := range entries {
		if e.Name == "" {
			return nil, fmt.Errorf("%w: program name", zkerrors.ErrEmptyValue)
		}
		if _, dup := programs[e.Name]; dup {
			return nil, fmt.Errorf("%w: %q", zkerrors.ErrDuplicateProgram, e.Name)
		}
		image := append([]byte(nil), e.Image...)
		programs[e.Name] = Program{
			Name:    e.Name,
			Image:   image,
			ImageID: zkvm.ComputeImageID(image),
		}
	}
	return &Registry{programs: programs}, nil
}

// Builtin returns the registry of the compiled-in programs.
func Builtin() (*Registry, error) {
	names := []string{AESCTRVerifier, RSAEncrypter, RSAVerifier}
	entries := make([]Entry, 0, len(names))
	for _, name := range names {
		data, err := imageFS.ReadFile(path.Join("images", name+".yaml"))
		if err != nil {
			return nil, fmt.Errorf("read image %s: %w", name, err)
		}
		img, err := ParseImage(data)
		if err != nil {
			return nil, fmt.Errorf("image %s: %w", name, err)
		}
		if img.Name != name {
			return nil, fmt.Errorf("%w: image %s declares name %q", zkerrors.ErrInvalidImage, name, img.Name)
		}
		entries = append(entries, Entry{Name: name, Image: data})
	}
	return New(entries...)
}

// Resolve returns the program registered under name. The returned image is
// a copy; changing it does not affect the registry.
func (r *Registry) Resolve(name string) (Program, error) {
	p, ok := r.programs[name]
	if !ok {
		return Program{}, fmt.Errorf("%w: %q", zkerrors.ErrUnknownProgram, name)
	}
	return p.clone(), nil
}

// Programs returns copies of all registered programs sorted by name.
func (r *Registry) Programs() []Program {
	out := make([]Program, 0, len(r.programs))
	for _, p := range r.programs {
		out = append(out, p.clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Len returns the number of registered programs.
func (r *Registry) Len() int {
	return len(r.programs)
}
