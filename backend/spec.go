package backend

import (
	"fmt"
	"path/filepath"

	"github.com/weiihann/ppbench/codec"
)

// Spec describes how a backend's guest program expects its inputs and how
// it publishes its output.
type Spec struct {
	Name   string
	Input  codec.InputCodec
	Output codec.OutputCodec
	// ELF is the guest binary's file name inside an ELF directory.
	ELF string
}

// ELFPath returns where the guest binary lives under dir.
func (s Spec) ELFPath(dir string) string {
	return filepath.Join(dir, s.ELF)
}

// Specs returns the supported backends in reporting order.
func Specs() []Spec {
	return []Spec{
		{Name: "sp1", Input: codec.Records{}, Output: codec.ByteBuffer{}, ELF: "pp-sp1-guest"},
		{Name: "risc0", Input: codec.Records{}, Output: codec.ByteBuffer{}, ELF: "pp-risc0-guest"},
		{Name: "openvm", Input: codec.Concat{}, Output: codec.WordReveal{}, ELF: "pp-openvm-guest"},
		{Name: "pico", Input: codec.Records{}, Output: codec.ByteBuffer{}, ELF: "pp-pico-guest"},
		{Name: "nexus", Input: codec.Records{}, Output: codec.TypedRecord{}, ELF: "pp-nexus-guest"},
		{Name: "valida", Input: codec.JSONTape{}, Output: codec.JSONOutput{}, ELF: "pp-valida-guest"},
	}
}

// Names returns the names of all supported backends.
func Names() []string {
	specs := Specs()
	names := make([]string, len(specs))
	for i, s := range specs {
		names[i] = s.Name
	}

	return names
}

// Lookup returns the Spec for name.
func Lookup(name string) (Spec, error) {
	for _, s := range Specs() {
		if s.Name == name {
			return s, nil
		}
	}

	return Spec{}, fmt.Errorf("%w: %q", ErrUnknownBackend, name)
}
