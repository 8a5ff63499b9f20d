package task

import (
	"encoding/json"
	"fmt"
)

// EntryPoint is the name under which a loaded program exposes its function.
const EntryPoint = "main"

// ProgramVersion is the current program text format
const ProgramVersion = 1

// Program is the self-contained text loaded into a fresh context. It names
// the function to bind to the entry point; the function body itself is
// resolved through the context's registry.
type Program struct {
	Version int    `json:"version"`
	Entry   string `json:"entry"`
	Func    string `json:"func"`
}

// String returns the program text
func (p Program) String() string {
	data, err := json.Marshal(p)
	if err != nil {
		// A struct of ints and strings always marshals.
		panic(err)
	}
	return string(data)
}

// ParseProgram reconstructs a Program from its text
func ParseProgram(text string) (Program, error) {
	var p Program
	if err := json.Unmarshal([]byte(text), &p); err != nil {
		return Program{}, fmt.Errorf("%w: %w", ErrInvalidProgram, err)
	}
	if p.Version != ProgramVersion {
		return Program{}, fmt.Errorf("%w: unsupported version %d", ErrInvalidProgram, p.Version)
	}
	if p.Entry != EntryPoint {
		return Program{}, fmt.Errorf("%w: unknown entry point %q", ErrInvalidProgram, p.Entry)
	}
	if p.Func == "" {
		return Program{}, fmt.Errorf("%w: missing function name", ErrInvalidProgram)
	}
	return p, nil
}

// Serializer turns descriptors into programs, refusing functions its
// registry does not know.
type Serializer struct {
	registry *Registry
}

// NewSerializer creates a Serializer backed by registry
func NewSerializer(registry *Registry) *Serializer {
	return &Serializer{registry: registry}
}

// Serialize produces the program for d's function. It fails with
// ErrSerialization when the function cannot be addressed by name.
func (s *Serializer) Serialize(d Descriptor) (Program, error) {
	if d.Func == "" {
		return Program{}, fmt.Errorf("%w: empty function name", ErrSerialization)
	}
	if _, ok := s.registry.Lookup(d.Func); !ok {
		return Program{}, fmt.Errorf("%w: function %q is not registered", ErrSerialization, d.Func)
	}
	return Program{
		Version: ProgramVersion,
		Entry:   EntryPoint,
		Func:    d.Func,
	}, nil
}

// Registry returns the registry the serializer resolves names against
func (s *Serializer) Registry() *Registry {
	return s.registry
}
