package schematic

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/schemforge/schemforge/pkg/errors"
)

// =============================================================================
// Document - Canonical JSON Format
// =============================================================================

// Document is the canonical JSON serialization of a schematic.
// It mirrors the parsed output of the KiCad reader and is the format the
// HTTP API and the parse command exchange.
type Document struct {
	Components []Component   `json:"components" bson:"components"`
	Nets       []DeclaredNet `json:"nets,omitempty" bson:"nets,omitempty"`
	Labels     []string      `json:"labels,omitempty" bson:"labels,omitempty"`
}

// =============================================================================
// Parsing
// =============================================================================

// Parse reads the canonical JSON document and builds a schematic model.
//
// Parse is pure construction: it has no side effects and the returned
// schematic is not yet frozen. Error conditions:
//   - PARSE_MALFORMED_INPUT: structurally invalid JSON, no components,
//     or a duplicated pin index within a component
//   - PARSE_DUPLICATE_COMPONENT: two components share a reference
//   - PARSE_EMPTY_COMPONENT: a component with zero pins
//   - PARSE_INVALID_ROLE: a pin role outside the closed role set
//   - PARSE_UNKNOWN_PIN: a declared net references a missing pin
func Parse(r io.Reader) (*Schematic, error) {
	var doc Document
	dec := json.NewDecoder(r)
	if err := dec.Decode(&doc); err != nil {
		return nil, errors.Wrap(errors.ErrCodeMalformedInput, err, "decode schematic document")
	}
	return FromDocument(doc)
}

// ParseFile reads and parses a canonical JSON schematic file.
func ParseFile(path string) (*Schematic, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	return Parse(f)
}

// FromDocument builds a schematic model from a decoded document.
func FromDocument(doc Document) (*Schematic, error) {
	if len(doc.Components) == 0 {
		return nil, errMalformed("schematic contains no components")
	}

	s := New()
	for i := range doc.Components {
		c := doc.Components[i]
		if c.Ref == "" {
			return nil, errMalformed("component %d has no reference", i)
		}
		if _, exists := s.Component(c.Ref); exists {
			return nil, errors.New(errors.ErrCodeDuplicateComponent, "duplicate component reference %q", c.Ref)
		}
		if len(c.Pins) == 0 {
			return nil, errEmptyComponent(c.Ref)
		}
		for j := range c.Pins {
			role, err := ParseRole(string(c.Pins[j].Role))
			if err != nil {
				return nil, errors.Wrap(errors.ErrCodeInvalidRole, err, "component %s pin %d", c.Ref, c.Pins[j].Index)
			}
			c.Pins[j].Role = role
			if c.Pins[j].Index == 0 {
				c.Pins[j].Index = j + 1
			}
		}
		s.AddComponent(&c)
	}

	for _, n := range doc.Nets {
		s.DeclareNet(n)
	}
	for _, l := range doc.Labels {
		s.AddLabel(l)
	}

	if err := s.Validate(); err != nil {
		return nil, err
	}
	s.Freeze()
	return s, nil
}

// ToDocument converts a schematic back to its canonical document form.
// Used for serialization, caching, and as oracle context.
func (s *Schematic) ToDocument() Document {
	doc := Document{
		Components: make([]Component, len(s.components)),
		Nets:       s.declared,
		Labels:     s.labels,
	}
	for i, c := range s.components {
		doc.Components[i] = *c
	}
	return doc
}

// Marshal serializes a schematic to pretty-printed canonical JSON.
// Output is deterministic for a given schematic, making it suitable
// as cache-key material.
func Marshal(s *Schematic) ([]byte, error) {
	return json.MarshalIndent(s.ToDocument(), "", "  ")
}

// WriteFile writes a schematic as canonical JSON to a file.
func WriteFile(s *Schematic, path string) error {
	data, err := Marshal(s)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// =============================================================================
// Error Constructors
// =============================================================================

func errMalformed(format string, args ...any) error {
	return errors.New(errors.ErrCodeMalformedInput, format, args...)
}

func errEmptyComponent(ref string) error {
	return errors.New(errors.ErrCodeEmptyComponent, "component %q has no pins", ref)
}

func errUnknownPin(net string, p PinRef) error {
	return errors.New(errors.ErrCodeUnknownPin, "net %q references unknown pin %s", net, p)
}
