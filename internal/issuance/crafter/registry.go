package crafter

import (
	"fmt"
	"strings"
	"time"
)

// Names of the built-in crafters.
const (
	NameDefault   = "default"
	NameIssueDate = "issue_date"
)

// Builtins is the catalogue of named factories available to configuration.
func Builtins(now func() time.Time) map[string]Factory {
	return map[string]Factory{
		NameDefault: func(p Params) (Crafter, error) {
			return NewDefault(p), nil
		},
		NameIssueDate: NewIssueDateFactory(now),
	}
}

// Registry resolves a credential definition id to its crafter.
type Registry struct {
	factories map[string]Factory
}

// NewRegistry binds each credential definition id in bindings to the named
// factory from catalogue. Names missing from the catalogue are kept as nil
// factories and resolve to Default.
func NewRegistry(bindings map[string]string, catalogue map[string]Factory) *Registry {
	factories := make(map[string]Factory, len(bindings))
	for credDefID, name := range bindings {
		factories[credDefID] = catalogue[name]
	}
	return &Registry{factories: factories}
}

// For never fails: any resolution problem yields Default.
func (r *Registry) For(p Params) Crafter {
	if r == nil {
		return NewDefault(p)
	}
	factory, ok := r.factories[p.CredentialDefinitionID]
	if !ok || factory == nil {
		return NewDefault(p)
	}
	c, err := safeBuild(factory, p)
	if err != nil || c == nil {
		return NewDefault(p)
	}
	return c
}

func safeBuild(factory Factory, p Params) (c Crafter, err error) {
	defer func() {
		if r := recover(); r != nil {
			c, err = nil, fmt.Errorf("crafter factory panicked: %v", r)
		}
	}()
	return factory(p)
}

// ParseBindings parses "credDefID=name,credDefID=name". Blank entries are skipped.
func ParseBindings(raw string) (map[string]string, error) {
	bindings := make(map[string]string)
	for _, entry := range strings.Split(raw, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		credDefID, name, ok := strings.Cut(entry, "=")
		credDefID, name = strings.TrimSpace(credDefID), strings.TrimSpace(name)
		if !ok || credDefID == "" || name == "" {
			return nil, fmt.Errorf("invalid crafter binding %q: want credDefID=name", entry)
		}
		bindings[credDefID] = name
	}
	return bindings, nil
}
