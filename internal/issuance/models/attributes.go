package models

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Attribute is one credential attribute.
type Attribute struct {
	Name  string
	Value string
}

// Attributes is an ordered attribute mapping. Its JSON form is an object whose
// key order is kept on decode and reproduced on encode.
type Attributes []Attribute

// Get returns the value stored under name.
func (a Attributes) Get(name string) (string, bool) {
	for _, attr := range a {
		if attr.Name == name {
			return attr.Value, true
		}
	}
	return "", false
}

func (a Attributes) Has(name string) bool {
	_, ok := a.Get(name)
	return ok
}

// Names returns attribute names in order.
func (a Attributes) Names() []string {
	names := make([]string, len(a))
	for i, attr := range a {
		names[i] = attr.Name
	}
	return names
}

// Missing returns the entries of required that a lacks, in required's order.
func (a Attributes) Missing(required []string) []string {
	var missing []string
	for _, name := range required {
		if !a.Has(name) {
			missing = append(missing, name)
		}
	}
	return missing
}

// With returns a copy of a with name appended, or replaced in place when present.
func (a Attributes) With(name, value string) Attributes {
	out := make(Attributes, 0, len(a)+1)
	replaced := false
	for _, attr := range a {
		if attr.Name == name {
			attr.Value = value
			replaced = true
		}
		out = append(out, attr)
	}
	if !replaced {
		out = append(out, Attribute{Name: name, Value: value})
	}
	return out
}

func (a Attributes) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, attr := range a {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(attr.Name)
		if err != nil {
			return nil, err
		}
		value, err := json.Marshal(attr.Value)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON accepts an object of scalars. Non-string scalars keep their
// literal JSON text ("age": 42 becomes "42"); null becomes "".
func (a *Attributes) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("attributes: expected JSON object")
	}

	out := Attributes{}
	seen := make(map[string]struct{})
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		name, ok := tok.(string)
		if !ok {
			return fmt.Errorf("attributes: expected key")
		}
		if _, dup := seen[name]; dup {
			return fmt.Errorf("attributes: duplicate key %q", name)
		}
		seen[name] = struct{}{}

		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return err
		}
		value, err := scalarText(raw)
		if err != nil {
			return fmt.Errorf("attributes: %q: %w", name, err)
		}
		out = append(out, Attribute{Name: name, Value: value})
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	*a = out
	return nil
}

func scalarText(raw json.RawMessage) (string, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return "", fmt.Errorf("empty value")
	}
	switch trimmed[0] {
	case '"':
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return "", err
		}
		return s, nil
	case '{', '[':
		return "", fmt.Errorf("nested values are not supported")
	case 'n':
		return "", nil
	}
	return string(trimmed), nil
}
