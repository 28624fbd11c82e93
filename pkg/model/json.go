package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// Coefficient is one metabolite participating in a reaction.
type Coefficient struct {
	Metabolite string
	Value      float64
}

// Stoichiometry keeps reaction metabolites in document order. The COBRA JSON format
// stores them as an object, which a Go map would reorder.
type Stoichiometry []Coefficient

func (s Stoichiometry) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, c := range s {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(c.Metabolite)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.WriteString(strconv.FormatFloat(c.Value, 'g', -1, 64))
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (s *Stoichiometry) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("metabolites: expected object, got %v", tok)
	}
	out := Stoichiometry{}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("metabolites: unexpected key %v", tok)
		}
		var v float64
		if err := dec.Decode(&v); err != nil {
			return fmt.Errorf("metabolites: coefficient of %s: %w", key, err)
		}
		out = append(out, Coefficient{Metabolite: key, Value: v})
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	*s = out
	return nil
}

// Get returns the coefficient of metabolite id.
func (s Stoichiometry) Get(id string) (float64, bool) {
	for _, c := range s {
		if c.Metabolite == id {
			return c.Value, true
		}
	}
	return 0, false
}

// Annotation values are written as a single string, a list of strings or (in older
// files) nested lists; every form decodes to the flat list of strings it contains.
type Annotation []string

func (a *Annotation) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("annotation: %w", err)
	}
	var out Annotation
	var walk func(v any)
	walk = func(v any) {
		switch t := v.(type) {
		case string:
			out = append(out, t)
		case []any:
			for _, e := range t {
				walk(e)
			}
		}
	}
	walk(raw)
	*a = out
	return nil
}
