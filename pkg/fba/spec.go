package fba

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/yumyai/strainmodel/pkg/media"
	"github.com/yumyai/strainmodel/pkg/validate"
)

var ErrInvalidSpec = errors.New("invalid fba spec")

// SpecError reports a problem with one named spec.
type SpecError struct {
	Spec string
	Msg  string
}

func (e *SpecError) Error() string {
	return fmt.Sprintf("fba spec %s: %s", e.Spec, e.Msg)
}

func (e *SpecError) Unwrap() error { return ErrInvalidSpec }

const (
	DefinedExchangesOnly    = "defined_exchanges_only"
	PotentialElementSources = "potential_element_sources"
)

// Spec describes the simulations to run for one named condition.
type Spec struct {
	Name                  string
	Types                 []string
	Atmospheres           []validate.Atmosphere
	Exchanges             map[string]float64
	DefaultElementSources map[string]string
}

type rawSpec struct {
	FBAType               []string           `json:"fba_type"`
	Atmosphere            []string           `json:"atmosphere"`
	Exchanges             map[string]float64 `json:"exchanges"`
	MediaType             *string            `json:"media_type"`
	DefaultElementSources map[string]string  `json:"default_element_sources"`
}

// ParseSpecs decodes a spec document {name: spec, ...} and validates every spec, keeping
// document order. Specs naming a media_type instead of exchanges are resolved through reg.
func ParseSpecs(data []byte, reg *media.Registry) ([]Spec, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSpec, err)
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, fmt.Errorf("%w: document is not an object", ErrInvalidSpec)
	}

	var specs []Spec
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidSpec, err)
		}
		name, _ := tok.(string)

		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return nil, &SpecError{Spec: name, Msg: err.Error()}
		}
		trimmed := bytes.TrimSpace(raw)
		if len(trimmed) == 0 || trimmed[0] != '{' {
			return nil, &SpecError{Spec: name, Msg: "fba spec is not a dictionary"}
		}
		var rs rawSpec
		if err := json.Unmarshal(raw, &rs); err != nil {
			return nil, &SpecError{Spec: name, Msg: err.Error()}
		}
		spec, err := rs.build(name, reg)
		if err != nil {
			return nil, err
		}
		specs = append(specs, spec)
	}
	if len(specs) == 0 {
		return nil, fmt.Errorf("%w: no specs defined", ErrInvalidSpec)
	}
	return specs, nil
}

// ElementSources are the element categories every spec must name a default source for.
var ElementSources = []string{"carbon", "phosphorus", "nitrogen", "sulfur"}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}

func (rs rawSpec) build(name string, reg *media.Registry) (Spec, error) {
	fail := func(format string, args ...any) (Spec, error) {
		return Spec{}, &SpecError{Spec: name, Msg: fmt.Sprintf(format, args...)}
	}

	if rs.FBAType == nil {
		return fail("no fba_types defined")
	}
	if rs.Atmosphere == nil {
		return fail("no atmosphere defined")
	}
	if rs.Exchanges == nil && rs.MediaType == nil {
		return fail("no exchanges or media_type defined")
	}
	if rs.DefaultElementSources == nil {
		return fail("no default_element_sources defined")
	}

	exchanges := rs.Exchanges
	if exchanges == nil {
		if reg == nil {
			return fail("media_type %s given but no media definitions are available", *rs.MediaType)
		}
		med, err := reg.Media(*rs.MediaType)
		if err != nil {
			return fail("%v", err)
		}
		exchanges = med.Exchanges
	}

	for _, t := range rs.FBAType {
		if t != DefinedExchangesOnly && t != PotentialElementSources {
			return fail("got bad fba_type: %s", t)
		}
	}
	var atms []validate.Atmosphere
	for _, a := range rs.Atmosphere {
		atm, err := validate.ParseAtmosphere(a)
		if err != nil || atm == validate.AtmosphereUnset {
			return fail("got bad atmosphere value: %q", a)
		}
		atms = append(atms, atm)
	}

	valid := make(map[string]bool, len(ElementSources))
	for _, s := range ElementSources {
		valid[s] = true
	}
	var missing, undefined []string
	for _, s := range ElementSources {
		if _, ok := rs.DefaultElementSources[s]; !ok {
			missing = append(missing, s)
		}
	}
	for s := range rs.DefaultElementSources {
		if !valid[s] {
			undefined = append(undefined, s)
		}
	}
	sort.Strings(undefined)
	if len(missing) > 0 {
		return fail("default %s missing: %s", plural(len(missing), "source", "sources"), strings.Join(missing, ", "))
	}
	if len(undefined) > 0 {
		return fail("undefined default %s found: %s", plural(len(undefined), "source", "sources"), strings.Join(undefined, ", "))
	}

	var notInExchanges []string
	for _, s := range ElementSources {
		if _, ok := exchanges[rs.DefaultElementSources[s]]; !ok {
			notInExchanges = append(notInExchanges, rs.DefaultElementSources[s])
		}
	}
	if len(notInExchanges) > 0 {
		return fail("default %s not defined in exchanges: %s",
			plural(len(notInExchanges), "source", "sources"), strings.Join(notInExchanges, ", "))
	}

	if _, ok := exchanges[validate.OxygenExchange]; ok {
		return fail("O2 present in exchange list")
	}
	if _, ok := exchanges[CarbonDioxideExchange]; ok {
		return fail("CO2 present in exchange list")
	}

	return Spec{
		Name:                  name,
		Types:                 rs.FBAType,
		Atmospheres:           atms,
		Exchanges:             exchanges,
		DefaultElementSources: rs.DefaultElementSources,
	}, nil
}
