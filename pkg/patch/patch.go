// Package patch applies curated reaction edits to a draft model.
package patch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/yumyai/strainmodel/logger"
	"github.com/yumyai/strainmodel/pkg/media"
	"github.com/yumyai/strainmodel/pkg/model"
	"github.com/yumyai/strainmodel/pkg/validate"
)

var ErrInvalid = errors.New("invalid patch")

type Op string

const (
	Add    Op = "add"
	Remove Op = "remove"
)

// Change is a single edit; changes apply in document order.
type Change struct {
	Reaction string
	Op       Op
}

type Patch struct {
	ModelID   string
	Reactions []Change
}

type member struct {
	key string
	raw json.RawMessage
}

// members decodes a JSON object keeping key order.
func members(data []byte) ([]member, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, errors.New("expected an object")
	}
	var out []member
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, _ := tok.(string)
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return nil, err
		}
		out = append(out, member{key: key, raw: raw})
	}
	return out, nil
}

// Parse extracts the edits for modelID from a patch document
// {model_id: {section: {id: "add"|"remove"}}}. Every section is checked for bad operations;
// only the reactions section is applied.
func Parse(data []byte, modelID string) (*Patch, error) {
	models, err := members(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	var body json.RawMessage
	for _, m := range models {
		if m.key == modelID {
			body = m.raw
		}
	}
	if body == nil {
		return nil, fmt.Errorf("%w: could not find model %s in patch data", ErrInvalid, modelID)
	}

	sections, err := members(body)
	if err != nil {
		return nil, fmt.Errorf("%w: model %s: %v", ErrInvalid, modelID, err)
	}
	p := &Patch{ModelID: modelID}
	for _, s := range sections {
		entries, err := members(s.raw)
		if err != nil {
			return nil, fmt.Errorf("%w: section %s: %v", ErrInvalid, s.key, err)
		}
		for _, e := range entries {
			var op Op
			if err := json.Unmarshal(e.raw, &op); err != nil || (op != Add && op != Remove) {
				return nil, fmt.Errorf("%w: got bad operation %s for %s", ErrInvalid, bytes.TrimSpace(e.raw), e.key)
			}
			if s.key == "reactions" {
				p.Reactions = append(p.Reactions, Change{Reaction: e.key, Op: op})
			}
		}
	}
	return p, nil
}

func Load(path, modelID string) (*Patch, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	p, err := Parse(data, modelID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return p, nil
}

// Apply edits draft in place. Added reactions are copied from ref along with the
// metabolites and genes they need. Removing an absent reaction or adding one the draft
// already has only warns.
func (p *Patch) Apply(draft, ref model.Model) error {
	for _, c := range p.Reactions {
		switch c.Op {
		case Remove:
			if !draft.RemoveReaction(c.Reaction) {
				logger.Warn("Patch removes reaction not in model",
					zap.String("model", draft.ID()), zap.String("reaction", c.Reaction))
			}
		case Add:
			if _, ok := draft.Reaction(c.Reaction); ok {
				logger.Warn("Patch adds reaction already in model",
					zap.String("model", draft.ID()), zap.String("reaction", c.Reaction))
				continue
			}
			if err := model.CopyReaction(draft, ref, c.Reaction); err != nil {
				return fmt.Errorf("%w: add %s: %w", ErrInvalid, c.Reaction, err)
			}
		default:
			return fmt.Errorf("%w: got bad operation %s for %s", ErrInvalid, c.Op, c.Reaction)
		}
		logger.Debug("Applied patch", zap.String("reaction", c.Reaction), zap.String("op", string(c.Op)))
	}
	return nil
}

type Input struct {
	Draft      model.Model
	Reference  model.Model
	Patch      *Patch
	Media      media.Media
	Atmosphere validate.Atmosphere
	BiomassID  string
	OutputPath string
}

// Run applies the patch to a copy of the draft, saves it and checks it still grows.
// The model is saved whether or not it grows; growth is reported in the result.
func Run(ctx context.Context, v *validate.Validator, in Input) (validate.Result, error) {
	patched := in.Draft.Copy()
	if err := in.Patch.Apply(patched, in.Reference); err != nil {
		return validate.Result{}, err
	}
	if err := model.Save(patched, in.OutputPath); err != nil {
		return validate.Result{}, err
	}
	logger.Info("Wrote patched model", zap.String("path", in.OutputPath), zap.Int("changes", len(in.Patch.Reactions)))

	return v.Validate(ctx, patched, in.Media, in.Atmosphere, in.BiomassID)
}
