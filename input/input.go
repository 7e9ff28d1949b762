// Package input implements the stage-aware dataset inputs that back every
// data module in kindling. An input is constructed from a hook table: a
// generic load-data/load-sample pair plus optional per-stage overrides. The
// load-data hook runs once at construction and produces a collection of raw
// descriptors (file paths, row indices, ...); the load-sample hook
// materializes one Sample per access.
//
// Two variants exist, mirroring the two access patterns a training loop may
// drive: Input supports length and random access, IterableInput supports
// sequential iteration only.
package input

import (
	"io"

	"github.com/pkg/errors"

	"github.com/Noofbiz/kindling/stage"
)

// Canonical sample keys shared across data modules.
const (
	KeyInput    = "input"
	KeyTarget   = "target"
	KeyMetadata = "metadata"
)

var (
	// ErrMissingHook is returned when a hook table lacks a generic hook.
	// Generic hooks must always be present; overrides are optional.
	ErrMissingHook = errors.New("input: hook table is missing a generic hook")

	// ErrIndexOutOfRange is returned by Input.ItemAt for indices outside
	// [0, Len()).
	ErrIndexOutOfRange = errors.New("input: index out of range")
)

// Sample is one fully materialized item, keyed by names like KeyInput and
// KeyTarget, ready for collation into a batch. Samples are ephemeral: they
// are produced per access and never retained by the input.
type Sample map[string]any

// LoadDataFunc produces the raw descriptor collection for an input. The
// descriptors should stay cheap (paths, indices); the expensive work belongs
// in the load-sample hook.
type LoadDataFunc func(arg any) ([]any, error)

// LoadSampleFunc materializes a single sample from one raw descriptor. It
// must not mutate the descriptor collection; with that contract random
// access is safe for concurrent readers.
type LoadSampleFunc func(desc any) (Sample, error)

// StageHooks overrides one or both generic hooks for a single stage. A nil
// field falls back to the generic hook.
type StageHooks struct {
	LoadData   LoadDataFunc
	LoadSample LoadSampleFunc
}

// Hooks is the hook-resolution table for an input. Resolution is
// deterministic: for the stage an input was constructed with, a non-nil
// override wins over the generic hook, and the generic hook is used
// otherwise. There is nothing else to resolve against, so a table that
// passes validation can never fail to resolve.
type Hooks struct {
	LoadData   LoadDataFunc
	LoadSample LoadSampleFunc

	// Overrides maps a stage to its stage-qualified hooks, the moral
	// equivalent of defining predict_load_data next to load_data.
	Overrides map[stage.Stage]StageHooks
}

func (h Hooks) validate() error {
	if h.LoadData == nil {
		return errors.Wrap(ErrMissingHook, "load data")
	}
	if h.LoadSample == nil {
		return errors.Wrap(ErrMissingHook, "load sample")
	}
	return nil
}

func (h Hooks) resolveLoadData(s stage.Stage) LoadDataFunc {
	if o, ok := h.Overrides[s]; ok && o.LoadData != nil {
		return o.LoadData
	}
	return h.LoadData
}

func (h Hooks) resolveLoadSample(s stage.Stage) LoadSampleFunc {
	if o, ok := h.Overrides[s]; ok && o.LoadSample != nil {
		return o.LoadSample
	}
	return h.LoadSample
}

// base carries the state shared by both input variants: the bound stage, the
// resolved load-sample hook and the raw descriptor collection.
type base struct {
	stage      stage.Stage
	loadSample LoadSampleFunc
	raw        []any
}

// newBase validates the hook table and runs the stage-resolved load-data
// hook exactly once. A nil arg short-circuits to an empty collection without
// invoking the hook at all, so a data module can be assembled with some
// stages absent.
func newBase(s stage.Stage, h Hooks, arg any) (base, error) {
	if err := h.validate(); err != nil {
		return base{}, err
	}
	b := base{stage: s, loadSample: h.resolveLoadSample(s)}
	if arg == nil {
		return b, nil
	}
	raw, err := h.resolveLoadData(s)(arg)
	if err != nil {
		return base{}, errors.Wrapf(err, "loading %v data", s)
	}
	b.raw = raw
	return b, nil
}

// Stage returns the running stage the input was constructed for.
func (b *base) Stage() stage.Stage { return b.stage }

// Input is the random-access variant. Indexed access is side-effect free, so
// concurrent readers are safe as long as the load-sample hook upholds its
// no-shared-mutation contract.
type Input struct {
	base
}

// New builds a random-access input for the given stage. arg is handed to the
// stage-resolved load-data hook; passing nil yields an empty input and skips
// the hook.
func New(s stage.Stage, h Hooks, arg any) (*Input, error) {
	b, err := newBase(s, h, arg)
	if err != nil {
		return nil, err
	}
	return &Input{base: b}, nil
}

// Len returns the number of raw descriptors loaded at construction.
func (in *Input) Len() int { return len(in.raw) }

// ItemAt materializes the sample at index i by applying the stage-resolved
// load-sample hook to the i-th raw descriptor.
func (in *Input) ItemAt(i int) (Sample, error) {
	if i < 0 || i >= len(in.raw) {
		return nil, errors.Wrapf(ErrIndexOutOfRange, "index %d, length %d", i, len(in.raw))
	}
	return in.loadSample(in.raw[i])
}

// IterableInput is the streaming variant. The cursor is instance-local
// mutable state with no locking: concurrent iteration passes over one
// instance will interleave. Each consumer should own its instance or
// serialize access.
type IterableInput struct {
	base
	cursor int
}

// NewIterable builds a streaming input with the same construction contract
// as New.
func NewIterable(s stage.Stage, h Hooks, arg any) (*IterableInput, error) {
	b, err := newBase(s, h, arg)
	if err != nil {
		return nil, err
	}
	return &IterableInput{base: b}, nil
}

// Reset restarts iteration from the first raw descriptor.
func (in *IterableInput) Reset() { in.cursor = 0 }

// Next materializes the next sample in raw-collection order, returning
// io.EOF once the pass is exhausted. Reset starts a new pass.
func (in *IterableInput) Next() (Sample, error) {
	if in.cursor >= len(in.raw) {
		return nil, io.EOF
	}
	desc := in.raw[in.cursor]
	in.cursor++
	return in.loadSample(desc)
}
