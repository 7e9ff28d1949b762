package data

import (
	"fmt"
	"io"

	"github.com/gomlx/gomlx/pkg/core/tensors"
	"github.com/gomlx/gomlx/pkg/ml/train"
	"github.com/pkg/errors"

	"github.com/Noofbiz/kindling/input"
	"github.com/Noofbiz/kindling/stage"
)

// CollateFunc assembles a slice of samples into tensor inputs and labels for
// one training step.
type CollateFunc func(batch []input.Sample) (inputs, labels []*tensors.Tensor, err error)

// Batches exposes one stage of the data module as a gomlx train.Dataset.
// Samples are pulled in raw-collection order, passed through the stage
// transform, then collated. The returned dataset yields io.EOF at the end of
// each epoch; Reset starts the next one.
func (m *DataModule) Batches(s stage.Stage, collate CollateFunc) (train.Dataset, error) {
	ds := m.datasets[s]
	if ds == nil {
		return nil, errors.Errorf("data module has no %v dataset", s)
	}
	if collate == nil {
		collate = FloatCollate
	}
	return &batches{
		module:  m,
		ds:      ds,
		collate: collate,
	}, nil
}

type batches struct {
	module  *DataModule
	ds      Dataset
	collate CollateFunc
	next    int
}

// Name implements train.Dataset.
func (b *batches) Name() string {
	return fmt.Sprintf("%v[batch=%d]", b.ds.Stage(), b.module.batchSize)
}

// Reset implements train.Dataset, restarting the epoch.
func (b *batches) Reset() {
	b.next = 0
}

// Yield implements train.Dataset. The last batch of an epoch may be smaller
// than the configured batch size.
func (b *batches) Yield() (spec any, inputs []*tensors.Tensor, labels []*tensors.Tensor, err error) {
	if b.next >= b.ds.Len() {
		err = io.EOF
		return
	}
	end := b.next + b.module.batchSize
	if end > b.ds.Len() {
		end = b.ds.Len()
	}
	batch := make([]input.Sample, 0, end-b.next)
	transform := b.module.transforms[b.ds.Stage()]
	for i := b.next; i < end; i++ {
		sample, e := b.ds.ItemAt(i)
		if e != nil {
			err = errors.Wrapf(e, "materializing sample %d", i)
			return
		}
		if transform != nil {
			if sample, e = transform(sample); e != nil {
				err = errors.Wrapf(e, "transforming sample %d", i)
				return
			}
		}
		batch = append(batch, sample)
	}
	b.next = end
	inputs, labels, err = b.collate(batch)
	return
}

// FloatCollate is the default collation: each sample's input and target are
// flattened into batch-major [][]float32 buffers and converted into one
// tensor each. Inputs must be []float32 of a consistent dimension; targets
// may be []float32, float32, or an int class index.
func FloatCollate(batch []input.Sample) ([]*tensors.Tensor, []*tensors.Tensor, error) {
	ins := make([][]float32, len(batch))
	labs := make([][]float32, len(batch))
	for i, sample := range batch {
		in, err := FloatVector(sample[input.KeyInput])
		if err != nil {
			return nil, nil, errors.Wrapf(err, "sample %d input", i)
		}
		ins[i] = in
		if target, ok := sample[input.KeyTarget]; ok {
			lab, err := FloatVector(target)
			if err != nil {
				return nil, nil, errors.Wrapf(err, "sample %d target", i)
			}
			labs[i] = lab
		}
	}
	for i := 1; i < len(ins); i++ {
		if len(ins[i]) != len(ins[0]) {
			return nil, nil, errors.Errorf("inconsistent input dimensions: sample 0 has %d, sample %d has %d",
				len(ins[0]), i, len(ins[i]))
		}
	}
	inputs := []*tensors.Tensor{tensors.FromAnyValue(ins)}
	var labels []*tensors.Tensor
	if len(batch) > 0 && labs[0] != nil {
		labels = []*tensors.Tensor{tensors.FromAnyValue(labs)}
	}
	return inputs, labels, nil
}

// FloatVector coerces a sample value into a float vector: []float32 passes
// through, scalars become one-element vectors.
func FloatVector(v any) ([]float32, error) {
	switch x := v.(type) {
	case []float32:
		return x, nil
	case float32:
		return []float32{x}, nil
	case float64:
		return []float32{float32(x)}, nil
	case int:
		return []float32{float32(x)}, nil
	case nil:
		return nil, errors.New("missing value")
	}
	return nil, errors.Errorf("unsupported value type %T", v)
}
