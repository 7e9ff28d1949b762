// Package data provides the DataModule: the per-stage orchestrator that owns
// one stage-bound input per running stage, the transform pipelines applied to
// produced samples, and the adapter that exposes a stage's samples as a gomlx
// train.Dataset for batched training.
package data

import (
	"github.com/pkg/errors"
	"k8s.io/klog/v2"

	"github.com/Noofbiz/kindling/input"
	"github.com/Noofbiz/kindling/stage"
)

// DefaultBatchSize is used when no batch size option is given.
const DefaultBatchSize = 32

// Dataset is the per-stage view a DataModule needs: random access over
// materialized samples. *input.Input satisfies it.
type Dataset interface {
	Len() int
	ItemAt(i int) (input.Sample, error)
	Stage() stage.Stage
}

// DataModule owns at most one dataset per stage, along with the stage
// transforms and the batch size the training loop should use.
type DataModule struct {
	batchSize  int
	datasets   map[stage.Stage]Dataset
	transforms map[stage.Stage]input.Transform
}

// Option configures a DataModule.
type Option func(*DataModule)

// WithBatchSize sets the batch size used by Batches.
func WithBatchSize(n int) Option {
	return func(m *DataModule) {
		if n > 0 {
			m.batchSize = n
		}
	}
}

func withStage(s stage.Stage, ds Dataset, transforms []input.Transform) Option {
	return func(m *DataModule) {
		if ds == nil {
			return
		}
		m.datasets[s] = ds
		if len(transforms) > 0 {
			m.transforms[s] = input.Compose(transforms...)
		}
	}
}

// WithTrain attaches the training dataset and its transform pipeline.
func WithTrain(ds Dataset, transforms ...input.Transform) Option {
	return withStage(stage.Training, ds, transforms)
}

// WithVal attaches the validation dataset and its transform pipeline.
func WithVal(ds Dataset, transforms ...input.Transform) Option {
	return withStage(stage.Validating, ds, transforms)
}

// WithTest attaches the test dataset and its transform pipeline.
func WithTest(ds Dataset, transforms ...input.Transform) Option {
	return withStage(stage.Testing, ds, transforms)
}

// WithPredict attaches the prediction dataset and its transform pipeline.
func WithPredict(ds Dataset, transforms ...input.Transform) Option {
	return withStage(stage.Predicting, ds, transforms)
}

// New assembles a DataModule. Stages without an attached dataset are simply
// absent; asking for their batches fails.
func New(opts ...Option) *DataModule {
	m := &DataModule{
		batchSize:  DefaultBatchSize,
		datasets:   make(map[stage.Stage]Dataset),
		transforms: make(map[stage.Stage]input.Transform),
	}
	for _, opt := range opts {
		opt(m)
	}
	for _, s := range stage.All() {
		if _, ok := m.datasets[s]; !ok {
			klog.V(2).Infof("data module assembled without a %v dataset", s)
		}
	}
	return m
}

// BatchSize returns the configured batch size.
func (m *DataModule) BatchSize() int { return m.batchSize }

// Train returns the training dataset, or nil when the stage is absent.
func (m *DataModule) Train() Dataset { return m.datasets[stage.Training] }

// Val returns the validation dataset, or nil when the stage is absent.
func (m *DataModule) Val() Dataset { return m.datasets[stage.Validating] }

// Test returns the test dataset, or nil when the stage is absent.
func (m *DataModule) Test() Dataset { return m.datasets[stage.Testing] }

// Predict returns the prediction dataset, or nil when the stage is absent.
func (m *DataModule) Predict() Dataset { return m.datasets[stage.Predicting] }

// ForStage returns the dataset bound to an arbitrary stage, or nil.
func (m *DataModule) ForStage(s stage.Stage) Dataset { return m.datasets[s] }

// Item materializes one sample from the given stage with the stage transform
// applied, which is the single-item path used for prediction.
func (m *DataModule) Item(s stage.Stage, i int) (input.Sample, error) {
	ds := m.datasets[s]
	if ds == nil {
		return nil, errors.Errorf("data module has no %v dataset", s)
	}
	sample, err := ds.ItemAt(i)
	if err != nil {
		return nil, err
	}
	if t := m.transforms[s]; t != nil {
		return t(sample)
	}
	return sample, nil
}
