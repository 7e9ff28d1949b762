package tabular

import (
	"context"

	"github.com/pkg/errors"

	"github.com/Noofbiz/kindling/input"
	"github.com/Noofbiz/kindling/stage"
	"github.com/Noofbiz/kindling/task"
)

// ClassifierConfig selects and parameterizes a backbone plus the fit loop.
type ClassifierConfig struct {
	// Backbone names an entry in Backbones. Default "mlp".
	Backbone string

	HiddenSizes  []int
	LearningRate float64
	Epochs       int
	BatchSize    int
	Patience     int
	Seed         int64
}

// Classifier predicts the class of encoded tabular rows. Construction
// resolves the backbone by name and shapes it from the data module's
// encoders.
type Classifier struct {
	data  *Data
	model task.Model
	cfg   ClassifierConfig
}

// NewClassifier builds a classifier for the given data module.
func NewClassifier(d *Data, cfg ClassifierConfig) (*Classifier, error) {
	if d == nil {
		return nil, errors.New("tabular: classifier needs a data module")
	}
	name := cfg.Backbone
	if name == "" {
		name = "mlp"
	}
	build, err := Backbones.Get(name)
	if err != nil {
		return nil, err
	}
	model, err := build(BackboneConfig{
		NumFeatures:    d.NumFeatures(),
		NumClasses:     d.NumClasses(),
		EmbeddingSizes: d.EmbeddingSizes(),
		HiddenSizes:    cfg.HiddenSizes,
		Seed:           cfg.Seed,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "building backbone %q", name)
	}
	return &Classifier{data: d, model: model, cfg: cfg}, nil
}

// Fit trains the classifier on the data module's train split, validating
// against the validation split when present.
func (c *Classifier) Fit(ctx context.Context) (*task.Report, error) {
	t := &task.Task{
		Model: c.model,
		Config: task.Config{
			Epochs:       c.cfg.Epochs,
			BatchSize:    c.cfg.BatchSize,
			LearningRate: c.cfg.LearningRate,
			Patience:     c.cfg.Patience,
			Seed:         c.cfg.Seed,
		},
	}
	return t.Fit(ctx, c.data.DataModule)
}

// Predict classifies one encoded feature vector, returning the label and
// the class distribution.
func (c *Classifier) Predict(features []float32) (string, []float32, error) {
	probs := c.model.Forward(features)
	if probs == nil {
		return "", nil, errors.Errorf("tabular: forward pass failed for %d features", len(features))
	}
	best := 0
	for i, p := range probs {
		if p > probs[best] {
			best = i
		}
	}
	return c.data.Labels()[best], probs, nil
}

// PredictItem classifies the i-th row of the predict stage.
func (c *Classifier) PredictItem(i int) (string, []float32, error) {
	sample, err := c.data.Item(stage.Predicting, i)
	if err != nil {
		return "", nil, err
	}
	features, ok := sample[input.KeyInput].([]float32)
	if !ok {
		return "", nil, errors.New("tabular: predict sample has no feature vector")
	}
	return c.Predict(features)
}
