// Package task ties a model to a data module: the epoch-driven fit loop,
// the per-epoch metrics report, and a loss-curve plot of the report.
package task

import (
	"context"
	"math/rand"

	"github.com/pkg/errors"
	"k8s.io/klog/v2"

	"github.com/Noofbiz/kindling/data"
	"github.com/Noofbiz/kindling/input"
	"github.com/Noofbiz/kindling/stage"
)

// Model is the training surface a backbone must expose. Targets arrive as
// float vectors; a classification backbone receives the class index as a
// one-element vector and handles its own encoding.
type Model interface {
	// Forward computes the model output for one input vector.
	Forward(in []float32) []float32

	// TrainBatch runs one optimization step over a mini-batch and returns
	// the mean training loss of the batch.
	TrainBatch(inputs, targets [][]float32, lr float64) (float64, error)

	// EvalBatch returns the mean loss over a batch without updating the
	// model.
	EvalBatch(inputs, targets [][]float32) (float64, error)
}

// Config holds the fit-loop hyperparameters. Zero values fall back to the
// defaults set in Fit.
type Config struct {
	Epochs       int
	BatchSize    int
	LearningRate float64

	// Patience is the number of epochs without validation improvement
	// tolerated before stopping early. Zero disables early stopping.
	Patience int

	// Seed drives mini-batch shuffling. Zero keeps the natural order
	// deterministic across runs.
	Seed int64
}

// Task couples a model with fit-loop configuration.
type Task struct {
	Model  Model
	Config Config
}

// EpochMetrics is one row of the training history.
type EpochMetrics struct {
	Epoch     int
	TrainLoss float64
	ValLoss   float64
}

// Report summarizes a fit run.
type Report struct {
	History []EpochMetrics
	// Best is the index into History with the lowest validation loss, or
	// the lowest training loss when no validation data was supplied.
	Best int
}

// Fit trains the task's model on the data module's training stage,
// evaluating against the validation stage after each epoch when present.
func (t *Task) Fit(ctx context.Context, dm *data.DataModule) (*Report, error) {
	log := klog.FromContext(ctx)

	cfg := t.Config
	if cfg.Epochs == 0 {
		cfg.Epochs = 10
	}
	if cfg.BatchSize == 0 {
		cfg.BatchSize = dm.BatchSize()
	}
	if cfg.LearningRate == 0 {
		cfg.LearningRate = 1e-3
	}

	trainIn, trainTargets, err := stageVectors(dm, stage.Training)
	if err != nil {
		return nil, err
	}
	if len(trainIn) == 0 {
		return nil, errors.New("task: training dataset is empty")
	}
	valIn, valTargets, err := stageVectors(dm, stage.Validating)
	if err != nil {
		return nil, err
	}

	var rng *rand.Rand
	if cfg.Seed != 0 {
		rng = rand.New(rand.NewSource(cfg.Seed))
	}

	report := &Report{}
	bestLoss := 0.0
	sinceBest := 0
	indices := make([]int, len(trainIn))
	for i := range indices {
		indices[i] = i
	}

	for epoch := 0; epoch < cfg.Epochs; epoch++ {
		select {
		case <-ctx.Done():
			return report, ctx.Err()
		default:
		}

		if rng != nil {
			rng.Shuffle(len(indices), func(i, j int) {
				indices[i], indices[j] = indices[j], indices[i]
			})
		}

		var lossSum float64
		var batchCount int
		for start := 0; start < len(indices); start += cfg.BatchSize {
			end := start + cfg.BatchSize
			if end > len(indices) {
				end = len(indices)
			}
			bin := make([][]float32, 0, end-start)
			btg := make([][]float32, 0, end-start)
			for _, idx := range indices[start:end] {
				bin = append(bin, trainIn[idx])
				btg = append(btg, trainTargets[idx])
			}
			loss, err := t.Model.TrainBatch(bin, btg, cfg.LearningRate)
			if err != nil {
				return report, errors.Wrapf(err, "training epoch %d", epoch)
			}
			lossSum += loss
			batchCount++
		}

		metrics := EpochMetrics{Epoch: epoch, TrainLoss: lossSum / float64(batchCount)}
		monitored := metrics.TrainLoss
		if len(valIn) > 0 {
			valLoss, err := t.Model.EvalBatch(valIn, valTargets)
			if err != nil {
				return report, errors.Wrapf(err, "validating epoch %d", epoch)
			}
			metrics.ValLoss = valLoss
			monitored = valLoss
		}
		report.History = append(report.History, metrics)
		log.V(1).Info("epoch complete", "epoch", epoch,
			"train_loss", metrics.TrainLoss, "val_loss", metrics.ValLoss)

		if epoch == 0 || monitored < bestLoss {
			bestLoss = monitored
			report.Best = epoch
			sinceBest = 0
		} else {
			sinceBest++
			if cfg.Patience > 0 && sinceBest >= cfg.Patience {
				log.Info("stopping early", "epoch", epoch, "best", report.Best)
				break
			}
		}
	}
	return report, nil
}

// stageVectors materializes a stage into float input/target vectors, with
// the stage transform applied. An absent stage yields empty slices.
func stageVectors(dm *data.DataModule, s stage.Stage) (ins, targets [][]float32, err error) {
	ds := dm.ForStage(s)
	if ds == nil {
		return nil, nil, nil
	}
	for i := 0; i < ds.Len(); i++ {
		sample, err := dm.Item(s, i)
		if err != nil {
			return nil, nil, errors.Wrapf(err, "materializing %v sample %d", s, i)
		}
		in, err := data.FloatVector(sample[input.KeyInput])
		if err != nil {
			return nil, nil, errors.Wrapf(err, "%v sample %d input", s, i)
		}
		target, err := data.FloatVector(sample[input.KeyTarget])
		if err != nil {
			return nil, nil, errors.Wrapf(err, "%v sample %d target", s, i)
		}
		ins = append(ins, in)
		targets = append(targets, target)
	}
	return ins, targets, nil
}
