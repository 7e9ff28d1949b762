package tabular

import (
	"math/rand"

	"github.com/pkg/errors"
)

// embeddingMLP looks categorical indices up in learned embedding tables,
// concatenates the embeddings with the numeric features and feeds the dense
// vector through an inner mlp. Embedding rows train with the same averaged
// SGD step as the dense layers.
type embeddingMLP struct {
	numCat   int
	sizes    []EmbeddingSize
	tables   [][][]float32 // tables[c][index][dim]
	denseDim int
	net      *mlp
}

func newEmbeddingMLP(cfg BackboneConfig, hidden []int) (*embeddingMLP, error) {
	numCat := len(cfg.EmbeddingSizes)
	if cfg.NumFeatures < numCat {
		return nil, errors.Errorf("tabular: %d features cannot hold %d categorical fields",
			cfg.NumFeatures, numCat)
	}
	numNumeric := cfg.NumFeatures - numCat

	seed := cfg.Seed
	if seed == 0 {
		seed = 1
	}
	rng := rand.New(rand.NewSource(seed))

	e := &embeddingMLP{numCat: numCat, sizes: cfg.EmbeddingSizes}
	e.tables = make([][][]float32, numCat)
	embeddedDim := 0
	for c, size := range cfg.EmbeddingSizes {
		table := make([][]float32, size.Cardinality)
		for i := range table {
			row := make([]float32, size.Dim)
			for d := range row {
				row[d] = (rng.Float32()*2 - 1) * 0.05
			}
			table[i] = row
		}
		e.tables[c] = table
		embeddedDim += size.Dim
	}
	e.denseDim = embeddedDim + numNumeric

	net, err := newMLP(e.denseDim, hidden, cfg.NumClasses, seed+1)
	if err != nil {
		return nil, err
	}
	e.net = net
	return e, nil
}

// embed expands one encoded feature vector into the dense input of the
// inner net. Indices outside a table clamp to the unknown slot.
func (e *embeddingMLP) embed(in []float32) ([]float32, error) {
	if len(in) < e.numCat {
		return nil, errors.Errorf("tabular: input has %d values, need at least %d categorical indices",
			len(in), e.numCat)
	}
	dense := make([]float32, 0, e.denseDim)
	for c := 0; c < e.numCat; c++ {
		idx := int(in[c])
		if idx < 0 || idx >= len(e.tables[c]) {
			idx = 0
		}
		dense = append(dense, e.tables[c][idx]...)
	}
	dense = append(dense, in[e.numCat:]...)
	return dense, nil
}

// Forward implements task.Model.
func (e *embeddingMLP) Forward(in []float32) []float32 {
	dense, err := e.embed(in)
	if err != nil {
		return nil
	}
	return e.net.Forward(dense)
}

// TrainBatch implements task.Model, updating both the dense layers and the
// embedding rows touched by the batch.
func (e *embeddingMLP) TrainBatch(inputs, targets [][]float32, lr float64) (float64, error) {
	dense := make([][]float32, len(inputs))
	for i, in := range inputs {
		d, err := e.embed(in)
		if err != nil {
			return 0, err
		}
		dense[i] = d
	}

	inputGrads := make([][]float32, len(inputs))
	loss, gradW, gradB, inputGrads, err := e.net.backward(dense, targets, inputGrads)
	if err != nil {
		return 0, err
	}
	e.net.apply(gradW, gradB, float32(lr), len(inputs))

	bInv := float32(lr / float64(len(inputs)))
	for ex, grad := range inputGrads {
		offset := 0
		for c := 0; c < e.numCat; c++ {
			idx := int(inputs[ex][c])
			if idx < 0 || idx >= len(e.tables[c]) {
				idx = 0
			}
			row := e.tables[c][idx]
			for d := range row {
				row[d] -= bInv * grad[offset+d]
			}
			offset += e.sizes[c].Dim
		}
	}
	return loss, nil
}

// EvalBatch implements task.Model.
func (e *embeddingMLP) EvalBatch(inputs, targets [][]float32) (float64, error) {
	dense := make([][]float32, len(inputs))
	for i, in := range inputs {
		d, err := e.embed(in)
		if err != nil {
			return 0, err
		}
		dense[i] = d
	}
	return e.net.EvalBatch(dense, targets)
}
