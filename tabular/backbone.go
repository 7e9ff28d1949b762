package tabular

import (
	"math"
	"math/rand"

	"github.com/pkg/errors"

	"github.com/Noofbiz/kindling/registry"
	"github.com/Noofbiz/kindling/task"
)

// BackboneConfig carries everything a backbone constructor needs, derived
// from the data module plus classifier options.
type BackboneConfig struct {
	NumFeatures    int
	NumClasses     int
	EmbeddingSizes []EmbeddingSize
	HiddenSizes    []int
	Seed           int64
}

// BackboneFunc constructs a trainable model from a config.
type BackboneFunc func(cfg BackboneConfig) (task.Model, error)

// Backbones is the registry classifier backbones are resolved from by name.
var Backbones = registry.New[BackboneFunc]("tabular backbones")

func init() {
	Backbones.MustRegister("mlp", newMLPBackbone, registry.WithProvider("kindling"))
	Backbones.MustRegister("wide", newWideBackbone, registry.WithProvider("kindling"))
	Backbones.MustRegister("category_embedding", newCategoryEmbeddingBackbone, registry.WithProvider("kindling"))
}

func newMLPBackbone(cfg BackboneConfig) (task.Model, error) {
	hidden := cfg.HiddenSizes
	if len(hidden) == 0 {
		hidden = []int{64, 32}
	}
	return newMLP(cfg.NumFeatures, hidden, cfg.NumClasses, cfg.Seed)
}

// newWideBackbone is a linear softmax classifier: an MLP with no hidden
// layers.
func newWideBackbone(cfg BackboneConfig) (task.Model, error) {
	return newMLP(cfg.NumFeatures, nil, cfg.NumClasses, cfg.Seed)
}

func newCategoryEmbeddingBackbone(cfg BackboneConfig) (task.Model, error) {
	if len(cfg.EmbeddingSizes) == 0 {
		return nil, errors.New("tabular: category_embedding backbone needs categorical fields")
	}
	hidden := cfg.HiddenSizes
	if len(hidden) == 0 {
		hidden = []int{64, 32}
	}
	return newEmbeddingMLP(cfg, hidden)
}

// mlp is a dense network with ReLU hidden layers and a softmax
// cross-entropy head, trained with averaged mini-batch SGD.
type mlp struct {
	layerSizes []int
	weights    [][][]float32 // weights[l][out][in]
	biases     [][]float32
	rng        *rand.Rand
}

func newMLP(inputDim int, hidden []int, numClasses int, seed int64) (*mlp, error) {
	if inputDim <= 0 {
		return nil, errors.New("tabular: input dimension must be positive")
	}
	if numClasses < 2 {
		return nil, errors.Errorf("tabular: need at least 2 classes, got %d", numClasses)
	}
	if seed == 0 {
		seed = 1
	}

	sizes := make([]int, 0, 2+len(hidden))
	sizes = append(sizes, inputDim)
	sizes = append(sizes, hidden...)
	sizes = append(sizes, numClasses)

	m := &mlp{layerSizes: sizes, rng: rand.New(rand.NewSource(seed))}
	L := len(sizes) - 1
	m.weights = make([][][]float32, L)
	m.biases = make([][]float32, L)
	for l := 0; l < L; l++ {
		in, out := sizes[l], sizes[l+1]
		// Xavier/Glorot uniform initialization heuristic.
		limit := float32(math.Sqrt(6.0 / float64(in+out)))
		mat := make([][]float32, out)
		for j := range mat {
			row := make([]float32, in)
			for i := range row {
				row[i] = (m.rng.Float32()*2.0 - 1.0) * limit
			}
			mat[j] = row
		}
		m.weights[l] = mat
		m.biases[l] = make([]float32, out)
	}
	return m, nil
}

func reluInPlace(x []float32) {
	for i := range x {
		if x[i] < 0 {
			x[i] = 0
		}
	}
}

// forward returns per-layer pre-activations and activations; the final
// activation is the softmax class distribution.
func (m *mlp) forward(in []float32) (preActs, acts [][]float32, err error) {
	if len(in) != m.layerSizes[0] {
		return nil, nil, errors.Errorf("tabular: input has dimension %d, model expects %d",
			len(in), m.layerSizes[0])
	}
	L := len(m.weights)
	acts = make([][]float32, L+1)
	acts[0] = in
	preActs = make([][]float32, L)
	for l := 0; l < L; l++ {
		inVec := acts[l]
		outDim := len(m.biases[l])
		pre := make([]float32, outDim)
		for j := 0; j < outDim; j++ {
			sum := m.biases[l][j]
			row := m.weights[l][j]
			for i := range inVec {
				sum += row[i] * inVec[i]
			}
			pre[j] = sum
		}
		preActs[l] = pre

		act := make([]float32, outDim)
		copy(act, pre)
		if l < L-1 {
			reluInPlace(act)
		} else {
			softmaxInPlace(act)
		}
		acts[l+1] = act
	}
	return preActs, acts, nil
}

func softmaxInPlace(logits []float32) {
	max := logits[0]
	for _, v := range logits[1:] {
		if v > max {
			max = v
		}
	}
	var sum float64
	for i, v := range logits {
		e := math.Exp(float64(v - max))
		logits[i] = float32(e)
		sum += e
	}
	for i := range logits {
		logits[i] = float32(float64(logits[i]) / sum)
	}
}

// Forward implements task.Model, returning class probabilities.
func (m *mlp) Forward(in []float32) []float32 {
	_, acts, err := m.forward(in)
	if err != nil {
		return nil
	}
	return acts[len(acts)-1]
}

// classOf reads the class index out of a target vector.
func classOf(target []float32, numClasses int) (int, error) {
	if len(target) != 1 {
		return 0, errors.Errorf("tabular: expected a one-element class target, got %d values", len(target))
	}
	class := int(target[0])
	if class < 0 || class >= numClasses {
		return 0, errors.Errorf("tabular: class %d out of range [0, %d)", class, numClasses)
	}
	return class, nil
}

// TrainBatch implements task.Model: one averaged SGD step with softmax
// cross-entropy loss. Returns the mean loss over the batch.
func (m *mlp) TrainBatch(inputs, targets [][]float32, lr float64) (float64, error) {
	loss, gradW, gradB, _, err := m.backward(inputs, targets, nil)
	if err != nil {
		return 0, err
	}
	m.apply(gradW, gradB, float32(lr), len(inputs))
	return loss, nil
}

// EvalBatch implements task.Model.
func (m *mlp) EvalBatch(inputs, targets [][]float32) (float64, error) {
	numClasses := m.layerSizes[len(m.layerSizes)-1]
	var loss float64
	for ex := range inputs {
		class, err := classOf(targets[ex], numClasses)
		if err != nil {
			return 0, err
		}
		_, acts, err := m.forward(inputs[ex])
		if err != nil {
			return 0, err
		}
		loss += crossEntropy(acts[len(acts)-1], class)
	}
	return loss / float64(len(inputs)), nil
}

func crossEntropy(probs []float32, class int) float64 {
	p := float64(probs[class])
	if p < 1e-12 {
		p = 1e-12
	}
	return -math.Log(p)
}

// backward accumulates gradients over the batch. When inputGrads is
// non-nil it also receives dLoss/dInput per example, which the embedding
// wrapper needs to update its tables.
func (m *mlp) backward(inputs, targets [][]float32, inputGrads [][]float32) (float64, [][][]float32, [][]float32, [][]float32, error) {
	if len(inputs) == 0 {
		return 0, nil, nil, nil, errors.New("tabular: empty batch")
	}
	if len(inputs) != len(targets) {
		return 0, nil, nil, nil, errors.Errorf("tabular: %d inputs but %d targets", len(inputs), len(targets))
	}
	numClasses := m.layerSizes[len(m.layerSizes)-1]

	L := len(m.weights)
	gradW := make([][][]float32, L)
	gradB := make([][]float32, L)
	for l := 0; l < L; l++ {
		outDim := len(m.biases[l])
		inDim := len(m.weights[l][0])
		gradW[l] = make([][]float32, outDim)
		for j := range gradW[l] {
			gradW[l][j] = make([]float32, inDim)
		}
		gradB[l] = make([]float32, outDim)
	}

	var lossSum float64
	for ex := range inputs {
		class, err := classOf(targets[ex], numClasses)
		if err != nil {
			return 0, nil, nil, nil, err
		}
		preActs, acts, err := m.forward(inputs[ex])
		if err != nil {
			return 0, nil, nil, nil, err
		}
		probs := acts[len(acts)-1]
		lossSum += crossEntropy(probs, class)

		// Softmax cross-entropy delta: probs - one_hot(class).
		delta := make([]float32, len(probs))
		copy(delta, probs)
		delta[class] -= 1

		for l := L - 1; l >= 0; l-- {
			inAct := acts[l]
			for j := range delta {
				gradB[l][j] += delta[j]
				for i := range inAct {
					gradW[l][j][i] += delta[j] * inAct[i]
				}
			}
			if l == 0 && inputGrads == nil {
				break
			}
			prevLen := len(m.weights[l][0])
			newDelta := make([]float32, prevLen)
			for i := 0; i < prevLen; i++ {
				var sum float32
				for j := range delta {
					sum += m.weights[l][j][i] * delta[j]
				}
				newDelta[i] = sum
			}
			if l > 0 {
				// ReLU derivative gates the propagated delta.
				for i, pre := range preActs[l-1] {
					if pre <= 0 {
						newDelta[i] = 0
					}
				}
			}
			delta = newDelta
			if l == 0 && inputGrads != nil {
				inputGrads[ex] = delta
			}
		}
	}
	return lossSum / float64(len(inputs)), gradW, gradB, inputGrads, nil
}

// apply performs the averaged SGD update.
func (m *mlp) apply(gradW [][][]float32, gradB [][]float32, lr float32, batchN int) {
	bInv := float32(1.0 / float64(batchN))
	for l := range m.weights {
		for j := range m.weights[l] {
			m.biases[l][j] -= lr * gradB[l][j] * bInv
			for i := range m.weights[l][j] {
				m.weights[l][j][i] -= lr * gradW[l][j][i] * bInv
			}
		}
	}
}
