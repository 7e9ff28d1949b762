package tabular

import (
	"context"
	"sort"
	"strings"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/stat"
	"k8s.io/klog/v2"

	"github.com/Noofbiz/kindling/data"
	"github.com/Noofbiz/kindling/fetch"
	"github.com/Noofbiz/kindling/input"
	"github.com/Noofbiz/kindling/stage"
)

// maxEmbeddingDim caps categorical embedding widths.
const maxEmbeddingDim = 100

// Config describes how tabular rows become classification samples.
type Config struct {
	// Target is the label column. It may be absent from the predict frame.
	Target string

	// Categorical and Numerical list the feature columns by role.
	Categorical []string
	Numerical   []string

	// BatchSize for the assembled data module. Zero uses the default.
	BatchSize int

	// CacheDir receives downloads when CSV paths are gs:// URLs.
	CacheDir string
}

// EmbeddingSize describes one categorical field: its vocabulary size
// (including the reserved unknown slot at index 0) and embedding width.
type EmbeddingSize struct {
	Cardinality int
	Dim         int
}

// Data is the tabular classification data module. Encoders (category
// vocabularies, class labels, numeric normalization) are fit on the training
// split and shared by every stage.
type Data struct {
	*data.DataModule

	cfg        Config
	labels     []string
	classIndex map[string]int
	catIndex   []map[string]int
	means      []float64
	stds       []float64
}

// rowRef is the raw descriptor for one sample: a frame and a row position.
type rowRef struct {
	frame *Frame
	row   int
}

// FromFrames assembles a tabular data module from per-stage frames. Any
// frame may be nil; its stage is then absent. Encoders are fit on the train
// frame, which is required.
func FromFrames(train, val, test, predict *Frame, cfg Config) (*Data, error) {
	if cfg.Target == "" {
		return nil, errors.New("tabular: config needs a target column")
	}
	if len(cfg.Categorical)+len(cfg.Numerical) == 0 {
		return nil, errors.New("tabular: config needs at least one feature column")
	}
	if train == nil {
		return nil, errors.New("tabular: a training frame is required to fit encoders")
	}

	d := &Data{cfg: cfg}
	if err := d.fitEncoders(train); err != nil {
		return nil, err
	}

	hooks := input.Hooks{
		LoadData:   loadRows,
		LoadSample: d.loadSample,
		Overrides: map[stage.Stage]input.StageHooks{
			// The predict stage has no target column to encode.
			stage.Predicting: {LoadSample: d.predictLoadSample},
		},
	}

	newStage := func(s stage.Stage, f *Frame) (*input.Input, error) {
		var arg any
		if f != nil {
			arg = f
		}
		return input.New(s, hooks, arg)
	}

	trainIn, err := newStage(stage.Training, train)
	if err != nil {
		return nil, err
	}
	valIn, err := newStage(stage.Validating, val)
	if err != nil {
		return nil, err
	}
	testIn, err := newStage(stage.Testing, test)
	if err != nil {
		return nil, err
	}
	predictIn, err := newStage(stage.Predicting, predict)
	if err != nil {
		return nil, err
	}

	d.DataModule = data.New(
		data.WithTrain(trainIn),
		data.WithVal(valIn),
		data.WithTest(testIn),
		data.WithPredict(predictIn),
		data.WithBatchSize(cfg.BatchSize),
	)
	return d, nil
}

// FromCSV reads per-stage CSV files (local, .xz-compressed, or gs:// URLs)
// and assembles the data module. Empty paths leave the stage absent.
func FromCSV(ctx context.Context, trainPath, valPath, testPath, predictPath string, cfg Config) (*Data, error) {
	read := func(path string) (*Frame, error) {
		if path == "" {
			return nil, nil
		}
		if fetch.IsRemote(path) {
			local, err := fetch.File(ctx, path, cfg.CacheDir)
			if err != nil {
				return nil, err
			}
			path = local
		}
		return ReadCSV(path)
	}

	train, err := read(trainPath)
	if err != nil {
		return nil, err
	}
	val, err := read(valPath)
	if err != nil {
		return nil, err
	}
	test, err := read(testPath)
	if err != nil {
		return nil, err
	}
	predict, err := read(predictPath)
	if err != nil {
		return nil, err
	}
	return FromFrames(train, val, test, predict, cfg)
}

// fitEncoders learns the class labels, per-column category vocabularies and
// numeric normalization statistics from the training frame.
func (d *Data) fitEncoders(train *Frame) error {
	targets, err := train.Col(d.cfg.Target)
	if err != nil {
		return err
	}
	seen := make(map[string]bool)
	for _, t := range targets {
		seen[strings.TrimSpace(t)] = true
	}
	d.labels = make([]string, 0, len(seen))
	for label := range seen {
		d.labels = append(d.labels, label)
	}
	sort.Strings(d.labels)
	d.classIndex = make(map[string]int, len(d.labels))
	for i, label := range d.labels {
		d.classIndex[label] = i
	}

	d.catIndex = make([]map[string]int, len(d.cfg.Categorical))
	for c, col := range d.cfg.Categorical {
		values, err := train.Col(col)
		if err != nil {
			return err
		}
		uniq := make(map[string]bool)
		for _, v := range values {
			uniq[strings.TrimSpace(v)] = true
		}
		sorted := make([]string, 0, len(uniq))
		for v := range uniq {
			sorted = append(sorted, v)
		}
		sort.Strings(sorted)
		// Index 0 is reserved for values unseen during training.
		index := make(map[string]int, len(sorted))
		for i, v := range sorted {
			index[v] = i + 1
		}
		d.catIndex[c] = index
	}

	d.means = make([]float64, len(d.cfg.Numerical))
	d.stds = make([]float64, len(d.cfg.Numerical))
	for n, col := range d.cfg.Numerical {
		values, err := train.Col(col)
		if err != nil {
			return err
		}
		floats := make([]float64, len(values))
		for i, v := range values {
			f, err := parseFloat32(v)
			if err != nil {
				return errors.Wrapf(err, "parsing %s row %d", col, i)
			}
			floats[i] = float64(f)
		}
		d.means[n] = stat.Mean(floats, nil)
		d.stds[n] = stat.StdDev(floats, nil)
	}

	klog.V(2).Infof("fit tabular encoders: %d classes, %d categorical, %d numerical columns",
		len(d.labels), len(d.cfg.Categorical), len(d.cfg.Numerical))
	return nil
}

// loadRows is the generic load-data hook: one descriptor per frame row.
func loadRows(arg any) ([]any, error) {
	f, ok := arg.(*Frame)
	if !ok {
		return nil, errors.Errorf("tabular: load data expects a *Frame, got %T", arg)
	}
	descs := make([]any, f.Len())
	for i := range descs {
		descs[i] = rowRef{frame: f, row: i}
	}
	return descs, nil
}

// loadSample encodes a row into features and a class-index target.
func (d *Data) loadSample(desc any) (input.Sample, error) {
	ref := desc.(rowRef)
	features, err := d.encodeRow(ref.frame, ref.row)
	if err != nil {
		return nil, err
	}
	targetCol, ok := ref.frame.ColIndex(d.cfg.Target)
	if !ok {
		return nil, errors.Errorf("tabular: frame has no target column %q", d.cfg.Target)
	}
	label := strings.TrimSpace(ref.frame.Row(ref.row)[targetCol])
	class, ok := d.classIndex[label]
	if !ok {
		return nil, errors.Errorf("tabular: label %q at row %d was not seen during training", label, ref.row)
	}
	return input.Sample{
		input.KeyInput:  features,
		input.KeyTarget: class,
	}, nil
}

// predictLoadSample encodes features only, leaving row metadata in place of
// a target.
func (d *Data) predictLoadSample(desc any) (input.Sample, error) {
	ref := desc.(rowRef)
	features, err := d.encodeRow(ref.frame, ref.row)
	if err != nil {
		return nil, err
	}
	return input.Sample{
		input.KeyInput:    features,
		input.KeyMetadata: map[string]any{"row": ref.row},
	}, nil
}

// encodeRow produces the feature vector: category indices first (unknown
// values map to the reserved 0 slot), then normalized numericals.
func (d *Data) encodeRow(f *Frame, row int) ([]float32, error) {
	values := f.Row(row)
	features := make([]float32, 0, len(d.cfg.Categorical)+len(d.cfg.Numerical))

	for c, col := range d.cfg.Categorical {
		i, ok := f.ColIndex(col)
		if !ok {
			return nil, errors.Errorf("tabular: frame has no column %q", col)
		}
		features = append(features, float32(d.catIndex[c][strings.TrimSpace(values[i])]))
	}
	for n, col := range d.cfg.Numerical {
		i, ok := f.ColIndex(col)
		if !ok {
			return nil, errors.Errorf("tabular: frame has no column %q", col)
		}
		v, err := parseFloat32(values[i])
		if err != nil {
			return nil, errors.Wrapf(err, "parsing %s row %d", col, row)
		}
		normalized := float64(v) - d.means[n]
		if d.stds[n] > 0 {
			normalized /= d.stds[n]
		}
		features = append(features, float32(normalized))
	}
	return features, nil
}

// NumClasses returns the number of distinct training labels.
func (d *Data) NumClasses() int { return len(d.labels) }

// Labels returns the sorted class labels.
func (d *Data) Labels() []string { return d.labels }

// NumFeatures returns the encoded feature-vector width.
func (d *Data) NumFeatures() int {
	return len(d.cfg.Categorical) + len(d.cfg.Numerical)
}

// NumCategorical returns the number of categorical feature columns.
func (d *Data) NumCategorical() int { return len(d.cfg.Categorical) }

// EmbeddingSizes derives one embedding spec per categorical column:
// dimension (cardinality+1)/2, capped at 100.
func (d *Data) EmbeddingSizes() []EmbeddingSize {
	sizes := make([]EmbeddingSize, len(d.catIndex))
	for i, index := range d.catIndex {
		card := len(index) + 1 // plus the unknown slot
		dim := (card + 1) / 2
		if dim > maxEmbeddingDim {
			dim = maxEmbeddingDim
		}
		sizes[i] = EmbeddingSize{Cardinality: card, Dim: dim}
	}
	return sizes
}
