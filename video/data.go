package video

import (
	"k8s.io/klog/v2"

	"github.com/Noofbiz/kindling/data"
	"github.com/Noofbiz/kindling/input"
	"github.com/Noofbiz/kindling/stage"
)

// Split is the per-stage source list for FromFiles. Targets may be nil for
// the predict split.
type Split struct {
	Files   []string
	Targets []string
}

func (s Split) empty() bool { return len(s.Files) == 0 }

// ClassificationData is the video classification data module: one clip
// input per supplied stage, sharing a label mapping fit on the training
// split.
type ClassificationData struct {
	*data.DataModule

	format *targetFormatter
}

// NumClasses returns the number of distinct training labels.
func (d *ClassificationData) NumClasses() int { return len(d.format.labels) }

// Labels returns the sorted class labels.
func (d *ClassificationData) Labels() []string { return d.format.labels }

// fromSources assembles the data module from per-stage source lists. A nil
// list leaves its stage empty without running any load hook.
func fromSources(train, val, test, predict []FileTarget, o Options) (*ClassificationData, error) {
	o = o.withDefaults()

	format := newTargetFormatter(train)
	l, err := newLoader(format, o)
	if err != nil {
		return nil, err
	}
	hooks := l.hooks()

	newStage := func(s stage.Stage, sources []FileTarget) (*input.Input, error) {
		var arg any
		if sources != nil {
			arg = sources
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

	klog.V(2).Infof("video data module: %d train, %d val, %d test, %d predict sources, %d classes",
		len(train), len(val), len(test), len(predict), len(format.labels))

	return &ClassificationData{
		DataModule: data.New(
			data.WithTrain(trainIn),
			data.WithVal(valIn),
			data.WithTest(testIn),
			data.WithPredict(predictIn),
			data.WithBatchSize(o.BatchSize),
		),
		format: format,
	}, nil
}

// FromFiles builds the data module from explicit file/target lists. Empty
// splits leave their stage absent.
func FromFiles(train, val, test, predict Split, o Options) (*ClassificationData, error) {
	convert := func(s Split) ([]FileTarget, error) {
		if s.empty() {
			return nil, nil
		}
		return FilesSources(s.Files, s.Targets)
	}
	trainSrc, err := convert(train)
	if err != nil {
		return nil, err
	}
	valSrc, err := convert(val)
	if err != nil {
		return nil, err
	}
	testSrc, err := convert(test)
	if err != nil {
		return nil, err
	}
	predictSrc, err := convert(predict)
	if err != nil {
		return nil, err
	}
	return fromSources(trainSrc, valSrc, testSrc, predictSrc, o)
}

// FromFolders builds the data module from class-per-subfolder trees. Empty
// paths leave their stage absent.
func FromFolders(trainDir, valDir, testDir, predictDir string, o Options) (*ClassificationData, error) {
	scan := func(dir string) ([]FileTarget, error) {
		if dir == "" {
			return nil, nil
		}
		return FoldersSources(dir)
	}
	train, err := scan(trainDir)
	if err != nil {
		return nil, err
	}
	val, err := scan(valDir)
	if err != nil {
		return nil, err
	}
	test, err := scan(testDir)
	if err != nil {
		return nil, err
	}
	predict, err := scan(predictDir)
	if err != nil {
		return nil, err
	}
	return fromSources(train, val, test, predict, o)
}

// FromCSV builds the data module from per-stage CSV manifests with a file
// column named inputKey and a label column named targetKey. The predict
// manifest is read without the label column. Relative file paths resolve
// against root.
func FromCSV(trainCSV, valCSV, testCSV, predictCSV, inputKey, targetKey, root string, o Options) (*ClassificationData, error) {
	read := func(path, target string) ([]FileTarget, error) {
		if path == "" {
			return nil, nil
		}
		return CSVSources(path, inputKey, target, root)
	}
	train, err := read(trainCSV, targetKey)
	if err != nil {
		return nil, err
	}
	val, err := read(valCSV, targetKey)
	if err != nil {
		return nil, err
	}
	test, err := read(testCSV, targetKey)
	if err != nil {
		return nil, err
	}
	predict, err := read(predictCSV, "")
	if err != nil {
		return nil, err
	}
	return fromSources(train, val, test, predict, o)
}

// FromLabelStudio builds the data module from Label Studio export files.
// Empty paths leave their stage absent.
func FromLabelStudio(trainExport, valExport, testExport, predictExport string, o Options) (*ClassificationData, error) {
	read := func(path string) ([]FileTarget, error) {
		if path == "" {
			return nil, nil
		}
		return LabelStudioSources(path)
	}
	train, err := read(trainExport)
	if err != nil {
		return nil, err
	}
	val, err := read(valExport)
	if err != nil {
		return nil, err
	}
	test, err := read(testExport)
	if err != nil {
		return nil, err
	}
	predict, err := read(predictExport)
	if err != nil {
		return nil, err
	}
	return fromSources(train, val, test, predict, o)
}
