package video

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pkg/errors"

	"github.com/Noofbiz/kindling/input"
	"github.com/Noofbiz/kindling/labelstudio"
	"github.com/Noofbiz/kindling/stage"
	"github.com/Noofbiz/kindling/tabular"
)

// videoExtensions lists the file suffixes accepted as video sources.
var videoExtensions = map[string]bool{
	".mp4":  true,
	".avi":  true,
	".mov":  true,
	".mkv":  true,
	".webm": true,
}

// Options configure how video inputs sample and decode clips.
type Options struct {
	// Decoder names an entry in Decoders. Empty resolves the sole
	// registered decoder.
	Decoder string

	// Sampler names the clip sampler. Default "random".
	Sampler string

	// ClipDuration in seconds. Default 2.
	ClipDuration float64

	Clips SamplerOptions

	// BatchSize for the assembled data module. Zero uses the default.
	BatchSize int
}

func (o Options) withDefaults() Options {
	if o.Sampler == "" {
		o.Sampler = "random"
	}
	if o.ClipDuration == 0 {
		o.ClipDuration = 2
	}
	return o
}

// FileTarget pairs one video file with its label. An empty label is only
// valid for the predict stage.
type FileTarget struct {
	File  string
	Label string
}

// FilesSources validates an explicit file/target pairing. targets may be nil
// for unlabeled (predict) sources.
func FilesSources(files, targets []string) ([]FileTarget, error) {
	if targets != nil && len(targets) != len(files) {
		return nil, errors.Errorf("video: %d files but %d targets", len(files), len(targets))
	}
	sources := make([]FileTarget, len(files))
	for i, f := range files {
		ext := strings.ToLower(filepath.Ext(f))
		if !videoExtensions[ext] {
			return nil, errors.Errorf("video: %s has unsupported extension %q", f, ext)
		}
		sources[i].File = f
		if targets != nil {
			sources[i].Label = targets[i]
		}
	}
	return sources, nil
}

// FoldersSources scans a class-per-subfolder tree: every video file directly
// under dir/<class>/ becomes a source labeled <class>.
func FoldersSources(dir string) ([]FileTarget, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrapf(err, "scanning %s", dir)
	}
	var sources []FileTarget
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		class := e.Name()
		files, err := os.ReadDir(filepath.Join(dir, class))
		if err != nil {
			return nil, errors.Wrapf(err, "scanning class %s", class)
		}
		for _, f := range files {
			if f.IsDir() || !videoExtensions[strings.ToLower(filepath.Ext(f.Name()))] {
				continue
			}
			sources = append(sources, FileTarget{
				File:  filepath.Join(dir, class, f.Name()),
				Label: class,
			})
		}
	}
	if len(sources) == 0 {
		return nil, errors.Errorf("video: no video files under %s", dir)
	}
	return sources, nil
}

// CSVSources reads a manifest: inputKey names the file column, targetKey the
// label column (may be empty for unlabeled manifests). Relative paths
// resolve against root.
func CSVSources(csvPath, inputKey, targetKey, root string) ([]FileTarget, error) {
	f, err := tabular.ReadCSV(csvPath)
	if err != nil {
		return nil, err
	}
	files, err := f.Col(inputKey)
	if err != nil {
		return nil, err
	}
	var labels []string
	if targetKey != "" {
		labels, err = f.Col(targetKey)
		if err != nil {
			return nil, err
		}
	}
	sources := make([]FileTarget, len(files))
	for i, file := range files {
		if root != "" && !filepath.IsAbs(file) {
			file = filepath.Join(root, file)
		}
		sources[i].File = file
		if labels != nil {
			sources[i].Label = strings.TrimSpace(labels[i])
		}
	}
	return sources, nil
}

// LabelStudioSources reads a Label Studio export file.
func LabelStudioSources(exportPath string) ([]FileTarget, error) {
	annotations, err := labelstudio.ParseExportFile(exportPath)
	if err != nil {
		return nil, err
	}
	sources := make([]FileTarget, len(annotations))
	for i, a := range annotations {
		sources[i] = FileTarget{File: a.File, Label: a.Label}
	}
	return sources, nil
}

// targetFormatter maps labels to stable class indices: sorted unique labels
// fit from the training sources.
type targetFormatter struct {
	labels []string
	index  map[string]int
}

func newTargetFormatter(sources []FileTarget) *targetFormatter {
	uniq := make(map[string]bool)
	for _, s := range sources {
		if s.Label != "" {
			uniq[s.Label] = true
		}
	}
	f := &targetFormatter{index: make(map[string]int, len(uniq))}
	for label := range uniq {
		f.labels = append(f.labels, label)
	}
	sort.Strings(f.labels)
	for i, label := range f.labels {
		f.index[label] = i
	}
	return f
}

func (f *targetFormatter) classOf(label string) (int, error) {
	class, ok := f.index[label]
	if !ok {
		return 0, errors.Errorf("video: label %q was not seen during training", label)
	}
	return class, nil
}

// loader binds the decoder, sampler and target formatter that the hooks
// close over.
type loader struct {
	format  *targetFormatter
	decoder Decoder
	sampler ClipSampler
}

func newLoader(format *targetFormatter, o Options) (*loader, error) {
	var dec Decoder
	var err error
	if o.Decoder == "" {
		dec, err = defaultDecoder()
	} else {
		dec, err = Decoders.Get(o.Decoder)
	}
	if err != nil {
		return nil, err
	}
	sampler, err := NewClipSampler(o.Sampler, o.ClipDuration, o.Clips)
	if err != nil {
		return nil, err
	}
	return &loader{format: format, decoder: dec, sampler: sampler}, nil
}

// hooks assembles the table: the generic pair loads labeled sources, the
// predict pair ignores labels and records the source file as metadata.
func (l *loader) hooks() input.Hooks {
	return input.Hooks{
		LoadData:   loadSources,
		LoadSample: l.loadSample,
		Overrides: map[stage.Stage]input.StageHooks{
			stage.Predicting: {LoadSample: l.predictLoadSample},
		},
	}
}

// loadSources is the generic load-data hook: one descriptor per source.
func loadSources(arg any) ([]any, error) {
	sources, ok := arg.([]FileTarget)
	if !ok {
		return nil, errors.Errorf("video: load data expects []FileTarget, got %T", arg)
	}
	descs := make([]any, len(sources))
	for i, s := range sources {
		descs[i] = s
	}
	return descs, nil
}

// decodeClip opens the video, samples one clip span and decodes it.
func (l *loader) decodeClip(path string) (any, ClipInfo, error) {
	v, err := l.decoder.Open(path)
	if err != nil {
		return nil, ClipInfo{}, errors.Wrapf(err, "opening %s", path)
	}
	defer v.Close()

	info, err := l.sampler.Sample(0, v.Duration())
	if err != nil {
		var short *ClipTooShortError
		if errors.As(err, &short) {
			short.Path = path
		}
		return nil, ClipInfo{}, err
	}
	clip, err := v.Clip(info.Start, info.End)
	if err != nil {
		return nil, ClipInfo{}, errors.Wrapf(err, "decoding %s [%.2f, %.2f]", path, info.Start, info.End)
	}
	return clip, info, nil
}

// loadSample decodes one clip and formats the label to its class index.
func (l *loader) loadSample(desc any) (input.Sample, error) {
	src := desc.(FileTarget)
	class, err := l.format.classOf(src.Label)
	if err != nil {
		return nil, err
	}
	clip, info, err := l.decodeClip(src.File)
	if err != nil {
		return nil, err
	}
	return input.Sample{
		input.KeyInput:  clip,
		input.KeyTarget: class,
		input.KeyMetadata: map[string]any{
			"file":       src.File,
			"clip_start": info.Start,
			"clip_end":   info.End,
		},
	}, nil
}

// predictLoadSample decodes one clip without looking at the label, keeping
// the source file in the metadata so predictions can be traced back.
func (l *loader) predictLoadSample(desc any) (input.Sample, error) {
	src := desc.(FileTarget)
	clip, info, err := l.decodeClip(src.File)
	if err != nil {
		return nil, err
	}
	return input.Sample{
		input.KeyInput: clip,
		input.KeyMetadata: map[string]any{
			"file":       src.File,
			"clip_start": info.Start,
			"clip_end":   info.End,
		},
	}, nil
}
