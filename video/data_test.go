package video

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gomlx/gomlx/pkg/core/tensors"
	"github.com/pkg/errors"

	"github.com/Noofbiz/kindling/input"
	"github.com/Noofbiz/kindling/registry"
	"github.com/Noofbiz/kindling/stage"
)

type stubVideo struct {
	duration float64
}

func (v stubVideo) Duration() float64 { return v.duration }

func (v stubVideo) Clip(start, end float64) (*tensors.Tensor, error) {
	return tensors.FromScalar(float32(end - start)), nil
}

func (v stubVideo) Close() error { return nil }

// stubDecoder reports a fixed duration for every path, with optional
// per-path overrides.
type stubDecoder struct {
	duration  float64
	durations map[string]float64
}

func (d stubDecoder) Open(path string) (Video, error) {
	if dur, ok := d.durations[path]; ok {
		return stubVideo{duration: dur}, nil
	}
	return stubVideo{duration: d.duration}, nil
}

func registerStub(t *testing.T, d stubDecoder) Options {
	t.Helper()
	Decoders.MustRegister("stub", d, registry.WithOverride())
	return Options{Decoder: "stub", ClipDuration: 2, Clips: SamplerOptions{Seed: 1}}
}

func TestFromFilesTrainingStage(t *testing.T) {
	o := registerStub(t, stubDecoder{duration: 10})

	d, err := FromFiles(
		Split{Files: []string{"a.mp4", "b.mp4"}, Targets: []string{"cat", "dog"}},
		Split{}, Split{}, Split{}, o)
	if err != nil {
		t.Fatalf("FromFiles: %v", err)
	}
	if d.Train().Len() != 2 {
		t.Fatalf("train Len = %d, want 2", d.Train().Len())
	}
	if d.NumClasses() != 2 {
		t.Fatalf("NumClasses = %d, want 2", d.NumClasses())
	}

	sample, err := d.Item(stage.Training, 0)
	if err != nil {
		t.Fatalf("Item: %v", err)
	}
	class := sample[input.KeyTarget].(int)
	if d.Labels()[class] != "cat" {
		t.Fatalf("target decodes to %q, want cat", d.Labels()[class])
	}
	if _, ok := sample[input.KeyInput].(*tensors.Tensor); !ok {
		t.Fatalf("input is %T, want a clip tensor", sample[input.KeyInput])
	}
	meta := sample[input.KeyMetadata].(map[string]any)
	if meta["file"] != "a.mp4" {
		t.Fatalf("metadata file = %v, want a.mp4", meta["file"])
	}
}

func TestPredictStagePicksOverride(t *testing.T) {
	o := registerStub(t, stubDecoder{duration: 10})

	// The predict files are unlabeled; only the predict load-sample
	// override can produce samples for them.
	d, err := FromFiles(
		Split{Files: []string{"a.mp4"}, Targets: []string{"cat"}},
		Split{}, Split{},
		Split{Files: []string{"mystery.mp4"}}, o)
	if err != nil {
		t.Fatalf("FromFiles: %v", err)
	}

	sample, err := d.Item(stage.Predicting, 0)
	if err != nil {
		t.Fatalf("Item: %v", err)
	}
	if _, ok := sample[input.KeyTarget]; ok {
		t.Fatal("predict sample must not carry a target")
	}
	meta := sample[input.KeyMetadata].(map[string]any)
	if meta["file"] != "mystery.mp4" {
		t.Fatalf("metadata file = %v, want mystery.mp4", meta["file"])
	}
}

func TestClipTooShortSurfacesPath(t *testing.T) {
	o := registerStub(t, stubDecoder{
		duration:  10,
		durations: map[string]float64{"short.mp4": 0.5},
	})

	d, err := FromFiles(
		Split{Files: []string{"short.mp4"}, Targets: []string{"cat"}},
		Split{}, Split{}, Split{}, o)
	if err != nil {
		t.Fatalf("FromFiles: %v", err)
	}
	_, err = d.Item(stage.Training, 0)
	if !errors.Is(err, ErrClipTooShort) {
		t.Fatalf("err = %v, want ErrClipTooShort", err)
	}
	if !strings.Contains(err.Error(), "short.mp4") {
		t.Fatalf("error does not name the file: %v", err)
	}
}

func TestFromFolders(t *testing.T) {
	o := registerStub(t, stubDecoder{duration: 10})

	dir := t.TempDir()
	for _, p := range []string{"cat/one.mp4", "cat/two.avi", "dog/three.mp4", "dog/notes.txt"} {
		full := filepath.Join(dir, p)
		if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
		if err := os.WriteFile(full, []byte("x"), 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
	}

	d, err := FromFolders(dir, "", "", "", o)
	if err != nil {
		t.Fatalf("FromFolders: %v", err)
	}
	if d.Train().Len() != 3 {
		t.Fatalf("train Len = %d, want 3 (txt file skipped)", d.Train().Len())
	}
	labels := d.Labels()
	if len(labels) != 2 || labels[0] != "cat" || labels[1] != "dog" {
		t.Fatalf("Labels = %v, want [cat dog]", labels)
	}
}

func TestFromCSV(t *testing.T) {
	o := registerStub(t, stubDecoder{duration: 10})

	dir := t.TempDir()
	manifest := filepath.Join(dir, "train.csv")
	if err := os.WriteFile(manifest, []byte("video,label\nclips/a.mp4,cat\nclips/b.mp4,dog\n"), 0o644); err != nil {
		t.Fatalf("write manifest: %v", err)
	}

	d, err := FromCSV(manifest, "", "", "", "video", "label", "/media", o)
	if err != nil {
		t.Fatalf("FromCSV: %v", err)
	}
	if d.Train().Len() != 2 {
		t.Fatalf("train Len = %d, want 2", d.Train().Len())
	}
	sample, err := d.Item(stage.Training, 1)
	if err != nil {
		t.Fatalf("Item: %v", err)
	}
	meta := sample[input.KeyMetadata].(map[string]any)
	if meta["file"] != filepath.Join("/media", "clips/b.mp4") {
		t.Fatalf("metadata file = %v, want root-resolved path", meta["file"])
	}
}

func TestFromLabelStudio(t *testing.T) {
	o := registerStub(t, stubDecoder{duration: 10})

	export := filepath.Join(t.TempDir(), "export.json")
	body := `[
	  {"data": {"video": "a.mp4"},
	   "annotations": [{"result": [{"value": {"choices": ["cat"]}}]}]},
	  {"data": {"video": "b.mp4"},
	   "annotations": [{"result": [{"value": {"choices": ["dog"]}}]}]}
	]`
	if err := os.WriteFile(export, []byte(body), 0o644); err != nil {
		t.Fatalf("write export: %v", err)
	}

	d, err := FromLabelStudio(export, "", "", "", o)
	if err != nil {
		t.Fatalf("FromLabelStudio: %v", err)
	}
	if d.Train().Len() != 2 {
		t.Fatalf("train Len = %d, want 2", d.Train().Len())
	}
	if d.Labels()[0] != "cat" {
		t.Fatalf("Labels = %v", d.Labels())
	}
}

func TestFilesSourcesValidation(t *testing.T) {
	if _, err := FilesSources([]string{"a.mp4"}, []string{"cat", "dog"}); err == nil {
		t.Fatal("expected error for mismatched lengths")
	}
	if _, err := FilesSources([]string{"a.gif"}, []string{"cat"}); err == nil {
		t.Fatal("expected error for unsupported extension")
	}
}

func TestAbsentStagesStayEmpty(t *testing.T) {
	o := registerStub(t, stubDecoder{duration: 10})
	d, err := FromFiles(
		Split{Files: []string{"a.mp4"}, Targets: []string{"cat"}},
		Split{}, Split{}, Split{}, o)
	if err != nil {
		t.Fatalf("FromFiles: %v", err)
	}
	if d.Val().Len() != 0 || d.Test().Len() != 0 || d.Predict().Len() != 0 {
		t.Fatal("absent stages should be empty")
	}
}
