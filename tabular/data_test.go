package tabular

import (
	"context"
	"math"
	"path/filepath"
	"testing"

	"github.com/Noofbiz/kindling/input"
	"github.com/Noofbiz/kindling/stage"
)

func trainFrame(t *testing.T) *Frame {
	t.Helper()
	f, err := FromRecords(
		[]string{"color", "size", "weight", "kind"},
		[][]string{
			{"red", "small", "1.0", "apple"},
			{"green", "small", "1.2", "apple"},
			{"yellow", "large", "3.0", "melon"},
			{"green", "large", "3.4", "melon"},
		},
	)
	if err != nil {
		t.Fatalf("FromRecords: %v", err)
	}
	return f
}

func fruitConfig() Config {
	return Config{
		Target:      "kind",
		Categorical: []string{"color", "size"},
		Numerical:   []string{"weight"},
		BatchSize:   2,
	}
}

func TestFromFramesFitsEncoders(t *testing.T) {
	d, err := FromFrames(trainFrame(t), nil, nil, nil, fruitConfig())
	if err != nil {
		t.Fatalf("FromFrames: %v", err)
	}

	if got := d.NumClasses(); got != 2 {
		t.Fatalf("NumClasses = %d, want 2", got)
	}
	labels := d.Labels()
	if labels[0] != "apple" || labels[1] != "melon" {
		t.Fatalf("Labels = %v", labels)
	}
	if got := d.NumFeatures(); got != 3 {
		t.Fatalf("NumFeatures = %d, want 3", got)
	}

	sizes := d.EmbeddingSizes()
	if len(sizes) != 2 {
		t.Fatalf("EmbeddingSizes has %d entries, want 2", len(sizes))
	}
	// color has 3 seen values plus the unknown slot.
	if sizes[0].Cardinality != 4 {
		t.Fatalf("color cardinality = %d, want 4", sizes[0].Cardinality)
	}
	if sizes[1].Cardinality != 3 {
		t.Fatalf("size cardinality = %d, want 3", sizes[1].Cardinality)
	}

	// Absent stages are empty, and their load hook never ran.
	if d.Val().Len() != 0 || d.Test().Len() != 0 || d.Predict().Len() != 0 {
		t.Fatal("absent stages should be empty")
	}
}

func TestTrainSampleEncoding(t *testing.T) {
	d, err := FromFrames(trainFrame(t), nil, nil, nil, fruitConfig())
	if err != nil {
		t.Fatalf("FromFrames: %v", err)
	}

	sample, err := d.Item(stage.Training, 0)
	if err != nil {
		t.Fatalf("Item: %v", err)
	}
	features := sample[input.KeyInput].([]float32)
	if len(features) != 3 {
		t.Fatalf("feature vector has %d values, want 3", len(features))
	}
	// Categories index into sorted vocabularies starting at 1:
	// color: green=1, red=2, yellow=3; size: large=1, small=2.
	if features[0] != 2 || features[1] != 2 {
		t.Fatalf("categorical encoding = %v, want [2 2 ...]", features[:2])
	}
	// weight is normalized; the train column mean is 2.15.
	if features[2] >= 0 {
		t.Fatalf("normalized weight for lightest row should be negative, got %v", features[2])
	}
	if sample[input.KeyTarget] != 0 {
		t.Fatalf("target = %v, want class 0 (apple)", sample[input.KeyTarget])
	}
}

func TestPredictOverrideSkipsTarget(t *testing.T) {
	// The predict frame has no target column at all; the predict-stage
	// load-sample override must not look for one.
	predict, err := FromRecords(
		[]string{"color", "size", "weight"},
		[][]string{{"red", "small", "1.1"}, {"blue", "huge", "9.9"}},
	)
	if err != nil {
		t.Fatalf("FromRecords: %v", err)
	}

	d, err := FromFrames(trainFrame(t), nil, nil, predict, fruitConfig())
	if err != nil {
		t.Fatalf("FromFrames: %v", err)
	}
	sample, err := d.Item(stage.Predicting, 1)
	if err != nil {
		t.Fatalf("Item: %v", err)
	}
	if _, ok := sample[input.KeyTarget]; ok {
		t.Fatal("predict sample must not carry a target")
	}
	features := sample[input.KeyInput].([]float32)
	// Unseen categories map to the reserved unknown slot.
	if features[0] != 0 || features[1] != 0 {
		t.Fatalf("unseen categories = %v, want [0 0 ...]", features[:2])
	}
	if sample[input.KeyMetadata] == nil {
		t.Fatal("predict sample should carry row metadata")
	}
}

func TestUnseenTrainLabelFails(t *testing.T) {
	val, err := FromRecords(
		[]string{"color", "size", "weight", "kind"},
		[][]string{{"red", "small", "1.0", "durian"}},
	)
	if err != nil {
		t.Fatalf("FromRecords: %v", err)
	}
	d, err := FromFrames(trainFrame(t), val, nil, nil, fruitConfig())
	if err != nil {
		t.Fatalf("FromFrames: %v", err)
	}
	if _, err := d.Item(stage.Validating, 0); err == nil {
		t.Fatal("expected error for label unseen during training")
	}
}

func TestFromCSV(t *testing.T) {
	dir := t.TempDir()
	trainPath := filepath.Join(dir, "train.csv")
	writeCSV(t, trainPath, "color,size,weight,kind", []string{
		"red,small,1.0,apple",
		"yellow,large,3.0,melon",
	})

	d, err := FromCSV(context.Background(), trainPath, "", "", "", fruitConfig())
	if err != nil {
		t.Fatalf("FromCSV: %v", err)
	}
	if d.Train().Len() != 2 {
		t.Fatalf("train Len = %d, want 2", d.Train().Len())
	}
}

func TestNormalizationStats(t *testing.T) {
	d, err := FromFrames(trainFrame(t), nil, nil, nil, fruitConfig())
	if err != nil {
		t.Fatalf("FromFrames: %v", err)
	}
	// Normalized train weights must have mean ~0.
	var sum float64
	n := d.Train().Len()
	for i := 0; i < n; i++ {
		sample, err := d.Item(stage.Training, i)
		if err != nil {
			t.Fatalf("Item: %v", err)
		}
		sum += float64(sample[input.KeyInput].([]float32)[2])
	}
	if mean := sum / float64(n); math.Abs(mean) > 1e-5 {
		t.Fatalf("normalized mean = %v, want ~0", mean)
	}
}
