package video

import (
	"testing"

	"github.com/pkg/errors"
)

func TestRandomSampler(t *testing.T) {
	s, err := NewClipSampler("random", 2, SamplerOptions{Seed: 5})
	if err != nil {
		t.Fatalf("NewClipSampler: %v", err)
	}
	for i := 0; i < 20; i++ {
		info, err := s.Sample(0, 10)
		if err != nil {
			t.Fatalf("Sample: %v", err)
		}
		if info.Start < 0 || info.End > 10 {
			t.Fatalf("clip [%v, %v] outside video", info.Start, info.End)
		}
		if info.End-info.Start != 2 {
			t.Fatalf("clip length = %v, want 2", info.End-info.Start)
		}
		if !info.IsLast {
			t.Fatal("random sampler yields one clip per video, IsLast must be set")
		}
	}
}

func TestSamplerClipTooShort(t *testing.T) {
	s, err := NewClipSampler("random", 2, SamplerOptions{})
	if err != nil {
		t.Fatalf("NewClipSampler: %v", err)
	}
	_, err = s.Sample(0, 1.5)
	if !errors.Is(err, ErrClipTooShort) {
		t.Fatalf("err = %v, want ErrClipTooShort", err)
	}
	var short *ClipTooShortError
	if !errors.As(err, &short) {
		t.Fatalf("err = %T, want *ClipTooShortError", err)
	}
	if short.Required != 2 || short.Available != 1.5 {
		t.Fatalf("durations = %v/%v, want 2/1.5", short.Required, short.Available)
	}
}

func TestUniformSampler(t *testing.T) {
	s, err := NewClipSampler("uniform", 2, SamplerOptions{})
	if err != nil {
		t.Fatalf("NewClipSampler: %v", err)
	}

	first, err := s.Sample(0, 5)
	if err != nil {
		t.Fatalf("Sample: %v", err)
	}
	if first.Start != 0 || first.End != 2 || first.Index != 0 || first.IsLast {
		t.Fatalf("first clip = %+v", first)
	}

	second, err := s.Sample(first.End, 5)
	if err != nil {
		t.Fatalf("Sample: %v", err)
	}
	if second.Start != 2 || second.End != 4 || second.Index != 1 || !second.IsLast {
		t.Fatalf("second clip = %+v", second)
	}

	// A clip that would run past the end shifts back to fit.
	clamped, err := s.Sample(4, 5)
	if err != nil {
		t.Fatalf("Sample: %v", err)
	}
	if clamped.Start != 3 || clamped.End != 5 {
		t.Fatalf("clamped clip = %+v, want [3, 5]", clamped)
	}
}

func TestConstantClipsSampler(t *testing.T) {
	s, err := NewClipSampler("constant_clips_per_video", 2, SamplerOptions{
		ClipsPerVideo:        3,
		AugmentationsPerClip: 2,
	})
	if err != nil {
		t.Fatalf("NewClipSampler: %v", err)
	}

	// 3 clips over a 10s video space their starts across [0, 8].
	want := []ClipInfo{
		{Start: 0, End: 2, Index: 0, AugIndex: 0},
		{Start: 0, End: 2, Index: 0, AugIndex: 1},
		{Start: 4, End: 6, Index: 1, AugIndex: 0},
		{Start: 4, End: 6, Index: 1, AugIndex: 1},
		{Start: 8, End: 10, Index: 2, AugIndex: 0},
		{Start: 8, End: 10, Index: 2, AugIndex: 1, IsLast: true},
	}
	for i, w := range want {
		info, err := s.Sample(0, 10)
		if err != nil {
			t.Fatalf("Sample %d: %v", i, err)
		}
		if info != w {
			t.Fatalf("clip %d = %+v, want %+v", i, info, w)
		}
	}

	// The sampler wraps for the next video.
	again, err := s.Sample(0, 10)
	if err != nil {
		t.Fatalf("Sample: %v", err)
	}
	if again.Index != 0 || again.AugIndex != 0 {
		t.Fatalf("after wrap = %+v, want clip 0 aug 0", again)
	}
}

func TestNewClipSamplerValidation(t *testing.T) {
	if _, err := NewClipSampler("zoom", 2, SamplerOptions{}); err == nil {
		t.Fatal("expected error for unknown sampler")
	}
	if _, err := NewClipSampler("random", 0, SamplerOptions{}); err == nil {
		t.Fatal("expected error for zero clip duration")
	}
}
