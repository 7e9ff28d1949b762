// Package video provides clip-sampled video classification data: clip
// samplers, a pluggable decoder registry, and stage-aware inputs that turn
// file lists, folder trees, CSV manifests or Label Studio exports into
// samples of decoded clip tensors.
package video

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/pkg/errors"
)

// ErrClipTooShort marks clip requests against videos shorter than the
// requested clip duration. Match with errors.Is; the concrete error is a
// *ClipTooShortError carrying the details.
var ErrClipTooShort = errors.New("video: clip longer than video")

// ClipTooShortError reports a video too short for the requested clip.
type ClipTooShortError struct {
	Path      string
	Required  float64
	Available float64
}

func (e *ClipTooShortError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("video: need a %.2fs clip but only %.2fs available", e.Required, e.Available)
	}
	return fmt.Sprintf("video: %s is %.2fs long, need at least %.2fs", e.Path, e.Available, e.Required)
}

func (e *ClipTooShortError) Is(target error) bool { return target == ErrClipTooShort }

// ClipInfo describes one sampled clip: its time span in seconds, its clip
// and augmentation indices within the video, and whether it is the last
// clip the sampler will produce for this video.
type ClipInfo struct {
	Start    float64
	End      float64
	Index    int
	AugIndex int
	IsLast   bool
}

// ClipSampler picks the next clip span from a video. lastClipEnd is the end
// time of the previously sampled clip (zero for the first), duration the
// total video length in seconds.
type ClipSampler interface {
	Sample(lastClipEnd, duration float64) (ClipInfo, error)
}

// SamplerOptions tune NewClipSampler beyond the clip duration.
type SamplerOptions struct {
	// ClipsPerVideo and AugmentationsPerClip apply to the
	// constant_clips_per_video sampler. Zero values default to 1.
	ClipsPerVideo        int
	AugmentationsPerClip int

	// Seed drives the random sampler. Zero seeds from 1 for determinism.
	Seed int64
}

// NewClipSampler builds a sampler by name: "random", "uniform" or
// "constant_clips_per_video".
func NewClipSampler(name string, clipDuration float64, opts SamplerOptions) (ClipSampler, error) {
	if clipDuration <= 0 {
		return nil, errors.Errorf("video: clip duration must be positive, got %v", clipDuration)
	}
	switch name {
	case "random":
		seed := opts.Seed
		if seed == 0 {
			seed = 1
		}
		return &randomSampler{clipDuration: clipDuration, rng: rand.New(rand.NewSource(seed))}, nil
	case "uniform":
		return &uniformSampler{clipDuration: clipDuration}, nil
	case "constant_clips_per_video":
		clips := opts.ClipsPerVideo
		if clips <= 0 {
			clips = 1
		}
		augs := opts.AugmentationsPerClip
		if augs <= 0 {
			augs = 1
		}
		return &constantClipsSampler{clipDuration: clipDuration, clipsPerVideo: clips, augsPerClip: augs}, nil
	default:
		return nil, errors.Errorf("video: unknown clip sampler %q (have random, uniform, constant_clips_per_video)", name)
	}
}

func checkDuration(clipDuration, duration float64) error {
	if duration < clipDuration {
		return &ClipTooShortError{Required: clipDuration, Available: duration}
	}
	return nil
}

// randomSampler draws one uniformly placed clip per video.
type randomSampler struct {
	clipDuration float64
	rng          *rand.Rand
}

func (s *randomSampler) Sample(_, duration float64) (ClipInfo, error) {
	if err := checkDuration(s.clipDuration, duration); err != nil {
		return ClipInfo{}, err
	}
	start := s.rng.Float64() * (duration - s.clipDuration)
	return ClipInfo{Start: start, End: start + s.clipDuration, IsLast: true}, nil
}

// uniformSampler walks the video in back-to-back clips of equal length. The
// final clip is shifted back so it still ends within the video.
type uniformSampler struct {
	clipDuration float64
}

func (s *uniformSampler) Sample(lastClipEnd, duration float64) (ClipInfo, error) {
	if err := checkDuration(s.clipDuration, duration); err != nil {
		return ClipInfo{}, err
	}
	index := int(math.Floor(lastClipEnd/s.clipDuration + 0.5))
	start := lastClipEnd
	end := start + s.clipDuration
	if end > duration {
		end = duration
		start = duration - s.clipDuration
	}
	return ClipInfo{
		Start:  start,
		End:    end,
		Index:  index,
		IsLast: end+s.clipDuration > duration,
	}, nil
}

// constantClipsSampler spreads a fixed number of clips evenly over the
// video, repeating each for a fixed number of augmentations. It is stateful:
// successive calls step through (clip, augmentation) pairs and wrap after
// the last.
type constantClipsSampler struct {
	clipDuration  float64
	clipsPerVideo int
	augsPerClip   int

	clipIndex int
	augIndex  int
}

func (s *constantClipsSampler) Sample(_, duration float64) (ClipInfo, error) {
	if err := checkDuration(s.clipDuration, duration); err != nil {
		return ClipInfo{}, err
	}
	maxStart := duration - s.clipDuration
	spacing := 0.0
	if s.clipsPerVideo > 1 {
		spacing = maxStart / float64(s.clipsPerVideo-1)
	}
	start := spacing * float64(s.clipIndex)

	info := ClipInfo{
		Start:    start,
		End:      start + s.clipDuration,
		Index:    s.clipIndex,
		AugIndex: s.augIndex,
		IsLast:   s.clipIndex == s.clipsPerVideo-1 && s.augIndex == s.augsPerClip-1,
	}

	s.augIndex++
	if s.augIndex >= s.augsPerClip {
		s.augIndex = 0
		s.clipIndex++
		if s.clipIndex >= s.clipsPerVideo {
			s.clipIndex = 0
		}
	}
	return info, nil
}
