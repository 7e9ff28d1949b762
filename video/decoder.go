package video

import (
	"github.com/gomlx/gomlx/pkg/core/tensors"

	"github.com/Noofbiz/kindling/registry"
)

// Video is one opened video file. Clip decodes the frames between start and
// end seconds into a tensor.
type Video interface {
	Duration() float64
	Clip(start, end float64) (*tensors.Tensor, error)
	Close() error
}

// Decoder opens video files. Implementations wrap whatever decoding library
// is available and register themselves in Decoders by name.
type Decoder interface {
	Open(path string) (Video, error)
}

// Decoders is the registry inputs resolve their decoder from. Nothing is
// registered by default; a decoder package (or a test stub) must register
// one before any video data module is built.
var Decoders = registry.New[Decoder]("video decoders")

// defaultDecoder resolves the decoder for an empty Options.Decoder: the
// sole registered decoder, if exactly one exists.
func defaultDecoder() (Decoder, error) {
	names := Decoders.Names()
	if len(names) == 1 {
		return Decoders.Get(names[0])
	}
	return Decoders.Get("")
}
