package main

import (
	"math/rand/v2"

	"github.com/born-ml/factory/factory"
)

// synthetic generates image batches whose targets are the mean intensity of
// horizontal bands of the first channel, one band per output.
type synthetic struct {
	rng *rand.Rand
}

func newSynthetic(cfg factory.Config, seed uint64) *synthetic {
	return &synthetic{rng: rand.New(rand.NewPCG(seed, uint64(cfg.NetworkOutputSize)))}
}

func (s *synthetic) batch(n int, cfg factory.Config, backend factory.Backend) (images, targets *factory.Tensor) {
	rows, cols, ch := cfg.ImageDepthRows, cfg.ImageDepthCols, cfg.ImageDepthChannels
	out := cfg.NetworkOutputSize

	pixels := make([]float32, n*rows*cols*ch)
	for i := range pixels {
		pixels[i] = float32(s.rng.NormFloat64())
	}

	labels := make([]float32, n*out)
	for b := range n {
		for k := range out {
			lo := k * rows / out
			hi := max((k+1)*rows/out, lo+1)
			var sum float32
			var count int
			for r := lo; r < min(hi, rows); r++ {
				for c := range cols {
					sum += pixels[((b*rows+r)*cols+c)*ch]
					count++
				}
			}
			labels[b*out+k] = sum / float32(count)
		}
	}

	images, err := factory.FromSlice(pixels, factory.Shape{n, rows, cols, ch}, cfg.DType(), backend)
	if err != nil {
		panic(err)
	}
	targets, err = factory.FromSlice(labels, factory.Shape{n, out}, cfg.DType(), backend)
	if err != nil {
		panic(err)
	}
	return images, targets
}
