package scan

import (
	"context"
	"math/rand/v2"

	"github.com/CompassSecurity/custompatterns/pkg/logging"
	"github.com/rs/zerolog/log"
)

// printable holds the ASCII digits, letters, punctuation and whitespace random
// text is drawn from.
const printable = "0123456789abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ!\"#$%&'()*+,-./:;<=>?@[\\]^_`{|}~ \t\n\r\x0b\x0c"

type RandomOptions struct {
	Options
	// BinaryBytes and ASCIIBytes are the amounts of random data to scan.
	BinaryBytes int64
	ASCIIBytes  int64
	ChunkSize   int64
	// Seed makes the generated data reproducible.
	Seed uint64
	// OnChunk is called after each scanned chunk with the bytes done so far.
	OnChunk func(done, total int64)
}

// DefaultRandomOptions scans 1GiB of binary and 1GiB of ASCII data.
func DefaultRandomOptions() RandomOptions {
	return RandomOptions{
		Options:     DefaultOptions(),
		BinaryBytes: 1 << 30,
		ASCIIBytes:  1 << 30,
		ChunkSize:   100 << 20,
	}
}

// Random scans random binary data, then random printable ASCII, in chunks.
// It stops between chunks when ctx is cancelled and returns what was scanned.
func Random(ctx context.Context, sc *Scanner, opts RandomOptions) (*Summary, error) {
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = DefaultRandomOptions().ChunkSize
	}
	rng := newRand(opts.Seed)
	summary := newSummary()
	total := opts.BinaryBytes + opts.ASCIIBytes
	var done int64

	phases := []struct {
		goal int64
		fill func([]byte)
	}{
		{goal: opts.BinaryBytes, fill: func(b []byte) { fillBinary(rng, b) }},
		{goal: opts.ASCIIBytes, fill: func(b []byte) { fillASCII(rng, b) }},
	}

	if err := ctx.Err(); err != nil {
		return summary, err
	}
	buf := make([]byte, min(opts.ChunkSize, max(opts.BinaryBytes, opts.ASCIIBytes)))
	for _, phase := range phases {
		for scanned := int64(0); scanned < phase.goal; {
			if err := ctx.Err(); err != nil {
				log.Info().Int64("bytes", done).Msg("Random scan cancelled")
				return summary, err
			}

			chunk := buf[:min(int64(len(buf)), phase.goal-scanned)]
			phase.fill(chunk)
			hits, err := sc.Scan(ctx, chunk)
			if err != nil {
				log.Error().Err(err).Msg("Failed scanning random data")
				summary.addError()
			}
			for i := range hits {
				hits[i].Source = logging.SourceRandom
				hits[i].Offset = done
			}
			summary.report(hits, opts.OnHit)

			n := int64(len(chunk))
			scanned += n
			done += n
			summary.addBytes(n, false)
			if opts.OnChunk != nil {
				opts.OnChunk(done, total)
			}
		}
	}
	return summary, nil
}

func newRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

func fillBinary(rng *rand.Rand, b []byte) {
	for i := 0; i < len(b); i += 8 {
		v := rng.Uint64()
		for j := i; j < len(b) && j < i+8; j++ {
			b[j] = byte(v)
			v >>= 8
		}
	}
}

func fillASCII(rng *rand.Rand, b []byte) {
	for i := range b {
		b[i] = printable[rng.IntN(len(printable))]
	}
}
