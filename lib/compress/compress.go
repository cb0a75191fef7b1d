// Copyright 2026 The Zencore Authors
// SPDX-License-Identifier: Apache-2.0

package compress

import (
	"errors"
	"fmt"
	"io"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Tag identifies the compression algorithm used for an archive
// payload. Tags are stored in the container header (1 byte). These
// values are format constants — changing them breaks container
// compatibility.
type Tag uint8

const (
	// Store indicates no compression. Used for already-compressed
	// content (media files, existing archives) where a codec adds CPU
	// cost without reducing size.
	Store Tag = 0

	// Gzip indicates DEFLATE compression in the gzip framing.
	// Widely compatible, moderate ratio.
	Gzip Tag = 1

	// Zstd indicates Zstandard compression. The default: better
	// ratios than gzip at higher throughput, with multi-worker block
	// compression for large payloads.
	Zstd Tag = 2

	// LZ4 indicates LZ4 frame compression. Fastest decode, lowest
	// ratio. Good for backups that are written and read often.
	LZ4 Tag = 3
)

// ErrInvalidLevel is returned when a compression level is outside the
// selected algorithm's supported range. Levels are validated before
// any I/O and never silently clamped.
var ErrInvalidLevel = errors.New("compression level out of range")

// String returns the name of a compression tag.
func (tag Tag) String() string {
	switch tag {
	case Store:
		return "store"
	case Gzip:
		return "gzip"
	case Zstd:
		return "zstd"
	case LZ4:
		return "lz4"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(tag))
	}
}

// ParseTag parses a compression tag from its string representation.
func ParseTag(name string) (Tag, error) {
	switch name {
	case "store", "none":
		return Store, nil
	case "gzip", "gz":
		return Gzip, nil
	case "zstd", "zst":
		return Zstd, nil
	case "lz4":
		return LZ4, nil
	default:
		return 0, fmt.Errorf("unknown compression algorithm: %q", name)
	}
}

// DefaultLevel returns the level used when a job does not specify one:
// gzip 6 and zstd 3 (each codec's conventional default), lz4 0 (fast
// mode), store 0.
func DefaultLevel(tag Tag) int {
	switch tag {
	case Gzip:
		return 6
	case Zstd:
		return 3
	default:
		return 0
	}
}

// ValidateLevel checks level against tag's supported range: store 0
// only, gzip 1–9, zstd 1–19, lz4 0–9. Returns ErrInvalidLevel (with
// the offending value and range) otherwise.
func ValidateLevel(tag Tag, level int) error {
	var minimum, maximum int
	switch tag {
	case Store:
		minimum, maximum = 0, 0
	case Gzip:
		minimum, maximum = 1, 9
	case Zstd:
		minimum, maximum = 1, 19
	case LZ4:
		minimum, maximum = 0, 9
	default:
		return fmt.Errorf("unknown compression tag %d", uint8(tag))
	}
	if level < minimum || level > maximum {
		return fmt.Errorf("%w: %s level %d (supported %d–%d)", ErrInvalidLevel, tag, level, minimum, maximum)
	}
	return nil
}

// lz4Levels maps the 0–9 user-facing scale onto the lz4 package's
// compression level constants.
var lz4Levels = [...]lz4.CompressionLevel{
	lz4.Fast,
	lz4.Level1, lz4.Level2, lz4.Level3, lz4.Level4, lz4.Level5,
	lz4.Level6, lz4.Level7, lz4.Level8, lz4.Level9,
}

// NewWriter returns a WriteCloser that compresses with the given
// algorithm and level into w. Close must be called to flush codec
// framing; it does not close w. concurrency bounds the codec's
// internal block workers where the codec supports them (zstd, lz4);
// sequential codecs ignore it.
//
// The level must already be validated with ValidateLevel.
func NewWriter(w io.Writer, tag Tag, level, concurrency int) (io.WriteCloser, error) {
	if err := ValidateLevel(tag, level); err != nil {
		return nil, err
	}
	if concurrency < 1 {
		concurrency = 1
	}

	switch tag {
	case Store:
		return &nopWriteCloser{w}, nil

	case Gzip:
		writer, err := gzip.NewWriterLevel(w, level)
		if err != nil {
			return nil, fmt.Errorf("gzip writer: %w", err)
		}
		return writer, nil

	case Zstd:
		writer, err := zstd.NewWriter(w,
			zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(level)),
			zstd.WithEncoderConcurrency(concurrency),
		)
		if err != nil {
			return nil, fmt.Errorf("zstd writer: %w", err)
		}
		return writer, nil

	case LZ4:
		writer := lz4.NewWriter(w)
		if err := writer.Apply(
			lz4.CompressionLevelOption(lz4Levels[level]),
			lz4.ConcurrencyOption(concurrency),
		); err != nil {
			return nil, fmt.Errorf("lz4 writer options: %w", err)
		}
		return &lz4WriteCloser{writer}, nil

	default:
		return nil, fmt.Errorf("unknown compression tag %d", uint8(tag))
	}
}

// NewReader returns a ReadCloser that decompresses the given
// algorithm's framing from r. Close releases codec resources; it does
// not close r.
func NewReader(r io.Reader, tag Tag) (io.ReadCloser, error) {
	switch tag {
	case Store:
		return io.NopCloser(r), nil

	case Gzip:
		reader, err := gzip.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("gzip reader: %w", err)
		}
		return reader, nil

	case Zstd:
		decoder, err := zstd.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("zstd reader: %w", err)
		}
		return decoder.IOReadCloser(), nil

	case LZ4:
		return io.NopCloser(lz4.NewReader(r)), nil

	default:
		return nil, fmt.Errorf("unknown compression tag %d", uint8(tag))
	}
}

// nopWriteCloser adapts the store (no compression) variant to the
// WriteCloser contract shared by the real codecs.
type nopWriteCloser struct {
	io.Writer
}

func (*nopWriteCloser) Close() error { return nil }

// lz4WriteCloser hides the lz4 writer's ReadFrom method. The lz4
// state machine rejects ReadFrom once Write has been called on the
// same writer, so an io.Copy into the bare *lz4.Writer fails after
// any preceding Write. Exposing only Write and Close keeps io.Copy on
// its plain buffered path.
type lz4WriteCloser struct {
	writer *lz4.Writer
}

func (c *lz4WriteCloser) Write(p []byte) (int, error) { return c.writer.Write(p) }

func (c *lz4WriteCloser) Close() error { return c.writer.Close() }
