package archive

import (
	"bytes"
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Compressor names.
const (
	Zstd = "zstd"
	LZ4  = "lz4"
)

// Compressor is a streaming compression backend.
type Compressor interface {
	// Name returns the configuration name of the compressor.
	Name() string
	// Magic returns the leading bytes of every stream it writes.
	Magic() []byte
	NewWriter(w io.Writer) (io.WriteCloser, error)
	NewReader(r io.Reader) (io.ReadCloser, error)
}

type zstdCompressor struct {
	level zstd.EncoderLevel
}

// NewZstd returns the zstd compressor. level uses the zstd command line
// scale (1-22).
func NewZstd(level int) Compressor {
	return &zstdCompressor{level: zstd.EncoderLevelFromZstd(level)}
}

func (c *zstdCompressor) Name() string { return Zstd }

func (c *zstdCompressor) Magic() []byte { return []byte{0x28, 0xb5, 0x2f, 0xfd} }

func (c *zstdCompressor) NewWriter(w io.Writer) (io.WriteCloser, error) {
	return zstd.NewWriter(w, zstd.WithEncoderLevel(c.level))
}

func (c *zstdCompressor) NewReader(r io.Reader) (io.ReadCloser, error) {
	dec, err := zstd.NewReader(r)
	if err != nil {
		return nil, err
	}
	return dec.IOReadCloser(), nil
}

var lz4Levels = []lz4.CompressionLevel{
	lz4.Fast,
	lz4.Level1, lz4.Level2, lz4.Level3,
	lz4.Level4, lz4.Level5, lz4.Level6,
	lz4.Level7, lz4.Level8, lz4.Level9,
}

type lz4Compressor struct {
	level lz4.CompressionLevel
}

// NewLZ4 returns the lz4 frame compressor. level 0 is the fast mode,
// 1-9 select the high compression levels.
func NewLZ4(level int) Compressor {
	if level < 0 {
		level = 0
	}
	if level >= len(lz4Levels) {
		level = len(lz4Levels) - 1
	}
	return &lz4Compressor{level: lz4Levels[level]}
}

func (c *lz4Compressor) Name() string { return LZ4 }

func (c *lz4Compressor) Magic() []byte { return []byte{0x04, 0x22, 0x4d, 0x18} }

func (c *lz4Compressor) NewWriter(w io.Writer) (io.WriteCloser, error) {
	zw := lz4.NewWriter(w)
	if err := zw.Apply(lz4.CompressionLevelOption(c.level)); err != nil {
		return nil, err
	}
	return zw, nil
}

func (c *lz4Compressor) NewReader(r io.Reader) (io.ReadCloser, error) {
	return io.NopCloser(lz4.NewReader(r)), nil
}

// probePayload is compressed and decompressed by probe.
var probePayload = bytes.Repeat([]byte("quicksave compressor probe\n"), 64)

// probe round-trips a small payload through c.
func probe(c Compressor) error {
	var buf bytes.Buffer
	w, err := c.NewWriter(&buf)
	if err != nil {
		return fmt.Errorf("%s writer: %w", c.Name(), err)
	}
	if _, err := w.Write(probePayload); err != nil {
		w.Close()
		return fmt.Errorf("%s write: %w", c.Name(), err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("%s close: %w", c.Name(), err)
	}
	if !bytes.HasPrefix(buf.Bytes(), c.Magic()) {
		return fmt.Errorf("%s: unexpected stream header", c.Name())
	}

	r, err := c.NewReader(&buf)
	if err != nil {
		return fmt.Errorf("%s reader: %w", c.Name(), err)
	}
	defer r.Close()
	got, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("%s read: %w", c.Name(), err)
	}
	if !bytes.Equal(got, probePayload) {
		return fmt.Errorf("%s: round trip mismatch", c.Name())
	}
	return nil
}
