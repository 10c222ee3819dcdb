package archive

import (
	"archive/tar"
	"bufio"
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/crypto/blake2b"
	"golang.org/x/time/rate"

	"github.com/yndnr/quicksave-go/internal/core/domain"
	"github.com/yndnr/quicksave-go/internal/telemetry/logger"
)

// Suffixes Unpack accepts: a plain artifact and its mid-restore backup.
var unpackSuffixes = []string{
	domain.ArtifactExt,
	domain.ArtifactExt + domain.BackupExt,
	domain.BackupExt,
}

// progressInterval throttles progress callbacks.
const progressInterval = 100 * time.Millisecond

// Config selects and tunes the compressors.
type Config struct {
	// Compressors in preference order.
	Compressors []string
	ZstdLevel   int
	LZ4Level    int
}

// DefaultConfig prefers zstd at level 19, then lz4 at level 9.
func DefaultConfig() Config {
	return Config{
		Compressors: []string{Zstd, LZ4},
		ZstdLevel:   19,
		LZ4Level:    9,
	}
}

// Codec packs and unpacks artifacts.
type Codec struct {
	primary   Compressor
	available []Compressor
	logger    logger.Logger
	progress  func(written int64)
}

// Option configures a Codec.
type Option func(*Codec)

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(c *Codec) {
		c.logger = l
	}
}

// WithProgress registers a callback receiving the number of compressed
// bytes written so far. Calls are throttled.
func WithProgress(fn func(written int64)) Option {
	return func(c *Codec) {
		c.progress = fn
	}
}

// New probes every configured compressor and keeps the ones that work.
// The first working one compresses new artifacts. It returns
// ErrCompressorUnavailable when none works, so callers fail at startup
// rather than on first use.
func New(cfg Config, opts ...Option) (*Codec, error) {
	c := &Codec{logger: logger.Default()}
	for _, opt := range opts {
		opt(c)
	}

	var failures []string
	for _, name := range cfg.Compressors {
		var comp Compressor
		switch strings.ToLower(name) {
		case Zstd:
			comp = NewZstd(cfg.ZstdLevel)
		case LZ4:
			comp = NewLZ4(cfg.LZ4Level)
		default:
			failures = append(failures, name+": unknown compressor")
			continue
		}
		if err := probe(comp); err != nil {
			c.logger.Warn("compressor probe failed", "compressor", comp.Name(), "error", err)
			failures = append(failures, err.Error())
			continue
		}
		c.available = append(c.available, comp)
	}

	if len(c.available) == 0 {
		details := "no compressor configured"
		if len(failures) > 0 {
			details = strings.Join(failures, "; ")
		}
		return nil, domain.ErrCompressorUnavailable.WithDetails(details)
	}
	c.primary = c.available[0]
	c.logger.Debug("compressor selected", "compressor", c.primary.Name(), "available", len(c.available))
	return c, nil
}

// Primary returns the name of the compressor used by Pack.
func (c *Codec) Primary() string {
	return c.primary.Name()
}

// PackResult describes a written artifact.
type PackResult struct {
	Path   string
	Codec  string
	Size   int64
	Digest string
}

// Pack archives the contents of srcDir into dstPath. The stream is
// written to a temporary file next to dstPath and linked into place only
// once complete, so a failed Pack never leaves a partial artifact. An
// existing dstPath is never overwritten: Pack returns ErrArtifactExists.
func (c *Codec) Pack(srcDir, dstPath string) (*PackResult, error) {
	if st, err := os.Stat(srcDir); err != nil || !st.IsDir() {
		return nil, fmt.Errorf("pack %s: not a directory", srcDir)
	}

	tmp, err := os.CreateTemp(filepath.Dir(dstPath), "."+filepath.Base(dstPath)+".tmp-*")
	if err != nil {
		return nil, domain.ErrStorage.WithDetails("create temp artifact").WithCause(err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	digest, err := blake2b.New256(nil)
	if err != nil {
		tmp.Close()
		return nil, err
	}
	counter := &countingWriter{progress: c.progress, sometimes: &rate.Sometimes{Interval: progressInterval}}

	if err := c.writeStream(io.MultiWriter(tmp, digest, counter), srcDir); err != nil {
		tmp.Close()
		return nil, err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return nil, domain.ErrStorage.WithDetails("sync artifact").WithCause(err)
	}
	if err := tmp.Close(); err != nil {
		return nil, domain.ErrStorage.WithDetails("close artifact").WithCause(err)
	}
	counter.flush()

	if err := os.Link(tmpPath, dstPath); err != nil {
		if errors.Is(err, os.ErrExist) {
			return nil, domain.ErrArtifactExists.WithDetails(filepath.Base(dstPath))
		}
		return nil, domain.ErrStorage.WithDetails("publish artifact").WithCause(err)
	}

	return &PackResult{
		Path:   dstPath,
		Codec:  c.primary.Name(),
		Size:   counter.n.Load(),
		Digest: hex.EncodeToString(digest.Sum(nil)),
	}, nil
}

func (c *Codec) writeStream(w io.Writer, srcDir string) error {
	cw, err := c.primary.NewWriter(w)
	if err != nil {
		return fmt.Errorf("%s writer: %w", c.primary.Name(), err)
	}
	tw := tar.NewWriter(cw)
	if err := writeTree(tw, srcDir); err != nil {
		tw.Close()
		cw.Close()
		return fmt.Errorf("archive %s: %w", srcDir, err)
	}
	if err := tw.Close(); err != nil {
		cw.Close()
		return fmt.Errorf("finish archive: %w", err)
	}
	if err := cw.Close(); err != nil {
		return fmt.Errorf("finish %s stream: %w", c.primary.Name(), err)
	}
	return nil
}

// Unpack extracts artifactPath into destDir and returns the compressor
// that decoded it. The path must carry a recognized artifact suffix; the
// compressor is chosen by the stream's frame magic.
func (c *Codec) Unpack(artifactPath, destDir string) (string, error) {
	if !HasArtifactSuffix(artifactPath) {
		return "", domain.ErrUnsupportedFormat.WithDetails(filepath.Base(artifactPath))
	}

	f, err := os.Open(artifactPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", domain.ErrArtifactNotFound.WithDetails(artifactPath)
		}
		return "", domain.ErrStorage.WithDetails("open artifact").WithCause(err)
	}
	defer f.Close()

	br := bufio.NewReader(f)
	head, _ := br.Peek(4)
	comp := c.detect(head)
	if comp == nil {
		return "", domain.ErrUnsupportedFormat.WithDetails(fmt.Sprintf("%s: unknown stream header %x", filepath.Base(artifactPath), head))
	}

	r, err := comp.NewReader(br)
	if err != nil {
		return "", domain.ErrArchiveCorrupt.WithDetails(comp.Name()).WithCause(err)
	}
	defer r.Close()

	if err := extractTree(tar.NewReader(r), destDir); err != nil {
		return "", domain.ErrArchiveCorrupt.WithDetails(filepath.Base(artifactPath)).WithCause(err)
	}
	return comp.Name(), nil
}

func (c *Codec) detect(head []byte) Compressor {
	for _, comp := range c.available {
		if bytes.HasPrefix(head, comp.Magic()) {
			return comp
		}
	}
	return nil
}

// HasArtifactSuffix reports whether path ends in .qsnap, .qsnap.bak or .bak.
func HasArtifactSuffix(path string) bool {
	for _, s := range unpackSuffixes {
		if strings.HasSuffix(path, s) {
			return true
		}
	}
	return false
}

// Digest returns the hex blake2b-256 of the file at path.
func Digest(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h, err := blake2b.New256(nil)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

type countingWriter struct {
	n         atomic.Int64
	progress  func(int64)
	sometimes *rate.Sometimes
}

func (w *countingWriter) Write(p []byte) (int, error) {
	n := w.n.Add(int64(len(p)))
	if w.progress != nil {
		w.sometimes.Do(func() { w.progress(n) })
	}
	return len(p), nil
}

func (w *countingWriter) flush() {
	if w.progress != nil {
		w.progress(w.n.Load())
	}
}
