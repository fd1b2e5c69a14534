package render

import (
	"bytes"
	"errors"
	"fmt"
	"image/png"
	"os"
	"path/filepath"
	"sync"

	"github.com/cespare/xxhash/v2"

	"tarediiran-industries.com/transit-board/internal/arrivals"
)

// Sink accepts finished frames. Hardware and file-based simulation share
// this contract.
type Sink interface {
	Push(frame Frame) error
	Close() error
}

// SinkError wraps any failure to hand a frame downstream.
type SinkError struct {
	Sink string
	Err  error
}

func (sinkError *SinkError) Error() string {
	return fmt.Sprintf("render sink %s: %v", sinkError.Sink, sinkError.Err)
}

func (sinkError *SinkError) Unwrap() error {
	return sinkError.Err
}

// FileSink writes the latest frame of each direction to
// <dir>/board_<direction>.png. Identical consecutive frames are not rewritten.
type FileSink struct {
	dir    string
	hashes map[arrivals.Direction]uint64
}

func NewFileSink(dir string) (*FileSink, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	return &FileSink{dir: dir, hashes: map[arrivals.Direction]uint64{}}, nil
}

func (sink *FileSink) Path(direction arrivals.Direction) string {
	return filepath.Join(sink.dir, fmt.Sprintf("board_%s.png", direction))
}

func (sink *FileSink) Push(frame Frame) error {
	if frame.Image == nil {
		return &SinkError{Sink: "file", Err: errors.New("empty frame")}
	}

	sum := xxhash.Sum64(frame.Image.Pix)
	if previous, ok := sink.hashes[frame.Direction]; ok && previous == sum {
		return nil
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, frame.Image); err != nil {
		return &SinkError{Sink: "file", Err: err}
	}

	// Write then rename so a viewer never sees a half-written image.
	target := sink.Path(frame.Direction)
	tmp, err := os.CreateTemp(sink.dir, ".board-*.png")
	if err != nil {
		return &SinkError{Sink: "file", Err: err}
	}
	if _, err := tmp.Write(buf.Bytes()); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return &SinkError{Sink: "file", Err: err}
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return &SinkError{Sink: "file", Err: err}
	}
	if err := os.Rename(tmp.Name(), target); err != nil {
		_ = os.Remove(tmp.Name())
		return &SinkError{Sink: "file", Err: err}
	}

	sink.hashes[frame.Direction] = sum
	return nil
}

func (sink *FileSink) Close() error {
	return nil
}

// PreviewSink keeps the most recent frame for concurrent readers such as the
// preview web server.
type PreviewSink struct {
	mu     sync.RWMutex
	latest Frame
	pushes uint64
}

func NewPreviewSink() *PreviewSink {
	return &PreviewSink{}
}

func (sink *PreviewSink) Push(frame Frame) error {
	if frame.Image == nil {
		return &SinkError{Sink: "preview", Err: errors.New("empty frame")}
	}
	sink.mu.Lock()
	defer sink.mu.Unlock()
	sink.latest = frame
	sink.pushes++
	return nil
}

// Latest returns the last pushed frame, or ok=false if none arrived yet.
func (sink *PreviewSink) Latest() (Frame, bool) {
	sink.mu.RLock()
	defer sink.mu.RUnlock()
	return sink.latest, sink.pushes > 0
}

func (sink *PreviewSink) EncodePNG(buf *bytes.Buffer) error {
	frame, ok := sink.Latest()
	if !ok {
		return errors.New("no frame rendered yet")
	}
	return png.Encode(buf, frame.Image)
}

func (sink *PreviewSink) Close() error {
	return nil
}

// MultiSink fans a frame out to every sink and reports all failures together.
type MultiSink []Sink

func (sinks MultiSink) Push(frame Frame) error {
	var errs []error
	for _, sink := range sinks {
		if err := sink.Push(frame); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (sinks MultiSink) Close() error {
	var errs []error
	for _, sink := range sinks {
		if err := sink.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// DiscardSink drops every frame. Used when no output is configured.
type DiscardSink struct{}

func (DiscardSink) Push(Frame) error { return nil }
func (DiscardSink) Close() error     { return nil }
