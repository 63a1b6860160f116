// Package wav writes 16-bit PCM stereo WAV files.
package wav

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

const (
	headerSize    = 44
	channels      = 2
	bitsPerSample = 16
	blockAlign    = channels * bitsPerSample / 8
)

// A Writer writes interleaved stereo samples to an io.WriteSeeker. The RIFF
// header sizes are patched when the writer is closed.
type Writer struct {
	w          io.WriteSeeker
	sampleRate int
	ndata      uint32 // bytes of sample data written
	buf        []byte
	closed     bool
}

// NewWriter writes a provisional header to w.
func NewWriter(w io.WriteSeeker, sampleRate int) (*Writer, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("wav: invalid sample rate %d", sampleRate)
	}
	ww := &Writer{w: w, sampleRate: sampleRate}
	if _, err := w.Write(ww.header()); err != nil {
		return nil, fmt.Errorf("wav: writing header: %w", err)
	}
	return ww, nil
}

func (w *Writer) header() []byte {
	hdr := make([]byte, 0, headerSize)
	hdr = append(hdr, "RIFF"...)
	hdr = binary.LittleEndian.AppendUint32(hdr, 36+w.ndata)
	hdr = append(hdr, "WAVE"...)

	hdr = append(hdr, "fmt "...)
	hdr = binary.LittleEndian.AppendUint32(hdr, 16)
	hdr = binary.LittleEndian.AppendUint16(hdr, 1) // PCM
	hdr = binary.LittleEndian.AppendUint16(hdr, channels)
	hdr = binary.LittleEndian.AppendUint32(hdr, uint32(w.sampleRate))
	hdr = binary.LittleEndian.AppendUint32(hdr, uint32(w.sampleRate*blockAlign))
	hdr = binary.LittleEndian.AppendUint16(hdr, blockAlign)
	hdr = binary.LittleEndian.AppendUint16(hdr, bitsPerSample)

	hdr = append(hdr, "data"...)
	hdr = binary.LittleEndian.AppendUint32(hdr, w.ndata)
	return hdr
}

var ErrClosed = errors.New("wav: writer is closed")

// WriteSamples appends interleaved left/right samples.
func (w *Writer) WriteSamples(samples []int16) error {
	if w.closed {
		return ErrClosed
	}
	if len(samples)%channels != 0 {
		return fmt.Errorf("wav: odd number of samples (%d)", len(samples))
	}

	w.buf = w.buf[:0]
	for _, s := range samples {
		w.buf = binary.LittleEndian.AppendUint16(w.buf, uint16(s))
	}
	n, err := w.w.Write(w.buf)
	w.ndata += uint32(n)
	return err
}

// Frames returns the number of stereo frames written so far.
func (w *Writer) Frames() int {
	return int(w.ndata / blockAlign)
}

// Close rewrites the header with the final sizes. It does not close the
// underlying writer.
func (w *Writer) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true

	if _, err := w.w.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("wav: %w", err)
	}
	if _, err := w.w.Write(w.header()); err != nil {
		return fmt.Errorf("wav: patching header: %w", err)
	}
	_, err := w.w.Seek(0, io.SeekEnd)
	return err
}
