// Package trace reads and writes sound register traces: the register writes
// a program made, frame by frame, that can be replayed on the APU.
//
//	{"sample_rate": 44100,
//	 "frames": [{"clocks": 70224, "repeat": 1,
//	             "writes": [{"t": 0, "addr": "0xFF26", "val": 128}, [12, 65297, 128]]}]}
//
// Writes are either objects or [t, addr, val] arrays, addr being a number or
// a numeric string.
package trace

import (
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/go-faster/jx"

	"gbapu/emu/log"
	"gbapu/hw/hwdefs"
)

type Write struct {
	Time uint32 // clocks since the frame start
	Addr uint16
	Val  uint8
}

type Frame struct {
	Clocks uint32
	Repeat int // times the frame is played
	Writes []Write
}

type Trace struct {
	SampleRate int
	Frames     []Frame
}

var ErrEmpty = errors.New("trace has no frames")

// Read decodes a trace from r.
func Read(r io.Reader) (*Trace, error) {
	return decode(jx.Decode(r, 4096))
}

// Decode decodes a trace from data.
func Decode(data []byte) (*Trace, error) {
	return decode(jx.DecodeBytes(data))
}

func decode(d *jx.Decoder) (*Trace, error) {
	var t Trace
	err := d.Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "sample_rate":
			v, err := d.Int()
			if err != nil {
				return fmt.Errorf("sample_rate: %w", err)
			}
			t.SampleRate = v
			return nil
		case "frames":
			return d.Arr(func(d *jx.Decoder) error {
				f, err := decodeFrame(d)
				if err != nil {
					return fmt.Errorf("frame %d: %w", len(t.Frames), err)
				}
				t.Frames = append(t.Frames, f)
				return nil
			})
		default:
			log.ModTrace.DebugZ("skipping unknown key").String("key", key).End()
			return d.Skip()
		}
	})
	if err != nil {
		return nil, fmt.Errorf("trace: %w", err)
	}
	if len(t.Frames) == 0 {
		return nil, fmt.Errorf("trace: %w", ErrEmpty)
	}
	return &t, nil
}

func decodeFrame(d *jx.Decoder) (Frame, error) {
	f := Frame{Clocks: hwdefs.FrameClocks, Repeat: 1}
	err := d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "clocks":
			f.Clocks, err = d.UInt32()
		case "repeat":
			f.Repeat, err = d.Int()
		case "writes":
			err = d.Arr(func(d *jx.Decoder) error {
				w, err := decodeWrite(d)
				if err != nil {
					return fmt.Errorf("write %d: %w", len(f.Writes), err)
				}
				f.Writes = append(f.Writes, w)
				return nil
			})
		default:
			err = d.Skip()
		}
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		return nil
	})
	if err != nil {
		return Frame{}, err
	}

	if f.Clocks == 0 {
		return Frame{}, errors.New("clocks must be positive")
	}
	if f.Repeat <= 0 {
		return Frame{}, fmt.Errorf("invalid repeat count %d", f.Repeat)
	}
	return f, nil
}

func decodeWrite(d *jx.Decoder) (Write, error) {
	var w Write
	switch d.Next() {
	case jx.Array:
		i := 0
		err := d.Arr(func(d *jx.Decoder) error {
			var err error
			switch i {
			case 0:
				w.Time, err = d.UInt32()
			case 1:
				w.Addr, err = decodeAddr(d)
			case 2:
				w.Val, err = d.UInt8()
			default:
				err = errors.New("too many elements")
			}
			i++
			return err
		})
		if err != nil {
			return w, err
		}
		if i != 3 {
			return w, fmt.Errorf("got %d elements, want [t, addr, val]", i)
		}
		return w, nil

	case jx.Object:
		var hasAddr, hasVal bool
		err := d.Obj(func(d *jx.Decoder, key string) error {
			var err error
			switch key {
			case "t":
				w.Time, err = d.UInt32()
			case "addr":
				w.Addr, err = decodeAddr(d)
				hasAddr = true
			case "val":
				w.Val, err = d.UInt8()
				hasVal = true
			default:
				err = d.Skip()
			}
			return err
		})
		if err != nil {
			return w, err
		}
		if !hasAddr || !hasVal {
			return w, errors.New("missing addr or val")
		}
		return w, nil

	default:
		return w, fmt.Errorf("unexpected %s", d.Next())
	}
}

func decodeAddr(d *jx.Decoder) (uint16, error) {
	if d.Next() != jx.String {
		return d.UInt16()
	}
	s, err := d.Str()
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseUint(s, 0, 16)
	if err != nil {
		return 0, fmt.Errorf("invalid address %q", s)
	}
	return uint16(v), nil
}

// Encode encodes t into JSON, writes as objects.
func Encode(t *Trace) []byte {
	var e jx.Encoder
	e.SetIdent(1)
	e.Obj(func(e *jx.Encoder) {
		e.Field("sample_rate", func(e *jx.Encoder) {
			e.Int(t.SampleRate)
		})
		e.Field("frames", func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				for _, f := range t.Frames {
					encodeFrame(e, f)
				}
			})
		})
	})
	return e.Bytes()
}

func encodeFrame(e *jx.Encoder, f Frame) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("clocks", func(e *jx.Encoder) {
			e.UInt32(f.Clocks)
		})
		e.Field("repeat", func(e *jx.Encoder) {
			e.Int(f.Repeat)
		})
		e.Field("writes", func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				for _, w := range f.Writes {
					e.Obj(func(e *jx.Encoder) {
						e.Field("t", func(e *jx.Encoder) { e.UInt32(w.Time) })
						e.Field("addr", func(e *jx.Encoder) { e.Str(fmt.Sprintf("0x%04X", w.Addr)) })
						e.Field("val", func(e *jx.Encoder) { e.UInt8(w.Val) })
					})
				}
			})
		})
	})
}

// WriteTo writes the JSON encoding of t to w.
func (t *Trace) WriteTo(w io.Writer) (int64, error) {
	n, err := w.Write(Encode(t))
	return int64(n), err
}
