package encoder

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/uell/livelink/pkg/core"
)

const BinaryName = "binary"

const (
	tagSkeleton byte = 1
	tagCamera   byte = 2
)

// Binary writes one length-prefixed frame per entity, all big-endian:
//
//	u32 length | u8 tag | u16 len + subject |
//	  skeleton: u16 count, count * (u16 len + name, 10 * f64)
//	  camera:   7 * f64
//
// Names longer than 65535 bytes are truncated.
type Binary struct{}

func (Binary) Name() string { return BinaryName }

func (Binary) Encode(subject string, s core.Sample) []byte {
	var payload []byte
	switch v := s.(type) {
	case core.SkeletalSample:
		payload = make([]byte, 0, 8+len(subject)+len(v.Bones)*96)
		payload = append(payload, tagSkeleton)
		payload = appendString(payload, subject)
		payload = binary.BigEndian.AppendUint16(payload, uint16(min(len(v.Bones), math.MaxUint16)))
		for i, b := range v.Bones {
			if i == math.MaxUint16 {
				break
			}
			payload = appendString(payload, b.Name)
			payload = appendFloats(payload,
				b.Position.X, b.Position.Y, b.Position.Z,
				b.Scale.X, b.Scale.Y, b.Scale.Z,
				b.Rotation.W, b.Rotation.X, b.Rotation.Y, b.Rotation.Z)
		}
	case core.CameraTransform:
		payload = make([]byte, 0, 3+len(subject)+7*8)
		payload = append(payload, tagCamera)
		payload = appendString(payload, subject)
		payload = appendFloats(payload,
			v.Position.X, v.Position.Y, v.Position.Z,
			v.Rotation.W, v.Rotation.X, v.Rotation.Y, v.Rotation.Z)
	default:
		return nil
	}

	frame := make([]byte, 0, 4+len(payload))
	frame = binary.BigEndian.AppendUint32(frame, uint32(len(payload)))
	return append(frame, payload...)
}

func appendString(buf []byte, s string) []byte {
	if len(s) > math.MaxUint16 {
		s = s[:math.MaxUint16]
	}
	buf = binary.BigEndian.AppendUint16(buf, uint16(len(s)))
	return append(buf, s...)
}

func appendFloats(buf []byte, fs ...float64) []byte {
	for _, f := range fs {
		buf = binary.BigEndian.AppendUint64(buf, math.Float64bits(f))
	}
	return buf
}

// DecodeBinary reads one frame written by Binary from r.
func DecodeBinary(r io.Reader) (subject string, s core.Sample, err error) {
	var hdr [4]byte
	if _, err = io.ReadFull(r, hdr[:]); err != nil {
		return "", nil, err
	}
	payload := make([]byte, binary.BigEndian.Uint32(hdr[:]))
	if _, err = io.ReadFull(r, payload); err != nil {
		return "", nil, fmt.Errorf("read payload: %w", err)
	}

	d := decoder{buf: payload}
	tag := d.u8()
	subject = d.str()
	switch tag {
	case tagSkeleton:
		n := int(d.u16())
		sk := core.SkeletalSample{Bones: make([]core.BoneSample, 0, n)}
		for range n {
			var b core.BoneSample
			b.Name = d.str()
			b.Position = core.Vec3{X: d.f64(), Y: d.f64(), Z: d.f64()}
			b.Scale = core.Vec3{X: d.f64(), Y: d.f64(), Z: d.f64()}
			b.Rotation = core.Quaternion{W: d.f64(), X: d.f64(), Y: d.f64(), Z: d.f64()}
			sk.Bones = append(sk.Bones, b)
		}
		s = sk
	case tagCamera:
		s = core.CameraTransform{
			Position: core.Vec3{X: d.f64(), Y: d.f64(), Z: d.f64()},
			Rotation: core.Quaternion{W: d.f64(), X: d.f64(), Y: d.f64(), Z: d.f64()},
		}
	default:
		return "", nil, fmt.Errorf("unknown frame tag %d", tag)
	}
	if d.err != nil {
		return "", nil, d.err
	}
	return subject, s, nil
}

var errShortFrame = errors.New("short frame")

type decoder struct {
	buf []byte
	err error
}

func (d *decoder) take(n int) []byte {
	if d.err != nil || len(d.buf) < n {
		d.err = errShortFrame
		return make([]byte, n)
	}
	b := d.buf[:n]
	d.buf = d.buf[n:]
	return b
}

func (d *decoder) u8() byte { return d.take(1)[0] }

func (d *decoder) u16() uint16 { return binary.BigEndian.Uint16(d.take(2)) }

func (d *decoder) f64() float64 { return math.Float64frombits(binary.BigEndian.Uint64(d.take(8))) }

func (d *decoder) str() string { return string(d.take(int(d.u16()))) }
