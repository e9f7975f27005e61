package encoder

import (
	"strconv"
	"unicode"
	"unicode/utf8"

	"github.com/uell/livelink/pkg/core"
)

const LineName = "line"

// Line writes one text line per bone:
//
//	<name> <x,y,z> <sx,sy,sz> <qw,qx,qy,qz>\n
//
// A camera is one line of the same shape, named after the subject, with unit scale.
// Whitespace and control characters in names are written as '_' so every
// line keeps exactly four fields.
type Line struct{}

func (Line) Name() string { return LineName }

func (Line) Encode(subject string, s core.Sample) []byte {
	switch v := s.(type) {
	case core.SkeletalSample:
		buf := make([]byte, 0, len(v.Bones)*96)
		for _, b := range v.Bones {
			buf = appendLine(buf, b.Name, b.Position, b.Scale, b.Rotation)
		}
		return buf
	case core.CameraTransform:
		return appendLine(make([]byte, 0, 96), subject, v.Position, core.UnitScale, v.Rotation)
	default:
		return nil
	}
}

func appendLine(buf []byte, name string, pos, scale core.Vec3, rot core.Quaternion) []byte {
	buf = appendName(buf, name)
	buf = append(buf, ' ')
	buf = appendVec(buf, pos)
	buf = append(buf, ' ')
	buf = appendVec(buf, scale)
	buf = append(buf, " <"...)
	buf = appendFloat(buf, rot.W)
	buf = append(buf, ',')
	buf = appendFloat(buf, rot.X)
	buf = append(buf, ',')
	buf = appendFloat(buf, rot.Y)
	buf = append(buf, ',')
	buf = appendFloat(buf, rot.Z)
	buf = append(buf, ">\n"...)
	return buf
}

func appendName(buf []byte, name string) []byte {
	for _, r := range name {
		if unicode.IsSpace(r) || unicode.IsControl(r) {
			r = '_'
		}
		buf = utf8.AppendRune(buf, r)
	}
	return buf
}

func appendVec(buf []byte, v core.Vec3) []byte {
	buf = append(buf, '<')
	buf = appendFloat(buf, v.X)
	buf = append(buf, ',')
	buf = appendFloat(buf, v.Y)
	buf = append(buf, ',')
	buf = appendFloat(buf, v.Z)
	return append(buf, '>')
}

func appendFloat(buf []byte, f float64) []byte {
	return strconv.AppendFloat(buf, f, 'f', 6, 64)
}
