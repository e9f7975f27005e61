package v1

import (
	"math"
	"slices"

	"github.com/uell/livelink/pkg/core"
)

// Builder accumulates one session. It is not safe for concurrent use.
type Builder struct {
	export Export
	index  map[string]int
}

func NewBuilder(s core.Session) *Builder {
	return &Builder{
		export: Export{
			Version:   Version,
			SessionID: s.ID,
			Peer:      s.Peer,
			Port:      s.Port,
			Encoding:  s.Encoding,
			StartTime: s.StartTime,
			Subjects:  make([]Subject, 0),
			TickStats: make([][5]int64, 0),
		},
		index: make(map[string]int),
	}
}

// AddFrame appends a sampled frame to its subject, creating the subject on
// first sight. Frames with no sample are ignored.
func (b *Builder) AddFrame(f *core.Frame) {
	if f.Sample == nil {
		return
	}
	i, ok := b.index[f.Entity.ID]
	if !ok {
		i = len(b.export.Subjects)
		b.index[f.Entity.ID] = i
		b.export.Subjects = append(b.export.Subjects, Subject{
			ID:     f.Entity.ID,
			Name:   f.Entity.Subject(),
			Kind:   f.Entity.Kind.String(),
			Frames: make([]Frame, 0),
		})
	}
	subj := &b.export.Subjects[i]
	// renames while streaming keep the latest name
	subj.Name = f.Entity.Subject()

	frame := Frame{Tick: f.Tick}
	switch s := f.Sample.(type) {
	case core.SkeletalSample:
		names := make([]string, len(s.Bones))
		frame.Transforms = make([][10]float64, len(s.Bones))
		for j, bone := range s.Bones {
			names[j] = bone.Name
			frame.Transforms[j] = Transform(bone.Position, bone.Scale, bone.Rotation)
		}
		if !ok {
			subj.Bones = names
		} else if !slices.Equal(subj.Bones, names) {
			frame.Bones = names
		}
	case core.CameraTransform:
		frame.Transforms = [][10]float64{Transform(s.Position, core.UnitScale, s.Rotation)}
	}
	subj.Frames = append(subj.Frames, frame)
}

func (b *Builder) AddTick(t *core.TickStats) {
	b.export.TickStats = append(b.export.TickStats, [5]int64{
		int64(t.Tick),
		t.Duration.Microseconds(),
		int64(t.Entities),
		int64(t.Skipped),
		int64(t.Bytes),
	})
}

// Build finalizes the export with the ended session's totals.
func (b *Builder) Build(end core.Session) Export {
	out := b.export
	out.EndTime = end.EndTime
	out.Ticks = end.Ticks
	out.BytesSent = end.BytesSent
	return out
}

// Transform flattens a transform. Non-finite components become 0 since
// JSON cannot carry them.
func Transform(pos, scale core.Vec3, rot core.Quaternion) [10]float64 {
	t := [10]float64{
		pos.X, pos.Y, pos.Z,
		scale.X, scale.Y, scale.Z,
		rot.W, rot.X, rot.Y, rot.Z,
	}
	for i, v := range t {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			t[i] = 0
		}
	}
	return t
}
