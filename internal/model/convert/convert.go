// Package convert maps between gorm models and core types.
package convert

import (
	"database/sql"
	"encoding/json"
	"math"

	"github.com/uell/livelink/internal/model"
	"github.com/uell/livelink/pkg/core"
	"gorm.io/datatypes"
)

func finite(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

func vecToPoint(v core.Vec3) model.PointZ {
	return model.NewPointZ(finite(v.X), finite(v.Y), finite(v.Z))
}

func pointToVec(p model.PointZ) core.Vec3 {
	x, y, z := p.XYZ()
	return core.Vec3{X: x, Y: y, Z: z}
}

func floatsToJSON(vals ...float64) datatypes.JSON {
	for i, v := range vals {
		vals[i] = finite(v)
	}
	data, _ := json.Marshal(vals)
	return datatypes.JSON(data)
}

func jsonToFloats(data datatypes.JSON, n int) []float64 {
	out := make([]float64, n)
	var vals []float64
	if err := json.Unmarshal(data, &vals); err == nil {
		copy(out, vals)
	}
	return out
}

func jsonToVec(data datatypes.JSON) core.Vec3 {
	v := jsonToFloats(data, 3)
	return core.Vec3{X: v[0], Y: v[1], Z: v[2]}
}

func jsonToQuat(data datatypes.JSON) core.Quaternion {
	q := jsonToFloats(data, 4)
	return core.Quaternion{W: q[0], X: q[1], Y: q[2], Z: q[3]}
}

func SessionToModel(s core.Session) model.Session {
	return model.Session{
		ID:        s.ID,
		Peer:      s.Peer,
		Port:      s.Port,
		Encoding:  s.Encoding,
		StartTime: s.StartTime,
		EndTime:   sql.NullTime{Time: s.EndTime, Valid: !s.EndTime.IsZero()},
		Ticks:     s.Ticks,
		BytesSent: s.BytesSent,
	}
}

func SessionToCore(s model.Session) core.Session {
	out := core.Session{
		ID:        s.ID,
		Peer:      s.Peer,
		Port:      s.Port,
		Encoding:  s.Encoding,
		StartTime: s.StartTime,
		Ticks:     s.Ticks,
		BytesSent: s.BytesSent,
	}
	if s.EndTime.Valid {
		out.EndTime = s.EndTime.Time
	}
	return out
}

// FrameToBoneStates returns one row per bone of a skeletal frame, nil otherwise.
func FrameToBoneStates(f *core.Frame) []model.BoneState {
	s, ok := f.Sample.(core.SkeletalSample)
	if !ok {
		return nil
	}
	rows := make([]model.BoneState, len(s.Bones))
	for i, b := range s.Bones {
		rows[i] = model.BoneState{
			SessionID: f.SessionID,
			Tick:      f.Tick,
			Time:      f.Time,
			EntityID:  f.Entity.ID,
			Subject:   f.Entity.Subject(),
			Bone:      b.Name,
			BoneIndex: uint16(i),
			Position:  vecToPoint(b.Position),
			Scale:     floatsToJSON(b.Scale.X, b.Scale.Y, b.Scale.Z),
			Rotation:  floatsToJSON(b.Rotation.W, b.Rotation.X, b.Rotation.Y, b.Rotation.Z),
		}
	}
	return rows
}

// FrameToCameraState returns the row of a camera frame.
func FrameToCameraState(f *core.Frame) (model.CameraState, bool) {
	c, ok := f.Sample.(core.CameraTransform)
	if !ok {
		return model.CameraState{}, false
	}
	return model.CameraState{
		SessionID: f.SessionID,
		Tick:      f.Tick,
		Time:      f.Time,
		EntityID:  f.Entity.ID,
		Subject:   f.Entity.Subject(),
		Position:  vecToPoint(c.Position),
		Rotation:  floatsToJSON(c.Rotation.W, c.Rotation.X, c.Rotation.Y, c.Rotation.Z),
	}, true
}

func TickToModel(t *core.TickStats) model.TickStat {
	return model.TickStat{
		SessionID:      t.SessionID,
		Tick:           t.Tick,
		Time:           t.Time,
		DurationMicros: t.Duration.Microseconds(),
		Entities:       t.Entities,
		Skipped:        t.Skipped,
		Bytes:          t.Bytes,
	}
}
