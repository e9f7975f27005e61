package convert

import (
	"sort"
	"time"

	"github.com/uell/livelink/internal/model"
	"github.com/uell/livelink/pkg/core"
)

// StatesToFrames rebuilds frames from stored rows. Frames are ordered by
// tick, then by first appearance of the entity within the tick. Bone rows
// must be ordered by tick and bone index.
func StatesToFrames(bones []model.BoneState, cameras []model.CameraState) []core.Frame {
	type key struct {
		tick   uint64
		entity string
	}
	var frames []core.Frame
	index := make(map[key]int)

	for _, b := range bones {
		k := key{b.Tick, b.EntityID}
		i, ok := index[k]
		if !ok {
			i = len(frames)
			index[k] = i
			frames = append(frames, core.Frame{
				SessionID: b.SessionID,
				Tick:      b.Tick,
				Time:      b.Time,
				Entity:    entity(b.EntityID, b.Subject, core.KindMeshWithSkeleton),
				Sample:    core.SkeletalSample{},
			})
		}
		s := frames[i].Sample.(core.SkeletalSample)
		s.Bones = append(s.Bones, core.BoneSample{
			Name:     b.Bone,
			Position: pointToVec(b.Position),
			Scale:    jsonToVec(b.Scale),
			Rotation: jsonToQuat(b.Rotation),
		})
		frames[i].Sample = s
	}

	for _, c := range cameras {
		frames = append(frames, core.Frame{
			SessionID: c.SessionID,
			Tick:      c.Tick,
			Time:      c.Time,
			Entity:    entity(c.EntityID, c.Subject, core.KindCamera),
			Sample: core.CameraTransform{
				Position: pointToVec(c.Position),
				Rotation: jsonToQuat(c.Rotation),
			},
		})
	}

	sort.SliceStable(frames, func(i, j int) bool { return frames[i].Tick < frames[j].Tick })
	return frames
}

func entity(id, subject string, kind core.EntityKind) core.TrackedEntity {
	e := core.TrackedEntity{ID: id, Kind: kind, Active: true}
	if subject != id {
		e.SubjectName = subject
	}
	return e
}

func TickToCore(t model.TickStat) core.TickStats {
	return core.TickStats{
		SessionID: t.SessionID,
		Tick:      t.Tick,
		Time:      t.Time,
		Duration:  time.Duration(t.DurationMicros) * time.Microsecond,
		Entities:  t.Entities,
		Skipped:   t.Skipped,
		Bytes:     t.Bytes,
	}
}
