// Package v1 contains the v1 export format for recorded live link sessions.
package v1

import "time"

// Version is written into every export.
const Version = "1"

// Export is the root JSON structure for v1 format
type Export struct {
	Version   string    `json:"version"`
	SessionID uint      `json:"sessionId"`
	Peer      string    `json:"peer"`
	Port      int       `json:"port"`
	Encoding  string    `json:"encoding"`
	StartTime time.Time `json:"startTime"`
	EndTime   time.Time `json:"endTime"`
	Ticks     uint64    `json:"ticks"`
	BytesSent uint64    `json:"bytesSent"`
	Subjects  []Subject `json:"subjects"`
	// TickStats rows are [tick, durationMicros, entities, skipped, bytes]
	TickStats [][5]int64 `json:"tickStats"`
}

// Subject is one tracked entity and all frames sampled for it.
type Subject struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Kind string `json:"kind"`
	// Bones names the transforms of each frame. Empty for cameras.
	Bones  []string `json:"bones,omitempty"`
	Frames []Frame  `json:"frames"`
}

// Frame holds one transform per bone in Subject.Bones order, each as
// [x, y, z, sx, sy, sz, qw, qx, qy, qz]. Bones is set only when the
// skeleton differs from the subject's.
type Frame struct {
	Tick       uint64        `json:"tick"`
	Bones      []string      `json:"bones,omitempty"`
	Transforms [][10]float64 `json:"transforms"`
}
