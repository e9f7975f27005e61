// pkg/core/session.go
package core

import "time"

// Session is one accepted peer connection, from accept to disconnect or stop.
type Session struct {
	ID        uint      `json:"id"`
	Port      int       `json:"port"`
	Encoding  string    `json:"encoding"`
	Peer      string    `json:"peer"`
	StartTime time.Time `json:"startTime"`
	EndTime   time.Time `json:"endTime,omitzero"`
	Ticks     uint64    `json:"ticks"`
	BytesSent uint64    `json:"bytesSent"`
}

// Frame is one sampled entity within one tick.
type Frame struct {
	SessionID uint          `json:"sessionId"`
	Tick      uint64        `json:"tick"`
	Time      time.Time     `json:"time"`
	Entity    TrackedEntity `json:"entity"`
	Sample    Sample        `json:"sample"`
}

// TickStats summarizes one pass over the registry snapshot.
type TickStats struct {
	SessionID uint          `json:"sessionId"`
	Tick      uint64        `json:"tick"`
	Time      time.Time     `json:"time"`
	Duration  time.Duration `json:"duration"`
	Entities  int           `json:"entities"`
	Skipped   int           `json:"skipped"`
	Bytes     int           `json:"bytes"`
}
