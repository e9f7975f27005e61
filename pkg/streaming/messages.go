package streaming

import (
	"encoding/json"
	"fmt"

	"github.com/uell/livelink/pkg/core"
)

// Message type constants of the streaming protocol.
const (
	TypeStartSession = "start_session"
	TypeEndSession   = "end_session"
	TypeSkeleton     = "skeleton"
	TypeCamera       = "camera"
	TypeTick         = "tick"
)

// Envelope wraps every message, on the JSON broadcast encoding and on the
// recorder WebSocket.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// AckMessage is the recorder's acknowledgement response.
type AckMessage struct {
	Type string `json:"type"` // always "ack"
	For  string `json:"for"`  // the message type being acknowledged
}

// SkeletonPayload carries one skeletal sample.
type SkeletonPayload struct {
	SessionID uint              `json:"sessionId,omitempty"`
	Tick      uint64            `json:"tick,omitempty"`
	Subject   string            `json:"subject"`
	Bones     []core.BoneSample `json:"bones"`
}

// CameraPayload carries one camera transform.
type CameraPayload struct {
	SessionID uint            `json:"sessionId,omitempty"`
	Tick      uint64          `json:"tick,omitempty"`
	Subject   string          `json:"subject"`
	Position  core.Vec3       `json:"position"`
	Rotation  core.Quaternion `json:"rotation"`
}

// NewEnvelope marshals payload under the given type.
func NewEnvelope(msgType string, payload any) (Envelope, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("marshal %s payload: %w", msgType, err)
	}
	return Envelope{Type: msgType, Payload: raw}, nil
}

// SampleEnvelope builds the skeleton or camera envelope for a sample.
func SampleEnvelope(sessionID uint, tick uint64, subject string, s core.Sample) (Envelope, error) {
	switch v := s.(type) {
	case core.SkeletalSample:
		return NewEnvelope(TypeSkeleton, SkeletonPayload{
			SessionID: sessionID, Tick: tick, Subject: subject, Bones: v.Bones,
		})
	case core.CameraTransform:
		return NewEnvelope(TypeCamera, CameraPayload{
			SessionID: sessionID, Tick: tick, Subject: subject,
			Position: v.Position, Rotation: v.Rotation,
		})
	default:
		return Envelope{}, fmt.Errorf("unsupported sample %T", s)
	}
}
