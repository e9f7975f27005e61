// Package model holds the gorm table structs of the session store.
package model

import (
	"database/sql"
	"time"

	geom "github.com/peterstace/simplefeatures/geom"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/schema"
)

// DatabaseModels lists every table, in migration order.
var DatabaseModels = []any{
	&Session{},
	&BoneState{},
	&CameraState{},
	&TickStat{},
}

// PointZ is a 3D point stored as PostGIS geometry, or WKB in sqlite.
type PointZ struct {
	geom.Point
}

func NewPointZ(x, y, z float64) PointZ {
	return PointZ{geom.NewPoint(geom.Coordinates{
		XY:   geom.XY{X: x, Y: y},
		Z:    z,
		Type: geom.DimXYZ,
	})}
}

// XYZ returns the coordinates, zero for an empty point.
func (p PointZ) XYZ() (x, y, z float64) {
	c, ok := p.Coordinates()
	if !ok {
		return 0, 0, 0
	}
	return c.XY.X, c.XY.Y, c.Z
}

func (PointZ) GormDataType() string {
	return "geometry"
}

func (PointZ) GormDBDataType(db *gorm.DB, _ *schema.Field) string {
	if db.Dialector.Name() == "postgres" {
		return "geometry(PointZ)"
	}
	return "blob"
}

// Session is one accepted peer connection
type Session struct {
	ID        uint         `json:"id" gorm:"primarykey;autoIncrement;"`
	CreatedAt time.Time    `json:"createdAt"`
	Peer      string       `json:"peer" gorm:"size:64"`
	Port      int          `json:"port"`
	Encoding  string       `json:"encoding" gorm:"size:16"`
	StartTime time.Time    `json:"startTime" gorm:"index:idx_session_start_time"`
	EndTime   sql.NullTime `json:"endTime"`
	Ticks     uint64       `json:"ticks"`
	BytesSent uint64       `json:"bytesSent"`
}

func (*Session) TableName() string {
	return "sessions"
}

// BoneState is the local transform of one bone in one tick.
type BoneState struct {
	ID        uint      `json:"id" gorm:"primarykey;autoIncrement;"`
	SessionID uint      `json:"sessionId" gorm:"index:idx_bonestate_session_tick,priority:1"`
	Session   Session   `json:"-" gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;foreignkey:SessionID;"`
	Tick      uint64    `json:"tick" gorm:"index:idx_bonestate_session_tick,priority:2"`
	Time      time.Time `json:"time"`
	EntityID  string    `json:"entityId" gorm:"size:127"`
	Subject   string    `json:"subject" gorm:"size:127"`
	Bone      string    `json:"bone" gorm:"size:127"`
	BoneIndex uint16    `json:"boneIndex"`

	Position PointZ         `json:"position"`
	Scale    datatypes.JSON `json:"scale"`    // [sx, sy, sz]
	Rotation datatypes.JSON `json:"rotation"` // [w, x, y, z]
}

func (*BoneState) TableName() string {
	return "bone_states"
}

// CameraState is the world transform of a camera in one tick.
type CameraState struct {
	ID        uint      `json:"id" gorm:"primarykey;autoIncrement;"`
	SessionID uint      `json:"sessionId" gorm:"index:idx_camerastate_session_tick,priority:1"`
	Session   Session   `json:"-" gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;foreignkey:SessionID;"`
	Tick      uint64    `json:"tick" gorm:"index:idx_camerastate_session_tick,priority:2"`
	Time      time.Time `json:"time"`
	EntityID  string    `json:"entityId" gorm:"size:127"`
	Subject   string    `json:"subject" gorm:"size:127"`

	Position PointZ         `json:"position"`
	Rotation datatypes.JSON `json:"rotation"` // [w, x, y, z]
}

func (*CameraState) TableName() string {
	return "camera_states"
}

// TickStat summarizes one pass of the broadcast loop.
type TickStat struct {
	ID             uint      `json:"id" gorm:"primarykey;autoIncrement;"`
	SessionID      uint      `json:"sessionId" gorm:"index:idx_tickstat_session_id"`
	Session        Session   `json:"-" gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;foreignkey:SessionID;"`
	Tick           uint64    `json:"tick"`
	Time           time.Time `json:"time"`
	DurationMicros int64     `json:"durationMicros"`
	Entities       int       `json:"entities"`
	Skipped        int       `json:"skipped"`
	Bytes          int       `json:"bytes"`
}

func (*TickStat) TableName() string {
	return "tick_stats"
}
