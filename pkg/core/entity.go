// pkg/core/entity.go
package core

import "fmt"

// EntityKind is the closed set of object kinds that can be tracked.
// It is decided once when the object is tracked.
type EntityKind uint8

const (
	KindMeshWithSkeleton EntityKind = iota + 1
	KindCamera
)

func (k EntityKind) String() string {
	switch k {
	case KindMeshWithSkeleton:
		return "mesh"
	case KindCamera:
		return "camera"
	default:
		return fmt.Sprintf("EntityKind(%d)", uint8(k))
	}
}

// TrackedEntity is a registry entry pointing at a host scene object.
type TrackedEntity struct {
	ID          string     `json:"id"`
	Kind        EntityKind `json:"kind"`
	SubjectName string     `json:"subjectName"`
	Active      bool       `json:"active"`
}

// Subject returns the name the peer knows this entity by.
func (e TrackedEntity) Subject() string {
	if e.SubjectName != "" {
		return e.SubjectName
	}
	return e.ID
}
