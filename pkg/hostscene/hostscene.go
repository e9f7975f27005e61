// Package hostscene describes the scene access the tracking core needs from
// the host 3D application. The host side implements Scene; the core never
// reaches into the scene any other way.
package hostscene

import (
	"errors"

	"github.com/uell/livelink/pkg/core"
)

// ErrNotFound is returned when an identifier no longer names a scene object.
var ErrNotFound = errors.New("object not found")

// ObjectKind is the host's classification of a scene object.
type ObjectKind uint8

const (
	KindOther ObjectKind = iota
	KindMesh
	KindArmature
	KindCamera
)

func (k ObjectKind) String() string {
	switch k {
	case KindMesh:
		return "MESH"
	case KindArmature:
		return "ARMATURE"
	case KindCamera:
		return "CAMERA"
	default:
		return "OTHER"
	}
}

// Object is an opaque handle to a host scene object.
type Object interface {
	ID() string
}

// PoseBone is the current local pose of one armature bone.
type PoseBone struct {
	Name     string
	Location core.Vec3
	Scale    core.Vec3
	Rotation core.Quaternion
}

// Transform is the world transform of an object.
type Transform struct {
	Location core.Vec3
	Rotation core.Quaternion
}

// Scene is implemented by the host application.
type Scene interface {
	GetObjectByIdentifier(id string) (Object, error)
	GetChildren(obj Object) []Object
	GetObjectKind(obj Object) ObjectKind
	// GetCurrentPoseBones returns bones in canonical skeleton order.
	GetCurrentPoseBones(armature Object) ([]PoseBone, error)
	GetTransform(obj Object) (Transform, error)
}
