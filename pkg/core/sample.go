// pkg/core/sample.go
package core

// Vec3 is a position or scale triple.
type Vec3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Quaternion is a rotation in (W, X, Y, Z) order.
type Quaternion struct {
	W float64 `json:"w"`
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// IdentityRotation is the no-rotation quaternion.
var IdentityRotation = Quaternion{W: 1}

// UnitScale is the scale sent for objects without their own scale channel.
var UnitScale = Vec3{X: 1, Y: 1, Z: 1}

// BoneSample is the local transform of one pose bone at sample time.
type BoneSample struct {
	Name     string     `json:"name"`
	Position Vec3       `json:"position"`
	Scale    Vec3       `json:"scale"`
	Rotation Quaternion `json:"rotation"`
}

// Sample is the result of sampling one tracked entity.
// Implemented by SkeletalSample and CameraTransform only.
type Sample interface {
	sample()
}

// SkeletalSample holds the bones of an armature in skeleton traversal order.
type SkeletalSample struct {
	Bones []BoneSample `json:"bones"`
}

// CameraTransform is the world transform of a camera object.
type CameraTransform struct {
	Position Vec3       `json:"position"`
	Rotation Quaternion `json:"rotation"`
}

func (SkeletalSample) sample()  {}
func (CameraTransform) sample() {}
