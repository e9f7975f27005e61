package ecsscene

import (
	"github.com/uell/livelink/pkg/hostscene"
	"github.com/yohamta/donburi"
)

type ObjectData struct {
	ID       string
	Kind     hostscene.ObjectKind
	Parent   string
	Children []string
}

type PoseData struct {
	Bones []hostscene.PoseBone
}

type TransformData struct {
	hostscene.Transform
}

var (
	Object    = donburi.NewComponentType[ObjectData]()
	Pose      = donburi.NewComponentType[PoseData]()
	Transform = donburi.NewComponentType[TransformData]()
)
