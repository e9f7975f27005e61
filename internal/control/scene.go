package control

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/uell/livelink/internal/dispatcher"
	"github.com/uell/livelink/pkg/core"
	"github.com/uell/livelink/pkg/hostscene"
)

// SceneQueueSize bounds the pose/transform/frame lane.
const SceneQueueSize = 4096

// sceneLane keeps pose pushes and frame steps in host order.
const sceneLane = "scene"

// SceneEditor is the scene the host plugin mirrors its objects into.
type SceneEditor interface {
	AddMesh(id string) error
	AddArmature(id, parent string, bones ...string) error
	AddCamera(id string, t hostscene.Transform) error
	AddOther(id, parent string) error
	Delete(id string)
	SetBone(armature string, bone hostscene.PoseBone) error
	SetTransform(id string, t hostscene.Transform) error
	Step() uint64
}

// registerSceneHandlers binds the scene feed. Structure edits reply
// synchronously; pose, transform and frame pushes are queued on one lane
// so a frame step never overtakes the poses sent before it.
func (s *Service) registerSceneHandlers(d *dispatcher.Dispatcher) {
	d.Register(":SCENE:ADD:", s.handleSceneAdd, dispatcher.Logged())
	d.Register(":SCENE:DELETE:", s.handleSceneDelete, dispatcher.Logged())

	queue := s.deps.SceneQueue
	if queue <= 0 {
		queue = SceneQueueSize
	}
	lane := []dispatcher.Option{dispatcher.Buffered(queue), dispatcher.Blocking(), dispatcher.Lane(sceneLane)}
	d.Register(":POSE:", s.handlePose, lane...)
	d.Register(":TRANSFORM:", s.handleTransform, lane...)
	d.Register(":FRAME:", s.handleFrame, lane...)
}

// handleSceneAdd creates one object:
//
//	:SCENE:ADD: <id> MESH
//	:SCENE:ADD: <id> ARMATURE <parent|-> <bone>...
//	:SCENE:ADD: <id> CAMERA [x y z qw qx qy qz]
//	:SCENE:ADD: <id> OTHER [parent]
func (s *Service) handleSceneAdd(e dispatcher.Event) (any, error) {
	if len(e.Args) < 2 {
		return nil, errors.New("usage: :SCENE:ADD: <id> <MESH|ARMATURE|CAMERA|OTHER> ...")
	}
	id, rest := e.Args[0], e.Args[2:]
	ed := s.deps.Editor

	var err error
	switch strings.ToUpper(e.Args[1]) {
	case "MESH":
		err = ed.AddMesh(id)
	case "ARMATURE":
		if len(rest) < 2 {
			return nil, errors.New("usage: :SCENE:ADD: <id> ARMATURE <parent|-> <bone>...")
		}
		err = ed.AddArmature(id, parentArg(rest[0]), rest[1:]...)
	case "CAMERA":
		t := hostscene.Transform{Rotation: core.IdentityRotation}
		if len(rest) > 0 {
			if t, err = parseTransform(rest); err != nil {
				return nil, err
			}
		}
		err = ed.AddCamera(id, t)
	case "OTHER":
		parent := ""
		if len(rest) > 0 {
			parent = parentArg(rest[0])
		}
		err = ed.AddOther(id, parent)
	default:
		return nil, fmt.Errorf("unknown object kind %q", e.Args[1])
	}
	if err != nil {
		return nil, err
	}
	return id, nil
}

// handleSceneDelete removes objects. Tracked entries stay in the registry
// and are skipped until the object comes back.
func (s *Service) handleSceneDelete(e dispatcher.Event) (any, error) {
	if len(e.Args) == 0 {
		return nil, errors.New("no objects given")
	}
	for _, id := range e.Args {
		s.deps.Editor.Delete(id)
	}
	return len(e.Args), nil
}

// handlePose sets one bone: :POSE: <armature> <bone> x y z sx sy sz qw qx qy qz
func (s *Service) handlePose(e dispatcher.Event) (any, error) {
	if len(e.Args) != 12 {
		return nil, errors.New("usage: :POSE: <armature> <bone> x y z sx sy sz qw qx qy qz")
	}
	f, err := parseFloats(e.Args[2:])
	if err != nil {
		return nil, err
	}
	return nil, s.deps.Editor.SetBone(e.Args[0], hostscene.PoseBone{
		Name:     e.Args[1],
		Location: core.Vec3{X: f[0], Y: f[1], Z: f[2]},
		Scale:    core.Vec3{X: f[3], Y: f[4], Z: f[5]},
		Rotation: core.Quaternion{W: f[6], X: f[7], Y: f[8], Z: f[9]},
	})
}

// handleTransform sets a world transform: :TRANSFORM: <id> x y z qw qx qy qz
func (s *Service) handleTransform(e dispatcher.Event) (any, error) {
	if len(e.Args) != 8 {
		return nil, errors.New("usage: :TRANSFORM: <id> x y z qw qx qy qz")
	}
	t, err := parseTransform(e.Args[1:])
	if err != nil {
		return nil, err
	}
	return nil, s.deps.Editor.SetTransform(e.Args[0], t)
}

// handleFrame marks the end of a host frame, releasing a frame-paced tick.
func (s *Service) handleFrame(dispatcher.Event) (any, error) {
	s.deps.Editor.Step()
	return nil, nil
}

func parentArg(arg string) string {
	if arg == "-" {
		return ""
	}
	return arg
}

func parseTransform(args []string) (hostscene.Transform, error) {
	if len(args) != 7 {
		return hostscene.Transform{}, errors.New("transform needs x y z qw qx qy qz")
	}
	f, err := parseFloats(args)
	if err != nil {
		return hostscene.Transform{}, err
	}
	return hostscene.Transform{
		Location: core.Vec3{X: f[0], Y: f[1], Z: f[2]},
		Rotation: core.Quaternion{W: f[3], X: f[4], Y: f[5], Z: f[6]},
	}, nil
}

func parseFloats(args []string) ([]float64, error) {
	out := make([]float64, len(args))
	for i, a := range args {
		f, err := strconv.ParseFloat(a, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid number %q", a)
		}
		out[i] = f
	}
	return out, nil
}
