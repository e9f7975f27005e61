package control

import (
	"bufio"
	"context"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uell/livelink/internal/broadcast"
	"github.com/uell/livelink/internal/dispatcher"
	"github.com/uell/livelink/internal/lifecycle"
	"github.com/uell/livelink/internal/logging"
	"github.com/uell/livelink/internal/registry"
	"github.com/uell/livelink/internal/sampler"
	"github.com/uell/livelink/internal/scene/ecsscene"
	"github.com/uell/livelink/internal/session"
	"github.com/uell/livelink/pkg/core"
	"github.com/uell/livelink/pkg/hostbridge"
	"github.com/uell/livelink/pkg/hostscene"
)

type sceneFixture struct {
	scene    *ecsscene.Scene
	registry *registry.Registry
	svc      *Service
	bridge   *hostbridge.Bridge

	addr chan net.Addr
}

// newSceneFixture starts from an empty scene: everything streamed has to
// come in over the bridge.
func newSceneFixture(t *testing.T) *sceneFixture {
	t.Helper()
	scene := ecsscene.New()
	reg := registry.New(scene, nil)
	f := &sceneFixture{scene: scene, registry: reg, addr: make(chan net.Addr, 1)}

	lc := lifecycle.New(func() (lifecycle.Server, error) {
		srv, err := broadcast.New(broadcast.Config{
			Host:          "127.0.0.1",
			AcceptTimeout: 10 * time.Millisecond,
			WriteTimeout:  time.Second,
		}, broadcast.Dependencies{
			Registry: reg,
			Sampler:  sampler.New(scene, reg),
			Pacer:    broadcast.NewFramePacer(scene.Frames()),
			Session:  session.NewContext(),
		})
		if err != nil {
			return nil, err
		}
		return &addrServer{Server: srv, addr: f.addr}, nil
	}, nil)
	t.Cleanup(func() {
		lc.Stop()
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = lc.Wait(ctx)
	})

	f.svc = New(Dependencies{Scene: scene, Registry: reg, Lifecycle: lc, Editor: scene, SceneQueue: 16})
	d, err := dispatcher.New(logging.NewDispatcherLogger(zerolog.Nop()))
	require.NoError(t, err)
	t.Cleanup(d.Close)
	f.svc.RegisterHandlers(d)
	f.bridge = hostbridge.New(d, "test")
	return f
}

// addrServer reports the bound address once Listen succeeds.
type addrServer struct {
	*broadcast.Server
	addr chan net.Addr
}

func (s *addrServer) Listen() error {
	if err := s.Server.Listen(); err != nil {
		return err
	}
	select {
	case s.addr <- s.Server.Addr():
	default:
	}
	return nil
}

func (f *sceneFixture) send(t *testing.T, line string) string {
	t.Helper()
	reply, ok := f.bridge.Handle(line)
	require.True(t, ok, line)
	return reply
}

func TestSceneAdd(t *testing.T) {
	f := newSceneFixture(t)

	assert.Equal(t, `["ok", ":SCENE:ADD:", "Arm01"]`, f.send(t, ":SCENE:ADD: Arm01 MESH"))
	assert.Equal(t, `["ok", ":SCENE:ADD:", "Arm01Rig"]`, f.send(t, ":SCENE:ADD: Arm01Rig ARMATURE Arm01 Hand Elbow"))
	f.send(t, ":SCENE:ADD: Cam camera 0 0 1.7 1 0 0 0")
	f.send(t, ":SCENE:ADD: Light OTHER")
	f.send(t, ":SCENE:ADD: Loose ARMATURE - Root")

	obj, err := f.scene.GetObjectByIdentifier("Arm01")
	require.NoError(t, err)
	children := f.scene.GetChildren(obj)
	require.Len(t, children, 1)
	assert.Equal(t, "Arm01Rig", children[0].ID())

	cam, err := f.scene.GetObjectByIdentifier("Cam")
	require.NoError(t, err)
	tr, err := f.scene.GetTransform(cam)
	require.NoError(t, err)
	assert.Equal(t, 1.7, tr.Location.Z)
	assert.Equal(t, core.IdentityRotation, tr.Rotation)

	light, err := f.scene.GetObjectByIdentifier("Light")
	require.NoError(t, err)
	assert.Equal(t, hostscene.KindOther, f.scene.GetObjectKind(light))

	tests := []struct {
		name string
		line string
	}{
		{"missing kind", ":SCENE:ADD: Solo"},
		{"unknown kind", ":SCENE:ADD: Lamp LIGHT"},
		{"duplicate", ":SCENE:ADD: Arm01 MESH"},
		{"armature without bones", ":SCENE:ADD: Rig2 ARMATURE -"},
		{"missing parent", ":SCENE:ADD: Rig3 ARMATURE Nowhere Hip"},
		{"short camera transform", ":SCENE:ADD: Cam2 CAMERA 0 0 1"},
		{"bad number", ":SCENE:ADD: Cam3 CAMERA 0 0 x 1 0 0 0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.True(t, strings.HasPrefix(f.send(t, tt.line), `["error", ":SCENE:ADD:"`))
		})
	}
}

func TestSceneDelete(t *testing.T) {
	f := newSceneFixture(t)
	f.send(t, ":SCENE:ADD: Arm01 MESH")
	f.send(t, ":SCENE:ADD: Prop MESH")

	assert.Equal(t, `["ok", ":SCENE:DELETE:", "2"]`, f.send(t, ":SCENE:DELETE: Arm01 Prop"))
	_, err := f.scene.GetObjectByIdentifier("Prop")
	assert.ErrorIs(t, err, hostscene.ErrNotFound)

	assert.True(t, strings.HasPrefix(f.send(t, ":SCENE:DELETE:"), `["error"`))
}

func TestScenePushesAreQueuedInOrder(t *testing.T) {
	f := newSceneFixture(t)
	f.send(t, ":SCENE:ADD: Rig ARMATURE - Hand")
	f.send(t, ":SCENE:ADD: Cam CAMERA")

	assert.Equal(t, `["ok", ":POSE:", "queued"]`, f.send(t, ":POSE: Rig Hand 1 2 3 1 1 1 1 0 0 0"))
	f.send(t, ":POSE: Rig Hand 4 5 6 2 2 2 0 1 0 0")
	f.send(t, ":TRANSFORM: Cam 0 -5 1.7 0.7071 0.7071 0 0")
	f.send(t, ":FRAME:")

	select {
	case frame := <-f.scene.Frames():
		assert.Equal(t, uint64(1), frame)
	case <-time.After(time.Second):
		t.Fatal(":FRAME: never stepped the scene")
	}

	// the frame step ran after both poses
	rig, err := f.scene.GetObjectByIdentifier("Rig")
	require.NoError(t, err)
	bones, err := f.scene.GetCurrentPoseBones(rig)
	require.NoError(t, err)
	require.Len(t, bones, 1)
	assert.Equal(t, core.Vec3{X: 4, Y: 5, Z: 6}, bones[0].Location)
	assert.Equal(t, core.Vec3{X: 2, Y: 2, Z: 2}, bones[0].Scale)

	cam, err := f.scene.GetObjectByIdentifier("Cam")
	require.NoError(t, err)
	tr, err := f.scene.GetTransform(cam)
	require.NoError(t, err)
	assert.Equal(t, -5.0, tr.Location.Y)
}

func TestScenePushUsage(t *testing.T) {
	f := newSceneFixture(t)

	tests := []struct {
		name string
		cmd  string
		args []string
	}{
		{"pose too short", ":POSE:", []string{"Rig", "Hand", "1", "2"}},
		{"pose bad number", ":POSE:", []string{"Rig", "Hand", "1", "2", "3", "1", "1", "1", "w", "0", "0", "0"}},
		{"transform too short", ":TRANSFORM:", []string{"Cam", "0"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := f.svc
			var err error
			switch tt.cmd {
			case ":POSE:":
				_, err = svc.handlePose(dispatcher.Event{Command: tt.cmd, Args: tt.args})
			default:
				_, err = svc.handleTransform(dispatcher.Event{Command: tt.cmd, Args: tt.args})
			}
			assert.Error(t, err)
		})
	}
}

func TestSceneCommandsNeedEditor(t *testing.T) {
	_, d := newService(t)
	assert.False(t, d.HasHandler(":POSE:"))
	assert.False(t, d.HasHandler(":SCENE:ADD:"))
}

func TestBridge_PopulateTrackAndStream(t *testing.T) {
	f := newSceneFixture(t)

	f.send(t, ":SCENE:ADD: Arm01 MESH")
	f.send(t, ":SCENE:ADD: Arm01Rig ARMATURE Arm01 Hand Elbow")
	f.send(t, ":SCENE:ADD: Cam CAMERA")
	assert.Equal(t, `["ok", ":TRACK:", "2"]`, f.send(t, ":TRACK: Arm01 Cam"))
	f.send(t, ":SUBJECT: Cam MainCam")
	assert.Equal(t, `["ok", ":TOGGLE:", "running"]`, f.send(t, ":TOGGLE:"))

	var addr net.Addr
	select {
	case addr = <-f.addr:
	case <-time.After(2 * time.Second):
		t.Fatal("server never listened")
	}

	conn, err := net.Dial("tcp", addr.String())
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	r := bufio.NewReader(conn)

	f.send(t, ":POSE: Arm01Rig Hand 1.5 0 0 1 1 1 1 0 0 0")
	f.send(t, ":TRANSFORM: Cam 0 -5 1.7 1 0 0 0")
	f.send(t, ":FRAME:")

	want := []string{
		"Hand <1.500000,0.000000,0.000000> <1.000000,1.000000,1.000000> <1.000000,0.000000,0.000000,0.000000>\n",
		"Elbow <0.000000,0.000000,0.000000> <1.000000,1.000000,1.000000> <1.000000,0.000000,0.000000,0.000000>\n",
		"MainCam <0.000000,-5.000000,1.700000> <1.000000,1.000000,1.000000> <1.000000,0.000000,0.000000,0.000000>\n",
	}
	for _, w := range want {
		line, err := r.ReadString('\n')
		require.NoError(t, err)
		assert.Equal(t, w, line)
	}

	// one frame, one pass
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(50*time.Millisecond)))
	_, err = r.ReadString('\n')
	assert.Error(t, err)

	assert.Equal(t, `["ok", ":STOP:", "stopped"]`, f.send(t, ":STOP:"))
}
