package camera

import (
	"math"
	"testing"

	"github.com/Carmen-Shannon/oxy-wavefront/common"
)

func TestCameraToWorldPlacesEye(t *testing.T) {
	ctrl := NewOrbitController(WithRadius(3))
	c := NewCamera(WithController(ctrl), WithAspect(1))

	m := c.CameraToWorld()
	if got := common.TransformPoint(m[:], common.Vec3{}); !got.ApproxEqual(common.Vec3{0, 0, 3}, 1e-5) {
		t.Errorf("got eye %v, expected (0, 0, 3)", got)
	}

	u := c.Uniform()
	origin, dir := u.Ray([2]float32{0, 0})
	if !dir.ApproxEqual(common.Vec3{0, 0, -1}, 1e-4) {
		t.Errorf("got center direction %v, expected (0, 0, -1)", dir)
	}
	if !origin.ApproxEqual(common.Vec3{0, 0, 3 - c.Near()}, 1e-4) {
		t.Errorf("got origin %v, expected on the near plane", origin)
	}

	// the top edge of the image leans up by half the field of view
	_, top := u.Ray([2]float32{0, 1})
	angle := math.Atan2(float64(top[1]), float64(-top[2]))
	if d := angle - float64(c.Fov())/2; d > 1e-4 || d < -1e-4 {
		t.Errorf("got top edge angle %v, expected %v", angle, c.Fov()/2)
	}
}

func TestUpdateReportsChanges(t *testing.T) {
	ctrl := NewOrbitController()
	c := NewCamera(WithController(ctrl))

	if c.Update() {
		t.Error("got change on a fresh camera, expected none")
	}
	ctrl.Orbit(1, 0)
	if !c.Update() {
		t.Error("expected a change after orbiting")
	}
	if c.Update() {
		t.Error("got a second change without movement")
	}
	c.SetAspect(2)
	if !c.Update() {
		t.Error("expected a change after setting the aspect ratio")
	}
	if got := c.Aspect(); got != 2 {
		t.Errorf("got aspect %v, expected 2", got)
	}
}

func TestControllerLimits(t *testing.T) {
	ctrl := NewOrbitController(WithRadius(2), WithRadiusLimits(1, 4), WithZoomSpeed(1))

	ctrl.Zoom(10)
	if got := ctrl.Radius(); got != 1 {
		t.Errorf("got radius %v, expected 1", got)
	}
	ctrl.Zoom(-10)
	if got := ctrl.Radius(); got != 4 {
		t.Errorf("got radius %v, expected 4", got)
	}

	for range 1000 {
		ctrl.Orbit(0, 1)
	}
	if got := ctrl.Elevation(); got >= math.Pi/2 {
		t.Errorf("got elevation %v, expected below the pole", got)
	}
	if got := ctrl.Position().Subtract(ctrl.Target()).Length(); math.Abs(float64(got-4)) > 1e-4 {
		t.Errorf("got eye distance %v, expected 4", got)
	}
}

func TestPanMovesTargetAndEye(t *testing.T) {
	ctrl := NewOrbitController(WithRadius(3), WithPanSpeed(1))
	before := ctrl.Version()
	ctrl.Pan(1, 0)

	if got := ctrl.Target(); !got.ApproxEqual(common.Vec3{1, 0, 0}, 1e-5) {
		t.Errorf("got target %v, expected (1, 0, 0)", got)
	}
	if got := ctrl.Position(); !got.ApproxEqual(common.Vec3{1, 0, 3}, 1e-5) {
		t.Errorf("got eye %v, expected (1, 0, 3)", got)
	}
	if ctrl.Version() == before {
		t.Error("pan did not bump the version")
	}
}
