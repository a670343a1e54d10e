package transform

import (
	"testing"

	"github.com/golang/geo/r3"
	"go.viam.com/test"
)

func identityProjector(t *testing.T) *Projector {
	t.Helper()
	cm, err := NewCameraMatrix([9]float64{1, 0, 0, 0, 1, 0, 0, 0, 1})
	test.That(t, err, test.ShouldBeNil)
	rt, err := NewRigidTransform([16]float64{1, 0, 0, 0, 0, 1, 0, 0, 0, 0, 1, 0, 0, 0, 0, 1})
	test.That(t, err, test.ShouldBeNil)
	return NewProjector(cm, rt, rt)
}

func TestProjectorRoundTripIdentity(t *testing.T) {
	proj := identityProjector(t)

	p := r3.Vector{X: 1, Y: 2, Z: 3}
	u, v, depth := proj.LidarToCamera(p)
	test.That(t, u, test.ShouldAlmostEqual, 1.0/3.0, 1e-9)
	test.That(t, v, test.ShouldAlmostEqual, 2.0/3.0, 1e-9)
	test.That(t, depth, test.ShouldAlmostEqual, 3, 1e-9)

	back := proj.CameraToLidar(u, v, depth)
	test.That(t, back.X, test.ShouldAlmostEqual, p.X, 1e-9)
	test.That(t, back.Y, test.ShouldAlmostEqual, p.Y, 1e-9)
	test.That(t, back.Z, test.ShouldAlmostEqual, p.Z, 1e-9)
}

func TestProjectorRoundTripArbitrary(t *testing.T) {
	cm, err := NewCameraMatrix([9]float64{
		1, 2, 3,
		0, 1, 4,
		5, 6, 0,
	})
	test.That(t, err, test.ShouldBeNil)

	l2c, err := NewRigidTransform([16]float64{
		0, -1, 0, 0.5,
		1, 0, 0, -1.0,
		0, 0, 1, 2.0,
		0, 0, 0, 1,
	})
	test.That(t, err, test.ShouldBeNil)

	w2c, err := NewRigidTransform([16]float64{1, 0, 0, 0, 0, 1, 0, 0, 0, 0, 1, 0, 0, 0, 0, 1})
	test.That(t, err, test.ShouldBeNil)

	proj := NewProjector(cm, l2c, w2c)

	p := r3.Vector{X: 1, Y: 2, Z: 3}
	u, v, depth := proj.LidarToCamera(p)
	back := proj.CameraToLidar(u, v, depth)
	test.That(t, back.X, test.ShouldAlmostEqual, p.X, 1e-9)
	test.That(t, back.Y, test.ShouldAlmostEqual, p.Y, 1e-9)
	test.That(t, back.Z, test.ShouldAlmostEqual, p.Z, 1e-9)
}

func TestProjectorLidarToWorld(t *testing.T) {
	cm, err := NewCameraMatrix([9]float64{1, 0, 0, 0, 1, 0, 0, 0, 1})
	test.That(t, err, test.ShouldBeNil)

	l2c, err := NewRigidTransform([16]float64{1, 0, 0, 0, 0, 1, 0, 0, 0, 0, 1, 0, 0, 0, 0, 1})
	test.That(t, err, test.ShouldBeNil)

	// the camera sits one unit above the world origin along z
	w2c, err := NewRigidTransform([16]float64{
		1, 0, 0, 0,
		0, 1, 0, 0,
		0, 0, 1, 1,
		0, 0, 0, 1,
	})
	test.That(t, err, test.ShouldBeNil)

	proj := NewProjector(cm, l2c, w2c)

	world := proj.LidarToWorld(r3.Vector{X: 1, Y: 2, Z: 3})
	test.That(t, world.X, test.ShouldAlmostEqual, 1, 1e-9)
	test.That(t, world.Y, test.ShouldAlmostEqual, 2, 1e-9)
	test.That(t, world.Z, test.ShouldAlmostEqual, 2, 1e-9)
}

func TestProjectorAccessors(t *testing.T) {
	proj := identityProjector(t)
	test.That(t, proj.Intrinsic().Elements()[0], test.ShouldEqual, 1.0)
	test.That(t, proj.LidarToCameraTransform().Elements()[15], test.ShouldEqual, 1.0)
}
