// Package transform implements the invertible matrix transforms that relate
// the lidar, camera, and world coordinate frames of one sensor instance.
package transform

import (
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// RigidTransform is an invertible 4x4 homogeneous transform between two 3D
// frames. Construction precomputes the full inverse along with the inverses of
// the rotation block and translation, so projections never invert per point.
type RigidTransform struct {
	matrix    [16]float64
	matrixInv [16]float64
	rotInv    [9]float64
	transInv  r3.Vector
}

// NewRigidTransform builds a RigidTransform from 16 row-major elements. It
// fails if the matrix or its top-left rotation block cannot be inverted.
func NewRigidTransform(elements [16]float64) (*RigidTransform, error) {
	var mInv mat.Dense
	if err := mInv.Inverse(mat.NewDense(4, 4, elements[:])); err != nil {
		return nil, errors.Wrapf(err, "failed to invert transform matrix %v", elements)
	}

	rot := [9]float64{
		elements[0], elements[1], elements[2],
		elements[4], elements[5], elements[6],
		elements[8], elements[9], elements[10],
	}
	var rotInv mat.Dense
	if err := rotInv.Inverse(mat.NewDense(3, 3, rot[:])); err != nil {
		return nil, errors.Wrapf(err, "failed to invert rotation matrix %v", rot)
	}

	rt := &RigidTransform{matrix: elements}
	rt.transInv = r3.Vector{X: elements[3], Y: elements[7], Z: elements[11]}.Mul(-1)
	copy(rt.matrixInv[:], mInv.RawMatrix().Data)
	copy(rt.rotInv[:], rotInv.RawMatrix().Data)
	return rt, nil
}

// Transform applies the forward transform to a point.
func (rt *RigidTransform) Transform(p r3.Vector) r3.Vector {
	return applyHomogeneous(rt.matrix, p)
}

// TransformInverse applies the inverse transform to a point.
func (rt *RigidTransform) TransformInverse(p r3.Vector) r3.Vector {
	return applyHomogeneous(rt.matrixInv, p)
}

// Elements returns the forward matrix in row-major order.
func (rt *RigidTransform) Elements() [16]float64 {
	return rt.matrix
}

// CameraMatrix is an invertible 3x3 pinhole camera intrinsic.
type CameraMatrix struct {
	matrix [9]float64
	inv    [9]float64
}

// NewCameraMatrix builds a CameraMatrix from 9 row-major elements. It fails
// if the matrix cannot be inverted.
func NewCameraMatrix(elements [9]float64) (*CameraMatrix, error) {
	var mInv mat.Dense
	if err := mInv.Inverse(mat.NewDense(3, 3, elements[:])); err != nil {
		return nil, errors.Wrapf(err, "failed to invert camera matrix %v", elements)
	}
	cm := &CameraMatrix{matrix: elements}
	copy(cm.inv[:], mInv.RawMatrix().Data)
	return cm, nil
}

// Project applies the intrinsic to a camera-frame point and perspective
// divides, returning the pixel coordinate and the projected depth.
func (cm *CameraMatrix) Project(p r3.Vector) (u, v, depth float64) {
	h := applyRotation(cm.matrix, p)
	return h.X / h.Z, h.Y / h.Z, h.Z
}

// Unproject recovers the camera-frame point imaged at pixel (u, v) with
// depth z.
func (cm *CameraMatrix) Unproject(u, v, z float64) r3.Vector {
	return applyRotation(cm.inv, r3.Vector{X: u, Y: v, Z: 1}.Mul(z))
}

// Elements returns the intrinsic matrix in row-major order.
func (cm *CameraMatrix) Elements() [9]float64 {
	return cm.matrix
}

func applyHomogeneous(m [16]float64, p r3.Vector) r3.Vector {
	return r3.Vector{
		X: m[0]*p.X + m[1]*p.Y + m[2]*p.Z + m[3],
		Y: m[4]*p.X + m[5]*p.Y + m[6]*p.Z + m[7],
		Z: m[8]*p.X + m[9]*p.Y + m[10]*p.Z + m[11],
	}
}

func applyRotation(m [9]float64, p r3.Vector) r3.Vector {
	return r3.Vector{
		X: m[0]*p.X + m[1]*p.Y + m[2]*p.Z,
		Y: m[3]*p.X + m[4]*p.Y + m[5]*p.Z,
		Z: m[6]*p.X + m[7]*p.Y + m[8]*p.Z,
	}
}
