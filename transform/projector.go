package transform

import "github.com/golang/geo/r3"

// Projector maps points between the lidar frame, one camera's pixel raster,
// and the world frame. It is pure and safe for concurrent use.
type Projector struct {
	intrinsic     *CameraMatrix
	lidarToCamera *RigidTransform
	worldToCamera *RigidTransform
}

// NewProjector combines a camera intrinsic with the lidar to camera and world
// to camera extrinsics of one sensor instance.
func NewProjector(intrinsic *CameraMatrix, lidarToCamera, worldToCamera *RigidTransform) *Projector {
	return &Projector{
		intrinsic:     intrinsic,
		lidarToCamera: lidarToCamera,
		worldToCamera: worldToCamera,
	}
}

// LidarToCamera projects a lidar-frame point onto the camera raster,
// returning the pixel coordinate and the projected depth.
func (p *Projector) LidarToCamera(pt r3.Vector) (u, v, depth float64) {
	return p.intrinsic.Project(p.lidarToCamera.Transform(pt))
}

// CameraToLidar recovers the lidar-frame point imaged at pixel (u, v) with
// depth z. It is the algebraic inverse of LidarToCamera.
func (p *Projector) CameraToLidar(u, v, z float64) r3.Vector {
	cam := p.intrinsic.Unproject(u, v, z)
	return applyRotation(p.lidarToCamera.rotInv, cam.Add(p.lidarToCamera.transInv))
}

// LidarToWorld maps a lidar-frame point into the world frame by composing the
// lidar to camera extrinsic with the inverse of the world to camera one.
func (p *Projector) LidarToWorld(pt r3.Vector) r3.Vector {
	return p.worldToCamera.TransformInverse(p.lidarToCamera.Transform(pt))
}

// Intrinsic returns the camera intrinsic matrix.
func (p *Projector) Intrinsic() *CameraMatrix {
	return p.intrinsic
}

// LidarToCameraTransform returns the lidar to camera extrinsic.
func (p *Projector) LidarToCameraTransform() *RigidTransform {
	return p.lidarToCamera
}
