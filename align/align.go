// Package align pairs lidar point clouds with camera video frames so every
// frame index carries one cloud and one image per camera.
package align

import (
	"context"
	"image"

	"github.com/zmsbruce/rm-radar-to-mmdet3d/pointcloud"
)

// Frame is one aligned time step: one image slot per camera and an optional
// lidar cloud. A nil entry means the source had nothing usable for this
// index.
type Frame struct {
	Index  int
	Images []image.Image
	Cloud  pointcloud.PointCloud
}

// FrameIterator yields aligned frames in index order. Next returns io.EOF
// after the last frame.
type FrameIterator interface {
	Next(ctx context.Context) (*Frame, error)
	Close() error
}

// Aligner produces aligned frame sequences. The frame and camera counts are
// fixed before iteration starts, and Frames may be called more than once to
// replay the sequence.
type Aligner interface {
	FrameCount() int
	CameraCount() int
	Frames(ctx context.Context) (FrameIterator, error)
}
