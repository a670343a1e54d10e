// Package pointcloud implements the in-memory lidar cloud and its PCD file
// codec. Engine coordinates are millimeters; PCD files on disk hold meters.
package pointcloud

import (
	"math"

	"github.com/golang/geo/r3"
)

// PointCloud is an unordered collection of lidar points.
type PointCloud []r3.Vector

// Size returns the number of points in the cloud.
func (pc PointCloud) Size() int {
	return len(pc)
}

// Scale returns a copy of the cloud with every coordinate multiplied by
// factor.
func (pc PointCloud) Scale(factor float64) PointCloud {
	out := make(PointCloud, len(pc))
	for i, p := range pc {
		out[i] = p.Mul(factor)
	}
	return out
}

// MinMax returns the axis-aligned bounding box of the cloud. Both corners
// are zero for an empty cloud.
func (pc PointCloud) MinMax() (r3.Vector, r3.Vector) {
	if len(pc) == 0 {
		return r3.Vector{}, r3.Vector{}
	}
	min, max := pc[0], pc[0]
	for _, p := range pc[1:] {
		min.X = math.Min(min.X, p.X)
		min.Y = math.Min(min.Y, p.Y)
		min.Z = math.Min(min.Z, p.Z)
		max.X = math.Max(max.X, p.X)
		max.Y = math.Max(max.Y, p.Y)
		max.Z = math.Max(max.Z, p.Z)
	}
	return min, max
}

// IsValid reports whether every component of p is finite and non-zero. Lidar
// returns with a zero or non-finite component carry no range information and
// are treated as absent.
func IsValid(p r3.Vector) bool {
	return isNormal(p.X) && isNormal(p.Y) && isNormal(p.Z)
}

func isNormal(f float64) bool {
	return f != 0 && !math.IsNaN(f) && !math.IsInf(f, 0)
}
