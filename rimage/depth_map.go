// Package rimage defines the depth raster used by the locating engine and
// helpers for reading and writing image files.
package rimage

import (
	"image"
	"math"
)

// DepthMap is a 2D raster of single-precision depth values. A zero value at a
// pixel means no depth has been observed there.
type DepthMap struct {
	width  int
	height int

	data []float32
}

// NewEmptyDepthMap returns an initialized DepthMap with all depth values at zero.
func NewEmptyDepthMap(width, height int) *DepthMap {
	return &DepthMap{
		width:  width,
		height: height,
		data:   make([]float32, width*height),
	}
}

func (dm *DepthMap) kxy(x, y int) int {
	return (y * dm.width) + x
}

// Width returns the width of the raster in pixels.
func (dm *DepthMap) Width() int {
	return dm.width
}

// Height returns the height of the raster in pixels.
func (dm *DepthMap) Height() int {
	return dm.height
}

// Bounds returns the pixel rectangle covered by the raster.
func (dm *DepthMap) Bounds() image.Rectangle {
	return image.Rect(0, 0, dm.width, dm.height)
}

// Contains returns whether or not a point is within bounds of the depth map.
func (dm *DepthMap) Contains(x, y int) bool {
	return x >= 0 && y >= 0 && x < dm.width && y < dm.height
}

// Get returns the depth at a given image.Point.
func (dm *DepthMap) Get(p image.Point) float32 {
	return dm.data[dm.kxy(p.X, p.Y)]
}

// GetDepth returns the depth at a given (x, y) coordinate.
func (dm *DepthMap) GetDepth(x, y int) float32 {
	return dm.data[dm.kxy(x, y)]
}

// Set sets the depth at a given (x, y) coordinate.
func (dm *DepthMap) Set(x, y int, val float32) {
	dm.data[dm.kxy(x, y)] = val
}

// Clone makes a copy of the depth map.
func (dm *DepthMap) Clone() *DepthMap {
	out := NewEmptyDepthMap(dm.width, dm.height)
	copy(out.data, dm.data)
	return out
}

// MinMax returns the minimum and maximum observed depth values in the raster.
// Zero pixels carry no observation and are skipped.
func (dm *DepthMap) MinMax() (float32, float32) {
	min := float32(math.MaxFloat32)
	max := float32(0)
	for _, v := range dm.data {
		if v == 0 {
			continue
		}
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}
	return min, max
}
