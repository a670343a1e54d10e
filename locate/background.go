package locate

import (
	"image"

	"github.com/zmsbruce/rm-radar-to-mmdet3d/rimage"
	"github.com/zmsbruce/rm-radar-to-mmdet3d/utils"
)

const depthMapQueueSize = 3

// BackgroundModel tracks, per pixel, the furthest depth ever observed plus a
// short window of recent depth rasters. The background raster is a running
// per-pixel maximum and never decreases, so static scenery is absorbed while
// nearer returns keep standing out.
type BackgroundModel struct {
	background *rimage.DepthMap
	queue      []*rimage.DepthMap
}

// NewBackgroundModel returns a model for rasters of the given size.
func NewBackgroundModel(width, height int) *BackgroundModel {
	return &BackgroundModel{
		background: rimage.NewEmptyDepthMap(width, height),
	}
}

// Observe raises the background depth at a pixel if d exceeds it.
func (bm *BackgroundModel) Observe(x, y int, d float32) {
	if d > bm.background.GetDepth(x, y) {
		bm.background.Set(x, y, d)
	}
}

// Ingest pushes one frame's depth raster into the window, evicting the
// oldest raster once the window holds more than three, and returns the
// combined foreground raster: per pixel, the absolute difference between a
// windowed raster and the background, kept only when it falls strictly
// between minDist and maxDist. Later rasters overwrite earlier ones where
// both pass.
func (bm *BackgroundModel) Ingest(frame *rimage.DepthMap, minDist, maxDist float32) *rimage.DepthMap {
	bm.queue = append(bm.queue, frame)
	if len(bm.queue) > depthMapQueueSize {
		bm.queue = bm.queue[1:]
	}

	width, height := frame.Width(), frame.Height()
	difference := rimage.NewEmptyDepthMap(width, height)
	for _, depthMap := range bm.queue {
		utils.ParallelForEachPixel(image.Point{X: width, Y: height}, func(x, y int) {
			diff := depthMap.GetDepth(x, y) - bm.background.GetDepth(x, y)
			if diff < 0 {
				diff = -diff
			}
			if diff > minDist && diff < maxDist {
				difference.Set(x, y, diff)
			}
		})
	}
	return difference
}

// Background returns the live background raster.
func (bm *BackgroundModel) Background() *rimage.DepthMap {
	return bm.background
}

// QueueLen returns the number of rasters currently in the window.
func (bm *BackgroundModel) QueueLen() int {
	return len(bm.queue)
}
