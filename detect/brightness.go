package detect

import (
	"context"
	"image"
	"image/color"

	"github.com/pkg/errors"
)

// brightnessDetector converts pixels to luminance and finds the connected
// components above a threshold. threshold is between 0.0 and 256.0, with
// 256.0 being white and 0.0 being black.
type brightnessDetector struct {
	threshold float64
	built     bool
}

// NewBrightnessDetector returns a detector useful for exercising the pipeline
// without a trained model. It finds 4-connected components of pixels brighter
// than the threshold and labels them in scan order, cycling through all robot
// classes.
func NewBrightnessDetector(threshold float64) Detector {
	return &brightnessDetector{threshold: threshold}
}

func (bd *brightnessDetector) BuildModels(ctx context.Context) error {
	if bd.threshold <= 0 || bd.threshold > 256 {
		return errors.Errorf("brightness threshold %v out of range (0, 256]", bd.threshold)
	}
	bd.built = true
	return nil
}

func (bd *brightnessDetector) Detect(ctx context.Context, img image.Image) ([]RobotDetection, error) {
	if !bd.built {
		return nil, errors.New("models have not been built yet")
	}

	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	labels := AllLabels()

	seen := make([]bool, width*height)
	queue := []image.Point{}
	var detections []RobotDetection
	for i := 0; i < width; i++ {
		for j := 0; j < height; j++ {
			pt := image.Point{bounds.Min.X + i, bounds.Min.Y + j}
			indx := j*width + i
			if seen[indx] {
				continue
			}
			if !bd.pass(img.At(pt.X, pt.Y)) {
				seen[indx] = true
				continue
			}
			queue = append(queue, pt)
			x0, y0, x1, y1 := pt.X, pt.Y, pt.X, pt.Y // the bounding box of the segment
			for len(queue) != 0 {
				newPt := queue[0]
				newIndx := (newPt.Y-bounds.Min.Y)*width + (newPt.X - bounds.Min.X)
				seen[newIndx] = true
				queue = queue[1:]
				if newPt.X < x0 {
					x0 = newPt.X
				}
				if newPt.X > x1 {
					x1 = newPt.X
				}
				if newPt.Y < y0 {
					y0 = newPt.Y
				}
				if newPt.Y > y1 {
					y1 = newPt.Y
				}
				queue = append(queue, bd.getNeighbors(newPt, img, seen)...)
			}
			detections = append(detections, RobotDetection{
				Label: labels[len(detections)%len(labels)],
				Score: 1.0,
				Box: BBox{
					XCenter: float64(x0+x1) / 2,
					YCenter: float64(y0+y1) / 2,
					Width:   float64(x1 - x0 + 1),
					Height:  float64(y1 - y0 + 1),
				},
			})
		}
	}
	return detections, nil
}

func (bd *brightnessDetector) pass(c color.Color) bool {
	return luminance(c) > bd.threshold
}

func (bd *brightnessDetector) getNeighbors(pt image.Point, img image.Image, seen []bool) []image.Point {
	bounds := img.Bounds()
	neighbors := make([]image.Point, 0, 4)
	fourPoints := []image.Point{{pt.X, pt.Y - 1}, {pt.X, pt.Y + 1}, {pt.X - 1, pt.Y}, {pt.X + 1, pt.Y}}
	for _, p := range fourPoints {
		if !p.In(bounds) {
			continue
		}
		indx := (p.Y-bounds.Min.Y)*bounds.Dx() + (p.X - bounds.Min.X)
		if seen[indx] {
			continue
		}
		if bd.pass(img.At(p.X, p.Y)) {
			neighbors = append(neighbors, p)
		}
		seen[indx] = true
	}
	return neighbors
}

func luminance(c color.Color) float64 {
	r, g, b, _ := c.RGBA()
	return 0.299*float64(r>>8) + 0.587*float64(g>>8) + 0.114*float64(b>>8)
}
