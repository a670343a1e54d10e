package rimage

import (
	"image"
	"image/color"

	"github.com/lucasb-eyer/go-colorful"
)

// ToPrettyPicture converts the depth map into a colorful image, with blue
// being farther away and red being closest. Actual depth information is lost.
// hardMin and hardMax, if positive, clamp the color range.
func (dm *DepthMap) ToPrettyPicture(hardMin, hardMax float32) image.Image {
	min, max := dm.MinMax()

	if hardMin > 0 && min < hardMin {
		min = hardMin
	}
	if hardMax > 0 && max > hardMax {
		max = hardMax
	}

	img := image.NewNRGBA(dm.Bounds())

	span := float64(max) - float64(min)
	if span <= 0 {
		span = 1
	}

	for x := 0; x < dm.width; x++ {
		for y := 0; y < dm.height; y++ {
			z := dm.GetDepth(x, y)
			if z == 0 {
				img.Set(x, y, color.Black)
				continue
			}

			if z < min {
				z = min
			}
			if z > max {
				z = max
			}

			ratio := float64(z-min) / span
			hue := 30 + (200.0 * ratio)
			img.Set(x, y, colorful.Hsv(hue, 1.0, 1.0))
		}
	}

	return img
}
