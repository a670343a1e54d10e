package detect

import (
	"context"
	"image"
	"image/color"
	"testing"

	"go.viam.com/test"
)

func TestBrightnessDetectorRequiresBuild(t *testing.T) {
	d := NewBrightnessDetector(128)
	_, err := d.Detect(context.Background(), image.NewGray(image.Rect(0, 0, 4, 4)))
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "models have not been built")
}

func TestBrightnessDetectorBuildValidates(t *testing.T) {
	err := NewBrightnessDetector(0).BuildModels(context.Background())
	test.That(t, err, test.ShouldNotBeNil)

	err = NewBrightnessDetector(300).BuildModels(context.Background())
	test.That(t, err, test.ShouldNotBeNil)

	err = NewBrightnessDetector(128).BuildModels(context.Background())
	test.That(t, err, test.ShouldBeNil)
}

func TestBrightnessDetectorFindsComponents(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 20, 20))
	for x := 5; x <= 7; x++ {
		for y := 5; y <= 7; y++ {
			img.SetGray(x, y, color.Gray{Y: 255})
		}
	}
	for x := 12; x <= 14; x++ {
		for y := 2; y <= 4; y++ {
			img.SetGray(x, y, color.Gray{Y: 255})
		}
	}

	d := NewBrightnessDetector(128)
	test.That(t, d.BuildModels(context.Background()), test.ShouldBeNil)

	detections, err := d.Detect(context.Background(), img)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, detections, test.ShouldHaveLength, 2)

	// scan order is by column, so the left square comes first
	test.That(t, detections[0].Label, test.ShouldEqual, BlueHero)
	test.That(t, detections[0].Score, test.ShouldEqual, 1.0)
	test.That(t, detections[0].Box, test.ShouldResemble, BBox{XCenter: 6, YCenter: 6, Width: 3, Height: 3})

	test.That(t, detections[1].Label, test.ShouldEqual, BlueEngineer)
	test.That(t, detections[1].Box, test.ShouldResemble, BBox{XCenter: 13, YCenter: 3, Width: 3, Height: 3})
}

func TestBrightnessDetectorEmptyImage(t *testing.T) {
	d := NewBrightnessDetector(128)
	test.That(t, d.BuildModels(context.Background()), test.ShouldBeNil)

	detections, err := d.Detect(context.Background(), image.NewGray(image.Rect(0, 0, 8, 8)))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, detections, test.ShouldHaveLength, 0)
}
