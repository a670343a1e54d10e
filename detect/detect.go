// Package detect defines the robot classes, detections, and the detector
// contract the dataset pipeline consumes.
package detect

import (
	"context"
	"fmt"
	"image"

	"github.com/pkg/errors"
)

// Label identifies one robot class on the field, blue team then red team.
// Robot number six is not fielded, so the sentry carries number seven.
type Label int

const (
	BlueHero Label = iota
	BlueEngineer
	BlueInfantryThree
	BlueInfantryFour
	BlueInfantryFive
	BlueSentry
	RedHero
	RedEngineer
	RedInfantryThree
	RedInfantryFour
	RedInfantryFive
	RedSentry
)

var labelNames = map[Label]string{
	BlueHero:          "blue_hero",
	BlueEngineer:      "blue_engineer",
	BlueInfantryThree: "blue_infantry_three",
	BlueInfantryFour:  "blue_infantry_four",
	BlueInfantryFive:  "blue_infantry_five",
	BlueSentry:        "blue_sentry",
	RedHero:           "red_hero",
	RedEngineer:       "red_engineer",
	RedInfantryThree:  "red_infantry_three",
	RedInfantryFour:   "red_infantry_four",
	RedInfantryFive:   "red_infantry_five",
	RedSentry:         "red_sentry",
}

var labelAbbrs = map[Label]string{
	BlueHero:          "B1",
	BlueEngineer:      "B2",
	BlueInfantryThree: "B3",
	BlueInfantryFour:  "B4",
	BlueInfantryFive:  "B5",
	BlueSentry:        "B7",
	RedHero:           "R1",
	RedEngineer:       "R2",
	RedInfantryThree:  "R3",
	RedInfantryFour:   "R4",
	RedInfantryFive:   "R5",
	RedSentry:         "R7",
}

// String returns the long snake_case class name.
func (l Label) String() string {
	if name, ok := labelNames[l]; ok {
		return name
	}
	return fmt.Sprintf("Label(%d)", int(l))
}

// Abbr returns the short class name used in dataset label files, such as
// "B1" or "R7".
func (l Label) Abbr() string {
	if abbr, ok := labelAbbrs[l]; ok {
		return abbr
	}
	return fmt.Sprintf("Label(%d)", int(l))
}

// ParseLabel maps a class name in either form, "R3" or "red_infantry_three",
// to its Label.
func ParseLabel(s string) (Label, error) {
	for l, abbr := range labelAbbrs {
		if s == abbr || s == labelNames[l] {
			return l, nil
		}
	}
	return 0, errors.Errorf("unknown robot label %q", s)
}

// AllLabels returns every robot class in id order.
func AllLabels() []Label {
	labels := make([]Label, len(labelNames))
	for i := range labels {
		labels[i] = Label(i)
	}
	return labels
}

// BBox is a pixel-space bounding box given by its center and extents.
type BBox struct {
	XCenter float64
	YCenter float64
	Width   float64
	Height  float64
}

// RobotDetection is one detected robot on one camera frame.
type RobotDetection struct {
	Label Label
	Score float64
	Box   BBox
}

// Detector finds robots in camera frames. BuildModels must succeed once
// before the first Detect call.
type Detector interface {
	BuildModels(ctx context.Context) error
	Detect(ctx context.Context, img image.Image) ([]RobotDetection, error)
}
