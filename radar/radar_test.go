package radar

import (
	"context"
	"image"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/edaniels/golog"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"go.viam.com/test"

	"github.com/zmsbruce/rm-radar-to-mmdet3d/align"
	"github.com/zmsbruce/rm-radar-to-mmdet3d/dataset"
	"github.com/zmsbruce/rm-radar-to-mmdet3d/detect"
	"github.com/zmsbruce/rm-radar-to-mmdet3d/locate"
	"github.com/zmsbruce/rm-radar-to-mmdet3d/pointcloud"
)

type noopSpinner struct{}

func (noopSpinner) Success(...any) {}

func (noopSpinner) Fail(...any) {}

type noopBar struct{}

func (noopBar) Increment() {}

func (noopBar) Stop() error { return nil }

func stubProgress(t *testing.T) {
	t.Helper()
	prevSpinner, prevBar := newSpinner, newProgressBar
	newSpinner = func(string) (progressSpinner, error) {
		return noopSpinner{}, nil
	}
	newProgressBar = func(string, int) (progressBar, error) {
		return noopBar{}, nil
	}
	t.Cleanup(func() {
		newSpinner, newProgressBar = prevSpinner, prevBar
	})
}

type sliceAligner struct {
	cameras int
	frames  []*align.Frame
}

func (a *sliceAligner) FrameCount() int {
	return len(a.frames)
}

func (a *sliceAligner) CameraCount() int {
	return a.cameras
}

func (a *sliceAligner) Frames(context.Context) (align.FrameIterator, error) {
	return &sliceIterator{frames: a.frames}, nil
}

type sliceIterator struct {
	frames []*align.Frame
	pos    int
}

func (it *sliceIterator) Next(ctx context.Context) (*align.Frame, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if it.pos >= len(it.frames) {
		return nil, io.EOF
	}
	frame := it.frames[it.pos]
	it.pos++
	return frame, nil
}

func (it *sliceIterator) Close() error { return nil }

type fakeDetector struct {
	detections []detect.RobotDetection
	buildErr   error
	built      bool
}

func (d *fakeDetector) BuildModels(context.Context) error {
	if d.buildErr != nil {
		return d.buildErr
	}
	d.built = true
	return nil
}

func (d *fakeDetector) Detect(context.Context, image.Image) ([]detect.RobotDetection, error) {
	return d.detections, nil
}

func testLocator(t *testing.T) *locate.Locator {
	t.Helper()
	locator, err := locate.NewLocator(locate.LocatorConfig{
		ImageWidth:  100,
		ImageHeight: 100,
		CameraIntrinsic: [9]float64{
			1, 0, 0,
			0, 1, 0,
			0, 0, 1,
		},
		LidarToCameraTransform: [16]float64{
			1, 0, 0, 0,
			0, 1, 0, 0,
			0, 0, 1, 0,
			0, 0, 0, 1,
		},
		WorldToCameraTransform: [16]float64{
			1, 0, 0, 0,
			0, 1, 0, 0,
			0, 0, 1, 0,
			0, 0, 0, 1,
		},
		ClusterEpsilon:          8,
		ClusterMinPoints:        4,
		MinDistanceToBackground: 0.1,
		MaxDistanceToBackground: 10,
		MaxValidDistance:        1000,
	})
	test.That(t, err, test.ShouldBeNil)
	return locator
}

// gridCloud spans pixels 10..14 square at the given depth in meters under
// the identity camera.
func gridCloud(depthMeters float64) pointcloud.PointCloud {
	var cloud pointcloud.PointCloud
	for v := 10; v <= 14; v++ {
		for u := 10; u <= 14; u++ {
			cloud = append(cloud, r3.Vector{
				X: float64(u) * depthMeters,
				Y: float64(v) * depthMeters,
				Z: depthMeters,
			})
		}
	}
	return cloud
}

func grayImage() image.Image {
	return image.NewNRGBA(image.Rect(0, 0, 8, 8))
}

func TestNewRejectsCameraMismatch(t *testing.T) {
	logger := golog.NewTestLogger(t)
	aligner := &sliceAligner{cameras: 2}
	_, err := New(aligner, &fakeDetector{}, []*locate.Locator{testLocator(t)}, nil, logger)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "have 1 locators for 2 cameras")
}

func TestBuildModels(t *testing.T) {
	stubProgress(t)
	logger := golog.NewTestLogger(t)
	aligner := &sliceAligner{cameras: 1}
	detector := &fakeDetector{}

	r, err := New(aligner, detector, []*locate.Locator{testLocator(t)}, nil, logger)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, r.BuildModels(context.Background()), test.ShouldBeNil)
	test.That(t, detector.built, test.ShouldBeTrue)
}

func TestBuildModelsFailure(t *testing.T) {
	stubProgress(t)
	logger := golog.NewTestLogger(t)
	aligner := &sliceAligner{cameras: 1}
	detector := &fakeDetector{buildErr: errors.New("no models")}

	r, err := New(aligner, detector, []*locate.Locator{testLocator(t)}, nil, logger)
	test.That(t, err, test.ShouldBeNil)
	err = r.BuildModels(context.Background())
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "no models")
}

func TestLocateAndWriteRejectsLengthMismatch(t *testing.T) {
	stubProgress(t)
	logger := golog.NewTestLogger(t)
	aligner := &sliceAligner{cameras: 1, frames: []*align.Frame{
		{Index: 0, Images: []image.Image{grayImage()}, Cloud: gridCloud(0.015)},
	}}

	r, err := New(aligner, &fakeDetector{}, []*locate.Locator{testLocator(t)}, nil, logger)
	test.That(t, err, test.ShouldBeNil)
	err = r.LocateAndWrite(context.Background(), nil)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "have detections for 0 frames")
}

func TestPipelineEndToEnd(t *testing.T) {
	stubProgress(t)
	logger := golog.NewTestLogger(t)
	root := filepath.Join(t.TempDir(), "out")

	writer := dataset.NewWriter(root, 1)
	test.That(t, writer.MakeLayout(), test.ShouldBeNil)

	// Frame 0 observes the arena backdrop, frame 1 sees a robot-sized grid
	// five meters nearer. Frame 2 has neither image nor cloud.
	aligner := &sliceAligner{cameras: 1, frames: []*align.Frame{
		{Index: 0, Images: []image.Image{grayImage()}, Cloud: gridCloud(0.015)},
		{Index: 1, Images: []image.Image{grayImage()}, Cloud: gridCloud(0.010)},
		{Index: 2, Images: []image.Image{nil}, Cloud: nil},
	}}
	detector := &fakeDetector{detections: []detect.RobotDetection{{
		Label: detect.BlueHero,
		Score: 1,
		Box:   detect.BBox{XCenter: 12, YCenter: 12, Width: 6, Height: 6},
	}}}

	r, err := New(aligner, detector, []*locate.Locator{testLocator(t)}, writer, logger)
	test.That(t, err, test.ShouldBeNil)

	ctx := context.Background()
	test.That(t, r.BuildModels(ctx), test.ShouldBeNil)

	detections, err := r.ProcessFrames(ctx)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, detections, test.ShouldHaveLength, 3)
	test.That(t, detections[0][0], test.ShouldHaveLength, 1)
	test.That(t, detections[1][0], test.ShouldHaveLength, 1)
	test.That(t, detections[2][0], test.ShouldBeNil)

	for _, path := range []string{
		filepath.Join(root, "points", "000000.pcd"),
		filepath.Join(root, "points", "000001.pcd"),
		filepath.Join(root, "images", "images_0", "000000.png"),
		filepath.Join(root, "images", "images_0", "000001.png"),
	} {
		_, err := os.Stat(path)
		test.That(t, err, test.ShouldBeNil)
	}
	_, err = os.Stat(filepath.Join(root, "points", "000002.pcd"))
	test.That(t, os.IsNotExist(err), test.ShouldBeTrue)

	test.That(t, r.LocateAndWrite(ctx, detections), test.ShouldBeNil)

	// The grid sits five meters in front of a fifteen meter background, so
	// the cluster unprojects to x,y in [50,70] at depth 5.
	expected := "60.00 60.00 5.00 0.00 20.00 20.00 0.00 B1\n"
	for _, name := range []string{"000000.txt", "000001.txt"} {
		content, err := os.ReadFile(filepath.Join(root, "labels", name))
		test.That(t, err, test.ShouldBeNil)
		test.That(t, string(content), test.ShouldEqual, expected)
	}
	content, err := os.ReadFile(filepath.Join(root, "labels", "000002.txt"))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, content, test.ShouldHaveLength, 0)

	test.That(t, r.WriteCalibs(), test.ShouldBeNil)
	calib, err := os.ReadFile(filepath.Join(root, "calibs", "000000.txt"))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, string(calib), test.ShouldEqual,
		"P0 1 0 0 0 1 0 0 0 1\nlidar2cam0 1 0 0 0 0 1 0 0 0 0 1 0 0 0 0 1")
}
