// Package radar drives the dataset pipeline: it replays aligned frames,
// warms each camera's background model, runs detection, locates every
// detected robot in 3D, and writes the training set to disk.
package radar

import (
	"context"
	"io"

	"github.com/edaniels/golog"
	"github.com/pkg/errors"
	"github.com/pterm/pterm"
	goutils "go.viam.com/utils"

	"github.com/zmsbruce/rm-radar-to-mmdet3d/align"
	"github.com/zmsbruce/rm-radar-to-mmdet3d/dataset"
	"github.com/zmsbruce/rm-radar-to-mmdet3d/detect"
	"github.com/zmsbruce/rm-radar-to-mmdet3d/locate"
	"github.com/zmsbruce/rm-radar-to-mmdet3d/pointcloud"
	"github.com/zmsbruce/rm-radar-to-mmdet3d/utils"
)

// Bag clouds arrive in meters, the locating engine works in millimeters.
const millimetersPerMeter = 1000

type progressSpinner interface {
	Success(...any)
	Fail(...any)
}

var newSpinner = func(text string) (progressSpinner, error) {
	return pterm.DefaultSpinner.
		WithRemoveWhenDone(false).
		WithText(text).
		Start()
}

type progressBar interface {
	Increment()
	Stop() error
}

type ptermBar struct {
	bar *pterm.ProgressbarPrinter
}

func (b ptermBar) Increment() {
	b.bar.Increment()
}

func (b ptermBar) Stop() error {
	_, err := b.bar.Stop()
	return err
}

var newProgressBar = func(title string, total int) (progressBar, error) {
	bar, err := pterm.DefaultProgressbar.
		WithTotal(total).
		WithTitle(title).
		Start()
	if err != nil {
		return nil, err
	}
	return ptermBar{bar}, nil
}

// Radar owns one Locator per camera and the shared pipeline around them.
type Radar struct {
	aligner  align.Aligner
	detector detect.Detector
	locators []*locate.Locator
	writer   *dataset.Writer
	logger   golog.Logger
}

// New wires the pipeline together. The number of locators must match the
// aligner's camera count.
func New(
	aligner align.Aligner,
	detector detect.Detector,
	locators []*locate.Locator,
	writer *dataset.Writer,
	logger golog.Logger,
) (*Radar, error) {
	if len(locators) != aligner.CameraCount() {
		return nil, errors.Errorf("have %d locators for %d cameras", len(locators), aligner.CameraCount())
	}
	return &Radar{
		aligner:  aligner,
		detector: detector,
		locators: locators,
		writer:   writer,
		logger:   logger,
	}, nil
}

// BuildModels prepares the detector. Call once before processing frames.
func (r *Radar) BuildModels(ctx context.Context) error {
	spinner, err := newSpinner("Building models...")
	if err != nil {
		return err
	}
	if err := r.detector.BuildModels(ctx); err != nil {
		r.logger.Errorw("failed to build models", "error", err)
		spinner.Fail("Failed to build models.")
		return err
	}
	spinner.Success("Finished building models.")
	return nil
}

// ProcessFrames replays the aligned sequence once. Every frame's cloud feeds
// the background model of each camera whose image is present and is saved as
// a PCD; every image is run through the detector and saved as a PNG. The
// returned detections are indexed by frame then camera, nil where no image
// was available or detection failed.
func (r *Radar) ProcessFrames(ctx context.Context) ([][][]detect.RobotDetection, error) {
	iter, err := r.aligner.Frames(ctx)
	if err != nil {
		return nil, err
	}
	defer func() {
		goutils.UncheckedError(iter.Close())
	}()

	bar, err := newProgressBar("Processing and saving frames", r.aligner.FrameCount())
	if err != nil {
		return nil, err
	}
	defer func() {
		goutils.UncheckedError(bar.Stop())
	}()

	detections := make([][][]detect.RobotDetection, 0, r.aligner.FrameCount())
	for {
		frame, err := iter.Next(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}

		if frame.Cloud != nil {
			cloud := frame.Cloud.Scale(millimetersPerMeter)
			r.updateBackgrounds(ctx, frame, cloud)
			if err := r.writer.WritePointCloud(frame.Index, cloud); err != nil {
				r.logger.Errorw("failed to save point cloud", "frame", frame.Index, "error", err)
			}
		} else {
			r.logger.Warnw("frame has no point cloud, skipped background update and save", "frame", frame.Index)
		}

		detections = append(detections, r.detectAndSaveImages(ctx, frame))
		bar.Increment()
	}
	return detections, nil
}

// updateBackgrounds fans the frame's cloud out across the locators. A camera
// with no image this frame keeps its previous background.
func (r *Radar) updateBackgrounds(ctx context.Context, frame *align.Frame, cloud pointcloud.PointCloud) {
	fns := make([]utils.SimpleFunc, 0, len(r.locators))
	for i, locator := range r.locators {
		fns = append(fns, func(context.Context) error {
			if frame.Images[i] == nil {
				r.logger.Warnw("image is empty, skipped background depth map update", "camera", i, "frame", frame.Index)
				return nil
			}
			locator.UpdateBackgroundDepthMap(cloud)
			return nil
		})
	}
	if _, err := utils.RunInParallel(ctx, fns); err != nil {
		r.logger.Errorw("failed to update background depth maps", "frame", frame.Index, "error", err)
	}
}

func (r *Radar) detectAndSaveImages(ctx context.Context, frame *align.Frame) [][]detect.RobotDetection {
	results := make([][]detect.RobotDetection, len(frame.Images))
	for i, img := range frame.Images {
		if img == nil {
			r.logger.Warnw("image is empty, skipped detect and save", "camera", i, "frame", frame.Index)
			continue
		}
		dets, err := r.detector.Detect(ctx, img)
		if err != nil {
			r.logger.Errorw("failed to detect robots", "camera", i, "frame", frame.Index, "error", err)
		} else {
			results[i] = dets
		}
		if err := r.writer.WriteImage(i, frame.Index, img); err != nil {
			r.logger.Errorw("failed to save image", "camera", i, "frame", frame.Index, "error", err)
		}
	}
	return results
}

// LocateAndWrite replays the aligned sequence a second time and, using the
// detections gathered by ProcessFrames, locates every detected robot in 3D
// and writes one label file per frame. Robots seen by several cameras keep
// the location from the highest camera index.
func (r *Radar) LocateAndWrite(ctx context.Context, detections [][][]detect.RobotDetection) error {
	if len(detections) != r.aligner.FrameCount() {
		return errors.Errorf("have detections for %d frames, aligner has %d", len(detections), r.aligner.FrameCount())
	}

	iter, err := r.aligner.Frames(ctx)
	if err != nil {
		return err
	}
	defer func() {
		goutils.UncheckedError(iter.Close())
	}()

	bar, err := newProgressBar("Locating and saving results", r.aligner.FrameCount())
	if err != nil {
		return err
	}
	defer func() {
		goutils.UncheckedError(bar.Stop())
	}()

	for {
		frame, err := iter.Next(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return err
		}

		results := r.locateFrame(ctx, frame, detections[frame.Index])
		if err := r.writer.WriteLabels(frame.Index, results); err != nil {
			r.logger.Errorw("failed to save labels", "frame", frame.Index, "error", err)
		}
		bar.Increment()
	}
	return nil
}

// locateFrame runs every camera's locator over the frame and merges the
// results per label. The returned map is empty, never nil, so the caller
// always writes a label file.
func (r *Radar) locateFrame(
	ctx context.Context,
	frame *align.Frame,
	frameDetections [][]detect.RobotDetection,
) map[detect.Label]locate.RobotLocation {
	results := map[detect.Label]locate.RobotLocation{}
	if frame.Cloud == nil {
		r.logger.Warnw("frame has no point cloud, skipped locate", "frame", frame.Index)
		return results
	}
	cloud := frame.Cloud.Scale(millimetersPerMeter)

	located := make([][]*locate.RobotLocation, len(r.locators))
	fns := make([]utils.SimpleFunc, 0, len(r.locators))
	for i, locator := range r.locators {
		fns = append(fns, func(context.Context) error {
			if frameDetections[i] == nil {
				r.logger.Warnw("no detections for camera, skipped locate", "camera", i, "frame", frame.Index)
				return nil
			}
			located[i] = locator.LocateDetections(cloud, frameDetections[i])
			return nil
		})
	}
	if _, err := utils.RunInParallel(ctx, fns); err != nil {
		r.logger.Errorw("failed to locate detections", "frame", frame.Index, "error", err)
	}

	for i, locations := range located {
		for j, location := range locations {
			if location == nil {
				continue
			}
			label := frameDetections[i][j].Label
			results[label] = *location
			r.logger.Debugw("located robot",
				"frame", frame.Index,
				"camera", i,
				"label", label.String(),
				"world", r.locators[i].Projector().LidarToWorld(location.Center),
			)
		}
	}
	return results
}

// WriteCalibs saves each camera's calibration next to the frames.
func (r *Radar) WriteCalibs() error {
	for i, locator := range r.locators {
		projector := locator.Projector()
		err := r.writer.WriteCalib(
			i,
			projector.Intrinsic().Elements(),
			projector.LidarToCameraTransform().Elements(),
		)
		if err != nil {
			return errors.Wrapf(err, "failed to save calibration of camera %d", i)
		}
	}
	return nil
}
