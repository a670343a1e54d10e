package align

import (
	"context"
	"image"
	"io"
	"math"

	"github.com/edaniels/golog"
	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"github.com/zmsbruce/rm-radar-to-mmdet3d/pointcloud"
)

type lidarFrame struct {
	stamp float64
	cloud pointcloud.PointCloud
}

// BagVideoAligner pairs the lidar messages of a rosbag with frames of one
// video per camera. The first lidar message defines time zero and every
// video is assumed to start recording at that same moment, so the image
// matching a lidar stamp is found by multiplying the elapsed time by the
// video frame rate.
type BagVideoAligner struct {
	frames     []lidarFrame
	videoPaths []string
	videoFPS   float64
	logger     golog.Logger
}

// NewBagVideoAligner reads every lidar message on the given topic out of the
// bag at bagPath. Messages whose payload cannot be decoded keep their place
// in the sequence with an empty cloud so that frame indexes stay aligned
// with the videos.
func NewBagVideoAligner(
	bagPath string,
	lidarTopic string,
	videoPaths []string,
	videoFPS float64,
	logger golog.Logger,
) (*BagVideoAligner, error) {
	if videoFPS <= 0 {
		return nil, errors.Errorf("video fps must be positive, got %v", videoFPS)
	}
	if len(videoPaths) == 0 {
		return nil, errors.New("at least one video is required")
	}

	rb, err := readBag(bagPath)
	if err != nil {
		return nil, err
	}
	messages, err := lidarMessages(rb, lidarTopic)
	if err != nil {
		return nil, err
	}

	frames := make([]lidarFrame, 0, len(messages))
	for i, msg := range messages {
		cloud, err := msg.pointCloud()
		if err != nil {
			logger.Warnw("skipping lidar message with undecodable payload", "index", i, "error", err)
			cloud = nil
		}
		frames = append(frames, lidarFrame{stamp: msg.Header.Stamp.seconds(), cloud: cloud})
	}

	return &BagVideoAligner{
		frames:     frames,
		videoPaths: videoPaths,
		videoFPS:   videoFPS,
		logger:     logger,
	}, nil
}

// FrameCount returns the number of lidar messages found in the bag.
func (a *BagVideoAligner) FrameCount() int {
	return len(a.frames)
}

// CameraCount returns the number of videos the aligner was built with.
func (a *BagVideoAligner) CameraCount() int {
	return len(a.videoPaths)
}

// Frames opens a fresh decoder per video and returns an iterator over the
// aligned frames. Each call replays the sequence from the beginning.
func (a *BagVideoAligner) Frames(ctx context.Context) (FrameIterator, error) {
	decoders := make([]*videoDecoder, 0, len(a.videoPaths))
	for _, path := range a.videoPaths {
		vd, err := openVideoDecoder(ctx, path)
		if err != nil {
			for _, open := range decoders {
				err = multierr.Combine(err, open.Close())
			}
			return nil, errors.Wrapf(err, "failed to open video %q", path)
		}
		decoders = append(decoders, vd)
	}
	return &bagVideoIterator{aligner: a, decoders: decoders}, nil
}

type bagVideoIterator struct {
	aligner  *BagVideoAligner
	decoders []*videoDecoder
	pos      int
}

// Next returns the next aligned frame. A video that cannot supply the image
// for a stamp contributes a nil entry instead of failing the whole frame.
func (it *bagVideoIterator) Next(ctx context.Context) (*Frame, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if it.pos >= len(it.aligner.frames) {
		return nil, io.EOF
	}

	frame := it.aligner.frames[it.pos]
	target := videoFrameIndex(frame.stamp, it.aligner.frames[0].stamp, it.aligner.videoFPS)

	images := make([]image.Image, len(it.decoders))
	for i, vd := range it.decoders {
		if target < 0 {
			it.aligner.logger.Warnw("lidar stamp precedes the start of the video", "camera", i, "frame", it.pos)
			continue
		}
		img, err := vd.frameAt(target)
		if err != nil {
			it.aligner.logger.Warnw("failed to read video frame", "camera", i, "frame", target, "error", err)
			continue
		}
		images[i] = img
	}

	it.pos++
	return &Frame{Index: it.pos - 1, Images: images, Cloud: frame.cloud}, nil
}

// Close shuts down every video decoder.
func (it *bagVideoIterator) Close() error {
	var err error
	for _, vd := range it.decoders {
		err = multierr.Combine(err, vd.Close())
	}
	return err
}

// videoFrameIndex converts a lidar stamp to the index of the video frame
// closest to it, counting from the stamp of the first lidar message.
func videoFrameIndex(stamp, baseStamp, fps float64) int {
	return int(math.Round((stamp - baseStamp) * fps))
}
