package align

import (
	"context"
	"image"
	"image/png"
	"io"
	"os/exec"
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"
	ffmpeg "github.com/u2takey/ffmpeg-go"
	"go.viam.com/utils"
)

// videoDecoder streams one video through ffmpeg as a sequence of png images
// and hands frames out strictly forward.
type videoDecoder struct {
	cancel  func()
	workers sync.WaitGroup
	reader  *io.PipeReader

	ffmpegErr atomic.Value

	next int
	last image.Image
}

// openVideoDecoder starts an ffmpeg process decoding the video at path.
func openVideoDecoder(ctx context.Context, path string) (*videoDecoder, error) {
	// make sure ffmpeg is in the path before doing anything else
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		return nil, err
	}

	cancelableCtx, cancel := context.WithCancel(ctx)
	in, out := io.Pipe()
	vd := &videoDecoder{cancel: cancel, reader: in}

	vd.workers.Add(1)
	utils.ManagedGo(func() {
		stream := ffmpeg.Input(path)
		stream = stream.Output("pipe:", ffmpeg.KwArgs{"format": "image2pipe", "vcodec": "png"})
		stream.Context = cancelableCtx
		err := stream.WithOutput(out).Run()
		if err != nil {
			vd.ffmpegErr.Store(err)
		}
		// unblock any pending decode with EOF or the ffmpeg error
		utils.UncheckedError(out.CloseWithError(err))
	}, func() {
		cancel()
		vd.workers.Done()
	})

	return vd, nil
}

// frameAt decodes forward to the frame with the given index and returns it.
// Indexes must not decrease across calls; asking again for the most recent
// index returns the cached frame. Once the video is exhausted every further
// call returns io.EOF.
func (vd *videoDecoder) frameAt(idx int) (image.Image, error) {
	if idx == vd.next-1 && vd.last != nil {
		return vd.last, nil
	}
	if idx < vd.next {
		return nil, errors.Errorf("video frame %d was already passed, frames must be read in order", idx)
	}

	for vd.next <= idx {
		img, err := png.Decode(vd.reader)
		if err != nil {
			if ffmpegErr := vd.ffmpegErr.Load(); ffmpegErr != nil {
				return nil, errors.Wrapf(ffmpegErr.(error), "ffmpeg failed")
			}
			return nil, err
		}
		vd.last = img
		vd.next++
	}
	return vd.last, nil
}

// Close stops the ffmpeg process and waits for its workers to exit.
func (vd *videoDecoder) Close() error {
	vd.cancel()
	utils.UncheckedError(vd.reader.Close())
	vd.workers.Wait()
	return nil
}
