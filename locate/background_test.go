package locate

import (
	"testing"

	"go.viam.com/test"

	"github.com/zmsbruce/rm-radar-to-mmdet3d/rimage"
)

func TestBackgroundMonotonicity(t *testing.T) {
	bm := NewBackgroundModel(4, 4)

	depths := []float32{5, 3, 8, 2}
	running := float32(0)
	for _, d := range depths {
		bm.Observe(1, 2, d)
		if d > running {
			running = d
		}
		test.That(t, bm.Background().GetDepth(1, 2), test.ShouldEqual, running)
	}
	test.That(t, bm.Background().GetDepth(1, 2), test.ShouldEqual, float32(8))
}

func TestBackgroundFIFOBound(t *testing.T) {
	bm := NewBackgroundModel(2, 2)

	for i := 1; i <= 5; i++ {
		bm.Ingest(rimage.NewEmptyDepthMap(2, 2), 0.1, 10)
		want := i
		if want > 3 {
			want = 3
		}
		test.That(t, bm.QueueLen(), test.ShouldEqual, want)
	}
}

func TestBackgroundIngestDifference(t *testing.T) {
	bm := NewBackgroundModel(4, 4)
	bm.Observe(1, 1, 10)
	bm.Observe(2, 2, 10)

	frame := rimage.NewEmptyDepthMap(4, 4)
	frame.Set(1, 1, 7)

	fg := bm.Ingest(frame, 0.1, 10)

	// |7 - 10| passes the thresholds
	test.That(t, fg.GetDepth(1, 1), test.ShouldEqual, float32(3))
	// |0 - 10| equals the upper bound, which is exclusive
	test.That(t, fg.GetDepth(2, 2), test.ShouldEqual, float32(0))
	// background without observations stays silent
	test.That(t, fg.GetDepth(0, 0), test.ShouldEqual, float32(0))
}

func TestBackgroundIngestLaterRasterWins(t *testing.T) {
	bm := NewBackgroundModel(2, 2)
	bm.Observe(0, 0, 10)

	first := rimage.NewEmptyDepthMap(2, 2)
	first.Set(0, 0, 7)
	bm.Ingest(first, 0.1, 10)

	second := rimage.NewEmptyDepthMap(2, 2)
	second.Set(0, 0, 5)
	fg := bm.Ingest(second, 0.1, 10)

	// both rasters pass at (0, 0); the newer difference wins
	test.That(t, fg.GetDepth(0, 0), test.ShouldEqual, float32(5))
}
