package utils

import (
	"context"
	"image"
	"sync/atomic"
	"testing"

	"github.com/pkg/errors"
	"go.viam.com/test"
)

func TestParallelForEachPixel(t *testing.T) {
	size := image.Point{X: 97, Y: 43}
	visits := make([]int32, size.X*size.Y)
	ParallelForEachPixel(size, func(x, y int) {
		atomic.AddInt32(&visits[y*size.X+x], 1)
	})
	missed := 0
	for _, count := range visits {
		if count != 1 {
			missed++
		}
	}
	test.That(t, missed, test.ShouldEqual, 0)
}

func TestParallelForEachPixelSmallerThanProcs(t *testing.T) {
	size := image.Point{X: 2, Y: 2}
	var visits int32
	ParallelForEachPixel(size, func(x, y int) {
		atomic.AddInt32(&visits, 1)
	})
	test.That(t, visits, test.ShouldEqual, int32(4))
}

func TestRunInParallel(t *testing.T) {
	var ran int32
	fs := []SimpleFunc{
		func(ctx context.Context) error {
			atomic.AddInt32(&ran, 1)
			return nil
		},
		func(ctx context.Context) error {
			atomic.AddInt32(&ran, 1)
			return nil
		},
	}
	_, err := RunInParallel(context.Background(), fs)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, ran, test.ShouldEqual, int32(2))
}

func TestRunInParallelError(t *testing.T) {
	errBoom := errors.New("boom")
	fs := []SimpleFunc{
		func(ctx context.Context) error {
			return errBoom
		},
		func(ctx context.Context) error {
			<-ctx.Done()
			return ctx.Err()
		},
	}
	_, err := RunInParallel(context.Background(), fs)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "boom")
}

func TestRunInParallelPanic(t *testing.T) {
	fs := []SimpleFunc{
		func(ctx context.Context) error {
			panic("bad math")
		},
	}
	_, err := RunInParallel(context.Background(), fs)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "bad math")
}
