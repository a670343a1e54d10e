// Package dataset writes the on-disk training set layout: one image
// directory per camera, a point cloud and a label file per frame, and a
// calibration file per camera.
package dataset

import (
	"bufio"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/edaniels/golog"
	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"github.com/zmsbruce/rm-radar-to-mmdet3d/detect"
	"github.com/zmsbruce/rm-radar-to-mmdet3d/locate"
	"github.com/zmsbruce/rm-radar-to-mmdet3d/pointcloud"
	"github.com/zmsbruce/rm-radar-to-mmdet3d/rimage"
)

// ResolveOutputDir returns root unchanged when nothing exists at that path
// yet. Otherwise it appends a counter and returns the first name not taken,
// so reruns never overwrite an earlier dataset.
func ResolveOutputDir(root string, logger golog.Logger) (string, error) {
	exists, err := pathExists(root)
	if err != nil {
		return "", err
	}
	if !exists {
		logger.Infof("output directory is set to %q", root)
		return root, nil
	}
	for counter := 0; ; counter++ {
		renamed := fmt.Sprintf("%s%d", root, counter)
		exists, err := pathExists(renamed)
		if err != nil {
			return "", err
		}
		if !exists {
			logger.Infof("output directory is set to %q", renamed)
			return renamed, nil
		}
	}
}

func pathExists(path string) (bool, error) {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, errors.Wrapf(err, "failed to query path %q", path)
	}
	return true, nil
}

// Writer saves frames under a single root directory.
type Writer struct {
	rootDir     string
	cameraCount int
}

// NewWriter returns a writer rooted at rootDir for the given number of
// cameras. Call MakeLayout before writing any frame.
func NewWriter(rootDir string, cameraCount int) *Writer {
	return &Writer{rootDir: rootDir, cameraCount: cameraCount}
}

// MakeLayout creates the directory tree for every output kind.
func (w *Writer) MakeLayout() error {
	dirs := make([]string, 0, w.cameraCount+3)
	for i := 0; i < w.cameraCount; i++ {
		dirs = append(dirs, filepath.Join(w.rootDir, "images", fmt.Sprintf("images_%d", i)))
	}
	dirs = append(dirs,
		filepath.Join(w.rootDir, "points"),
		filepath.Join(w.rootDir, "labels"),
		filepath.Join(w.rootDir, "calibs"),
	)
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errors.Wrapf(err, "failed to create directory %q", dir)
		}
	}
	return nil
}

// WriteImage saves one camera's view of a frame as
// images/images_<camera>/<frame>.png.
func (w *Writer) WriteImage(cameraIdx, frameIdx int, img image.Image) error {
	path := filepath.Join(
		w.rootDir,
		"images",
		fmt.Sprintf("images_%d", cameraIdx),
		sequenceFileName(frameIdx, "png"),
	)
	return rimage.WriteImageToFile(path, img)
}

// WritePointCloud saves the frame's cloud as points/<frame>.pcd in binary
// form.
func (w *Writer) WritePointCloud(frameIdx int, cloud pointcloud.PointCloud) (err error) {
	path := filepath.Join(w.rootDir, "points", sequenceFileName(frameIdx, "pcd"))
	//nolint:gosec
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "failed to create %q", path)
	}
	defer func() {
		err = multierr.Combine(err, f.Close())
	}()
	return pointcloud.ToPCD(cloud, f, pointcloud.PCDBinary)
}

// WriteLabels saves the located robots of a frame as labels/<frame>.txt, one
// line per robot ordered by label. The file is created even when results is
// empty so every frame index has a label file.
func (w *Writer) WriteLabels(frameIdx int, results map[detect.Label]locate.RobotLocation) (err error) {
	path := filepath.Join(w.rootDir, "labels", sequenceFileName(frameIdx, "txt"))
	//nolint:gosec
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "failed to create %q", path)
	}
	defer func() {
		err = multierr.Combine(err, f.Close())
	}()

	labels := make([]detect.Label, 0, len(results))
	for label := range results {
		labels = append(labels, label)
	}
	sort.Slice(labels, func(i, j int) bool { return labels[i] < labels[j] })

	buf := bufio.NewWriter(f)
	for _, label := range labels {
		location := results[label]
		if _, err := fmt.Fprintf(
			buf,
			"%.2f %.2f %.2f %.2f %.2f %.2f %.2f %s\n",
			location.Center.X,
			location.Center.Y,
			location.Center.Z,
			location.Depth,
			location.Width,
			location.Height,
			0.0,
			label.Abbr(),
		); err != nil {
			return errors.Wrapf(err, "failed to write label line to %q", path)
		}
	}
	return buf.Flush()
}

// WriteCalib saves one camera's calibration as calibs/<camera>.txt: a P<idx>
// line holding the intrinsic matrix and a lidar2cam<idx> line holding the
// lidar to camera matrix, both row major.
func (w *Writer) WriteCalib(cameraIdx int, intrinsic [9]float64, lidarToCamera [16]float64) (err error) {
	path := filepath.Join(w.rootDir, "calibs", sequenceFileName(cameraIdx, "txt"))
	//nolint:gosec
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "failed to create %q", path)
	}
	defer func() {
		err = multierr.Combine(err, f.Close())
	}()

	var sb strings.Builder
	sb.WriteString("P" + strconv.Itoa(cameraIdx))
	for _, v := range intrinsic {
		sb.WriteString(" ")
		sb.WriteString(strconv.FormatFloat(v, 'f', -1, 64))
	}
	sb.WriteString("\nlidar2cam" + strconv.Itoa(cameraIdx))
	for _, v := range lidarToCamera {
		sb.WriteString(" ")
		sb.WriteString(strconv.FormatFloat(v, 'f', -1, 64))
	}

	_, err = f.WriteString(sb.String())
	return err
}

func sequenceFileName(idx int, ext string) string {
	return fmt.Sprintf("%06d.%s", idx, ext)
}
