// Package locate implements the sensor-fusion core of the radar station: it
// fuses lidar clouds with per-camera robot detections and estimates each
// robot's 3D center and extent.
package locate

import (
	"image"
	"math"

	"github.com/golang/geo/r3"

	"github.com/zmsbruce/rm-radar-to-mmdet3d/detect"
	"github.com/zmsbruce/rm-radar-to-mmdet3d/pointcloud"
	"github.com/zmsbruce/rm-radar-to-mmdet3d/rimage"
	"github.com/zmsbruce/rm-radar-to-mmdet3d/segmentation"
	"github.com/zmsbruce/rm-radar-to-mmdet3d/transform"
)

// RobotLocation is the located 3D extent of one detection in the lidar
// frame. Width, height, and depth are the extents along the x, y, and z
// axes.
type RobotLocation struct {
	Center r3.Vector
	Width  float64
	Height float64
	Depth  float64
}

// LocatorConfig collects the geometry and thresholds of one sensor instance.
type LocatorConfig struct {
	ImageWidth              int
	ImageHeight             int
	CameraIntrinsic         [9]float64
	LidarToCameraTransform  [16]float64
	WorldToCameraTransform  [16]float64
	ClusterEpsilon          float64
	ClusterMinPoints        int
	MinDistanceToBackground float64
	MaxDistanceToBackground float64
	MaxValidDistance        float64
}

// Locator turns raw lidar clouds and per-camera detections into 3D robot
// locations. It is stateful: the background model and raster window persist
// across calls, so one Locator must see its frames in order. Locators share
// nothing and may run in parallel with each other.
type Locator struct {
	projector  *transform.Projector
	background *BackgroundModel

	imageWidth  int
	imageHeight int

	clusterEpsilon          float64
	clusterMinPoints        int
	minDistanceToBackground float32
	maxDistanceToBackground float32
	maxValidDistance        float64
}

// NewLocator validates the configured matrices and returns a ready Locator.
func NewLocator(cfg LocatorConfig) (*Locator, error) {
	intrinsic, err := transform.NewCameraMatrix(cfg.CameraIntrinsic)
	if err != nil {
		return nil, err
	}
	lidarToCamera, err := transform.NewRigidTransform(cfg.LidarToCameraTransform)
	if err != nil {
		return nil, err
	}
	worldToCamera, err := transform.NewRigidTransform(cfg.WorldToCameraTransform)
	if err != nil {
		return nil, err
	}

	return &Locator{
		projector:               transform.NewProjector(intrinsic, lidarToCamera, worldToCamera),
		background:              NewBackgroundModel(cfg.ImageWidth, cfg.ImageHeight),
		imageWidth:              cfg.ImageWidth,
		imageHeight:             cfg.ImageHeight,
		clusterEpsilon:          cfg.ClusterEpsilon,
		clusterMinPoints:        cfg.ClusterMinPoints,
		minDistanceToBackground: float32(cfg.MinDistanceToBackground),
		maxDistanceToBackground: float32(cfg.MaxDistanceToBackground),
		maxValidDistance:        cfg.MaxValidDistance,
	}, nil
}

// Projector returns the coordinate transforms of this instance.
func (l *Locator) Projector() *transform.Projector {
	return l.projector
}

// LocateDetections runs the full pipeline for one frame: ingest the cloud,
// cluster the foreground, and match each detection's box against the
// clusters. It returns one location per detection in input order, nil where
// no usable cluster was found.
func (l *Locator) LocateDetections(points pointcloud.PointCloud, detections []detect.RobotDetection) []*RobotLocation {
	foreground := l.ingestDepthFrame(points)
	clusters := l.clusterForeground(foreground)

	locations := make([]*RobotLocation, 0, len(detections))
	for _, det := range detections {
		locations = append(locations, l.searchLocation(det.Box, foreground, clusters))
	}
	return locations
}

// UpdateBackgroundDepthMap feeds a cloud into the background model without
// locating anything. It is used to warm the model up on frames that carry no
// detections.
func (l *Locator) UpdateBackgroundDepthMap(points pointcloud.PointCloud) {
	l.ingestDepthFrame(points)
}

// ingestDepthFrame projects the cloud into a fresh depth raster, folds it
// into the background model, and returns the foreground raster for the
// frame.
func (l *Locator) ingestDepthFrame(points pointcloud.PointCloud) *rimage.DepthMap {
	depthMap := rimage.NewEmptyDepthMap(l.imageWidth, l.imageHeight)

	for _, p := range points {
		if !pointcloud.IsValid(p) {
			continue
		}
		if p.X > l.maxValidDistance {
			continue
		}

		uf, vf, depth := l.projector.LidarToCamera(p)
		u, v := math.Round(uf), math.Round(vf)
		// NaN and infinite projections fail these comparisons and are dropped
		if !(u >= 0 && v >= 0 && u < float64(l.imageWidth) && v < float64(l.imageHeight)) {
			continue
		}

		x, y := int(u), int(v)
		depthMap.Set(x, y, float32(depth))
		l.background.Observe(x, y, float32(depth))
	}

	return l.background.Ingest(depthMap, l.minDistanceToBackground, l.maxDistanceToBackground)
}

// pixelClusters maps each clustered foreground pixel to its cluster id.
// Noise pixels are not present.
type pixelClusters map[image.Point]int

// clusterForeground unprojects every valid foreground pixel back into the
// lidar frame and groups the resulting points by density. Pixels are
// collected in row-major order so cluster ids are stable for equal inputs.
func (l *Locator) clusterForeground(foreground *rimage.DepthMap) pixelClusters {
	var pixels []image.Point
	var points []r3.Vector
	for y := 0; y < foreground.Height(); y++ {
		for x := 0; x < foreground.Width(); x++ {
			depth := foreground.GetDepth(x, y)
			if !isNormalDepth(depth) {
				continue
			}
			pixels = append(pixels, image.Point{X: x, Y: y})
			points = append(points, l.projector.CameraToLidar(float64(x), float64(y), float64(depth)))
		}
	}

	labels := segmentation.DBSCAN(points, l.clusterEpsilon, l.clusterMinPoints)

	clusters := make(pixelClusters, len(pixels))
	for i, pixel := range pixels {
		if labels[i] == segmentation.Noise {
			continue
		}
		clusters[pixel] = labels[i]
	}
	return clusters
}

// searchLocation picks the cluster holding the most pixels inside the
// detection box, ties going to the lowest cluster id, and returns its mean
// center and per-axis extents. It returns nil if no clustered pixel falls
// inside the box or the winning cluster has no valid depths.
func (l *Locator) searchLocation(box detect.BBox, foreground *rimage.DepthMap, clusters pixelClusters) *RobotLocation {
	xMin := int(math.Floor(math.Max(box.XCenter-box.Width/2, 0)))
	xMax := int(math.Ceil(box.XCenter + box.Width/2))
	yMin := int(math.Floor(math.Max(box.YCenter-box.Height/2, 0)))
	yMax := int(math.Ceil(box.YCenter + box.Height/2))

	clusterPixels := make(map[int][]image.Point)
	for y := yMin; y <= yMax; y++ {
		if y >= foreground.Height() {
			break
		}
		for x := xMin; x <= xMax; x++ {
			if x >= foreground.Width() {
				break
			}
			if id, ok := clusters[image.Point{X: x, Y: y}]; ok {
				clusterPixels[id] = append(clusterPixels[id], image.Point{X: x, Y: y})
			}
		}
	}

	winner, best := -1, 0
	for id, pixels := range clusterPixels {
		switch {
		case len(pixels) > best:
			winner, best = id, len(pixels)
		case len(pixels) == best && id < winner:
			winner = id
		}
	}
	if winner == -1 {
		return nil
	}

	var sum r3.Vector
	count := 0
	min := r3.Vector{X: math.MaxFloat64, Y: math.MaxFloat64, Z: math.MaxFloat64}
	max := r3.Vector{X: -math.MaxFloat64, Y: -math.MaxFloat64, Z: -math.MaxFloat64}
	for _, pixel := range clusterPixels[winner] {
		depth := foreground.GetDepth(pixel.X, pixel.Y)
		if !isNormalDepth(depth) {
			continue
		}
		p := l.projector.CameraToLidar(float64(pixel.X), float64(pixel.Y), float64(depth))
		sum = sum.Add(p)
		count++
		min.X = math.Min(min.X, p.X)
		min.Y = math.Min(min.Y, p.Y)
		min.Z = math.Min(min.Z, p.Z)
		max.X = math.Max(max.X, p.X)
		max.Y = math.Max(max.Y, p.Y)
		max.Z = math.Max(max.Z, p.Z)
	}
	if count == 0 {
		return nil
	}

	return &RobotLocation{
		Center: sum.Mul(1 / float64(count)),
		Width:  max.X - min.X,
		Height: max.Y - min.Y,
		Depth:  max.Z - min.Z,
	}
}

func isNormalDepth(d float32) bool {
	f := float64(d)
	return f != 0 && !math.IsNaN(f) && !math.IsInf(f, 0)
}
