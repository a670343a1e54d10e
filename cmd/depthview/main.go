// Package main is a command that renders a point cloud written by the
// dataset pipeline as a false color depth image, seen from one of the
// configured cameras.
package main

import (
	"flag"
	"fmt"
	"math"
	"os"

	"github.com/edaniels/golog"

	"github.com/zmsbruce/rm-radar-to-mmdet3d/config"
	"github.com/zmsbruce/rm-radar-to-mmdet3d/pointcloud"
	"github.com/zmsbruce/rm-radar-to-mmdet3d/rimage"
	"github.com/zmsbruce/rm-radar-to-mmdet3d/transform"
)

func main() {
	configFile := flag.String("config", "", "pipeline config file")
	camera := flag.Int("camera", 0, "config instance index to view from")
	hardMin := flag.Float64("min", 0, "min depth in millimeters")
	hardMax := flag.Float64("max", 30000, "max depth in millimeters")

	flag.Parse()

	if *configFile == "" || flag.NArg() < 2 {
		panic("need -config plus two args <in.pcd> <out.png>")
	}

	logger := golog.NewDevelopmentLogger("depthview")
	cfg, err := config.Read(*configFile, logger)
	if err != nil {
		panic(err)
	}
	if *camera < 0 || *camera >= len(cfg.Instances) {
		panic(fmt.Sprintf("camera %d out of range, config has %d instances", *camera, len(cfg.Instances)))
	}

	//nolint:gosec
	f, err := os.Open(flag.Arg(0))
	if err != nil {
		panic(err)
	}
	cloud, err := pointcloud.ReadPCD(f)
	if err != nil {
		panic(err)
	}
	if err := f.Close(); err != nil {
		panic(err)
	}

	dm, err := projectCloud(cloud, cfg.Instances[*camera])
	if err != nil {
		panic(err)
	}

	img := dm.ToPrettyPicture(float32(*hardMin), float32(*hardMax))
	if err := rimage.WriteImageToFile(flag.Arg(1), img); err != nil {
		panic(err)
	}
	fmt.Println(flag.Arg(1))
}

// projectCloud rasterizes the cloud from the instance camera's point of
// view, keeping the nearest return per pixel.
func projectCloud(cloud pointcloud.PointCloud, instance config.InstanceConfig) (*rimage.DepthMap, error) {
	locatorCfg := instance.LocatorConfig()

	intrinsic, err := transform.NewCameraMatrix(locatorCfg.CameraIntrinsic)
	if err != nil {
		return nil, err
	}
	lidarToCamera, err := transform.NewRigidTransform(locatorCfg.LidarToCameraTransform)
	if err != nil {
		return nil, err
	}
	worldToCamera, err := transform.NewRigidTransform(locatorCfg.WorldToCameraTransform)
	if err != nil {
		return nil, err
	}
	projector := transform.NewProjector(intrinsic, lidarToCamera, worldToCamera)

	dm := rimage.NewEmptyDepthMap(instance.ImageWidth, instance.ImageHeight)
	for _, p := range cloud {
		if !pointcloud.IsValid(p) {
			continue
		}
		uf, vf, depth := projector.LidarToCamera(p)
		u, v := math.Round(uf), math.Round(vf)
		if !(u >= 0 && v >= 0 && u < float64(dm.Width()) && v < float64(dm.Height())) || depth <= 0 {
			continue
		}
		x, y := int(u), int(v)
		if existing := dm.GetDepth(x, y); existing == 0 || float32(depth) < existing {
			dm.Set(x, y, float32(depth))
		}
	}
	return dm, nil
}
