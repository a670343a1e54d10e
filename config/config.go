// Package config loads and validates the JSON runtime configuration of the
// dataset pipeline: where the recordings live, where the output goes, and
// the calibration and tuning of every camera/lidar pairing.
package config

import (
	"fmt"

	"github.com/pkg/errors"
	"go.viam.com/utils"

	"github.com/zmsbruce/rm-radar-to-mmdet3d/locate"
)

// Config is the top level runtime configuration.
type Config struct {
	OutputDir  string  `json:"output_dir"`
	Bag        string  `json:"bag"`
	LidarTopic string  `json:"lidar_topic"`
	FrameRate  float64 `json:"frame_rate"`

	Detector  DetectorConfig   `json:"detector"`
	Instances []InstanceConfig `json:"instances"`

	ConfigFilePath string `json:"-"`
}

// Ensure checks the whole configuration is complete enough to start the
// pipeline.
func (c *Config) Ensure() error {
	if c.OutputDir == "" {
		return utils.NewConfigValidationFieldRequiredError("", "output_dir")
	}
	if c.Bag == "" {
		return utils.NewConfigValidationFieldRequiredError("", "bag")
	}
	if c.LidarTopic == "" {
		return utils.NewConfigValidationFieldRequiredError("", "lidar_topic")
	}
	if c.FrameRate <= 0 {
		return utils.NewConfigValidationError("frame_rate", errors.New("must be positive"))
	}
	if err := c.Detector.Validate("detector"); err != nil {
		return err
	}
	if len(c.Instances) == 0 {
		return utils.NewConfigValidationFieldRequiredError("", "instances")
	}
	for idx := 0; idx < len(c.Instances); idx++ {
		if err := c.Instances[idx].Validate(fmt.Sprintf("%s.%d", "instances", idx)); err != nil {
			return err
		}
	}
	return nil
}

// VideoPaths returns the video file of every instance, in instance order.
func (c *Config) VideoPaths() []string {
	paths := make([]string, 0, len(c.Instances))
	for _, instance := range c.Instances {
		paths = append(paths, instance.Video)
	}
	return paths
}

// DetectorConfig tunes the reference brightness detector.
type DetectorConfig struct {
	Threshold float64 `json:"threshold"`
}

// Validate ensures the detector settings are usable.
func (c *DetectorConfig) Validate(path string) error {
	if c.Threshold == 0 {
		return utils.NewConfigValidationFieldRequiredError(path, "threshold")
	}
	if c.Threshold < 0 {
		return utils.NewConfigValidationError(path, errors.New("threshold must be positive"))
	}
	return nil
}

// InstanceConfig describes one camera/lidar pairing: the camera's recording
// and geometry plus the locating engine tuning for that sensor.
type InstanceConfig struct {
	Name        string `json:"name"`
	Video       string `json:"video"`
	ImageWidth  int    `json:"image_width"`
	ImageHeight int    `json:"image_height"`

	Intrinsic     []float64 `json:"intrinsic"`
	LidarToCamera []float64 `json:"lidar_to_camera"`
	WorldToCamera []float64 `json:"world_to_camera"`

	ClusterEpsilon          float64 `json:"cluster_epsilon"`
	ClusterMinPoints        int     `json:"cluster_min_points"`
	MinDistanceToBackground float64 `json:"min_distance_to_background"`
	MaxDistanceToBackground float64 `json:"max_distance_to_background"`
	MaxValidDistance        float64 `json:"max_valid_distance"`
}

// Validate ensures all parts of the instance are valid.
func (c *InstanceConfig) Validate(path string) error {
	if c.Name == "" {
		return utils.NewConfigValidationFieldRequiredError(path, "name")
	}
	if c.Video == "" {
		return utils.NewConfigValidationFieldRequiredError(path, "video")
	}
	if c.ImageWidth <= 0 || c.ImageHeight <= 0 {
		return utils.NewConfigValidationError(path, errors.New("image_width and image_height must be positive"))
	}
	if len(c.Intrinsic) != 9 {
		return utils.NewConfigValidationError(path, errors.Errorf("intrinsic must have 9 values, got %d", len(c.Intrinsic)))
	}
	if len(c.LidarToCamera) != 16 {
		return utils.NewConfigValidationError(path, errors.Errorf("lidar_to_camera must have 16 values, got %d", len(c.LidarToCamera)))
	}
	if len(c.WorldToCamera) != 16 {
		return utils.NewConfigValidationError(path, errors.Errorf("world_to_camera must have 16 values, got %d", len(c.WorldToCamera)))
	}
	if c.ClusterEpsilon <= 0 {
		return utils.NewConfigValidationError(path, errors.New("cluster_epsilon must be positive"))
	}
	if c.ClusterMinPoints <= 0 {
		return utils.NewConfigValidationError(path, errors.New("cluster_min_points must be positive"))
	}
	if c.MinDistanceToBackground < 0 {
		return utils.NewConfigValidationError(path, errors.New("min_distance_to_background must not be negative"))
	}
	if c.MaxDistanceToBackground <= c.MinDistanceToBackground {
		return utils.NewConfigValidationError(path, errors.New("max_distance_to_background must exceed min_distance_to_background"))
	}
	if c.MaxValidDistance <= 0 {
		return utils.NewConfigValidationError(path, errors.New("max_valid_distance must be positive"))
	}
	return nil
}

// LocatorConfig converts the instance into the locating engine's
// configuration. Validate must pass first so the matrix lengths are known
// good.
func (c *InstanceConfig) LocatorConfig() locate.LocatorConfig {
	cfg := locate.LocatorConfig{
		ImageWidth:              c.ImageWidth,
		ImageHeight:             c.ImageHeight,
		ClusterEpsilon:          c.ClusterEpsilon,
		ClusterMinPoints:        c.ClusterMinPoints,
		MinDistanceToBackground: c.MinDistanceToBackground,
		MaxDistanceToBackground: c.MaxDistanceToBackground,
		MaxValidDistance:        c.MaxValidDistance,
	}
	copy(cfg.CameraIntrinsic[:], c.Intrinsic)
	copy(cfg.LidarToCameraTransform[:], c.LidarToCamera)
	copy(cfg.WorldToCameraTransform[:], c.WorldToCamera)
	return cfg
}
