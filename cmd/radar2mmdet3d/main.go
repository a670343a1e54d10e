// Package main converts a recorded RoboMaster match, a rosbag of lidar
// clouds plus one video per camera, into an MMDetection3D style dataset.
package main

import (
	"context"

	"github.com/edaniels/golog"
	"github.com/pkg/errors"
	"go.viam.com/utils"

	"github.com/zmsbruce/rm-radar-to-mmdet3d/align"
	"github.com/zmsbruce/rm-radar-to-mmdet3d/config"
	"github.com/zmsbruce/rm-radar-to-mmdet3d/dataset"
	"github.com/zmsbruce/rm-radar-to-mmdet3d/detect"
	"github.com/zmsbruce/rm-radar-to-mmdet3d/locate"
	"github.com/zmsbruce/rm-radar-to-mmdet3d/radar"
)

var logger = golog.NewDevelopmentLogger("radar2mmdet3d")

func main() {
	utils.ContextualMain(mainWithArgs, logger)
}

// Arguments for the command.
type Arguments struct {
	ConfigFile string `flag:"0,required,usage=pipeline config file"`
	OutputDir  string `flag:"output,usage=override the configured output directory"`
	Debug      bool   `flag:"debug"`
}

func mainWithArgs(ctx context.Context, args []string, logger golog.Logger) error {
	var argsParsed Arguments
	if err := utils.ParseFlags(args, &argsParsed); err != nil {
		return err
	}
	if argsParsed.Debug {
		logger = golog.NewDebugLogger("radar2mmdet3d")
	}

	cfg, err := config.Read(argsParsed.ConfigFile, logger)
	if err != nil {
		return err
	}
	if argsParsed.OutputDir != "" {
		cfg.OutputDir = argsParsed.OutputDir
	}

	return runPipeline(ctx, cfg, logger)
}

func runPipeline(ctx context.Context, cfg *config.Config, logger golog.Logger) error {
	outputDir, err := dataset.ResolveOutputDir(cfg.OutputDir, logger)
	if err != nil {
		return err
	}

	aligner, err := align.NewBagVideoAligner(
		cfg.Bag,
		cfg.LidarTopic,
		cfg.VideoPaths(),
		cfg.FrameRate,
		logger,
	)
	if err != nil {
		return err
	}

	locators := make([]*locate.Locator, 0, len(cfg.Instances))
	for i := range cfg.Instances {
		locator, err := locate.NewLocator(cfg.Instances[i].LocatorConfig())
		if err != nil {
			return errors.Wrapf(err, "failed to construct locator for %q", cfg.Instances[i].Name)
		}
		locators = append(locators, locator)
	}

	writer := dataset.NewWriter(outputDir, len(cfg.Instances))
	if err := writer.MakeLayout(); err != nil {
		return err
	}

	detector := detect.NewBrightnessDetector(cfg.Detector.Threshold)

	r, err := radar.New(aligner, detector, locators, writer, logger)
	if err != nil {
		return err
	}

	if err := r.BuildModels(ctx); err != nil {
		return err
	}
	detections, err := r.ProcessFrames(ctx)
	if err != nil {
		return err
	}
	if err := r.LocateAndWrite(ctx, detections); err != nil {
		return err
	}
	return r.WriteCalibs()
}
