package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	graphruntime "github.com/visionpipe/graph-runtime"
	"github.com/visionpipe/graph-runtime/assets"
	"github.com/visionpipe/graph-runtime/pose"
)

type runFlags struct {
	width       int
	height      int
	fps         int
	interactive bool

	modelComplexity        int
	smoothLandmarks        bool
	staticImageMode        bool
	minDetectionConfidence float64
	minTrackingConfidence  float64
}

func newRunCmd() *cobra.Command {
	var flags runFlags

	cmd := &cobra.Command{
		Use:   "run <frame.rgba>...",
		Short: "Push raw RGBA frames through the pose graph",
		Long: `Reads packed RGBA frame files (width*height*4 bytes each), feeds them to
the pose graph in order, and prints one JSON result per frame on stdout.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if flags.width <= 0 || flags.height <= 0 {
				return fmt.Errorf("--width and --height are required")
			}
			if flags.fps <= 0 {
				flags.fps = 30
			}

			p, err := buildPose(flags, cmd)
			if err != nil {
				return err
			}
			defer p.Close(cmd.Context())

			if flags.interactive {
				return runInteractive(cmd.Context(), p, args, flags)
			}
			return runBatch(cmd.Context(), p, args, flags)
		},
	}

	cmd.Flags().IntVar(&flags.width, "width", 0, "Frame width in pixels")
	cmd.Flags().IntVar(&flags.height, "height", 0, "Frame height in pixels")
	cmd.Flags().IntVar(&flags.fps, "fps", 30, "Frame rate used to derive timestamps")
	cmd.Flags().BoolVarP(&flags.interactive, "interactive", "i", false, "Render a live landmark view instead of JSON")
	cmd.Flags().IntVar(&flags.modelComplexity, "model-complexity", 1, "Landmark model: 0 lite, 1 full, 2 heavy")
	cmd.Flags().BoolVar(&flags.smoothLandmarks, "smooth-landmarks", true, "Temporal landmark filtering")
	cmd.Flags().BoolVar(&flags.staticImageMode, "static-image-mode", false, "Treat frames as unrelated images")
	cmd.Flags().Float64Var(&flags.minDetectionConfidence, "min-detection-confidence", 0.5, "Detection confidence threshold")
	cmd.Flags().Float64Var(&flags.minTrackingConfidence, "min-tracking-confidence", 0.5, "Tracking confidence threshold")

	return cmd
}

func buildPose(flags runFlags, cmd *cobra.Command) (*pose.Pose, error) {
	dir, err := filepath.Abs(activeCfg.Assets.Dir)
	if err != nil {
		return nil, err
	}

	engineWASM, err := assets.NewFromDisk(filepath.Join(dir, pose.EngineWASMFile))
	if err != nil {
		return nil, err
	}
	descriptor, err := assets.NewFromDisk(filepath.Join(dir, pose.DescriptorFile))
	if err != nil {
		return nil, err
	}

	p, err := pose.New(pose.Config{
		EngineWASM:       engineWASM,
		Descriptor:       descriptor,
		MemoryLimitPages: activeCfg.Engine.MemoryLimitPages,
		Logger:           logger,
	})
	if err != nil {
		return nil, err
	}

	opts := pose.Options{}
	if cmd.Flags().Changed("model-complexity") {
		opts.ModelComplexity = &flags.modelComplexity
	}
	if cmd.Flags().Changed("smooth-landmarks") {
		opts.SmoothLandmarks = &flags.smoothLandmarks
	}
	if cmd.Flags().Changed("static-image-mode") {
		opts.StaticImageMode = &flags.staticImageMode
	}
	if cmd.Flags().Changed("min-detection-confidence") {
		opts.MinDetectionConfidence = &flags.minDetectionConfidence
	}
	if cmd.Flags().Changed("min-tracking-confidence") {
		opts.MinTrackingConfidence = &flags.minTrackingConfidence
	}
	if err := p.SetOptions(opts); err != nil {
		return nil, err
	}

	return p, nil
}

// frameResult is the JSON line printed per frame.
type frameResult struct {
	File      string                    `json:"file"`
	Timestamp int64                     `json:"timestamp_us"`
	Landmarks []pose.NormalizedLandmark `json:"landmarks,omitempty"`
	Rect      *pose.NormalizedRect      `json:"rect,omitempty"`
}

func runBatch(ctx context.Context, p *pose.Pose, files []string, flags runFlags) error {
	enc := json.NewEncoder(os.Stdout)

	var current string
	if err := p.OnResults(ctx, func(r pose.Result) {
		_ = enc.Encode(frameResult{
			File:      current,
			Timestamp: r.Timestamp,
			Landmarks: r.Landmarks,
			Rect:      r.Rect,
		})
	}); err != nil {
		return err
	}

	for i, file := range files {
		frame, err := readFrame(file, flags.width, flags.height)
		if err != nil {
			return err
		}
		frame.Timestamp = frameTimestamp(i, flags.fps)

		current = file
		if err := p.Send(ctx, frame); err != nil {
			return fmt.Errorf("frame %s: %w", file, err)
		}
	}
	return nil
}

func readFrame(path string, width, height int) (*graphruntime.Frame, error) {
	pixels, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read frame: %w", err)
	}
	if want := width * height * graphruntime.BytesPerPixel; len(pixels) != want {
		return nil, fmt.Errorf("frame %s is %d bytes, want %d for %dx%d RGBA",
			path, len(pixels), want, width, height)
	}
	return &graphruntime.Frame{Pixels: pixels, Width: width, Height: height}, nil
}

// frameTimestamp spaces frames evenly at the given rate, starting at 1us so
// the first frame passes the monotonic guard.
func frameTimestamp(index, fps int) int64 {
	return 1 + int64(index)*1_000_000/int64(fps)
}
