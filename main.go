// Package main provides overlayctl, a command-line front end to the
// overlay pipeline that runs without the HTTP server.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/maauso/videooverlay-api/internal/bootstrap"
	"github.com/maauso/videooverlay-api/internal/config"
	"github.com/maauso/videooverlay-api/internal/geometry"
	"github.com/maauso/videooverlay-api/internal/job"
)

var (
	rootCmd = &cobra.Command{
		Use:   "overlayctl",
		Short: "Burn a still image into a video",
		Long: `overlayctl runs the overlay pipeline on local files, using the same
storage, encoder and registry settings as the API server (read from the
environment).

Examples:
  # Place a 150x150 logo at (100,50) of a 640x360 preview
  overlayctl compose --image logo.png --video clip.mp4 \
    --x 100 --y 50 --width 150 --height 150 \
    --preview-width 640 --preview-height 360 -o out.mp4

  # Print the native frame size of a video
  overlayctl probe clip.mp4

  # Remove expired artifacts once
  overlayctl sweep`,
		SilenceUsage: true,
	}

	composeCmd = &cobra.Command{
		Use:   "compose",
		Short: "Composite an image over a video",
		Long: `Composite an image over a video. The rectangle is given in preview
coordinates; --preview-width and --preview-height are the size the video was
displayed at. Use the native frame size for both to place it in pixels.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			imagePath, _ := cmd.Flags().GetString("image")
			videoPath, _ := cmd.Flags().GetString("video")
			outPath, _ := cmd.Flags().GetString("output")

			var rect geometry.Rect
			var preview geometry.Size
			rect.X, _ = cmd.Flags().GetFloat64("x")
			rect.Y, _ = cmd.Flags().GetFloat64("y")
			rect.Width, _ = cmd.Flags().GetFloat64("width")
			rect.Height, _ = cmd.Flags().GetFloat64("height")
			preview.Width, _ = cmd.Flags().GetFloat64("preview-width")
			preview.Height, _ = cmd.Flags().GetFloat64("preview-height")

			return withDependencies(cmd.Context(), func(ctx context.Context, deps *bootstrap.Dependencies) error {
				return compose(ctx, deps, imagePath, videoPath, outPath, rect, preview)
			})
		},
	}

	probeCmd = &cobra.Command{
		Use:   "probe <video>",
		Short: "Print a video's native frame size",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDependencies(cmd.Context(), func(ctx context.Context, deps *bootstrap.Dependencies) error {
				info, err := deps.Processor.ProbeVideo(ctx, args[0])
				if err != nil {
					return err
				}
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(info)
			})
		},
	}

	sweepCmd = &cobra.Command{
		Use:   "sweep",
		Short: "Remove artifacts older than ARTIFACT_TTL",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDependencies(cmd.Context(), func(ctx context.Context, deps *bootstrap.Dependencies) error {
				if deps.Janitor == nil {
					return fmt.Errorf("artifact expiry is disabled (ARTIFACT_TTL=0)")
				}
				res, err := deps.Janitor.SweepOnce(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "removed %d files, %d records, %d jobs\n", len(res.Files), len(res.Records), len(res.Jobs))
				return nil
			})
		},
	}
)

func init() {
	composeCmd.Flags().String("image", "", "Overlay image file")
	composeCmd.Flags().String("video", "", "Source video file")
	composeCmd.Flags().Float64("x", 0, "Overlay left edge in preview pixels")
	composeCmd.Flags().Float64("y", 0, "Overlay top edge in preview pixels")
	composeCmd.Flags().Float64("width", 0, "Overlay width in preview pixels")
	composeCmd.Flags().Float64("height", 0, "Overlay height in preview pixels")
	composeCmd.Flags().Float64("preview-width", 0, "Width the video was displayed at")
	composeCmd.Flags().Float64("preview-height", 0, "Height the video was displayed at")
	composeCmd.Flags().StringP("output", "o", "", "Copy the composited video here")

	_ = composeCmd.MarkFlagRequired("image")
	_ = composeCmd.MarkFlagRequired("video")
	_ = composeCmd.MarkFlagRequired("width")
	_ = composeCmd.MarkFlagRequired("height")
	_ = composeCmd.MarkFlagRequired("preview-width")
	_ = composeCmd.MarkFlagRequired("preview-height")

	rootCmd.AddCommand(composeCmd)
	rootCmd.AddCommand(probeCmd)
	rootCmd.AddCommand(sweepCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// withDependencies loads configuration, wires the pipeline and runs fn.
func withDependencies(ctx context.Context, fn func(context.Context, *bootstrap.Dependencies) error) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger := cfg.NewLogger()
	slog.SetDefault(logger)

	deps, err := bootstrap.NewDependencies(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("initialize dependencies: %w", err)
	}
	defer func() { _ = deps.Close() }()

	return fn(ctx, deps)
}

func compose(ctx context.Context, deps *bootstrap.Dependencies, imagePath, videoPath, outPath string, rect geometry.Rect, preview geometry.Size) error {
	image, err := os.Open(imagePath) // #nosec G304 - operator-supplied path
	if err != nil {
		return fmt.Errorf("open image: %w", err)
	}
	defer func() { _ = image.Close() }()

	video, err := os.Open(videoPath) // #nosec G304 - operator-supplied path
	if err != nil {
		return fmt.Errorf("open video: %w", err)
	}
	defer func() { _ = video.Close() }()

	up, err := deps.OverlayService.Upload(ctx,
		job.File{Name: filepath.Base(imagePath), Data: image},
		job.File{Name: filepath.Base(videoPath), Data: video},
	)
	if err != nil {
		return err
	}

	res, err := deps.OverlayService.Overlay(ctx, job.OverlayInput{
		ImageRef: up.Image.ID,
		VideoRef: up.Video.ID,
		Rect:     rect,
		Preview:  preview,
	})
	if err != nil {
		return err
	}

	g := res.Artifact.Geometry
	fmt.Printf("composited %s (%dx%d at %d,%d)\n", res.Artifact.ID, g.Width, g.Height, g.X, g.Y)
	if res.Artifact.S3URL != "" {
		fmt.Printf("s3: %s\n", res.Artifact.S3URL)
	}

	if outPath == "" {
		fmt.Println(res.Artifact.Path)
		return nil
	}

	out, err := os.Create(outPath) // #nosec G304 - operator-supplied path
	if err != nil {
		return fmt.Errorf("create output: %w", err)
	}
	if _, err := deps.Gateway.Stream(ctx, out, res.Artifact.ID); err != nil {
		_ = out.Close()
		_ = os.Remove(outPath)
		return err
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("close output: %w", err)
	}
	fmt.Println(outPath)
	return nil
}
