package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/harry-hain/moviepy/clip"
	"github.com/harry-hain/moviepy/config"
	"github.com/harry-hain/moviepy/ffmpeg"
	"github.com/harry-hain/moviepy/internal/logging"
	"github.com/harry-hain/moviepy/pkg/util"
	"github.com/harry-hain/moviepy/render"
	"github.com/harry-hain/moviepy/timeline"
)

var (
	cfgFile string
	verbose bool
)

func main() {
	ctx := context.Background()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "moviepy",
	Short: "moviepy - compositional video editing toolkit",
	Long:  "A lazy, compositional video editor: build clips, chain effects, composite and concatenate, then stream the result through ffmpeg.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		logging.Init(verbose)

		cfg, err := config.Load(cfgFile)
		if err != nil {
			return err
		}
		cmd.SetContext(config.WithConfig(cmd.Context(), cfg))
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./moviepy.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	renderCmd.Flags().StringP("output", "o", "out.mp4", "output file")
	renderCmd.Flags().String("start", "", "trim start (HH:MM:SS.mmm or seconds)")
	renderCmd.Flags().String("end", "", "trim end")
	renderCmd.Flags().Float64("fps", 0, "output frame rate (default: config)")

	concatCmd.Flags().StringP("output", "o", "out.mp4", "output file")
	concatCmd.Flags().Float64("transition", 0, "crossfade length in seconds")
	concatCmd.Flags().Float64("fps", 0, "output frame rate (default: config)")

	rootCmd.AddCommand(renderCmd)
	rootCmd.AddCommand(concatCmd)
	rootCmd.AddCommand(probeCmd)
	rootCmd.AddCommand(configCmd)
}

var renderCmd = &cobra.Command{
	Use:   "render [input video]",
	Short: "Re-encode a video, optionally trimmed",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.FromContext(cmd.Context())
		output, _ := cmd.Flags().GetString("output")
		if err := ensureOutputDir(output); err != nil {
			return err
		}

		v, err := ffmpeg.OpenVideo(cmd.Context(), log.Logger, args[0])
		if err != nil {
			return err
		}
		defer v.Close()

		if v, err = trimFlags(cmd, v); err != nil {
			return err
		}

		rc := renderConfig(cmd, cfg)
		log.Info().Str("input", args[0]).Str("output", output).Msg("rendering")
		return render.ToFile(cmd.Context(), log.Logger, v, output, rc)
	},
}

var concatCmd = &cobra.Command{
	Use:   "concat [inputs...]",
	Short: "Concatenate videos, optionally with a crossfade",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.FromContext(cmd.Context())
		output, _ := cmd.Flags().GetString("output")
		if err := ensureOutputDir(output); err != nil {
			return err
		}
		transition, _ := cmd.Flags().GetFloat64("transition")

		clips := make([]*clip.VideoClip, 0, len(args))
		for _, path := range args {
			if !util.FileExists(path) {
				return fmt.Errorf("input not found: %s", path)
			}
			v, err := ffmpeg.OpenVideo(cmd.Context(), log.Logger, path)
			if err != nil {
				return err
			}
			defer v.Close()
			clips = append(clips, v)
		}

		joined, err := timeline.Concatenate(clips, timeline.Options{
			Transition: clip.FromSeconds(transition),
		})
		if err != nil {
			return err
		}

		rc := renderConfig(cmd, cfg)
		log.Info().Int("inputs", len(args)).Str("output", output).Msg("concatenating")
		return render.ToFile(cmd.Context(), log.Logger, joined, output, rc)
	},
}

var probeCmd = &cobra.Command{
	Use:   "probe [input video]",
	Short: "Show stream metadata for a media file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		info, err := ffmpeg.Probe(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		log.Info().
			Str("file", info.FilePath).
			Dur("duration", info.Duration).
			Int("width", info.Width).
			Int("height", info.Height).
			Float64("fps", info.FPS).
			Str("video_codec", info.VideoCodec).
			Bool("audio", info.HasAudio).
			Str("audio_codec", info.AudioCodec).
			Int("sample_rate", info.SampleRate).
			Int("channels", info.AudioChannels).
			Msg("probe")
		return nil
	},
}

var configCmd = &cobra.Command{
	Use:   "config [path]",
	Short: "Write the current configuration to a file",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.FromContext(cmd.Context())
		path := "moviepy.yaml"
		if len(args) == 1 {
			path = args[0]
		}
		if err := cfg.Save(path); err != nil {
			return err
		}
		log.Info().Str("path", path).Msg("config written")
		return nil
	},
}

// trimFlags applies --start/--end to the opened clip.
func trimFlags(cmd *cobra.Command, v *clip.VideoClip) (*clip.VideoClip, error) {
	startStr, _ := cmd.Flags().GetString("start")
	endStr, _ := cmd.Flags().GetString("end")
	if startStr == "" && endStr == "" {
		return v, nil
	}

	start := clip.Rational{}
	end := v.Duration()
	if startStr != "" {
		d, err := util.ParseTimestamp(startStr)
		if err != nil {
			return nil, err
		}
		start = clip.FromSeconds(d.Seconds())
	}
	if endStr != "" {
		d, err := util.ParseTimestamp(endStr)
		if err != nil {
			return nil, err
		}
		end = clip.FromSeconds(d.Seconds())
	}
	return v.Subclip(start, end)
}

func renderConfig(cmd *cobra.Command, cfg *config.Config) render.Config {
	fps, _ := cmd.Flags().GetFloat64("fps")
	if fps <= 0 {
		fps = cfg.Video.FPS
	}
	return render.Config{
		FPS:        fps,
		SampleRate: cfg.Audio.SampleRate,
		Channels:   cfg.Audio.Channels,
	}
}

func ensureOutputDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return util.EnsureDir(dir)
}
