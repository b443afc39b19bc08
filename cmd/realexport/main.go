package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"log/slog"

	"github.com/lmittmann/tint"
	"github.com/spf13/cobra"

	"github.com/realexport/realexport/internal/compositor"
	"github.com/realexport/realexport/internal/config"
	"github.com/realexport/realexport/internal/export"
	"github.com/realexport/realexport/internal/loader"
	"github.com/realexport/realexport/internal/merge"
	"github.com/realexport/realexport/internal/models"
	"github.com/realexport/realexport/internal/placement"
	"github.com/realexport/realexport/internal/video"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

type app struct {
	cfg     *config.Config
	logger  *slog.Logger
	cfgPath string
	verbose bool
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:           "realexport",
		Short:         "Convert a personal data export into photos or a time-lapse video",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			level := slog.LevelInfo
			if a.verbose {
				level = slog.LevelDebug
			}
			a.logger = slog.New(
				tint.NewHandler(os.Stderr, &tint.Options{
					Level:      level,
					TimeFormat: "15:04:05",
				}),
			)

			var err error
			if a.cfgPath != "" {
				a.cfg, err = config.LoadFile(a.cfgPath)
			} else {
				a.cfg, err = config.Load()
			}
			return err
		},
	}

	root.PersistentFlags().StringVar(&a.cfgPath, "config", "", "path to a realexport.yaml config file")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "enable debug logging")

	root.AddCommand(newInspectCmd(a))
	root.AddCommand(newPhotosCmd(a))
	root.AddCommand(newVideoCmd(a))
	return root
}

// signalContext cancels on Ctrl+C so the current item finishes and the
// run ends as cancelled rather than killed.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func (a *app) load(path string) (*models.Export, error) {
	data, err := loader.NewLoader(a.logger).Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load export: %w", err)
	}
	return data, nil
}

// analyzer builds the placement analyzer, attaching the vision model and
// the persistent corner cache when available. The returned cleanup closes
// the cache and must be called when the command finishes.
func (a *app) analyzer(ctx context.Context, useVision bool) (*placement.Analyzer, func()) {
	var visual placement.VisualAnalyzer
	if useVision || a.cfg.Vision.Enabled {
		vcfg := placement.VisionConfig{
			BaseURL: a.cfg.Vision.BaseURL,
			Port:    a.cfg.Vision.Port,
			Model:   a.cfg.Vision.Model,
		}
		v, err := placement.NewVisionAnalyzer(ctx, vcfg, a.logger)
		if err != nil {
			a.logger.Warn("vision analysis unavailable, falling back to luminance", "error", err)
		} else {
			visual = v
		}
	}

	analyzer := placement.NewAnalyzer(visual, a.logger).WithWeights(placement.Weights{
		Face: a.cfg.Placement.FaceWeight,
		Body: a.cfg.Placement.BodyWeight,
		Text: a.cfg.Placement.TextWeight,
	})

	cleanup := func() {}
	if cache, err := placement.OpenCache(a.cfg.Placement.CachePath, a.logger); err != nil {
		a.logger.Warn("placement cache unavailable", "error", err)
	} else {
		analyzer = analyzer.WithCache(cache)
		cleanup = func() {
			if err := cache.Close(); err != nil {
				a.logger.Warn("failed to close placement cache", "error", err)
			}
		}
	}
	return analyzer, cleanup
}

func newInspectCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "inspect <export-path>",
		Short: "Summarize the contents of an export folder or ZIP",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := a.load(args[0])
			if err != nil {
				return err
			}

			fmt.Printf("User:                %s\n", data.User.Username)
			fmt.Printf("Posts:               %d\n", len(data.Posts))
			fmt.Printf("Memories:            %d\n", len(data.Memories))
			fmt.Printf("Exportable pairs:    %d\n", data.TotalImageCount())
			fmt.Printf("Conversation images: %d\n", len(data.ConversationImages))
			fmt.Printf("Comments:            %d\n", len(data.Comments))
			if min, max, ok := data.DateRange(); ok {
				fmt.Printf("Date range:          %s to %s\n",
					min.Format("2006-01-02"), max.Format("2006-01-02"))
			}
			return nil
		},
	}
}

func newPhotosCmd(a *app) *cobra.Command {
	var (
		out           string
		style         string
		position      string
		layout        string
		conversations bool
		comments      bool
		videos        bool
		bts           bool
		useVision     bool
	)

	cmd := &cobra.Command{
		Use:   "photos <export-path>",
		Short: "Export every capture pair as composited JPEG files",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signalContext()
			defer stop()

			data, err := a.load(args[0])
			if err != nil {
				return err
			}

			pos, err := parsePosition(position)
			if err != nil {
				return err
			}

			opts := models.ExportOptions{
				ImageStyle:           models.ImageStyle(style),
				OverlayPosition:      pos,
				FolderStructure:      models.FolderStructure(layout),
				IncludeConversations: conversations,
				IncludeComments:      comments,
				IncludeVideos:        videos,
				IncludeBTS:           bts,
				Destination:          out,
			}

			analyzer, cleanup := a.analyzer(ctx, useVision)
			defer cleanup()

			comp := compositor.NewCompositor(analyzer, a.logger)
			exporter := export.NewExporter(merge.NewMerger(a.logger), comp, a.logger)

			job := exporter.Start(ctx, data, opts, func(p models.ExportProgress) {
				fmt.Printf("\r[%d/%d] %s%-20s", p.Current, p.Total, p.CurrentItem, "")
			})
			outcome := job.Wait()
			fmt.Println()

			switch outcome.State {
			case export.StateCancelled:
				a.logger.Info("export cancelled", "completed", outcome.ItemsCompleted)
				return nil
			case export.StateFailed:
				return outcome.Err
			default:
				a.logger.Info("export completed", "items", outcome.ItemsCompleted)
				return nil
			}
		},
	}

	cmd.Flags().StringVarP(&out, "out", "o", "", "destination folder (required)")
	cmd.Flags().StringVar(&style, "style", string(models.StyleCombined), "image style: combined, separate or both")
	cmd.Flags().StringVar(&position, "position", string(models.PositionAuto), "overlay corner: auto, all, top-left, top-right, bottom-left or bottom-right")
	cmd.Flags().StringVar(&layout, "layout", string(models.FoldersByDate), "folder layout: by-date or flat")
	cmd.Flags().BoolVar(&conversations, "conversations", false, "copy conversation images")
	cmd.Flags().BoolVar(&comments, "comments", false, "write comments.txt files")
	cmd.Flags().BoolVar(&videos, "videos", false, "copy raw video captures")
	cmd.Flags().BoolVar(&bts, "bts", false, "copy behind-the-scenes captures")
	cmd.Flags().BoolVar(&useVision, "vision", false, "use the vision model for overlay placement")
	cmd.MarkFlagRequired("out")
	return cmd
}

func newVideoCmd(a *app) *cobra.Command {
	var (
		out         string
		content     string
		position    string
		fps         int
		width       int
		height      int
		from        string
		to          string
		dateOverlay bool
		useVision   bool
	)

	cmd := &cobra.Command{
		Use:   "video <export-path>",
		Short: "Render the capture history as a time-lapse video",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signalContext()
			defer stop()

			data, err := a.load(args[0])
			if err != nil {
				return err
			}

			pos, err := parseVideoPosition(position)
			if err != nil {
				return err
			}

			startDate, err := parseDate(from)
			if err != nil {
				return err
			}
			endDate, err := parseDate(to)
			if err != nil {
				return err
			}

			if fps == 0 {
				fps = a.cfg.Video.FramesPerSecond
			}
			opts := models.VideoOptions{
				Content:         models.VideoContent(content),
				OverlayPosition: pos,
				FramesPerSecond: fps,
				TargetWidth:     width,
				TargetHeight:    height,
				StartDate:       startDate,
				EndDate:         endDate,
				DateOverlay:     dateOverlay,
			}

			analyzer, cleanup := a.analyzer(ctx, useVision)
			defer cleanup()

			renderer, err := video.NewRenderer(analyzer, a.logger)
			if err != nil {
				return err
			}

			merged := merge.NewMerger(a.logger).Merge(data)
			generator := video.NewGenerator(renderer, a.cfg.FFmpegPath, out, a.logger)
			err = generator.Generate(ctx, merged.Pairs, opts, func(p models.ExportProgress) {
				fmt.Printf("\r[%d/%d] %s%-20s", p.Current, p.Total, p.CurrentItem, "")
			})
			fmt.Println()
			if err != nil {
				if ctx.Err() != nil {
					a.logger.Info("video generation cancelled")
					return nil
				}
				return err
			}

			a.logger.Info("video written", "path", out)
			return nil
		},
	}

	cmd.Flags().StringVarP(&out, "out", "o", "", "output video file (required)")
	cmd.Flags().StringVar(&content, "content", string(models.ContentCombinedBackMain), "frame content: back, front, combined or combined-front")
	cmd.Flags().StringVar(&position, "position", string(models.PositionAuto), "overlay corner for combined content")
	cmd.Flags().IntVar(&fps, "fps", 0, "frames per second (default from config)")
	cmd.Flags().IntVar(&width, "width", 0, "target frame width, 0 keeps the native size")
	cmd.Flags().IntVar(&height, "height", 0, "target frame height, 0 keeps the native size")
	cmd.Flags().StringVar(&from, "from", "", "only include captures on or after this date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&to, "to", "", "only include captures up to and including this date (YYYY-MM-DD)")
	cmd.Flags().BoolVar(&dateOverlay, "date-overlay", false, "stamp each frame with its capture date")
	cmd.Flags().BoolVar(&useVision, "vision", false, "use the vision model for overlay placement")
	cmd.MarkFlagRequired("out")
	return cmd
}

func parsePosition(s string) (models.OverlayPosition, error) {
	pos := models.OverlayPosition(s)
	switch pos {
	case models.PositionAuto, models.PositionAll:
		return pos, nil
	}
	if pos.IsFixed() {
		return pos, nil
	}
	return "", fmt.Errorf("unknown overlay position %q", s)
}

// parseVideoPosition additionally rejects the all-corners mode, which only
// makes sense when writing multiple composite files per pair.
func parseVideoPosition(s string) (models.OverlayPosition, error) {
	pos, err := parsePosition(s)
	if err != nil {
		return "", err
	}
	if pos == models.PositionAll {
		return "", fmt.Errorf("overlay position %q is only valid for photo exports", s)
	}
	return pos, nil
}

func parseDate(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return nil, fmt.Errorf("invalid date %q, expected YYYY-MM-DD", s)
	}
	return &t, nil
}
