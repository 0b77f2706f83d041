package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ormasoftchile/itemforge/pkg/assets"
	"github.com/ormasoftchile/itemforge/pkg/pipeline"
)

var (
	generateScreenshot string
	generateAttach     []string
	generateOut        string
	generateRecord     string
)

var generateCmd = &cobra.Command{
	Use:   "generate [source]",
	Short: "Generate an assessment item from a legacy source file",
	Long: `Resolve the media of a JSON, HTML or Markdown source and run the
generation stages: shell, interactions, feedback and widgets.

Examples:
  itemforge generate item.json --out assessment.json
  itemforge generate item.html --screenshot https://cdn.example.com/shot.png
  itemforge generate item.json --attach figure.png --record fixtures/item`,
	Args: cobra.ExactArgs(1),
	RunE: runGenerate,
}

func runGenerate(cmd *cobra.Command, args []string) error {
	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}
	defer log.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	env, err := resolveSource(ctx, cfg.Assets, log, args[0], generateScreenshot, generateAttach)
	if err != nil {
		return err
	}

	b, err := cfg.NewBackend(log, generateRecord)
	if err != nil {
		return err
	}
	orch := pipeline.New(b,
		pipeline.WithLimits(cfg.Limits),
		pipeline.WithLogger(log),
	)
	res, err := orch.Run(ctx, env)
	if err != nil {
		var se *pipeline.StageError
		if errors.As(err, &se) {
			return fmt.Errorf("generation failed at stage %s: %w", se.Stage, se.Err)
		}
		return err
	}

	if err := writeJSON(cmd.OutOrStdout(), generateOut, res.Item); err != nil {
		return err
	}
	printSummary(res)
	return nil
}

func printSummary(res *pipeline.Result) {
	item := res.Item
	w := os.Stderr
	fmt.Fprintln(w, okStyle.Render("✓ ")+item.Identifier+" "+dimStyle.Render("("+res.RunID+")"))
	fmt.Fprintf(w, "  %s %s\n", keyStyle.Render("model:"), res.Model)
	fmt.Fprintf(w, "  %s %d\n", keyStyle.Render("interactions:"), len(item.Interactions))
	fmt.Fprintf(w, "  %s %d\n", keyStyle.Render("widgets:"), len(item.Widgets))
	fmt.Fprintf(w, "  %s %s, %d combination(s)\n", keyStyle.Render("feedback:"), item.FeedbackPlan.Mode, len(item.FeedbackPlan.Combinations))
	if len(res.Skipped) > 0 {
		skipped := make([]string, len(res.Skipped))
		for i, s := range res.Skipped {
			skipped[i] = string(s)
		}
		fmt.Fprintf(w, "  %s %s\n", keyStyle.Render("skipped:"), strings.Join(skipped, ", "))
	}
	if generateOut != "" {
		fmt.Fprintf(w, "  %s %s\n", keyStyle.Render("written:"), generateOut)
	}
}

// resolveSource loads path, adds the screenshot and attachments, and
// resolves its media.
func resolveSource(ctx context.Context, cfg assets.Config, log *zap.Logger, path, screenshot string, attach []string) (*assets.Envelope, error) {
	src, err := assets.LoadSource(path)
	if err != nil {
		return nil, err
	}
	src.ScreenshotURL = screenshot
	for _, a := range attach {
		p, err := assets.LoadAttachment(a)
		if err != nil {
			return nil, err
		}
		src.Attachments = append(src.Attachments, p)
	}
	return assets.NewResolver(cfg, assets.WithLogger(log)).Resolve(ctx, src)
}

func init() {
	generateCmd.Flags().StringVar(&generateScreenshot, "screenshot", "", "Absolute URL of a rendered screenshot of the item")
	generateCmd.Flags().StringArrayVar(&generateAttach, "attach", nil, "Local image to send as visual context, repeatable")
	generateCmd.Flags().StringVar(&generateOut, "out", "", "Write the item to this file instead of stdout")
	generateCmd.Flags().StringVar(&generateRecord, "record", "", "Record every stage response as a YAML fixture in this directory")
}
