package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ormasoftchile/itemforge/pkg/diagram"
	"github.com/ormasoftchile/itemforge/pkg/feedback"
	"github.com/ormasoftchile/itemforge/pkg/pipeline"
	"github.com/ormasoftchile/itemforge/pkg/schema"
	"github.com/ormasoftchile/itemforge/pkg/widgets"
)

// --- resolve ---

var (
	resolveScreenshot string
	resolveAttach     []string
	resolveOut        string
)

var resolveCmd = &cobra.Command{
	Use:   "resolve [source]",
	Short: "Resolve the media of a source and print its envelope",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, err := loadConfig()
		if err != nil {
			return err
		}
		defer log.Sync() //nolint:errcheck

		env, err := resolveSource(cmd.Context(), cfg.Assets, log, args[0], resolveScreenshot, resolveAttach)
		if err != nil {
			return err
		}
		return writeJSON(cmd.OutOrStdout(), resolveOut, env)
	},
}

// --- plan ---

var planFormat string

var planCmd = &cobra.Command{
	Use:   "plan [declarations.json]",
	Short: "Build the feedback plan for response declarations and interactions",
	Long: `Build the feedback plan from a JSON file of the form
{"responseDeclarations": [...], "interactions": {...}}.

Examples:
  itemforge plan decls.json
  itemforge plan decls.json --format mermaid
  itemforge plan decls.json --format ascii`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("read plan input: %w", err)
		}
		in, err := feedback.ParseInput(data)
		if err != nil {
			return err
		}
		plan := in.Plan()
		if planFormat == "json" {
			return writeJSON(cmd.OutOrStdout(), "", plan)
		}
		out, err := diagram.Generate(plan, diagram.Format(planFormat))
		if err != nil {
			return err
		}
		fmt.Fprint(cmd.OutOrStdout(), out)
		return nil
	},
}

// --- collect ---

var collectCmd = &cobra.Command{
	Use:   "collect [item.json]",
	Short: "Print the slot references of an assembled item",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("read item: %w", err)
		}
		var item pipeline.Item
		if err := json.Unmarshal(data, &item); err != nil {
			return fmt.Errorf("parse item %s: %w", args[0], err)
		}
		m, err := item.References()
		if err != nil {
			return err
		}
		if err := writeJSON(cmd.OutOrStdout(), "", m); err != nil {
			return err
		}
		missing, err := item.MissingWidgets()
		if err != nil {
			return err
		}
		if len(missing) > 0 {
			return fmt.Errorf("%d widget(s) referenced but not generated: %v", len(missing), missing)
		}
		return nil
	},
}

// --- schema ---

var schemaCmd = &cobra.Command{
	Use:       "schema [shell|interactions|feedback|feedback_leaf|widgets|item]",
	Short:     "Export a JSON Schema to stdout",
	Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	ValidArgs: schema.Kinds,
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := schema.Export(args[0], widgets.Default())
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(data))
		return nil
	},
}

func init() {
	resolveCmd.Flags().StringVar(&resolveScreenshot, "screenshot", "", "Absolute URL of a rendered screenshot of the item")
	resolveCmd.Flags().StringArrayVar(&resolveAttach, "attach", nil, "Local image to include as a payload, repeatable")
	resolveCmd.Flags().StringVar(&resolveOut, "out", "", "Write the envelope to this file instead of stdout")

	planCmd.Flags().StringVar(&planFormat, "format", "json", "Output format: json, mermaid, or ascii")
}
