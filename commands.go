package main

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"video-rewrite/internal/container"
	"video-rewrite/internal/filters"
	"video-rewrite/internal/startup"
)

func newFiltersCommand() *cobra.Command {
	var noVips bool

	cmd := &cobra.Command{
		Use:   "filters",
		Short: "List filter variants",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := startup.ReadConfig()
			if err != nil {
				return err
			}
			rc := filters.NewRenderContext(cfg.UseVips && !noVips)
			defer rc.Close()

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tENGINE\tDESCRIPTION")
			for _, v := range filters.NewCatalog(rc).Variants() {
				fmt.Fprintf(w, "%s\t%s\t%s\n", v.Name, v.Engine, v.Description)
			}
			return w.Flush()
		},
	}
	cmd.Flags().BoolVar(&noVips, "no-vips", false, "Do not start libvips")
	return cmd
}

func newInspectCommand() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "inspect FILE",
		Short: "Summarize a QuickTime/MP4 file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			summary, err := container.Inspect(args[0])
			if err != nil {
				return err
			}
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(summary)
			}
			return printSummary(cmd, summary)
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON")
	return cmd
}

func printSummary(cmd *cobra.Command, s *container.Summary) error {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Brand:      %s\n", s.MajorBrand)
	fmt.Fprintf(out, "Duration:   %v\n", s.Duration.Round(time.Millisecond))
	fmt.Fprintf(out, "Fast start: %v\n\n", s.FastStart)

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tKIND\tCODEC\tSAMPLES\tDURATION\tDETAILS")
	for _, t := range s.Tracks {
		details := ""
		if t.Kind == container.KindVideo {
			details = fmt.Sprintf("%dx%d", t.Width, t.Height)
			if t.Profile != "" {
				details += " " + t.Profile
			}
			if t.Rotation != 0 {
				details += fmt.Sprintf(" rotate=%d", t.Rotation)
			}
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%d\t%v\t%s\n", t.ID, t.Kind, t.Codec, t.Samples,
			t.Duration.Round(time.Millisecond), details)
	}
	return w.Flush()
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			info := startup.GetBuildInfo()
			fmt.Fprintf(cmd.OutOrStdout(), "video-rewrite %s (commit %s, built %s, %s %s/%s)\n",
				info.Version, info.Commit, info.BuildTime, info.GoVersion, info.OS, info.Arch)
		},
	}
}
