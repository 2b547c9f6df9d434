package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/schemforge/schemforge/pkg/pipeline"
)

// boardCommand creates the board command running the full pipeline.
func (c *CLI) boardCommand() *cobra.Command {
	var (
		output        string
		formatsStr    string
		profilePath   string
		oracleName    string
		oracleTimeout int
		noCache       bool
		refresh       bool
	)

	cmd := &cobra.Command{
		Use:   "board [schematic]",
		Short: "Generate placed and routed board files from a schematic",
		Long: `Generate placed and routed board files from a schematic.

The board command runs the full pipeline: parse the schematic, complete
its connectivity with the oracle, place components on the board outline,
route the nets, and write the requested output formats.

Board geometry defaults to a 100x80mm outline and can be overridden with
a TOML profile via --profile.

Results are cached locally for faster subsequent runs.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			formats := parseFormats(formatsStr)
			if err := pipeline.ValidateFormats(formats); err != nil {
				return err
			}
			if err := pipeline.ValidateOracle(oracleName); err != nil {
				return err
			}
			opts := pipeline.Options{
				SchematicPath: args[0],
				Oracle:        oracleName,
				OracleTimeout: time.Duration(oracleTimeout) * time.Second,
				ProfilePath:   profilePath,
				Formats:       formats,
				Refresh:       refresh,
				GeminiAPIKey:  geminiKey(),
			}
			return c.runBoard(cmd.Context(), args[0], opts, output, noCache)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (single format) or base path (multiple)")
	cmd.Flags().StringVarP(&formatsStr, "format", "f", "", "output format(s): kicad_pcb (default), text, json (comma-separated)")
	cmd.Flags().StringVar(&profilePath, "profile", "", "board profile TOML file")
	cmd.Flags().StringVar(&oracleName, "oracle", pipeline.DefaultOracle, "inference oracle: heuristic (default), gemini, null")
	cmd.Flags().IntVar(&oracleTimeout, "oracle-timeout", 60, "per-pin oracle timeout in seconds")
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "disable caching")
	cmd.Flags().BoolVar(&refresh, "refresh", false, "recompute even if cached")

	return cmd
}

// runBoard executes the pipeline and writes the artifacts.
func (c *CLI) runBoard(ctx context.Context, input string, opts pipeline.Options, output string, noCache bool) error {
	runner, err := c.newRunner(noCache)
	if err != nil {
		return fmt.Errorf("initialize runner: %w", err)
	}
	defer runner.Close()

	spinner := newSpinner(ctx, "Generating board...")
	spinner.Start()

	res, err := runner.Execute(ctx, opts)
	if err != nil {
		spinner.StopWithError("Board generation failed")
		return fmt.Errorf("board: %w", err)
	}
	spinner.Stop()

	if err := writeArtifacts(artifactWriteParams{
		artifacts: res.Artifacts,
		formats:   opts.Formats,
		input:     input,
		output:    output,
		cacheHit:  res.CacheInfo.ExportHit,
	}, pipeline.Extension); err != nil {
		return err
	}

	printStats(res.Schematic.ComponentCount(), res.Netlist.Len(), res.CacheInfo.BoardHit)
	if res.Board.Unconverged {
		printWarning("placement did not converge, output is best effort")
	}
	for _, u := range res.Board.Unresolved {
		printWarning("unrouted: %s %s to %s", u.Net, u.From, u.To)
	}
	for _, outage := range res.Inference.Outages {
		printWarning("oracle outage at %s: %s", outage.Pin, outage.Reason)
	}
	printDetail("run: %s", res.Report.RunID)
	return nil
}
