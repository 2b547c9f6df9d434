package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/schemforge/schemforge/pkg/pipeline"
)

// netlistCommand creates the netlist command for connectivity inference.
func (c *CLI) netlistCommand() *cobra.Command {
	var (
		output        string
		oracleName    string
		oracleTimeout int
		noCache       bool
		refresh       bool
	)

	cmd := &cobra.Command{
		Use:     "netlist [schematic]",
		Aliases: []string{"infer"},
		Short:   "Infer and validate the complete netlist for a schematic",
		Long: `Infer and validate the complete netlist for a schematic.

Declared nets are seeded first, then the oracle suggests connections for
every remaining pin. Pins the oracle cannot place end up on single-pin
nets flagged as low confidence. The completed netlist is written as JSON.

Results are cached locally for faster subsequent runs.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := pipeline.ValidateOracle(oracleName); err != nil {
				return err
			}
			opts := pipeline.Options{
				SchematicPath: args[0],
				Oracle:        oracleName,
				OracleTimeout: time.Duration(oracleTimeout) * time.Second,
				Refresh:       refresh,
				GeminiAPIKey:  geminiKey(),
				Logger:        c.Logger,
			}
			return c.runNetlist(cmd.Context(), args[0], opts, output, noCache)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default: stdout)")
	cmd.Flags().StringVar(&oracleName, "oracle", pipeline.DefaultOracle, "inference oracle: heuristic (default), gemini, null")
	cmd.Flags().IntVar(&oracleTimeout, "oracle-timeout", 60, "per-pin oracle timeout in seconds")
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "disable caching")
	cmd.Flags().BoolVar(&refresh, "refresh", false, "recompute even if cached")

	return cmd
}

// runNetlist parses the schematic, completes connectivity, and writes the result.
func (c *CLI) runNetlist(ctx context.Context, input string, opts pipeline.Options, output string, noCache bool) error {
	runner, err := c.newRunner(noCache)
	if err != nil {
		return fmt.Errorf("initialize runner: %w", err)
	}
	defer runner.Close()

	sch, hash, err := runner.Parse(ctx, opts)
	if err != nil {
		return fmt.Errorf("parse %s: %w", input, err)
	}

	spinner := newSpinner(ctx, "Inferring connectivity...")
	spinner.Start()

	res, cacheHit, err := runner.CompleteNetlist(ctx, sch, hash, opts)
	if err != nil {
		spinner.StopWithError("Inference failed")
		return fmt.Errorf("netlist: %w", err)
	}
	spinner.Stop()

	data, err := json.MarshalIndent(res.Netlist, "", "  ")
	if err != nil {
		return err
	}
	if err := writeOutput(output, data); err != nil {
		return err
	}

	if output != "" {
		printSuccess("Wrote %s", output)
	}
	printStats(sch.ComponentCount(), res.Netlist.Len(), cacheHit)
	for _, pin := range res.LowConfidence {
		printWarning("low confidence: %s", pin)
	}
	for _, outage := range res.Outages {
		printWarning("oracle outage at %s: %s", outage.Pin, outage.Reason)
	}
	return nil
}
