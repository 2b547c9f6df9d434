package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/schemforge/schemforge/pkg/pipeline"
	"github.com/schemforge/schemforge/pkg/render/netgraph"
)

// Graph output formats.
const (
	graphFormatDOT = "dot"
	graphFormatSVG = "svg"
	graphFormatPNG = "png"
)

// validGraphFormats is the set of supported graph output formats.
var validGraphFormats = map[string]bool{
	graphFormatDOT: true,
	graphFormatSVG: true,
	graphFormatPNG: true,
}

// graphCommand creates the graph command for connectivity diagrams.
func (c *CLI) graphCommand() *cobra.Command {
	var (
		output         string
		format         string
		showSingletons bool
		oracleName     string
		oracleTimeout  int
		noCache        bool
	)

	cmd := &cobra.Command{
		Use:   "graph [schematic]",
		Short: "Render the inferred connectivity as a net graph",
		Long: `Render the inferred connectivity as a net graph.

Components render as boxes and nets as ellipses. Declared nets get solid
borders, inferred nets dashed ones. Single-pin nets from fail-open
inference are hidden unless --singletons is set.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !validGraphFormats[format] {
				return fmt.Errorf("invalid format: %s (must be 'dot', 'svg', or 'png')", format)
			}
			if err := pipeline.ValidateOracle(oracleName); err != nil {
				return err
			}
			opts := pipeline.Options{
				SchematicPath: args[0],
				Oracle:        oracleName,
				OracleTimeout: time.Duration(oracleTimeout) * time.Second,
				GeminiAPIKey:  geminiKey(),
				Logger:        c.Logger,
			}
			return c.runGraph(cmd.Context(), args[0], opts, format, output, showSingletons, noCache)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default: stdout)")
	cmd.Flags().StringVarP(&format, "format", "f", graphFormatSVG, "output format: svg (default), png, dot")
	cmd.Flags().BoolVar(&showSingletons, "singletons", false, "include single-pin nets")
	cmd.Flags().StringVar(&oracleName, "oracle", pipeline.DefaultOracle, "inference oracle: heuristic (default), gemini, null")
	cmd.Flags().IntVar(&oracleTimeout, "oracle-timeout", 60, "per-pin oracle timeout in seconds")
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "disable caching")

	return cmd
}

// runGraph infers connectivity and renders the net graph.
func (c *CLI) runGraph(ctx context.Context, input string, opts pipeline.Options, format, output string, showSingletons, noCache bool) error {
	runner, err := c.newRunner(noCache)
	if err != nil {
		return fmt.Errorf("initialize runner: %w", err)
	}
	defer runner.Close()

	sch, hash, err := runner.Parse(ctx, opts)
	if err != nil {
		return fmt.Errorf("parse %s: %w", input, err)
	}

	res, _, err := runner.CompleteNetlist(ctx, sch, hash, opts)
	if err != nil {
		return fmt.Errorf("netlist: %w", err)
	}

	dot := netgraph.ToDOT(sch, res.Netlist, netgraph.Options{ShowSingletons: showSingletons})

	var data []byte
	switch format {
	case graphFormatDOT:
		data = []byte(dot)
	case graphFormatSVG:
		data, err = netgraph.RenderSVG(dot)
	case graphFormatPNG:
		data, err = netgraph.RenderPNG(dot)
	}
	if err != nil {
		return fmt.Errorf("render %s: %w", format, err)
	}

	if err := writeOutput(output, data); err != nil {
		return err
	}
	if output != "" {
		printSuccess("Wrote %s", output)
		printStats(sch.ComponentCount(), res.Netlist.Len(), false)
	}
	return nil
}
