package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/schemforge/schemforge/pkg/pipeline"
	"github.com/schemforge/schemforge/pkg/schematic"
)

// parseCommand creates the parse command for loading schematics.
func (c *CLI) parseCommand() *cobra.Command {
	var (
		output      string
		inputFormat string
	)

	cmd := &cobra.Command{
		Use:   "parse [schematic]",
		Short: "Parse a schematic into the canonical component model",
		Long: `Parse a schematic into the canonical component model.

Accepts schemforge JSON or KiCad .kicad_sch input. The input format is
detected from the file extension and contents unless --input is given.
The canonical JSON document is written to stdout or the --output path.

Use 'board' to go directly from a schematic to board files.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if inputFormat != "" {
				if err := pipeline.ValidateInputFormat(inputFormat); err != nil {
					return err
				}
			}
			return c.runParse(cmd.Context(), args[0], inputFormat, output)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default: stdout)")
	cmd.Flags().StringVarP(&inputFormat, "input", "i", "", "input format: json, kicad (default: detect)")

	return cmd
}

// runParse parses the schematic and writes the canonical document.
func (c *CLI) runParse(ctx context.Context, input, inputFormat, output string) error {
	runner := pipeline.NewRunner(nil, nil, c.Logger)

	opts := pipeline.Options{
		SchematicPath: input,
		InputFormat:   inputFormat,
	}

	prog := newProgress(c.Logger)
	sch, hash, err := runner.Parse(ctx, opts)
	if err != nil {
		return fmt.Errorf("parse %s: %w", input, err)
	}
	prog.done(fmt.Sprintf("Parsed %d components, %d pins", sch.ComponentCount(), sch.PinCount()))

	data, err := schematic.Marshal(sch)
	if err != nil {
		return err
	}
	if err := writeOutput(output, data); err != nil {
		return err
	}

	if output != "" {
		printSuccess("Wrote %s", output)
		printDetail("hash: %s", hash)
		printDetail("declared nets: %d", len(sch.DeclaredNets()))
		printNextStep("Next", fmt.Sprintf("schemforge board %s", input))
	}
	return nil
}
