// Package netgraph renders the electrical connectivity of a schematic
// as a node-link diagram: components and nets as nodes, pin membership
// as edges. It is a debugging surface for inspecting what the oracle
// inferred before committing to a board.
package netgraph

import (
	"bytes"
	"context"
	"fmt"
	"regexp"
	"strconv"

	"github.com/goccy/go-graphviz"

	"github.com/schemforge/schemforge/pkg/netlist"
	"github.com/schemforge/schemforge/pkg/schematic"
)

// Options configures connectivity diagram rendering.
type Options struct {
	// ShowSingletons includes single-pin nets. They are hidden by
	// default since fail-open runs can produce many of them.
	ShowSingletons bool
}

// ToDOT converts a schematic and its netlist to Graphviz DOT format.
// Components render as boxes, nets as ellipses, and inferred nets are
// dashed to set them apart from declared ones.
func ToDOT(sch *schematic.Schematic, nl *netlist.Netlist, opts Options) string {
	var buf bytes.Buffer
	buf.WriteString("graph connectivity {\n")
	buf.WriteString("  layout=neato;\n")
	buf.WriteString("  overlap=false;\n")
	buf.WriteString("  node [fontsize=12];\n")
	buf.WriteString("\n")

	for _, c := range sch.Components() {
		label := c.Ref
		if c.Value != "" {
			label += "\\n" + c.Value
		}
		fmt.Fprintf(&buf, "  %q [shape=box, style=filled, fillcolor=white, label=\"%s\"];\n", c.Ref, label)
	}

	buf.WriteString("\n")
	for _, n := range nl.Nets() {
		if n.Singleton() && !opts.ShowSingletons {
			continue
		}
		style := "dashed"
		if n.Declared {
			style = "solid"
		}
		node := "net:" + n.ID
		fmt.Fprintf(&buf, "  %q [shape=ellipse, style=%s, label=%q];\n", node, style, n.ID)
		for _, pin := range n.Pins {
			fmt.Fprintf(&buf, "  %q -- %q [label=\"%d\", fontsize=10];\n", pin.Ref, node, pin.Pin)
		}
	}

	buf.WriteString("}\n")
	return buf.String()
}

// RenderSVG renders a DOT graph to SVG using Graphviz.
func RenderSVG(dot string) ([]byte, error) {
	return render(dot, graphviz.SVG)
}

// RenderPNG renders a DOT graph to PNG using Graphviz.
func RenderPNG(dot string) ([]byte, error) {
	return render(dot, graphviz.PNG)
}

func render(dot string, format graphviz.Format) ([]byte, error) {
	ctx := context.Background()
	gv, err := graphviz.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("init graphviz: %w", err)
	}
	defer gv.Close()

	g, err := graphviz.ParseBytes([]byte(dot))
	if err != nil {
		return nil, fmt.Errorf("parse DOT: %w", err)
	}
	defer g.Close()

	var buf bytes.Buffer
	if err := gv.Render(ctx, g, format, &buf); err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}
	if format == graphviz.SVG {
		return normalizeViewBox(buf.Bytes()), nil
	}
	return buf.Bytes(), nil
}

var (
	svgTagRe  = regexp.MustCompile(`<svg[^>]*>`)
	viewBoxRe = regexp.MustCompile(`viewBox="([0-9.]+)\s+([0-9.]+)\s+([0-9.]+)\s+([0-9.]+)"`)
)

func normalizeViewBox(svg []byte) []byte {
	match := viewBoxRe.FindSubmatch(svg)
	if match == nil {
		return svg
	}

	w, _ := strconv.ParseFloat(string(match[3]), 64)
	h, _ := strconv.ParseFloat(string(match[4]), 64)
	if w == 0 || h == 0 {
		return svg
	}

	newSvg := fmt.Sprintf(`<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 %.2f %.2f" width="%.0f" height="%.0f">`,
		w, h, w, h)

	return svgTagRe.ReplaceAll(svg, []byte(newSvg))
}
