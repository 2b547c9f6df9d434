package board

import (
	"fmt"
	"strings"
)

// Materializer serializes a board into one output format.
type Materializer interface {
	// Format names the output format (matches the pipeline's format keys).
	Format() string
	// Extension is the file extension without the dot.
	Extension() string
	Materialize(b *Board) ([]byte, error)
}

// KiCadWriter emits a .kicad_pcb s-expression document that KiCad 8+
// opens directly: board outline on Edge.Cuts, footprint stubs with
// net-bound pads, and routed segments on the front copper layer.
type KiCadWriter struct{}

func (KiCadWriter) Format() string    { return "kicad_pcb" }
func (KiCadWriter) Extension() string { return "kicad_pcb" }

// Materialize implements Materializer.
func (KiCadWriter) Materialize(b *Board) ([]byte, error) {
	var sb strings.Builder

	sb.WriteString("(kicad_pcb\n")
	sb.WriteString("  (version 20240108)\n")
	sb.WriteString("  (generator \"schemforge\")\n")
	fmt.Fprintf(&sb, "  (general (thickness 1.6))\n")
	sb.WriteString("  (paper \"A4\")\n")
	fmt.Fprintf(&sb, "  (title_block (title %s))\n", quote(b.Title))

	sb.WriteString("  (layers\n")
	sb.WriteString("    (0 \"F.Cu\" signal)\n")
	sb.WriteString("    (31 \"B.Cu\" signal)\n")
	sb.WriteString("    (44 \"Edge.Cuts\" user)\n")
	sb.WriteString("  )\n")

	// Net 0 is KiCad's reserved "no net".
	sb.WriteString("  (net 0 \"\")\n")
	netNumbers := map[string]int{}
	for i, n := range b.Nets {
		num := i + 1
		netNumbers[n.ID] = num
		fmt.Fprintf(&sb, "  (net %d %s)\n", num, quote(n.ID))
	}

	for _, pl := range b.Placements {
		writeFootprint(&sb, b, pl, netNumbers)
	}

	writeOutline(&sb, b)

	for _, t := range b.Tracks {
		num := netNumbers[t.Net]
		for _, seg := range t.Segments {
			fmt.Fprintf(&sb,
				"  (segment (start %s %s) (end %s %s) (width %s) (layer \"F.Cu\") (net %d))\n",
				mm(seg.From.X), mm(seg.From.Y), mm(seg.To.X), mm(seg.To.Y), mm(t.Width), num)
		}
	}

	sb.WriteString(")\n")
	return []byte(sb.String()), nil
}

func writeFootprint(sb *strings.Builder, b *Board, pl Placement, netNumbers map[string]int) {
	fp, err := Lookup(pl.Footprint)
	if err != nil {
		// Placement already resolved footprints; fall back to a bare stub.
		fp = Footprint{Name: pl.Footprint}
	}

	fmt.Fprintf(sb, "  (footprint %s\n", quote(fp.Name))
	sb.WriteString("    (layer \"F.Cu\")\n")
	fmt.Fprintf(sb, "    (at %s %s %s)\n", mm(pl.Position.X), mm(pl.Position.Y), mm(pl.Rotation))
	fmt.Fprintf(sb, "    (property \"Reference\" %s (at 0 %s) (layer \"F.SilkS\"))\n",
		quote(pl.Ref), mm(-fp.Height/2-1))

	for _, pad := range fp.Pads {
		fmt.Fprintf(sb, "    (pad %q smd rect (at %s %s) (size 0.8 0.8) (layers \"F.Cu\" \"F.Mask\")",
			fmt.Sprint(pad.Pin), mm(pad.DX), mm(pad.DY))
		if num, ok := padNet(b, pl.Ref, pad.Pin, netNumbers); ok {
			fmt.Fprintf(sb, " (net %d)", num)
		}
		sb.WriteString(")\n")
	}
	sb.WriteString("  )\n")
}

func padNet(b *Board, ref string, pin int, netNumbers map[string]int) (int, bool) {
	for _, n := range b.Nets {
		for _, p := range n.Pins {
			if p.Ref == ref && p.Pin == pin {
				num, ok := netNumbers[n.ID]
				return num, ok
			}
		}
	}
	return 0, false
}

func writeOutline(sb *strings.Builder, b *Board) {
	w, h := b.Profile.Outline.Width, b.Profile.Outline.Height
	corners := [][4]float64{
		{0, 0, w, 0},
		{w, 0, w, h},
		{w, h, 0, h},
		{0, h, 0, 0},
	}
	for _, c := range corners {
		fmt.Fprintf(sb,
			"  (gr_line (start %s %s) (end %s %s) (stroke (width %s) (type solid)) (layer \"Edge.Cuts\"))\n",
			mm(c[0]), mm(c[1]), mm(c[2]), mm(c[3]), mm(b.Profile.EdgeWidth))
	}
}

// TextWriter renders a human-readable board summary. It serves as the
// fallback artifact when a full board file is not wanted.
type TextWriter struct{}

func (TextWriter) Format() string    { return "text" }
func (TextWriter) Extension() string { return "txt" }

// Materialize implements Materializer.
func (TextWriter) Materialize(b *Board) ([]byte, error) {
	var sb strings.Builder

	fmt.Fprintf(&sb, "Board: %s (%.0fx%.0fmm)\n", b.Title, b.Profile.Outline.Width, b.Profile.Outline.Height)
	if b.Unconverged {
		sb.WriteString("WARNING: placement did not converge\n")
	}

	fmt.Fprintf(&sb, "\nComponents (%d):\n", len(b.Placements))
	for _, pl := range b.Placements {
		fmt.Fprintf(&sb, "  %-6s %-50s at (%.2f, %.2f)\n", pl.Ref, pl.Footprint, pl.Position.X, pl.Position.Y)
	}

	fmt.Fprintf(&sb, "\nNets (%d):\n", len(b.Nets))
	for _, n := range b.Nets {
		refs := make([]string, len(n.Pins))
		for i, p := range n.Pins {
			refs[i] = p.String()
		}
		marker := ""
		if n.Declared {
			marker = " (declared)"
		}
		fmt.Fprintf(&sb, "  %-16s %s%s\n", n.ID, strings.Join(refs, " "), marker)
	}

	fmt.Fprintf(&sb, "\nTracks: %d segments across %d nets\n", segmentCount(b.Tracks), len(b.Tracks))
	if len(b.Unresolved) > 0 {
		fmt.Fprintf(&sb, "Unrouted connections (%d):\n", len(b.Unresolved))
		for _, u := range b.Unresolved {
			fmt.Fprintf(&sb, "  %s: %s -> %s\n", u.Net, u.From, u.To)
		}
	}
	return []byte(sb.String()), nil
}

func segmentCount(tracks []Track) int {
	n := 0
	for _, t := range tracks {
		n += len(t.Segments)
	}
	return n
}

func quote(s string) string { return fmt.Sprintf("%q", s) }

// mm formats a millimeter value the way KiCad writes coordinates.
func mm(v float64) string {
	s := fmt.Sprintf("%.4f", v)
	s = strings.TrimRight(s, "0")
	s = strings.TrimRight(s, ".")
	if s == "" || s == "-" {
		return "0"
	}
	return s
}
