package cli

import (
	"fmt"
	"io"
	"os"
)

// nopCloser wraps an io.Writer with a no-op Close method.
// It is used to make os.Stdout compatible with io.WriteCloser.
type nopCloser struct{ io.Writer }

// Close implements io.Closer with a no-op.
func (nopCloser) Close() error { return nil }

// openOutput returns a WriteCloser for the given path.
// If path is empty, it returns os.Stdout wrapped in nopCloser.
// Otherwise, it creates the file at path, overwriting if it exists.
func openOutput(path string) (io.WriteCloser, error) {
	if path == "" {
		return nopCloser{os.Stdout}, nil
	}
	return os.Create(path)
}

// writeOutput writes data to path, or stdout when path is empty.
func writeOutput(path string, data []byte) error {
	out, err := openOutput(path)
	if err != nil {
		return err
	}
	defer out.Close()
	_, err = out.Write(data)
	return err
}

// artifactWriteParams bundles the inputs for writeArtifacts.
type artifactWriteParams struct {
	artifacts map[string][]byte
	formats   []string
	input     string
	output    string
	cacheHit  bool
}

// writeArtifacts writes each requested artifact to its own file. A single
// format goes to the output path as given; multiple formats share a base
// path and get per-format extensions.
func writeArtifacts(p artifactWriteParams, ext func(string) string) error {
	base := basePath(p.output, p.input)

	for _, format := range p.formats {
		data, ok := p.artifacts[format]
		if !ok {
			return fmt.Errorf("no artifact produced for format %q", format)
		}

		path := p.output
		if path == "" || len(p.formats) > 1 {
			path = base + "." + ext(format)
		}
		if err := writeOutput(path, data); err != nil {
			return fmt.Errorf("write %s: %w", path, err)
		}
		printFile(path)
	}
	if p.cacheHit {
		printDetail("artifacts from cache")
	}
	return nil
}
