package persist

import (
	"errors"
	"fmt"
	"os"

	"github.com/james-see/beatbox/pkg/grid"
)

// ReadFile loads a grid from disk. The format comes from the extension, or
// from the content when the extension is not recognized.
func ReadFile(path string) (grid.Matrix, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return grid.Matrix{}, fmt.Errorf("failed to read pattern file: %w", err)
	}

	f := DetectFormat(path)
	if f == FormatUnknown {
		return Decode(data)
	}
	c, err := ForFormat(f)
	if err != nil {
		return grid.Matrix{}, err
	}
	return c.Decode(data)
}

// WriteFile saves a grid to disk in the format named by the extension.
// Unrecognized extensions get the default format.
func WriteFile(path string, m grid.Matrix) error {
	c := Default
	if f := DetectFormat(path); f != FormatUnknown {
		var err error
		if c, err = ForFormat(f); err != nil {
			return err
		}
	}

	data, err := c.Encode(m)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", c.Name(), err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write pattern file: %w", err)
	}
	return nil
}

// ConvertFile converts a pattern file from one format to another
func ConvertFile(inputPath, outputPath string) error {
	if inputPath == outputPath {
		return errors.New("input and output are the same file")
	}

	m, err := ReadFile(inputPath)
	if err != nil {
		return fmt.Errorf("conversion failed: %w", err)
	}
	if err := WriteFile(outputPath, m); err != nil {
		return fmt.Errorf("conversion failed: %w", err)
	}
	return nil
}
