// Package rasterize wraps Poppler's pdftoppm command line tool. Rendering
// is delegated entirely to the external binary; this package only builds
// the invocation, enforces a wall clock timeout and collects the page
// images the tool wrote.
package rasterize

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"time"
)

// Logger is global since we will need it everywhere
var Logger *slog.Logger

// OutputPrefix is the filename prefix handed to pdftoppm, producing
// page-1.png, page-2.png, ... in the output directory.
const OutputPrefix = "page"

// jpegQuality is fixed high for OCR friendly output
const jpegQuality = 95

const (
	// MinDPI and MaxDPI bound the requested resolution. Out of range
	// values are clamped rather than rejected.
	MinDPI = 72
	MaxDPI = 600
)

// Format is the requested output image format
type Format string

const (
	FormatPNG  Format = "png"
	FormatJPEG Format = "jpeg"
)

// ParseFormat validates a caller-supplied format string
func ParseFormat(value string) (Format, error) {
	switch Format(value) {
	case FormatPNG:
		return FormatPNG, nil
	case FormatJPEG:
		return FormatJPEG, nil
	}
	return "", fmt.Errorf("invalid format %q, must be png or jpeg", value)
}

// Ext returns the file extension pdftoppm uses for this format
func (format Format) Ext() string {
	if format == FormatJPEG {
		return "jpg"
	}
	return "png"
}

// flag returns the pdftoppm format selection flag
func (format Format) flag() string {
	return "-" + string(format)
}

// ClampDPI clamps a resolution into the allowed range
func ClampDPI(dpi int) int {
	if dpi < MinDPI {
		return MinDPI
	}
	if dpi > MaxDPI {
		return MaxDPI
	}
	return dpi
}

// ConversionError carries the user visible message for a failed conversion
type ConversionError struct {
	Message string
}

func (convErr *ConversionError) Error() string {
	return convErr.Message
}

// Rasterizer invokes pdftoppm with a hard timeout per conversion
type Rasterizer struct {
	BinaryPath string        // binary name or absolute path
	Timeout    time.Duration // wall clock limit for one conversion
}

// New returns a Rasterizer for the given binary with a conversion timeout
func New(binaryPath string, timeout time.Duration) *Rasterizer {
	return &Rasterizer{BinaryPath: binaryPath, Timeout: timeout}
}

// Convert rasterizes every page of the PDF at inputPath into outputDir and
// returns the sorted page image filenames. All failures come back as a
// *ConversionError whose message is safe to surface to the caller; a zero
// exit status with no output files is also treated as a failure.
func (rasterizer *Rasterizer) Convert(ctx context.Context, inputPath, outputDir string, format Format, dpi int) ([]string, error) {
	binary, err := exec.LookPath(rasterizer.BinaryPath)
	if err != nil {
		return nil, &ConversionError{Message: "pdftoppm not found. Install poppler-utils."}
	}

	outputPrefix := filepath.Join(outputDir, OutputPrefix)
	args := []string{format.flag()}
	if format == FormatJPEG {
		args = append(args, "-jpegopt", "quality="+strconv.Itoa(jpegQuality))
	}
	args = append(args, "-r", strconv.Itoa(dpi), inputPath, outputPrefix)

	ctx, cancel := context.WithTimeout(ctx, rasterizer.Timeout)
	defer cancel()

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, binary, args...)
	cmd.Stderr = &stderr
	// a child that inherits stderr must not keep Wait blocked after the kill
	cmd.WaitDelay = time.Second

	if Logger != nil {
		Logger.Debug("Invoking pdftoppm", "args", args)
	}

	runErr := cmd.Run()
	if ctx.Err() == context.DeadlineExceeded {
		return nil, &ConversionError{Message: "PDF conversion timed out (5 minutes)"}
	}
	if runErr != nil {
		var exitErr *exec.ExitError
		if errors.As(runErr, &exitErr) {
			message := stderr.String()
			if message == "" {
				message = "pdftoppm failed with unknown error"
			}
			return nil, &ConversionError{Message: message}
		}
		return nil, &ConversionError{Message: fmt.Sprintf("Conversion error: %v", runErr)}
	}

	files, err := listOutputFiles(outputDir, format)
	if err != nil {
		return nil, &ConversionError{Message: fmt.Sprintf("Conversion error: %v", err)}
	}
	if len(files) == 0 {
		return nil, &ConversionError{Message: "No images generated from PDF"}
	}
	return files, nil
}

// Available probes the binary with a short version query. Any failure,
// including a missing binary or a hung process, reports unavailable.
func (rasterizer *Rasterizer) Available(ctx context.Context, timeout time.Duration) bool {
	binary, err := exec.LookPath(rasterizer.BinaryPath)
	if err != nil {
		return false
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, binary, "-v")
	return cmd.Run() == nil
}

// listOutputFiles collects the page images pdftoppm wrote, sorted
// lexicographically. pdftoppm does not zero-pad page numbers, so this is
// page order only while page counts stay within one digit width.
func listOutputFiles(outputDir string, format Format) ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(outputDir, OutputPrefix+"-*."+format.Ext()))
	if err != nil {
		return nil, err
	}
	files := make([]string, 0, len(matches))
	for _, match := range matches {
		files = append(files, filepath.Base(match))
	}
	sort.Strings(files)
	return files, nil
}
