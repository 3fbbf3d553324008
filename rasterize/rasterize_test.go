package rasterize

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// writeStub creates a fake pdftoppm so conversion paths can be exercised
// without poppler installed.
func writeStub(t *testing.T, script string) string {
	t.Helper()
	stubPath := filepath.Join(t.TempDir(), "pdftoppm")
	if err := os.WriteFile(stubPath, []byte(script), 0755); err != nil {
		t.Fatalf("Failed to write stub rasterizer: %v", err)
	}
	return stubPath
}

// successStub mimics pdftoppm: reads the format flag, writes three page
// images next to the output prefix (the last argument) and exits cleanly.
const successStub = `#!/bin/sh
fmt=png
if [ "$1" = "-jpeg" ]; then fmt=jpg; fi
for arg in "$@"; do prefix="$arg"; done
for page in 1 2 3; do
  : > "$prefix-$page.$fmt"
done
exit 0
`

func TestClampDPI(t *testing.T) {
	cases := []struct {
		in   int
		want int
	}{
		{0, 72},
		{71, 72},
		{72, 72},
		{150, 150},
		{300, 300},
		{600, 600},
		{601, 600},
		{10000, 600},
		{-5, 72},
	}
	for _, tc := range cases {
		if got := ClampDPI(tc.in); got != tc.want {
			t.Errorf("ClampDPI(%d) = %d, want %d", tc.in, got, tc.want)
		}
	}
}

func TestParseFormat(t *testing.T) {
	if _, err := ParseFormat("png"); err != nil {
		t.Errorf("png should parse: %v", err)
	}
	if _, err := ParseFormat("jpeg"); err != nil {
		t.Errorf("jpeg should parse: %v", err)
	}
	for _, bad := range []string{"", "jpg", "gif", "PNG", "webp"} {
		if _, err := ParseFormat(bad); err == nil {
			t.Errorf("Expected %q to be rejected", bad)
		}
	}
}

func TestFormatExt(t *testing.T) {
	if FormatPNG.Ext() != "png" {
		t.Errorf("png ext = %s", FormatPNG.Ext())
	}
	if FormatJPEG.Ext() != "jpg" {
		t.Errorf("jpeg ext = %s", FormatJPEG.Ext())
	}
}

func TestConvertSuccess(t *testing.T) {
	rasterizer := New(writeStub(t, successStub), 30*time.Second)
	outputDir := t.TempDir()

	files, err := rasterizer.Convert(context.Background(), "input.pdf", outputDir, FormatPNG, 300)
	if err != nil {
		t.Fatalf("Convert returned error: %v", err)
	}
	expected := []string{"page-1.png", "page-2.png", "page-3.png"}
	if len(files) != len(expected) {
		t.Fatalf("Expected %d files, got %v", len(expected), files)
	}
	for i := range expected {
		if files[i] != expected[i] {
			t.Errorf("files[%d] = %s, want %s", i, files[i], expected[i])
		}
	}
}

func TestConvertJPEGUsesJpgExtension(t *testing.T) {
	rasterizer := New(writeStub(t, successStub), 30*time.Second)
	outputDir := t.TempDir()

	files, err := rasterizer.Convert(context.Background(), "input.pdf", outputDir, FormatJPEG, 150)
	if err != nil {
		t.Fatalf("Convert returned error: %v", err)
	}
	for _, name := range files {
		if !strings.HasSuffix(name, ".jpg") {
			t.Errorf("Expected .jpg suffix, got %s", name)
		}
	}
}

func TestConvertArguments(t *testing.T) {
	// Stub records its arguments then produces one page so Convert succeeds
	stub := writeStub(t, `#!/bin/sh
echo "$@" > "$(dirname "$0")/args.txt"
for arg in "$@"; do prefix="$arg"; done
: > "$prefix-1.jpg"
exit 0
`)
	rasterizer := New(stub, 30*time.Second)
	outputDir := t.TempDir()

	if _, err := rasterizer.Convert(context.Background(), "/docs/in.pdf", outputDir, FormatJPEG, 200); err != nil {
		t.Fatalf("Convert returned error: %v", err)
	}

	recorded, err := os.ReadFile(filepath.Join(filepath.Dir(stub), "args.txt"))
	if err != nil {
		t.Fatalf("Stub did not record arguments: %v", err)
	}
	args := strings.TrimSpace(string(recorded))
	expected := "-jpeg -jpegopt quality=95 -r 200 /docs/in.pdf " + filepath.Join(outputDir, "page")
	if args != expected {
		t.Errorf("Arguments mismatch:\n got %s\nwant %s", args, expected)
	}
}

func TestConvertNonZeroExitUsesStderr(t *testing.T) {
	rasterizer := New(writeStub(t, "#!/bin/sh\necho 'Syntax Error: couldn'\\''t read xref table' >&2\nexit 1\n"), 30*time.Second)

	_, err := rasterizer.Convert(context.Background(), "input.pdf", t.TempDir(), FormatPNG, 300)
	if err == nil {
		t.Fatal("Expected error from failing rasterizer")
	}
	convErr, ok := err.(*ConversionError)
	if !ok {
		t.Fatalf("Expected *ConversionError, got %T", err)
	}
	if !strings.Contains(convErr.Message, "Syntax Error") {
		t.Errorf("Expected stderr in message, got %q", convErr.Message)
	}
}

func TestConvertNonZeroExitEmptyStderr(t *testing.T) {
	rasterizer := New(writeStub(t, "#!/bin/sh\nexit 3\n"), 30*time.Second)

	_, err := rasterizer.Convert(context.Background(), "input.pdf", t.TempDir(), FormatPNG, 300)
	if err == nil {
		t.Fatal("Expected error from failing rasterizer")
	}
	if err.Error() != "pdftoppm failed with unknown error" {
		t.Errorf("Unexpected message: %q", err.Error())
	}
}

func TestConvertNoImagesGenerated(t *testing.T) {
	rasterizer := New(writeStub(t, "#!/bin/sh\nexit 0\n"), 30*time.Second)

	_, err := rasterizer.Convert(context.Background(), "input.pdf", t.TempDir(), FormatPNG, 300)
	if err == nil {
		t.Fatal("Expected error when no output files were produced")
	}
	if err.Error() != "No images generated from PDF" {
		t.Errorf("Unexpected message: %q", err.Error())
	}
}

func TestConvertTimeout(t *testing.T) {
	rasterizer := New(writeStub(t, "#!/bin/sh\nexec sleep 10\n"), 100*time.Millisecond)

	start := time.Now()
	_, err := rasterizer.Convert(context.Background(), "input.pdf", t.TempDir(), FormatPNG, 300)
	if err == nil {
		t.Fatal("Expected timeout error")
	}
	if err.Error() != "PDF conversion timed out (5 minutes)" {
		t.Errorf("Unexpected message: %q", err.Error())
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Errorf("Timeout did not terminate the process promptly: %v", elapsed)
	}
}

func TestConvertBinaryMissing(t *testing.T) {
	rasterizer := New("definitely-not-a-real-binary-pdftoppm", 30*time.Second)

	_, err := rasterizer.Convert(context.Background(), "input.pdf", t.TempDir(), FormatPNG, 300)
	if err == nil {
		t.Fatal("Expected error for missing binary")
	}
	if err.Error() != "pdftoppm not found. Install poppler-utils." {
		t.Errorf("Unexpected message: %q", err.Error())
	}
}

func TestAvailable(t *testing.T) {
	healthy := New(writeStub(t, "#!/bin/sh\nexit 0\n"), time.Second)
	if !healthy.Available(context.Background(), time.Second) {
		t.Error("Expected healthy stub to report available")
	}

	broken := New(writeStub(t, "#!/bin/sh\nexit 99\n"), time.Second)
	if broken.Available(context.Background(), time.Second) {
		t.Error("Expected failing stub to report unavailable")
	}

	missing := New("definitely-not-a-real-binary-pdftoppm", time.Second)
	if missing.Available(context.Background(), time.Second) {
		t.Error("Expected missing binary to report unavailable")
	}
}
