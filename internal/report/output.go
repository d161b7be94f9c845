package report

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"slices"
	"strings"

	"github.com/spf13/afero"

	// Register the canvas formats used by draw.NewFormattedCanvas.
	_ "gonum.org/v1/plot/vg/vgimg"
	_ "gonum.org/v1/plot/vg/vgpdf"
	_ "gonum.org/v1/plot/vg/vgsvg"
)

// ErrUnsupportedFormat is returned for output extensions no canvas can write.
var ErrUnsupportedFormat = errors.New("unsupported image format")

// ImageFormats lists the accepted output formats.
var ImageFormats = []string{"png", "jpg", "jpeg", "tif", "tiff", "pdf", "svg"}

// CheckFormat returns the normalized format name.
func CheckFormat(format string) (string, error) {
	f := strings.ToLower(strings.TrimPrefix(format, "."))
	if !slices.Contains(ImageFormats, f) {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
	return f, nil
}

// FormatFromPath derives the image format from the file extension of path.
func FormatFromPath(path string) (string, error) {
	ext := filepath.Ext(path)
	if ext == "" {
		return "", fmt.Errorf("%w: %s has no extension", ErrUnsupportedFormat, path)
	}
	return CheckFormat(ext)
}

// WriteFile creates the parent directories of path and writes whatever
// render produces into it. The file is removed again if render fails.
func WriteFile(fsys afero.Fs, path string, render func(w io.Writer) error) (err error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := fsys.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create output directory %s: %w", dir, err)
		}
	}

	f, err := fsys.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer func() {
		if cerr := f.Close(); err == nil && cerr != nil {
			err = fmt.Errorf("failed to close %s: %w", path, cerr)
		}
		if err != nil {
			_ = fsys.Remove(path)
		}
	}()

	return render(f)
}
