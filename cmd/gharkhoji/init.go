package main

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/gharkhoji/gharkhoji/internal/defaults"
)

// runInit initializes a Gharkhoji working directory. It creates the
// data directory and writes the starter config and a sample listing
// corpus. Existing files are never overwritten, so re-running init on
// a customized installation is safe.
func runInit(w io.Writer, dir string) error {
	fmt.Fprintf(w, "Initializing Gharkhoji workspace in %s\n", dir)

	if err := os.MkdirAll(filepath.Join(dir, "data"), 0o755); err != nil {
		return fmt.Errorf("create %s: %w", filepath.Join(dir, "data"), err)
	}

	// Config may end up holding SMTP passwords and API keys, so it is
	// written owner-only.
	if err := writeIfMissing(w, filepath.Join(dir, "config.yaml"), defaults.ConfigYAML, 0o600); err != nil {
		return err
	}

	if err := writeIfMissing(w, filepath.Join(dir, "listings.example.json"), defaults.ListingsJSON, 0o644); err != nil {
		return err
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, "Edit config.yaml, then start the server with: gharkhoji serve")
	fmt.Fprintln(w, "Import your own corpus with: gharkhoji seed listings.example.json")
	return nil
}

// writeIfMissing writes content to path with the given mode only if the
// file does not already exist, reporting what it did on w. O_EXCL makes
// the existence check and the create a single atomic operation.
func writeIfMissing(w io.Writer, path string, content []byte, mode os.FileMode) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, mode)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			fmt.Fprintf(w, "  %s exists, skipping\n", path)
			return nil
		}
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()

	if _, err := f.Write(content); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	fmt.Fprintf(w, "  ✓ %s\n", path)
	return nil
}
