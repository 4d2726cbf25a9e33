// Package filex holds small filesystem helpers for the CLI.
package filex

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
)

// EnsureParentDir creates the directory that will hold path, so the local
// database can live in a not yet existing folder.
func EnsureParentDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("mkdir %s: %w", dir, err)
	}
	return nil
}

// MaxImageBytes bounds profile images read from disk.
const MaxImageBytes = 5 << 20

// ReadImage loads an image file and sniffs its content type. Anything that
// is not image/* is rejected.
func ReadImage(path string) ([]byte, string, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return nil, "", err
	}
	if fi.IsDir() {
		return nil, "", fmt.Errorf("%s is a directory", path)
	}
	if fi.Size() > MaxImageBytes {
		return nil, "", fmt.Errorf("%s is larger than %d bytes", path, MaxImageBytes)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, "", err
	}
	ct := http.DetectContentType(data)
	if len(ct) < 6 || ct[:6] != "image/" {
		return nil, "", fmt.Errorf("%s is not an image (%s)", path, ct)
	}
	return data, ct, nil
}
