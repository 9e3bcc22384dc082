package testutil

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

// modulePath identifies this repository's go.mod among any parent modules.
const modulePath = "github.com/MeKo-Tech/barcodekit"

// markerDirs must exist below the repository root.
var markerDirs = []string{
	filepath.Join("cmd", "barcodekit"),
	filepath.Join("internal", "barcode"),
}

// GetProjectRoot walks up from this source file to the directory whose
// go.mod declares the barcodekit module.
func GetProjectRoot() (string, error) {
	_, filename, _, ok := runtime.Caller(0)
	if !ok {
		return "", errors.New("testutil: caller information unavailable")
	}
	start := filepath.Dir(filename)
	for dir := start; ; {
		if name, err := readModulePath(filepath.Join(dir, "go.mod")); err == nil && name == modulePath {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("testutil: no go.mod for %s above %s", modulePath, start)
		}
		dir = parent
	}
}

// readModulePath returns the module directive of a go.mod file.
func readModulePath(path string) (string, error) {
	f, err := os.Open(path) //nolint:gosec // G304: path is built from the source tree
	if err != nil {
		return "", err
	}
	defer func() { _ = f.Close() }()

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if rest, ok := strings.CutPrefix(line, "module "); ok {
			return strings.Trim(strings.TrimSpace(rest), `"`), nil
		}
	}
	if err := sc.Err(); err != nil {
		return "", err
	}
	return "", fmt.Errorf("testutil: %s has no module directive", path)
}

// EnsureDir creates path and its parents.
func EnsureDir(path string) error {
	return os.MkdirAll(path, 0o750)
}

// FileExists reports whether path names an existing regular file.
func FileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

// DirExists reports whether path names an existing directory.
func DirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

// ValidateProjectRoot checks that root is a barcodekit checkout.
func ValidateProjectRoot(root string) error {
	name, err := readModulePath(filepath.Join(root, "go.mod"))
	if err != nil {
		return err
	}
	if name != modulePath {
		return fmt.Errorf("testutil: %s is module %q, want %q", root, name, modulePath)
	}
	for _, d := range markerDirs {
		if !DirExists(filepath.Join(root, d)) {
			return fmt.Errorf("testutil: %s missing below %s", d, root)
		}
	}
	return nil
}

// GetProjectRootValidated is GetProjectRoot followed by ValidateProjectRoot.
func GetProjectRootValidated() (string, error) {
	root, err := GetProjectRoot()
	if err != nil {
		return "", err
	}
	if err := ValidateProjectRoot(root); err != nil {
		return "", err
	}
	return root, nil
}
