// Package workspace derives the fingerprint that scopes all catalog rows
// and guards the output boundary.
package workspace

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"path/filepath"
	"strings"
)

// BoundaryError reports an output path escaping the workspace root. It is
// fatal: nothing may be written once it is raised.
type BoundaryError struct {
	Path string
	Root string
}

func (e *BoundaryError) Error() string {
	return fmt.Sprintf("path %s is outside the workspace boundary %s", e.Path, e.Root)
}

// Fingerprint returns a stable 16-hex-character token for a workspace
// location: SHA-256 of the canonical path, truncated. Distinct paths get
// distinct tokens and the token does not reveal the path.
func Fingerprint(path string) (string, error) {
	resolved, err := resolve(path)
	if err != nil {
		return "", err
	}
	digest := sha256.Sum256([]byte(resolved))
	return hex.EncodeToString(digest[:])[:16], nil
}

// EnsureWithin verifies that path is the workspace root or a descendant of
// it, returning a *BoundaryError otherwise.
func EnsureWithin(path, root string) error {
	resolvedPath, err := resolve(path)
	if err != nil {
		return err
	}
	resolvedRoot, err := resolve(root)
	if err != nil {
		return err
	}

	rel, err := filepath.Rel(resolvedRoot, resolvedPath)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return &BoundaryError{Path: path, Root: root}
	}
	return nil
}

// resolve canonicalizes a path. Symlinks are followed when the path
// exists; paths that do not exist yet fall back to their absolute form.
func resolve(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", path, err)
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		return resolved, nil
	}
	return abs, nil
}
