// Package locator finds chat archive files on disk, either under an
// explicit target or in the editor's per-user storage directories.
package locator

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// ErrNoInputFiles means no archive file could be found anywhere the
// locator looked. The ingest run aborts on it.
var ErrNoInputFiles = errors.New("no chat archive files found")

// Gather resolves the input file set for a run. target may be a single
// file, a directory to scan recursively, or "" to fall back to the
// default editor storage directories plus extraDirs. Replay archives
// (*.chatreplay.json) sort ahead of plain *.json so the richer shape
// wins when both describe the same session.
func Gather(target string, extraDirs []string) ([]string, error) {
	var files []string

	if target != "" {
		info, err := os.Stat(target)
		if err != nil {
			return nil, err
		}
		if info.IsDir() {
			files = scanDir(target)
		} else {
			files = []string{target}
		}
	} else {
		dirs := append(DefaultStorageDirs(), extraDirs...)
		for _, dir := range dirs {
			files = append(files, scanDir(dir)...)
		}
	}

	files = dedupe(files)
	if len(files) == 0 {
		return nil, ErrNoInputFiles
	}
	return files, nil
}

// DefaultStorageDirs lists the chat session storage directories of the
// known editor variants for the current user. Directories that do not
// exist are still returned; scanning skips them quietly.
func DefaultStorageDirs() []string {
	var roots []string
	if appData := os.Getenv("APPDATA"); appData != "" {
		roots = append(roots, appData)
	}
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		roots = append(roots, xdg)
	}
	if home, err := os.UserHomeDir(); err == nil {
		roots = append(roots, filepath.Join(home, ".config"))
		roots = append(roots, filepath.Join(home, "Library", "Application Support"))
	}

	var dirs []string
	for _, root := range roots {
		for _, product := range []string{"Code", "VSCodium"} {
			dirs = append(dirs, filepath.Join(root, product, "User", "globalStorage", "github.copilot-chat", "chatSessions"))
		}
	}
	return dirs
}

func scanDir(dir string) []string {
	var replays, plain []string
	_ = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		name := d.Name()
		switch {
		case strings.HasSuffix(name, ".chatreplay.json"):
			replays = append(replays, path)
		case strings.HasSuffix(name, ".json"):
			plain = append(plain, path)
		}
		return nil
	})
	sort.Strings(replays)
	sort.Strings(plain)
	return append(replays, plain...)
}

// dedupe drops later duplicates after resolving each path, keeping first
// occurrence order.
func dedupe(files []string) []string {
	seen := make(map[string]struct{}, len(files))
	var out []string
	for _, f := range files {
		resolved, err := filepath.Abs(f)
		if err != nil {
			resolved = f
		}
		if r, err := filepath.EvalSymlinks(resolved); err == nil {
			resolved = r
		}
		if _, ok := seen[resolved]; ok {
			continue
		}
		seen[resolved] = struct{}{}
		out = append(out, f)
	}
	return out
}
