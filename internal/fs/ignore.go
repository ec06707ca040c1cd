package fs

import (
	"bufio"
	"fmt"
	"os"
	"path"
	"strings"

	"reel-go/internal/reel"
)

// IgnoreFilename holds extra per-workspace patterns, one per line.
const IgnoreFilename = ".reelignore"

// defaultIgnorePatterns keep lock files and claim sidecars out of the vault.
var defaultIgnorePatterns = []string{IgnoreFilename, reel.LockFilename, "*.processing"}

// ignoreRule is one parsed line of an ignore list.
type ignoreRule struct {
	raw      string
	glob     string
	negate   bool // "!pattern" re-includes what earlier rules excluded
	dirOnly  bool // "pattern/" only matches directories
	anchored bool // glob contains '/', so it is matched against the whole relative path
}

// IgnoreMatcher decides whether workspace paths are excluded from sync.
// Rules are evaluated in order and the last matching rule wins, so a later
// "!final_*.mp4" can re-include files an earlier "*.mp4" excluded.
type IgnoreMatcher struct {
	rules []ignoreRule
}

// NewIgnoreMatcher parses raw pattern lines. Blank lines and lines
// starting with '#' are skipped, as are patterns path.Match rejects.
func NewIgnoreMatcher(rawPatterns []string) *IgnoreMatcher {
	var rules []ignoreRule
	for _, raw := range rawPatterns {
		raw = strings.TrimSpace(raw)
		if raw == "" || strings.HasPrefix(raw, "#") {
			continue
		}
		r := ignoreRule{raw: raw, glob: raw}
		if strings.HasPrefix(r.glob, "!") {
			r.negate = true
			r.glob = r.glob[1:]
		}
		if strings.HasSuffix(r.glob, "/") {
			r.dirOnly = true
			r.glob = strings.TrimRight(r.glob, "/")
		}
		r.glob = strings.TrimPrefix(r.glob, "/")
		if r.glob == "" {
			continue
		}
		if _, err := path.Match(r.glob, ""); err != nil {
			continue
		}
		r.anchored = strings.Contains(r.glob, "/")
		rules = append(rules, r)
	}
	return &IgnoreMatcher{rules: rules}
}

// Match reports whether the slash-separated relativePath is ignored.
// Parent directories are not consulted; see OSFilesystemManager.Ignored.
func (m *IgnoreMatcher) Match(relativePath string, isDir bool) bool {
	if relativePath == "" {
		return false
	}
	base := path.Base(relativePath)

	ignored := false
	for _, r := range m.rules {
		if r.dirOnly && !isDir {
			continue
		}
		subject := base
		if r.anchored {
			subject = relativePath
		}
		if ok, _ := path.Match(r.glob, subject); ok {
			ignored = !r.negate
		}
	}
	return ignored
}

// Patterns returns the rule lines as written.
func (m *IgnoreMatcher) Patterns() []string {
	out := make([]string, 0, len(m.rules))
	for _, r := range m.rules {
		out = append(out, r.raw)
	}
	return out
}

// ParseIgnoreFile reads an ignore file and returns its raw lines.
// Returns nil and no error if the file does not exist.
func ParseIgnoreFile(filename string) ([]string, error) {
	f, err := os.Open(filename)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("opening ignore file: %w", err)
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading ignore file: %w", err)
	}
	return lines, nil
}
