package ignore

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/bmatcuk/doublestar/v4"
	gitignore "github.com/denormal/go-gitignore"
)

// Matcher determines whether a changed path should be left out of the hints.
// It combines a per-root ignore file, custom doublestar patterns, explicitly
// excluded files such as the hint store itself and, when enabled, the
// default editor and VCS patterns.
// Thread-safe: Reload() acquires a write lock, ShouldIgnore()/ShouldIgnoreDir() acquire a read lock.
type Matcher struct {
	mu             sync.RWMutex
	roots          []string
	ignoreFileName string
	ignoreFiles    map[string]gitignore.GitIgnore // key: root
	customPatterns []string
	excludePaths   map[string]struct{}
	useDefaults    bool
}

// MatcherOptions configures the ignore matcher.
type MatcherOptions struct {
	Roots          []string
	CustomPatterns []string
	// IgnoreFileName is looked up in every root. Default: .hintignore.
	IgnoreFileName string
	// ExcludePaths are absolute files that are always ignored.
	ExcludePaths []string
	// UseDefaults enables DefaultIgnorePatterns and DefaultIgnoreDirs.
	// Off by default: csync2 may sync any of those files.
	UseDefaults bool
}

// NewMatcher creates an ignore matcher for the given roots.
func NewMatcher(options MatcherOptions) *Matcher {
	matcher := &Matcher{
		ignoreFileName: options.IgnoreFileName,
		customPatterns: options.CustomPatterns,
		excludePaths:   make(map[string]struct{}, len(options.ExcludePaths)),
		useDefaults:    options.UseDefaults,
	}
	if matcher.ignoreFileName == "" {
		matcher.ignoreFileName = DefaultIgnoreFileName
	}

	for _, root := range options.Roots {
		matcher.roots = append(matcher.roots, filepath.Clean(root))
	}
	for _, p := range options.ExcludePaths {
		if abs, err := filepath.Abs(p); err == nil {
			matcher.excludePaths[abs] = struct{}{}
		}
	}

	matcher.ignoreFiles = matcher.loadIgnoreFiles()
	return matcher
}

// ValidatePatterns checks that every pattern is a valid doublestar glob.
func ValidatePatterns(patterns []string) error {
	for _, pattern := range patterns {
		if !doublestar.ValidatePattern(pattern) {
			return fmt.Errorf("invalid exclude pattern: %s", pattern)
		}
	}
	return nil
}

// ShouldIgnore returns true if a change to absolutePath should not be hinted.
func (m *Matcher) ShouldIgnore(absolutePath string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if _, excluded := m.excludePaths[absolutePath]; excluded {
		return true
	}

	root, relativePath := m.relativeTo(absolutePath)
	baseName := filepath.Base(absolutePath)

	if m.useDefaults && matchesAny(DefaultIgnorePatterns, relativePath, baseName) {
		return true
	}
	if matchesAny(m.customPatterns, relativePath, baseName) {
		return true
	}

	if gi := m.ignoreFiles[root]; gi != nil {
		isDir := false
		if info, err := os.Stat(absolutePath); err == nil {
			isDir = info.IsDir()
		}
		// Relative() doesn't require the file to exist on disk
		match := gi.Relative(relativePath, isDir)
		if match != nil && match.Ignore() {
			return true
		}
	}

	return false
}

// ShouldIgnoreDir returns true if a directory should be skipped entirely.
func (m *Matcher) ShouldIgnoreDir(absolutePath string) bool {
	if m.useDefaults {
		dirName := filepath.Base(absolutePath)
		for _, name := range DefaultIgnoreDirs {
			if dirName == name {
				return true
			}
		}
	}
	return m.ShouldIgnore(absolutePath)
}

// IsIgnoreFile reports whether path is one of the per-root ignore files.
func (m *Matcher) IsIgnoreFile(path string) bool {
	if filepath.Base(path) != m.ignoreFileName {
		return false
	}
	dir := filepath.Dir(path)
	for _, root := range m.roots {
		if dir == root {
			return true
		}
	}
	return false
}

// Reload re-reads the ignore files of every root.
func (m *Matcher) Reload() {
	ignoreFiles := m.loadIgnoreFiles()

	m.mu.Lock()
	defer m.mu.Unlock()
	m.ignoreFiles = ignoreFiles
}

// relativeTo returns the longest root containing path and path relative to it,
// with forward slashes. Paths outside every root are returned unchanged.
func (m *Matcher) relativeTo(path string) (string, string) {
	best := ""
	for _, root := range m.roots {
		if path != root && !strings.HasPrefix(path, root+string(filepath.Separator)) {
			continue
		}
		if len(root) > len(best) {
			best = root
		}
	}
	if best == "" {
		return "", filepath.ToSlash(path)
	}
	rel, err := filepath.Rel(best, path)
	if err != nil {
		return "", filepath.ToSlash(path)
	}
	return best, filepath.ToSlash(rel)
}

func (m *Matcher) loadIgnoreFiles() map[string]gitignore.GitIgnore {
	loaded := make(map[string]gitignore.GitIgnore, len(m.roots))
	for _, root := range m.roots {
		if gi := loadIgnoreFile(filepath.Join(root, m.ignoreFileName), root); gi != nil {
			loaded[root] = gi
		}
	}
	return loaded
}

// matchesAny checks the patterns against the base name and the relative path.
func matchesAny(patterns []string, relativePath, baseName string) bool {
	for _, pattern := range patterns {
		if matched, err := doublestar.Match(pattern, baseName); err == nil && matched {
			return true
		}
		if matched, err := doublestar.Match(pattern, relativePath); err == nil && matched {
			return true
		}
	}
	return false
}

// loadIgnoreFile reads an ignore file and creates a GitIgnore matcher from it.
// Uses io.Reader approach to ensure the file handle is properly closed on Windows.
func loadIgnoreFile(filePath string, baseDir string) gitignore.GitIgnore {
	f, err := os.Open(filePath)
	if err != nil {
		return nil
	}
	defer f.Close()

	return gitignore.New(f, baseDir, nil)
}
