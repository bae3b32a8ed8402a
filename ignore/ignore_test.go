package ignore

import (
	"os"
	"path/filepath"
	"testing"
)

func Test_Matcher_DefaultPatterns_SwapFiles(t *testing.T) {
	tmpDir := t.TempDir()
	matcher := NewMatcher(MatcherOptions{Roots: []string{tmpDir}, UseDefaults: true})

	for _, name := range []string{".config.swp", "notes.txt~", ".#lockfile", "hosts.db-journal"} {
		if !matcher.ShouldIgnore(filepath.Join(tmpDir, name)) {
			t.Errorf("expected %s to be ignored", name)
		}
	}
}

func Test_Matcher_DefaultPatterns_AllowsRegularFiles(t *testing.T) {
	tmpDir := t.TempDir()
	matcher := NewMatcher(MatcherOptions{Roots: []string{tmpDir}, UseDefaults: true})

	for _, name := range []string{"hosts", "csync2.cfg", filepath.Join("www", "index.html")} {
		if matcher.ShouldIgnore(filepath.Join(tmpDir, name)) {
			t.Errorf("expected %s to NOT be ignored", name)
		}
	}
}

func Test_Matcher_DefaultsOffUnlessEnabled(t *testing.T) {
	tmpDir := t.TempDir()
	matcher := NewMatcher(MatcherOptions{Roots: []string{tmpDir}})

	for _, name := range []string{"edit.swp", "notes.txt~", "4913", filepath.Join("app", "data.db-wal")} {
		if matcher.ShouldIgnore(filepath.Join(tmpDir, name)) {
			t.Errorf("expected %s to be hinted without default excludes", name)
		}
	}
	if matcher.ShouldIgnoreDir(filepath.Join(tmpDir, ".git")) {
		t.Error("expected .git to be watched without default excludes")
	}
}

func Test_Matcher_IgnoreFileIntegration(t *testing.T) {
	tmpDir := t.TempDir()
	os.WriteFile(filepath.Join(tmpDir, ".hintignore"), []byte("*.log\ncache/\n"), 0644)

	matcher := NewMatcher(MatcherOptions{Roots: []string{tmpDir}})

	if !matcher.ShouldIgnore(filepath.Join(tmpDir, "app.log")) {
		t.Error("expected .hintignore pattern to ignore *.log")
	}
	os.Mkdir(filepath.Join(tmpDir, "cache"), 0755)
	if !matcher.ShouldIgnoreDir(filepath.Join(tmpDir, "cache")) {
		t.Error("expected .hintignore pattern to ignore cache/")
	}
	if matcher.ShouldIgnore(filepath.Join(tmpDir, "app.conf")) {
		t.Error("expected app.conf to NOT be ignored")
	}
}

func Test_Matcher_IgnoreFilePerRoot(t *testing.T) {
	rootA := t.TempDir()
	rootB := t.TempDir()
	os.WriteFile(filepath.Join(rootA, ".hintignore"), []byte("*.tmp\n"), 0644)

	matcher := NewMatcher(MatcherOptions{Roots: []string{rootA, rootB}})

	if !matcher.ShouldIgnore(filepath.Join(rootA, "x.tmp")) {
		t.Error("expected rootA rule to apply in rootA")
	}
	if matcher.ShouldIgnore(filepath.Join(rootB, "x.tmp")) {
		t.Error("expected rootA rule to NOT apply in rootB")
	}
}

func Test_Matcher_CustomPatterns(t *testing.T) {
	tmpDir := t.TempDir()
	matcher := NewMatcher(MatcherOptions{
		Roots:          []string{tmpDir},
		CustomPatterns: []string{"*.custom", "spool/**"},
	})

	if !matcher.ShouldIgnore(filepath.Join(tmpDir, "data.custom")) {
		t.Error("expected custom pattern to ignore *.custom files")
	}
	if !matcher.ShouldIgnore(filepath.Join(tmpDir, "spool", "mail", "1")) {
		t.Error("expected doublestar pattern to ignore spool/**")
	}
	if matcher.ShouldIgnore(filepath.Join(tmpDir, "data.txt")) {
		t.Error("expected data.txt to NOT be ignored")
	}
}

func Test_Matcher_ExcludePaths(t *testing.T) {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "host.db")
	matcher := NewMatcher(MatcherOptions{
		Roots:        []string{tmpDir},
		ExcludePaths: []string{dbPath},
	})

	if !matcher.ShouldIgnore(dbPath) {
		t.Error("expected the hint store file to be ignored")
	}
	if matcher.ShouldIgnore(filepath.Join(tmpDir, "other.db")) {
		t.Error("expected other.db to NOT be ignored")
	}
}

func Test_Matcher_ShouldIgnoreDir(t *testing.T) {
	tmpDir := t.TempDir()
	matcher := NewMatcher(MatcherOptions{Roots: []string{tmpDir}, UseDefaults: true})

	tests := []struct {
		dirName string
		ignored bool
	}{
		{".git", true},
		{".svn", true},
		{".hg", true},
		{"etc", false},
		{"www", false},
	}

	for _, tt := range tests {
		dirPath := filepath.Join(tmpDir, tt.dirName)
		got := matcher.ShouldIgnoreDir(dirPath)
		if got != tt.ignored {
			t.Errorf("ShouldIgnoreDir(%s) = %v, want %v", tt.dirName, got, tt.ignored)
		}
	}
}

func Test_Matcher_Reload(t *testing.T) {
	tmpDir := t.TempDir()
	matcher := NewMatcher(MatcherOptions{Roots: []string{tmpDir}})

	target := filepath.Join(tmpDir, "app.log")
	if matcher.ShouldIgnore(target) {
		t.Fatal("expected app.log to NOT be ignored before the ignore file exists")
	}

	ignorePath := filepath.Join(tmpDir, ".hintignore")
	os.WriteFile(ignorePath, []byte("*.log\n"), 0644)
	if !matcher.IsIgnoreFile(ignorePath) {
		t.Fatal("expected .hintignore at the root to be recognized")
	}
	matcher.Reload()

	if !matcher.ShouldIgnore(target) {
		t.Error("expected app.log to be ignored after reload")
	}
}

func Test_Matcher_IsIgnoreFile(t *testing.T) {
	tmpDir := t.TempDir()
	matcher := NewMatcher(MatcherOptions{Roots: []string{tmpDir}, IgnoreFileName: ".csync2ignore"})

	if !matcher.IsIgnoreFile(filepath.Join(tmpDir, ".csync2ignore")) {
		t.Error("expected custom ignore file name at root to match")
	}
	if matcher.IsIgnoreFile(filepath.Join(tmpDir, "sub", ".csync2ignore")) {
		t.Error("expected nested ignore file to NOT match")
	}
	if matcher.IsIgnoreFile(filepath.Join(tmpDir, ".hintignore")) {
		t.Error("expected default name to NOT match when overridden")
	}
}

func Test_ValidatePatterns(t *testing.T) {
	if err := ValidatePatterns([]string{"*.log", "spool/**", "a/[bc]/*"}); err != nil {
		t.Errorf("expected valid patterns, got %v", err)
	}
	if err := ValidatePatterns([]string{"bad[pattern"}); err == nil {
		t.Error("expected error for unterminated character class")
	}
}
