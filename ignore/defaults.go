package ignore

// DefaultIgnorePatterns are editor and database droppings, applied only when
// MatcherOptions.UseDefaults is set. Matched against the base name and the
// root-relative path.
var DefaultIgnorePatterns = []string{
	// Editor swap, backup and lock files
	"*.swp",
	"*.swo",
	"*.swx",
	"*~",
	".#*",
	"#*#",
	"4913",

	// SQLite side files (the hint store itself may live under a root)
	"*.db-journal",
	"*.db-wal",
	"*.db-shm",

	// OS files
	".DS_Store",
	"Thumbs.db",
	"desktop.ini",
}

// DefaultIgnoreDirs are skipped entirely when MatcherOptions.UseDefaults is set.
var DefaultIgnoreDirs = []string{
	".git",
	".svn",
	".hg",
}

// DefaultIgnoreFileName is the per-root file holding gitignore-style rules.
const DefaultIgnoreFileName = ".hintignore"
