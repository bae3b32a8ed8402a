package batch

import (
	"sort"

	"github.com/google/uuid"
	"github.com/lexandro/csync2-hintd/pathnorm"
)

// Batch is the deduplicated set of normalized paths produced by one flush.
// Order carries no meaning; Paths returns a sorted copy for stable output.
type Batch struct {
	id    string
	paths map[string]struct{}
}

// Build normalizes every raw path and folds the results into a set.
// An empty input yields an empty batch.
func Build(rawPaths []string) *Batch {
	b := &Batch{
		id:    uuid.NewString(),
		paths: make(map[string]struct{}, len(rawPaths)),
	}
	for _, raw := range rawPaths {
		normalized := pathnorm.Normalize(raw)
		if _, seen := b.paths[normalized]; seen {
			continue
		}
		b.paths[normalized] = struct{}{}
	}
	return b
}

// ID identifies the batch in logs.
func (b *Batch) ID() string {
	return b.id
}

// Len returns the number of unique paths.
func (b *Batch) Len() int {
	return len(b.paths)
}

// Empty reports whether the batch holds no paths.
func (b *Batch) Empty() bool {
	return len(b.paths) == 0
}

// Contains reports whether the normalized path is part of the batch.
func (b *Batch) Contains(normalizedPath string) bool {
	_, ok := b.paths[normalizedPath]
	return ok
}

// Paths returns the unique paths in sorted order.
func (b *Batch) Paths() []string {
	result := make([]string, 0, len(b.paths))
	for p := range b.paths {
		result = append(result, p)
	}
	sort.Strings(result)
	return result
}
