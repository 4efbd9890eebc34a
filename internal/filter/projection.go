package filter

import "github.com/apphub/metastore/internal/platform/apperr"

// DefaultSummaryFields is merged with any extra requested fields when a
// search request sets the summary flag.
var DefaultSummaryFields = []string{
	"namespace", "key", "version", "updatedAt", "owner", "schemaHash", "tags", "deletedAt",
}

// ResolveProjection validates the requested paths (at most MaxProjectionPaths)
// and, when summary is set, merges in DefaultSummaryFields ahead of them. A
// nil/empty result means "no projection": return the full record.
func ResolveProjection(paths []string, summary bool) ([]string, error) {
	if len(paths) > MaxProjectionPaths {
		return nil, apperr.BadRequest("projection accepts at most 32 paths")
	}
	if !summary {
		return paths, nil
	}
	seen := make(map[string]bool, len(DefaultSummaryFields)+len(paths))
	merged := make([]string, 0, len(DefaultSummaryFields)+len(paths))
	for _, f := range DefaultSummaryFields {
		if !seen[f] {
			seen[f] = true
			merged = append(merged, f)
		}
	}
	for _, f := range paths {
		if !seen[f] {
			seen[f] = true
			merged = append(merged, f)
		}
	}
	return merged, nil
}
