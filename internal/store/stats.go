package store

import "path/filepath"

// Stats is an aggregate view over the store, derived purely from a listing.
type Stats struct {
	IssuesDirectory string         `json:"issues_directory"`
	TotalIssues     int            `json:"total_issues"`
	TotalSizeBytes  int64          `json:"total_size_bytes"`
	BySeverity      map[string]int `json:"issues_by_severity"`
	// Err carries a best-effort diagnostic when the listing itself failed;
	// Stats never propagates an error.
	Err string `json:"error,omitempty"`
}

// Stats aggregates record count, total byte size, and per-severity counts.
// On internal failure it returns a partial result with Err set rather than
// failing: this is a monitoring surface, not a correctness one.
func (s *Store) Stats() Stats {
	stats := Stats{
		IssuesDirectory: s.issuesDir,
		BySeverity: map[string]int{
			"low": 0, "medium": 0, "high": 0, "critical": 0,
		},
	}

	docs, err := s.List()
	if err != nil {
		stats.Err = err.Error()

		return stats
	}

	stats.TotalIssues = len(docs)

	for _, doc := range docs {
		severity, _ := doc["severity"].(string)
		if severity == "" {
			severity = "medium"
		}

		if _, ok := stats.BySeverity[severity]; ok {
			stats.BySeverity[severity]++
		}

		id, _ := doc["id"].(string)
		if id == "" {
			continue
		}

		info, statErr := s.fs.Stat(filepath.Join(s.issuesDir, recordFileName(id)))
		if statErr == nil {
			stats.TotalSizeBytes += info.Size()
		}
	}

	return stats
}
