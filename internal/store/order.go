package store

import (
	"sort"
	"time"
)

// Listing order: severity buckets from most to least urgent, newest first
// inside a bucket. Records with a missing or unknown severity land in the
// medium bucket; unparseable creation timestamps sort as oldest.

var severityRanks = map[string]int{
	"critical": 0,
	"high":     1,
	"medium":   2,
	"low":      3,
}

const defaultSeverityRank = 2 // medium

func severityRank(doc Document) int {
	severity, _ := doc["severity"].(string)

	rank, ok := severityRanks[severity]
	if !ok {
		return defaultSeverityRank
	}

	return rank
}

// Accepted in addition to RFC 3339: local timestamps without a zone, which
// hand-edited files tend to carry.
const zonelessLayout = "2006-01-02T15:04:05"

func createdAtUnix(doc Document) int64 {
	raw, _ := doc["created_at"].(string)

	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		t, err = time.Parse(zonelessLayout, raw)
	}

	if err != nil {
		return 0 // epoch: sorts as oldest
	}

	return t.Unix()
}

// sortDocuments orders docs in place by (severity rank ascending, created_at
// descending). The sort is stable so equal keys keep directory order.
func sortDocuments(docs []Document) {
	sort.SliceStable(docs, func(i, j int) bool {
		ri, rj := severityRank(docs[i]), severityRank(docs[j])
		if ri != rj {
			return ri < rj
		}

		return createdAtUnix(docs[i]) > createdAtUnix(docs[j])
	})
}
