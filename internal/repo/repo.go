// Package repo implements the cached repositories over the backing
// store. All reads go through the cache; every mutation writes the
// store first, then refreshes the entity cache and invalidates the
// derived list caches, so readers never see a cached value older than
// the last committed write.
package repo

import (
	"fmt"
	"hash/fnv"
	"sort"
	"strconv"

	"github.com/roster-engine/internal/store"
)

// BulkError records one failed record in a bulk operation.
type BulkError struct {
	Index int    `json:"index"`
	Error string `json:"error"`
}

// BulkResult summarizes a createMany run.
type BulkResult struct {
	Created    int         `json:"created"`
	Duplicates int         `json:"duplicates"`
	Errors     []BulkError `json:"errors,omitempty"`
}

// queryKey renders criteria and options into a deterministic cache key
// under the given prefix.
func queryKey(prefix string, criteria store.Criteria, opts store.Options) string {
	fields := make([]string, 0, len(criteria))
	for field := range criteria {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	h := fnv.New64a()
	for _, field := range fields {
		h.Write([]byte(field))
		h.Write([]byte{'='})
		switch w := criteria[field].(type) {
		case string:
			h.Write([]byte(w))
		case store.NotEq:
			h.Write([]byte("!"))
			h.Write([]byte(w))
		case []string:
			for _, v := range w {
				h.Write([]byte(v))
				h.Write([]byte{'|'})
			}
		default:
			fmt.Fprint(h, w)
		}
		h.Write([]byte{';'})
	}
	fmt.Fprintf(h, "%s:%t:%d:%d", opts.OrderBy, opts.Descending, opts.Limit, opts.Offset)
	return fmt.Sprintf("%s:q:%x", prefix, h.Sum64())
}

func itoa64(n int64) string {
	return strconv.FormatInt(n, 10)
}
