// Package id provides collision-free identifier generation for jobs and artifacts.
package id

import (
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

var counter atomic.Uint64

// Generate creates a new unique identifier with the given prefix.
// Format: <prefix>-<unix-nanos base36>-<counter base36>-<random>
// Example: output-lq3k2x9c1a8-1f-3fa85f64a1b2
//
// The process-wide counter keeps identifiers distinct for calls landing in
// the same clock tick; the random part keeps them distinct across processes
// sharing one storage directory.
func Generate(prefix string) string {
	ts := strconv.FormatInt(time.Now().UnixNano(), 36)
	seq := strconv.FormatUint(counter.Add(1), 36)
	random := strings.ReplaceAll(uuid.NewString(), "-", "")[:12]

	var b strings.Builder
	if prefix != "" {
		b.WriteString(prefix)
		b.WriteByte('-')
	}
	b.WriteString(ts)
	b.WriteByte('-')
	b.WriteString(seq)
	b.WriteByte('-')
	b.WriteString(random)
	return b.String()
}
