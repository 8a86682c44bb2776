package buffer

import (
	"fmt"
	"time"
)

// NewBufferID formats the stable, human-legible token that ties a partial
// result to its final counterpart: buff_YYYYMMDD_HHMMSS_NNN, where seq is a
// zero-padded per-session sequence starting at 1.
func NewBufferID(now time.Time, seq int) string {
	return fmt.Sprintf("buff_%s_%03d", now.Format("20060102_150405"), seq)
}
