package sqlite

import (
	"fmt"
	"time"
)

type Run struct {
	ConfigID    string    `db:"config_id"`
	Pair        string    `db:"pair"`
	Created     int       `db:"created"`
	Preserved   int       `db:"preserved"`
	Deleted     int       `db:"deleted"`
	Failed      int       `db:"failed"`
	ErrorDetail string    `db:"error_detail"`
	StartedAt   time.Time `db:"started_at"`
}

func (r Run) String() string {
	line := fmt.Sprintf("%s [%s] %s: %d created, %d preserved, %d deleted",
		r.StartedAt.UTC().Format(time.RFC3339), r.ConfigID, r.Pair,
		r.Created, r.Preserved, r.Deleted)
	if r.Failed > 0 {
		line += fmt.Sprintf(", %d failed", r.Failed)
	}
	return line
}
