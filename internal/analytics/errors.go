package analytics

import "fmt"

// InsufficientDataError reports that a statistical computation was asked to
// run on fewer observations than it needs. It is an expected condition while
// the pipeline warms up, never a crash: callers surface it as "not enough
// data yet".
type InsufficientDataError struct {
	Op   string
	Need int
	Got  int
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("%s: insufficient data, need %d observations, got %d", e.Op, e.Need, e.Got)
}
