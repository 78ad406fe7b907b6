// Package retry implements bounded retries with a fixed delay between
// attempts.
package retry

import "time"

// Policy describes how often an operation is attempted.
type Policy struct {
	// Attempts is the total number of attempts. Values below 1
	// are treated as 1.
	Attempts int
	// Delay is the pause after each failed attempt except the last.
	Delay time.Duration
}

// Do calls op until it succeeds or the attempts are exhausted, in
// which case the last error is returned.
func (p Policy) Do(op func() error) error {
	n := max(p.Attempts, 1)
	var err error
	for i := 0; i < n; i++ {
		if err = op(); err == nil {
			return nil
		}
		if i < n-1 && p.Delay > 0 {
			time.Sleep(p.Delay)
		}
	}
	return err
}
