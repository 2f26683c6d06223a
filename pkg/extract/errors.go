package extract

import (
	"fmt"
	"time"
)

// ConfigurationError marks an extractor invocation that must not run: a
// missing unit rule, an unknown policy, a nil predicate. It aborts the whole
// invocation before any output is produced.
type ConfigurationError struct {
	Feature string
	Err     error
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("extractor %q misconfigured: %v", e.Feature, e.Err)
}

func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

// InvalidWindowError reports inverted window bounds for a single stay. It is
// non-fatal: the stay yields an absent result and the run continues.
type InvalidWindowError struct {
	StayID int64
	Start  time.Time
	End    time.Time
}

func (e *InvalidWindowError) Error() string {
	return fmt.Sprintf("stay %d has inverted window bounds [%s, %s]",
		e.StayID, e.Start.Format(time.RFC3339), e.End.Format(time.RFC3339))
}
