package pipeline

import (
	"fmt"
	"time"

	"frestoload/lib/scrapers/fresto"
)

// ValidationError is malformed user input or missing configuration,
// caught before any network call is made.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

const dateLayout = "2006-01-02"

// ParseDateRange validates YYYY-MM-DD inputs. An empty end date means
// today, matching the loader's behavior for daily runs.
func ParseDateRange(start, end string) (fresto.DateRange, error) {
	if start == "" {
		return fresto.DateRange{}, &ValidationError{Field: "start date", Reason: "required"}
	}
	startTime, err := time.Parse(dateLayout, start)
	if err != nil {
		return fresto.DateRange{}, &ValidationError{Field: "start date", Reason: "must be YYYY-MM-DD"}
	}

	var endTime time.Time
	if end == "" {
		endTime = time.Now()
	} else {
		endTime, err = time.Parse(dateLayout, end)
		if err != nil {
			return fresto.DateRange{}, &ValidationError{Field: "end date", Reason: "must be YYYY-MM-DD"}
		}
	}

	if endTime.Before(startTime) {
		return fresto.DateRange{}, &ValidationError{Field: "date range", Reason: "end date before start date"}
	}
	return fresto.DateRange{Start: startTime, End: endTime}, nil
}
