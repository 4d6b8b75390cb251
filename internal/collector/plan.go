package collector

import "time"

// Window is one paginated request: up to Limit candles of Granularity
// seconds starting at Start.
type Window struct {
	Index       int
	Start       time.Time
	Granularity int
	Limit       int
}

// SinceMs is Start in Unix milliseconds, the form exchanges expect.
func (w Window) SinceMs() int64 {
	return w.Start.UnixMilli()
}

// Span is the time covered by one full window.
func Span(granularity, limit int) time.Duration {
	return time.Duration(granularity) * time.Duration(limit) * time.Second
}

// RoundToGranularity rounds now to the nearest multiple of granularity
// seconds counted from UTC midnight of now's day. Ties round up and the
// sub-second part is dropped. The result is rebuilt from midnight, so
// 23:30:00 rounded to an hour lands on 00:00:00 of the next day.
func RoundToGranularity(now time.Time, granularity int) time.Time {
	now = now.UTC()
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	if granularity <= 0 {
		return now.Truncate(time.Second)
	}

	g := int64(granularity)
	seconds := int64(now.Sub(midnight) / time.Second)
	rounded := (2*seconds + g) / (2 * g) * g

	return midnight.Add(time.Duration(rounded) * time.Second)
}

// PlanLoops returns how many windows of granularity*limit seconds are
// needed to go from since to roundedNow: ceil((roundedNow-since)/span),
// or 0 when there is nothing to fetch.
func PlanLoops(since, roundedNow time.Time, granularity, limit int) int {
	if granularity <= 0 || limit <= 0 || !roundedNow.After(since) {
		return 0
	}
	span := Span(granularity, limit)
	delta := roundedNow.Sub(since)
	return int((delta + span - 1) / span)
}

// WindowStart returns since + i*granularity*limit seconds.
func WindowStart(since time.Time, i, granularity, limit int) time.Time {
	return since.Add(time.Duration(i) * Span(granularity, limit))
}

// PlanWindows lists the windows PlanLoops counts.
func PlanWindows(since, roundedNow time.Time, granularity, limit int) []Window {
	loops := PlanLoops(since, roundedNow, granularity, limit)
	windows := make([]Window, 0, loops)
	for i := 0; i < loops; i++ {
		windows = append(windows, Window{
			Index:       i,
			Start:       WindowStart(since, i, granularity, limit),
			Granularity: granularity,
			Limit:       limit,
		})
	}
	return windows
}
