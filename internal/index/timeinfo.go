package index

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/angus-g/cosima-cookbook/internal/catalog"
	"github.com/angus-g/cosima-cookbook/internal/cerr"
	"github.com/angus-g/cosima-cookbook/internal/dataset"
)

// TimeInfo is the temporal coverage extracted from one file.
type TimeInfo struct {
	// Start and End are canonical timestamps (catalog.TimeFormat).
	Start string
	End   string

	// Frequency is the heuristic sampling label, e.g. "1 daily" or "static".
	Frequency string
}

// InferTimeInfo extracts start/end time and sampling frequency from an
// open dataset.
//
// A file without a record dimension has no temporal metadata and returns
// (nil, nil); static files are valid. A record dimension with zero length
// signals a truncated file and fails with an empty-dimension error, and one
// with no matching variable fails with a no-time-variable error. A time
// variable missing units or calendar (non-CF-compliant) fails with a
// non-compliant error, which callers treat as "skip time extraction", not
// as an indexing failure.
func InferTimeInfo(ds dataset.Dataset) (*TimeInfo, error) {
	// we assume the record dimension corresponds to time
	timeDim, ok := ds.RecordDimension()
	if !ok {
		return nil, nil
	}
	timeVar, ok := ds.Variable(timeDim)
	if !ok {
		return nil, cerr.Newf(cerr.CodeNoTimeVariable,
			"record dimension %q has no corresponding variable", timeDim).
			WithDetail("dimension", timeDim)
	}

	shape := timeVar.Shape()
	if len(shape) == 0 || shape[0] == 0 {
		return nil, cerr.Newf(cerr.CodeEmptyDimension,
			"dimension %q is a valid unlimited dimension, but has no data", timeDim)
	}
	n := shape[0]

	units, hasUnits := timeVar.Attr("units")
	calendar, hasCalendar := timeVar.Attr("calendar")
	if !hasUnits || !hasCalendar {
		return nil, cerr.Newf(cerr.CodeNonCompliantTime,
			"time variable %q lacks units or calendar attribute", timeDim)
	}

	conv, err := parseCFUnits(units, calendar)
	if err != nil {
		return nil, cerr.Wrap(cerr.CodeNonCompliantTime, err)
	}

	values, err := timeVar.Values()
	if err != nil {
		return nil, fmt.Errorf("read time values: %w", err)
	}

	// Bounds capture the true coverage of averaging periods, so prefer
	// them over the period midpoints when the file declares them.
	var bounds []float64
	if boundsName, ok := timeVar.Attr("bounds"); ok {
		if boundsVar, ok := ds.Variable(boundsName); ok {
			bounds, err = boundsVar.Values()
			if err != nil {
				return nil, fmt.Errorf("read time bounds: %w", err)
			}
		}
	}
	hasBounds := len(bounds) >= 2*n

	info := &TimeInfo{}
	var start, end time.Time
	if hasBounds {
		start = conv.date(bounds[0])
		end = conv.date(bounds[2*n-1])
	} else {
		start = conv.date(values[0])
		end = conv.date(values[n-1])
	}

	if n > 1 || hasBounds {
		// The gap between the first sample (or its upper bound) and the
		// second classifies the sampling frequency. Deliberately
		// approximate.
		var next time.Time
		if hasBounds {
			next = conv.date(bounds[1])
		} else {
			next = conv.date(values[1])
		}
		info.Frequency = classifyFrequency(next.Sub(start))
	} else {
		// single time value in this file and no averaging
		info.Frequency = "static"
	}

	info.Start = start.Format(catalog.TimeFormat)
	info.End = end.Format(catalog.TimeFormat)
	return info, nil
}

// classifyFrequency maps the gap between consecutive time samples to a
// frequency label. Half-way counts round to even, so a 75-day gap is
// "2 monthly", not "3 monthly".
func classifyFrequency(dt time.Duration) string {
	days := int(dt.Hours()) / 24
	switch {
	case days >= 365:
		return fmt.Sprintf("%d yearly", int(math.RoundToEven(float64(days)/365)))
	case days >= 28:
		return fmt.Sprintf("%d monthly", int(math.RoundToEven(float64(days)/30)))
	case days >= 1:
		return fmt.Sprintf("%d daily", days)
	default:
		return fmt.Sprintf("%d hourly", int(dt.Hours()))
	}
}

// cfTime converts raw time values into timestamps given a CF units string.
//
// Arithmetic uses fixed-length units. For non-standard calendars (noleap,
// 360_day) absolute dates can drift from a true calendar-aware conversion,
// but the deltas that drive frequency classification are exact.
type cfTime struct {
	epoch       time.Time
	unitSeconds float64
	calendar    string
}

var cfUnitSeconds = map[string]float64{
	"seconds": 1, "second": 1, "secs": 1, "sec": 1, "s": 1,
	"minutes": 60, "minute": 60, "mins": 60, "min": 60,
	"hours": 3600, "hour": 3600, "hrs": 3600, "hr": 3600, "h": 3600,
	"days": 86400, "day": 86400, "d": 86400,
}

var cfEpochLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

// parseCFUnits parses a CF time units string, "<unit> since <epoch>".
func parseCFUnits(units, calendar string) (*cfTime, error) {
	fields := strings.Fields(units)
	if len(fields) < 3 || !strings.EqualFold(fields[1], "since") {
		return nil, fmt.Errorf("unsupported time units %q", units)
	}

	unitSeconds, ok := cfUnitSeconds[strings.ToLower(fields[0])]
	if !ok {
		return nil, fmt.Errorf("unsupported time unit %q", fields[0])
	}

	epochStr := strings.TrimSuffix(strings.Join(fields[2:], " "), "Z")
	var epoch time.Time
	var err error
	for _, layout := range cfEpochLayouts {
		epoch, err = time.Parse(layout, epochStr)
		if err == nil {
			return &cfTime{epoch: epoch, unitSeconds: unitSeconds, calendar: calendar}, nil
		}
	}
	return nil, fmt.Errorf("unsupported time epoch %q: %w", epochStr, err)
}

// date converts one raw time value to a timestamp. Whole days are added
// via AddDate so that spans of many centuries do not overflow a Duration.
func (c *cfTime) date(value float64) time.Time {
	seconds := value * c.unitSeconds
	days := math.Trunc(seconds / 86400)
	rem := seconds - days*86400
	return c.epoch.AddDate(0, 0, int(days)).Add(time.Duration(rem * float64(time.Second)))
}
