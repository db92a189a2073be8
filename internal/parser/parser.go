// Package parser extracts structured records from raw access-log lines.
//
// DESIGN: Parsing is best-effort and never fails. A field that is absent or
// unparsable is left at its zero value; a line with no recognizable fields
// yields a zero LogRecord, which downstream detectors treat as a no-op.
package parser

import (
	"regexp"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

// Pool identifies one of the two backend pools the proxy routes to.
type Pool string

const (
	PoolBlue  Pool = "blue"
	PoolGreen Pool = "green"
)

// ParsePool normalizes a raw pool name. Only "blue" and "green" are valid
// (case-insensitive); anything else returns false.
func ParsePool(s string) (Pool, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "blue":
		return PoolBlue, true
	case "green":
		return PoolGreen, true
	default:
		return "", false
	}
}

// Valid reports whether p is a recognized pool.
func (p Pool) Valid() bool {
	return p == PoolBlue || p == PoolGreen
}

func (p Pool) String() string { return string(p) }

// LogRecord holds the fields extracted from a single log line.
// Zero values mean "not present": StatusCode 0, empty strings, zero time.
// Records are produced fresh per line and never retained.
type LogRecord struct {
	StatusCode     int       // HTTP status from the request field, 0 if absent
	UpstreamStatus string    // raw upstream_status token value, "" if absent
	Pool           Pool      // normalized pool, "" if absent or unrecognized
	Release        string    // raw release token value, "" if absent
	Timestamp      time.Time // access-log timestamp, zero if absent; annotation only
}

// HasStatus reports whether a status code was extracted.
func (r LogRecord) HasStatus() bool { return r.StatusCode != 0 }

// accessTimeLayout is the bracketed timestamp format of combined-format logs.
const accessTimeLayout = "02/Jan/2006:15:04:05 -0700"

var (
	// First 3-digit token immediately following the quoted request field.
	statusRe = regexp.MustCompile(`"\s+(\d{3})\s+`)
	// upstream_status:<value>, value being a code, "-", or a marker word.
	upstreamRe = regexp.MustCompile(`upstream_status:(\S+)`)
	poolRe     = regexp.MustCompile(`pool:(\w+)`)
	// release:<pool>-<version>; the pool is the part before the first hyphen.
	releaseRe = regexp.MustCompile(`release:([\w.-]+)`)
	bracketRe = regexp.MustCompile(`\[([^\]]+)\]`)
)

// Parse extracts a LogRecord from one raw line. Lines that look like JSON
// objects are parsed with gjson; everything else goes through the
// combined-format regexes.
func Parse(line string) LogRecord {
	line = strings.TrimSpace(line)
	if line == "" {
		return LogRecord{}
	}
	if strings.HasPrefix(line, "{") && gjson.Valid(line) {
		return parseJSON(line)
	}
	return parseCombined(line)
}

func parseCombined(line string) LogRecord {
	var rec LogRecord

	if m := statusRe.FindStringSubmatch(line); m != nil {
		rec.StatusCode = atoi3(m[1])
	}
	if m := upstreamRe.FindStringSubmatch(line); m != nil {
		rec.UpstreamStatus = strings.Trim(m[1], `",`)
	}
	if m := poolRe.FindStringSubmatch(line); m != nil {
		if p, ok := ParsePool(m[1]); ok {
			rec.Pool = p
		}
	}
	if m := releaseRe.FindStringSubmatch(line); m != nil {
		rec.Release = strings.Trim(m[1], `",`)
		if rec.Pool == "" {
			rec.Pool = poolFromRelease(rec.Release)
		}
	}
	if m := bracketRe.FindStringSubmatch(line); m != nil {
		if ts, err := time.Parse(accessTimeLayout, m[1]); err == nil {
			rec.Timestamp = ts
		}
	}
	return rec
}

func parseJSON(line string) LogRecord {
	var rec LogRecord

	if v := gjson.Get(line, "status"); v.Exists() {
		if code := int(v.Int()); code >= 100 && code <= 599 {
			rec.StatusCode = code
		}
	}
	if v := gjson.Get(line, "upstream_status"); v.Exists() {
		rec.UpstreamStatus = v.String()
	}
	if v := gjson.Get(line, "pool"); v.Exists() {
		if p, ok := ParsePool(v.String()); ok {
			rec.Pool = p
		}
	}
	if v := gjson.Get(line, "release"); v.Exists() {
		rec.Release = v.String()
		if rec.Pool == "" {
			rec.Pool = poolFromRelease(rec.Release)
		}
	}
	if v := gjson.Get(line, "time"); v.Exists() {
		raw := v.String()
		if ts, err := time.Parse(time.RFC3339, raw); err == nil {
			rec.Timestamp = ts
		} else if ts, err := time.Parse(accessTimeLayout, raw); err == nil {
			rec.Timestamp = ts
		}
	}
	return rec
}

// poolFromRelease derives the pool from a release identifier such as
// "blue-v1.2.3" by splitting on the first hyphen.
func poolFromRelease(release string) Pool {
	name, _, found := strings.Cut(release, "-")
	if !found {
		name = release
	}
	if p, ok := ParsePool(name); ok {
		return p
	}
	return ""
}

// atoi3 converts an already regex-validated 3-digit string.
func atoi3(s string) int {
	n := 0
	for _, c := range s {
		n = n*10 + int(c-'0')
	}
	return n
}
