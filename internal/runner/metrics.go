package runner

import (
	"regexp"
	"strconv"
)

// metricPattern pairs a metric name with the line shape that produces it.
// Each pattern is evaluated independently; a malformed number in one line
// cannot block extraction of the others.
type metricPattern struct {
	metric string
	re     *regexp.Regexp
}

// metricPatterns is the fixed set of recognized line shapes. This is
// intentionally narrow: anything not matching is silently ignored.
var metricPatterns = []metricPattern{
	{"pass_rate", regexp.MustCompile(`(?i)pass rate:\s*([0-9]+(?:\.[0-9]+)?)\s*%`)},
	{"coverage", regexp.MustCompile(`(?i)coverage:\s*([0-9]+(?:\.[0-9]+)?)\s*%`)},
	{"security_issues", regexp.MustCompile(`(?i)security issues\s*\|\s*([0-9]+)`)},
	{"violations", regexp.MustCompile(`(?i)violations\s*\|\s*([0-9]+)`)},
	{"orphaned_entries", regexp.MustCompile(`(?i)orphaned entries:\s*([0-9]+)`)},
	{"errors", regexp.MustCompile(`(?i)errors found:\s*([0-9]+)`)},
}

// ParseMetrics scans tool stdout for recognized metric lines and returns
// the first numeric match per pattern. Unrecognized output yields an
// empty map.
func ParseMetrics(stdout string) map[string]float64 {
	metrics := make(map[string]float64)
	for _, p := range metricPatterns {
		m := p.re.FindStringSubmatch(stdout)
		if m == nil {
			continue
		}
		v, err := strconv.ParseFloat(m[1], 64)
		if err != nil {
			// Malformed number in one pattern must not block the rest.
			continue
		}
		metrics[p.metric] = v
	}
	return metrics
}
