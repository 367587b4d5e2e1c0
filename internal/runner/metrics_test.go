package runner

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseMetrics(t *testing.T) {
	tests := []struct {
		name   string
		stdout string
		want   map[string]float64
	}{
		{
			name:   "pass rate percentage",
			stdout: "Validation complete.\nPass Rate: 97.5%\n",
			want:   map[string]float64{"pass_rate": 97.5},
		},
		{
			name:   "pipe delimited security issues",
			stdout: "| Security Issues | 3 |\n",
			want:   map[string]float64{"security_issues": 3},
		},
		{
			name:   "orphaned entries",
			stdout: "Orphaned entries: 12\n",
			want:   map[string]float64{"orphaned_entries": 12},
		},
		{
			name:   "multiple patterns in one output",
			stdout: "Coverage: 84.2%\nViolations | 0\nPass Rate: 100%\n",
			want: map[string]float64{
				"coverage":   84.2,
				"violations": 0,
				"pass_rate":  100,
			},
		},
		{
			name:   "first match per pattern wins",
			stdout: "Pass Rate: 90%\nPass Rate: 10%\n",
			want:   map[string]float64{"pass_rate": 90},
		},
		{
			name:   "unrecognized output yields empty map",
			stdout: "nothing to see here\n42\n",
			want:   map[string]float64{},
		},
		{
			name:   "empty input",
			stdout: "",
			want:   map[string]float64{},
		},
		{
			name:   "case insensitive",
			stdout: "pass rate: 88%\n",
			want:   map[string]float64{"pass_rate": 88},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseMetrics(tt.stdout))
		})
	}
}

func TestParseMetrics_MalformedNumberDoesNotBlockOthers(t *testing.T) {
	// The pass-rate pattern requires digits, so a garbage value simply
	// does not match; the remaining patterns still extract.
	got := ParseMetrics("Pass Rate: NaN%\nErrors found: 2\n")
	assert.Equal(t, map[string]float64{"errors": 2}, got)
}
