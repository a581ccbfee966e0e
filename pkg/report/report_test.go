package report

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/CompassSecurity/custompatterns/pkg/engine"
	"github.com/CompassSecurity/custompatterns/pkg/logging"
	"github.com/CompassSecurity/custompatterns/pkg/patterns"
	"github.com/CompassSecurity/custompatterns/pkg/scan"
	"github.com/CompassSecurity/custompatterns/pkg/selftest"
	"github.com/CompassSecurity/custompatterns/pkg/validate"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

func captureLog(t *testing.T, level zerolog.Level) *bytes.Buffer {
	t.Helper()
	originalLogger := log.Logger
	originalLevel := zerolog.GlobalLevel()
	t.Cleanup(func() {
		log.Logger = originalLogger
		zerolog.SetGlobalLevel(originalLevel)
	})

	var buf bytes.Buffer
	writer := logging.NewHitLevelWriter(&buf)
	logging.SetGlobalHitWriter(writer)
	log.Logger = zerolog.New(writer)
	zerolog.SetGlobalLevel(level)
	return &buf
}

func logLines(t *testing.T, buf *bytes.Buffer) []gjson.Result {
	t.Helper()
	var lines []gjson.Result
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		require.True(t, gjson.Valid(line), line)
		lines = append(lines, gjson.Parse(line))
	}
	return lines
}

func TestReportFinding(t *testing.T) {
	tests := []struct {
		name      string
		finding   validate.Finding
		level     string
		expectErr string
		pattern   bool
	}{
		{
			name: "error finding",
			finding: validate.Finding{
				Document: "generic/patterns.yml",
				Pattern:  "Token",
				Severity: validate.SeverityError,
				Message:  "invalid regex",
				Err:      errors.New("missing closing )"),
			},
			level:     "error",
			expectErr: "missing closing )",
			pattern:   true,
		},
		{
			name: "document warning",
			finding: validate.Finding{
				Document: "generic/patterns.yml",
				Severity: validate.SeverityWarning,
				Message:  "no patterns",
			},
			level: "warn",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := captureLog(t, zerolog.InfoLevel)
			ReportFinding(tt.finding)

			lines := logLines(t, buf)
			require.Len(t, lines, 1)
			assert.Equal(t, tt.level, lines[0].Get("level").String())
			assert.Equal(t, tt.finding.Message, lines[0].Get("message").String())
			assert.Equal(t, "generic/patterns.yml", lines[0].Get("document").String())
			assert.Equal(t, tt.pattern, lines[0].Get("pattern").Exists())
			assert.Equal(t, tt.expectErr, lines[0].Get("error").String())
		})
	}
}

func TestReportResults(t *testing.T) {
	buf := captureLog(t, zerolog.InfoLevel)

	results := selftest.Results{
		{Document: "a/patterns.yml", Pattern: "Token", Subject: selftest.SubjectFixture, Status: selftest.StatusPassed},
		{
			Document: "a/patterns.yml",
			Pattern:  "Key",
			Type:     "key",
			Subject:  selftest.SubjectFixture,
			Status:   selftest.StatusWrongSpan,
			Expected: &patterns.Span{Start: 1, End: 10},
			Actual:   []patterns.Span{{Start: 2, End: 10}},
			Match:    &engine.Match{Groups: engine.Groups{Pattern: "key\x1b[31m_123\n"}},
			Err:      &selftest.TestFailure{Expected: patterns.Span{Start: 1, End: 10}, Actual: []patterns.Span{{Start: 2, End: 10}}},
		},
	}

	failed := ReportResults(results)
	assert.Equal(t, 1, failed)

	lines := logLines(t, buf)
	require.Len(t, lines, 2, "passed results are logged at debug level")

	line := lines[0]
	assert.Equal(t, "error", line.Get("level").String())
	assert.Equal(t, "wrong-span", line.Get("status").String())
	assert.Equal(t, "Key", line.Get("pattern").String())
	assert.Equal(t, "1-10", line.Get("expected").String())
	assert.Equal(t, "2-10", line.Get("actual.0").String())
	assert.Equal(t, `key_123\n`, line.Get("value").String())
	assert.NotEmpty(t, line.Get("error").String())

	assert.Equal(t, int64(1), lines[1].Get("passed").Int())
	assert.Equal(t, int64(1), lines[1].Get("failed").Int())
}

func testHit() scan.Hit {
	return scan.Hit{
		Source:  logging.SourceExtra,
		Path:    "app/config.py",
		Pattern: "Token",
		Type:    "token",
		Offset:  100,
		Match: engine.Match{
			Span:   patterns.Span{Start: 9, End: 17},
			Groups: engine.Groups{Start: "'", Pattern: "tok_abcd", End: "'"},
		},
	}
}

func TestReportHit(t *testing.T) {
	buf := captureLog(t, zerolog.ErrorLevel)
	ReportHit(testHit())

	lines := logLines(t, buf)
	require.Len(t, lines, 1)
	line := lines[0]
	assert.Equal(t, "hit", line.Get("level").String())
	assert.Equal(t, "extra", line.Get("source").String())
	assert.Equal(t, "app/config.py", line.Get("path").String())
	assert.Equal(t, "token", line.Get("type").String())
	assert.Equal(t, int64(109), line.Get("start").Int())
	assert.Equal(t, int64(117), line.Get("end").Int())
	assert.Equal(t, "tok_abcd", line.Get("value").String())
}

func TestHitLine(t *testing.T) {
	hit := testHit()

	assert.Equal(t, "app/config.py:109-117: 'tok_abcd' (with 'Token')", HitLine(hit, false))

	colored := HitLine(hit, true)
	assert.Contains(t, colored, "\x1b[")
	assert.Contains(t, colored, "tok_abcd")

	hit.Match.Groups = engine.Groups{Start: "\n", Pattern: strings.Repeat("a", MaxValueLength+10), End: ""}
	line := HitLine(hit, false)
	assert.Contains(t, line, `: \n`)
	assert.Contains(t, line, "...")
}

func TestReportSummary(t *testing.T) {
	buf := captureLog(t, zerolog.DebugLevel)

	ReportSummary("extra", &scan.Summary{
		Files:   2,
		Skipped: 1,
		Bytes:   2048,
		Hits:    map[string]int{"Token": 2, "Key": 1},
	})

	lines := logLines(t, buf)
	require.Len(t, lines, 2)
	assert.Equal(t, "Scan done", lines[0].Get("message").String())
	assert.Equal(t, int64(2), lines[0].Get("files").Int())
	assert.Equal(t, int64(1), lines[0].Get("skipped").Int())
	assert.Equal(t, int64(3), lines[0].Get("hits").Int())
	assert.Equal(t, "2KiB", lines[0].Get("scanned").String())
	assert.Equal(t, int64(2), lines[1].Get("hitsPerPattern.Token").Int())
	assert.Equal(t, int64(1), lines[1].Get("hitsPerPattern.Key").Int())
}
