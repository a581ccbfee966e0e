// Package report writes validation findings, self test results and scan hits
// to the global logger.
package report

import (
	"fmt"

	"github.com/CompassSecurity/custompatterns/pkg/format"
	"github.com/CompassSecurity/custompatterns/pkg/logging"
	"github.com/CompassSecurity/custompatterns/pkg/patterns"
	"github.com/CompassSecurity/custompatterns/pkg/scan"
	"github.com/CompassSecurity/custompatterns/pkg/selftest"
	"github.com/CompassSecurity/custompatterns/pkg/validate"
	"github.com/fatih/color"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// MaxValueLength bounds matched text written to the log.
const MaxValueLength = 200

func ReportFindings(findings validate.Findings) {
	for _, finding := range findings {
		ReportFinding(finding)
	}
}

func ReportFinding(finding validate.Finding) {
	event := log.Warn()
	if finding.Severity == validate.SeverityError {
		event = log.Error()
	}

	event = event.Str("document", finding.Document)
	if finding.Pattern != "" {
		event = event.Str("pattern", finding.Pattern)
	}
	if finding.Err != nil {
		event = event.Err(finding.Err)
	}
	event.Msg(finding.Message)
}

// ReportResults logs every result and returns the number of failures.
func ReportResults(results selftest.Results) int {
	for _, result := range results {
		ReportResult(result)
	}
	failed := results.Failed()
	log.Info().Int("passed", len(results)-failed).Int("failed", failed).Msg("Self tests done")
	return failed
}

func ReportResult(result selftest.Result) {
	if result.Passed() {
		log.Debug().
			Str("document", result.Document).
			Str("pattern", result.Pattern).
			Str("subject", result.Subject).
			Msg("Self test passed")
		return
	}

	event := log.Error().
		Str("status", string(result.Status)).
		Str("document", result.Document).
		Str("pattern", result.Pattern).
		Str("type", result.Type).
		Str("subject", result.Subject)
	if result.Expected != nil {
		event = event.Str("expected", spanString(*result.Expected))
	}
	if len(result.Actual) > 0 {
		actual := make([]string, 0, len(result.Actual))
		for _, s := range result.Actual {
			actual = append(actual, spanString(s))
		}
		event = event.Strs("actual", actual)
	}
	if result.Match != nil {
		event = event.Str("value", value(result.Match.Groups.Pattern))
	}
	if result.Err != nil {
		event = event.Err(result.Err)
	}
	event.Msg("Self test failed")
}

// ReportHit logs hit at the hit level with absolute offsets.
func ReportHit(hit scan.Hit) {
	start, end := absolute(hit)
	logging.Hit().
		Str("source", string(hit.Source)).
		Str("path", hit.Path).
		Str("pattern", hit.Pattern).
		Str("type", hit.Type).
		Int("start", int(start)).
		Int("end", int(end)).
		Str("value", value(hit.Match.Groups.Pattern)).
		Msg("HIT")
}

// HitLine renders hit like grep does, with the matched secret highlighted
// between its boundaries.
func HitLine(hit scan.Hit, colored bool) string {
	highlight := color.New(color.FgRed, color.Bold)
	if colored {
		highlight.EnableColor()
	} else {
		highlight.DisableColor()
	}

	start, end := absolute(hit)
	groups := hit.Match.Groups
	return fmt.Sprintf("%s:%d-%d: %s%s%s (with '%s')",
		hit.Path, start, end,
		value(groups.Start), highlight.Sprint(value(groups.Pattern)), value(groups.End),
		hit.Pattern)
}

// ReportSummary logs what a scan processed. Hits per pattern are logged at
// debug level.
func ReportSummary(what string, summary *scan.Summary) {
	log.Info().
		Str("scan", what).
		Int("files", summary.Files).
		Int("skipped", summary.Skipped).
		Int("errors", summary.Errors).
		Str("scanned", format.HumanSize(summary.Bytes)).
		Int("hits", summary.TotalHits()).
		Msg("Scan done")

	if event := log.Debug(); event.Enabled() {
		dict := zerolog.Dict()
		for _, name := range summary.PatternNames() {
			dict = dict.Int(name, summary.Hits[name])
		}
		event.Str("scan", what).Dict("hitsPerPattern", dict).Msg("Hits per pattern")
	}
}

func absolute(hit scan.Hit) (start, end int64) {
	return hit.Offset + int64(hit.Match.Span.Start), hit.Offset + int64(hit.Match.Span.End)
}

func spanString(s patterns.Span) string {
	return fmt.Sprintf("%d-%d", s.Start, s.End)
}

func value(text string) string {
	return format.Truncate(format.CleanText([]byte(text)), MaxValueLength)
}
