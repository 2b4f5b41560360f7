package changelog

import "strings"

// CleanSummary fixes a known upstream artifact: generated summaries arrive
// as quoted strings with literal backslash escapes. Strips one pair of
// surrounding double quotes and turns literal \n and \t sequences into real
// characters. This is deliberately not JSON decoding; only those two escapes
// show up and anything else must pass through untouched. Idempotent.
func CleanSummary(summary string) string {
	if strings.HasPrefix(summary, `"`) && strings.HasSuffix(summary, `"`) && len(summary) > 1 {
		trimmed := summary[1 : len(summary)-1]
		// Only unwrap quotes that look like an accidental outer layer;
		// a summary that still ends with a quote was quoted on purpose.
		if !strings.HasPrefix(trimmed, `"`) && !strings.HasSuffix(trimmed, `"`) {
			summary = trimmed
		}
	}
	summary = strings.ReplaceAll(summary, `\n`, "\n")
	summary = strings.ReplaceAll(summary, `\t`, "\t")
	return summary
}
