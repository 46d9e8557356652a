// Package report renders finished analysis runs as Markdown and HTML.
package report

import (
	"fmt"
	"sort"
	"strings"

	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"

	"gopattern/domain/discovery"
)

// Markdown renders a run as a Markdown document. Output depends only on the run, so two
// identical runs render byte-identical reports apart from ID and timestamp.
func Markdown(run *discovery.AnalysisRun) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Pattern discovery: %s\n\n", escape(run.Outcome))
	fmt.Fprintf(&b, "- Run: `%s`\n", run.ID)
	fmt.Fprintf(&b, "- Created: %s\n", run.CreatedAt)
	fmt.Fprintf(&b, "- Status: %s\n", run.Status)
	if run.StatusDetail != "" {
		fmt.Fprintf(&b, "- Detail: %s\n", escape(run.StatusDetail))
	}
	fmt.Fprintf(&b, "- Observations: %d\n", run.Summary.DatasetSize)
	fmt.Fprintf(&b, "- Corrected alpha: %s\n", formatP(run.CorrectedAlpha))
	fmt.Fprintf(&b, "- Seed: %d, folds: %d\n", run.Settings.RandomSeed, run.Settings.CrossValidationFolds)
	fmt.Fprintf(&b, "- Fingerprint: `%s`\n\n", shortFingerprint(run))

	if run.Insufficient() {
		b.WriteString("Not enough observations to analyze; no patterns were tested.\n")
		return b.String()
	}

	writeSummary(&b, run)
	writeFindings(&b, run.Patterns)
	return b.String()
}

func shortFingerprint(run *discovery.AnalysisRun) string {
	fp := run.Fingerprint.String()
	if len(fp) > 12 {
		return fp[:12]
	}
	return fp
}

func writeSummary(b *strings.Builder, run *discovery.AnalysisRun) {
	s := run.Summary
	b.WriteString("## Summary\n\n")
	b.WriteString("| Stage | Count |\n|---|---:|\n")
	fmt.Fprintf(b, "| Tests executed | %d |\n", s.TestsExecuted)
	fmt.Fprintf(b, "| Candidates | %d |\n", s.TotalCandidates)
	fmt.Fprintf(b, "| Significant after correction | %d |\n", s.Retained)
	fmt.Fprintf(b, "| Validated across folds | %d |\n", s.Validated)
	fmt.Fprintf(b, "| Reported | %d |\n\n", s.Returned)

	if len(s.CandidatesByKind) > 0 {
		b.WriteString("| Kind | Candidates |\n|---|---:|\n")
		for _, kind := range discovery.AllCandidateKinds {
			if n := s.CandidatesByKind[kind]; n > 0 {
				fmt.Fprintf(b, "| %s | %d |\n", kind, n)
			}
		}
		b.WriteString("\n")
	}

	if len(s.SkippedByReason) > 0 {
		reasons := make([]string, 0, len(s.SkippedByReason))
		for r := range s.SkippedByReason {
			reasons = append(reasons, string(r))
		}
		sort.Strings(reasons)
		b.WriteString("| Skipped | Tests |\n|---|---:|\n")
		for _, r := range reasons {
			fmt.Fprintf(b, "| %s | %d |\n", r, s.SkippedByReason[discovery.SkipReason(r)])
		}
		b.WriteString("\n")
	}
}

func writeFindings(b *strings.Builder, patterns []discovery.ValidatedPattern) {
	b.WriteString("## Findings\n\n")
	if len(patterns) == 0 {
		b.WriteString("No pattern survived correction.\n")
		return
	}

	b.WriteString("| # | Kind | Features | Shape | Effect | p | n | Validation | Confidence |\n")
	b.WriteString("|---:|---|---|---|---:|---:|---:|---:|---|\n")
	for i, p := range patterns {
		fmt.Fprintf(b, "| %d | %s | %s | %s | %.3f | %s | %d | %d/%d | %s |\n",
			i+1, p.Kind, escape(features(p.Candidate)), p.Shape, p.EffectSize, formatP(p.PValue),
			p.SampleSize, p.FoldsMatched, p.FoldsEvaluated, p.Confidence)
	}
	b.WriteString("\n")

	for i, p := range patterns {
		fmt.Fprintf(b, "### %d. %s\n\n", i+1, escape(p.Description))
		fmt.Fprintf(b, "Pattern `%s`, score %.3f, power %.2f", p.ID, p.CombinedScore, p.Power)
		if !p.ValidatesOverall {
			b.WriteString(", did not replicate in enough folds")
		}
		b.WriteString(".\n\n")
	}
}

func features(c discovery.Candidate) string {
	out := strings.Join(c.Features, " × ")
	if c.Context != "" {
		out += " by " + c.Context
	}
	return out
}

func formatP(p float64) string {
	if p < 1e-4 {
		return fmt.Sprintf("%.1e", p)
	}
	return fmt.Sprintf("%.4f", p)
}

var mdEscaper = strings.NewReplacer("|", `\|`, "*", `\*`, "_", `\_`)

func escape(s string) string {
	return mdEscaper.Replace(s)
}

// HTML renders the Markdown report as an HTML fragment.
func HTML(run *discovery.AnalysisRun) []byte {
	return ToHTML([]byte(Markdown(run)))
}

// ToHTML converts Markdown to HTML with tables and heading IDs enabled.
func ToHTML(md []byte) []byte {
	p := parser.NewWithExtensions(parser.CommonExtensions | parser.AutoHeadingIDs)
	doc := p.Parse(md)
	renderer := html.NewRenderer(html.RendererOptions{Flags: html.CommonFlags | html.HrefTargetBlank})
	return markdown.Render(doc, renderer)
}
