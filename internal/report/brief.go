package report

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/wgyd/mereport/internal/db"
	"github.com/wgyd/mereport/internal/repository"
)

// topIndicators is how many indicators the results section lists.
const topIndicators = 6

// lateTeams is how many flagged teams the data-quality note lists.
const lateTeams = 3

// BriefGenerator renders the fixed-layout monthly brief from the store. It
// reads only; persistence must have completed before it runs.
type BriefGenerator struct {
	conn        *db.Conn
	submissions *repository.SubmissionRepository
	exceptions  *repository.ExceptionRepository
	mart        *repository.MartRepository

	briefsDir string
	now       func() time.Time
}

// NewBriefGenerator creates a brief generator writing into briefsDir.
func NewBriefGenerator(
	conn *db.Conn,
	submissions *repository.SubmissionRepository,
	exceptions *repository.ExceptionRepository,
	mart *repository.MartRepository,
	briefsDir string,
) *BriefGenerator {
	return &BriefGenerator{
		conn:        conn,
		submissions: submissions,
		exceptions:  exceptions,
		mart:        mart,
		briefsDir:   briefsDir,
		now:         time.Now,
	}
}

// Generate renders the monthly brief for one reporting period and returns
// the written path.
func (g *BriefGenerator) Generate(ctx context.Context, reportMonth string) (string, error) {
	intake, err := g.submissions.Intake(ctx, g.conn.DB, reportMonth)
	if err != nil {
		return "", err
	}
	cleanRows, err := g.submissions.CountMonth(ctx, g.conn.DB, "clean_submissions", reportMonth)
	if err != nil {
		return "", err
	}
	severities, err := g.exceptions.SeverityCounts(ctx, g.conn.DB, reportMonth)
	if err != nil {
		return "", err
	}
	late, err := g.submissions.LateReportingTeams(ctx, g.conn.DB, reportMonth)
	if err != nil {
		return "", err
	}
	summary, err := g.mart.NationalSummary(ctx, g.conn.DB, reportMonth)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# Monthly M&E Brief — %s\n\n", reportMonth)
	fmt.Fprintf(&b, "Auto-generated on: %s\n\n", g.now().UTC().Format("2006-01-02 15:04 UTC"))

	b.WriteString("## 1) Reporting Intake & Data Volume\n\n")
	fmt.Fprintf(&b, "Teams reporting: %d | Files received: %d\n\n", intake.TeamsReporting, intake.FilesReceived)
	fmt.Fprintf(&b, "Rows loaded — Raw: %d | Clean: %d\n\n", intake.RawRows, cleanRows)

	b.WriteString("## 2) Data Quality Summary (Exceptions Log)\n\n")
	if len(severities) == 0 {
		b.WriteString("No exceptions recorded for this month.\n\n")
	} else {
		for _, s := range severities {
			fmt.Fprintf(&b, "- %s: %d\n", titleCase(string(s.Severity)), s.Count)
		}
		b.WriteString("\n")
	}

	if len(late) > 0 {
		b.WriteString("Note: Some submissions have missing or short submission dates (possible late or invalid reporting).\n\n")
		for i, team := range late {
			if i >= lateTeams {
				break
			}
			fmt.Fprintf(&b, "- %s: %d rows flagged\n", team.Team, team.Rows)
		}
		b.WriteString("\n")
	}

	b.WriteString("## 3) Results Framework Summary (National Totals)\n\n")
	b.WriteString("Top indicators by progress-to-target:\n\n")
	if len(summary) == 0 {
		b.WriteString("No summary rows available.\n")
	} else {
		for i, row := range summary {
			if i >= topIndicators {
				break
			}
			fmt.Fprintf(&b, "- %s — %s | Actual: %s | Target: %s | Progress: %s\n",
				row.IndicatorCode,
				indicatorName(row.IndicatorName),
				formatNumber(row.ActualValue),
				formatOptional(row.Target),
				formatProgress(row.ProgressToTarget),
			)
		}
	}

	b.WriteString("\n---\n")
	b.WriteString("Auto-generated from standardized monthly submissions. Use the exceptions report for follow-up and remediation.\n")

	if err := os.MkdirAll(g.briefsDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create briefs directory: %w", err)
	}
	path := filepath.Join(g.briefsDir, fmt.Sprintf("monthly_brief_%s.md", reportMonth))
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return "", fmt.Errorf("failed to write brief: %w", err)
	}
	return path, nil
}

func indicatorName(name *string) string {
	if name == nil || *name == "" {
		return "(unnamed indicator)"
	}
	if len(*name) > 52 {
		return (*name)[:52]
	}
	return *name
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func formatOptional(v *float64) string {
	if v == nil {
		return "N/A"
	}
	return formatNumber(*v)
}

func formatProgress(progress *float64) string {
	if progress == nil {
		return "N/A"
	}
	return fmt.Sprintf("%.1f%%", *progress*100)
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
