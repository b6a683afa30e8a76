package alerting

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"metric-alerts/internal/rules"
)

// Trigger 是一条已触发的规则在邮件中呈现所需的上下文。
type Trigger struct {
	Metric       string
	Month        string
	Mode         rules.Mode
	Direction    rules.Direction
	ChangePct    decimal.Decimal
	ThresholdPct decimal.Decimal
	Current      decimal.Decimal
}

// Digest bundles every trigger relevant to one recipient, so each address
// receives a single email per run no matter how many rules fired.
type Digest struct {
	Recipient   string
	Subject     string
	GeneratedAt time.Time
	Triggers    []Trigger
}

// GroupTriggers fans triggered results out per recipient. Recipients appear in
// first-seen order over the ordered result sequence, keeping output
// deterministic for a given snapshot.
func GroupTriggers(results []rules.EvaluationResult, rows rules.RowSet, subjectPrefix string, now time.Time) []Digest {
	var order []string
	byRecipient := make(map[string][]Trigger)

	for _, res := range results {
		if !res.Triggered() || res.ChangePct == nil {
			continue
		}

		trigger := Trigger{
			Metric:       res.Rule.Metric,
			Mode:         res.Rule.Mode,
			Direction:    res.Rule.Direction,
			ChangePct:    *res.ChangePct,
			ThresholdPct: res.Rule.ThresholdPct,
		}
		if row, ok := rows.Lookup(res.Rule.Metric); ok {
			trigger.Month = row.Month
			trigger.Current = row.Current
		}

		for _, recipient := range res.Rule.Recipients {
			if _, seen := byRecipient[recipient]; !seen {
				order = append(order, recipient)
			}
			byRecipient[recipient] = append(byRecipient[recipient], trigger)
		}
	}

	digests := make([]Digest, 0, len(order))
	for _, recipient := range order {
		triggers := byRecipient[recipient]
		digests = append(digests, Digest{
			Recipient:   recipient,
			Subject:     fmt.Sprintf("%s %d trigger(s) detected", subjectPrefix, len(triggers)),
			GeneratedAt: now,
			Triggers:    triggers,
		})
	}
	return digests
}

// RenderText builds the plain-text body of a digest.
func RenderText(d Digest) string {
	builder := strings.Builder{}
	builder.WriteString(fmt.Sprintf("Triggered at: %s\n\n", d.GeneratedAt.Format("2006-01-02 15:04:05")))
	builder.WriteString("The following metric checks exceeded thresholds:\n\n")

	for _, tr := range d.Triggers {
		builder.WriteString(fmt.Sprintf(
			"- %s (%s): %s = %s%% (rule: %s %s%%), Current Value = %s\n",
			tr.Metric, tr.Month, modeLabel(tr.Mode), tr.ChangePct.StringFixed(2),
			tr.Direction, tr.ThresholdPct.StringFixed(2), tr.Current.String(),
		))
	}
	return builder.String()
}

// RenderHTML builds the HTML body: a table with the change colored by sign.
func RenderHTML(d Digest) string {
	builder := strings.Builder{}
	builder.WriteString("<h2 style='font-family:Arial;'>📊 Metric Alert</h2>\n")
	builder.WriteString(fmt.Sprintf("<p><strong>Triggered at:</strong> %s</p>\n", d.GeneratedAt.Format("2006-01-02 15:04:05")))
	builder.WriteString("<table border='1' cellpadding='8' cellspacing='0' style='border-collapse: collapse; font-family:Arial;'>\n")
	builder.WriteString("<tr style='background-color:#f2f2f2;'><th>Metric</th><th>Month</th><th>Check</th><th>Change</th><th>Rule</th></tr>\n")

	for _, tr := range d.Triggers {
		color := "green"
		if tr.ChangePct.Sign() < 0 {
			color = "red"
		}
		builder.WriteString(fmt.Sprintf(
			"<tr><td>%s</td><td>%s</td><td>%s</td><td style='color:%s; font-weight:bold;'>%s%%</td><td>%s %s%%</td></tr>\n",
			tr.Metric, tr.Month, modeLabel(tr.Mode), color,
			tr.ChangePct.StringFixed(2), tr.Direction, tr.ThresholdPct.StringFixed(2),
		))
	}

	builder.WriteString("</table>\n")
	return builder.String()
}

// Summary renders a compact one-line digest for audit surfaces.
func Summary(d Digest) string {
	parts := make([]string, 0, len(d.Triggers))
	for _, tr := range d.Triggers {
		parts = append(parts, fmt.Sprintf("%s %s=%s%% (rule: %s %s%%)",
			tr.Metric, modeLabel(tr.Mode), tr.ChangePct.StringFixed(2),
			tr.Direction, tr.ThresholdPct.StringFixed(2)))
	}
	return strings.Join(parts, "; ")
}

func modeLabel(m rules.Mode) string {
	if m == rules.ModeYoY {
		return "v YoY"
	}
	return "v MoM"
}
