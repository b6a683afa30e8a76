package alerting

import (
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"metric-alerts/internal/rules"
)

func dec(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	if err != nil {
		t.Fatalf("parse %q: %v", s, err)
	}
	return d
}

func triggeredResult(t *testing.T, metric, change string, recipients ...string) rules.EvaluationResult {
	t.Helper()
	c := dec(t, change)
	return rules.EvaluationResult{
		Rule: rules.RuleDefinition{
			Metric:       metric,
			Mode:         rules.ModeMoM,
			Direction:    rules.DirectionIncrease,
			ThresholdPct: dec(t, "10"),
			Recipients:   recipients,
			Enabled:      true,
		},
		Outcome:   rules.OutcomeTriggered,
		ChangePct: &c,
		Reason:    "change " + change + "% vs threshold 10% (direction=increase)",
	}
}

func TestGroupTriggersPerRecipient(t *testing.T) {
	rows := rules.NewRowSet([]rules.MetricRow{
		{Name: "revenue", Month: "2026-07", Current: dec(t, "110")},
		{Name: "signups", Month: "2026-07", Current: dec(t, "420")},
	})
	results := []rules.EvaluationResult{
		triggeredResult(t, "revenue", "12.4", "ops@example.com", "cfo@example.com"),
		{Rule: rules.RuleDefinition{Metric: "margin"}, Outcome: rules.OutcomeSkipped, Reason: "rule disabled"},
		triggeredResult(t, "signups", "15", "ops@example.com"),
	}

	now := time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC)
	digests := GroupTriggers(results, rows, "[Metric Alert]", now)

	if len(digests) != 2 {
		t.Fatalf("期望 2 个收件人, 实际 %d", len(digests))
	}

	ops := digests[0]
	if ops.Recipient != "ops@example.com" {
		t.Fatalf("recipients must keep first-seen order, got %s first", ops.Recipient)
	}
	if len(ops.Triggers) != 2 {
		t.Fatalf("ops 应收到 2 条触发, 实际 %d", len(ops.Triggers))
	}
	if ops.Subject != "[Metric Alert] 2 trigger(s) detected" {
		t.Fatalf("unexpected subject: %q", ops.Subject)
	}

	cfo := digests[1]
	if cfo.Recipient != "cfo@example.com" || len(cfo.Triggers) != 1 {
		t.Fatalf("cfo digest incorrect: %+v", cfo)
	}
	if cfo.Triggers[0].Month != "2026-07" || !cfo.Triggers[0].Current.Equal(dec(t, "110")) {
		t.Fatalf("trigger should carry row context: %+v", cfo.Triggers[0])
	}
}

func TestGroupTriggersSkipsUntriggered(t *testing.T) {
	rows := rules.NewRowSet(nil)
	results := []rules.EvaluationResult{
		{Rule: rules.RuleDefinition{Metric: "a", Recipients: []string{"x@example.com"}}, Outcome: rules.OutcomeNotTriggered},
		{Rule: rules.RuleDefinition{Metric: "b", Recipients: []string{"x@example.com"}}, Outcome: rules.OutcomeSkipped},
	}

	if digests := GroupTriggers(results, rows, "[Metric Alert]", time.Now()); len(digests) != 0 {
		t.Fatalf("no triggered results means no digests, got %d", len(digests))
	}
}

func TestRenderTextAndHTML(t *testing.T) {
	rows := rules.NewRowSet([]rules.MetricRow{{Name: "revenue", Month: "2026-07", Current: dec(t, "110")}})
	results := []rules.EvaluationResult{triggeredResult(t, "revenue", "-12.4", "ops@example.com")}
	digests := GroupTriggers(results, rows, "[Metric Alert]", time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC))

	text := RenderText(digests[0])
	for _, want := range []string{"Triggered at: 2026-08-01 09:00:00", "revenue (2026-07)", "v MoM = -12.40%", "rule: increase 10.00%", "Current Value = 110"} {
		if !strings.Contains(text, want) {
			t.Fatalf("text body missing %q:\n%s", want, text)
		}
	}

	html := RenderHTML(digests[0])
	if !strings.Contains(html, "color:red") {
		t.Fatalf("负变化应标红:\n%s", html)
	}
	if !strings.Contains(html, "<td>revenue</td>") {
		t.Fatalf("html table missing metric cell:\n%s", html)
	}

	summary := Summary(digests[0])
	if !strings.Contains(summary, "revenue v MoM=-12.40%") {
		t.Fatalf("summary line incorrect: %q", summary)
	}
}

func TestRenderHTMLPositiveIsGreen(t *testing.T) {
	rows := rules.NewRowSet(nil)
	results := []rules.EvaluationResult{triggeredResult(t, "revenue", "12.4", "ops@example.com")}
	digests := GroupTriggers(results, rows, "[Metric Alert]", time.Now())

	if !strings.Contains(RenderHTML(digests[0]), "color:green") {
		t.Fatal("正变化应标绿")
	}
}
