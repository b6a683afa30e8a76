package source

import (
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"metric-alerts/internal/rules"
)

func latestTable() [][]string {
	return [][]string{
		{"Metric", "Current Month", "Current Value", "Prior Month Value", "Prior Year Value"},
		{"revenue", "2026-07", "110", "100", "80"},
		{"signups", "2026-07", "420", "", "400"},
		{"", "", "", "", ""},
	}
}

func configTable() [][]string {
	return [][]string{
		{"Metric", "Mode", "Direction", "Threshold Pct", "Recipients", "Enabled"},
		{"revenue", "MoM", "increase", "10%", "ops@example.com, cfo@example.com", "TRUE"},
		{"signups", "YoY", "either", "5", "growth@example.com", "yes"},
	}
}

func TestMetricRowsFromTable(t *testing.T) {
	rows, err := metricRowsFromTable(latestTable())
	if err != nil {
		t.Fatalf("解析 Latest 表失败: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("空行应被跳过, 期望 2 行, 实际 %d", len(rows))
	}

	if rows[0].Name != "revenue" || rows[0].PriorMoM == nil || rows[0].PriorYoY == nil {
		t.Fatalf("revenue 行解析不完整: %+v", rows[0])
	}
	if rows[1].PriorMoM != nil {
		t.Fatal("空白的 Prior Month Value 应为 nil")
	}
	if rows[1].PriorYoY == nil || rows[1].PriorYoY.String() != "400" {
		t.Fatalf("signups 的 Prior Year Value 应为 400: %+v", rows[1])
	}
}

func TestMetricRowsMissingColumn(t *testing.T) {
	table := [][]string{
		{"Metric", "Current Month", "Current Value"},
		{"revenue", "2026-07", "110"},
	}

	_, err := metricRowsFromTable(table)
	if err == nil {
		t.Fatal("schema drift must fail the fetch")
	}
	if !strings.Contains(err.Error(), "Prior Month Value") {
		t.Fatalf("error should name the missing column: %v", err)
	}
}

func TestMetricRowsHeaderWhitespace(t *testing.T) {
	table := latestTable()
	table[0][3] = " Prior Month Value "

	if _, err := metricRowsFromTable(table); err != nil {
		t.Fatalf("列名应在 trim 后匹配: %v", err)
	}
}

func TestRulesFromTable(t *testing.T) {
	defs, problems, err := rulesFromTable(configTable())
	if err != nil {
		t.Fatalf("解析 Config 表失败: %v", err)
	}
	if len(problems) != 0 {
		t.Fatalf("合法配置不应有 problem: %v", problems)
	}
	if len(defs) != 2 {
		t.Fatalf("期望 2 条规则, 实际 %d", len(defs))
	}

	first := defs[0]
	if first.Mode != rules.ModeMoM || first.Direction != rules.DirectionIncrease {
		t.Fatalf("mode/direction 解析错误: %+v", first)
	}
	if !first.ThresholdPct.Equal(mustDecimal(t, "10")) {
		t.Fatalf("\"10%%\" 应解析为 10, 实际 %s", first.ThresholdPct)
	}
	if len(first.Recipients) != 2 || first.Recipients[1] != "cfo@example.com" {
		t.Fatalf("recipients 解析错误: %v", first.Recipients)
	}
	if first.SourceRow != 2 {
		t.Fatalf("SourceRow 应为表内行号 2, 实际 %d", first.SourceRow)
	}
}

func TestRulesFromTablePartialFailure(t *testing.T) {
	table := [][]string{
		{"Metric", "Mode", "Direction", "Threshold Pct", "Recipients", "Enabled"},
		{"revenue", "MoM", "increase", "10", "ops@example.com", "TRUE"},
		{"", "MoM", "increase", "10", "ops@example.com", "TRUE"},
		{"churn", "weekly", "increase", "10", "ops@example.com", "TRUE"},
		{"signups", "MoM", "either", "-5", "ops@example.com", "TRUE"},
		{"margin", "MoM", "decrease", "3", "", "TRUE"},
		{"cost", "YoY", "decrease", "8", "fin@example.com", "false"},
	}

	defs, problems, err := rulesFromTable(table)
	if err != nil {
		t.Fatalf("部分失败不应整体报错: %v", err)
	}

	// 一条坏行不影响其余规则。
	if len(defs) != 2 {
		t.Fatalf("valid rules: expected 2 (revenue + disabled cost), got %d", len(defs))
	}
	if defs[1].Metric != "cost" || defs[1].Enabled {
		t.Fatalf("disabled rule without trigger semantics must still load: %+v", defs[1])
	}

	if len(problems) != 4 {
		t.Fatalf("expected 4 problems, got %d: %v", len(problems), problems)
	}
	for _, want := range []string{"empty metric name", "unknown comparison mode", "must not be negative", "no recipients"} {
		found := false
		for _, p := range problems {
			if strings.Contains(p.Err.Error(), want) {
				found = true
			}
		}
		if !found {
			t.Fatalf("missing problem %q in %v", want, problems)
		}
	}
}

func TestParseCells(t *testing.T) {
	if v, err := parsePercentCell(" 12.5% "); err != nil || v.String() != "12.5" {
		t.Fatalf("percent cell: %v %v", v, err)
	}
	if _, err := parsePercentCell("n/a"); err == nil {
		t.Fatal("non-numeric percent must error")
	}
	if !parseBoolCell("Y") || parseBoolCell("no") || parseBoolCell("") {
		t.Fatal("bool cell truthiness mismatch")
	}
	if got := parseRecipients(" a@x.com ,, b@x.com "); len(got) != 2 || got[0] != "a@x.com" {
		t.Fatalf("recipients: %v", got)
	}
}

func mustDecimal(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	v, err := decimal.NewFromString(s)
	if err != nil {
		t.Fatalf("parse %q: %v", s, err)
	}
	return v
}
