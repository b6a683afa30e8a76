package source

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
)

func writeTempCSV(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestCSVSourceFetch(t *testing.T) {
	latest := writeTempCSV(t, "latest.csv",
		"Metric,Current Month,Current Value,Prior Month Value,Prior Year Value\n"+
			"revenue,2026-07,110,100,80\n"+
			"signups,2026-07,420,,400\n")
	config := writeTempCSV(t, "config.csv",
		"Metric,Mode,Direction,Threshold Pct,Recipients,Enabled\n"+
			"revenue,MoM,increase,10,ops@example.com,TRUE\n")

	src := NewCSVSource(CSVOptions{LatestPath: latest, ConfigPath: config}, zerolog.Nop())

	rows, err := src.FetchMetricRows(context.Background())
	if err != nil {
		t.Fatalf("FetchMetricRows: %v", err)
	}
	if len(rows) != 2 || rows[0].Name != "revenue" {
		t.Fatalf("unexpected rows: %+v", rows)
	}

	defs, problems, err := src.FetchRuleDefinitions(context.Background())
	if err != nil {
		t.Fatalf("FetchRuleDefinitions: %v", err)
	}
	if len(problems) != 0 || len(defs) != 1 {
		t.Fatalf("expected 1 rule without problems, got %d rules %v", len(defs), problems)
	}
}

func TestCSVSourceMissingFile(t *testing.T) {
	src := NewCSVSource(CSVOptions{LatestPath: filepath.Join(t.TempDir(), "absent.csv")}, zerolog.Nop())
	if _, err := src.FetchMetricRows(context.Background()); err == nil {
		t.Fatal("缺失文件应报错")
	}
}

func TestCSVSourceUnconfigured(t *testing.T) {
	src := NewCSVSource(CSVOptions{}, zerolog.Nop())
	if _, _, err := src.FetchRuleDefinitions(context.Background()); err == nil {
		t.Fatal("未配置路径应报错")
	}
}
