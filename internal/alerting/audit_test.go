package alerting

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"google.golang.org/api/option"

	"metric-alerts/internal/rules"
)

func TestSheetAuditSinkRecord(t *testing.T) {
	var appended [][]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.URL.Path, ":append") {
			t.Fatalf("路径应为 append 调用, 实际 %s", r.URL.Path)
		}
		var payload struct {
			Values [][]interface{} `json:"values"`
		}
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Fatalf("解析请求体失败: %v", err)
		}
		appended = payload.Values

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"updates": map[string]any{"updatedRows": 1}})
	}))
	defer srv.Close()

	sink, err := NewSheetAuditSink(context.Background(), SheetAuditOptions{
		SpreadsheetID: "sheet-1",
		LogsTab:       "Logs",
		ClientOptions: []option.ClientOption{
			option.WithEndpoint(srv.URL),
			option.WithoutAuthentication(),
		},
	}, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewSheetAuditSink: %v", err)
	}

	change := dec(t, "12.4")
	res := rules.EvaluationResult{
		Rule: rules.RuleDefinition{
			Metric:       "revenue",
			Mode:         rules.ModeMoM,
			Direction:    rules.DirectionIncrease,
			ThresholdPct: dec(t, "10"),
			Recipients:   []string{"ops@example.com"},
			Enabled:      true,
		},
		Outcome:   rules.OutcomeTriggered,
		ChangePct: &change,
		Reason:    "change 12.4% vs threshold 10% (direction=increase)",
	}

	ts := time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC)
	if err := sink.Record(context.Background(), "run-42", res, ts); err != nil {
		t.Fatalf("Record: %v", err)
	}

	if len(appended) != 1 {
		t.Fatalf("应追加 1 行, 实际 %d", len(appended))
	}
	row := appended[0]
	if row[0] != "2026-08-01T09:00:00Z" || row[1] != "run-42" || row[2] != "revenue" {
		t.Fatalf("audit row incorrect: %v", row)
	}
	if row[5] != "12.40" || row[6] != "10.00" {
		t.Fatalf("change/threshold cells incorrect: %v", row)
	}
}

func TestSheetAuditSinkRequiresConfig(t *testing.T) {
	if _, err := NewSheetAuditSink(context.Background(), SheetAuditOptions{}, zerolog.Nop()); err == nil {
		t.Fatal("missing spreadsheet id must error")
	}
	if _, err := NewSheetAuditSink(context.Background(), SheetAuditOptions{SpreadsheetID: "x"}, zerolog.Nop()); err == nil {
		t.Fatal("missing logs tab must error")
	}
}
