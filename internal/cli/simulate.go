package cli

import (
	"errors"

	"github.com/spf13/cobra"

	"metric-alerts/internal/app"
)

var (
	simulateMetric    string
	simulateCurrent   float64
	simulatePrior     float64
	simulateThreshold float64
	simulateMode      string
	simulateDirection string
	simulateRecipient string
	simulateDryRun    bool
)

var simulateCmd = &cobra.Command{
	Use:   "simulate-alert",
	Short: "模拟一次指标变化并触发告警",
	RunE: func(cmd *cobra.Command, args []string) error {
		if simulatePrior == 0 {
			return errors.New("--prior 不能为 0（百分比变化无定义）")
		}
		if !simulateDryRun && simulateRecipient == "" {
			return errors.New("--recipient must be provided unless --dry-run is set")
		}

		opts := app.SimulateOptions{
			Metric:    simulateMetric,
			Current:   simulateCurrent,
			Prior:     simulatePrior,
			Threshold: simulateThreshold,
			Mode:      simulateMode,
			Direction: simulateDirection,
			Recipient: simulateRecipient,
			DryRun:    simulateDryRun,
		}

		return getApp().SimulateAlert(cmd.Context(), opts)
	},
}

func init() {
	simulateCmd.Flags().StringVar(&simulateMetric, "metric", "simulated", "Metric name to report in the alert")
	simulateCmd.Flags().Float64Var(&simulateCurrent, "current", 0, "当前值")
	simulateCmd.Flags().Float64Var(&simulatePrior, "prior", 0, "基线值 (上月或去年同期)")
	simulateCmd.Flags().Float64Var(&simulateThreshold, "threshold", 10, "Threshold percent")
	simulateCmd.Flags().StringVar(&simulateMode, "mode", "mom", "Comparison mode: mom or yoy")
	simulateCmd.Flags().StringVar(&simulateDirection, "direction", "either", "Direction: increase, decrease, or either")
	simulateCmd.Flags().StringVar(&simulateRecipient, "recipient", "", "Recipient email address")
	simulateCmd.Flags().BoolVar(&simulateDryRun, "dry-run", false, "Print the rendered alert instead of sending it")
}
