package cli

import (
	"github.com/spf13/cobra"

	"metric-alerts/internal/app"
)

var (
	runDryRun        bool
	runNoEmail       bool
	runNoSheetLog    bool
	runSubjectPrefix string
	runVerbose       bool
	runLatestTab     string
	runConfigTab     string
	runLogsTab       string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one evaluation cycle over the current snapshot",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().Run(cmd.Context(), runOptions())
	},
}

func runOptions() app.RunOptions {
	return app.RunOptions{
		DryRun:        runDryRun,
		NoEmail:       runNoEmail,
		NoSheetLog:    runNoSheetLog,
		SubjectPrefix: runSubjectPrefix,
		Verbose:       runVerbose,
		Tabs: app.TabOverrides{
			LatestTab: runLatestTab,
			ConfigTab: runConfigTab,
			LogsTab:   runLogsTab,
		},
	}
}

func addRunFlags(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&runDryRun, "dry-run", false, "Evaluate everything but send no emails and write no sheet logs")
	cmd.Flags().BoolVar(&runNoEmail, "no-email", false, "Do not send emails (sheet logs are still written unless --no-sheet-log)")
	cmd.Flags().BoolVar(&runNoSheetLog, "no-sheet-log", false, "Do not write to the Logs tab (emails are still sent unless --no-email)")
	cmd.Flags().StringVar(&runSubjectPrefix, "subject-prefix", "", "Override the email subject prefix")
	cmd.Flags().BoolVar(&runVerbose, "verbose", false, "Log every rule evaluation, not just triggers")
	cmd.Flags().StringVar(&runLatestTab, "latest-tab", "", "Override the Latest tab name")
	cmd.Flags().StringVar(&runConfigTab, "config-tab", "", "Override the Config tab name")
	cmd.Flags().StringVar(&runLogsTab, "logs-tab", "", "Override the Logs tab name")
}

func init() {
	addRunFlags(runCmd)
}
