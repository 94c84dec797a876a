package commands

import (
	"frestoload/internal/pipeline"
	"frestoload/internal/sink"
	"frestoload/lib/scrapers/fresto"

	"github.com/spf13/cobra"
)

var reportStart *string
var reportEnd *string
var reportOut *string

func init() {
	reportStart = reportCmd.Flags().String("start", "", "Start business date, YYYY-MM-DD.")
	reportEnd = reportCmd.Flags().String("end", "", "End business date, YYYY-MM-DD. Defaults to today.")
	reportOut = reportCmd.Flags().String("out", "final_sales_report.xlsx", "Path of the workbook to write.")
	reportCmd.MarkFlagRequired("start")
	rootCmd.AddCommand(reportCmd)
}

var reportCmd = &cobra.Command{
	Use:   "report --start YYYY-MM-DD [--end YYYY-MM-DD] [--out report.xlsx]",
	Short: "Builds the final sales report workbook for a date range.",
	Run: func(cmd *cobra.Command, args []string) {
		config, err := readConfig()
		if err != nil {
			fatal("failed to read config", err)
		}
		dates, err := pipeline.ParseDateRange(*reportStart, *reportEnd)
		if err != nil {
			fatal("invalid date range", err)
		}

		p := pipeline.New(pipeline.Options{
			Source:          fresto.NewClient(config.Fresto),
			Sink:            sink.ExcelWriter{Path: *reportOut},
			ReportTransform: config.Report.buildTransform(),
		})

		summary, err := p.RunReport(cmd.Context(), dates)
		if err != nil {
			fatal("report run failed", err)
		}
		summary.Log()
	},
}
