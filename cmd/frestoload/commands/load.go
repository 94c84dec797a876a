package commands

import (
	"frestoload/internal/pipeline"
	"frestoload/internal/sink"
	"frestoload/lib/scrapers/fresto"

	"github.com/spf13/cobra"
)

var loadStart *string
var loadEnd *string
var loadLocation *string
var loadDb *string

func init() {
	loadStart = loadCmd.Flags().String("start", "", "Start business date, YYYY-MM-DD.")
	loadEnd = loadCmd.Flags().String("end", "", "End business date, YYYY-MM-DD. Defaults to today.")
	loadLocation = loadCmd.Flags().String("location", "", "Location slug to tag rows with, e.g. la-posata.")
	loadDb = loadCmd.Flags().String("db", "", "Warehouse sqlite file, overrides the config.")
	loadCmd.MarkFlagRequired("start")
	loadCmd.MarkFlagRequired("location")
	rootCmd.AddCommand(loadCmd)
}

// natural keys that make re-running a date range an upsert instead of
// duplicate appends; overridable per table in config
func defaultWarehouseKeys() map[string][]string {
	return map[string][]string{
		"raw_orders":     {"orderID"},
		"raw_orderlines": {"orderlineID"},
		"dim_staff":      {"uid"},
		"dim_products":   {"id"},
		"dim_salepoints": {"salePointID"},
	}
}

var loadCmd = &cobra.Command{
	Use:   "load --start YYYY-MM-DD --location <slug> [--end YYYY-MM-DD] [--db warehouse.db]",
	Short: "Appends a date range of raw Fresto tables to the warehouse.",
	Run: func(cmd *cobra.Command, args []string) {
		config, err := readConfig()
		if err != nil {
			fatal("failed to read config", err)
		}
		dates, err := pipeline.ParseDateRange(*loadStart, *loadEnd)
		if err != nil {
			fatal("invalid date range", err)
		}

		warehouse := sink.WarehouseConfig{
			File:      config.Warehouse.File,
			Url:       config.Warehouse.Url,
			AuthToken: config.Warehouse.AuthToken,
		}
		if *loadDb != "" {
			warehouse = sink.WarehouseConfig{File: *loadDb}
		}
		db, err := warehouse.OpenDB()
		if err != nil {
			fatal("failed to open warehouse", err)
		}
		defer db.Close()

		keys := defaultWarehouseKeys()
		for table, key := range config.Warehouse.Keys {
			keys[table] = key
		}

		p := pipeline.New(pipeline.Options{
			Source:       fresto.NewClient(config.Fresto),
			Sink:         sink.NewWarehouseWriter(db, keys),
			LocationSlug: *loadLocation,
		})

		summary, err := p.RunLoad(cmd.Context(), dates)
		if err != nil {
			fatal("load run failed", err)
		}
		summary.Log()
	},
}
