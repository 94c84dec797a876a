package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"frestoload/internal/transform"
	"frestoload/lib/configutil"
	"frestoload/lib/scrapers/fresto"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "frestoload",
	Short: "frestoload pulls sales data from the Fresto POS API into reports and a warehouse.",
}

func ExecuteContext(ctx context.Context) {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func fatal(message string, err error) {
	slog.Error(message, "err", err.Error())
	os.Exit(1)
}

type CategoryRule struct {
	Prefix   string `json:"prefix"`
	Contains string `json:"contains"`
	Category string `json:"category"`
}

type ReportConfig struct {
	// CategoryRules apply in order, first match wins.
	CategoryRules   []CategoryRule    `json:"category_rules"`
	DefaultCategory string            `json:"default_category"`
	TitleOverrides  map[string]string `json:"title_overrides"`
}

type WarehouseFileConfig struct {
	File      string              `json:"file"`
	Url       string              `json:"url"`
	AuthToken string              `json:"auth_token"`
	Keys      map[string][]string `json:"keys"`
}

type Config struct {
	Fresto    fresto.ClientOptions `json:"fresto"`
	Report    ReportConfig         `json:"report"`
	Warehouse WarehouseFileConfig  `json:"warehouse"`
}

// readConfig merges config.json5 (plus .local override) with the
// environment. Credentials come from the environment or .env, never
// from config files.
func readConfig() (Config, error) {
	configutil.LoadDotenv()

	config, err := configutil.ReadConfig[Config]("config.json5")
	if err != nil && !os.IsNotExist(err) {
		return Config{}, err
	}

	config.Fresto.BaseUrl = configutil.Env("FRESTO_BASE_URL", config.Fresto.BaseUrl)
	config.Fresto.TokenUrl = configutil.Env("FRESTO_TOKEN_URL", config.Fresto.TokenUrl)
	config.Fresto.ClientId = configutil.Env("FRESTO_CLIENT_ID", config.Fresto.ClientId)
	config.Fresto.ClientSecret = configutil.Env("FRESTO_CLIENT_SECRET", config.Fresto.ClientSecret)
	config.Fresto.Scope = configutil.Env("FRESTO_SCOPE", config.Fresto.Scope)
	config.Fresto.SalePointId = configutil.Env("FRESTO_SALEPOINT_ID", config.Fresto.SalePointId)

	if config.Fresto.ClientId == "" || config.Fresto.ClientSecret == "" {
		return Config{}, fmt.Errorf("missing FRESTO_CLIENT_ID or FRESTO_CLIENT_SECRET in environment/.env")
	}
	if config.Fresto.BaseUrl == "" {
		return Config{}, fmt.Errorf("missing fresto base_url in config or FRESTO_BASE_URL")
	}
	if config.Fresto.TokenUrl == "" {
		config.Fresto.TokenUrl = config.Fresto.BaseUrl + "/auth/token"
	}
	return config, nil
}

func (c ReportConfig) buildTransform() transform.Stage {
	stages := []transform.Stage{
		transform.NormalizeTitle{Field: "productTitle", Overrides: c.TitleOverrides},
	}
	if len(c.CategoryRules) > 0 {
		rules := make([]transform.Rule, len(c.CategoryRules))
		for i, r := range c.CategoryRules {
			rules[i] = transform.Rule{Prefix: r.Prefix, Contains: r.Contains, Category: r.Category}
		}
		defaultCategory := c.DefaultCategory
		if defaultCategory == "" {
			defaultCategory = "Other"
		}
		stages = append(stages, transform.Classifier{
			Source:  "productTitle",
			Target:  "category",
			Rules:   rules,
			Default: defaultCategory,
		})
	}
	stages = append(stages, transform.DedupRows())
	return transform.Chain(stages...)
}
