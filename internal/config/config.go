package config

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Paths          PathsConfig          `yaml:"paths" mapstructure:"paths"`
	Listing        ListingConfig        `yaml:"listing" mapstructure:"listing"`
	Research       ResearchConfig       `yaml:"research" mapstructure:"research"`
	KnowledgeGraph KnowledgeGraphConfig `yaml:"knowledge_graph" mapstructure:"knowledge_graph"`
	Agent          AgentConfig          `yaml:"agent" mapstructure:"agent"`
	Anthropic      AnthropicConfig      `yaml:"anthropic" mapstructure:"anthropic"`
	Perplexity     PerplexityConfig     `yaml:"perplexity" mapstructure:"perplexity"`
	Report         ReportConfig         `yaml:"report" mapstructure:"report"`
	Server         ServerConfig         `yaml:"server" mapstructure:"server"`
	Log            LogConfig            `yaml:"log" mapstructure:"log"`
}

// PathsConfig locates input and output files.
type PathsConfig struct {
	// Listing is a glob; the newest match is used.
	Listing string `yaml:"listing" mapstructure:"listing"`
	// ChangeReport is a glob for raw change reports consumed by prepare.
	ChangeReport string `yaml:"change_report" mapstructure:"change_report"`
	Store        string `yaml:"store" mapstructure:"store"`
	Beers        string `yaml:"beers" mapstructure:"beers"`
	Reports      string `yaml:"reports" mapstructure:"reports"`
	Prompts      string `yaml:"prompts" mapstructure:"prompts"`
}

// ListingConfig configures listing loading.
type ListingConfig struct {
	SemanticTag string `yaml:"semantic_tag" mapstructure:"semantic_tag"`
	URIBase     string `yaml:"uri_base" mapstructure:"uri_base"`
}

// ResearchConfig holds domain settings shared by adapters and reports.
type ResearchConfig struct {
	PrimaryJurisdiction   string `yaml:"primary_jurisdiction" mapstructure:"primary_jurisdiction"`
	SecondaryJurisdiction string `yaml:"secondary_jurisdiction" mapstructure:"secondary_jurisdiction"`
	ListDelimiter         string `yaml:"list_delimiter" mapstructure:"list_delimiter"`
	// BreakerThreshold is the consecutive unavailable calls after which a
	// source is skipped for the rest of a run.
	BreakerThreshold int `yaml:"breaker_threshold" mapstructure:"breaker_threshold"`
}

// KnowledgeGraphConfig configures the Wikidata lookup.
type KnowledgeGraphConfig struct {
	Enabled       bool    `yaml:"enabled" mapstructure:"enabled"`
	Endpoint      string  `yaml:"endpoint" mapstructure:"endpoint"`
	UserAgent     string  `yaml:"user_agent" mapstructure:"user_agent"`
	RateLimit     float64 `yaml:"rate_limit" mapstructure:"rate_limit"`
	TimeoutSecs   int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	LabelFallback bool    `yaml:"label_fallback" mapstructure:"label_fallback"`
}

// AgentConfig configures the research agent.
type AgentConfig struct {
	// Provider is "anthropic", "perplexity" or "none".
	Provider    string `yaml:"provider" mapstructure:"provider"`
	BatchSize   int    `yaml:"batch_size" mapstructure:"batch_size"`
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	Key       string `yaml:"key" mapstructure:"key"`
	BaseURL   string `yaml:"base_url" mapstructure:"base_url"`
	Model     string `yaml:"model" mapstructure:"model"`
	MaxTokens int64  `yaml:"max_tokens" mapstructure:"max_tokens"`
}

// PerplexityConfig holds Perplexity API settings.
type PerplexityConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
	Model   string `yaml:"model" mapstructure:"model"`
}

// ReportConfig selects report formats.
type ReportConfig struct {
	AggregateFormat string `yaml:"aggregate_format" mapstructure:"aggregate_format"`
	TabularFormat   string `yaml:"tabular_format" mapstructure:"tabular_format"`
}

// ServerConfig configures the read-only HTTP server.
type ServerConfig struct {
	Port        int      `yaml:"port" mapstructure:"port"`
	CORSOrigins []string `yaml:"cors_origins" mapstructure:"cors_origins"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("MEDS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("paths.listing", "data/SNOMEDCT-AU-MedicinalProducts-*.csv")
	v.SetDefault("paths.change_report", "data/raw/*concept-changes*.csv")
	v.SetDefault("paths.store", "data/research.json")
	v.SetDefault("paths.beers", "data/beers.csv")
	v.SetDefault("paths.reports", "reports")
	v.SetDefault("paths.prompts", "prompts")
	v.SetDefault("listing.semantic_tag", "medicinal product")
	v.SetDefault("listing.uri_base", "http://snomed.info/id/")
	v.SetDefault("research.primary_jurisdiction", "AU")
	v.SetDefault("research.secondary_jurisdiction", "FDA")
	v.SetDefault("research.list_delimiter", "; ")
	v.SetDefault("research.breaker_threshold", 5)
	v.SetDefault("knowledge_graph.enabled", true)
	v.SetDefault("knowledge_graph.endpoint", "https://query.wikidata.org/sparql")
	v.SetDefault("knowledge_graph.user_agent", "meds-job/1.0 (https://github.com/genericrobot77/meds-job)")
	v.SetDefault("knowledge_graph.rate_limit", 1.0)
	v.SetDefault("knowledge_graph.timeout_secs", 30)
	v.SetDefault("knowledge_graph.label_fallback", true)
	v.SetDefault("agent.provider", "none")
	v.SetDefault("agent.batch_size", 10)
	v.SetDefault("agent.timeout_secs", 120)
	v.SetDefault("anthropic.key", "")
	v.SetDefault("anthropic.base_url", "")
	v.SetDefault("anthropic.model", "claude-haiku-4-5-20251001")
	v.SetDefault("anthropic.max_tokens", 4096)
	v.SetDefault("perplexity.key", "")
	v.SetDefault("perplexity.base_url", "https://api.perplexity.ai")
	v.SetDefault("perplexity.model", "sonar-pro")
	v.SetDefault("report.aggregate_format", "json")
	v.SetDefault("report.tabular_format", "csv")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks the settings a command mode depends on. All problems are
// reported together.
func (c *Config) Validate(mode string) error {
	var errs []string

	switch c.Report.AggregateFormat {
	case "json", "yaml":
	default:
		errs = append(errs, fmt.Sprintf("report.aggregate_format %q must be json or yaml", c.Report.AggregateFormat))
	}
	switch c.Report.TabularFormat {
	case "csv", "xlsx":
	default:
		errs = append(errs, fmt.Sprintf("report.tabular_format %q must be csv or xlsx", c.Report.TabularFormat))
	}
	if c.Research.BreakerThreshold < 1 {
		errs = append(errs, "research.breaker_threshold must be >= 1")
	}

	switch mode {
	case "enrich":
		if c.Agent.BatchSize < 1 || c.Agent.BatchSize > 50 {
			errs = append(errs, "agent.batch_size must be between 1 and 50")
		}
		switch c.Agent.Provider {
		case "anthropic":
			if c.Anthropic.Key == "" {
				errs = append(errs, "anthropic.key is required for agent.provider anthropic")
			}
		case "perplexity":
			if c.Perplexity.Key == "" {
				errs = append(errs, "perplexity.key is required for agent.provider perplexity")
			}
		case "none", "":
		default:
			errs = append(errs, fmt.Sprintf("agent.provider %q must be anthropic, perplexity or none", c.Agent.Provider))
		}
	case "serve":
		if c.Server.Port <= 0 {
			errs = append(errs, "server.port must be > 0")
		}
	case "report", "manual", "import", "prepare", "prompt":
	default:
		errs = append(errs, fmt.Sprintf("unknown mode %q", mode))
	}

	if len(errs) > 0 {
		return eris.Errorf("config: invalid (%s): %s", mode, strings.Join(errs, "; "))
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
