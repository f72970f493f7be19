package backtest

import (
	"encoding/json"
	"reflect"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/invopop/jsonschema"
	"github.com/moznion/go-optional"
	"gopkg.in/yaml.v3"

	"github.com/derekmborges/algorithmic-trading/internal/engine"
	"github.com/derekmborges/algorithmic-trading/internal/types"
	"github.com/derekmborges/algorithmic-trading/pkg/errors"
)

// Config is the backtest run configuration, normally loaded from a YAML
// file.
type Config struct {
	// InitialCash is the starting capital per symbol in USD.
	InitialCash float64 `yaml:"initial_cash" json:"initial_cash" validate:"required,gt=0" jsonschema:"title=Initial Cash,description=Starting capital per symbol in USD,minimum=0"`
	// Symbols to replay. Each symbol compounds its own cash across days.
	Symbols []string `yaml:"symbols" json:"symbols" validate:"required,min=1" jsonschema:"title=Symbols,description=Ticker symbols to replay"`
	// DataPath is the bar data file, Parquet or CSV.
	DataPath string `yaml:"data_path" json:"data_path" validate:"required" jsonschema:"title=Data Path,description=Path to the bar data file (Parquet or CSV)"`
	// ResultsPath receives the YAML results summary and Parquet exports.
	// Empty disables writing.
	ResultsPath string `yaml:"results_path" json:"results_path" jsonschema:"title=Results Path,description=Directory for result summaries and Parquet exports"`

	// Strategy selects the evaluator: "momentum" or "obv".
	Strategy string `yaml:"strategy" json:"strategy" validate:"required,oneof=momentum obv" jsonschema:"title=Strategy,description=Evaluator to run,enum=momentum,enum=obv"`
	// StrategyConfig is the evaluator's own YAML configuration, inlined.
	StrategyConfig string `yaml:"strategy_config" json:"strategy_config" jsonschema:"title=Strategy Config,description=Inline YAML configuration for the selected strategy"`

	// MarketOpen and MarketClose are session clock times, "15:04" format,
	// interpreted in Timezone.
	MarketOpen  string `yaml:"market_open" json:"market_open" jsonschema:"title=Market Open,description=Session open clock time (15:04 format)"`
	MarketClose string `yaml:"market_close" json:"market_close" jsonschema:"title=Market Close,description=Session close clock time (15:04 format)"`
	Timezone    string `yaml:"timezone" json:"timezone" jsonschema:"title=Timezone,description=IANA timezone of the session clock times"`

	Engine engine.Config `yaml:"engine" json:"engine" jsonschema:"title=Engine,description=Trading engine tunables"`

	// StartTime and EndTime optionally bound the replay period.
	StartTime optional.Option[time.Time] `yaml:"start_time" json:"start_time" jsonschema:"title=Start Time,description=Optional start of the replay period"`
	EndTime   optional.Option[time.Time] `yaml:"end_time" json:"end_time" jsonschema:"title=End Time,description=Optional end of the replay period"`
}

// DefaultConfig returns a config with the standard US equities session and
// engine defaults. Symbols, data path and cash must still be provided.
func DefaultConfig() Config {
	return Config{
		MarketOpen:  "09:30",
		MarketClose: "16:00",
		Timezone:    "America/New_York",
		Engine:      engine.DefaultConfig(),
		StartTime:   optional.None[time.Time](),
		EndTime:     optional.None[time.Time](),
	}
}

// UnmarshalYAML fills defaults first and maps nullable times onto options.
func (c *Config) UnmarshalYAML(value *yaml.Node) error {
	type plain struct {
		InitialCash    float64       `yaml:"initial_cash"`
		Symbols        []string      `yaml:"symbols"`
		DataPath       string        `yaml:"data_path"`
		ResultsPath    string        `yaml:"results_path"`
		Strategy       string        `yaml:"strategy"`
		StrategyConfig string        `yaml:"strategy_config"`
		MarketOpen     string        `yaml:"market_open"`
		MarketClose    string        `yaml:"market_close"`
		Timezone       string        `yaml:"timezone"`
		Engine         engine.Config `yaml:"engine"`
		StartTime      *time.Time    `yaml:"start_time"`
		EndTime        *time.Time    `yaml:"end_time"`
	}

	defaults := DefaultConfig()
	p := plain{
		MarketOpen:  defaults.MarketOpen,
		MarketClose: defaults.MarketClose,
		Timezone:    defaults.Timezone,
		Engine:      defaults.Engine,
	}

	if err := value.Decode(&p); err != nil {
		return err
	}

	c.InitialCash = p.InitialCash
	c.Symbols = p.Symbols
	c.DataPath = p.DataPath
	c.ResultsPath = p.ResultsPath
	c.Strategy = p.Strategy
	c.StrategyConfig = p.StrategyConfig
	c.MarketOpen = p.MarketOpen
	c.MarketClose = p.MarketClose
	c.Timezone = p.Timezone
	c.Engine = p.Engine
	c.StartTime = optional.None[time.Time]()
	c.EndTime = optional.None[time.Time]()

	if p.StartTime != nil {
		c.StartTime = optional.Some(*p.StartTime)
	}

	if p.EndTime != nil {
		c.EndTime = optional.Some(*p.EndTime)
	}

	return nil
}

// ParseConfig parses and validates a YAML config document.
func ParseConfig(data []byte) (Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, errors.Wrap(errors.ErrCodeBacktestConfigError, "failed to parse backtest config", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// Validate checks the config beyond struct tags: clock times must parse and
// the timezone must resolve.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return errors.Wrap(errors.ErrCodeBacktestConfigError, "invalid backtest config", err)
	}

	if _, err := time.Parse("15:04", c.MarketOpen); err != nil {
		return errors.Wrapf(errors.ErrCodeBacktestConfigError, err, "invalid market open time %q", c.MarketOpen)
	}

	if _, err := time.Parse("15:04", c.MarketClose); err != nil {
		return errors.Wrapf(errors.ErrCodeBacktestConfigError, err, "invalid market close time %q", c.MarketClose)
	}

	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return errors.Wrapf(errors.ErrCodeBacktestConfigError, err, "invalid timezone %q", c.Timezone)
	}

	return nil
}

// SessionFor builds the session window for the trading date of t.
func (c *Config) SessionFor(t time.Time) (types.SessionWindow, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return types.SessionWindow{}, errors.Wrapf(errors.ErrCodeBacktestConfigError, err, "invalid timezone %q", c.Timezone)
	}

	open, _ := time.Parse("15:04", c.MarketOpen)
	close, _ := time.Parse("15:04", c.MarketClose)

	day := t.In(loc)

	openAt := time.Date(day.Year(), day.Month(), day.Day(), open.Hour(), open.Minute(), 0, 0, loc)
	closeAt := time.Date(day.Year(), day.Month(), day.Day(), close.Hour(), close.Minute(), 0, 0, loc)

	return types.NewSessionWindow(openAt, closeAt)
}

// GenerateSchema generates the JSON schema for the backtest config, used by
// the CLI to support editor validation of config files.
func (c *Config) GenerateSchema() *jsonschema.Schema {
	reflector := jsonschema.Reflector{
		RequiredFromJSONSchemaTags: true,
		ExpandedStruct:             true,
		AllowAdditionalProperties:  false,
		Mapper: func(t reflect.Type) *jsonschema.Schema {
			if t.String() == "optional.Option[time.Time]" {
				return &jsonschema.Schema{
					Type:   "string",
					Format: "date-time",
				}
			}

			return nil
		},
	}

	schema := reflector.Reflect(c)
	schema.Title = "backtest-config"
	schema.Description = "Configuration schema for the backtest driver"
	schema.Version = "http://json-schema.org/draft-07/schema#"

	return schema
}

// GenerateSchemaJSON renders the schema as indented JSON.
func (c *Config) GenerateSchemaJSON() (string, error) {
	schemaBytes, err := json.MarshalIndent(c.GenerateSchema(), "", "  ")
	if err != nil {
		return "", err
	}

	return string(schemaBytes), nil
}
