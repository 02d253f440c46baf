package backtest

import (
	"encoding/json"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/invopop/jsonschema"
	"github.com/moznion/go-optional"
	"gopkg.in/yaml.v3"

	"github.com/aleynatasdemir/QuantTrade/internal/indicator"
	"github.com/aleynatasdemir/QuantTrade/pkg/errors"
)

// Config is the full parameter surface of the simulator. Every rule
// threshold is injectable so one engine reproduces all the strategy
// variants instead of forking code paths.
type Config struct {
	// InitialCapital is the starting cash.
	InitialCapital float64 `yaml:"initial_capital" json:"initial_capital" validate:"gt=0" jsonschema:"title=Initial Capital,minimum=0"`
	// MaxPositions is the concurrent slot count.
	MaxPositions int `yaml:"max_positions" json:"max_positions" validate:"gt=0"`
	// Horizon is the maximum holding period in trading days.
	Horizon int `yaml:"horizon" json:"horizon" validate:"gt=0"`
	// StopLoss is the hard stop as a negative fraction of entry price.
	StopLoss float64 `yaml:"stop_loss" json:"stop_loss" validate:"lt=0"`
	// TakeProfit is the model take-profit trigger as a positive fraction.
	TakeProfit float64 `yaml:"take_profit" json:"take_profit" validate:"gt=0"`
	// Commission is the fraction of notional charged on both legs.
	Commission float64 `yaml:"commission" json:"commission" validate:"gte=0"`
	// SlippageBuy worsens entry fills relative to the reference open.
	SlippageBuy float64 `yaml:"slippage_buy" json:"slippage_buy" validate:"gte=0"`
	// SlippageSell worsens planned-exit fills relative to the open.
	SlippageSell float64 `yaml:"slippage_sell" json:"slippage_sell" validate:"gte=0"`
	// TopK is the daily candidate pool size.
	TopK int `yaml:"top_k" json:"top_k" validate:"gt=0"`
	// PatienceDays is the minimum holding period before the
	// performance-fail exit may fire.
	PatienceDays int `yaml:"patience_days" json:"patience_days" validate:"gte=0"`
	// StagnationMinHoldDays gates the stagnation exit.
	StagnationMinHoldDays int `yaml:"stagnation_min_hold_days" json:"stagnation_min_hold_days" validate:"gte=0"`
	// WeaknessMinHoldDays gates the relative-weakness exit.
	WeaknessMinHoldDays int `yaml:"weakness_min_hold_days" json:"weakness_min_hold_days" validate:"gte=0"`
	// PerfFailReturn is the unrealized-return ceiling (negative) below
	// which a position past the patience window is a performance failure.
	PerfFailReturn float64 `yaml:"perf_fail_return" json:"perf_fail_return" validate:"lte=0"`
	// StagnationMaxReturn is the unrealized-return ceiling under which a
	// stagnant position is not worth its slot.
	StagnationMaxReturn float64 `yaml:"stagnation_max_return" json:"stagnation_max_return"`
	// PeriodsPerYear is the annualization factor for CAGR and Sharpe.
	PeriodsPerYear int `yaml:"periods_per_year" json:"periods_per_year" validate:"gt=0"`
	// StartTime optionally restricts the simulated period.
	StartTime optional.Option[time.Time] `yaml:"start_time" json:"start_time"`
	// EndTime optionally restricts the simulated period.
	EndTime optional.Option[time.Time] `yaml:"end_time" json:"end_time"`
	// Indicator holds the rolling-window thresholds.
	Indicator indicator.Config `yaml:"indicator" json:"indicator"`
}

// DefaultConfig reproduces the thresholds the strategy shipped with.
func DefaultConfig() Config {
	return Config{
		InitialCapital:        100_000,
		MaxPositions:          5,
		Horizon:               20,
		StopLoss:              -0.05,
		TakeProfit:            0.10,
		Commission:            0.002,
		SlippageBuy:           0.01,
		SlippageSell:          0.005,
		TopK:                  5,
		PatienceDays:          8,
		StagnationMinHoldDays: 10,
		WeaknessMinHoldDays:   5,
		PerfFailReturn:        -0.02,
		StagnationMaxReturn:   0.03,
		PeriodsPerYear:        252,
		StartTime:             optional.None[time.Time](),
		EndTime:               optional.None[time.Time](),
		Indicator:             indicator.DefaultConfig(),
	}
}

// UnmarshalYAML decodes the config with optional start/end times, layering
// the parsed values over the defaults so partial configs stay valid.
func (c *Config) UnmarshalYAML(value *yaml.Node) error {
	type rawConfig struct {
		InitialCapital        *float64         `yaml:"initial_capital"`
		MaxPositions          *int             `yaml:"max_positions"`
		Horizon               *int             `yaml:"horizon"`
		StopLoss              *float64         `yaml:"stop_loss"`
		TakeProfit            *float64         `yaml:"take_profit"`
		Commission            *float64         `yaml:"commission"`
		SlippageBuy           *float64         `yaml:"slippage_buy"`
		SlippageSell          *float64         `yaml:"slippage_sell"`
		TopK                  *int             `yaml:"top_k"`
		PatienceDays          *int             `yaml:"patience_days"`
		StagnationMinHoldDays *int             `yaml:"stagnation_min_hold_days"`
		WeaknessMinHoldDays   *int             `yaml:"weakness_min_hold_days"`
		PerfFailReturn        *float64         `yaml:"perf_fail_return"`
		StagnationMaxReturn   *float64         `yaml:"stagnation_max_return"`
		PeriodsPerYear        *int             `yaml:"periods_per_year"`
		StartTime             *time.Time       `yaml:"start_time"`
		EndTime               *time.Time       `yaml:"end_time"`
		Indicator             *indicator.Config `yaml:"indicator"`
	}

	var raw rawConfig
	if err := value.Decode(&raw); err != nil {
		return errors.Wrap(errors.ErrCodeConfigParseFailed, "failed to decode config", err)
	}

	*c = DefaultConfig()

	if raw.InitialCapital != nil {
		c.InitialCapital = *raw.InitialCapital
	}

	if raw.MaxPositions != nil {
		c.MaxPositions = *raw.MaxPositions
	}

	if raw.Horizon != nil {
		c.Horizon = *raw.Horizon
	}

	if raw.StopLoss != nil {
		c.StopLoss = *raw.StopLoss
	}

	if raw.TakeProfit != nil {
		c.TakeProfit = *raw.TakeProfit
	}

	if raw.Commission != nil {
		c.Commission = *raw.Commission
	}

	if raw.SlippageBuy != nil {
		c.SlippageBuy = *raw.SlippageBuy
	}

	if raw.SlippageSell != nil {
		c.SlippageSell = *raw.SlippageSell
	}

	if raw.TopK != nil {
		c.TopK = *raw.TopK
	}

	if raw.PatienceDays != nil {
		c.PatienceDays = *raw.PatienceDays
	}

	if raw.StagnationMinHoldDays != nil {
		c.StagnationMinHoldDays = *raw.StagnationMinHoldDays
	}

	if raw.WeaknessMinHoldDays != nil {
		c.WeaknessMinHoldDays = *raw.WeaknessMinHoldDays
	}

	if raw.PerfFailReturn != nil {
		c.PerfFailReturn = *raw.PerfFailReturn
	}

	if raw.StagnationMaxReturn != nil {
		c.StagnationMaxReturn = *raw.StagnationMaxReturn
	}

	if raw.PeriodsPerYear != nil {
		c.PeriodsPerYear = *raw.PeriodsPerYear
	}

	if raw.StartTime != nil {
		c.StartTime = optional.Some(*raw.StartTime)
	}

	if raw.EndTime != nil {
		c.EndTime = optional.Some(*raw.EndTime)
	}

	if raw.Indicator != nil {
		c.Indicator = *raw.Indicator
	}

	return nil
}

// ParseConfig decodes and validates a YAML config document.
func ParseConfig(data []byte) (Config, error) {
	cfg := DefaultConfig()

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, errors.Wrap(errors.ErrCodeConfigParseFailed, "failed to parse config", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// Validate checks the config invariants before a run.
func (c Config) Validate() error {
	validate := validator.New()

	if err := validate.Struct(c); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidConfiguration, "invalid simulation config", err)
	}

	if err := validate.Struct(c.Indicator); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidConfiguration, "invalid indicator config", err)
	}

	if c.StartTime.IsSome() && c.EndTime.IsSome() && c.EndTime.Unwrap().Before(c.StartTime.Unwrap()) {
		return errors.New(errors.ErrCodeInvalidConfiguration, "end_time is before start_time")
	}

	return nil
}

// GenerateSchema generates a JSON schema for the Config.
func (c *Config) GenerateSchema() *jsonschema.Schema {
	reflector := jsonschema.Reflector{
		ExpandedStruct:            true,
		AllowAdditionalProperties: false,
		Mapper: func(t reflect.Type) *jsonschema.Schema {
			if strings.Contains(t.String(), "optional.Option[time.Time]") {
				return &jsonschema.Schema{
					Type:   "string",
					Format: "date-time",
				}
			}

			return nil
		},
	}

	schema := reflector.Reflect(c)
	schema.Title = "portfolio-simulator-config"
	schema.Description = "Configuration schema for the slot-based portfolio simulator"
	schema.Version = "http://json-schema.org/draft-07/schema#"

	return schema
}

// GenerateSchemaJSON generates the JSON schema as an indented string.
func (c *Config) GenerateSchemaJSON() (string, error) {
	schemaBytes, err := json.MarshalIndent(c.GenerateSchema(), "", "  ")
	if err != nil {
		return "", errors.Wrap(errors.ErrCodeConfigParseFailed, "failed to generate schema", err)
	}

	return string(schemaBytes), nil
}
