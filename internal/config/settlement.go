package config

import (
	"errors"
	"log"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// SettlementConfig carries the rates applied to new payouts and the
// reporting threshold used by the compliance gate. Rates are captured on
// each payout record at creation; a reload never changes existing records.
type SettlementConfig struct {
	// FeeRate is the marketplace fee as a fraction of gross (e.g. 0.05).
	FeeRate float64 `mapstructure:"feeRate"`
	// ReserveRate is the temporary hold as a fraction of gross.
	ReserveRate float64 `mapstructure:"reserveRate"`
	// ReportingThresholdCents gates payouts once YTD earnings reach it.
	ReportingThresholdCents int64 `mapstructure:"reportingThresholdCents"`
}

func DefaultSettlementConfig() SettlementConfig {
	return SettlementConfig{
		FeeRate:                 0.05,
		ReserveRate:             0.10,
		ReportingThresholdCents: 60_000,
	}
}

type SettlementConfigHolder struct {
	current atomic.Value // holds SettlementConfig
}

func NewSettlementConfigHolder() (*SettlementConfigHolder, error) {
	v := viper.New()

	v.SetConfigName("settlement")
	v.SetConfigType("yml")
	v.AddConfigPath("/var/lib/clearhouse/config") // Volume-mounted config
	v.AddConfigPath("/etc/clearhouse")            // System config
	v.AddConfigPath(".")                          // Current directory (dev mode)

	v.SetEnvPrefix("CLEARHOUSE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		defaults := DefaultSettlementConfig()
		v.SetDefault("settlement.feeRate", defaults.FeeRate)
		v.SetDefault("settlement.reserveRate", defaults.ReserveRate)
		v.SetDefault("settlement.reportingThresholdCents", defaults.ReportingThresholdCents)
	}

	var cfg SettlementConfig
	if err := v.UnmarshalKey("settlement", &cfg); err != nil {
		return nil, err
	}
	if err := validateSettlementConfig(cfg); err != nil {
		return nil, err
	}

	holder := &SettlementConfigHolder{}
	holder.current.Store(cfg)

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		var updated SettlementConfig
		if err := v.UnmarshalKey("settlement", &updated); err != nil {
			log.Printf("[settlement-config] reload failed: %v", err)
			return
		}
		if err := validateSettlementConfig(updated); err != nil {
			log.Printf("[settlement-config] invalid config ignored: %v", err)
			return
		}
		holder.current.Store(updated)
		log.Printf("[settlement-config] reloaded from %s", e.Name)
	})

	return holder, nil
}

// NewStaticSettlementHolder wraps fixed rates, for tests and tooling.
func NewStaticSettlementHolder(cfg SettlementConfig) *SettlementConfigHolder {
	holder := &SettlementConfigHolder{}
	holder.current.Store(cfg)
	return holder
}

func (h *SettlementConfigHolder) Get() SettlementConfig {
	return h.current.Load().(SettlementConfig)
}

var ErrInvalidRateConfig = errors.New("invalid_rate_config")

func validateSettlementConfig(cfg SettlementConfig) error {
	if cfg.FeeRate < 0 || cfg.FeeRate >= 1 {
		return ErrInvalidRateConfig
	}
	if cfg.ReserveRate < 0 || cfg.ReserveRate >= 1 {
		return ErrInvalidRateConfig
	}
	if cfg.FeeRate+cfg.ReserveRate >= 1 {
		return ErrInvalidRateConfig
	}
	if cfg.ReportingThresholdCents <= 0 {
		return ErrInvalidRateConfig
	}
	return nil
}
