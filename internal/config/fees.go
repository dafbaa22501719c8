package config

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// FeeDefault is a platform fee seeded when a transaction type has no fee row yet.
type FeeDefault struct {
	TransactionType string  `mapstructure:"transactionType"`
	RatePercentage  float64 `mapstructure:"ratePercentage"`
	Description     string  `mapstructure:"description"`
}

type FeeConfig struct {
	Defaults []FeeDefault `mapstructure:"defaults"`
}

func DefaultFeeConfig() FeeConfig {
	return FeeConfig{
		Defaults: []FeeDefault{
			{TransactionType: "booking", RatePercentage: 0},
			{TransactionType: "reservation", RatePercentage: 0},
			{TransactionType: "sell_product", RatePercentage: 0},
		},
	}
}

type FeeConfigHolder struct {
	current atomic.Value // holds FeeConfig
}

// NewStaticFeeConfigHolder returns a holder that never reloads.
func NewStaticFeeConfigHolder(cfg FeeConfig) *FeeConfigHolder {
	holder := &FeeConfigHolder{}
	holder.current.Store(cfg)
	return holder
}

func NewFeeConfigHolder() (*FeeConfigHolder, error) {
	v := viper.New()

	v.SetConfigName("fees")
	v.SetConfigType("yml")
	v.AddConfigPath("/var/lib/marketplace/config")
	v.AddConfigPath("/etc/marketplace")
	v.AddConfigPath(".")

	v.SetEnvPrefix("MARKETPLACE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	fileFound := true
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		fileFound = false
	}

	cfg := DefaultFeeConfig()
	if fileFound {
		if err := v.UnmarshalKey("fees", &cfg); err != nil {
			return nil, err
		}
	}
	if err := validateFeeConfig(cfg); err != nil {
		return nil, err
	}

	holder := NewStaticFeeConfigHolder(cfg)
	if !fileFound {
		return holder, nil
	}

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		var updated FeeConfig
		if err := v.UnmarshalKey("fees", &updated); err != nil {
			log.Printf("[fee-config] reload failed: %v", err)
			return
		}
		if err := validateFeeConfig(updated); err != nil {
			log.Printf("[fee-config] invalid config ignored: %v", err)
			return
		}
		holder.current.Store(updated)
		log.Printf("[fee-config] reloaded from %s", e.Name)
	})

	return holder, nil
}

func (h *FeeConfigHolder) Get() FeeConfig {
	return h.current.Load().(FeeConfig)
}

func validateFeeConfig(cfg FeeConfig) error {
	seen := map[string]bool{}
	for _, item := range cfg.Defaults {
		txType := strings.TrimSpace(item.TransactionType)
		switch txType {
		case "booking", "reservation", "sell_product":
		default:
			return fmt.Errorf("fees.defaults: unknown transaction type %q", item.TransactionType)
		}
		if seen[txType] {
			return fmt.Errorf("fees.defaults: duplicate transaction type %q", txType)
		}
		seen[txType] = true
		if item.RatePercentage < 0 || item.RatePercentage > 100 {
			return errors.New("fees.defaults: ratePercentage must be between 0 and 100")
		}
	}
	return nil
}
