package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	xe "github.com/allfeat/explorer"
	"github.com/allfeat/explorer/config/constants"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

var noSuchFile = "no such file"
var notFoundIn = "not found in"

const DefaultRpcUrl = "wss://mainnet.rpc.allfeat.org"

type Network struct {
	Ss58Prefix uint16 `yaml:"ss58_prefix,omitempty" mapstructure:"ss58_prefix"`
	Decimals   int    `yaml:"decimals,omitempty" mapstructure:"decimals"`
	Symbol     string `yaml:"symbol,omitempty" mapstructure:"symbol"`
}

type Http struct {
	Listen        string  `yaml:"listen,omitempty" mapstructure:"listen"`
	RatePerSecond float64 `yaml:"rate_per_second,omitempty" mapstructure:"rate_per_second"`
	Burst         int     `yaml:"burst,omitempty" mapstructure:"burst"`
	// Addresses or CIDR ranges of reverse proxies whose X-Forwarded-For is honoured.
	TrustedProxies []string `yaml:"trusted_proxies,omitempty" mapstructure:"trusted_proxies"`
}

type Ledger struct {
	PageSize int `yaml:"page_size,omitempty" mapstructure:"page_size"`
	// Block interval of the in-memory demo ledger.
	BlockInterval time.Duration `yaml:"block_interval,omitempty" mapstructure:"block_interval"`
}

type Cache struct {
	TTL time.Duration `yaml:"ttl,omitempty" mapstructure:"ttl"`
}

type Log struct {
	Level  string `yaml:"level,omitempty" mapstructure:"level"`
	Format string `yaml:"format,omitempty" mapstructure:"format"`
}

type Config struct {
	// May reference a secret, e.g. "env:ALLFEAT_RPC_URL", when the url embeds an API key.
	RpcUrl  Secret  `yaml:"rpc_url,omitempty" mapstructure:"rpc_url"`
	Network Network `yaml:"network,omitempty" mapstructure:"network"`
	Http    Http    `yaml:"http,omitempty" mapstructure:"http"`
	Ledger  Ledger  `yaml:"ledger,omitempty" mapstructure:"ledger"`
	Cache   Cache   `yaml:"cache,omitempty" mapstructure:"cache"`
	Log     Log     `yaml:"log,omitempty" mapstructure:"log"`
}

func (c *Config) NetworkTag() xe.NetworkTag {
	return xe.NetworkTag(c.Network.Ss58Prefix)
}

func (c *Config) Validate() error {
	if c.Network.Ss58Prefix > 16383 {
		return fmt.Errorf("network.ss58_prefix must be at most 16383, got %d", c.Network.Ss58Prefix)
	}
	if c.Ledger.PageSize <= 0 {
		return fmt.Errorf("ledger.page_size must be positive, got %d", c.Ledger.PageSize)
	}
	if c.Http.RatePerSecond < 0 || c.Http.Burst < 0 {
		return fmt.Errorf("http rate limit must not be negative")
	}
	return nil
}

func getViper() *viper.Viper {
	v := viper.New()
	// config file is explorer.yaml
	v.SetConfigName("explorer")
	v.SetConfigType("yaml")

	// If the config location env is set, use that.
	v.SetConfigFile(os.Getenv(constants.ConfigEnv))

	// otherwise, prioritize current path or parent
	v.AddConfigPath(".")
	v.AddConfigPath("..")
	// Lastly, check home dir
	v.AddConfigPath(constants.DefaultHome)

	return v
}

// Load configuration.
// 1. Read in a configuration file based on environment variables and current path.
// 2. If a section is provided, then only that section will be treated as root and deserialized.
// 3. You may optionally provide an existing configuration object with default values.
// 4. If defaults are provided, an error will _not_ be returned if no config is found.
func RequireConfig(section string, unmarshalDst interface{}, defaults interface{}) error {
	return requireConfig(getViper(), section, unmarshalDst, defaults)
}

func requireConfig(v *viper.Viper, section string, unmarshalDst interface{}, defaults interface{}) error {
	err := v.ReadInConfig()
	if err != nil {
		msg := strings.ToLower(err.Error())
		if defaults != nil && (strings.Contains(msg, noSuchFile) || strings.Contains(msg, notFoundIn)) {
			// use the defaults by serializing and deserializing
			bz, err := yaml.Marshal(defaults)
			if err != nil {
				return err
			}
			return yaml.Unmarshal(bz, unmarshalDst)
		} else {
			return fmt.Errorf("fatal error reading config file: %w", err)
		}
	}
	// viper does not support partial deserialization so we
	// have to re-serialize and parse again
	var asMap map[string]interface{}
	if section != "" {
		asMap = v.GetStringMap(section)
	} else {
		asMap = v.AllSettings()
	}
	bz, err := yaml.Marshal(asMap)
	if err != nil {
		return err
	}
	if err = yaml.Unmarshal(bz, unmarshalDst); err != nil {
		return err
	}

	if defaults != nil {
		return ApplyDefaults(defaults, unmarshalDst, unmarshalDst)
	} else {
		return nil
	}
}

// Load reads the explorer configuration, from path when given, otherwise from the
// usual locations. Missing files fall back to Default().
func Load(path string) (*Config, error) {
	v := getViper()
	if path != "" {
		v.SetConfigFile(path)
	}
	cfg := &Config{}
	if err := requireConfig(v, "", cfg, Default()); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
