package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"crm_configurator_v1/internal/service"
)

// Config 服务配置
type Config struct {
	Server       ServerConfig       `mapstructure:"server"`
	Database     DatabaseConfig     `mapstructure:"database"`
	Oracle       OracleConfig       `mapstructure:"oracle"`
	Session      SessionConfig      `mapstructure:"session"`
	Auth         AuthConfig         `mapstructure:"auth"`
	Log          LogConfig          `mapstructure:"log"`
	Configurator ConfiguratorConfig `mapstructure:"configurator"`
}

type ServerConfig struct {
	Port string `mapstructure:"port"`
}

type DatabaseConfig struct {
	Driver string `mapstructure:"driver"` // sqlite | postgres
	DSN    string `mapstructure:"dsn"`
}

type OracleConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
	Retries int           `mapstructure:"retries"`
	Debug   bool          `mapstructure:"debug"`
	// Cookie 透传给后端的会话 Cookie
	Cookie string `mapstructure:"cookie"`
}

type SessionConfig struct {
	IdleTTL        time.Duration `mapstructure:"idle_ttl"`
	SweepCron      string        `mapstructure:"sweep_cron"`
	SubmitCooldown time.Duration `mapstructure:"submit_cooldown"`
}

type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret"`
	Issuer    string `mapstructure:"issuer"`
	Required  bool   `mapstructure:"required"`
}

type LogConfig struct {
	Mode string `mapstructure:"mode"`
}

type ConfiguratorConfig struct {
	AutoFillRules         []service.AutoFillRule     `mapstructure:"autofill_rules"`
	DefaultValues         []service.DefaultValueRule `mapstructure:"default_values"`
	PreselectSingleValues bool                       `mapstructure:"preselect_single_values"`
}

var ErrMissingOracleURL = errors.New("oracle.base_url is required")

// Load 读取配置文件（可选）与 CONFIGURATOR_ 前缀的环境变量
// path 为空时在当前目录与 ./config 下查找 config.yaml
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("CONFIGURATOR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("读取配置失败: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	defaults := service.DefaultRules()

	v.SetDefault("server.port", "8080")
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "configurator.db")
	v.SetDefault("oracle.base_url", "")
	v.SetDefault("oracle.timeout", 20*time.Second)
	v.SetDefault("oracle.retries", 2)
	v.SetDefault("oracle.debug", false)
	v.SetDefault("oracle.cookie", "")
	v.SetDefault("session.idle_ttl", 30*time.Minute)
	v.SetDefault("session.sweep_cron", "0 * * * * *")
	v.SetDefault("session.submit_cooldown", 3*time.Second)
	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.issuer", "")
	v.SetDefault("auth.required", false)
	v.SetDefault("log.mode", "development")
	v.SetDefault("configurator.autofill_rules", ruleMaps(defaults.AutoFill))
	v.SetDefault("configurator.default_values", defaultValueMaps(defaults.DefaultValues))
	v.SetDefault("configurator.preselect_single_values", defaults.PreselectSingleValues)
}

// Validate 校验必填项
func (c *Config) Validate() error {
	if c.Oracle.BaseURL == "" {
		return ErrMissingOracleURL
	}
	switch c.Database.Driver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("不支持的数据库驱动: %q", c.Database.Driver)
	}
	if c.Session.IdleTTL <= 0 {
		return fmt.Errorf("session.idle_ttl 必须大于 0")
	}
	return nil
}

// Rules 转换为会话规则
func (c *Config) Rules() service.Rules {
	return service.Rules{
		AutoFill:              c.Configurator.AutoFillRules,
		DefaultValues:         c.Configurator.DefaultValues,
		PreselectSingleValues: c.Configurator.PreselectSingleValues,
	}
}

func ruleMaps(rules []service.AutoFillRule) []map[string]any {
	out := make([]map[string]any, 0, len(rules))
	for _, r := range rules {
		out = append(out, map[string]any{
			"reference_model":  r.ReferenceModel,
			"source_field":     r.SourceField,
			"target_attribute": r.TargetAttribute,
		})
	}
	return out
}

func defaultValueMaps(rules []service.DefaultValueRule) []map[string]any {
	out := make([]map[string]any, 0, len(rules))
	for _, r := range rules {
		out = append(out, map[string]any{
			"attribute": r.Attribute,
			"value":     r.Value,
		})
	}
	return out
}
