// =============================================================================
// 📦 llmcouncil 配置加载器
// =============================================================================
// 统一配置加载，支持 YAML 文件 + 环境变量覆盖
//
// 使用方法:
//
//	cfg, err := config.NewLoader().
//	    WithConfigPath("council.yaml").
//	    WithEnvPrefix("LLMCOUNCIL").
//	    Load()
//
// 配置优先级: 默认值 → YAML 文件 → 环境变量
// =============================================================================
package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// =============================================================================
// 🎯 核心配置结构
// =============================================================================

// Config 是 llmcouncil 的完整配置结构
type Config struct {
	// Council 议会成员与主席配置
	Council CouncilConfig `yaml:"council" env:"COUNCIL"`

	// Providers 按名称索引的模型服务商配置（仅 YAML）
	Providers map[string]ProviderConfig `yaml:"providers"`

	// Log 日志配置
	Log LogConfig `yaml:"log" env:"LOG"`

	// Telemetry 遥测配置
	Telemetry TelemetryConfig `yaml:"telemetry" env:"TELEMETRY"`

	// Metrics 指标配置
	Metrics MetricsConfig `yaml:"metrics" env:"METRICS"`

	// Database 会话存储配置
	Database DatabaseConfig `yaml:"database" env:"DATABASE"`
}

// CouncilConfig 议会配置
type CouncilConfig struct {
	// 议会成员（仅 YAML）
	Members []MemberConfig `yaml:"members"`
	// 主席（可与某个成员相同）
	Chairman MemberConfig `yaml:"chairman" env:"CHAIRMAN"`
	// 单次调用超时
	Timeout time.Duration `yaml:"timeout" env:"TIMEOUT"`
	// 主席调用超时，为 0 时沿用 Timeout
	ChairmanTimeout time.Duration `yaml:"chairman_timeout" env:"CHAIRMAN_TIMEOUT"`
	// 每轮最大并发，0 表示不限制
	MaxConcurrency int `yaml:"max_concurrency" env:"MAX_CONCURRENCY"`
	// 排名段落标题
	RankingHeader string `yaml:"ranking_header" env:"RANKING_HEADER"`
	// 自评策略: count, exclude
	SelfVotePolicy string `yaml:"self_vote_policy" env:"SELF_VOTE_POLICY"`
}

// MemberConfig 单个模型成员
type MemberConfig struct {
	// 可选显式 ID，默认 provider/model
	ID string `yaml:"id" env:"ID"`
	// Provider 名称，对应 Providers 的 key
	Provider string `yaml:"provider" env:"PROVIDER"`
	// 模型名称
	Model string `yaml:"model" env:"MODEL"`
	// 温度参数
	Temperature float64 `yaml:"temperature" env:"TEMPERATURE"`
	// 最大输出 Token 数
	MaxTokens int `yaml:"max_tokens" env:"MAX_TOKENS"`
	// 成员级超时，覆盖议会超时
	Timeout time.Duration `yaml:"timeout" env:"TIMEOUT"`
}

// ProviderConfig 模型服务商配置
type ProviderConfig struct {
	// 基础 URL，已知服务商可省略
	BaseURL string `yaml:"base_url"`
	// 聊天接口路径，已知服务商可省略
	EndpointPath string `yaml:"endpoint_path"`
	// API Key（优先）
	APIKey string `yaml:"api_key"`
	// 读取 API Key 的环境变量名
	APIKeyEnv string `yaml:"api_key_env"`
	// HTTP 超时
	Timeout time.Duration `yaml:"timeout"`
	// 每秒请求数限制，0 表示不限
	RateLimitRPS float64 `yaml:"rate_limit_rps"`
	// 令牌桶容量
	RateLimitBurst int `yaml:"rate_limit_burst"`
	// 最大重试次数
	MaxRetries int `yaml:"max_retries"`
}

// LogConfig 日志配置
type LogConfig struct {
	// 日志级别: debug, info, warn, error
	Level string `yaml:"level" env:"LEVEL"`
	// 输出格式: json, console
	Format string `yaml:"format" env:"FORMAT"`
	// 输出路径
	OutputPaths []string `yaml:"output_paths" env:"OUTPUT_PATHS"`
	// 是否启用调用者信息
	EnableCaller bool `yaml:"enable_caller" env:"ENABLE_CALLER"`
	// 是否启用堆栈跟踪
	EnableStacktrace bool `yaml:"enable_stacktrace" env:"ENABLE_STACKTRACE"`
}

// TelemetryConfig 遥测配置
type TelemetryConfig struct {
	// 是否启用
	Enabled bool `yaml:"enabled" env:"ENABLED"`
	// OTLP 端点
	OTLPEndpoint string `yaml:"otlp_endpoint" env:"OTLP_ENDPOINT"`
	// 服务名称
	ServiceName string `yaml:"service_name" env:"SERVICE_NAME"`
	// 采样率
	SampleRate float64 `yaml:"sample_rate" env:"SAMPLE_RATE"`
}

// MetricsConfig 指标配置
type MetricsConfig struct {
	// 是否启用
	Enabled bool `yaml:"enabled" env:"ENABLED"`
	// 指标命名空间
	Namespace string `yaml:"namespace" env:"NAMESPACE"`
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	// 驱动类型: sqlite, postgres, mysql
	Driver string `yaml:"driver" env:"DRIVER"`
	// 主机
	Host string `yaml:"host" env:"HOST"`
	// 端口
	Port int `yaml:"port" env:"PORT"`
	// 用户名
	User string `yaml:"user" env:"USER"`
	// 密码
	Password string `yaml:"password" env:"PASSWORD"`
	// 数据库名（sqlite 为文件路径）
	Name string `yaml:"name" env:"NAME"`
	// SSL 模式
	SSLMode string `yaml:"ssl_mode" env:"SSL_MODE"`
	// 最大连接数
	MaxOpenConns int `yaml:"max_open_conns" env:"MAX_OPEN_CONNS"`
	// 最大空闲连接
	MaxIdleConns int `yaml:"max_idle_conns" env:"MAX_IDLE_CONNS"`
	// 连接最大生命周期
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" env:"CONN_MAX_LIFETIME"`
}

// =============================================================================
// 🔧 配置加载器
// =============================================================================

// Loader 配置加载器（Builder 模式）
type Loader struct {
	configPath string
	envPrefix  string
	validators []func(*Config) error
}

// NewLoader 创建新的配置加载器
func NewLoader() *Loader {
	return &Loader{
		envPrefix:  "LLMCOUNCIL",
		validators: make([]func(*Config) error, 0),
	}
}

// WithConfigPath 设置配置文件路径
func (l *Loader) WithConfigPath(path string) *Loader {
	l.configPath = path
	return l
}

// WithEnvPrefix 设置环境变量前缀
func (l *Loader) WithEnvPrefix(prefix string) *Loader {
	l.envPrefix = prefix
	return l
}

// WithValidator 添加配置验证器
func (l *Loader) WithValidator(v func(*Config) error) *Loader {
	l.validators = append(l.validators, v)
	return l
}

// Load 加载配置
// 优先级: 默认值 → YAML 文件 → 环境变量
func (l *Loader) Load() (*Config, error) {
	cfg := DefaultConfig()

	if l.configPath != "" {
		if err := l.loadFromFile(cfg); err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
	}

	if err := l.loadFromEnv(cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	for _, v := range l.validators {
		if err := v(cfg); err != nil {
			return nil, fmt.Errorf("config validation failed: %w", err)
		}
	}

	return cfg, nil
}

// loadFromFile 从 YAML 文件加载配置
func (l *Loader) loadFromFile(cfg *Config) error {
	data, err := os.ReadFile(l.configPath)
	if err != nil {
		if os.IsNotExist(err) {
			// 文件不存在，使用默认值
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}

	// 文件中给出成员列表时整体替换默认成员，而不是按下标合并
	var shape struct {
		Council struct {
			Members []MemberConfig `yaml:"members"`
		} `yaml:"council"`
	}
	if err := yaml.Unmarshal(data, &shape); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}
	if len(shape.Council.Members) > 0 {
		cfg.Council.Members = nil
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// loadFromEnv 从环境变量加载配置
func (l *Loader) loadFromEnv(cfg *Config) error {
	return l.setFieldsFromEnv(reflect.ValueOf(cfg).Elem(), l.envPrefix)
}

// setFieldsFromEnv 递归设置结构体字段
func (l *Loader) setFieldsFromEnv(v reflect.Value, prefix string) error {
	t := v.Type()

	for i := 0; i < v.NumField(); i++ {
		field := v.Field(i)
		fieldType := t.Field(i)

		envTag := fieldType.Tag.Get("env")
		if envTag == "" || envTag == "-" {
			continue
		}

		envKey := prefix + "_" + envTag

		if field.Kind() == reflect.Struct && field.Type() != reflect.TypeOf(time.Duration(0)) {
			if err := l.setFieldsFromEnv(field, envKey); err != nil {
				return err
			}
			continue
		}

		envValue := os.Getenv(envKey)
		if envValue == "" {
			continue
		}

		if err := setFieldValue(field, envValue); err != nil {
			return fmt.Errorf("failed to set %s: %w", envKey, err)
		}
	}

	return nil
}

// setFieldValue 设置字段值
func setFieldValue(field reflect.Value, value string) error {
	if !field.CanSet() {
		return nil
	}

	switch field.Kind() {
	case reflect.String:
		field.SetString(value)

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		// 特殊处理 time.Duration
		if field.Type() == reflect.TypeOf(time.Duration(0)) {
			d, err := time.ParseDuration(value)
			if err != nil {
				return err
			}
			field.SetInt(int64(d))
		} else {
			i, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return err
			}
			field.SetInt(i)
		}

	case reflect.Float32, reflect.Float64:
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return err
		}
		field.SetFloat(f)

	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return err
		}
		field.SetBool(b)

	case reflect.Slice:
		// 逗号分隔的字符串切片
		if field.Type().Elem().Kind() == reflect.String {
			parts := strings.Split(value, ",")
			for i := range parts {
				parts[i] = strings.TrimSpace(parts[i])
			}
			field.Set(reflect.ValueOf(parts))
		}
	}

	return nil
}

// =============================================================================
// 🔍 辅助函数
// =============================================================================

// MustLoad 加载配置，失败时 panic
func MustLoad(path string) *Config {
	cfg, err := NewLoader().WithConfigPath(path).Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}
	return cfg
}

// Validate 验证配置
func (c *Config) Validate() error {
	var errs []string

	if len(c.Council.Members) == 0 {
		errs = append(errs, "council.members must not be empty")
	}
	seen := make(map[string]bool, len(c.Council.Members))
	for i, m := range c.Council.Members {
		if err := m.validate(); err != nil {
			errs = append(errs, fmt.Sprintf("council.members[%d]: %v", i, err))
			continue
		}
		id := m.MemberID()
		if seen[id] {
			errs = append(errs, fmt.Sprintf("council.members[%d]: duplicate member id %q", i, id))
		}
		seen[id] = true
	}
	if err := c.Council.Chairman.validate(); err != nil {
		errs = append(errs, fmt.Sprintf("council.chairman: %v", err))
	}

	if c.Council.Timeout <= 0 {
		errs = append(errs, "council.timeout must be positive")
	}
	if c.Council.MaxConcurrency < 0 {
		errs = append(errs, "council.max_concurrency must not be negative")
	}
	switch c.Council.SelfVotePolicy {
	case "", "count", "exclude":
	default:
		errs = append(errs, fmt.Sprintf("council.self_vote_policy %q must be count or exclude", c.Council.SelfVotePolicy))
	}

	switch c.Database.Driver {
	case "", "sqlite", "postgres", "mysql":
	default:
		errs = append(errs, fmt.Sprintf("database.driver %q is not supported", c.Database.Driver))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

func (m MemberConfig) validate() error {
	if m.Provider == "" {
		return fmt.Errorf("provider is required")
	}
	if m.Model == "" {
		return fmt.Errorf("model is required")
	}
	if m.Temperature < 0 || m.Temperature > 2 {
		return fmt.Errorf("temperature must be between 0 and 2")
	}
	return nil
}

// MemberID 返回成员标识，未显式配置时为 provider/model
func (m MemberConfig) MemberID() string {
	if m.ID != "" {
		return m.ID
	}
	return m.Provider + "/" + m.Model
}

// ResolveAPIKey 返回 API Key：显式配置优先，其次读取 APIKeyEnv，再次使用 fallbackEnv
func (p ProviderConfig) ResolveAPIKey(fallbackEnv string) string {
	if p.APIKey != "" {
		return p.APIKey
	}
	if p.APIKeyEnv != "" {
		if v := os.Getenv(p.APIKeyEnv); v != "" {
			return v
		}
	}
	if fallbackEnv != "" {
		return os.Getenv(fallbackEnv)
	}
	return ""
}

// DSN 返回数据库连接字符串
func (d *DatabaseConfig) DSN() string {
	switch d.Driver {
	case "postgres":
		return fmt.Sprintf(
			"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode,
		)
	case "mysql":
		return fmt.Sprintf(
			"%s:%s@tcp(%s:%d)/%s?parseTime=true",
			d.User, d.Password, d.Host, d.Port, d.Name,
		)
	case "sqlite", "":
		return d.Name
	default:
		return ""
	}
}
