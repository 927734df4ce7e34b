package config

import (
	"errors"
	"os"
	"strings"
	"time"

	"github.com/nerdneilsfield/ocr-bilingual/internal/apperr"
	"github.com/spf13/viper"
)

// TranslationConfig 翻译引擎配置
type TranslationConfig struct {
	Provider    string  `mapstructure:"provider"` // openai | openai-official | gemini
	Model       string  `mapstructure:"model"`
	BaseURL     string  `mapstructure:"base_url"`
	APIKey      string  `mapstructure:"api_key"`
	Temperature float64 `mapstructure:"temperature"`
	Timeout     int     `mapstructure:"timeout"`     // 单次调用超时（秒）
	MaxChars    int     `mapstructure:"max_chars"`   // 批次字符上限
	Concurrency int     `mapstructure:"concurrency"` // 并行翻译请求数
	SourceLang  string  `mapstructure:"source_lang"`
	TargetLang  string  `mapstructure:"target_lang"`
}

// BreakerConfig 熔断器配置
type BreakerConfig struct {
	MaxFailures uint32 `mapstructure:"max_failures"` // 连续失败多少次后断开
	OpenTimeout int    `mapstructure:"open_timeout"` // 断开后多久进入半开（秒）
}

// OCRConfig OCR 引擎配置
type OCRConfig struct {
	APIKey        string `mapstructure:"api_key"`
	Model         string `mapstructure:"model"`
	Endpoint      string `mapstructure:"endpoint"`
	PageChunkSize int    `mapstructure:"page_chunk_size"` // PDF 每组页数
	Timeout       int    `mapstructure:"timeout"`
}

// GitHubConfig GitHub 仓库存储
type GitHubConfig struct {
	Owner   string `mapstructure:"owner"`
	Repo    string `mapstructure:"repo"`
	Branch  string `mapstructure:"branch"`
	Token   string `mapstructure:"token"`
	APIBase string `mapstructure:"api_base"`
}

// GitRepoConfig 本地 git 仓库存储
type GitRepoConfig struct {
	Path   string `mapstructure:"path"`
	Branch string `mapstructure:"branch"`
	Author string `mapstructure:"author"`
}

// MinioConfig S3 兼容对象存储
type MinioConfig struct {
	Endpoint  string `mapstructure:"endpoint"`
	Bucket    string `mapstructure:"bucket"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	UseSSL    bool   `mapstructure:"use_ssl"`
}

// StoreConfig 远端存储配置
type StoreConfig struct {
	Backend string        `mapstructure:"backend"` // github | git | minio
	Timeout int           `mapstructure:"timeout"`
	GitHub  GitHubConfig  `mapstructure:"github"`
	Git     GitRepoConfig `mapstructure:"git"`
	Minio   MinioConfig   `mapstructure:"minio"`
}

// CatalogConfig 文档目录构建配置
type CatalogConfig struct {
	EnrichLimit int `mapstructure:"enrich_limit"` // 只为前 N 组查询最后修改时间
}

// CacheConfig 列表缓存配置
type CacheConfig struct {
	MaxRefreshPerKey int    `mapstructure:"max_refresh_per_key"`
	RedisURL         string `mapstructure:"redis_url"` // 为空时不做快照
	SnapshotTTL      int    `mapstructure:"snapshot_ttl"`
}

// CleanerConfig 清洗配置
type CleanerConfig struct {
	Boilerplate []string `mapstructure:"boilerplate"`
}

// ServerConfig HTTP 服务配置
type ServerConfig struct {
	Addr string `mapstructure:"addr"`
}

// Config 保存服务的所有配置
type Config struct {
	Translation TranslationConfig `mapstructure:"translation"`
	Breaker     BreakerConfig     `mapstructure:"breaker"`
	OCR         OCRConfig         `mapstructure:"ocr"`
	Store       StoreConfig       `mapstructure:"store"`
	Catalog     CatalogConfig     `mapstructure:"catalog"`
	Cache       CacheConfig       `mapstructure:"cache"`
	Cleaner     CleanerConfig     `mapstructure:"cleaner"`
	Server      ServerConfig      `mapstructure:"server"`
	Users       map[string]string `mapstructure:"users"` // 用户 id -> 显示名，静态白名单
	Debug       bool              `mapstructure:"debug"`
	LogLevel    string            `mapstructure:"log_level"`
}

// LoadConfig 从文件加载配置，configPath 为空时在家目录和当前目录查找 .ocrtrans.yaml
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()

	// 设置默认值
	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(home)
		}
		v.AddConfigPath(".")
		v.SetConfigName(".ocrtrans")
		v.SetConfigType("yaml")
	}

	// 读取环境变量，例如 OCRTRANS_TRANSLATION_API_KEY
	v.SetEnvPrefix("OCRTRANS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindSecrets(v)

	if err := v.ReadInConfig(); err != nil {
		// 找不到配置文件时使用默认值
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

// bindSecrets 让 AutomaticEnv 能覆盖没有出现在配置文件里的凭据键
func bindSecrets(v *viper.Viper) {
	for _, key := range []string{
		"translation.api_key",
		"ocr.api_key",
		"store.github.token",
		"store.minio.access_key",
		"store.minio.secret_key",
		"cache.redis_url",
	} {
		_ = v.BindEnv(key)
	}
}

// setDefaults 设置默认配置
func setDefaults(v *viper.Viper) {
	d := NewDefaultConfig()

	v.SetDefault("translation.provider", d.Translation.Provider)
	v.SetDefault("translation.model", d.Translation.Model)
	v.SetDefault("translation.base_url", d.Translation.BaseURL)
	v.SetDefault("translation.temperature", d.Translation.Temperature)
	v.SetDefault("translation.timeout", d.Translation.Timeout)
	v.SetDefault("translation.max_chars", d.Translation.MaxChars)
	v.SetDefault("translation.concurrency", d.Translation.Concurrency)
	v.SetDefault("translation.source_lang", d.Translation.SourceLang)
	v.SetDefault("translation.target_lang", d.Translation.TargetLang)

	v.SetDefault("breaker.max_failures", d.Breaker.MaxFailures)
	v.SetDefault("breaker.open_timeout", d.Breaker.OpenTimeout)

	v.SetDefault("ocr.model", d.OCR.Model)
	v.SetDefault("ocr.endpoint", d.OCR.Endpoint)
	v.SetDefault("ocr.page_chunk_size", d.OCR.PageChunkSize)
	v.SetDefault("ocr.timeout", d.OCR.Timeout)

	v.SetDefault("store.backend", d.Store.Backend)
	v.SetDefault("store.timeout", d.Store.Timeout)
	v.SetDefault("store.github.branch", d.Store.GitHub.Branch)
	v.SetDefault("store.github.api_base", d.Store.GitHub.APIBase)
	v.SetDefault("store.git.branch", d.Store.Git.Branch)
	v.SetDefault("store.git.author", d.Store.Git.Author)

	v.SetDefault("catalog.enrich_limit", d.Catalog.EnrichLimit)
	v.SetDefault("cache.max_refresh_per_key", d.Cache.MaxRefreshPerKey)
	v.SetDefault("cache.snapshot_ttl", d.Cache.SnapshotTTL)
	v.SetDefault("cleaner.boilerplate", d.Cleaner.Boilerplate)
	v.SetDefault("server.addr", d.Server.Addr)
	v.SetDefault("users", d.Users)
	v.SetDefault("log_level", d.LogLevel)
}

// NewDefaultConfig 创建一个新的默认配置
func NewDefaultConfig() *Config {
	return &Config{
		Translation: TranslationConfig{
			Provider:    "openai",
			Model:       "deepseek-chat",
			BaseURL:     "https://api.deepseek.com",
			Temperature: 0.1, // 降低随机性，占位符不乱跑
			Timeout:     120,
			MaxChars:    2000,
			Concurrency: 8,
			SourceLang:  "English",
			TargetLang:  "Chinese",
		},
		Breaker: BreakerConfig{
			MaxFailures: 5,
			OpenTimeout: 30,
		},
		OCR: OCRConfig{
			Model:         "mistral-ocr-latest",
			Endpoint:      "https://api.mistral.ai/v1/ocr",
			PageChunkSize: 5,
			Timeout:       300,
		},
		Store: StoreConfig{
			Backend: "github",
			Timeout: 60,
			GitHub: GitHubConfig{
				Branch:  "main",
				APIBase: "https://api.github.com",
			},
			Git: GitRepoConfig{
				Branch: "main",
				Author: "ocrtrans",
			},
		},
		Catalog: CatalogConfig{EnrichLimit: 7},
		Cache: CacheConfig{
			MaxRefreshPerKey: 2,
			SnapshotTTL:      7 * 24 * 3600,
		},
		Cleaner: CleanerConfig{Boilerplate: DefaultBoilerplate()},
		Server:  ServerConfig{Addr: ":5000"},
		Users: map[string]string{
			"s1": "s1", "s2": "s2", "s3": "s3", "s4": "s4",
			"s5": "s5", "s6": "s6", "s7": "s7", "s8": "default",
		},
		LogLevel: "info",
	}
}

// DefaultBoilerplate OCR 常见的广告/水印行关键字
func DefaultBoilerplate() []string {
	return []string{
		"获取更多资讯", "优质更多资讯", "國立臺灣大學", "数字模型", "数学模型",
		"I would like to get more information.",
		"上海", "天津", "文汇", "云江", "太江", "云计", "交往", "文江", "資訊", "大江", "关注数学",
	}
}

// TranslationTimeout 单次翻译调用超时
func (c *Config) TranslationTimeout() time.Duration {
	return seconds(c.Translation.Timeout, 120)
}

// OCRTimeout 单次 OCR 调用超时
func (c *Config) OCRTimeout() time.Duration {
	return seconds(c.OCR.Timeout, 300)
}

// StoreTimeout 存储请求超时
func (c *Config) StoreTimeout() time.Duration {
	return seconds(c.Store.Timeout, 60)
}

// BreakerOpenTimeout 熔断器断开时长
func (c *Config) BreakerOpenTimeout() time.Duration {
	return seconds(c.Breaker.OpenTimeout, 30)
}

// SnapshotTTL 快照过期时间
func (c *Config) SnapshotTTL() time.Duration {
	return seconds(c.Cache.SnapshotTTL, 7*24*3600)
}

// HasUser 用户是否在白名单中
func (c *Config) HasUser(id string) bool {
	_, ok := c.Users[id]
	return ok
}

// ValidateTranslation 校验翻译能力所需配置
func (c *Config) ValidateTranslation() error {
	switch c.Translation.Provider {
	case "openai", "openai-official", "gemini":
	default:
		return apperr.Configuration("config.translation", "unknown provider "+c.Translation.Provider)
	}
	if c.Translation.APIKey == "" {
		return apperr.Configuration("config.translation", "translation.api_key is required")
	}
	if c.Translation.MaxChars <= 0 {
		return apperr.Configuration("config.translation", "translation.max_chars must be positive")
	}
	return nil
}

// ValidateOCR 校验 OCR 能力所需配置
func (c *Config) ValidateOCR() error {
	if c.OCR.APIKey == "" {
		return apperr.Configuration("config.ocr", "ocr.api_key is required")
	}
	if c.OCR.PageChunkSize <= 0 {
		return apperr.Configuration("config.ocr", "ocr.page_chunk_size must be positive")
	}
	return nil
}

// ValidateStore 校验存储后端所需配置
func (c *Config) ValidateStore() error {
	switch c.Store.Backend {
	case "github":
		gh := c.Store.GitHub
		if gh.Owner == "" || gh.Repo == "" {
			return apperr.Configuration("config.store", "store.github.owner and store.github.repo are required")
		}
		if gh.Token == "" {
			return apperr.Configuration("config.store", "store.github.token is required")
		}
	case "git":
		if c.Store.Git.Path == "" {
			return apperr.Configuration("config.store", "store.git.path is required")
		}
	case "minio":
		m := c.Store.Minio
		if m.Endpoint == "" || m.Bucket == "" {
			return apperr.Configuration("config.store", "store.minio.endpoint and store.minio.bucket are required")
		}
	default:
		return apperr.Configuration("config.store", "unknown store backend "+c.Store.Backend)
	}
	return nil
}

func seconds(v, fallback int) time.Duration {
	if v <= 0 {
		v = fallback
	}
	return time.Duration(v) * time.Second
}
