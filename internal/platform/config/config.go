package config

import (
	"errors"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Cfg 是一个全局变量，用于存储所有应用程序的配置
var Cfg *Config

// Config 结构体定义了应用程序的所有配置项
// 它与 config.yaml 文件的结构完全对应
type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Supabase    SupabaseConfig    `mapstructure:"supabase"`
	Leaderboard LeaderboardConfig `mapstructure:"leaderboard"`
	Views       ViewsConfig       `mapstructure:"views"`
	Search      SearchConfig      `mapstructure:"search"`
	Backup      BackupConfig      `mapstructure:"backup"`
	RateLimit   RateLimitConfig   `mapstructure:"rateLimit"`
}

// ServerConfig 定义了服务器相关的配置
type ServerConfig struct {
	Mode    string     `mapstructure:"mode"`
	Address string     `mapstructure:"address"`
	Cors    CorsConfig `mapstructure:"cors"`
}

// CorsConfig 定义了CORS相关的配置
type CorsConfig struct {
	AllowedOrigins []string `mapstructure:"allowedOrigins"`
}

// DatabaseConfig 定义了数据库和缓存相关的配置
type DatabaseConfig struct {
	Redis    RedisConfig    `mapstructure:"redis"`
	Sqlite   SqliteConfig   `mapstructure:"sqlite"`
	Postgres PostgresConfig `mapstructure:"postgres"`
}

// RedisConfig 定义了Redis的配置
// Address 为空时使用进程内存储，不启动健康检查和快照备份
type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// SqliteConfig 定义了本地SQLite数据库的配置
type SqliteConfig struct {
	Path string `mapstructure:"path"`
}

// PostgresConfig 定义了托管Postgres的连接串，仅用于浏览计数
type PostgresConfig struct {
	DSN string `mapstructure:"dsn"`
}

// SupabaseConfig 定义了托管REST后端(PostgREST)的配置
type SupabaseConfig struct {
	URL     string        `mapstructure:"url"`
	AnonKey string        `mapstructure:"anonKey"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// Enabled 判断REST后端是否完成配置
func (c SupabaseConfig) Enabled() bool {
	return c.URL != "" && c.AnonKey != ""
}

// LeaderboardConfig 决定排行榜的数据来源
type LeaderboardConfig struct {
	Source string `mapstructure:"source"` // "supabase" 或 "local"
}

// ViewsConfig 决定浏览计数写入哪里
type ViewsConfig struct {
	Backend string `mapstructure:"backend"` // "sql" 或 "supabase"
}

// SearchConfig 定义了外部图书检索服务的配置
type SearchConfig struct {
	GoogleBooksURL    string `mapstructure:"googleBooksURL"`
	GoogleBooksAPIKey string `mapstructure:"googleBooksAPIKey"`
	OpenLibraryURL    string `mapstructure:"openLibraryURL"`
	MaxResults        int    `mapstructure:"maxResults"`
}

// BackupConfig 定义了快照备份的频率
type BackupConfig struct {
	Interval time.Duration `mapstructure:"interval"`
}

// RateLimitConfig 限制每个IP在窗口内可以提交的摘要数量
type RateLimitConfig struct {
	Submissions int           `mapstructure:"submissions"`
	Window      time.Duration `mapstructure:"window"`
}

const (
	LeaderboardSourceSupabase = "supabase"
	LeaderboardSourceLocal    = "local"

	ViewsBackendSQL      = "sql"
	ViewsBackendSupabase = "supabase"
)

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.address", ":8080")
	v.SetDefault("server.cors.allowedOrigins", []string{"http://localhost:4321"})
	v.SetDefault("database.sqlite.path", "books.db")
	v.SetDefault("database.redis.address", "")
	v.SetDefault("supabase.timeout", 10*time.Second)
	v.SetDefault("leaderboard.source", LeaderboardSourceSupabase)
	v.SetDefault("views.backend", ViewsBackendSQL)
	v.SetDefault("search.googleBooksURL", "https://www.googleapis.com/books/v1")
	v.SetDefault("search.openLibraryURL", "https://openlibrary.org")
	v.SetDefault("search.maxResults", 10)
	v.SetDefault("backup.interval", 10*time.Minute)
	v.SetDefault("rateLimit.submissions", 20)
	v.SetDefault("rateLimit.window", 24*time.Hour)
}

// LoadConfig 函数负责查找、加载和解析配置文件
// 它会在指定的路径中查找名为 config.yaml 的文件，找不到时全部使用默认值
func LoadConfig() (*Config, error) {
	// 先加载 .env (可选)，API密钥通常放在这里
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./config")
	v.AddConfigPath(".")

	// 允许通过环境变量覆盖配置，例如 SUPABASE_URL=...
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindEnv(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	Cfg = &cfg
	return Cfg, nil
}

// bindEnv 显式绑定驼峰键，AutomaticEnv 只对已知键生效
func bindEnv(v *viper.Viper) {
	_ = v.BindEnv("supabase.anonKey", "SUPABASE_ANON_KEY")
	_ = v.BindEnv("search.googleBooksAPIKey", "GOOGLE_BOOKS_API_KEY")
	_ = v.BindEnv("database.postgres.dsn", "DATABASE_URL")
}
