package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// ServerConfig 定义 HTTP 服务器的监听配置参数
type ServerConfig struct {
	Host string // 监听地址，默认 "0.0.0.0"
	Port int    // 监听端口，默认 8080
}

// MailboxConfig 定义邮箱目录的核心业务配置
type MailboxConfig struct {
	Domain      string        // 生成邮箱地址的域名后缀，如 "temp-mail.gr"
	InboxTTL    time.Duration // 邮箱目录生存时间，每次收信时重置，默认 600s
	MaxMessages int           // 单个邮箱保留的最大邮件数，默认 200
	LocalLength int           // 随机邮箱前缀长度，默认 10
}

// MessageConfig 定义邮件记录的存储配置
type MessageConfig struct {
	TTL                time.Duration // 邮件记录生存时间，与目录 TTL 相互独立，默认 600s
	MaxAttachmentBytes int64         // 附件内联存储的大小上限，超出只保留元数据，默认 2MB
	PreviewLength      int           // 列表预览截取的正文字符数，默认 120
}

// SMTPConfig 定义 SMTP 邮件接收服务器的配置
type SMTPConfig struct {
	BindAddr        string // SMTP 服务监听地址，格式 "host:port"，默认 ":25"
	Domain          string // SMTP 服务器域名，用于 HELO/EHLO 响应
	MaxMessageBytes int64  // 单封邮件的最大字节数，默认 25MB
	MaxSessions     int    // 最大并发会话数，默认 64
	SessionsPerSec  int    // 每秒允许新建的会话数，默认 20
}

// StorageConfig 定义外部 KV 存储调用的约束
type StorageConfig struct {
	Timeout time.Duration // 单次存储调用超时，超时后读路径降级为空结果，默认 1500ms
}

// RedisConfig 定义 Redis 存储服务配置
type RedisConfig struct {
	Address  string // Redis 服务地址，格式 "host:port"，默认 "localhost:6379"
	Password string // Redis 认证密码，留空表示无密码
	DB       int    // Redis 数据库编号，默认 0
}

// CORSConfig 定义跨域资源共享 (CORS) 配置
type CORSConfig struct {
	AllowedOrigins []string // 允许的来源列表，"*" 表示允许所有来源
}

// LogConfig 定义日志系统配置
type LogConfig struct {
	Level       string // 日志级别: debug, info, warn, error
	Development bool   // 开发模式: 启用彩色输出和详细堆栈信息
}

// Config 是系统核心配置的根结构体，包含所有子系统的配置
type Config struct {
	Server  ServerConfig  // HTTP 服务器配置
	Mailbox MailboxConfig // 邮箱目录配置
	Message MessageConfig // 邮件记录配置
	SMTP    SMTPConfig    // SMTP 服务配置
	Storage StorageConfig // KV 存储调用配置
	Redis   RedisConfig   // Redis 配置
	CORS    CORSConfig    // 跨域配置
	Log     LogConfig     // 日志配置
}

// Load 从环境变量和 .env 文件加载系统配置
//
// 配置加载优先级（从高到低）：
//  1. 系统环境变量（最高优先级）
//  2. .env 文件（如果存在）
//  3. 默认值
//
// 环境变量前缀: TEMPMAIL_
// 例如: TEMPMAIL_MAILBOX_DOMAIN, TEMPMAIL_REDIS_ADDRESS
func Load() (*Config, error) {
	// 尝试加载 .env 文件（静默失败，因为 .env 文件是可选的）
	loadEnvFile()

	viper.SetEnvPrefix("tempmail")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("mailbox.domain", "temp-mail.gr")
	viper.SetDefault("mailbox.inbox_ttl", "600s")
	viper.SetDefault("mailbox.max_messages", 200)
	viper.SetDefault("mailbox.local_length", 10)
	viper.SetDefault("message.ttl", "600s")
	viper.SetDefault("message.max_attachment_bytes", 2*1024*1024)
	viper.SetDefault("message.preview_length", 120)
	viper.SetDefault("smtp.bind_addr", ":25")
	viper.SetDefault("smtp.domain", "temp-mail.gr")
	viper.SetDefault("smtp.max_message_bytes", 25*1024*1024)
	viper.SetDefault("smtp.max_sessions", 64)
	viper.SetDefault("smtp.sessions_per_sec", 20)
	viper.SetDefault("storage.timeout", "1500ms")
	viper.SetDefault("redis.address", "localhost:6379")
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("cors.allowed_origins", "*")
	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.development", false)

	inboxTTL, err := time.ParseDuration(viper.GetString("mailbox.inbox_ttl"))
	if err != nil {
		return nil, fmt.Errorf("invalid mailbox.inbox_ttl: %w", err)
	}

	messageTTL, err := time.ParseDuration(viper.GetString("message.ttl"))
	if err != nil {
		return nil, fmt.Errorf("invalid message.ttl: %w", err)
	}

	storageTimeout, err := time.ParseDuration(viper.GetString("storage.timeout"))
	if err != nil {
		return nil, fmt.Errorf("invalid storage.timeout: %w", err)
	}

	mailboxDomain := strings.ToLower(strings.TrimSpace(viper.GetString("mailbox.domain")))
	if mailboxDomain == "" {
		return nil, fmt.Errorf("mailbox.domain must not be empty")
	}

	maxMessages := viper.GetInt("mailbox.max_messages")
	if maxMessages <= 0 {
		maxMessages = 200
	}

	localLength := viper.GetInt("mailbox.local_length")
	if localLength < 4 {
		localLength = 10
	}

	previewLength := viper.GetInt("message.preview_length")
	if previewLength <= 0 {
		previewLength = 120
	}

	corsOrigins := parseList(viper.GetString("cors.allowed_origins"))
	if len(corsOrigins) == 0 {
		corsOrigins = []string{"*"}
	}

	cfg := &Config{
		Server: ServerConfig{
			Host: viper.GetString("server.host"),
			Port: viper.GetInt("server.port"),
		},
		Mailbox: MailboxConfig{
			Domain:      mailboxDomain,
			InboxTTL:    inboxTTL,
			MaxMessages: maxMessages,
			LocalLength: localLength,
		},
		Message: MessageConfig{
			TTL:                messageTTL,
			MaxAttachmentBytes: viper.GetInt64("message.max_attachment_bytes"),
			PreviewLength:      previewLength,
		},
		SMTP: SMTPConfig{
			BindAddr:        viper.GetString("smtp.bind_addr"),
			Domain:          viper.GetString("smtp.domain"),
			MaxMessageBytes: viper.GetInt64("smtp.max_message_bytes"),
			MaxSessions:     viper.GetInt("smtp.max_sessions"),
			SessionsPerSec:  viper.GetInt("smtp.sessions_per_sec"),
		},
		Storage: StorageConfig{
			Timeout: storageTimeout,
		},
		Redis: RedisConfig{
			Address:  viper.GetString("redis.address"),
			Password: viper.GetString("redis.password"),
			DB:       viper.GetInt("redis.db"),
		},
		CORS: CORSConfig{
			AllowedOrigins: corsOrigins,
		},
		Log: LogConfig{
			Level:       viper.GetString("log.level"),
			Development: viper.GetBool("log.development"),
		},
	}

	return cfg, nil
}

// parseList 将逗号分隔的字符串解析为字符串切片
func parseList(value string) []string {
	parts := strings.Split(value, ",")
	items := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			items = append(items, trimmed)
		}
	}
	return items
}

// loadEnvFile 尝试加载 .env 文件
//
// 注意：
//   - 如果文件不存在，静默失败（.env 是可选的）
//   - 环境变量不会被覆盖（已存在的环境变量优先级更高）
func loadEnvFile() {
	// 尝试当前目录的 .env
	if err := godotenv.Load(".env"); err == nil {
		return
	}

	// 尝试父目录的 .env（从子目录运行时）
	parentEnv := filepath.Join("..", ".env")
	if _, err := os.Stat(parentEnv); err == nil {
		_ = godotenv.Load(parentEnv)
	}
}
