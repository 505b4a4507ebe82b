package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoad(t *testing.T) {
	// 保存原始环境变量
	originalEnvs := make(map[string]string)
	envKeys := []string{
		"TEMPMAIL_SERVER_HOST",
		"TEMPMAIL_SERVER_PORT",
		"TEMPMAIL_MAILBOX_DOMAIN",
		"TEMPMAIL_MAILBOX_INBOX_TTL",
		"TEMPMAIL_MAILBOX_MAX_MESSAGES",
		"TEMPMAIL_MESSAGE_TTL",
		"TEMPMAIL_MESSAGE_MAX_ATTACHMENT_BYTES",
		"TEMPMAIL_SMTP_BIND_ADDR",
		"TEMPMAIL_SMTP_DOMAIN",
		"TEMPMAIL_STORAGE_TIMEOUT",
		"TEMPMAIL_LOG_LEVEL",
		"TEMPMAIL_LOG_DEVELOPMENT",
	}

	for _, key := range envKeys {
		originalEnvs[key] = os.Getenv(key)
	}

	// 测试后恢复环境变量
	defer func() {
		for key, value := range originalEnvs {
			if value == "" {
				os.Unsetenv(key)
			} else {
				os.Setenv(key, value)
			}
		}
	}()

	t.Run("加载默认配置成功", func(t *testing.T) {
		// 清除所有环境变量
		for _, key := range envKeys {
			os.Unsetenv(key)
		}

		cfg, err := Load()

		assert.NoError(t, err)
		assert.NotNil(t, cfg)

		// 验证默认值
		assert.Equal(t, "0.0.0.0", cfg.Server.Host)
		assert.Equal(t, 8080, cfg.Server.Port)
		assert.Equal(t, "temp-mail.gr", cfg.Mailbox.Domain)
		assert.Equal(t, 600*time.Second, cfg.Mailbox.InboxTTL)
		assert.Equal(t, 200, cfg.Mailbox.MaxMessages)
		assert.Equal(t, 10, cfg.Mailbox.LocalLength)
		assert.Equal(t, 600*time.Second, cfg.Message.TTL)
		assert.Equal(t, int64(2*1024*1024), cfg.Message.MaxAttachmentBytes)
		assert.Equal(t, 120, cfg.Message.PreviewLength)
		assert.Equal(t, ":25", cfg.SMTP.BindAddr)
		assert.Equal(t, "temp-mail.gr", cfg.SMTP.Domain)
		assert.Equal(t, 1500*time.Millisecond, cfg.Storage.Timeout)
		assert.Equal(t, "localhost:6379", cfg.Redis.Address)
		assert.Equal(t, []string{"*"}, cfg.CORS.AllowedOrigins)
		assert.Equal(t, "info", cfg.Log.Level)
		assert.False(t, cfg.Log.Development)
	})

	t.Run("加载自定义配置成功", func(t *testing.T) {
		os.Setenv("TEMPMAIL_SERVER_HOST", "127.0.0.1")
		os.Setenv("TEMPMAIL_SERVER_PORT", "9090")
		os.Setenv("TEMPMAIL_MAILBOX_DOMAIN", "Example.Org")
		os.Setenv("TEMPMAIL_MAILBOX_INBOX_TTL", "15m")
		os.Setenv("TEMPMAIL_MESSAGE_TTL", "30m")
		os.Setenv("TEMPMAIL_SMTP_BIND_ADDR", ":2525")
		os.Setenv("TEMPMAIL_STORAGE_TIMEOUT", "2s")

		cfg, err := Load()

		assert.NoError(t, err)
		assert.NotNil(t, cfg)

		assert.Equal(t, "127.0.0.1", cfg.Server.Host)
		assert.Equal(t, 9090, cfg.Server.Port)
		// 域名统一转换为小写
		assert.Equal(t, "example.org", cfg.Mailbox.Domain)
		assert.Equal(t, 15*time.Minute, cfg.Mailbox.InboxTTL)
		assert.Equal(t, 30*time.Minute, cfg.Message.TTL)
		assert.Equal(t, ":2525", cfg.SMTP.BindAddr)
		assert.Equal(t, 2*time.Second, cfg.Storage.Timeout)
	})

	t.Run("非法TTL配置返回错误", func(t *testing.T) {
		os.Setenv("TEMPMAIL_MAILBOX_INBOX_TTL", "not-a-duration")

		cfg, err := Load()

		assert.Error(t, err)
		assert.Nil(t, cfg)

		os.Unsetenv("TEMPMAIL_MAILBOX_INBOX_TTL")
	})
}
