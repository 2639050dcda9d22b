// Package monitor 把非预期错误上报 Sentry
package monitor

import (
	"time"

	"github.com/getsentry/sentry-go"
	sentrygin "github.com/getsentry/sentry-go/gin"
	"github.com/gin-gonic/gin"

	"github.com/d60-Lab/clicker/config"
)

// Init DSN 为空时不启用，返回 false
func Init(cfg config.SentryConfig, release string) (bool, error) {
	if cfg.DSN == "" {
		return false, nil
	}
	err := sentry.Init(sentry.ClientOptions{
		Dsn:              cfg.DSN,
		Environment:      cfg.Environment,
		Release:          release,
		AttachStacktrace: true,
	})
	if err != nil {
		return false, err
	}
	return true, nil
}

// Capture 上报一个错误；未初始化时为空操作
func Capture(err error) {
	if err == nil {
		return
	}
	sentry.CaptureException(err)
}

// Flush 退出前等待事件发送
func Flush() {
	sentry.Flush(2 * time.Second)
}

// GinErrors 把 5xx 请求上挂的错误上报；需挂在 sentrygin 之后
func GinErrors() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		if c.Writer.Status() < 500 || len(c.Errors) == 0 {
			return
		}
		hub := sentrygin.GetHubFromContext(c)
		if hub == nil {
			hub = sentry.CurrentHub()
		}
		for _, e := range c.Errors {
			hub.CaptureException(e.Err)
		}
	}
}
