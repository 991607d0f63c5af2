package middleware

import (
	"time"

	"github.com/labstack/echo/v4"
	"github.com/lithammer/shortuuid/v3"
	"go.uber.org/zap"

	"github.com/obichijioke/event-app-fullstack-sub004/internal/pkg/logger"
)

// RequestID はリクエストIDを付与し、ID付きのロガーをコンテキストに載せる
func RequestID() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			requestID := req.Header.Get(echo.HeaderXRequestID)
			if requestID == "" {
				requestID = shortuuid.New()
			}
			c.Response().Header().Set(echo.HeaderXRequestID, requestID)

			ctx := logger.ToContext(req.Context(), logger.With(zap.String("request_id", requestID)))
			c.SetRequest(req.WithContext(ctx))
			return next(c)
		}
	}
}

// RequestLogger はリクエストの構造化ログを出力するミドルウェア
func RequestLogger() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()

			err := next(c)
			if err != nil {
				// ステータスを確定させてからログに出す
				c.Error(err)
			}

			req := c.Request()
			res := c.Response()
			fields := []zap.Field{
				zap.String("method", req.Method),
				zap.String("path", req.URL.Path),
				zap.String("route", c.Path()),
				zap.String("query", req.URL.RawQuery),
				zap.Int("status", res.Status),
				zap.Int64("size", res.Size),
				zap.Duration("latency", time.Since(start)),
				zap.String("remote_ip", c.RealIP()),
			}

			log := logger.FromContext(req.Context())
			switch {
			case err != nil && res.Status >= 500:
				log.Error("request failed", append(fields, zap.Error(err))...)
			case res.Status >= 500:
				log.Error("server error", fields...)
			case res.Status >= 400:
				log.Warn("client error", fields...)
			default:
				log.Info("request completed", fields...)
			}

			// エラーはハンドリング済み
			return nil
		}
	}
}
