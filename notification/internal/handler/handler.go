package handler

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/time/rate"

	"github.com/bookhive/lending-service/notification/internal/model"
	"github.com/bookhive/lending-service/notification/internal/service"
	"github.com/bookhive/lending-service/pkg/auth"
)

type NotificationService interface {
	GetNotifications(ctx context.Context, username string) ([]model.Notification, error)
}

var _ NotificationService = (*service.Service)(nil)

type Handler struct {
	notificationSvc NotificationService
	log             *zap.Logger
}

func New(notificationSvc NotificationService, log *zap.Logger) *Handler {
	return &Handler{
		notificationSvc: notificationSvc,
		log:             log,
	}
}

func (h *Handler) NewRouter(authCfg auth.Config) *echo.Echo {
	e := echo.New()
	const (
		baseRPS = 10
		apiRPS  = 100
	)
	e.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{
		StackSize: 4 << 10, // 4 KB
	}))

	base := e.Group("", middleware.RateLimiter(middleware.NewRateLimiterMemoryStore(rate.Limit(baseRPS))))
	base.GET("/manage/health", h.Health)

	api := e.Group("/api/v1",
		middleware.RequestLoggerWithConfig(h.requestLoggerConfig()),
		middleware.RequestID(),
		middleware.RateLimiter(middleware.NewRateLimiterMemoryStore(rate.Limit(apiRPS))),
		auth.JWTAuthentication([]byte(authCfg.JWTKey)),
	)

	api.GET("/notifications", h.GetNotifications)

	return e
}

func (h *Handler) Health(c echo.Context) error {
	return c.String(http.StatusOK, "OK")
}

func (h *Handler) GetNotifications(c echo.Context) error {
	p, ok := auth.FromContext(c.Request().Context())
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "no auth context")
	}
	items, err := h.notificationSvc.GetNotifications(c.Request().Context(), p.Username)
	if err != nil {
		h.log.Error("GetNotifications", zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) requestLoggerConfig() middleware.RequestLoggerConfig {
	log := h.log.Named("echo")
	return middleware.RequestLoggerConfig{
		LogURI:       true,
		LogStatus:    true,
		HandleError:  true,
		LogError:     true,
		LogLatency:   true,
		LogRequestID: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			level := zapcore.InfoLevel
			if v.Error != nil {
				level = zapcore.ErrorLevel
			}
			log.Log(level, "request",
				zap.String("URI", v.URI),
				zap.String("Method", v.Method),
				zap.Int("status", v.Status),
				zap.Duration("latency", v.Latency),
				zap.Error(v.Error),
				zap.String("request_id", v.RequestID),
			)
			return nil
		},
	}
}
