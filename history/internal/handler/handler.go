package handler

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/bookhive/lending-service/history/internal/model"
	"github.com/bookhive/lending-service/history/internal/service"
	"github.com/bookhive/lending-service/pkg/auth"
)

type HistoryService interface {
	GetEntries(ctx context.Context, username string) ([]model.Entry, error)
}

var _ HistoryService = (*service.Service)(nil)

type Handler struct {
	historySvc HistoryService
	log        *zap.Logger
}

func New(historySvc HistoryService, log *zap.Logger) *Handler {
	return &Handler{
		historySvc: historySvc,
		log:        log,
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
		middleware.RequestID(),
		middleware.RateLimiter(middleware.NewRateLimiterMemoryStore(rate.Limit(apiRPS))),
		auth.JWTAuthentication([]byte(authCfg.JWTKey)),
	)

	api.GET("/history", h.GetHistory)

	return e
}

func (h *Handler) Health(c echo.Context) error {
	return c.String(http.StatusOK, "OK")
}

// GetHistory returns the caller's audit trail; staff may query any user via
// the username query param.
func (h *Handler) GetHistory(c echo.Context) error {
	p, ok := auth.FromContext(c.Request().Context())
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "no auth context")
	}
	username := p.Username
	if other := c.QueryParam("username"); other != "" {
		if !p.Role.IsStaff() {
			return echo.NewHTTPError(http.StatusForbidden, "InsufficientRole")
		}
		username = other
	}
	items, err := h.historySvc.GetEntries(c.Request().Context(), username)
	if err != nil {
		h.log.Error("GetHistory", zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}
	return c.JSON(http.StatusOK, items)
}
