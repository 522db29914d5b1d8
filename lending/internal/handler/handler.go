package handler

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/bookhive/lending-service/lending/internal/errs"
	"github.com/bookhive/lending-service/lending/internal/model"
	"github.com/bookhive/lending-service/pkg/auth"
	"github.com/bookhive/lending-service/pkg/validate"
)

type Handler struct {
	lendingSvc LendingService
	log        *zap.Logger
}

func New(lendingSvc LendingService, log *zap.Logger) *Handler {
	return &Handler{
		lendingSvc: lendingSvc,
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
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{http.MethodGet, http.MethodOptions, http.MethodHead, http.MethodPut, http.MethodPatch, http.MethodPost, http.MethodDelete},
		AllowCredentials: true,
	}))

	base := e.Group("", newRateLimiterMW(baseRPS))
	base.GET("/manage/health", h.Health)

	e.Validator = validate.NewCustomValidator()
	api := e.Group("/api/v1",
		middleware.RequestLoggerWithConfig(requestLoggerConfig(h.log.Named("echo"))),
		middleware.RequestID(),
		newRateLimiterMW(apiRPS),
		auth.JWTAuthentication([]byte(authCfg.JWTKey)),
	)

	api.GET("/books/:bookUid/stock", h.GetStock)

	api.POST("/loans", h.CreateLoan)
	api.GET("/loans", h.GetLoans)
	api.POST("/loans/:loanUid/extend", h.ExtendLoan)

	api.POST("/reservations", h.CreateReservation)
	api.GET("/reservations", h.GetReservations)
	api.PATCH("/reservations/:reservationUid", h.UpdateReservation)
	api.DELETE("/reservations/:reservationUid", h.DeleteReservation)

	staff := api.Group("", auth.RequireStaff())
	staff.PUT("/loans/:loanUid/return", h.ReturnLoan)
	staff.PATCH("/loans/:loanUid", h.UpdateLoan)
	staff.DELETE("/loans/:loanUid", h.DeleteLoan)
	staff.POST("/reservations/cleanup-expired", h.CleanupExpiredReservations)

	return e
}

func (h *Handler) Health(c echo.Context) error {
	return c.String(http.StatusOK, "OK")
}

// httpError translates the service error taxonomy into client responses.
// Unexpected errors get logged in full and surfaced as a generic message.
func (h *Handler) httpError(err error) error {
	switch {
	case errors.Is(err, errs.ErrBookNotFound),
		errors.Is(err, errs.ErrLoanNotFound),
		errors.Is(err, errs.ErrReservationNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, errs.ErrForbidden):
		return echo.NewHTTPError(http.StatusForbidden, err.Error())
	case errors.Is(err, errs.ErrDuplicateReservation):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, errs.ErrLoanLimit),
		errors.Is(err, errs.ErrLoanReturned),
		errors.Is(err, errs.ErrMaxExtensions),
		errors.Is(err, errs.ErrNoCopies),
		errors.Is(err, errs.ErrCopiesAvailable):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	default:
		h.log.Error("internal", zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}
}

func caller(c echo.Context) (auth.Profile, error) {
	p, ok := auth.FromContext(c.Request().Context())
	if !ok {
		return auth.Profile{}, echo.NewHTTPError(http.StatusUnauthorized, "no auth context")
	}
	return p, nil
}

func (h *Handler) CreateLoan(c echo.Context) error {
	p, err := caller(c)
	if err != nil {
		return err
	}
	var req model.CreateLoanRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := c.Validate(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	resp, err := h.lendingSvc.CreateLoan(c.Request().Context(), p.Username, req)
	if err != nil {
		return h.httpError(err)
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *Handler) GetLoans(c echo.Context) error {
	p, err := caller(c)
	if err != nil {
		return err
	}
	username := p.Username
	if other := c.QueryParam("username"); other != "" && p.Role.IsStaff() {
		username = other
	}
	loans, err := h.lendingSvc.GetLoans(c.Request().Context(), username)
	if err != nil {
		return h.httpError(err)
	}
	return c.JSON(http.StatusOK, loans)
}

func (h *Handler) ReturnLoan(c echo.Context) error {
	loanUid := c.Param("loanUid")
	if loanUid == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "loanUid is empty")
	}
	resp, err := h.lendingSvc.ReturnLoan(c.Request().Context(), loanUid)
	if err != nil {
		// the return contract reports a missing or closed loan as a client
		// error, not 404
		if errors.Is(err, errs.ErrLoanNotFound) {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		return h.httpError(err)
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *Handler) ExtendLoan(c echo.Context) error {
	p, err := caller(c)
	if err != nil {
		return err
	}
	loanUid := c.Param("loanUid")
	if loanUid == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "loanUid is empty")
	}
	resp, err := h.lendingSvc.ExtendLoan(c.Request().Context(), loanUid, p)
	if err != nil {
		return h.httpError(err)
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *Handler) UpdateLoan(c echo.Context) error {
	loanUid := c.Param("loanUid")
	if loanUid == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "loanUid is empty")
	}
	var req model.UpdateLoanRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	loan, err := h.lendingSvc.UpdateLoan(c.Request().Context(), loanUid, req)
	if err != nil {
		return h.httpError(err)
	}
	return c.JSON(http.StatusOK, loan)
}

func (h *Handler) DeleteLoan(c echo.Context) error {
	loanUid := c.Param("loanUid")
	if loanUid == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "loanUid is empty")
	}
	if err := h.lendingSvc.DeleteLoan(c.Request().Context(), loanUid); err != nil {
		return h.httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) CreateReservation(c echo.Context) error {
	p, err := caller(c)
	if err != nil {
		return err
	}
	var req model.CreateReservationRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := c.Validate(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	rsv, err := h.lendingSvc.CreateReservation(c.Request().Context(), p.Username, req)
	if err != nil {
		return h.httpError(err)
	}
	return c.JSON(http.StatusCreated, rsv)
}

func (h *Handler) GetReservations(c echo.Context) error {
	p, err := caller(c)
	if err != nil {
		return err
	}
	items, err := h.lendingSvc.GetReservations(c.Request().Context(), p.Username)
	if err != nil {
		return h.httpError(err)
	}
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) UpdateReservation(c echo.Context) error {
	p, err := caller(c)
	if err != nil {
		return err
	}
	reservationUid := c.Param("reservationUid")
	if reservationUid == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "reservationUid is empty")
	}
	var req model.UpdateReservationRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	rsv, err := h.lendingSvc.UpdateReservation(c.Request().Context(), reservationUid, p, req)
	if err != nil {
		return h.httpError(err)
	}
	return c.JSON(http.StatusOK, rsv)
}

func (h *Handler) DeleteReservation(c echo.Context) error {
	p, err := caller(c)
	if err != nil {
		return err
	}
	reservationUid := c.Param("reservationUid")
	if reservationUid == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "reservationUid is empty")
	}
	if err := h.lendingSvc.DeleteReservation(c.Request().Context(), reservationUid, p); err != nil {
		return h.httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) CleanupExpiredReservations(c echo.Context) error {
	n, err := h.lendingSvc.CleanupExpiredReservations(c.Request().Context())
	if err != nil {
		return h.httpError(err)
	}
	return c.JSON(http.StatusOK, model.CleanupResponse{
		Message: fmt.Sprintf("%d expired reservations removed.", n),
	})
}

func (h *Handler) GetStock(c echo.Context) error {
	bookUid := c.Param("bookUid")
	if bookUid == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "bookUid is empty")
	}
	info, err := h.lendingSvc.GetStock(c.Request().Context(), bookUid)
	if err != nil {
		return h.httpError(err)
	}
	return c.JSON(http.StatusOK, info)
}
