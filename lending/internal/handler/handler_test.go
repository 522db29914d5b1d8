package handler_test

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/bookhive/lending-service/lending/internal/errs"
	"github.com/bookhive/lending-service/lending/internal/handler"
	"github.com/bookhive/lending-service/lending/internal/model"
	"github.com/bookhive/lending-service/pkg/auth"
	"github.com/bookhive/lending-service/pkg/validate"

	service_mocks "github.com/bookhive/lending-service/lending/internal/handler/mocks"
)

// withAuth injects an authenticated profile the way the jwt middleware does.
func withAuth(username string, role auth.Role) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx := auth.SetAuthContext(c.Request().Context(), username, role)
			c.SetRequest(c.Request().WithContext(ctx))
			return next(c)
		}
	}
}

func TestHandler_CreateLoan(t *testing.T) {
	t.Parallel()
	const username = "reader-1"
	dueDate := time.Date(2026, 9, 9, 12, 0, 0, 0, time.UTC)

	type response struct {
		expectedCode int
		expectedBody string
	}
	type mockBehavior func(r *service_mocks.MockLendingService)

	var tests = []struct {
		name         string
		body         string
		mockBehavior mockBehavior
		response     response
		wantErr      bool
	}{
		{
			name: "ok",
			body: `{"bookUid":"f7cdc58f-2caf-4b15-9727-f89dcc629b27"}`,
			mockBehavior: func(r *service_mocks.MockLendingService) {
				r.EXPECT().
					CreateLoan(gomock.Any(), username, model.CreateLoanRequest{BookUid: "f7cdc58f-2caf-4b15-9727-f89dcc629b27"}).
					Return(model.CreateLoanResponse{
						Message: "book loaned",
						LoanUid: "5539a50a-91ed-4f9c-b6b4-2e776fc0e3f2",
						DueDate: dueDate,
					}, nil)
			},
			response: response{
				expectedCode: http.StatusOK,
				expectedBody: `{"message":"book loaned","loanUid":"5539a50a-91ed-4f9c-b6b4-2e776fc0e3f2","dueDate":"2026-09-09T12:00:00Z"}`,
			},
			wantErr: false,
		},
		{
			name:         "err. bookUid not a uuid",
			body:         `{"bookUid":"not-a-uuid"}`,
			mockBehavior: func(r *service_mocks.MockLendingService) {},
			response: response{
				expectedCode: http.StatusBadRequest,
			},
			wantErr: true,
		},
		{
			name: "err. loan limit",
			body: `{"bookUid":"f7cdc58f-2caf-4b15-9727-f89dcc629b27"}`,
			mockBehavior: func(r *service_mocks.MockLendingService) {
				r.EXPECT().
					CreateLoan(gomock.Any(), username, gomock.Any()).
					Return(model.CreateLoanResponse{}, errs.ErrLoanLimit)
			},
			response: response{
				expectedCode: http.StatusBadRequest,
				expectedBody: `{"message":"active loan limit reached"}`,
			},
			wantErr: true,
		},
		{
			name: "err. no copies",
			body: `{"bookUid":"f7cdc58f-2caf-4b15-9727-f89dcc629b27"}`,
			mockBehavior: func(r *service_mocks.MockLendingService) {
				r.EXPECT().
					CreateLoan(gomock.Any(), username, gomock.Any()).
					Return(model.CreateLoanResponse{}, errs.ErrNoCopies)
			},
			response: response{
				expectedCode: http.StatusBadRequest,
				expectedBody: `{"message":"no copies available"}`,
			},
			wantErr: true,
		},
		{
			name: "err. book not found",
			body: `{"bookUid":"f7cdc58f-2caf-4b15-9727-f89dcc629b27"}`,
			mockBehavior: func(r *service_mocks.MockLendingService) {
				r.EXPECT().
					CreateLoan(gomock.Any(), username, gomock.Any()).
					Return(model.CreateLoanResponse{}, errs.ErrBookNotFound)
			},
			response: response{
				expectedCode: http.StatusNotFound,
				expectedBody: `{"message":"book not found"}`,
			},
			wantErr: true,
		},
		{
			name: "err. internal is not leaked",
			body: `{"bookUid":"f7cdc58f-2caf-4b15-9727-f89dcc629b27"}`,
			mockBehavior: func(r *service_mocks.MockLendingService) {
				r.EXPECT().
					CreateLoan(gomock.Any(), username, gomock.Any()).
					Return(model.CreateLoanResponse{}, errors.New("pq: connection reset"))
			},
			response: response{
				expectedCode: http.StatusInternalServerError,
				expectedBody: `{"message":"internal error"}`,
			},
			wantErr: true,
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			c := gomock.NewController(t)
			defer c.Finish()
			svc := service_mocks.NewMockLendingService(c)
			log := zap.NewExample().Named("test")
			h := handler.New(svc, log)

			e := echo.New()
			e.Validator = validate.NewCustomValidator()
			e.POST("/loans", h.CreateLoan, withAuth(username, auth.RoleUser))

			r := httptest.NewRequest(http.MethodPost, "/loans", strings.NewReader(tt.body))
			r.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
			w := httptest.NewRecorder()

			tt.mockBehavior(svc)
			e.ServeHTTP(w, r)

			require.Equal(t, tt.response.expectedCode, w.Code)
			if tt.response.expectedBody != "" {
				require.Equal(t, tt.response.expectedBody, strings.Trim(w.Body.String(), "\n"))
			}
		})
	}
}

func TestHandler_ReturnLoan(t *testing.T) {
	t.Parallel()
	const loanUid = "5539a50a-91ed-4f9c-b6b4-2e776fc0e3f2"

	type response struct {
		expectedCode int
		expectedBody string
	}
	type mockBehavior func(r *service_mocks.MockLendingService)

	var tests = []struct {
		name         string
		loanUid      string
		mockBehavior mockBehavior
		response     response
		wantErr      bool
	}{
		{
			name:    "ok. hold notified with fine",
			loanUid: loanUid,
			mockBehavior: func(r *service_mocks.MockLendingService) {
				r.EXPECT().
					ReturnLoan(gomock.Any(), loanUid).
					Return(model.ReturnLoanResponse{
						Message:             "book returned",
						ReservationNotified: true,
						Fine:                20,
					}, nil)
			},
			response: response{
				expectedCode: http.StatusOK,
				expectedBody: `{"message":"book returned","reservationNotified":true,"fine":20}`,
			},
			wantErr: false,
		},
		{
			name:    "err. unknown loan is a client error",
			loanUid: loanUid,
			mockBehavior: func(r *service_mocks.MockLendingService) {
				r.EXPECT().
					ReturnLoan(gomock.Any(), loanUid).
					Return(model.ReturnLoanResponse{}, errs.ErrLoanNotFound)
			},
			response: response{
				expectedCode: http.StatusBadRequest,
				expectedBody: `{"message":"loan not found"}`,
			},
			wantErr: true,
		},
		{
			name:    "err. already returned",
			loanUid: loanUid,
			mockBehavior: func(r *service_mocks.MockLendingService) {
				r.EXPECT().
					ReturnLoan(gomock.Any(), loanUid).
					Return(model.ReturnLoanResponse{}, errs.ErrLoanReturned)
			},
			response: response{
				expectedCode: http.StatusBadRequest,
				expectedBody: `{"message":"loan already returned"}`,
			},
			wantErr: true,
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			c := gomock.NewController(t)
			defer c.Finish()
			svc := service_mocks.NewMockLendingService(c)
			log := zap.NewExample().Named("test")
			h := handler.New(svc, log)

			e := echo.New()
			e.Validator = validate.NewCustomValidator()
			e.PUT("/loans/:loanUid/return", h.ReturnLoan, withAuth("librarian-1", auth.RoleLibrarian))

			r := httptest.NewRequest(http.MethodPut, fmt.Sprintf("/loans/%s/return", tt.loanUid), http.NoBody)
			r.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
			w := httptest.NewRecorder()

			tt.mockBehavior(svc)
			e.ServeHTTP(w, r)

			require.Equal(t, tt.response.expectedCode, w.Code)
			require.Equal(t, tt.response.expectedBody, strings.Trim(w.Body.String(), "\n"))
		})
	}
}

func TestHandler_ExtendLoan(t *testing.T) {
	t.Parallel()
	const (
		username = "reader-1"
		loanUid  = "5539a50a-91ed-4f9c-b6b4-2e776fc0e3f2"
	)
	caller := auth.Profile{Username: username, Role: auth.RoleUser}
	dueDate := time.Date(2026, 9, 23, 12, 0, 0, 0, time.UTC)

	type response struct {
		expectedCode int
		expectedBody string
	}
	type mockBehavior func(r *service_mocks.MockLendingService)

	var tests = []struct {
		name         string
		mockBehavior mockBehavior
		response     response
		wantErr      bool
	}{
		{
			name: "ok",
			mockBehavior: func(r *service_mocks.MockLendingService) {
				r.EXPECT().
					ExtendLoan(gomock.Any(), loanUid, caller).
					Return(model.ExtendLoanResponse{DueDate: dueDate, Extensions: 1}, nil)
			},
			response: response{
				expectedCode: http.StatusOK,
				expectedBody: `{"dueDate":"2026-09-23T12:00:00Z","extensions":1}`,
			},
			wantErr: false,
		},
		{
			name: "err. not the borrower",
			mockBehavior: func(r *service_mocks.MockLendingService) {
				r.EXPECT().
					ExtendLoan(gomock.Any(), loanUid, caller).
					Return(model.ExtendLoanResponse{}, errs.ErrForbidden)
			},
			response: response{
				expectedCode: http.StatusForbidden,
				expectedBody: `{"message":"operation is not permitted for this user"}`,
			},
			wantErr: true,
		},
		{
			name: "err. extension limit",
			mockBehavior: func(r *service_mocks.MockLendingService) {
				r.EXPECT().
					ExtendLoan(gomock.Any(), loanUid, caller).
					Return(model.ExtendLoanResponse{}, errs.ErrMaxExtensions)
			},
			response: response{
				expectedCode: http.StatusBadRequest,
				expectedBody: `{"message":"loan extension limit reached"}`,
			},
			wantErr: true,
		},
		{
			name: "err. loan not found",
			mockBehavior: func(r *service_mocks.MockLendingService) {
				r.EXPECT().
					ExtendLoan(gomock.Any(), loanUid, caller).
					Return(model.ExtendLoanResponse{}, errs.ErrLoanNotFound)
			},
			response: response{
				expectedCode: http.StatusNotFound,
				expectedBody: `{"message":"loan not found"}`,
			},
			wantErr: true,
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			c := gomock.NewController(t)
			defer c.Finish()
			svc := service_mocks.NewMockLendingService(c)
			log := zap.NewExample().Named("test")
			h := handler.New(svc, log)

			e := echo.New()
			e.Validator = validate.NewCustomValidator()
			e.POST("/loans/:loanUid/extend", h.ExtendLoan, withAuth(username, auth.RoleUser))

			r := httptest.NewRequest(http.MethodPost, fmt.Sprintf("/loans/%s/extend", loanUid), http.NoBody)
			r.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
			w := httptest.NewRecorder()

			tt.mockBehavior(svc)
			e.ServeHTTP(w, r)

			require.Equal(t, tt.response.expectedCode, w.Code)
			require.Equal(t, tt.response.expectedBody, strings.Trim(w.Body.String(), "\n"))
		})
	}
}

func TestHandler_CreateReservation(t *testing.T) {
	t.Parallel()
	const username = "reader-1"
	createdAt := time.Date(2026, 8, 26, 10, 0, 0, 0, time.UTC)

	type response struct {
		expectedCode int
		expectedBody string
	}
	type mockBehavior func(r *service_mocks.MockLendingService)

	var tests = []struct {
		name         string
		body         string
		mockBehavior mockBehavior
		response     response
		wantErr      bool
	}{
		{
			name: "ok",
			body: `{"bookUid":"f7cdc58f-2caf-4b15-9727-f89dcc629b27"}`,
			mockBehavior: func(r *service_mocks.MockLendingService) {
				r.EXPECT().
					CreateReservation(gomock.Any(), username, model.CreateReservationRequest{BookUid: "f7cdc58f-2caf-4b15-9727-f89dcc629b27"}).
					Return(model.Reservation{
						ReservationUid: "0e3e9dbd-429b-4c54-8a7f-1a6608bf4e92",
						Username:       username,
						BookUid:        "f7cdc58f-2caf-4b15-9727-f89dcc629b27",
						Status:         model.StatusPending,
						CreatedAt:      createdAt,
					}, nil)
			},
			response: response{
				expectedCode: http.StatusCreated,
				expectedBody: `{"reservationUid":"0e3e9dbd-429b-4c54-8a7f-1a6608bf4e92","username":"reader-1","bookUid":"f7cdc58f-2caf-4b15-9727-f89dcc629b27","status":"PENDING","createdAt":"2026-08-26T10:00:00Z"}`,
			},
			wantErr: false,
		},
		{
			name: "err. duplicate reservation",
			body: `{"bookUid":"f7cdc58f-2caf-4b15-9727-f89dcc629b27"}`,
			mockBehavior: func(r *service_mocks.MockLendingService) {
				r.EXPECT().
					CreateReservation(gomock.Any(), username, gomock.Any()).
					Return(model.Reservation{}, errs.ErrDuplicateReservation)
			},
			response: response{
				expectedCode: http.StatusConflict,
				expectedBody: `{"message":"active reservation for this book already exists"}`,
			},
			wantErr: true,
		},
		{
			name: "err. copies available",
			body: `{"bookUid":"f7cdc58f-2caf-4b15-9727-f89dcc629b27"}`,
			mockBehavior: func(r *service_mocks.MockLendingService) {
				r.EXPECT().
					CreateReservation(gomock.Any(), username, gomock.Any()).
					Return(model.Reservation{}, errs.ErrCopiesAvailable)
			},
			response: response{
				expectedCode: http.StatusBadRequest,
				expectedBody: `{"message":"copies are available, borrow the book instead of reserving"}`,
			},
			wantErr: true,
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			c := gomock.NewController(t)
			defer c.Finish()
			svc := service_mocks.NewMockLendingService(c)
			log := zap.NewExample().Named("test")
			h := handler.New(svc, log)

			e := echo.New()
			e.Validator = validate.NewCustomValidator()
			e.POST("/reservations", h.CreateReservation, withAuth(username, auth.RoleUser))

			r := httptest.NewRequest(http.MethodPost, "/reservations", strings.NewReader(tt.body))
			r.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
			w := httptest.NewRecorder()

			tt.mockBehavior(svc)
			e.ServeHTTP(w, r)

			require.Equal(t, tt.response.expectedCode, w.Code)
			require.Equal(t, tt.response.expectedBody, strings.Trim(w.Body.String(), "\n"))
		})
	}
}

func TestHandler_CleanupExpiredReservations(t *testing.T) {
	t.Parallel()

	type response struct {
		expectedCode int
		expectedBody string
	}
	type mockBehavior func(r *service_mocks.MockLendingService)

	var tests = []struct {
		name         string
		mockBehavior mockBehavior
		response     response
	}{
		{
			name: "ok",
			mockBehavior: func(r *service_mocks.MockLendingService) {
				r.EXPECT().
					CleanupExpiredReservations(gomock.Any()).
					Return(3, nil)
			},
			response: response{
				expectedCode: http.StatusOK,
				expectedBody: `{"message":"3 expired reservations removed."}`,
			},
		},
		{
			name: "ok. nothing expired",
			mockBehavior: func(r *service_mocks.MockLendingService) {
				r.EXPECT().
					CleanupExpiredReservations(gomock.Any()).
					Return(0, nil)
			},
			response: response{
				expectedCode: http.StatusOK,
				expectedBody: `{"message":"0 expired reservations removed."}`,
			},
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			c := gomock.NewController(t)
			defer c.Finish()
			svc := service_mocks.NewMockLendingService(c)
			log := zap.NewExample().Named("test")
			h := handler.New(svc, log)

			e := echo.New()
			e.Validator = validate.NewCustomValidator()
			e.POST("/reservations/cleanup-expired", h.CleanupExpiredReservations, withAuth("admin-1", auth.RoleAdmin))

			r := httptest.NewRequest(http.MethodPost, "/reservations/cleanup-expired", http.NoBody)
			r.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
			w := httptest.NewRecorder()

			tt.mockBehavior(svc)
			e.ServeHTTP(w, r)

			require.Equal(t, tt.response.expectedCode, w.Code)
			require.Equal(t, tt.response.expectedBody, strings.Trim(w.Body.String(), "\n"))
		})
	}
}

func TestHandler_GetStock(t *testing.T) {
	t.Parallel()
	const bookUid = "f7cdc58f-2caf-4b15-9727-f89dcc629b27"

	type response struct {
		expectedCode int
		expectedBody string
	}
	type mockBehavior func(r *service_mocks.MockLendingService)

	var tests = []struct {
		name         string
		mockBehavior mockBehavior
		response     response
	}{
		{
			name: "ok",
			mockBehavior: func(r *service_mocks.MockLendingService) {
				r.EXPECT().
					GetStock(gomock.Any(), bookUid).
					Return(model.StockInfo{BookUid: bookUid, Quantity: 2, IsAvailable: true}, nil)
			},
			response: response{
				expectedCode: http.StatusOK,
				expectedBody: `{"bookUid":"f7cdc58f-2caf-4b15-9727-f89dcc629b27","quantity":2,"isAvailable":true}`,
			},
		},
		{
			name: "err. book not found",
			mockBehavior: func(r *service_mocks.MockLendingService) {
				r.EXPECT().
					GetStock(gomock.Any(), bookUid).
					Return(model.StockInfo{}, errs.ErrBookNotFound)
			},
			response: response{
				expectedCode: http.StatusNotFound,
				expectedBody: `{"message":"book not found"}`,
			},
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			c := gomock.NewController(t)
			defer c.Finish()
			svc := service_mocks.NewMockLendingService(c)
			log := zap.NewExample().Named("test")
			h := handler.New(svc, log)

			e := echo.New()
			e.Validator = validate.NewCustomValidator()
			e.GET("/books/:bookUid/stock", h.GetStock, withAuth("reader-1", auth.RoleUser))

			r := httptest.NewRequest(http.MethodGet, fmt.Sprintf("/books/%s/stock", bookUid), http.NoBody)
			r.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
			w := httptest.NewRecorder()

			tt.mockBehavior(svc)
			e.ServeHTTP(w, r)

			require.Equal(t, tt.response.expectedCode, w.Code)
			require.Equal(t, tt.response.expectedBody, strings.Trim(w.Body.String(), "\n"))
		})
	}
}
