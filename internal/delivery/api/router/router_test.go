package router_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"parkshare/config"
	"parkshare/internal/delivery/api"
	"parkshare/internal/delivery/api/middleware"
	"parkshare/internal/delivery/api/router"
	"parkshare/internal/delivery/api/router/handler"
	"parkshare/internal/domain/entity"
	domainerrors "parkshare/internal/domain/errors"
	"parkshare/internal/usecase"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeAuth resolves tokens from a fixed table and records the last call inputs.
type fakeAuth struct {
	usecase.AuthUsecase

	accounts   map[string]*entity.Account
	signupErr  error
	signup     *usecase.SignupInput
	confirmPin *usecase.ConfirmPinInput
}

func (f *fakeAuth) Authenticate(_ context.Context, token string) (*entity.Account, error) {
	if token == "" {
		return nil, domainerrors.ErrNotAuthenticated
	}
	account, ok := f.accounts[token]
	if !ok {
		return nil, domainerrors.ErrInvalidToken
	}

	return account, nil
}

func (f *fakeAuth) Signup(_ context.Context, input *usecase.SignupInput) (*usecase.MessageOutput, error) {
	f.signup = input
	if f.signupErr != nil {
		return nil, f.signupErr
	}

	return &usecase.MessageOutput{Message: "PIN sent"}, nil
}

func (f *fakeAuth) ConfirmPin(_ context.Context, input *usecase.ConfirmPinInput) (*usecase.SessionOutput, error) {
	f.confirmPin = input
	if input.Pin != "123456" {
		return nil, domainerrors.ErrInvalidPin
	}

	return &usecase.SessionOutput{
		Token:     "client-token",
		ExpiresAt: time.Now().Add(time.Hour),
		Account:   f.accounts["client-token"],
	}, nil
}

func (f *fakeAuth) DeactivateMe(context.Context, *entity.Account) error {
	return nil
}

type fakeParking struct {
	usecase.ParkingUsecase
}

func (fakeParking) GetParkingQRCode(context.Context, uuid.UUID, *entity.Account) ([]byte, error) {
	return []byte("png"), nil
}

func (fakeParking) WriteEarningsReport(_ context.Context, _ *entity.Account, w io.Writer) error {
	_, err := w.Write([]byte("xlsx"))

	return err
}

type fakeReservation struct {
	usecase.ReservationUsecase

	startErr error
}

func (f *fakeReservation) StartReservation(_ context.Context, parkingID uuid.UUID, renter *entity.Account) (*entity.Occupation, error) {
	if f.startErr != nil {
		return nil, f.startErr
	}

	return &entity.Occupation{ID: uuid.New(), ParkingID: parkingID, RenterID: renter.ID, State: entity.OccupationActive}, nil
}

func (f *fakeReservation) EndReservation(_ context.Context, parkingID uuid.UUID, renter *entity.Account) (*entity.Occupation, error) {
	started := time.Now().Add(-90 * time.Minute)
	occupation := &entity.Occupation{
		ID:               uuid.New(),
		ParkingID:        parkingID,
		RenterID:         renter.ID,
		State:            entity.OccupationActive,
		HourlyPriceCents: 200,
		StartedAt:        started,
	}
	occupation.Close(started.Add(90 * time.Minute))

	return occupation, nil
}

type testServer struct {
	echo        *echo.Echo
	auth        *fakeAuth
	reservation *fakeReservation
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	cfg := &config.Config{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	auth := &fakeAuth{accounts: map[string]*entity.Account{
		"client-token":   {ID: uuid.New(), Username: "alice", Email: "alice@example.com", Role: entity.RoleClient},
		"provider-token": {ID: uuid.New(), Username: "bob", Email: "bob@example.com", Role: entity.RoleProvider},
		"admin-token":    {ID: uuid.New(), Username: "root", Email: "root@example.com", Role: entity.RoleAdmin},
	}}
	reservation := &fakeReservation{}

	e := api.NewEcho(cfg, logger)
	r := router.NewRouter(router.RouterParams{
		AuthHandler: handler.NewAuthHandler(handler.AuthHandlerParams{AuthUC: auth, Config: cfg, Logger: logger}),
		AccountHandler: handler.NewAccountHandler(handler.AccountHandlerParams{
			AuthUC: auth, ParkingUC: fakeParking{}, Logger: logger,
		}),
		ParkingHandler: handler.NewParkingHandler(handler.ParkingHandlerParams{
			ParkingUC: fakeParking{}, ReservationUC: reservation, Logger: logger,
		}),
		AuthMiddleware:      middleware.NewAuthMiddleware(middleware.AuthMiddlewareParams{AuthUC: auth}),
		RateLimitMiddleware: middleware.NewRateLimitMiddleware(middleware.RateLimitMiddlewareParams{Logger: logger}),
		Config:              cfg,
	})
	r.RegisterRoutes(e)

	return &testServer{echo: e, auth: auth, reservation: reservation}
}

func (s *testServer) do(method, path, token, body string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.echo.ServeHTTP(rec, req)

	return rec
}

type envelope struct {
	Data  map[string]any `json:"data"`
	Error *struct {
		Code    string         `json:"code"`
		Message string         `json:"message"`
		Details map[string]any `json:"details"`
	} `json:"error"`
	Meta struct {
		RequestID string `json:"request_id"`
	} `json:"meta"`
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()

	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())

	return env
}

func TestRouter_Signup(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(http.MethodPost, "/signup", "",
		`{"username":"alice","email":"alice@example.com","phone":"+33612345678","password":"Str0ng!pass","passwordConfirm":"Str0ng!pass"}`)

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	env := decode(t, rec)
	assert.Equal(t, "PIN sent", env.Data["message"])
	assert.NotEmpty(t, env.Meta.RequestID)
	assert.Equal(t, env.Meta.RequestID, rec.Header().Get(echo.HeaderXRequestID))
	require.NotNil(t, s.auth.signup)
	assert.Equal(t, "alice@example.com", s.auth.signup.Email)
}

func TestRouter_Signup_ValidationDetails(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(http.MethodPost, "/signup", "",
		`{"username":"alice","email":"not-an-email","phone":"+33612345678","password":"x","passwordConfirm":"x"}`)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	env := decode(t, rec)
	require.NotNil(t, env.Error)
	assert.Equal(t, "VALIDATION_FAILED", env.Error.Code)
	assert.Contains(t, env.Error.Details, "email")
	assert.Nil(t, s.auth.signup)
}

func TestRouter_Signup_Duplicate(t *testing.T) {
	s := newTestServer(t)
	s.auth.signupErr = domainerrors.NewDuplicateKeyError("email")

	rec := s.do(http.MethodPost, "/signup", "",
		`{"username":"alice","email":"alice@example.com","phone":"+33612345678","password":"Str0ng!pass","passwordConfirm":"Str0ng!pass"}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRouter_ConfirmPin_SetsSessionCookie(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(http.MethodPost, "/confirm-pin", "", `{"identifier":"alice@example.com","pin":"123456"}`)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	env := decode(t, rec)
	assert.Equal(t, "client-token", env.Data["token"])

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, "jwt", cookies[0].Name)
	assert.Equal(t, "client-token", cookies[0].Value)
	assert.True(t, cookies[0].HttpOnly)
}

func TestRouter_ConfirmPin_WrongPin(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(http.MethodPost, "/confirm-pin", "", `{"identifier":"alice@example.com","pin":"000000"}`)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
	env := decode(t, rec)
	assert.Equal(t, "INVALID_PIN", env.Error.Code)
	assert.Empty(t, rec.Result().Cookies())
}

func TestRouter_Logout_ClearsCookie(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(http.MethodPost, "/logout", "", "")

	require.Equal(t, http.StatusOK, rec.Code)
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, "loggedout", cookies[0].Value)
}

func TestRouter_Me(t *testing.T) {
	s := newTestServer(t)

	t.Run("without token", func(t *testing.T) {
		rec := s.do(http.MethodGet, "/me", "", "")

		require.Equal(t, http.StatusUnauthorized, rec.Code)
		env := decode(t, rec)
		assert.Equal(t, "NOT_AUTHENTICATED", env.Error.Code)
		assert.Nil(t, env.Error.Details)
	})

	t.Run("with bearer token", func(t *testing.T) {
		rec := s.do(http.MethodGet, "/me", "client-token", "")

		require.Equal(t, http.StatusOK, rec.Code)
		env := decode(t, rec)
		assert.Equal(t, "alice", env.Data["username"])
		assert.NotContains(t, env.Data, "passwordHash")
	})

	t.Run("with session cookie", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		req.AddCookie(&http.Cookie{Name: "jwt", Value: "provider-token"})
		rec := httptest.NewRecorder()
		s.echo.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "bob", decode(t, rec).Data["username"])
	})

	t.Run("delete", func(t *testing.T) {
		rec := s.do(http.MethodDelete, "/me", "client-token", "")

		assert.Equal(t, http.StatusNoContent, rec.Code)
	})
}

func TestRouter_RoleRestrictions(t *testing.T) {
	s := newTestServer(t)
	parkingID := uuid.NewString()

	tests := []struct {
		name   string
		method string
		path   string
		token  string
		want   int
	}{
		{"client cannot validate", http.MethodPatch, "/" + parkingID + "/validate", "client-token", http.StatusForbidden},
		{"admin cannot start a reservation", http.MethodPatch, "/" + parkingID + "/start-reservation", "admin-token", http.StatusForbidden},
		{"client cannot list a parking", http.MethodPost, "/parkings", "client-token", http.StatusForbidden},
		{"client cannot read a qr code", http.MethodGet, "/" + parkingID + "/qrcode", "client-token", http.StatusForbidden},
		{"provider cannot delete accounts", http.MethodDelete, "/accounts/" + uuid.NewString(), "provider-token", http.StatusForbidden},
		{"client has no earnings report", http.MethodGet, "/me/earnings.xlsx", "client-token", http.StatusForbidden},
		{"unknown token", http.MethodPatch, "/" + parkingID + "/end-reservation", "forged", http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.do(tt.method, tt.path, tt.token, "")

			assert.Equal(t, tt.want, rec.Code, rec.Body.String())
		})
	}
}

func TestRouter_StartReservation(t *testing.T) {
	s := newTestServer(t)
	parkingID := uuid.New()

	rec := s.do(http.MethodPatch, "/"+parkingID.String()+"/start-reservation", "client-token", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	env := decode(t, rec)
	assert.Equal(t, parkingID.String(), env.Data["parkingId"])
	assert.Equal(t, string(entity.OccupationActive), env.Data["state"])

	s.reservation.startErr = domainerrors.ErrAlreadyOccupied
	rec = s.do(http.MethodPatch, "/"+parkingID.String()+"/start-reservation", "client-token", "")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "ALREADY_OCCUPIED", decode(t, rec).Error.Code)

	s.reservation.startErr = domainerrors.ErrConfirmationTimeout
	rec = s.do(http.MethodPatch, "/"+parkingID.String()+"/start-reservation", "client-token", "")
	assert.Equal(t, http.StatusRequestTimeout, rec.Code)
}

func TestRouter_StartReservation_MalformedID(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(http.MethodPatch, "/not-a-uuid/start-reservation", "client-token", "")

	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "PARKING_NOT_FOUND", decode(t, rec).Error.Code)
}

func TestRouter_EndReservation_ReturnsBill(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(http.MethodPatch, "/"+uuid.NewString()+"/end-reservation", "client-token", "")

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	env := decode(t, rec)
	assert.InDelta(t, 300, env.Data["billCents"], 0)
	assert.Equal(t, "3.00", env.Data["bill"])
	assert.Equal(t, string(entity.OccupationClosed), env.Data["state"])
}

func TestRouter_BinaryResponses(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(http.MethodGet, "/"+uuid.NewString()+"/qrcode", "provider-token", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get(echo.HeaderContentType))
	assert.Equal(t, "png", rec.Body.String())

	rec = s.do(http.MethodGet, "/me/earnings.xlsx", "provider-token", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get(echo.HeaderContentType), "spreadsheetml")
	assert.Contains(t, rec.Header().Get(echo.HeaderContentDisposition), "earnings.xlsx")
	assert.Equal(t, "xlsx", rec.Body.String())
}

func TestRouter_Health(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(http.MethodGet, "/health", "", "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decode(t, rec).Data["status"])
}
