package controller

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"postback-relay/internal/config"
	"postback-relay/internal/model"

	mockservice "postback-relay/internal/testdata/mockservice"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

type pingerFunc func(ctx context.Context) error

func (f pingerFunc) Ping(ctx context.Context) error { return f(ctx) }

type ControllerTestSuite struct {
	suite.Suite
	app     *fiber.App
	cfg     *config.Config
	service *mockservice.Service
	storeUp bool
}

func TestControllerSuite(t *testing.T) {
	suite.Run(t, new(ControllerTestSuite))
}

func (s *ControllerTestSuite) SetupTest() {
	s.service = &mockservice.Service{}
	s.storeUp = true
	s.cfg = &config.Config{ServiceName: "keitaro_integration", PostbackKind: []string{"keitaro"}}
	store := pingerFunc(func(context.Context) error {
		if s.storeUp {
			return nil
		}
		return errors.New("connection refused")
	})

	ctrl := NewPostbackController(s.service, s.cfg, store)
	s.app = fiber.New()
	s.app.Post("/integrations/:kind/postback", ctrl.ReceivePostback)
	s.app.Get("/health", ctrl.Health)
	s.app.Get("/ready", ctrl.Ready)
}

func (s *ControllerTestSuite) TearDownTest() {
	s.service.AssertExpectations(s.T())
}

func (s *ControllerTestSuite) TestReceivePostback_PassesRequestThrough() {
	body := `status=lead&transaction_id=tx1`
	s.service.On("Process", mock.Anything, mock.MatchedBy(func(req model.PostbackRequest) bool {
		return req.Kind == "keitaro" &&
			req.Secret == "abc123" &&
			req.ContentType == "application/x-www-form-urlencoded" &&
			string(req.Body) == body &&
			req.RequestID != ""
	})).Return(model.Outcome{Status: model.OutcomeOK, EventID: 1}).Once()

	status, resp := s.post("/integrations/keitaro/postback?secret=abc123", "application/x-www-form-urlencoded", body)

	require.Equal(s.T(), http.StatusOK, status)
	s.JSONEq(`{"ok":true}`, resp)
}

func (s *ControllerTestSuite) TestReceivePostback_AppliesRequestTimeout() {
	s.cfg.RequestTimeout = 5 * time.Second
	var processCtx context.Context
	s.service.On("Process", mock.MatchedBy(func(ctx context.Context) bool {
		deadline, ok := ctx.Deadline()
		return ok && time.Until(deadline) <= 5*time.Second
	}), mock.Anything).Run(func(args mock.Arguments) {
		processCtx = args.Get(0).(context.Context)
	}).Return(model.Outcome{Status: model.OutcomeOK}).Once()

	status, _ := s.post("/integrations/keitaro/postback?secret=abc123", "application/json", `{}`)

	s.Equal(http.StatusOK, status)
	s.Require().NotNil(processCtx)
	s.ErrorIs(processCtx.Err(), context.Canceled)
}

func (s *ControllerTestSuite) TestReceivePostback_NoTimeoutMeansNoDeadline() {
	s.service.On("Process", mock.MatchedBy(func(ctx context.Context) bool {
		_, ok := ctx.Deadline()
		return !ok
	}), mock.Anything).Return(model.Outcome{Status: model.OutcomeOK}).Once()

	status, _ := s.post("/integrations/keitaro/postback?secret=abc123", "application/json", `{}`)
	s.Equal(http.StatusOK, status)
}

func (s *ControllerTestSuite) TestReceivePostback_OutcomesAreAlways200() {
	cases := []struct {
		outcome model.OutcomeStatus
		body    string
	}{
		{model.OutcomeDuplicate, `{"ok":true,"dedup":true}`},
		{model.OutcomeNotRouted, `{"ok":true,"routed":false}`},
		{model.OutcomeForbidden, `{"ok":false,"error":"forbidden"}`},
		{model.OutcomeRateLimited, `{"ok":false,"error":"rate_limit_exceeded"}`},
		{model.OutcomeSendFailed, `{"ok":false,"error":"send_failed"}`},
		{model.OutcomeInternalError, `{"ok":false,"error":"internal_error"}`},
	}

	for _, tc := range cases {
		s.service.On("Process", mock.Anything, mock.Anything).Return(model.Outcome{Status: tc.outcome}).Once()

		status, resp := s.post("/integrations/keitaro/postback?secret=abc123", "application/json", `{}`)

		s.Equal(http.StatusOK, status, tc.outcome.String())
		s.JSONEq(tc.body, resp, tc.outcome.String())
	}
}

func (s *ControllerTestSuite) TestReceivePostback_UnknownKindIsForbidden() {
	status, resp := s.post("/integrations/binom/postback?secret=abc123", "application/json", `{}`)

	require.Equal(s.T(), http.StatusOK, status)
	s.JSONEq(`{"ok":false,"error":"forbidden"}`, resp)
	s.service.AssertNotCalled(s.T(), "Process", mock.Anything, mock.Anything)
}

func (s *ControllerTestSuite) TestHealth() {
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	resp, err := s.app.Test(req, -1)
	require.NoError(s.T(), err)

	require.Equal(s.T(), http.StatusOK, resp.StatusCode)
	var body map[string]string
	require.NoError(s.T(), json.NewDecoder(resp.Body).Decode(&body))
	s.Equal(map[string]string{"status": "ok", "service": "keitaro_integration"}, body)
}

func (s *ControllerTestSuite) TestReady() {
	req := httptest.NewRequest(http.MethodGet, "/ready", nil)
	resp, err := s.app.Test(req, -1)
	require.NoError(s.T(), err)
	s.Equal(http.StatusOK, resp.StatusCode)

	s.storeUp = false
	req = httptest.NewRequest(http.MethodGet, "/ready", nil)
	resp, err = s.app.Test(req, -1)
	require.NoError(s.T(), err)
	s.Equal(http.StatusServiceUnavailable, resp.StatusCode)
}

func (s *ControllerTestSuite) post(target, contentType, body string) (int, string) {
	req := httptest.NewRequest(http.MethodPost, target, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", contentType)

	resp, err := s.app.Test(req, -1)
	require.NoError(s.T(), err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(s.T(), err)
	return resp.StatusCode, string(raw)
}
