package delivery

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"postback-relay/internal/model"
)

type TelegramSenderTestSuite struct {
	suite.Suite

	server   *httptest.Server
	handler  http.HandlerFunc
	lastPath string
	lastBody map[string]any
}

func TestTelegramSender(t *testing.T) {
	suite.Run(t, new(TelegramSenderTestSuite))
}

func (s *TelegramSenderTestSuite) SetupTest() {
	s.lastPath = ""
	s.lastBody = nil
	s.handler = func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"ok":true,"result":{"message_id":1}}`)
	}
	s.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.lastPath = r.URL.Path
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &s.lastBody)
		s.handler(w, r)
	}))
}

func (s *TelegramSenderTestSuite) TearDownTest() {
	s.server.Close()
}

func (s *TelegramSenderTestSuite) sender() *TelegramSender {
	return NewTelegramSender(s.server.URL+"/", "123:abc", 2*time.Second)
}

func (s *TelegramSenderTestSuite) TestSend_Success() {
	topic := int64(77)

	err := s.sender().Send(context.Background(), model.Destination{ChatID: -100222, TopicID: &topic}, "<b>hi</b>")
	s.Require().NoError(err)

	s.Equal("/bot123:abc/sendMessage", s.lastPath)
	s.Equal(float64(-100222), s.lastBody["chat_id"])
	s.Equal(float64(77), s.lastBody["message_thread_id"])
	s.Equal("<b>hi</b>", s.lastBody["text"])
	s.Equal("HTML", s.lastBody["parse_mode"])
}

func (s *TelegramSenderTestSuite) TestSend_NoTopicOmitsThreadID() {
	err := s.sender().Send(context.Background(), model.Destination{ChatID: -100111}, "x")
	s.Require().NoError(err)

	_, present := s.lastBody["message_thread_id"]
	s.False(present)
}

func (s *TelegramSenderTestSuite) TestSend_ZeroTopicOmitsThreadID() {
	zero := int64(0)

	err := s.sender().Send(context.Background(), model.Destination{ChatID: -100111, TopicID: &zero}, "x")
	s.Require().NoError(err)

	_, present := s.lastBody["message_thread_id"]
	s.False(present)
}

func (s *TelegramSenderTestSuite) TestSend_APIError() {
	s.handler = func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, `{"ok":false,"error_code":400,"description":"Bad Request: chat not found"}`)
	}

	err := s.sender().Send(context.Background(), model.Destination{ChatID: 1}, "x")

	var apiErr *APIError
	s.Require().True(errors.As(err, &apiErr))
	s.Equal(http.StatusBadRequest, apiErr.StatusCode)
	s.Equal("Bad Request: chat not found", apiErr.Description)
}

func (s *TelegramSenderTestSuite) TestSend_NonJSONFailure() {
	s.handler = func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = io.WriteString(w, "upstream down")
	}

	err := s.sender().Send(context.Background(), model.Destination{ChatID: 1}, "x")

	var apiErr *APIError
	s.Require().True(errors.As(err, &apiErr))
	s.Equal(http.StatusBadGateway, apiErr.StatusCode)
	s.Equal("upstream down", apiErr.Description)
}

func (s *TelegramSenderTestSuite) TestSend_CancelledContext() {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := s.sender().Send(ctx, model.Destination{ChatID: 1}, "x")

	s.ErrorIs(err, context.Canceled)
	s.Empty(s.lastPath, "no request is made for a cancelled context")
}

func (s *TelegramSenderTestSuite) TestSend_ServerUnreachable() {
	s.server.Close()

	err := s.sender().Send(context.Background(), model.Destination{ChatID: 1}, "x")
	s.Error(err)
}

func (s *TelegramSenderTestSuite) TestLogSender() {
	topic := int64(3)
	s.NoError(LogSender{}.Send(context.Background(), model.Destination{ChatID: 1, TopicID: &topic}, "x"))
}
