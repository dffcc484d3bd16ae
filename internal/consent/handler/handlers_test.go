package handler

// Handler tests cover HTTP status mapping, body parsing and the authorization
// hook. Ledger semantics are covered by the service suite and e2e features.

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"dsrengine/internal/consent/handler/mocks"
	"dsrengine/internal/consent/models"
	id "dsrengine/pkg/domain"
	dErrors "dsrengine/pkg/domain-errors"
)

type ConsentHandlerSuite struct {
	suite.Suite
	ctrl    *gomock.Controller
	service *mocks.MockService
	authz   *mocks.MockAuthorizer
	router  chi.Router
}

func TestConsentHandlerSuite(t *testing.T) {
	suite.Run(t, new(ConsentHandlerSuite))
}

func (s *ConsentHandlerSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.service = mocks.NewMockService(s.ctrl)
	s.authz = mocks.NewMockAuthorizer(s.ctrl)
	h := New(s.service, s.authz, slog.New(slog.NewTextHandler(io.Discard, nil)))
	s.router = chi.NewRouter()
	h.Register(s.router)
}

func (s *ConsentHandlerSuite) do(method, target string, body any) *httptest.ResponseRecorder {
	var reader io.Reader = http.NoBody
	if body != nil {
		raw, err := json.Marshal(body)
		s.Require().NoError(err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, target, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *ConsentHandlerSuite) assertStatusAndError(w *httptest.ResponseRecorder, status int, code string) {
	s.Equal(status, w.Code)
	var body map[string]string
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &body))
	s.Equal(code, body["error"])
}

func (s *ConsentHandlerSuite) TestRecordConsent() {
	s.Run("returns changed and version", func() {
		s.authz.EXPECT().AuthorizeUser(gomock.Any(), "u1").Return(nil)
		s.service.EXPECT().RecordConsent(gomock.Any(), id.UserID("u1"), "marketing", true).
			Return(&models.RecordResult{Changed: true, Version: 1}, nil)

		w := s.do(http.MethodPost, "/consent", map[string]any{"user_id": "u1", "purpose": "Marketing", "granted": true})

		s.Equal(http.StatusOK, w.Code)
		s.JSONEq(`{"changed":true,"version":1}`, w.Body.String())
	})

	s.Run("missing granted is a validation error", func() {
		w := s.do(http.MethodPost, "/consent", map[string]any{"user_id": "u1", "purpose": "marketing"})
		s.assertStatusAndError(w, http.StatusBadRequest, "validation_error")
	})

	s.Run("unknown fields are rejected", func() {
		w := s.do(http.MethodPost, "/consent", map[string]any{"user_id": "u1", "purpose": "marketing", "granted": true, "expires": "never"})
		s.assertStatusAndError(w, http.StatusBadRequest, "bad_request")
	})

	s.Run("caller acting on another user is forbidden", func() {
		s.authz.EXPECT().AuthorizeUser(gomock.Any(), "u2").Return(dErrors.New(dErrors.CodeForbidden, "forbidden"))
		w := s.do(http.MethodPost, "/consent", map[string]any{"user_id": "u2", "purpose": "marketing", "granted": false})
		s.assertStatusAndError(w, http.StatusForbidden, "forbidden")
	})

	s.Run("undeclared purpose maps to 400", func() {
		s.authz.EXPECT().AuthorizeUser(gomock.Any(), "u1").Return(nil)
		s.service.EXPECT().RecordConsent(gomock.Any(), id.UserID("u1"), "telepathy", true).
			Return(nil, dErrors.New(dErrors.CodeValidation, "undeclared purpose: telepathy"))
		w := s.do(http.MethodPost, "/consent", map[string]any{"user_id": "u1", "purpose": "telepathy", "granted": true})
		s.assertStatusAndError(w, http.StatusBadRequest, "validation_error")
	})
}

func (s *ConsentHandlerSuite) TestCurrentConsent() {
	s.Run("returns granted flag", func() {
		s.authz.EXPECT().AuthorizeUser(gomock.Any(), "u1").Return(nil)
		s.service.EXPECT().CurrentConsent(gomock.Any(), id.UserID("u1"), "marketing").Return(false, nil)

		w := s.do(http.MethodGet, "/consent?user_id=u1&purpose=marketing", nil)
		s.Equal(http.StatusOK, w.Code)
		s.JSONEq(`{"user_id":"u1","purpose":"marketing","granted":false}`, w.Body.String())
	})

	s.Run("missing purpose", func() {
		w := s.do(http.MethodGet, "/consent?user_id=u1", nil)
		s.assertStatusAndError(w, http.StatusBadRequest, "validation_error")
	})

	s.Run("missing user", func() {
		w := s.do(http.MethodGet, "/consent?purpose=marketing", nil)
		s.assertStatusAndError(w, http.StatusBadRequest, "validation_error")
	})
}

func (s *ConsentHandlerSuite) TestHistory() {
	s.authz.EXPECT().AuthorizeUser(gomock.Any(), "u1").Return(nil)
	s.service.EXPECT().History(gomock.Any(), id.UserID("u1"), "marketing").Return(
		func(yield func(models.Record, error) bool) {
			for v := int64(1); v <= 2; v++ {
				if !yield(models.Record{UserID: "u1", Purpose: "marketing", Version: v, Granted: v == 1}, nil) {
					return
				}
			}
		})

	w := s.do(http.MethodGet, "/consent/history?user_id=u1&purpose=marketing", nil)
	s.Equal(http.StatusOK, w.Code)

	var res models.HistoryResponse
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &res))
	s.Require().Len(res.Records, 2)
	s.Equal(int64(2), res.Records[1].Version)
}

func (s *ConsentHandlerSuite) TestPreferences() {
	s.authz.EXPECT().AuthorizeUser(gomock.Any(), "u1").Return(nil)
	s.service.EXPECT().Preferences(gomock.Any(), id.UserID("u1")).
		Return(&models.Preferences{UserID: "u1", Purposes: map[string]bool{"marketing": true}}, nil)

	w := s.do(http.MethodGet, "/users/u1/preferences", nil)
	s.Equal(http.StatusOK, w.Code)

	var prefs models.Preferences
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &prefs))
	s.True(prefs.Purposes["marketing"])
}
