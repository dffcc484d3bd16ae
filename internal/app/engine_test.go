package app_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"dsrengine/internal/app"
	"dsrengine/internal/export"
	"dsrengine/internal/platform/config"
)

type EngineSuite struct {
	suite.Suite
	engine *app.Engine
	router http.Handler
}

func TestEngineSuite(t *testing.T) {
	suite.Run(t, new(EngineSuite))
}

func (s *EngineSuite) config() config.Config {
	cfg, err := config.FromEnv()
	s.Require().NoError(err)

	cfg.Database.URL = ""
	cfg.Redis.URL = ""
	cfg.Kafka.Brokers = nil
	cfg.Identity.URL = ""
	cfg.Export.Bucket = ""
	cfg.Auth.SigningKey = ""
	cfg.Engine.RegistryFile = "../../config/categories.yaml"
	cfg.Engine.PollInterval = 20 * time.Millisecond
	cfg.Engine.RetryBaseDelay = time.Millisecond
	cfg.Limits.Requests = 0

	identity, _, err := export.GenerateIdentity()
	s.Require().NoError(err)
	cfg.Export.AgeIdentity = identity
	return cfg
}

func (s *EngineSuite) start(cfg config.Config) {
	engine, err := app.Build(context.Background(), cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	s.Require().NoError(err)
	engine.Start(context.Background())
	s.engine = engine
	s.router = engine.Router()
}

func (s *EngineSuite) SetupTest() {
	s.start(s.config())
}

func (s *EngineSuite) TearDownTest() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s.NoError(s.engine.Shutdown(ctx))
}

func (s *EngineSuite) do(method, path string, body any) (*httptest.ResponseRecorder, map[string]any) {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		s.Require().NoError(err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	var out map[string]any
	_ = json.Unmarshal(rec.Body.Bytes(), &out)
	return rec, out
}

func (s *EngineSuite) TestAccessRequestProducesSealedDownload() {
	rec, created := s.do(http.MethodPost, "/privacy-requests", map[string]any{
		"user_id": "demo-alice",
		"kind":    "ACCESS",
	})
	s.Require().Equal(http.StatusAccepted, rec.Code, rec.Body.String())
	requestID, _ := created["request_id"].(string)
	s.Require().NotEmpty(requestID)

	s.Eventually(func() bool {
		_, status := s.do(http.MethodGet, "/privacy-requests/"+requestID, nil)
		return status["state"] == "COMPLETED"
	}, 5*time.Second, 20*time.Millisecond)

	rec, handle := s.do(http.MethodGet, "/privacy-requests/"+requestID+"/export", nil)
	s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())
	token, _ := handle["token"].(string)
	s.Require().NotEmpty(token)

	rec, _ = s.do(http.MethodGet, "/exports/"+token, nil)
	s.Equal(http.StatusOK, rec.Code)
	s.Contains(rec.Body.String(), "contact_info")
	s.Contains(rec.Body.String(), "demo-alice")
}

func (s *EngineSuite) TestConsentRoundTrip() {
	rec, _ := s.do(http.MethodPost, "/consent", map[string]any{
		"user_id": "demo-bob",
		"purpose": "marketing",
		"granted": true,
	})
	s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())

	rec, prefs := s.do(http.MethodGet, "/users/demo-bob/preferences", nil)
	s.Require().Equal(http.StatusOK, rec.Code)
	s.Equal(map[string]any{"marketing": true}, prefs["purposes"])
}

func (s *EngineSuite) TestHealthReportsEngineGauges() {
	rec, body := s.do(http.MethodGet, "/health", nil)
	s.Require().Equal(http.StatusOK, rec.Code)
	engine, _ := body["engine"].(map[string]any)
	s.EqualValues(5, engine["categories"])
	s.Contains(engine, "queue_depth")
}

func (s *EngineSuite) TestRateLimitAppliesToAPI() {
	s.TearDownTest()
	cfg := s.config()
	cfg.Limits.Requests = 2
	cfg.Limits.Window = time.Minute
	s.start(cfg)

	for range 2 {
		rec, _ := s.do(http.MethodGet, "/users/demo-carol/preferences", nil)
		s.Equal(http.StatusOK, rec.Code)
	}
	rec, body := s.do(http.MethodGet, "/users/demo-carol/preferences", nil)
	s.Equal(http.StatusTooManyRequests, rec.Code)
	s.Equal("rate_limit_exceeded", body["error"])

	rec, _ = s.do(http.MethodGet, "/health/live", nil)
	s.Equal(http.StatusOK, rec.Code)
}

func (s *EngineSuite) TestReloadRegistryPublishesNewSnapshot() {
	raw, err := os.ReadFile("../../config/categories.yaml")
	s.Require().NoError(err)
	path := filepath.Join(s.T().TempDir(), "categories.yaml")
	s.Require().NoError(os.WriteFile(path, raw, 0o600))

	s.TearDownTest()
	cfg := s.config()
	cfg.Engine.RegistryFile = path
	s.start(cfg)

	before := s.engine.Categories.Current()
	s.Require().NoError(s.engine.ReloadRegistry())
	after := s.engine.Categories.Current()
	s.Greater(after.Version(), before.Version())
	s.Len(after.ListAll(), len(before.ListAll()))

	s.Require().NoError(os.WriteFile(path, []byte("categories: [{id: broken, retention: soon}]"), 0o600))
	s.Error(s.engine.ReloadRegistry())
	s.Equal(after.Version(), s.engine.Categories.Current().Version(), "a bad file keeps the current snapshot")
}
