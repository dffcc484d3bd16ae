package requests

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/cucumber/godog"
)

// TestContext interface defines the methods needed from the main test context
type TestContext interface {
	POST(path string, body any) error
	POSTDetached(path string, body any) (int, []byte, error)
	GET(path string) error
	GetResponseField(field string) (any, error)
	GetLastResponseStatus() int
	User(name string) string
	Save(key, value string)
	Saved(key string) string
}

// RegisterSteps registers privacy request step definitions
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &requestSteps{tc: tc}

	ctx.Step(`^"([^"]*)" requests (ACCESS|DELETION) for all categories$`, steps.createForAll)
	ctx.Step(`^"([^"]*)" requests (ACCESS|DELETION) for "([^"]*)"$`, steps.createForCategories)
	ctx.Step(`^"([^"]*)" requests (ACCESS|DELETION) for all categories twice concurrently$`, steps.createConcurrently)
	ctx.Step(`^both responses should carry the same request id$`, steps.sameRequestID)
	ctx.Step(`^I save the request id$`, steps.saveRequestID)
	ctx.Step(`^the request should reach state "([^"]*)"$`, steps.waitForState)
	ctx.Step(`^I cancel the request$`, steps.cancel)
	ctx.Step(`^I fetch the request export$`, steps.fetchExport)
	ctx.Step(`^I download the export$`, steps.download)
}

type requestSteps struct {
	tc         TestContext
	concurrent []string
}

func (s *requestSteps) createForAll(ctx context.Context, user, kind string) error {
	return s.create(user, kind, nil)
}

func (s *requestSteps) createForCategories(ctx context.Context, user, kind, categories string) error {
	return s.create(user, kind, strings.Split(categories, ","))
}

func (s *requestSteps) create(user, kind string, categories []string) error {
	body := map[string]any{"user_id": s.tc.User(user), "kind": kind}
	if categories != nil {
		body["categories"] = categories
	}
	return s.tc.POST("/privacy-requests", body)
}

// createConcurrently fires two creates at once and records both ids.
func (s *requestSteps) createConcurrently(ctx context.Context, user, kind string) error {
	body := map[string]any{"user_id": s.tc.User(user), "kind": kind}
	ids := make([]string, 2)
	errs := make([]error, 2)

	var wg sync.WaitGroup
	for i := range 2 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			status, raw, err := s.tc.POSTDetached("/privacy-requests", body)
			if err != nil {
				errs[i] = err
				return
			}
			if status != 200 && status != 202 {
				errs[i] = fmt.Errorf("create returned %d: %s", status, raw)
				return
			}
			var resp struct {
				RequestID string `json:"request_id"`
			}
			if err := json.Unmarshal(raw, &resp); err != nil {
				errs[i] = err
				return
			}
			ids[i] = resp.RequestID
		}()
	}
	wg.Wait()
	s.concurrent = ids
	return errors.Join(errs...)
}

func (s *requestSteps) sameRequestID(ctx context.Context) error {
	if len(s.concurrent) != 2 {
		return fmt.Errorf("expected 2 request ids, got %d", len(s.concurrent))
	}
	if s.concurrent[0] != s.concurrent[1] {
		return fmt.Errorf("request ids differ: %s vs %s", s.concurrent[0], s.concurrent[1])
	}
	return nil
}

func (s *requestSteps) saveRequestID(ctx context.Context) error {
	rid, err := s.tc.GetResponseField("request_id")
	if err != nil {
		return err
	}
	s.tc.Save("request_id", fmt.Sprint(rid))
	return nil
}

func (s *requestSteps) waitForState(ctx context.Context, want string) error {
	deadline := time.Now().Add(10 * time.Second)
	var last any
	for time.Now().Before(deadline) {
		if err := s.tc.GET("/privacy-requests/" + s.tc.Saved("request_id")); err != nil {
			return err
		}
		state, err := s.tc.GetResponseField("state")
		if err != nil {
			return err
		}
		if fmt.Sprint(state) == want {
			return nil
		}
		last = state
		time.Sleep(100 * time.Millisecond)
	}
	return fmt.Errorf("request did not reach %s, last state %v", want, last)
}

func (s *requestSteps) cancel(ctx context.Context) error {
	return s.tc.POST("/privacy-requests/"+s.tc.Saved("request_id")+"/cancel", map[string]any{})
}

func (s *requestSteps) fetchExport(ctx context.Context) error {
	if err := s.tc.GET("/privacy-requests/" + s.tc.Saved("request_id") + "/export"); err != nil {
		return err
	}
	if s.tc.GetLastResponseStatus() != 200 {
		return nil
	}
	token, err := s.tc.GetResponseField("token")
	if err != nil {
		return err
	}
	s.tc.Save("export_token", fmt.Sprint(token))
	return nil
}

func (s *requestSteps) download(ctx context.Context) error {
	return s.tc.GET("/exports/" + s.tc.Saved("export_token"))
}
