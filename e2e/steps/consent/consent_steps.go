package consent

import (
	"context"
	"fmt"
	"net/url"

	"github.com/cucumber/godog"
)

// TestContext interface defines the methods needed from the main test context
type TestContext interface {
	POST(path string, body any) error
	GET(path string) error
	GetResponseField(field string) (any, error)
	User(name string) string
}

// RegisterSteps registers consent-related step definitions
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &consentSteps{tc: tc}

	ctx.Step(`^"([^"]*)" (grants|revokes) consent for "([^"]*)"$`, steps.recordConsent)
	ctx.Step(`^I read the consent of "([^"]*)" for "([^"]*)"$`, steps.readConsent)
	ctx.Step(`^I read the consent history of "([^"]*)" for "([^"]*)"$`, steps.readHistory)
	ctx.Step(`^the consent history should have (\d+) records?$`, steps.historyShouldHaveRecords)
}

type consentSteps struct {
	tc TestContext
}

func (s *consentSteps) recordConsent(ctx context.Context, user, verb, purpose string) error {
	return s.tc.POST("/consent", map[string]any{
		"user_id": s.tc.User(user),
		"purpose": purpose,
		"granted": verb == "grants",
	})
}

func (s *consentSteps) readConsent(ctx context.Context, user, purpose string) error {
	return s.tc.GET("/consent?" + s.query(user, purpose))
}

func (s *consentSteps) readHistory(ctx context.Context, user, purpose string) error {
	return s.tc.GET("/consent/history?" + s.query(user, purpose))
}

func (s *consentSteps) historyShouldHaveRecords(ctx context.Context, n int) error {
	records, err := s.tc.GetResponseField("records")
	if err != nil {
		return err
	}
	list, ok := records.([]any)
	if !ok {
		return fmt.Errorf("records is not a list: %v", records)
	}
	if len(list) != n {
		return fmt.Errorf("expected %d consent records but got %d", n, len(list))
	}
	return nil
}

func (s *consentSteps) query(user, purpose string) string {
	return url.Values{"user_id": {s.tc.User(user)}, "purpose": {purpose}}.Encode()
}
