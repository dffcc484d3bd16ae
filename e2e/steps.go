package e2e

import (
	"github.com/cucumber/godog"

	"dsrengine/e2e/steps/common"
	"dsrengine/e2e/steps/consent"
	"dsrengine/e2e/steps/requests"
)

// RegisterSteps registers all step definitions
func RegisterSteps(ctx *godog.ScenarioContext, tc *TestContext) {
	common.RegisterSteps(ctx, tc)
	consent.RegisterSteps(ctx, tc)
	requests.RegisterSteps(ctx, tc)
}
