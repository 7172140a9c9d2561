package api_test

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/cucumber/godog"

	"github.com/MeKo-Tech/lasso/test/integration/api/support"
)

// InitializeScenario sets up a fresh server and step definitions per scenario.
func InitializeScenario(sc *godog.ScenarioContext) {
	testContext, err := support.NewTestContext()
	if err != nil {
		panic(fmt.Sprintf("Failed to create test context: %v", err))
	}

	testContext.RegisterAPISteps(sc)

	sc.After(func(ctx context.Context, sc *godog.Scenario, err error) (context.Context, error) {
		if cleanupErr := testContext.Cleanup(); cleanupErr != nil {
			fmt.Printf("Warning: Failed to cleanup test context: %v\n", cleanupErr)
		}
		return ctx, nil
	})
}

// TestFeatures runs the Godog test suite.
func TestFeatures(t *testing.T) {
	entries, err := os.ReadDir("features")
	if err != nil {
		t.Fatalf("failed to read features directory: %v", err)
	}

	format := os.Getenv("GODOG_FORMAT")
	if format == "" {
		format = "pretty"
	}
	tags := os.Getenv("GODOG_TAGS")

	found := false
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".feature") {
			continue
		}
		found = true
		featurePath := filepath.Join("features", e.Name())

		t.Run(e.Name(), func(t *testing.T) {
			suite := godog.TestSuite{
				ScenarioInitializer: InitializeScenario,
				Options: &godog.Options{
					Format:   format,
					Tags:     tags,
					Paths:    []string{featurePath},
					TestingT: t,
				},
			}

			if suite.Run() != 0 {
				t.Fatalf("non-zero status returned for %s", featurePath)
			}
		})
	}

	if !found {
		t.Fatalf("no .feature files found in features/")
	}
}
