package pipeline

import (
	"context"
	"strings"
	"testing"

	"github.com/hochfrequenz/claude-batch-pipeline/internal/domain"
)

func TestParseResult(t *testing.T) {
	output := `Implementing the feature...
Running tests.
ok  	example.com/pkg	0.41s	coverage: 86.2% of statements
{"tests_total": 24, "tests_passed": 24, "tests_failed": 0, "coverage_pct": 86.2, "steps_completed": ["implement", "test"]}`

	result, err := ParseResult([]byte(output))
	if err != nil {
		t.Fatal(err)
	}
	if result.TestsTotal != 24 || result.TestsFailed != 0 {
		t.Errorf("result = %+v", result)
	}
	if result.CoveragePct != 86.2 {
		t.Errorf("CoveragePct = %v, want 86.2", result.CoveragePct)
	}
	if len(result.StepsCompleted) != 2 {
		t.Errorf("StepsCompleted = %v", result.StepsCompleted)
	}
}

func TestParseResult_SkipsChatterJSON(t *testing.T) {
	output := `{"type":"assistant","message":"working on it"}
done
{"tests_total": 5, "tests_passed": 3, "tests_failed": 2, "coverage_pct": 70.0, "steps_completed": []}`

	result, err := ParseResult([]byte(output))
	if err != nil {
		t.Fatal(err)
	}
	if result.TestsFailed != 2 {
		t.Errorf("TestsFailed = %d, want 2", result.TestsFailed)
	}
}

func TestParseResult_ZeroTestReport(t *testing.T) {
	output := `Feature needed no new tests.
{"tests_total": 0, "tests_passed": 0, "tests_failed": 0, "coverage_pct": 0, "steps_completed": ["implement"]}`

	result, err := ParseResult([]byte(output))
	if err != nil {
		t.Fatalf("all-zero report must parse as a normal result: %v", err)
	}
	if result.TestsTotal != 0 || result.CoveragePct != 0 {
		t.Errorf("result = %+v", result)
	}
	if len(result.StepsCompleted) != 1 {
		t.Errorf("StepsCompleted = %v", result.StepsCompleted)
	}
}

func TestParseResult_NoReport(t *testing.T) {
	if _, err := ParseResult([]byte("the agent crashed before reporting")); err == nil {
		t.Error("missing report should error")
	}
}

func TestParseResult_InconsistentCounts(t *testing.T) {
	output := `{"tests_total": 3, "tests_passed": 3, "tests_failed": 2, "coverage_pct": 90.0}`
	if _, err := ParseResult([]byte(output)); err == nil {
		t.Error("passed+failed > total should error")
	}
}

func TestBuildPrompt_StrategyHints(t *testing.T) {
	base := BuildPrompt("add login", domain.StrategyBasicRetry)
	if !strings.Contains(base, "add login") {
		t.Error("prompt should embed the feature description")
	}
	if strings.Contains(base, "Retry guidance") {
		t.Error("basic retry should carry no retry guidance")
	}

	fix := BuildPrompt("add login", domain.StrategyFixTestsFirst)
	if !strings.Contains(fix, "fix every reported failure") {
		t.Error("fix_tests_first hint missing")
	}

	alt := BuildPrompt("add login", domain.StrategyAlternative)
	if !strings.Contains(alt, "materially different") {
		t.Error("alternative_implementation hint missing")
	}
}

func TestClaudeRunner_ResetContextRotatesSession(t *testing.T) {
	r := NewClaudeRunner(t.TempDir(), "")
	before := r.SessionID()
	if before == "" {
		t.Fatal("runner should start with a session id")
	}

	if err := r.ResetContext(context.Background()); err != nil {
		t.Fatal(err)
	}
	if r.SessionID() == before {
		t.Error("ResetContext should rotate the session id")
	}
}
