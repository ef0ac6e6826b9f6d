package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/hochfrequenz/claude-batch-pipeline/internal/domain"
)

// ClaudeRunner runs features through the Claude Code CLI in headless
// mode. Attempts share a session ID so working context carries across
// features; ResetContext rotates the session, which is what actually
// clears the accumulated context.
type ClaudeRunner struct {
	Command string // CLI binary, defaults to "claude"
	Model   string
	WorkDir string
	Log     io.Writer // raw pipeline output, optional

	mu        sync.Mutex
	sessionID string
}

// NewClaudeRunner creates a runner working in the given directory
func NewClaudeRunner(workDir, model string) *ClaudeRunner {
	return &ClaudeRunner{
		Command:   "claude",
		Model:     model,
		WorkDir:   workDir,
		sessionID: uuid.NewString(),
	}
}

// SessionID returns the current session identifier
func (r *ClaudeRunner) SessionID() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sessionID
}

// ResetContext rotates the session ID so the next run starts with a
// fresh context window
func (r *ClaudeRunner) ResetContext(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessionID = uuid.NewString()
	return nil
}

// Run invokes the claude CLI for one feature attempt and parses its
// trailing JSON report into a PipelineResult
func (r *ClaudeRunner) Run(ctx context.Context, feature string, strategy domain.RetryStrategy) (*domain.PipelineResult, error) {
	command := r.Command
	if command == "" {
		command = "claude"
	}

	args := []string{
		"--print",                        // Non-interactive mode
		"--dangerously-skip-permissions", // No permission prompts in batch mode
		"--session-id", r.SessionID(),
	}
	if r.Model != "" {
		args = append(args, "--model", r.Model)
	}
	args = append(args, "-p", BuildPrompt(feature, strategy))

	cmd := exec.CommandContext(ctx, command, args...)
	cmd.Dir = r.WorkDir

	var output bytes.Buffer
	cmd.Stdout = &output
	cmd.Stderr = &output

	err := cmd.Run()
	if r.Log != nil {
		r.Log.Write(output.Bytes())
	}
	if err != nil {
		return nil, infraErr("exec", fmt.Errorf("running %s: %w", command, err))
	}

	result, err := ParseResult(output.Bytes())
	if err != nil {
		return nil, infraErr("parse", err)
	}
	return result, nil
}

// ParseResult extracts the pipeline's JSON report from raw CLI output.
// The report is expected as the last JSON object line; earlier lines
// are free-form agent output and are ignored. The report is recognized
// by its keys, so a report with all-zero counts (a feature that
// produced no tests) still reaches the gate as a normal result.
func ParseResult(output []byte) (*domain.PipelineResult, error) {
	lines := strings.Split(strings.TrimSpace(string(output)), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		line := strings.TrimSpace(lines[i])
		if !strings.HasPrefix(line, "{") || !strings.HasSuffix(line, "}") {
			continue
		}
		var raw map[string]json.RawMessage
		if err := json.Unmarshal([]byte(line), &raw); err != nil {
			continue
		}
		if _, ok := raw["tests_total"]; !ok {
			// A JSON line, but not our report
			continue
		}
		var result domain.PipelineResult
		if err := json.Unmarshal([]byte(line), &result); err != nil {
			return nil, fmt.Errorf("malformed result report: %w", err)
		}
		if result.TestsPassed+result.TestsFailed > result.TestsTotal {
			return nil, fmt.Errorf("inconsistent test counts in report: %s", line)
		}
		return &result, nil
	}
	return nil, fmt.Errorf("no result report found in pipeline output")
}
