package executor

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// FinalAnswerMarker is the stdout prefix a snippet prints to end the run with
// a final answer. The system prompt for code-executing agents documents it.
const FinalAnswerMarker = "FINAL_ANSWER:"

const defaultExecTimeout = 60 * time.Second

// interpreters maps a language to the command that reads a program from its
// last argument.
var interpreters = map[string][]string{
	"python": {"python3", "-c"},
	"bash":   {"bash", "-c"},
	"sh":     {"sh", "-c"},
}

// HostExecutor runs snippets as host processes. It provides no real isolation
// and is meant for trusted environments and tests; production setups plug in
// a containerized Executor instead.
type HostExecutor struct {
	workingDir string
	env        []string
}

// NewHostExecutor creates a host-process executor.
func NewHostExecutor(workingDir string) *HostExecutor {
	return &HostExecutor{workingDir: workingDir}
}

// Execute runs a snippet with the interpreter registered for its language.
func (h *HostExecutor) Execute(ctx context.Context, code, language string, timeout time.Duration) (Result, error) {
	argv, ok := interpreters[strings.ToLower(language)]
	if !ok {
		return Result{}, fmt.Errorf("unsupported language: %s", language)
	}

	if timeout <= 0 {
		timeout = defaultExecTimeout
	}

	execCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(execCtx, argv[0], append(argv[1:], code)...)
	cmd.Dir = h.workingDir
	if len(h.env) > 0 {
		cmd.Env = h.env
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()
	duration := time.Since(start)

	log.Debug().
		Str("language", language).
		Dur("duration", duration).
		Bool("success", err == nil).
		Msg("Code execution finished")

	result := Result{
		Output: stdout.String(),
		Logs:   stderr.String(),
	}

	if execCtx.Err() == context.DeadlineExceeded {
		result.Error = fmt.Sprintf("execution timed out after %v", timeout)
		return result, nil
	}

	if err != nil {
		result.Error = err.Error()
		if result.Logs != "" {
			result.Error += "\n" + result.Logs
		}
		return result, nil
	}

	result.Success = true
	result.Output, result.IsFinalAnswer = extractFinalAnswer(result.Output)
	return result, nil
}

// extractFinalAnswer looks for the final-answer marker on the last non-empty
// output line. When present, the text after the marker becomes the output.
func extractFinalAnswer(output string) (string, bool) {
	lines := strings.Split(strings.TrimRight(output, "\n"), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		line := strings.TrimSpace(lines[i])
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, FinalAnswerMarker) {
			return strings.TrimSpace(strings.TrimPrefix(line, FinalAnswerMarker)), true
		}
		break
	}
	return output, false
}
