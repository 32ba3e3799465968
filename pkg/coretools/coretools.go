// Package coretools registers the baseline filesystem and code-execution
// tools every agent gets out of the box. All file paths resolve inside the
// configured workspace root; escaping it is an error, not an observation of
// the host filesystem.
package coretools

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/harun/reagent/pkg/dispatch"
	"github.com/harun/reagent/pkg/executor"
	"github.com/harun/reagent/pkg/suspend"
)

// Options configures core tool registration.
type Options struct {
	// WorkspaceRoot bounds all file tools. Required.
	WorkspaceRoot string

	// Executor enables the run_code tool when set.
	Executor executor.Executor

	// ExecTimeout bounds each run_code invocation. Defaults to 60s.
	ExecTimeout time.Duration

	// Gate, when set, suspends gated tool calls for a human decision.
	Gate *suspend.Gate
}

// Register adds the core tools and the terminal final_answer tool to a
// registry.
func Register(registry *dispatch.Registry, opts Options) error {
	if registry == nil {
		return errors.New("registry is required")
	}
	if opts.WorkspaceRoot == "" {
		return errors.New("workspace root is required")
	}
	if opts.ExecTimeout <= 0 {
		opts.ExecTimeout = 60 * time.Second
	}

	tools := []dispatch.ToolDefinition{
		readFileTool(opts),
		writeFileTool(opts),
		editFileTool(opts),
		listDirTool(opts),
		dispatch.FinalAnswerTool(),
	}
	if opts.Executor != nil {
		tools = append(tools, runCodeTool(opts))
	}

	for _, tool := range tools {
		if opts.Gate != nil && opts.Gate.Gated(tool.Name) {
			tool.Handler = opts.Gate.WrapHandler(tool.Name, tool.Handler)
		}
		if err := registry.Register(tool); err != nil {
			return fmt.Errorf("failed to register tool %s: %w", tool.Name, err)
		}
	}
	return nil
}

// resolvePathInWorkspace joins a relative path onto the workspace root and
// rejects anything that escapes it.
func resolvePathInWorkspace(root, path string) (string, error) {
	if path == "" {
		return "", errors.New("path is required")
	}
	if filepath.IsAbs(path) {
		return "", fmt.Errorf("path must be relative to the workspace: %s", path)
	}

	target := filepath.Clean(filepath.Join(root, path))
	rel, err := filepath.Rel(root, target)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("path escapes the workspace: %s", path)
	}
	return target, nil
}

func readFileTool(opts Options) dispatch.ToolDefinition {
	return dispatch.ToolDefinition{
		Name:        "read_file",
		Description: "Read a file from the workspace.",
		Parameters: []dispatch.ToolParameter{
			{Name: "path", Type: "string", Description: "Relative file path", Required: true},
			{Name: "max_bytes", Type: "number", Description: "Read at most this many bytes", Required: false},
		},
		Handler: func(ctx context.Context, args map[string]interface{}) (interface{}, error) {
			pathValue, _ := args["path"].(string)
			target, err := resolvePathInWorkspace(opts.WorkspaceRoot, pathValue)
			if err != nil {
				return nil, err
			}

			maxBytes := int64(200000)
			if raw, ok := args["max_bytes"].(float64); ok && raw > 0 {
				maxBytes = int64(raw)
			}

			data, err := os.ReadFile(target)
			if err != nil {
				return nil, err
			}

			truncated := false
			if int64(len(data)) > maxBytes {
				data = data[:maxBytes]
				truncated = true
			}

			return map[string]interface{}{
				"path":      pathValue,
				"content":   string(data),
				"truncated": truncated,
				"bytes":     len(data),
			}, nil
		},
	}
}

func writeFileTool(opts Options) dispatch.ToolDefinition {
	return dispatch.ToolDefinition{
		Name:        "write_file",
		Description: "Write content to a file in the workspace.",
		Parameters: []dispatch.ToolParameter{
			{Name: "path", Type: "string", Description: "Relative file path", Required: true},
			{Name: "content", Type: "string", Description: "File content", Required: true},
			{Name: "append", Type: "boolean", Description: "Append instead of overwrite", Required: false},
		},
		Handler: func(ctx context.Context, args map[string]interface{}) (interface{}, error) {
			pathValue, _ := args["path"].(string)
			target, err := resolvePathInWorkspace(opts.WorkspaceRoot, pathValue)
			if err != nil {
				return nil, err
			}
			content, _ := args["content"].(string)
			appendMode, _ := args["append"].(bool)

			if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
				return nil, err
			}

			flag := os.O_CREATE | os.O_WRONLY
			if appendMode {
				flag |= os.O_APPEND
			} else {
				flag |= os.O_TRUNC
			}
			f, err := os.OpenFile(target, flag, 0644)
			if err != nil {
				return nil, err
			}
			if _, err := f.WriteString(content); err != nil {
				f.Close()
				return nil, err
			}
			if err := f.Close(); err != nil {
				return nil, err
			}

			return map[string]interface{}{
				"path":   pathValue,
				"bytes":  len(content),
				"append": appendMode,
			}, nil
		},
	}
}

func editFileTool(opts Options) dispatch.ToolDefinition {
	return dispatch.ToolDefinition{
		Name:        "edit_file",
		Description: "Replace text in a workspace file.",
		Parameters: []dispatch.ToolParameter{
			{Name: "path", Type: "string", Description: "Relative file path", Required: true},
			{Name: "search", Type: "string", Description: "Text to search for", Required: true},
			{Name: "replace", Type: "string", Description: "Replacement text", Required: true},
			{Name: "replace_all", Type: "boolean", Description: "Replace all occurrences", Required: false},
		},
		Handler: func(ctx context.Context, args map[string]interface{}) (interface{}, error) {
			pathValue, _ := args["path"].(string)
			target, err := resolvePathInWorkspace(opts.WorkspaceRoot, pathValue)
			if err != nil {
				return nil, err
			}
			search, _ := args["search"].(string)
			replace, _ := args["replace"].(string)
			replaceAll, _ := args["replace_all"].(bool)
			if search == "" {
				return nil, errors.New("search is required")
			}

			data, err := os.ReadFile(target)
			if err != nil {
				return nil, err
			}
			content := string(data)

			occurrences := strings.Count(content, search)
			if occurrences == 0 {
				return nil, fmt.Errorf("search text not found in %s", pathValue)
			}
			if occurrences > 1 && !replaceAll {
				return nil, fmt.Errorf("search text appears %d times in %s, pass replace_all to replace every occurrence", occurrences, pathValue)
			}

			var updated string
			replaced := occurrences
			if replaceAll {
				updated = strings.ReplaceAll(content, search, replace)
			} else {
				updated = strings.Replace(content, search, replace, 1)
				replaced = 1
			}

			if err := os.WriteFile(target, []byte(updated), 0644); err != nil {
				return nil, err
			}

			return map[string]interface{}{
				"path":     pathValue,
				"replaced": replaced,
			}, nil
		},
	}
}

func listDirTool(opts Options) dispatch.ToolDefinition {
	return dispatch.ToolDefinition{
		Name:        "list_dir",
		Description: "List the entries of a workspace directory.",
		Parameters: []dispatch.ToolParameter{
			{Name: "path", Type: "string", Description: "Relative directory path, '.' for the root", Required: true},
		},
		Handler: func(ctx context.Context, args map[string]interface{}) (interface{}, error) {
			pathValue, _ := args["path"].(string)
			target, err := resolvePathInWorkspace(opts.WorkspaceRoot, pathValue)
			if err != nil {
				return nil, err
			}

			entries, err := os.ReadDir(target)
			if err != nil {
				return nil, err
			}

			names := make([]string, 0, len(entries))
			for _, entry := range entries {
				name := entry.Name()
				if entry.IsDir() {
					name += "/"
				}
				names = append(names, name)
			}

			return map[string]interface{}{
				"path":    pathValue,
				"entries": names,
			}, nil
		},
	}
}

func runCodeTool(opts Options) dispatch.ToolDefinition {
	return dispatch.ToolDefinition{
		Name:        "run_code",
		Description: "Run a code snippet and return its output.",
		Parameters: []dispatch.ToolParameter{
			{Name: "code", Type: "string", Description: "Code to run", Required: true},
			{Name: "language", Type: "string", Description: "Language, defaults to python", Required: false},
		},
		Handler: func(ctx context.Context, args map[string]interface{}) (interface{}, error) {
			code, _ := args["code"].(string)
			if code == "" {
				return nil, errors.New("code is required")
			}
			language, _ := args["language"].(string)
			if language == "" {
				language = "python"
			}

			result, err := opts.Executor.Execute(ctx, code, language, opts.ExecTimeout)
			if err != nil {
				return nil, err
			}
			if result.Error != "" {
				return nil, fmt.Errorf("execution failed: %s", result.Error)
			}

			output := result.Output
			if result.Logs != "" {
				output += "\nLogs:\n" + result.Logs
			}
			return strings.TrimSpace(output), nil
		},
	}
}
