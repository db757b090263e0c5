// Package file provides file operation tools for the Atlas assistant.
package file

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/oleg121203/atlas-core/plan"
	"github.com/oleg121203/atlas-core/tools"
)

// Executor implements file operation tools rooted at a working directory.
type Executor struct {
	root string
}

// NewExecutor creates a file executor with the given root directory.
func NewExecutor(root string) *Executor {
	return &Executor{root: root}
}

// Execute executes a file tool call.
func (e *Executor) Execute(ctx context.Context, call tools.Call) (plan.Result, error) {
	switch call.Name {
	case "file_read":
		return e.fileRead(call)
	case "file_write":
		return e.fileWrite(call)
	case "file_list":
		return e.fileList(call)
	default:
		return failure(fmt.Sprintf("unknown tool: %s", call.Name)), fmt.Errorf("unknown tool: %s", call.Name)
	}
}

// ListTools returns the tool definitions for file operations.
func (e *Executor) ListTools() []tools.Definition {
	return []tools.Definition{
		{
			Name:        "file_read",
			Description: "Read the contents of a file",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"path": map[string]any{
						"type":        "string",
						"description": "Path to the file to read (relative to the working root)",
					},
				},
				"required": []string{"path"},
			},
		},
		{
			Name:        "file_write",
			Description: "Write content to a file (creates parent directories if needed)",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"path": map[string]any{
						"type":        "string",
						"description": "Path to the file to write (relative to the working root)",
					},
					"content": map[string]any{
						"type":        "string",
						"description": "Content to write to the file",
					},
				},
				"required": []string{"path", "content"},
			},
		},
		{
			Name:        "file_list",
			Description: "List files in a directory",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"path": map[string]any{
						"type":        "string",
						"description": "Path to the directory to list (relative to the working root)",
					},
					"pattern": map[string]any{
						"type":        "string",
						"description": "Optional glob pattern to filter files (e.g., '*.md')",
					},
				},
				"required": []string{"path"},
			},
		},
	}
}

func (e *Executor) fileRead(call tools.Call) (plan.Result, error) {
	path, ok := call.Arguments["path"].(string)
	if !ok {
		return failure("path argument is required"), nil
	}

	fullPath, err := e.validatePath(path)
	if err != nil {
		return failure(err.Error()), nil
	}

	content, err := os.ReadFile(fullPath)
	if err != nil {
		if os.IsNotExist(err) {
			return failure(fmt.Sprintf("file not found: %s", path)), nil
		}
		return failure(fmt.Sprintf("failed to read file: %s", err.Error())), nil
	}

	return plan.Result{
		Success: true,
		Data:    map[string]any{"path": path, "content": string(content)},
		Message: fmt.Sprintf("read %d bytes from %s", len(content), path),
	}, nil
}

func (e *Executor) fileWrite(call tools.Call) (plan.Result, error) {
	path, ok := call.Arguments["path"].(string)
	if !ok {
		return failure("path argument is required"), nil
	}

	content, ok := call.Arguments["content"].(string)
	if !ok {
		return failure("content argument is required"), nil
	}

	fullPath, err := e.validatePath(path)
	if err != nil {
		return failure(err.Error()), nil
	}

	if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
		return failure(fmt.Sprintf("failed to create directory: %s", err.Error())), nil
	}

	if err := os.WriteFile(fullPath, []byte(content), 0644); err != nil {
		return failure(fmt.Sprintf("failed to write file: %s", err.Error())), nil
	}

	return plan.Result{
		Success: true,
		Data:    map[string]any{"path": path, "bytes": len(content)},
		Message: fmt.Sprintf("wrote %d bytes to %s", len(content), path),
	}, nil
}

func (e *Executor) fileList(call tools.Call) (plan.Result, error) {
	path, ok := call.Arguments["path"].(string)
	if !ok {
		return failure("path argument is required"), nil
	}

	pattern, _ := call.Arguments["pattern"].(string)

	fullPath, err := e.validatePath(path)
	if err != nil {
		return failure(err.Error()), nil
	}

	info, err := os.Stat(fullPath)
	if err != nil {
		if os.IsNotExist(err) {
			return failure(fmt.Sprintf("directory not found: %s", path)), nil
		}
		return failure(fmt.Sprintf("failed to stat path: %s", err.Error())), nil
	}

	if !info.IsDir() {
		return failure(fmt.Sprintf("path is not a directory: %s", path)), nil
	}

	entries, err := os.ReadDir(fullPath)
	if err != nil {
		return failure(fmt.Sprintf("failed to read directory: %s", err.Error())), nil
	}

	var files []string
	for _, entry := range entries {
		name := entry.Name()

		if pattern != "" {
			matched, err := filepath.Match(pattern, name)
			if err != nil {
				return failure(fmt.Sprintf("invalid pattern: %s", err.Error())), nil
			}
			if !matched {
				continue
			}
		}

		if entry.IsDir() {
			name += "/"
		}
		files = append(files, name)
	}

	return plan.Result{
		Success: true,
		Data:    map[string]any{"path": path, "files": files},
		Message: fmt.Sprintf("%d entries in %s", len(files), path),
	}, nil
}

// validatePath resolves a path and ensures it stays within the root.
func (e *Executor) validatePath(path string) (string, error) {
	var fullPath string
	if filepath.IsAbs(path) {
		fullPath = filepath.Clean(path)
	} else {
		fullPath = filepath.Clean(filepath.Join(e.root, path))
	}

	absPath, err := filepath.Abs(fullPath)
	if err != nil {
		return "", fmt.Errorf("failed to resolve path: %w", err)
	}

	absRoot, err := filepath.Abs(e.root)
	if err != nil {
		return "", fmt.Errorf("failed to resolve working root: %w", err)
	}

	if !strings.HasPrefix(absPath, absRoot+string(filepath.Separator)) && absPath != absRoot {
		return "", fmt.Errorf("access denied: path is outside the working root")
	}

	return absPath, nil
}

func failure(msg string) plan.Result {
	return plan.Result{Success: false, Error: msg}
}
