package tools

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// DefaultCommandTimeout bounds shell and git executions when the caller
// does not pass one.
const DefaultCommandTimeout = 5 * time.Minute

// RegisterCoreTools registers the built-in tool set against the given
// environment: shell, read_file, write_file, edit_file, list_dir, git.
func RegisterCoreTools(reg *Registry, env *Environment) {
	registerShell(reg, env)
	registerReadFile(reg, env)
	registerWriteFile(reg, env)
	registerEditFile(reg, env)
	registerListDir(reg, env)
	registerGit(reg, env)
}

func stringParam(params map[string]any, key string) string {
	s, _ := params[key].(string)
	return s
}

func intParam(params map[string]any, key string) int {
	switch n := params[key].(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	default:
		return 0
	}
}

func boolParam(params map[string]any, key string) bool {
	b, _ := params[key].(bool)
	return b
}

func registerShell(reg *Registry, env *Environment) {
	reg.Register(Tool{
		Definition: Definition{
			Name:        "shell",
			Description: "Run a shell command in the project working directory. Returns combined stdout and stderr.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"command": map[string]any{
						"type":        "string",
						"description": "The command to run.",
					},
					"timeout_seconds": map[string]any{
						"type":        "integer",
						"description": "Maximum seconds to let the command run. Default: 300.",
					},
					"working_dir": map[string]any{
						"type":        "string",
						"description": "Directory to run in, relative to the project root.",
					},
				},
				"required": []string{"command"},
			},
		},
		Handler: func(ctx context.Context, params map[string]any) (*Result, error) {
			command := stringParam(params, "command")
			if strings.TrimSpace(command) == "" {
				return Failure("command must not be empty"), nil
			}

			timeout := DefaultCommandTimeout
			if secs := intParam(params, "timeout_seconds"); secs > 0 {
				timeout = time.Duration(secs) * time.Second
			}

			res, err := env.ExecCommand(ctx, command, timeout, stringParam(params, "working_dir"))
			if err != nil {
				return nil, err
			}
			return execToResult(res), nil
		},
	})
}

func execToResult(res *ExecResult) *Result {
	out := &Result{
		Success:  res.ExitCode == 0 && !res.TimedOut,
		Output:   res.Combined(),
		ExitCode: res.ExitCode,
		Duration: res.Duration,
	}
	if res.TimedOut {
		out.Error = "command timed out"
	} else if res.ExitCode != 0 {
		out.Error = fmt.Sprintf("exit status %d", res.ExitCode)
	}
	return out
}

func registerReadFile(reg *Registry, env *Environment) {
	reg.Register(Tool{
		Definition: Definition{
			Name:        "read_file",
			Description: "Read a file. Returns line-numbered content.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"path": map[string]any{
						"type":        "string",
						"description": "Path to the file, relative to the project root or absolute.",
					},
					"offset": map[string]any{
						"type":        "integer",
						"description": "1-based line number to start reading from.",
					},
					"limit": map[string]any{
						"type":        "integer",
						"description": "Maximum number of lines to read. Default: 2000.",
					},
				},
				"required": []string{"path"},
			},
		},
		Handler: func(ctx context.Context, params map[string]any) (*Result, error) {
			limit := intParam(params, "limit")
			if limit == 0 {
				limit = 2000
			}
			content, err := env.ReadFile(stringParam(params, "path"), intParam(params, "offset"), limit)
			if err != nil {
				return Failure("%v", err), nil
			}
			return &Result{Success: true, Output: content}, nil
		},
	})
}

func registerWriteFile(reg *Registry, env *Environment) {
	reg.Register(Tool{
		Definition: Definition{
			Name:        "write_file",
			Description: "Write content to a file, creating it and any parent directories.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"path": map[string]any{
						"type":        "string",
						"description": "Path to write to.",
					},
					"content": map[string]any{
						"type":        "string",
						"description": "The full file content.",
					},
				},
				"required": []string{"path", "content"},
			},
		},
		Handler: func(ctx context.Context, params map[string]any) (*Result, error) {
			path := stringParam(params, "path")
			content := stringParam(params, "content")
			if err := env.WriteFile(path, content); err != nil {
				return Failure("%v", err), nil
			}
			return &Result{
				Success:      true,
				Output:       fmt.Sprintf("wrote %d bytes to %s", len(content), path),
				FilesChanged: []string{path},
			}, nil
		},
	})
}

func registerEditFile(reg *Registry, env *Environment) {
	reg.Register(Tool{
		Definition: Definition{
			Name:        "edit_file",
			Description: "Replace an exact string in a file. old_string must occur exactly once unless replace_all is true.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"path": map[string]any{
						"type":        "string",
						"description": "Path to the file to edit.",
					},
					"old_string": map[string]any{
						"type":        "string",
						"description": "Exact text to find.",
					},
					"new_string": map[string]any{
						"type":        "string",
						"description": "Replacement text.",
					},
					"replace_all": map[string]any{
						"type":        "boolean",
						"description": "Replace every occurrence. Default: false.",
					},
				},
				"required": []string{"path", "old_string", "new_string"},
			},
		},
		Handler: func(ctx context.Context, params map[string]any) (*Result, error) {
			path := stringParam(params, "path")
			oldString := stringParam(params, "old_string")
			newString := stringParam(params, "new_string")

			if oldString == "" {
				return Failure("old_string must not be empty"), nil
			}
			if oldString == newString {
				return Failure("old_string and new_string are identical"), nil
			}

			raw, err := env.ReadFile(path, 0, 0)
			if err != nil {
				return Failure("%v", err), nil
			}
			content := stripLineNumbers(raw)

			count := strings.Count(content, oldString)
			if count == 0 {
				return Failure("old_string not found in %s", path), nil
			}

			var updated string
			if boolParam(params, "replace_all") {
				updated = strings.ReplaceAll(content, oldString, newString)
			} else {
				if count > 1 {
					return Failure("old_string occurs %d times in %s; pass replace_all or make it unique", count, path), nil
				}
				updated = strings.Replace(content, oldString, newString, 1)
			}

			if err := env.WriteFile(path, updated); err != nil {
				return Failure("%v", err), nil
			}
			return &Result{
				Success:      true,
				Output:       fmt.Sprintf("replaced %d occurrence(s) in %s", count, path),
				FilesChanged: []string{path},
			}, nil
		},
	})
}

// stripLineNumbers undoes the "N | " prefix ReadFile adds for display.
func stripLineNumbers(numbered string) string {
	lines := strings.Split(numbered, "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		if line == "" {
			continue
		}
		_, rest, ok := strings.Cut(line, " | ")
		if !ok {
			out = append(out, line)
			continue
		}
		out = append(out, rest)
	}
	return strings.Join(out, "\n")
}

func registerListDir(reg *Registry, env *Environment) {
	reg.Register(Tool{
		Definition: Definition{
			Name:        "list_dir",
			Description: "List the entries of a directory.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"path": map[string]any{
						"type":        "string",
						"description": "Directory path. Default: the project root.",
					},
				},
			},
		},
		Handler: func(ctx context.Context, params map[string]any) (*Result, error) {
			path := stringParam(params, "path")
			if path == "" {
				path = "."
			}
			entries, err := env.ListDir(path)
			if err != nil {
				return Failure("%v", err), nil
			}

			var sb strings.Builder
			for _, entry := range entries {
				if entry.IsDir {
					fmt.Fprintf(&sb, "%s/\n", entry.Name)
				} else {
					fmt.Fprintf(&sb, "%s (%d bytes)\n", entry.Name, entry.Size)
				}
			}
			return &Result{Success: true, Output: sb.String()}, nil
		},
	})
}

func registerGit(reg *Registry, env *Environment) {
	reg.Register(Tool{
		Definition: Definition{
			Name:        "git",
			Description: "Run a git subcommand in the project repository, e.g. args \"status --short\" or \"commit -m 'message'\".",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"args": map[string]any{
						"type":        "string",
						"description": "Arguments passed to git.",
					},
				},
				"required": []string{"args"},
			},
		},
		Handler: func(ctx context.Context, params map[string]any) (*Result, error) {
			args := strings.TrimSpace(stringParam(params, "args"))
			if args == "" {
				return Failure("args must not be empty"), nil
			}
			res, err := env.ExecCommand(ctx, "git "+args, DefaultCommandTimeout, "")
			if err != nil {
				return nil, err
			}
			return execToResult(res), nil
		},
	})
}
