package project

import (
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"
)

const maxProjectDocBytes = 32 * 1024

// Context is a read-only snapshot of the project the agent works in.
type Context struct {
	Root      string
	Language  string
	Framework string
	IsGitRepo bool
	GitBranch string
}

// languageMarkers maps marker files to the language they indicate, in
// detection order.
var languageMarkers = []struct {
	file     string
	language string
}{
	{"go.mod", "go"},
	{"Cargo.toml", "rust"},
	{"package.json", "javascript"},
	{"pyproject.toml", "python"},
	{"requirements.txt", "python"},
	{"pom.xml", "java"},
	{"build.gradle", "java"},
	{"Gemfile", "ruby"},
	{"composer.json", "php"},
}

// Detect inspects root and returns a populated Context. Detection is
// best-effort; missing git or markers leave fields empty.
func Detect(root string) *Context {
	if root == "" {
		root, _ = os.Getwd()
	}

	ctx := &Context{Root: root}

	for _, marker := range languageMarkers {
		if _, err := os.Stat(filepath.Join(root, marker.file)); err == nil {
			ctx.Language = marker.language
			ctx.Framework = detectFramework(root, marker.file)
			break
		}
	}

	ctx.IsGitRepo = isGitRepository(root)
	if ctx.IsGitRepo {
		ctx.GitBranch = gitBranch(root)
	}

	return ctx
}

func detectFramework(root, marker string) string {
	switch marker {
	case "package.json":
		return nodeFramework(root)
	case "go.mod":
		// Framework detection for Go projects is not informative enough
		// to guess from go.mod alone.
		return ""
	default:
		return ""
	}
}

func nodeFramework(root string) string {
	data, err := os.ReadFile(filepath.Join(root, "package.json"))
	if err != nil {
		return ""
	}
	var pkg struct {
		Dependencies    map[string]string `json:"dependencies"`
		DevDependencies map[string]string `json:"devDependencies"`
	}
	if err := json.Unmarshal(data, &pkg); err != nil {
		return ""
	}

	has := func(name string) bool {
		_, ok := pkg.Dependencies[name]
		if !ok {
			_, ok = pkg.DevDependencies[name]
		}
		return ok
	}
	switch {
	case has("next"):
		return "nextjs"
	case has("react"):
		return "react"
	case has("vue"):
		return "vue"
	case has("express"):
		return "express"
	default:
		return ""
	}
}

// CommitCount returns the number of commits on the current branch, or 0
// outside a repository.
func (c *Context) CommitCount() int {
	if !c.IsGitRepo {
		return 0
	}
	out := runGit(c.Root, "rev-list", "--count", "HEAD")
	n, err := strconv.Atoi(strings.TrimSpace(out))
	if err != nil {
		return 0
	}
	return n
}

// GitStatusSummary returns a short dirty-file count summary, or "".
func (c *Context) GitStatusSummary() string {
	if !c.IsGitRepo {
		return ""
	}
	status := strings.TrimSpace(runGit(c.Root, "status", "--short"))
	if status == "" {
		return "clean"
	}
	return fmt.Sprintf("%d modified/untracked files", len(strings.Split(status, "\n")))
}

// EnvironmentBlock renders the structured environment block injected
// into the system prompt.
func (c *Context) EnvironmentBlock() string {
	var sb strings.Builder
	sb.WriteString("<environment>\n")
	fmt.Fprintf(&sb, "Working directory: %s\n", c.Root)
	fmt.Fprintf(&sb, "Is git repository: %v\n", c.IsGitRepo)
	if c.GitBranch != "" {
		fmt.Fprintf(&sb, "Git branch: %s\n", c.GitBranch)
	}
	if c.Language != "" {
		fmt.Fprintf(&sb, "Language: %s\n", c.Language)
	}
	if c.Framework != "" {
		fmt.Fprintf(&sb, "Framework: %s\n", c.Framework)
	}
	fmt.Fprintf(&sb, "Platform: %s/%s\n", runtime.GOOS, runtime.GOARCH)
	fmt.Fprintf(&sb, "Today's date: %s\n", time.Now().Format("2006-01-02"))
	sb.WriteString("</environment>")
	return sb.String()
}

// DiscoverDocs loads project instruction files (AGENTS.md at the git
// root and in the working directory), capped at 32KB total.
func (c *Context) DiscoverDocs() string {
	root := gitRoot(c.Root)
	if root == "" {
		root = c.Root
	}

	dirs := []string{root}
	if clean := filepath.Clean(c.Root); clean != filepath.Clean(root) {
		dirs = append(dirs, clean)
	}

	var docs []string
	totalBytes := 0
	for _, dir := range dirs {
		path := filepath.Join(dir, "AGENTS.md")
		content, err := os.ReadFile(path)
		if err != nil {
			continue
		}

		remaining := maxProjectDocBytes - totalBytes
		if remaining <= 0 {
			docs = append(docs, "[project instructions truncated at 32KB]")
			break
		}
		text := string(content)
		if len(text) > remaining {
			text = text[:remaining] + "\n[project instructions truncated at 32KB]"
		}
		docs = append(docs, fmt.Sprintf("# AGENTS.md (from %s)\n\n%s", dir, text))
		totalBytes += len(text)
	}

	return strings.Join(docs, "\n\n---\n\n")
}

func isGitRepository(dir string) bool {
	out, err := gitOutput(dir, "rev-parse", "--is-inside-work-tree")
	return err == nil && strings.TrimSpace(out) == "true"
}

func gitRoot(dir string) string {
	out, err := gitOutput(dir, "rev-parse", "--show-toplevel")
	if err != nil {
		return ""
	}
	return strings.TrimSpace(out)
}

func gitBranch(dir string) string {
	out, err := gitOutput(dir, "rev-parse", "--abbrev-ref", "HEAD")
	if err != nil {
		return ""
	}
	return strings.TrimSpace(out)
}

func runGit(dir string, args ...string) string {
	out, err := gitOutput(dir, args...)
	if err != nil {
		return ""
	}
	return out
}

func gitOutput(dir string, args ...string) (string, error) {
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	out, err := cmd.Output()
	return string(out), err
}
