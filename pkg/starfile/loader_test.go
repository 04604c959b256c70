package starfile

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/schmich/runx/pkg/runx"
	"github.com/schmich/runx/pkg/shell"
)

func writeFiles(t *testing.T, files map[string]string) string {
	t.Helper()

	root := t.TempDir()
	for name, content := range files {
		path := filepath.Join(root, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return root
}

func load(t *testing.T, files map[string]string) (*runx.Manager, error) {
	t.Helper()

	root := writeFiles(t, files)
	m := runx.NewManager(New())
	return m, m.Load(context.Background(), filepath.Join(root, Filename))
}

func mustLoad(t *testing.T, files map[string]string) *runx.Manager {
	t.Helper()

	m, err := load(t, files)
	if err != nil {
		t.Fatal(err)
	}
	return m
}

func TestDeclarations(t *testing.T) {
	m := mustLoad(t, map[string]string{
		Filename: `
def build(target, mode = "debug", tag = "", dry_run = ""):
    pass

describe("Build the project").task("build", build, args = ["target"], optional = ["mode"], options = ["tag", "dry-run"])

describe("Run the tests")
task("test", lambda *files: None, rest = "files", auto = True)

task("lint all", lambda: None, desc = "Lint everything", required_options = ["config"], rest_options = True)
`,
	})

	tasks := m.Tasks()
	if len(tasks) != 3 {
		t.Fatalf("got %d tasks", len(tasks))
	}

	tests := []struct {
		name  string
		desc  string
		title string
		line  int
	}{
		{"build", "Build the project", "build TARGET [MODE] [--tag VALUE] [--dry-run VALUE]", 5},
		{"test", "Run the tests", "test [FILES...]", 8},
		{"lint all", "Lint everything", "lint all --config VALUE [--NAME VALUE...]", 10},
	}

	for idx, tt := range tests {
		task := tasks[idx]
		if task.Name != tt.name || task.Description != tt.desc || task.Title() != tt.title {
			t.Errorf("task %d = %q %q %q", idx, task.Name, task.Description, task.Title())
		}
		if task.Source.Line != tt.line || filepath.Base(task.Source.File) != Filename {
			t.Errorf("task %s source = %s", task.Name, task.Source)
		}
	}

	if auto := m.Auto(); auto == nil || auto.Name != "test" {
		t.Errorf("auto task = %v", auto)
	}
}

func TestBodyArguments(t *testing.T) {
	t.Setenv("STAR_RESULT", "")

	m := mustLoad(t, map[string]string{
		Filename: `
def build(target, mode = "debug", tag = "", dry_run = "no"):
    setenv("STAR_RESULT", "%s|%s|%s|%s" % (target, mode, tag, dry_run))

task("build", build, args = ["target"], optional = ["mode"], options = ["tag", "dry-run"])
`,
	})

	tests := []struct {
		tokens []string
		want   string
	}{
		{[]string{"build", "app"}, "app|debug||no"},
		{[]string{"build", "app", "release", "--dry-run", "yes"}, "app|release||yes"},
		{[]string{"build", "app", "--tag", "a", "--tag=b"}, `app|debug|["a", "b"]|no`},
	}

	for _, tt := range tests {
		if err := m.Dispatch(context.Background(), tt.tokens); err != nil {
			t.Fatalf("%v: %v", tt.tokens, err)
		}
		if got := os.Getenv("STAR_RESULT"); got != tt.want {
			t.Errorf("%v: got %q, want %q", tt.tokens, got, tt.want)
		}
	}
}

func TestImports(t *testing.T) {
	m := mustLoad(t, map[string]string{
		Filename:                `import_dir("lib")` + "\n" + `task("root", lambda: None)`,
		"lib/" + Filename:       `import_dir("../shared")` + "\n" + `task("lib", lambda: None)`,
		"shared/" + Filename:    `import_dir("..")` + "\n" + `task("shared", lambda: None)`,
		"unrelated/" + Filename: `task("unrelated", lambda: None)`,
	})

	names := []string{}
	for _, task := range m.Tasks() {
		names = append(names, task.Name)
	}
	if strings.Join(names, ",") != "root,lib,shared" {
		t.Errorf("tasks = %v", names)
	}

	lib, ok := m.Lookup("lib")
	if !ok || filepath.Base(lib.Dir) != "lib" {
		t.Errorf("lib task = %+v", lib)
	}
}

func TestMalformed(t *testing.T) {
	tests := []struct {
		name   string
		script string
		line   int
	}{
		{"two descriptions", "describe(\"a\")\ndescribe(\"b\")\ntask(\"x\", lambda: None)\n", 1},
		{"dangling description", "task(\"x\", lambda: None)\n\ndescribe(\"a\")\n", 3},
	}

	for _, tt := range tests {
		_, err := load(t, map[string]string{Filename: tt.script})

		var malformed *runx.MalformedRunfileError
		if !errors.As(err, &malformed) {
			t.Errorf("%s: expected MalformedRunfileError, got %v", tt.name, err)
			continue
		}
		if malformed.Source.Line != tt.line {
			t.Errorf("%s: line = %d, want %d", tt.name, malformed.Source.Line, tt.line)
		}
	}
}

func TestScriptErrors(t *testing.T) {
	_, err := load(t, map[string]string{Filename: "task(\"x\", lambda: None\n"})
	if err == nil || !strings.Contains(err.Error(), Filename) {
		t.Errorf("syntax error = %v", err)
	}

	_, err = load(t, map[string]string{Filename: `require_version(">= 99.0")`})
	var versionErr *runx.VersionError
	if !errors.As(err, &versionErr) {
		t.Errorf("expected VersionError, got %v", err)
	}

	_, err = load(t, map[string]string{Filename: `x = {}["broken"]`})
	if err == nil || !strings.Contains(err.Error(), "broken") {
		t.Errorf("fail() error = %v", err)
	}
}

func TestShellAndNestedRun(t *testing.T) {
	t.Setenv("STAR_RESULT", "")

	m := mustLoad(t, map[string]string{
		Filename: `
def outer():
    run("inner", "x")
    setenv("STAR_RESULT", getenv("STAR_RESULT") + "|" + sh("echo \"${PWD##*/}\"", capture = True).strip())

import_dir("sub")
task("outer", outer)
`,
		"sub/" + Filename: `
def inner(value):
    setenv("STAR_RESULT", value + ":" + sh("echo \"${PWD##*/}\"", capture = True).strip())

task("inner", inner, args = ["value"])
task("fail", lambda: sh("exit 4"))
task("late", lambda: task("nope", lambda: None))
`,
	})

	outer, _ := m.Lookup("outer")
	if err := m.Dispatch(context.Background(), []string{"outer"}); err != nil {
		t.Fatal(err)
	}
	want := "x:sub|" + filepath.Base(outer.Dir)
	if got := os.Getenv("STAR_RESULT"); got != want {
		t.Errorf("got %q, want %q", got, want)
	}

	err := m.Dispatch(context.Background(), []string{"fail"})
	var exitErr *shell.ExitError
	if !errors.As(err, &exitErr) || exitErr.Code != 4 {
		t.Errorf("expected exit status 4, got %v", err)
	}

	if err := m.Dispatch(context.Background(), []string{"late"}); err == nil {
		t.Error("task() succeeded after loading finished")
	}
}

func TestReadData(t *testing.T) {
	t.Setenv("STAR_RESULT", "")

	m := mustLoad(t, map[string]string{
		"data.json": `{"app": {"ports": [80, 443], "name": "web"}}`,
		"data.yml":  "app:\n  env:\n    - dev\n    - prod\n",
		Filename: `
def check():
    values = [
        read_json("data.json", "app.ports.1"),
        read_json("data.json", "app.name"),
        read_json("data.json", "app.missing", "none"),
        read_yaml("data.yml", "app.env.0"),
        read_yaml("data.yml", "app.nothing", "fallback"),
        isfile("data.json"),
        isdir("data.json"),
    ]
    setenv("STAR_RESULT", ",".join([str(v) for v in values]))

task("check", check)
`,
	})

	if err := m.Dispatch(context.Background(), []string{"check"}); err != nil {
		t.Fatal(err)
	}
	if got := os.Getenv("STAR_RESULT"); got != "443,web,none,dev,fallback,True,False" {
		t.Errorf("got %q", got)
	}
}

func TestInterruptedBody(t *testing.T) {
	m := mustLoad(t, map[string]string{
		Filename: `
def spin():
    for i in range(100000000):
        pass

task("spin", spin)
`,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	task, _ := m.Lookup("spin")
	if err := m.Run(ctx, task, nil); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected context.DeadlineExceeded, got %v", err)
	}
}
