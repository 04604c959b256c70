package yamlfile

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/schmich/runx/pkg/runx"
	"github.com/schmich/runx/pkg/shell"
)

func load(t *testing.T, files map[string]string) (*runx.Manager, string, error) {
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

	m := runx.NewManager(New())
	path, err := m.Find(root)
	if err != nil {
		return nil, root, err
	}
	return m, root, m.Load(context.Background(), path)
}

const groupedRunfile = `tasks:
  build:
    desc: Build the project
    args: [target]
    optional: [mode]
    run: go build ./...
  composer:
    install:
      help: Install Composer dependencies.
      command: composer install
    update:
      help: Update Composer dependencies.
      command: composer update
  test:
    rest: packages
    options: [run]
    auto: true
    run: go test "$@"
`

func TestGroupsBecomeCompoundNames(t *testing.T) {
	m, _, err := load(t, map[string]string{"Runfile.yml": groupedRunfile})
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name  string
		desc  string
		title string
		line  int
	}{
		{"build", "Build the project", "build TARGET [MODE]", 2},
		{"composer install", "Install Composer dependencies.", "composer install", 8},
		{"composer update", "Update Composer dependencies.", "composer update", 11},
		{"test", "", "test [PACKAGES...] [--run VALUE]", 14},
	}

	tasks := m.Tasks()
	if len(tasks) != len(tests) {
		t.Fatalf("got %d tasks", len(tasks))
	}

	for idx, tt := range tests {
		task := tasks[idx]
		if task.Name != tt.name || task.Description != tt.desc || task.Title() != tt.title {
			t.Errorf("task %d = %q %q %q", idx, task.Name, task.Description, task.Title())
		}
		if task.Source.Line != tt.line {
			t.Errorf("task %s line = %d, want %d", task.Name, task.Source.Line, tt.line)
		}
	}

	if auto := m.Auto(); auto == nil || auto.Name != "test" {
		t.Errorf("auto = %v", auto)
	}

	task, args, err := m.Resolve([]string{"composer", "install", "--no-dev"})
	if err != nil || task.Name != "composer install" || len(args) != 1 {
		t.Errorf("resolved %v %v %v", task, args, err)
	}
}

func TestBareTaskTree(t *testing.T) {
	m, _, err := load(t, map[string]string{"Runfile.yaml": `
composer:
  install:
    help: Install dependencies.
    command: composer install
`})
	if err != nil {
		t.Fatal(err)
	}

	if _, ok := m.Lookup("composer install"); !ok {
		t.Error("composer install not registered")
	}
}

func TestGroupWithRunChild(t *testing.T) {
	m, _, err := load(t, map[string]string{"Runfile.yml": `tasks:
  docker:
    run:
      desc: Start the container
      command: docker run app
    command:
      run: docker compose up
`})
	if err != nil {
		t.Fatal(err)
	}

	for _, name := range []string{"docker run", "docker command"} {
		if _, ok := m.Lookup(name); !ok {
			t.Errorf("%s not registered", name)
		}
	}
	if _, ok := m.Lookup("docker"); ok {
		t.Error("docker group registered as a task")
	}
}

func TestShellBody(t *testing.T) {
	m, root, err := load(t, map[string]string{"Runfile.yml": `
tasks:
  greet:
    args: [name]
    options: [tag, dry-run]
    env:
      GREETING: hello
    run: |
      echo "$GREETING $1 [$OPT_TAG] [$OPT_DRY_RUN]" > out.txt
  fail:
    run: exit 7
`})
	if err != nil {
		t.Fatal(err)
	}

	if err := m.Dispatch(context.Background(), []string{"greet", "bob", "--tag", "a", "--tag", "b"}); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(filepath.Join(root, "out.txt"))
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "hello bob [a b] []\n" {
		t.Errorf("output = %q", data)
	}

	err = m.Dispatch(context.Background(), []string{"fail"})
	var exitErr *shell.ExitError
	if !errors.As(err, &exitErr) || exitErr.Code != 7 {
		t.Errorf("expected exit status 7, got %v", err)
	}
}

func TestImports(t *testing.T) {
	m, _, err := load(t, map[string]string{
		"Runfile.yml":        "import:\n  - tools\n  - tools/..\ntasks:\n  root:\n    run: true\n",
		"tools/Runfile.yaml": "import: ..\ntasks:\n  tools lint:\n    run: true\n",
	})
	if err != nil {
		t.Fatal(err)
	}

	if len(m.Files()) != 2 {
		t.Errorf("files = %v", m.Files())
	}
	if task, ok := m.Lookup("tools lint"); !ok || filepath.Base(task.Dir) != "tools" {
		t.Errorf("tools lint = %+v", task)
	}
}

func TestMalformed(t *testing.T) {
	tests := []struct {
		name    string
		content string
		line    int
	}{
		{"scalar task", "tasks:\n  build: go build\n", 2},
		{"tasks not a mapping", "tasks:\n  - build\n", 2},
		{"top level list", "- a\n- b\n", 1},
		{"bad field", "tasks:\n  build:\n    run: x\n    args: 3\n", 3},
	}

	for _, tt := range tests {
		_, _, err := load(t, map[string]string{"Runfile.yml": tt.content})

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

func TestRequires(t *testing.T) {
	_, _, err := load(t, map[string]string{"Runfile.yml": "requires: \">= 99\"\ntasks:\n  a:\n    run: true\n"})

	var versionErr *runx.VersionError
	if !errors.As(err, &versionErr) {
		t.Errorf("expected VersionError, got %v", err)
	}
}

func TestMultipleRunfiles(t *testing.T) {
	_, _, err := load(t, map[string]string{
		"Runfile.yml":  "tasks:\n  a:\n    run: true\n",
		"Runfile.yaml": "tasks:\n  b:\n    run: true\n",
	})

	var multi *runx.MultipleRunfilesError
	if !errors.As(err, &multi) {
		t.Errorf("expected MultipleRunfilesError, got %v", err)
	}
}
