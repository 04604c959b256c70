package cmd

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func setup(t *testing.T, runfile string) string {
	t.Helper()

	home := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", home)
	t.Setenv("HOME", home)
	t.Setenv("RUNX_WIDTH", "")
	os.Unsetenv("RUNX_WIDTH")
	t.Setenv("RUNX_RUN_ID", "test-run")
	t.Setenv("RUNX_LOG_LEVEL", "info")
	t.Setenv("RUNX_DEBUG", "false")
	t.Setenv("RUNX_QUIET", "false")

	dir := t.TempDir()
	if runfile != "" {
		if err := os.WriteFile(filepath.Join(dir, "Runfile.yml"), []byte(runfile), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		os.Chdir(wd)
	})

	return dir
}

const runfile = `tasks:
  greet:
    desc: Print a greeting
    args: [name]
    run: echo "hello $1" > greeting.txt
  fail:
    run: exit 3
`

func TestExecute(t *testing.T) {
	tests := []struct {
		name     string
		runfile  string
		args     []string
		code     int
		contains []string
		absent   []string
	}{
		{
			name:     "help without arguments",
			runfile:  runfile,
			args:     nil,
			code:     0,
			contains: []string{"[runx] in ", "Tasks:", "greet NAME", "Print a greeting"},
		},
		{
			name:     "help token",
			runfile:  runfile,
			args:     []string{"--help"},
			code:     0,
			contains: []string{"Tasks:", "fail"},
		},
		{
			name:     "task exit status",
			runfile:  runfile,
			args:     []string{"fail"},
			code:     3,
			contains: []string{"[runx] in "},
			absent:   []string{"error"},
		},
		{
			name:     "unknown task",
			runfile:  runfile,
			args:     []string{"deploy"},
			code:     1,
			contains: []string{"[runx] error: "},
		},
		{
			name:     "missing argument",
			runfile:  runfile,
			args:     []string{"greet"},
			code:     1,
			contains: []string{"[runx] error: in task greet", "NAME"},
		},
		{
			name:     "no runfile",
			runfile:  "",
			args:     []string{"greet"},
			code:     1,
			contains: []string{"[runx] error: no Runfile found"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setup(t, tt.runfile)

			var stderr bytes.Buffer
			code := execute(context.Background(), tt.args, &stderr)
			if code != tt.code {
				t.Errorf("exit code %d, want %d\n%s", code, tt.code, stderr.String())
			}

			out := stderr.String()
			for _, want := range tt.contains {
				if !strings.Contains(out, want) {
					t.Errorf("output does not contain %q:\n%s", want, out)
				}
			}
			for _, unwanted := range tt.absent {
				if strings.Contains(out, unwanted) {
					t.Errorf("output contains %q:\n%s", unwanted, out)
				}
			}
		})
	}
}

func TestExecuteRunsTask(t *testing.T) {
	dir := setup(t, runfile)

	var stderr bytes.Buffer
	if code := execute(context.Background(), []string{"greet", "world"}, &stderr); code != 0 {
		t.Fatalf("exit code %d\n%s", code, stderr.String())
	}

	data, err := os.ReadFile(filepath.Join(dir, "greeting.txt"))
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "hello world\n" {
		t.Errorf("got %q", data)
	}
}

func TestExecuteAutoAndHelpTask(t *testing.T) {
	dir := setup(t, `tasks:
  build:
    auto: true
    run: echo built > auto.txt
  help:
    run: echo custom > help.txt
`)

	var stderr bytes.Buffer
	if code := execute(context.Background(), nil, &stderr); code != 0 {
		t.Fatalf("exit code %d\n%s", code, stderr.String())
	}
	if _, err := os.Stat(filepath.Join(dir, "auto.txt")); err != nil {
		t.Errorf("auto task did not run: %v", err)
	}

	if code := execute(context.Background(), []string{"help"}, &stderr); code != 0 {
		t.Fatalf("exit code %d\n%s", code, stderr.String())
	}
	if _, err := os.Stat(filepath.Join(dir, "help.txt")); err != nil {
		t.Errorf("help task did not run: %v", err)
	}
}

func TestExecuteInterrupted(t *testing.T) {
	setup(t, runfile)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var stderr bytes.Buffer
	if code := execute(ctx, []string{"greet", "world"}, &stderr); code != exitInterrupted {
		t.Errorf("exit code %d, want %d", code, exitInterrupted)
	}
	if strings.Contains(stderr.String(), "error") {
		t.Errorf("interrupt printed an error:\n%s", stderr.String())
	}
}

func TestConsoleWriter(t *testing.T) {
	tests := []struct {
		event string
		debug bool
		want  string
	}{
		{`{"level":"error","error":"task not found: [bold] [red]"}`, false, "[runx] error: task not found: [bold] [red]\n"},
		{`{"level":"info","message":"in /tmp"}`, false, "[runx] in /tmp\n"},
		{`{"level":"error","error":"no Runfile found in /","message":""}`, false, "[runx] error: no Runfile found in /\n"},
		{`{"level":"warn","message":"failed to return","error":"gone"}`, false, "[runx] warning: failed to return: gone\n"},
		{`{"level":"info","message":"in /tmp","task":"build","run":"abc"}`, true, "[runx] in /tmp\n  run: abc\n  task: build\n"},
	}

	for _, tt := range tests {
		var out bytes.Buffer
		w := NewConsoleWriter(&out, false, tt.debug)

		if _, err := w.Write([]byte(tt.event)); err != nil {
			t.Fatal(err)
		}
		if out.String() != tt.want {
			t.Errorf("%s: got %q, want %q", tt.event, out.String(), tt.want)
		}
	}
}

func TestConsoleWriterColorKeepsBrackets(t *testing.T) {
	var out bytes.Buffer
	w := NewConsoleWriter(&out, true, false)

	if _, err := w.Write([]byte(`{"level":"error","message":"in task [bold]: failed"}`)); err != nil {
		t.Fatal(err)
	}

	want := "[runx] \x1b[31m\x1b[1merror\x1b[0m: in task [bold]: failed\x1b[0m\n"
	if out.String() != want {
		t.Errorf("got %q, want %q", out.String(), want)
	}
}
