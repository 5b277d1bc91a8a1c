package command

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/grovetools/claudemon/errors"
)

func TestValidateBinary(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"plain name", "node", false},
		{"absolute path", "/usr/local/bin/claude", false},
		{"empty", "", true},
		{"whitespace", "   ", true},
		{"pipe", "claude | tee", true},
		{"subshell", "$(whoami)", true},
		{"chained", "node; rm -rf /", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateBinary(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("validateBinary(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
		})
	}
}

func TestBuilderEnvironment(t *testing.T) {
	b := NewBuilder().WithSearchPath([]string{"/a", "/b"}).WithEnv(map[string]string{"FOO": "bar"})
	if b.SearchPath() != "/a:/b" {
		t.Errorf("unexpected search path %q", b.SearchPath())
	}

	env := strings.Join(b.Env(), "\n")
	if !strings.Contains(env, "PATH=/a:/b") || !strings.Contains(env, "FOO=bar") {
		t.Errorf("environment missing overrides: %s", env)
	}
}

func TestWithTimeoutCap(t *testing.T) {
	b := NewBuilder().WithTimeout(time.Hour)
	if b.defaultTimeout != MaxTimeout {
		t.Errorf("expected timeout capped at %s, got %s", MaxTimeout, b.defaultTimeout)
	}
	b.WithTimeout(0)
	if b.defaultTimeout != MaxTimeout {
		t.Error("zero timeout should leave the previous value")
	}
}

func TestRun(t *testing.T) {
	ctx := context.Background()
	b := NewBuilder().WithSearchPath([]string{"/usr/bin", "/bin"})

	cmd, err := b.Build("echo", "v1.2.3")
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	res, err := cmd.Run(ctx)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if res.Stdout != "v1.2.3" {
		t.Errorf("unexpected stdout %q", res.Stdout)
	}

	cmd, _ = b.Build("definitely-not-a-real-binary-xyz")
	_, err = cmd.Run(ctx)
	if !errors.Is(err, errors.ErrCodeCommandNotFound) {
		t.Errorf("expected COMMAND_NOT_FOUND, got %v", err)
	}

	cmd, _ = b.Build("sh", "-c", "echo boom >&2; exit 3")
	res, err = cmd.Run(ctx)
	if !errors.Is(err, errors.ErrCodeCommandFailed) {
		t.Errorf("expected COMMAND_FAILED, got %v", err)
	}
	if res.Stderr != "boom" {
		t.Errorf("unexpected stderr %q", res.Stderr)
	}

	cmd, _ = b.WithTimeout(100*time.Millisecond).Build("sleep", "5")
	_, err = cmd.Run(ctx)
	if !errors.Is(err, errors.ErrCodeCommandTimeout) {
		t.Errorf("expected COMMAND_TIMEOUT, got %v", err)
	}
}
