package claude

import (
	"reflect"
	"testing"
	"time"
)

func TestBuildOptions(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		opts := BuildOptions(OpExecutePrompt, Params{Prompt: "hi"})
		if opts.OutputFormat != FormatJSON {
			t.Errorf("OutputFormat = %q, want json", opts.OutputFormat)
		}
		if opts.Timeout != DefaultTimeout {
			t.Errorf("Timeout = %s, want %s", opts.Timeout, DefaultTimeout)
		}
		if opts.Tools.Allowed != nil || opts.AdditionalArgs != nil {
			t.Errorf("expected empty lists, got %+v", opts)
		}
		if opts.Session != (Session{}) {
			t.Errorf("executePrompt must not set a session: %+v", opts.Session)
		}
	})

	t.Run("tool lists trimmed", func(t *testing.T) {
		opts := BuildOptions(OpExecutePrompt, Params{
			AllowedTools:    " Bash(git:*) , Read,, ",
			DisallowedTools: "Write",
		})
		if !reflect.DeepEqual(opts.Tools.Allowed, []string{"Bash(git:*)", "Read"}) {
			t.Errorf("Allowed = %v", opts.Tools.Allowed)
		}
		if !reflect.DeepEqual(opts.Tools.Disallowed, []string{"Write"}) {
			t.Errorf("Disallowed = %v", opts.Tools.Disallowed)
		}
	})

	t.Run("blank additional args stay nil", func(t *testing.T) {
		opts := BuildOptions(OpExecutePrompt, Params{AdditionalArgs: "   "})
		if opts.AdditionalArgs != nil {
			t.Errorf("AdditionalArgs = %#v, want nil", opts.AdditionalArgs)
		}
	})

	t.Run("additional args split on spaces", func(t *testing.T) {
		opts := BuildOptions(OpExecutePrompt, Params{AdditionalArgs: "--verbose   --debug"})
		if !reflect.DeepEqual(opts.AdditionalArgs, []string{"--verbose", "--debug"}) {
			t.Errorf("AdditionalArgs = %v", opts.AdditionalArgs)
		}
	})

	t.Run("timeout seconds", func(t *testing.T) {
		opts := BuildOptions(OpExecutePrompt, Params{TimeoutSeconds: 42})
		if opts.Timeout != 42*time.Second {
			t.Errorf("Timeout = %s", opts.Timeout)
		}
	})

	t.Run("custom model", func(t *testing.T) {
		opts := BuildOptions(OpExecutePrompt, Params{Model: CustomModel, CustomModel: " claude-x "})
		if opts.Model != "claude-x" {
			t.Errorf("Model = %q", opts.Model)
		}
	})

	t.Run("continue session", func(t *testing.T) {
		opts := BuildOptions(OpContinueSession, Params{SessionID: "ignored"})
		if opts.Session != (Session{ContinueLast: true}) {
			t.Errorf("Session = %+v", opts.Session)
		}
	})

	t.Run("resume session", func(t *testing.T) {
		opts := BuildOptions(OpResumeSession, Params{SessionID: " abc "})
		if opts.Session != (Session{ID: "abc"}) {
			t.Errorf("Session = %+v", opts.Session)
		}
	})

	t.Run("context files and dirs", func(t *testing.T) {
		opts := BuildOptions(OpExecuteWithContext, Params{
			ContextFiles:   []string{"/a/b/f1", " ", "/a/c/f2"},
			AdditionalDirs: "/extra/dir, /other/",
		})
		want := []string{"/a/b/f1", "/a/c/f2", "/extra/dir/", "/other/"}
		if !reflect.DeepEqual(opts.ContextFiles, want) {
			t.Errorf("ContextFiles = %v, want %v", opts.ContextFiles, want)
		}
	})

	t.Run("context ignored outside executeWithContext", func(t *testing.T) {
		opts := BuildOptions(OpExecutePrompt, Params{ContextFiles: []string{"/a/b"}})
		if opts.ContextFiles != nil {
			t.Errorf("ContextFiles = %v", opts.ContextFiles)
		}
	})
}

func TestParseOperation(t *testing.T) {
	op, err := ParseOperation("resumesession")
	if err != nil || op != OpResumeSession {
		t.Errorf("ParseOperation = %q, %v", op, err)
	}
	if _, err := ParseOperation("delete"); err == nil {
		t.Error("expected error for unknown operation")
	}
}

func TestEffectiveTimeout(t *testing.T) {
	if got := (Options{}).EffectiveTimeout(); got != DefaultTimeout {
		t.Errorf("zero timeout: got %s", got)
	}
	if got := (Options{Timeout: time.Second}).EffectiveTimeout(); got != time.Second {
		t.Errorf("explicit timeout: got %s", got)
	}
}
