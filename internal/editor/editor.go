// Package editor hands note content to the user's external editor and reads
// the result back. The editor owns the terminal while it runs; whoever owned
// it before gets it back on every exit path.
package editor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

const fallbackEditor = "vi"

// Terminal is the current owner of the screen. *tea.Program satisfies it.
type Terminal interface {
	ReleaseTerminal() error
	RestoreTerminal() error
}

// NopTerminal is used when nothing else holds the terminal.
type NopTerminal struct{}

func (NopTerminal) ReleaseTerminal() error { return nil }
func (NopTerminal) RestoreTerminal() error { return nil }

// EditorError reports an editor that could not start or exited non-zero.
// ExitCode is -1 when the process never ran.
type EditorError struct {
	Command  string
	ExitCode int
	Err      error
}

func (e *EditorError) Error() string {
	if e.ExitCode >= 0 {
		return fmt.Sprintf("editor %s exited with status %d", e.Command, e.ExitCode)
	}
	return fmt.Sprintf("editor %s: %v", e.Command, e.Err)
}

func (e *EditorError) Unwrap() error { return e.Err }

type Result struct {
	Content   string
	Changed   bool
	Cancelled bool
	Path      string
}

type Editor struct {
	Terminal Terminal
	// TempDir overrides os.TempDir for the scratch file.
	TempDir string
	// Command overrides $VISUAL and $EDITOR when set.
	Command string
	Stdin   io.Reader
	Stdout  io.Writer
	Stderr  io.Writer
	Logger  *slog.Logger
}

// Command resolves the editor command line: $VISUAL, then $EDITOR, then vi.
func Command() string {
	if v := strings.TrimSpace(os.Getenv("VISUAL")); v != "" {
		return v
	}
	if v := strings.TrimSpace(os.Getenv("EDITOR")); v != "" {
		return v
	}
	return fallbackEditor
}

func (e *Editor) argv() []string {
	line := strings.TrimSpace(e.Command)
	if line == "" {
		line = Command()
	}
	args := SplitCommand(line)
	if len(args) == 0 {
		args = []string{fallbackEditor}
	}
	return args
}

func (e *Editor) logger() *slog.Logger {
	if e.Logger != nil {
		return e.Logger
	}
	return slog.Default()
}

func (e *Editor) terminal() Terminal {
	if e.Terminal != nil {
		return e.Terminal
	}
	return NopTerminal{}
}

// Open writes content to a fresh temp file, runs the editor on it and returns
// what was saved. The temp file is removed and the terminal restored before
// Open returns, whatever happened in between.
func (e *Editor) Open(ctx context.Context, content, suggestedName string) (res Result, err error) {
	f, err := os.CreateTemp(e.TempDir, tempPattern(suggestedName))
	if err != nil {
		return Result{Cancelled: true}, fmt.Errorf("create temp file: %w", err)
	}
	path := f.Name()
	defer os.Remove(path)

	_, werr := f.WriteString(content)
	cerr := f.Close()
	if werr = errors.Join(werr, cerr); werr != nil {
		return Result{Cancelled: true, Path: path}, fmt.Errorf("write temp file: %w", werr)
	}

	args := e.argv()
	term := e.terminal()
	if err := term.ReleaseTerminal(); err != nil {
		return Result{Cancelled: true, Path: path}, fmt.Errorf("release terminal: %w", err)
	}
	defer func() {
		if rerr := term.RestoreTerminal(); rerr != nil && err == nil {
			err = fmt.Errorf("restore terminal: %w", rerr)
		}
	}()

	e.logger().Debug("launching editor", "cmd", args[0], "file", path)

	cmd := exec.CommandContext(ctx, args[0], append(args[1:], path)...)
	cmd.Stdin = orReader(e.Stdin, os.Stdin)
	cmd.Stdout = orWriter(e.Stdout, os.Stdout)
	cmd.Stderr = orWriter(e.Stderr, os.Stderr)

	if runErr := cmd.Run(); runErr != nil {
		edErr := &EditorError{Command: args[0], ExitCode: -1, Err: runErr}
		var exitErr *exec.ExitError
		if errors.As(runErr, &exitErr) && exitErr.ExitCode() >= 0 {
			edErr.ExitCode = exitErr.ExitCode()
		}
		return Result{Cancelled: true, Path: path}, edErr
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Result{Cancelled: true, Path: path}, fmt.Errorf("read temp file: %w", err)
	}
	edited := string(data)
	return Result{Content: edited, Changed: edited != content, Path: path}, nil
}

func orReader(r, def io.Reader) io.Reader {
	if r != nil {
		return r
	}
	return def
}

func orWriter(w, def io.Writer) io.Writer {
	if w != nil {
		return w
	}
	return def
}

// tempPattern turns a note title plus extension into an os.CreateTemp
// pattern made of filename-safe characters.
func tempPattern(suggested string) string {
	ext := filepath.Ext(suggested)
	base := strings.TrimSuffix(filepath.Base(suggested), ext)
	if strings.ContainsAny(ext, " *") || len(ext) > 10 {
		base, ext = filepath.Base(suggested), ""
	}

	var b strings.Builder
	dash := false
	for _, r := range base {
		ok := r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
		if ok {
			b.WriteRune(r)
			dash = false
			continue
		}
		if !dash && b.Len() > 0 {
			b.WriteByte('-')
			dash = true
		}
	}
	name := strings.TrimRight(b.String(), "-")
	if len(name) > 40 {
		name = strings.TrimRight(name[:40], "-")
	}
	if name == "" {
		name = "note"
	}
	return "notetree-" + name + "-*" + strings.ReplaceAll(ext, "*", "")
}
