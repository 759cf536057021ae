// Package process runs external tools and turns their stderr into events.
package process

import (
	"bytes"
	"context"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/five82/ab-av1/internal/errors"
	"github.com/five82/ab-av1/internal/logging"
)

// waitDelay bounds how long Wait blocks on inherited pipes after a kill.
const waitDelay = 5 * time.Second

// Command is one external tool invocation.
type Command struct {
	// Name identifies the operation in errors, e.g. "ffmpeg encode".
	Name    string
	Program string
	Args    []string
}

// String renders the command line for logs.
func (c *Command) String() string {
	parts := make([]string, 0, len(c.Args)+1)
	parts = append(parts, c.Program)
	for _, a := range c.Args {
		if a == "" || strings.ContainsAny(a, " \t'\"") {
			a = "'" + strings.ReplaceAll(a, "'", `'\''`) + "'"
		}
		parts = append(parts, a)
	}
	return strings.Join(parts, " ")
}

// Event is one stderr line from a running command. Progress and Sizes are
// set when the line matched the corresponding pattern.
type Event struct {
	Source   string
	Line     string
	Progress *Progress
	Sizes    *StreamSizes
}

// Handler receives events. Calls are serialized across all commands of a Run.
type Handler func(Event)

// Runner spawns commands. The zero value is ready to use.
type Runner struct {
	// Logger defaults to the global logger's "process" component.
	Logger *logging.Logger
}

func (r *Runner) logger() *logging.Logger {
	if r.Logger == nil {
		return logging.Component("process")
	}
	return r.Logger
}

// newCmd builds a child in its own process group; cancelling ctx kills the
// whole group.
func newCmd(ctx context.Context, c *Command) *exec.Cmd {
	cmd := exec.CommandContext(ctx, c.Program, c.Args...)
	setProcessGroup(cmd)
	cmd.Cancel = func() error { return killProcessGroup(cmd) }
	cmd.WaitDelay = waitDelay
	return cmd
}

// Output runs c and returns its stdout. Stderr is kept only for the error.
func (r *Runner) Output(ctx context.Context, c *Command) ([]byte, error) {
	cmd := newCmd(ctx, c)
	tail := NewTail(TailSize)
	cmd.Stderr = tail
	var stdout bytes.Buffer
	cmd.Stdout = &stdout

	r.logger().Debug("spawning", "op", c.Name, "cmd", c.String())
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, errors.NewCancelledError()
		}
		return nil, errors.WrapExecError(c.Name, err, tail.String())
	}
	return stdout.Bytes(), nil
}

// Run executes cmds and blocks until all exit. Consecutive commands are
// connected stdout to stdin; the last command's stdout is discarded. If any
// command fails the rest are killed, and the first failure is returned as an
// *errors.CommandError. Cancelling ctx kills every child and returns a
// cancellation error.
func (r *Runner) Run(ctx context.Context, handler Handler, cmds ...*Command) error {
	if len(cmds) == 0 {
		return nil
	}
	log := r.logger()

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(runCtx)

	var mu sync.Mutex
	emit := func(ev Event) {
		if handler == nil {
			return
		}
		mu.Lock()
		defer mu.Unlock()
		handler(ev)
	}

	execs := make([]*exec.Cmd, len(cmds))
	for i, c := range cmds {
		execs[i] = newCmd(gctx, c)
	}

	var parentEnds []*os.File
	closeParentEnds := func() {
		for _, f := range parentEnds {
			_ = f.Close()
		}
		parentEnds = nil
	}
	for i := 0; i < len(execs)-1; i++ {
		pr, pw, err := os.Pipe()
		if err != nil {
			closeParentEnds()
			return errors.NewIOError("failed to create pipe", err)
		}
		execs[i].Stdout = pw
		execs[i+1].Stdin = pr
		parentEnds = append(parentEnds, pr, pw)
	}

	for i, cmd := range execs {
		c := cmds[i]
		stderr, err := cmd.StderrPipe()
		if err != nil {
			closeParentEnds()
			cancel()
			_ = g.Wait()
			return errors.NewCommandStartError(c.Name, err)
		}

		log.Debug("spawning", "op", c.Name, "cmd", c.String())
		if err := cmd.Start(); err != nil {
			closeParentEnds()
			cancel()
			_ = g.Wait()
			return errors.NewCommandStartError(c.Name, err)
		}

		g.Go(func() error {
			tail := NewTail(TailSize)
			readLines(io.TeeReader(stderr, tail), func(line string) {
				emit(parseLine(c.Name, line))
			})

			err := cmd.Wait()
			if err == nil {
				return nil
			}
			if ctx.Err() != nil {
				return errors.NewCancelledError()
			}
			return errors.WrapExecError(c.Name, err, tail.String())
		})
	}
	// The children own their copies of the pipe ends now.
	closeParentEnds()

	err := g.Wait()
	if err != nil && ctx.Err() != nil {
		return errors.NewCancelledError()
	}
	return err
}

func parseLine(source, line string) Event {
	ev := Event{Source: source, Line: line}
	if p, ok := ParseProgress(line); ok {
		ev.Progress = &p
	} else if s, ok := ParseStreamSizes(line); ok {
		ev.Sizes = &s
	}
	return ev
}

// readLines reads chunks from r and calls fn for every non-empty line.
// Both '\r' and '\n' terminate a line since ffmpeg redraws progress with '\r'.
func readLines(r io.Reader, fn func(string)) {
	buf := make([]byte, 4096)
	var line bytes.Buffer
	flush := func() {
		if s := strings.TrimSpace(line.String()); s != "" {
			fn(s)
		}
		line.Reset()
	}

	for {
		n, err := r.Read(buf)
		for _, b := range buf[:n] {
			if b == '\r' || b == '\n' {
				flush()
			} else {
				line.WriteByte(b)
			}
		}
		if err != nil {
			break
		}
	}
	flush()
}
