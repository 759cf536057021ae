package ffmpeg

import (
	"context"
	"path/filepath"
	"time"

	"github.com/five82/ab-av1/internal/errors"
	"github.com/five82/ab-av1/internal/logging"
	"github.com/five82/ab-av1/internal/process"
	"github.com/five82/ab-av1/internal/temporary"
	"github.com/five82/ab-av1/internal/util"
)

// ProgressFunc receives ffmpeg progress records.
type ProgressFunc func(process.Progress)

// Executor runs cut and encode commands.
type Executor struct {
	Tools  Tools
	Runner *process.Runner
	// Temp registers outputs; defaults to the process-wide registry.
	Temp *temporary.Registry
}

// NewExecutor creates an executor for the given binaries.
func NewExecutor(tools Tools) *Executor {
	return &Executor{
		Tools:  tools,
		Runner: &process.Runner{Logger: logging.Component("ffmpeg")},
	}
}

func (e *Executor) temp() *temporary.Registry {
	if e.Temp == nil {
		return temporary.Global()
	}
	return e.Temp
}

func (e *Executor) run(ctx context.Context, onProgress ProgressFunc, cmds ...*process.Command) error {
	runner := e.Runner
	if runner == nil {
		runner = &process.Runner{}
	}
	return runner.Run(ctx, func(ev process.Event) {
		if onProgress != nil && ev.Progress != nil {
			onProgress(*ev.Progress)
		}
	}, cmds...)
}

// CutSample cuts a sample into dir and returns its path. The destination is
// registered temporary before ffmpeg starts. An existing cut is reused.
func (e *Executor) CutSample(ctx context.Context, input string, start, length time.Duration, dir string) (string, error) {
	dest := SamplePath(input, start, length, dir)
	e.temp().Add(dest, temporary.File)
	if util.FileExists(dest) {
		return dest, nil
	}
	if err := e.run(ctx, nil, e.Tools.CutCommand(input, start, length, dest)); err != nil {
		return "", err
	}
	return dest, nil
}

// EncodeSample encodes a sample video-only into dir and returns the output
// path, registered temporary.
func (e *Executor) EncodeSample(ctx context.Context, a *EncoderArgs, sample, dir string, onProgress ProgressFunc) (string, error) {
	out := EncodedSamplePath(sample, dir, a)
	e.temp().Add(out, temporary.File)
	if err := e.run(ctx, onProgress, e.Tools.SampleEncodeCommands(a, sample, out)...); err != nil {
		return "", err
	}
	return out, nil
}

// Encode performs a full encode of input to output, including audio and
// subtitles. The output is committed only on success so an interrupted
// encode leaves nothing behind.
func (e *Executor) Encode(ctx context.Context, a *EncoderArgs, input, output string, audio AudioOptions, onProgress ProgressFunc) error {
	if dir := filepath.Dir(output); dir != "" {
		if err := util.EnsureDirectory(dir); err != nil {
			return errors.NewIOError("failed to create output directory", err)
		}
	}
	reg := e.temp()
	reg.Add(output, temporary.File)

	if !a.Encoder.IsNative() {
		if err := e.run(ctx, onProgress, e.Tools.FullEncodeCommand(a, input, output, audio)); err != nil {
			return err
		}
		reg.Commit(output)
		return nil
	}

	video := output + ".video.ivf"
	reg.Add(video, temporary.File)
	if err := e.run(ctx, onProgress, e.Tools.SampleEncodeCommands(a, input, video)...); err != nil {
		return err
	}
	if err := e.run(ctx, nil, e.Tools.RemuxCommand(video, input, output, audio)); err != nil {
		return err
	}
	if err := reg.Remove(video); err != nil {
		logging.Warn("failed to remove intermediate video", "path", video, "error", err)
	}
	reg.Commit(output)
	return nil
}
