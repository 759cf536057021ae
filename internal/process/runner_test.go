//go:build unix

package process

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/five82/ab-av1/internal/errors"
)

func sh(name, script string) *Command {
	return &Command{Name: name, Program: "sh", Args: []string{"-c", script}}
}

func TestRunParsesProgressAndSizes(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	var events []Event
	err := (&Runner{}).Run(context.Background(), func(ev Event) { events = append(events, ev) },
		sh("fake encode", `printf 'frame=  10 fps=5.0 q=1 size=1kB time=00:00:01.50 bitrate=1\rframe=  20 fps=5.0 q=1 size=2kB time=00:00:03.00 bitrate=1\r' >&2
printf 'video:10kB audio:2kB subtitle:0kB other streams:0kB\n' >&2`))
	require.NoError(t, err)

	var progress []Progress
	var sizes *StreamSizes
	for _, ev := range events {
		assert.Equal(t, "fake encode", ev.Source)
		if ev.Progress != nil {
			progress = append(progress, *ev.Progress)
		}
		if ev.Sizes != nil {
			sizes = ev.Sizes
		}
	}
	require.Len(t, progress, 2)
	assert.Equal(t, uint64(20), progress[1].Frame)
	assert.Equal(t, 3*time.Second, progress[1].Time)
	require.NotNil(t, sizes)
	assert.Equal(t, uint64(10*1024), sizes.Video)
}

func TestRunFailureCarriesExitCodeAndTail(t *testing.T) {
	err := (&Runner{}).Run(context.Background(), nil, sh("ffmpeg vmaf", `echo "Invalid data found" >&2; exit 3`))
	require.Error(t, err)

	cmdErr, ok := errors.AsCommandError(err)
	require.True(t, ok)
	assert.Equal(t, "ffmpeg vmaf", cmdErr.Command)
	assert.Equal(t, 3, cmdErr.ExitCode)
	assert.Contains(t, cmdErr.Stderr, "Invalid data found")
	assert.Contains(t, err.Error(), "exit code 3")
}

func TestRunSignalTerminationReportsNone(t *testing.T) {
	err := (&Runner{}).Run(context.Background(), nil, sh("ffmpeg cut", `kill -9 $$`))
	require.Error(t, err)

	cmdErr, ok := errors.AsCommandError(err)
	require.True(t, ok)
	assert.Equal(t, errors.NoExitCode, cmdErr.ExitCode)
	assert.Contains(t, err.Error(), "exit code None")
}

func TestRunPipesProducerIntoConsumer(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	var lines []string
	err := (&Runner{}).Run(context.Background(), func(ev Event) { lines = append(lines, ev.Source+": "+ev.Line) },
		sh("decoder", `printf 'abcdef'; echo "decoded" >&2`),
		sh("encoder", `n=$(wc -c); echo "got $n bytes" >&2`),
	)
	require.NoError(t, err)
	assert.Contains(t, lines, "decoder: decoded")

	var got string
	for _, l := range lines {
		if strings.HasPrefix(l, "encoder: got") {
			got = strings.Join(strings.Fields(l), " ")
		}
	}
	assert.Equal(t, "encoder: got 6 bytes", got)
}

func TestRunConsumerFailureStopsProducer(t *testing.T) {
	start := time.Now()
	err := (&Runner{}).Run(context.Background(), nil,
		sh("decoder", `sleep 30`),
		sh("encoder", `echo "bad params" >&2; exit 2`),
	)
	require.Error(t, err)
	cmdErr, ok := errors.AsCommandError(err)
	require.True(t, ok)
	assert.Equal(t, "encoder", cmdErr.Command)
	assert.Less(t, time.Since(start), 10*time.Second)
}

func TestRunCancellationKillsChildren(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(100*time.Millisecond, cancel)

	start := time.Now()
	err := (&Runner{}).Run(ctx, nil, sh("sleeper", `sleep 30 & wait`))
	require.Error(t, err)
	assert.True(t, errors.IsCancelled(err), "got %v", err)
	assert.Less(t, time.Since(start), 10*time.Second)
}

func TestRunStartFailure(t *testing.T) {
	err := (&Runner{}).Run(context.Background(), nil, &Command{Name: "missing", Program: "/nonexistent/ab-av1-tool"})
	require.Error(t, err)
	cmdErr, ok := errors.AsCommandError(err)
	require.True(t, ok)
	assert.Equal(t, errors.CommandStart, cmdErr.Kind)
}

func TestOutputCapturesStdout(t *testing.T) {
	out, err := (&Runner{}).Output(context.Background(), sh("ffprobe", `printf '{"streams":[]}'; echo "noise" >&2`))
	require.NoError(t, err)
	assert.Equal(t, `{"streams":[]}`, string(out))
}

func TestOutputFailureCarriesTail(t *testing.T) {
	_, err := (&Runner{}).Output(context.Background(), sh("ffprobe", `echo "No such file" >&2; exit 1`))
	require.Error(t, err)
	cmdErr, ok := errors.AsCommandError(err)
	require.True(t, ok)
	assert.Equal(t, 1, cmdErr.ExitCode)
	assert.Contains(t, cmdErr.Stderr, "No such file")
}

func TestOutputCancellationKillsProcessGroup(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(100*time.Millisecond, cancel)

	// The grandchild holds stdout open; only a group kill lets Output return
	// before the wait delay.
	start := time.Now()
	_, err := (&Runner{}).Output(ctx, sh("ffprobe", `sleep 30 & wait`))
	require.Error(t, err)
	assert.True(t, errors.IsCancelled(err), "got %v", err)
	assert.Less(t, time.Since(start), waitDelay)
}
