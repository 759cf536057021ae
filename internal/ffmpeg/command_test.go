package ffmpeg

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/five82/ab-av1/internal/temporary"
)

func intPtr(n int) *int { return &n }

func TestSampleEncodeCommandsSvtAv1(t *testing.T) {
	a := &EncoderArgs{
		Encoder:     EncoderSvtAv1,
		Preset:      NumericPreset(8),
		CRF:         32,
		PixelFormat: Yuv420p10le,
		Keyint:      intPtr(240),
		SCD:         true,
		Svt:         []Arg{{Key: "tune", Value: "0"}},
		EncInput:    []Arg{{Key: "hwaccel", Value: "none"}},
	}

	cmds := Tools{}.SampleEncodeCommands(a, "s.mkv", "s.crf32.mkv")
	require.Len(t, cmds, 1)
	assert.Equal(t, "ffmpeg", cmds[0].Program)

	want := []string{
		"-y", "-hwaccel", "none", "-i", "s.mkv", "-map", "0:v:0",
		"-c:v", "libsvtav1", "-preset", "8", "-crf", "32", "-pix_fmt", "yuv420p10le",
		"-g", "240", "-svtav1-params", "scd=1:tune=0",
		"-an", "-sn", "s.crf32.mkv",
	}
	if diff := cmp.Diff(want, cmds[0].Args); diff != "" {
		t.Errorf("args mismatch (-want +got):\n%s", diff)
	}
}

func TestSampleEncodeCommandsMergesSvtParamsFromEnc(t *testing.T) {
	a := &EncoderArgs{
		Encoder:     EncoderSvtAv1,
		CRF:         30,
		PixelFormat: Yuv420p10le,
		Enc:         []Arg{{Key: "svtav1-params", Value: "film-grain=8"}},
	}
	args := Tools{}.SampleEncodeCommands(a, "in", "out")[0].Args
	assert.Contains(t, args, "film-grain=8:scd=0")
	assert.Equal(t, 1, countOf(args, "-svtav1-params"))
}

func countOf(args []string, s string) int {
	n := 0
	for _, a := range args {
		if a == s {
			n++
		}
	}
	return n
}

func TestSampleEncodeCommandsNativePipe(t *testing.T) {
	a := &EncoderArgs{
		Encoder:     EncoderSvtAv1App,
		Preset:      NumericPreset(6),
		CRF:         28.5,
		PixelFormat: Yuv420p10le,
		VFilter:     "scale=1280:-1",
		Keyint:      intPtr(300),
		Svt:         []Arg{{Key: "tune", Value: "0"}},
	}

	cmds := Tools{SvtAv1: "/opt/SvtAv1EncApp"}.SampleEncodeCommands(a, "s.mkv", "s.ivf")
	require.Len(t, cmds, 2)

	wantProducer := []string{
		"-y", "-i", "s.mkv", "-map", "0:v:0", "-vf", "scale=1280:-1",
		"-pix_fmt", "yuv420p10le", "-strict", "-1", "-f", "yuv4mpegpipe", "-",
	}
	if diff := cmp.Diff(wantProducer, cmds[0].Args); diff != "" {
		t.Errorf("producer mismatch (-want +got):\n%s", diff)
	}

	assert.Equal(t, "/opt/SvtAv1EncApp", cmds[1].Program)
	wantConsumer := []string{
		"-i", "stdin", "--crf", "28.5", "--preset", "6", "--keyint", "300",
		"--scd", "0", "--input-depth", "10", "--tune", "0", "-b", "s.ivf",
	}
	if diff := cmp.Diff(wantConsumer, cmds[1].Args); diff != "" {
		t.Errorf("consumer mismatch (-want +got):\n%s", diff)
	}
}

func TestSampleEncodeCommandsX26xKeyint(t *testing.T) {
	a := &EncoderArgs{Encoder: EncoderX265, CRF: 22, PixelFormat: Yuv420p, Keyint: intPtr(240)}
	args := Tools{}.SampleEncodeCommands(a, "in", "out")[0].Args
	assert.Contains(t, args, "-x265-params")
	assert.Contains(t, args, "keyint=240")
	assert.NotContains(t, args, "-g")

	a.Enc = []Arg{{Key: "x265-params", Value: "aq-mode=3"}}
	args = Tools{}.SampleEncodeCommands(a, "in", "out")[0].Args
	assert.Contains(t, args, "aq-mode=3:keyint=240")
	assert.Equal(t, "aq-mode=3", a.Enc[0].Value, "caller's args must not be mutated")

	a.Enc = []Arg{{Key: "x265-params", Value: "keyint=120"}}
	args = Tools{}.SampleEncodeCommands(a, "in", "out")[0].Args
	assert.Contains(t, args, "keyint=120")
	assert.NotContains(t, args, "keyint=120:keyint=240")

	a.Enc = []Arg{{Key: "x265-params", Value: "min-keyint=5"}}
	args = Tools{}.SampleEncodeCommands(a, "in", "out")[0].Args
	assert.Contains(t, args, "min-keyint=5:keyint=240")
}

func TestHasParamKey(t *testing.T) {
	tests := []struct {
		params string
		want   bool
	}{
		{"keyint=120", true},
		{"aq-mode=3:keyint=120", true},
		{"min-keyint=5", false},
		{"aq-mode=3:min-keyint=5", false},
		{"", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, hasParamKey(tt.params, "keyint"), tt.params)
	}
}

func TestSampleEncodeCommandsPerCodecFlags(t *testing.T) {
	vp9 := &EncoderArgs{Encoder: EncoderVP9, Preset: NumericPreset(4), CRF: 33, PixelFormat: Yuv420p}
	args := Tools{}.SampleEncodeCommands(vp9, "in", "out")[0].Args
	assert.Contains(t, args, "-cpu-used")
	assert.Contains(t, args, "-b:v")

	vp9.Enc = []Arg{{Key: "b:v", Value: "2M"}}
	args = Tools{}.SampleEncodeCommands(vp9, "in", "out")[0].Args
	assert.Equal(t, 1, countOf(args, "-b:v"))

	rav1e := &EncoderArgs{Encoder: EncoderRav1e, Preset: NumericPreset(6), CRF: 80}
	args = Tools{}.SampleEncodeCommands(rav1e, "in", "out")[0].Args
	assert.Contains(t, args, "-qp")
	assert.Contains(t, args, "-speed")

	nvenc := &EncoderArgs{Encoder: Encoder("av1_nvenc"), CRF: 30}
	args = Tools{}.SampleEncodeCommands(nvenc, "in", "out")[0].Args
	assert.Contains(t, args, "-cq")

	qsv := &EncoderArgs{Encoder: Encoder("hevc_qsv"), CRF: 25}
	args = Tools{}.SampleEncodeCommands(qsv, "in", "out")[0].Args
	assert.Contains(t, args, "-global_quality")
}

func TestFullEncodeCommandAudio(t *testing.T) {
	a := &EncoderArgs{Encoder: EncoderSvtAv1, Preset: NumericPreset(8), CRF: 30, PixelFormat: Yuv420p10le}
	audio := AudioOptions{HasAudio: true, Channels: 6, DownmixToStereo: true}

	cmd := Tools{}.FullEncodeCommand(a, "in.mkv", "out.mkv", audio)
	want := []string{
		"-y", "-i", "in.mkv", "-map", "0:v:0",
		"-c:v", "libsvtav1", "-preset", "8", "-crf", "30", "-pix_fmt", "yuv420p10le",
		"-svtav1-params", "scd=0",
		"-map", "0:a?", "-c:a", "libopus", "-ac", "2", "-b:a", "128k",
		"-map", "0:s?", "-c:s", "copy",
		"out.mkv",
	}
	if diff := cmp.Diff(want, cmd.Args); diff != "" {
		t.Errorf("args mismatch (-want +got):\n%s", diff)
	}

	mp4 := Tools{}.FullEncodeCommand(a, "in.mkv", "out.mp4", AudioOptions{HasAudio: true, Codec: "copy"})
	assert.Contains(t, mp4.Args, "copy")
	assert.NotContains(t, mp4.Args, "-b:a")
	assert.NotContains(t, mp4.Args, "0:s?")
}

func TestRemuxCommand(t *testing.T) {
	cmd := Tools{}.RemuxCommand("v.ivf", "in.mkv", "out.mkv", AudioOptions{HasAudio: true, Channels: 2})
	want := []string{
		"-y", "-i", "v.ivf", "-i", "in.mkv", "-map", "0:v:0", "-c:v", "copy",
		"-map", "1:a?", "-c:a", "libopus", "-b:a", "128k",
		"-map", "1:s?", "-c:s", "copy",
		"out.mkv",
	}
	if diff := cmp.Diff(want, cmd.Args); diff != "" {
		t.Errorf("args mismatch (-want +got):\n%s", diff)
	}
}

func TestCalculateAudioBitrate(t *testing.T) {
	tests := []struct {
		channels uint32
		want     uint32
	}{
		{1, 64}, {2, 128}, {6, 256}, {8, 384}, {4, 192},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, CalculateAudioBitrate(tt.channels), "channels=%d", tt.channels)
	}
}

func TestSamplePath(t *testing.T) {
	tests := []struct {
		input  string
		start  time.Duration
		length time.Duration
		want   string
	}{
		{"/v/movie.mkv", 60 * time.Second, 20 * time.Second, "/tmp/x/movie.sample60+20s.mkv"},
		{"/v/clip.mp4", 1500 * time.Millisecond, 20 * time.Second, "/tmp/x/clip.sample1+20s.mp4"},
		{"/v/old.avi", 0, 20 * time.Second, "/tmp/x/old.sample0+20s.mkv"},
		{"/v/web.webm", 5 * time.Second, 2500 * time.Millisecond, "/tmp/x/web.sample5+2.5s.webm"},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, SamplePath(tt.input, tt.start, tt.length, "/tmp/x"))
		})
	}
}

func TestCutCommand(t *testing.T) {
	cmd := Tools{FFmpeg: "/usr/bin/ffmpeg"}.CutCommand("in.mkv", 61500*time.Millisecond, 20*time.Second, "out.mkv")
	assert.Equal(t, "/usr/bin/ffmpeg", cmd.Program)
	want := []string{
		"-y", "-ss", "61", "-i", "in.mkv", "-t", "20", "-map", "0:v:0",
		"-c:v", "copy", "-an", "-sn", "-avoid_negative_ts", "make_zero", "out.mkv",
	}
	if diff := cmp.Diff(want, cmd.Args); diff != "" {
		t.Errorf("args mismatch (-want +got):\n%s", diff)
	}
}

func TestCutSampleReusesExistingFileAndRegistersIt(t *testing.T) {
	dir := t.TempDir()
	reg := temporary.NewRegistry()
	// A binary that cannot exist proves no process is spawned.
	exec := &Executor{Tools: Tools{FFmpeg: filepath.Join(dir, "missing-ffmpeg")}, Temp: reg}

	dest := SamplePath("/v/movie.mkv", 40*time.Second, 20*time.Second, dir)
	require.NoError(t, os.WriteFile(dest, []byte("cut"), 0o644))

	got, err := exec.CutSample(t.Context(), "/v/movie.mkv", 40*time.Second, 20*time.Second, dir)
	require.NoError(t, err)
	assert.Equal(t, dest, got)
	assert.True(t, reg.Registered(dest))

	reg.Clean(false)
	assert.NoFileExists(t, dest)
}
