package audio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
)

// Chunk is one encoded window ready for upload.
type Chunk struct {
	Window   Window
	Data     []byte
	MimeType string
}

// CommandLog captures one external command invocation.
type CommandLog struct {
	Command  string   `json:"command"`
	Args     []string `json:"args"`
	ExitCode int      `json:"exit_code"`
	Stderr   string   `json:"stderr"`
}

// ToolError reports a failed ffmpeg/ffprobe step with its command context.
type ToolError struct {
	Op         string
	Message    string
	CommandLog CommandLog
	Err        error
}

func (e *ToolError) Error() string {
	if e == nil {
		return ""
	}
	if e.CommandLog.Command == "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}
	return fmt.Sprintf("%s: %s (cmd=%s exit=%d)", e.Op, e.Message, e.CommandLog.Command, e.CommandLog.ExitCode)
}

func (e *ToolError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

type commandResult struct {
	Stdout   []byte
	Stderr   string
	ExitCode int
}

// commandRunner abstracts process execution so tests can fake ffmpeg.
type commandRunner interface {
	Run(ctx context.Context, name string, args ...string) (commandResult, error)
}

type execRunner struct{}

func (r *execRunner) Run(ctx context.Context, name string, args ...string) (commandResult, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stdout bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	result := commandResult{
		Stdout: stdout.Bytes(),
		Stderr: stderr.String(),
	}
	if err != nil {
		result.ExitCode = -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
		}
		return result, err
	}
	return result, nil
}

// FFmpeg probes durations and cuts windows out of local media files.
type FFmpeg struct {
	ffmpegPath  string
	ffprobePath string
	runner      commandRunner
	stat        func(name string) (os.FileInfo, error)
}

// NewFFmpeg builds the production decoder. Empty paths fall back to PATH lookup.
func NewFFmpeg(ffmpegPath, ffprobePath string) *FFmpeg {
	if strings.TrimSpace(ffmpegPath) == "" {
		ffmpegPath = "ffmpeg"
	}
	if strings.TrimSpace(ffprobePath) == "" {
		ffprobePath = "ffprobe"
	}
	return &FFmpeg{
		ffmpegPath:  ffmpegPath,
		ffprobePath: ffprobePath,
		runner:      &execRunner{},
		stat:        os.Stat,
	}
}

// Check reports whether the source file can be read.
func (f *FFmpeg) Check(path string) error {
	if strings.TrimSpace(path) == "" {
		return &ToolError{Op: "check", Message: "source path is empty"}
	}
	info, err := f.stat(path)
	if err != nil {
		return &ToolError{Op: "check", Message: fmt.Sprintf("cannot access source: %s", path), Err: err}
	}
	if info.IsDir() {
		return &ToolError{Op: "check", Message: fmt.Sprintf("source is a directory: %s", path)}
	}
	return nil
}

// Probe returns the duration of the media file in seconds.
func (f *FFmpeg) Probe(ctx context.Context, path string) (float64, error) {
	args := []string{
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	}
	res, err := f.runner.Run(ctx, f.ffprobePath, args...)
	if err != nil {
		return 0, &ToolError{
			Op:         "probe",
			Message:    "ffprobe failed",
			CommandLog: commandLog(f.ffprobePath, args, res),
			Err:        err,
		}
	}

	raw := strings.TrimSpace(string(res.Stdout))
	seconds, err := strconv.ParseFloat(raw, 64)
	if err != nil || seconds <= 0 {
		return 0, &ToolError{
			Op:         "probe",
			Message:    fmt.Sprintf("unexpected duration %q", raw),
			CommandLog: commandLog(f.ffprobePath, args, res),
			Err:        err,
		}
	}
	return seconds, nil
}

// Encode extracts one window as mono 16 kHz mp3.
func (f *FFmpeg) Encode(ctx context.Context, path string, w Window) (Chunk, error) {
	args := []string{
		"-hide_banner",
		"-loglevel", "error",
		"-ss", formatSeconds(w.Start),
		"-t", formatSeconds(w.Length),
		"-i", path,
		"-vn",
		"-ac", "1",
		"-ar", "16000",
		"-f", "mp3",
		"pipe:1",
	}
	res, err := f.runner.Run(ctx, f.ffmpegPath, args...)
	if err != nil {
		return Chunk{}, &ToolError{
			Op:         "encode",
			Message:    fmt.Sprintf("ffmpeg failed on window %d", w.Index),
			CommandLog: commandLog(f.ffmpegPath, args, res),
			Err:        err,
		}
	}
	if len(res.Stdout) == 0 {
		return Chunk{}, &ToolError{
			Op:         "encode",
			Message:    fmt.Sprintf("ffmpeg produced no audio for window %d", w.Index),
			CommandLog: commandLog(f.ffmpegPath, args, res),
		}
	}
	return Chunk{Window: w, Data: res.Stdout, MimeType: "audio/mpeg"}, nil
}

func commandLog(name string, args []string, res commandResult) CommandLog {
	return CommandLog{
		Command:  name,
		Args:     append([]string(nil), args...),
		ExitCode: res.ExitCode,
		Stderr:   res.Stderr,
	}
}

func formatSeconds(s float64) string {
	return strconv.FormatFloat(s, 'f', 3, 64)
}
