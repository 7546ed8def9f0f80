package render

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"VideoPipeline-server/apperr"
	"VideoPipeline-server/config"
)

// StillClip encodes one image held for DurationMs.
type StillClip struct {
	ImagePath  string
	DurationMs int
	OutPath    string
}

// MusicInput is the background bed, looped and trimmed to the timeline.
type MusicInput struct {
	Path   string
	GainDB float64
}

// VoiceInput is one narration clip placed at DelayMs.
type VoiceInput struct {
	Path    string
	DelayMs int
}

type MuxRequest struct {
	VideoPath  string
	Music      *MusicInput
	Voiceovers []VoiceInput
	TotalMs    int
	OutPath    string
}

// Transcoder is the media tool boundary of the render engine.
type Transcoder interface {
	EncodeStill(ctx context.Context, clip StillClip) error
	Concat(ctx context.Context, clips []string, listPath, outPath string) error
	Mux(ctx context.Context, req MuxRequest, progress func(pct float64)) error
}

// FFmpeg drives the ffmpeg binary.
type FFmpeg struct {
	Binary       string
	FPS          int
	CRF          int
	Preset       string
	AudioBitrate string
}

func NewFFmpeg(cfg config.RenderConfig) *FFmpeg {
	return &FFmpeg{
		Binary:       cfg.FFmpegBinary,
		FPS:          cfg.FPS,
		CRF:          cfg.CRF,
		Preset:       cfg.Preset,
		AudioBitrate: cfg.AudioBitrate,
	}
}

func (f *FFmpeg) EncodeStill(ctx context.Context, clip StillClip) error {
	return f.run(ctx, "encode still", f.StillArgs(clip), nil)
}

func (f *FFmpeg) Concat(ctx context.Context, clips []string, listPath, outPath string) error {
	if len(clips) == 0 {
		return apperr.Wrap(apperr.ErrEmptyInput, "render", "concat", "no clips", nil)
	}
	if err := os.WriteFile(listPath, []byte(ConcatList(clips)), 0o644); err != nil {
		return fmt.Errorf("write concat list: %w", err)
	}
	return f.run(ctx, "concat", ConcatArgs(listPath, outPath), nil)
}

func (f *FFmpeg) Mux(ctx context.Context, req MuxRequest, progress func(pct float64)) error {
	tracker := newProgressTracker(req.TotalMs)
	return f.run(ctx, "mux", f.MuxArgs(req), func(line string) {
		if pct, ok := tracker.Observe(line); ok && progress != nil {
			progress(pct)
		}
	})
}

// StillArgs loops the image for the clip duration at the configured frame rate.
func (f *FFmpeg) StillArgs(clip StillClip) []string {
	return []string{
		"-y", "-hide_banner", "-loglevel", "error",
		"-loop", "1",
		"-framerate", strconv.Itoa(f.FPS),
		"-i", clip.ImagePath,
		"-t", formatSeconds(clip.DurationMs),
		"-c:v", "libx264",
		"-preset", f.Preset,
		"-crf", strconv.Itoa(f.CRF),
		"-pix_fmt", "yuv420p",
		"-r", strconv.Itoa(f.FPS),
		"-an",
		clip.OutPath,
	}
}

// ConcatArgs joins same-codec clips with the concat demuxer, copying streams.
func ConcatArgs(listPath, outPath string) []string {
	return []string{
		"-y", "-hide_banner", "-loglevel", "error",
		"-f", "concat", "-safe", "0",
		"-i", listPath,
		"-c", "copy",
		outPath,
	}
}

// ConcatList renders the concat demuxer's file list.
func ConcatList(clips []string) string {
	var b strings.Builder
	for _, c := range clips {
		b.WriteString("file '")
		b.WriteString(strings.ReplaceAll(c, "'", `'\''`))
		b.WriteString("'\n")
	}
	return b.String()
}

// MuxArgs builds the final encode: silent video plus an optional mix of the
// looped, attenuated music bed and delayed narration clips, cut to TotalMs.
func (f *FFmpeg) MuxArgs(req MuxRequest) []string {
	args := []string{"-y", "-hide_banner", "-loglevel", "error", "-i", req.VideoPath}

	var filters, labels []string
	input := 1
	if req.Music != nil {
		args = append(args, "-stream_loop", "-1", "-i", req.Music.Path)
		filters = append(filters, fmt.Sprintf("[%d:a]volume=%sdB,atrim=duration=%s,asetpts=PTS-STARTPTS[music]",
			input, strconv.FormatFloat(req.Music.GainDB, 'f', -1, 64), formatSeconds(req.TotalMs)))
		labels = append(labels, "[music]")
		input++
	}
	for i, vo := range req.Voiceovers {
		args = append(args, "-i", vo.Path)
		label := fmt.Sprintf("[vo%d]", i)
		filters = append(filters, fmt.Sprintf("[%d:a]adelay=%d:all=1%s", input, vo.DelayMs, label))
		labels = append(labels, label)
		input++
	}

	hasAudio := len(labels) > 0
	if hasAudio {
		filters = append(filters, fmt.Sprintf("%samix=inputs=%d:duration=longest:normalize=0,apad,atrim=duration=%s[aout]",
			strings.Join(labels, ""), len(labels), formatSeconds(req.TotalMs)))
		args = append(args, "-filter_complex", strings.Join(filters, ";"), "-map", "0:v", "-map", "[aout]")
	} else {
		args = append(args, "-map", "0:v")
	}

	args = append(args,
		"-c:v", "libx264",
		"-preset", f.Preset,
		"-crf", strconv.Itoa(f.CRF),
		"-pix_fmt", "yuv420p",
		"-r", strconv.Itoa(f.FPS),
	)
	if hasAudio {
		args = append(args, "-c:a", "aac", "-b:a", f.AudioBitrate)
	} else {
		args = append(args, "-an")
	}
	return append(args,
		"-t", formatSeconds(req.TotalMs),
		"-movflags", "+faststart",
		"-progress", "pipe:1", "-nostats",
		req.OutPath,
	)
}

// run executes ffmpeg, feeding stdout lines to onLine and keeping the stderr
// tail for the error message.
func (f *FFmpeg) run(ctx context.Context, op string, args []string, onLine func(string)) error {
	cmd := exec.CommandContext(ctx, f.Binary, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	var stdout io.ReadCloser
	if onLine != nil {
		var err error
		if stdout, err = cmd.StdoutPipe(); err != nil {
			return apperr.Wrap(apperr.ErrTranscode, "render", op, "stdout pipe", err)
		}
	}
	if err := cmd.Start(); err != nil {
		return apperr.Wrap(apperr.ErrTranscode, "render", op, "start "+f.Binary, err)
	}
	if stdout != nil {
		scanner := bufio.NewScanner(stdout)
		for scanner.Scan() {
			onLine(scanner.Text())
		}
	}
	if err := cmd.Wait(); err != nil {
		return apperr.Wrap(apperr.ErrTranscode, "render", op, tail(stderr.String(), 512), err)
	}
	return nil
}

func formatSeconds(ms int) string {
	return strconv.FormatFloat(seconds(ms), 'f', 3, 64)
}

func tail(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}
