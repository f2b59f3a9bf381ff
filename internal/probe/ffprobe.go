// Package probe reads video stream properties from container files.
package probe

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"

	"github.com/to-wer/media-renamer/internal/identify"
)

// ErrNoVideoStream is returned when the file has no video stream.
var ErrNoVideoStream = errors.New("no video stream")

// Info is what the renamer needs from a video stream.
type Info struct {
	Width      int
	Height     int
	Resolution string
	Codec      string
}

// Prober inspects a media file.
type Prober interface {
	Probe(ctx context.Context, path string) (Info, error)
}

// runFunc executes ffprobe; replaced in tests.
type runFunc func(ctx context.Context, bin string, args ...string) ([]byte, error)

// FFProbe runs the ffprobe binary.
type FFProbe struct {
	bin string
	run runFunc
	log *slog.Logger
}

// NewFFProbe returns a prober using bin, or "ffprobe" from PATH when empty.
func NewFFProbe(bin string) *FFProbe {
	if bin == "" {
		bin = "ffprobe"
	}
	return &FFProbe{
		bin: bin,
		run: runCommand,
		log: slog.With("component", "ffprobe"),
	}
}

func runCommand(ctx context.Context, bin string, args ...string) ([]byte, error) {
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, bin, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg != "" {
			return nil, fmt.Errorf("%w: %s", err, msg)
		}
		return nil, err
	}
	return stdout.Bytes(), nil
}

type ffprobeOutput struct {
	Streams []struct {
		Width     int    `json:"width"`
		Height    int    `json:"height"`
		CodecName string `json:"codec_name"`
	} `json:"streams"`
}

func (p *FFProbe) Probe(ctx context.Context, path string) (Info, error) {
	out, err := p.run(ctx, p.bin,
		"-v", "error",
		"-select_streams", "v:0",
		"-show_entries", "stream=width,height,codec_name",
		"-of", "json",
		path,
	)
	if err != nil {
		return Info{}, fmt.Errorf("ffprobe %s: %w", path, err)
	}

	var parsed ffprobeOutput
	if err := json.Unmarshal(out, &parsed); err != nil {
		return Info{}, fmt.Errorf("failed to decode ffprobe output: %w", err)
	}
	if len(parsed.Streams) == 0 {
		return Info{}, ErrNoVideoStream
	}

	s := parsed.Streams[0]
	info := Info{
		Width:      s.Width,
		Height:     s.Height,
		Resolution: ResolutionForHeight(s.Height),
		Codec:      identify.NormalizeCodecName(s.CodecName),
	}
	p.log.Debug("Probed file", "path", path, "height", s.Height, "codec", s.CodecName)
	return info, nil
}

// ResolutionForHeight buckets a frame height into a resolution label.
func ResolutionForHeight(height int) string {
	switch {
	case height >= 2160:
		return "4K"
	case height >= 1080:
		return "1080p"
	case height >= 720:
		return "720p"
	case height > 0:
		return "SD"
	default:
		return ""
	}
}
