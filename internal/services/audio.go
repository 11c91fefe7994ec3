package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os/exec"
	"strconv"
)

// AudioTooLongError reports an audio file whose probed duration exceeds the
// configured bound. The probe runs before transcription, so oversized input
// is rejected before any expensive model call.
type AudioTooLongError struct {
	Duration float64
	Max      float64
}

func (e *AudioTooLongError) Error() string {
	return fmt.Sprintf("áudio muito longo: %.1fs (máximo %.0fs)", e.Duration, e.Max)
}

// Transcriber converts an audio file into text.
type Transcriber interface {
	Transcribe(ctx context.Context, path string) (string, error)
}

// probeDuration is a package-level var to allow test injection.
var probeDuration = ffprobeDuration

// AudioService probes audio duration and runs transcription.
type AudioService struct {
	transcriber Transcriber
	maxSeconds  float64
	logger      *slog.Logger
}

// NewAudioService creates a new audio service.
func NewAudioService(transcriber Transcriber, maxSeconds float64, logger *slog.Logger) *AudioService {
	return &AudioService{
		transcriber: transcriber,
		maxSeconds:  maxSeconds,
		logger:      logger,
	}
}

// Transcribe checks the file duration against the bound and, when it fits,
// returns the duration and transcript.
func (s *AudioService) Transcribe(ctx context.Context, path string) (float64, string, error) {
	duration, err := probeDuration(ctx, path)
	if err != nil {
		return 0, "", fmt.Errorf("failed to probe audio duration: %w", err)
	}
	if duration > s.maxSeconds {
		return duration, "", &AudioTooLongError{Duration: duration, Max: s.maxSeconds}
	}

	transcript, err := s.transcriber.Transcribe(ctx, path)
	if err != nil {
		return duration, "", fmt.Errorf("transcription failed: %w", err)
	}

	s.logger.Info("audio transcribed", "duration_seconds", duration, "transcript_chars", len(transcript))
	return duration, transcript, nil
}

// ffprobeDuration reads the duration in seconds via ffprobe.
func ffprobeDuration(ctx context.Context, path string) (float64, error) {
	cmd := exec.CommandContext(ctx, "ffprobe",
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		path,
	)
	out, err := cmd.Output()
	if err != nil {
		return 0, fmt.Errorf("ffprobe failed: %w", err)
	}
	return parseProbeOutput(out)
}

func parseProbeOutput(out []byte) (float64, error) {
	var probe struct {
		Format struct {
			Duration string `json:"duration"`
		} `json:"format"`
	}
	if err := json.Unmarshal(out, &probe); err != nil {
		return 0, fmt.Errorf("failed to decode ffprobe output: %w", err)
	}
	if probe.Format.Duration == "" {
		return 0, fmt.Errorf("ffprobe output has no duration")
	}

	duration, err := strconv.ParseFloat(probe.Format.Duration, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q: %w", probe.Format.Duration, err)
	}
	return duration, nil
}
