package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTranscriber struct {
	transcript string
	err        error
	paths      []string
}

func (f *fakeTranscriber) Transcribe(ctx context.Context, path string) (string, error) {
	f.paths = append(f.paths, path)
	return f.transcript, f.err
}

func withProbe(t *testing.T, fn func(ctx context.Context, path string) (float64, error)) {
	t.Helper()
	orig := probeDuration
	probeDuration = fn
	t.Cleanup(func() { probeDuration = orig })
}

func TestAudioTranscribe(t *testing.T) {
	withProbe(t, func(ctx context.Context, path string) (float64, error) {
		return 32.5, nil
	})

	tr := &fakeTranscriber{transcript: "preciso de um portal de pedidos"}
	s := NewAudioService(tr, 120, discardLogger())

	duration, transcript, err := s.Transcribe(context.Background(), "/tmp/audio.ogg")
	require.NoError(t, err)
	assert.Equal(t, 32.5, duration)
	assert.Equal(t, "preciso de um portal de pedidos", transcript)
	assert.Equal(t, []string{"/tmp/audio.ogg"}, tr.paths)
}

func TestAudioTranscribeTooLong(t *testing.T) {
	withProbe(t, func(ctx context.Context, path string) (float64, error) {
		return 185.2, nil
	})

	tr := &fakeTranscriber{transcript: "nunca deve chegar aqui"}
	s := NewAudioService(tr, 120, discardLogger())

	duration, _, err := s.Transcribe(context.Background(), "/tmp/audio.ogg")
	assert.Equal(t, 185.2, duration)

	var tooLong *AudioTooLongError
	require.ErrorAs(t, err, &tooLong)
	assert.Equal(t, 185.2, tooLong.Duration)
	assert.Equal(t, float64(120), tooLong.Max)
	assert.Empty(t, tr.paths)
}

func TestAudioTranscribeProbeFailure(t *testing.T) {
	withProbe(t, func(ctx context.Context, path string) (float64, error) {
		return 0, errors.New("ffprobe exploded")
	})

	tr := &fakeTranscriber{}
	s := NewAudioService(tr, 120, discardLogger())

	_, _, err := s.Transcribe(context.Background(), "/tmp/audio.ogg")
	assert.Error(t, err)
	assert.Empty(t, tr.paths)
}

func TestAudioTranscriberFailure(t *testing.T) {
	withProbe(t, func(ctx context.Context, path string) (float64, error) {
		return 10, nil
	})

	tr := &fakeTranscriber{err: errors.New("service down")}
	s := NewAudioService(tr, 120, discardLogger())

	_, _, err := s.Transcribe(context.Background(), "/tmp/audio.ogg")
	assert.Error(t, err)

	var tooLong *AudioTooLongError
	assert.False(t, errors.As(err, &tooLong))
}

func TestParseProbeOutput(t *testing.T) {
	duration, err := parseProbeOutput([]byte(`{"format": {"duration": "92.476"}}`))
	require.NoError(t, err)
	assert.Equal(t, 92.476, duration)

	_, err = parseProbeOutput([]byte(`{"format": {}}`))
	assert.Error(t, err)

	_, err = parseProbeOutput([]byte(`{"format": {"duration": "abc"}}`))
	assert.Error(t, err)

	_, err = parseProbeOutput([]byte(`not json`))
	assert.Error(t, err)
}
