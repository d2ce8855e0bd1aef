package stt

import (
	"context"
	"fmt"
	"strings"

	speech "cloud.google.com/go/speech/apiv1"
	speechpb "cloud.google.com/go/speech/apiv1/speechpb"
)

type GoogleSpeechConfig struct {
	// Encoding is one of linear16, flac, ogg_opus, webm_opus. Browsers
	// recording with MediaRecorder produce webm_opus.
	Encoding     string
	SampleRateHz int32
}

type GoogleSpeech struct {
	c *speech.Client

	encoding     speechpb.RecognitionConfig_AudioEncoding
	sampleRateHz int32
}

func NewGoogleSpeech(ctx context.Context, cfg GoogleSpeechConfig) (*GoogleSpeech, error) {
	enc, err := parseEncoding(cfg.Encoding)
	if err != nil {
		return nil, err
	}
	rate := cfg.SampleRateHz
	if rate <= 0 {
		rate = 16000
	}

	c, err := speech.NewClient(ctx)
	if err != nil {
		return nil, err
	}
	return &GoogleSpeech{c: c, encoding: enc, sampleRateHz: rate}, nil
}

func parseEncoding(s string) (speechpb.RecognitionConfig_AudioEncoding, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "linear16":
		return speechpb.RecognitionConfig_LINEAR16, nil
	case "flac":
		return speechpb.RecognitionConfig_FLAC, nil
	case "ogg_opus":
		return speechpb.RecognitionConfig_OGG_OPUS, nil
	case "webm_opus":
		return speechpb.RecognitionConfig_WEBM_OPUS, nil
	}
	return speechpb.RecognitionConfig_ENCODING_UNSPECIFIED, fmt.Errorf("stt: unsupported encoding %q", s)
}

func (g *GoogleSpeech) Close() error { return g.c.Close() }

func (g *GoogleSpeech) Transcribe(ctx context.Context, audio []byte, language string) (Result, error) {
	if len(audio) == 0 {
		return Result{}, ErrEmptyAudio
	}

	resp, err := g.c.Recognize(ctx, &speechpb.RecognizeRequest{
		Config: &speechpb.RecognitionConfig{
			Encoding:                   g.encoding,
			SampleRateHertz:            g.sampleRateHz,
			LanguageCode:               NormalizeLanguage(language),
			EnableAutomaticPunctuation: true,
		},
		Audio: &speechpb.RecognitionAudio{
			AudioSource: &speechpb.RecognitionAudio_Content{Content: audio},
		},
	})
	if err != nil {
		return Result{}, fmt.Errorf("stt: recognize: %w", err)
	}
	return joinResults(resp.GetResults()), nil
}

// joinResults concatenates the best alternative of each consecutive result.
// Confidence is the lowest of the picked alternatives.
func joinResults(results []*speechpb.SpeechRecognitionResult) Result {
	parts := make([]string, 0, len(results))
	conf := 0.0
	for _, r := range results {
		var best *speechpb.SpeechRecognitionAlternative
		for _, alt := range r.GetAlternatives() {
			if strings.TrimSpace(alt.GetTranscript()) == "" {
				continue
			}
			if best == nil || alt.GetConfidence() > best.GetConfidence() {
				best = alt
			}
		}
		if best == nil {
			continue
		}
		c := float64(best.GetConfidence())
		if len(parts) == 0 || c < conf {
			conf = c
		}
		parts = append(parts, strings.TrimSpace(best.GetTranscript()))
	}
	return Result{Text: strings.Join(parts, " "), Confidence: conf}
}
