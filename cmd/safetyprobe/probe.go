package main

import (
	"context"
	"time"

	"github.com/wolfman30/loop-safety/internal/hatespeech"
	"github.com/wolfman30/loop-safety/internal/llm"
	"github.com/wolfman30/loop-safety/internal/moderation"
	"github.com/wolfman30/loop-safety/internal/sentiment"
	"github.com/wolfman30/loop-safety/pkg/logging"
)

func probe(ctx context.Context, gateway llm.Gateway, text string, logger *logging.Logger) report {
	start := time.Now()
	detector := hatespeech.NewDetector(gateway, logger)
	analyzer := sentiment.NewAnalyzer(gateway, logger)
	ev := moderation.NewModerator(detector, analyzer, gateway, logger).Evaluate(ctx, moderation.Request{Text: text, Kind: "probe"})
	return report{
		Text:       text,
		Sentiment:  ev.Sentiment,
		HateSpeech: ev.HateSpeech,
		Moderation: ev.Result,
		Path:       ev.Path,
		Harm:       ev.Harm,
		Elapsed:    time.Since(start).Round(time.Millisecond).String(),
	}
}
