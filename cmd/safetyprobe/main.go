package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/wolfman30/loop-safety/cmd/mainconfig"
	"github.com/wolfman30/loop-safety/internal/app/bootstrap"
	appconfig "github.com/wolfman30/loop-safety/internal/config"
	"github.com/wolfman30/loop-safety/internal/hatespeech"
	"github.com/wolfman30/loop-safety/internal/moderation"
	"github.com/wolfman30/loop-safety/internal/sentiment"
	"github.com/wolfman30/loop-safety/pkg/logging"
)

// report is what safetyprobe prints for one text.
type report struct {
	Text       string            `json:"text"`
	Sentiment  sentiment.Result  `json:"sentiment"`
	HateSpeech hatespeech.Result `json:"hateSpeech"`
	Moderation moderation.Result `json:"moderation"`
	Path       moderation.Path   `json:"path"`
	Harm       *moderation.Harm  `json:"harm,omitempty"`
	Elapsed    string            `json:"elapsed"`
}

func main() {
	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	provider := flag.String("provider", "", "override LLM_PROVIDER (bedrock|gemini|none)")
	timeout := flag.Duration("timeout", 30*time.Second, "overall timeout")
	flag.Parse()

	text := strings.TrimSpace(strings.Join(flag.Args(), " "))
	if text == "" {
		raw, err := io.ReadAll(os.Stdin)
		if err != nil {
			log.Fatalf("read stdin: %v", err)
		}
		text = strings.TrimSpace(string(raw))
	}
	if text == "" {
		fmt.Fprintln(os.Stderr, "usage: safetyprobe [-provider bedrock|gemini|none] <text>")
		os.Exit(2)
	}

	cfg := appconfig.Load()
	if *provider != "" {
		cfg.LLMProvider = strings.ToLower(*provider)
	}
	logger := logging.New(cfg.LogLevel)

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	awsCfg, err := mainconfig.LoadAWSConfig(ctx, cfg)
	if err != nil {
		log.Fatalf("load AWS config: %v", err)
	}
	gateway, closeGateway, err := bootstrap.BuildGateway(ctx, cfg, awsCfg, nil, nil, logger)
	if err != nil {
		log.Fatalf("build gateway: %v", err)
	}
	defer closeGateway()

	out := probe(ctx, gateway, text, logger)
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		log.Fatalf("encode report: %v", err)
	}
}
