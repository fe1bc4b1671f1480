// Command enqueue submits page images to the asynq translate-page queue.
//
//	enqueue -dst en -src ja p01.png p02.png
//	enqueue -dst es -url https://cdn.example.com/p01.jpg
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"

	"github.com/adverant/nexus/pagetranslate-worker/internal/config"
	"github.com/adverant/nexus/pagetranslate-worker/internal/logging"
	"github.com/adverant/nexus/pagetranslate-worker/internal/queue"
)

func main() {
	var (
		src    = flag.String("src", "auto", "source language tag")
		dst    = flag.String("dst", "en", "target language tag")
		url    = flag.String("url", "", "page image URL (instead of files)")
		inline = flag.Bool("inline", false, "send file bytes in the job instead of the path")
		format = flag.String("format", "", "output format (png, jpg)")
		qname  = flag.String("queue", "", "queue name (default QUEUE_NAME)")
	)
	flag.Parse()

	logger := logging.NewLogger("Enqueue")
	_ = godotenv.Load(".env")
	cfg := config.LoadFromEnv()

	var payloads []*queue.PagePayload
	if *url != "" {
		payloads = append(payloads, &queue.PagePayload{ImageURL: *url, Filename: filepath.Base(*url)})
	}
	for _, path := range flag.Args() {
		p := &queue.PagePayload{Filename: filepath.Base(path)}
		if *inline {
			data, err := os.ReadFile(path)
			if err != nil {
				logger.Error("Cannot read page", "path", path, "error", err)
				os.Exit(1)
			}
			p.ImageBuffer = data
		} else {
			abs, err := filepath.Abs(path)
			if err != nil {
				logger.Error("Cannot resolve page path", "path", path, "error", err)
				os.Exit(1)
			}
			p.ImagePath = abs
		}
		payloads = append(payloads, p)
	}
	if len(payloads) == 0 {
		fmt.Fprintln(os.Stderr, "usage: enqueue [flags] page.png ... | -url URL")
		flag.PrintDefaults()
		os.Exit(2)
	}

	name := cfg.QueueName
	if *qname != "" {
		name = *qname
	}
	enq, err := queue.NewEnqueuer(cfg.RedisURL, name, int64(cfg.ProcessingTimeout))
	if err != nil {
		logger.Error("Failed to connect to queue", "error", err)
		os.Exit(1)
	}
	defer enq.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	var failed int
	for _, p := range payloads {
		p.SourceLanguage = *src
		p.TargetLanguage = *dst
		p.OutputFormat = *format
		id, err := enq.Enqueue(ctx, p)
		if err != nil {
			logger.Error("Failed to enqueue page", "filename", p.Filename, "error", err)
			failed++
			continue
		}
		fmt.Println(id)
		logger.Info(fmt.Sprintf("[Page %s] Enqueued", id), "filename", p.Filename, "queue", name)
	}
	if failed > 0 {
		os.Exit(1)
	}
}
