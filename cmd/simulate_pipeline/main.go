package main

import (
	"context"
	"encoding/json"
	"flag"
	"os"
	"os/signal"
	"time"

	"art-curator-be/internal/bootstrap"
	"art-curator-be/internal/config"
	"art-curator-be/internal/dto"
	"art-curator-be/internal/model"
	"art-curator-be/internal/websocket"

	"github.com/fatih/color"
	"github.com/google/uuid"
)

// Runs one query through the configured backends and prints every pushed
// envelope as the session moves through its stages.
func main() {
	query := flag.String("query", "The Last Supper", "biblical narrative to curate")
	timeout := flag.Duration("timeout", 5*time.Minute, "give up after this long")
	flag.Parse()

	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, *timeout)
	defer cancel()

	container := bootstrap.NewContainer(ctx, cfg)
	defer container.Close()

	if err := container.ConsumerService.Consume(ctx); err != nil {
		color.Red("Failed to start consumer: %v", err)
		os.Exit(1)
	}

	sessionID := "simulate-" + uuid.NewString()[:8]
	client := websocket.NewClient(sessionID, nil, nil, container.Logger)
	if err := container.StateService.Subscribe(ctx, sessionID, client); err != nil {
		color.Red("Failed to subscribe: %v", err)
		os.Exit(1)
	}
	defer container.StateService.Unsubscribe(sessionID, client)

	color.Cyan("🚀 Curating %q in session %s\n", *query, sessionID)
	start := time.Now()

	res, err := container.SessionService.Submit(ctx, sessionID, *query)
	if err != nil {
		color.Red("Submit failed: %v", err)
		os.Exit(1)
	}
	color.Green("Accepted: %s (queryId %s)", res.Message, res.QueryId)

	for {
		select {
		case <-ctx.Done():
			color.Red("Stopped: %v", ctx.Err())
			os.Exit(1)
		case raw, ok := <-client.Send:
			if !ok {
				color.Red("Subscription dropped")
				os.Exit(1)
			}
			if done := printEnvelope(raw, time.Since(start)); done {
				return
			}
		}
	}
}

func printEnvelope(raw []byte, elapsed time.Duration) bool {
	var env struct {
		Type string          `json:"type"`
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(raw, &env); err != nil {
		color.Red("Bad envelope: %v", err)
		return false
	}

	switch env.Type {
	case dto.EnvelopeState:
		var state dto.StatePayload
		_ = json.Unmarshal(env.Data, &state)
		if state.ProcessingStage == model.StageError {
			color.Red("[%6s] error: %s", elapsed.Round(time.Millisecond), state.Error)
			return true
		}
		color.Yellow("[%6s] stage → %s", elapsed.Round(time.Millisecond), state.ProcessingStage)
	case dto.EnvelopeResults:
		var results dto.ResultsResponse
		_ = json.Unmarshal(env.Data, &results)
		color.Green("[%6s] %d artworks", elapsed.Round(time.Millisecond), len(results.Artworks))
		for i, a := range results.Artworks {
			color.White("  %d. %s by %s (%d)", i+1, a.Title, a.Artist, a.Year)
			color.HiBlack("     %s", a.ImageURL)
		}
		return true
	default:
		color.Magenta("[%6s] %s: %s", elapsed.Round(time.Millisecond), env.Type, string(env.Data))
	}
	return false
}
