package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"art-curator-be/internal/bootstrap"
	"art-curator-be/internal/config"
	"art-curator-be/internal/server"
	"art-curator-be/internal/tracer"
)

func main() {
	// 1. Load Configuration (.env first, so everything below sees it)
	cfg := config.Load()

	// 2. Tracer (no-op unless OTEL_ENABLED=true)
	shutdownTracer, err := tracer.InitTracer(context.Background(), cfg.Otel)
	if err != nil {
		log.Printf("Tracing disabled: %v", err)
	}
	defer shutdownTracer(context.Background())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. Bootstrap Dependencies (Container)
	container := bootstrap.NewContainer(ctx, cfg)
	defer container.Close()

	// 4. Start Background Services
	if err := container.ConsumerService.Consume(ctx); err != nil {
		log.Fatalf("Background Consumer Error: %v", err)
	}

	// 5. Initialize Server
	srv := server.New(cfg, container)

	go func() {
		<-ctx.Done()
		log.Println("Shutting down server...")
		_ = srv.Shutdown()
	}()

	// 6. Run Server
	if err := srv.Run(); err != nil {
		log.Printf("Server stopped: %v", err)
	}
}
