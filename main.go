package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"bloom/app/assistant"
	"bloom/app/configs"
	"bloom/app/ingest"
	"bloom/app/modules"
	"bloom/app/scraper"
	"bloom/app/server"
	"bloom/app/storage"
	"bloom/app/vectordb"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the YAML config file")
	flag.Parse()

	cfg, err := configs.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("❌ Error loading config: %v", err)
	}

	llm := cfg.BuildLLMClient()

	qdrantStore, err := cfg.BuildQdrantStore()
	if err != nil {
		log.Fatalf("❌ Error connecting to Qdrant at %s:%d: %v", cfg.Qdrant.Host, cfg.Qdrant.Port, err)
	}
	gateway := vectordb.NewGateway(qdrantStore, llm)

	pipeline := ingest.New(gateway, ingest.NewRegistry(), cfg.BuildChunker())
	files := modules.NewStore(cfg.Storage.DataDir)
	orchestrator := scraper.NewOrchestrator(pipeline, files)

	history, err := storage.NewSQLiteHistory(cfg.Storage.DBPath)
	if err != nil {
		log.Fatalf("❌ Error opening conversation database: %v", err)
	}
	defer history.Close()

	chat := assistant.New(llm, gateway, history)

	srv := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: server.New(pipeline, orchestrator, chat, files, gateway).Handler(),
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Printf("🚀 BLOOM API listening on %s", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("❌ Server error: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("🛑 Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("⚠️ Shutdown error: %v", err)
	}
}
