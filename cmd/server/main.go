package main

import (
	"cognito-backend/config"
	"cognito-backend/dao"
	"cognito-backend/router"
	"cognito-backend/service/asr"
	"cognito-backend/service/embedding"
	"cognito-backend/service/ingest"
	"cognito-backend/service/mq"
	"cognito-backend/service/query"
	"cognito-backend/service/storage"
	"cognito-backend/service/textproc"
	"cognito-backend/service/vectorindex"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
)

func main() {
	if err := dao.InitDB(); err != nil {
		slog.Error("Failed to init database", "err", err)
		os.Exit(1)
	}

	index := vectorindex.New(config.Cfg.Media.IndexDir)

	embedder, err := embedding.NewService()
	if err != nil {
		slog.Error("Failed to init embedding service", "err", err)
		os.Exit(1)
	}

	store := dao.NewStore()
	blobs := storage.NewOSSStore()
	normalizer := textproc.NewNormalizer(textproc.WithFillers(config.Cfg.Pipeline.Fillers))
	chain := ingest.NewDefaultChain(config.Cfg.Media.MediaDir, asr.NewWSEngine(), asr.NewHTTPEngine())
	acquisition := ingest.NewAcquisition(config.Cfg.Media.MediaDir, ingest.NewYtDlpFetcher(os.Getenv("YTDLP_COOKIE_FILE")))

	worker := ingest.NewWorker(
		store,
		normalizer,
		embedder,
		index,
		chain,
		acquisition,
		blobs,
		config.Cfg.Media.AudioDir,
		config.Cfg.Pipeline.MaxChunkChars,
	)

	if err := mq.Run(worker); err != nil {
		slog.Error("Failed to start mq", "err", err)
		os.Exit(1)
	}
	defer mq.Shutdown()

	engine := query.NewEngine(embedder, index, store)

	srv := &http.Server{
		Addr:    config.Cfg.Server.Host + ":" + config.Cfg.Server.Port,
		Handler: router.Register(engine, blobs),
	}

	go func() {
		slog.Info("Server started", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server error", "err", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	slog.Info("Shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("Server forced to shutdown", "err", err)
	}
}
