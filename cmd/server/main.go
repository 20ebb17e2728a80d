package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"scoutsync/internal/app/server/api"
	"scoutsync/internal/app/server/config"
	"scoutsync/internal/domain/backup"
	"scoutsync/internal/domain/snapshot"
	"scoutsync/internal/infrastructure/storage/postgres"
	"scoutsync/internal/utils/logger"
)

func main() {
	conf := config.MustLoad()
	log := logger.NewWithLevel(conf.Env, conf.Logger.LogLevel)

	storage, err := postgres.New(conf)
	if err != nil {
		log.Error("failed to init storage", "error", err)
		os.Exit(1)
	}
	defer storage.Close()

	snapshots := snapshot.NewService(postgres.NewSnapshotRepository(storage.DB(), log), log)
	archive := backup.NewArchive(postgres.NewBackupRepository(storage.DB(), log), conf.Archive.Retention, log)

	router := api.New(api.Services{
		Health:    storage,
		Snapshots: snapshots,
		Backups:   archive,
	}, log)

	srv := &http.Server{
		Addr:              conf.Server.RunAddress,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Info("server started", "address", conf.Server.RunAddress, "env", conf.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), conf.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
		return
	}
	log.Info("server stopped")
}
