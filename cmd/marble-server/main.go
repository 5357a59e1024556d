package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/HandsomeBisu/GridX-sub000/internal/board"
	"github.com/HandsomeBisu/GridX-sub000/internal/cache"
	"github.com/HandsomeBisu/GridX-sub000/internal/config"
	"github.com/HandsomeBisu/GridX-sub000/internal/database"
	"github.com/HandsomeBisu/GridX-sub000/internal/game"
	"github.com/HandsomeBisu/GridX-sub000/internal/server"
	"github.com/HandsomeBisu/GridX-sub000/internal/store"
	"github.com/HandsomeBisu/GridX-sub000/internal/ws"
)

func main() {
	cfg := config.Load()

	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{})
	if level, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		log.SetLevel(level)
	}

	opts := game.Options{TurnDuration: cfg.TurnDuration}

	// Redis gives us the multi-process store and the audit queue. Without
	// it the server runs single-process on the in-memory store.
	var roomStore game.Store
	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if err := client.Ping(context.Background()).Err(); err != nil {
			log.WithError(err).Fatal("redis unreachable")
		}
		roomStore = store.NewRedis(client, log)
		opts.Recorder = cache.NewRecorder(client)
		log.WithField("addr", cfg.RedisAddr).Info("using redis room store")
	} else {
		roomStore = store.NewMemory()
		log.Info("using in-memory room store")
	}

	if cfg.PostgresDSN != "" {
		archive, err := database.Connect(context.Background(), cfg.PostgresDSN)
		if err != nil {
			log.WithError(err).Fatal("postgres unreachable")
		}
		defer archive.Close()
		opts.Archiver = archive
		log.Info("archiving finished games to postgres")
	}

	svc := game.NewService(roomStore, board.Load(), log, opts)
	streamer := ws.NewStreamer(roomStore, log)
	handler := server.New(svc, streamer, log, []byte(cfg.JWTSecret))

	httpServer := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: handler,
	}

	go func() {
		log.WithField("addr", cfg.ListenAddr).Info("listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("http server")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	log.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		log.WithError(err).Warn("shutdown")
	}
}
