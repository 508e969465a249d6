package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/MHassaanT/motomind-backend/config"
	"github.com/MHassaanT/motomind-backend/internal/adminapi"
	"github.com/MHassaanT/motomind-backend/internal/app"
	"github.com/MHassaanT/motomind-backend/internal/blobstore"
	"github.com/MHassaanT/motomind-backend/internal/reminder"
	"github.com/MHassaanT/motomind-backend/internal/webserver"
	"github.com/MHassaanT/motomind-backend/internal/whatsapp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var (
	cfile   = flag.String("c", "/etc/motomind.yml", "config file path")
	initdb  = flag.Bool("initdb", false, "drop and recreate all tables, then exit")
	showver = flag.Bool("v", false, "print version and exit")
)

var version = "dev"

func main() {
	flag.Parse()

	if *showver {
		fmt.Println("motomind", version)
		return
	}

	cfg := config.LoadConfig(*cfile)
	application := app.NewApplication(cfg)
	application.Init(cfg)
	defer application.Release()

	if *initdb {
		application.InitDb()
		zap.S().Info("database initialized")
		return
	}

	store, err := blobstore.OpenBolt(cfg.GetArchiveFile())
	if err != nil {
		zap.S().Fatalf("open archive store: %v", err)
	}
	defer func() { _ = store.Close() }()

	archive := whatsapp.NewArchiveBridge(store, cfg.GetSessionDir())
	status := whatsapp.NewGormStatusStore(application.DB())
	registry := whatsapp.NewRegistry(
		whatsapp.NewMeowFactory(),
		archive,
		status,
		whatsapp.WithInitTimeout(time.Duration(cfg.Whatsapp.InitTimeoutSec)*time.Second),
	)
	defer registry.Shutdown()

	dispatcher := reminder.NewDispatcher(
		reminder.NewGormRecordSource(application.DB()),
		registry,
		cfg.Whatsapp.ReminderWorkers,
		reminder.WithSettings(application),
	)
	_, err = application.Scheduler().AddFunc(cfg.Whatsapp.ReminderCron, func() {
		dispatcher.Run(context.Background())
	})
	if err != nil {
		zap.S().Fatalf("schedule reminder job: %v", err)
	}

	ws := webserver.Init(application)
	adminapi.Register(application, registry)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return ws.Start()
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return ws.Echo().Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		zap.S().Errorf("server exit: %v", err)
		os.Exit(1)
	}
}
