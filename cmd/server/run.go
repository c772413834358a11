package main

import (
	"context"
	"net"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"bite/api/grpcserver"
	"bite/api/httpapi"
	"bite/config"
	"bite/infra/kafka"
	"bite/infra/logging"
	"bite/infra/sequence"
	entrywal "bite/infra/wal/entry"
	exitwal "bite/infra/wal/exit"
	"bite/jobs/broadcaster"
	"bite/service"

	"github.com/cockroachdb/errors"
	"github.com/sirupsen/logrus"
)

func run(parent context.Context, cfg *config.Config) error {
	if parent == nil {
		parent = context.Background()
	}
	log, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ---------------- Exit WAL ----------------

	exitWAL, err := exitwal.Open(cfg.OutboxDir())
	if err != nil {
		return errors.Wrap(err, "exit WAL init failed")
	}
	defer exitWAL.Close()

	// ---------------- Recovery ----------------

	l, lastSeq, err := service.Recover(cfg.SnapshotDir(), cfg.EntryWALDir(), exitWAL, log)
	if err != nil {
		return errors.Wrap(err, "recovery failed")
	}

	// ---------------- Entry WAL ----------------

	entryWAL, err := entrywal.Open(entrywal.Config{
		Dir:             cfg.EntryWALDir(),
		SegmentSize:     cfg.WAL.SegmentSize,
		SyncEveryAppend: cfg.WAL.SyncEveryAppend,
	})
	if err != nil {
		return errors.Wrap(err, "entry WAL init failed")
	}
	defer entryWAL.Close()

	// ---------------- Service ----------------

	opts := service.Options{RequireKnownService: cfg.Ledger.RequireKnownService}
	svc := service.NewMarketService(l, sequence.New(lastSeq), entryWAL, exitWAL, opts, log)

	// Everything that can fail is set up before any goroutine starts, so an
	// early return never races the deferred closes above.

	lis, err := net.Listen("tcp", cfg.GRPC.Addr)
	if err != nil {
		return errors.Wrapf(err, "listen %s", cfg.GRPC.Addr)
	}

	var httpLis net.Listener
	if cfg.HTTP.Addr != "" {
		if httpLis, err = net.Listen("tcp", cfg.HTTP.Addr); err != nil {
			_ = lis.Close()
			return errors.Wrapf(err, "listen %s", cfg.HTTP.Addr)
		}
	}

	pub, err := newPublisher(cfg.Events)
	if err != nil {
		_ = lis.Close()
		if httpLis != nil {
			_ = httpLis.Close()
		}
		return err
	}

	// ---------------- Background Jobs ----------------

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		svc.RunSnapshotJob(ctx, cfg.SnapshotDir(), cfg.Snapshot.Interval)
	}()

	if pub != nil {
		bc := broadcaster.New(exitWAL, pub, broadcaster.Config{
			Interval:  cfg.Events.Interval,
			BatchSize: cfg.Events.BatchSize,
		}, log)
		defer bc.Close()
		wg.Add(1)
		go func() {
			defer wg.Done()
			bc.Run(ctx)
		}()
	} else {
		log.Warn("events.driver=none, outbox will only accumulate")
	}

	// ---------------- gRPC ----------------

	grpcSrv := grpcserver.NewGRPCServer(grpcserver.NewServer(svc), log)

	errCh := make(chan error, 2)
	go func() { errCh <- grpcSrv.Serve(lis) }()

	// ---------------- HTTP ----------------

	var httpSrv *http.Server
	if httpLis != nil {
		httpSrv = &http.Server{
			Handler:           httpapi.NewRouter(svc, log),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			if err := httpSrv.Serve(httpLis); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
		}()
	}

	log.WithFields(logrus.Fields{
		"grpc":     cfg.GRPC.Addr,
		"http":     cfg.HTTP.Addr,
		"last_seq": lastSeq,
		"driver":   cfg.Events.Driver,
	}).Info("bite marketplace running")

	select {
	case <-ctx.Done():
		err = nil
	case err = <-errCh:
		log.WithError(err).Error("server exited")
	}

	// ---------------- Shutdown ----------------

	stop()
	grpcSrv.GracefulStop()
	if httpSrv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		_ = httpSrv.Shutdown(shutdownCtx)
		cancel()
	}
	wg.Wait()

	if err := entryWAL.Sync(); err != nil {
		log.WithError(err).Warn("final wal sync failed")
	}
	log.Info("shutdown complete")
	return err
}

// newPublisher returns nil when publishing is disabled.
func newPublisher(cfg config.EventsConfig) (broadcaster.Publisher, error) {
	switch cfg.Driver {
	case "none":
		return nil, nil
	case "kafka-go":
		return kafka.NewProducer(cfg.Brokers, cfg.Topic), nil
	case "sarama":
		return broadcaster.NewSaramaPublisher(cfg.Brokers, cfg.Topic)
	default:
		return nil, errors.Newf("unknown events driver %q", cfg.Driver)
	}
}
