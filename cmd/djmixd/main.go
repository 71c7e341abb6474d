// Command djmixd runs a mixing session headless, streams the master bus to
// browsers over WebRTC and exposes a JSON control API.
//
// Usage:
//
//	djmixd [flags] [project.yaml]
//
// Endpoints:
//
//	POST   /webrtc            SDP offer in, answer out
//	GET    /api/state         session snapshot
//	GET    /api/events        server-sent engine events
//	PUT    /api/project       load a YAML or JSON project
//	POST   /api/transport     {"action": "play|pause|stop|seek", "time": 12.5}
//	POST   /api/master        {"volume": 0.8}
//	POST   /api/crossfader    {"position": -50, "curve": "smooth", "cutLag": 2}
//	POST   /api/decks/{deck}  {"volume", "eq", "effects", "delayTime", ...}
//	POST   /api/tracks/{id}   {"volume", "pan", "isMuted", "isSolo"}
//	POST   /api/transition    {"type": "fade", "duration": 8}
//	DELETE /api/transition    cancel the running transition
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/cwbudde/algo-mixer/internal/config"
	"github.com/cwbudde/algo-mixer/internal/stream"
	"github.com/cwbudde/algo-mixer/mix/engine"
	"github.com/cwbudde/algo-mixer/mix/output"
	"github.com/cwbudde/algo-mixer/mix/project"
	"github.com/cwbudde/algo-mixer/mix/provider"
)

func main() {
	cfg := config.Load()

	port := flag.Int("port", cfg.Port, "HTTP listen port")
	root := flag.String("root", cfg.MediaRoot, "directory source ids resolve under")
	verbose := flag.Bool("v", false, "debug logging")
	flag.Parse()

	level := cfg.LogLevel
	if *verbose {
		level = slog.LevelDebug
	}

	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg.Port = *port
	cfg.MediaRoot = *root

	if err := serve(ctx, cfg, flag.Arg(0), log); err != nil {
		log.Error("djmixd", "error", err)
		os.Exit(1)
	}
}

func serve(ctx context.Context, cfg config.Config, projectFile string, log *slog.Logger) error {
	files := provider.NewFiles(cfg.MediaRoot,
		provider.WithFilesLogger(log),
		provider.WithTargetRate(cfg.SampleRate),
	)

	e, err := engine.New(
		engine.WithConfig(cfg.Engine()),
		engine.WithLogger(log),
		engine.WithBufferProvider(provider.NewCached(files)),
	)
	if err != nil {
		return err
	}
	defer e.Dispose()

	if projectFile != "" {
		p, err := project.LoadFile(projectFile)
		if err != nil {
			return err
		}

		if err := e.Load(p); err != nil {
			return err
		}

		if err := e.Prefetch(ctx); err != nil {
			log.Warn("prefetch incomplete", "error", err)
		}
	}

	driver := output.NewDriver(e, cfg.SampleRate,
		output.WithFrameDuration(cfg.FrameDuration),
		output.WithFrameBuffer(cfg.FrameBuffer),
		output.WithDriverLogger(log),
	)

	broadcaster := stream.NewBroadcaster(cfg.ListenerQueue)

	rtc, err := stream.NewWebRTCHandler(broadcaster, int(cfg.SampleRate), cfg.FrameDuration,
		stream.WithBitrate(cfg.OpusBitrate),
		stream.WithWebRTCLogger(log),
	)
	if err != nil {
		return err
	}
	defer rtc.Close()

	mux := http.NewServeMux()
	mux.Handle("/webrtc", rtc)
	(&api{e: e, log: log}).routes(mux)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error { return driver.Run(gctx) })

	g.Go(func() error {
		broadcaster.Run(gctx, driver.Frames())
		return nil
	})

	g.Go(func() error {
		log.Info("listening", "addr", srv.Addr, "session", e.ID())

		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}

		return nil
	})

	g.Go(func() error {
		<-gctx.Done()

		shutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		return srv.Shutdown(shutdown)
	})

	err = g.Wait()

	log.Info("stopped", "droppedFrames", driver.Dropped())

	return err
}
