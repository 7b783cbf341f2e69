// CLAUDE:SUMMARY journey CLI: record, run, serve HTTP or MCP stdio, wired from the YAML config.
// Command journey records browser journeys and runs them.
//
// Usage:
//
//	journey -record -url example.com [-suite]   # record, print the script, offer to save it
//	journey -run checkout.journey.js [-suite]   # run a journey and print its output
//	journey -serve                              # HTTP gateway (POST /api/{op})
//	journey -mcp                                # MCP tools over stdio
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

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/journey/config"
	"github.com/hazyhaar/journey/gateway"
	"github.com/hazyhaar/journey/harness"
	"github.com/hazyhaar/journey/journal"
	"github.com/hazyhaar/journey/recorder"
)

const version = "0.3.0"

type options struct {
	configPath string
	record     bool
	url        string
	suite      bool
	runPath    string
	serve      bool
	mcp        bool
}

func main() {
	var o options
	flag.StringVar(&o.configPath, "config", "", "path to journey.yaml config file")
	flag.BoolVar(&o.record, "record", false, "record a journey in a visible browser")
	flag.StringVar(&o.url, "url", "", "start URL or local file for -record")
	flag.BoolVar(&o.suite, "suite", false, "standalone journey file (suite mode)")
	flag.StringVar(&o.runPath, "run", "", "run the journey in this file")
	flag.BoolVar(&o.serve, "serve", false, "serve the HTTP gateway")
	flag.BoolVar(&o.mcp, "mcp", false, "serve MCP tools over stdio")
	logLevel := flag.String("log-level", "info", "log level: debug, info, warn, error")
	flag.Parse()

	var level slog.Level
	switch *logLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	code, err := run(ctx, logger, o)
	if err != nil {
		logger.Error("journey: fatal", "error", err)
		os.Exit(1)
	}
	os.Exit(code)
}

func run(ctx context.Context, logger *slog.Logger, o options) (int, error) {
	cfg := config.Default()
	if o.configPath != "" {
		var err error
		if cfg, err = config.LoadFile(o.configPath); err != nil {
			return 1, fmt.Errorf("load config: %w", err)
		}
	}

	var prompter gateway.Prompter = gateway.DirPrompter{Dir: cfg.Gateway.SaveDir}
	if o.record {
		prompter = &gateway.LinePrompter{In: os.Stdin, Out: os.Stderr}
	}

	svc, closeFn, err := build(cfg, logger, prompter)
	if err != nil {
		return 1, err
	}
	defer closeFn()

	switch {
	case o.record:
		return runRecord(ctx, svc, o)
	case o.runPath != "":
		return runJourney(ctx, svc, o)
	case o.serve:
		return 0, serveHTTP(ctx, logger, svc, cfg.Gateway.Listen)
	case o.mcp:
		return 0, svc.ServeMCP(ctx, &mcp.Implementation{Name: "journey", Version: version})
	}

	fmt.Fprintln(os.Stderr, "usage: journey -record [-url <url>] [-suite] | -run <file> [-suite] | -serve | -mcp")
	return 2, nil
}

// build wires the recorder, harness, journal and saver into a gateway service.
func build(cfg *config.Config, logger *slog.Logger, prompter gateway.Prompter) (*gateway.Service, func(), error) {
	rec := recorder.New(recorder.Config{
		RemoteURL:         cfg.Browser.Remote,
		Bin:               cfg.Browser.Bin,
		Headless:          cfg.Browser.Headless,
		XvfbDisplay:       cfg.Browser.XvfbDisplay,
		Stealth:           cfg.Browser.Stealth,
		NavigateTimeout:   cfg.Browser.NavigateTimeout,
		HeartbeatInterval: cfg.Browser.HeartbeatInterval,
		JourneyName:       cfg.Recording.JourneyName,
		EventBuffer:       cfg.Recording.EventBuffer,
		Logger:            logger,
	})
	h := harness.New(harness.Config{
		Command: cfg.Harness.Command,
		Dir:     cfg.Harness.Dir,
		Env:     cfg.Harness.Env,
		Timeout: cfg.Harness.Timeout,
		Logger:  logger,
	})

	sc := gateway.ServiceConfig{
		Recorder: rec,
		Runner:   h,
		Saver:    gateway.NewSaver(prompter, logger),
		Logger:   logger,
	}
	closeFn := func() {}
	if cfg.Journal.Path != "" {
		store, err := journal.Open(cfg.Journal.Path)
		if err != nil {
			return nil, nil, err
		}
		sc.Journal = store
		closeFn = func() { store.Close() }
	}
	return gateway.NewService(sc), closeFn, nil
}

func runRecord(ctx context.Context, svc *gateway.Service, o options) (int, error) {
	resp, err := svc.StartRecording(ctx, &gateway.StartRecordingRequest{URL: o.url, IsSuite: o.suite})
	if err != nil {
		var le *recorder.SessionLaunchError
		if errors.As(err, &le) {
			fmt.Fprintln(os.Stderr, "journey: the browser could not be started; nothing was recorded")
		}
		return 1, err
	}
	if resp.NavigationError != "" {
		fmt.Fprintln(os.Stderr, "journey: initial navigation failed:", resp.NavigationError)
	}
	fmt.Print(resp.Source)

	// The signal context may be done already (Ctrl-C ended the recording).
	saveCtx := context.WithoutCancel(ctx)
	if _, err := svc.SaveFile(saveCtx, &gateway.SaveFileRequest{Source: resp.Source}); err != nil {
		return 1, err
	}
	return 0, nil
}

func runJourney(ctx context.Context, svc *gateway.Service, o options) (int, error) {
	src, err := os.ReadFile(o.runPath)
	if err != nil {
		return 1, fmt.Errorf("read journey: %w", err)
	}
	resp, err := svc.RunJourney(ctx, &gateway.RunJourneyRequest{SourceCode: string(src), IsSuite: o.suite})
	if err != nil {
		return 1, err
	}
	fmt.Print(resp.Output)
	switch {
	case !resp.OK:
		return 1, errors.New("journey could not be executed")
	case !resp.Passed:
		return resp.ExitCode, nil
	}
	return 0, nil
}

func serveHTTP(ctx context.Context, logger *slog.Logger, svc *gateway.Service, addr string) error {
	gw := gateway.New(gateway.WithLogger(logger))
	svc.Register(gw)

	srv := &http.Server{
		Addr:              addr,
		Handler:           gateway.NewHTTPHandler(gw, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errc := make(chan error, 1)
	go func() {
		logger.Info("journey: listening", "addr", addr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	svc.Stop(shutdownCtx)
	return srv.Shutdown(shutdownCtx)
}
