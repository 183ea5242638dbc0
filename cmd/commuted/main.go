// Command commuted serves the commuter dashboard. It also carries a
// couple of development helpers: rendering a frame to disk and
// encoding or decoding config tokens.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"
	"github.com/spf13/cobra"

	commute "github.com/m1ckyb/CommuteCompute-sub001"
	"github.com/m1ckyb/CommuteCompute-sub001/geocode"
	"github.com/m1ckyb/CommuteCompute-sub001/pair"
	"github.com/m1ckyb/CommuteCompute-sub001/parse"
	"github.com/m1ckyb/CommuteCompute-sub001/render"
	"github.com/m1ckyb/CommuteCompute-sub001/server"
	"github.com/m1ckyb/CommuteCompute-sub001/storage"
	"github.com/m1ckyb/CommuteCompute-sub001/token"
	"github.com/m1ckyb/CommuteCompute-sub001/transit"
	"github.com/m1ckyb/CommuteCompute-sub001/weather"
)

// version is set via -ldflags at release time.
var version = "dev"

var (
	logLevel string

	listenAddr      string
	gtfsPath        string
	kvBackend       string
	sqlitePath      string
	postgresURL     string
	refreshInterval time.Duration

	renderToken  string
	renderDevice string
	renderZoneID string
	renderOut    string
)

func main() {
	// Missing .env is fine; it only exists in development.
	godotenv.Load()

	root := &cobra.Command{
		Use:          "commuted",
		Short:        "Commuter dashboard server for e-ink displays",
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			setupLogging()
		},
	}
	root.PersistentFlags().StringVar(&logLevel, "log-level", "info", "debug, info, warn or error")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		RunE:  runServe,
	}
	serveCmd.Flags().StringVar(&listenAddr, "listen", ":8080", "listen address")
	serveCmd.Flags().StringVar(&gtfsPath, "gtfs", "", "path to a static GTFS zip for the fallback timetable")
	serveCmd.Flags().StringVar(&kvBackend, "kv", "memory", "pairing store backend: memory, sqlite or postgres")
	serveCmd.Flags().StringVar(&sqlitePath, "sqlite-path", "commute.db", "sqlite database path")
	serveCmd.Flags().StringVar(&postgresURL, "postgres-url", "", "postgres DSN, defaults to $DATABASE_URL")
	serveCmd.Flags().DurationVar(&refreshInterval, "refresh-interval", 60*time.Second, "trip updates cache lifetime")
	root.AddCommand(serveCmd)

	renderCmd := &cobra.Command{
		Use:   "render",
		Short: "Render a frame or zone to a file",
		RunE:  runRender,
	}
	renderCmd.Flags().StringVar(&renderToken, "token", "", "config token")
	renderCmd.Flags().StringVar(&renderDevice, "device", "web-preview", "device kind")
	renderCmd.Flags().StringVar(&renderZoneID, "zone", "", "zone id, empty for the full frame")
	renderCmd.Flags().StringVar(&renderOut, "out", "frame.png", "output file")
	root.AddCommand(renderCmd)

	tokenCmd := &cobra.Command{
		Use:   "token",
		Short: "Encode or decode config tokens",
	}
	tokenCmd.AddCommand(&cobra.Command{
		Use:   "encode <config.json>",
		Short: "Encode a JourneyConfig JSON file into a token",
		Args:  cobra.ExactArgs(1),
		RunE:  runTokenEncode,
	})
	tokenCmd.AddCommand(&cobra.Command{
		Use:   "decode <token>",
		Short: "Decode a token into JourneyConfig JSON",
		Args:  cobra.ExactArgs(1),
		RunE:  runTokenDecode,
	})
	root.AddCommand(tokenCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func setupLogging() {
	level := slog.LevelInfo
	switch logLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	slog.SetDefault(slog.New(tint.NewHandler(os.Stderr, &tint.Options{Level: level})))
}

func runServe(cmd *cobra.Command, args []string) error {
	logger := slog.Default()

	kv, err := openKV()
	if err != nil {
		return fmt.Errorf("opening pairing store: %w", err)
	}
	defer kv.Close()

	authority := transit.Victoria()
	manager := transit.NewManager(authority, nil)
	manager.TripUpdatesTTL = refreshInterval
	manager.Logger = logger

	network := commute.NewNetwork(nil, nil)
	if gtfsPath != "" {
		buf, err := os.ReadFile(gtfsPath)
		if err != nil {
			return fmt.Errorf("reading gtfs bundle: %w", err)
		}
		static, err := parse.ParseStaticZip(buf)
		if err != nil {
			return fmt.Errorf("parsing gtfs bundle: %w", err)
		}
		timetable, err := transit.NewTimetable(static, authority)
		if err != nil {
			return fmt.Errorf("building timetable: %w", err)
		}
		manager.Timetable = timetable
		network = timetable.Network(static)
		logger.Info("loaded static schedule", "stops", len(static.Stops), "trips", len(static.Trips))
	} else {
		logger.Warn("no gtfs bundle configured, journeys fall back to walking")
	}

	srv := &server.Server{
		Transit:       manager,
		Network:       network,
		Weather:       weather.NewClient(),
		Geocode:       geocode.NewClient(kv),
		Pairing:       pair.NewService(kv),
		Clock:         clockwork.NewRealClock(),
		Logger:        logger,
		AdminPassword: os.Getenv("COMMUTE_ADMIN_PASSWORD"),
		Version:       version,
	}
	if srv.AdminPassword == "" {
		logger.Warn("COMMUTE_ADMIN_PASSWORD not set, setup endpoints disabled")
	}

	httpServer := &http.Server{
		Addr:              listenAddr,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errs := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", listenAddr, "version", version)
		errs <- httpServer.ListenAndServe()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errs:
		return err
	case sig := <-stop:
		logger.Info("shutting down", "signal", sig.String())
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(ctx)
	}
}

func openKV() (storage.KV, error) {
	switch kvBackend {
	case "sqlite":
		return storage.NewSQLiteKV(storage.SQLiteConfig{Path: sqlitePath})
	case "postgres":
		dsn := postgresURL
		if dsn == "" {
			dsn = os.Getenv("DATABASE_URL")
		}
		return storage.NewPostgresKV(storage.PostgresConfig{DSN: dsn})
	case "memory":
		// Single-process only; pairing codes die with the process.
		return storage.NewMemoryKV(), nil
	}
	return nil, fmt.Errorf("unknown kv backend %q", kvBackend)
}

func runRender(cmd *cobra.Command, args []string) error {
	cfg, err := token.Decode(renderToken)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	profile := render.ProfileFor(renderDevice)
	now := time.Now().In(commute.StateTimezone(cfg.EffectiveState()))

	planner := commute.NewPlanner(commute.NewNetwork(nil, nil), transit.NewManager(transit.Victoria(), nil).Keyed(cfg.TransitAPIKey))
	data := render.Data{
		Journey:     planner.PlanJourney(cmd.Context(), cfg, time.Now()),
		HomeAddress: cfg.Home.FormattedAddress,
		Destination: cfg.Work.FormattedAddress,
		Now:         now,
	}

	var body []byte
	if renderZoneID != "" {
		body, err = render.RenderZone(profile, renderZoneID, data)
	} else {
		body, err = render.RenderFull(profile, data)
	}
	if err != nil {
		return err
	}
	return os.WriteFile(renderOut, body, 0o644)
}

func runTokenEncode(cmd *cobra.Command, args []string) error {
	buf, err := os.ReadFile(args[0])
	if err != nil {
		return err
	}
	var cfg commute.JourneyConfig
	if err := json.Unmarshal(buf, &cfg); err != nil {
		return fmt.Errorf("parsing config: %w", err)
	}
	encoded, err := token.Encode(cfg)
	if err != nil {
		return err
	}
	fmt.Println(encoded)
	return nil
}

func runTokenDecode(cmd *cobra.Command, args []string) error {
	cfg, err := token.Decode(args[0])
	if err != nil {
		return err
	}
	out, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}
