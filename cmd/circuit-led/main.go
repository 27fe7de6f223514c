package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/theoremus-urban-solutions/circuit-led/config"
	"github.com/theoremus-urban-solutions/circuit-led/frames"
	"github.com/theoremus-urban-solutions/circuit-led/internal"
	"github.com/theoremus-urban-solutions/circuit-led/participant"
	"github.com/theoremus-urban-solutions/circuit-led/playback"
	"github.com/theoremus-urban-solutions/circuit-led/server"
	"github.com/theoremus-urban-solutions/circuit-led/telemetry"
	"github.com/theoremus-urban-solutions/circuit-led/track"
)

var log = internal.Logger(internal.LogMain)

func main() {
	mode := flag.String("mode", "serve", "serve|oneshot")
	configPath := flag.String("config", "", "config file (default: config.yml, then ./config/config.yml)")
	participants := flag.String("participants", "", "comma-separated participant numbers (overrides config)")
	port := flag.Int("port", 0, "HTTP port (overrides config)")
	autostart := flag.Bool("autostart", false, "start playback immediately in serve mode")
	flag.Parse()

	var err error
	if *configPath != "" {
		err = config.LoadAppConfigFrom(*configPath)
	} else {
		err = config.LoadAppConfig()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	cfg := config.Config
	if err := internal.InitLogging(cfg.Log.Level); err != nil {
		fmt.Fprintf(os.Stderr, "logging: %v\n", err)
		os.Exit(1)
	}
	if *port > 0 {
		cfg.Server.Port = *port
	}

	table, err := participant.LoadTable(cfg.Data.ParticipantsPath)
	if err != nil {
		log.Fatalf("participants: %v", err)
	}
	markers, err := track.LoadMarkers(cfg.Data.MarkersPath)
	if err != nil {
		log.Fatalf("markers: %v", err)
	}
	ids, err := selectParticipants(*participants, cfg.Playback.Participants, table)
	if err != nil {
		log.Fatalf("participants: %v", err)
	}
	fetcher, err := newFetcher(cfg.Source)
	if err != nil {
		log.Fatalf("source: %v", err)
	}
	builder := frames.NewBuilder(markers, table)
	log.Infof("%d markers, %d participants, %s source", markers.Len(), len(ids), cfg.Source.Kind)

	switch *mode {
	case "oneshot":
		if err := oneshot(fetcher, builder, cfg.Playback, ids); err != nil {
			log.Fatalf("oneshot: %v", err)
		}
	case "serve":
		serve(fetcher, builder, markers, cfg, ids, *autostart)
	default:
		log.Fatalf("unknown mode %q", *mode)
	}
}

func newFetcher(src config.SourceConfig) (*telemetry.Fetcher, error) {
	start, end, err := src.Window()
	if err != nil {
		return nil, err
	}
	client := telemetry.NewClient(src.Timeout())
	var source telemetry.Source
	switch src.Kind {
	case "gtfsrt":
		if src.VehiclePositionsURL == "" {
			return nil, fmt.Errorf("gtfsrt source requires vehiclePositionsURL")
		}
		source = telemetry.NewGTFSRTSource(client, src.VehiclePositionsURL)
	default:
		source = telemetry.NewOpenF1Source(client, src.BaseURL)
	}
	return telemetry.NewFetcher(source, src.SessionKey, telemetry.Window{From: start, To: end}), nil
}

// selectParticipants applies the flag override, then the config list, then
// falls back to the whole table.
func selectParticipants(flagValue string, configured []int, table *participant.Table) ([]int, error) {
	ids := configured
	if flagValue != "" {
		ids = nil
		for _, f := range strings.Split(flagValue, ",") {
			f = strings.TrimSpace(f)
			if f == "" {
				continue
			}
			n, err := strconv.Atoi(f)
			if err != nil {
				return nil, fmt.Errorf("invalid participant number %q", f)
			}
			ids = append(ids, n)
		}
	}
	if len(ids) == 0 {
		return table.Numbers(), nil
	}
	for _, n := range ids {
		if _, ok := table.Lookup(n); !ok {
			log.Warnf("participant %d is not in the participant table, its samples will be skipped", n)
		}
	}
	return ids, nil
}

// oneshot fetches one pass and prints the resulting frames as JSON.
func oneshot(fetcher *telemetry.Fetcher, builder *frames.Builder, pc config.PlaybackConfig, ids []int) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	samples, err := fetcher.FetchBatch(ctx, telemetry.Request{
		Participants:        ids,
		BatchSize:           pc.BatchSize,
		PerParticipantLimit: pc.PerParticipantLimit,
	})
	if err != nil {
		return err
	}
	built := builder.Build(samples)
	st := fetcher.Stats()
	log.Infof("%d samples, %d frames (dropped: %d sentinel, %d bad timestamp, %d repeated, %d source errors)",
		len(samples), len(built), st.Sentinel, st.BadTimestamp, st.Duplicates, st.SourceErrors)

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(built)
}

func serve(fetcher *telemetry.Fetcher, builder *frames.Builder, markers *track.LinearIndex, cfg config.AppConfig, ids []int, autostart bool) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub := server.NewBroadcaster()
	sched := playback.New(fetcher, builder, playback.Options{
		Participants:        ids,
		BatchSize:           cfg.Playback.BatchSize,
		PerParticipantLimit: cfg.Playback.PerParticipantLimit,
		TickInterval:        cfg.Playback.TickInterval(),
		FrameInterval:       cfg.Playback.FrameInterval(),
		RefillDelay:         cfg.Playback.RefillDelay(),
		OnChange:            hub.Publish,
	})
	go hub.Run(ctx)
	go func() { _ = sched.Run(ctx) }()

	srv := server.New(cfg.Server.Port, sched, markers, hub)
	if err := srv.Start(); err != nil {
		log.Fatalf("%v", err)
	}
	if autostart {
		sched.Start()
	}

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	<-sigs
	log.Infof("shutdown signal received")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Errorf("server shutdown error: %v", err)
	} else {
		log.Infof("server shut down successfully")
	}
	cancel()
	st := fetcher.Stats()
	log.Infof("fetched %d samples over the session (%d sentinel, %d bad timestamp, %d source errors, %d transport errors)",
		st.Samples, st.Sentinel, st.BadTimestamp, st.SourceErrors, st.TransportErrs)
}
