// Command ingestor collects duty-pharmacy rosters from the government query
// service and loads them into redis, with an optional postgres archive.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/berkinory/Nobetcim/internal/config"
	"github.com/berkinory/Nobetcim/internal/db"
	"github.com/berkinory/Nobetcim/internal/ingest"
	"github.com/berkinory/Nobetcim/internal/pharmacy"
	"github.com/berkinory/Nobetcim/internal/schedule"

	"github.com/rs/zerolog"
)

// lookaheadDays covers today plus the next two duty dates, so the roster is
// ready before each handover.
const lookaheadDays = 3

func main() {
	dateFlag := flag.String("date", "", "duty date to collect (DD/MM/YYYY), default: active date plus lookahead")
	noArchive := flag.Bool("no-archive", false, "skip the postgres archive")
	flag.Parse()

	cfg := config.Load()
	logger := newLogger(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rdb := db.ConnectRedis(cfg)
	if rdb == nil {
		logger.Fatal().Msg("redis is required")
	}
	defer rdb.Close()

	var archive *ingest.Archive
	if !*noArchive {
		pool, err := db.ConnectPostgres(cfg)
		if err != nil {
			logger.Warn().Err(err).Msg("postgres unavailable, archive disabled")
		} else {
			archive = ingest.NewArchive(pool)
			defer pool.Close()
		}
	}

	scraper := ingest.NewScraper(cfg.ScrapeBaseURL, logger)
	svc := ingest.NewService(scraper, pharmacy.NewRedisStore(rdb), archive, logger)

	for _, key := range targetDates(*dateFlag, cfg) {
		if !schedule.ValidKey(key) {
			logger.Fatal().Str("date", key).Msg("invalid duty date")
		}
		if _, err := svc.RunDate(ctx, key); err != nil {
			logger.Error().Err(err).Str("date", key).Msg("run aborted")
			return
		}
	}
}

// targetDates resolves which roster keys to collect: the explicit -date
// override, or the active date and its lookahead window.
func targetDates(override string, cfg config.Config) []string {
	if override != "" {
		return []string{override}
	}

	local := time.Now().UTC().Add(time.Duration(cfg.UTCOffsetHours) * time.Hour)
	keys := make([]string, 0, lookaheadDays)
	for offset := 0; offset < lookaheadDays; offset++ {
		keys = append(keys, schedule.KeyFor(local.AddDate(0, 0, offset)))
	}
	return keys
}

func newLogger(level string) zerolog.Logger {
	parsed, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil {
		parsed = zerolog.InfoLevel
	}
	writer := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	return zerolog.New(writer).Level(parsed).With().Timestamp().Logger()
}
