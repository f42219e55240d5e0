package ingest

import (
	"context"
	"errors"
	"time"

	"github.com/berkinory/Nobetcim/internal/pharmacy"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const defaultProvinceDelay = 2 * time.Second

// Summary is the outcome of processing one duty date.
type Summary struct {
	RunID     string
	Succeeded int
	Failed    int
	Skipped   int
	Entries   int
}

type provinceScraper interface {
	Province(ctx context.Context, code int, dateKey string) ([]pharmacy.Pharmacy, error)
}

// Service drives a full collection run: walk every province, scrape its duty
// roster, append it to the date's roster in redis, and archive the rows.
// Provinces whose data is already on the roster are skipped, so a rerun only
// fills the gaps.
type Service struct {
	scraper provinceScraper
	store   pharmacy.Store
	archive *Archive // nil disables history
	log     zerolog.Logger

	ttl           time.Duration
	provinceDelay time.Duration
	sleep         func(time.Duration)
	now           func() time.Time
}

func NewService(scraper *Scraper, store pharmacy.Store, archive *Archive, logger zerolog.Logger) *Service {
	return &Service{
		scraper:       scraper,
		store:         store,
		archive:       archive,
		log:           logger.With().Str("component", "ingest").Logger(),
		ttl:           pharmacy.DefaultTTL,
		provinceDelay: defaultProvinceDelay,
		sleep:         time.Sleep,
		now:           time.Now,
	}
}

// RunDate processes every province for one duty date.
func (s *Service) RunDate(ctx context.Context, dateKey string) (Summary, error) {
	startedAt := s.now()
	sum := Summary{RunID: uuid.NewString()}

	present, err := s.citiesOnRoster(ctx, dateKey)
	if err != nil {
		return sum, err
	}

	s.log.Info().Str("date", dateKey).Str("run_id", sum.RunID).Msg("collection started")

	for code := firstProvinceCode; code <= lastProvinceCode; code++ {
		if err := ctx.Err(); err != nil {
			return sum, err
		}

		city := ProvinceName(code)
		if present[city] {
			sum.Skipped++
			continue
		}

		entries, err := s.scraper.Province(ctx, code, dateKey)
		if err != nil {
			sum.Failed++
			s.log.Error().Err(err).Int("province", code).Str("city", city).Msg("province failed")
			s.sleep(s.provinceDelay)
			continue
		}
		if len(entries) == 0 {
			sum.Failed++
			s.log.Warn().Int("province", code).Str("city", city).Msg("empty result")
			s.sleep(s.provinceDelay)
			continue
		}

		if err := s.appendRoster(ctx, dateKey, entries); err != nil {
			sum.Failed++
			s.log.Error().Err(err).Int("province", code).Str("city", city).Msg("roster save failed")
			s.sleep(s.provinceDelay)
			continue
		}
		if s.archive != nil {
			if err := s.archive.SaveEntries(ctx, sum.RunID, dateKey, entries); err != nil {
				s.log.Error().Err(err).Int("province", code).Str("city", city).Msg("archive failed")
			}
		}

		sum.Succeeded++
		sum.Entries += len(entries)
		s.log.Info().Int("province", code).Str("city", city).Int("count", len(entries)).Msg("province done")
		s.sleep(s.provinceDelay)
	}

	if s.archive != nil {
		if err := s.archive.RecordRun(ctx, sum.RunID, dateKey, sum, startedAt); err != nil {
			s.log.Error().Err(err).Msg("run record failed")
		}
	}

	s.log.Info().Str("date", dateKey).
		Int("succeeded", sum.Succeeded).Int("failed", sum.Failed).Int("skipped", sum.Skipped).
		Int("entries", sum.Entries).Msg("collection finished")
	return sum, nil
}

func (s *Service) citiesOnRoster(ctx context.Context, dateKey string) (map[string]bool, error) {
	roster, err := s.store.Roster(ctx, dateKey)
	if errors.Is(err, pharmacy.ErrNotFound) {
		return map[string]bool{}, nil
	}
	if err != nil {
		return nil, err
	}
	present := make(map[string]bool, len(roster))
	for _, p := range roster {
		present[p.City] = true
	}
	return present, nil
}

// appendRoster re-reads the roster so provinces accumulate under one key and
// each save refreshes the expiry.
func (s *Service) appendRoster(ctx context.Context, dateKey string, entries []pharmacy.Pharmacy) error {
	roster, err := s.store.Roster(ctx, dateKey)
	if err != nil && !errors.Is(err, pharmacy.ErrNotFound) {
		return err
	}
	return s.store.SaveRoster(ctx, dateKey, append(roster, entries...), s.ttl)
}
