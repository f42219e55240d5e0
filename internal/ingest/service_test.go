package ingest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/berkinory/Nobetcim/internal/pharmacy"

	"github.com/alicebob/miniredis/v2"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

type fakeScraper struct {
	rosters map[int][]pharmacy.Pharmacy
	errs    map[int]error
	calls   []int
}

func (f *fakeScraper) Province(_ context.Context, code int, _ string) ([]pharmacy.Pharmacy, error) {
	f.calls = append(f.calls, code)
	if err := f.errs[code]; err != nil {
		return nil, err
	}
	return f.rosters[code], nil
}

func provinceEntry(code int, name string) pharmacy.Pharmacy {
	return pharmacy.Pharmacy{
		City:     ProvinceName(code),
		District: "Merkez",
		Name:     name,
		Phone:    "03121234567",
		Address:  "Cadde No:1",
		Lat:      39.9,
		Long:     32.8,
	}
}

func testService(t *testing.T, scraper provinceScraper) (*Service, *pharmacy.RedisStore) {
	t.Helper()
	s := miniredis.RunT(t)
	store := pharmacy.NewRedisStore(redis.NewClient(&redis.Options{Addr: s.Addr()}))

	svc := NewService(nil, store, nil, zerolog.Nop())
	svc.scraper = scraper
	svc.sleep = func(time.Duration) {}
	return svc, store
}

func TestRunDateAppendsProvinces(t *testing.T) {
	scraper := &fakeScraper{rosters: map[int][]pharmacy.Pharmacy{
		6:  {provinceEntry(6, "Merkez Eczanesi"), provinceEntry(6, "Kale Eczanesi")},
		34: {provinceEntry(34, "Boğaz Eczanesi")},
	}}
	svc, store := testService(t, scraper)

	sum, err := svc.RunDate(context.Background(), "14/03/2024")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if sum.Succeeded != 2 {
		t.Fatalf("expected 2 succeeded, got %d", sum.Succeeded)
	}
	if sum.Failed != 79 {
		t.Fatalf("expected 79 failed, got %d", sum.Failed)
	}
	if sum.Entries != 3 {
		t.Fatalf("expected 3 entries, got %d", sum.Entries)
	}

	roster, err := store.Roster(context.Background(), "14/03/2024")
	if err != nil {
		t.Fatalf("roster: %v", err)
	}
	if len(roster) != 3 {
		t.Fatalf("expected 3 on roster, got %d", len(roster))
	}
	if roster[0].City != "Ankara" || roster[2].City != "İstanbul" {
		t.Fatalf("provinces did not accumulate in order: %+v", roster)
	}
}

func TestRunDateSkipsProvincesAlreadyPresent(t *testing.T) {
	scraper := &fakeScraper{rosters: map[int][]pharmacy.Pharmacy{
		34: {provinceEntry(34, "Boğaz Eczanesi")},
	}}
	svc, store := testService(t, scraper)

	seed := []pharmacy.Pharmacy{provinceEntry(6, "Merkez Eczanesi")}
	if err := store.SaveRoster(context.Background(), "14/03/2024", seed, time.Hour); err != nil {
		t.Fatalf("seed: %v", err)
	}

	sum, err := svc.RunDate(context.Background(), "14/03/2024")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if sum.Skipped != 1 {
		t.Fatalf("expected 1 skipped, got %d", sum.Skipped)
	}
	for _, code := range scraper.calls {
		if code == 6 {
			t.Fatalf("scraped a province that was already on the roster")
		}
	}

	roster, err := store.Roster(context.Background(), "14/03/2024")
	if err != nil {
		t.Fatalf("roster: %v", err)
	}
	if len(roster) != 2 {
		t.Fatalf("expected seeded + new entries, got %d", len(roster))
	}
}

func TestRunDateProvinceFailureDoesNotAbort(t *testing.T) {
	scraper := &fakeScraper{
		rosters: map[int][]pharmacy.Pharmacy{34: {provinceEntry(34, "Boğaz Eczanesi")}},
		errs:    map[int]error{6: errors.New("upstream down")},
	}
	svc, _ := testService(t, scraper)

	sum, err := svc.RunDate(context.Background(), "14/03/2024")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if sum.Succeeded != 1 {
		t.Fatalf("expected 1 succeeded, got %d", sum.Succeeded)
	}
	if len(scraper.calls) != 81 {
		t.Fatalf("expected all provinces attempted, got %d", len(scraper.calls))
	}
}

func TestRunDateHonorsContext(t *testing.T) {
	svc, _ := testService(t, &fakeScraper{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := svc.RunDate(ctx, "14/03/2024"); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestRunDateArchivesEntriesAndRun(t *testing.T) {
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("mock pool: %v", err)
	}
	defer mock.Close()

	entry := provinceEntry(6, "Merkez Eczanesi")
	scraper := &fakeScraper{rosters: map[int][]pharmacy.Pharmacy{6: {entry}}}
	svc, _ := testService(t, scraper)
	svc.archive = NewArchive(mock)

	mock.ExpectExec(`INSERT INTO pharmacy_archive`).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), "14/03/2024",
			entry.City, entry.District, entry.Name, entry.Phone, entry.Address, entry.Lat, entry.Long).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(`INSERT INTO ingest_runs`).
		WithArgs(pgxmock.AnyArg(), "14/03/2024", 1, 80, 0, 1, pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	if _, err := svc.RunDate(context.Background(), "14/03/2024"); err != nil {
		t.Fatalf("run: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestArchiveSaveError(t *testing.T) {
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("mock pool: %v", err)
	}
	defer mock.Close()

	mock.ExpectExec(`INSERT INTO pharmacy_archive`).
		WillReturnError(errors.New("db down"))

	archive := NewArchive(mock)
	err = archive.SaveEntries(context.Background(), "run-1", "14/03/2024",
		[]pharmacy.Pharmacy{provinceEntry(6, "Merkez Eczanesi")})
	if err == nil {
		t.Fatalf("expected error")
	}
}
