// Package ingest collects the national duty-pharmacy roster from the
// government query service, one province at a time, and feeds it into the
// roster store and the relational archive.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"html"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/berkinory/Nobetcim/internal/pharmacy"

	"github.com/rs/zerolog"
)

const (
	// DefaultBaseURL is the duty-pharmacy query page on the e-government portal.
	DefaultBaseURL = "https://www.turkiye.gov.tr/saglik-titck-nobetci-eczane-sorgulama"

	defaultRetries   = 5
	defaultBackoff   = 5 * time.Second
	defaultPageDelay = 2 * time.Second
	requestTimeout   = 6 * time.Second
	userAgent        = "Mozilla/5.0"
)

var (
	tokenRe = regexp.MustCompile(`data-token="([^"]+)"`)
	tableRe = regexp.MustCompile(`(?s)<table[^>]*id="searchTable"[^>]*>(.*?)</table>`)
	tbodyRe = regexp.MustCompile(`(?s)<tbody[^>]*>(.*?)</tbody>`)
	rowRe   = regexp.MustCompile(`(?s)<tr[^>]*>(.*?)</tr>`)
	cellRe  = regexp.MustCompile(`(?s)<td[^>]*>(.*?)</td>`)
	tagRe   = regexp.MustCompile(`<[^>]*>`)
	spaceRe = regexp.MustCompile(`\s+`)
	lattiRe = regexp.MustCompile(`var latti = parseFloat\(([\d.]+)\);`)
	longiRe = regexp.MustCompile(`var longi = parseFloat\(([\d.]+)\);`)
	digitRe = regexp.MustCompile(`[^\d]`)
)

// ErrBadProvince rejects plate codes outside 1..81 before any request is made.
var ErrBadProvince = errors.New("ingest: province code out of range")

// CleanPhone reduces a scraped phone cell to the canonical 11-digit national
// form with a leading zero. Inputs it cannot normalize pass through as-is.
func CleanPhone(text string) string {
	if text == "" {
		return ""
	}
	digits := digitRe.ReplaceAllString(text, "")
	switch {
	case strings.HasPrefix(digits, "0") && len(digits) == 11:
		return digits
	case len(digits) == 10:
		return "0" + digits
	}
	return text
}

// Scraper walks the query flow for one province: fetch the session token,
// submit the date query, read the result table, then resolve per-row
// coordinates from the map popup.
type Scraper struct {
	baseURL string
	client  *http.Client
	log     zerolog.Logger

	retries   int
	backoff   time.Duration
	pageDelay time.Duration
	sleep     func(time.Duration)
}

func NewScraper(baseURL string, logger zerolog.Logger) *Scraper {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Scraper{
		baseURL:   strings.TrimRight(baseURL, "/"),
		client:    &http.Client{Timeout: requestTimeout},
		log:       logger.With().Str("component", "scraper").Logger(),
		retries:   defaultRetries,
		backoff:   defaultBackoff,
		pageDelay: defaultPageDelay,
		sleep:     time.Sleep,
	}
}

// Province scrapes the full roster for one plate code on the given duty date.
func (s *Scraper) Province(ctx context.Context, code int, dateKey string) ([]pharmacy.Pharmacy, error) {
	if code < firstProvinceCode || code > lastProvinceCode {
		return nil, ErrBadProvince
	}

	token, err := s.fetchToken(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch token: %w", err)
	}
	s.sleep(s.pageDelay)

	if err := s.submitQuery(ctx, code, dateKey, token); err != nil {
		return nil, fmt.Errorf("submit query: %w", err)
	}
	s.sleep(s.pageDelay)

	rows, err := s.fetchRows(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch rows: %w", err)
	}

	city := ProvinceName(code)
	roster := make([]pharmacy.Pharmacy, 0, len(rows))
	for idx, row := range rows {
		lat, lng, err := s.coordinates(ctx, idx)
		if err != nil {
			return nil, fmt.Errorf("coordinates for row %d: %w", idx, err)
		}
		roster = append(roster, pharmacy.Pharmacy{
			City:     city,
			District: row.district,
			Name:     row.name,
			Phone:    row.phone,
			Address:  row.address,
			Lat:      lat,
			Long:     lng,
		})
	}
	return roster, nil
}

type resultRow struct {
	name     string
	district string
	phone    string
	address  string
}

func (s *Scraper) fetchToken(ctx context.Context) (string, error) {
	body, err := s.get(ctx, s.baseURL)
	if err != nil {
		return "", err
	}
	m := tokenRe.FindStringSubmatch(body)
	if m == nil {
		return "", errors.New("ingest: no session token on query page")
	}
	return m[1], nil
}

func (s *Scraper) submitQuery(ctx context.Context, code int, dateKey, token string) error {
	form := url.Values{
		"plakaKodu":   {strconv.Itoa(code)},
		"nobetTarihi": {dateKey},
		"token":       {token},
		"btn":         {"Sorgula"},
	}
	_, err := s.postForm(ctx, s.baseURL+"?submit", form)
	return err
}

func (s *Scraper) fetchRows(ctx context.Context) ([]resultRow, error) {
	body, err := s.get(ctx, s.baseURL+"?nobetci=Eczaneler")
	if err != nil {
		return nil, err
	}

	table := tableRe.FindStringSubmatch(body)
	if table == nil {
		return nil, nil
	}
	section := table[1]
	if tbody := tbodyRe.FindStringSubmatch(section); tbody != nil {
		section = tbody[1]
	}

	var rows []resultRow
	for _, tr := range rowRe.FindAllStringSubmatch(section, -1) {
		cells := cellRe.FindAllStringSubmatch(tr[1], -1)
		if len(cells) < 4 {
			continue
		}
		district := cellText(cells[1][1])
		if fields := strings.Fields(district); len(fields) > 0 {
			district = fields[0]
		}
		rows = append(rows, resultRow{
			name:     cellText(cells[0][1]),
			district: district,
			phone:    CleanPhone(cellText(cells[2][1])),
			address:  cellText(cells[3][1]),
		})
	}
	return rows, nil
}

// coordinates opens the map popup for one result row and pulls the point the
// page hands to its map widget. Rows without a resolvable point keep zero
// coordinates rather than being dropped.
func (s *Scraper) coordinates(ctx context.Context, index int) (float64, float64, error) {
	form := url.Values{
		"harita": {"Goster"},
		"index":  {strconv.Itoa(index)},
	}
	body, err := s.postForm(ctx, fmt.Sprintf("%s?harita=Goster&index=%d", s.baseURL, index), form)
	if err != nil {
		return 0, 0, err
	}
	s.sleep(s.pageDelay)

	latM := lattiRe.FindStringSubmatch(body)
	lngM := longiRe.FindStringSubmatch(body)
	if latM == nil || lngM == nil {
		return 0, 0, nil
	}
	lat, err := strconv.ParseFloat(latM[1], 64)
	if err != nil {
		return 0, 0, nil
	}
	lng, err := strconv.ParseFloat(lngM[1], 64)
	if err != nil {
		return 0, 0, nil
	}
	return lat, lng, nil
}

func cellText(cell string) string {
	text := tagRe.ReplaceAllString(cell, " ")
	text = html.UnescapeString(text)
	return strings.TrimSpace(spaceRe.ReplaceAllString(text, " "))
}

func (s *Scraper) get(ctx context.Context, rawURL string) (string, error) {
	return s.do(ctx, func() (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	})
}

func (s *Scraper) postForm(ctx context.Context, rawURL string, form url.Values) (string, error) {
	payload := form.Encode()
	return s.do(ctx, func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, rawURL, strings.NewReader(payload))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		return req, nil
	})
}

// do runs one request with fixed-backoff retries. The upstream portal fails
// transiently under load, so every page fetch gets the same retry budget.
func (s *Scraper) do(ctx context.Context, build func() (*http.Request, error)) (string, error) {
	var lastErr error
	for attempt := 1; attempt <= s.retries; attempt++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		req, err := build()
		if err != nil {
			return "", err
		}
		req.Header.Set("User-Agent", userAgent)
		req.Header.Set("Accept-Language", "tr-TR,tr;q=0.9,en;q=0.8")
		req.Header.Set("Referer", s.baseURL)

		body, err := s.fetch(req)
		if err == nil {
			return body, nil
		}
		lastErr = err
		s.log.Warn().Err(err).Int("attempt", attempt).Str("url", req.URL.Path).Msg("request failed")
		if attempt < s.retries {
			s.sleep(s.backoff)
		}
	}
	return "", lastErr
}

func (s *Scraper) fetch(req *http.Request) (string, error) {
	resp, err := s.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return "", fmt.Errorf("ingest: upstream status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	return string(body), nil
}
