package pharmacy

import (
	"errors"
	"fmt"
	"log"
	"strconv"

	"github.com/berkinory/Nobetcim/internal/shared/geo"

	"github.com/gofiber/fiber/v2"
)

const rosterCacheControl = "public, s-maxage=3600, stale-while-revalidate=3600"

const defaultNearestK = 5

func RegisterRoutes(r fiber.Router, svc *Service) {
	r.Get("/", func(c *fiber.Ctx) error {
		roster, key, err := svc.Roster(c.Context(), c.Query("date"))
		switch {
		case errors.Is(err, ErrBadDate):
			return respondErr(c, "Invalid date", "expected DD/MM/YYYY")
		case errors.Is(err, ErrNotFound):
			return respondErr(c, fmt.Sprintf("No pharmacy data found for %s", key), "")
		case err != nil:
			log.Printf("roster lookup failed: %v", err)
			return respondErr(c, "Internal server error", "Failed to fetch pharmacy data")
		}

		c.Set(fiber.HeaderCacheControl, rosterCacheControl)
		return respondOK(c, roster)
	})

	r.Get("/nearby", func(c *fiber.Ctx) error {
		lat, latErr := strconv.ParseFloat(c.Query("lat"), 64)
		lng, lngErr := strconv.ParseFloat(c.Query("lng"), 64)
		origin := geo.Coordinate{Lat: lat, Lng: lng}
		if latErr != nil || lngErr != nil || !origin.Valid() {
			return respondErr(c, "Invalid coordinates", "lat and lng are required")
		}

		k := defaultNearestK
		if raw := c.Query("k"); raw != "" {
			parsed, err := strconv.Atoi(raw)
			if err != nil || parsed <= 0 {
				return respondErr(c, "Invalid k", "k must be a positive integer")
			}
			k = parsed
		}

		ranked, key, err := svc.Nearest(c.Context(), c.Query("date"), origin, k)
		switch {
		case errors.Is(err, ErrBadDate):
			return respondErr(c, "Invalid date", "expected DD/MM/YYYY")
		case errors.Is(err, ErrNotFound):
			return respondErr(c, fmt.Sprintf("No pharmacy data found for %s", key), "")
		case err != nil:
			log.Printf("nearest lookup failed: %v", err)
			return respondErr(c, "Internal server error", "Failed to fetch pharmacy data")
		}

		return respondOK(c, ranked)
	})
}
