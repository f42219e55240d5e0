package stream

import (
	"github.com/berkinory/Nobetcim/internal/shared/geo"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

type clientFix struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

func RegisterRoutes(r fiber.Router, w *Watcher) {
	r.Get("/watch", websocket.New(func(c *websocket.Conn) {
		useFallback := c.Query("fallback") == "1"

		session, err := w.Start(useFallback)
		if err != nil {
			_ = c.WriteJSON(Update{Type: "error", Error: err.Error()})
			return
		}
		defer session.Stop()

		done := make(chan struct{})
		go func() {
			for update := range session.Updates() {
				if err := c.WriteJSON(update); err != nil {
					break
				}
			}
			close(done)
		}()

		for {
			var fix clientFix
			if err := c.ReadJSON(&fix); err != nil {
				break
			}
			coord := geo.Coordinate{Lat: fix.Lat, Lng: fix.Lng}
			if !coord.Valid() {
				session.emit(Update{Type: "error", Error: "invalid coordinates"})
				continue
			}
			session.Push(coord)
		}

		session.Stop()
		<-done
	}))
}
