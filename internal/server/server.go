package server

import (
	"time"

	"github.com/berkinory/Nobetcim/internal/config"
	"github.com/berkinory/Nobetcim/internal/pharmacy"
	"github.com/berkinory/Nobetcim/internal/ratelimit"
	"github.com/berkinory/Nobetcim/internal/stream"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/redis/go-redis/v9"
)

type Server struct {
	App   *fiber.App
	Cfg   config.Config
	Redis *redis.Client
}

func NewServer(cfg config.Config, redisClient *redis.Client) *Server {
	app := fiber.New()
	app.Use(recover.New())
	app.Use(logger.New())

	s := &Server{
		App:   app,
		Cfg:   cfg,
		Redis: redisClient,
	}

	registerRoutes(s)
	return s
}

func registerRoutes(s *Server) {
	s.App.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	svc := pharmacy.NewService(pharmacy.NewRedisStore(s.Redis)).
		WithCutoff(s.Cfg.UTCOffsetHours, s.Cfg.CutoffHour, s.Cfg.CutoffMinute)

	group := s.App.Group("/pharmacy")
	if s.Redis != nil {
		limiter := ratelimit.New(s.Redis, s.Cfg.RateLimitMax,
			time.Duration(s.Cfg.RateLimitWindowSec)*time.Second)
		group.Use(ratelimit.Middleware(limiter))
	}
	pharmacy.RegisterRoutes(group, svc)

	stream.RegisterRoutes(s.App.Group("/stream"), stream.NewWatcher(svc))
}
