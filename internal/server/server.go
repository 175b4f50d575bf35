package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-contrib/pprof"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/victornm/quizportal/internal/api"
	"github.com/victornm/quizportal/internal/credential"
	"github.com/victornm/quizportal/internal/event"
	"github.com/victornm/quizportal/internal/grading"
	"github.com/victornm/quizportal/internal/notify"
	"github.com/victornm/quizportal/internal/portal"
	"github.com/victornm/quizportal/internal/session"
	"github.com/victornm/quizportal/internal/telemetry"
)

type Config struct {
	HTTP struct {
		Port int32
	}

	Portal struct {
		BaseURL string
		Timeout time.Duration
	}

	Redis struct {
		Credential struct {
			Addrs  []string
			Pass   string
			Prefix string
			TTL    time.Duration
		}

		Pubsub struct {
			Addrs  []string
			Pass   string
			Prefix string
		}
	}

	Session struct {
		// DefaultTimeLimit in minutes.
		DefaultTimeLimit int
		Retention        time.Duration
	}

	RateLimit struct {
		MaxRequests int
		Window      time.Duration
	}
}

// DefaultConfig holds the values used when neither the file nor the environment sets them.
func DefaultConfig() Config {
	var c Config
	c.HTTP.Port = 8080
	c.Portal.BaseURL = "http://localhost:5000/api"
	c.Portal.Timeout = 10 * time.Second
	c.Redis.Credential.Prefix = "quizportal"
	c.Redis.Credential.TTL = 24 * time.Hour
	c.Redis.Pubsub.Prefix = "quizportal"
	c.Session.DefaultTimeLimit = 30
	c.Session.Retention = 30 * time.Minute
	c.RateLimit.MaxRequests = 20
	c.RateLimit.Window = time.Minute
	return c
}

type Server struct {
	c Config

	ctx    context.Context
	cancel context.CancelFunc

	eb      *event.Bus
	metrics *telemetry.Metrics
	portal  *portal.Client

	infra struct {
		redis struct {
			credential redis.UniversalClient
			pubsub     redis.UniversalClient
		}
	}

	service struct {
		credential *credential.Store
		session    *session.Service
		grading    *grading.Service
		notify     *notify.Publisher
	}

	http *http.Server
}

func Init(c Config) (*Server, error) {
	s := &Server{c: c}
	s.ctx, s.cancel = context.WithCancel(context.Background())

	s.eb = event.NewBus()
	s.metrics = telemetry.NewMetrics(nil)
	s.metrics.Subscribe(s.eb)

	if err := s.initInfra(); err != nil {
		s.cancel()
		return nil, fmt.Errorf("server: init infra: %w", err)
	}

	s.initService()
	s.initAPI()
	return s, nil
}

func (s *Server) initInfra() error {
	if err := s.initRedis(); err != nil {
		return fmt.Errorf("redis: %w", err)
	}

	s.portal = portal.New(portal.Config{
		BaseURL:  s.c.Portal.BaseURL,
		Timeout:  s.c.Portal.Timeout,
		Observer: s.metrics,
	})

	return nil
}

func (s *Server) initRedis() error {
	connect := func(addrs []string, pass string) (redis.UniversalClient, error) {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		r := redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs:    addrs,
			Password: pass,
		})

		if err := telemetry.MonitorRedis(r); err != nil {
			return nil, err
		}

		if err := r.Ping(ctx).Err(); err != nil {
			return nil, err
		}

		return r, nil
	}

	var err error
	s.infra.redis.credential, err = connect(s.c.Redis.Credential.Addrs, s.c.Redis.Credential.Pass)
	if err != nil {
		return fmt.Errorf("credential: %w", err)
	}

	s.infra.redis.pubsub, err = connect(s.c.Redis.Pubsub.Addrs, s.c.Redis.Pubsub.Pass)
	if err != nil {
		return fmt.Errorf("pubsub: %w", err)
	}

	return nil
}

func (s *Server) initService() {
	s.service.credential = credential.NewStore(credential.Config{
		Redis:  s.infra.redis.credential,
		Prefix: s.c.Redis.Credential.Prefix,
		TTL:    s.c.Redis.Credential.TTL,
	})

	s.service.session = session.NewService(session.Config{
		Portal:           s.portal,
		Credentials:      s.service.credential,
		EventBus:         s.eb,
		DefaultTimeLimit: s.c.Session.DefaultTimeLimit,
		Retention:        s.c.Session.Retention,
	})

	s.service.grading = grading.NewService(grading.Config{
		Portal: s.portal,
	})

	s.service.notify = notify.NewPublisher(notify.Config{
		EventBus: s.eb,
		Redis:    s.infra.redis.pubsub,
		Prefix:   s.c.Redis.Pubsub.Prefix,
	})
}

func (s *Server) initAPI() {
	e := gin.New()
	e.GET("/metrics", gin.WrapH(promhttp.Handler()))
	pprof.Register(e, "/debug/pprof")
	e.Use(gin.Recovery(), telemetry.RequestLogger(), s.metrics.Middleware())

	api.New(api.Config{
		Router:      e,
		Session:     s.service.session,
		Portal:      s.portal,
		Credentials: s.service.credential,
		Grading:     s.service.grading,
		Limiter:     telemetry.RateLimit(s.ctx, s.c.RateLimit.MaxRequests, s.c.RateLimit.Window),
	})

	s.http = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.c.HTTP.Port),
		Handler:           e,
		ReadHeaderTimeout: 60 * time.Second,
	}
}

func (s *Server) Start() {
	eg, ctx := errgroup.WithContext(s.ctx)

	eg.Go(func() error {
		slog.InfoContext(ctx, fmt.Sprintf("server: HTTP listening on port %d", s.c.HTTP.Port), "portal", s.c.Portal.BaseURL)
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	// A failed listener also stops the limiter cleanup.
	eg.Go(func() error {
		<-ctx.Done()
		s.cancel()
		return nil
	})

	if err := eg.Wait(); err != nil {
		slog.ErrorContext(ctx, "server: shutdown with error", "error", err)
	}
}

func (s *Server) Shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.http.Shutdown(ctx); err != nil {
		slog.ErrorContext(ctx, "server: shutdown HTTP failed", "error", err)
	}

	s.service.session.Stop()
	s.eb.Stop()
	s.cancel()

	for name, r := range map[string]redis.UniversalClient{
		"credential": s.infra.redis.credential,
		"pubsub":     s.infra.redis.pubsub,
	} {
		if err := r.Close(); err != nil {
			slog.ErrorContext(ctx, "server: close redis failed", "client", name, "error", err)
		}
	}

	slog.InfoContext(ctx, "server: shutdown completed")
}
