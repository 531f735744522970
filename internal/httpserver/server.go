// Package httpserver is the browser UI: fiber handlers that read the caller's
// session, run one event against it and render the result list.
package httpserver

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/rs/zerolog"

	"imgtranslate/internal/logger"
	"imgtranslate/internal/pipeline"
	"imgtranslate/internal/session"
	"imgtranslate/internal/speech"
	"imgtranslate/internal/translate"
)

// Deps are the shared, read-only components the handlers call.
type Deps struct {
	Pipeline    *pipeline.Pipeline
	Translator  *translate.Translator
	Synthesizer *speech.Synthesizer
	Sessions    *session.Store
}

// Options configure the HTTP listener.
type Options struct {
	ListenAddr      string
	BodyLimit       int
	ReadTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// Server wraps the Fiber app.
type Server struct {
	app   *fiber.App
	opts  Options
	deps  Deps
	pages *renderer
	log   zerolog.Logger
}

// New constructs a server with routes and middleware registered.
func New(deps Deps, opts Options) (*Server, error) {
	if deps.Pipeline == nil || deps.Translator == nil || deps.Synthesizer == nil {
		return nil, fmt.Errorf("pipeline, translator and synthesizer are required")
	}
	if deps.Sessions == nil {
		deps.Sessions = session.NewStore(0)
	}

	pages, err := newRenderer()
	if err != nil {
		return nil, fmt.Errorf("load templates: %w", err)
	}

	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		ServerHeader:          "imgtranslate",
		BodyLimit:             opts.BodyLimit,
		ReadTimeout:           opts.ReadTimeout,
		ErrorHandler:          errorHandler,
	})

	app.Use(requestid.New())
	app.Use(accessLog())
	app.Use(recover.New())

	s := &Server{
		app:   app,
		opts:  opts,
		deps:  deps,
		pages: pages,
		log:   logger.WithComponent("httpserver"),
	}

	mountStatic(app)
	s.registerRoutes()
	return s, nil
}

func (s *Server) registerRoutes() {
	s.app.Get("/healthz", s.healthz)
	s.app.Get("/languages", s.languages)

	s.app.Get("/", s.withSession, s.index)
	s.app.Post("/language", s.withSession, s.setLanguage)
	s.app.Post("/upload", s.withSession, s.upload)
	s.app.Post("/reset", s.withSession, s.reset)
	s.app.Post("/retranslate", s.withSession, s.retranslate)
	s.app.Get("/progress", s.withSession, s.progress)
	s.app.Get("/results/:idx/image", s.withSession, s.resultImage)
	s.app.Get("/results/:idx/download", s.withSession, s.resultDownload)
	s.app.Get("/results/:idx/audio", s.withSession, s.resultAudio)
}

// Listen blocks until context cancellation or a fatal listen error occurs.
func (s *Server) Listen(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", s.opts.ListenAddr).Msg("Listening")
		errCh <- s.app.Listen(s.opts.ListenAddr)
	}()

	select {
	case <-ctx.Done():
		timeout := s.opts.ShutdownTimeout
		if timeout <= 0 {
			timeout = 5 * time.Second
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		err := s.app.ShutdownWithContext(shutdownCtx)
		if err == nil {
			err = <-errCh
		}
		return err
	case err := <-errCh:
		return err
	}
}

func errorHandler(c *fiber.Ctx, err error) error {
	status := fiber.StatusInternalServerError
	var fe *fiber.Error
	if errors.As(err, &fe) {
		status = fe.Code
		return writeError(c, status, fe.Message)
	}
	log := logger.WithComponent("httpserver")
	log.Error().Err(err).Str("path", c.Path()).Msg("Unhandled error")
	return writeError(c, status, "")
}
