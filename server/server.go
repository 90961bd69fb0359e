// Package server exposes extraction and upload filing over HTTP.
package server

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/Jacob-Makopo/FileWhatwhat/extract"
	"github.com/Jacob-Makopo/FileWhatwhat/upload"
)

type (
	Options struct {
		Address        string
		MaxUploadSize  int64
		Debug          bool
		DisableReqLogs bool
		Uploads        *upload.Service
		Extractor      *extract.Extractor
		Logger         *slog.Logger
	}

	Server interface {
		http.Handler
		Start() error
		Stop(context.Context) error
	}

	server struct {
		opts *Options
		app  *echo.Echo
	}
)

var _ Server = (*server)(nil)

func New(opts *Options) Server {
	if opts.Extractor == nil {
		opts.Extractor = extract.New(opts.Logger)
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	s := &server{
		opts: opts,
		app:  echo.New(),
	}
	s.setup()
	return s
}

func (s *server) setup() {
	s.app.HideBanner = true
	s.app.Pre(middleware.RemoveTrailingSlash())
	if !s.opts.DisableReqLogs {
		s.app.Use(middleware.Logger())
	}
	if !s.opts.Debug {
		s.app.Use(middleware.Recover())
	}
	if s.opts.MaxUploadSize > 0 {
		// Room for several files plus form overhead.
		s.app.Use(middleware.BodyLimit(formatBytes(s.opts.MaxUploadSize * 8)))
	}

	s.app.Validator = newValidator()
	s.app.HTTPErrorHandler = newHTTPErrorHandler(s.opts.Logger)
	s.app.Debug = s.opts.Debug

	s.app.GET("/health", health)

	api := s.app.Group("/api")
	registerExtractAPI(api, s.opts)
	registerUploadAPI(api, s.opts)
}

func (s *server) Start() error {
	s.opts.Logger.Info("http server listening", "address", s.opts.Address)
	err := s.app.Start(s.opts.Address)
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

func (s *server) Stop(ctx context.Context) error {
	return s.app.Shutdown(ctx)
}

func (s *server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.app.ServeHTTP(w, r)
}

func health(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, echo.Map{"status": "ok"})
}
