// Package preview serves the board over HTTP for development without LED
// hardware: the live frame as PNG, a small HTML page and a JSON status.
package preview

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"

	"tarediiran-industries.com/transit-board/internal/common"
	"tarediiran-industries.com/transit-board/internal/feed"
	"tarediiran-industries.com/transit-board/internal/render"
)

const shutdownTimeout = 10 * time.Second

type CacheReader interface {
	Load() (feed.Entry, bool)
}

type Settings struct {
	StopID             string
	StopName           string
	RouteID            string
	Layout             render.Layout
	StaleAfter         time.Duration
	PageRefreshSeconds int
}

type PreviewServer struct {
	settings Settings
	cache    CacheReader
	frames   *render.PreviewSink
	renderer *PageRenderer
	server   *http.Server
	router   chi.Router
	log      *logrus.Entry

	Now func() time.Time
}

func NewPreviewServer(listenAddr string, settings Settings, cache CacheReader, frames *render.PreviewSink, log *logrus.Logger) (*PreviewServer, error) {
	renderer, err := NewPageRenderer()
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = common.DiscardLogger()
	}

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Recoverer)

	server := &PreviewServer{
		settings: settings,
		cache:    cache,
		frames:   frames,
		renderer: renderer,
		router:   router,
		server:   &http.Server{Addr: listenAddr, Handler: router},
		log:      log.WithField("component", "preview"),
		Now:      time.Now,
	}

	router.Get("/", server.handleBoardPage)
	router.Get("/status", server.handleStatus)
	router.Get("/frame.png", server.handleFrame)
	router.Get("/healthz", server.handleHealth)

	return server, nil
}

func (server *PreviewServer) Handler() http.Handler {
	return server.router
}

// Serve blocks until ctx is done and then shuts the listener down.
func (server *PreviewServer) Serve(ctx context.Context) error {
	server.log.WithField("addr", server.server.Addr).Info("Preview server listening")

	errs := make(chan error, 1)
	go func() {
		err := server.server.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errs <- err
		}
		close(errs)
	}()

	select {
	case err := <-errs:
		return err
	case <-ctx.Done():
	}

	server.log.Info("Shutting down preview server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return server.server.Shutdown(shutdownCtx)
}

func (server *PreviewServer) status() StatusVM {
	entry, ok := server.cache.Load()
	var showing *render.Frame
	if frame, has := server.frames.Latest(); has {
		showing = &frame
	}
	return BuildStatusVM(server.settings, entry, ok, showing, server.Now())
}

func (server *PreviewServer) handleBoardPage(writer http.ResponseWriter, request *http.Request) {
	viewmodel := BuildBoardPageVM(server.settings, server.status(), server.Now())

	var buf bytes.Buffer
	if err := server.renderer.Render(&buf, "board.html", viewmodel); err != nil {
		http.Error(writer, err.Error(), http.StatusInternalServerError)
		return
	}
	writer.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = buf.WriteTo(writer)
}

func (server *PreviewServer) handleStatus(writer http.ResponseWriter, request *http.Request) {
	writer.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(writer).Encode(server.status()); err != nil {
		server.log.WithError(err).Warn("Failed to write status")
	}
}

func (server *PreviewServer) handleFrame(writer http.ResponseWriter, request *http.Request) {
	var buf bytes.Buffer
	if err := server.frames.EncodePNG(&buf); err != nil {
		http.Error(writer, "no frame rendered yet", http.StatusServiceUnavailable)
		return
	}
	writer.Header().Set("Content-Type", "image/png")
	writer.Header().Set("Cache-Control", "no-store")
	_, _ = buf.WriteTo(writer)
}

func (server *PreviewServer) handleHealth(writer http.ResponseWriter, request *http.Request) {
	if _, ok := server.cache.Load(); !ok {
		http.Error(writer, "no arrivals fetched yet", http.StatusServiceUnavailable)
		return
	}
	_, _ = writer.Write([]byte("ok\n"))
}
