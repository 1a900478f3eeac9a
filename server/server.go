/*
Copyright © 2026 Benny Powers <web@bennypowers.com>

This program is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

This program is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with this program. If not, see <http://www.gnu.org/licenses/>.
*/

// Package server is the development server: it serves the in-memory
// resources of a compiler, watches the files behind them and pushes hot
// updates to browsers over a websocket.
package server

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"net"
	"net/http"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/klauspost/compress/gzhttp"

	"github.com/farm-fe/farm-sub001/compiler"
	"github.com/farm-fe/farm-sub001/core"
	"github.com/farm-fe/farm-sub001/internal/set"
	"github.com/farm-fe/farm-sub001/update"
)

// MetricsPath is where the Prometheus handler is mounted.
const MetricsPath = "/__farm/metrics"

// Options configure a Server.
type Options struct {
	// Addr to listen on. Defaults to the HMR host and port so that the
	// injected client reaches the same server.
	Addr string
	// Debounce is how long the watcher waits for a burst of file events to
	// settle.
	Debounce time.Duration
	// Ignore lists globs the watcher never reports; nil means DefaultIgnore.
	Ignore []string
}

// Server serves one compiler.
type Server struct {
	compiler *compiler.Compiler
	logger   core.Logger
	opts     Options

	hub     *Hub
	metrics *Metrics

	mu      sync.Mutex
	watcher *Watcher
	watched set.Set[string]
	broken  bool
}

// New creates a server over c and hooks the metrics into its plugin
// driver.
func New(c *compiler.Compiler, opts Options) *Server {
	cc := c.Context()
	if opts.Addr == "" {
		opts.Addr = net.JoinHostPort(cc.Config.HMR.Host, fmt.Sprint(cc.Config.HMR.Port))
	}
	if opts.Debounce == 0 {
		opts.Debounce = 50 * time.Millisecond
	}
	m := NewMetrics()
	cc.Driver().Observe = m.ObserveHook
	return &Server{
		compiler: c,
		logger:   cc.Logger,
		opts:     opts,
		hub:      NewHub(cc.Logger, m),
		metrics:  m,
		watched:  set.New[string](),
	}
}

// Hub returns the HMR hub.
func (s *Server) Hub() *Hub { return s.hub }

// Metrics returns the server metrics.
func (s *Server) Metrics() *Metrics { return s.metrics }

// Handler routes the HMR socket, the metrics endpoint and the resources.
func (s *Server) Handler() http.Handler {
	cfg := s.compiler.Context().Config
	mux := http.NewServeMux()
	if cfg.HMR.Enabled {
		mux.Handle(cfg.HMR.Path, s.hub)
	}
	mux.Handle(MetricsPath, s.metrics.Handler())
	mux.Handle("/", gzhttp.GzipHandler(http.HandlerFunc(s.serveResource)))
	return mux
}

// serveResource answers from the in-memory resource map. Paths without an
// extension that match nothing fall back to index.html.
func (s *Server) serveResource(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
		return
	}
	public := s.compiler.Context().Config.Output.PublicPath
	name, ok := strings.CutPrefix(r.URL.Path, public)
	if !ok {
		name = strings.TrimPrefix(r.URL.Path, "/")
	}
	if name == "" {
		name = "index.html"
	}
	res, found := s.compiler.Resource(name)
	if !found && path.Ext(name) == "" {
		res, found = s.compiler.Resource("index.html")
		name = "index.html"
	}
	if !found {
		http.NotFound(w, r)
		return
	}
	if ct := mime.TypeByExtension(path.Ext(name)); ct != "" {
		w.Header().Set("Content-Type", ct)
	}
	w.Header().Set("Cache-Control", "no-cache")
	if r.Method == http.MethodHead {
		return
	}
	_, _ = w.Write(res.Bytes)
}

// Compile runs a full compilation and records it.
func (s *Server) Compile(ctx context.Context) error {
	start := time.Now()
	err := s.compiler.Compile(ctx)
	s.metrics.RecordCompile(time.Since(start), err)
	s.recordSize()
	s.mu.Lock()
	s.broken = err != nil
	s.mu.Unlock()
	return err
}

func (s *Server) recordSize() {
	s.metrics.SetGraphSize(s.compiler.Context().ModuleGraph().Len(), len(s.compiler.Resources()))
}

// HandleChanges applies a batch of file changes and broadcasts the
// outcome. Failures go to the browsers as error messages; the server keeps
// running so a later fix can recover. After a failed full compilation the
// next batch compiles from scratch and asks browsers to reload.
func (s *Server) HandleChanges(ctx context.Context, paths []core.UpdatePath) *update.Result {
	s.mu.Lock()
	broken := s.broken
	s.mu.Unlock()
	if broken {
		if err := s.Compile(ctx); err != nil {
			s.logger.Warning("compilation failed: %v", err)
			s.hub.Broadcast(Message{Type: MessageError, Message: err.Error()})
			return nil
		}
		if err := s.syncWatcher(); err != nil {
			s.logger.Warning("%v", err)
		}
		s.hub.Broadcast(Message{Type: MessageReload})
		return nil
	}

	start := time.Now()
	res, err := s.compiler.Update(ctx, paths, compiler.UpdateOptions{GenerateResources: true, Sync: true})
	s.metrics.RecordUpdate(time.Since(start), err)
	if err != nil {
		s.logger.Warning("update failed: %v", err)
		s.hub.Broadcast(Message{Type: MessageError, Message: err.Error()})
		return nil
	}
	s.recordSize()
	if err := s.syncWatcher(); err != nil {
		s.logger.Warning("%v", err)
	}
	if len(res.Added)+len(res.Updated)+len(res.Removed) == 0 {
		return res
	}
	s.hub.Broadcast(Message{Type: MessageUpdate, Result: res})
	return res
}

// syncWatcher points the watcher at the files the compilation currently
// depends on.
func (s *Server) syncWatcher() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.watcher == nil {
		return nil
	}
	now := set.New(s.compiler.WatchModules()...)
	var added, removed []string
	for _, f := range set.Sorted(now) {
		if !s.watched.Has(f) {
			added = append(added, f)
		}
	}
	for _, f := range set.Sorted(s.watched) {
		if !now.Has(f) {
			removed = append(removed, f)
		}
	}
	s.watcher.Remove(removed...)
	s.watched = now
	return s.watcher.Add(added...)
}

// Run compiles, starts the watcher and serves until ctx is done. A failed
// initial compilation is logged and retried on the next file change.
func (s *Server) Run(ctx context.Context) error {
	if err := s.Compile(ctx); err != nil {
		s.logger.Warning("compilation failed: %v", err)
	}

	w, err := NewWatcher(s.opts.Debounce, s.opts.Ignore, s.logger)
	if err != nil {
		return err
	}
	defer w.Close()
	s.mu.Lock()
	s.watcher = w
	s.mu.Unlock()
	if err := s.syncWatcher(); err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              s.opts.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	ln, err := net.Listen("tcp", s.opts.Addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.opts.Addr, err)
	}
	s.logger.Info("dev server listening on http://%s", ln.Addr())

	errc := make(chan error, 2)
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
	}()
	go func() {
		errc <- w.Run(ctx, func(ctx context.Context, batch []core.UpdatePath) {
			s.HandleChanges(ctx, batch)
		})
	}()

	select {
	case <-ctx.Done():
	case err = <-errc:
	}
	s.hub.Close()
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if serr := srv.Shutdown(shutdownCtx); serr != nil && err == nil {
		err = serr
	}
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
