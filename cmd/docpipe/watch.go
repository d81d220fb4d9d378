package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/poiesic/docpipe"
	"github.com/poiesic/docpipe/core"
	"github.com/poiesic/docpipe/metrics"
	"github.com/poiesic/docpipe/pipeline"
	"github.com/poiesic/docpipe/storage"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"
)

func watchCommand() *cli.Command {
	return &cli.Command{
		Name:  "watch",
		Usage: "Upload, mark and embed every file dropped into an inbox directory",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "user",
				Aliases: []string{"u"},
				Usage:   "User owning the artifacts",
				EnvVars: []string{"DOCPIPE_USER"},
			},
			&cli.StringFlag{
				Name:    "project",
				Aliases: []string{"p"},
				Usage:   "Project owning the artifacts",
				EnvVars: []string{"DOCPIPE_PROJECT"},
			},
			&cli.StringFlag{
				Name:    "inbox",
				Aliases: []string{"i"},
				Usage:   "Directory to watch",
			},
			&cli.DurationFlag{
				Name:  "settle",
				Usage: "Quiet period after the last write before a file is processed",
				Value: 500 * time.Millisecond,
			},
			&cli.BoolFlag{
				Name:  "keep",
				Usage: "Leave processed files in the inbox",
			},
			&cli.StringFlag{
				Name:    "metrics-addr",
				Usage:   "Serve Prometheus metrics on this address (e.g. :9090)",
				EnvVars: []string{"DOCPIPE_METRICS_ADDR"},
			},
		},
		Action: watchAction,
	}
}

func watchAction(c *cli.Context) error {
	file := fileConfig(c)
	user, project, inbox := c.String("user"), c.String("project"), c.String("inbox")
	if user == "" {
		user = file.Watch.User
	}
	if project == "" {
		project = file.Watch.Project
	}
	if inbox == "" {
		inbox = file.Watch.Inbox
	}
	if inbox == "" {
		return errors.New("an inbox directory is required (--inbox or watch.inbox)")
	}
	ns, err := core.NewNamespace(user, project)
	if err != nil {
		return err
	}
	metricsAddr := c.String("metrics-addr")
	if metricsAddr == "" {
		metricsAddr = file.MetricsAddr
	}

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	var extra []pipeline.Option
	reg := prometheus.NewRegistry()
	if metricsAddr != "" {
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		m, err := metrics.New(reg)
		if err != nil {
			return err
		}
		extra = append(extra, pipeline.WithMetrics(m))
	}

	ws, err := openWorkspace(c, extra...)
	if err != nil {
		return err
	}
	defer ws.Close()

	w := newInboxWatcher(inbox, c.Duration("settle"), c.Bool("keep"), ingestInto(ws, ns, c.App.Writer))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return w.Run(gctx)
	})
	if metricsAddr != "" {
		g.Go(func() error {
			return serveMetrics(gctx, metricsAddr, reg)
		})
	}
	slog.Info("watching inbox", "inbox", inbox, "namespace", ns.String(), "metrics", metricsAddr)
	return g.Wait()
}

// ingestInto uploads a file into ns and derives its marker and embedding artifacts.
func ingestInto(ws *docpipe.Workspace, ns core.Namespace, out io.Writer) func(ctx context.Context, path string) error {
	return func(ctx context.Context, path string) error {
		prior, err := previousUpload(ctx, ws.Registry(), ns, path)
		if err != nil {
			return err
		}
		if prior != nil {
			fmt.Fprintf(out, "%s\t%s\talready uploaded\n", filepath.Base(path), prior.ID)
			return nil
		}
		entry, err := uploadFile(ctx, ws.Upload, ns, path)
		if err != nil {
			return err
		}
		marker, embedding, err := ws.Process(ctx, ns, entry.ID)
		if err != nil {
			return fmt.Errorf("%s: %w", entry.ID, err)
		}
		switch {
		case marker.Skipped || embedding == nil:
			fmt.Fprintf(out, "%s\t%s\tstored (unsupported file type)\n", filepath.Base(path), entry.ID)
		default:
			fmt.Fprintf(out, "%s\t%s\t%d fields\t%d embedded\n",
				filepath.Base(path), entry.ID, marker.Fields, embedding.Embedded)
		}
		return nil
	}
}

// previousUpload returns the entry in ns whose checksum matches the file, or nil.
func previousUpload(ctx context.Context, registry storage.Registry, ns core.Namespace, path string) (*core.UploadEntry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	hash := core.NewChecksum()
	if _, err := io.Copy(hash, f); err != nil {
		return nil, err
	}
	sum := fmt.Sprintf("%x", hash.Sum(nil))

	entries, err := registry.ListUploads(ctx, ns)
	if err != nil {
		return nil, err
	}
	for _, e := range entries {
		if e.Checksum == sum {
			return e, nil
		}
	}
	return nil, nil
}

func serveMetrics(ctx context.Context, addr string, reg *prometheus.Registry) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

// inboxWatcher hands each file in a directory to ingest once writes to it
// have settled.
type inboxWatcher struct {
	inbox  string
	settle time.Duration
	keep   bool
	ingest func(ctx context.Context, path string) error
	logger *slog.Logger

	mu     sync.Mutex
	timers map[string]*time.Timer
	ready  chan string
}

func newInboxWatcher(inbox string, settle time.Duration, keep bool, ingest func(ctx context.Context, path string) error) *inboxWatcher {
	return &inboxWatcher{
		inbox:  inbox,
		settle: settle,
		keep:   keep,
		ingest: ingest,
		logger: slog.Default().With("component", "inbox-watcher"),
		timers: make(map[string]*time.Timer),
		ready:  make(chan string, 64),
	}
}

// Run watches until ctx is done. Files already in the inbox are processed first.
func (w *inboxWatcher) Run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()
	if err := watcher.Add(w.inbox); err != nil {
		return fmt.Errorf("watch %s: %w", w.inbox, err)
	}

	entries, err := os.ReadDir(w.inbox)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if e.Type().IsRegular() && !hidden(e.Name()) {
			w.schedule(ctx, filepath.Join(w.inbox, e.Name()))
		}
	}

	workCtx, cancel := context.WithCancel(ctx)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		w.work(workCtx)
	}()
	defer wg.Wait()
	defer cancel()
	defer w.stopTimers()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if w.eligible(event) {
				w.schedule(ctx, event.Name)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watcher error", "error", err)
		}
	}
}

// eligible reports whether the event names a visible regular file that was
// created or written.
func (w *inboxWatcher) eligible(event fsnotify.Event) bool {
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
		return false
	}
	if hidden(filepath.Base(event.Name)) {
		return false
	}
	info, err := os.Stat(event.Name)
	return err == nil && info.Mode().IsRegular()
}

// schedule (re)starts the settle timer of path.
func (w *inboxWatcher) schedule(ctx context.Context, path string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if t, ok := w.timers[path]; ok {
		t.Reset(w.settle)
		return
	}
	w.timers[path] = time.AfterFunc(w.settle, func() {
		w.mu.Lock()
		delete(w.timers, path)
		w.mu.Unlock()
		select {
		case w.ready <- path:
		case <-ctx.Done():
		}
	})
}

func (w *inboxWatcher) stopTimers() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for path, t := range w.timers {
		t.Stop()
		delete(w.timers, path)
	}
}

func (w *inboxWatcher) work(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case path := <-w.ready:
			w.process(ctx, path)
		}
	}
}

func (w *inboxWatcher) process(ctx context.Context, path string) {
	if _, err := os.Stat(path); err != nil {
		w.logger.Debug("file vanished before processing", "path", path)
		return
	}
	if err := w.ingest(ctx, path); err != nil {
		w.logger.Error("failed to ingest file", "path", path, "error", err)
		return
	}
	if w.keep {
		return
	}
	if err := os.Remove(path); err != nil {
		w.logger.Warn("failed to remove ingested file", "path", path, "error", err)
	}
}

func hidden(name string) bool {
	return strings.HasPrefix(name, ".")
}
