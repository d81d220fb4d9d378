package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/poiesic/docpipe/core"
	"github.com/poiesic/docpipe/pipeline"
	"github.com/poiesic/docpipe/search"
	"github.com/urfave/cli/v2"
)

func uploadCommand() *cli.Command {
	return &cli.Command{
		Name:      "upload",
		Usage:     "Store one or more files as uploads",
		ArgsUsage: "FILE...",
		Flags:     namespaceFlags(),
		Action:    uploadAction,
	}
}

func uploadAction(c *cli.Context) error {
	if c.NArg() == 0 {
		return errors.New("at least one file is required")
	}
	ns, err := namespace(c)
	if err != nil {
		return err
	}
	ws, err := openWorkspace(c)
	if err != nil {
		return err
	}
	defer ws.Close()

	for _, path := range c.Args().Slice() {
		entry, err := uploadFile(c.Context, ws.Upload, ns, path)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		fmt.Fprintf(c.App.Writer, "%s\t%s\t%d bytes\n", entry.ID, entry.OriginalName, entry.Size)
	}
	return nil
}

type uploadFunc func(ctx context.Context, ns core.Namespace, originalName string, r io.Reader) (*core.UploadEntry, error)

func uploadFile(ctx context.Context, upload uploadFunc, ns core.Namespace, path string) (*core.UploadEntry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return upload(ctx, ns, filepath.Base(path), f)
}

func markersCommand() *cli.Command {
	return &cli.Command{
		Name:   "markers",
		Usage:  "Derive marker artifacts from every upload in a project",
		Flags:  namespaceFlags(),
		Action: markersAction,
	}
}

func markersAction(c *cli.Context) error {
	ns, err := namespace(c)
	if err != nil {
		return err
	}
	ws, err := openWorkspace(c)
	if err != nil {
		return err
	}
	defer ws.Close()

	summary, err := ws.DeriveMarkers(c.Context, ns)
	if summary != nil {
		printMarkerSummary(c.App.Writer, summary)
	}
	return err
}

func printMarkerSummary(w io.Writer, s *pipeline.MarkerSummary) {
	fmt.Fprintf(w, "run %s\n", s.RunID)
	for _, item := range s.Items {
		switch {
		case item.Skipped:
			fmt.Fprintf(w, "%s\tskipped (unsupported file type)\n", item.Upload)
		case item.Err != nil:
			fmt.Fprintf(w, "%s\terror: %v\n", item.Upload, item.Err)
		default:
			fmt.Fprintf(w, "%s\t%s\t%d fields\n", item.Upload, item.MarkerID, item.Fields)
		}
	}
}

func embedCommand() *cli.Command {
	return &cli.Command{
		Name:  "embed",
		Usage: "Derive embedding artifacts from every marker artifact in a project",
		Flags: namespaceFlags(&cli.BoolFlag{
			Name:  "progress",
			Usage: "Report progress on stderr",
		}),
		Action: embedAction,
	}
}

func embedAction(c *cli.Context) error {
	ns, err := namespace(c)
	if err != nil {
		return err
	}
	var extra []pipeline.Option
	if c.Bool("progress") {
		extra = append(extra, pipeline.WithProgress(c.App.ErrWriter))
	}
	ws, err := openWorkspace(c, extra...)
	if err != nil {
		return err
	}
	defer ws.Close()

	summary, err := ws.DeriveEmbeddings(c.Context, ns)
	if summary != nil {
		printEmbeddingSummary(c.App.Writer, summary)
	}
	return err
}

func printEmbeddingSummary(w io.Writer, s *pipeline.EmbeddingSummary) {
	fmt.Fprintf(w, "run %s\n", s.RunID)
	for _, item := range s.Items {
		if item.Err != nil {
			fmt.Fprintf(w, "%s\terror: %v\n", item.MarkerID, item.Err)
			continue
		}
		fmt.Fprintf(w, "%s\t%s\t%d embedded\t%d skipped", item.MarkerID, item.EmbeddingID, item.Embedded, item.Skipped)
		for _, name := range slices.Sorted(maps.Keys(item.Strategies)) {
			fmt.Fprintf(w, "\t%s=%d", name, item.Strategies[name])
		}
		fmt.Fprintln(w)
	}
}

func deleteCommand() *cli.Command {
	return &cli.Command{
		Name:      "delete",
		Usage:     "Delete an artifact and everything derived from it",
		ArgsUsage: "KIND ID",
		Flags:     namespaceFlags(),
		Action:    deleteAction,
	}
}

func deleteAction(c *cli.Context) error {
	kind, id, err := kindAndID(c)
	if err != nil {
		return err
	}
	ns, err := namespace(c)
	if err != nil {
		return err
	}
	ws, err := openWorkspace(c)
	if err != nil {
		return err
	}
	defer ws.Close()

	report, err := ws.Delete(c.Context, kind, ns, id)
	if report != nil {
		for _, step := range report.Steps {
			if step.Err != nil {
				fmt.Fprintf(c.App.Writer, "%s\t%s\t%s: %v\n", step.Outcome, step.Artifact, step.ID, step.Err)
				continue
			}
			fmt.Fprintf(c.App.Writer, "%s\t%s\t%s\n", step.Outcome, step.Artifact, step.ID)
		}
	}
	return err
}

func listCommand() *cli.Command {
	return &cli.Command{
		Name:  "list",
		Usage: "List the artifacts of a project",
		Flags: namespaceFlags(&cli.StringFlag{
			Name:  "kind",
			Usage: "Only list one kind (upload, marker, embed)",
		}),
		Action: listAction,
	}
}

func listAction(c *cli.Context) error {
	ns, err := namespace(c)
	if err != nil {
		return err
	}
	ws, err := openWorkspace(c)
	if err != nil {
		return err
	}
	defer ws.Close()

	if c.IsSet("kind") {
		kind, err := core.ParseArtifactKind(c.String("kind"))
		if err != nil {
			return err
		}
		names, err := ws.ListKind(c.Context, ns, kind)
		if err != nil {
			return err
		}
		for _, name := range names {
			fmt.Fprintln(c.App.Writer, name)
		}
		return nil
	}

	listing, err := ws.List(c.Context, ns)
	if err != nil {
		return err
	}
	for _, id := range listing.Uploads {
		fmt.Fprintf(c.App.Writer, "%s\t%s\n", core.KindUpload, id)
	}
	for _, name := range listing.Markers {
		fmt.Fprintf(c.App.Writer, "%s\t%s\n", core.KindMarker, name)
	}
	for _, name := range listing.Embeddings {
		fmt.Fprintf(c.App.Writer, "%s\t%s\n", core.KindEmbedding, name)
	}
	return nil
}

func viewCommand() *cli.Command {
	return &cli.Command{
		Name:      "view",
		Usage:     "Print the canonical text of an upload or the contents of a marker or embedding artifact",
		ArgsUsage: "KIND ID",
		Flags:     namespaceFlags(),
		Action:    viewAction,
	}
}

func viewAction(c *cli.Context) error {
	kind, id, err := kindAndID(c)
	if err != nil {
		return err
	}
	ns, err := namespace(c)
	if err != nil {
		return err
	}
	ws, err := openWorkspace(c)
	if err != nil {
		return err
	}
	defer ws.Close()

	switch kind {
	case core.KindUpload:
		text, err := ws.ViewUpload(c.Context, ns, core.UploadID(id))
		if err != nil {
			return err
		}
		fmt.Fprintln(c.App.Writer, text)
		return nil
	case core.KindMarker:
		markers, err := ws.ViewMarkers(c.Context, ns, id)
		if err != nil {
			return err
		}
		return writeJSON(c.App.Writer, markers)
	default:
		records, err := ws.ViewEmbeddings(c.Context, ns, id)
		if err != nil {
			return err
		}
		return writeJSON(c.App.Writer, records)
	}
}

func projectsCommand() *cli.Command {
	return &cli.Command{
		Name:  "projects",
		Usage: "List users, or the projects of one user",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "user",
				Aliases: []string{"u"},
				Usage:   "List this user's projects instead of all users",
			},
		},
		Action: projectsAction,
	}
}

func projectsAction(c *cli.Context) error {
	ws, err := openWorkspace(c)
	if err != nil {
		return err
	}
	defer ws.Close()

	if user := c.String("user"); user != "" {
		projects, err := ws.Registry().ListProjects(c.Context, user)
		if err != nil {
			return err
		}
		for _, p := range projects {
			fmt.Fprintf(c.App.Writer, "%s\t%s\n", p.Name, p.CreatedAt.Format(time.RFC3339))
		}
		return nil
	}

	users, err := ws.Registry().ListUsers(c.Context)
	if err != nil {
		return err
	}
	for _, u := range users {
		fmt.Fprintf(c.App.Writer, "%s\t%s\n", u.Name, u.CreatedAt.Format(time.RFC3339))
	}
	return nil
}

func importLegacyCommand() *cli.Command {
	return &cli.Command{
		Name:  "import-legacy",
		Usage: "Import a JSON user/project registry and upload index",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "db-json",
				Usage: "Path to the JSON user/project registry",
			},
			&cli.StringFlag{
				Name:  "uploads-json",
				Usage: "Path to the JSON upload index",
			},
		},
		Action: importLegacyAction,
	}
}

func importLegacyAction(c *cli.Context) error {
	if c.String("db-json") == "" && c.String("uploads-json") == "" {
		return errors.New("at least one of --db-json or --uploads-json is required")
	}
	ws, err := openWorkspace(c)
	if err != nil {
		return err
	}
	defer ws.Close()

	stats, err := ws.ImportLegacy(c.Context, c.String("db-json"), c.String("uploads-json"))
	if err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "users: %d\tprojects: %d\tuploads: %d\tskipped: %d\n",
		stats.Users, stats.Projects, stats.Uploads, stats.Skipped)
	return nil
}

func warmupCommand() *cli.Command {
	return &cli.Command{
		Name:   "warmup",
		Usage:  "Load the local embedding model and report whether it is ready",
		Action: warmupAction,
	}
}

func warmupAction(c *cli.Context) error {
	ws, err := openWorkspace(c)
	if err != nil {
		return err
	}
	defer ws.Close()

	if ws.Warmup(c.Context) {
		fmt.Fprintln(c.App.Writer, "ready")
		return nil
	}
	fmt.Fprintln(c.App.Writer, "unavailable; embeddings will use the next strategy in the chain")
	return nil
}

func kindAndID(c *cli.Context) (core.ArtifactKind, string, error) {
	if c.NArg() != 2 {
		return "", "", fmt.Errorf("expected KIND and ID, got %d arguments", c.NArg())
	}
	kind, err := core.ParseArtifactKind(c.Args().Get(0))
	if err != nil {
		return "", "", err
	}
	return kind, c.Args().Get(1), nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func searchCommand() *cli.Command {
	return &cli.Command{
		Name:      "search",
		Usage:     "Rank the embedded records of a project against a query",
		ArgsUsage: "QUERY...",
		Flags: namespaceFlags(
			&cli.IntFlag{
				Name:    "limit",
				Aliases: []string{"n"},
				Usage:   "Maximum number of hits",
				Value:   10,
			},
			&cli.Float64Flag{
				Name:  "threshold",
				Usage: "Minimum cosine similarity of a hit",
				Value: float64(search.DefaultThreshold),
			},
			&cli.BoolFlag{
				Name:  "trace",
				Usage: "Report search stages on stderr",
			},
		),
		Action: searchAction,
	}
}

func searchAction(c *cli.Context) error {
	if c.NArg() == 0 {
		return errors.New("a query is required")
	}
	ns, err := namespace(c)
	if err != nil {
		return err
	}
	ws, err := openWorkspace(c)
	if err != nil {
		return err
	}
	defer ws.Close()

	var monitor search.Monitor
	if c.Bool("trace") {
		monitor = &traceMonitor{w: c.App.ErrWriter}
	}
	query := strings.Join(c.Args().Slice(), " ")
	hits, err := ws.SearchWithMonitor(c.Context, ns, query, c.Int("limit"), monitor,
		search.WithThreshold(float32(c.Float64("threshold"))))
	if err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "Found %d hits\n", len(hits))
	for i, hit := range hits {
		fmt.Fprintf(c.App.Writer, "%d: '%s' (%s %s)[%0.3f]\n", i, hit.Text, hit.EmbeddingID, hit.Field, hit.Score)
	}
	return nil
}

// traceMonitor prints each search stage.
type traceMonitor struct {
	w io.Writer
}

func (m *traceMonitor) Start(query string) {
	fmt.Fprintf(m.w, "query: %q\n", query)
}

func (m *traceMonitor) AfterQueryEmbedding(strategy string) {
	fmt.Fprintf(m.w, "embedded with %s\n", strategy)
}

func (m *traceMonitor) AfterScan(artifacts, records, mismatched int) {
	fmt.Fprintf(m.w, "scanned %d records in %d artifacts (%d of another dimension)\n", records, artifacts, mismatched)
}

func (m *traceMonitor) Hit(hit *search.Hit, verbatim bool) {
	if verbatim {
		fmt.Fprintf(m.w, "verbatim hit %s %s\n", hit.EmbeddingID, hit.Field)
	}
}

func (m *traceMonitor) Finish(hits []*search.Hit) {
	fmt.Fprintf(m.w, "returning %d hits\n", len(hits))
}
