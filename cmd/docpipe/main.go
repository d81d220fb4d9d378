// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"strings"

	"github.com/poiesic/docpipe"
	"github.com/poiesic/docpipe/ai"
	"github.com/poiesic/docpipe/config"
	"github.com/poiesic/docpipe/core"
	"github.com/poiesic/docpipe/pipeline"
	"github.com/urfave/cli/v2"
)

const configMetadataKey = "config"

func main() {
	if err := config.LoadEnv(".env"); err != nil {
		log.Printf("warning: %v", err)
	}
	if err := newApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "docpipe",
		Usage: "Upload documents, derive markers and embeddings, and manage their lifecycle",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "info",
				EnvVars: []string{"DOCPIPE_LOG_LEVEL"},
			},
			&cli.StringFlag{
				Name:    "log-format",
				Usage:   "Set log output format (text, json)",
				Value:   "text",
				EnvVars: []string{"DOCPIPE_LOG_FORMAT"},
			},
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to a YAML configuration file",
				EnvVars: []string{"DOCPIPE_CONFIG"},
			},
			&cli.StringFlag{
				Name:    "root",
				Aliases: []string{"r"},
				Usage:   "Workspace directory holding uploads, outputs, markers, embeds and the registry",
				Value:   "data",
				EnvVars: []string{"DOCPIPE_ROOT"},
			},
			&cli.StringFlag{
				Name:    "local-host",
				Usage:   "Local embedding server URL",
				Value:   ai.DefaultConfig().LocalHost,
				EnvVars: []string{"OLLAMA_HOST"},
			},
			&cli.StringFlag{
				Name:  "local-model",
				Usage: "Local embedding model",
				Value: ai.DefaultConfig().LocalModel,
			},
			&cli.BoolFlag{
				Name:  "no-local",
				Usage: "Skip the local embedding model",
			},
			&cli.StringFlag{
				Name:    "remote-host",
				Usage:   "OpenAI-compatible embedding API URL",
				Value:   ai.DefaultConfig().RemoteHost,
				EnvVars: []string{"OPENAI_BASE_URL"},
			},
			&cli.StringFlag{
				Name:    "remote-model",
				Usage:   "Remote embedding model",
				Value:   ai.DefaultConfig().RemoteModel,
				EnvVars: []string{"OPENAI_EMBEDDING_MODEL"},
			},
			&cli.StringFlag{
				Name:    "api-key",
				Usage:   "API key for the remote embedding API; the remote strategy is skipped without one",
				EnvVars: []string{"OPENAI_API_KEY"},
			},
			&cli.IntFlag{
				Name:  "dimension",
				Usage: "Embedding vector length",
				Value: ai.DefaultDimension,
			},
			&cli.Float64Flag{
				Name:  "remote-rps",
				Usage: "Maximum remote embedding requests per second (0 for unlimited)",
				Value: ai.DefaultConfig().RemoteRPS,
			},
			&cli.IntFlag{
				Name:  "pool-size",
				Usage: "Number of concurrent embedding workers",
			},
		},
		Before: setup,
		Commands: []*cli.Command{
			uploadCommand(),
			markersCommand(),
			embedCommand(),
			deleteCommand(),
			listCommand(),
			viewCommand(),
			searchCommand(),
			projectsCommand(),
			importLegacyCommand(),
			warmupCommand(),
			watchCommand(),
		},
	}
}

// setup loads the configuration file and installs the logger.
func setup(c *cli.Context) error {
	file, err := config.Load(c.String("config"))
	if err != nil {
		return err
	}
	if c.App.Metadata == nil {
		c.App.Metadata = map[string]any{}
	}
	c.App.Metadata[configMetadataKey] = file

	level := c.String("log-level")
	if !c.IsSet("log-level") && file.LogLevel != "" {
		level = file.LogLevel
	}
	format := c.String("log-format")
	if !c.IsSet("log-format") && file.LogFormat != "" {
		format = file.LogFormat
	}
	logger, err := newLogger(os.Stderr, level, format)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)
	return nil
}

func newLogger(w io.Writer, levelStr, format string) (*slog.Logger, error) {
	var level slog.Level
	switch strings.ToLower(levelStr) {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return nil, fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", levelStr)
	}

	opts := &slog.HandlerOptions{Level: level}
	switch strings.ToLower(format) {
	case "text", "":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	}
	return nil, fmt.Errorf("invalid log format %q: must be text or json", format)
}

func fileConfig(c *cli.Context) *config.File {
	if f, ok := c.App.Metadata[configMetadataKey].(*config.File); ok {
		return f
	}
	return &config.File{}
}

// aiConfig applies file settings first and explicitly set flags on top.
func aiConfig(c *cli.Context) *ai.Config {
	opts := fileConfig(c).AIOptions()
	if c.IsSet("local-host") {
		opts = append(opts, ai.WithLocalHost(c.String("local-host")))
	}
	if c.IsSet("local-model") {
		opts = append(opts, ai.WithLocalModel(c.String("local-model")))
	}
	if c.Bool("no-local") {
		opts = append(opts, ai.WithoutLocal())
	}
	if c.IsSet("remote-host") {
		opts = append(opts, ai.WithRemoteHost(c.String("remote-host")))
	}
	if c.IsSet("remote-model") {
		opts = append(opts, ai.WithRemoteModel(c.String("remote-model")))
	}
	if c.IsSet("api-key") {
		opts = append(opts, ai.WithAPIKey(c.String("api-key")))
	}
	if c.IsSet("dimension") {
		opts = append(opts, ai.WithDimension(c.Int("dimension")))
	}
	if c.IsSet("remote-rps") {
		opts = append(opts, ai.WithRemoteRateLimit(c.Float64("remote-rps")))
	}
	return ai.NewConfig(opts...)
}

func workspaceRoot(c *cli.Context) string {
	if !c.IsSet("root") {
		if root := fileConfig(c).Root; root != "" {
			return root
		}
	}
	return c.String("root")
}

func openWorkspace(c *cli.Context, extra ...pipeline.Option) (*docpipe.Workspace, error) {
	var opts []pipeline.Option
	poolSize := fileConfig(c).PoolSize
	if c.IsSet("pool-size") {
		poolSize = c.Int("pool-size")
	}
	if poolSize > 0 {
		opts = append(opts, pipeline.WithPoolSize(poolSize))
	}
	opts = append(opts, extra...)

	return docpipe.Open(workspaceRoot(c),
		docpipe.WithAIConfig(aiConfig(c)),
		docpipe.WithPipelineOptions(opts...),
		docpipe.WithLogger(slog.Default()))
}

func namespaceFlags(extra ...cli.Flag) []cli.Flag {
	return append([]cli.Flag{
		&cli.StringFlag{
			Name:     "user",
			Aliases:  []string{"u"},
			Usage:    "User owning the artifacts",
			Required: true,
			EnvVars:  []string{"DOCPIPE_USER"},
		},
		&cli.StringFlag{
			Name:     "project",
			Aliases:  []string{"p"},
			Usage:    "Project owning the artifacts",
			Required: true,
			EnvVars:  []string{"DOCPIPE_PROJECT"},
		},
	}, extra...)
}

func namespace(c *cli.Context) (core.Namespace, error) {
	return core.NewNamespace(c.String("user"), c.String("project"))
}
