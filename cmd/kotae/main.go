// Package main is the Kotae CLI entry point.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/hyperjump/kotae/internal/answer"
	"github.com/hyperjump/kotae/internal/chunker"
	"github.com/hyperjump/kotae/internal/cli"
	"github.com/hyperjump/kotae/internal/config"
	"github.com/hyperjump/kotae/internal/embedding"
	"github.com/hyperjump/kotae/internal/extract"
	"github.com/hyperjump/kotae/internal/fileid"
	"github.com/hyperjump/kotae/internal/models"
	"github.com/hyperjump/kotae/internal/pipeline"
	"github.com/hyperjump/kotae/internal/retriever"
	"github.com/hyperjump/kotae/internal/server"
	"github.com/hyperjump/kotae/internal/storage"
	"github.com/hyperjump/kotae/internal/vector"
	"github.com/hyperjump/kotae/internal/watcher"
	"github.com/hyperjump/kotae/pkg/utils"
)

var version = "dev"

const defaultConfigPath = "/usr/local/etc/kotae/config.yaml"

// loadConfig loads config from path. When path is the default, it first looks
// for config.yaml in the current directory (for development); if that exists it
// is used, so that "kotae server" from the project dir uses the project's
// config. Returns the config and the path that was actually loaded.
func loadConfig(path string) (*config.Config, string, error) {
	if path == defaultConfigPath {
		if cwd, cwdErr := os.Getwd(); cwdErr == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, statErr := os.Stat(fallback); statErr == nil {
				cfg, loadErr := config.Load(fallback)
				if loadErr != nil {
					return nil, "", loadErr
				}
				return cfg, fallback, nil
			}
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

func main() {
	// API keys commonly live in a local .env during development.
	_ = godotenv.Load()

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	command := os.Args[1]
	switch command {
	case "server":
		runServer()
	case "ask":
		runAsk()
	case "ingest":
		runIngest()
	case "delete":
		runDelete()
	case "status":
		runStatus()
	case "watch":
		runWatch()
	case "version", "--version", "-v":
		fmt.Printf("kotae version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func runServer() {
	fs := flag.NewFlagSet("server", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging (file ingestion, retrieval scores, etc.)")
	_ = fs.Parse(os.Args[2:])

	cfg, resolvedConfigPath, err := loadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	debugMode := cfg.Debug || *debug
	logger, err := utils.NewLogger(debugMode)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("config loaded",
		zap.String("config_path", resolvedConfigPath),
		zap.Bool("debug", debugMode),
	)

	components, err := initializeComponents(cfg, logger, true)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	defer components.Close()

	p := components.Pipeline
	exts := cfg.Watch.Extensions
	watchSvc := watcher.New(
		&pipelineSink{pipeline: p, exts: exts},
		watcher.Config{
			Roots:      cfg.Watch.Directories,
			Extensions: exts,
			Recursive:  cfg.Watch.RecursiveOrDefault(),
		},
		watcher.WithLogger(logger),
	)
	watchCtx, watchCancel := context.WithCancel(context.Background())
	defer watchCancel()
	if err := watchSvc.Start(watchCtx); err != nil {
		logger.Fatal("Failed to start watcher", zap.Error(err))
	}
	watchSvc.Rescan()

	srv := server.NewServer(p, cfg, logger,
		server.WithWatcher(watchSvc, resolvedConfigPath))
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down...")
	if cfg.Storage.VectorIndexPath != "" && components.VectorIndex != nil {
		if err := components.VectorIndex.Save(cfg.Storage.VectorIndexPath); err != nil {
			logger.Warn("vector index save failed",
				zap.String("path", cfg.Storage.VectorIndexPath), zap.Error(err))
		}
	}
	watchCancel()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Stop(ctx)
}

// buildQuestion joins all positional args with spaces so multi-word questions
// work the same with or without shell quoting.
func buildQuestion(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}

// askArgsReorder moves any flags (and their values) that appear after the
// question to the front of the slice so that flag.Parse() sees them. Go's flag
// package stops at the first non-flag argument, so "kotae ask \"question\"
// -output json" would otherwise leave -output unparsed.
func askArgsReorder(args []string) []string {
	for i, a := range args {
		if len(a) > 0 && a[0] == '-' {
			if i == 0 {
				return args
			}
			reordered := make([]string, 0, len(args))
			reordered = append(reordered, args[i:]...)
			reordered = append(reordered, args[:i]...)
			return reordered
		}
	}
	return args
}

func parseOutputFormat(s string) (cli.OutputFormat, error) {
	switch s {
	case "json":
		return cli.OutputJSON, nil
	case "text":
		return cli.OutputText, nil
	default:
		return "", fmt.Errorf("unknown output format %q; use text or json", s)
	}
}

func runAsk() {
	askArgs := askArgsReorder(os.Args[2:])
	fs := flag.NewFlagSet("ask", flag.ExitOnError)
	configPathFlag := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", "http://localhost:8080", "server URL (empty = answer locally without a running server)")
	imagePath := fs.String("image", "", "attach an image file to the question")
	outputFormat := fs.String("output", "text", "output format: text (human-readable) or json (parseable)")
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: kotae ask [flags] <question>\n\n")
		fmt.Fprintf(fs.Output(), "Question is all remaining arguments joined by spaces.\n\n")
		fs.PrintDefaults()
	}
	_ = fs.Parse(askArgs)

	question := buildQuestion(fs.Args())
	if question == "" {
		fs.Usage()
		os.Exit(1)
	}
	format, err := parseOutputFormat(*outputFormat)
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}

	var image *models.QuestionImage
	if *imagePath != "" {
		image, err = loadImage(*imagePath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to read image: %v\n", err)
			os.Exit(1)
		}
	}

	if *serverURL != "" {
		record, retrieval, err := askViaHTTP(*serverURL, question, image)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Ask failed: %v\n", err)
			os.Exit(1)
		}
		if err := cli.WriteAnswer(os.Stdout, record, retrieval, format); err != nil {
			fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
			os.Exit(1)
		}
		return
	}

	// Local mode: run the full pipeline in-process.
	cfg, _, err := loadConfig(*configPathFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger, err := utils.NewLogger(cfg.Debug)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	components, err := initializeComponents(cfg, logger, true)
	if err != nil {
		logger.Fatal("Failed to initialize", zap.Error(err))
	}
	defer components.Close()

	record, retrieval, err := components.Pipeline.Ask(context.Background(), question, image)
	if err != nil && record == nil {
		fmt.Fprintf(os.Stderr, "Ask failed: %v\n", err)
		os.Exit(1)
	}
	if err := cli.WriteAnswer(os.Stdout, record, retrieval, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

func loadImage(path string) (*models.QuestionImage, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return &models.QuestionImage{
		MIMEType: mimeTypeForImage(path),
		Data:     data,
	}, nil
}

func mimeTypeForImage(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".gif":
		return "image/gif"
	case ".webp":
		return "image/webp"
	default:
		return "image/png"
	}
}

func askViaHTTP(serverURL, question string, image *models.QuestionImage) (*models.AnswerRecord, *models.RetrievalResult, error) {
	// Images need multipart; plain questions go as JSON.
	var req *http.Request
	if image != nil {
		body, contentType, err := buildAskMultipart(question, image)
		if err != nil {
			return nil, nil, err
		}
		req, err = http.NewRequest(http.MethodPost, serverURL+"/api/v1/ask", body)
		if err != nil {
			return nil, nil, err
		}
		req.Header.Set("Content-Type", contentType)
	} else {
		body, err := json.Marshal(map[string]string{"question": question})
		if err != nil {
			return nil, nil, err
		}
		req, err = http.NewRequest(http.MethodPost, serverURL+"/api/v1/ask", bytes.NewReader(body))
		if err != nil {
			return nil, nil, err
		}
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusBadGateway {
		b, _ := io.ReadAll(resp.Body)
		return nil, nil, fmt.Errorf("server returned %d: %s", resp.StatusCode, string(b))
	}
	var decoded struct {
		Answer           string                  `json:"answer"`
		Status           models.AnswerStatus     `json:"status"`
		SupportingChunks []*models.Chunk         `json:"supporting_chunks"`
		Retrieval        *models.RetrievalResult `json:"retrieval"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, nil, fmt.Errorf("decode response: %w", err)
	}
	record := &models.AnswerRecord{
		Answer:           decoded.Answer,
		Status:           decoded.Status,
		SupportingChunks: decoded.SupportingChunks,
	}
	return record, decoded.Retrieval, nil
}

func buildAskMultipart(question string, image *models.QuestionImage) (io.Reader, string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if err := mw.WriteField("question", question); err != nil {
		return nil, "", err
	}
	header := textproto.MIMEHeader{}
	header.Set("Content-Disposition", `form-data; name="image"; filename="image"`)
	header.Set("Content-Type", image.MIMEType)
	part, err := mw.CreatePart(header)
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(image.Data); err != nil {
		return nil, "", err
	}
	if err := mw.Close(); err != nil {
		return nil, "", err
	}
	return &buf, mw.FormDataContentType(), nil
}

func runIngest() {
	fs := flag.NewFlagSet("ingest", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	_ = fs.Parse(os.Args[2:])

	if fs.NArg() < 1 {
		fmt.Println("Usage: kotae ingest [flags] <file-or-directory>")
		os.Exit(1)
	}
	path := fs.Arg(0)

	cfg, _, err := loadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger, err := utils.NewLogger(cfg.Debug)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	components, err := initializeComponents(cfg, logger, false)
	if err != nil {
		logger.Fatal("Failed to initialize", zap.Error(err))
	}
	defer components.Close()

	ctx := context.Background()
	info, err := os.Stat(path)
	if err != nil {
		fmt.Printf("Failed to stat path: %v\n", err)
		os.Exit(1)
	}
	if info.IsDir() {
		n, err := components.Pipeline.IngestDirectory(ctx, path, cfg.Watch.Extensions)
		if err != nil {
			fmt.Printf("Ingesting directory failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Ingested %d file(s) from %s\n", n, path)
	} else {
		// Single file: no extension filter
		result, err := components.Pipeline.IngestFile(ctx, path, nil)
		if err != nil {
			fmt.Printf("Ingesting failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Document ingested: %s (%d chunks)\n", result.DocumentID, result.ChunksIndexed)
	}

	if cfg.Storage.VectorIndexPath != "" {
		if err := components.VectorIndex.Save(cfg.Storage.VectorIndexPath); err != nil {
			fmt.Printf("Vector index save failed: %v\n", err)
			os.Exit(1)
		}
	}
}

func runDelete() {
	fs := flag.NewFlagSet("delete", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	_ = fs.Parse(os.Args[2:])

	if fs.NArg() < 1 {
		fmt.Println("Usage: kotae delete [flags] <document-id>")
		os.Exit(1)
	}
	docID := fs.Arg(0)

	cfg, _, err := loadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger, err := utils.NewLogger(cfg.Debug)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	components, err := initializeComponents(cfg, logger, false)
	if err != nil {
		logger.Fatal("Failed to initialize", zap.Error(err))
	}
	defer components.Close()

	if err := components.Pipeline.DeleteDocument(context.Background(), docID); err != nil {
		fmt.Printf("Deletion failed: %v\n", err)
		os.Exit(1)
	}
	if cfg.Storage.VectorIndexPath != "" {
		_ = components.VectorIndex.Save(cfg.Storage.VectorIndexPath)
	}
	fmt.Printf("Document deleted: %s\n", docID)
}

func runStatus() {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", "http://localhost:8080", "server URL (empty = read local storage directly)")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	format, err := parseOutputFormat(*outputFormat)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	var st *pipeline.Status
	if *serverURL != "" {
		st, err = statusViaHTTP(*serverURL)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Status failed: %v\n", err)
			os.Exit(1)
		}
	} else {
		cfg, _, err := loadConfig(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
			os.Exit(1)
		}
		logger, err := utils.NewLogger(cfg.Debug)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
			os.Exit(1)
		}
		defer logger.Sync()
		components, err := initializeComponents(cfg, logger, false)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to initialize: %v\n", err)
			os.Exit(1)
		}
		defer components.Close()
		st, err = components.Pipeline.Status(context.Background())
		if err != nil {
			fmt.Fprintf(os.Stderr, "Status failed: %v\n", err)
			os.Exit(1)
		}
	}

	if err := cli.WriteStatus(os.Stdout, st, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

func statusViaHTTP(serverURL string) (*pipeline.Status, error) {
	resp, err := http.Get(serverURL + "/api/v1/status")
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("server returned %d: %s", resp.StatusCode, string(b))
	}
	var st pipeline.Status
	if err := json.NewDecoder(resp.Body).Decode(&st); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &st, nil
}

func runWatch() {
	if len(os.Args) < 3 {
		fmt.Println("Usage: kotae watch <add|remove|list> [path]")
		fmt.Println("  kotae watch add <path>     Add directory to watch")
		fmt.Println("  kotae watch remove <path>  Remove directory from watch")
		fmt.Println("  kotae watch list           List watched directories")
		os.Exit(1)
	}
	sub := os.Args[2]
	fs := flag.NewFlagSet("watch", flag.ExitOnError)
	serverURL := fs.String("server", "http://localhost:8080", "server URL")
	_ = fs.Parse(os.Args[3:])
	switch sub {
	case "add", "remove":
		if fs.NArg() < 1 {
			fmt.Printf("Usage: kotae watch %s <path>\n", sub)
			os.Exit(1)
		}
		path, _ := filepath.Abs(fs.Arg(0))
		method := http.MethodPost
		if sub == "remove" {
			method = http.MethodDelete
		}
		body, _ := json.Marshal(map[string]string{"path": path})
		req, _ := http.NewRequest(method, *serverURL+"/api/v1/watch/directories", bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			fmt.Printf("Request failed: %v\n", err)
			os.Exit(1)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			b, _ := io.ReadAll(resp.Body)
			fmt.Printf("watch %s failed (%d): %s\n", sub, resp.StatusCode, string(b))
			os.Exit(1)
		}
		if sub == "add" {
			fmt.Printf("Added: %s\n", path)
		} else {
			fmt.Printf("Removed: %s\n", path)
		}
	case "list":
		resp, err := http.Get(*serverURL + "/api/v1/watch/directories")
		if err != nil {
			fmt.Printf("Request failed: %v\n", err)
			os.Exit(1)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			b, _ := io.ReadAll(resp.Body)
			fmt.Printf("List failed (%d): %s\n", resp.StatusCode, string(b))
			os.Exit(1)
		}
		var out struct {
			Directories []string `json:"directories"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			fmt.Printf("Parse failed: %v\n", err)
			os.Exit(1)
		}
		for _, d := range out.Directories {
			fmt.Println(d)
		}
	default:
		fmt.Printf("Unknown watch subcommand: %s\n", sub)
		os.Exit(1)
	}
}

// Components holds initialized services.
type Components struct {
	Storage     storage.Storage
	Embedder    embedding.Embedder
	VectorIndex vector.VectorIndex
	Generator   answer.Generator
	Pipeline    *pipeline.Pipeline
}

func (c *Components) Close() {
	if c.Storage != nil {
		_ = c.Storage.Close()
	}
	if c.Embedder != nil {
		_ = c.Embedder.Close()
	}
	if c.VectorIndex != nil {
		_ = c.VectorIndex.Close()
	}
	if c.Generator != nil {
		_ = c.Generator.Close()
	}
}

// pipelineSink adapts the pipeline to the watcher's Sink: filesystem paths
// become document IDs, and extension filtering follows the watch config.
type pipelineSink struct {
	pipeline *pipeline.Pipeline
	exts     []string
}

func (s *pipelineSink) IngestFile(ctx context.Context, path string) error {
	_, err := s.pipeline.IngestFile(ctx, path, s.exts)
	return err
}

func (s *pipelineSink) RemoveFile(ctx context.Context, path string) error {
	return s.pipeline.DeleteDocument(ctx, fileid.FileDocID(path))
}

// newEmbedder builds the embedder named by embedding.provider. A remote
// provider with its API key env unset is a configuration error, not a cue
// to degrade; mock embeddings must be asked for explicitly.
func newEmbedder(cfg *config.Config) (embedding.Embedder, error) {
	var embedder embedding.Embedder
	switch cfg.Embedding.Provider {
	case "mock":
		embedder = embedding.NewMockEmbedder(cfg.Embedding.Dimensions)
	case "remote":
		remote, err := embedding.NewRemoteEmbedder(embedding.RemoteConfig{
			BaseURL:    cfg.Embedding.BaseURL,
			APIKeyEnv:  cfg.Embedding.APIKeyEnv,
			Model:      cfg.Embedding.Model,
			Dimensions: cfg.Embedding.Dimensions,
			BatchSize:  cfg.Embedding.BatchSize,
			Timeout:    time.Duration(cfg.Embedding.TimeoutSeconds) * time.Second,
		})
		if err != nil {
			return nil, err
		}
		embedder = remote
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", cfg.Embedding.Provider)
	}
	if cfg.Embedding.CacheSize > 0 {
		embedder = embedding.NewCachedEmbedder(embedder, cfg.Embedding.CacheSize)
	}
	return embedder, nil
}

// initializeComponents wires the full pipeline from config. needGeneration
// controls whether the Gemini client is created; ingest-only commands skip it
// so they work without a generation API key.
func initializeComponents(cfg *config.Config, logger *zap.Logger, needGeneration bool) (*Components, error) {
	store, err := storage.NewSQLiteStorage(cfg.Storage.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	embedder, err := newEmbedder(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize embedder: %w", err)
	}

	metric, err := vector.ParseMetric(cfg.Vector.Metric)
	if err != nil {
		return nil, fmt.Errorf("failed to parse metric: %w", err)
	}
	vectorIndex, err := vector.NewVectorIndex(context.Background(), cfg.Vector.Backend, metric, cfg.Embedding.Dimensions, vector.Options{
		Qdrant: vector.QdrantConfig{
			URL:        cfg.Vector.Qdrant.URL,
			APIKey:     os.Getenv(cfg.Vector.Qdrant.APIKeyEnv),
			Collection: cfg.Vector.Qdrant.Collection,
			AutoCreate: true,
		},
		Redis: vector.RedisConfig{
			Addr:      cfg.Vector.Redis.Addr,
			Password:  cfg.Vector.Redis.Password,
			DB:        cfg.Vector.Redis.DB,
			IndexName: cfg.Vector.Redis.IndexName,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize vector index: %w", err)
	}
	if cfg.Storage.VectorIndexPath != "" {
		if loadErr := vectorIndex.Load(cfg.Storage.VectorIndexPath); loadErr != nil {
			logger.Warn("vector index load skipped",
				zap.String("path", cfg.Storage.VectorIndexPath), zap.Error(loadErr))
		}
	}
	logger.Info("vector index initialized",
		zap.String("backend", cfg.Vector.Backend),
		zap.String("metric", cfg.Vector.Metric))

	ch, err := chunker.NewChunker(cfg.Chunking.Size, cfg.Chunking.Overlap)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize chunker: %w", err)
	}

	retOpts := []retriever.Option{}
	if cfg.Debug {
		retOpts = append(retOpts, retriever.WithLogger(logger))
	}
	ret, err := retriever.NewRetriever(embedder, vectorIndex, cfg.Retrieval.TopK, retOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize retriever: %w", err)
	}

	var gen answer.Generator
	var synth *answer.Synthesizer
	if needGeneration {
		gen, err = answer.NewGeminiGenerator(answer.GeminiConfig{
			BaseURL:         cfg.Generation.BaseURL,
			Model:           cfg.Generation.Model,
			APIKeyEnv:       cfg.Generation.APIKeyEnv,
			Temperature:     cfg.Generation.Temperature,
			MaxOutputTokens: cfg.Generation.MaxOutputTokens,
			Timeout:         time.Duration(cfg.Generation.TimeoutSeconds) * time.Second,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to initialize generator: %w", err)
		}
		synth, err = answer.NewSynthesizer(gen, cfg.Retrieval.MaxContextChars)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize synthesizer: %w", err)
		}
	}

	pipeOpts := []pipeline.Option{}
	if cfg.Debug {
		pipeOpts = append(pipeOpts, pipeline.WithLogger(logger))
	}
	p := pipeline.New(store, embedder, vectorIndex, ch, ret, synth, extract.NewExtractor(), pipeOpts...)

	return &Components{
		Storage:     store,
		Embedder:    embedder,
		VectorIndex: vectorIndex,
		Generator:   gen,
		Pipeline:    p,
	}, nil
}

func printUsage() {
	fmt.Println(`kotae - Local document question answering

Usage:
  kotae server [flags]            Start the HTTP server
  kotae ask [flags] <question>    Ask a question against ingested documents
  kotae ingest [flags] <path>     Ingest a file or directory
  kotae delete [flags] <id>       Delete a document
  kotae status [flags]            Show document/chunk/index counts
  kotae watch <add|remove|list>   Manage watched directories
  kotae version                   Show version
  kotae help                      Show this help

Server Flags:
  --config string    Config file path (default: /usr/local/etc/kotae/config.yaml)
  --debug            Enable debug logging (file ingestion, retrieval scores, etc.)

Ask Flags:
  --config string    Config file path (for local mode)
  --server string    Server URL (default: http://localhost:8080). Use empty (--server "") to answer locally without a running server.
  --image string     Attach an image file to the question
  --output string    Output format: text or json (default: text)

Ingest Flags:
  --config string    Config file path

Status Flags:
  --config string    Config file path (for local mode)
  --server string    Server URL (default: http://localhost:8080). Use empty (--server "") to read local storage.
  --output string    Output format: text or json (default: text)

Watch Flags:
  --server string    Server URL (default: http://localhost:8080)

Examples:
  kotae server
  kotae ingest ./docs
  kotae ask "what color is the sky"
  kotae ask --image chart.png "what does this chart show"
  kotae ask --output json "query"   # structured JSON for other apps
  kotae delete doc:3b4f2a
  kotae status
  kotae watch add /path/to/docs
  kotae watch list`)
}
