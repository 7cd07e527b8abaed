// Package main is the semdex CLI entry point.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/taskmesh/semdex/internal/config"
	"github.com/taskmesh/semdex/internal/embedding"
	"github.com/taskmesh/semdex/internal/extract"
	"github.com/taskmesh/semdex/internal/indexer"
	"github.com/taskmesh/semdex/internal/keyword"
	"github.com/taskmesh/semdex/internal/models"
	"github.com/taskmesh/semdex/internal/search"
	"github.com/taskmesh/semdex/internal/server"
	"github.com/taskmesh/semdex/internal/storage"
	"github.com/taskmesh/semdex/internal/vector"
	"github.com/taskmesh/semdex/pkg/utils"
)

var version = "dev"

const defaultConfigPath = "/usr/local/etc/semdex/config.yaml"

// loadConfig loads config from path. When path is the default, config.yaml
// in the current directory takes precedence so running from the project dir
// picks up the project's config.
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
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	switch os.Args[1] {
	case "server":
		runServer()
	case "search":
		runSearch()
	case "upsert":
		runUpsert()
	case "delete":
		runDelete()
	case "ingest":
		runIngest()
	case "rebuild":
		runRebuild()
	case "status":
		runStatus()
	case "version", "--version", "-v":
		fmt.Printf("semdex version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func runServer() {
	fs := flag.NewFlagSet("server", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
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

	components, err := initializeComponents(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	defer components.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	components.Indexer.Start(ctx)

	srv := server.NewServer(
		components.Service,
		components.Indexer,
		components.Store,
		components.VectorIndex,
		cfg,
		logger,
	)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down...")
	if err := components.Indexer.Stop(context.Background()); err != nil {
		logger.Warn("failed to flush queued removals", zap.Error(err))
	}
	if err := components.VectorIndex.Save(cfg.Storage.VectorIndexPath); err != nil {
		logger.Warn("vector index save failed",
			zap.String("path", cfg.Storage.VectorIndexPath), zap.Error(err))
	}
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	_ = srv.Stop(shutdownCtx)
}

func runSearch() {
	fs := flag.NewFlagSet("search", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path (for direct mode)")
	serverURL := fs.String("server", "http://localhost:8080", "server URL (empty = direct storage access)")
	limit := fs.Int("limit", 0, "number of results (0 = config default)")
	entityTypes := fs.String("types", "", "comma-separated entity types to include")
	minScore := fs.Float64("min-score", 0, "minimum cosine similarity")
	keywords := fs.Bool("keywords", false, "use keyword matching instead of semantic search")
	outputJSON := fs.Bool("json", false, "print the raw JSON response")
	_ = fs.Parse(os.Args[2:])

	if fs.NArg() < 1 {
		fmt.Println("Usage: semdex search [flags] <query>")
		os.Exit(1)
	}
	query := &models.SearchQuery{
		Query:    strings.TrimSpace(strings.Join(fs.Args(), " ")),
		Limit:    *limit,
		MinScore: *minScore,
	}
	if *entityTypes != "" {
		query.EntityTypes = strings.Split(*entityTypes, ",")
	}

	var response *models.SearchResponse
	var err error
	if *serverURL != "" {
		path := "/api/v1/search"
		if *keywords {
			path = "/api/v1/search/keywords"
		}
		response, err = searchViaHTTP(*serverURL+path, query)
	} else {
		var components *Components
		components, err = directComponents(*configPath)
		if err == nil {
			defer components.Close()
			if *keywords {
				response, err = components.Service.SearchKeywords(context.Background(), query)
			} else {
				response, err = components.Service.Search(context.Background(), query)
			}
		}
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Search failed: %v\n", err)
		os.Exit(1)
	}

	if *outputJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(response)
		return
	}
	fmt.Printf("%d result(s) in %dms\n", response.TotalResults, response.DurationMs)
	for entityType, hits := range response.Results {
		fmt.Printf("\n%s:\n", entityType)
		for _, hit := range hits {
			fmt.Printf("  [%.3f] %s:%d  %s\n", hit.Score, hit.EntityType, hit.EntityID,
				utils.Truncate(hit.Text, 120))
		}
	}
}

func searchViaHTTP(url string, query *models.SearchQuery) (*models.SearchResponse, error) {
	body, err := json.Marshal(query)
	if err != nil {
		return nil, err
	}
	resp, err := http.Post(url, "application/json", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("server returned %d: %s", resp.StatusCode, string(b))
	}
	var response models.SearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &response, nil
}

func runUpsert() {
	fs := flag.NewFlagSet("upsert", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	metadataJSON := fs.String("metadata", "", "metadata as a JSON object of scalars")
	_ = fs.Parse(os.Args[2:])

	if fs.NArg() < 3 {
		fmt.Println("Usage: semdex upsert [flags] <entity-type> <entity-id> <text...>")
		os.Exit(1)
	}
	entityID, err := strconv.ParseInt(fs.Arg(1), 10, 64)
	if err != nil {
		fmt.Printf("Invalid entity id: %v\n", err)
		os.Exit(1)
	}
	input := &models.UpsertInput{
		EntityType: fs.Arg(0),
		EntityID:   entityID,
		Text:       strings.Join(fs.Args()[2:], " "),
	}
	if *metadataJSON != "" {
		if err := json.Unmarshal([]byte(*metadataJSON), &input.Metadata); err != nil {
			fmt.Printf("Invalid metadata: %v\n", err)
			os.Exit(1)
		}
	}

	components, err := directComponents(*configPath)
	if err != nil {
		fmt.Printf("Failed to initialize: %v\n", err)
		os.Exit(1)
	}
	defer components.Close()

	rec, err := components.Indexer.Upsert(context.Background(), input)
	if err != nil {
		fmt.Printf("Upsert failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Record upserted: %s\n", rec.Key())
}

func runDelete() {
	fs := flag.NewFlagSet("delete", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	_ = fs.Parse(os.Args[2:])

	if fs.NArg() < 2 {
		fmt.Println("Usage: semdex delete [flags] <entity-type> <entity-id>")
		os.Exit(1)
	}
	entityID, err := strconv.ParseInt(fs.Arg(1), 10, 64)
	if err != nil {
		fmt.Printf("Invalid entity id: %v\n", err)
		os.Exit(1)
	}

	components, err := directComponents(*configPath)
	if err != nil {
		fmt.Printf("Failed to initialize: %v\n", err)
		os.Exit(1)
	}
	defer components.Close()

	ctx := context.Background()
	existed, err := components.Indexer.Delete(ctx, fs.Arg(0), entityID)
	if err != nil {
		fmt.Printf("Deletion failed: %v\n", err)
		os.Exit(1)
	}
	if err := components.Indexer.Flush(ctx); err != nil {
		fmt.Printf("Failed to apply removal: %v\n", err)
		os.Exit(1)
	}
	if existed {
		fmt.Printf("Record deleted: %s\n", models.RecordKey(fs.Arg(0), entityID))
	} else {
		fmt.Printf("No such record: %s\n", models.RecordKey(fs.Arg(0), entityID))
	}
}

func runIngest() {
	fs := flag.NewFlagSet("ingest", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	_ = fs.Parse(os.Args[2:])

	if fs.NArg() < 1 {
		fmt.Println("Usage: semdex ingest [flags] <file> [file...]")
		os.Exit(1)
	}

	components, err := directComponents(*configPath)
	if err != nil {
		fmt.Printf("Failed to initialize: %v\n", err)
		os.Exit(1)
	}
	defer components.Close()

	ctx := context.Background()
	for _, path := range fs.Args() {
		rec, err := components.Indexer.IngestFile(ctx, path)
		if err != nil {
			fmt.Printf("Ingest failed for %s: %v\n", path, err)
			os.Exit(1)
		}
		fmt.Printf("Ingested %s as %s\n", path, rec.Key())
	}
}

func runRebuild() {
	fs := flag.NewFlagSet("rebuild", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	_ = fs.Parse(os.Args[2:])

	components, err := directComponents(*configPath)
	if err != nil {
		fmt.Printf("Failed to initialize: %v\n", err)
		os.Exit(1)
	}
	defer components.Close()

	n, err := components.Indexer.RebuildAll(context.Background())
	if err != nil {
		fmt.Printf("Rebuild failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Rebuilt vector index from %d record(s)\n", n)
}

func runStatus() {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path (for direct mode)")
	serverURL := fs.String("server", "http://localhost:8080", "server URL (empty = direct storage access)")
	_ = fs.Parse(os.Args[2:])

	var status map[string]interface{}
	if *serverURL != "" {
		resp, err := http.Get(*serverURL + "/api/v1/status")
		if err != nil {
			fmt.Fprintf(os.Stderr, "Status failed: %v\n", err)
			os.Exit(1)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			b, _ := io.ReadAll(resp.Body)
			fmt.Fprintf(os.Stderr, "Server returned %d: %s\n", resp.StatusCode, string(b))
			os.Exit(1)
		}
		if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
			fmt.Fprintf(os.Stderr, "Parse failed: %v\n", err)
			os.Exit(1)
		}
	} else {
		components, err := directComponents(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to initialize: %v\n", err)
			os.Exit(1)
		}
		defer components.Close()
		count, err := components.Store.Count(context.Background())
		if err != nil {
			fmt.Fprintf(os.Stderr, "Count failed: %v\n", err)
			os.Exit(1)
		}
		status = map[string]interface{}{
			"records":           count,
			"vector_index_size": components.VectorIndex.Size(),
		}
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(status)
}

// directComponents loads config, builds a quiet logger, and initializes the
// full component set for CLI commands that bypass the server.
func directComponents(configPath string) (*Components, error) {
	cfg, _, err := loadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	logger, err := utils.NewLogger(cfg.Debug)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}
	return initializeComponents(cfg, logger)
}

// Components holds initialized services.
type Components struct {
	Store        storage.Store
	Embedder     embedding.Embedder
	VectorIndex  *vector.FlatIndex
	KeywordIndex keyword.Index
	Service      *search.Service
	Indexer      *indexer.Indexer
}

func (c *Components) Close() {
	if c.Store != nil {
		_ = c.Store.Close()
	}
	if c.Embedder != nil {
		_ = c.Embedder.Close()
	}
	if c.KeywordIndex != nil {
		_ = c.KeywordIndex.Close()
	}
}

func initializeComponents(cfg *config.Config, logger *zap.Logger) (*Components, error) {
	store, err := storage.NewSQLiteStore(cfg.Storage.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	var embedder embedding.Embedder
	if cfg.Embedding.ProviderURL != "" {
		httpEmbedder, err := embedding.NewHTTPEmbedder(
			cfg.Embedding.ProviderURL,
			cfg.Embedding.APIKey,
			cfg.Embedding.Model,
			cfg.Embedding.Dimensions,
			cfg.Embedding.MaxChars,
			cfg.Embedding.Timeout(),
		)
		if err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("failed to initialize embedder: %w", err)
		}
		embedder = embedding.NewCachedEmbedder(httpEmbedder, cfg.Embedding.CacheSize)
	} else {
		logger.Warn("no embedding provider configured, using deterministic mock embeddings")
		embedder = embedding.NewMockEmbedder(cfg.Embedding.Dimensions)
	}

	vectorIndex, rebuildNeeded, err := openVectorIndex(cfg, logger)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	keywordIndex, err := keyword.NewBleveIndex(cfg.Storage.KeywordIndexPath)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to initialize keyword index: %w", err)
	}

	if err := ensureDescriptor(store, cfg); err != nil {
		_ = store.Close()
		_ = keywordIndex.Close()
		return nil, err
	}

	service := search.NewService(store, embedder, vectorIndex, keywordIndex, &cfg.Search,
		search.WithLogger(logger))
	idx := indexer.NewIndexer(store, embedder, vectorIndex, keywordIndex, cfg,
		extract.NewExtractor(), indexer.WithLogger(logger))

	if rebuildNeeded {
		n, err := idx.RebuildAll(context.Background())
		if err != nil {
			logger.Warn("startup rebuild failed", zap.Error(err))
		} else {
			logger.Info("vector index rebuilt from store", zap.Int("records", n))
		}
	}

	return &Components{
		Store:        store,
		Embedder:     embedder,
		VectorIndex:  vectorIndex,
		KeywordIndex: keywordIndex,
		Service:      service,
		Indexer:      idx,
	}, nil
}

// openVectorIndex loads the persisted index, or starts fresh when the file is
// missing, corrupt, or was written with a different dimension. In the latter
// two cases the caller rebuilds from the record store.
func openVectorIndex(cfg *config.Config, logger *zap.Logger) (*vector.FlatIndex, bool, error) {
	dims := cfg.Embedding.Dimensions
	ix, err := vector.Load(cfg.Storage.VectorIndexPath, dims)
	if err == nil {
		logger.Info("vector index loaded",
			zap.String("path", cfg.Storage.VectorIndexPath),
			zap.Int("size", ix.Size()))
		return ix, false, nil
	}

	switch {
	case errors.Is(err, vector.ErrIndexNotFound):
		logger.Info("no persisted vector index, starting empty",
			zap.String("path", cfg.Storage.VectorIndexPath))
	case errors.Is(err, vector.ErrIndexCorrupt), errors.Is(err, vector.ErrDimensionMismatch):
		logger.Warn("persisted vector index unusable, rebuilding from store",
			zap.String("path", cfg.Storage.VectorIndexPath), zap.Error(err))
	default:
		return nil, false, fmt.Errorf("failed to load vector index: %w", err)
	}

	fresh, newErr := vector.NewFlatIndex(dims)
	if newErr != nil {
		return nil, false, fmt.Errorf("failed to create vector index: %w", newErr)
	}
	return fresh, !errors.Is(err, vector.ErrIndexNotFound), nil
}

// ensureDescriptor registers the configured index in the descriptor table on
// first run.
func ensureDescriptor(store storage.Store, cfg *config.Config) error {
	ctx := context.Background()
	desc, err := store.GetDescriptor(ctx, cfg.Index.Name)
	if err == nil {
		if desc.Dimension != cfg.Embedding.Dimensions {
			desc.Dimension = cfg.Embedding.Dimensions
			return store.PutDescriptor(ctx, desc)
		}
		return nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("failed to read index descriptor: %w", err)
	}
	return store.PutDescriptor(ctx, &models.IndexDescriptor{
		Name:      cfg.Index.Name,
		Dimension: cfg.Embedding.Dimensions,
		Metric:    models.MetricCosine,
		IsActive:  true,
	})
}

func printUsage() {
	fmt.Println(`semdex - Semantic search over business entities

Usage:
  semdex server [flags]                              Start the HTTP server
  semdex search [flags] <query>                      Search indexed records
  semdex upsert [flags] <type> <id> <text...>        Index or update an entity
  semdex delete [flags] <type> <id>                  Remove an entity
  semdex ingest [flags] <file> [file...]             Index document files
  semdex rebuild [flags]                             Rebuild the vector index from the store
  semdex status [flags]                              Show record and index counts
  semdex version                                     Show version
  semdex help                                        Show this help

Server Flags:
  --config string    Config file path (default: /usr/local/etc/semdex/config.yaml)
  --debug            Enable debug logging

Search Flags:
  --config string    Config file path (for direct storage mode)
  --server string    Server URL (default: http://localhost:8080). Use --server "" for direct storage.
  --limit int        Number of results (0 = config default)
  --types string     Comma-separated entity types to include
  --min-score float  Minimum cosine similarity
  --keywords         Keyword matching instead of semantic search
  --json             Print the raw JSON response

Examples:
  semdex server
  semdex search "overdue invoices for the berlin office"
  semdex search --types task,comment --limit 5 deployment
  semdex upsert task 42 "prepare quarterly report"
  semdex upsert --metadata '{"project":7}' task 42 "prepare quarterly report"
  semdex delete task 42
  semdex ingest handbook.pdf
  semdex rebuild
  semdex status`)
}
