package main

import (
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"

	"github.com/spf13/pflag"

	"github.com/conorfennell/soltrack/internal/catalog"
	"github.com/conorfennell/soltrack/internal/config"
	"github.com/conorfennell/soltrack/internal/domain"
	"github.com/conorfennell/soltrack/internal/kv"
	"github.com/conorfennell/soltrack/internal/profile"
	"github.com/conorfennell/soltrack/internal/transfer"
	"github.com/conorfennell/soltrack/internal/web"
)

func main() {
	// Flags double as config defaults; file and env values sit in between.
	flags := pflag.NewFlagSet("soltrack", pflag.ExitOnError)
	configPath := flags.String("config", "soltrack.yaml", "Path to the YAML config file")
	flags.String("db", "soltrack.db", "Path to the SQLite database file")
	flags.String("addr", ":8080", "HTTP listen address")
	flags.String("catalog", "standards", "Directory of standards catalog documents")
	flags.String("repo", "", "Git URL to sync the catalog directory from")
	flags.Bool("ephemeral", false, "Keep all state in memory (no database file)")
	flags.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: soltrack [flags] [serve|profiles|stats|import <file>|export|sync]\n\n")
		flags.PrintDefaults()
	}
	if err := flags.Parse(os.Args[1:]); err != nil {
		log.Fatalf("Failed to parse flags: %v", err)
	}

	cfg, err := config.Load(*configPath, flags.Changed("config"), flags)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	var medium kv.Store
	if cfg.Ephemeral {
		medium = kv.NewMemory()
	} else {
		sqlite, err := kv.Open(cfg.DB)
		if err != nil {
			log.Fatalf("Failed to open database: %v", err)
		}
		medium = sqlite
	}
	defer medium.Close()

	store, err := profile.Load(medium)
	if err != nil {
		log.Fatalf("Failed to load profiles: %v", err)
	}

	command := "serve"
	if flags.NArg() > 0 {
		command = flags.Arg(0)
	}

	switch command {
	case "serve":
		serve(cfg, medium, store)
	case "profiles":
		for _, ref := range store.Profiles() {
			fmt.Printf("%s  %s\n", ref.ID, ref.DisplayName)
		}
	case "stats":
		for _, ref := range store.Profiles() {
			c := store.MasteryCount(ref.ID)
			fmt.Printf("%s: %d completed, %d need improvement, %d recorded\n",
				ref.DisplayName, c.Completed, c.NeedsImprovement, c.Total)
		}
	case "import":
		if flags.NArg() < 2 {
			log.Fatalf("Usage: soltrack import <file>")
		}
		importFile(store, flags.Arg(1))
	case "export":
		payload, err := store.Export()
		if err != nil {
			log.Fatalf("Failed to export profiles: %v", err)
		}
		fmt.Println(string(payload))
	case "sync":
		if cfg.Repo == "" {
			log.Fatalf("sync requires --repo (or repo in the config file)")
		}
		if err := catalog.SyncRepo(cfg.Repo, cfg.Catalog); err != nil {
			log.Fatalf("Failed to sync catalog: %v", err)
		}
		docs, err := catalog.Load(medium, cfg.Catalog)
		if err != nil {
			log.Fatalf("Failed to load catalog: %v", err)
		}
		fmt.Printf("Catalog synced: %d documents, %d standards.\n", len(docs), catalog.LeafCount(docs))
	default:
		log.Fatalf("Unknown command %q", command)
	}
}

func serve(cfg config.Config, medium kv.Store, store *profile.Store) {
	if cfg.Repo != "" {
		if err := catalog.SyncRepo(cfg.Repo, cfg.Catalog); err != nil {
			slog.Warn("Catalog sync failed, serving what is on disk", "error", err)
		}
	}

	docs, err := loadCatalog(medium, cfg.Catalog)
	if err != nil {
		slog.Warn("Catalog load incomplete", "error", err)
	}

	srv := web.NewServer(store, medium, docs)
	slog.Info("Serving", "addr", cfg.Addr, "documents", len(docs), "standards", catalog.LeafCount(docs))
	if err := http.ListenAndServe(cfg.Addr, srv); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}

func loadCatalog(medium kv.Store, dir string) ([]domain.SubjectStandard, error) {
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		slog.Warn("Catalog directory missing, serving without standards", "dir", dir)
		return nil, nil
	}
	return catalog.Load(medium, dir)
}

func importFile(store *profile.Store, path string) {
	raw, err := os.ReadFile(path)
	if err != nil {
		log.Fatalf("Failed to read import file: %v", err)
	}
	incoming, err := transfer.ParseAndValidate(string(raw))
	if err != nil {
		log.Fatalf("Import rejected: %v", err)
	}
	for _, row := range transfer.Preview(store.Snapshot(), incoming) {
		fmt.Printf("%-9s %s (%s): %d completed, %d need improvement, %d recorded\n",
			row.Status, row.DisplayName, row.ID,
			row.Incoming.Completed, row.Incoming.NeedsImprovement, row.Incoming.Total)
	}
	if err := store.Merge(incoming); err != nil {
		log.Fatalf("Failed to persist import: %v", err)
	}
	fmt.Printf("Imported %d profiles.\n", len(incoming))
}
