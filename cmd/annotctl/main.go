// Package main implements the annotctl CLI for admin operations: creating
// users, rendering PDFs offline and exporting annotation documents.
package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/RahulSGosavi/KABS-Annotation-AI/internal/config"
	"github.com/RahulSGosavi/KABS-Annotation-AI/internal/store"
)

var (
	// configPath points at the daemon YAML config; the CLI opens the same
	// store the daemon uses.
	configPath string
	// serverURL is the base URL for the annotationd HTTP server
	serverURL string
	// version information
	version = "dev"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "annotctl",
	Short: "Admin CLI for the annotation backend",
	Long: `annotctl is a command-line interface for administering the annotation
backend. It operates directly on the configured store, so run it against
the same configuration as annotationd.`,
	Version: version,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to YAML config file")
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "http://localhost:8080", "annotationd server URL")
	rootCmd.AddCommand(healthCmd)
	rootCmd.AddCommand(userAddCmd)
	rootCmd.AddCommand(renderCmd)
	rootCmd.AddCommand(exportCmd)
}

// openStore loads the daemon config and opens its store.
func openStore() (store.Store, *config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	st, err := store.New(store.Config{
		Provider: cfg.Store.Provider,
		File:     store.FileConfig{Path: cfg.Store.File.Path},
		Couchbase: store.CouchbaseConfig{
			ConnectionString: cfg.Store.Couchbase.ConnectionString,
			Username:         cfg.Store.Couchbase.Username,
			Password:         cfg.Store.Couchbase.Password.Value(),
			Bucket:           cfg.Store.Couchbase.Bucket,
			Scope:            cfg.Store.Couchbase.Scope,
			Collection:       cfg.Store.Couchbase.Collection,
		},
	}, zap.NewNop())
	if err != nil {
		return nil, nil, fmt.Errorf("open store: %w", err)
	}
	return st, cfg, nil
}

// healthCmd checks server health
var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check annotationd server health",
	Long: `Check the health status of the annotationd HTTP server.

Examples:
  # Check health
  annotctl health

  # Check health on a different server
  annotctl health --server http://localhost:9090`,
	RunE: runHealth,
}

func runHealth(cmd *cobra.Command, args []string) error {
	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get(serverURL + "/health")
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("server unhealthy: %s", resp.Status)
	}

	var body struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return fmt.Errorf("decode health response: %w", err)
	}
	fmt.Printf("Server: %s\nStatus: %s\n", serverURL, body.Status)
	return nil
}
