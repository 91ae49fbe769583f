package main

import (
	"fmt"
	"time"

	"github.com/sguter90/sensormaestro/pkg/api"
	"github.com/spf13/cobra"
)

var (
	serverURL     string
	clientAPIKey  string
	clientTimeout time.Duration
)

// addClientFlags registers the flags shared by commands that talk to a running server
func addClientFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&serverURL, "server", "", "server base URL (default http://localhost:<api_port>)")
	cmd.Flags().StringVar(&clientAPIKey, "api-key", "", "ingest API key (default from configuration)")
	cmd.Flags().DurationVar(&clientTimeout, "timeout", 30*time.Second, "HTTP timeout")
}

// newAPIClient builds an API client from the flags, falling back to the configuration
func newAPIClient(cmd *cobra.Command) *api.Client {
	cfg := configFrom(cmd)

	url := serverURL
	if url == "" {
		url = fmt.Sprintf("http://localhost:%d", cfg.Port)
	}
	key := clientAPIKey
	if key == "" {
		key = cfg.APIKey
	}

	return api.NewClient(url, api.WithAPIKey(key), api.WithTimeout(clientTimeout))
}
