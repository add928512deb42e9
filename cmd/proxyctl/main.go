// Command proxyctl is an operator CLI for the admin API exposed by proxyd.
package main

import (
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var (
	version = "dev"

	flagURL   string
	flagToken string
	flagFmt   string

	httpClient = &http.Client{Timeout: 10 * time.Second}
)

func main() {
	rootCmd := &cobra.Command{
		Use:          "proxyctl",
		Short:        "Operator CLI for the reverse proxy's admin API",
		Version:      version,
		SilenceUsage: true,
	}
	rootCmd.SetVersionTemplate("{{.Version}}\n")

	rootCmd.PersistentFlags().StringVar(&flagURL, "url", envOrDefault("PROXYCTL_URL", "http://localhost:9090"), "admin API base URL (env: PROXYCTL_URL)")
	rootCmd.PersistentFlags().StringVar(&flagToken, "token", os.Getenv("PROXYCTL_TOKEN"), "admin bearer token (env: PROXYCTL_TOKEN)")
	rootCmd.PersistentFlags().StringVar(&flagFmt, "format", "json", "output format: json|table|quiet")

	rootCmd.AddCommand(newStatusCmd())
	rootCmd.AddCommand(newCacheCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func fatal(msg string, err error) {
	fmt.Fprintf(os.Stderr, "Error: %s: %v\n", msg, err)
	os.Exit(1)
}
