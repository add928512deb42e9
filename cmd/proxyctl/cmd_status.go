package main

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/spf13/cobra"
)

type statusResponse struct {
	Version      string   `json:"version"`
	Backends     []string `json:"backends"`
	CacheEntries int      `json:"cache_entries"`
	CacheBytes   int64    `json:"cache_bytes"`
}

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show backend configuration and cache occupancy",
		Run: func(cmd *cobra.Command, args []string) {
			req, err := http.NewRequest(http.MethodGet, flagURL+"/admin/status", nil)
			if err != nil {
				fatal("status", err)
			}

			resp, err := httpClient.Do(req)
			if err != nil {
				fatal("status", err)
			}
			defer resp.Body.Close()

			if resp.StatusCode != http.StatusOK {
				fatal("status", fmt.Errorf("admin API returned %s", resp.Status))
			}

			var status statusResponse
			if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
				fatal("status", err)
			}

			if flagFmt == "table" {
				formatTable(
					[]string{"BACKEND"},
					backendRows(status.Backends),
				)
				fmt.Printf("\nversion=%s cache_entries=%d cache_bytes=%d\n",
					status.Version, status.CacheEntries, status.CacheBytes)
				return
			}
			output(status, status.Version)
		},
	}
}

func backendRows(backends []string) [][]string {
	rows := make([][]string, len(backends))
	for i, b := range backends {
		rows[i] = []string{b}
	}
	return rows
}
