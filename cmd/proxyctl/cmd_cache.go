package main

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/spf13/cobra"
)

type purgeResponse struct {
	Purged bool   `json:"purged"`
	Reason string `json:"reason,omitempty"`
}

func newCacheCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Response cache administration",
	}
	cmd.AddCommand(newCachePurgeCmd())
	return cmd
}

func newCachePurgeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "purge",
		Short: "Purge the response cache",
		Run: func(cmd *cobra.Command, args []string) {
			if flagToken == "" {
				fatal("purge", fmt.Errorf("an admin token is required (--token or PROXYCTL_TOKEN)"))
			}

			req, err := http.NewRequest(http.MethodPost, flagURL+"/admin/cache/purge", nil)
			if err != nil {
				fatal("purge", err)
			}
			req.Header.Set("Authorization", "Bearer "+flagToken)

			resp, err := httpClient.Do(req)
			if err != nil {
				fatal("purge", err)
			}
			defer resp.Body.Close()

			if resp.StatusCode == http.StatusUnauthorized {
				fatal("purge", fmt.Errorf("admin token rejected"))
			}
			if resp.StatusCode != http.StatusOK {
				fatal("purge", fmt.Errorf("admin API returned %s", resp.Status))
			}

			var result purgeResponse
			if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
				fatal("purge", err)
			}

			if result.Purged {
				output(result, "purged")
			} else {
				output(result, "not purged: "+result.Reason)
			}
		},
	}
}
