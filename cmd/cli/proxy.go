package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	tilehttp "github.com/geoscraper/tile-service/internal/http"
)

var proxyURL string

var proxyCheckCmd = &cobra.Command{
	Use:   "proxy-check",
	Short: "Probe the configured outbound proxy",
	Args:  cobra.NoArgs,
	RunE:  runProxyCheck,
}

func init() {
	rootCmd.AddCommand(proxyCheckCmd)

	proxyCheckCmd.Flags().StringVar(&proxyURL, "proxy", "", "Proxy URL (default from config)")
}

func runProxyCheck(cmd *cobra.Command, args []string) error {
	target := tilehttp.ProxyProbeURL
	proxy := proxyURL
	if cfg != nil {
		if proxy == "" {
			proxy = cfg.Fetch.ProxyURL
		}
		if cfg.Fetch.ProxyProbeURL != "" {
			target = cfg.Fetch.ProxyProbeURL
		}
	}

	status := tilehttp.CheckProxy(context.Background(), proxy, target)
	switch status.Status {
	case "disabled":
		fmt.Fprintln(cmd.OutOrStdout(), "No proxy configured")
	case "ok":
		fmt.Fprintf(cmd.OutOrStdout(), "Proxy %s OK: HTTP %d in %dms\n", status.Proxy, status.HTTPStatus, status.LatencyMs)
	default:
		return fmt.Errorf("proxy %s failed: %s", status.Proxy, status.Error)
	}
	return nil
}
