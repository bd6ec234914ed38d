package config

import "github.com/spf13/cobra"

// RegisterFlags registers common CLI flags on the provided root command
func RegisterFlags(cmd *cobra.Command) {
	if cmd == nil {
		return
	}

	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable debug logging")
	cmd.PersistentFlags().BoolP("quiet", "q", false, "Suppress all output except errors")
	cmd.PersistentFlags().Bool("json", false, "Log in JSON format")
	cmd.PersistentFlags().String("config", "", "Path to YAML configuration file (optional)")
	cmd.PersistentFlags().String("renderer", "", "Renderer backend: chrome, rod, or static")
	cmd.PersistentFlags().String("detail-policy", "", "When to visit lot detail pages: always or auto")
	cmd.PersistentFlags().String("timeout", "", "Per-navigation timeout (e.g., 30s)")
	cmd.PersistentFlags().String("user-agent", "", "Custom user agent string")
	cmd.PersistentFlags().StringSlice("proxy", nil, "HTTP/SOCKS5 proxy, repeatable (e.g., http://localhost:8080)")
	cmd.PersistentFlags().StringArrayP("header", "H", nil, "Extra request header (e.g., -H \"Accept-Language: en-US\")")
	cmd.PersistentFlags().Bool("headed", false, "Show the browser window")
	cmd.PersistentFlags().String("chrome-path", "", "Path to the Chrome/Chromium binary")
	cmd.PersistentFlags().Float64("rate-limit", 0, "Navigations per second per host")
}
