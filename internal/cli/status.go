package cli

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/hyeon/webgate/internal/config"
)

var statusURL string

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show gateway status",
	Long:  `Poll the gateway's /health endpoint and print the result.`,
	RunE:  runStatus,
}

func init() {
	statusCmd.Flags().StringVar(&statusURL, "url", "", "gateway base URL (default derived from config)")
	rootCmd.AddCommand(statusCmd)
}

type healthPayload struct {
	Status    string `json:"status"`
	UptimeSec int64  `json:"uptime_seconds"`
	Connected int    `json:"connected_clients"`
	Active    int    `json:"active_clients"`
	Tools     int    `json:"tools"`
}

func runStatus(cmd *cobra.Command, args []string) error {
	baseURL := statusURL
	if baseURL == "" {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		baseURL = fmt.Sprintf("http://%s:%d", cfg.Server.Host, cfg.Server.Port)
	}

	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get(baseURL + "/health")
	if err != nil {
		fmt.Fprintln(cmd.OutOrStdout(), "Status: unreachable")
		return nil
	}
	defer resp.Body.Close()

	var health healthPayload
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		return fmt.Errorf("decode health response: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Status: %s\n", health.Status)
	fmt.Fprintf(out, "Uptime: %s\n", formatDuration(time.Duration(health.UptimeSec)*time.Second))
	fmt.Fprintf(out, "Clients: %d connected, %d active\n", health.Connected, health.Active)
	fmt.Fprintf(out, "Tools: %d\n", health.Tools)
	return nil
}

func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	s := d / time.Second

	if h > 0 {
		return fmt.Sprintf("%dh%dm%ds", h, m, s)
	}
	if m > 0 {
		return fmt.Sprintf("%dm%ds", m, s)
	}
	return fmt.Sprintf("%ds", s)
}
