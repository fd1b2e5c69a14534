package cmd

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

const healthTimeout = 5 * time.Second

func NewHealthCmd(app *BoardCtlApp) *cobra.Command {
	var baseURL string

	cmd := &cobra.Command{
		Use:   "health",
		Short: "Query a running board's preview server for its health",
		RunE: func(cmd *cobra.Command, args []string) error {
			if baseURL == "" {
				cfg, err := app.Config()
				if err != nil {
					return err
				}
				baseURL = previewURL(cfg.File.PreviewAddr)
			}
			if baseURL == "" {
				return errors.New("no preview server: pass --url or set preview_addr")
			}

			client := &http.Client{Timeout: healthTimeout}
			request, err := http.NewRequestWithContext(cmd.Context(), http.MethodGet, strings.TrimSuffix(baseURL, "/")+"/healthz", nil)
			if err != nil {
				return err
			}

			response, err := client.Do(request)
			if err != nil {
				return err
			}
			defer response.Body.Close()

			body, _ := io.ReadAll(io.LimitReader(response.Body, 4096))
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", response.Status, strings.TrimSpace(string(body)))
			if response.StatusCode != http.StatusOK {
				return fmt.Errorf("board unhealthy: %s", response.Status)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&baseURL, "url", "", "Preview server base URL, overrides preview_addr")

	return cmd
}

// previewURL turns a listen address such as ":8080" into a local URL.
func previewURL(addr string) string {
	if addr == "" {
		return ""
	}
	if strings.HasPrefix(addr, ":") {
		addr = "localhost" + addr
	}
	return "http://" + addr
}
