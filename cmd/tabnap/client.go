package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"pkt.systems/tabnap/httpapi"
	"pkt.systems/tabnap/internal/appconfig"
	"pkt.systems/tabnap/schema"
)

const clientTimeout = 10 * time.Second

var errNoServer = errors.New("tabnap server is not reachable")

// apiClient talks to the HTTP API of a running serve process.
type apiClient struct {
	base string
	http *http.Client
}

func newAPIClient(cfgPath, addr string) (*apiClient, error) {
	base := strings.TrimSpace(addr)
	if base == "" {
		cfg, err := appconfig.Load(cfgPath)
		if err != nil {
			return nil, err
		}
		base = cfg.HTTP.BaseURL
		if base == "" {
			base = cfg.HTTP.Addr
		}
	}
	if !strings.Contains(base, "://") {
		base = "http://" + base
	}
	return &apiClient{
		base: strings.TrimRight(base, "/"),
		http: &http.Client{Timeout: clientTimeout},
	}, nil
}

func (c *apiClient) do(ctx context.Context, method, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", errNoServer, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return err
	}
	if resp.StatusCode >= 300 {
		var apiErr struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("%s %s: %s", method, path, apiErr.Error)
		}
		return fmt.Errorf("%s %s: %s", method, path, resp.Status)
	}
	if out == nil || len(body) == 0 {
		return nil
	}
	return json.Unmarshal(body, out)
}

func (c *apiClient) Status(ctx context.Context) (httpapi.StatusPayload, error) {
	var payload httpapi.StatusPayload
	err := c.do(ctx, http.MethodGet, "/api/status", &payload)
	return payload, err
}

func (c *apiClient) Execute(ctx context.Context, name schema.CommandName) error {
	return c.do(ctx, http.MethodPost, "/api/commands/"+url.PathEscape(string(name)), nil)
}

func (c *apiClient) Commands(ctx context.Context) ([]schema.CommandName, error) {
	var payload struct {
		Commands []schema.CommandName `json:"commands"`
	}
	err := c.do(ctx, http.MethodGet, "/api/commands", &payload)
	return payload.Commands, err
}

func newCommandCmd() *cobra.Command {
	var cfgPath string
	var addr string
	var list bool
	cmd := &cobra.Command{
		Use:   "command [name]",
		Short: "Run a named command on the running server",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newAPIClient(cfgPath, addr)
			if err != nil {
				return err
			}
			if list || len(args) == 0 {
				names, err := client.Commands(cmd.Context())
				if err != nil {
					return err
				}
				for _, name := range names {
					if _, err := fmt.Fprintln(cmd.OutOrStdout(), name); err != nil {
						return err
					}
				}
				return nil
			}
			name := schema.CommandName(args[0])
			if !knownCommand(name) {
				return fmt.Errorf("%w: %s", schema.ErrUnknownCommand, name)
			}
			return client.Execute(cmd.Context(), name)
		},
	}
	cmd.Flags().StringVarP(&cfgPath, "config", "c", "", "path to config file")
	cmd.Flags().StringVar(&addr, "addr", "", "server address (defaults to http.addr from config)")
	cmd.Flags().BoolVar(&list, "list", false, "list command names")
	return cmd
}

func knownCommand(name schema.CommandName) bool {
	for _, known := range schema.Commands {
		if known == name {
			return true
		}
	}
	return false
}

func newStatusCmd() *cobra.Command {
	var cfgPath string
	var addr string
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the status of the active tab",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newAPIClient(cfgPath, addr)
			if err != nil {
				return err
			}
			payload, err := client.Status(cmd.Context())
			if err != nil {
				return err
			}
			return writeStatus(cmd.OutOrStdout(), payload, asJSON)
		},
	}
	cmd.Flags().StringVarP(&cfgPath, "config", "c", "", "path to config file")
	cmd.Flags().StringVar(&addr, "addr", "", "server address (defaults to http.addr from config)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print raw json")
	return cmd
}

func writeStatus(w io.Writer, payload httpapi.StatusPayload, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(payload)
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	rows := [][2]string{
		{"status", string(payload.Status)},
		{"icon", string(payload.Icon)},
		{"window", fmt.Sprint(payload.WindowID)},
		{"hotkey", payload.Hotkey},
		{"notice", fmt.Sprint(payload.NoticePending)},
		{"queue", fmt.Sprintf("%d queued, %d running, %d dispatched", payload.Queue.Queued, payload.Queue.Running, payload.Queue.Dispatched)},
		{"version", payload.Version},
	}
	for _, row := range rows {
		if _, err := fmt.Fprintf(tw, "%s\t%s\n", row[0], row[1]); err != nil {
			return err
		}
	}
	return tw.Flush()
}
