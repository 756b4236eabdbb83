package cli

import (
	"strconv"
	"strings"
	"time"

	"booklet-cli/internal/reconcile"
	"booklet-cli/internal/store"

	"github.com/spf13/cobra"
)

func newConfigCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show or edit ~/.booklet/config.yaml",
	}
	cmd.AddCommand(newConfigShowCmd(app))
	cmd.AddCommand(newConfigSetCmd(app))
	return cmd
}

type configView struct {
	Path           string `json:"path"`
	DBPath         string `json:"dbPath"`
	RemoteURL      string `json:"remoteUrl,omitempty"`
	BulkReplace    bool   `json:"bulkReplace"`
	DisplaceOffset int    `json:"displaceOffset"`
	PageSize       int    `json:"pageSize"`
	HTTPTimeout    string `json:"httpTimeout"`
	LogLevel       string `json:"logLevel,omitempty"`
}

func newConfigShowCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := app.config()
			path, err := store.ConfigPath()
			if err != nil {
				return writeErr(cmd, err)
			}
			db := strings.TrimSpace(app.DBPath)
			if db == "" {
				if db, err = cfg.EffectiveDBPath(); err != nil {
					return writeErr(cmd, err)
				}
			}
			offset := cfg.DisplaceOffset
			if offset <= 0 {
				offset = reconcile.DefaultDisplaceOffset
			}
			return writeOut(cmd, app, map[string]any{"data": configView{
				Path:           path,
				DBPath:         db,
				RemoteURL:      app.remoteURL(),
				BulkReplace:    cfg.BulkReplaceEnabled(),
				DisplaceOffset: offset,
				PageSize:       cfg.EffectivePageSize(),
				HTTPTimeout:    cfg.EffectiveHTTPTimeout().String(),
				LogLevel:       cfg.EffectiveLogLevel(),
			}})
		},
	}
}

var configKeys = []string{"db_path", "remote_url", "bulk_replace", "displace_offset", "page_size", "http_timeout", "log.level"}

func setConfigValue(cfg *store.Config, key, value string) error {
	value = strings.TrimSpace(value)
	switch key {
	case "db_path":
		cfg.DBPath = value
	case "remote_url":
		cfg.RemoteURL = value
	case "bulk_replace":
		v, err := strconv.ParseBool(value)
		if err != nil {
			return errUsage("bulk_replace: want true|false, got %q", value)
		}
		cfg.BulkReplace = &v
	case "displace_offset", "page_size":
		n, err := strconv.Atoi(value)
		if err != nil || n < 0 {
			return errUsage("%s: want a non-negative integer, got %q", key, value)
		}
		if key == "page_size" {
			cfg.PageSize = n
		} else {
			cfg.DisplaceOffset = n
		}
	case "http_timeout":
		d, err := time.ParseDuration(value)
		if err != nil {
			return errUsage("http_timeout: %v", err)
		}
		cfg.HTTPTimeout = store.Duration(d)
	case "log.level":
		cfg.Log.Level = value
	default:
		return errUsage("unknown config key %q (known: %s)", key, strings.Join(configKeys, ", "))
	}
	return nil
}

func newConfigSetCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Set a config value",
		Long:  "Keys: " + strings.Join(configKeys, ", "),
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := app.config()
			if err := setConfigValue(cfg, strings.TrimSpace(args[0]), args[1]); err != nil {
				return writeErr(cmd, err)
			}
			if err := store.SaveConfig(cfg); err != nil {
				return writeErr(cmd, err)
			}
			path, _ := store.ConfigPath()
			return writeOut(cmd, app, map[string]any{"data": map[string]any{"path": path, "key": args[0], "value": strings.TrimSpace(args[1])}})
		},
	}
}
