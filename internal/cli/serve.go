package cli

import (
	"context"
	"errors"
	"net"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"booklet-cli/internal/web"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newServeCmd(app *App) *cobra.Command {
	var addr string
	var noBulk bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the local booklet store over HTTP",
		Long: strings.TrimSpace(`
Serve the local sqlite store as a JSON API that other booklet clients can target with --remote.

--no-bulk-replace turns off PUT /booklets/{id}/items so clients have to use the
item-by-item fallback.
`),
		Example: strings.TrimSpace(`
booklet serve --addr 127.0.0.1:8080
booklet serve --addr :8080 --no-bulk-replace
`),
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			listenAddr := strings.TrimSpace(addr)
			if listenAddr == "" {
				return writeErr(cmd, errors.New("serve: missing --addr"))
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			st, err := app.openStore(ctx)
			if err != nil {
				return writeErr(cmd, err)
			}
			bulk := app.config().BulkReplaceEnabled() && !noBulk
			srv, err := web.NewServer(web.ServerConfig{
				Addr:        listenAddr,
				BulkReplace: bulk,
				PageSize:    app.config().EffectivePageSize(),
			}, st, app.logger())
			if err != nil {
				return writeErr(cmd, err)
			}

			ln, err := net.Listen("tcp", listenAddr)
			if err != nil {
				return writeErr(cmd, err)
			}
			actual := ln.Addr().String()
			_ = writeOut(cmd, app, map[string]any{
				"data": map[string]any{
					"addr":        actual,
					"url":         "http://" + actual + "/",
					"bulkReplace": bulk,
				},
			})
			app.logger().Info("serving", zap.String("addr", actual), zap.Bool("bulk_replace", bulk))

			if err := srv.Serve(ctx, ln); err != nil && !errors.Is(err, context.Canceled) {
				return writeErr(cmd, err)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", envOr("BOOKLET_ADDR", "127.0.0.1:8080"), "Listen address")
	cmd.Flags().BoolVar(&noBulk, "no-bulk-replace", false, "Disable the atomic replace endpoint")
	return cmd
}
