package commands

import (
	"encoding/json"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/allfeat/explorer/cmd/explorer/setup"
	"github.com/allfeat/explorer/server"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func CmdServe() *cobra.Command {
	var listen string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the explorer HTTP API.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			env := setup.UnwrapEnv(cmd.Context())
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			trusted, err := server.ParseTrustedProxies(env.Config.Http.TrustedProxies)
			if err != nil {
				return err
			}
			svc, err := env.Service(ctx)
			if err != nil {
				return err
			}
			if listen == "" {
				listen = env.Config.Http.Listen
			}
			srv := server.New(svc, server.Options{
				RatePerSecond:  env.Config.Http.RatePerSecond,
				Burst:          env.Config.Http.Burst,
				TrustedProxies: trusted,
			})
			logrus.WithFields(logrus.Fields{
				"prefix":    env.Prefix(),
				"cache_ttl": env.Config.Cache.TTL,
			}).Info("starting explorer")
			return srv.ListenAndServe(ctx, listen)
		},
	}
	cmd.Flags().StringVar(&listen, "listen", "", "Listen address. Overrides http.listen.")
	return cmd
}

func CmdBlocks() *cobra.Command {
	var count int
	cmd := &cobra.Command{
		Use:   "blocks",
		Short: "Follow finalized blocks, one JSON line per block.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			env := setup.UnwrapEnv(cmd.Context())
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			svc, err := env.Service(ctx)
			if err != nil {
				return err
			}
			events, err := svc.StreamBlockNumbers(ctx)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			seen := 0
			for ev := range events {
				if ev.Err != nil {
					return ev.Err
				}
				if err := enc.Encode(ev); err != nil {
					return fmt.Errorf("could not write block: %v", err)
				}
				seen++
				if count > 0 && seen >= count {
					return nil
				}
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&count, "count", "n", 0, "Stop after this many blocks. 0 follows forever.")
	return cmd
}
