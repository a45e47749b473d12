package commands

import (
	"github.com/allfeat/explorer/cmd/explorer/setup"
	"github.com/spf13/cobra"
)

func CmdBalance() *cobra.Command {
	return &cobra.Command{
		Use:   "balance <address>",
		Short: "Free, reserved and frozen balance of an account.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env := setup.UnwrapEnv(cmd.Context())
			// reject foreign addresses before touching the ledger
			if _, err := env.ParseAddress(args[0]); err != nil {
				return err
			}
			svc, err := env.Service(cmd.Context())
			if err != nil {
				return err
			}
			balance, err := svc.GetBalanceOf(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printOut(cmd.OutOrStdout(), env.Args.Format, map[string]any{
				"address":  args[0],
				"free":     human(env, balance.Free),
				"reserved": human(env, balance.Reserved),
				"frozen":   human(env, balance.Frozen),
			})
		},
	}
}

func CmdTreasury() *cobra.Command {
	return &cobra.Command{
		Use:   "treasury",
		Short: "Balance of the treasury account.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			env := setup.UnwrapEnv(cmd.Context())
			svc, err := env.Service(cmd.Context())
			if err != nil {
				return err
			}
			treasury, err := svc.GetTreasuryBalance(cmd.Context())
			if err != nil {
				return err
			}
			return printOut(cmd.OutOrStdout(), env.Args.Format, map[string]any{
				"address":  treasury.Address,
				"free":     human(env, treasury.Free),
				"reserved": human(env, treasury.Reserved),
				"frozen":   human(env, treasury.Frozen),
			})
		},
	}
}

func CmdAllocations() *cobra.Command {
	return &cobra.Command{
		Use:   "allocations [address]",
		Short: "List every envelope, or the vesting allocations of one account.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env := setup.UnwrapEnv(cmd.Context())
			if len(args) > 0 {
				if _, err := env.ParseAddress(args[0]); err != nil {
					return err
				}
			}
			svc, err := env.Service(cmd.Context())
			if err != nil {
				return err
			}
			if len(args) == 0 {
				envelopes, err := svc.GetAllocations(cmd.Context())
				if err != nil {
					return err
				}
				return printOut(cmd.OutOrStdout(), env.Args.Format, envelopes)
			}
			allocations, err := svc.GetAllocationsOf(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printOut(cmd.OutOrStdout(), env.Args.Format, allocations)
		},
	}
}

func CmdEnvelope() *cobra.Command {
	return &cobra.Command{
		Use:   "envelope <id>",
		Short: "Configuration and distribution of one envelope, by slug, name or index.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env := setup.UnwrapEnv(cmd.Context())
			svc, err := env.Service(cmd.Context())
			if err != nil {
				return err
			}
			envelope, err := svc.GetEnvelope(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printOut(cmd.OutOrStdout(), env.Args.Format, envelope)
		},
	}
}
