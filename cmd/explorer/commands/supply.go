package commands

import (
	xe "github.com/allfeat/explorer"
	"github.com/allfeat/explorer/cmd/explorer/setup"
	"github.com/spf13/cobra"
)

type amountOutput struct {
	Amount xe.AmountBlockchain `json:"amount"`
	Human  string              `json:"human"`
}

func human(env *setup.Env, amount xe.AmountBlockchain) amountOutput {
	return amountOutput{
		Amount: amount,
		Human:  xe.FormatCompact(amount, int32(env.Config.Network.Decimals), env.Config.Network.Symbol),
	}
}

func CmdIssuance() *cobra.Command {
	return &cobra.Command{
		Use:   "issuance",
		Short: "Total issuance at the latest finalized block.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			env := setup.UnwrapEnv(cmd.Context())
			svc, err := env.Service(cmd.Context())
			if err != nil {
				return err
			}
			issuance, err := svc.GetTotalIssuance(cmd.Context())
			if err != nil {
				return err
			}
			return printOut(cmd.OutOrStdout(), env.Args.Format, map[string]any{
				"total_issuance": human(env, issuance),
			})
		},
	}
}

func CmdCirculating() *cobra.Command {
	return &cobra.Command{
		Use:   "circulating",
		Short: "Circulating supply, with the distributed and locked totals it is derived from.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			env := setup.UnwrapEnv(cmd.Context())
			svc, err := env.Service(cmd.Context())
			if err != nil {
				return err
			}
			supply, err := svc.GetSupply(cmd.Context())
			if err != nil {
				return err
			}
			return printOut(cmd.OutOrStdout(), env.Args.Format, map[string]any{
				"block":             supply.Block,
				"total_distributed": human(env, supply.TotalDistributed),
				"locked":            human(env, supply.Locked),
				"circulating":       human(env, supply.Circulating),
			})
		},
	}
}

func CmdEpoch() *cobra.Command {
	return &cobra.Command{
		Use:   "epoch",
		Short: "Vesting epoch duration in blocks.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			env := setup.UnwrapEnv(cmd.Context())
			svc, err := env.Service(cmd.Context())
			if err != nil {
				return err
			}
			epoch, err := svc.GetEpochDuration(cmd.Context())
			if err != nil {
				return err
			}
			return printOut(cmd.OutOrStdout(), env.Args.Format, map[string]any{
				"epoch_duration": epoch,
				"blocks":         xe.FormatBlocks(uint64(epoch)),
				"human":          xe.FormatBlocksDuration(epoch),
			})
		},
	}
}
