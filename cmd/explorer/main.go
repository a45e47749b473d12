package main

import (
	"os"

	"github.com/allfeat/explorer/cmd/explorer/commands"
	"github.com/allfeat/explorer/cmd/explorer/setup"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func CmdExplorer() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "explorer",
		Short:        "Explore the Allfeat token economy",
		Args:         cobra.ExactArgs(0),
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			args, err := setup.ArgsFromCmd(cmd)
			if err != nil {
				return err
			}
			env, err := setup.NewEnv(args)
			if err != nil {
				return err
			}
			setup.ConfigureLogger(env)
			logrus.WithFields(logrus.Fields{
				"prefix": env.Prefix(),
				"memory": args.Memory,
			}).Debug("explorer")
			cmd.SetContext(setup.WrapEnv(cmd.Context(), env))
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, _ []string) {
			setup.UnwrapEnv(cmd.Context()).Close()
		},
	}
	setup.AddArgs(cmd)

	cmd.AddCommand(commands.CmdServe())
	cmd.AddCommand(commands.CmdIssuance())
	cmd.AddCommand(commands.CmdCirculating())
	cmd.AddCommand(commands.CmdBalance())
	cmd.AddCommand(commands.CmdTreasury())
	cmd.AddCommand(commands.CmdAllocations())
	cmd.AddCommand(commands.CmdEnvelope())
	cmd.AddCommand(commands.CmdEpoch())
	cmd.AddCommand(commands.CmdAddress())
	cmd.AddCommand(commands.CmdIdenticon())
	cmd.AddCommand(commands.CmdBlocks())

	return cmd
}

func main() {
	if err := CmdExplorer().Execute(); err != nil {
		os.Exit(1)
	}
}
