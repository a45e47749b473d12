package commands

import (
	"fmt"
	"os"

	"github.com/allfeat/explorer/address"
	"github.com/allfeat/explorer/cmd/explorer/setup"
	"github.com/allfeat/explorer/identicon"
	"github.com/allfeat/explorer/pkg/hex"
	"github.com/spf13/cobra"
)

func CmdAddress() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "address",
		Short: "Encode and decode SS58 addresses.",
	}
	cmd.AddCommand(CmdAddressEncode())
	cmd.AddCommand(CmdAddressDecode())
	return cmd
}

func CmdAddressEncode() *cobra.Command {
	return &cobra.Command{
		Use:   "encode <public-key-hex>",
		Short: "Encode a 32 byte public key for the configured network.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env := setup.UnwrapEnv(cmd.Context())
			publicKey, err := hex.DecodeString(args[0])
			if err != nil {
				return fmt.Errorf("invalid public key hex: %v", err)
			}
			builder, err := address.NewAddressBuilder(env.Prefix())
			if err != nil {
				return err
			}
			addr, err := builder.GetAddressFromPublicKey(publicKey)
			if err != nil {
				return err
			}
			return printOut(cmd.OutOrStdout(), env.Args.Format, map[string]any{
				"address": addr,
				"prefix":  env.Prefix(),
			})
		},
	}
}

func CmdAddressDecode() *cobra.Command {
	return &cobra.Command{
		Use:   "decode <address>",
		Short: "Decode an SS58 address of any network into its public key and prefix.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env := setup.UnwrapEnv(cmd.Context())
			key, prefix, err := address.Decode(args[0])
			if err != nil {
				return err
			}
			return printOut(cmd.OutOrStdout(), env.Args.Format, map[string]any{
				"public_key": hex.Hex(key.Bytes()),
				"prefix":     prefix,
				"network":    prefix == env.Prefix(),
			})
		},
	}
}

func CmdIdenticon() *cobra.Command {
	var size int
	var out string
	cmd := &cobra.Command{
		Use:   "identicon <address>",
		Short: "Render the SVG identicon of an address.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, _, err := address.Decode(args[0]); err != nil {
				return err
			}
			svg := identicon.SVG(args[0], size)
			if out != "" {
				return os.WriteFile(out, svg, 0o644)
			}
			_, err := cmd.OutOrStdout().Write(append(svg, '\n'))
			return err
		},
	}
	cmd.Flags().IntVar(&size, "size", identicon.DefaultSize, "Rendered size in pixels.")
	cmd.Flags().StringVarP(&out, "out", "o", "", "Write the SVG to a file instead of stdout.")
	return cmd
}
