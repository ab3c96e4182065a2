package commands

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/dyluth/keyhunt/internal/printer"
	"github.com/dyluth/keyhunt/pkg/oracle"
	"github.com/spf13/cobra"
)

func newDecryptCmd() *cobra.Command {
	var keyFlag string

	cmd := &cobra.Command{
		Use:   "decrypt HEX",
		Short: "Decrypt a hex ciphertext with a DES key",
		Long: `Decrypt a ciphertext printed by 'keyhunt encrypt' and print the text
without its zero padding.

Examples:
  keyhunt decrypt "$(keyhunt encrypt message.txt --key 537)" --key 536`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := parseKey(keyFlag)
			if err != nil {
				return printer.Error("invalid key", err.Error(), nil)
			}

			ciphertext, err := hex.DecodeString(strings.TrimSpace(args[0]))
			if err != nil {
				return printer.Error("invalid ciphertext", err.Error(), []string{"Pass the hex output of 'keyhunt encrypt'"})
			}

			plaintext, err := oracle.Decrypt(key, ciphertext)
			if err != nil {
				return printer.Error("invalid ciphertext", err.Error(), nil)
			}

			fmt.Fprintln(cmd.OutOrStdout(), printer.Plaintext(plaintext))
			return nil
		},
	}

	cmd.Flags().StringVar(&keyFlag, "key", "", "DES key (decimal or 0x-prefixed hex)")
	_ = cmd.MarkFlagRequired("key")
	return cmd
}
