package commands

import (
	"encoding/hex"
	"errors"
	"fmt"
	"os"

	"github.com/dyluth/keyhunt/internal/printer"
	"github.com/dyluth/keyhunt/pkg/oracle"
	"github.com/spf13/cobra"
)

func newEncryptCmd() *cobra.Command {
	var keyFlag string

	cmd := &cobra.Command{
		Use:   "encrypt FILE",
		Short: "Encrypt a file with a DES key and print the ciphertext as hex",
		Long: `Encrypt the contents of FILE with the given key, zero-padded to the
8-byte DES block, and print the ciphertext as hex.

Examples:
  keyhunt encrypt message.txt --key 537
  keyhunt encrypt message.txt --key 0x133457799BBCDFF1`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := parseKey(keyFlag)
			if err != nil {
				return printer.Error("invalid key", err.Error(), nil)
			}

			plaintext, err := os.ReadFile(args[0])
			if err != nil {
				return printer.Error("cannot read input file", err.Error(), nil)
			}

			ciphertext, err := oracle.Encrypt(key, plaintext)
			if err != nil {
				if errors.Is(err, oracle.ErrWeakKey) {
					return weakKeyError(key)
				}
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), hex.EncodeToString(ciphertext))
			return nil
		},
	}

	cmd.Flags().StringVar(&keyFlag, "key", "", "DES key (decimal or 0x-prefixed hex)")
	_ = cmd.MarkFlagRequired("key")
	return cmd
}

func weakKeyError(key uint64) error {
	return printer.Error(
		"weak key",
		fmt.Sprintf("Key %d is a DES weak or semi-weak key once parity bits are ignored.", key),
		[]string{"Choose another key"},
	)
}
