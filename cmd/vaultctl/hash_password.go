package main

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/geocoder89/vaulthub/internal/security"
	"github.com/samber/oops"
	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"
)

// NewHashPasswordCmd prints a bcrypt hash, e.g. for seeding an account by hand.
func NewHashPasswordCmd() *cobra.Command {
	var cost int

	cmd := &cobra.Command{
		Use:   "hash-password [password]",
		Short: "Print the bcrypt hash of a password",
		Long:  `Print the bcrypt hash of the given password. With no argument the password is read from the first line of stdin.`,
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			plain := ""
			if len(args) == 1 {
				plain = args[0]
			} else {
				line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if err != nil && line == "" {
					return oops.Code("INPUT_INVALID").With("operation", "read password").Wrap(err)
				}
				plain = strings.TrimRight(line, "\r\n")
			}

			if plain == "" {
				return oops.Code("INPUT_INVALID").Errorf("password is empty")
			}

			hash, err := security.NewBcryptHasher(cost).Hash(plain)
			if err != nil {
				return oops.With("operation", "hash password").Wrap(err)
			}

			fmt.Fprintln(cmd.OutOrStdout(), hash)
			return nil
		},
	}

	cmd.Flags().IntVar(&cost, "cost", bcrypt.DefaultCost, "bcrypt cost")

	return cmd
}
