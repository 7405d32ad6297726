package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/99minutos/session-security/internal/infrastructure/hasher"
)

var hashSecretCmd = &cobra.Command{
	Use:   "hash-secret [secret]",
	Short: "Print a bcrypt hash for seeding accounts",
	Long: `Print the bcrypt hash of a secret. The secret is read from the first
argument, or from stdin when no argument is given.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runHashSecret,
}

var hashCost int

func init() {
	hashSecretCmd.Flags().IntVar(&hashCost, "cost", 10, "bcrypt cost")

	rootCmd.AddCommand(hashSecretCmd)
}

func runHashSecret(cmd *cobra.Command, args []string) error {
	secret := ""
	if len(args) == 1 {
		secret = args[0]
	} else {
		line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
		if err != nil && line == "" {
			return fmt.Errorf("read secret: %w", err)
		}
		secret = strings.TrimRight(line, "\r\n")
	}
	if secret == "" {
		return errors.New("secret must not be empty")
	}

	hash, err := hasher.NewBcrypt(hashCost).Encode(secret)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), hash)
	return nil
}
