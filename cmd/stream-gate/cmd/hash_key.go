package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Stream-Gate/Streamgate/internal/domain/auth"
)

var hashKeyCmd = &cobra.Command{
	Use:   "hash-key [admin-key]",
	Short: "Generate an argon2id hash for the admin API key",
	Long: `Generate an argon2id hash of an admin key for use in config.

The output is a PHC-format argon2id string which can be used directly
in the admin.api_key_hash field.

When no argument is given the key is read from stdin, which keeps it
out of shell history:

  echo -n "my-secret-key" | stream-gate hash-key

Example:
  stream-gate hash-key "my-secret-key"
  # Output: $argon2id$v=19$m=...`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var key string
		if len(args) == 1 {
			key = args[0]
		} else {
			reader := bufio.NewReader(os.Stdin)
			line, err := reader.ReadString('\n')
			if err != nil && line == "" {
				return fmt.Errorf("failed to read key from stdin: %w", err)
			}
			key = strings.TrimRight(line, "\r\n")
		}
		if key == "" {
			return fmt.Errorf("admin key must not be empty")
		}

		hash, err := auth.HashAdminKey(key)
		if err != nil {
			return fmt.Errorf("failed to hash key: %w", err)
		}
		fmt.Println(hash)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(hashKeyCmd)
}
