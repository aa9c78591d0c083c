package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hanogt/hanogt-bot/internal/enforce"
	"github.com/hanogt/hanogt-bot/internal/output"
)

var (
	flagBanReason   string
	flagBanCodeFile string
)

func init() {
	banCmd.Flags().StringVarP(&flagBanReason, "reason", "r", "", "reason recorded on the ban (required)")
	banCmd.Flags().StringVar(&flagBanCodeFile, "code", "", "file holding the offending code (\"-\" for stdin)")

	rootCmd.AddCommand(banCmd)
	rootCmd.AddCommand(checkCmd)
}

var banCmd = &cobra.Command{
	Use:   "ban <email>",
	Short: "Permanently ban an identity",
	Long: `Permanently ban an identity.

Writes the ban record and flags the user record in one transaction, and
appends a ban event to the security trail. Bans are permanent; re-banning
an already banned identity overwrites the stored reason and code.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		email := args[0]
		if flagBanReason == "" {
			return fmt.Errorf("--reason is required")
		}

		var code string
		if flagBanCodeFile != "" {
			var err error
			code, err = readCode(cmd.InOrStdin(), []string{flagBanCodeFile})
			if err != nil {
				return err
			}
		}

		database, err := openDB()
		if err != nil {
			return err
		}
		defer database.Close()

		svc := newEnforcer(database)
		if !svc.Ban(cmd.Context(), email, flagBanReason, code) {
			return fmt.Errorf("banning %s failed", email)
		}
		svc.Record(cmd.Context(), email, enforce.EventBan, nil, code)

		out := output.New(output.Format(GetOutput()))
		if GetOutput() == "text" {
			out.Success(fmt.Sprintf("%s permanently banned", email))
			return nil
		}
		return out.Write(map[string]any{
			"status": "banned",
			"email":  email,
			"reason": flagBanReason,
		})
	},
}

var checkCmd = &cobra.Command{
	Use:   "check <email>",
	Short: "Check whether an identity is banned",
	Long: `Check the ban status of an identity.

The ban record store is authoritative; the denormalized user flag is
consulted when no record exists. On a store read error the default is to
report the identity as banned (fail closed); set security.fail_open to
restore the lenient behavior.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		email := args[0]

		database, err := openDB()
		if err != nil {
			return err
		}
		defer database.Close()

		status := newEnforcer(database).IsBanned(cmd.Context(), email)

		if GetOutput() == "text" {
			renderBanStatus(cmd.ErrOrStderr(), email, status)
			return nil
		}
		out := output.New(output.Format(GetOutput()))
		return out.Write(status)
	},
}
