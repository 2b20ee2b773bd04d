package main

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/MrEthical07/authguard"
	"github.com/MrEthical07/authguard/internal/config"
	"github.com/MrEthical07/authguard/password"
)

type rootOptions struct {
	envFile    string
	configFile string
	dev        bool
}

func (o *rootOptions) load() (*config.Settings, error) {
	return config.Load(o.envFile, o.configFile)
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:           "authd",
		Short:         "Authentication and session integrity service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&opts.envFile, "env-file", ".env", "dotenv file loaded before the environment")
	cmd.PersistentFlags().StringVar(&opts.configFile, "config", "", "optional YAML settings file")
	cmd.PersistentFlags().BoolVar(&opts.dev, "dev", false, "use in-process Redis and in-memory credentials")

	cmd.AddCommand(
		newServeCommand(opts),
		newHashPasswordCommand(),
		newCreateUserCommand(opts),
		newReportCommand(opts),
	)
	return cmd
}

func newServeCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := opts.load()
			if err != nil {
				return err
			}
			return serve(cmd.Context(), s, opts.dev)
		},
	}
}

func readPassword(in io.Reader) (string, error) {
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	pw := strings.TrimRight(line, "\r\n")
	if pw == "" {
		return "", errors.New("empty password on stdin")
	}
	return pw, nil
}

func newHashPasswordCommand() *cobra.Command {
	var cost int
	cmd := &cobra.Command{
		Use:   "hash-password",
		Short: "Hash a password read from stdin and print hash and salt as JSON",
		RunE: func(cmd *cobra.Command, _ []string) error {
			pw, err := readPassword(cmd.InOrStdin())
			if err != nil {
				return err
			}
			if report := password.DefaultPolicy().Validate(pw); !report.Valid {
				return report.Err()
			}
			h, err := password.NewBcrypt(cost, nil)
			if err != nil {
				return err
			}
			hash, salt, err := h.Hash(pw)
			if err != nil {
				return err
			}
			return json.NewEncoder(cmd.OutOrStdout()).Encode(map[string]string{"hash": hash, "salt": salt})
		},
	}
	cmd.Flags().IntVar(&cost, "cost", password.DefaultBcryptCost, "bcrypt cost")
	return cmd
}

func newCreateUserCommand(opts *rootOptions) *cobra.Command {
	var rec authguard.CredentialRecord
	cmd := &cobra.Command{
		Use:   "create-user",
		Short: "Create a credential; the password is read from stdin",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if rec.UserID == "" || rec.Identifier == "" || rec.Role == "" {
				return errors.New("--id, --identifier and --role are required")
			}
			if opts.dev {
				return errors.New("create-user needs a persistent store; set AUTHGUARD_POSTGRES_DSN")
			}
			s, err := opts.load()
			if err != nil {
				return err
			}
			pw, err := readPassword(cmd.InOrStdin())
			if err != nil {
				return err
			}

			rt, err := newRuntime(cmd.Context(), s, false, nil)
			if err != nil {
				return err
			}
			defer rt.Close()

			hash, salt, report, err := rt.engine.HashPassword(pw)
			if err != nil {
				for _, e := range report.Errors {
					fmt.Fprintln(cmd.ErrOrStderr(), "-", e)
				}
				return err
			}
			rec.PasswordHash, rec.PasswordSalt = hash, salt
			if err := rt.store.CreateCredential(cmd.Context(), rec); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created %s (%s), strength %d\n", rec.UserID, rec.Identifier, report.Strength)
			return nil
		},
	}
	cmd.Flags().StringVar(&rec.UserID, "id", "", "user id")
	cmd.Flags().StringVar(&rec.Identifier, "identifier", "", "login identifier")
	cmd.Flags().StringVar(&rec.Role, "role", "", "role name")
	return cmd
}

func newReportCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "report",
		Short: "Print the effective security posture as JSON",
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := opts.load()
			if err != nil {
				return err
			}
			// The report touches no backend, so an in-process Redis suffices.
			rt, err := newRuntime(cmd.Context(), s, true, nil)
			if err != nil {
				return err
			}
			defer rt.Close()

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(rt.engine.SecurityReport())
		},
	}
}
