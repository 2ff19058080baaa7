package main

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"aibridge.io/internal/auth"
)

type principalFlags struct {
	identifier   string
	displayName  string
	secretStdin  bool
	operator     bool
	organization string
	role         string
}

func newPrincipalCommand(flags *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "principal",
		Short: "Manage principals",
	}

	var pf principalFlags
	create := &cobra.Command{
		Use:   "create",
		Short: "Register a principal and optionally bind it to an organization",
		Long: `Registers a principal. The secret is read from the first line of stdin
so it never appears in shell history. With --org the principal is bound to
that organization with --role (default owner).`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			secret, err := readSecret(cmd.InOrStdin())
			if err != nil {
				return err
			}
			role := auth.RoleNone
			if pf.organization != "" {
				if role, err = auth.ParseRole(pf.role); err != nil {
					return err
				}
			}

			store, err := openStore(flags)
			if err != nil {
				return err
			}
			defer store.Close()
			ctx, cancel := commandContext(cmd, flags)
			defer cancel()

			svc, err := auth.NewService(store, auth.WithDirectory(store))
			if err != nil {
				return err
			}
			p, err := svc.Register(ctx, auth.RegisterInput{
				Identifier:  pf.identifier,
				DisplayName: pf.displayName,
				Secret:      secret,
				Operator:    pf.operator,
			})
			if err != nil {
				return err
			}
			out := map[string]any{"principal": p}
			if pf.organization != "" {
				m, err := svc.SetRole(ctx, p.ID, pf.organization, role)
				if err != nil {
					return fmt.Errorf("principal %s created but binding failed: %w", p.ID, err)
				}
				out["membership"] = m
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(out)
		},
	}
	fs := create.Flags()
	fs.StringVar(&pf.identifier, "identifier", "", "login identifier (email)")
	fs.StringVar(&pf.displayName, "name", "", "display name")
	fs.BoolVar(&pf.operator, "operator", false, "grant platform operator rights")
	fs.StringVar(&pf.organization, "org", "", "organization id to bind")
	fs.StringVar(&pf.role, "role", "owner", "role within --org")
	_ = create.MarkFlagRequired("identifier")

	deactivate := &cobra.Command{
		Use:   "deactivate <principal-id>",
		Short: "Disable a principal",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore(flags)
			if err != nil {
				return err
			}
			defer store.Close()
			ctx, cancel := commandContext(cmd, flags)
			defer cancel()
			// gateway processes drop bridged sessions on their next request,
			// when authentication sees the disabled status
			if err := store.SetPrincipalStatus(ctx, args[0], auth.StatusDisabled); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "deactivated", args[0])
			return nil
		},
	}

	cmd.AddCommand(create, deactivate)
	return cmd
}

func newHashSecretCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "hash-secret",
		Short: "Print the argon2id hash of a secret read from stdin",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			secret, err := readSecret(cmd.InOrStdin())
			if err != nil {
				return err
			}
			hash, err := auth.HashSecret(secret)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), hash)
			return nil
		},
	}
}

func readSecret(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	secret := strings.TrimRight(line, "\r\n")
	if secret == "" {
		return "", errors.New("secret must be provided on stdin")
	}
	return secret, nil
}
