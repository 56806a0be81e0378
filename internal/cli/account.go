package cli

import (
	"fmt"

	"vidclient/internal/auth"

	"github.com/spf13/cobra"
)

func newLoginCmd(a *app) *cobra.Command {
	var email, password string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in to the user service and print the issued token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c := auth.NewClient(a.cfg.AuthBase, a.http, a.log)
			res, err := c.Login(cmd.Context(), email, password)
			if err != nil {
				return fmt.Errorf("login: %w", err)
			}
			out := cmd.OutOrStdout()
			if res.Message != "" {
				fmt.Fprintln(out, res.Message)
			}
			if res.Token != "" {
				fmt.Fprintf(out, "Token: %s\n", res.Token)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "Account email")
	cmd.Flags().StringVar(&password, "password", "", "Account password")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func newRegisterCmd(a *app) *cobra.Command {
	var reg auth.Registration
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account on the user service",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if reg.PasswordConfirm == "" {
				reg.PasswordConfirm = reg.Password
			}
			c := auth.NewClient(a.cfg.AuthBase, a.http, a.log)
			res, err := c.Register(cmd.Context(), reg)
			if err != nil {
				return fmt.Errorf("register: %w", err)
			}
			msg := res.Message
			if msg == "" {
				msg = "Registered " + reg.Username
			}
			fmt.Fprintln(cmd.OutOrStdout(), msg)
			return nil
		},
	}
	cmd.Flags().StringVar(&reg.Username, "username", "", "User name")
	cmd.Flags().StringVar(&reg.Email, "email", "", "Account email")
	cmd.Flags().StringVar(&reg.DateOfBirth, "dob", "", "Date of birth (YYYY-MM-DD)")
	cmd.Flags().StringVar(&reg.Password, "password", "", "Account password")
	cmd.Flags().StringVar(&reg.PasswordConfirm, "password-confirm", "", "Password confirmation (defaults to --password)")
	_ = cmd.MarkFlagRequired("username")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}
