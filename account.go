package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/maastricht-university/moodcam/clients"
	"github.com/maastricht-university/moodcam/creds"
)

func newSignupCmd(a *app) *cobra.Command {
	var in clients.SignupReq
	var confirm string
	var terms bool
	cmd := &cobra.Command{
		Use:   "signup",
		Short: "Create an account",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if in.Password != confirm {
				return errors.New("passwords do not match")
			}
			if !terms {
				return errors.New("please agree to the Terms of Service and Privacy Policy (--accept-terms)")
			}
			if _, err := a.api.Signup(cmd.Context(), in); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Account created successfully! Please log in.")
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&in.Fullname, "fullname", "", "full name")
	f.StringVar(&in.Email, "email", "", "email address")
	f.StringVar(&in.Password, "password", "", "password")
	f.StringVar(&confirm, "confirm-password", "", "password again")
	f.BoolVar(&terms, "accept-terms", false, "accept the Terms of Service and Privacy Policy")
	for _, n := range []string{"fullname", "email", "password", "confirm-password"} {
		_ = cmd.MarkFlagRequired(n)
	}
	return cmd
}

func newLoginCmd(a *app) *cobra.Command {
	var email, password string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in and remember the token",
		RunE: func(cmd *cobra.Command, _ []string) error {
			out, err := a.api.Login(cmd.Context(), email, password)
			if err != nil {
				return err
			}
			err = a.creds.Save(creds.Credentials{
				Token: out.Token,
				User:  creds.User{ID: out.User.ID, Fullname: out.User.Fullname, Email: out.User.Email},
			})
			if err != nil {
				return fmt.Errorf("store login: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Logged in as %s\n", out.User.Fullname)
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "email address")
	cmd.Flags().StringVar(&password, "password", "", "password")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func newLogoutCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored login",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.creds.Clear(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Logged out successfully!")
			return nil
		},
	}
}

func newWhoamiCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the logged-in user",
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, c, err := a.authed()
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "%s <%s> (id %d)\n", c.User.Fullname, c.User.Email, c.User.ID)
			if exp, ok := c.Expiry(); ok {
				fmt.Fprintf(w, "token expires %s\n", exp.Local().Format("2006-01-02 15:04"))
			}
			return nil
		},
	}
}

func newProfileCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "profile",
		Short: "Show the account profile stored by the backend",
		RunE: func(cmd *cobra.Command, _ []string) error {
			api, c, err := a.authed()
			if err != nil {
				return err
			}
			p, err := api.User(cmd.Context(), c.User.ID)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s <%s> (id %d) member since %s\n", p.Fullname, p.Email, p.ID, p.CreatedAt)
			return nil
		},
	}
}

func newRenameCmd(a *app) *cobra.Command {
	var fullname string
	cmd := &cobra.Command{
		Use:   "rename",
		Short: "Change the account's full name",
		RunE: func(cmd *cobra.Command, _ []string) error {
			api, c, err := a.authed()
			if err != nil {
				return err
			}
			if err := api.UpdateUser(cmd.Context(), c.User.ID, fullname); err != nil {
				return err
			}
			c.User.Fullname = fullname
			if err := a.creds.Save(*c); err != nil {
				return fmt.Errorf("store login: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Name changed to %s\n", fullname)
			return nil
		},
	}
	cmd.Flags().StringVar(&fullname, "fullname", "", "new full name")
	_ = cmd.MarkFlagRequired("fullname")
	return cmd
}

func newDeleteAccountCmd(a *app) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "delete-account",
		Short: "Delete the account with all its sessions and mood records",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !yes {
				return errors.New("this deletes every session and mood record, pass --yes to confirm")
			}
			api, c, err := a.authed()
			if err != nil {
				return err
			}
			if err := api.DeleteUser(cmd.Context(), c.User.ID); err != nil {
				return err
			}
			if err := a.creds.Clear(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Account deleted.")
			return nil
		},
	}
	cmd.Flags().BoolVar(&yes, "yes", false, "confirm the deletion")
	return cmd
}
