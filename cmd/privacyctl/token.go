package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	authmw "dsrengine/pkg/platform/middleware/auth"
)

type tokenOutput struct {
	Token     string   `json:"token"`
	Subject   string   `json:"subject"`
	Roles     []string `json:"roles,omitempty"`
	ExpiresIn string   `json:"expires_in"`
}

func newTokenCmd() *cobra.Command {
	var (
		subject    string
		roles      []string
		ttl        time.Duration
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a bearer token signed with JWT_SIGNING_KEY",
		Long: "Issues an HS256 bearer token for local testing. The key and issuer come from " +
			"JWT_SIGNING_KEY and JWT_ISSUER, the same variables the server reads.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			key := os.Getenv("JWT_SIGNING_KEY")
			if key == "" {
				return errors.New("JWT_SIGNING_KEY is not set")
			}
			if subject == "" {
				return errors.New("--subject is required")
			}
			token, err := authmw.NewValidator(key, os.Getenv("JWT_ISSUER")).Issue(subject, roles, ttl)
			if err != nil {
				return fmt.Errorf("sign token: %w", err)
			}

			out := cmd.OutOrStdout()
			if !jsonOutput {
				fmt.Fprintln(out, token)
				return nil
			}
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(tokenOutput{Token: token, Subject: subject, Roles: roles, ExpiresIn: ttl.String()})
		},
	}

	cmd.Flags().StringVar(&subject, "subject", "", "User id the token acts as")
	cmd.Flags().StringSliceVar(&roles, "role", nil, "Role to grant, e.g. privacy_admin (repeatable)")
	cmd.Flags().DurationVar(&ttl, "ttl", DefaultTokenTTL, "Token time-to-live")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}
