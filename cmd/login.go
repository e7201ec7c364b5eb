package main

import (
	"encoding/json"
	"fmt"
	"net/http"

	"bistro/internal/apperrors"
	"bistro/internal/client"

	"github.com/spf13/cobra"
)

type loginResponse struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

func loginCmd(open appOpener) *cobra.Command {
	var username, password string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and save the session for later commands",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := open(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			req := client.NewRequest(http.MethodPost, "/api/auth/login", map[string]string{"username": username, "password": password})
			resp, err := a.client.Do(cmd.Context(), req)
			if err != nil {
				return fmt.Errorf("login failed: %w", err)
			}
			if !resp.OK() {
				return fmt.Errorf("login failed: %s", apperrors.UserMessage(apperrors.Classify(resp.StatusCode, resp.Body)))
			}

			var tokens loginResponse
			if err := json.Unmarshal(resp.Body, &tokens); err != nil || tokens.AccessToken == "" {
				return fmt.Errorf("login failed: malformed token response")
			}
			a.guard.Session().SetTokens(tokens.AccessToken, tokens.RefreshToken)
			a.log.Info("login", "", "session saved")
			fmt.Fprintf(cmd.OutOrStdout(), "Logged in as %s\n", username)
			return nil
		},
	}
	cmd.Flags().StringVarP(&username, "username", "u", "", "Username")
	cmd.Flags().StringVarP(&password, "password", "p", "", "Password")
	cmd.MarkFlagRequired("username")
	cmd.MarkFlagRequired("password")
	return cmd
}
