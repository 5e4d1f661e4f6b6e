package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	apiclient "github.com/wayneindustries/resourcemgmt/pkg/api/client"
	"github.com/wayneindustries/resourcemgmt/pkg/config"
	"github.com/wayneindustries/resourcemgmt/pkg/telemetry"
)

type cliConfig struct {
	APIBaseURL  string `json:"api_base_url"`
	AccessToken string `json:"access_token"`
	Email       string `json:"email,omitempty"`
}

var defaultAPIBase = config.GetString("WAYNE_API_URL", "http://localhost:4000")

var buildVersion = "dev"

func main() {
	started := time.Now()
	cmd, err := newRootCommand().ExecuteC()
	reportTiming(cmd, time.Since(started), err != nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// reportTiming sends the command latency to the performance endpoint when a session exists.
// Failures are ignored.
func reportTiming(cmd *cobra.Command, elapsed time.Duration, failed bool) {
	if cmd == nil || !cmd.Runnable() || os.Getenv("WAYNE_NO_TELEMETRY") != "" {
		return
	}
	cfg, err := loadConfig()
	if err != nil || strings.TrimSpace(cfg.AccessToken) == "" {
		return
	}
	emitter, err := telemetry.NewEmitter(cfg.APIBaseURL, cfg.AccessToken, nil)
	if err != nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	name := "cli." + strings.Join(strings.Fields(cmd.CommandPath())[1:], ".")
	_, _ = emitter.Emit(ctx, telemetry.Sample{Name: name, Duration: elapsed, Failed: failed})
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "wayne",
		Short:         "Operator CLI for Wayne Industries resource management",
		Version:       strings.TrimSpace(buildVersion),
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(
		newLoginCommand(),
		newLogoutCommand(),
		newWhoAmICommand(),
		newResourceCommand(),
		newAlertCommand(),
		newStatsCommand(),
		newDemoCommand(),
	)
	return root
}

func newLoginCommand() *cobra.Command {
	var (
		email    string
		password string
		apiBase  string
	)
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and store the access token",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if strings.TrimSpace(email) == "" {
				return errors.New("--email is required")
			}
			secret, err := readSecret(password, "Password: ")
			if err != nil {
				return err
			}

			cfg, _ := loadConfig()
			if strings.TrimSpace(apiBase) != "" {
				cfg.APIBaseURL = apiBase
			}
			client, err := apiclient.New(cfg.APIBaseURL)
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 15*time.Second)
			defer cancel()
			resp, err := client.Login(ctx, email, secret)
			if err != nil {
				return err
			}
			cfg.AccessToken = resp.Tokens.AccessToken
			cfg.Email = resp.Profile.Email
			if err := saveConfig(cfg); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "signed in as %s (%s)\n", resp.Profile.Email, resp.Profile.Role)
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "Email address")
	cmd.Flags().StringVar(&password, "password", "", "Password (supply to avoid prompt)")
	cmd.Flags().StringVar(&apiBase, "api", "", "API base URL (default "+defaultAPIBase+")")
	return cmd
}

func newLogoutCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Revoke the stored session",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, client, token, err := session()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 15*time.Second)
			defer cancel()
			if err := client.Logout(ctx, token); err != nil {
				var apiErr apiclient.APIError
				if !errors.As(err, &apiErr) || apiErr.Status != 401 {
					return err
				}
			}
			cfg.AccessToken = ""
			if err := saveConfig(cfg); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "signed out")
			return nil
		},
	}
}

func newWhoAmICommand() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed in profile",
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, client, token, err := session()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 15*time.Second)
			defer cancel()
			p, err := client.Me(ctx, token)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\n", p.ID, p.Email, p.Role)
			return nil
		},
	}
}

// session loads the stored config and returns a client plus the saved token.
func session() (cliConfig, *apiclient.Client, string, error) {
	cfg, err := loadConfig()
	if err != nil {
		return cliConfig{}, nil, "", err
	}
	token := strings.TrimSpace(cfg.AccessToken)
	if token == "" {
		return cfg, nil, "", errors.New("please login first using 'wayne login'")
	}
	client, err := apiclient.New(cfg.APIBaseURL)
	if err != nil {
		return cfg, nil, "", err
	}
	return cfg, client, token, nil
}

func readSecret(flagValue, prompt string) (string, error) {
	if secret := strings.TrimSpace(flagValue); secret != "" {
		return secret, nil
	}
	fmt.Print(prompt)
	bytes, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Print("\n")
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	return string(bytes), nil
}

func loadConfig() (cliConfig, error) {
	path, err := configPath()
	if err != nil {
		return cliConfig{}, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cliConfig{APIBaseURL: defaultAPIBase}, nil
		}
		return cliConfig{}, err
	}
	var cfg cliConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return cliConfig{}, err
	}
	if cfg.APIBaseURL == "" {
		cfg.APIBaseURL = defaultAPIBase
	}
	return cfg, nil
}

func saveConfig(cfg cliConfig) error {
	path, err := configPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

func configPath() (string, error) {
	if override := strings.TrimSpace(os.Getenv("WAYNE_CONFIG")); override != "" {
		return override, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".wayne", "config.json"), nil
}
