// litefetchctl drives a running litefetchd: vault lifecycle and workspace
// maintenance from the terminal.
package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var addr string

	rootCmd := &cobra.Command{
		Use:           "litefetchctl",
		Short:         "Control the LiteFetch workspace vault",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&addr, "addr", "127.0.0.1:8787", "litefetchd address")

	cli := &client{addr: &addr}

	rootCmd.AddCommand(
		newStatusCommand(cli),
		newInitCommand(cli),
		newUnlockCommand(cli),
		newLockCommand(cli),
		newRotateCommand(cli),
		newMigrateCommand(cli),
	)

	return rootCmd.Execute()
}

type client struct {
	addr *string
}

// call performs one API request and decodes the JSON reply. Non-2xx
// responses surface the server's detail message.
func (c *client) call(method, path string, body any) (map[string]any, error) {
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, "http://"+*c.addr+path, rd)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	httpClient := &http.Client{Timeout: 30 * time.Second}
	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var out map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		out = map[string]any{}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail, _ := out["detail"].(string)
		if detail == "" {
			detail = resp.Status
		}
		return nil, fmt.Errorf("%s", detail)
	}
	return out, nil
}

func printJSON(v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(b))
	return nil
}

// promptPassphrase reads a passphrase from stdin when not given as a flag.
func promptPassphrase(label string) (string, error) {
	fmt.Fprintf(os.Stderr, "%s: ", label)
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && line == "" {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func resolvePassphrase(flagValue, label string) (string, error) {
	if flagValue != "" {
		return flagValue, nil
	}
	p, err := promptPassphrase(label)
	if err != nil {
		return "", err
	}
	if p == "" {
		return "", fmt.Errorf("passphrase required")
	}
	return p, nil
}

func newStatusCommand(cli *client) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show vault state and workspace health",
		RunE: func(cmd *cobra.Command, args []string) error {
			out, err := cli.call(http.MethodGet, "/api/workspace/status", nil)
			if err != nil {
				return err
			}
			return printJSON(out)
		},
	}
}

func newInitCommand(cli *client) *cobra.Command {
	var passphrase string
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create the workspace vault with a new passphrase",
		RunE: func(cmd *cobra.Command, args []string) error {
			status, err := cli.call(http.MethodGet, "/api/workspace/status", nil)
			if err != nil {
				return err
			}
			if hasVault, _ := status["has_vault"].(bool); hasVault {
				return fmt.Errorf("vault already exists; use unlock or rotate")
			}
			p, err := resolvePassphrase(passphrase, "New passphrase")
			if err != nil {
				return err
			}
			out, err := cli.call(http.MethodPost, "/api/workspace/unlock", map[string]string{"passphrase": p})
			if err != nil {
				return err
			}
			return printJSON(out)
		},
	}
	cmd.Flags().StringVarP(&passphrase, "passphrase", "p", "", "vault passphrase (prompted when omitted)")
	return cmd
}

func newUnlockCommand(cli *client) *cobra.Command {
	var passphrase string
	cmd := &cobra.Command{
		Use:   "unlock",
		Short: "Unlock the vault and migrate any legacy ciphertext",
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := resolvePassphrase(passphrase, "Passphrase")
			if err != nil {
				return err
			}
			out, err := cli.call(http.MethodPost, "/api/workspace/unlock", map[string]string{"passphrase": p})
			if err != nil {
				return err
			}
			return printJSON(out)
		},
	}
	cmd.Flags().StringVarP(&passphrase, "passphrase", "p", "", "vault passphrase (prompted when omitted)")
	return cmd
}

func newLockCommand(cli *client) *cobra.Command {
	return &cobra.Command{
		Use:   "lock",
		Short: "Drop the in-memory master key",
		RunE: func(cmd *cobra.Command, args []string) error {
			out, err := cli.call(http.MethodPost, "/api/workspace/lock", map[string]string{})
			if err != nil {
				return err
			}
			return printJSON(out)
		},
	}
}

func newRotateCommand(cli *client) *cobra.Command {
	var oldPass, newPass string
	cmd := &cobra.Command{
		Use:   "rotate",
		Short: "Rewrap the master key under a new passphrase",
		RunE: func(cmd *cobra.Command, args []string) error {
			op, err := resolvePassphrase(oldPass, "Current passphrase")
			if err != nil {
				return err
			}
			np, err := resolvePassphrase(newPass, "New passphrase")
			if err != nil {
				return err
			}
			out, err := cli.call(http.MethodPost, "/api/workspace/rotate", map[string]string{"old": op, "new": np})
			if err != nil {
				return err
			}
			return printJSON(out)
		},
	}
	cmd.Flags().StringVar(&oldPass, "old", "", "current passphrase (prompted when omitted)")
	cmd.Flags().StringVar(&newPass, "new", "", "new passphrase (prompted when omitted)")
	return cmd
}

func newMigrateCommand(cli *client) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Re-encrypt every stored document under the current key",
		RunE: func(cmd *cobra.Command, args []string) error {
			out, err := cli.call(http.MethodPost, "/api/workspace/migrate", map[string]string{})
			if err != nil {
				return err
			}
			return printJSON(out)
		},
	}
}
