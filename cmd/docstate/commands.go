package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"sort"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
	"maunium.net/go/mautrix"
	"maunium.net/go/mautrix/id"

	"github.com/kalambet/docstate/internal/api"
	"github.com/kalambet/docstate/internal/config"
	"github.com/kalambet/docstate/internal/configfile"
	"github.com/kalambet/docstate/internal/documents"
	"github.com/kalambet/docstate/internal/paths"
)

// --- paths ---

func newPathsCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "paths",
		Short: "Show where each document is stored",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(g)
			if err != nil {
				return err
			}
			set := openSet(cfg, documents.Options{})
			defer set.Close(context.Background())

			out := cmd.OutOrStdout()
			resolved := set.Paths()
			for _, name := range set.Names() {
				fmt.Fprintf(out, "  %s %s\n", label(name), resolved[name])
			}
			fmt.Fprintf(out, "  %s %s\n", label("themes"), cfg.Paths().Resolve(paths.UserData, "themes"))
			return nil
		},
	}
}

// --- config ---

func newConfigCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Show the effective configuration and its environment variables",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(g)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, k := range config.ShowAll(cfg) {
				fmt.Fprintf(out, "  %s %s (%s)\n", label(k.Key), k.Value, k.EnvVar)
			}
			return nil
		},
	}
}

// --- show ---

func newShowCmd(g *globalFlags) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "show <document>",
		Short: "Print a document completed with its defaults",
		Long: `Print a document completed with its defaults.

Examples:
  docstate show settings
  docstate show state --format yaml`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSet(g, documents.Options{}, func(set *documents.Set) error {
				doc, err := set.JSON(args[0])
				if err != nil {
					return err
				}
				return writeFormatted(cmd.OutOrStdout(), doc.Read(), format)
			})
		},
	}
	cmd.Flags().StringVar(&format, "format", "json", "output format: json, yaml or toml")
	return cmd
}

func writeFormatted(w io.Writer, v map[string]any, format string) error {
	switch format {
	case "json":
		s, err := configfile.Encode(v)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, s)
		return err
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(plainNumbers(v)); err != nil {
			return err
		}
		return enc.Close()
	case "toml":
		return toml.NewEncoder(w).Encode(plainNumbers(v))
	default:
		return fmt.Errorf("unknown format %q (want json, yaml or toml)", format)
	}
}

// plainNumbers replaces json.Number values with int64 or float64 so the
// yaml and toml encoders print them as numbers instead of strings.
func plainNumbers(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = plainNumbers(e)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = plainNumbers(e)
		}
		return out
	case json.Number:
		if n, err := t.Int64(); err == nil {
			return n
		}
		if f, err := t.Float64(); err == nil {
			return f
		}
		return t.String()
	default:
		return v
	}
}

// --- get / set ---

func newGetCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "get <document> <path>",
		Short: "Print the value at a dot path",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSet(g, documents.Options{}, func(set *documents.Set) error {
				doc, err := set.JSON(args[0])
				if err != nil {
					return err
				}
				v, ok := doc.Get(args[1])
				if !ok {
					return fmt.Errorf("no value at %q in %s", args[1], args[0])
				}
				b, err := json.Marshal(v)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), string(b))
				return nil
			})
		},
	}
}

func newSetCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "set <document> <path> <value>",
		Short: "Set the value at a dot path",
		Long: `Set the value at a dot path. The value is parsed as JSON when possible,
otherwise it is stored as a string.

Examples:
  docstate set settings media.defaultVolume 40
  docstate set settings theme Dark.qpl`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			name, path, raw := args[0], args[1], args[2]
			return withSet(g, documents.Options{}, func(set *documents.Set) error {
				doc, err := set.JSON(name)
				if err != nil {
					return err
				}
				if err := doc.Set(path, api.ParseValue(raw)); err != nil {
					return err
				}
				printSuccess("Set %s.%s = %s", name, path, raw)
				return nil
			})
		},
	}
}

// --- accounts ---

func newAccountsCmd(g *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "accounts",
		Short: "Manage saved login sessions",
	}
	cmd.AddCommand(newAccountsListCmd(g), newAccountsAddCmd(g), newAccountsDeleteCmd(g))
	return cmd
}

func newAccountsListCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List saved accounts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSet(g, documents.Options{}, func(set *documents.Set) error {
				saved := set.Accounts.List()
				if len(saved) == 0 {
					printWarning("no saved accounts")
					return nil
				}
				out := cmd.OutOrStdout()
				for _, a := range saved {
					fmt.Fprintf(out, "  %s %s (device %s)\n", label(string(a.UserID)), a.Homeserver, a.DeviceID)
				}
				return nil
			})
		},
	}
}

func newAccountsAddCmd(g *globalFlags) *cobra.Command {
	var (
		homeserver string
		token      string
		deviceID   string
		verify     bool
	)

	cmd := &cobra.Command{
		Use:   "add <user-id>",
		Short: "Save a login session",
		Long: `Save a login session for a Matrix user.

Examples:
  docstate accounts add @alice:example.org --homeserver https://matrix.example.org --token syt_... --device-id ABCDEF`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			userID := id.UserID(args[0])
			if _, _, err := userID.Parse(); err != nil {
				return fmt.Errorf("invalid user id %q: %w", args[0], err)
			}
			if _, err := url.ParseRequestURI(homeserver); err != nil {
				return fmt.Errorf("invalid homeserver URL %q: %w", homeserver, err)
			}

			client, err := mautrix.NewClient(homeserver, userID, token)
			if err != nil {
				return fmt.Errorf("creating client: %w", err)
			}
			client.DeviceID = id.DeviceID(deviceID)

			if verify {
				ctx, cancel := context.WithTimeout(cmd.Context(), 15*time.Second)
				defer cancel()
				resp, err := client.Whoami(ctx)
				if err != nil {
					return fmt.Errorf("verifying session: %w", err)
				}
				if resp.UserID != userID {
					return fmt.Errorf("token belongs to %s, not %s", resp.UserID, userID)
				}
				if client.DeviceID == "" {
					client.DeviceID = resp.DeviceID
				}
				printStep("Verified session with %s", homeserver)
			}

			opts := documents.Options{Clients: documents.MautrixClients{userID: client}}
			return withSet(g, opts, func(set *documents.Set) error {
				if err := set.Accounts.Add(userID); err != nil {
					return err
				}
				printSuccess("Saved account %s", userID)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&homeserver, "homeserver", "", "homeserver URL")
	cmd.Flags().StringVar(&token, "token", "", "access token")
	cmd.Flags().StringVar(&deviceID, "device-id", "", "device ID")
	cmd.Flags().BoolVar(&verify, "verify", false, "check the token against the homeserver before saving")
	cmd.MarkFlagRequired("homeserver")
	cmd.MarkFlagRequired("token")
	return cmd
}

func newAccountsDeleteCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <user-id>",
		Short: "Forget a saved login session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSet(g, documents.Options{}, func(set *documents.Set) error {
				if err := set.Accounts.Delete(id.UserID(args[0])); err != nil {
					return err
				}
				printSuccess("Deleted account %s", args[0])
				return nil
			})
		},
	}
}

// --- theme ---

func newThemeCmd(g *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "theme",
		Short: "Inspect themes",
	}

	show := &cobra.Command{
		Use:   "show [name]",
		Short: "Print a theme, writing the bundled default first if it is missing",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSet(g, documents.Options{}, func(set *documents.Set) error {
				var (
					theme *documents.Theme
					err   error
				)
				if len(args) == 1 {
					theme, err = set.Theme(args[0])
				} else {
					theme, err = set.ActiveTheme()
				}
				if err != nil {
					return err
				}
				text, err := theme.Read()
				if err != nil {
					return err
				}
				fmt.Fprint(cmd.OutOrStdout(), text)
				return nil
			})
		},
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List installed themes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(g)
			if err != nil {
				return err
			}
			names, err := documents.InstalledThemes(cfg.Paths())
			if err != nil {
				return err
			}
			sort.Strings(names)
			for _, name := range names {
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}
			return nil
		},
	}

	cmd.AddCommand(show, list)
	return cmd
}
