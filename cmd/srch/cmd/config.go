package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"

	"github.com/rpopa-dp/srch/configs"
	"github.com/rpopa-dp/srch/internal/config"
	srcherr "github.com/rpopa-dp/srch/internal/errors"
	"github.com/rpopa-dp/srch/internal/output"
)

func newConfigCmd(g *globals) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect and create configuration",
		Long: `Inspect the effective configuration or create a project config file.

Configuration precedence (lowest to highest):
  1. Hardcoded defaults
  2. User config (~/.config/srch/config.yaml)
  3. Project config (.srch.yaml, .srch.yml or .srch.toml)
  4. Environment variables (SRCH_*)
  5. Command-line flags`,
		Example: `  # Show effective configuration (merged from all sources)
  srch config show

  # Same, as TOML
  srch config show --format toml

  # Write a commented .srch.yaml in the current directory
  srch config init

  # Write ~/.config/srch/config.yaml
  srch config init --user`,
	}

	cmd.AddCommand(newConfigShowCmd(g))
	cmd.AddCommand(newConfigInitCmd(g))
	cmd.AddCommand(newConfigPathCmd(g))

	return cmd
}

func newConfigShowCmd(g *globals) *cobra.Command {
	var format, outPath string

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if outPath != "" && format == "yaml" {
				if err := g.cfg.WriteYAML(outPath); err != nil {
					return err
				}
				output.New(cmd.OutOrStdout()).Successf("Wrote %s", outPath)
				return nil
			}

			var data []byte
			var err error
			switch format {
			case "yaml":
				data, err = g.cfg.YAML()
			case "toml":
				data, err = toml.Marshal(g.cfg)
			default:
				return srcherr.ValidationError(fmt.Sprintf("unknown format %q (valid options: yaml, toml)", format), nil)
			}
			if err != nil {
				return fmt.Errorf("failed to marshal config: %w", err)
			}
			if outPath != "" {
				if err := os.WriteFile(outPath, data, 0644); err != nil {
					return fmt.Errorf("failed to write config file: %w", err)
				}
				output.New(cmd.OutOrStdout()).Successf("Wrote %s", outPath)
				return nil
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "yaml", "Output format: yaml, toml")
	cmd.Flags().StringVarP(&outPath, "output", "o", "", "Write to a file instead of stdout")
	return cmd
}

func newConfigInitCmd(g *globals) *cobra.Command {
	var force, user bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a commented config file",
		Long: `Write .srch.yaml with the project settings to the project directory
(-C, default the current directory). With --user, write the machine-wide
settings to ~/.config/srch/config.yaml instead.

With --force an existing file is backed up to <file>.bak.<timestamp>
before it is replaced. The three newest backups are kept.`,
		Args:        cobra.NoArgs,
		Annotations: map[string]string{annotationNoConfig: "true"},
		RunE: func(cmd *cobra.Command, _ []string) error {
			path := filepath.Join(g.dir, config.ProjectConfigNames[0])
			template := configs.ProjectConfigTemplate
			if user {
				path = config.GetUserConfigPath()
				template = configs.UserConfigTemplate
			}
			return writeConfigTemplate(output.New(cmd.OutOrStdout()), path, template, force)
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing file")
	cmd.Flags().BoolVar(&user, "user", false, "Write the user config instead of the project config")
	return cmd
}

// writeConfigTemplate writes template to path, backing up any file it replaces.
func writeConfigTemplate(out *output.Writer, path, template string, force bool) error {
	if _, err := os.Stat(path); err == nil {
		if !force {
			return srcherr.ValidationError(path+" already exists", nil).
				WithSuggestion("Use --force to overwrite it (a backup is kept)")
		}
		backup, err := config.BackupFile(path)
		if err != nil {
			return err
		}
		out.Statusf("💾", "Backed up %s to %s", path, backup)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(template), 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	out.Successf("Wrote %s", path)
	return nil
}

func newConfigPathCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:         "path",
		Short:       "Print the config files that are read",
		Args:        cobra.NoArgs,
		Annotations: map[string]string{annotationNoConfig: "true"},
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := output.New(cmd.OutOrStdout())
			user := config.GetUserConfigPath()
			if !config.UserConfigExists() {
				user += " (not found)"
			}
			project := config.FindProjectConfig(g.dir)
			if project == "" {
				project = "(none)"
			}
			out.KeyValues([][2]string{{"user", user}, {"project", project}})
			return nil
		},
	}
}
