package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/yaklabco/kotoba/internal/configloader"
	"github.com/yaklabco/kotoba/internal/ui/pretty"
	"github.com/yaklabco/kotoba/pkg/plugin"
)

func newRulesCommand(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rules",
		Short: "List configured rules and their manifests",
		Long: `Load every configured rule module and print its manifest: version,
description, fixability, isolation level, and the node types it inspects.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := configloader.Load(*configPath, "")
			if err != nil {
				return &exitError{code: ExitUsageError, err: err}
			}
			if len(cfg.Rules) == 0 {
				fmt.Fprintln(os.Stdout, "no rules configured")
				return nil
			}

			host := plugin.NewHost()
			defer host.Close()

			styles := pretty.NewStyles(pretty.IsColorEnabled("auto", os.Stdout))
			for _, binding := range cfg.Rules {
				manifest, err := host.LoadRuleFile(cmd.Context(), binding.Alias, binding.WasmPath)
				if err != nil {
					fmt.Fprintf(os.Stdout, "%s  %s\n",
						styles.Failure.Render(binding.Alias), err)
					continue
				}
				printManifest(styles, binding.Alias, manifest)
			}
			return nil
		},
	}
	return cmd
}

func printManifest(styles *pretty.Styles, alias string, m *plugin.Manifest) {
	fmt.Fprintf(os.Stdout, "%s %s\n",
		styles.Bold.Render(alias),
		styles.Dim.Render("v"+m.Version))
	if m.Description != "" {
		fmt.Fprintf(os.Stdout, "  %s\n", m.Description)
	}
	fmt.Fprintf(os.Stdout, "  isolation: %s", m.IsolationLevel)
	if m.Fixable {
		fmt.Fprint(os.Stdout, ", fixable")
	}
	if len(m.NodeTypes) > 0 {
		fmt.Fprintf(os.Stdout, ", nodes: %v", m.NodeTypes)
	}
	if len(m.Capabilities) > 0 {
		fmt.Fprintf(os.Stdout, ", needs: %v", m.Capabilities)
	}
	fmt.Fprintln(os.Stdout)
}
