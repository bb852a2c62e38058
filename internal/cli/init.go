package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

const starterConfig = `# kotoba configuration.
#
# Rules are WebAssembly modules; list each module path, optionally with an
# "as" alias (required when two rules share a basename) and a severity.
rules: []
#  - rules/no-todo.wasm
#  - path: rules/sentence-length.wasm
#    as: sentence-length
#    severity: warning

# Per-rule options, keyed by alias.
options: {}
#  sentence-length:
#    max: 100

# Glob patterns bounding file discovery.
# include:
#   - "docs/**"
# exclude:
#   - "vendor/**"

cache:
  enabled: true
  directory: .kotoba-cache
`

func newInitCommand() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a starter configuration file",
		RunE: func(_ *cobra.Command, _ []string) error {
			const path = ".kotoba.yaml"
			if _, err := os.Stat(path); err == nil && !force {
				return &exitError{
					code: ExitUsageError,
					err:  fmt.Errorf("%s already exists (use --force to overwrite)", path),
				}
			}
			if err := os.WriteFile(path, []byte(starterConfig), 0o644); err != nil {
				return &exitError{code: ExitUsageError, err: err}
			}
			fmt.Fprintf(os.Stdout, "wrote %s\n", path)
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing config file")
	return cmd
}
