package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/researchportal/pubportal/pkg/config"
	"github.com/researchportal/pubportal/pkg/observability"
)

// Version is stamped at build time
var Version = "dev"

// options are shared by every command
type options struct {
	configFile string
}

// load reads the configuration named by --config
func (o *options) load() (*config.Config, error) {
	return config.Load(o.configFile)
}

// logger builds the process logger from the configured level
func logger(cfg *config.Config) *observability.Logger {
	return observability.NewLogger(cfg.Observability.Level(), os.Stderr).
		WithField("service", "pubportal")
}

// NewRootCommand creates the root command
func NewRootCommand() *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:           "pubportal",
		Short:         "Research publication portal",
		Long:          `pubportal serves the faculty publication portal and manages its database.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&opts.configFile, "config", "c", "",
		"path to portal.yaml (default: ./portal.yaml or /etc/pubportal/portal.yaml)")

	root.AddCommand(newServeCommand(opts))
	root.AddCommand(newMigrateCommand(opts))
	root.AddCommand(newBootstrapAdminCommand(opts))
	root.AddCommand(newHashPasswordCommand())
	root.AddCommand(newScopeCommand(opts))
	return root
}

// Execute runs the root command against os.Args
func Execute() {
	if err := NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
