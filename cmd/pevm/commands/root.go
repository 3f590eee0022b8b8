package commands

import (
	"fmt"

	"github.com/ledgerwatch/log/v3"
	"github.com/spf13/cobra"
)

// RootCommand builds the command tree. Every call starts from fresh flag
// defaults.
func RootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "pevm",
		Short:         "parallel block executor playground",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if configFile != "" {
				cfg, err := loadConfig(configFile)
				if err != nil {
					return err
				}
				applyConfig(cmd, cfg)
			}
			lvl, err := log.LvlFromString(verbosity)
			if err != nil {
				return fmt.Errorf("bad verbosity %q: %w", verbosity, err)
			}
			log.Root().SetHandler(log.LvlFilterHandler(lvl, log.StreamHandler(cmd.ErrOrStderr(), log.TerminalFormat())))
			return nil
		},
	}
	withConfig(rootCmd)
	rootCmd.AddCommand(newBenchCmd())
	return rootCmd
}
