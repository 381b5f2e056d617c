package app

import (
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/avaloki108/mush-audit-sub001/internal/cli"
)

func BuildRoot() *cobra.Command {
	root := &cobra.Command{
		Use:          "mush-audit",
		Short:        "Multi-contract Solidity static analyzer",
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// .env may carry MUSH_AUDIT_* overrides and the ollama host.
			if err := godotenv.Load(); err != nil {
				logrus.Debugf("no .env loaded: %v", err)
			}
		},
	}
	cli.AddCommands(root)
	return root
}
