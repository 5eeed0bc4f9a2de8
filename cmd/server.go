package cmd

import (
	"github.com/spf13/cobra"
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "启动Tunora服务器",
	Long:  `启动HTTP服务器, 提供 /catalog API、/metrics 和 /healthz`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer(cmd.Context(), loadConfig())
	},
}

func init() {
	rootCmd.AddCommand(serverCmd)
}
