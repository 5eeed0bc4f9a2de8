package cmd

import (
	"Tunora/cache"
	"Tunora/core/notify"
	"Tunora/db"
	"Tunora/logger"
	"Tunora/repository"

	"github.com/spf13/cobra"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "启动通知消费者",
	Long:  `从Redis队列读取发行通知并投递, 收到 SIGINT/SIGTERM 后退出。`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		defer logger.Sync()

		gdb, err := db.ConnectGormDB(cfg)
		if err != nil {
			return err
		}
		defer db.CloseGormDB()

		rdb, err := cache.ConnectRedis(cfg)
		if err != nil {
			return err
		}
		defer cache.CloseRedis()

		deliverer := notify.NewLogDeliverer(repository.NewGormUserRepository(gdb))
		worker := notify.NewWorker(cache.NewNotificationQueue(rdb), deliverer, cfg.NotificationPollTimeout)
		return worker.Run(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(workerCmd)
}
