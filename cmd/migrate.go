package cmd

import (
	"Tunora/db"

	"github.com/spf13/cobra"
)

var migrateWithAccounts bool

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "迁移数据库表结构",
	Long:  `为曲目、发行与播放记录创建或更新表结构。--with-accounts 额外创建用户与关注表 (仅用于本地开发)。`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		defer db.CloseGormDB()

		gdb, err := db.ConnectGormDB(cfg)
		if err != nil {
			return err
		}
		models := db.CatalogModels()
		if migrateWithAccounts {
			models = append(models, db.AccountModels()...)
		}
		return db.AutoMigrateModels(gdb, models...)
	},
}

func init() {
	migrateCmd.Flags().BoolVar(&migrateWithAccounts, "with-accounts", false, "also migrate the account tables")
	rootCmd.AddCommand(migrateCmd)
}
