package cmd

import (
	"fmt"
	"sort"

	"Tunora/storage"

	"github.com/spf13/cobra"
)

var minioPrefix string

var minioCmd = &cobra.Command{
	Use:   "minio",
	Short: "MinIO存储桶统计",
	Long:  `连接MinIO并统计存储桶中的对象数量、总大小以及按文件类型的分布。`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		fmt.Printf("MinIO配置: %s, Bucket: %s\n", cfg.MinioEndpoint, cfg.MinioBucket)

		client, err := storage.NewMinioClient(cfg)
		if err != nil {
			return err
		}
		stats, err := storage.CollectBucketStats(cmd.Context(), client, cfg.MinioBucket, minioPrefix)
		if err != nil {
			return err
		}

		fmt.Printf("对象总数: %d\n", stats.TotalObjects)
		fmt.Printf("总大小: %s\n", storage.FormatSize(stats.TotalSize))
		if !stats.LastModified.IsZero() {
			fmt.Printf("最后修改: %s\n", stats.LastModified.Format("2006-01-02 15:04:05"))
		}

		kinds := make([]string, 0, len(stats.SizeByKind))
		for k := range stats.SizeByKind {
			kinds = append(kinds, k)
		}
		sort.Strings(kinds)
		for _, k := range kinds {
			fmt.Printf("  %-6s %s\n", k, storage.FormatSize(stats.SizeByKind[k]))
		}
		return nil
	},
}

func init() {
	minioCmd.Flags().StringVarP(&minioPrefix, "prefix", "p", "", "只统计指定前缀 (audio/, images/)")
	rootCmd.AddCommand(minioCmd)
}
