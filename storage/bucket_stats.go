package storage

import (
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
)

// BucketStats 存储桶统计信息
type BucketStats struct {
	TotalObjects int64
	TotalSize    int64
	LastModified time.Time
	// SizeByKind 按文件类型 (audio, image, ...) 统计大小
	SizeByKind map[string]int64
}

// CollectBucketStats walks every object under prefix.
func CollectBucketStats(ctx context.Context, client *minio.Client, bucket, prefix string) (*BucketStats, error) {
	stats := &BucketStats{SizeByKind: make(map[string]int64)}

	objectCh := client.ListObjects(ctx, bucket, minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: true,
	})
	for object := range objectCh {
		if object.Err != nil {
			return nil, fmt.Errorf("列出对象时出错: %w", object.Err)
		}
		stats.add(object.Key, object.ContentType, object.Size, object.LastModified)
	}
	return stats, nil
}

func (s *BucketStats) add(key, contentType string, size int64, modified time.Time) {
	s.TotalObjects++
	s.TotalSize += size
	if modified.After(s.LastModified) {
		s.LastModified = modified
	}
	s.SizeByKind[kindOf(key, contentType)] += size
}

// kindOf 从 ContentType 或文件名推断文件类型
func kindOf(key, contentType string) string {
	if major, _, ok := strings.Cut(contentType, "/"); ok {
		switch major {
		case "audio", "image", "video":
			return major
		}
	}
	switch strings.ToLower(path.Ext(key)) {
	case ".mp3", ".wav", ".flac", ".m4a", ".aac":
		return "audio"
	case ".jpg", ".jpeg", ".png", ".gif", ".webp":
		return "image"
	case ".mp4", ".avi", ".mov", ".mkv":
		return "video"
	default:
		return "other"
	}
}

// FormatSize 格式化文件大小
func FormatSize(size int64) string {
	const unit = 1024
	if size < unit {
		return fmt.Sprintf("%d B", size)
	}
	div, exp := int64(unit), 0
	for n := size / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(size)/float64(div), "KMGTPE"[exp])
}
