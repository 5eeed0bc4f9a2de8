package storage

import (
	"testing"
	"time"
)

func TestObjectKey(t *testing.T) {
	tests := []struct {
		folder, contentType, want string
	}{
		{"covers", "image/png", "covers/abc.png"},
		{"audio", "audio/mpeg", "audio/abc.mp3"},
		{"/nested/../audio/", "audio/mpeg", "audio/abc.mp3"},
		{"", "application/x-unknown-thing", "misc/abc"},
	}
	for _, tt := range tests {
		if got := ObjectKey(tt.folder, "abc", tt.contentType); got != tt.want {
			t.Errorf("ObjectKey(%q, %q) = %q, want %q", tt.folder, tt.contentType, got, tt.want)
		}
	}
}

func TestBucketStatsAdd(t *testing.T) {
	stats := &BucketStats{SizeByKind: map[string]int64{}}
	older := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	newer := older.Add(time.Hour)

	stats.add("audio/a.mp3", "", 100, older)
	stats.add("covers/b", "image/jpeg", 50, newer)
	stats.add("docs/c.txt", "", 5, older)

	if stats.TotalObjects != 3 || stats.TotalSize != 155 {
		t.Fatalf("unexpected totals: %+v", stats)
	}
	if !stats.LastModified.Equal(newer) {
		t.Fatalf("LastModified = %v", stats.LastModified)
	}
	if stats.SizeByKind["audio"] != 100 || stats.SizeByKind["image"] != 50 || stats.SizeByKind["other"] != 5 {
		t.Fatalf("unexpected kinds: %v", stats.SizeByKind)
	}
}

func TestFormatSize(t *testing.T) {
	cases := map[int64]string{
		512:             "512 B",
		2048:            "2.0 KB",
		5 * 1024 * 1024: "5.0 MB",
	}
	for in, want := range cases {
		if got := FormatSize(in); got != want {
			t.Errorf("FormatSize(%d) = %q, want %q", in, got, want)
		}
	}
}
