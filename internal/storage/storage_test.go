package storage

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLocalService_PutAndDelete(t *testing.T) {
	root := filepath.Join(t.TempDir(), "uploads")
	s, err := NewLocalService(root)
	if err != nil {
		t.Fatalf("NewLocalService() err=%v", err)
	}
	ctx := context.Background()

	ref, err := s.Put(ctx, "../../escape/license.pdf", strings.NewReader("%PDF-1.4\n%EOF"), "application/pdf")
	if err != nil {
		t.Fatalf("Put() err=%v", err)
	}
	if filepath.Dir(filepath.FromSlash(ref)) != filepath.Clean(root) {
		t.Fatalf("ref=%q escaped root %q", ref, root)
	}
	data, err := os.ReadFile(filepath.FromSlash(ref))
	if err != nil {
		t.Fatalf("read stored file: %v", err)
	}
	if string(data) != "%PDF-1.4\n%EOF" {
		t.Fatalf("content=%q", data)
	}

	if _, err := s.Put(ctx, "license.pdf", strings.NewReader("again"), ""); err == nil {
		t.Fatalf("expected error when key already exists")
	}

	if err := s.Delete(ctx, ref); err != nil {
		t.Fatalf("Delete() err=%v", err)
	}
	if _, err := os.Stat(filepath.FromSlash(ref)); !os.IsNotExist(err) {
		t.Fatalf("file still present, stat err=%v", err)
	}
}

func TestLocalService_DeleteRefusesOutsideRoot(t *testing.T) {
	dir := t.TempDir()
	s, err := NewLocalService(filepath.Join(dir, "uploads"))
	if err != nil {
		t.Fatalf("NewLocalService() err=%v", err)
	}
	outside := filepath.Join(dir, "keep.txt")
	if err := os.WriteFile(outside, []byte("x"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	if err := s.Delete(context.Background(), outside); err == nil {
		t.Fatalf("expected refusal")
	}
	if _, err := os.Stat(outside); err != nil {
		t.Fatalf("outside file removed: %v", err)
	}
}

func TestExtractS3Key(t *testing.T) {
	cases := []struct {
		loc     string
		bucket  string
		want    string
		wantErr bool
	}{
		{loc: "s3://docs/licenses/a.pdf", bucket: "docs", want: "licenses/a.pdf"},
		{loc: "s3://docs/a.png", bucket: "", want: "a.png"},
		{loc: "s3://other/a.png", bucket: "docs", wantErr: true},
		{loc: "s3://docs", bucket: "docs", wantErr: true},
		{loc: "s3://docs/", bucket: "docs", wantErr: true},
		{loc: "/var/uploads/a.png", bucket: "docs", wantErr: true},
	}
	for _, tc := range cases {
		got, err := extractS3Key(tc.loc, tc.bucket)
		if tc.wantErr {
			if err == nil {
				t.Fatalf("extractS3Key(%q) expected error, got %q", tc.loc, got)
			}
			continue
		}
		if err != nil || got != tc.want {
			t.Fatalf("extractS3Key(%q)=%q,%v want %q", tc.loc, got, err, tc.want)
		}
	}
}

func TestS3ObjectKey(t *testing.T) {
	s := &S3Service{keyPrefix: "licenses"}
	if got := s.objectKey("/abc.pdf"); got != "licenses/abc.pdf" {
		t.Fatalf("objectKey=%q", got)
	}
	s.keyPrefix = ""
	if got := s.objectKey("abc.pdf"); got != "abc.pdf" {
		t.Fatalf("objectKey=%q", got)
	}
}
