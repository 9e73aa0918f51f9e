//go:build integration

package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	_ "gocloud.dev/blob/s3blob"

	"github.com/ligustah/photofetch/internal/testutils"
	"github.com/ligustah/photofetch/pkg/ledger"
)

func TestCLIIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	images := []testutils.TestImage{
		{Name: "a.jpg", Data: testutils.GenerateImage(1, 4096)},
		{Name: "b.jpg", Data: testutils.GenerateImage(2, 8192)},
		{Name: "c.jpg", Data: testutils.GenerateImage(3, 2048), FailFirst: 1},
	}
	server := testutils.StartImageServer(t, images)

	var urls []string
	for _, img := range images {
		urls = append(urls, server.URL(img.Name))
	}
	listFile := filepath.Join(t.TempDir(), "urls.txt")
	if err := os.WriteFile(listFile, []byte(strings.Join(urls, "\n")), 0o644); err != nil {
		t.Fatalf("write list: %v", err)
	}

	t.Log("Starting Minio container...")
	minio := testutils.StartMinioContainer(t, ctx, "cli-test-bucket")
	defer func() {
		if err := minio.Close(ctx); err != nil {
			t.Logf("failed to terminate minio container: %v", err)
		}
	}()

	t.Run("fetch", func(t *testing.T) {
		code, _, stderr := execute(
			"fetch",
			"--folder", minio.BucketURL,
			"--resolver", "list",
			"--list-file", listFile,
			"--retry-delay", "10ms",
			"--workers", "2",
		)
		if code != ExitSuccess {
			t.Fatalf("fetch failed with exit code %d: %s", code, stderr)
		}
	})

	t.Run("objects", func(t *testing.T) {
		bucket, err := minio.OpenBucket(ctx)
		if err != nil {
			t.Fatalf("open bucket: %v", err)
		}
		defer bucket.Close()

		log := ledger.NewJSONLog(bucket, ledger.JSONFile)
		records, err := log.Records(ctx)
		if err != nil {
			t.Fatalf("read ledger: %v", err)
		}
		if len(records) != len(images) {
			t.Fatalf("got %d records, want %d", len(records), len(images))
		}
		for i, rec := range records {
			if want := fmt.Sprintf("image_%d.jpg", i+1); rec.FileName != want {
				t.Errorf("record %d: file %s, want %s", i, rec.FileName, want)
			}
			for _, img := range images {
				if server.URL(img.Name) == rec.URL {
					testutils.AssertObject(t, ctx, bucket, rec.FileName, img.Data)
				}
			}
		}
	})

	t.Run("verify", func(t *testing.T) {
		code, stdout, _ := execute("verify", "--folder", minio.BucketURL)
		if code != ExitSuccess {
			t.Fatalf("verify failed with exit code %d:\n%s", code, stdout)
		}
	})

	t.Run("bolt ledger needs a local folder", func(t *testing.T) {
		code, _, _ := execute(
			"fetch",
			"--folder", minio.BucketURL,
			"--resolver", "list",
			"--list-file", listFile,
			"--ledger", "bolt",
		)
		if code != ExitStorageError {
			t.Fatalf("got exit code %d, want %d", code, ExitStorageError)
		}
	})
}
