// Package fetch resolves gs:// URLs to local files, downloading objects from
// Google Cloud Storage into a cache directory. Data modules accept remote
// paths anywhere a local file path is accepted and call File to localize
// them first.
package fetch

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

const gsScheme = "gs://"

// IsRemote reports whether path names a GCS object rather than a local file.
func IsRemote(path string) bool {
	return strings.HasPrefix(path, gsScheme)
}

// ParseGS splits a gs://bucket/key URL into bucket and object key.
func ParseGS(url string) (bucket, key string, err error) {
	if !IsRemote(url) {
		return "", "", errors.Errorf("not a gs:// URL: %q", url)
	}
	rest := strings.TrimPrefix(url, gsScheme)
	bucket, key, ok := strings.Cut(rest, "/")
	if !ok || bucket == "" || key == "" {
		return "", "", errors.Errorf("malformed gs:// URL: %q", url)
	}
	return bucket, key, nil
}

// File ensures the object named by url is present under cacheDir and returns
// the local path. Already-cached objects are not re-downloaded.
func File(ctx context.Context, url, cacheDir string) (string, error) {
	log := klog.FromContext(ctx)

	bucket, key, err := ParseGS(url)
	if err != nil {
		return "", err
	}

	local := filepath.Join(cacheDir, bucket, filepath.FromSlash(key))
	if _, err := os.Stat(local); err == nil {
		log.V(2).Info("using cached object", "url", url, "path", local)
		return local, nil
	}
	if err := os.MkdirAll(filepath.Dir(local), 0o755); err != nil {
		return "", errors.Wrap(err, "creating cache directory")
	}

	client, err := storage.NewClient(ctx)
	if err != nil {
		return "", errors.Wrap(err, "creating GCS storage client")
	}
	defer client.Close()

	log.Info("downloading object from GCS", "source", url, "destination", local)
	startedAt := time.Now()

	r, err := client.Bucket(bucket).Object(key).NewReader(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return "", errors.Wrapf(err, "object %q does not exist", url)
		}
		return "", errors.Wrapf(err, "opening object from GCS %q", url)
	}
	defer r.Close()

	n, err := writeToFile(r, local)
	if err != nil {
		return "", errors.Wrapf(err, "downloading from GCS %q", url)
	}

	log.Info("downloaded object from GCS", "source", url, "destination", local,
		"bytes", n, "duration", time.Since(startedAt))
	return local, nil
}

// writeToFile streams src into a temp file in the destination directory and
// renames it into place, so a partial download never appears cached.
func writeToFile(src io.Reader, destinationPath string) (int64, error) {
	dir := filepath.Dir(destinationPath)
	tempFile, err := os.CreateTemp(dir, "download")
	if err != nil {
		return 0, errors.Wrap(err, "creating temp file")
	}
	defer os.Remove(tempFile.Name())

	n, err := io.Copy(tempFile, src)
	if err != nil {
		tempFile.Close()
		return n, err
	}
	if err := tempFile.Close(); err != nil {
		return n, errors.Wrap(err, "closing temp file")
	}
	if err := os.Rename(tempFile.Name(), destinationPath); err != nil {
		return n, errors.Wrap(err, "renaming temp file")
	}
	return n, nil
}
