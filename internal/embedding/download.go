package embedding

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const huggingFaceBase = "https://huggingface.co"

// modelFiles are the assets the local pipeline needs in its cache.
var modelFiles = []struct {
	local  string
	remote string
}{
	{"model.onnx", "onnx/model.onnx"},
	{"vocab.txt", "vocab.txt"},
}

var downloadClient = &http.Client{Timeout: 10 * time.Minute}

// ensureModelFiles makes sure the ONNX export and vocabulary for the
// model are present in cacheDir, downloading any missing file. It returns
// the local model and vocabulary paths. A failed download leaves no
// partial file behind and is reported as a DownloadError.
func ensureModelFiles(ctx context.Context, cacheDir, model string) (modelPath, vocabPath string, err error) {
	modelDir := filepath.Join(cacheDir, modelCacheName(model))
	if err := os.MkdirAll(modelDir, 0o755); err != nil {
		return "", "", fmt.Errorf("create model cache dir: %w", err)
	}

	paths := make([]string, len(modelFiles))
	for i, file := range modelFiles {
		paths[i] = filepath.Join(modelDir, file.local)
		if fileExists(paths[i]) {
			continue
		}
		url := fmt.Sprintf("%s/%s/resolve/main/%s", huggingFaceBase, model, file.remote)
		if err := downloadFile(ctx, url, paths[i]); err != nil {
			return "", "", err
		}
	}
	return paths[0], paths[1], nil
}

// downloadFile fetches url into outPath via a temp file so a partial
// download never masquerades as a cached asset.
func downloadFile(ctx context.Context, url, outPath string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return &DownloadError{URL: url, Err: err}
	}

	resp, err := downloadClient.Do(req)
	if err != nil {
		return &DownloadError{URL: url, Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &DownloadError{URL: url, Status: resp.StatusCode}
	}

	tmpFile, err := os.CreateTemp(filepath.Dir(outPath), ".download-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	if _, err := io.Copy(tmpFile, resp.Body); err != nil {
		tmpFile.Close()
		os.Remove(tmpPath)
		return &DownloadError{URL: url, Err: err}
	}
	if err := tmpFile.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, outPath); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("move downloaded file: %w", err)
	}
	return nil
}

// modelCacheName flattens a model id like "org/name" into one directory
// component.
func modelCacheName(model string) string {
	return strings.ReplaceAll(model, "/", "--")
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir()
}
