// Package storage puts analyzed images into an S3-compatible bucket over its
// plain HTTP surface. Uploads are best effort: a failure costs the tenant
// nothing but a null image_url.
package storage

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/bestruirui/sprout/internal/client"
	"github.com/bestruirui/sprout/internal/conf"
)

const putTimeout = 15 * time.Second

func Enabled() bool {
	return conf.AppConfig.Storage.Endpoint != "" && conf.AppConfig.Storage.Bucket != ""
}

// PutImage uploads the image bytes under key and returns the public URL.
func PutImage(ctx context.Context, key, mimeType string, data []byte) (string, error) {
	if !Enabled() {
		return "", fmt.Errorf("object storage not configured")
	}

	ctx, cancel := context.WithTimeout(ctx, putTimeout)
	defer cancel()

	url := fmt.Sprintf("%s/%s/%s",
		strings.TrimRight(conf.AppConfig.Storage.Endpoint, "/"),
		conf.AppConfig.Storage.Bucket, key)
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("failed to build storage request: %w", err)
	}
	req.Header.Set("Content-Type", mimeType)
	if conf.AppConfig.Storage.Token != "" {
		req.Header.Set("Authorization", "Bearer "+conf.AppConfig.Storage.Token)
	}

	httpClient, err := client.Get()
	if err != nil {
		return "", err
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("storage put failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("storage put returned status %d", resp.StatusCode)
	}

	base := conf.AppConfig.Storage.PublicBaseURL
	if base == "" {
		base = fmt.Sprintf("%s/%s", strings.TrimRight(conf.AppConfig.Storage.Endpoint, "/"),
			conf.AppConfig.Storage.Bucket)
	}
	return fmt.Sprintf("%s/%s", strings.TrimRight(base, "/"), key), nil
}
