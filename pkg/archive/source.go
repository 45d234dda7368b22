package archive

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

// DefaultMaxArchiveBytes caps archives read by Load.
const DefaultMaxArchiveBytes = 2 << 30

const (
	jmdictOwner = "scriptin"
	jmdictRepo  = "jmdict-simplified"
	userAgent   = "jpdict-cli"
)

// GitHubAPI is the base URL used by LatestJMdictURL.
var GitHubAPI = "https://api.github.com"

// Loader reads archives from local paths or http(s) URLs.
type Loader struct {
	Client   *http.Client
	MaxBytes int64
}

func (l Loader) client() *http.Client {
	if l.Client != nil {
		return l.Client
	}
	return &http.Client{Timeout: 10 * time.Minute}
}

func (l Loader) limit() int64 {
	if l.MaxBytes > 0 {
		return l.MaxBytes
	}
	return DefaultMaxArchiveBytes
}

// Load returns the bytes of src, a file path or an http(s) URL.
func (l Loader) Load(ctx context.Context, src string) ([]byte, error) {
	if strings.HasPrefix(src, "http://") || strings.HasPrefix(src, "https://") {
		return l.download(ctx, src)
	}
	f, err := os.Open(src)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return l.readLimited(f, src)
}

func (l Loader) download(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := l.client().Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download failed: %s", resp.Status)
	}
	return l.readLimited(resp.Body, url)
}

func (l Loader) readLimited(r io.Reader, name string) ([]byte, error) {
	max := l.limit()
	data, err := io.ReadAll(io.LimitReader(r, max+1))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}
	if int64(len(data)) > max {
		return nil, fmt.Errorf("%s is larger than %d bytes", name, max)
	}
	return data, nil
}

// LatestJMdictURL discovers the download URL of the newest English JMdict
// release of jmdict-simplified. common selects the common-words subset.
func (l Loader) LatestJMdictURL(ctx context.Context, common bool) (string, error) {
	apiURL := fmt.Sprintf("%s/repos/%s/%s/releases/latest", GitHubAPI, jmdictOwner, jmdictRepo)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		return "", err
	}
	// Add User-Agent as required by GitHub API
	req.Header.Set("User-Agent", userAgent)

	client := l.Client
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("github api returned status: %s", resp.Status)
	}

	var release struct {
		Assets []struct {
			Name               string `json:"name"`
			BrowserDownloadURL string `json:"browser_download_url"`
		} `json:"assets"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&release); err != nil {
		return "", err
	}

	// Pattern: jmdict-eng-<version>.json.tgz or jmdict-eng-common-<version>.json.tgz
	for _, asset := range release.Assets {
		name := asset.Name
		if !strings.HasPrefix(name, "jmdict-eng-") {
			continue
		}
		if strings.HasPrefix(name, "jmdict-eng-common") != common {
			continue
		}
		if strings.HasSuffix(name, ".json.tgz") || strings.HasSuffix(name, ".json.gz") || strings.HasSuffix(name, ".json.zip") {
			return asset.BrowserDownloadURL, nil
		}
	}
	return "", fmt.Errorf("no suitable dictionary asset found in latest release")
}
