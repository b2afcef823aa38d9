package cache

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/pkg/errors"
)

// ArtifactInfo is the JSON metadata a remote cache stores alongside an
// archive, per spec.md §6's remote-cache HTTP contract.
type ArtifactInfo struct {
	Fingerprint      string `json:"fingerprint"`
	Package          string `json:"package"`
	Version          string `json:"version"`
	Platform         string `json:"platform"`
	ToolchainVersion string `json:"toolchain_version"`
	FileSize         int64  `json:"file_size"`
	Compression      string `json:"compression"`
	Signature        string `json:"signature,omitempty"`
}

// Remote is an HTTP client for an optional remote artifact cache, per
// spec.md §4.G/§6. It is a thin boundary collaborator: stdlib net/http
// wrapped with github.com/pkg/errors for diagnostics, since no
// general-purpose third-party HTTP client appears anywhere in the corpus
// (see DESIGN.md).
type Remote struct {
	baseURL   string
	client    *http.Client
	authToken string
}

// NewRemote returns a Remote client for baseURL (no trailing slash
// expected), with spec.md §5's registry timeout policy as the default.
func NewRemote(baseURL string) *Remote {
	return &Remote{
		baseURL: baseURL,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// WithAuth returns a copy of r that sends token as a bearer credential on
// every request.
func (r *Remote) WithAuth(token string) *Remote {
	out := *r
	out.authToken = token
	return &out
}

func (r *Remote) authorize(req *http.Request) {
	if r.authToken != "" {
		req.Header.Set("Authorization", "Bearer "+r.authToken)
	}
}

// Exists reports whether fingerprint's archive is present on the remote,
// via a HEAD request.
func (r *Remote) Exists(ctx context.Context, fingerprint string) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, r.baseURL+"/artifacts/"+fingerprint, nil)
	if err != nil {
		return false, errors.Wrap(err, "cache: build HEAD request")
	}
	r.authorize(req)

	resp, err := r.client.Do(req)
	if err != nil {
		return false, errors.Wrap(err, "cache: HEAD artifact")
	}
	defer resp.Body.Close()
	return resp.StatusCode >= 200 && resp.StatusCode < 300, nil
}

// GetInfo fetches fingerprint's ArtifactInfo.
func (r *Remote) GetInfo(ctx context.Context, fingerprint string) (ArtifactInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.baseURL+"/artifacts/"+fingerprint+".info", nil)
	if err != nil {
		return ArtifactInfo{}, errors.Wrap(err, "cache: build info request")
	}
	r.authorize(req)

	resp, err := r.client.Do(req)
	if err != nil {
		return ArtifactInfo{}, errors.Wrap(err, "cache: fetch artifact info")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return ArtifactInfo{}, &CacheMiss{Fingerprint: fingerprint}
	}

	var info ArtifactInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return ArtifactInfo{}, errors.Wrap(err, "cache: decode artifact info")
	}
	return info, nil
}

// Pull downloads fingerprint's archive and unpacks it into dest.
func (r *Remote) Pull(ctx context.Context, fingerprint, dest string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.baseURL+"/artifacts/"+fingerprint, nil)
	if err != nil {
		return errors.Wrap(err, "cache: build pull request")
	}
	r.authorize(req)

	resp, err := r.client.Do(req)
	if err != nil {
		return errors.Wrap(err, "cache: pull artifact")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &CacheMiss{Fingerprint: fingerprint}
	}

	compressed, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Wrap(err, "cache: read artifact body")
	}
	if err := os.MkdirAll(dest, 0o755); err != nil {
		return errors.Wrapf(err, "cache: create %s", dest)
	}
	return untarZstd(compressed, dest)
}

// Push uploads fingerprint's archive (packed from source) followed by its
// metadata, per spec.md §6: "PUT archive then PUT .info".
func (r *Remote) Push(ctx context.Context, fingerprint, source string, info ArtifactInfo) error {
	compressed, err := tarZstd(source)
	if err != nil {
		return err
	}
	info.FileSize = int64(len(compressed))
	info.Compression = "zstd"
	info.Fingerprint = fingerprint

	if err := r.put(ctx, "/artifacts/"+fingerprint, "application/zstd", compressed); err != nil {
		return errors.Wrap(err, "cache: push artifact")
	}

	body, err := json.Marshal(info)
	if err != nil {
		return errors.Wrap(err, "cache: encode artifact info")
	}
	if err := r.put(ctx, "/artifacts/"+fingerprint+".info", "application/json", body); err != nil {
		return errors.Wrap(err, "cache: push artifact info")
	}
	return nil
}

func (r *Remote) put(ctx context.Context, path, contentType string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, r.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return errors.Wrap(err, "cache: build PUT request")
	}
	req.Header.Set("Content-Type", contentType)
	r.authorize(req)

	resp, err := r.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return errors.Errorf("cache: PUT %s: unexpected status %s", path, resp.Status)
	}
	return nil
}
