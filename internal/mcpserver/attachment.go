package mcpserver

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"path"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/starford/margin/internal/apperr"
)

const (
	maxAttachmentSize = 10 << 20 // 10 MB
	attachmentDir     = "attachments"
	fetchTimeout      = 30 * time.Second
	maxRedirects      = 5
)

var (
	extByMIME = map[string]string{
		"image/png":       ".png",
		"image/jpeg":      ".jpg",
		"image/gif":       ".gif",
		"image/webp":      ".webp",
		"image/svg+xml":   ".svg",
		"application/pdf": ".pdf",
	}

	unsafeNameRe = regexp.MustCompile(`[^a-zA-Z0-9._-]`)

	metadataIP = net.ParseIP("169.254.169.254")
)

type attachmentResult struct {
	SavedPath     string `json:"savedPath"`
	MarkdownImage string `json:"markdownImage"`
}

// asset is a downloaded or decoded attachment before it is stored.
type asset struct {
	data []byte
	ext  string // from the MIME type, may be empty
}

func (s *Server) uploadAttachment(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	rawURL, err := req.RequireString("url")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var a asset
	if strings.HasPrefix(rawURL, "data:") {
		a, err = decodeDataURI(rawURL)
	} else {
		a, err = fetchAsset(ctx, rawURL)
	}
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	name := req.GetString("filename", "")
	if name == "" {
		name = nameFromURL(rawURL, a.ext)
	}
	name = sanitizeName(name)

	ext := strings.ToLower(path.Ext(name))
	if !supportedExt(ext) {
		return mcp.NewToolResultError(fmt.Sprintf("unsupported file extension %q (allowed: png, jpg, jpeg, gif, webp, svg, pdf)", ext)), nil
	}
	if err := checkContent(a.data, ext); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	if err := s.store.Create(path.Join(attachmentDir, name), a.data); err != nil {
		if errors.Is(err, apperr.ErrAlreadyExists) {
			return mcp.NewToolResultError(fmt.Sprintf("attachment already exists: %s", name)), nil
		}
		return mcp.NewToolResultError(fmt.Sprintf("failed to save attachment: %v", err)), nil
	}

	urlPath := "/" + attachmentDir + "/" + name
	out, _ := json.Marshal(attachmentResult{
		SavedPath:     urlPath,
		MarkdownImage: fmt.Sprintf("![%s](%s)", name, urlPath),
	})
	return mcp.NewToolResultText(string(out)), nil
}

func supportedExt(ext string) bool {
	if ext == ".jpeg" {
		return true
	}
	for _, e := range extByMIME {
		if e == ext {
			return true
		}
	}
	return false
}

// decodeDataURI parses a data:<mediatype>;base64,<data> URI.
func decodeDataURI(uri string) (asset, error) {
	meta, encoded, ok := strings.Cut(strings.TrimPrefix(uri, "data:"), ",")
	if !ok {
		return asset{}, errors.New("invalid data URI: missing comma separator")
	}
	mime, isBase64 := strings.CutSuffix(meta, ";base64")
	if !isBase64 {
		return asset{}, errors.New("only base64 data URIs are supported")
	}

	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		if data, err = base64.RawStdEncoding.DecodeString(encoded); err != nil {
			return asset{}, fmt.Errorf("invalid base64 data: %w", err)
		}
	}
	if len(data) > maxAttachmentSize {
		return asset{}, fmt.Errorf("file too large: %d bytes (max %d)", len(data), maxAttachmentSize)
	}

	mime, _, _ = strings.Cut(mime, ";")
	ext, known := extByMIME[mime]
	if !known {
		return asset{}, fmt.Errorf("unsupported MIME type in data URI: %s", mime)
	}
	return asset{data: data, ext: ext}, nil
}

// fetchAsset downloads an http(s) URL. Loopback and cloud metadata hosts
// are refused, including as redirect targets.
func fetchAsset(ctx context.Context, rawURL string) (asset, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return asset{}, fmt.Errorf("invalid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return asset{}, fmt.Errorf("unsupported scheme: %s (only http/https)", u.Scheme)
	}
	if err := checkHost(u.Hostname()); err != nil {
		return asset{}, err
	}

	client := &http.Client{
		Timeout: fetchTimeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= maxRedirects {
				return fmt.Errorf("too many redirects (max %d)", maxRedirects)
			}
			return checkHost(req.URL.Hostname())
		},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return asset{}, fmt.Errorf("invalid URL: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return asset{}, fmt.Errorf("download failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return asset{}, fmt.Errorf("download failed: HTTP %d", resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxAttachmentSize+1))
	if err != nil {
		return asset{}, fmt.Errorf("read body failed: %w", err)
	}
	if len(data) > maxAttachmentSize {
		return asset{}, fmt.Errorf("file too large: exceeds %d bytes", maxAttachmentSize)
	}

	mime, _, _ := strings.Cut(resp.Header.Get("Content-Type"), ";")
	return asset{data: data, ext: extByMIME[strings.TrimSpace(mime)]}, nil
}

func checkHost(host string) error {
	if host == "metadata.google.internal" {
		return fmt.Errorf("blocked host: %s", host)
	}
	ip := net.ParseIP(host)
	if ip == nil {
		ips, err := net.LookupIP(host)
		if err != nil || len(ips) == 0 {
			return nil //nolint:nilerr // the HTTP client reports DNS failures
		}
		ip = ips[0]
	}
	if ip.IsLoopback() {
		return fmt.Errorf("blocked host: loopback address %s", host)
	}
	if ip.Equal(metadataIP) {
		return fmt.Errorf("blocked host: cloud metadata address %s", host)
	}
	return nil
}

// nameFromURL takes the last path segment of rawURL, or a random name with
// ext when there is none.
func nameFromURL(rawURL, ext string) string {
	if ext == "" {
		ext = ".bin"
	}
	if strings.HasPrefix(rawURL, "data:") {
		return uuid.NewString() + ext
	}
	if u, err := url.Parse(rawURL); err == nil {
		if base := path.Base(u.Path); strings.Contains(base, ".") && base != "." {
			return base
		}
	}
	return uuid.NewString() + ext
}

// sanitizeName keeps the base name and replaces anything outside
// [a-zA-Z0-9._-]. Hidden names get a random prefix.
func sanitizeName(name string) string {
	name = path.Base(strings.ReplaceAll(name, `\`, "/"))
	name = unsafeNameRe.ReplaceAllString(name, "_")
	if name == "" || name == "." || name == ".." {
		return uuid.NewString()
	}
	if strings.HasPrefix(name, ".") {
		name = uuid.NewString() + name
	}
	return name
}

// checkContent verifies that data looks like a file of type ext.
func checkContent(data []byte, ext string) error {
	if ext == ".svg" {
		head := data[:min(len(data), 1024)]
		if !bytes.Contains(head, []byte("<svg")) {
			return errors.New("content does not appear to be a valid SVG (missing <svg tag)")
		}
		return nil
	}

	detected := http.DetectContentType(data)
	mime, _, _ := strings.Cut(detected, ";")
	got := extByMIME[mime]
	if ext == ".jpeg" {
		ext = ".jpg"
	}
	if got != ext {
		return fmt.Errorf("content does not match extension %s (detected: %s)", ext, detected)
	}
	return nil
}
