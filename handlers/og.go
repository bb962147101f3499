// OGHandler — server-side OpenGraph scrape proxy'si.
//
// Client link önizlemesi için dış siteye kendisi gitmez (CORS + IP sızıntısı);
// server sayfayı çeker, og:* meta tag'lerini ayıklar ve URL bazlı TTL cache
// ile döner. Auth gereklidir — endpoint açık bir proxy değildir.
package handlers

import (
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/benerman/nexus/pkg"
	"github.com/benerman/nexus/pkg/cache"
)

// ogCacheTTL — aynı URL için tekrar scrape edilmeden önce geçmesi gereken süre.
const ogCacheTTL = 15 * time.Minute

// ogFetchTimeout — dış siteye istek zaman aşımı.
const ogFetchTimeout = 8 * time.Second

// ogMaxBodyBytes — okunan HTML sınırı; meta tag'ler dokümanın başındadır.
const ogMaxBodyBytes = 512 * 1024

// OGData, ayıklanan OpenGraph alanları.
type OGData struct {
	URL         string `json:"url"`
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
	Image       string `json:"image,omitempty"`
	SiteName    string `json:"site_name,omitempty"`
}

// OGHandler, /api/og endpoint'ini yönetir.
type OGHandler struct {
	cache  *cache.TTLCache[string, OGData]
	client *http.Client
}

// NewOGHandler, constructor.
func NewOGHandler() *OGHandler {
	return &OGHandler{
		cache:  cache.New[string, OGData](ogCacheTTL, 5*time.Minute),
		client: &http.Client{Timeout: ogFetchTimeout},
	}
}

// ogMetaRe, <meta property="og:x" content="y"> tag'lerini yakalar.
// content/property sırası değişken olabilir — iki varyant da denenir.
var (
	ogMetaRe        = regexp.MustCompile(`<meta[^>]+property=["']og:([a-z_]+)["'][^>]+content=["']([^"']*)["']`)
	ogMetaReverseRe = regexp.MustCompile(`<meta[^>]+content=["']([^"']*)["'][^>]+property=["']og:([a-z_]+)["']`)
	titleRe         = regexp.MustCompile(`<title[^>]*>([^<]+)</title>`)
)

// Scrape godoc
// GET /api/og?url=... (bearer)
func (h *OGHandler) Scrape(w http.ResponseWriter, r *http.Request) {
	rawURL := r.URL.Query().Get("url")
	if rawURL == "" {
		pkg.ErrorWithMessage(w, http.StatusBadRequest, "url parameter required")
		return
	}

	parsed, err := url.Parse(rawURL)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		pkg.ErrorWithMessage(w, http.StatusBadRequest, "invalid url")
		return
	}

	if data, ok := h.cache.Get(rawURL); ok {
		pkg.JSON(w, http.StatusOK, data)
		return
	}

	data, err := h.fetch(r, rawURL)
	if err != nil {
		pkg.ErrorWithMessage(w, http.StatusBadGateway, fmt.Sprintf("failed to fetch url: %v", err))
		return
	}

	h.cache.Set(rawURL, data)
	pkg.JSON(w, http.StatusOK, data)
}

func (h *OGHandler) fetch(r *http.Request, rawURL string) (OGData, error) {
	req, err := http.NewRequestWithContext(r.Context(), http.MethodGet, rawURL, nil)
	if err != nil {
		return OGData{}, err
	}
	req.Header.Set("User-Agent", "nexus-link-preview/1.0")
	req.Header.Set("Accept", "text/html")

	resp, err := h.client.Do(req)
	if err != nil {
		return OGData{}, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, ogMaxBodyBytes))
	if err != nil {
		return OGData{}, err
	}

	data := OGData{URL: rawURL}
	html := string(body)

	apply := func(key, value string) {
		switch key {
		case "title":
			data.Title = value
		case "description":
			data.Description = value
		case "image":
			data.Image = value
		case "site_name":
			data.SiteName = value
		}
	}

	for _, m := range ogMetaRe.FindAllStringSubmatch(html, -1) {
		apply(m[1], m[2])
	}
	for _, m := range ogMetaReverseRe.FindAllStringSubmatch(html, -1) {
		apply(m[2], m[1])
	}

	// og:title yoksa <title> fallback
	if data.Title == "" {
		if m := titleRe.FindStringSubmatch(html); m != nil {
			data.Title = strings.TrimSpace(m[1])
		}
	}

	return data, nil
}
