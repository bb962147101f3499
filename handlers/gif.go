// GifHandler — GIPHY arama/trending proxy'si.
//
// API key server'da tutulur; client anahtarı hiç görmez.
// Key yapılandırılmamışsa endpoint'ler 503 döner.
package handlers

import (
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/benerman/nexus/pkg"
)

// giphyBaseURL, GIPHY API kökü.
const giphyBaseURL = "https://api.giphy.com/v1/gifs"

// GifHandler, /api/gifs endpoint'lerini yönetir.
type GifHandler struct {
	apiKey string
	client *http.Client
}

// NewGifHandler, constructor.
func NewGifHandler(apiKey string) *GifHandler {
	return &GifHandler{
		apiKey: apiKey,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

// Search godoc
// GET /api/gifs/search?q=... (bearer)
func (h *GifHandler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		pkg.ErrorWithMessage(w, http.StatusBadRequest, "q parameter required")
		return
	}
	h.proxy(w, r, "/search", url.Values{"q": {q}, "limit": {"25"}})
}

// Trending godoc
// GET /api/gifs/trending (bearer)
func (h *GifHandler) Trending(w http.ResponseWriter, r *http.Request) {
	h.proxy(w, r, "/trending", url.Values{"limit": {"25"}})
}

// proxy, isteği GIPHY'ye iletir ve yanıt body'sini aynen aktarır.
func (h *GifHandler) proxy(w http.ResponseWriter, r *http.Request, path string, params url.Values) {
	if h.apiKey == "" {
		pkg.ErrorWithMessage(w, http.StatusServiceUnavailable, "gif provider not configured")
		return
	}

	params.Set("api_key", h.apiKey)
	params.Set("rating", "pg-13")

	req, err := http.NewRequestWithContext(r.Context(), http.MethodGet,
		giphyBaseURL+path+"?"+params.Encode(), nil)
	if err != nil {
		pkg.ErrorWithMessage(w, http.StatusInternalServerError, "failed to build provider request")
		return
	}

	resp, err := h.client.Do(req)
	if err != nil {
		pkg.ErrorWithMessage(w, http.StatusBadGateway, "gif provider unreachable")
		return
	}
	defer resp.Body.Close()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(resp.StatusCode)
	_, _ = io.Copy(w, resp.Body)
}
