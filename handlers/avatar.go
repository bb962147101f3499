package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/benerman/nexus/middleware"
	"github.com/benerman/nexus/models"
	"github.com/benerman/nexus/pkg"
	"github.com/benerman/nexus/repository"
	"github.com/benerman/nexus/services"
)

// AvatarHandler, kullanıcı avatarı ve sunucu ikonu yükleme endpoint'leri.
// Görseller data URL olarak taşınır ve boyut sınırına tabidir —
// dosya sistemi veya object storage kullanılmaz.
type AvatarHandler struct {
	userService services.UserService
	serverRepo  repository.ServerRepository
	perms       services.PermissionService
	maxBytes    int64
}

// NewAvatarHandler, constructor.
func NewAvatarHandler(
	userService services.UserService,
	serverRepo repository.ServerRepository,
	perms services.PermissionService,
	maxBytes int64,
) *AvatarHandler {
	return &AvatarHandler{
		userService: userService,
		serverRepo:  serverRepo,
		perms:       perms,
		maxBytes:    maxBytes,
	}
}

// validateDataURL, payload'ın data URL olduğunu ve sınırı aşmadığını kontrol eder.
func (h *AvatarHandler) validateDataURL(raw string) error {
	if int64(len(raw)) > h.maxBytes {
		return pkg.ErrBadRequest
	}
	if !strings.HasPrefix(raw, "data:image/") {
		return pkg.ErrBadRequest
	}
	return nil
}

// UploadUserAvatar godoc
// POST /api/user/avatar (bearer, {avatar: dataURL})
func (h *AvatarHandler) UploadUserAvatar(w http.ResponseWriter, r *http.Request) {
	principal, ok := middleware.PrincipalFrom(r.Context())
	if !ok {
		pkg.ErrorWithMessage(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxBytes+4096)
	var req struct {
		Avatar string `json:"avatar"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkg.ErrorWithMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.validateDataURL(req.Avatar); err != nil {
		pkg.ErrorWithMessage(w, http.StatusBadRequest, "avatar must be an image data URL within the size limit")
		return
	}

	user, err := h.userService.SetCustomAvatar(r.Context(), principal.UserID, req.Avatar)
	if err != nil {
		pkg.Error(w, err)
		return
	}

	pkg.JSON(w, http.StatusOK, map[string]any{"customAvatar": user.CustomAvatar})
}

// UploadServerIcon godoc
// POST /api/server/{serverId}/icon (bearer, manageServer)
func (h *AvatarHandler) UploadServerIcon(w http.ResponseWriter, r *http.Request) {
	principal, ok := middleware.PrincipalFrom(r.Context())
	if !ok {
		pkg.ErrorWithMessage(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	serverID := r.PathValue("serverId")
	if serverID == "" {
		pkg.ErrorWithMessage(w, http.StatusBadRequest, "server id required")
		return
	}

	if err := h.perms.RequireInServer(r.Context(), principal.UserID, serverID, models.PermManageServer); err != nil {
		pkg.Error(w, err)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxBytes+4096)
	var req struct {
		Icon string `json:"icon"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkg.ErrorWithMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.validateDataURL(req.Icon); err != nil {
		pkg.ErrorWithMessage(w, http.StatusBadRequest, "icon must be an image data URL within the size limit")
		return
	}

	if err := h.serverRepo.UpdateIcon(r.Context(), serverID, req.Icon); err != nil {
		pkg.Error(w, err)
		return
	}

	pkg.JSON(w, http.StatusOK, map[string]string{"customIcon": req.Icon})
}
