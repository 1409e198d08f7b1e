package settings

import (
	"errors"
	"net/http"

	"github.com/noah-isme/tour-quote/internal/common"
	"github.com/noah-isme/tour-quote/internal/pricing"
)

// Handler exposes the active pricing settings.
type Handler struct {
	Provider *Provider
}

// Current handles GET /api/v1/settings.
func (h Handler) Current(w http.ResponseWriter, r *http.Request) {
	snap, err := h.Provider.Snapshot(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": snap})
}

// Refresh handles POST /api/v1/settings/refresh. It drops the cached snapshot
// and reloads the rules file so edits take effect before the cache expires.
func (h Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	if err := h.Provider.Invalidate(r.Context()); err != nil {
		h.Provider.Logger.Warn().Err(err).Msg("settings cache invalidate failed")
	}
	snap, err := h.Provider.Snapshot(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	h.Provider.Logger.Info().Str("version", snap.Version).Msg("pricing settings reloaded")
	common.JSON(w, http.StatusOK, map[string]any{"data": map[string]string{"version": snap.Version}})
}

func writeError(w http.ResponseWriter, err error) {
	if errors.Is(err, pricing.ErrConfiguration) {
		common.JSONError(w, http.StatusServiceUnavailable, "SETTINGS_UNAVAILABLE", "pricing settings are unavailable", nil)
		return
	}
	common.WriteError(w, err)
}
