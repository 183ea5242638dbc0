package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	commute "github.com/m1ckyb/CommuteCompute-sub001"
	"github.com/m1ckyb/CommuteCompute-sub001/pair"
	"github.com/m1ckyb/CommuteCompute-sub001/render"
	"github.com/m1ckyb/CommuteCompute-sub001/token"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	snapshot := s.Transit.Snapshot()

	feeds := map[string]string{}
	for feed, retrievedAt := range snapshot.Feeds {
		feeds[feed] = retrievedAt.UTC().Format("2006-01-02T15:04:05Z")
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"version":        s.Version,
		"feeds":          feeds,
		"cacheSizeBytes": snapshot.Size,
	})
}

// zoneInfo is one row of the /api/zones response.
type zoneInfo struct {
	render.Zone
	Hash    string `json:"hash"`
	Changed bool   `json:"changed"`
}

// handleZones lists the zones for this journey with their hashes. The
// client passes its previous hashes as ?hashes=id:hash,... and reads
// the changed flags to decide which zones to refetch.
func (s *Server) handleZones(w http.ResponseWriter, r *http.Request) {
	profile, data, ok := s.buildData(w, r)
	if !ok {
		return
	}

	previous := parseHashes(r.URL.Query().Get("hashes"))

	zones := []zoneInfo{}
	for _, zone := range render.ListZones(profile, data.Journey) {
		hash, err := render.ZoneHash(profile, zone.ID, data)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "render_failed")
			return
		}
		encoded := strconv.FormatUint(hash, 16)
		zones = append(zones, zoneInfo{
			Zone:    zone,
			Hash:    encoded,
			Changed: previous[zone.ID] != encoded,
		})
	}
	writeJSON(w, http.StatusOK, zones)
}

func (s *Server) handleZone(w http.ResponseWriter, r *http.Request) {
	profile, data, ok := s.buildData(w, r)
	if !ok {
		return
	}
	zoneID := chi.URLParam(r, "id")

	hash, err := render.ZoneHash(profile, zoneID, data)
	if err != nil {
		writeError(w, http.StatusNotFound, "unknown_zone")
		return
	}
	etag := `"` + strconv.FormatUint(hash, 16) + `"`
	if r.Header.Get("If-None-Match") == etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	body, err := render.RenderZone(profile, zoneID, data)
	if err != nil {
		s.renderFailure(w, profile, err)
		return
	}
	w.Header().Set("ETag", etag)
	w.Header().Set("Content-Type", profile.ContentType())
	w.Write(body)
}

// handleScreen serves the full frame as PNG regardless of the
// device's native format. The web preview embeds it directly.
func (s *Server) handleScreen(w http.ResponseWriter, r *http.Request) {
	profile, data, ok := s.buildData(w, r)
	if !ok {
		return
	}
	profile.Format = render.FormatPNG

	body, err := render.RenderFull(profile, data)
	if err != nil {
		s.renderFailure(w, profile, err)
		return
	}
	w.Header().Set("Content-Type", profile.ContentType())
	w.Write(body)
}

// handleLivedash serves the full frame in the device's native format.
func (s *Server) handleLivedash(w http.ResponseWriter, r *http.Request) {
	profile, data, ok := s.buildData(w, r)
	if !ok {
		return
	}

	body, err := render.RenderFull(profile, data)
	if err != nil {
		s.renderFailure(w, profile, err)
		return
	}
	w.Header().Set("Content-Type", profile.ContentType())
	w.Write(body)
}

// buildData decodes the request's token and computes the journey and
// weather for it. A false return means the response is already
// written.
func (s *Server) buildData(w http.ResponseWriter, r *http.Request) (render.DeviceProfile, render.Data, bool) {
	profile := render.ProfileFor(r.URL.Query().Get("device"))

	cfg, err := token.Decode(r.URL.Query().Get("token"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_token")
		return profile, render.Data{}, false
	}
	if err := cfg.Validate(); err != nil {
		s.Logger.Warn("rejecting config", "err", err)
		writeError(w, http.StatusBadRequest, "bad_token")
		return profile, render.Data{}, false
	}

	now := s.Clock.Now()
	nowLocal := now.In(commute.StateTimezone(cfg.EffectiveState()))

	planner := commute.NewPlanner(s.Network, s.Transit.Keyed(cfg.TransitAPIKey))
	planner.Logger = s.Logger
	journey := planner.PlanJourney(r.Context(), cfg, now)
	observePlan(journey)

	data := render.Data{
		Journey:     journey,
		HomeAddress: shortAddress(cfg.Home.FormattedAddress),
		Destination: shortAddress(cfg.Work.FormattedAddress),
		Now:         nowLocal,
	}
	if report, ok := s.Weather.Report(r.Context(), cfg.Home.Latitude, cfg.Home.Longitude); ok {
		data.Weather = &report
	}
	return profile, data, true
}

func (s *Server) handlePairPost(w http.ResponseWriter, r *http.Request) {
	code := strings.ToUpper(chi.URLParam(r, "code"))

	var body struct {
		DeviceID    string            `json:"deviceId"`
		DeviceKind  string            `json:"deviceKind"`
		WebhookURL  string            `json:"webhookUrl"`
		Preferences map[string]string `json:"preferences"`
	}
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 16<<10)).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request")
		return
	}

	var result pair.Result
	var err error
	if body.WebhookURL != "" {
		// Completion is the wizard side. When an admin password is
		// configured it must accompany the webhook URL; device
		// claims stay open either way.
		if s.AdminPassword != "" && r.Header.Get("X-Admin-Password") != s.AdminPassword {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		result, err = s.Pairing.Complete(r.Context(), code, body.WebhookURL, body.Preferences)
	} else {
		result, err = s.Pairing.Claim(r.Context(), code, body.DeviceID, body.DeviceKind)
	}

	switch {
	case errors.Is(err, pair.ErrCodeInUse):
		writeError(w, http.StatusConflict, "code_in_use")
	case errors.Is(err, pair.ErrBadCode):
		writeError(w, http.StatusBadRequest, "bad_code")
	case err != nil:
		s.Logger.Error("pairing write failed", "err", err)
		writeError(w, http.StatusInternalServerError, "pairing_unavailable")
	default:
		writeJSON(w, http.StatusOK, map[string]string{"status": string(result.Status)})
	}
}

func (s *Server) handlePairGet(w http.ResponseWriter, r *http.Request) {
	code := strings.ToUpper(chi.URLParam(r, "code"))

	result, err := s.Pairing.Poll(r.Context(), code)
	switch {
	case errors.Is(err, pair.ErrBadCode):
		writeError(w, http.StatusBadRequest, "bad_code")
		return
	case err != nil:
		s.Logger.Error("pairing read failed", "err", err)
		writeError(w, http.StatusInternalServerError, "pairing_unavailable")
		return
	}

	response := map[string]string{"status": string(result.Status)}
	if result.WebhookURL != "" {
		response["webhookUrl"] = result.WebhookURL
	}
	writeJSON(w, http.StatusOK, response)
}

// handleGeocode resolves an address during setup. Admin-gated; the
// Places key, if any, travels in the request, never the environment.
func (s *Server) handleGeocode(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Address      string `json:"address"`
		PlacesAPIKey string `json:"placesApiKey"`
	}
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 16<<10)).Decode(&body); err != nil || body.Address == "" {
		writeError(w, http.StatusBadRequest, "bad_request")
		return
	}

	location, err := s.Geocode.Resolve(r.Context(), body.Address, body.PlacesAPIKey)
	if err != nil {
		writeError(w, http.StatusBadGateway, "geocode_failed")
		return
	}
	writeJSON(w, http.StatusOK, location)
}

// renderFailure serves the minimal error frame with a 500.
func (s *Server) renderFailure(w http.ResponseWriter, profile render.DeviceProfile, err error) {
	s.Logger.Error("render failed", "err", err)
	observeRenderFailure()

	w.Header().Set("Content-Type", profile.ContentType())
	w.WriteHeader(http.StatusInternalServerError)
	w.Write(render.RenderError(profile, err.Error()))
}

// shortAddress keeps the street segment of a formatted address.
func shortAddress(address string) string {
	if i := strings.Index(address, ","); i > 0 {
		return strings.TrimSpace(address[:i])
	}
	return strings.TrimSpace(address)
}

// parseHashes decodes the ?hashes=id:hash,... query parameter.
func parseHashes(raw string) map[string]string {
	hashes := map[string]string{}
	for _, part := range strings.Split(raw, ",") {
		if i := strings.LastIndex(part, ":"); i > 0 {
			hashes[part[:i]] = part[i+1:]
		}
	}
	return hashes
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		fmt.Fprintln(w, "{}")
	}
}

func writeError(w http.ResponseWriter, status int, code string) {
	writeJSON(w, status, map[string]string{"error": code})
}
