package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// OutfitLookup is the external profile collaborator. It is read-only and
// called once per join; a failure of any kind falls back to DefaultOutfit.
type OutfitLookup interface {
	GetOutfit(ctx context.Context, username string) (Outfit, error)
}

// DefaultOutfit is worn by users the profile service does not know.
func DefaultOutfit() Outfit {
	return Outfit{ShirtColor: "#ff9900", PantsColor: "#333333", HatType: "none"}
}

// StaticOutfits serves outfits from a fixed map, defaults for everyone else.
// Used when no profile service is configured, and in tests.
type StaticOutfits map[string]Outfit

func (m StaticOutfits) GetOutfit(_ context.Context, username string) (Outfit, error) {
	if o, ok := m[username]; ok {
		return o, nil
	}
	return DefaultOutfit(), nil
}

// HTTPOutfits queries GET {base}/api/outfit/{username} on the profile
// service. The join handler bounds each call with outfitTimeout so a slow
// collaborator cannot stall joins.
type HTTPOutfits struct {
	Base   string
	Client *http.Client
}

const outfitTimeout = 2 * time.Second

func (h *HTTPOutfits) GetOutfit(ctx context.Context, username string) (Outfit, error) {
	client := h.Client
	if client == nil {
		client = http.DefaultClient
	}
	u := h.Base + "/api/outfit/" + url.PathEscape(username)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return DefaultOutfit(), err
	}
	resp, err := client.Do(req)
	if err != nil {
		return DefaultOutfit(), err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return DefaultOutfit(), fmt.Errorf("outfit service: status %d", resp.StatusCode)
	}
	var o Outfit
	if err := json.NewDecoder(resp.Body).Decode(&o); err != nil {
		return DefaultOutfit(), err
	}
	if o.ShirtColor == "" {
		o.ShirtColor = DefaultOutfit().ShirtColor
	}
	if o.PantsColor == "" {
		o.PantsColor = DefaultOutfit().PantsColor
	}
	if o.HatType == "" {
		o.HatType = DefaultOutfit().HatType
	}
	return o, nil
}
