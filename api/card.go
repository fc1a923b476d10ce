package api

import (
	"fmt"
	"html"
	"net/http"

	"github.com/go-chi/chi/v5"
)

// handleCampaignCard renders a share-card SVG for a campaign from read-only
// status. Social surfaces embed this image; nothing here mutates state.
func (s *Server) handleCampaignCard(w http.ResponseWriter, r *http.Request) {
	campaignID, ok := parseID(w, chi.URLParam(r, "campaignID"))
	if !ok {
		return
	}

	status, err := s.campaignStatus(r, campaignID)
	if err != nil {
		s.writeError(w, err)
		return
	}

	title := html.EscapeString(fmt.Sprintf("$%s Campaign", status.Campaign.TokenName))
	creator := html.EscapeString(fmt.Sprintf("by @%s", status.Campaign.CreatorID))

	svg := fmt.Sprintf(`<svg width="1200" height="630" viewBox="0 0 1200 630" xmlns="http://www.w3.org/2000/svg">
  <defs>
    <style>
      .bg { fill: #111827; }
      .title { font-family: 'Helvetica Neue', Helvetica, Arial, sans-serif; font-size: 72px; font-weight: bold; fill: #FFFFFF; }
      .creator { font-family: 'Helvetica Neue', Helvetica, Arial, sans-serif; font-size: 48px; fill: #9CA3AF; }
      .pool-label { font-family: 'Helvetica Neue', Helvetica, Arial, sans-serif; font-size: 36px; font-weight: bold; }
      .pool-value { font-family: 'Helvetica Neue', Helvetica, Arial, sans-serif; font-size: 60px; font-weight: bold; fill: #FFFFFF; }
      .supporter { fill: #00B159; }
      .hatter { fill: #FF4136; }
    </style>
  </defs>
  <rect class="bg" width="1200" height="630"/>
  <text x="80" y="160" class="title">%s</text>
  <text x="80" y="240" class="creator">%s</text>
  <text x="80" y="420" class="pool-label supporter">SUPPORTERS</text>
  <text x="80" y="500" class="pool-value">%d</text>
  <text x="680" y="420" class="pool-label hatter">HATTERS</text>
  <text x="680" y="500" class="pool-value">%d</text>
</svg>`, title, creator, status.SupporterPool, status.HatterPool)

	w.Header().Set("Content-Type", "image/svg+xml")
	w.Header().Set("Cache-Control", "public, max-age=60")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(svg))
}
