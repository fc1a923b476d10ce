package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"hattery/models"
	"hattery/service"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

type openCampaignRequest struct {
	CreatorID string    `json:"creator_id"`
	TokenName string    `json:"token_name"`
	ImageURL  string    `json:"image_url"`
	AssetLink string    `json:"asset_link"`
	Network   string    `json:"network"`
	ClosesAt  time.Time `json:"closes_at"`
	FeeBps    int64     `json:"fee_bps,omitempty"`
}

type placeWagerRequest struct {
	ParticipantID string `json:"participant_id"`
	Side          string `json:"side"`
	Amount        int64  `json:"amount"`
}

type resolveRequest struct {
	ResolverID  string `json:"resolver_id"`
	WinningSide string `json:"winning_side"`
}

type cancelRequest struct {
	CancellerID string `json:"canceller_id"`
}

type claimRequest struct {
	ParticipantID string `json:"participant_id"`
}

type claimResponse struct {
	PositionID uuid.UUID `json:"position_id"`
	Amount     int64     `json:"amount"`
}

type campaignResponse struct {
	ID                  uuid.UUID  `json:"id"`
	CreatorID           string     `json:"creator_id"`
	TokenName           string     `json:"token_name"`
	ImageURL            string     `json:"image_url,omitempty"`
	AssetLink           string     `json:"asset_link,omitempty"`
	Network             string     `json:"network,omitempty"`
	State               string     `json:"state"`
	FeeBps              int64      `json:"fee_bps"`
	SupporterPool       int64      `json:"supporter_pool"`
	HatterPool          int64      `json:"hatter_pool"`
	TotalPot            int64      `json:"total_pot"`
	PositionCount       int64      `json:"position_count"`
	SupporterMultiplier float64    `json:"supporter_multiplier"`
	HatterMultiplier    float64    `json:"hatter_multiplier"`
	WinningSide         *string    `json:"winning_side,omitempty"`
	ClosesAt            time.Time  `json:"closes_at"`
	CreatedAt           time.Time  `json:"created_at"`
	ResolvedAt          *time.Time `json:"resolved_at,omitempty"`
}

type positionResponse struct {
	ID         uuid.UUID  `json:"id"`
	CampaignID uuid.UUID  `json:"campaign_id"`
	OwnerID    string     `json:"owner_id"`
	Side       string     `json:"side"`
	Amount     int64      `json:"amount"`
	Status     string     `json:"status"`
	Claimed    bool       `json:"claimed"`
	Claimable  int64      `json:"claimable"`
	Payout     *int64     `json:"payout,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	ClaimedAt  *time.Time `json:"claimed_at,omitempty"`
}

type campaignDetailResponse struct {
	Campaign  campaignResponse   `json:"campaign"`
	Positions []positionResponse `json:"positions"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleOpenCampaign(w http.ResponseWriter, r *http.Request) {
	var req openCampaignRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	campaign, err := s.campaigns.OpenCampaign(r.Context(), service.OpenCampaignParams{
		CreatorID: req.CreatorID,
		TokenName: req.TokenName,
		ImageURL:  req.ImageURL,
		AssetLink: req.AssetLink,
		Network:   req.Network,
		ClosesAt:  req.ClosesAt,
		FeeBps:    req.FeeBps,
	})
	if err != nil {
		s.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, campaignFromStatus(&service.CampaignStatus{
		Campaign:      campaign,
		State:         campaign.State,
		SupporterPool: campaign.SupporterPool,
		HatterPool:    campaign.HatterPool,
	}))
}

func (s *Server) handleListCampaigns(w http.ResponseWriter, r *http.Request) {
	statuses, err := s.campaigns.ListCampaigns(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}

	resp := make([]campaignResponse, 0, len(statuses))
	for _, status := range statuses {
		resp = append(resp, campaignFromStatus(status))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleCampaignStatus(w http.ResponseWriter, r *http.Request) {
	campaignID, ok := parseID(w, chi.URLParam(r, "campaignID"))
	if !ok {
		return
	}

	status, err := s.campaignStatus(r, campaignID)
	if err != nil {
		s.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, campaignFromStatus(status))
}

func (s *Server) handleCampaignPositions(w http.ResponseWriter, r *http.Request) {
	campaignID, ok := parseID(w, chi.URLParam(r, "campaignID"))
	if !ok {
		return
	}

	detail, err := s.campaigns.GetCampaignDetail(r.Context(), campaignID)
	if err != nil {
		s.writeError(w, err)
		return
	}

	positions := make([]positionResponse, 0, len(detail.Positions))
	for _, view := range detail.Positions {
		positions = append(positions, positionFromView(view))
	}
	writeJSON(w, http.StatusOK, campaignDetailResponse{
		Campaign:  campaignFromStatus(detail.Status),
		Positions: positions,
	})
}

func (s *Server) handlePlaceWager(w http.ResponseWriter, r *http.Request) {
	campaignID, ok := parseID(w, chi.URLParam(r, "campaignID"))
	if !ok {
		return
	}

	var req placeWagerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	position, err := s.campaigns.PlaceWager(r.Context(), campaignID, req.ParticipantID, models.BetSide(req.Side), req.Amount)
	if err != nil {
		s.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, positionResponse{
		ID:         position.ID,
		CampaignID: position.CampaignID,
		OwnerID:    position.OwnerID,
		Side:       string(position.Side),
		Amount:     position.Amount,
		Status:     string(models.PositionStatusActive),
		CreatedAt:  position.CreatedAt,
	})
}

func (s *Server) handleResolve(w http.ResponseWriter, r *http.Request) {
	campaignID, ok := parseID(w, chi.URLParam(r, "campaignID"))
	if !ok {
		return
	}

	var req resolveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	campaign, err := s.campaigns.ResolveCampaign(r.Context(), campaignID, req.ResolverID, models.BetSide(req.WinningSide))
	if err != nil {
		s.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, campaignFromStatus(&service.CampaignStatus{
		Campaign:      campaign,
		State:         campaign.State,
		SupporterPool: campaign.SupporterPool,
		HatterPool:    campaign.HatterPool,
		TotalPot:      campaign.TotalPot(),
	}))
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	campaignID, ok := parseID(w, chi.URLParam(r, "campaignID"))
	if !ok {
		return
	}

	var req cancelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	if err := s.campaigns.CancelCampaign(r.Context(), campaignID, req.CancellerID); err != nil {
		s.writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleClaim(w http.ResponseWriter, r *http.Request) {
	positionID, ok := parseID(w, chi.URLParam(r, "positionID"))
	if !ok {
		return
	}

	var req claimRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	amount, err := s.campaigns.Claim(r.Context(), positionID, req.ParticipantID)
	if err != nil {
		s.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, claimResponse{PositionID: positionID, Amount: amount})
}

func (s *Server) handleGetPosition(w http.ResponseWriter, r *http.Request) {
	positionID, ok := parseID(w, chi.URLParam(r, "positionID"))
	if !ok {
		return
	}

	view, err := s.campaigns.GetPosition(r.Context(), positionID)
	if err != nil {
		s.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, positionFromView(view))
}

func (s *Server) handleListPositions(w http.ResponseWriter, r *http.Request) {
	participantID := chi.URLParam(r, "participantID")

	views, err := s.campaigns.ListPositionsByOwner(r.Context(), participantID)
	if err != nil {
		s.writeError(w, err)
		return
	}

	resp := make([]positionResponse, 0, len(views))
	for _, view := range views {
		resp = append(resp, positionFromView(view))
	}
	writeJSON(w, http.StatusOK, resp)
}

// campaignStatus reads a status snapshot through the cache when configured
func (s *Server) campaignStatus(r *http.Request, campaignID uuid.UUID) (*service.CampaignStatus, error) {
	if s.cache != nil {
		return s.cache.Status(r.Context(), campaignID)
	}
	return s.campaigns.GetCampaignStatus(r.Context(), campaignID)
}

// writeError maps engine error kinds to transport responses. Internal
// invariant faults are logged in full and surface as opaque 500s.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	if models.IsInvariantViolation(err) {
		log.WithError(err).Error("Engine invariant violation")
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
		return
	}

	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, models.ErrCampaignNotFound), errors.Is(err, models.ErrPositionNotFound):
		status = http.StatusNotFound
	case errors.Is(err, models.ErrInvalidAmount), errors.Is(err, models.ErrInvalidInput):
		status = http.StatusBadRequest
	case errors.Is(err, models.ErrNotOwner), errors.Is(err, models.ErrNotAuthorized):
		status = http.StatusForbidden
	case errors.Is(err, models.ErrCampaignNotOpen),
		errors.Is(err, models.ErrCampaignNotClosed),
		errors.Is(err, models.ErrAlreadyResolved),
		errors.Is(err, models.ErrNotResolved),
		errors.Is(err, models.ErrNotAWinner),
		errors.Is(err, models.ErrAlreadyClaimed):
		status = http.StatusConflict
	}

	if status == http.StatusInternalServerError {
		log.WithError(err).Error("Unexpected error handling request")
		writeJSON(w, status, errorResponse{Error: "internal error"})
		return
	}

	writeJSON(w, status, errorResponse{Error: err.Error()})
}

func campaignFromStatus(status *service.CampaignStatus) campaignResponse {
	campaign := status.Campaign
	resp := campaignResponse{
		ID:                  campaign.ID,
		CreatorID:           campaign.CreatorID,
		TokenName:           campaign.TokenName,
		ImageURL:            campaign.ImageURL,
		AssetLink:           campaign.AssetLink,
		Network:             campaign.Network,
		State:               string(status.State),
		FeeBps:              campaign.FeeBps,
		SupporterPool:       status.SupporterPool,
		HatterPool:          status.HatterPool,
		TotalPot:            status.TotalPot,
		PositionCount:       status.PositionCount,
		SupporterMultiplier: status.SupporterMultiplier,
		HatterMultiplier:    status.HatterMultiplier,
		ClosesAt:            campaign.ClosesAt,
		CreatedAt:           campaign.CreatedAt,
		ResolvedAt:          campaign.ResolvedAt,
	}
	if campaign.WinningSide != nil {
		side := string(*campaign.WinningSide)
		resp.WinningSide = &side
	}
	return resp
}

func positionFromView(view *service.PositionView) positionResponse {
	position := view.Position
	return positionResponse{
		ID:         position.ID,
		CampaignID: position.CampaignID,
		OwnerID:    position.OwnerID,
		Side:       string(position.Side),
		Amount:     position.Amount,
		Status:     string(view.Status),
		Claimed:    position.Claimed,
		Claimable:  view.Claimable,
		Payout:     position.PayoutAmount,
		CreatedAt:  position.CreatedAt,
		ClaimedAt:  position.ClaimedAt,
	}
}

func parseID(w http.ResponseWriter, raw string) (uuid.UUID, bool) {
	id, err := uuid.Parse(raw)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid id"})
		return uuid.UUID{}, false
	}
	return id, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.WithError(err).Error("Failed to encode response")
	}
}
