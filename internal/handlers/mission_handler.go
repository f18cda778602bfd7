package handlers

import (
	"net/http"

	"codequest/internal/logger"
	"codequest/internal/models"
	"codequest/internal/service"
)

// MissionHandler serves mission listing, progress events and reward claims
type MissionHandler struct {
	missions *service.MissionService
	rewards  *service.RewardService
	log      *logger.Logger
}

func NewMissionHandler(missions *service.MissionService, rewards *service.RewardService, log *logger.Logger) *MissionHandler {
	return &MissionHandler{missions: missions, rewards: rewards, log: log.With("handler", "missions")}
}

type missionsResponse struct {
	Missions map[models.MissionType][]models.Mission `json:"missions"`
}

// ListMissions returns the active missions grouped by type, generating the
// current daily and weekly sets on first access
func (h *MissionHandler) ListMissions(w http.ResponseWriter, r *http.Request) {
	grouped, err := h.missions.ListActive(r.Context(), r.PathValue("userID"))
	if err != nil {
		respondWithError(w, h.log, err)
		return
	}
	respondJSON(w, h.log, http.StatusOK, missionsResponse{Missions: grouped})
}

type claimResponse struct {
	MissionID string         `json:"missionId"`
	Claimed   bool           `json:"claimed"`
	Reward    *models.Reward `json:"reward"`
}

// ClaimReward pays out a completed mission
func (h *MissionHandler) ClaimReward(w http.ResponseWriter, r *http.Request) {
	missionID := r.PathValue("missionID")
	reward, err := h.rewards.Claim(r.Context(), r.PathValue("userID"), missionID)
	if err != nil {
		respondWithError(w, h.log, err)
		return
	}
	respondJSON(w, h.log, http.StatusOK, claimResponse{MissionID: missionID, Claimed: true, Reward: reward})
}

type eventRequest struct {
	Kind   string `json:"kind"`
	Amount int    `json:"amount"`
}

type eventResponse struct {
	Accepted bool             `json:"accepted"`
	Updated  []models.Mission `json:"updated"`
}

// RecordEvent applies one gameplay event to the user's missions
func (h *MissionHandler) RecordEvent(w http.ResponseWriter, r *http.Request) {
	var req eventRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondWithError(w, h.log, err)
		return
	}
	kind, err := models.ParseEventKind(req.Kind)
	if err != nil {
		respondWithError(w, h.log, err)
		return
	}

	updated, err := h.missions.UpdateProgress(r.Context(), r.PathValue("userID"), models.Event{Kind: kind, Amount: req.Amount})
	if err != nil {
		respondWithError(w, h.log, err)
		return
	}
	if updated == nil {
		updated = []models.Mission{}
	}
	respondJSON(w, h.log, http.StatusOK, eventResponse{Accepted: true, Updated: updated})
}
