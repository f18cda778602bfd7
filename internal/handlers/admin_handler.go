package handlers

import (
	"net/http"
	"time"

	"codequest/internal/logger"
	"codequest/internal/models"
	"codequest/internal/service"
)

// AdminHandler exposes maintenance operations to admin callers
type AdminHandler struct {
	missions *service.MissionService
	accounts *service.AccountService
	log      *logger.Logger
}

func NewAdminHandler(missions *service.MissionService, accounts *service.AccountService, log *logger.Logger) *AdminHandler {
	return &AdminHandler{missions: missions, accounts: accounts, log: log.With("handler", "admin")}
}

// ExpireMissions runs one expiry sweep
func (h *AdminHandler) ExpireMissions(w http.ResponseWriter, r *http.Request) {
	count, err := h.missions.ExpireMissions(r.Context())
	if err != nil {
		respondWithError(w, h.log, err)
		return
	}
	respondJSON(w, h.log, http.StatusOK, map[string]int64{"expired": count})
}

// GenerateMissions creates the current ?type=daily|weekly set for a user
func (h *AdminHandler) GenerateMissions(w http.ResponseWriter, r *http.Request) {
	typ, err := models.ParseMissionType(r.URL.Query().Get("type"))
	if err != nil {
		respondWithError(w, h.log, err)
		return
	}

	missions, err := h.missions.Generate(r.Context(), r.PathValue("userID"), typ)
	if err != nil {
		respondWithError(w, h.log, err)
		return
	}
	respondJSON(w, h.log, http.StatusOK, map[string]any{"type": typ, "missions": missions})
}

type eventMissionRequest struct {
	Objective string        `json:"objective"`
	Target    int           `json:"target"`
	Reward    models.Reward `json:"reward"`
	ExpiresAt *time.Time    `json:"expiresAt"`
}

// CreateEventMission adds a one-off EVENT mission for a user
func (h *AdminHandler) CreateEventMission(w http.ResponseWriter, r *http.Request) {
	var req eventMissionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondWithError(w, h.log, err)
		return
	}
	if req.ExpiresAt == nil {
		respondWithError(w, h.log, requiredField("expiresAt"))
		return
	}

	mission, err := h.missions.CreateEventMission(r.Context(), service.EventMissionInput{
		UserID:    r.PathValue("userID"),
		Objective: models.ObjectiveKind(req.Objective),
		Target:    req.Target,
		Reward:    req.Reward,
		ExpiresAt: *req.ExpiresAt,
	})
	if err != nil {
		respondWithError(w, h.log, err)
		return
	}
	respondJSON(w, h.log, http.StatusCreated, mission)
}

type streakRequest struct {
	DayStreak *int `json:"dayStreak"`
}

// SetStreak records the day streak the XP multiplier reads
func (h *AdminHandler) SetStreak(w http.ResponseWriter, r *http.Request) {
	var req streakRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondWithError(w, h.log, err)
		return
	}
	if req.DayStreak == nil {
		respondWithError(w, h.log, requiredField("dayStreak"))
		return
	}

	account, err := h.accounts.SetStreak(r.Context(), r.PathValue("userID"), *req.DayStreak)
	if err != nil {
		respondWithError(w, h.log, err)
		return
	}
	respondJSON(w, h.log, http.StatusOK, account)
}
