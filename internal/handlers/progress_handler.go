package handlers

import (
	"net/http"

	"codequest/internal/logger"
	"codequest/internal/models"
	"codequest/internal/service"
)

// ProgressHandler serves ability, question selection and answer submission
type ProgressHandler struct {
	ratings  *service.RatingService
	selector *service.QuestionSelector
	answers  *service.AnswerService
	log      *logger.Logger
}

func NewProgressHandler(ratings *service.RatingService, selector *service.QuestionSelector, answers *service.AnswerService, log *logger.Logger) *ProgressHandler {
	return &ProgressHandler{ratings: ratings, selector: selector, answers: answers, log: log.With("handler", "progress")}
}

// GetAbility returns the user's rating per skill with a summary
func (h *ProgressHandler) GetAbility(w http.ResponseWriter, r *http.Request) {
	summary, err := h.ratings.GetAbility(r.Context(), r.PathValue("userID"))
	if err != nil {
		respondWithError(w, h.log, err)
		return
	}
	respondJSON(w, h.log, http.StatusOK, summary)
}

type setRatingRequest struct {
	SkillID   string   `json:"skillId"`
	EloRating *float64 `json:"eloRating"`
}

// SetAbility overrides one skill rating
func (h *ProgressHandler) SetAbility(w http.ResponseWriter, r *http.Request) {
	var req setRatingRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondWithError(w, h.log, err)
		return
	}
	if req.EloRating == nil {
		respondWithError(w, h.log, requiredField("eloRating"))
		return
	}

	rating, err := h.ratings.SetRating(r.Context(), r.PathValue("userID"), req.SkillID, *req.EloRating)
	if err != nil {
		respondWithError(w, h.log, err)
		return
	}
	respondJSON(w, h.log, http.StatusOK, rating)
}

type nextQuestionResponse struct {
	Available bool             `json:"available"`
	Question  *models.Question `json:"question,omitempty"`
}

// NextQuestion picks the next question for ?skill=, reporting an empty pool as unavailable
func (h *ProgressHandler) NextQuestion(w http.ResponseWriter, r *http.Request) {
	q, err := h.selector.Next(r.Context(), r.PathValue("userID"), r.URL.Query().Get("skill"))
	if err != nil {
		respondWithError(w, h.log, err)
		return
	}
	respondJSON(w, h.log, http.StatusOK, nextQuestionResponse{Available: q != nil, Question: q})
}

type answerRequest struct {
	QuestionID int64   `json:"questionId"`
	IsCorrect  *bool   `json:"isCorrect"`
	TimeSpent  float64 `json:"timeSpent"`
}

// SubmitAnswer records one answer and returns the XP and rating change
func (h *ProgressHandler) SubmitAnswer(w http.ResponseWriter, r *http.Request) {
	var req answerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondWithError(w, h.log, err)
		return
	}
	if req.IsCorrect == nil {
		respondWithError(w, h.log, requiredField("isCorrect"))
		return
	}

	result, err := h.answers.Submit(r.Context(), service.AnswerInput{
		UserID:     r.PathValue("userID"),
		QuestionID: req.QuestionID,
		IsCorrect:  *req.IsCorrect,
		TimeSpent:  req.TimeSpent,
	})
	if err != nil {
		respondWithError(w, h.log, err)
		return
	}
	respondJSON(w, h.log, http.StatusOK, result)
}
