package handlers

import (
	"net/http"

	"codequest/internal/database"
	"codequest/internal/logger"
)

// Router bundles the handlers served over HTTP
type Router struct {
	DB         *database.DB
	Middleware *Middleware
	Progress   *ProgressHandler
	Missions   *MissionHandler
	Admin      *AdminHandler
	Log        *logger.Logger
}

// Handler registers every route and wraps the mux with request logging
func (rt *Router) Handler() http.Handler {
	mw := rt.Middleware
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", rt.Health)

	// Progression
	mux.HandleFunc("GET /api/users/{userID}/ability", mw.RequireSelf(rt.Progress.GetAbility))
	mux.HandleFunc("POST /api/users/{userID}/ability", mw.RequireAdmin(mw.RateLimit(rt.Progress.SetAbility)))
	mux.HandleFunc("GET /api/users/{userID}/next-question", mw.RequireSelf(rt.Progress.NextQuestion))
	mux.HandleFunc("POST /api/users/{userID}/answers", mw.RequireSelf(mw.RateLimit(rt.Progress.SubmitAnswer)))

	// Missions
	mux.HandleFunc("GET /api/users/{userID}/missions", mw.RequireSelf(rt.Missions.ListMissions))
	mux.HandleFunc("POST /api/users/{userID}/missions/{missionID}/claim", mw.RequireSelf(mw.RateLimit(rt.Missions.ClaimReward)))
	mux.HandleFunc("POST /api/users/{userID}/mission-events", mw.RequireSelf(mw.RateLimit(rt.Missions.RecordEvent)))

	// Admin
	mux.HandleFunc("POST /api/admin/missions/expire", mw.RequireAdmin(rt.Admin.ExpireMissions))
	mux.HandleFunc("POST /api/admin/users/{userID}/missions/generate", mw.RequireAdmin(rt.Admin.GenerateMissions))
	mux.HandleFunc("POST /api/admin/users/{userID}/missions/event", mw.RequireAdmin(rt.Admin.CreateEventMission))
	mux.HandleFunc("PUT /api/admin/users/{userID}/streak", mw.RequireAdmin(rt.Admin.SetStreak))

	return mw.Logging(mux)
}

// Health reports whether the store is reachable
func (rt *Router) Health(w http.ResponseWriter, r *http.Request) {
	if err := rt.DB.PingContext(r.Context()); err != nil {
		rt.Log.Error("health check failed", "error", err)
		respondJSON(w, rt.Log, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	respondJSON(w, rt.Log, http.StatusOK, map[string]string{"status": "ok"})
}
