package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"

	"pointsbot/internal/auth"
	"pointsbot/internal/logger"
	"pointsbot/internal/storage"
)

// MeResponse is the profile payload for the authenticated user
type MeResponse struct {
	Username  string                  `json:"username"`
	FirstName string                  `json:"first_name"`
	Balance   int64                   `json:"balance"`
	CreatedAt string                  `json:"created_at"`
	History   []storage.PointLogEntry `json:"history"`
}

// HandleMe handles GET /api/me: the caller's profile plus recent point log
func HandleMe(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		respondWithError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	telegramID, ok := auth.GetUserIDFromContext(r.Context())
	if !ok {
		respondWithError(w, "Unauthorized: user not in context", http.StatusUnauthorized)
		return
	}

	user, err := storage.GetUserByTelegramID(telegramID)
	if err != nil || user == nil {
		logger.Debug("", "me_user_not_found", fmt.Sprintf("telegram_id=%d", telegramID))
		respondWithError(w, "User not found", http.StatusNotFound)
		return
	}

	history, err := storage.GetPointLog(user.Username, 25)
	if err != nil {
		logger.Debug(user.Username, "me_history_error", "error="+err.Error())
		respondWithError(w, "Failed to get point history", http.StatusInternalServerError)
		return
	}

	resp := MeResponse{
		Username:  user.Username,
		FirstName: user.FirstName,
		Balance:   user.Balance,
		CreatedAt: user.CreatedAt.Format("2006-01-02"),
		History:   history,
	}

	logger.Debug(user.Username, "me_success", fmt.Sprintf("balance=%d history=%d", user.Balance, len(history)))
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(resp)
}
