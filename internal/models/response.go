package models

import (
	"encoding/json"
	"net/http"
)

// ErrorResponse - единый формат тела ошибки для HTTP-ответов сервисов.
// Клиентский SDK разбирает именно это поле при маппинге статусов на ошибки.
type ErrorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, statusCode int, body interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(statusCode)
	if body == nil {
		// Ответ без тела: только статус
		return
	}
	json.NewEncoder(w).Encode(body)
}

// SendJSONError пишет ошибку в формате ErrorResponse с указанным статусом.
func SendJSONError(w http.ResponseWriter, message string, statusCode int) {
	writeJSON(w, statusCode, ErrorResponse{Error: message})
}

// SendJSONResponse пишет успешный JSON-ответ. nil data дает пустое тело.
func SendJSONResponse(w http.ResponseWriter, data interface{}, statusCode int) {
	writeJSON(w, statusCode, data)
}
