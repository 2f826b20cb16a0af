package main

import (
	"encoding/json"
	"errors"
	"net/http"

	"planta/internal/workflow"
)

func jsonResp(w http.ResponseWriter, data interface{}) {
	json.NewEncoder(w).Encode(APIResponse{Data: data})
}

func jsonRespMeta(w http.ResponseWriter, data interface{}, total, page, limit int) {
	json.NewEncoder(w).Encode(APIResponse{Data: data, Meta: &Meta{Total: total, Page: page, Limit: limit}})
}

func jsonErr(w http.ResponseWriter, msg string, code int) {
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

func decodeBody(r *http.Request, v interface{}) error {
	return json.NewDecoder(r.Body).Decode(v)
}

// workflowErr maps engine errors onto HTTP status codes.
func workflowErr(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, workflow.ErrNotFound):
		jsonErr(w, "not found", 404)
	case errors.Is(err, workflow.ErrInvalidStatus),
		errors.Is(err, workflow.ErrIllegalTransition),
		errors.Is(err, workflow.ErrUnknownField),
		errors.Is(err, workflow.ErrUnknownAction),
		errors.Is(err, workflow.ErrActionPending),
		errors.Is(err, workflow.ErrNoActionPending):
		jsonErr(w, err.Error(), 400)
	case errors.Is(err, workflow.ErrConflict):
		jsonErr(w, err.Error(), 409)
	default:
		jsonErr(w, err.Error(), 500)
	}
}
