package main

import (
	"net/http"

	"planta/internal/auth"
)

// Module settings parameterize the workflow engine: consecutive prefix and
// counter, padding, locked statuses, tracked fields, custom statuses and the
// final (archival) status. The engine reads them at the start of every
// operation, so a PUT takes effect immediately.

func handleGetSettings(w http.ResponseWriter, r *http.Request, module string) {
	eng, ok := engines[module]
	if !ok {
		jsonErr(w, "not found", 404)
		return
	}
	all, err := eng.Settings().All()
	if err != nil {
		jsonErr(w, err.Error(), 500)
		return
	}
	jsonResp(w, all)
}

func handlePutSettings(w http.ResponseWriter, r *http.Request, module string) {
	if !requireRole(w, r, auth.RoleAdmin, auth.RoleSupervisor) {
		return
	}
	eng, ok := engines[module]
	if !ok {
		jsonErr(w, "not found", 404)
		return
	}
	var body map[string]string
	if err := decodeBody(r, &body); err != nil || len(body) == 0 {
		jsonErr(w, "invalid body", 400)
		return
	}
	st := eng.Settings()
	for k, v := range body {
		if err := st.Put(k, v); err != nil {
			jsonErr(w, err.Error(), 500)
			return
		}
	}
	sink.Record(module, "", actorName(r), "settings", "Configuración de "+module+" actualizada")
	handleGetSettings(w, r, module)
}
