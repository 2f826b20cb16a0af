package main

import (
	"net/http"
	"strconv"

	"planta/internal/auth"
	"planta/internal/workflow"
)

// The four workflow modules share one route shape:
//
//	GET    /{module}                           list (active/archived partition)
//	POST   /{module}                           create
//	GET    /{module}/statuses                  known status set
//	GET    /{module}/export                    CSV/XLSX listing export
//	POST   /{module}/reset                     admin-only bulk reset
//	GET    /{module}/{id}                      fetch one
//	PUT    /{module}/{id}                      partial detail update
//	POST   /{module}/{id}/status               status transition
//	POST   /{module}/{id}/actions              request cancel/unapprove
//	POST   /{module}/{id}/actions/resolve      grant or deny (supervisor+)
//	POST   /{module}/{id}/confirm-modification clear the modified flag
//	POST   /{module}/{id}/notes                note-only history entry
//	GET    /{module}/{id}/history              the ledger
//
// Dispatch adds line and ticket routes (handler_dispatch.go).
func handleModule(w http.ResponseWriter, r *http.Request, parts []string) {
	eng := engines[parts[0]]

	switch {
	case len(parts) == 1 && r.Method == "GET":
		handleWorkflowList(w, r, eng)
	case len(parts) == 1 && r.Method == "POST":
		handleWorkflowCreate(w, r, eng)
	case len(parts) == 2 && parts[1] == "statuses" && r.Method == "GET":
		jsonResp(w, eng.Statuses())
	case len(parts) == 2 && parts[1] == "export" && r.Method == "GET":
		handleWorkflowExport(w, r, eng)
	case len(parts) == 2 && parts[1] == "reset" && r.Method == "POST":
		handleWorkflowReset(w, r, eng)
	default:
		id, err := strconv.ParseInt(parts[1], 10, 64)
		if err != nil {
			jsonErr(w, "invalid id", 400)
			return
		}
		handleModuleEntity(w, r, eng, id, parts)
	}
}

func handleModuleEntity(w http.ResponseWriter, r *http.Request, eng *workflow.Engine, id int64, parts []string) {
	module := parts[0]
	switch {
	case len(parts) == 2 && r.Method == "GET":
		handleWorkflowGet(w, r, eng, id)
	case len(parts) == 2 && r.Method == "PUT":
		handleWorkflowUpdateDetails(w, r, eng, id)
	case len(parts) == 3 && parts[2] == "status" && r.Method == "POST":
		handleWorkflowStatus(w, r, eng, id)
	case len(parts) == 3 && parts[2] == "actions" && r.Method == "POST":
		handleWorkflowRequestAction(w, r, eng, id)
	case len(parts) == 4 && parts[2] == "actions" && parts[3] == "resolve" && r.Method == "POST":
		handleWorkflowResolveAction(w, r, eng, id)
	case len(parts) == 3 && parts[2] == "confirm-modification" && r.Method == "POST":
		handleWorkflowConfirm(w, r, eng, id)
	case len(parts) == 3 && parts[2] == "notes" && r.Method == "POST":
		handleWorkflowAddNote(w, r, eng, id)
	case len(parts) == 3 && parts[2] == "history" && r.Method == "GET":
		handleWorkflowHistory(w, r, eng, id)
	case module == moduleDispatch:
		handleDispatchExtra(w, r, eng, id, parts)
	default:
		jsonErr(w, "not found", 404)
	}
}

func handleWorkflowList(w http.ResponseWriter, r *http.Request, eng *workflow.Engine) {
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	limit, _ := strconv.Atoi(q.Get("limit"))
	opts := workflow.ListOptions{
		Archived: q.Get("archived") == "true",
		Status:   q.Get("status"),
		Search:   q.Get("search"),
		Page:     page,
		Limit:    limit,
	}
	items, total, err := eng.List(opts)
	if err != nil {
		jsonErr(w, err.Error(), 500)
		return
	}
	if opts.Page <= 0 {
		opts.Page = 1
	}
	if opts.Limit <= 0 {
		opts.Limit = 50
	}
	jsonRespMeta(w, items, total, opts.Page, opts.Limit)
}

func handleWorkflowCreate(w http.ResponseWriter, r *http.Request, eng *workflow.Engine) {
	var body struct {
		Fields map[string]string `json:"fields"`
		Notes  string            `json:"notes"`
	}
	if err := decodeBody(r, &body); err != nil {
		jsonErr(w, "invalid body", 400)
		return
	}
	ent, err := eng.Create(body.Fields, actorName(r), body.Notes)
	if err != nil {
		workflowErr(w, err)
		return
	}
	jsonResp(w, ent)
}

func handleWorkflowGet(w http.ResponseWriter, r *http.Request, eng *workflow.Engine, id int64) {
	ent, err := eng.Get(id)
	if err != nil {
		workflowErr(w, err)
		return
	}
	jsonResp(w, ent)
}

func handleWorkflowStatus(w http.ResponseWriter, r *http.Request, eng *workflow.Engine, id int64) {
	var body struct {
		Status string            `json:"status"`
		Notes  string            `json:"notes"`
		Reopen bool              `json:"reopen"`
		Extra  map[string]string `json:"extra"`
	}
	if err := decodeBody(r, &body); err != nil || body.Status == "" {
		jsonErr(w, "status required", 400)
		return
	}

	// Entering the approval status is gated to supervisors and admins.
	def := eng.Definition()
	if def.Approved != "" && body.Status == def.Approved {
		u := currentUser(r)
		if u == nil || !auth.CanResolveActions(u.Role) {
			jsonErr(w, "Forbidden", 403)
			return
		}
	}

	ent, err := eng.UpdateStatus(id, workflow.StatusUpdate{
		NewStatus: body.Status,
		Actor:     actorName(r),
		Notes:     body.Notes,
		Reopen:    body.Reopen,
		Extra:     body.Extra,
	})
	if err != nil {
		workflowErr(w, err)
		return
	}
	afterStatusChange(def.Module, ent, actorName(r))
	jsonResp(w, ent)
}

func handleWorkflowUpdateDetails(w http.ResponseWriter, r *http.Request, eng *workflow.Engine, id int64) {
	var body struct {
		Fields map[string]string `json:"fields"`
	}
	if err := decodeBody(r, &body); err != nil || len(body.Fields) == 0 {
		jsonErr(w, "fields required", 400)
		return
	}
	ent, err := eng.UpdateDetails(id, body.Fields, actorName(r))
	if err != nil {
		workflowErr(w, err)
		return
	}
	jsonResp(w, ent)
}

func handleWorkflowRequestAction(w http.ResponseWriter, r *http.Request, eng *workflow.Engine, id int64) {
	var body struct {
		Action string `json:"action"`
		Notes  string `json:"notes"`
	}
	if err := decodeBody(r, &body); err != nil || body.Action == "" {
		jsonErr(w, "action required", 400)
		return
	}
	ent, err := eng.RequestAction(id, body.Action, actorName(r), body.Notes)
	if err != nil {
		workflowErr(w, err)
		return
	}
	sink.NotifyRole(auth.RoleSupervisor, "Acción por resolver",
		actorName(r)+" solicitó una acción sobre "+ent.Consecutive,
		eng.Definition().Module, ent.Consecutive)
	jsonResp(w, ent)
}

func handleWorkflowResolveAction(w http.ResponseWriter, r *http.Request, eng *workflow.Engine, id int64) {
	if !requireRole(w, r, auth.RoleAdmin, auth.RoleSupervisor) {
		return
	}
	var body struct {
		Grant bool   `json:"grant"`
		Notes string `json:"notes"`
	}
	if err := decodeBody(r, &body); err != nil {
		jsonErr(w, "invalid body", 400)
		return
	}
	ent, err := eng.ResolveAction(id, body.Grant, actorName(r), body.Notes)
	if err != nil {
		workflowErr(w, err)
		return
	}
	jsonResp(w, ent)
}

func handleWorkflowConfirm(w http.ResponseWriter, r *http.Request, eng *workflow.Engine, id int64) {
	ent, err := eng.ConfirmModification(id, actorName(r))
	if err != nil {
		workflowErr(w, err)
		return
	}
	jsonResp(w, ent)
}

func handleWorkflowAddNote(w http.ResponseWriter, r *http.Request, eng *workflow.Engine, id int64) {
	var body struct {
		Notes string `json:"notes"`
	}
	if err := decodeBody(r, &body); err != nil || body.Notes == "" {
		jsonErr(w, "notes required", 400)
		return
	}
	if err := eng.AddNote(id, actorName(r), body.Notes); err != nil {
		workflowErr(w, err)
		return
	}
	handleWorkflowHistory(w, r, eng, id)
}

func handleWorkflowHistory(w http.ResponseWriter, r *http.Request, eng *workflow.Engine, id int64) {
	items, err := eng.History(id)
	if err != nil {
		workflowErr(w, err)
		return
	}
	jsonResp(w, items)
}

func handleWorkflowReset(w http.ResponseWriter, r *http.Request, eng *workflow.Engine) {
	if !requireRole(w, r, auth.RoleAdmin) {
		return
	}
	if err := eng.Reset(); err != nil {
		jsonErr(w, err.Error(), 500)
		return
	}
	sink.Record(eng.Definition().Module, "", actorName(r), "reset", "Módulo reiniciado")
	jsonResp(w, map[string]string{"status": "ok"})
}

// afterStatusChange runs module-specific side effects once the transition has
// committed. Inventory lives in its own database, so these postings are
// fire-and-forget like audit: a failure is logged, never rolled into the
// workflow transaction.
func afterStatusChange(module string, ent *Entity, actor string) {
	switch module {
	case moduleRequests:
		requestReceived(ent, actor)
	case moduleDispatch:
		dispatchDelivered(ent, actor)
	}
}
