package main

import (
	"net/http"
	"strconv"
)

func handleAuditLog(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	limit, _ := strconv.Atoi(q.Get("limit"))
	items, total, err := sink.List(q.Get("module"), q.Get("user"), q.Get("search"), page, limit)
	if err != nil {
		jsonErr(w, err.Error(), 500)
		return
	}
	if page <= 0 {
		page = 1
	}
	if limit <= 0 {
		limit = 50
	}
	jsonRespMeta(w, items, total, page, limit)
}
