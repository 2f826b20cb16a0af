package main

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"planta/internal/auth"
	"planta/internal/config"
)

// setupTestApp rebuilds the application on in-memory databases and returns the
// full middleware stack, so tests exercise auth, routing and handlers the way
// a browser would.
func setupTestApp(t *testing.T) http.Handler {
	t.Helper()
	cfg = config.Default()
	if err := initApp(":memory:"); err != nil {
		t.Fatalf("initApp: %v", err)
	}
	seedDB()
	return logging(requireAuth(newMux()))
}

func login(t *testing.T, h http.Handler, username string) *http.Cookie {
	t.Helper()
	w := doJSON(t, h, "POST", "/auth/login",
		`{"username":"`+username+`","password":"changeme"}`, nil)
	if w.Code != 200 {
		t.Fatalf("login %s failed: %d %s", username, w.Code, w.Body.String())
	}
	for _, c := range w.Result().Cookies() {
		if c.Name == auth.SessionCookie && c.Value != "" {
			return c
		}
	}
	t.Fatal("login response carried no session cookie")
	return nil
}

func doJSON(t *testing.T, h http.Handler, method, path, body string, cookie *http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rd)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if cookie != nil {
		req.AddCookie(cookie)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

type envelope struct {
	Data json.RawMessage `json:"data"`
	Meta *Meta           `json:"meta"`
}

// decodeData unwraps the APIResponse envelope into v and returns the meta
// block, if any.
func decodeData(t *testing.T, w *httptest.ResponseRecorder, v interface{}) *Meta {
	t.Helper()
	var env envelope
	if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode envelope: %v (%s)", err, w.Body.String())
	}
	if v != nil {
		if err := json.Unmarshal(env.Data, v); err != nil {
			t.Fatalf("decode data: %v (%s)", err, env.Data)
		}
	}
	return env.Meta
}

func TestLoginFlow(t *testing.T) {
	h := setupTestApp(t)

	w := doJSON(t, h, "POST", "/auth/login", `{"username":"admin","password":"wrong"}`, nil)
	if w.Code != 401 {
		t.Errorf("bad password should be 401, got %d", w.Code)
	}

	cookie := login(t, h, "admin")

	w = doJSON(t, h, "GET", "/auth/me", "", cookie)
	if w.Code != 200 {
		t.Fatalf("me failed: %d %s", w.Code, w.Body.String())
	}
	var me User
	decodeData(t, w, &me)
	if me.Username != "admin" || me.Role != auth.RoleAdmin {
		t.Errorf("unexpected identity: %+v", me)
	}

	doJSON(t, h, "POST", "/auth/logout", "", cookie)
	w = doJSON(t, h, "GET", "/auth/me", "", cookie)
	if w.Code != 401 {
		t.Errorf("session should die with logout, got %d", w.Code)
	}
}

func TestAPIRequiresSession(t *testing.T) {
	h := setupTestApp(t)
	w := doJSON(t, h, "GET", "/api/v1/requests", "", nil)
	if w.Code != 401 {
		t.Errorf("expected 401 without a session, got %d", w.Code)
	}
}

func TestRequestLifecycle(t *testing.T) {
	h := setupTestApp(t)
	carlos := login(t, h, "carlos")
	marta := login(t, h, "marta")

	w := doJSON(t, h, "POST", "/api/v1/requests",
		`{"fields":{"item":"Lámina calibre 20","quantity":"40","supplier":"Aceros SA"}}`, carlos)
	if w.Code != 200 {
		t.Fatalf("create failed: %d %s", w.Code, w.Body.String())
	}
	var ent Entity
	decodeData(t, w, &ent)
	if ent.Consecutive != "SC-00001" || ent.Status != "pending" {
		t.Fatalf("unexpected entity: %+v", ent)
	}
	if ent.RequestedBy != "Carlos Compras" {
		t.Errorf("requested_by should be the display name, got %s", ent.RequestedBy)
	}

	// A buyer may not approve.
	w = doJSON(t, h, "POST", "/api/v1/requests/1/status", `{"status":"approved"}`, carlos)
	if w.Code != 403 {
		t.Errorf("buyer approval should be 403, got %d", w.Code)
	}

	w = doJSON(t, h, "POST", "/api/v1/requests/1/status", `{"status":"approved"}`, marta)
	if w.Code != 200 {
		t.Fatalf("approve failed: %d %s", w.Code, w.Body.String())
	}
	decodeData(t, w, &ent)
	if ent.Status != "approved" || ent.ApprovedBy == nil || *ent.ApprovedBy != "Marta Supervisora" {
		t.Fatalf("unexpected state after approval: %+v", ent)
	}

	// Editing a tracked field after approval flags the record.
	w = doJSON(t, h, "PUT", "/api/v1/requests/1", `{"fields":{"quantity":"48"}}`, carlos)
	if w.Code != 200 {
		t.Fatalf("edit failed: %d %s", w.Code, w.Body.String())
	}
	decodeData(t, w, &ent)
	if !ent.HasBeenModified {
		t.Fatal("tracked edit after approval must flag the record")
	}

	w = doJSON(t, h, "POST", "/api/v1/requests/1/confirm-modification", "", marta)
	if w.Code != 200 {
		t.Fatalf("confirm failed: %d %s", w.Code, w.Body.String())
	}
	decodeData(t, w, &ent)
	if ent.HasBeenModified {
		t.Error("confirm must clear the flag")
	}

	w = doJSON(t, h, "GET", "/api/v1/requests/1/history", "", carlos)
	var hist []HistoryEntry
	decodeData(t, w, &hist)
	if len(hist) != 4 {
		t.Errorf("expected 4 ledger entries, got %d", len(hist))
	}
	if hist[0].Notes != "Solicitud creada" {
		t.Errorf("unexpected first entry: %+v", hist[0])
	}

	// Illegal transition surfaces as a 400.
	w = doJSON(t, h, "POST", "/api/v1/requests/1/status", `{"status":"received"}`, carlos)
	if w.Code != 400 {
		t.Errorf("illegal transition should be 400, got %d", w.Code)
	}
	w = doJSON(t, h, "GET", "/api/v1/requests/999", "", carlos)
	if w.Code != 404 {
		t.Errorf("missing entity should be 404, got %d", w.Code)
	}
}

func TestCancellationRequestResolution(t *testing.T) {
	h := setupTestApp(t)
	carlos := login(t, h, "carlos")
	marta := login(t, h, "marta")

	doJSON(t, h, "POST", "/api/v1/requests", `{"fields":{"item":"Pintura"}}`, carlos)
	doJSON(t, h, "POST", "/api/v1/requests/1/status", `{"status":"approved"}`, marta)

	w := doJSON(t, h, "POST", "/api/v1/requests/1/actions",
		`{"action":"cancellation-request","notes":"ya no se necesita"}`, carlos)
	if w.Code != 200 {
		t.Fatalf("request action failed: %d %s", w.Code, w.Body.String())
	}
	var ent Entity
	decodeData(t, w, &ent)
	if ent.PendingAction != "cancellation-request" || ent.Status != "approved" {
		t.Fatalf("unexpected state: %+v", ent)
	}

	// The requester cannot resolve their own petition.
	w = doJSON(t, h, "POST", "/api/v1/requests/1/actions/resolve", `{"grant":true}`, carlos)
	if w.Code != 403 {
		t.Errorf("buyer resolution should be 403, got %d", w.Code)
	}

	w = doJSON(t, h, "POST", "/api/v1/requests/1/actions/resolve", `{"grant":true}`, marta)
	if w.Code != 200 {
		t.Fatalf("resolve failed: %d %s", w.Code, w.Body.String())
	}
	decodeData(t, w, &ent)
	if ent.Status != "canceled" || ent.PendingAction != "none" {
		t.Errorf("grant should cancel: %+v", ent)
	}
}

func TestArchivedListing(t *testing.T) {
	h := setupTestApp(t)
	marta := login(t, h, "marta")

	doJSON(t, h, "POST", "/api/v1/requests", `{"fields":{"item":"A"}}`, marta)
	doJSON(t, h, "POST", "/api/v1/requests", `{"fields":{"item":"B"}}`, marta)
	doJSON(t, h, "POST", "/api/v1/requests/1/status", `{"status":"canceled"}`, marta)

	w := doJSON(t, h, "GET", "/api/v1/requests", "", marta)
	var items []Entity
	meta := decodeData(t, w, &items)
	if meta == nil || meta.Total != 1 || len(items) != 1 || items[0].Consecutive != "SC-00002" {
		t.Errorf("unexpected active listing: meta=%+v items=%d", meta, len(items))
	}

	w = doJSON(t, h, "GET", "/api/v1/requests?archived=true", "", marta)
	items = nil
	meta = decodeData(t, w, &items)
	if meta == nil || meta.Total != 1 || items[0].Consecutive != "SC-00001" {
		t.Errorf("unexpected archived listing: meta=%+v items=%d", meta, len(items))
	}
}

func TestSettingsRoundTrip(t *testing.T) {
	h := setupTestApp(t)
	carlos := login(t, h, "carlos")
	admin := login(t, h, "admin")

	w := doJSON(t, h, "PUT", "/api/v1/settings/requests", `{"prefix":"REQ-"}`, carlos)
	if w.Code != 403 {
		t.Errorf("buyer settings write should be 403, got %d", w.Code)
	}

	w = doJSON(t, h, "PUT", "/api/v1/settings/requests", `{"prefix":"REQ-","padding":"3"}`, admin)
	if w.Code != 200 {
		t.Fatalf("put settings failed: %d %s", w.Code, w.Body.String())
	}
	var all map[string]string
	decodeData(t, w, &all)
	if all["prefix"] != "REQ-" || all["padding"] != "3" {
		t.Errorf("unexpected settings: %v", all)
	}

	// Takes effect on the very next creation.
	w = doJSON(t, h, "POST", "/api/v1/requests", `{"fields":{"item":"Cajas"}}`, carlos)
	var ent Entity
	decodeData(t, w, &ent)
	if ent.Consecutive != "REQ-001" {
		t.Errorf("expected REQ-001, got %s", ent.Consecutive)
	}

	w = doJSON(t, h, "GET", "/api/v1/settings/unknown", "", admin)
	if w.Code != 404 {
		t.Errorf("unknown module should be 404, got %d", w.Code)
	}
}

func TestStatusesEndpoint(t *testing.T) {
	h := setupTestApp(t)
	admin := login(t, h, "admin")

	doJSON(t, h, "PUT", "/api/v1/settings/production",
		`{"custom_statuses":"[{\"key\":\"quality_check\",\"label\":\"Control de calidad\"}]"}`, admin)

	w := doJSON(t, h, "GET", "/api/v1/production/statuses", "", admin)
	var statuses []string
	decodeData(t, w, &statuses)
	found := false
	for _, s := range statuses {
		if s == "quality_check" {
			found = true
		}
	}
	if !found {
		t.Errorf("custom status missing from %v", statuses)
	}
}

func TestInventoryMovements(t *testing.T) {
	h := setupTestApp(t)
	pedro := login(t, h, "pedro")

	w := doJSON(t, h, "POST", "/api/v1/inventory",
		`{"sku":"LAM-20","description":"Lámina calibre 20","location":"B-3","min_qty":5}`, pedro)
	if w.Code != 200 {
		t.Fatalf("upsert failed: %d %s", w.Code, w.Body.String())
	}

	doJSON(t, h, "POST", "/api/v1/inventory/movements",
		`{"sku":"LAM-20","type":"receive","qty":10,"reference":"SC-00001"}`, pedro)
	w = doJSON(t, h, "POST", "/api/v1/inventory/movements",
		`{"sku":"LAM-20","type":"issue","qty":4}`, pedro)
	if w.Code != 200 {
		t.Fatalf("issue failed: %d %s", w.Code, w.Body.String())
	}

	// Issuing more than on hand is rejected.
	w = doJSON(t, h, "POST", "/api/v1/inventory/movements",
		`{"sku":"LAM-20","type":"issue","qty":100}`, pedro)
	if w.Code != 400 {
		t.Errorf("overdraw should be 400, got %d", w.Code)
	}

	w = doJSON(t, h, "GET", "/api/v1/inventory?search=LAM", "", pedro)
	var items []StockItem
	decodeData(t, w, &items)
	if len(items) != 1 || items[0].QtyOnHand != 6 {
		t.Errorf("expected 6 on hand, got %+v", items)
	}

	w = doJSON(t, h, "GET", "/api/v1/inventory/movements?sku=LAM-20", "", pedro)
	var moves []StockMovement
	decodeData(t, w, &moves)
	if len(moves) != 2 {
		t.Errorf("expected 2 movements, got %d", len(moves))
	}
}

func TestReceivedRequestPostsInventory(t *testing.T) {
	h := setupTestApp(t)
	carlos := login(t, h, "carlos")
	marta := login(t, h, "marta")

	doJSON(t, h, "POST", "/api/v1/requests",
		`{"fields":{"item":"Tornillos","sku":"TOR-M6","quantity":"100"}}`, carlos)
	doJSON(t, h, "POST", "/api/v1/requests/1/status", `{"status":"approved"}`, marta)
	doJSON(t, h, "POST", "/api/v1/requests/1/status", `{"status":"ordered"}`, carlos)
	w := doJSON(t, h, "POST", "/api/v1/requests/1/status",
		`{"status":"received","extra":{"delivered_qty":"98"}}`, carlos)
	if w.Code != 200 {
		t.Fatalf("receive failed: %d %s", w.Code, w.Body.String())
	}

	w = doJSON(t, h, "GET", "/api/v1/inventory?search=TOR-M6", "", carlos)
	var items []StockItem
	decodeData(t, w, &items)
	if len(items) != 1 || items[0].QtyOnHand != 98 {
		t.Errorf("received goods should land in inventory, got %+v", items)
	}
}

func TestDispatchLinesAndDelivery(t *testing.T) {
	h := setupTestApp(t)
	pedro := login(t, h, "pedro")
	marta := login(t, h, "marta")

	// Stock to ship.
	doJSON(t, h, "POST", "/api/v1/inventory/movements",
		`{"sku":"LAM-20","type":"receive","qty":10}`, pedro)

	doJSON(t, h, "POST", "/api/v1/dispatch",
		`{"fields":{"destination":"Obra Norte","carrier":"Transportes Ruiz"}}`, pedro)
	w := doJSON(t, h, "POST", "/api/v1/dispatch/1/lines",
		`{"sku":"LAM-20","qty":4,"lot":"L-77"}`, pedro)
	if w.Code != 200 {
		t.Fatalf("add line failed: %d %s", w.Code, w.Body.String())
	}

	doJSON(t, h, "POST", "/api/v1/dispatch/1/status", `{"status":"assigned"}`, marta)
	doJSON(t, h, "POST", "/api/v1/dispatch/1/status", `{"status":"in_transit"}`, pedro)
	w = doJSON(t, h, "POST", "/api/v1/dispatch/1/status",
		`{"status":"delivered","extra":{"received_by":"Obra Norte / J. Mora"}}`, pedro)
	if w.Code != 200 {
		t.Fatalf("deliver failed: %d %s", w.Code, w.Body.String())
	}

	// Delivery issues the lines out of stock.
	w = doJSON(t, h, "GET", "/api/v1/inventory?search=LAM-20", "", pedro)
	var items []StockItem
	decodeData(t, w, &items)
	if len(items) != 1 || items[0].QtyOnHand != 6 {
		t.Errorf("expected 6 on hand after delivery, got %+v", items)
	}
}

func TestDispatchTicketPDF(t *testing.T) {
	h := setupTestApp(t)
	pedro := login(t, h, "pedro")

	doJSON(t, h, "POST", "/api/v1/dispatch",
		`{"fields":{"destination":"Obra Norte","driver":"J. Pérez"}}`, pedro)
	doJSON(t, h, "POST", "/api/v1/dispatch/1/lines", `{"sku":"LAM-20","qty":4}`, pedro)

	w := doJSON(t, h, "GET", "/api/v1/dispatch/1/ticket.pdf", "", pedro)
	if w.Code != 200 {
		t.Fatalf("ticket failed: %d %s", w.Code, w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/pdf" {
		t.Errorf("expected application/pdf, got %s", ct)
	}
	if !strings.HasPrefix(w.Body.String(), "%PDF") {
		t.Error("response is not a PDF document")
	}
}

func TestNotificationsOnApproval(t *testing.T) {
	h := setupTestApp(t)
	carlos := login(t, h, "carlos")
	marta := login(t, h, "marta")

	doJSON(t, h, "POST", "/api/v1/requests", `{"fields":{"item":"Cemento"}}`, carlos)
	doJSON(t, h, "POST", "/api/v1/requests/1/status", `{"status":"approved"}`, marta)

	w := doJSON(t, h, "GET", "/api/v1/notifications?unread=true", "", carlos)
	var items []Notification
	decodeData(t, w, &items)
	if len(items) != 1 {
		t.Fatalf("expected 1 unread notification, got %d", len(items))
	}
	if items[0].Module != "requests" || items[0].RecordID != "SC-00001" {
		t.Errorf("unexpected notification: %+v", items[0])
	}

	// Marta sees nothing; the message is addressed to the requester.
	w = doJSON(t, h, "GET", "/api/v1/notifications", "", marta)
	var own []Notification
	decodeData(t, w, &own)
	if len(own) != 0 {
		t.Errorf("expected no notifications for marta, got %d", len(own))
	}

	id := items[0].ID
	w = doJSON(t, h, "POST", "/api/v1/notifications/"+itoa64(id)+"/read", "", carlos)
	if w.Code != 200 {
		t.Fatalf("mark read failed: %d %s", w.Code, w.Body.String())
	}
	w = doJSON(t, h, "GET", "/api/v1/notifications?unread=true", "", carlos)
	items = nil
	decodeData(t, w, &items)
	if len(items) != 0 {
		t.Errorf("expected 0 unread after marking, got %d", len(items))
	}

	// Users cannot mark someone else's notification.
	w = doJSON(t, h, "POST", "/api/v1/notifications/"+itoa64(id)+"/read", "", marta)
	if w.Code != 404 {
		t.Errorf("foreign notification should be 404, got %d", w.Code)
	}
}

func TestAuditLogRecords(t *testing.T) {
	h := setupTestApp(t)
	carlos := login(t, h, "carlos")
	marta := login(t, h, "marta")

	doJSON(t, h, "POST", "/api/v1/requests", `{"fields":{"item":"Grava"}}`, carlos)
	doJSON(t, h, "POST", "/api/v1/requests/1/status", `{"status":"approved"}`, marta)

	w := doJSON(t, h, "GET", "/api/v1/audit?module=requests", "", marta)
	var entries []AuditEntry
	meta := decodeData(t, w, &entries)
	if meta == nil || meta.Total < 2 {
		t.Errorf("expected create and status entries, got meta=%+v", meta)
	}
}

func TestExportCSV(t *testing.T) {
	h := setupTestApp(t)
	carlos := login(t, h, "carlos")

	doJSON(t, h, "POST", "/api/v1/requests", `{"fields":{"item":"Varilla 3/8"}}`, carlos)

	w := doJSON(t, h, "GET", "/api/v1/requests/export", "", carlos)
	if w.Code != 200 {
		t.Fatalf("export failed: %d %s", w.Code, w.Body.String())
	}
	body := w.Body.String()
	if !strings.Contains(body, "Consecutivo") || !strings.Contains(body, "SC-00001") {
		t.Errorf("unexpected CSV body: %q", body)
	}
}

func TestUserAdministration(t *testing.T) {
	h := setupTestApp(t)
	carlos := login(t, h, "carlos")
	admin := login(t, h, "admin")

	w := doJSON(t, h, "GET", "/api/v1/users", "", carlos)
	if w.Code != 403 {
		t.Errorf("buyer user listing should be 403, got %d", w.Code)
	}

	w = doJSON(t, h, "POST", "/api/v1/users",
		`{"username":"rosa","password":"changeme","display_name":"Rosa Calidad","role":"production"}`, admin)
	if w.Code != 200 {
		t.Fatalf("create user failed: %d %s", w.Code, w.Body.String())
	}
	var u User
	decodeData(t, w, &u)
	if u.Username != "rosa" || !u.Active {
		t.Errorf("unexpected user: %+v", u)
	}

	// Duplicate usernames conflict.
	w = doJSON(t, h, "POST", "/api/v1/users",
		`{"username":"rosa","password":"x"}`, admin)
	if w.Code != 409 {
		t.Errorf("duplicate username should be 409, got %d", w.Code)
	}

	w = doJSON(t, h, "GET", "/api/v1/users/lookup?name=Rosa+Calidad", "", admin)
	if w.Code != 200 {
		t.Fatalf("lookup failed: %d %s", w.Code, w.Body.String())
	}
	decodeData(t, w, &u)
	if u.Username != "rosa" {
		t.Errorf("lookup by display name should resolve rosa, got %+v", u)
	}

	// Deactivation kicks the user out.
	rosa := login(t, h, "rosa")
	w = doJSON(t, h, "PUT", "/api/v1/users/"+itoa64(int64(u.ID)), `{"active":false}`, admin)
	if w.Code != 200 {
		t.Fatalf("update failed: %d %s", w.Code, w.Body.String())
	}
	w = doJSON(t, h, "GET", "/auth/me", "", rosa)
	if w.Code != 401 {
		t.Errorf("deactivated session should be dead, got %d", w.Code)
	}
}

func TestModuleReset(t *testing.T) {
	h := setupTestApp(t)
	carlos := login(t, h, "carlos")
	admin := login(t, h, "admin")

	doJSON(t, h, "POST", "/api/v1/requests", `{"fields":{"item":"Arena"}}`, carlos)

	w := doJSON(t, h, "POST", "/api/v1/requests/reset", "", carlos)
	if w.Code != 403 {
		t.Errorf("buyer reset should be 403, got %d", w.Code)
	}

	w = doJSON(t, h, "POST", "/api/v1/requests/reset", "", admin)
	if w.Code != 200 {
		t.Fatalf("reset failed: %d %s", w.Code, w.Body.String())
	}
	w = doJSON(t, h, "GET", "/api/v1/requests", "", admin)
	var items []Entity
	meta := decodeData(t, w, &items)
	if meta == nil || meta.Total != 0 {
		t.Errorf("module should be empty after reset, got %+v", meta)
	}
}

func itoa64(n int64) string {
	return strconv.FormatInt(n, 10)
}
