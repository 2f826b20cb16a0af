package models

// APIResponse is the standard JSON envelope for all API responses.
type APIResponse struct {
	Data interface{} `json:"data"`
	Meta *Meta       `json:"meta,omitempty"`
}

// Meta contains pagination metadata.
type Meta struct {
	Total int `json:"total,omitempty"`
	Page  int `json:"page,omitempty"`
	Limit int `json:"limit,omitempty"`
}

// Entity is a workflow-tracked business object (purchase request, production
// order, dispatch assignment, quote). The workflow columns are identical
// across modules; Fields carries the module's own payload columns.
type Entity struct {
	ID                 int64             `json:"id"`
	Consecutive        string            `json:"consecutive"`
	Status             string            `json:"status"`
	PendingAction      string            `json:"pending_action"`
	PreviousStatus     *string           `json:"previous_status"`
	HasBeenModified    bool              `json:"has_been_modified"`
	Reopened           bool              `json:"reopened"`
	RequestedBy        string            `json:"requested_by"`
	ApprovedBy         *string           `json:"approved_by"`
	LastStatusUpdateBy string            `json:"last_status_update_by"`
	LastModifiedBy     *string           `json:"last_modified_by"`
	LastModifiedAt     *string           `json:"last_modified_at"`
	CreatedAt          string            `json:"created_at"`
	UpdatedAt          string            `json:"updated_at"`
	Version            int64             `json:"version"`
	Fields             map[string]string `json:"fields"`
}

// HistoryEntry is one immutable row of an entity's audit ledger.
type HistoryEntry struct {
	ID        int64  `json:"id"`
	EntityID  int64  `json:"entity_id"`
	Status    string `json:"status"`
	Notes     string `json:"notes"`
	UpdatedBy string `json:"updated_by"`
	CreatedAt string `json:"created_at"`
}

// DispatchLine is one line item on a dispatch assignment.
type DispatchLine struct {
	ID         int64   `json:"id"`
	DispatchID int64   `json:"dispatch_id"`
	SKU        string  `json:"sku"`
	Qty        float64 `json:"qty"`
	Lot        string  `json:"lot"`
	Notes      string  `json:"notes"`
}

// StockItem is one inventory row.
type StockItem struct {
	SKU         string  `json:"sku"`
	Description string  `json:"description"`
	Location    string  `json:"location"`
	QtyOnHand   float64 `json:"qty_on_hand"`
	QtyReserved float64 `json:"qty_reserved"`
	MinQty      float64 `json:"min_qty"`
	UpdatedAt   string  `json:"updated_at"`
}

// StockMovement is one entry of the inventory movement ledger.
type StockMovement struct {
	ID        int64   `json:"id"`
	SKU       string  `json:"sku"`
	Type      string  `json:"type"`
	Qty       float64 `json:"qty"`
	Reference string  `json:"reference"`
	Notes     string  `json:"notes"`
	CreatedAt string  `json:"created_at"`
}

// User is an application account. Role gates admin actions; actor fields on
// workflow entities store the display name, not the id.
type User struct {
	ID          int    `json:"id"`
	Username    string `json:"username"`
	DisplayName string `json:"display_name"`
	Role        string `json:"role"`
	Active      bool   `json:"active"`
	LastLogin   string `json:"last_login,omitempty"`
	CreatedAt   string `json:"created_at"`
}

// Notification is a user-addressed message created on workflow events.
type Notification struct {
	ID        int64  `json:"id"`
	Username  string `json:"username"`
	Title     string `json:"title"`
	Message   string `json:"message"`
	Module    string `json:"module"`
	RecordID  string `json:"record_id"`
	Read      bool   `json:"read"`
	CreatedAt string `json:"created_at"`
}

// AuditEntry is one row of the global audit log.
type AuditEntry struct {
	ID        int64  `json:"id"`
	Username  string `json:"username"`
	Action    string `json:"action"`
	Module    string `json:"module"`
	RecordID  string `json:"record_id"`
	Summary   string `json:"summary"`
	CreatedAt string `json:"created_at"`
}
