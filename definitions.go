package main

import "planta/internal/workflow"

// Workflow definitions for the four entity modules. Statuses, locked sets,
// tracked fields, prefixes and padding are defaults; each module's settings
// table can override them at runtime.

const (
	moduleRequests   = "requests"
	moduleProduction = "production"
	moduleDispatch   = "dispatch"
	moduleQuotes     = "quotes"
	moduleInventory  = "inventory"
)

func requestsDefinition() workflow.Definition {
	return workflow.Definition{
		Module:       moduleRequests,
		Table:        "requests",
		HistoryTable: "request_history",
		Statuses:     []string{"pending", "approved", "ordered", "received", "canceled"},
		Initial:      "pending",
		Approved:     "approved",
		Final:        "received",
		Backward:     []string{"pending"},
		Locked:       []string{"approved", "ordered"},
		Tracked:      []string{"item", "quantity", "unit", "supplier", "needed_by"},
		Fields: []string{
			"item", "description", "quantity", "unit", "supplier", "area",
			"needed_by", "sku", "delivered_qty", "defective_qty",
			"package_number", "arrival_date",
		},
		Prefix:     "SC-",
		Padding:    5,
		CreateNote: "Solicitud creada",
		Transitions: map[string][]string{
			"pending":  {"approved", "canceled"},
			"approved": {"ordered", "pending", "canceled"},
			"ordered":  {"received", "approved", "canceled"},
			"received": {},
			"canceled": {},
		},
	}
}

func productionDefinition() workflow.Definition {
	return workflow.Definition{
		Module:       moduleProduction,
		Table:        "production_orders",
		HistoryTable: "production_history",
		Statuses:     []string{"pending", "approved", "in_progress", "completed", "canceled"},
		Initial:      "pending",
		Approved:     "approved",
		Final:        "completed",
		Backward:     []string{"pending"},
		Locked:       []string{"approved", "in_progress"},
		Tracked:      []string{"product", "quantity", "due_date", "client"},
		Fields: []string{
			"product", "description", "quantity", "unit", "client",
			"due_date", "ticket_number", "produced_qty", "defective_qty",
		},
		Prefix:     "OP-",
		Padding:    5,
		CreateNote: "Orden creada",
		Transitions: map[string][]string{
			"pending":     {"approved", "canceled"},
			"approved":    {"in_progress", "pending", "canceled"},
			"in_progress": {"completed", "canceled"},
			"completed":   {},
			"canceled":    {},
		},
	}
}

func dispatchDefinition() workflow.Definition {
	return workflow.Definition{
		Module:       moduleDispatch,
		Table:        "dispatches",
		HistoryTable: "dispatch_history",
		Statuses:     []string{"pending", "assigned", "in_transit", "delivered", "canceled"},
		Initial:      "pending",
		Approved:     "assigned",
		Final:        "delivered",
		Backward:     []string{"pending"},
		Locked:       []string{"assigned", "in_transit"},
		Tracked:      []string{"destination", "carrier", "scheduled_date"},
		Fields: []string{
			"destination", "carrier", "vehicle", "driver", "client",
			"scheduled_date", "package_count", "delivered_at", "received_by",
		},
		Prefix:     "DS-",
		Padding:    5,
		CreateNote: "Despacho creado",
		Transitions: map[string][]string{
			"pending":    {"assigned", "canceled"},
			"assigned":   {"in_transit", "pending", "canceled"},
			"in_transit": {"delivered", "canceled"},
			"delivered":  {},
			"canceled":   {},
		},
	}
}

func quotesDefinition() workflow.Definition {
	return workflow.Definition{
		Module:       moduleQuotes,
		Table:        "quotes",
		HistoryTable: "quote_history",
		Statuses:     []string{"draft", "sent", "accepted", "rejected", "canceled"},
		Initial:      "draft",
		Approved:     "accepted",
		Final:        "accepted",
		Backward:     []string{"draft"},
		Tracked:      []string{},
		Fields: []string{
			"client", "item", "description", "quantity", "unit_price", "valid_until",
		},
		Prefix:     "QT-",
		Padding:    5,
		CreateNote: "Cotización creada",
		Transitions: map[string][]string{
			"draft":    {"sent", "canceled"},
			"sent":     {"accepted", "rejected", "draft", "canceled"},
			"accepted": {},
			"rejected": {"draft"},
			"canceled": {},
		},
	}
}
