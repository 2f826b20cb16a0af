package main

import (
	"log"
	"strconv"
)

// requestReceived posts the received goods into inventory once a purchase
// request reaches its final status. Requests reference stock by the optional
// sku payload field; requests without one (services, one-off buys) post
// nothing.
func requestReceived(ent *Entity, actor string) {
	if ent.Status != "received" {
		return
	}
	sku := ent.Fields["sku"]
	if sku == "" {
		return
	}
	qtyStr := ent.Fields["delivered_qty"]
	if qtyStr == "" {
		qtyStr = ent.Fields["quantity"]
	}
	qty, err := strconv.ParseFloat(qtyStr, 64)
	if err != nil || qty <= 0 {
		return
	}
	if err := applyMovement(sku, "receive", qty, ent.Consecutive, "Recepción de "+ent.Consecutive); err != nil {
		log.Printf("inventory receive for %s failed: %v", ent.Consecutive, err)
		return
	}
	sink.Record(moduleInventory, sku, actor, "receive",
		"Entrada de "+qtyStr+" "+sku+" por "+ent.Consecutive)
}
