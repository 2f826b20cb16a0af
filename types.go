package main

import "planta/internal/models"

// Type aliases so handler code can use the unqualified names while the
// definitions live in internal/models.

type APIResponse = models.APIResponse
type Meta = models.Meta
type Entity = models.Entity
type HistoryEntry = models.HistoryEntry
type DispatchLine = models.DispatchLine
type StockItem = models.StockItem
type StockMovement = models.StockMovement
type User = models.User
type Notification = models.Notification
type AuditEntry = models.AuditEntry
