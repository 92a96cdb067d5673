// Package models contains GORM-specific persistence models that map to database tables.
// These models are separate from domain entities to keep the domain layer pure and free
// from ORM concerns.
//
// Structure:
//   - base.go: BaseModel and AggregateModel (id, timestamps, version)
//   - order.go: orders, order_line_items, order_tracking_points
//   - returns.go: returns
//   - audit.go: audit_events
//   - catalog.go: product_variants (read-only)
package models
