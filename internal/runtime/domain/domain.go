// Package domain holds the lifecycle state shared by persisted entities:
// audit timestamps and soft deletion. Storage code calls the hooks; nothing
// here knows about tables or queries.
package domain

import "time"

// Clock supplies the current time to lifecycle hooks.
type Clock func() time.Time

// SystemClock returns the current UTC time.
func SystemClock() time.Time { return time.Now().UTC() }

// Now returns c(), or the system time when c is nil.
func (c Clock) Now() time.Time {
	if c == nil {
		return SystemClock()
	}
	return c()
}

// AuditableEntity records when an entity was created and last changed.
type AuditableEntity struct {
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// PrePersist stamps both timestamps before the first save. A creation time
// that is already set is kept.
func (e *AuditableEntity) PrePersist(now time.Time) {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = now
	}
	e.UpdatedAt = now
}

// PreUpdate stamps the modification time before a later save.
func (e *AuditableEntity) PreUpdate(now time.Time) {
	e.UpdatedAt = now
}

// SoftDeletableEntity is an auditable entity that is flagged rather than
// removed when deleted.
type SoftDeletableEntity struct {
	AuditableEntity
	Deleted   bool       `json:"deleted"`
	DeletedAt *time.Time `json:"deletedAt,omitempty"`
}

// MarkDeleted flags the entity as deleted at now. Deleting twice keeps the
// first deletion time.
func (e *SoftDeletableEntity) MarkDeleted(now time.Time) {
	if e.Deleted {
		return
	}
	e.Deleted = true
	e.DeletedAt = &now
	e.PreUpdate(now)
}

// Restore clears the deletion flag.
func (e *SoftDeletableEntity) Restore() {
	e.Deleted = false
	e.DeletedAt = nil
}

// IsDeleted reports whether the entity is flagged as deleted.
func (e *SoftDeletableEntity) IsDeleted() bool { return e.Deleted }

// SoftDeletable is implemented by any type embedding *SoftDeletableEntity.
type SoftDeletable interface {
	IsDeleted() bool
}

// Active returns the items not flagged as deleted, preserving order.
func Active[T SoftDeletable](items []T) []T {
	out := make([]T, 0, len(items))
	for _, item := range items {
		if !item.IsDeleted() {
			out = append(out, item)
		}
	}
	return out
}

// Deleted returns the items flagged as deleted, preserving order.
func Deleted[T SoftDeletable](items []T) []T {
	out := make([]T, 0, len(items))
	for _, item := range items {
		if item.IsDeleted() {
			out = append(out, item)
		}
	}
	return out
}
