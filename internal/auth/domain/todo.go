package domain

import "time"

type Todo struct {
	ID        string
	UserID    string
	Content   string
	DueDate   *time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}

// TodoFields is a partial update of a todo. ClearDueDate removes the due date
// and wins over DueDate.
type TodoFields struct {
	Content      *string
	DueDate      *time.Time
	ClearDueDate bool
}
