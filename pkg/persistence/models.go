package persistence

import "time"

// Task is one estimation project: a deliverable list plus requirements text,
// with its language pinned at creation.
type Task struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	Requirements string    `json:"requirements"`
	Language     string    `json:"language"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Message is one conversation entry, append-only per task.
type Message struct {
	ID        string    `json:"id"`
	TaskID    string    `json:"task_id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}
