// Package dashboard defines the record types behind the dashboard's list
// pages and mounts each of them as a Board: a named, fully configured view
// over one collection.
package dashboard

import "time"

// Query is one executed statement.
type Query struct {
	ID           string    `json:"id"`
	Text         string    `json:"text"`
	Pattern      string    `json:"pattern,omitempty"`
	Warehouse    string    `json:"warehouse"`
	User         string    `json:"user"`
	Status       string    `json:"status"`
	DurationMs   float64   `json:"durationMs"`
	BytesScanned float64   `json:"bytesScanned"`
	Cost         float64   `json:"cost"`
	ExecutedAt   time.Time `json:"executedAt"`
}

// Warehouse is a compute cluster.
type Warehouse struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Account    string    `json:"account"`
	Size       string    `json:"size"`
	Status     string    `json:"status"`
	Credits    float64   `json:"credits"`
	Cost       float64   `json:"cost"`
	Queries    int       `json:"queries"`
	LastActive time.Time `json:"lastActive"`
}

// Account is a billing account.
type Account struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Region     string    `json:"region"`
	Plan       string    `json:"plan"`
	Owner      string    `json:"owner"`
	Warehouses int       `json:"warehouses"`
	Cost       float64   `json:"cost"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Recommendation is a suggested optimization with its estimated saving.
type Recommendation struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Category  string    `json:"category"`
	Severity  string    `json:"severity"`
	Status    string    `json:"status"`
	Target    string    `json:"target"`
	Savings   float64   `json:"savings"`
	CreatedAt time.Time `json:"createdAt"`
}

// AssignedTask is a recommendation handed to a person.
type AssignedTask struct {
	ID               string    `json:"id"`
	Title            string    `json:"title"`
	Recommendation   string    `json:"recommendation"`
	Assignee         string    `json:"assignee"`
	Priority         string    `json:"priority"`
	Status           string    `json:"status"`
	EstimatedSavings float64   `json:"estimatedSavings"`
	DueAt            time.Time `json:"dueAt"`
	CreatedAt        time.Time `json:"createdAt"`
}

// User is a dashboard user and their spend.
type User struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	Status    string    `json:"status"`
	Queries   int       `json:"queries"`
	Cost      float64   `json:"cost"`
	LastLogin time.Time `json:"lastLogin"`
}
