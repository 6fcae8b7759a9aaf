package ledger

import "time"

// Role classifies an account. Exactly two roles exist; the value is validated
// at the account-creation boundary and stored as TEXT.
type Role string

const (
	RoleAdmin Role = "admin"
	RoleUser  Role = "user"
)

// Valid reports whether r is one of the two known roles.
func (r Role) Valid() bool { return r == RoleAdmin || r == RoleUser }

// LoanStatus is the lifecycle state of a loan record. A loan is created as
// Borrowed and transitions exactly once to Returned.
type LoanStatus string

const (
	StatusBorrowed LoanStatus = "Borrowed"
	StatusReturned LoanStatus = "Returned"
)

// Tool represents one type of lendable equipment and its current stock count.
type Tool struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Stock       int       `json:"stock"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
}

// LoanRecord represents one act of borrowing. While Status is Borrowed, the
// quantity is held as a deduction against the referenced tool's stock.
type LoanRecord struct {
	ID           int64      `json:"id"`
	BorrowerName string     `json:"borrower_name"`
	ToolID       int64      `json:"tool_id"`
	ToolName     string     `json:"tool_name"` // joined from the tools table at read time
	Quantity     int        `json:"quantity"`
	Status       LoanStatus `json:"status"`
	LoanedAt     time.Time  `json:"loaned_at"`
	ReturnedAt   *time.Time `json:"returned_at,omitempty"`
}

// Account represents a login identity.
type Account struct {
	ID        int64     `json:"id"`
	Username  string    `json:"username"`
	Password  string    `json:"-"` // compared in clear text, never serialized
	Role      Role      `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}
