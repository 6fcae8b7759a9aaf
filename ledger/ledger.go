package ledger

import (
	"fmt"

	"go.uber.org/zap"
)

// Ledger is a thin façade over the Database, keeping terminal code simple.
type Ledger struct {
	db *Database
}

// New opens (or creates) the SQLite store at dbPath.
func New(dbPath string, log *zap.Logger) (*Ledger, error) {
	db, err := NewDatabase(dbPath, log)
	if err != nil {
		return nil, err
	}
	return &Ledger{db: db}, nil
}

// Close closes the underlying database.
func (l *Ledger) Close() error { return l.db.Close() }

// ------------------ Tool helpers ------------------

func (l *Ledger) AddTool(name string, stock int, description string) (int64, error) {
	return l.db.AddTool(name, stock, description)
}

func (l *Ledger) EditTool(id int64, name string, stock int, description string) error {
	return l.db.EditTool(id, name, stock, description)
}

func (l *Ledger) DeleteTool(id int64) error { return l.db.DeleteTool(id) }
func (l *Ledger) GetTool(id int64) (*Tool, error) { return l.db.GetTool(id) }
func (l *Ledger) GetAllTools() ([]*Tool, error) { return l.db.GetAllTools() }
func (l *Ledger) GetStock(id int64) (int, error) { return l.db.GetStock(id) }
func (l *Ledger) AdjustStock(id int64, delta int) error {
	return l.db.AdjustStock(id, delta)
}

// ------------------ Loan helpers ------------------

func (l *Ledger) OpenLoan(borrowerName string, toolID int64, quantity int) (int64, error) {
	return l.db.OpenLoan(borrowerName, toolID, quantity)
}

func (l *Ledger) CloseLoan(loanID int64) error { return l.db.CloseLoan(loanID) }

func (l *Ledger) ListAllLoans() ([]*LoanRecord, error) { return l.db.ListAllLoans() }

func (l *Ledger) ListLoansByStatus(status LoanStatus) ([]*LoanRecord, error) {
	return l.db.ListLoansByStatus(status)
}

func (l *Ledger) ListLoansByBorrower(username string) ([]*LoanRecord, error) {
	return l.db.ListLoansByBorrower(username)
}

// ------------------ Account helpers ------------------

func (l *Ledger) Authenticate(username, password string) (*Account, error) {
	return l.db.Authenticate(username, password)
}

func (l *Ledger) UsernameExists(username string) (bool, error) {
	return l.db.UsernameExists(username)
}

func (l *Ledger) Register(username, password string) (int64, error) {
	return l.db.Register(username, password)
}

func (l *Ledger) GetRole(username string) (Role, error) { return l.db.GetRole(username) }

// ------------------ Utilities ------------------

// PrettyTool formats a tool for lists.
func PrettyTool(t *Tool) string {
	return fmt.Sprintf("%-5d %-25s %-7d %s", t.ID, t.Name, t.Stock, t.Description)
}

// PrettyLoan formats a loan record for lists.
func PrettyLoan(r *LoanRecord) string {
	returned := "-"
	if r.ReturnedAt != nil {
		returned = r.ReturnedAt.Format("2006-01-02 15:04")
	}
	return fmt.Sprintf("%-5d %-15s %-25s %-5d %-10s %-17s %s",
		r.ID, r.BorrowerName, r.ToolName, r.Quantity, r.Status,
		r.LoanedAt.Format("2006-01-02 15:04"), returned)
}
