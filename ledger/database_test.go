package ledger

import (
	"errors"
	"path/filepath"
	"testing"
)

func tempDB(t *testing.T) *Database {
	t.Helper()
	dir := t.TempDir()
	db, err := NewDatabase(filepath.Join(dir, "test.db"), nil)
	if err != nil {
		t.Fatalf("new db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func mustStock(t *testing.T, db *Database, toolID int64) int {
	t.Helper()
	stock, err := db.GetStock(toolID)
	if err != nil {
		t.Fatalf("get stock: %v", err)
	}
	return stock
}

func TestSeededAccounts(t *testing.T) {
	db := tempDB(t)

	acc, err := db.Authenticate("admin", "admin123")
	if err != nil {
		t.Fatalf("admin login: %v", err)
	}
	if acc.Role != RoleAdmin {
		t.Fatalf("want role admin, got %s", acc.Role)
	}

	acc, err = db.Authenticate("user1", "user123")
	if err != nil {
		t.Fatalf("user1 login: %v", err)
	}
	if acc.Role != RoleUser {
		t.Fatalf("want role user, got %s", acc.Role)
	}

	if _, err := db.Authenticate("admin", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("want ErrInvalidCredentials, got %v", err)
	}
}

func TestInitIdempotent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "shared.db")

	db, err := NewDatabase(path, nil)
	if err != nil {
		t.Fatalf("first open: %v", err)
	}
	if _, err := db.Register("carol", "pw"); err != nil {
		t.Fatalf("register: %v", err)
	}
	db.Close()

	// Re-opening a populated store must not re-seed or clobber anything.
	db, err = NewDatabase(path, nil)
	if err != nil {
		t.Fatalf("second open: %v", err)
	}
	defer db.Close()

	if _, err := db.Authenticate("carol", "pw"); err != nil {
		t.Fatalf("carol login after reopen: %v", err)
	}
	if _, err := db.Register("admin", "x"); !errors.Is(err, ErrDuplicateUsername) {
		t.Fatalf("seed rows should survive reopen, got %v", err)
	}
}

func TestAddToolValidation(t *testing.T) {
	db := tempDB(t)

	if _, err := db.AddTool("", 3, ""); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("empty name: want ErrInvalidInput, got %v", err)
	}
	if _, err := db.AddTool("Drill", -1, ""); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("negative stock: want ErrInvalidInput, got %v", err)
	}

	if _, err := db.AddTool("Drill", 2, "cordless"); err != nil {
		t.Fatalf("add: %v", err)
	}
	if _, err := db.AddTool("Drill", 5, ""); !errors.Is(err, ErrDuplicateName) {
		t.Fatalf("duplicate name: want ErrDuplicateName, got %v", err)
	}
}

func TestEditToolPermissive(t *testing.T) {
	db := tempDB(t)

	// Editing an unknown id affects zero rows and reports success.
	if err := db.EditTool(999, "Ghost", 1, ""); err != nil {
		t.Fatalf("edit missing id: %v", err)
	}

	id, _ := db.AddTool("Saw", 4, "")
	other, _ := db.AddTool("Wrench", 1, "")

	if err := db.EditTool(id, "Hand Saw", 6, "wood"); err != nil {
		t.Fatalf("edit: %v", err)
	}
	tool, err := db.GetTool(id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if tool.Name != "Hand Saw" || tool.Stock != 6 || tool.Description != "wood" {
		t.Fatalf("edit not applied: %+v", tool)
	}

	if err := db.EditTool(other, "Hand Saw", 1, ""); !errors.Is(err, ErrDuplicateName) {
		t.Fatalf("rename onto taken name: want ErrDuplicateName, got %v", err)
	}
	if err := db.EditTool(id, "Hand Saw", -2, ""); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("negative stock: want ErrInvalidInput, got %v", err)
	}
}

func TestGetAllToolsOrder(t *testing.T) {
	db := tempDB(t)
	db.AddTool("Wrench", 1, "")
	db.AddTool("Drill", 1, "")
	db.AddTool("Hammer", 1, "")

	tools, err := db.GetAllTools()
	if err != nil {
		t.Fatalf("get all: %v", err)
	}
	want := []string{"Drill", "Hammer", "Wrench"}
	if len(tools) != len(want) {
		t.Fatalf("want %d tools, got %d", len(want), len(tools))
	}
	for i, name := range want {
		if tools[i].Name != name {
			t.Fatalf("position %d: want %s, got %s", i, name, tools[i].Name)
		}
	}
}

func TestGetToolNotFound(t *testing.T) {
	db := tempDB(t)
	if _, err := db.GetTool(42); !errors.Is(err, ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
	if _, err := db.GetStock(42); !errors.Is(err, ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}

func TestAdjustStock(t *testing.T) {
	db := tempDB(t)
	id, _ := db.AddTool("Ladder", 3, "")

	if err := db.AdjustStock(id, 2); err != nil {
		t.Fatalf("adjust up: %v", err)
	}
	if got := mustStock(t, db, id); got != 5 {
		t.Fatalf("want stock 5, got %d", got)
	}
	if err := db.AdjustStock(id, -4); err != nil {
		t.Fatalf("adjust down: %v", err)
	}
	if got := mustStock(t, db, id); got != 1 {
		t.Fatalf("want stock 1, got %d", got)
	}
}

// TestLendingScenario walks the core flow: borrow within stock, reject over
// stock with the available amount, return and restore.
func TestLendingScenario(t *testing.T) {
	db := tempDB(t)

	hammerID, err := db.AddTool("Hammer", 5, "")
	if err != nil {
		t.Fatalf("add tool: %v", err)
	}

	loanID, err := db.OpenLoan("alice", hammerID, 3)
	if err != nil {
		t.Fatalf("open loan: %v", err)
	}
	if got := mustStock(t, db, hammerID); got != 2 {
		t.Fatalf("after loan: want stock 2, got %d", got)
	}

	_, err = db.OpenLoan("bob", hammerID, 3)
	var insuff *InsufficientStockError
	if !errors.As(err, &insuff) {
		t.Fatalf("want InsufficientStockError, got %v", err)
	}
	if insuff.Available != 2 {
		t.Fatalf("want available 2, got %d", insuff.Available)
	}

	// The rejected request must leave both record sets untouched.
	if got := mustStock(t, db, hammerID); got != 2 {
		t.Fatalf("after rejection: want stock 2, got %d", got)
	}
	loans, err := db.ListAllLoans()
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(loans) != 1 {
		t.Fatalf("want 1 loan record, got %d", len(loans))
	}
	if loans[0].Status != StatusBorrowed || loans[0].ToolName != "Hammer" {
		t.Fatalf("unexpected loan row: %+v", loans[0])
	}
	if loans[0].ReturnedAt != nil {
		t.Fatalf("open loan should have no return time")
	}

	if err := db.CloseLoan(loanID); err != nil {
		t.Fatalf("close loan: %v", err)
	}
	if got := mustStock(t, db, hammerID); got != 5 {
		t.Fatalf("round trip: want stock 5, got %d", got)
	}

	loans, _ = db.ListAllLoans()
	if loans[0].Status != StatusReturned || loans[0].ReturnedAt == nil {
		t.Fatalf("loan not marked returned: %+v", loans[0])
	}
}

func TestOpenLoanValidation(t *testing.T) {
	db := tempDB(t)
	id, _ := db.AddTool("Shovel", 2, "")

	if _, err := db.OpenLoan("", id, 1); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("empty borrower: want ErrInvalidInput, got %v", err)
	}
	if _, err := db.OpenLoan("alice", id, 0); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("zero quantity: want ErrInvalidInput, got %v", err)
	}
	if _, err := db.OpenLoan("alice", 999, 1); !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing tool: want ErrNotFound, got %v", err)
	}
}

func TestCloseLoanGuards(t *testing.T) {
	db := tempDB(t)
	id, _ := db.AddTool("Pliers", 2, "")
	loanID, err := db.OpenLoan("alice", id, 1)
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	if err := db.CloseLoan(999); !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing loan: want ErrNotFound, got %v", err)
	}

	if err := db.CloseLoan(loanID); err != nil {
		t.Fatalf("close: %v", err)
	}
	// A second close must be refused and must not re-credit stock.
	if err := db.CloseLoan(loanID); !errors.Is(err, ErrLoanClosed) {
		t.Fatalf("double close: want ErrLoanClosed, got %v", err)
	}
	if got := mustStock(t, db, id); got != 2 {
		t.Fatalf("stock re-credited on double close: got %d", got)
	}
}

func TestDeleteToolWithOpenLoans(t *testing.T) {
	db := tempDB(t)
	id, _ := db.AddTool("Sander", 1, "")
	loanID, _ := db.OpenLoan("alice", id, 1)

	if err := db.DeleteTool(id); !errors.Is(err, ErrToolInUse) {
		t.Fatalf("delete with open loan: want ErrToolInUse, got %v", err)
	}

	if err := db.CloseLoan(loanID); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := db.DeleteTool(id); err != nil {
		t.Fatalf("delete after return: %v", err)
	}
	if _, err := db.GetTool(id); !errors.Is(err, ErrNotFound) {
		t.Fatalf("tool should be gone, got %v", err)
	}
}

func TestLoanListings(t *testing.T) {
	db := tempDB(t)
	hammer, _ := db.AddTool("Hammer", 5, "")
	drill, _ := db.AddTool("Drill", 5, "")

	l1, _ := db.OpenLoan("alice", hammer, 1)
	l2, _ := db.OpenLoan("bob", drill, 2)
	l3, _ := db.OpenLoan("alice", drill, 1)
	db.CloseLoan(l2)

	all, err := db.ListAllLoans()
	if err != nil {
		t.Fatalf("list all: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("want 3 loans, got %d", len(all))
	}
	// Newest first.
	if all[0].ID != l3 || all[1].ID != l2 || all[2].ID != l1 {
		t.Fatalf("wrong order: %d %d %d", all[0].ID, all[1].ID, all[2].ID)
	}

	borrowed, _ := db.ListLoansByStatus(StatusBorrowed)
	if len(borrowed) != 2 {
		t.Fatalf("want 2 borrowed, got %d", len(borrowed))
	}
	returned, _ := db.ListLoansByStatus(StatusReturned)
	if len(returned) != 1 || returned[0].ID != l2 {
		t.Fatalf("wrong returned listing")
	}

	mine, _ := db.ListLoansByBorrower("alice")
	if len(mine) != 2 || mine[0].ID != l3 || mine[1].ID != l1 {
		t.Fatalf("wrong borrower listing")
	}
}

func TestRegisterFlow(t *testing.T) {
	db := tempDB(t)

	if _, err := db.Register("", "pw"); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("empty username: want ErrInvalidInput, got %v", err)
	}
	if _, err := db.Register("bob", ""); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("empty password: want ErrInvalidInput, got %v", err)
	}

	if _, err := db.Register("bob", "pw1"); err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, err := db.Register("bob", "pw2"); !errors.Is(err, ErrDuplicateUsername) {
		t.Fatalf("want ErrDuplicateUsername, got %v", err)
	}

	acc, err := db.Authenticate("bob", "pw1")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if acc.Role != RoleUser {
		t.Fatalf("self-registered accounts must be users, got %s", acc.Role)
	}
	// The rejected duplicate must not have replaced the stored password.
	if _, err := db.Authenticate("bob", "pw2"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("want ErrInvalidCredentials, got %v", err)
	}

	exists, err := db.UsernameExists("bob")
	if err != nil || !exists {
		t.Fatalf("bob should exist: %v", err)
	}
	exists, _ = db.UsernameExists("nobody")
	if exists {
		t.Fatalf("nobody should not exist")
	}

	role, err := db.GetRole("bob")
	if err != nil || role != RoleUser {
		t.Fatalf("get role: %v %s", err, role)
	}
	if _, err := db.GetRole("nobody"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}

func TestAuthenticateExactMatch(t *testing.T) {
	db := tempDB(t)
	db.Register("dave", "Secret1")

	cases := []struct{ user, pass string }{
		{"dave", "secret1"},
		{"dave", "Secret1 "},
		{"Dave", "Secret1"},
		{"dave", "Secret"},
	}
	for _, c := range cases {
		if _, err := db.Authenticate(c.user, c.pass); !errors.Is(err, ErrInvalidCredentials) {
			t.Fatalf("(%q,%q): want ErrInvalidCredentials, got %v", c.user, c.pass, err)
		}
	}
	if _, err := db.Authenticate("dave", "Secret1"); err != nil {
		t.Fatalf("exact match should succeed: %v", err)
	}
}
