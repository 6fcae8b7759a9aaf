package ledger

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

// Database owns the three record sets (tools, loans, accounts) and every
// state transition between them. All reads and writes to persistent state go
// through it; multi-step operations run inside a single SQLite transaction so
// that racing process instances on the same store file serialize on the
// engine's own locking rather than any in-process mutex.
type Database struct {
	db  *sql.DB
	log *zap.Logger

	addToolStmt    *sql.Stmt
	addAccountStmt *sql.Stmt
}

// NewDatabase opens (or creates) the SQLite database at dbPath, applies schema
// migrations, seeds the default accounts on an empty store, and prepares
// common statements. A nil logger disables logging.
func NewDatabase(dbPath string, log *zap.Logger) (*Database, error) {
	if log == nil {
		log = zap.NewNop()
	}

	// Ensure directory exists so first-run succeeds.
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000", dbPath)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if err := applyMigrations(db); err != nil {
		db.Close()
		return nil, err
	}
	if err := seedAccounts(db); err != nil {
		db.Close()
		return nil, err
	}

	database := &Database{db: db, log: log}
	if err := database.prepareStatements(); err != nil {
		db.Close()
		return nil, err
	}
	return database, nil
}

// Close releases prepared statements and closes the DB.
func (d *Database) Close() error {
	if d.addToolStmt != nil {
		d.addToolStmt.Close()
	}
	if d.addAccountStmt != nil {
		d.addAccountStmt.Close()
	}
	return d.db.Close()
}

// ---------------------------------------------------------------------------
// Schema migration and seeding
// ---------------------------------------------------------------------------

const schemaVersion = 1

func applyMigrations(db *sql.DB) error {
	// WAL improves write concurrency across instances.
	if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		return fmt.Errorf("enable WAL: %w", err)
	}

	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS meta (key TEXT PRIMARY KEY, value TEXT);`); err != nil {
		return err
	}

	var current int
	_ = db.QueryRow(`SELECT value FROM meta WHERE key='schema_version';`).Scan(&current)
	if current >= schemaVersion {
		return nil
	}

	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmts := []string{
		`CREATE TABLE IF NOT EXISTS tools (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            name TEXT NOT NULL UNIQUE,
            stock INTEGER NOT NULL,
            description TEXT NOT NULL DEFAULT '',
            created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
        );`,
		// No FK on tool_id: loan rows are history and outlive tool deletion.
		`CREATE TABLE IF NOT EXISTS loans (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            borrower_name TEXT NOT NULL,
            tool_id INTEGER NOT NULL,
            quantity INTEGER NOT NULL,
            status TEXT NOT NULL DEFAULT 'Borrowed',
            loaned_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
            returned_at TIMESTAMP
        );`,
		`CREATE TABLE IF NOT EXISTS accounts (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            username TEXT NOT NULL UNIQUE,
            password TEXT NOT NULL,
            role TEXT NOT NULL,
            created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
        );`,
	}

	for _, stmt := range stmts {
		if _, err := tx.Exec(stmt); err != nil {
			return fmt.Errorf("apply migration: %w", err)
		}
	}

	if _, err := tx.Exec(`INSERT INTO meta(key,value) VALUES('schema_version',?)
            ON CONFLICT(key) DO UPDATE SET value=excluded.value;`, schemaVersion); err != nil {
		return fmt.Errorf("record schema version: %w", err)
	}

	return tx.Commit()
}

// seedAccounts inserts the two default login identities iff the accounts table
// is empty, so re-opening a populated store is a no-op.
func seedAccounts(db *sql.DB) error {
	var n int
	if err := db.QueryRow(`SELECT COUNT(*) FROM accounts`).Scan(&n); err != nil {
		return err
	}
	if n > 0 {
		return nil
	}

	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	seeds := []struct {
		username, password string
		role               Role
	}{
		{"admin", "admin123", RoleAdmin},
		{"user1", "user123", RoleUser},
	}
	for _, s := range seeds {
		if _, err := tx.Exec(`INSERT INTO accounts(username,password,role) VALUES(?,?,?)`,
			s.username, s.password, string(s.role)); err != nil {
			return fmt.Errorf("seed accounts: %w", err)
		}
	}
	return tx.Commit()
}

// ---------------------------------------------------------------------------
// Prepared statements
// ---------------------------------------------------------------------------

func (d *Database) prepareStatements() error {
	var err error
	if d.addToolStmt, err = d.db.Prepare(`INSERT INTO tools(name,stock,description) VALUES(?,?,?)`); err != nil {
		return err
	}
	if d.addAccountStmt, err = d.db.Prepare(`INSERT INTO accounts(username,password,role) VALUES(?,?,?)`); err != nil {
		return err
	}
	return nil
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// ---------------------------------------------------------------------------
// Tool operations
// ---------------------------------------------------------------------------

// AddTool registers a new tool type and returns its id.
func (d *Database) AddTool(name string, stock int, description string) (int64, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return 0, fmt.Errorf("tool name must not be empty: %w", ErrInvalidInput)
	}
	if stock < 0 {
		return 0, fmt.Errorf("stock must not be negative: %w", ErrInvalidInput)
	}

	res, err := d.addToolStmt.Exec(name, stock, description)
	if isUniqueViolation(err) {
		return 0, ErrDuplicateName
	}
	if err != nil {
		return 0, fmt.Errorf("add tool: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	d.log.Info("tool added", zap.Int64("id", id), zap.String("name", name), zap.Int("stock", stock))
	return id, nil
}

// EditTool updates name, stock and description of a tool. An update against an
// unknown id silently affects zero rows, matching the original store.
func (d *Database) EditTool(id int64, name string, stock int, description string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("tool name must not be empty: %w", ErrInvalidInput)
	}
	if stock < 0 {
		return fmt.Errorf("stock must not be negative: %w", ErrInvalidInput)
	}

	_, err := d.db.Exec(`UPDATE tools SET name=?, stock=?, description=? WHERE id=?`,
		name, stock, description, id)
	if isUniqueViolation(err) {
		return ErrDuplicateName
	}
	if err != nil {
		return fmt.Errorf("edit tool: %w", err)
	}
	d.log.Info("tool updated", zap.Int64("id", id), zap.String("name", name), zap.Int("stock", stock))
	return nil
}

// DeleteTool removes a tool from the catalog. Deletion is refused while any
// Borrowed loan still references the tool; returned history does not block it.
func (d *Database) DeleteTool(id int64) error {
	tx, err := d.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var open int
	if err := tx.QueryRow(`SELECT COUNT(*) FROM loans WHERE tool_id=? AND status=?`,
		id, string(StatusBorrowed)).Scan(&open); err != nil {
		return err
	}
	if open > 0 {
		return fmt.Errorf("tool %d has %d open loans: %w", id, open, ErrToolInUse)
	}

	if _, err := tx.Exec(`DELETE FROM tools WHERE id=?`, id); err != nil {
		return fmt.Errorf("delete tool: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	d.log.Info("tool deleted", zap.Int64("id", id))
	return nil
}

// GetTool fetches a single tool.
func (d *Database) GetTool(id int64) (*Tool, error) {
	var t Tool
	err := d.db.QueryRow(`SELECT id,name,stock,description,created_at FROM tools WHERE id=?`, id).
		Scan(&t.ID, &t.Name, &t.Stock, &t.Description, &t.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("tool %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// GetAllTools returns the catalog sorted by name.
func (d *Database) GetAllTools() ([]*Tool, error) {
	rows, err := d.db.Query(`SELECT id,name,stock,description,created_at FROM tools ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tools []*Tool
	for rows.Next() {
		var t Tool
		if err := rows.Scan(&t.ID, &t.Name, &t.Stock, &t.Description, &t.CreatedAt); err != nil {
			return nil, err
		}
		tools = append(tools, &t)
	}
	return tools, rows.Err()
}

// GetStock returns the current stock count of a tool.
func (d *Database) GetStock(id int64) (int, error) {
	var stock int
	err := d.db.QueryRow(`SELECT stock FROM tools WHERE id=?`, id).Scan(&stock)
	if err == sql.ErrNoRows {
		return 0, fmt.Errorf("tool %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return 0, err
	}
	return stock, nil
}

// AdjustStock applies stock = stock + delta unconditionally. It performs no
// bounds check; callers that need one must validate before calling (the loan
// operations do their check-and-debit inside one transaction instead).
func (d *Database) AdjustStock(id int64, delta int) error {
	if _, err := d.db.Exec(`UPDATE tools SET stock = stock + ? WHERE id=?`, delta, id); err != nil {
		return fmt.Errorf("adjust stock: %w", err)
	}
	d.log.Info("stock adjusted", zap.Int64("id", id), zap.Int("delta", delta))
	return nil
}

// ---------------------------------------------------------------------------
// Loan operations
// ---------------------------------------------------------------------------

// OpenLoan records a borrowing and debits the tool's stock in one transaction,
// so the stock check, the record insert and the decrement are all-or-nothing
// against concurrent loans on the same tool.
func (d *Database) OpenLoan(borrowerName string, toolID int64, quantity int) (int64, error) {
	borrowerName = strings.TrimSpace(borrowerName)
	if borrowerName == "" {
		return 0, fmt.Errorf("borrower name must not be empty: %w", ErrInvalidInput)
	}
	if quantity <= 0 {
		return 0, fmt.Errorf("quantity must be positive: %w", ErrInvalidInput)
	}

	tx, err := d.db.Begin()
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	var stock int
	err = tx.QueryRow(`SELECT stock FROM tools WHERE id=?`, toolID).Scan(&stock)
	if err == sql.ErrNoRows {
		return 0, fmt.Errorf("tool %d: %w", toolID, ErrNotFound)
	}
	if err != nil {
		return 0, err
	}
	if quantity > stock {
		return 0, &InsufficientStockError{Available: stock}
	}

	res, err := tx.Exec(`INSERT INTO loans(borrower_name,tool_id,quantity,status) VALUES(?,?,?,?)`,
		borrowerName, toolID, quantity, string(StatusBorrowed))
	if err != nil {
		return 0, fmt.Errorf("insert loan: %w", err)
	}
	loanID, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	if _, err := tx.Exec(`UPDATE tools SET stock = stock - ? WHERE id=?`, quantity, toolID); err != nil {
		return 0, fmt.Errorf("debit stock: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}

	d.log.Info("loan opened",
		zap.Int64("loan_id", loanID),
		zap.String("borrower", borrowerName),
		zap.Int64("tool_id", toolID),
		zap.Int("quantity", quantity))
	return loanID, nil
}

// CloseLoan marks a loan as returned and credits the stock back in one
// transaction. Closing an already returned loan is refused so stock is never
// re-credited.
func (d *Database) CloseLoan(loanID int64) error {
	tx, err := d.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var (
		toolID   int64
		quantity int
		status   string
	)
	err = tx.QueryRow(`SELECT tool_id,quantity,status FROM loans WHERE id=?`, loanID).
		Scan(&toolID, &quantity, &status)
	if err == sql.ErrNoRows {
		return fmt.Errorf("loan %d: %w", loanID, ErrNotFound)
	}
	if err != nil {
		return err
	}
	if LoanStatus(status) == StatusReturned {
		return fmt.Errorf("loan %d: %w", loanID, ErrLoanClosed)
	}

	if _, err := tx.Exec(`UPDATE loans SET status=?, returned_at=? WHERE id=?`,
		string(StatusReturned), time.Now(), loanID); err != nil {
		return fmt.Errorf("close loan: %w", err)
	}
	if _, err := tx.Exec(`UPDATE tools SET stock = stock + ? WHERE id=?`, quantity, toolID); err != nil {
		return fmt.Errorf("credit stock: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return err
	}

	d.log.Info("loan returned", zap.Int64("loan_id", loanID), zap.Int64("tool_id", toolID), zap.Int("quantity", quantity))
	return nil
}

const loanSelect = `
    SELECT l.id, l.borrower_name, l.tool_id, t.name, l.quantity, l.status, l.loaned_at, l.returned_at
    FROM loans l
    JOIN tools t ON t.id = l.tool_id`

const loanOrder = ` ORDER BY l.loaned_at DESC, l.id DESC`

func scanLoans(rows *sql.Rows) ([]*LoanRecord, error) {
	defer rows.Close()
	var loans []*LoanRecord
	for rows.Next() {
		var (
			l        LoanRecord
			status   string
			returned sql.NullTime
		)
		if err := rows.Scan(&l.ID, &l.BorrowerName, &l.ToolID, &l.ToolName,
			&l.Quantity, &status, &l.LoanedAt, &returned); err != nil {
			return nil, err
		}
		l.Status = LoanStatus(status)
		if returned.Valid {
			t := returned.Time
			l.ReturnedAt = &t
		}
		loans = append(loans, &l)
	}
	return loans, rows.Err()
}

// ListAllLoans returns every loan joined with its tool name, newest first.
func (d *Database) ListAllLoans() ([]*LoanRecord, error) {
	rows, err := d.db.Query(loanSelect + loanOrder)
	if err != nil {
		return nil, err
	}
	return scanLoans(rows)
}

// ListLoansByStatus returns loans filtered by status, newest first.
func (d *Database) ListLoansByStatus(status LoanStatus) ([]*LoanRecord, error) {
	rows, err := d.db.Query(loanSelect+` WHERE l.status=?`+loanOrder, string(status))
	if err != nil {
		return nil, err
	}
	return scanLoans(rows)
}

// ListLoansByBorrower returns the loans opened under the given borrower name,
// newest first.
func (d *Database) ListLoansByBorrower(username string) ([]*LoanRecord, error) {
	rows, err := d.db.Query(loanSelect+` WHERE l.borrower_name=?`+loanOrder, username)
	if err != nil {
		return nil, err
	}
	return scanLoans(rows)
}

// ---------------------------------------------------------------------------
// Account operations
// ---------------------------------------------------------------------------

// Authenticate returns the account matching the exact (username, password)
// pair. Comparison is byte-exact, as in the original system; no hashing.
func (d *Database) Authenticate(username, password string) (*Account, error) {
	var (
		a    Account
		role string
	)
	err := d.db.QueryRow(`SELECT id,username,role,created_at FROM accounts WHERE username=? AND password=?`,
		username, password).Scan(&a.ID, &a.Username, &role, &a.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	a.Role = Role(role)
	d.log.Info("login", zap.String("username", a.Username), zap.String("role", role))
	return &a, nil
}

// UsernameExists reports whether an account with the given username exists.
func (d *Database) UsernameExists(username string) (bool, error) {
	var exists bool
	err := d.db.QueryRow(`SELECT EXISTS(SELECT 1 FROM accounts WHERE username=?)`, username).Scan(&exists)
	return exists, err
}

// Register creates a new account. The role is fixed to user; admin accounts
// cannot be self-registered.
func (d *Database) Register(username, password string) (int64, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return 0, fmt.Errorf("username and password must not be empty: %w", ErrInvalidInput)
	}

	res, err := d.addAccountStmt.Exec(username, password, string(RoleUser))
	if isUniqueViolation(err) {
		return 0, fmt.Errorf("username %q: %w", username, ErrDuplicateUsername)
	}
	if err != nil {
		return 0, fmt.Errorf("register: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	d.log.Info("account registered", zap.Int64("id", id), zap.String("username", username))
	return id, nil
}

// GetRole returns the role of the account with the given username.
func (d *Database) GetRole(username string) (Role, error) {
	var role string
	err := d.db.QueryRow(`SELECT role FROM accounts WHERE username=?`, username).Scan(&role)
	if err == sql.ErrNoRows {
		return "", fmt.Errorf("account %q: %w", username, ErrNotFound)
	}
	if err != nil {
		return "", err
	}
	return Role(role), nil
}
