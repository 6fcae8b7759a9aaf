package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"syscall"

	"sijatools/config"
	"sijatools/ledger"
	"sijatools/pkg/logger"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		envFile string
		dbPath  string
	)
	cmd := &cobra.Command{
		Use:          "sijatools",
		Short:        "Shared tool lending over a single SQLite store",
		Long:         "SIJAtools tracks a shared pool of tools: users borrow and return them,\nadmins manage the catalog, and every instance works against one SQLite file.",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(envFile)
			if err != nil {
				return err
			}
			if dbPath != "" {
				cfg.DBPath = dbPath
			}

			log := logger.Must(logger.New(cfg.LogMode))
			defer log.Sync()

			led, err := ledger.New(cfg.DBPath, logger.Named(log, "ledger"))
			if err != nil {
				return fmt.Errorf("opening database: %w", err)
			}
			defer led.Close()

			runShell(led)
			return nil
		},
	}
	cmd.Flags().StringVar(&envFile, "env", "", "path to an env file (defaults to ./.env)")
	cmd.Flags().StringVar(&dbPath, "db", "", "override the SQLite database path")
	return cmd
}

// readPassword securely reads a password with masking.
func readPassword(prompt string) (string, error) {
	fmt.Print(prompt)
	bytePassword, err := term.ReadPassword(int(syscall.Stdin))
	if err != nil {
		return "", err
	}
	fmt.Println() // Add newline after password input
	return strings.TrimSpace(string(bytePassword)), nil
}

func readLine(sc *bufio.Scanner, prompt string) (string, bool) {
	fmt.Print(prompt)
	if !sc.Scan() {
		return "", false
	}
	return strings.TrimSpace(sc.Text()), true
}

func readInt(sc *bufio.Scanner, prompt string) (int, bool) {
	raw, ok := readLine(sc, prompt)
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		fmt.Printf("Not a number: %s\n", raw)
		return 0, false
	}
	return n, true
}

func readID(sc *bufio.Scanner, prompt string) (int64, bool) {
	raw, ok := readLine(sc, prompt)
	if !ok {
		return 0, false
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		fmt.Printf("Invalid ID: %s\n", raw)
		return 0, false
	}
	return id, true
}

// ---------------------------------------------------------------------------
// Role selection
// ---------------------------------------------------------------------------

func runShell(led *ledger.Ledger) {
	sc := bufio.NewScanner(os.Stdin)

	fmt.Println("SIJAtools – Tool Lending System")
	for {
		fmt.Println()
		fmt.Println("  [1] Log in as USER   (borrow & return tools)")
		fmt.Println("  [2] Log in as ADMIN  (manage the catalog)")
		fmt.Println("  [3] Exit")
		choice, ok := readLine(sc, "> ")
		if !ok {
			return
		}

		switch choice {
		case "1":
			userGate(sc, led)
		case "2":
			if acc := login(sc, led, ledger.RoleAdmin); acc != nil {
				adminMenu(sc, led, acc)
			}
		case "3", "exit", "quit":
			fmt.Println("Goodbye!")
			return
		default:
			fmt.Println("Unknown choice.")
		}
	}
}

// userGate mirrors the user login screen, which also offers self-registration.
func userGate(sc *bufio.Scanner, led *ledger.Ledger) {
	for {
		fmt.Println()
		fmt.Println("  [1] Log in")
		fmt.Println("  [2] Create an account")
		fmt.Println("  [3] Back")
		choice, ok := readLine(sc, "> ")
		if !ok {
			return
		}

		switch choice {
		case "1":
			if acc := login(sc, led, ledger.RoleUser); acc != nil {
				userMenu(sc, led, acc)
				return
			}
		case "2":
			handleRegister(sc, led)
		case "3":
			return
		default:
			fmt.Println("Unknown choice.")
		}
	}
}

// login authenticates against the ledger and checks the account's role
// against the selected one, so an admin account can't enter the user surface
// and vice versa.
func login(sc *bufio.Scanner, led *ledger.Ledger, want ledger.Role) *ledger.Account {
	if want == ledger.RoleUser {
		fmt.Println("Demo USER: user1 / user123")
	} else {
		fmt.Println("Demo ADMIN: admin / admin123")
	}

	username, ok := readLine(sc, "Username: ")
	if !ok {
		return nil
	}
	password, err := readPassword("Password: ")
	if err != nil {
		fmt.Printf("Error reading password: %v\n", err)
		return nil
	}
	if username == "" || password == "" {
		fmt.Println("Username and password must not be empty.")
		return nil
	}

	acc, err := led.Authenticate(username, password)
	if errors.Is(err, ledger.ErrInvalidCredentials) {
		fmt.Println("Wrong username or password.")
		return nil
	}
	if err != nil {
		fmt.Printf("Login failed: %v\n", err)
		return nil
	}
	if acc.Role != want {
		fmt.Printf("'%s' is a %s account, not a %s account. Use the matching login.\n",
			acc.Username, strings.ToUpper(string(acc.Role)), strings.ToUpper(string(want)))
		return nil
	}

	fmt.Printf("Welcome, %s (%s)\n", acc.Username, strings.ToUpper(string(acc.Role)))
	return acc
}

func handleRegister(sc *bufio.Scanner, led *ledger.Ledger) {
	username, ok := readLine(sc, "New username: ")
	if !ok {
		return
	}

	if taken, err := led.UsernameExists(username); err == nil && taken {
		fmt.Printf("Username '%s' is already taken. Pick another one.\n", username)
		return
	}

	password, err := readPassword("New password: ")
	if err != nil {
		fmt.Printf("Error reading password: %v\n", err)
		return
	}
	confirm, err := readPassword("Confirm password: ")
	if err != nil {
		fmt.Printf("Error reading password: %v\n", err)
		return
	}
	if password != confirm {
		fmt.Println("Passwords do not match.")
		return
	}

	if _, err := led.Register(username, password); err != nil {
		switch {
		case errors.Is(err, ledger.ErrInvalidInput):
			fmt.Println("Username and password must not be empty.")
		case errors.Is(err, ledger.ErrDuplicateUsername):
			fmt.Printf("Username '%s' is already taken. Pick another one.\n", username)
		default:
			fmt.Printf("Registration failed: %v\n", err)
		}
		return
	}
	fmt.Println("Account created. You can log in now.")
}

// ---------------------------------------------------------------------------
// Admin surface
// ---------------------------------------------------------------------------

func adminMenu(sc *bufio.Scanner, led *ledger.Ledger, acc *ledger.Account) {
	for {
		fmt.Println()
		fmt.Printf("-- %s (ADMIN) --\n", acc.Username)
		fmt.Println("  [1] List tools")
		fmt.Println("  [2] Add tool")
		fmt.Println("  [3] Edit tool")
		fmt.Println("  [4] Delete tool")
		fmt.Println("  [5] Loan history")
		fmt.Println("  [6] Log out")
		choice, ok := readLine(sc, "> ")
		if !ok {
			return
		}

		switch choice {
		case "1":
			handleListTools(led)
		case "2":
			handleAddTool(sc, led)
		case "3":
			handleEditTool(sc, led)
		case "4":
			handleDeleteTool(sc, led)
		case "5":
			handleLoanHistory(led)
		case "6":
			return
		default:
			fmt.Println("Unknown choice.")
		}
	}
}

func handleListTools(led *ledger.Ledger) {
	tools, err := led.GetAllTools()
	if err != nil {
		fmt.Printf("Error listing tools: %v\n", err)
		return
	}
	if len(tools) == 0 {
		fmt.Println("The catalog is empty.")
		return
	}
	fmt.Printf("%-5s %-25s %-7s %s\n", "ID", "Name", "Stock", "Description")
	for _, t := range tools {
		fmt.Println(ledger.PrettyTool(t))
	}
}

func handleAddTool(sc *bufio.Scanner, led *ledger.Ledger) {
	name, ok := readLine(sc, "Name: ")
	if !ok {
		return
	}
	stock, ok := readInt(sc, "Stock: ")
	if !ok {
		return
	}
	description, ok := readLine(sc, "Description (optional): ")
	if !ok {
		return
	}

	id, err := led.AddTool(name, stock, description)
	if err != nil {
		switch {
		case errors.Is(err, ledger.ErrDuplicateName):
			fmt.Printf("A tool named '%s' already exists.\n", name)
		case errors.Is(err, ledger.ErrInvalidInput):
			fmt.Println("Name must not be empty and stock must not be negative.")
		default:
			fmt.Printf("Error adding tool: %v\n", err)
		}
		return
	}
	fmt.Printf("Added tool ID %d.\n", id)
}

func handleEditTool(sc *bufio.Scanner, led *ledger.Ledger) {
	id, ok := readID(sc, "Tool ID: ")
	if !ok {
		return
	}
	tool, err := led.GetTool(id)
	if errors.Is(err, ledger.ErrNotFound) {
		fmt.Printf("No tool with ID %d.\n", id)
		return
	}
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	fmt.Printf("Editing '%s' (stock %d)\n", tool.Name, tool.Stock)

	name, ok := readLine(sc, "New name: ")
	if !ok {
		return
	}
	stock, ok := readInt(sc, "New stock: ")
	if !ok {
		return
	}
	description, ok := readLine(sc, "New description: ")
	if !ok {
		return
	}

	if err := led.EditTool(id, name, stock, description); err != nil {
		switch {
		case errors.Is(err, ledger.ErrDuplicateName):
			fmt.Printf("A tool named '%s' already exists.\n", name)
		case errors.Is(err, ledger.ErrInvalidInput):
			fmt.Println("Name must not be empty and stock must not be negative.")
		default:
			fmt.Printf("Error updating tool: %v\n", err)
		}
		return
	}
	fmt.Println("Tool updated.")
}

func handleDeleteTool(sc *bufio.Scanner, led *ledger.Ledger) {
	id, ok := readID(sc, "Tool ID: ")
	if !ok {
		return
	}
	confirm, ok := readLine(sc, fmt.Sprintf("Delete tool %d? [y/N] ", id))
	if !ok || !strings.EqualFold(confirm, "y") {
		fmt.Println("Cancelled.")
		return
	}

	if err := led.DeleteTool(id); err != nil {
		if errors.Is(err, ledger.ErrToolInUse) {
			fmt.Println("This tool still has open loans and cannot be deleted.")
			return
		}
		fmt.Printf("Error deleting tool: %v\n", err)
		return
	}
	fmt.Println("Tool deleted.")
}

func handleLoanHistory(led *ledger.Ledger) {
	loans, err := led.ListAllLoans()
	if err != nil {
		fmt.Printf("Error listing loans: %v\n", err)
		return
	}
	printLoans(loans)
}

// ---------------------------------------------------------------------------
// User surface
// ---------------------------------------------------------------------------

func userMenu(sc *bufio.Scanner, led *ledger.Ledger, acc *ledger.Account) {
	for {
		fmt.Println()
		fmt.Printf("-- %s (USER) --\n", acc.Username)
		fmt.Println("  [1] List tools")
		fmt.Println("  [2] Borrow a tool")
		fmt.Println("  [3] Return a tool")
		fmt.Println("  [4] My loans")
		fmt.Println("  [5] Log out")
		choice, ok := readLine(sc, "> ")
		if !ok {
			return
		}

		switch choice {
		case "1":
			handleListTools(led)
		case "2":
			handleBorrow(sc, led, acc)
		case "3":
			handleReturn(sc, led)
		case "4":
			handleMyLoans(led, acc)
		case "5":
			return
		default:
			fmt.Println("Unknown choice.")
		}
	}
}

func handleBorrow(sc *bufio.Scanner, led *ledger.Ledger, acc *ledger.Account) {
	handleListTools(led)

	id, ok := readID(sc, "Tool ID: ")
	if !ok {
		return
	}
	stock, err := led.GetStock(id)
	if errors.Is(err, ledger.ErrNotFound) {
		fmt.Printf("No tool with ID %d.\n", id)
		return
	}
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	fmt.Printf("Available: %d\n", stock)

	quantity, ok := readInt(sc, "Quantity: ")
	if !ok {
		return
	}

	// Loans opened here always run under the logged-in username.
	loanID, err := led.OpenLoan(acc.Username, id, quantity)
	if err != nil {
		var insuff *ledger.InsufficientStockError
		switch {
		case errors.As(err, &insuff):
			fmt.Printf("Not enough stock. Available: %d\n", insuff.Available)
		case errors.Is(err, ledger.ErrInvalidInput):
			fmt.Println("Quantity must be a positive number.")
		default:
			fmt.Printf("Error opening loan: %v\n", err)
		}
		return
	}
	fmt.Printf("Loan opened (ID %d).\n", loanID)
}

func handleReturn(sc *bufio.Scanner, led *ledger.Ledger) {
	loans, err := led.ListLoansByStatus(ledger.StatusBorrowed)
	if err != nil {
		fmt.Printf("Error listing loans: %v\n", err)
		return
	}
	if len(loans) == 0 {
		fmt.Println("No open loans.")
		return
	}
	printLoans(loans)

	id, ok := readID(sc, "Loan ID to return: ")
	if !ok {
		return
	}
	if err := led.CloseLoan(id); err != nil {
		switch {
		case errors.Is(err, ledger.ErrNotFound):
			fmt.Printf("No loan with ID %d.\n", id)
		case errors.Is(err, ledger.ErrLoanClosed):
			fmt.Println("That loan was already returned.")
		default:
			fmt.Printf("Error returning loan: %v\n", err)
		}
		return
	}
	fmt.Println("Tool returned.")
}

func handleMyLoans(led *ledger.Ledger, acc *ledger.Account) {
	loans, err := led.ListLoansByBorrower(acc.Username)
	if err != nil {
		fmt.Printf("Error listing loans: %v\n", err)
		return
	}
	printLoans(loans)
}

func printLoans(loans []*ledger.LoanRecord) {
	if len(loans) == 0 {
		fmt.Println("No loan records.")
		return
	}
	fmt.Printf("%-5s %-15s %-25s %-5s %-10s %-17s %s\n",
		"ID", "Borrower", "Tool", "Qty", "Status", "Loaned at", "Returned at")
	for _, r := range loans {
		fmt.Println(ledger.PrettyLoan(r))
	}
}
