package ledger

import (
	"path/filepath"
	"strings"
	"testing"
)

func newLedger(t *testing.T) *Ledger {
	t.Helper()
	dir := t.TempDir()
	led, err := New(filepath.Join(dir, "tools.db"), nil)
	if err != nil {
		t.Fatalf("ledger: %v", err)
	}
	t.Cleanup(func() { led.Close() })
	return led
}

// Opening a loan and immediately closing it restores the pre-loan stock.
func TestLoanRoundTrip(t *testing.T) {
	led := newLedger(t)
	id, err := led.AddTool("Torque Wrench", 7, "")
	if err != nil {
		t.Fatalf("add: %v", err)
	}

	loanID, err := led.OpenLoan("user1", id, 4)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := led.CloseLoan(loanID); err != nil {
		t.Fatalf("close: %v", err)
	}

	stock, err := led.GetStock(id)
	if err != nil {
		t.Fatalf("stock: %v", err)
	}
	if stock != 7 {
		t.Fatalf("want stock 7 after round trip, got %d", stock)
	}
}

func TestPrettyFormatting(t *testing.T) {
	led := newLedger(t)
	id, _ := led.AddTool("Heat Gun", 2, "2000W")
	loanID, _ := led.OpenLoan("user1", id, 1)

	tool, _ := led.GetTool(id)
	if s := PrettyTool(tool); !strings.Contains(s, "Heat Gun") || !strings.Contains(s, "2000W") {
		t.Fatalf("unexpected tool row: %q", s)
	}

	loans, _ := led.ListLoansByBorrower("user1")
	if len(loans) != 1 || loans[0].ID != loanID {
		t.Fatalf("want the one loan back")
	}
	if s := PrettyLoan(loans[0]); !strings.Contains(s, "Heat Gun") || !strings.Contains(s, string(StatusBorrowed)) {
		t.Fatalf("unexpected loan row: %q", s)
	}
}
