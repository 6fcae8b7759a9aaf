package main

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"sijatools/config"
	"sijatools/ledger"
)

// Bulk-loads a tool catalog from a CSV file with rows of the form
//
//	name,stock[,description]
//
// into the configured SQLite store. Lines starting with '#' are skipped.
func main() {
	path := "tools.csv"
	if len(os.Args) > 1 {
		path = os.Args[1]
	}

	cfg, err := config.Load("")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	led, err := ledger.New(cfg.DBPath, nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening database: %v\n", err)
		os.Exit(1)
	}
	defer led.Close()

	f, err := os.Open(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening %s: %v\n", path, err)
		os.Exit(1)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true
	r.Comment = '#'

	successCount := 0
	errorCount := 0

	fmt.Printf("Importing tools from %s...\n", path)
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			fmt.Printf("ERROR - bad row: %v\n", err)
			errorCount++
			continue
		}
		if len(record) < 2 {
			fmt.Printf("ERROR - row needs at least name and stock: %v\n", record)
			errorCount++
			continue
		}

		name := strings.TrimSpace(record[0])
		stock, err := strconv.Atoi(strings.TrimSpace(record[1]))
		if err != nil {
			fmt.Printf("ERROR - %s: stock is not a number: %s\n", name, record[1])
			errorCount++
			continue
		}
		description := ""
		if len(record) > 2 {
			description = strings.TrimSpace(record[2])
		}

		fmt.Printf("Importing: %s (stock %d)... ", name, stock)
		id, err := led.AddTool(name, stock, description)
		if err != nil {
			fmt.Printf("ERROR - %v\n", err)
			errorCount++
			continue
		}
		fmt.Printf("SUCCESS (ID: %d)\n", id)
		successCount++
	}

	fmt.Printf("\nImport complete!\n")
	fmt.Printf("Successfully imported: %d tools\n", successCount)
	fmt.Printf("Errors: %d\n", errorCount)

	if successCount > 0 {
		fmt.Println("\nCatalog:")
		tools, err := led.GetAllTools()
		if err != nil {
			fmt.Printf("Error retrieving tools: %v\n", err)
			return
		}
		fmt.Printf("%-5s %-25s %-7s %s\n", "ID", "Name", "Stock", "Description")
		for _, t := range tools {
			fmt.Println(ledger.PrettyTool(t))
		}
	}
}
