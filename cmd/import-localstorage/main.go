// import-localstorage copies the browser dashboard's saved state into the
// crypto tracker database so existing users keep their watchlist and account.
//
// Usage: import-localstorage -db=<path> -file=<dump.json> [-dry-run] [-execute] [-merge]
//
// The dump is the JSON produced by running
//
//	JSON.stringify({localStorage: {...localStorage}, sessionStorage: {...sessionStorage}})
//
// in the browser console. A flat object of localStorage keys is accepted too.
//
// The tool:
// 1. Adds every watchlist coin that is not already starred
// 2. Imports each user record (stamped with importedAt)
// 3. If the user already exists: merges with -merge, otherwise prompts
// 4. Restores a remembered login session that has not expired
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/codyseavey/crypto-tracker/internal/database"
	"github.com/codyseavey/crypto-tracker/internal/storage"
)

func main() {
	dbPath := flag.String("db", "", "Path to SQLite database (required)")
	filePath := flag.String("file", "", "Path to the browser storage dump (required)")
	dryRun := flag.Bool("dry-run", false, "Preview changes without modifying database")
	execute := flag.Bool("execute", false, "Execute the import (required to make changes)")
	merge := flag.Bool("merge", false, "Merge into existing users instead of prompting")
	flag.Parse()

	if *dbPath == "" || *filePath == "" {
		fmt.Println("Usage: import-localstorage -db=<path> -file=<dump.json> [options]")
		fmt.Println("")
		fmt.Println("Imports the browser dashboard's watchlist, users and remembered")
		fmt.Println("session into the crypto tracker database.")
		fmt.Println("")
		fmt.Println("Options:")
		fmt.Println("  -db        Path to SQLite database (required)")
		fmt.Println("  -file      Path to the browser storage dump (required)")
		fmt.Println("  -dry-run   Preview changes without modifying database")
		fmt.Println("  -execute   Execute the import (required to make changes)")
		fmt.Println("  -merge     Merge into existing users instead of prompting")
		fmt.Println("")
		fmt.Println("Examples:")
		fmt.Println("  # Preview what would be imported")
		fmt.Println("  import-localstorage -db=./crypto_tracker.db -file=./storage.json -dry-run")
		fmt.Println("")
		fmt.Println("  # Import, merging into any existing accounts")
		fmt.Println("  import-localstorage -db=./crypto_tracker.db -file=./storage.json -execute -merge")
		os.Exit(1)
	}

	if !*dryRun && !*execute {
		fmt.Println("Error: Must specify either -dry-run or -execute")
		os.Exit(1)
	}

	data, err := os.ReadFile(*filePath)
	if err != nil {
		log.Fatalf("Failed to read dump: %v", err)
	}
	dump, err := parseDump(data)
	if err != nil {
		log.Fatalf("Failed to parse dump: %v", err)
	}
	log.Printf("Loaded dump with %d localStorage and %d sessionStorage keys", len(dump.Local), len(dump.Session))

	// Initialize database
	if err := database.Initialize(*dbPath); err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	store := storage.NewSQLiteStore(database.GetDB())

	reader := bufio.NewReader(os.Stdin)
	imp := &importer{
		store:  store,
		apply:  *execute && !*dryRun,
		merge:  *merge,
		dryRun: *dryRun,
		confirm: func(email string) bool {
			fmt.Printf("  User %s already exists. Merge? [y/N]: ", email)
			input, _ := reader.ReadString('\n')
			input = strings.TrimSpace(strings.ToLower(input))
			return input == "y" || input == "yes"
		},
	}

	results := imp.run(context.Background(), dump)
	printSummary(results, *dryRun)
}

func printSummary(results []importResult, dryRun bool) {
	counts := map[string]int{}
	for _, r := range results {
		counts[r.Action]++
	}

	fmt.Println("")
	fmt.Println("=== Import Summary ===")
	if dryRun {
		fmt.Println("(DRY RUN - no changes made)")
	}
	fmt.Printf("Imported:          %d\n", counts[actionImported])
	fmt.Printf("Already present:   %d\n", counts[actionPresent])
	fmt.Printf("Skipped:           %d\n", counts[actionSkipped])
	fmt.Printf("Errors:            %d\n", counts[actionError])
	fmt.Printf("Total processed:   %d\n", len(results))

	if counts[actionError] > 0 || counts[actionSkipped] > 0 {
		fmt.Println("\n--- Items that were not imported ---")
		for _, r := range results {
			if r.Action == actionError || r.Action == actionSkipped {
				fmt.Printf("  %s %s: %s\n", r.Kind, r.Key, r.Reason)
			}
		}
	}
}
