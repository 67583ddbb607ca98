// Command storage_inspect dumps the groupmeet badger tables as a table
// on stdout. Handy for checking what the reference backend persisted.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/dgraph-io/badger/v4"
	"github.com/olekukonko/tablewriter"
)

func main() {
	dbPath := flag.String("db", "", "Path to badger DB")
	prefix := flag.String("prefix", "group:", "Prefix to scan (group:, member:, msg:, profile:, meeting:, user:)")
	flag.Parse()

	if *dbPath == "" {
		log.Fatal("missing -db path")
	}

	// Read-only so a running client keeps its lock.
	opts := badger.DefaultOptions(*dbPath).
		WithReadOnly(true).
		WithBypassLockGuard(true).
		WithLoggingLevel(badger.WARNING)
	db, err := badger.Open(opts)
	if err != nil {
		log.Fatal("Error while opening Badger: ", err)
	}
	defer db.Close()

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Key", "Table", "Entity", "Value"})
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(true)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("\t")

	err = db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefixBytes := []byte(*prefix)
		for it.Seek(prefixBytes); it.ValidForPrefix(prefixBytes); it.Next() {
			item := it.Item()
			err := item.Value(func(v []byte) error {
				table.Append(describe(string(item.Key()), v))
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		log.Fatal(err)
	}

	table.Render()
}

// describe renders one entry. Values are JSON documents except for index
// entries (invite:, useremail:), which hold a plain id.
func describe(key string, val []byte) []string {
	parts := strings.SplitN(key, ":", 3)
	tableName, entity := "raw", ""
	if len(parts) >= 2 {
		tableName = parts[0]
		entity = parts[1]
		if len(entity) > 12 {
			entity = entity[:12]
		}
	}

	value := string(val)
	var compact map[string]any
	if err := json.Unmarshal(val, &compact); err == nil {
		pairs := make([]string, 0, len(compact))
		for k, v := range compact {
			pairs = append(pairs, fmt.Sprintf("%s=%v", k, v))
		}
		value = strings.Join(pairs, " ")
	}
	if len(value) > 80 {
		value = value[:80] + "..."
	}

	return []string{key, tableName, entity, value}
}
