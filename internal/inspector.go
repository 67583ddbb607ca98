package internal

import (
	"embed"
	"fmt"
	"html/template"
	"net/http"
	"strconv"
	"strings"

	"github.com/dgraph-io/badger/v4"
)

//go:embed inspect.html
var templatesFS embed.FS

// InspectRow is one rendered storage entry.
type InspectRow struct {
	Key    string
	Table  string
	Entity string
	Detail string
}

type PageData struct {
	Prefix string
	Items  []InspectRow
	Stats  map[string]any
}

type StatsProvider func() map[string]any

// StartInspector serves a read-only HTML view over the badger tables
// (group:, member:, msg:, profile:, meeting:, user:) for local
// debugging. Listens in the background; never used in production paths.
func StartInspector(db *badger.DB, port int, statsProvider StatsProvider) {
	mux := http.NewServeMux()
	tmpl := template.Must(template.ParseFS(templatesFS, "inspect.html"))

	mux.HandleFunc("/inspect", func(w http.ResponseWriter, r *http.Request) {
		prefix := r.URL.Query().Get("prefix")
		if prefix == "" {
			prefix = "group:"
		}

		data := PageData{Prefix: prefix, Stats: make(map[string]any)}
		if statsProvider != nil {
			data.Stats = statsProvider()
		}

		_ = db.View(func(txn *badger.Txn) error {
			it := txn.NewIterator(badger.DefaultIteratorOptions)
			defer it.Close()
			for it.Seek([]byte(prefix)); it.ValidForPrefix([]byte(prefix)); it.Next() {
				item := it.Item()
				_ = item.Value(func(val []byte) error {
					data.Items = append(data.Items, mapRow(string(item.Key()), val))
					return nil
				})
			}
			return nil
		})

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_ = tmpl.Execute(w, data)
	})

	go func() {
		_ = http.ListenAndServe(fmt.Sprintf("localhost:%d", port), mux)
	}()
}

func mapRow(key string, val []byte) InspectRow {
	parts := strings.SplitN(key, ":", 3)
	row := InspectRow{
		Key:    key,
		Table:  "raw",
		Entity: "--------",
		Detail: strconv.Itoa(len(val)) + " bytes",
	}
	if len(parts) >= 2 {
		row.Table = parts[0]
		row.Entity = parts[1]
		if len(row.Entity) > 12 {
			row.Entity = row.Entity[:12]
		}
	}
	return row
}
