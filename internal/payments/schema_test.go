package payments

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
)

var createTableRe = regexp.MustCompile(`(?s)CREATE TABLE IF NOT EXISTS (\w+) \((.*?)\);`)

func schemaColumns(t *testing.T) map[string][]string {
	t.Helper()

	path := filepath.Join("..", "..", "scripts", "schema.sql")
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read schema file: %v", err)
	}

	tables := map[string][]string{}
	for _, m := range createTableRe.FindAllStringSubmatch(string(data), -1) {
		var cols []string
		for _, line := range strings.Split(m[2], "\n") {
			fields := strings.Fields(line)
			if len(fields) == 0 {
				continue
			}
			switch strings.ToUpper(fields[0]) {
			case "PRIMARY", "UNIQUE", "CHECK", "FOREIGN", "CONSTRAINT":
				continue
			}
			cols = append(cols, fields[0])
		}
		tables[m[1]] = cols
	}
	return tables
}

// The repository writes columns by name; every one of them must exist in the
// development schema or the statements fail with an undefined-column error at
// runtime.
func TestSchemaCoversRepositoryColumns(t *testing.T) {
	tables := schemaColumns(t)

	wanted := map[string][]string{
		"customers": {"org_id", "name", "outstanding_amount", "updated_at"},
		"suppliers": {"org_id", "name", "outstanding_amount", "updated_at"},
		"invoices":  {"org_id", "customer_id", "total_amount", "due_date"},
		"purchases": {"org_id", "supplier_id", "total_amount", "due_date"},
		"payments": {
			"org_id", "document_kind", "document_id", "party_kind", "party_id",
			"amount", "mode", "status", "payment_date", "reference", "created_at",
		},
	}

	for table, columns := range wanted {
		have, ok := tables[table]
		if !ok {
			t.Fatalf("schema missing table %s", table)
		}
		declared := map[string]bool{}
		for _, c := range have {
			declared[c] = true
		}
		for _, c := range columns {
			if !declared[c] {
				t.Errorf("table %s missing column %s", table, c)
			}
		}
	}
}
