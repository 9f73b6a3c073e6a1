package warehouse

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Dialect captures what differs between store backends: how the store is
// opened, a few SQL expressions, and how a batch is bulk-staged.
type Dialect interface {
	// Name is the storage kind this dialect is registered under.
	Name() string
	// Open returns a database handle for the store at path. ":memory:" opens a
	// private in-memory store.
	Open(path string) (*sql.DB, error)
	// YearMonth renders a 'YYYY-MM' text expression for a DATE column.
	YearMonth(col string) string
	// DateText renders a 'YYYY-MM-DD' text expression for a DATE column.
	DateText(col string) string
	// Stage fills the already-created table name with rows using the backend's
	// bulk primitive.
	Stage(ctx context.Context, conn *sql.Conn, name string, cols []Column, rows [][]any) error
}

var (
	dialectMu sync.RWMutex
	dialects  = map[string]Dialect{}
)

// Register makes a dialect available under d.Name(). Backends call it from
// init; registering the same name twice replaces the earlier dialect.
func Register(d Dialect) {
	dialectMu.Lock()
	defer dialectMu.Unlock()
	dialects[d.Name()] = d
}

// Lookup returns the dialect registered for kind.
func Lookup(kind string) (Dialect, error) {
	dialectMu.RLock()
	d, ok := dialects[kind]
	dialectMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("warehouse: no backend registered for kind=%q (have %s)", kind, strings.Join(Kinds(), ", "))
	}
	return d, nil
}

// Kinds lists registered backend names in sorted order.
func Kinds() []string {
	dialectMu.RLock()
	defer dialectMu.RUnlock()
	out := make([]string, 0, len(dialects))
	for k := range dialects {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// stagingDDL builds the CREATE TABLE statement for a staging table.
func stagingDDL(name string, cols []Column) string {
	defs := make([]string, len(cols))
	for i, c := range cols {
		defs[i] = c.Name + " " + c.Kind.sqlType()
	}
	return fmt.Sprintf("CREATE TABLE %s (%s)", name, strings.Join(defs, ", "))
}

func isMemory(path string) bool {
	return path == "" || path == ":memory:"
}
