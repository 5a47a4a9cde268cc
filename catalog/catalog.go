// Package catalog holds the warehouse statements as ordered data: the schema
// statements that drop and create the staging and star-schema tables, and the
// load statements that COPY raw data into staging and INSERT it into the final
// tables.
//
// Every statement names the table it touches, so the order of a list can be
// checked against the table dependency graph with ValidateOrder.
package catalog

import (
	"errors"
	"fmt"
)

// Kind classifies a statement.
type Kind int

const (
	KindDrop Kind = iota
	KindCreate
	KindCopy
	KindInsert
)

func (k Kind) String() string {
	switch k {
	case KindDrop:
		return "drop"
	case KindCreate:
		return "create"
	case KindCopy:
		return "copy"
	case KindInsert:
		return "insert"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Table names.
const (
	StagingEvents = "staging_events"
	StagingSongs  = "staging_songs"
	Users         = "users"
	Artists       = "artists"
	Songs         = "songs"
	Time          = "time"
	Songplays     = "songplays"
)

// Statement is one named SQL statement. Order is the position within its list.
type Statement struct {
	Name  string
	Table string
	Kind  Kind
	Order int
	SQL   string
}

// ErrOrder is returned by ValidateOrder when a list violates table dependencies.
var ErrOrder = errors.New("statement order violates table dependencies")

// dependencies maps a table to the tables it references or reads from.
// Staging tables have no dependencies; final tables are filled from staging.
var dependencies = map[string][]string{
	StagingEvents: nil,
	StagingSongs:  nil,
	Users:         nil,
	Artists:       nil,
	Songs:         {Artists},
	Time:          nil,
	Songplays:     {Users, Songs, Artists, Time},
}

// loadSources maps a final table to the staging tables its INSERT reads.
var loadSources = map[string][]string{
	Users:     {StagingEvents},
	Artists:   {StagingSongs},
	Songs:     {StagingSongs},
	Time:      {StagingEvents},
	Songplays: {StagingEvents},
}

// Dependencies returns the tables that table references by foreign key.
func Dependencies(table string) []string {
	return append([]string(nil), dependencies[table]...)
}

// Tables returns every table the catalog knows, in creation order.
func Tables() []string {
	stmts := CreateStatements()
	tables := make([]string, len(stmts))
	for i, s := range stmts {
		tables[i] = s.Table
	}
	return tables
}

func number(stmts []Statement) []Statement {
	for i := range stmts {
		stmts[i].Order = i
	}
	return stmts
}

// ValidateOrder checks a statement list against the dependency graph:
//   - drops remove a table only after every table referencing it is gone,
//     when the list drops that table at all
//   - creates add a table only after every table it references exists
//   - inserts fill a table only after the tables it references are filled
//     and after every staging table it reads was copied, when the list also
//     carries COPY statements
func ValidateOrder(stmts []Statement) error {
	seen := make(map[string]Kind)
	for i, s := range stmts {
		if s.Order != i {
			return fmt.Errorf("%w: %s has order %d at position %d", ErrOrder, s.Name, s.Order, i)
		}
		switch s.Kind {
		case KindDrop:
			for table, deps := range dependencies {
				if table == s.Table {
					continue
				}
				for _, dep := range deps {
					if dep == s.Table && dropped(stmts[i+1:], table) {
						return fmt.Errorf("%w: %s dropped before dependent %s", ErrOrder, s.Table, table)
					}
				}
			}
		case KindCreate:
			for _, dep := range dependencies[s.Table] {
				if k, ok := seen[dep]; !ok || k != KindCreate {
					return fmt.Errorf("%w: %s created before %s", ErrOrder, s.Table, dep)
				}
			}
		case KindInsert:
			for _, dep := range dependencies[s.Table] {
				if k, ok := seen[dep]; !ok || k != KindInsert {
					return fmt.Errorf("%w: %s filled before %s", ErrOrder, s.Table, dep)
				}
			}
			if hasKind(stmts, KindCopy) {
				for _, src := range loadSources[s.Table] {
					if k, ok := seen[src]; !ok || k != KindCopy {
						return fmt.Errorf("%w: %s filled before %s was loaded", ErrOrder, s.Table, src)
					}
				}
			}
		}
		if k, ok := seen[s.Table]; ok && k == s.Kind {
			return fmt.Errorf("%w: duplicate %s for %s", ErrOrder, s.Kind, s.Table)
		}
		seen[s.Table] = s.Kind
	}
	return nil
}

func dropped(stmts []Statement, table string) bool {
	for _, s := range stmts {
		if s.Kind == KindDrop && s.Table == table {
			return true
		}
	}
	return false
}

func hasKind(stmts []Statement, kind Kind) bool {
	for _, s := range stmts {
		if s.Kind == kind {
			return true
		}
	}
	return false
}
