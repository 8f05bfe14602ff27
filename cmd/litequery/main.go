// Command litequery is the CLI surface for the query engine (spec.md §6):
// thin dispatch glue that owns no decoding logic of its own.
package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/kbaker/litequery/internal/engine"
)

// Usage: litequery <database-path> <command> [args...]
func main() {
	log := logrus.StandardLogger()

	if len(os.Args) < 3 {
		fmt.Fprintln(os.Stderr, "usage: litequery <database-path> <command> [args...]")
		os.Exit(1)
	}

	dbPath := os.Args[1]
	command := os.Args[2]
	rest := strings.Join(os.Args[2:], " ")

	e, err := engine.Open(dbPath, engine.WithLogger(log))
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer e.Close()

	if err := run(e, command, rest); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(e *engine.Engine, command, rest string) error {
	switch command {
	case ".dbinfo":
		return runDBInfo(e)
	case ".tables":
		return runTables(e)
	default:
		return runQuery(e, rest)
	}
}

func runDBInfo(e *engine.Engine) error {
	pageSize, numTables, err := e.DBInfo()
	if err != nil {
		return fmt.Errorf("dbinfo: %w", err)
	}
	fmt.Printf("database page size: %d\n", pageSize)
	fmt.Printf("number of tables: %d\n", numTables)
	return nil
}

func runTables(e *engine.Engine) error {
	fmt.Println(strings.Join(e.Tables(), " "))
	return nil
}

func runQuery(e *engine.Engine, sql string) error {
	rows, err := e.Query(sql)
	if err != nil {
		return err
	}
	for _, row := range rows {
		fmt.Println(row)
	}
	return nil
}
