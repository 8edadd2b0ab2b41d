// Command storedemo is a minimal interactive harness over the storage
// core: it wires pagefile, record and btree together against one fixed
// demo schema (id INT, score REAL, name VARCHAR), without reimplementing a
// query language or catalog — those are owned by whatever system embeds
// this module.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/malzahar-project/dbstorage/config"
	"github.com/malzahar-project/dbstorage/record"
)

func main() {
	cfgPath := flag.String("config", "config.txt", "path to config file")
	flag.Parse()

	abs, _ := filepath.Abs(*cfgPath)
	cfg, err := config.Load(abs)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(2)
	}

	d, err := newDemo(cfg.DBPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize storage core: %v\n", err)
		os.Exit(2)
	}
	if err := d.run(); err != nil {
		fmt.Fprintf(os.Stderr, "runtime error: %v\n", err)
		os.Exit(2)
	}
}

var demoSchema = record.Schema{Attrs: []record.AttrDescriptor{
	{Name: "id", Type: record.Int},
	{Name: "score", Type: record.Real},
	{Name: "name", Type: record.VarChar, Length: 64},
}}

type demo struct {
	store *record.Store
	index *idIndex
	log   *logrus.Entry
}

func newDemo(dbPath string) (*demo, error) {
	recordPath := filepath.Join(dbPath, "records.db")
	indexPath := filepath.Join(dbPath, "id_index.db")

	if err := os.MkdirAll(dbPath, 0o755); err != nil {
		return nil, err
	}

	store, err := openOrCreateStore(recordPath)
	if err != nil {
		return nil, err
	}
	idx, err := openOrCreateIndex(indexPath)
	if err != nil {
		store.Close()
		return nil, err
	}
	return &demo{store: store, index: idx, log: logrus.WithField("component", "storedemo")}, nil
}

// run listens on stdin for commands until EXIT. No prompt is printed,
// matching the non-interactive-friendly command loop this harness is
// modeled on.
func (d *demo) run() error {
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if strings.EqualFold(line, "EXIT") {
			return d.close()
		}
		if err := d.processCommand(line, os.Stdout); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
		}
	}
	return scanner.Err()
}

func (d *demo) close() error {
	if err := d.store.Close(); err != nil {
		return err
	}
	return d.index.tree.Close()
}

// processCommand handles one line of input:
//
//	INSERT id score name
//	GET id
//	DEL id
//	SCAN            (every live record; arguments are ignored)
func (d *demo) processCommand(line string, w *os.File) error {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil
	}
	switch strings.ToUpper(fields[0]) {
	case "INSERT":
		return d.cmdInsert(fields[1:], w)
	case "GET":
		return d.cmdGet(fields[1:], w)
	case "DEL":
		return d.cmdDelete(fields[1:], w)
	case "SCAN":
		return d.cmdScan(fields[1:], w)
	default:
		return fmt.Errorf("unsupported command: %s", fields[0])
	}
}

func (d *demo) cmdInsert(args []string, w *os.File) error {
	if len(args) < 3 {
		return fmt.Errorf("usage: INSERT id score name")
	}
	id, err := strconv.ParseInt(args[0], 10, 32)
	if err != nil {
		return fmt.Errorf("bad id: %w", err)
	}
	score, err := strconv.ParseFloat(args[1], 32)
	if err != nil {
		return fmt.Errorf("bad score: %w", err)
	}
	name := strings.Join(args[2:], " ")

	rid, err := d.store.InsertRecord([]record.Value{
		record.IntValue(int32(id)),
		record.RealValue(float32(score)),
		record.VarCharValue(name),
	})
	if err != nil {
		return err
	}
	if err := d.index.insert(int32(id), rid); err != nil {
		return err
	}
	fmt.Fprintln(w, "OK")
	return nil
}

func (d *demo) cmdGet(args []string, w *os.File) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: GET id")
	}
	id, err := strconv.ParseInt(args[0], 10, 32)
	if err != nil {
		return fmt.Errorf("bad id: %w", err)
	}
	rid, ok, err := d.index.lookup(int32(id))
	if err != nil {
		return err
	}
	if !ok {
		fmt.Fprintln(w, "NOT FOUND")
		return nil
	}
	s, err := d.store.SprintRecord(rid)
	if err != nil {
		return err
	}
	fmt.Fprintln(w, s)
	return nil
}

func (d *demo) cmdDelete(args []string, w *os.File) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: DEL id")
	}
	id, err := strconv.ParseInt(args[0], 10, 32)
	if err != nil {
		return fmt.Errorf("bad id: %w", err)
	}
	rid, ok, err := d.index.lookup(int32(id))
	if err != nil {
		return err
	}
	if !ok {
		fmt.Fprintln(w, "NOT FOUND")
		return nil
	}
	if err := d.store.DeleteRecord(rid); err != nil {
		return err
	}
	if err := d.index.delete(int32(id), rid); err != nil {
		return err
	}
	fmt.Fprintln(w, "OK")
	return nil
}

func (d *demo) cmdScan(args []string, w *os.File) error {
	sc, err := d.store.Scan(record.Condition{}, record.Projection{})
	if err != nil {
		return err
	}
	total := 0
	for {
		ok, err := sc.Next()
		if err != nil {
			return err
		}
		if !ok {
			break
		}
		s, err := d.store.SprintRecord(sc.RID())
		if err != nil {
			return err
		}
		fmt.Fprintln(w, s)
		total++
	}
	fmt.Fprintf(w, "Total records = %d\n", total)
	return nil
}
