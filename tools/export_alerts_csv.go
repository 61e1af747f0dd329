package main

import (
	"encoding/csv"
	"flag"
	"fmt"
	"os"

	"github.com/viniciushammett/go-log-stream-detector/internal/export"
	"github.com/viniciushammett/go-log-stream-detector/internal/model"
	"github.com/viniciushammett/go-log-stream-detector/internal/store"
)

func main() {
	var (
		dbPath  = flag.String("db", "data/log-stream-detector.db", "bolt store path")
		outPath = flag.String("out", "alerts.csv", "output CSV file")
		cat     = flag.String("category", "", "only export this category")
	)
	flag.Parse()

	st, err := store.Open(*dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open db: %v\n", err)
		os.Exit(1)
	}
	defer st.Close()

	f, err := os.Create(*outPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "create file: %v\n", err)
		os.Exit(1)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(export.Header); err != nil {
		fmt.Fprintf(os.Stderr, "write header: %v\n", err)
		os.Exit(1)
	}

	n := 0
	err = st.Iterate(func(a model.AlertRecord) bool {
		if *cat != "" && a.Category != *cat {
			return true
		}
		if err := w.Write(export.Row(a)); err != nil {
			fmt.Fprintf(os.Stderr, "write row: %v\n", err)
			return false
		}
		n++
		return true
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "iterate alerts: %v\n", err)
		os.Exit(1)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		fmt.Fprintf(os.Stderr, "flush csv: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("exported %d alerts to %s\n", n, *outPath)
}
