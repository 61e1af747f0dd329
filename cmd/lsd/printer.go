package main

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/viniciushammett/go-log-stream-detector/internal/model"
	"github.com/viniciushammett/go-log-stream-detector/internal/rules"
)

// printer is the terminal display used by watch and analyze.
type printer struct {
	mu sync.Mutex
	w  io.Writer
}

func (p *printer) header() {
	fmt.Fprintf(p.w, "%-6s %-20s %-31s %10s %10s  %-15s %s\n",
		"SEV", "TIMESTAMP", "FILE:LINE", "RESP", "MSE", "TYPE", "REASON")
}

func (p *printer) Show(a model.AlertRecord) {
	p.mu.Lock()
	defer p.mu.Unlock()
	loc := fmt.Sprintf("%s:%d", a.SourceFile, a.LineNumber)
	fmt.Fprintf(p.w, "%-6s %-20s %-31s %10.2f %10.4f  %-15s %s\n",
		strings.ToUpper(rules.Severity(a.Category)), a.Timestamp, loc,
		a.FeatureValue, a.ReconstructionError, a.Category, a.Reason)
	fmt.Fprintf(p.w, "       fix: %s\n", a.SuggestedFix)
}
