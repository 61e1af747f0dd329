// Package parser turns raw log lines into model.LogRecord values.
package parser

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/viniciushammett/go-log-stream-detector/internal/model"
)

// Parser must be pure: same line, same result, no side effects.
type Parser interface {
	Parse(raw string) (model.LogRecord, bool)
}

// Func adapts a plain function to Parser.
type Func func(raw string) (model.LogRecord, bool)

func (f Func) Parse(raw string) (model.LogRecord, bool) { return f(raw) }

// lineRE matches "<timestamp> file=<path>:<line> resp=<float>" anywhere in the line.
var lineRE = regexp.MustCompile(`(?P<timestamp>[\d\-:T\.]+)\s+file=(?P<file>[^:]+):(?P<line>\d+)\s+resp=(?P<resp>[\d\.]+)`)

type Resp struct{}

func NewResp() *Resp { return &Resp{} }

func (Resp) Parse(raw string) (model.LogRecord, bool) {
	m := lineRE.FindStringSubmatch(raw)
	if m == nil {
		return model.LogRecord{}, false
	}
	ln, err := strconv.ParseUint(m[3], 10, 64)
	if err != nil {
		return model.LogRecord{}, false
	}
	resp, err := strconv.ParseFloat(m[4], 64)
	if err != nil {
		return model.LogRecord{}, false
	}
	return model.LogRecord{
		Timestamp:    m[1],
		SourceFile:   m[2],
		LineNumber:   ln,
		FeatureValue: resp,
		RawText:      strings.TrimSpace(raw),
	}, true
}
