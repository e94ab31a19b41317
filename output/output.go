package output

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/sveniu/ssh-scankeys/config"
)

// Record is one output unit: a key report, an agent identity, or an
// authorized-keys entry. Fields returns the fixed semicolon-delimited field
// list; missing values are empty strings so the field count stays stable for
// downstream parsing.
type Record interface {
	Kind() string
	Fields() []string
}

type Metrics struct {
	StartTime      string `json:"start_time"`
	EndTime        string `json:"end_time"`
	FilesScanned   int    `json:"files_scanned"`
	KeysReported   int    `json:"keys_reported"`
	AgentIdents    int    `json:"agent_identities"`
	AuthorizedKeys int    `json:"authorized_keys"`
}

// Writer serializes record output. A record is formatted in full before the
// single locked write, so concurrent workers never interleave fields.
type Writer struct {
	file    *os.File
	buf     *bufio.Writer
	mu      sync.Mutex
	format  string
	metrics *Metrics
	stdout  bool
}

func New(cfg *config.Config, m *Metrics) (*Writer, error) {
	w := &Writer{
		format:  cfg.OutputFormat,
		metrics: m,
	}
	if cfg.OutputFileName == "" || cfg.OutputFileName == "-" {
		w.file = os.Stdout
		w.stdout = true
	} else {
		f, err := os.OpenFile(cfg.OutputFileName, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
		if err != nil {
			return nil, fmt.Errorf("opening output file: %w", err)
		}
		w.file = f
	}
	w.buf = bufio.NewWriterSize(w.file, 64*1024)
	return w, nil
}

func (w *Writer) Write(rec Record) {
	w.mu.Lock()
	defer w.mu.Unlock()

	switch w.format {
	case "ndjson":
		payload, err := json.Marshal(rec)
		if err != nil {
			return
		}
		_, _ = w.buf.Write(payload)
		_, _ = w.buf.WriteString("\n")
	default:
		_, _ = w.buf.WriteString(strings.Join(rec.Fields(), ";"))
		_, _ = w.buf.WriteString("\n")
	}
	_ = w.buf.Flush()

	if w.metrics == nil {
		return
	}
	switch rec.Kind() {
	case "key":
		w.metrics.KeysReported++
	case "agent":
		w.metrics.AgentIdents++
	case "authorized":
		w.metrics.AuthorizedKeys++
	}
}

func (w *Writer) IncrementScanned() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.metrics != nil {
		w.metrics.FilesScanned++
	}
}

func (w *Writer) SetMetrics(m Metrics) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.metrics = &m
}

func (w *Writer) Close() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.format == "ndjson" && w.metrics != nil {
		payload, err := json.Marshal(struct {
			RecordType string `json:"record_type"`
			Metrics
		}{RecordType: "metrics", Metrics: *w.metrics})
		if err == nil {
			_, _ = w.buf.Write(payload)
			_, _ = w.buf.WriteString("\n")
		}
	}
	_ = w.buf.Flush()
	if !w.stdout {
		_ = w.file.Sync()
		_ = w.file.Close()
	}
}
