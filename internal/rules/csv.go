package rules

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/mikey/content-review/internal/core"
	"go.uber.org/zap"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// Column headers of the rule resource, in write order
const (
	ColumnID          = "规则ID"
	ColumnContent     = "规则内容"
	ColumnDescription = "描述"
)

var header = []string{ColumnID, ColumnContent, ColumnDescription}

// ErrMalformed is returned when the resource has no usable header row
var ErrMalformed = errors.New("malformed rule resource")

// Resource is the tabular backing store of the rule set
type Resource interface {
	// ReadRules reads every well-formed rule from the resource
	ReadRules() ([]core.Rule, error)

	// WriteRules replaces the resource content with rules
	WriteRules(rules []core.Rule) error
}

// CSVFile is a rule resource stored as a CSV file on disk
type CSVFile struct {
	path     string
	encoding encoding.Encoding
	logger   *zap.Logger
}

// NewCSVFile creates a CSV rule resource. Supported encodings are "utf-8"
// (the default), "gbk" and "gb18030".
func NewCSVFile(path string, enc string, logger *zap.Logger) (*CSVFile, error) {
	var e encoding.Encoding
	switch strings.ToLower(enc) {
	case "", "utf-8", "utf8":
		e = unicode.UTF8
	case "gbk":
		e = simplifiedchinese.GBK
	case "gb18030":
		e = simplifiedchinese.GB18030
	default:
		return nil, fmt.Errorf("%w: unsupported rule file encoding: %s", core.ErrConfiguration, enc)
	}

	return &CSVFile{
		path:     path,
		encoding: e,
		logger:   logger,
	}, nil
}

// Path returns the location of the rule file
func (f *CSVFile) Path() string {
	return f.path
}

// ReadRules reads the rule file
func (f *CSVFile) ReadRules() ([]core.Rule, error) {
	file, err := os.Open(f.path)
	if err != nil {
		return nil, fmt.Errorf("failed to open rule file: %w", err)
	}
	defer file.Close()

	var dec transform.Transformer = f.encoding.NewDecoder()
	if f.encoding == unicode.UTF8 {
		dec = unicode.BOMOverride(dec)
	}
	return DecodeRules(transform.NewReader(file, dec), f.logger)
}

// WriteRules rewrites the whole rule file. The new content is written to a
// sibling file first and renamed over the old one.
func (f *CSVFile) WriteRules(rules []core.Rule) error {
	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create rule directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".rules-*.csv")
	if err != nil {
		return fmt.Errorf("failed to create rule file: %w", err)
	}
	defer os.Remove(tmp.Name())

	w := transform.NewWriter(tmp, f.encoding.NewEncoder())
	if err := EncodeRules(w, rules); err != nil {
		tmp.Close()
		return err
	}
	if err := w.Close(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to encode rule file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync rule file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close rule file: %w", err)
	}

	if err := os.Rename(tmp.Name(), f.path); err != nil {
		return fmt.Errorf("failed to replace rule file: %w", err)
	}
	return nil
}

// DecodeRules parses CSV rule content. Columns are located by header name;
// rows missing a required column or carrying a duplicate id are skipped.
func DecodeRules(r io.Reader, logger *zap.Logger) ([]core.Rule, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	head, err := cr.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("%w: missing header row", ErrMalformed)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	idx := map[string]int{}
	for i, name := range head {
		idx[strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))] = i
	}
	for _, col := range header {
		if _, ok := idx[col]; !ok {
			return nil, fmt.Errorf("%w: missing column %q", ErrMalformed, col)
		}
	}
	idCol, contentCol, descCol := idx[ColumnID], idx[ColumnContent], idx[ColumnDescription]
	width := max(idCol, contentCol, descCol) + 1

	rules := make([]core.Rule, 0)
	seen := make(map[string]struct{})
	line := 1
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			logger.Warn("Skipping unreadable rule row", zap.Int("line", line), zap.Error(err))
			continue
		}
		if len(record) < width {
			logger.Warn("Skipping rule row with missing columns", zap.Int("line", line), zap.Int("columns", len(record)))
			continue
		}

		id := strings.TrimSpace(record[idCol])
		if id == "" {
			logger.Warn("Skipping rule row without id", zap.Int("line", line))
			continue
		}
		if _, dup := seen[id]; dup {
			logger.Warn("Skipping duplicate rule id", zap.Int("line", line), zap.String("rule_id", id))
			continue
		}
		seen[id] = struct{}{}

		rules = append(rules, core.Rule{
			ID:          id,
			Keywords:    strings.Fields(record[contentCol]),
			Description: record[descCol],
		})
	}

	return rules, nil
}

// EncodeRules writes rules as CSV, header row first
func EncodeRules(w io.Writer, rules []core.Rule) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("failed to write rule header: %w", err)
	}
	for _, rule := range rules {
		if err := cw.Write([]string{rule.ID, rule.Content(), rule.Description}); err != nil {
			return fmt.Errorf("failed to write rule %s: %w", rule.ID, err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("failed to flush rules: %w", err)
	}
	return nil
}
