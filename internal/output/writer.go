// Package output persists result records without ever replacing an existing
// file.
package output

import (
	"bytes"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	apperrors "github.com/gmsas95/docrefine/internal/errors"
	"github.com/gmsas95/docrefine/internal/metrics"
)

// MaxAttempts bounds the numbered candidates tried after the desired name.
const MaxAttempts = 99

// Writer saves records under collision-free names
type Writer struct {
	logger  *zap.Logger
	metrics *metrics.Metrics
}

// NewWriter creates a writer. m may be nil.
func NewWriter(logger *zap.Logger, m *metrics.Metrics) *Writer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Writer{logger: logger, metrics: m}
}

// Save encodes record and writes it to desiredPath, or to the first free
// {stem}_{NN}{suffix} sibling when desiredPath exists. It returns the path
// actually written.
func (w *Writer) Save(record any, desiredPath string) (string, error) {
	data, err := Encode(record, desiredPath)
	if err != nil {
		return "", apperrors.WrapAs(apperrors.ErrOutputWrite, err)
	}

	if dir := filepath.Dir(desiredPath); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return "", apperrors.WrapAs(apperrors.ErrOutputWrite, fmt.Errorf("create %s: %w", dir, err))
		}
	}

	written, err := writeExclusive(desiredPath, data)
	if written || err != nil {
		return desiredPath, err
	}

	w.logger.Warn("Output file exists, looking for a free name", zap.String("path", desiredPath))

	for counter := 1; counter <= MaxAttempts; counter++ {
		candidate := Candidate(desiredPath, counter)
		written, err := writeExclusive(candidate, data)
		if err != nil {
			return "", err
		}
		if written {
			if w.metrics != nil {
				w.metrics.RecordOutputRename()
			}
			w.logger.Info("Saved under new name", zap.String("path", candidate))
			return candidate, nil
		}
		w.logger.Debug("Candidate exists", zap.String("path", candidate))
	}

	return "", apperrors.WrapAs(apperrors.ErrOutputExhausted,
		fmt.Errorf("%s and %d numbered alternatives all exist", desiredPath, MaxAttempts))
}

// Candidate returns the numbered sibling of path for counter. A dotfile
// such as ".json" has no extension and keeps its whole name as the stem.
func Candidate(path string, counter int) string {
	dir, base := filepath.Split(path)
	ext := filepath.Ext(base)
	if ext == base {
		ext = ""
	}
	stem := strings.TrimSuffix(base, ext)
	return filepath.Join(dir, fmt.Sprintf("%s_%02d%s", stem, counter, ext))
}

// writeExclusive creates path only if it does not exist. It reports false
// with a nil error when the file is already there.
func writeExclusive(path string, data []byte) (bool, error) {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if stderrors.Is(err, fs.ErrExist) {
		return false, nil
	}
	if err != nil {
		return false, apperrors.WrapAs(apperrors.ErrOutputWrite, err)
	}

	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(path)
		return false, apperrors.WrapAs(apperrors.ErrOutputWrite, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return false, apperrors.WrapAs(apperrors.ErrOutputWrite, err)
	}
	return true, nil
}

// IsYAML reports whether path selects YAML output
func IsYAML(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	default:
		return false
	}
}

// Encode serializes record as indented JSON, or as YAML when path ends in
// .yaml or .yml. Non-ASCII text is kept as-is and key order follows the
// record's own JSON encoding.
func Encode(record any, path string) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(record); err != nil {
		return nil, fmt.Errorf("failed to encode record: %w", err)
	}

	if !IsYAML(path) {
		return buf.Bytes(), nil
	}
	return jsonToYAML(buf.Bytes())
}

// jsonToYAML re-encodes JSON through a yaml.Node so mapping order survives.
func jsonToYAML(data []byte) ([]byte, error) {
	var node yaml.Node
	if err := yaml.Unmarshal(data, &node); err != nil {
		return nil, fmt.Errorf("failed to convert record to yaml: %w", err)
	}
	blockStyle(&node)

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(&node); err != nil {
		return nil, fmt.Errorf("failed to encode yaml: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("failed to encode yaml: %w", err)
	}
	return buf.Bytes(), nil
}

// blockStyle drops the flow and quoting styles inherited from JSON
func blockStyle(n *yaml.Node) {
	n.Style = 0
	if n.Kind == yaml.ScalarNode && n.Tag == "!!str" && strings.Contains(n.Value, "\n") {
		n.Style = yaml.LiteralStyle
	}
	for _, c := range n.Content {
		blockStyle(c)
	}
}
