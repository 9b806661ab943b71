package pipeline

import (
	"bytes"
	"encoding/json"

	"github.com/gmsas95/docrefine/internal/ocr"
)

// OCRKey is the record key holding the OCR result
const OCRKey = "ocr_raw"

// KeyFor returns the record key for a requested task name
func KeyFor(taskName string) string {
	return "ai_" + taskName
}

// Record is the combined result of one run: the OCR output followed by one
// entry per requested task, in request order. Setting a key again replaces
// its value but keeps its original position.
type Record struct {
	OCR *ocr.Result

	keys   []string
	values map[string]string
}

func NewRecord(result *ocr.Result) *Record {
	return &Record{
		OCR:    result,
		values: make(map[string]string),
	}
}

// Set stores text under ai_<taskName>
func (r *Record) Set(taskName, text string) {
	key := KeyFor(taskName)
	if _, exists := r.values[key]; !exists {
		r.keys = append(r.keys, key)
	}
	r.values[key] = text
}

// Get returns the refined text stored under key
func (r *Record) Get(key string) (string, bool) {
	v, ok := r.values[key]
	return v, ok
}

// Keys returns every key in serialization order, starting with ocr_raw
func (r *Record) Keys() []string {
	keys := make([]string, 0, len(r.keys)+1)
	keys = append(keys, OCRKey)
	return append(keys, r.keys...)
}

// Len returns the number of task entries
func (r *Record) Len() int {
	return len(r.keys)
}

// MarshalJSON writes the keys in insertion order
func (r *Record) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')

	if err := writeMember(&buf, OCRKey, r.OCR); err != nil {
		return nil, err
	}
	for _, key := range r.keys {
		buf.WriteByte(',')
		if err := writeMember(&buf, key, r.values[key]); err != nil {
			return nil, err
		}
	}

	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func writeMember(buf *bytes.Buffer, key string, value any) error {
	if err := writeValue(buf, key); err != nil {
		return err
	}
	buf.WriteByte(':')
	return writeValue(buf, value)
}

// writeValue encodes v without HTML escaping so text reaches the file as-is
func writeValue(buf *bytes.Buffer, v any) error {
	var tmp bytes.Buffer
	enc := json.NewEncoder(&tmp)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return err
	}
	buf.Write(bytes.TrimRight(tmp.Bytes(), "\n"))
	return nil
}
