package configfile

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/kalambet/docstate/internal/coalesce"
	"github.com/kalambet/docstate/internal/paths"
)

// Defaults provides a document's default schema. It must return a new map on
// every call.
type Defaults func() map[string]any

// JSONDocument is a Document holding a JSON object that is always
// reconciled against a default schema.
type JSONDocument struct {
	doc      *Document
	defaults Defaults
	logger   *slog.Logger
}

// NewJSON creates a JSON document and starts its writer. A nil defaults
// provider means an empty schema.
func NewJSON(r paths.Resolver, class paths.StorageClass, filename string, defaults Defaults, opts ...Option) *JSONDocument {
	doc := NewDocument(r, class, filename, opts...)
	return &JSONDocument{
		doc:      doc,
		defaults: defaults,
		logger:   doc.logger,
	}
}

// Filename returns the document's filename.
func (j *JSONDocument) Filename() string { return j.doc.Filename() }

// Path returns the resolved file path.
func (j *JSONDocument) Path() string { return j.doc.Path() }

// DefaultData returns a fresh copy of the default schema. Values are
// normalized through JSON, so numbers are json.Number exactly as when
// decoded from disk.
func (j *JSONDocument) DefaultData() map[string]any {
	if j.defaults == nil {
		return map[string]any{}
	}
	raw, err := json.Marshal(j.defaults())
	if err != nil {
		j.logger.Error("default schema is not JSON encodable", "error", err)
		return map[string]any{}
	}
	var out map[string]any
	if err := Unmarshal(raw, &out); err != nil || out == nil {
		return map[string]any{}
	}
	return out
}

// Read returns the stored object merged over the default schema. Missing or
// malformed content is treated as an empty object and never reported to
// the caller. If the merge added or corrected anything, the merged object is
// staged for writing.
func (j *JSONDocument) Read() map[string]any {
	decoded, status := j.decode()
	merged := Reconcile(j.DefaultData(), decoded)

	var rewrite bool
	switch status {
	case stored, missing:
		rewrite = !Equal(merged, decoded)
	case corrupt:
		rewrite = true
	}

	if rewrite {
		if err := j.Write(merged); err != nil {
			j.logger.Error("staging reconciled document", "error", err)
		}
	}
	return merged
}

type decodeStatus int

const (
	stored decodeStatus = iota
	missing
	corrupt
	unreadable
)

// decode reads and parses the stored object. A missing file is reported as
// an empty object that is only written back if the defaults add something;
// a corrupt one is always rewritten; an unreadable one is never written over.
func (j *JSONDocument) decode() (map[string]any, decodeStatus) {
	raw, err := j.doc.Read()
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			j.logger.Debug("document missing, using defaults")
			return map[string]any{}, missing
		}
		j.logger.Warn("document unreadable, using defaults", "error", err)
		return map[string]any{}, unreadable
	}

	var data map[string]any
	if err := Unmarshal([]byte(raw), &data); err != nil || data == nil {
		j.logger.Warn("document is not a JSON object, resetting to defaults", "path", j.Path(), "error", err)
		return map[string]any{}, corrupt
	}
	return data, stored
}

// Write encodes v deterministically and stages it.
func (j *JSONDocument) Write(v map[string]any) error {
	s, err := Encode(v)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", j.Filename(), err)
	}
	j.doc.Write(s)
	return nil
}

// Update applies fn to the current value and writes the result.
func (j *JSONDocument) Update(fn func(map[string]any) map[string]any) error {
	return j.Write(fn(j.Read()))
}

// Get returns the value at a gjson path such as "media.autoLoad".
func (j *JSONDocument) Get(path string) (any, bool) {
	s, err := Encode(j.Read())
	if err != nil {
		return nil, false
	}
	res := gjson.Get(s, path)
	if !res.Exists() {
		return nil, false
	}
	var v any
	if err := Unmarshal([]byte(res.Raw), &v); err != nil {
		return nil, false
	}
	return v, true
}

// Set replaces the value at an sjson path and writes the document.
// Intermediate objects are created as needed.
func (j *JSONDocument) Set(path string, value any) error {
	s, err := Encode(j.Read())
	if err != nil {
		return fmt.Errorf("encoding %s: %w", j.Filename(), err)
	}
	out, err := sjson.Set(s, path, value)
	if err != nil {
		return fmt.Errorf("setting %q in %s: %w", path, j.Filename(), err)
	}

	var updated map[string]any
	if err := Unmarshal([]byte(out), &updated); err != nil {
		return fmt.Errorf("decoding %s after set: %w", j.Filename(), err)
	}
	return j.Write(updated)
}

// Exists reports whether a value is pending or present on disk.
func (j *JSONDocument) Exists() bool { return j.doc.Exists() }

// Stats returns the writer's flush counters.
func (j *JSONDocument) Stats() coalesce.Stats { return j.doc.Stats() }

// Flush persists a pending value now.
func (j *JSONDocument) Flush(ctx context.Context) error { return j.doc.Flush(ctx) }

// Close stops the writer after a final flush.
func (j *JSONDocument) Close(ctx context.Context) error { return j.doc.Close(ctx) }

// Unmarshal decodes one JSON value from data. Numbers are kept as
// json.Number so integers beyond float64 precision survive a rewrite.
func Unmarshal(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		return err
	}
	if _, err := dec.Token(); err != io.EOF {
		return errors.New("invalid character after top-level value")
	}
	return nil
}

// Encode serializes v with sorted keys, four-space indentation and without
// escaping non-ASCII or HTML characters.
func Encode(v map[string]any) (string, error) {
	if v == nil {
		v = map[string]any{}
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "    ")
	if err := enc.Encode(v); err != nil {
		return "", err
	}
	return unescapeLineSeparators(strings.TrimSuffix(buf.String(), "\n")), nil
}

// unescapeLineSeparators turns the \u2028 and \u2029 escapes encoding/json
// always emits back into literal characters. Other escapes are copied as is.
func unescapeLineSeparators(s string) string {
	if !strings.Contains(s, `\u202`) {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if s[i] != '\\' || i+1 >= len(s) {
			b.WriteByte(s[i])
			continue
		}
		switch rest := s[i+1:]; {
		case strings.HasPrefix(rest, "u2028"):
			b.WriteRune('\u2028')
			i += 5
		case strings.HasPrefix(rest, "u2029"):
			b.WriteRune('\u2029')
			i += 5
		default:
			b.WriteByte(s[i])
			b.WriteByte(s[i+1])
			i++
		}
	}
	return b.String()
}
