// Package configfile implements durable per-file documents.
//
// A Document stores raw text at a path derived from its storage class and
// filename. Writes are staged in memory and persisted by a background
// coalesce.Coalescer, so Write never blocks on disk. Reads see a staged value
// immediately, before it has reached disk.
//
// A JSONDocument layers structured data on top: every Read reconciles the
// stored object against the document's default schema and stages a
// corrective write when the stored object was incomplete or unreadable.
package configfile

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"

	"github.com/kalambet/docstate/internal/coalesce"
	"github.com/kalambet/docstate/internal/paths"
)

// ErrNotFound is returned by Document.Read when nothing is stored yet.
var ErrNotFound = errors.New("config document not found")

// Option configures a Document or JSONDocument.
type Option func(*options)

type options struct {
	logger       *slog.Logger
	coalesceOpts []coalesce.Option
	textDefaults func() string
}

// WithLogger sets the logger for the document and its writer.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithCoalesceOptions passes options through to the document's writer.
func WithCoalesceOptions(opts ...coalesce.Option) Option {
	return func(o *options) { o.coalesceOpts = append(o.coalesceOpts, opts...) }
}

// WithTextDefaults sets the provider of a text document's default content.
func WithTextDefaults(fn func() string) Option {
	return func(o *options) { o.textDefaults = fn }
}

func buildOptions(opts []Option) options {
	o := options{logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	return o
}

// Document is a raw-text file with a debounced writer.
type Document struct {
	resolver paths.Resolver
	class    paths.StorageClass
	filename string
	defaults func() string
	logger   *slog.Logger
	writer   *coalesce.Coalescer
}

// NewDocument creates a text document and starts its writer.
func NewDocument(r paths.Resolver, class paths.StorageClass, filename string, opts ...Option) *Document {
	o := buildOptions(opts)
	d := &Document{
		resolver: r,
		class:    class,
		filename: filename,
		defaults: o.textDefaults,
		logger:   o.logger.With("document", filename),
	}
	copts := append([]coalesce.Option{coalesce.WithLogger(d.logger)}, o.coalesceOpts...)
	d.writer = coalesce.New(d.Path, copts...)
	return d
}

// Filename returns the document's filename relative to its base directory.
func (d *Document) Filename() string { return d.filename }

// Class returns the document's storage class.
func (d *Document) Class() paths.StorageClass { return d.class }

// Path returns the resolved file path. It is recomputed on every call.
func (d *Document) Path() string {
	return d.resolver.Resolve(d.class, d.filename)
}

// DefaultData returns the content used when nothing is stored yet.
func (d *Document) DefaultData() string {
	if d.defaults == nil {
		return ""
	}
	return d.defaults()
}

// Read returns the staged value if a write is pending, otherwise the file
// contents. A missing file yields an error wrapping ErrNotFound.
func (d *Document) Read() (string, error) {
	if v, ok := d.writer.Pending(); ok {
		return v, nil
	}

	path := d.Path()
	d.logger.Debug("reading config document", "path", path)

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return "", fmt.Errorf("reading %s: %w", path, err)
	}
	return string(data), nil
}

// Write stages value for the next flush and returns immediately.
func (d *Document) Write(value string) {
	d.writer.Stage(value)
}

// Exists reports whether a value is pending or the file is present on disk.
func (d *Document) Exists() bool {
	if _, ok := d.writer.Pending(); ok {
		return true
	}
	_, err := os.Stat(d.Path())
	return err == nil
}

// Stats returns the writer's flush counters.
func (d *Document) Stats() coalesce.Stats { return d.writer.Stats() }

// Flush persists a pending value now.
func (d *Document) Flush(ctx context.Context) error { return d.writer.Flush(ctx) }

// Close stops the writer after a final flush.
func (d *Document) Close(ctx context.Context) error { return d.writer.Close(ctx) }
