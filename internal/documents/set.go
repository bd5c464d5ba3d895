package documents

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/kalambet/docstate/internal/configfile"
	"github.com/kalambet/docstate/internal/paths"
)

// Options configures a Set.
type Options struct {
	// Clients supplies sessions for Accounts.Add. May be nil.
	Clients ClientSource
	// Converter is applied by Theme.Read. Nil means Passthrough.
	Converter Converter
	// Logger is used by every document. Nil means slog.Default().
	Logger *slog.Logger
	// DocumentOptions are passed to every document constructor.
	DocumentOptions []configfile.Option
}

// Set owns one instance of every registered document plus the themes opened
// through it.
type Set struct {
	Accounts *Accounts
	Settings *configfile.JSONDocument
	State    *configfile.JSONDocument
	History  *History

	resolver paths.Resolver
	opts     Options
	docOpts  []configfile.Option
	byName   map[string]*configfile.JSONDocument

	mu     sync.Mutex
	themes map[string]*Theme
}

// Open constructs every registered document. Each document's writer starts
// immediately; call Close to stop them.
func Open(r paths.Resolver, opts Options) *Set {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	docOpts := append([]configfile.Option{configfile.WithLogger(logger)}, opts.DocumentOptions...)

	s := &Set{
		resolver: r,
		opts:     opts,
		docOpts:  docOpts,
		byName:   make(map[string]*configfile.JSONDocument, len(registry)),
		themes:   make(map[string]*Theme),
	}
	for _, k := range registry {
		s.byName[k.name] = configfile.NewJSON(r, k.class, k.filename, k.defaults, docOpts...)
	}

	s.Accounts = &Accounts{JSONDocument: s.byName[NameAccounts], clients: opts.Clients}
	s.Settings = s.byName[NameSettings]
	s.State = s.byName[NameState]
	s.History = &History{JSONDocument: s.byName[NameHistory]}
	return s
}

// Names returns the registered JSON document names in registry order.
func (s *Set) Names() []string {
	names := make([]string, 0, len(registry))
	for _, k := range registry {
		names = append(names, k.name)
	}
	return names
}

// JSON returns the JSON document registered under name.
func (s *Set) JSON(name string) (*configfile.JSONDocument, error) {
	if _, ok := lookup(name); !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownDocument, name)
	}
	return s.byName[name], nil
}

// Theme returns the theme document for name, creating it on first use.
func (s *Set) Theme(name string) (*Theme, error) {
	filename, err := themeFilename(name)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if t, ok := s.themes[name]; ok {
		return t, nil
	}
	opts := append([]configfile.Option{configfile.WithTextDefaults(func() string { return defaultTheme })}, s.docOpts...)
	doc := configfile.NewDocument(s.resolver, paths.UserData, filename, opts...)
	t := newTheme(doc, name, s.opts.Converter)
	s.themes[name] = t
	return t, nil
}

// ActiveTheme returns the theme selected in settings.json.
func (s *Set) ActiveTheme() (*Theme, error) {
	name, _ := s.Settings.Read()["theme"].(string)
	if name == "" {
		name = DefaultThemeName
	}
	return s.Theme(name)
}

// Themes returns the names of the themes opened so far, sorted.
func (s *Set) Themes() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.themes))
	for name := range s.themes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Paths returns the resolved path of every registered document by name.
func (s *Set) Paths() map[string]string {
	out := make(map[string]string, len(s.byName))
	for name, d := range s.byName {
		out[name] = d.Path()
	}
	return out
}

type flusher interface {
	Flush(ctx context.Context) error
	Close(ctx context.Context) error
}

func (s *Set) all() []flusher {
	out := make([]flusher, 0, len(s.byName)+len(s.themes))
	for _, k := range registry {
		out = append(out, s.byName[k.name])
	}
	s.mu.Lock()
	for _, t := range s.themes {
		out = append(out, t)
	}
	s.mu.Unlock()
	return out
}

// FlushAll persists every pending write now.
func (s *Set) FlushAll(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, d := range s.all() {
		g.Go(func() error { return d.Flush(ctx) })
	}
	return g.Wait()
}

// Close stops every document's writer after a final flush.
func (s *Set) Close(ctx context.Context) error {
	var g errgroup.Group
	for _, d := range s.all() {
		g.Go(func() error { return d.Close(ctx) })
	}
	return g.Wait()
}
