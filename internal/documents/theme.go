package documents

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/kalambet/docstate/internal/configfile"
	"github.com/kalambet/docstate/internal/paths"
)

// DefaultThemeName is the theme selected by default in settings.json.
const DefaultThemeName = "Default.qpl"

//go:embed assets/Default.qpl
var defaultTheme string

// Converter turns theme markup into the form the UI consumes.
type Converter func(raw string) string

// Passthrough is a Converter that returns its input unchanged.
func Passthrough(raw string) string { return raw }

// Theme is a raw-text document under <data>/themes/<name>.
type Theme struct {
	*configfile.Document
	name    string
	convert Converter
}

func newTheme(d *configfile.Document, name string, convert Converter) *Theme {
	if convert == nil {
		convert = Passthrough
	}
	return &Theme{Document: d, name: name, convert: convert}
}

// Name returns the theme's filename.
func (t *Theme) Name() string { return t.name }

// Read returns the converted theme. The bundled default theme is written to
// the theme's path first if nothing is stored there yet.
func (t *Theme) Read() (string, error) {
	raw, err := t.Raw()
	if err != nil {
		return "", err
	}
	return t.convert(raw), nil
}

// Raw returns the unconverted theme text, materializing the default first
// when needed.
func (t *Theme) Raw() (string, error) {
	if !t.Exists() {
		t.Write(t.DefaultData())
	}
	raw, err := t.Document.Read()
	if err != nil {
		return "", fmt.Errorf("reading theme %s: %w", t.name, err)
	}
	return raw, nil
}

// themeFilename validates name and returns its path relative to the data
// directory.
func themeFilename(name string) (string, error) {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return "", fmt.Errorf("%w: %q", ErrInvalidThemeName, name)
	}
	return filepath.Join("themes", name), nil
}

// InstalledThemes lists the theme files stored under the data directory.
// Hidden files, such as in-flight temp files, are skipped.
func InstalledThemes(r paths.Resolver) ([]string, error) {
	entries, err := os.ReadDir(r.Resolve(paths.UserData, "themes"))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("listing themes: %w", err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		names = append(names, e.Name())
	}
	return names, nil
}
