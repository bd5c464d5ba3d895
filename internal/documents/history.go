package documents

import "github.com/kalambet/docstate/internal/configfile"

// History stores the debug console's input history.
type History struct {
	*configfile.JSONDocument
}

// Console returns the stored console lines, oldest first.
func (h *History) Console() []string {
	raw, _ := h.Read()["console"].([]any)
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// AppendConsole adds line to the console history, keeping at most max of the
// most recent lines when max > 0.
func (h *History) AppendConsole(line string, max int) error {
	return h.Update(func(m map[string]any) map[string]any {
		lines, _ := m["console"].([]any)
		lines = append(lines, line)
		if max > 0 && len(lines) > max {
			lines = lines[len(lines)-max:]
		}
		m["console"] = lines
		return m
	})
}
