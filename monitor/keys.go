package monitor

import "strings"

// Combo is a key press with its modifier state. Key holds the logical key
// name ("s", "F12", ...), case-insensitive.
type Combo struct {
	Key   string
	Ctrl  bool
	Meta  bool
	Shift bool
	Alt   bool
}

func (c Combo) String() string {
	var b strings.Builder
	if c.Ctrl {
		b.WriteString("Ctrl+")
	}
	if c.Meta {
		b.WriteString("Meta+")
	}
	if c.Alt {
		b.WriteString("Alt+")
	}
	if c.Shift {
		b.WriteString("Shift+")
	}
	b.WriteString(c.Key)
	return b.String()
}

// primaryShortcuts are the Ctrl/Cmd single-key combinations that map to
// save, print and view-source.
var primaryShortcuts = map[string]bool{
	"s": true,
	"p": true,
	"u": true,
}

// Blocked reports whether a combination must be suppressed. Blocking is
// unconditional: it does not depend on the monitor phase. Covered:
// save/print/view-source shortcuts, devtools (F12, Ctrl/Cmd+Shift+any),
// and every Alt-modified combination.
func Blocked(c Combo) bool {
	key := strings.ToLower(c.Key)
	if c.Alt {
		return true
	}
	primary := c.Ctrl || c.Meta
	if primary && c.Shift {
		return true
	}
	if primary && primaryShortcuts[key] {
		return true
	}
	return key == "f12"
}
