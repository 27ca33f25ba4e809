package shortcut

import (
	"fmt"
	"strconv"
	"strings"
)

// Modifier is a bit set of modifier keys.
type Modifier uint8

const (
	Ctrl Modifier = 1 << iota
	Alt
	Shift
	Super
)

var modifierNames = []struct {
	mod  Modifier
	name string
}{
	{Ctrl, "Ctrl"},
	{Alt, "Alt"},
	{Shift, "Shift"},
	{Super, "Super"},
}

// Accelerator is a parsed key combination such as "Ctrl+Shift+K".
type Accelerator struct {
	Mods Modifier
	Key  string
}

// String renders the accelerator in canonical form: modifiers in the order
// Ctrl, Alt, Shift, Super, followed by the key.
func (a Accelerator) String() string {
	var parts []string
	for _, m := range modifierNames {
		if a.Mods&m.mod != 0 {
			parts = append(parts, m.name)
		}
	}
	return strings.Join(append(parts, a.Key), "+")
}

var namedKeys = map[string]string{
	"space": "Space", "enter": "Enter", "return": "Enter", "tab": "Tab",
	"escape": "Escape", "esc": "Escape", "backspace": "Backspace",
	"delete": "Delete", "del": "Delete", "insert": "Insert",
	"home": "Home", "end": "End", "pageup": "PageUp", "pagedown": "PageDown",
	"up": "Up", "down": "Down", "left": "Left", "right": "Right",
	"plus": "Plus", "minus": "-", "comma": ",", "period": ".",
}

// Parse reads an accelerator. Names are case-insensitive.
// CmdOrCtrl (or CommandOrControl) means Super on darwin and Ctrl elsewhere.
func Parse(s string, goos string) (Accelerator, error) {
	var acc Accelerator
	parts := strings.Split(s, "+")
	for i, raw := range parts {
		part := strings.TrimSpace(raw)
		if part == "" {
			return Accelerator{}, fmt.Errorf("invalid shortcut %q: empty key", s)
		}
		if mod, ok := parseModifier(part, goos); ok {
			if acc.Mods&mod != 0 {
				return Accelerator{}, fmt.Errorf("invalid shortcut %q: repeated modifier %s", s, part)
			}
			acc.Mods |= mod
			continue
		}
		if i != len(parts)-1 {
			return Accelerator{}, fmt.Errorf("invalid shortcut %q: %s is not a modifier", s, part)
		}
		key, ok := parseKey(part)
		if !ok {
			return Accelerator{}, fmt.Errorf("invalid shortcut %q: unknown key %s", s, part)
		}
		acc.Key = key
	}
	if acc.Key == "" {
		return Accelerator{}, fmt.Errorf("invalid shortcut %q: no key", s)
	}
	return acc, nil
}

func parseModifier(s string, goos string) (Modifier, bool) {
	switch strings.ToLower(s) {
	case "ctrl", "control":
		return Ctrl, true
	case "alt", "option":
		return Alt, true
	case "shift":
		return Shift, true
	case "super", "cmd", "command", "meta":
		return Super, true
	case "cmdorctrl", "commandorcontrol", "cmdorcontrol", "commandorctrl":
		if goos == "darwin" {
			return Super, true
		}
		return Ctrl, true
	}
	return 0, false
}

func parseKey(s string) (string, bool) {
	if len(s) == 1 {
		c := s[0]
		switch {
		case c >= 'a' && c <= 'z':
			return strings.ToUpper(s), true
		case c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
			return s, true
		case strings.ContainsRune("`-=[]\\;',./", rune(c)):
			return s, true
		}
		return "", false
	}
	lower := strings.ToLower(s)
	if name, ok := namedKeys[lower]; ok {
		return name, true
	}
	if lower[0] == 'f' {
		n, err := strconv.Atoi(lower[1:])
		if err == nil && n >= 1 && n <= 24 && strconv.Itoa(n) == lower[1:] {
			return "F" + lower[1:], true
		}
	}
	return "", false
}
