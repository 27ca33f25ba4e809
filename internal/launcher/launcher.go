// Package launcher hands URLs and paths to the operating system's default
// handlers: the browser, the file manager, and the file manager with an
// item selected.
//
// Every launch is fire-and-forget. A call succeeds once the helper process
// has been spawned; what the helper does afterwards is not observed.
package launcher

// Launcher opens things with the platform's default handlers.
type Launcher interface {
	// OpenURL opens url with the default handler for its scheme.
	OpenURL(url string) error
	// OpenFolder opens a directory in the file manager.
	OpenFolder(path string) error
	// Reveal opens the file manager with path selected where the platform
	// supports it, and falls back to opening path otherwise.
	Reveal(path string) error
}

// Invocation is a helper program plus the arguments placed before the target.
type Invocation struct {
	Program string
	Args    []string
}

func (i Invocation) argv(target string) []string {
	args := make([]string, 0, len(i.Args)+1)
	args = append(args, i.Args...)
	return append(args, target)
}

// Variant is the set of invocations used on one platform family.
type Variant struct {
	Name   string
	URL    Invocation
	Folder Invocation
	Reveal Invocation
	// CanReveal is false when Reveal only opens the target.
	CanReveal bool
}

var (
	darwinVariant = Variant{
		Name:      "darwin",
		URL:       Invocation{Program: "open"},
		Folder:    Invocation{Program: "open"},
		Reveal:    Invocation{Program: "open", Args: []string{"-R"}},
		CanReveal: true,
	}
	windowsVariant = Variant{
		Name:      "windows",
		URL:       Invocation{Program: "cmd", Args: []string{"/C", "start", ""}},
		Folder:    Invocation{Program: "explorer"},
		Reveal:    Invocation{Program: "explorer", Args: []string{"/select,"}},
		CanReveal: true,
	}
	// xdg-open has no way to select an item, so Reveal opens the target.
	linuxVariant = Variant{
		Name:   "linux",
		URL:    Invocation{Program: "xdg-open"},
		Folder: Invocation{Program: "xdg-open"},
		Reveal: Invocation{Program: "xdg-open"},
	}
)

// VariantFor returns the variant for a GOOS value. Unix systems other than
// darwin use the freedesktop helpers.
func VariantFor(goos string) Variant {
	switch goos {
	case "darwin", "ios":
		return darwinVariant
	case "windows":
		return windowsVariant
	default:
		return linuxVariant
	}
}

// ShellLauncher implements Launcher with a Variant and a Spawner.
type ShellLauncher struct {
	variant Variant
	spawner Spawner
}

// Ensure ShellLauncher implements Launcher.
var _ Launcher = (*ShellLauncher)(nil)

// New creates a ShellLauncher for goos. A nil spawner spawns real detached processes.
func New(goos string, spawner Spawner) *ShellLauncher {
	if spawner == nil {
		spawner = DetachedSpawner{}
	}
	return &ShellLauncher{variant: VariantFor(goos), spawner: spawner}
}

// Variant reports the platform variant in use.
func (l *ShellLauncher) Variant() Variant {
	return l.variant
}

func (l *ShellLauncher) OpenURL(url string) error {
	return l.launch(l.variant.URL, url)
}

func (l *ShellLauncher) OpenFolder(path string) error {
	return l.launch(l.variant.Folder, path)
}

func (l *ShellLauncher) Reveal(path string) error {
	return l.launch(l.variant.Reveal, path)
}

func (l *ShellLauncher) launch(inv Invocation, target string) error {
	return l.spawner.Spawn(inv.Program, inv.argv(target)...)
}
