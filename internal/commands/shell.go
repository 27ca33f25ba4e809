package commands

import (
	"context"

	"github.com/waabox/deskbridge/internal/fsops"
)

type urlArgs struct {
	URL string `json:"url"`
}

type pathArgs struct {
	Path string `json:"path"`
}

type saveArgs struct {
	Path     string `json:"path"`
	Contents string `json:"contents"`
}

// The URL and path are handed over verbatim; the helper program decides
// what to do with them.

func (h *handlers) openURL(_ context.Context, args urlArgs) (any, error) {
	return nil, h.deps.Launcher.OpenURL(args.URL)
}

func (h *handlers) openFolder(_ context.Context, args pathArgs) (any, error) {
	return nil, h.deps.Launcher.OpenFolder(args.Path)
}

func (h *handlers) reveal(_ context.Context, args pathArgs) (any, error) {
	return nil, h.deps.Launcher.Reveal(args.Path)
}

func (h *handlers) pathKind(_ context.Context, args pathArgs) (any, error) {
	return fsops.PathKind(args.Path)
}

func (h *handlers) saveTextFile(_ context.Context, args saveArgs) (any, error) {
	return nil, fsops.SaveTextFile(args.Path, args.Contents)
}

func (h *handlers) readTextFile(_ context.Context, args pathArgs) (any, error) {
	return fsops.ReadTextFile(args.Path)
}
