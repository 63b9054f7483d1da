// Package editor defines the narrow capability interface through which the
// host touches the editor. The real implementation lives in the extension
// glue; everything here is a collaborator boundary, not editor logic.
package editor

import (
	"context"

	"github.com/riftlabs/rift-host/pkg/types"
)

// Context is the editor state captured when a session is created: which
// document was active and what was selected. A session created without an
// editor context (pure chat) has no editor affordances.
type Context struct {
	Document  *types.TextDocumentIdentifier
	Selection *types.Selection
	Position  *types.Position
}

// DecorationKind distinguishes highlight styles.
type DecorationKind string

const (
	DecorationAdditive DecorationKind = "additive"
	DecorationNegative DecorationKind = "negative"
)

// Capability is everything the session layer may ask of the editor.
//
// ShowInputBox blocks until the operator replies or dismisses the prompt;
// ok=false means dismissed, which is an expected outcome and not an error.
type Capability interface {
	// ActiveContext returns the current editor context, or nil when no
	// editor is focused.
	ActiveContext() *Context

	// WorkspaceRoot returns the workspace folder path, or "" when no
	// workspace is open.
	WorkspaceRoot() string

	// ShowInputBox prompts the operator for a line of text.
	ShowInputBox(ctx context.Context, prompt, placeholder string) (value string, ok bool, err error)

	// ShowInformation surfaces an informational message.
	ShowInformation(msg string)

	// SetDecorations replaces the decoration set of one kind for a
	// document.
	SetDecorations(uri string, kind DecorationKind, ranges []types.Range)

	// ClearDecorations removes all decorations for a document.
	ClearDecorations(uri string)

	// RefreshCodeLens asks the editor to re-query code lens providers.
	RefreshCodeLens()
}

// Headless is a Capability for running without an attached editor:
// decorations are dropped and there is no modal, so input prompts block
// until they are answered through another surface or cancelled. The webview
// surfaces still work, which is all the server mode needs.
type Headless struct {
	Root string
}

// NewHeadless returns a headless capability rooted at the given workspace
// path.
func NewHeadless(root string) *Headless {
	return &Headless{Root: root}
}

func (h *Headless) ActiveContext() *Context { return nil }

func (h *Headless) WorkspaceRoot() string { return h.Root }

func (h *Headless) ShowInputBox(ctx context.Context, prompt, placeholder string) (string, bool, error) {
	<-ctx.Done()
	return "", false, ctx.Err()
}

func (h *Headless) ShowInformation(msg string) {}

func (h *Headless) SetDecorations(uri string, kind DecorationKind, ranges []types.Range) {}

func (h *Headless) ClearDecorations(uri string) {}

func (h *Headless) RefreshCodeLens() {}
