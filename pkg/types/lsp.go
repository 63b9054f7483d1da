package types

// Position is a zero-based line/character location in a document.
type Position struct {
	Line      int `json:"line"`
	Character int `json:"character"`
}

// Range is a half-open [Start, End) region of a document.
type Range struct {
	Start Position `json:"start"`
	End   Position `json:"end"`
}

// Contains reports whether pos falls inside the range.
func (r Range) Contains(pos Position) bool {
	if pos.Line < r.Start.Line || pos.Line > r.End.Line {
		return false
	}
	if pos.Line == r.Start.Line && pos.Character < r.Start.Character {
		return false
	}
	if pos.Line == r.End.Line && pos.Character >= r.End.Character {
		return false
	}
	return true
}

// Selection is a range plus the cursor end ("second"), which may precede
// the anchor when the user selected backwards.
type Selection struct {
	First  Position `json:"first"`
	Second Position `json:"second"`
}

// Range normalizes the selection into an ordered range.
func (s Selection) Range() Range {
	if s.Second.Line < s.First.Line ||
		(s.Second.Line == s.First.Line && s.Second.Character < s.First.Character) {
		return Range{Start: s.Second, End: s.First}
	}
	return Range{Start: s.First, End: s.Second}
}

// TextDocumentIdentifier identifies a document by URI.
type TextDocumentIdentifier struct {
	URI     string `json:"uri"`
	Version *int   `json:"version,omitempty"`
}
