// Wire types for the subset of the Language Server Protocol this
// daemon speaks. Hand-rolled for the same reason package protocol's
// envelope is hand-rolled rather than pulled from a generic LSP SDK:
// the surface this server actually implements is small and fixed.
package main

import (
	"encoding/json"

	"github.com/ternarybob/rls/internal/handlers"
	"github.com/ternarybob/rls/internal/postbuild"
)

type wirePosition struct {
	Line      int `json:"line"`
	Character int `json:"character"`
}

func (p wirePosition) toHandlers() handlers.Position {
	return handlers.Position{Line: p.Line, Character: p.Character}
}

func fromHandlersPosition(p handlers.Position) wirePosition {
	return wirePosition{Line: p.Line, Character: p.Character}
}

type wireRange struct {
	Start wirePosition `json:"start"`
	End   wirePosition `json:"end"`
}

type textDocumentIdentifier struct {
	URI string `json:"uri"`
}

type versionedTextDocumentIdentifier struct {
	URI     string `json:"uri"`
	Version int    `json:"version"`
}

type textDocumentItem struct {
	URI        string `json:"uri"`
	LanguageID string `json:"languageId"`
	Version    int    `json:"version"`
	Text       string `json:"text"`
}

type textDocumentPositionParams struct {
	TextDocument textDocumentIdentifier `json:"textDocument"`
	Position     wirePosition           `json:"position"`
}

type didOpenParams struct {
	TextDocument textDocumentItem `json:"textDocument"`
}

type contentChangeEvent struct {
	Range       *wireRange `json:"range,omitempty"`
	RangeLength int        `json:"rangeLength,omitempty"`
	Text        string     `json:"text"`
}

type didChangeParams struct {
	TextDocument   versionedTextDocumentIdentifier `json:"textDocument"`
	ContentChanges []contentChangeEvent             `json:"contentChanges"`
}

type didSaveParams struct {
	TextDocument textDocumentIdentifier `json:"textDocument"`
}

type didCloseParams struct {
	TextDocument textDocumentIdentifier `json:"textDocument"`
}

type fileEvent struct {
	URI  string `json:"uri"`
	Type int    `json:"type"`
}

type didChangeWatchedFilesParams struct {
	Changes []fileEvent `json:"changes"`
}

type didChangeConfigurationParams struct {
	Settings json.RawMessage `json:"settings"`
}

type initializeParams struct {
	RootURI               string          `json:"rootUri"`
	RootPath              string          `json:"rootPath"`
	InitializationOptions json.RawMessage `json:"initializationOptions"`
	Capabilities          struct {
		TextDocument struct {
			PublishDiagnostics struct {
				RelatedInformation bool `json:"relatedInformation"`
			} `json:"publishDiagnostics"`
		} `json:"textDocument"`
	} `json:"capabilities"`
}

type serverCapabilities struct {
	TextDocumentSync           int  `json:"textDocumentSync"`
	DefinitionProvider         bool `json:"definitionProvider"`
	HoverProvider              bool `json:"hoverProvider"`
	RenameProvider             bool `json:"renameProvider"`
	ReferencesProvider         bool `json:"referencesProvider"`
	DocumentHighlightProvider  bool `json:"documentHighlightProvider"`
	DocumentSymbolProvider     bool `json:"documentSymbolProvider"`
	WorkspaceSymbolProvider    bool `json:"workspaceSymbolProvider"`
	CodeActionProvider         bool `json:"codeActionProvider"`
	CodeLensProvider           bool `json:"codeLensProvider,omitempty"`
	DocumentFormattingProvider bool `json:"documentFormattingProvider"`
	CompletionProvider         struct {
		TriggerCharacters []string `json:"triggerCharacters"`
	} `json:"completionProvider"`
	ExecuteCommandProvider struct {
		Commands []string `json:"commands"`
	} `json:"executeCommandProvider"`
}

type initializeResult struct {
	Capabilities serverCapabilities `json:"capabilities"`
}

type location struct {
	URI   string    `json:"uri"`
	Range wireRange `json:"range"`
}

func locationFromHandlers(loc *handlers.Location) *location {
	if loc == nil {
		return nil
	}
	return &location{
		URI: pathToURI(loc.Path),
		Range: wireRange{
			Start: fromHandlersPosition(loc.Start),
			End:   fromHandlersPosition(loc.End),
		},
	}
}

type completionItem struct {
	Label  string `json:"label"`
	Kind   int    `json:"kind"`
	Detail string `json:"detail,omitempty"`
}

func completionItemsFromHandlers(items []handlers.CompletionItem) []completionItem {
	out := make([]completionItem, 0, len(items))
	for _, it := range items {
		out = append(out, completionItem{Label: it.Label, Kind: int(it.Kind), Detail: it.Detail})
	}
	return out
}

type hoverResult struct {
	Contents []string   `json:"contents"`
	Range    *wireRange `json:"range,omitempty"`
}

type textEdit struct {
	Range   wireRange `json:"range"`
	NewText string    `json:"newText"`
}

type workspaceEdit struct {
	Changes map[string][]textEdit `json:"changes"`
}

func workspaceEditFromHandlers(res *handlers.RenameResult) workspaceEdit {
	we := workspaceEdit{Changes: make(map[string][]textEdit, len(res.Edits))}
	for path, edits := range res.Edits {
		wireEdits := make([]textEdit, 0, len(edits))
		for _, e := range edits {
			wireEdits = append(wireEdits, textEdit{
				Range:   wireRange{Start: fromHandlersPosition(e.Start), End: fromHandlersPosition(e.End)},
				NewText: e.NewText,
			})
		}
		we.Changes[path] = wireEdits
	}
	return we
}

type publishDiagnosticsParams struct {
	URI         string          `json:"uri"`
	Diagnostics []wireDiagnostic `json:"diagnostics"`
}

type wireRelatedInfo struct {
	Location location `json:"location"`
	Message  string   `json:"message"`
}

type wireDiagnostic struct {
	Range    wireRange          `json:"range"`
	Severity int                `json:"severity"`
	Code     string             `json:"code,omitempty"`
	Message  string             `json:"message"`
	Related  []wireRelatedInfo  `json:"relatedInformation,omitempty"`
}

func diagnosticToWire(d postbuild.Diagnostic) wireDiagnostic {
	wd := wireDiagnostic{
		Range: wireRange{
			Start: wirePosition{Line: d.Range.Start.Line, Character: d.Range.Start.Character},
			End:   wirePosition{Line: d.Range.End.Line, Character: d.Range.End.Character},
		},
		Severity: int(d.Severity),
		Code:     d.Code,
		Message:  d.Message,
	}
	for _, r := range d.Related {
		wd.Related = append(wd.Related, wireRelatedInfo{
			Location: location{
				URI: pathToURI(r.File),
				Range: wireRange{
					Start: wirePosition{Line: r.Range.Start.Line, Character: r.Range.Start.Character},
					End:   wirePosition{Line: r.Range.End.Line, Character: r.Range.End.Character},
				},
			},
			Message: r.Message,
		})
	}
	return wd
}

type executeCommandParams struct {
	Command   string            `json:"command"`
	Arguments []json.RawMessage `json:"arguments"`
}

type referenceContext struct {
	IncludeDeclaration bool `json:"includeDeclaration"`
}

type referenceParams struct {
	TextDocument textDocumentIdentifier `json:"textDocument"`
	Position     wirePosition           `json:"position"`
	Context      referenceContext       `json:"context"`
}

func locationsFromHandlers(locs []handlers.Location) []location {
	out := make([]location, 0, len(locs))
	for _, l := range locs {
		out = append(out, location{
			URI: pathToURI(l.Path),
			Range: wireRange{
				Start: fromHandlersPosition(l.Start),
				End:   fromHandlersPosition(l.End),
			},
		})
	}
	return out
}

type documentSymbolParams struct {
	TextDocument textDocumentIdentifier `json:"textDocument"`
}

type workspaceSymbolParams struct {
	Query string `json:"query"`
}

type symbolInformation struct {
	Name     string   `json:"name"`
	Kind     int      `json:"kind"`
	Location location `json:"location"`
}

func symbolsFromHandlers(syms []handlers.SymbolInfo) []symbolInformation {
	out := make([]symbolInformation, 0, len(syms))
	for _, s := range syms {
		out = append(out, symbolInformation{
			Name: s.Name,
			Kind: int(handlers.CompletionKindFor(s.Kind)),
			Location: location{
				URI: pathToURI(s.Loc.Path),
				Range: wireRange{
					Start: fromHandlersPosition(s.Loc.Start),
					End:   fromHandlersPosition(s.Loc.End),
				},
			},
		})
	}
	return out
}

type codeActionParams struct {
	TextDocument textDocumentIdentifier `json:"textDocument"`
	Range        wireRange              `json:"range"`
}

type command struct {
	Title     string            `json:"title"`
	Command   string            `json:"command"`
	Arguments []json.RawMessage `json:"arguments,omitempty"`
}

type codeLensParams struct {
	TextDocument textDocumentIdentifier `json:"textDocument"`
}

type codeLens struct {
	Range   wireRange `json:"range"`
	Command command   `json:"command"`
}

type documentFormattingParams struct {
	TextDocument textDocumentIdentifier `json:"textDocument"`
}

type documentRangeFormattingParams struct {
	TextDocument textDocumentIdentifier `json:"textDocument"`
	Range        wireRange              `json:"range"`
}
