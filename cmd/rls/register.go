package main

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/rls/internal/buildqueue"
	"github.com/ternarybob/rls/internal/dispatch"
	"github.com/ternarybob/rls/internal/handlers"
	"github.com/ternarybob/rls/internal/protocol"
	"github.com/ternarybob/rls/internal/rustconfig"
	"github.com/ternarybob/rls/internal/semindex"
	"github.com/ternarybob/rls/internal/vfs"
	"github.com/ternarybob/rls/internal/watch"
)

// messageType mirrors the LSP window/showMessage MessageType enum.
type messageType int

const (
	messageError messageType = iota + 1
	messageWarning
	messageInfo
	messageLog
)

type showMessageParams struct {
	Type    messageType `json:"type"`
	Message string      `json:"message"`
}

// server bundles every collaborator the wire handlers need, so
// register can stay a flat list of small closures instead of a deep
// parameter list repeated per method.
type server struct {
	vfs         *vfs.VFS
	idx         *semindex.Index
	queue       *buildqueue.Queue
	h           *handlers.Handlers
	writer      *protocol.FramedWriter
	log         arbor.ILogger
	workspaceMu sync.Mutex
	workspace   string
	cfgMu       sync.Mutex
	cfg         rustconfig.Config
	watcherMu   sync.Mutex
	watcher     *watch.Watcher
	cmdRun      bool
}

func (s *server) getConfig() rustconfig.Config {
	s.cfgMu.Lock()
	defer s.cfgMu.Unlock()
	return s.cfg
}

func (s *server) setConfig(c rustconfig.Config) {
	s.cfgMu.Lock()
	s.cfg = c
	s.cfgMu.Unlock()
}

func (s *server) showMessage(t messageType, msg string) {
	_ = s.writer.WriteMessage(protocol.NewNotification("window/showMessage", showMessageParams{Type: t, Message: msg}))
}

func (s *server) publishDiagnostics(uri string, diags []wireDiagnostic) {
	_ = s.writer.WriteMessage(protocol.NewNotification("textDocument/publishDiagnostics", publishDiagnosticsParams{URI: uri, Diagnostics: diags}))
}

// register wires every method in internal/protocol's dispatch table
// against this server's collaborators.
func register(srv *dispatch.Server, s *server) {
	srv.OnBlocking("initialize", s.onInitialize)
	srv.OnBlocking("shutdown", s.onShutdown)

	srv.OnNotification("initialized", func(string, []byte) {
		s.log.Info().Msg("client reported initialized")
	})
	srv.OnNotification("textDocument/didOpen", s.onDidOpen)
	srv.OnNotification("textDocument/didChange", s.onDidChange)
	srv.OnNotification("textDocument/didSave", s.onDidSave)
	srv.OnNotification("textDocument/didClose", s.onDidClose)
	srv.OnNotification("workspace/didChangeConfiguration", s.onDidChangeConfiguration)
	srv.OnNotification("workspace/didChangeWatchedFiles", s.onDidChangeWatchedFiles)

	srv.OnNonBlocking("textDocument/definition", s.onDefinition, nil)
	srv.OnNonBlocking("textDocument/hover", s.onHover, nil)
	srv.OnNonBlocking("textDocument/completion", s.onCompletion, []completionItem{})
	srv.OnNonBlocking("textDocument/rename", s.onRename, nil)
	srv.OnNonBlocking("textDocument/references", s.onReferences, []location{})
	srv.OnNonBlocking("textDocument/documentHighlight", s.onDocumentHighlight, []location{})
	srv.OnNonBlocking("textDocument/documentSymbol", s.onDocumentSymbol, []symbolInformation{})
	srv.OnNonBlocking("workspace/symbol", s.onWorkspaceSymbol, []symbolInformation{})
	srv.OnNonBlocking("textDocument/codeAction", s.onCodeAction, []command{})
	srv.OnNonBlocking("textDocument/codeLens", s.onCodeLens, []codeLens{})
	srv.OnNonBlocking("textDocument/formatting", s.onFormatting, []textEdit{})
	srv.OnNonBlocking("textDocument/rangeFormatting", s.onRangeFormatting, []textEdit{})
	srv.OnNonBlocking("workspace/executeCommand", s.onExecuteCommand, nil)
}

func (s *server) onInitialize(method string, params []byte) (interface{}, error) {
	var p initializeParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, fmt.Errorf("initialize: %w", err)
	}
	relatedInfoSupported.Store(p.Capabilities.TextDocument.PublishDiagnostics.RelatedInformation)

	root := p.RootURI
	if root != "" {
		root = uriToPath(root)
	} else {
		root = p.RootPath
	}
	if root != "" {
		s.workspaceMu.Lock()
		s.workspace = root
		s.workspaceMu.Unlock()
		s.startWatcher(root)
	}

	if len(p.InitializationOptions) > 0 {
		var opts struct {
			CmdRun   bool `json:"cmdRun"`
			Settings struct {
				Rust json.RawMessage `json:"rust"`
			} `json:"settings"`
		}
		if err := json.Unmarshal(p.InitializationOptions, &opts); err == nil {
			s.cmdRun = opts.CmdRun
		}
		if err := json.Unmarshal(p.InitializationOptions, &opts); err == nil && len(opts.Settings.Rust) > 0 {
			res := rustconfig.Parse(opts.Settings.Rust, s.getConfig())
			s.setConfig(res.Config)
			if res.Config.WaitToBuildMs > 0 {
				s.queue.SetDebounceOverride(res.Config.WaitToBuildMs)
			}
			for _, w := range res.Warnings {
				s.log.Warn().Msg(w)
			}
		}
	}

	result := initializeResult{}
	result.Capabilities.TextDocumentSync = 2 // incremental
	result.Capabilities.DefinitionProvider = true
	result.Capabilities.HoverProvider = true
	result.Capabilities.RenameProvider = true
	result.Capabilities.ReferencesProvider = true
	result.Capabilities.DocumentHighlightProvider = true
	result.Capabilities.DocumentSymbolProvider = true
	result.Capabilities.WorkspaceSymbolProvider = true
	result.Capabilities.CodeActionProvider = true
	result.Capabilities.DocumentFormattingProvider = true
	result.Capabilities.CompletionProvider.TriggerCharacters = []string{".", ":"}
	commands := []string{s.h.DeglobCommand(), s.h.ApplySuggestionCommand()}
	if s.cmdRun {
		result.Capabilities.CodeLensProvider = true
		commands = append(commands, s.h.RunCommand())
	}
	result.Capabilities.ExecuteCommandProvider.Commands = commands
	return result, nil
}

func (s *server) onShutdown(string, []byte) (interface{}, error) {
	s.watcherMu.Lock()
	w := s.watcher
	s.watcherMu.Unlock()
	if w != nil {
		_ = w.Stop()
	}
	return json.RawMessage("null"), nil
}

// startWatcher begins watching root for externally made changes
// (`cargo fmt`, a generator, a VCS checkout) that the editor itself
// never sent a didChange for. Failing to start the watcher is logged
// and otherwise ignored — the server still functions correctly from
// the client's own notifications alone.
func (s *server) startWatcher(root string) {
	w, err := watch.New(root, 500, s.onExternalChange, s.log)
	if err != nil {
		s.log.Warn().Err(err).Msg("could not create workspace watcher")
		return
	}
	if err := w.Start(); err != nil {
		s.log.Warn().Err(err).Msg("could not start workspace watcher")
		return
	}
	s.watcherMu.Lock()
	s.watcher = w
	s.watcherMu.Unlock()
}

// onExternalChange is the Workspace Watcher's callback: it treats a
// debounced batch of externally observed file changes exactly like a
// client-sent `workspace/didChangeWatchedFiles` notification.
func (s *server) onExternalChange(changes []watch.Change) {
	paths := make([]string, 0, len(changes))
	for _, c := range changes {
		s.idx.Invalidate(c.Path)
		paths = append(paths, c.Path)
	}
	if len(paths) > 0 {
		s.queue.Push(buildqueue.PriorityNormal, paths, nil)
	}
}

func (s *server) onDidOpen(method string, params []byte) {
	var p didOpenParams
	if err := json.Unmarshal(params, &p); err != nil {
		s.log.Warn().Err(err).Msg("didOpen: malformed params")
		return
	}
	path := uriToPath(p.TextDocument.URI)
	s.vfs.Open(path, p.TextDocument.Text)
	s.idx.Invalidate(path)
	s.queue.Push(buildqueue.PriorityNormal, []string{path}, nil)
}

func (s *server) onDidChange(method string, params []byte) {
	var p didChangeParams
	if err := json.Unmarshal(params, &p); err != nil {
		s.log.Warn().Err(err).Msg("didChange: malformed params")
		return
	}
	path := uriToPath(p.TextDocument.URI)

	for _, change := range p.ContentChanges {
		if change.Range == nil {
			s.vfs.Set(path, change.Text)
			continue
		}
		err := s.vfs.ApplyChanges([]vfs.Change{vfs.ReplaceText{
			Path: path,
			Span: vfs.Range{
				Start: change.Range.Start.toHandlers(),
				End:   change.Range.End.toHandlers(),
			},
			RangeLength: change.RangeLength,
			NewText:     change.Text,
		}})
		if err != nil {
			s.log.Warn().Err(err).Str("path", path).Msg("didChange: rejected incremental edit")
		}
	}

	s.idx.Invalidate(path)
	s.h.OnDidChange()
	s.queue.Push(buildqueue.PriorityNormal, []string{path}, nil)
}

func (s *server) onDidSave(method string, params []byte) {
	var p didSaveParams
	if err := json.Unmarshal(params, &p); err != nil {
		return
	}
	path := uriToPath(p.TextDocument.URI)
	s.vfs.Saved(path)
	s.queue.Push(buildqueue.PriorityHigh, []string{path}, nil)
}

func (s *server) onDidClose(method string, params []byte) {
	var p didCloseParams
	if err := json.Unmarshal(params, &p); err != nil {
		return
	}
	path := uriToPath(p.TextDocument.URI)
	s.vfs.Close(path)
	s.idx.Invalidate(path)
}

func (s *server) onDidChangeConfiguration(method string, params []byte) {
	var p didChangeConfigurationParams
	if err := json.Unmarshal(params, &p); err != nil {
		s.log.Warn().Err(err).Msg("didChangeConfiguration: malformed params")
		return
	}
	var wrapper struct {
		Rust json.RawMessage `json:"rust"`
	}
	if err := json.Unmarshal(p.Settings, &wrapper); err != nil || len(wrapper.Rust) == 0 {
		return
	}
	res := rustconfig.Parse(wrapper.Rust, s.getConfig())
	s.setConfig(res.Config)
	if res.Config.WaitToBuildMs > 0 {
		s.queue.SetDebounceOverride(res.Config.WaitToBuildMs)
	}
	for _, w := range res.Warnings {
		s.log.Warn().Msg(w)
		s.showMessage(messageWarning, w)
	}
}

func (s *server) onDidChangeWatchedFiles(method string, params []byte) {
	var p didChangeWatchedFilesParams
	if err := json.Unmarshal(params, &p); err != nil {
		return
	}
	paths := make([]string, 0, len(p.Changes))
	for _, c := range p.Changes {
		path := uriToPath(c.URI)
		s.idx.Invalidate(path)
		paths = append(paths, path)
	}
	if len(paths) > 0 {
		s.queue.Push(buildqueue.PriorityNormal, paths, nil)
	}
}

func (s *server) onDefinition(method string, params []byte) (interface{}, error) {
	var p textDocumentPositionParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, err
	}
	loc, err := s.h.Definition(uriToPath(p.TextDocument.URI), p.Position.toHandlers())
	if err != nil {
		return nil, err
	}
	return locationFromHandlers(loc), nil
}

func (s *server) onHover(method string, params []byte) (interface{}, error) {
	var p textDocumentPositionParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, err
	}
	hv, err := s.h.Hover(uriToPath(p.TextDocument.URI), p.Position.toHandlers())
	if err != nil {
		return nil, err
	}
	if hv == nil {
		return nil, nil
	}
	out := hoverResult{Contents: hv.Contents}
	if hv.Range != nil {
		out.Range = &wireRange{Start: fromHandlersPosition(hv.Range.Start), End: fromHandlersPosition(hv.Range.End)}
	}
	return out, nil
}

func (s *server) onCompletion(method string, params []byte) (interface{}, error) {
	var p textDocumentPositionParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, err
	}
	items, err := s.h.Completion(uriToPath(p.TextDocument.URI), p.Position.toHandlers())
	if err != nil {
		return nil, err
	}
	return completionItemsFromHandlers(items), nil
}

func (s *server) onReferences(method string, params []byte) (interface{}, error) {
	var p referenceParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, err
	}
	locs, err := s.h.References(uriToPath(p.TextDocument.URI), p.Position.toHandlers(), p.Context.IncludeDeclaration)
	if err != nil {
		return nil, err
	}
	return locationsFromHandlers(locs), nil
}

func (s *server) onDocumentHighlight(method string, params []byte) (interface{}, error) {
	var p textDocumentPositionParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, err
	}
	locs, err := s.h.DocumentHighlight(uriToPath(p.TextDocument.URI), p.Position.toHandlers())
	if err != nil {
		return nil, err
	}
	return locationsFromHandlers(locs), nil
}

func (s *server) onDocumentSymbol(method string, params []byte) (interface{}, error) {
	var p documentSymbolParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, err
	}
	syms, err := s.h.DocumentSymbol(uriToPath(p.TextDocument.URI))
	if err != nil {
		return nil, err
	}
	return symbolsFromHandlers(syms), nil
}

func (s *server) onWorkspaceSymbol(method string, params []byte) (interface{}, error) {
	var p workspaceSymbolParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, err
	}
	syms, err := s.h.WorkspaceSymbol(p.Query)
	if err != nil {
		return nil, err
	}
	return symbolsFromHandlers(syms), nil
}

// onCodeAction implements textDocument/codeAction for the one action
// the core offers (scenario 5): a deglob command per in-range
// `use path::*;` statement. Each action is returned as a bare Command
// rather than a CodeAction-with-edit, matching the execute-command
// round trip Deglob already uses (the client invokes the command,
// which computes and applies the edit against the server's own VFS).
func (s *server) onCodeAction(method string, params []byte) (interface{}, error) {
	var p codeActionParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, err
	}
	actions, err := s.h.CodeAction(uriToPath(p.TextDocument.URI), p.Range.Start.Line, p.Range.End.Line)
	if err != nil {
		return nil, err
	}
	out := make([]command, 0, len(actions))
	for _, a := range actions {
		argBytes, _ := json.Marshal(deglobArgs{Path: a.Path, GlobLine: a.GlobLine, LineStart: a.LineStart, LineEnd: a.LineEnd})
		out = append(out, command{
			Title:     a.Title,
			Command:   s.h.DeglobCommand(),
			Arguments: []json.RawMessage{argBytes},
		})
	}
	return out, nil
}

func (s *server) onCodeLens(method string, params []byte) (interface{}, error) {
	if !s.cmdRun {
		return []codeLens{}, nil
	}
	var p codeLensParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, err
	}
	lenses, err := s.h.CodeLens(uriToPath(p.TextDocument.URI))
	if err != nil {
		return nil, err
	}
	out := make([]codeLens, 0, len(lenses))
	for _, l := range lenses {
		out = append(out, codeLens{
			Range: wireRange{Start: fromHandlersPosition(l.Loc.Start), End: fromHandlersPosition(l.Loc.End)},
			Command: command{
				Title:   l.Title,
				Command: s.h.RunCommand(),
			},
		})
	}
	return out, nil
}

// onFormatting and onRangeFormatting are deliberate no-ops: spec.md §1
// places "the code formatter engine" itself out of the core's scope,
// so these handlers exist only to satisfy the wire contract (a
// defined, empty fallback) rather than to format anything. A real
// deployment wires these to the external formatter binary the core
// never invokes directly.
func (s *server) onFormatting(method string, params []byte) (interface{}, error) {
	return []textEdit{}, nil
}

func (s *server) onRangeFormatting(method string, params []byte) (interface{}, error) {
	return []textEdit{}, nil
}

type renameParams struct {
	TextDocument textDocumentIdentifier `json:"textDocument"`
	Position     wirePosition           `json:"position"`
	NewName      string                 `json:"newName"`
}

func (s *server) onRename(method string, params []byte) (interface{}, error) {
	var p renameParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, err
	}
	res, err := s.h.Rename(uriToPath(p.TextDocument.URI), p.Position.toHandlers(), p.NewName)
	if err != nil {
		return nil, err
	}
	if res.Refused {
		s.showMessage(messageWarning, res.Warning)
		return workspaceEditFromHandlers(res), nil
	}
	we := workspaceEditFromHandlers(res)
	return we, nil
}

func (s *server) onExecuteCommand(method string, params []byte) (interface{}, error) {
	var p executeCommandParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, err
	}

	switch p.Command {
	case s.h.DeglobCommand():
		return s.executeDeglob(p.Arguments)
	case s.h.ApplySuggestionCommand():
		return s.executeApplySuggestion(p.Arguments)
	case s.h.RunCommand():
		// spec.md's Non-goals rule out the core executing user programs;
		// the lens only surfaces that a target is runnable. Acting on it
		// is the client's job (spawn `cargo run` itself).
		s.showMessage(messageInfo, "rls does not execute cargo targets; run this from a terminal")
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown command %q", p.Command)
	}
}

type deglobArgs struct {
	Path      string `json:"path"`
	GlobLine  string `json:"globLine"`
	LineStart int    `json:"lineStart"`
	LineEnd   int    `json:"lineEnd"`
}

// executeDeglob computes the expanded-import edit and applies it to
// the server's own VFS directly rather than round-tripping a
// workspace/applyEdit request to the client — the client is expected
// to re-sync via its normal didChange flow afterward.
func (s *server) executeDeglob(args []json.RawMessage) (interface{}, error) {
	if len(args) == 0 {
		return nil, fmt.Errorf("deglob: missing arguments")
	}
	var a deglobArgs
	if err := json.Unmarshal(args[0], &a); err != nil {
		return nil, err
	}
	res, err := s.h.Deglob(a.Path, a.GlobLine, a.LineStart, a.LineEnd)
	if err != nil {
		return nil, err
	}
	if res == nil {
		return nil, nil
	}
	expanded := fmt.Sprintf("{%s}", joinNames(res.Names))
	if err := s.applyRangeEdit(res.Path, res.Start, res.End, expanded); err != nil {
		return nil, err
	}
	return true, nil
}

func joinNames(names []string) string {
	out := ""
	for i, n := range names {
		if i > 0 {
			out += ", "
		}
		out += n
	}
	return out
}

type applySuggestionArgs struct {
	Path    string       `json:"path"`
	Range   wireRange    `json:"range"`
	NewText string       `json:"newText"`
}

func (s *server) executeApplySuggestion(args []json.RawMessage) (interface{}, error) {
	if len(args) == 0 {
		return nil, fmt.Errorf("applySuggestion: missing arguments")
	}
	var a applySuggestionArgs
	if err := json.Unmarshal(args[0], &a); err != nil {
		return nil, err
	}
	if err := s.applyRangeEdit(a.Path, a.Range.Start.toHandlers(), a.Range.End.toHandlers(), a.NewText); err != nil {
		return nil, err
	}
	return true, nil
}

// applyRangeEdit replaces [start, end) in path's overlay with newText,
// opening the file from disk first if it isn't already tracked.
func (s *server) applyRangeEdit(path string, start, end handlers.Position, newText string) error {
	if _, ok := s.vfs.Text(path); !ok {
		res, err := s.vfs.LoadFile(path)
		if err != nil {
			return err
		}
		if res.Kind != vfs.KindText {
			return fmt.Errorf("applyRangeEdit: %s is not text", path)
		}
		s.vfs.Open(path, res.Text)
	}

	lt, ok := s.vfs.LineTable(path)
	if !ok {
		return fmt.Errorf("applyRangeEdit: no line table for %s", path)
	}
	startPoint, ok := lt.PositionToPoint(start)
	if !ok {
		return fmt.Errorf("applyRangeEdit: out-of-range start in %s", path)
	}
	endPoint, ok := lt.PositionToPoint(end)
	if !ok {
		return fmt.Errorf("applyRangeEdit: out-of-range end in %s", path)
	}
	rangeLength := vfs.UTF16Len(s.overlayText(path)[startPoint:endPoint])

	err := s.vfs.ApplyChanges([]vfs.Change{vfs.ReplaceText{
		Path:        path,
		Span:        vfs.Range{Start: start, End: end},
		RangeLength: rangeLength,
		NewText:     newText,
	}})
	if err != nil {
		return err
	}
	s.idx.Invalidate(path)
	s.queue.Push(buildqueue.PriorityNormal, []string{path}, nil)
	return nil
}

func (s *server) overlayText(path string) string {
	text, _ := s.vfs.Text(path)
	return text
}
