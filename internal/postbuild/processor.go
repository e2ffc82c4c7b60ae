// Package postbuild implements the Post-Build Processor: a
// single-worker-thread queue that parses captured compiler diagnostic
// JSON into structured notifications, reloads analysis payloads, and
// emits edit suggestions extracted from compiler messages.
package postbuild

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"regexp"
	"sync"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/rls/internal/analysisdb"
)

// Severity mirrors the LSP DiagnosticSeverity enum.
type Severity int

const (
	SeverityError Severity = iota + 1
	SeverityWarning
	SeverityInformation
)

// Position is a 1-based line, 0-based column pair.
type Position struct {
	Line      int
	Character int
}

// Range is a half-open [Start, End) range in line/column coordinates.
type Range struct {
	Start, End Position
}

// Suggestion is a proposed edit extracted from a compiler message.
type Suggestion struct {
	File    string
	Range   Range
	NewText string
}

// Diagnostic is one structured diagnostic derived from a compiler
// message's primary or secondary span.
type Diagnostic struct {
	File        string
	Range       Range
	Severity    Severity
	Message     string
	Code        string
	Related     []RelatedInfo
	Suggestions []Suggestion
}

// RelatedInfo is a secondary span or child message attached to a
// diagnostic, surfaced when the client supports
// relatedInformation; otherwise the caller emits these as independent
// diagnostics instead.
type RelatedInfo struct {
	File    string
	Range   Range
	Message string
}

// span is the wire shape of one compiler message span.
type span struct {
	FileName             string  `json:"file_name"`
	IsPrimary            bool    `json:"is_primary"`
	Label                string  `json:"label"`
	SuggestedReplacement *string `json:"suggested_replacement"`
	LineStart            int     `json:"line_start"`
	LineEnd              int     `json:"line_end"`
	ColumnStart           int    `json:"column_start"`
	ColumnEnd             int    `json:"column_end"`
	Expansion            *struct {
		Span           *span  `json:"span"`
		MacroDeclName  string `json:"macro_decl_name"`
	} `json:"expansion"`
}

// compilerMessage is the wire shape of one captured diagnostic line.
type compilerMessage struct {
	Message string  `json:"message"`
	Code    *struct {
		Code string `json:"code"`
	} `json:"code"`
	Level    string            `json:"level"`
	Spans    []span            `json:"spans"`
	Children []compilerMessage `json:"children"`
}

// resolveSourceSpan follows expansion spans until a non-macro source
// location is reached, per spec.md §4.6 rule 3.
func resolveSourceSpan(s span) span {
	for s.Expansion != nil && s.Expansion.Span != nil {
		s = *s.Expansion.Span
	}
	return s
}

func toRange(s span) Range {
	return Range{
		Start: Position{Line: s.LineStart, Character: s.ColumnStart - 1},
		End:   Position{Line: s.LineEnd, Character: s.ColumnEnd - 1},
	}
}

// considerChangingRE extracts the suggested replacement text from a
// child label of the form: consider changing this to `X`.
var considerChangingRE = regexp.MustCompile("consider changing this to `([^`]*)`")

// ParseMessage parses one compiler JSON message into zero or more
// diagnostics: spec.md §4.6 rule 1 makes every primary span an
// independent diagnostic, so a multi-primary-span message yields
// multiple entries.
func ParseMessage(line string) ([]Diagnostic, error) {
	var msg compilerMessage
	if err := json.Unmarshal([]byte(line), &msg); err != nil {
		return nil, err
	}
	return parseMessage(msg, nil), nil
}

func parseMessage(msg compilerMessage, relatedSupport *bool) []Diagnostic {
	var diags []Diagnostic

	var related []RelatedInfo
	for _, s := range msg.Spans {
		if s.IsPrimary {
			continue
		}
		resolved := resolveSourceSpan(s)
		related = append(related, RelatedInfo{
			File:    resolved.FileName,
			Range:   toRange(resolved),
			Message: s.Label,
		})
	}
	for _, child := range msg.Children {
		for _, s := range child.Spans {
			resolved := resolveSourceSpan(s)
			related = append(related, RelatedInfo{
				File:    resolved.FileName,
				Range:   toRange(resolved),
				Message: child.Message,
			})
		}
		if len(child.Spans) == 0 {
			related = append(related, RelatedInfo{Message: child.Message})
		}
	}

	code := ""
	if msg.Code != nil {
		code = msg.Code.Code
	}

	var suggestions []Suggestion
	for _, s := range msg.Spans {
		if s.SuggestedReplacement != nil {
			resolved := resolveSourceSpan(s)
			suggestions = append(suggestions, Suggestion{
				File:    resolved.FileName,
				Range:   toRange(resolved),
				NewText: *s.SuggestedReplacement,
			})
		}
	}
	for _, child := range msg.Children {
		if m := considerChangingRE.FindStringSubmatch(child.Message); m != nil {
			for _, s := range child.Spans {
				resolved := resolveSourceSpan(s)
				suggestions = append(suggestions, Suggestion{
					File:    resolved.FileName,
					Range:   toRange(resolved),
					NewText: m[1],
				})
			}
		}
	}

	primaryFound := false
	for _, s := range msg.Spans {
		if !s.IsPrimary {
			continue
		}
		primaryFound = true
		resolved := resolveSourceSpan(s)
		diags = append(diags, Diagnostic{
			File:        resolved.FileName,
			Range:       toRange(resolved),
			Severity:    severityFor(msg.Level, true),
			Message:     msg.Message,
			Code:        code,
			Related:     related,
			Suggestions: suggestions,
		})
	}
	if !primaryFound && msg.Message != "" {
		// A message without a primary span (e.g. a crate-level lint)
		// is returned unanchored, with an empty File. Processor.process
		// does not publish diagnostics that have no file.
		diags = append(diags, Diagnostic{
			Severity: severityFor(msg.Level, false),
			Message:  msg.Message,
			Code:     code,
		})
	}

	// When the client lacks relatedInformation support, related spans
	// become independent diagnostics instead of being attached.
	if relatedSupport != nil && !*relatedSupport {
		for _, r := range related {
			diags = append(diags, Diagnostic{
				File:     r.File,
				Range:    r.Range,
				Severity: SeverityInformation,
				Message:  r.Message,
			})
		}
		for i := range diags {
			diags[i].Related = nil
		}
	}

	return diags
}

func severityFor(level string, primary bool) Severity {
	if !primary {
		return SeverityInformation
	}
	if level == "error" {
		return SeverityError
	}
	return SeverityWarning
}

// BuildOutput is the input to one processor job: the files the
// compiler re-examined (so stale diagnostics can be cleared even when
// no new diagnostic is emitted for them), the raw diagnostic lines
// captured by the driver, and any analysis payloads to reload.
type BuildOutput struct {
	ReexaminedFiles []string
	DiagnosticLines []string
	Analyses        []analysisdb.Payload
	// RelatedInformationSupported reflects the client's declared
	// capability; when false, secondary spans/children are emitted as
	// independent diagnostics.
	RelatedInformationSupported bool
}

// PublishFunc is called once per file with its full, replacing set of
// diagnostics (including an empty slice to clear).
type PublishFunc func(file string, diags []Diagnostic)

// job is one unit of work on the processor's queue.
type job struct {
	hash   string
	output BuildOutput
	done   chan struct{}
}

// Processor is the single worker thread that drains queued build
// outputs, grounded on the teacher's single-goroutine-per-role shape
// (see `internal/buildqueue.Queue.Run`, `pkg/index.Watcher`'s debounce
// goroutine).
type Processor struct {
	db      *analysisdb.DB
	publish PublishFunc
	log     arbor.ILogger

	mu      sync.Mutex
	queue   []*job
	cond    *sync.Cond
	stopped bool
}

// New returns a Processor that reloads analysis into db and publishes
// diagnostics via publish.
func New(db *analysisdb.DB, publish PublishFunc, log arbor.ILogger) *Processor {
	p := &Processor{db: db, publish: publish, log: log}
	p.cond = sync.NewCond(&p.mu)
	return p
}

// contentHash hashes the crate roots of out's analysis payloads, the
// basis for spec.md §4.6's "a new job whose content hash matches a
// queued job removes the older one" rule.
func contentHash(out BuildOutput) string {
	h := sha256.New()
	for _, a := range out.Analyses {
		h.Write([]byte(a.CrateRoot))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Submit enqueues out for processing. If a queued (not yet started)
// job shares out's content hash, the older one is removed first — its
// completion channel is closed immediately so blocked waiters (if any)
// are released before the newer job is queued.
func (p *Processor) Submit(out BuildOutput) {
	j := &job{hash: contentHash(out), output: out, done: make(chan struct{})}

	p.mu.Lock()
	kept := p.queue[:0]
	for _, existing := range p.queue {
		if existing.hash == j.hash && j.hash != "" {
			close(existing.done)
			continue
		}
		kept = append(kept, existing)
	}
	p.queue = append(kept, j)
	p.cond.Broadcast()
	p.mu.Unlock()
}

// Run drains the queue until Stop is called. Must run on its own
// goroutine.
func (p *Processor) Run() {
	for {
		p.mu.Lock()
		for len(p.queue) == 0 && !p.stopped {
			p.cond.Wait()
		}
		if p.stopped && len(p.queue) == 0 {
			p.mu.Unlock()
			return
		}
		j := p.queue[0]
		p.queue = p.queue[1:]
		p.mu.Unlock()

		p.process(j.output)
		close(j.done)
	}
}

// Stop halts Run once its queue is drained.
func (p *Processor) Stop() {
	p.mu.Lock()
	p.stopped = true
	p.cond.Broadcast()
	p.mu.Unlock()
}

// Len reports the number of queued (not yet started) jobs, for the
// debug introspection surface.
func (p *Processor) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.queue)
}

func (p *Processor) process(out BuildOutput) {
	byFile := make(map[string][]Diagnostic)
	for _, file := range out.ReexaminedFiles {
		byFile[file] = nil // guarantee every re-examined file gets a (possibly empty) publish
	}

	relSupport := out.RelatedInformationSupported
	for _, line := range out.DiagnosticLines {
		var msg compilerMessage
		if err := json.Unmarshal([]byte(line), &msg); err != nil {
			p.logWarn("postbuild: skipping malformed diagnostic line: %v", err)
			continue
		}
		for _, d := range parseMessage(msg, &relSupport) {
			if d.File == "" {
				continue
			}
			byFile[d.File] = append(byFile[d.File], d)
		}
	}

	for file, diags := range byFile {
		p.publish(file, diags)
	}

	if len(out.Analyses) > 0 {
		p.db.Reload(out.Analyses)
	}
}

func (p *Processor) logWarn(format string, args ...interface{}) {
	if p.log == nil {
		return
	}
	p.log.Warn().Msg(fmt.Sprintf(format, args...))
}
