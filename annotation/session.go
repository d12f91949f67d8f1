package annotation

import (
	"fmt"
	"image"
	"io"
	"log"
	"math/rand/v2"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/lewtec/mosaico/internal/domain"
)

// sortKeyDelimiter splits row keys such as "patch-0-0-256-256-#map.png#.png"
const sortKeyDelimiter = "#"

// Options carries the collaborators of a Session. Zero values pick the
// local annotations directory, the local filesystem for images and a
// seeded random source.
type Options struct {
	Saves  *SaveStore
	Images ImageOpener
	Rand   *rand.Rand
}

// AnnotateOptions overrides session settings for one pass. Nil fields keep
// the current value.
type AnnotateOptions struct {
	ShowContext *bool
	MinValues   map[string]float64
	MaxValues   map[string]float64
	Surrounding *int
	ResizeTo    *int
	MaxSize     *int
}

// Step is what a renderer needs after every action
type Step struct {
	Key      string
	Index    int
	Total    int
	Complete bool
}

// SaveOptions shapes the labelled data written to a session file
type SaveOptions struct {
	// Sort orders rows by the parent part of the key, then the patch part
	Sort bool
	// IndexLabels writes vocabulary positions instead of label text
	IndexLabels bool
	// IncludePaths keeps the image path column next to the label
	IncludePaths bool
	// AllColumns writes every column of the table
	AllColumns bool
}

// DefaultSaveOptions is what automatic saves write
var DefaultSaveOptions = SaveOptions{Sort: true, IncludePaths: true}

// Session is one annotator working through one item set for one task. It
// exclusively owns its Store and is not safe for concurrent use: callers
// serialise actions.
type Session struct {
	cfg    *Config
	store  *Store
	saves  *SaveStore
	images ImageOpener
	rng    *rand.Rand

	id string

	mode        domain.Mode
	constraints Constraints
	showContext bool
	surrounding int
	maxSize     int
	resizeTo    int

	queue *Queue
	done  bool
}

// NewSession normalizes the item table, resumes any previous save of the same
// item set, user and task, and returns a session ready for Annotate.
func NewSession(cfg *Config, items *Table, parents []domain.Parent, opts Options) (*Session, error) {
	if cfg == nil {
		cfg = NewConfig()
	}
	store, err := Normalize(items, NormalizeOptions{
		PathColumn:  cfg.PatchPathsCol,
		LabelColumn: cfg.LabelCol,
		Parents:     parents,
	})
	if err != nil {
		return nil, err
	}
	constraints := Constraints{Min: cfg.MinValues, Max: cfg.MaxValues}
	if err := constraints.check(store); err != nil {
		return nil, err
	}
	if cfg.SortBy != "" && !store.HasColumn(cfg.SortBy) {
		return nil, &domain.ConfigurationError{Option: "sortby", Reason: fmt.Sprintf("%s is not a column in the table", cfg.SortBy)}
	}

	s := &Session{
		cfg:         cfg,
		store:       store,
		saves:       opts.Saves,
		images:      opts.Images,
		rng:         opts.Rand,
		mode:        domain.ModePatch,
		constraints: constraints,
		showContext: cfg.ShowContext,
		surrounding: cfg.Radius(),
		maxSize:     cfg.MaxSize,
		resizeTo:    cfg.ResizeTo,
	}
	if s.saves == nil {
		s.saves, err = NewDirSaveStore(cfg.AnnotationsDir)
		if err != nil {
			return nil, err
		}
	} else if err := s.saves.FS.MkdirAll(".", 0o755); err != nil {
		return nil, fmt.Errorf("while creating annotations directory: %w", err)
	}
	if s.images == nil {
		s.images = FileImageOpener{}
	}
	if s.rng == nil {
		seed := uint64(time.Now().UnixNano())
		if cfg.Seed != nil {
			seed = *cfg.Seed
		}
		s.rng = rand.New(rand.NewPCG(seed, seed>>1|1))
	}

	paths := make([]string, 0, store.Len())
	for _, key := range store.order {
		paths = append(paths, store.rows[key].ImagePath)
	}
	s.id = SessionID(paths)

	if err := s.resume(domain.ModePatch); err != nil {
		return nil, err
	}
	if err := s.resume(domain.ModeContext); err != nil {
		return nil, err
	}
	if cfg.SortBy != "" {
		if err := store.SortBy(cfg.SortBy, cfg.SortAscending()); err != nil {
			return nil, err
		}
	}
	s.queue = NewQueue(nil)
	return s, nil
}

// resume merges the save file of the given mode when it exists
func (s *Session) resume(mode domain.Mode) error {
	name := s.filename(mode)
	exists, err := s.saves.Exists(name)
	if err != nil {
		return fmt.Errorf("while checking for existing annotations: %w", err)
	}
	if !exists {
		return nil
	}
	log.Printf("Session: loading existing %s annotations for %s from %s", mode, s.cfg.Username, name)
	f, err := s.saves.Open(name)
	if err != nil {
		return fmt.Errorf("while opening existing annotations: %w", err)
	}
	defer f.Close()
	saved, err := LoadSave(f, s.cfg.Delimiter, s.labelColumn(mode))
	if err != nil {
		return fmt.Errorf("while reading existing annotations '%s': %w", name, err)
	}
	format, err := saved.DetectFormat(s.cfg.LabelFormat, s.cfg.Labels)
	if err != nil {
		return err
	}
	labels, err := saved.Resolve(format, s.cfg.Labels)
	if err != nil {
		return err
	}
	merged := Merge(s.store, labels, mode)
	log.Printf("Session: resumed %d %s annotations (%s format)", merged, mode, format)
	return nil
}

func (s *Session) filename(mode domain.Mode) string {
	return SessionFilename(s.cfg.TaskName, s.cfg.Username, s.id, mode == domain.ModeContext)
}

func (s *Session) labelColumn(mode domain.Mode) string {
	if mode == domain.ModeContext {
		return columnContextLabel
	}
	return s.store.labelCol
}

// ID is the item-set hash of the session
func (s *Session) ID() string { return s.id }

// Filename is the session file of the active mode
func (s *Session) Filename() string { return s.filename(s.mode) }

// Mode is the active annotation level
func (s *Session) Mode() domain.Mode { return s.mode }

// Store exposes the session's rows
func (s *Session) Store() *Store { return s.store }

// Queue exposes the traversal of the current pass
func (s *Session) Queue() *Queue { return s.queue }

// Config returns the session configuration
func (s *Session) Config() *Config { return s.cfg }

// Vocabulary lists the configured labels in order
func (s *Session) Vocabulary() []string { return append([]string(nil), s.cfg.Labels...) }

// ShowContext tells whether renders use the context composite
func (s *Session) ShowContext() bool { return s.showContext }

// Done reports whether input is disabled because the pass completed
func (s *Session) Done() bool { return s.done }

// Annotate starts a patch-level pass and moves to its first row
func (s *Session) Annotate(opts AnnotateOptions) (Step, error) {
	s.mode = domain.ModePatch
	return s.start(opts)
}

// AnnotateContext starts a context-level pass: the composite is always shown,
// one tile around the focal patch and nothing dimmed.
func (s *Session) AnnotateContext(opts AnnotateOptions) (Step, error) {
	s.mode = domain.ModeContext
	s.store.ensureContextColumns()
	show, one := true, 1
	opts.ShowContext = &show
	opts.Surrounding = &one
	return s.start(opts)
}

func (s *Session) start(opts AnnotateOptions) (Step, error) {
	constraints := s.constraints
	if opts.MinValues != nil {
		constraints.Min = opts.MinValues
	}
	if opts.MaxValues != nil {
		constraints.Max = opts.MaxValues
	}
	if opts.Surrounding != nil && *opts.Surrounding < 0 {
		return Step{}, &domain.ConfigurationError{Option: "surrounding", Reason: "must be a non-negative integer"}
	}
	keys, err := BuildQueue(s.store, s.mode, constraints, s.rng)
	if err != nil {
		return Step{}, err
	}
	s.constraints = constraints
	if opts.ShowContext != nil {
		s.showContext = *opts.ShowContext
	}
	if opts.Surrounding != nil {
		s.surrounding = *opts.Surrounding
	}
	if opts.ResizeTo != nil {
		s.resizeTo = *opts.ResizeTo
	}
	if opts.MaxSize != nil {
		s.maxSize = *opts.MaxSize
	}
	s.queue = NewQueue(keys)
	s.done = false
	log.Printf("Session: %s pass over %d eligible of %d rows", s.mode, len(keys), s.store.Len())
	return s.Next()
}

func (s *Session) step(key string, complete bool) (Step, error) {
	if complete {
		if err := s.Complete(); err != nil {
			return Step{}, err
		}
		return Step{Index: s.queue.Index(), Total: s.queue.Len(), Complete: true}, nil
	}
	return Step{Key: key, Index: s.queue.Index(), Total: s.queue.Len()}, nil
}

// Next advances to the following row, completing the pass at the end
func (s *Session) Next() (Step, error) {
	return s.step(s.queue.Advance())
}

// Prev steps back one row. Once the pass is complete it re-signals completion.
func (s *Session) Prev() (Step, error) {
	return s.step(s.queue.Retreat())
}

// Current is the focal step without moving
func (s *Session) Current() Step {
	if s.queue.State() == Complete {
		return Step{Index: s.queue.Index(), Total: s.queue.Len(), Complete: true}
	}
	return Step{Key: s.queue.Current(), Index: s.queue.Index(), Total: s.queue.Len()}
}

// Record stores label on the focal row in the active label column, saves
// when auto-save is on and advances the queue. A label for any other row,
// such as a resubmitted form, is rejected with ErrNotFocal and changes nothing.
func (s *Session) Record(key, label string) (Step, error) {
	if s.done {
		return Step{}, domain.ErrSessionComplete
	}
	if label == "" {
		return Step{}, &domain.SchemaError{Column: s.labelColumn(s.mode), Reason: "cannot record an empty label"}
	}
	if s.store.row(key) == nil {
		return Step{}, fmt.Errorf("%w: %s", domain.ErrUnknownRow, key)
	}
	if focal := s.queue.Current(); key != focal {
		return Step{}, fmt.Errorf("%w: got %s, focal is %s", domain.ErrNotFocal, key, focal)
	}
	err := s.store.Update(key, func(p *domain.Patch) {
		if s.mode == domain.ModeContext {
			p.ContextLabel = label
		} else {
			p.Label = label
		}
	})
	if err != nil {
		return Step{}, err
	}
	if s.cfg.AutoSaveEnabled() {
		if err := s.Save(); err != nil {
			return Step{}, err
		}
	}
	return s.Next()
}

// Complete runs the end-of-pass actions: a final save and disabling input.
// Calling it again repeats the save.
func (s *Session) Complete() error {
	s.done = true
	if s.cfg.AutoSaveEnabled() {
		return s.Save()
	}
	return nil
}

// Save rewrites the session file of the active mode with the labelled rows
func (s *Session) Save() error {
	data, err := s.LabelledData(DefaultSaveOptions)
	if err != nil {
		return err
	}
	name := s.Filename()
	err = s.saves.Write(name, func(w io.Writer) error {
		return WriteTable(w, data, s.cfg.Delimiter)
	})
	if err != nil {
		return fmt.Errorf("while saving annotations to '%s': %w", s.saves.Path(name), err)
	}
	return nil
}

// Filtered returns copies of the rows labelled in the active column, in table order
func (s *Session) Filtered() []*domain.Patch {
	var ret []*domain.Patch
	for _, key := range s.store.order {
		p := s.store.rows[key]
		if s.activeLabel(p) != "" {
			ret = append(ret, p.Clone())
		}
	}
	return ret
}

func (s *Session) activeLabel(p *domain.Patch) string {
	if s.mode == domain.ModeContext {
		return p.ContextLabel
	}
	return p.Label
}

// LabelledData builds the table of labelled rows of the active mode
func (s *Session) LabelledData(opts SaveOptions) (*Table, error) {
	labelCol := s.labelColumn(s.mode)
	index := s.store.index
	rekey := s.store.HasColumn(columnImageID)
	if rekey {
		index = columnImageID
	}
	t := &Table{Index: index}
	switch {
	case opts.AllColumns:
		for _, col := range s.store.columnsOut() {
			if col != columnImageID || !rekey {
				t.Columns = append(t.Columns, col)
			}
		}
	case opts.IncludePaths:
		t.Columns = []string{s.store.pathCol, labelCol}
	default:
		t.Columns = []string{labelCol}
	}

	position := map[string]int{}
	for i, label := range s.cfg.Labels {
		position[label] = i
	}
	for _, key := range s.store.order {
		p := s.store.rows[key]
		label := s.activeLabel(p)
		if label == "" {
			continue
		}
		row := TableRow{Key: key, Cells: make(map[string]string, len(t.Columns))}
		if rekey {
			row.Key = s.store.text(p, columnImageID)
		}
		for _, col := range t.Columns {
			row.Cells[col] = s.store.text(p, col)
		}
		if opts.IndexLabels {
			i, ok := position[label]
			if !ok {
				return nil, &domain.SchemaError{Column: labelCol, Reason: fmt.Sprintf("row %q: label %q is not in the vocabulary", key, label)}
			}
			row.Cells[labelCol] = strconv.Itoa(i)
		}
		t.Rows = append(t.Rows, row)
	}
	if opts.Sort {
		sort.SliceStable(t.Rows, func(i, j int) bool {
			a, b := sortKey(t.Rows[i].Key), sortKey(t.Rows[j].Key)
			if a != b {
				return a < b
			}
			return t.Rows[i].Key < t.Rows[j].Key
		})
	}
	return t, nil
}

// sortKey swaps the first two '#'-separated parts of a row key so rows group
// by parent image first
func sortKey(key string) string {
	parts := strings.Split(key, sortKeyDelimiter)
	if len(parts) < 2 {
		return key
	}
	return parts[1] + "-" + parts[0]
}

// View describes the focal row for renderers
type View struct {
	Step
	Patch    *domain.Patch
	Label    string
	Labels   []string
	Context  bool
	Warnings []string
}

// View returns the focal row with its current label
func (s *Session) View() View {
	v := View{Step: s.Current(), Labels: s.Vocabulary(), Context: s.showContext}
	if s.showContext && s.surrounding > crowdedRadius {
		v.Warnings = append(v.Warnings, crowdedWarning)
	}
	if v.Complete || v.Key == "" {
		return v
	}
	if p, ok := s.store.Get(v.Key); ok {
		v.Patch = p
		v.Label = s.activeLabel(p)
	}
	return v
}

// Compositor returns a compositor configured with the session's display settings
func (s *Session) Compositor() *Compositor {
	return &Compositor{
		Store:       s.store,
		Images:      s.images,
		Surrounding: s.surrounding,
		MaxSize:     s.maxSize,
		ResizeTo:    s.resizeTo,
		NoDim:       s.mode == domain.ModeContext,
	}
}

// Render returns the image to display for the focal row: the context
// composite when context is shown, the scaled patch otherwise.
func (s *Session) Render() (image.Image, *Composite, error) {
	key := s.queue.Current()
	if key == "" {
		return nil, nil, domain.ErrSessionComplete
	}
	c := s.Compositor()
	if s.showContext {
		composite, err := c.Compose(key)
		if err != nil {
			return nil, nil, err
		}
		return composite.Image, composite, nil
	}
	img, err := c.PatchImage(key)
	return img, nil, err
}
