package dashboard

import (
	"errors"
	"fmt"
	"io"
	"slices"
	"strconv"

	"github.com/asaidimu/go-tabula/core/export"
	"github.com/asaidimu/go-tabula/core/query"
	"github.com/asaidimu/go-tabula/core/schema"
	"github.com/asaidimu/go-tabula/core/view"
)

// FieldInfo describes one field of a board for clients.
type FieldInfo struct {
	Key   string           `json:"key"`
	Type  schema.FieldType `json:"type"`
	Label string           `json:"label,omitempty"`
}

// BoardInfo is the client-facing description of a board.
type BoardInfo struct {
	Name         string             `json:"name"`
	Title        string             `json:"title"`
	Fields       []FieldInfo        `json:"fields"`
	SearchFields []string           `json:"searchFields"`
	DefaultState query.ViewState    `json:"defaultState"`
	Grouping     *query.GroupConfig `json:"grouping,omitempty"`
	Records      int                `json:"records"`
}

// Board is a mounted view over one record collection. Implementations are
// read-only and safe for concurrent use.
type Board interface {
	Name() string
	Title() string
	Info() BoardInfo

	// Field describes the named field, if the board defines it.
	Field(key string) (FieldInfo, bool)

	// DefaultState is the state of a freshly opened page.
	DefaultState() query.ViewState

	// SearchFields are the fields the page's search box looks in.
	SearchFields() []string

	// Grouping returns the grouping configuration, or nil if the board
	// cannot be grouped.
	Grouping() *query.GroupConfig

	// Normalize validates state against the board.
	Normalize(state query.ViewState) (query.ViewState, error)

	// View evaluates state and returns a *query.Result of the board's
	// record type.
	View(state query.ViewState) (any, error)

	// Export writes the full result for state as CSV: records when the state
	// is not grouped, one row per group otherwise.
	Export(w io.Writer, state query.ViewState) error
}

// BoardSpec configures a TypedBoard.
type BoardSpec[T any] struct {
	Name         string
	Title        string
	Fields       *schema.FieldSet[T]
	Columns      []export.Column[T]
	SearchFields []string
	DefaultSort  string
	Grouping     *query.GroupConfig
	Summary      []query.Metric
}

// TypedBoard is a Board over records of type T.
type TypedBoard[T any] struct {
	spec         BoardSpec[T]
	processor    *query.ViewProcessor[T]
	records      []T
	groupColumns []export.Column[query.Group[T]]
	defaultState query.ViewState
}

var _ Board = (*TypedBoard[Query])(nil)

// NewBoard validates spec and mounts records. opts are passed to the
// underlying view processor.
func NewBoard[T any](spec BoardSpec[T], records []T, opts ...query.Option) (*TypedBoard[T], error) {
	if spec.Name == "" {
		return nil, errors.New("board name is required")
	}
	if spec.Fields == nil {
		return nil, fmt.Errorf("board %s: %w: no fields", spec.Name, schema.ErrInvalidFieldSet)
	}
	if spec.Title == "" {
		spec.Title = spec.Name
	}

	var missing []error
	for _, key := range append(slices.Clone(spec.SearchFields), spec.DefaultSort) {
		if key != "" && !spec.Fields.Has(key) {
			missing = append(missing, fmt.Errorf("board %s field '%s': %w", spec.Name, key, query.ErrUnknownField))
		}
	}
	if len(missing) > 0 {
		return nil, errors.Join(missing...)
	}

	options := slices.Clone(opts)
	if spec.Grouping != nil {
		options = append(options, query.WithGrouping(*spec.Grouping))
	}
	if len(spec.Summary) > 0 {
		options = append(options, query.WithSummary(spec.Summary...))
	}
	processor, err := query.NewViewProcessor(spec.Fields, options...)
	if err != nil {
		return nil, fmt.Errorf("board %s: %w", spec.Name, err)
	}

	b := &TypedBoard[T]{
		spec:         spec,
		processor:    processor,
		records:      records,
		defaultState: query.DefaultViewState(spec.DefaultSort),
	}
	if g := processor.Grouping(); g != nil {
		b.groupColumns = GroupColumns[T](*g)
	}
	return b, nil
}

func (b *TypedBoard[T]) Name() string { return b.spec.Name }

func (b *TypedBoard[T]) Title() string { return b.spec.Title }

func (b *TypedBoard[T]) DefaultState() query.ViewState {
	return b.defaultState.WithPage(b.defaultState.Page)
}

func (b *TypedBoard[T]) SearchFields() []string { return slices.Clone(b.spec.SearchFields) }

func (b *TypedBoard[T]) Grouping() *query.GroupConfig { return b.processor.Grouping() }

// Records returns the mounted collection.
func (b *TypedBoard[T]) Records() []T { return b.records }

func (b *TypedBoard[T]) Info() BoardInfo {
	fields := b.spec.Fields.Fields()
	info := BoardInfo{
		Name:         b.spec.Name,
		Title:        b.spec.Title,
		Fields:       make([]FieldInfo, 0, len(fields)),
		SearchFields: b.SearchFields(),
		DefaultState: b.DefaultState(),
		Grouping:     b.Grouping(),
		Records:      len(b.records),
	}
	for _, f := range fields {
		info.Fields = append(info.Fields, FieldInfo{Key: f.Key, Type: f.Type, Label: f.Label})
	}
	return info
}

func (b *TypedBoard[T]) Field(key string) (FieldInfo, bool) {
	f, ok := b.spec.Fields.Lookup(key)
	if !ok {
		return FieldInfo{}, false
	}
	return FieldInfo{Key: f.Key, Type: f.Type, Label: f.Label}, true
}

func (b *TypedBoard[T]) Normalize(state query.ViewState) (query.ViewState, error) {
	return b.processor.Normalize(state)
}

func (b *TypedBoard[T]) View(state query.ViewState) (any, error) {
	return b.processor.Recompute(b.records, state)
}

// Result is View with the concrete result type.
func (b *TypedBoard[T]) Result(state query.ViewState) (*query.Result[T], error) {
	return b.processor.Recompute(b.records, state)
}

func (b *TypedBoard[T]) Export(w io.Writer, state query.ViewState) error {
	m, err := b.processor.Materialize(b.records, state)
	if err != nil {
		return err
	}
	if m.Mode.Grouped() {
		return export.Write(w, m.Groups, b.groupColumns)
	}
	return export.Write(w, m.Records, b.spec.Columns)
}

// Session opens a stateful view over the board starting from its default
// state.
func (b *TypedBoard[T]) Session(options *view.SessionOptions) (*view.Session[T], error) {
	if options == nil {
		options = view.DefaultSessionOptions()
	}
	options.Name = b.spec.Name
	options.InitialState = b.DefaultState()
	options.SearchFields = b.SearchFields()
	return view.NewSession(b.processor, b.records, options)
}

// GroupColumns returns the export columns for groups: the key, the member
// count and every configured metric.
func GroupColumns[T any](cfg query.GroupConfig) []export.Column[query.Group[T]] {
	columns := []export.Column[query.Group[T]]{
		{Header: "Group", Formatter: func(g query.Group[T]) string { return g.Key }},
		{Header: "Count", Formatter: func(g query.Group[T]) string { return strconv.Itoa(g.Count) }},
	}
	for _, metric := range cfg.Metrics {
		name := metric.Name
		columns = append(columns, export.Column[query.Group[T]]{
			Header:    name,
			Formatter: func(g query.Group[T]) string { return g.Total(name).StringFixed(2) },
		})
	}
	return columns
}
