package dashboard

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/asaidimu/go-tabula/core/export"
	"github.com/asaidimu/go-tabula/core/query"
	"github.com/asaidimu/go-tabula/core/schema"
	"github.com/asaidimu/go-tabula/sqlite"
	"go.uber.org/zap"
)

// ErrDuplicateBoard is returned when a board name is already mounted.
var ErrDuplicateBoard = errors.New("board already mounted")

// CatalogOptions configures a Catalog and every board it mounts.
type CatalogOptions struct {
	Strict   bool
	Clock    func() time.Time
	Location *time.Location
	Logger   *zap.Logger
}

// DefaultCatalogOptions returns lenient, UTC, wall-clock options.
func DefaultCatalogOptions() *CatalogOptions {
	return &CatalogOptions{
		Clock:    time.Now,
		Location: time.UTC,
		Logger:   zap.NewNop(),
	}
}

// Catalog holds the mounted boards by name, in mount order.
type Catalog struct {
	mu      sync.RWMutex
	boards  map[string]Board
	order   []string
	options *CatalogOptions
	logger  *zap.Logger
}

// NewCatalog mounts the six dashboard boards over ds.
func NewCatalog(ds *Dataset, options *CatalogOptions) (*Catalog, error) {
	if ds == nil {
		return nil, errors.New("dataset is required")
	}
	if options == nil {
		options = DefaultCatalogOptions()
	}
	if options.Logger == nil {
		options.Logger = zap.NewNop()
	}

	c := &Catalog{
		boards:  make(map[string]Board),
		options: options,
		logger:  options.Logger,
	}

	opts := c.ProcessorOptions()
	builders := []func() (Board, error){
		func() (Board, error) { return NewQueriesBoard(ds.Queries, opts...) },
		func() (Board, error) { return NewWarehousesBoard(ds.Warehouses, opts...) },
		func() (Board, error) { return NewAccountsBoard(ds.Accounts, opts...) },
		func() (Board, error) { return NewRecommendationsBoard(ds.Recommendations, opts...) },
		func() (Board, error) { return NewTasksBoard(ds.AssignedTasks, opts...) },
		func() (Board, error) { return NewUsersBoard(ds.Users, opts...) },
	}
	for _, build := range builders {
		board, err := build()
		if err != nil {
			return nil, err
		}
		if err := c.Mount(board); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// ProcessorOptions returns the view processor options shared by the
// catalog's boards.
func (c *Catalog) ProcessorOptions() []query.Option {
	opts := []query.Option{
		query.WithStrict(c.options.Strict),
		query.WithLogger(c.logger),
	}
	if c.options.Clock != nil {
		opts = append(opts, query.WithClock(c.options.Clock))
	}
	if c.options.Location != nil {
		opts = append(opts, query.WithLocation(c.options.Location))
	}
	return opts
}

// Mount adds board to the catalog.
func (c *Catalog) Mount(board Board) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	name := board.Name()
	if _, exists := c.boards[name]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateBoard, name)
	}
	c.boards[name] = board
	c.order = append(c.order, name)
	c.logger.Debug("Board mounted", zap.String("board", name), zap.Int("records", board.Info().Records))
	return nil
}

// Board returns the board called name.
func (c *Catalog) Board(name string) (Board, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	b, ok := c.boards[name]
	return b, ok
}

// Boards returns every board in mount order.
func (c *Catalog) Boards() []Board {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Board, 0, len(c.order))
	for _, name := range c.order {
		out = append(out, c.boards[name])
	}
	return out
}

// MountTable mounts a raw SQLite table as a board of documents. Field types
// come from the declared column types; the board is named after the table
// and sorts by its first column.
func (c *Catalog) MountTable(ctx context.Context, source *sqlite.Source, table string) (*TypedBoard[schema.Document], error) {
	columns, err := source.Describe(ctx, table)
	if err != nil {
		return nil, err
	}
	docs, err := source.ReadTable(ctx, table)
	if err != nil {
		return nil, err
	}

	board, err := NewDocumentBoard(table, columns, docs, c.ProcessorOptions()...)
	if err != nil {
		return nil, err
	}
	if err := c.Mount(board); err != nil {
		return nil, err
	}
	return board, nil
}

// NewDocumentBoard mounts docs with one field per column. String columns are
// searched.
func NewDocumentBoard(name string, columns []sqlite.Column, docs []schema.Document, opts ...query.Option) (*TypedBoard[schema.Document], error) {
	if len(columns) == 0 {
		return nil, fmt.Errorf("board %s: %w: no columns", name, schema.ErrInvalidFieldSet)
	}
	fields, err := schema.DocumentFieldSet(sqlite.FieldTypes(columns))
	if err != nil {
		return nil, fmt.Errorf("board %s: %w", name, err)
	}

	var search []string
	exportColumns := make([]export.Column[schema.Document], 0, len(columns))
	for _, col := range columns {
		key := col.Name
		if col.Type == schema.FieldTypeString {
			search = append(search, key)
		}
		exportColumns = append(exportColumns, export.Column[schema.Document]{
			Header: key,
			Formatter: func(doc schema.Document) string {
				v, _ := fields.Resolve(key, doc)
				return v.String()
			},
		})
	}

	return NewBoard(BoardSpec[schema.Document]{
		Name:         name,
		Title:        name,
		Fields:       fields,
		Columns:      exportColumns,
		SearchFields: search,
		DefaultSort:  columns[0].Name,
	}, docs, opts...)
}
