package dashboard

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/asaidimu/go-tabula/sqlite"
	"github.com/asaidimu/go-tabula/utils"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

//go:embed sample.json
var sampleJSON []byte

// Dataset holds every collection the dashboard serves.
type Dataset struct {
	Queries         []Query          `json:"queries"`
	Warehouses      []Warehouse      `json:"warehouses"`
	Accounts        []Account        `json:"accounts"`
	Recommendations []Recommendation `json:"recommendations"`
	AssignedTasks   []AssignedTask   `json:"assignedTasks"`
	Users           []User           `json:"users"`
}

// Size returns the total number of records.
func (d *Dataset) Size() int {
	return len(d.Queries) + len(d.Warehouses) + len(d.Accounts) +
		len(d.Recommendations) + len(d.AssignedTasks) + len(d.Users)
}

// LoadDataset decodes a JSON dataset. Records without an id are given one.
func LoadDataset(r io.Reader) (*Dataset, error) {
	var ds Dataset
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&ds); err != nil {
		return nil, fmt.Errorf("failed to decode dataset: %w", err)
	}
	ds.assignIDs()
	return &ds, nil
}

// LoadDatasetFile reads a JSON dataset from path.
func LoadDatasetFile(path string) (*Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open dataset: %w", err)
	}
	defer f.Close()
	return LoadDataset(f)
}

// SampleDataset returns the dataset bundled with the binary.
func SampleDataset() (*Dataset, error) {
	return LoadDataset(bytes.NewReader(sampleJSON))
}

// Table names read by LoadSQLite.
var sqliteTables = struct {
	Queries, Warehouses, Accounts, Recommendations, AssignedTasks, Users string
}{"queries", "warehouses", "accounts", "recommendations", "assigned_tasks", "users"}

// LoadSQLite reads the dataset from a SQLite database in one snapshot.
// Missing tables leave their collection empty. Column names must match the
// JSON field names of the record types.
func LoadSQLite(ctx context.Context, source *sqlite.Source, logger *zap.Logger) (*Dataset, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	snapshot, err := source.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	defer snapshot.Close()

	var ds Dataset
	if ds.Queries, err = readTable[Query](ctx, snapshot, sqliteTables.Queries, logger); err != nil {
		return nil, err
	}
	if ds.Warehouses, err = readTable[Warehouse](ctx, snapshot, sqliteTables.Warehouses, logger); err != nil {
		return nil, err
	}
	if ds.Accounts, err = readTable[Account](ctx, snapshot, sqliteTables.Accounts, logger); err != nil {
		return nil, err
	}
	if ds.Recommendations, err = readTable[Recommendation](ctx, snapshot, sqliteTables.Recommendations, logger); err != nil {
		return nil, err
	}
	if ds.AssignedTasks, err = readTable[AssignedTask](ctx, snapshot, sqliteTables.AssignedTasks, logger); err != nil {
		return nil, err
	}
	if ds.Users, err = readTable[User](ctx, snapshot, sqliteTables.Users, logger); err != nil {
		return nil, err
	}
	ds.assignIDs()
	return &ds, nil
}

func readTable[T any](ctx context.Context, source *sqlite.Source, table string, logger *zap.Logger) ([]T, error) {
	exists, err := source.TableExists(ctx, table)
	if err != nil {
		return nil, fmt.Errorf("failed to look up table %s: %w", table, err)
	}
	if !exists {
		logger.Warn("Table not found, collection left empty", zap.String("table", table))
		return nil, nil
	}

	docs, err := source.ReadTable(ctx, table)
	if err != nil {
		return nil, err
	}
	records, err := utils.MapsToStructs[T](docs)
	if err != nil {
		return nil, fmt.Errorf("table %s: %w", table, err)
	}
	return records, nil
}

func (d *Dataset) assignIDs() {
	for i := range d.Queries {
		ensureID(&d.Queries[i].ID)
	}
	for i := range d.Warehouses {
		ensureID(&d.Warehouses[i].ID)
	}
	for i := range d.Accounts {
		ensureID(&d.Accounts[i].ID)
	}
	for i := range d.Recommendations {
		ensureID(&d.Recommendations[i].ID)
	}
	for i := range d.AssignedTasks {
		ensureID(&d.AssignedTasks[i].ID)
	}
	for i := range d.Users {
		ensureID(&d.Users[i].ID)
	}
}

func ensureID(id *string) {
	if *id == "" {
		*id = uuid.New().String()
	}
}
