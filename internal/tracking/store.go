package tracking

import (
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	storeFileName             = "common_follows.csv"
	trackingFileNameFormat    = "new_tracking_%s.csv"
	trackingFileGlob          = "new_tracking_*.csv"
	mergedOutputFileGlob      = "merged_tracking_following_*.csv"
	mergedOutputFileFormat    = "merged_tracking_following_%s.csv"
	fileDateLayout            = "2006-01-02"
	errMessageMissingIDColumn = "snapshot file is missing the id column"
	errMessageOpenSnapshot    = "open snapshot %s: %w"
	errMessageReadSnapshot    = "read snapshot %s: %w"
	errMessageCreateSnapshot  = "create snapshot %s: %w"
	errMessageWriteSnapshot   = "write snapshot %s: %w"
	logMessageStoreReplaced   = "persisted store replaced"
	logMessageSnapshotWritten = "snapshot written"
	logFieldPath              = "path"
	logFieldRowCount          = "rowCount"
)

// ErrMissingIDColumn indicates a snapshot file whose header lacks the id column.
var ErrMissingIDColumn = errors.New(errMessageMissingIDColumn)

// StoreConfig configures a Store instance.
type StoreConfig struct {
	DataDir string
	Logger  *zap.Logger
}

// Store persists the cross-run account tables as CSV files inside a data
// directory: the full confirmed+new store, one dated new-tracking file per run,
// and dated merged rematch outputs.
type Store struct {
	dataDir string
	logger  *zap.Logger
}

// NewStore constructs a Store rooted at the supplied data directory. An empty
// directory value means the current working directory.
func NewStore(configuration StoreConfig) *Store {
	logger := configuration.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{dataDir: configuration.DataDir, logger: logger}
}

// StorePath returns the path of the persisted store file.
func (store *Store) StorePath() string {
	return filepath.Join(store.dataDir, storeFileName)
}

// LoadConfirmedIDs reads the persisted store and returns the set of confirmed
// account ids. A missing store file is the first-run state and yields an empty
// set, not an error.
func (store *Store) LoadConfirmedIDs() (map[string]struct{}, error) {
	rows, exists, err := store.LoadStore()
	if err != nil {
		return nil, err
	}
	confirmedIDs := make(map[string]struct{}, len(rows))
	if !exists {
		return confirmedIDs, nil
	}
	for _, row := range rows {
		confirmedIDs[strings.TrimSpace(row.ID)] = struct{}{}
	}
	return confirmedIDs, nil
}

// LoadStore reads the persisted store rows. The boolean reports whether a store
// file existed; rows with an empty id or name are dropped.
func (store *Store) LoadStore() ([]Row, bool, error) {
	rows, err := ReadSnapshot(store.StorePath())
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return rows, true, nil
}

// Replace overwrites the persisted store with the supplied rows. The store is a
// full replacement snapshot, never an append.
func (store *Store) Replace(rows []Row) error {
	storePath := store.StorePath()
	if err := writeSnapshot(storePath, rows); err != nil {
		return err
	}
	store.logger.Info(logMessageStoreReplaced, zap.String(logFieldPath, storePath), zap.Int(logFieldRowCount, len(rows)))
	return nil
}

// WriteDatedTracking writes the run's new-tracking tier to a file named by the
// run date. A same-day rerun overwrites that day's file.
func (store *Store) WriteDatedTracking(rows []Row, runDate time.Time) (string, error) {
	trackingPath := filepath.Join(store.dataDir, fmt.Sprintf(trackingFileNameFormat, runDate.Format(fileDateLayout)))
	if err := writeSnapshot(trackingPath, rows); err != nil {
		return "", err
	}
	store.logger.Info(logMessageSnapshotWritten, zap.String(logFieldPath, trackingPath), zap.Int(logFieldRowCount, len(rows)))
	return trackingPath, nil
}

// WriteMergedOutput writes the live rematch result to a dated output file
// distinct from the persisted store.
func (store *Store) WriteMergedOutput(rows []Row, runDate time.Time) (string, error) {
	outputPath := filepath.Join(store.dataDir, fmt.Sprintf(mergedOutputFileFormat, runDate.Format(fileDateLayout)))
	if err := writeSnapshot(outputPath, rows); err != nil {
		return "", err
	}
	store.logger.Info(logMessageSnapshotWritten, zap.String(logFieldPath, outputPath), zap.Int(logFieldRowCount, len(rows)))
	return outputPath, nil
}

// DiscoverTrackingSnapshots returns the dated new-tracking files present in the
// data directory, sorted by name. An empty result is the first-run state.
func (store *Store) DiscoverTrackingSnapshots() ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(store.dataDir, trackingFileGlob))
	if err != nil {
		return nil, err
	}
	sort.Strings(matches)
	return matches, nil
}

// DiscoverMergedOutputs returns the dated merged rematch outputs present in the
// data directory, sorted by name so the last entry is the most recent.
func (store *Store) DiscoverMergedOutputs() ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(store.dataDir, mergedOutputFileGlob))
	if err != nil {
		return nil, err
	}
	sort.Strings(matches)
	return matches, nil
}

// ReadSnapshot reads one CSV snapshot file into rows. Rows with an empty id or
// name are dropped; columns are located by header name so column order is free.
func ReadSnapshot(snapshotPath string) ([]Row, error) {
	file, openErr := os.Open(snapshotPath)
	if openErr != nil {
		if errors.Is(openErr, os.ErrNotExist) {
			return nil, openErr
		}
		return nil, fmt.Errorf(errMessageOpenSnapshot, snapshotPath, openErr)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1
	records, readErr := reader.ReadAll()
	if readErr != nil {
		return nil, fmt.Errorf(errMessageReadSnapshot, snapshotPath, readErr)
	}
	if len(records) == 0 {
		return nil, nil
	}

	columnIndexes := make(map[string]int, len(records[0]))
	for index, columnName := range records[0] {
		columnIndexes[strings.TrimSpace(columnName)] = index
	}
	if _, hasID := columnIndexes[csvColumnID]; !hasID {
		return nil, fmt.Errorf("%w: %s", ErrMissingIDColumn, snapshotPath)
	}

	cellValue := func(record []string, columnName string) string {
		index, exists := columnIndexes[columnName]
		if !exists || index >= len(record) {
			return ""
		}
		return record[index]
	}

	rows := make([]Row, 0, len(records)-1)
	for _, record := range records[1:] {
		row := Row{
			ID:           strings.TrimSpace(cellValue(record, csvColumnID)),
			Name:         cellValue(record, csvColumnName),
			RegisterDate: cellValue(record, csvColumnRegisterDate),
			FollowedBy:   splitFollowedBy(cellValue(record, csvColumnFollowedBy)),
			Link:         cellValue(record, csvColumnLink),
		}
		if row.ID == "" || strings.TrimSpace(row.Name) == "" {
			continue
		}
		if parsedCount, parseErr := strconv.Atoi(strings.TrimSpace(cellValue(record, csvColumnFollowersCount))); parseErr == nil {
			row.FollowersCount = parsedCount
		} else {
			row.FollowersCount = len(row.FollowedBy)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func writeSnapshot(snapshotPath string, rows []Row) error {
	file, createErr := os.Create(snapshotPath)
	if createErr != nil {
		return fmt.Errorf(errMessageCreateSnapshot, snapshotPath, createErr)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	if err := writer.Write(csvHeaderColumns); err != nil {
		return fmt.Errorf(errMessageWriteSnapshot, snapshotPath, err)
	}
	for _, row := range rows {
		if err := writer.Write(row.csvRecord()); err != nil {
			return fmt.Errorf(errMessageWriteSnapshot, snapshotPath, err)
		}
	}
	writer.Flush()
	return writer.Error()
}
