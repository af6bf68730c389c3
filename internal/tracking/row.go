package tracking

import (
	"strconv"
	"strings"

	"github.com/follow-scope/fscope/internal/overlap"
)

const (
	csvColumnID             = "id"
	csvColumnName           = "name"
	csvColumnRegisterDate   = "register_date"
	csvColumnFollowedBy     = "followed_by"
	csvColumnFollowersCount = "followers_count"
	csvColumnLink           = "link"
	followedBySeparator     = ", "
	followedBySplitToken    = ","
)

var csvHeaderColumns = []string{csvColumnID, csvColumnName, csvColumnRegisterDate, csvColumnFollowedBy, csvColumnFollowersCount, csvColumnLink}

// Row is a single persisted account row. The identifier stays a string through
// every save/load cycle so large numeric ids never lose precision.
type Row struct {
	ID             string
	Name           string
	RegisterDate   string
	FollowedBy     []string
	FollowersCount int
	Link           string
}

// RowFromRecord converts an overlap record into its persisted form.
func RowFromRecord(record overlap.OverlapRecord) Row {
	return Row{
		ID:             record.Account.ID,
		Name:           record.Account.Name,
		RegisterDate:   record.Account.RegisterDate,
		FollowedBy:     append([]string{}, record.FollowedBy...),
		FollowersCount: record.FollowersCount(),
		Link:           record.Account.Link,
	}
}

// RowsFromRecords converts a slice of overlap records into persisted rows.
func RowsFromRecords(records []overlap.OverlapRecord) []Row {
	rows := make([]Row, 0, len(records))
	for _, record := range records {
		rows = append(rows, RowFromRecord(record))
	}
	return rows
}

// NewSincePrevious returns the rows whose id is absent from previousIDs. Ids are
// compared as normalized strings so save/load cycles cannot introduce type drift.
func NewSincePrevious(currentRows []Row, previousIDs map[string]struct{}) []Row {
	var newRows []Row
	for _, row := range currentRows {
		if _, known := previousIDs[strings.TrimSpace(row.ID)]; known {
			continue
		}
		newRows = append(newRows, row)
	}
	return newRows
}

func (row Row) csvRecord() []string {
	return []string{
		row.ID,
		row.Name,
		row.RegisterDate,
		strings.Join(row.FollowedBy, followedBySeparator),
		strconv.Itoa(row.FollowersCount),
		row.Link,
	}
}

func splitFollowedBy(joined string) []string {
	if strings.TrimSpace(joined) == "" {
		return nil
	}
	segments := strings.Split(joined, followedBySplitToken)
	followedBy := make([]string, 0, len(segments))
	for _, segment := range segments {
		trimmed := strings.TrimSpace(segment)
		if trimmed == "" {
			continue
		}
		followedBy = append(followedBy, trimmed)
	}
	return followedBy
}
