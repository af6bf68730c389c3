// Package server exposes the persisted tracking tables as a small HTTP API.
package server

import (
	"net/http"
	"sort"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/follow-scope/fscope/internal/tracking"
)

const (
	storeRoutePath               = "/api/store"
	latestMergeRoutePath         = "/api/latest-merge"
	topRoutePath                 = "/api/top"
	healthRoutePath              = "/healthz"
	topLimitQueryParameterName   = "limit"
	defaultTopLimit              = 30
	healthStatusKey              = "status"
	healthStatusOK               = "ok"
	errorMessageStoreUnavailable = "store unavailable"
	errorMessageMergeUnavailable = "merged output unavailable"
	errorMessageNoMergedOutput   = "no merged output found"
	logMessageStoreReadFailure   = "store read failure"
	logMessageMergeReadFailure   = "merged output read failure"
	ginModeRelease               = "release"
)

// ReportStore provides the persisted tables the report endpoints serve.
type ReportStore interface {
	LoadStore() ([]tracking.Row, bool, error)
	DiscoverMergedOutputs() ([]string, error)
}

// RouterConfig configures the HTTP routing for report requests.
type RouterConfig struct {
	Store        ReportStore
	ReadSnapshot func(string) ([]tracking.Row, error)
	Logger       *zap.Logger
}

// NewRouter constructs a Gin engine serving the store, the latest merged
// rematch output, the top-followed summary, and a health endpoint.
func NewRouter(configuration RouterConfig) (*gin.Engine, error) {
	logger := configuration.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	readSnapshot := configuration.ReadSnapshot
	if readSnapshot == nil {
		readSnapshot = tracking.ReadSnapshot
	}

	gin.SetMode(ginModeRelease)
	engine := gin.New()
	engine.Use(gin.Recovery())

	handler := reportHandler{
		store:        configuration.Store,
		readSnapshot: readSnapshot,
		logger:       logger,
	}

	engine.GET(storeRoutePath, handler.serveStore)
	engine.GET(latestMergeRoutePath, handler.serveLatestMerge)
	engine.GET(topRoutePath, handler.serveTop)
	engine.GET(healthRoutePath, handler.healthStatus)

	return engine, nil
}

type reportHandler struct {
	store        ReportStore
	readSnapshot func(string) ([]tracking.Row, error)
	logger       *zap.Logger
}

type storeResponse struct {
	Exists bool          `json:"exists"`
	Rows   []rowResponse `json:"rows"`
}

type latestMergeResponse struct {
	Path string        `json:"path"`
	Rows []rowResponse `json:"rows"`
}

type rowResponse struct {
	ID             string   `json:"id"`
	Name           string   `json:"name"`
	RegisterDate   string   `json:"registerDate"`
	FollowedBy     []string `json:"followedBy"`
	FollowersCount int      `json:"followersCount"`
	Link           string   `json:"link"`
}

func (handler reportHandler) serveStore(ginContext *gin.Context) {
	rows, exists, loadErr := handler.store.LoadStore()
	if loadErr != nil {
		handler.logger.Error(logMessageStoreReadFailure, zap.Error(loadErr))
		ginContext.String(http.StatusInternalServerError, errorMessageStoreUnavailable)
		return
	}
	ginContext.JSON(http.StatusOK, storeResponse{Exists: exists, Rows: toRowResponses(rows)})
}

func (handler reportHandler) serveLatestMerge(ginContext *gin.Context) {
	outputPaths, discoverErr := handler.store.DiscoverMergedOutputs()
	if discoverErr != nil {
		handler.logger.Error(logMessageMergeReadFailure, zap.Error(discoverErr))
		ginContext.String(http.StatusInternalServerError, errorMessageMergeUnavailable)
		return
	}
	if len(outputPaths) == 0 {
		ginContext.String(http.StatusNotFound, errorMessageNoMergedOutput)
		return
	}

	latestPath := outputPaths[len(outputPaths)-1]
	rows, readErr := handler.readSnapshot(latestPath)
	if readErr != nil {
		handler.logger.Error(logMessageMergeReadFailure, zap.Error(readErr))
		ginContext.String(http.StatusInternalServerError, errorMessageMergeUnavailable)
		return
	}
	ginContext.JSON(http.StatusOK, latestMergeResponse{Path: latestPath, Rows: toRowResponses(rows)})
}

func (handler reportHandler) serveTop(ginContext *gin.Context) {
	rows, _, loadErr := handler.store.LoadStore()
	if loadErr != nil {
		handler.logger.Error(logMessageStoreReadFailure, zap.Error(loadErr))
		ginContext.String(http.StatusInternalServerError, errorMessageStoreUnavailable)
		return
	}

	limit := defaultTopLimit
	if limitValue := ginContext.Query(topLimitQueryParameterName); limitValue != "" {
		if parsedLimit, parseErr := strconv.Atoi(limitValue); parseErr == nil && parsedLimit > 0 {
			limit = parsedLimit
		}
	}

	sort.Slice(rows, func(firstIndex, secondIndex int) bool {
		if rows[firstIndex].FollowersCount != rows[secondIndex].FollowersCount {
			return rows[firstIndex].FollowersCount > rows[secondIndex].FollowersCount
		}
		return rows[firstIndex].ID < rows[secondIndex].ID
	})
	if len(rows) > limit {
		rows = rows[:limit]
	}
	ginContext.JSON(http.StatusOK, toRowResponses(rows))
}

func (handler reportHandler) healthStatus(ginContext *gin.Context) {
	ginContext.JSON(http.StatusOK, map[string]string{healthStatusKey: healthStatusOK})
}

func toRowResponses(rows []tracking.Row) []rowResponse {
	responses := make([]rowResponse, 0, len(rows))
	for _, row := range rows {
		responses = append(responses, rowResponse{
			ID:             row.ID,
			Name:           row.Name,
			RegisterDate:   row.RegisterDate,
			FollowedBy:     row.FollowedBy,
			FollowersCount: row.FollowersCount,
			Link:           row.Link,
		})
	}
	return responses
}
