package store

import (
	"context"
	"errors"

	"github.com/kiranshivaraju/logsink/pkg/models"
)

var ErrNotFound = errors.New("resource not found")
var ErrDuplicateKey = errors.New("duplicate key violation")

// Store is the data access interface. All database operations go through here.
type Store interface {
	Ping(ctx context.Context) error
	Close()

	GetGroup(ctx context.Context, hash string) (*models.LogGroup, error)
	CreateGroup(ctx context.Context, group *models.LogGroup) error
	UpdateGroup(ctx context.Context, group *models.LogGroup) error
	CountGroups(ctx context.Context, filter GroupFilter) (int, error)
	ListGroups(ctx context.Context, filter GroupFilter) ([]*models.LogGroup, error)
	DeleteGroup(ctx context.Context, hash string) error
	DeleteGroupsByType(ctx context.Context, logType string) (int, error)

	CreateReporter(ctx context.Context, reporter *models.Reporter) error
	GetReporter(ctx context.Context, id int64) (*models.Reporter, error)
	GetReporters(ctx context.Context, ids []int64) ([]*models.Reporter, error)

	CreateStatistics(ctx context.Context, rec *models.StatisticsRecord) error
	DailyStatistics(ctx context.Context, cliType string) ([]models.DailyCount, error)
	EachConfiguration(ctx context.Context, fn func(cliType, configurationInfo string) error) error
}

// GroupFilter narrows group queries. Zero values mean "any". Limit zero
// returns every match.
type GroupFilter struct {
	LogType string
	Status  *int
	Limit   int
	Offset  int
}

// WithStatus returns a copy of f restricted to one status.
func (f GroupFilter) WithStatus(status int) GroupFilter {
	f.Status = &status
	return f
}
