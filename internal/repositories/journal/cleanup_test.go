package journal

import (
	"context"
	"errors"
	"testing"
	"time"

	mock_journal "github.com/orgball2608/media-extractor-bot/internal/repositories/journal/mocks"
	"github.com/orgball2608/media-extractor-bot/pkg/logger"
	"github.com/stretchr/testify/assert"
	"go.uber.org/mock/gomock"
)

func TestCleaner_Run(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := mock_journal.NewMockRepository(ctrl)
	repo.EXPECT().CleanupOldRecords(gomock.Any(), 48*time.Hour).Return(int64(3), nil)

	c := NewCleaner(repo, 48*time.Hour, logger.NewNop())

	assert.NoError(t, c.Run(context.Background()))
}

func TestCleaner_RunError(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := mock_journal.NewMockRepository(ctrl)
	repo.EXPECT().CleanupOldRecords(gomock.Any(), gomock.Any()).Return(int64(0), errors.New("db down"))

	c := NewCleaner(repo, time.Hour, logger.NewNop())

	assert.ErrorContains(t, c.Run(context.Background()), "db down")
}

func TestCleaner_ZeroRetentionKeepsEverything(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := mock_journal.NewMockRepository(ctrl)

	c := NewCleaner(repo, 0, logger.NewNop())

	assert.NoError(t, c.Run(context.Background()))
}

func TestCleaner_Schedule(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := mock_journal.NewMockRepository(ctrl)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	c := NewCleaner(repo, time.Hour, logger.NewNop())

	assert.NoError(t, c.Schedule(ctx))
}
