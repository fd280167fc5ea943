package service

import (
	"context"
	"sync"
	"time"

	"github.com/Harishith4529/shortlink/internal/models"
	"github.com/Harishith4529/shortlink/internal/repository"
	"go.uber.org/zap"
)

const (
	defaultWorkerCount   = 3
	defaultChannelBuffer = 1000
	maxRecordRetries     = 3
)

// ClickProcessor persists the per-click audit trail asynchronously so
// the redirect path never waits on it. Events are dropped when the
// buffer is full: losing an audit row is acceptable, losing the
// redirect is not. The advisory click counter is incremented inline by
// the resolution path and does not pass through here.
type ClickProcessor interface {
	Start()
	Stop()
	RecordClick(ctx context.Context, event *models.ClickEvent) error
	GetStats(ctx context.Context, code string) (*models.ClickStats, error)
	GetDailyStats(ctx context.Context, code string, days int) ([]models.DailyClickStats, error)
}

type clickProcessor struct {
	clickRepo    repository.ClickRepository
	linkRepo     repository.LinkRepository
	logger       *zap.Logger
	clickChannel chan *models.ClickEvent
	workerCount  int
	wg           sync.WaitGroup
	ctx          context.Context
	cancel       context.CancelFunc
}

func NewClickProcessor(
	clickRepo repository.ClickRepository,
	linkRepo repository.LinkRepository,
	logger *zap.Logger,
) ClickProcessor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &clickProcessor{
		clickRepo:    clickRepo,
		linkRepo:     linkRepo,
		logger:       logger,
		clickChannel: make(chan *models.ClickEvent, defaultChannelBuffer),
		workerCount:  defaultWorkerCount,
	}
}

func (p *clickProcessor) Start() {
	p.ctx, p.cancel = context.WithCancel(context.Background())

	p.logger.Info("Starting click processor workers", zap.Int("count", p.workerCount))

	for i := 0; i < p.workerCount; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
}

func (p *clickProcessor) Stop() {
	p.logger.Info("Stopping click processor...")
	p.cancel()
	p.wg.Wait()
	p.logger.Info("Click processor stopped")
}

func (p *clickProcessor) worker(id int) {
	defer p.wg.Done()

	p.logger.Debug("Click worker started", zap.Int("id", id))

	for {
		select {
		case <-p.ctx.Done():
			p.logger.Debug("Click worker stopped", zap.Int("id", id))
			return

		case event, ok := <-p.clickChannel:
			if !ok {
				return
			}
			p.processClick(event)
		}
	}
}

func (p *clickProcessor) processClick(event *models.ClickEvent) {
	ctx, cancel := context.WithTimeout(p.ctx, 5*time.Second)
	defer cancel()

	linkID, err := p.linkRepo.GetLinkIDByCode(ctx, event.Code)
	if err != nil {
		p.logger.Warn("Failed to look up link for click",
			zap.String("code", event.Code),
			zap.Error(err),
		)
		return
	}

	click := &models.Click{
		LinkID:    linkID,
		Code:      event.Code,
		IPAddress: event.IPAddress,
		UserAgent: event.UserAgent,
		Referer:   event.Referer,
		ClickedAt: time.Now(),
	}

	for i := 0; i < maxRecordRetries; i++ {
		if err = p.clickRepo.RecordClick(ctx, click); err == nil {
			return
		}
		if i < maxRecordRetries-1 {
			p.logger.Debug("Retrying click record",
				zap.String("code", event.Code),
				zap.Int("attempt", i+1),
				zap.Error(err),
			)
			time.Sleep(time.Duration(i+1) * 100 * time.Millisecond)
		}
	}

	p.logger.Error("Failed to record click after all retries",
		zap.String("code", event.Code),
		zap.Error(err),
	)
}

// RecordClick enqueues an event without blocking the caller.
func (p *clickProcessor) RecordClick(ctx context.Context, event *models.ClickEvent) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case p.clickChannel <- event:
		return nil
	default:
		p.logger.Warn("Click channel buffer full, event dropped",
			zap.String("code", event.Code),
		)
		return nil
	}
}

func (p *clickProcessor) GetStats(ctx context.Context, code string) (*models.ClickStats, error) {
	return p.clickRepo.GetStats(ctx, code)
}

func (p *clickProcessor) GetDailyStats(ctx context.Context, code string, days int) ([]models.DailyClickStats, error) {
	return p.clickRepo.GetDailyStats(ctx, code, days)
}
