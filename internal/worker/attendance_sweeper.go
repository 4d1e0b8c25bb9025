package worker

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

var (
	ErrSweeperStarted    = errors.New("缺勤扫描任务已启动")
	ErrSweeperNotStarted = errors.New("缺勤扫描任务未启动")
)

// MissedShiftMarker 由 AttendanceService 实现
type MissedShiftMarker interface {
	MarkMissedShifts(ctx context.Context, now time.Time) (int, error)
}

// AttendanceSweeper 周期性地把已结束仍为 upcoming 的考勤标记为缺勤。
// 启动时立即执行一次，之后按 interval 执行；单次失败只记录日志。
type AttendanceSweeper struct {
	marker   MissedShiftMarker
	interval time.Duration
	logger   *zap.Logger
	now      func() time.Time

	mu      sync.Mutex
	started bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// NewAttendanceSweeper 创建扫描任务；interval <= 0 时使用 1 分钟
func NewAttendanceSweeper(marker MissedShiftMarker, interval time.Duration, logger *zap.Logger) *AttendanceSweeper {
	if interval <= 0 {
		interval = time.Minute
	}
	return &AttendanceSweeper{
		marker:   marker,
		interval: interval,
		logger:   logger,
		now:      time.Now,
	}
}

// Start 在后台启动扫描循环，ctx 取消或调用 Stop 时退出
func (s *AttendanceSweeper) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return ErrSweeperStarted
	}
	s.started = true
	s.stopCh = make(chan struct{})
	s.doneCh = make(chan struct{})

	s.logger.Info("缺勤扫描任务已启动", zap.Duration("interval", s.interval))
	go s.run(ctx, s.stopCh, s.doneCh)
	return nil
}

// Stop 通知循环退出并等待当前一轮完成
func (s *AttendanceSweeper) Stop() error {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return ErrSweeperNotStarted
	}
	s.started = false
	stopCh, doneCh := s.stopCh, s.doneCh
	s.mu.Unlock()

	close(stopCh)
	<-doneCh
	s.logger.Info("缺勤扫描任务已停止")
	return nil
}

func (s *AttendanceSweeper) run(ctx context.Context, stopCh <-chan struct{}, doneCh chan<- struct{}) {
	defer close(doneCh)

	s.sweep(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.sweep(ctx)
		case <-stopCh:
			return
		case <-ctx.Done():
			s.logger.Info("缺勤扫描任务已取消")
			return
		}
	}
}

// sweep 执行一轮标记
func (s *AttendanceSweeper) sweep(ctx context.Context) {
	n, err := s.marker.MarkMissedShifts(ctx, s.now())
	if err != nil {
		if ctx.Err() == nil {
			s.logger.Error("缺勤扫描失败", zap.Error(err))
		}
		return
	}
	if n > 0 {
		s.logger.Debug("缺勤扫描完成", zap.Int("marked", n))
	}
}
