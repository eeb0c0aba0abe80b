package health

import (
	"sync"

	"github.com/SlpAus/book-summaries-backend/internal/platform/logger"
)

// State 定义了系统健康状态的枚举类型
type State int

const (
	StateHealthy State = iota
	StateDegraded
	StateRebuilding
)

func (s State) String() string {
	switch s {
	case StateHealthy:
		return "健康"
	case StateDegraded:
		return "降级"
	case StateRebuilding:
		return "重建中"
	default:
		return "未知"
	}
}

// statusManager 负责线程安全地管理Redis的健康状态机。
type statusManager struct {
	mu             sync.RWMutex
	currentState   State
	lastKnownRunID string
}

func newStatusManager(initialRunID string) *statusManager {
	return &statusManager{currentState: StateHealthy, lastKnownRunID: initialRunID}
}

func (sm *statusManager) State() State {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return sm.currentState
}

func (sm *statusManager) RunID() string {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return sm.lastKnownRunID
}

// Assess 根据一次检查结果推进状态机，返回是否需要重建缓存。
func (sm *statusManager) Assess(isCurrentlyConnected bool, newRunID string) (needsRebuild bool) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	restarted := sm.lastKnownRunID != "" && sm.lastKnownRunID != newRunID

	switch sm.currentState {
	case StateHealthy:
		if !isCurrentlyConnected {
			sm.currentState = StateDegraded
			logger.Warnf("健康检查: Redis连接丢失，系统状态 -> [降级]")
		} else if restarted {
			sm.currentState = StateRebuilding
			needsRebuild = true
			logger.Warnf("健康检查: 检测到Redis重启 (run_id: %s -> %s)，系统状态 -> [重建中]", sm.lastKnownRunID, newRunID)
		}
	case StateDegraded:
		if isCurrentlyConnected {
			if restarted {
				sm.currentState = StateRebuilding
				needsRebuild = true
				logger.Warnf("健康检查: Redis已恢复但检测到重启 (run_id: %s -> %s)，系统状态 -> [重建中]", sm.lastKnownRunID, newRunID)
			} else {
				sm.currentState = StateHealthy
				logger.Infof("健康检查: Redis连接已恢复，系统状态 -> [健康]")
			}
		}
	case StateRebuilding:
		if !isCurrentlyConnected {
			sm.currentState = StateDegraded
			logger.Warnf("健康检查: 在缓存重建期间Redis连接再次丢失，系统状态 -> [降级]")
		} else {
			// 连接正常但仍处于重建状态，说明上次重建失败了
			needsRebuild = true
			logger.Infof("健康检查: 系统处于[重建中]状态，将再次尝试重建缓存...")
		}
	}

	if isCurrentlyConnected {
		sm.lastKnownRunID = newRunID
	}
	return needsRebuild
}

// MarkRebuildComplete 在一次重建尝试之后调用。
// 重建期间Redis再次重启时，重建视为无效。
func (sm *statusManager) MarkRebuildComplete(success bool, runIDAfterRebuild string) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if sm.currentState != StateRebuilding {
		return
	}

	if success && sm.lastKnownRunID != runIDAfterRebuild {
		logger.Errorf("健康检查错误: 缓存重建期间检测到Redis再次重启 (run_id: %s -> %s)。重建无效，保持[重建中]状态。", sm.lastKnownRunID, runIDAfterRebuild)
		sm.lastKnownRunID = runIDAfterRebuild
		return
	}

	if success {
		sm.currentState = StateHealthy
		logger.Infof("健康检查: 缓存重建成功，系统状态 -> [健康]")
	} else {
		logger.Errorf("健康检查错误: 缓存重建失败，系统状态保持 [重建中] 以待重试")
	}
}
