package nearby

import (
	"errors"
	"fmt"

	"citymap/internal/citycache"
)

// Stage：查询流程的阶段
type Stage string

const (
	StageQuery   Stage = "query"
	StageRender  Stage = "render"
	StagePersist Stage = "persist"
)

var (
	ErrQuery       = errors.New("nearby: query failed")
	ErrRender      = errors.New("nearby: render failed")
	ErrPersistence = citycache.ErrPersistence
	// ErrSuperseded：已有更新的查询或重放开始，本次结果未应用
	ErrSuperseded  = errors.New("nearby: superseded by a newer lookup")
)

// StageError：带阶段的流程错误；errors.Is 同时匹配阶段哨兵与底层错误
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("nearby %s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

func (e *StageError) Is(target error) bool {
	switch e.Stage {
	case StageQuery:
		return target == ErrQuery
	case StageRender:
		return target == ErrRender
	case StagePersist:
		return target == ErrPersistence
	}
	return false
}
