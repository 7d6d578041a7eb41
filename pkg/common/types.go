package common

import (
	"fmt"

	"golang.org/x/exp/constraints"
)

// Key 是索引支持的定宽有序键。非整数数据需要调用方先做保序编码。
type Key interface {
	constraints.Integer
}

// Record 是批量加载与扫描时使用的基本单元
type Record[K Key, V any] struct {
	Key   K
	Value V
}

// String 方便调试打印
func (r Record[K, V]) String() string {
	return fmt.Sprintf("Record{Key: %d, Value: %v}", r.Key, r.Value)
}

// ApproxPos is the result of a learned search: Pos is the predicted
// position, and the lower bound of the searched key lies in [Lo, Hi].
type ApproxPos struct {
	Pos int
	Lo  int
	Hi  int
}

// Width returns Hi - Lo.
func (p ApproxPos) Width() int {
	return p.Hi - p.Lo
}

// Empty reports whether the window brackets no position.
func (p ApproxPos) Empty() bool {
	return p.Hi <= p.Lo
}
