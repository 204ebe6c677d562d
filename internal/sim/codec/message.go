// Package codec 定义实体之间交换的消息及其线格式
//
// 每条消息由一个信封承载：
//
//	+------+----------------+-----------+
//	| kind | uvarint length |   body    |
//	+------+----------------+-----------+
//
// body 使用 protobuf 线格式逐字段编码。迁移消息的 body 额外经过
// s2 压缩并附带 blake3 校验和，损坏的快照在解码时即被拒绝。
package codec

import (
	"fmt"

	"github.com/dep2p/go-gossipsim/internal/sim/entity"
	"github.com/dep2p/go-gossipsim/pkg/types"
)

// Kind 消息类型标签
type Kind byte

const (
	KindPing      Kind = 'P'
	KindLink      Kind = 'L'
	KindStimulus  Kind = 'S'
	KindMigration Kind = 'M'
)

// String 返回类型名
func (k Kind) String() string {
	switch k {
	case KindPing:
		return "ping"
	case KindLink:
		return "link"
	case KindStimulus:
		return "stimulus"
	case KindMigration:
		return "migration"
	default:
		return fmt.Sprintf("kind(%#x)", byte(k))
	}
}

// Message 消息的和类型，只能是本包定义的四种之一
type Message interface {
	Kind() Kind
	sealed()
}

// Ping 传播中的消息
type Ping struct {
	Creator      types.EntityID
	Value        types.MessageID
	TTL          uint16
	Timestamp    types.SimTime
	// SenderDegree 发送者的邻居数，仅度相关模式使用
	SenderDegree uint32
}

// Link 拓扑构建阶段的建链请求
type Link struct{}

// Stimulus 请求接收者提高对 MissingSender 消息的转发概率
type Stimulus struct {
	MissingSender types.EntityID
}

// Migration 迁移中的实体状态
type Migration struct {
	Snapshot *entity.Snapshot
}

func (Ping) Kind() Kind      { return KindPing }
func (Link) Kind() Kind      { return KindLink }
func (Stimulus) Kind() Kind  { return KindStimulus }
func (Migration) Kind() Kind { return KindMigration }

func (Ping) sealed()      {}
func (Link) sealed()      {}
func (Stimulus) sealed()  {}
func (Migration) sealed() {}
