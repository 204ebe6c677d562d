// Package cache 实现实体的本地去重缓存
//
// 固定容量的小数组，按插入时间（age）淘汰最旧的条目。
// 只被所属托管进程的事件循环访问，不加锁。
package cache

import (
	"fmt"

	"github.com/dep2p/go-gossipsim/pkg/types"
)

// Entry 缓存条目
type Entry struct {
	ID    types.MessageID
	Age   types.SimTime
	Valid bool
}

// Cache 去重缓存
//
// 容量在创建后不变；容量为 0 时禁用去重，所有消息都被视为新消息。
type Cache struct {
	slots []Entry
}

// New 创建容量为 size 的缓存
func New(size int) *Cache {
	if size < 0 {
		size = 0
	}
	return &Cache{slots: make([]Entry, size)}
}

// Cap 返回容量
func (c *Cache) Cap() int {
	return len(c.slots)
}

// Len 返回已占用的槽位数
func (c *Cache) Len() int {
	n := 0
	for i := range c.slots {
		if c.slots[i].Valid {
			n++
		}
	}
	return n
}

// Insert 用 (id, now) 覆盖 age 最小的槽位
//
// 空槽位优先；age 相同时取下标最小者。
func (c *Cache) Insert(id types.MessageID, now types.SimTime) {
	pos := c.oldest()
	if pos < 0 {
		return
	}
	c.slots[pos] = Entry{ID: id, Age: now, Valid: true}
}

// Contains 判断 id 是否在缓存中，命中时刷新其 age
func (c *Cache) Contains(id types.MessageID, now types.SimTime) bool {
	for i := range c.slots {
		if c.slots[i].Valid && c.slots[i].ID == id {
			c.slots[i].Age = now
			return true
		}
	}
	return false
}

func (c *Cache) oldest() int {
	pos := -1
	for i := range c.slots {
		if !c.slots[i].Valid {
			return i
		}
		if pos < 0 || c.slots[i].Age < c.slots[pos].Age {
			pos = i
		}
	}
	return pos
}

// Entries 返回所有槽位的副本（含空槽位），用于迁移
func (c *Cache) Entries() []Entry {
	out := make([]Entry, len(c.slots))
	copy(out, c.slots)
	return out
}

// Restore 从迁移快照恢复槽位，槽位数必须与容量一致
func (c *Cache) Restore(entries []Entry) error {
	if len(entries) != len(c.slots) {
		return fmt.Errorf("%w: cache has %d slots, snapshot has %d",
			types.ErrCorruptSnapshot, len(c.slots), len(entries))
	}
	copy(c.slots, entries)
	return nil
}
