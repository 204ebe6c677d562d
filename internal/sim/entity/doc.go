// Package entity 实现模拟实体的状态存储
//
// 实体状态分为两部分：
//   - 静态部分 StaticState：changed 标志、下次发送时间、去重缓存、接收直方图
//   - 动态部分：邻居表，键为邻居 ID，值为 NeighborInfo
//
// 邻居表按插入顺序遍历，保证同一种子下的决策序列可复现。
// Snapshot/Restore 构成迁移编解码的状态侧，字节层编码见 codec 包。
package entity
