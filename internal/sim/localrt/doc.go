// Package localrt 在单个操作系统进程内实现仿真运行时
//
// Hub 为每个托管进程提供一个 Endpoint（interfaces.Runtime 实现）。
// 所有进程在 TimeAdvance 处汇合，最后到达的进程完成一步的全局工作：
//
//  1. 推进时钟
//  2. 执行上一步提交的迁移，更新实体归属
//  3. 运行迁移策略，发出迁移通知
//  4. 按 (投递时间, 源进程, 发送序号) 顺序投递到期消息
//  5. 向每个进程追加 EndOfStep
//
// 投递顺序与 goroutine 调度无关，同种子运行结果可复现。
package localrt
