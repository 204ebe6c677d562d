// Package metrics 统计每个托管进程的传播计数
//
// 所有进程共享一个 prometheus.Registry，计数器以 lp 标签区分。
// Recorder 是单个进程的视图，Stats 从注册表中读回快照用于运行结束时的汇总。
package metrics
