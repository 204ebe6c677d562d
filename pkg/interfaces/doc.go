// Package interfaces 定义 gossipsim 依赖的外部协作者接口
//
//   - runtime.go  - 分布式模拟运行时契约（send / receive / migrate / timeAdvance）
package interfaces
