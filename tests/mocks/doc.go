// Package mocks 提供测试用的外部协作者模拟实现
//
//   - runtime.go - MockRuntime，记录 Send/Migrate 调用并回放预置事件
package mocks
