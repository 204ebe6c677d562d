// Package introspect 提供仿真运行期间的本地自省 HTTP 服务
//
// 该服务运行在本地端口，提供 JSON 格式的仿真状态与 Prometheus 指标，
// 用于观察长时间运行的仿真。默认绑定到 127.0.0.1，不暴露到网络。
//
// # 端点
//
//	GET /debug/introspect            - 完整诊断报告 (JSON)
//	GET /debug/introspect/simulation - 时钟、各进程负载、运行时统计
//	GET /debug/introspect/runtime    - Go 运行时信息
//	GET /metrics                     - Prometheus 指标
//	GET /debug/pprof/*               - Go pprof 端点
//	GET /health                      - 健康检查
//
// # 使用示例
//
//	server := introspect.New(introspect.Config{
//	    Addr:     "127.0.0.1:6060",
//	    Runtime:  hub,
//	    Registry: m.Registry(),
//	})
//	server.Start(ctx)
//	defer server.Stop()
//
// 通过 config.Diagnostics.EnableIntrospect 启用，由 fx 生命周期管理。
package introspect
