// Package dissemination 实现 gossip 消息的生成、接收与转发
//
// Engine 在单个逻辑进程内运行，所有状态都经 simctx.Context 访问。
// 转发决策按传播模式分派：
//
//	广播          一次全局判定，通过后发给除转发者和创建者外的全部邻居
//	固定概率      每个邻居先抽样再做排除检查
//	自适应        同固定概率，阈值叠加邻居的刺激增量
//	度相关        先做排除检查，再抽样；邻居度数小于 3 时无条件转发
//
// 随机数的抽取顺序是确定性的一部分，修改判定顺序会改变同种子下的运行结果。
package dissemination
