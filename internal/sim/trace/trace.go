// Package trace 输出供离线分析工具使用的传播跟踪
//
// 每个托管进程一个文件，每个事件一行：
//
//	G <10 位消息 ID>                          生成
//	R <10 位节点 ID> <10 位消息 ID> <3 位延迟>  接收
package trace

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"go.uber.org/multierr"

	"github.com/dep2p/go-gossipsim/pkg/types"
)

// Writer 跟踪输出，只被所属进程的事件循环调用
type Writer struct {
	w      *bufio.Writer
	closer io.Closer
	err    error
}

// New 包装任意 io.Writer
func New(w io.Writer) *Writer {
	tw := &Writer{w: bufio.NewWriter(w)}
	if c, ok := w.(io.Closer); ok {
		tw.closer = c
	}
	return tw
}

// Discard 返回丢弃所有输出的 Writer
func Discard() *Writer {
	return New(io.Discard)
}

// FileName 返回进程 lp 的跟踪文件名
func FileName(lp types.LPID) string {
	return fmt.Sprintf("SIM_TRACE_%03d.log", int(lp))
}

// Open 在 dir 下创建进程 lp 的跟踪文件
func Open(dir string, lp types.LPID) (*Writer, error) {
	f, err := os.Create(filepath.Join(dir, FileName(lp)))
	if err != nil {
		return nil, fmt.Errorf("create trace file: %w", err)
	}
	return New(f), nil
}

// Generated 记录消息生成
func (t *Writer) Generated(id types.MessageID) {
	t.printf("G %010d\n", uint32(id))
}

// Received 记录消息接收，delay 为接收时钟与生成时间戳之差
func (t *Writer) Received(node types.EntityID, id types.MessageID, delay int) {
	t.printf("R %010d %010d %03d\n", uint32(node), uint32(id), delay)
}

func (t *Writer) printf(format string, args ...any) {
	if t.err != nil {
		return
	}
	_, t.err = fmt.Fprintf(t.w, format, args...)
}

// Err 返回第一个写入错误
func (t *Writer) Err() error {
	return t.err
}

// Close 刷新缓冲并关闭底层文件
func (t *Writer) Close() error {
	err := multierr.Append(t.err, t.w.Flush())
	if t.closer != nil {
		err = multierr.Append(err, t.closer.Close())
	}
	return err
}

// WriteSummary 写出进程 lp 的发送总数：tracefile-messages-<lp>.trace
func WriteSummary(dir string, lp types.LPID, totalSent uint64) error {
	name := filepath.Join(dir, fmt.Sprintf("tracefile-messages-%d.trace", int(lp)))
	line := fmt.Sprintf("M %010d\n", totalSent)
	if err := os.WriteFile(name, []byte(line), 0o644); err != nil {
		return fmt.Errorf("write summary: %w", err)
	}
	return nil
}
