// Package topology 读取 graphviz 风格的无向边列表
//
// 只识别形如 "a -- b;" 的行，其余行（graph 头、花括号、注释、空行）被忽略。
package topology

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/dep2p/go-gossipsim/pkg/types"
)

// Edge 一条边，From 端负责发送 Link
type Edge struct {
	From types.EntityID
	To   types.EntityID
}

// Parse 解析边列表
func Parse(r io.Reader) ([]Edge, error) {
	var edges []Edge
	sc := bufio.NewScanner(r)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" || strings.HasPrefix(text, "//") || strings.HasPrefix(text, "#") {
			continue
		}
		left, right, ok := strings.Cut(text, "--")
		if !ok {
			continue
		}
		right = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(right), ";"))
		from, err := parseID(left)
		if err != nil {
			return nil, fmt.Errorf("line %d: source: %w", line, err)
		}
		to, err := parseID(right)
		if err != nil {
			return nil, fmt.Errorf("line %d: destination: %w", line, err)
		}
		edges = append(edges, Edge{From: from, To: to})
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read topology: %w", err)
	}
	return edges, nil
}

// Load 从文件读取边列表
func Load(path string) ([]Edge, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open topology: %w", err)
	}
	defer f.Close()
	return Parse(f)
}

func parseID(s string) (types.EntityID, error) {
	n, err := strconv.ParseUint(strings.TrimSpace(s), 10, 32)
	if err != nil {
		return 0, err
	}
	return types.EntityID(n), nil
}
