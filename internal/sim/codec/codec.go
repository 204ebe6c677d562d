package codec

import (
	"fmt"
	"math"

	"github.com/multiformats/go-varint"
	"google.golang.org/protobuf/encoding/protowire"

	"github.com/dep2p/go-gossipsim/pkg/types"
)

// ============================================================================
//                              信封
// ============================================================================

// Marshal 编码消息
func Marshal(m Message) ([]byte, error) {
	body, err := marshalBody(m)
	if err != nil {
		return nil, err
	}
	out := make([]byte, 0, 1+varint.UvarintSize(uint64(len(body)))+len(body))
	out = append(out, byte(m.Kind()))
	out = append(out, varint.ToUvarint(uint64(len(body)))...)
	return append(out, body...), nil
}

func marshalBody(m Message) ([]byte, error) {
	switch msg := m.(type) {
	case Ping:
		return marshalPing(msg), nil
	case Link:
		return nil, nil
	case Stimulus:
		return marshalStimulus(msg), nil
	case Migration:
		return marshalMigration(msg)
	default:
		return nil, fmt.Errorf("%w: %T", types.ErrUnknownMessage, m)
	}
}

// Unmarshal 解码消息，未知类型返回 ErrUnknownMessage
func Unmarshal(data []byte) (Message, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty payload", types.ErrUnknownMessage)
	}
	kind := Kind(data[0])
	n, read, err := varint.FromUvarint(data[1:])
	if err != nil {
		return nil, fmt.Errorf("decode %s length: %w", kind, err)
	}
	body := data[1+read:]
	if uint64(len(body)) != n {
		return nil, fmt.Errorf("decode %s: body length %d, header says %d", kind, len(body), n)
	}

	switch kind {
	case KindPing:
		return unmarshalPing(body)
	case KindLink:
		return Link{}, nil
	case KindStimulus:
		return unmarshalStimulus(body)
	case KindMigration:
		return unmarshalMigration(body)
	default:
		return nil, fmt.Errorf("%w: %s", types.ErrUnknownMessage, kind)
	}
}

// CheckSize 检查负载是否超过上限
func CheckSize(payload []byte, limit int) error {
	if len(payload) > limit {
		return fmt.Errorf("%w: %d > %d bytes", types.ErrPayloadTooLarge, len(payload), limit)
	}
	return nil
}

// ============================================================================
//                              Ping / Stimulus
// ============================================================================

const (
	pingCreator   protowire.Number = 1
	pingValue     protowire.Number = 2
	pingTTL       protowire.Number = 3
	pingTimestamp protowire.Number = 4
	pingDegree    protowire.Number = 5

	stimulusMissing protowire.Number = 1
)

func marshalPing(p Ping) []byte {
	b := make([]byte, 0, 32)
	b = appendVarint(b, pingCreator, uint64(p.Creator))
	b = appendVarint(b, pingValue, uint64(p.Value))
	b = appendVarint(b, pingTTL, uint64(p.TTL))
	b = appendFloat(b, pingTimestamp, float64(p.Timestamp))
	if p.SenderDegree != 0 {
		b = appendVarint(b, pingDegree, uint64(p.SenderDegree))
	}
	return b
}

func unmarshalPing(b []byte) (Ping, error) {
	var p Ping
	err := walk(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch {
		case num == pingCreator && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			p.Creator = types.EntityID(v)
			return n, nil
		case num == pingValue && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			p.Value = types.MessageID(v)
			return n, nil
		case num == pingTTL && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n >= 0 && v > math.MaxUint16 {
				return 0, fmt.Errorf("ttl %d out of range", v)
			}
			p.TTL = uint16(v)
			return n, nil
		case num == pingTimestamp && typ == protowire.Fixed64Type:
			v, n := protowire.ConsumeFixed64(b)
			p.Timestamp = types.SimTime(math.Float64frombits(v))
			return n, nil
		case num == pingDegree && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			p.SenderDegree = uint32(v)
			return n, nil
		}
		return protowire.ConsumeFieldValue(num, typ, b), nil
	})
	if err != nil {
		return Ping{}, fmt.Errorf("decode ping: %w", err)
	}
	return p, nil
}

func marshalStimulus(s Stimulus) []byte {
	return appendVarint(nil, stimulusMissing, uint64(s.MissingSender))
}

func unmarshalStimulus(b []byte) (Stimulus, error) {
	var s Stimulus
	err := walk(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		if num == stimulusMissing && typ == protowire.VarintType {
			v, n := protowire.ConsumeVarint(b)
			s.MissingSender = types.EntityID(v)
			return n, nil
		}
		return protowire.ConsumeFieldValue(num, typ, b), nil
	})
	if err != nil {
		return Stimulus{}, fmt.Errorf("decode stimulus: %w", err)
	}
	return s, nil
}

// ============================================================================
//                              线格式辅助
// ============================================================================

func appendVarint(b []byte, num protowire.Number, v uint64) []byte {
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, v)
}

func appendFloat(b []byte, num protowire.Number, v float64) []byte {
	b = protowire.AppendTag(b, num, protowire.Fixed64Type)
	return protowire.AppendFixed64(b, math.Float64bits(v))
}

func appendBytes(b []byte, num protowire.Number, v []byte) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, v)
}

func appendBool(b []byte, num protowire.Number, v bool) []byte {
	return appendVarint(b, num, protowire.EncodeBool(v))
}

// walk 逐字段遍历 b，field 返回消费的字节数（负数为解析错误）
func walk(b []byte, field func(num protowire.Number, typ protowire.Type, b []byte) (int, error)) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return protowire.ParseError(n)
		}
		b = b[n:]
		m, err := field(num, typ, b)
		if err != nil {
			return err
		}
		if m < 0 {
			return protowire.ParseError(m)
		}
		b = b[m:]
	}
	return nil
}
