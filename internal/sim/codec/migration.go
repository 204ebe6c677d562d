package codec

import (
	"bytes"
	"fmt"
	"math"

	"github.com/klauspost/compress/s2"
	"google.golang.org/protobuf/encoding/protowire"
	"lukechampine.com/blake3"

	"github.com/dep2p/go-gossipsim/internal/sim/cache"
	"github.com/dep2p/go-gossipsim/internal/sim/entity"
	"github.com/dep2p/go-gossipsim/pkg/types"
)

// checksumSize blake3 校验和长度
const checksumSize = 32

// maxSnapshotSize 解压后快照的上限，防止异常长度导致过量分配
const maxSnapshotSize = 64 << 20

// 快照字段
const (
	snapID            protowire.Number = 1
	snapChanged       protowire.Number = 2
	snapNextSend      protowire.Number = 3
	snapCleanup       protowire.Number = 4
	snapCacheEntry    protowire.Number = 5
	snapHistogramSize protowire.Number = 6
	snapHistogram     protowire.Number = 7
	snapRecord        protowire.Number = 8

	cacheID    protowire.Number = 1
	cacheAge   protowire.Number = 2
	cacheValid protowire.Number = 3

	recordID       protowire.Number = 1
	recordDegree   protowire.Number = 2
	recordSlots    protowire.Number = 3
	recordStimulus protowire.Number = 4

	stimCursor    protowire.Number = 1
	stimTimeout   protowire.Number = 2
	stimIncrement protowire.Number = 3
)

// marshalMigration 编码为 s2(snapshot) || blake3(snapshot)
func marshalMigration(m Migration) ([]byte, error) {
	if m.Snapshot == nil {
		return nil, fmt.Errorf("%w: nil snapshot", types.ErrCorruptSnapshot)
	}
	raw := marshalSnapshot(m.Snapshot)
	sum := blake3.Sum256(raw)
	out := s2.Encode(nil, raw)
	return append(out, sum[:]...), nil
}

func unmarshalMigration(b []byte) (Migration, error) {
	if len(b) < checksumSize {
		return Migration{}, fmt.Errorf("%w: payload too short", types.ErrCorruptSnapshot)
	}
	compressed, want := b[:len(b)-checksumSize], b[len(b)-checksumSize:]

	n, err := s2.DecodedLen(compressed)
	if err != nil {
		return Migration{}, fmt.Errorf("%w: %v", types.ErrCorruptSnapshot, err)
	}
	if n > maxSnapshotSize {
		return Migration{}, fmt.Errorf("%w: decoded size %d", types.ErrCorruptSnapshot, n)
	}
	raw, err := s2.Decode(nil, compressed)
	if err != nil {
		return Migration{}, fmt.Errorf("%w: %v", types.ErrCorruptSnapshot, err)
	}
	sum := blake3.Sum256(raw)
	if !bytes.Equal(sum[:], want) {
		return Migration{}, fmt.Errorf("%w: checksum mismatch", types.ErrCorruptSnapshot)
	}

	snap, err := unmarshalSnapshot(raw)
	if err != nil {
		return Migration{}, fmt.Errorf("%w: %v", types.ErrCorruptSnapshot, err)
	}
	return Migration{Snapshot: snap}, nil
}

// ============================================================================
//                              快照编码
// ============================================================================

func marshalSnapshot(s *entity.Snapshot) []byte {
	var b []byte
	b = appendVarint(b, snapID, uint64(s.ID))
	b = appendBool(b, snapChanged, s.Static.Changed)
	b = appendFloat(b, snapNextSend, float64(s.Static.NextSend))
	b = appendFloat(b, snapCleanup, float64(s.Static.HistogramCleanup))

	for _, e := range s.Static.Cache {
		var eb []byte
		eb = appendVarint(eb, cacheID, uint64(e.ID))
		eb = appendFloat(eb, cacheAge, float64(e.Age))
		eb = appendBool(eb, cacheValid, e.Valid)
		b = appendBytes(b, snapCacheEntry, eb)
	}

	if s.Static.HistogramSize > 0 {
		b = appendVarint(b, snapHistogramSize, uint64(s.Static.HistogramSize))
		b = appendBytes(b, snapHistogram, s.Static.Histogram)
	}

	for _, rec := range s.Records {
		b = appendBytes(b, snapRecord, marshalRecord(rec))
	}
	return b
}

// marshalRecord 刺激表稀疏编码，只写出 Timeout 非零的槽位
func marshalRecord(rec entity.NeighborInfo) []byte {
	var b []byte
	b = appendVarint(b, recordID, uint64(rec.ID))
	if rec.Degree != 0 {
		b = appendVarint(b, recordDegree, uint64(rec.Degree))
	}
	if st := rec.Stimuli; st != nil {
		b = appendVarint(b, recordSlots, uint64(st.Len()))
		for i := 0; i < st.Len(); i++ {
			if st.Timeout[i] == 0 && st.Increment[i] == 0 {
				continue
			}
			var sb []byte
			sb = appendVarint(sb, stimCursor, uint64(i))
			sb = appendFloat(sb, stimTimeout, float64(st.Timeout[i]))
			sb = appendFloat(sb, stimIncrement, st.Increment[i])
			b = appendBytes(b, recordStimulus, sb)
		}
	}
	return b
}

func unmarshalSnapshot(b []byte) (*entity.Snapshot, error) {
	s := &entity.Snapshot{}
	err := walk(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch {
		case num == snapID && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			s.ID = types.EntityID(v)
			return n, nil
		case num == snapChanged && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			s.Static.Changed = protowire.DecodeBool(v)
			return n, nil
		case num == snapNextSend && typ == protowire.Fixed64Type:
			v, n := protowire.ConsumeFixed64(b)
			s.Static.NextSend = types.SimTime(math.Float64frombits(v))
			return n, nil
		case num == snapCleanup && typ == protowire.Fixed64Type:
			v, n := protowire.ConsumeFixed64(b)
			s.Static.HistogramCleanup = types.SimTime(math.Float64frombits(v))
			return n, nil
		case num == snapCacheEntry && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return n, nil
			}
			e, err := unmarshalCacheEntry(v)
			if err != nil {
				return 0, err
			}
			s.Static.Cache = append(s.Static.Cache, e)
			return n, nil
		case num == snapHistogramSize && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n >= 0 && v > math.MaxUint16 {
				return 0, fmt.Errorf("histogram size %d out of range", v)
			}
			s.Static.HistogramSize = int(v)
			return n, nil
		case num == snapHistogram && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			s.Static.Histogram = append([]uint8(nil), v...)
			return n, nil
		case num == snapRecord && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return n, nil
			}
			rec, err := unmarshalRecord(v)
			if err != nil {
				return 0, err
			}
			s.Records = append(s.Records, rec)
			return n, nil
		}
		return protowire.ConsumeFieldValue(num, typ, b), nil
	})
	if err != nil {
		return nil, err
	}
	return s, nil
}

func unmarshalCacheEntry(b []byte) (cache.Entry, error) {
	var e cache.Entry
	err := walk(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch {
		case num == cacheID && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			e.ID = types.MessageID(v)
			return n, nil
		case num == cacheAge && typ == protowire.Fixed64Type:
			v, n := protowire.ConsumeFixed64(b)
			e.Age = types.SimTime(math.Float64frombits(v))
			return n, nil
		case num == cacheValid && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			e.Valid = protowire.DecodeBool(v)
			return n, nil
		}
		return protowire.ConsumeFieldValue(num, typ, b), nil
	})
	return e, err
}

type stimulusSlot struct {
	cursor    int
	timeout   types.SimTime
	increment float64
}

func unmarshalRecord(b []byte) (entity.NeighborInfo, error) {
	var (
		rec   entity.NeighborInfo
		slots = -1
		stims []stimulusSlot
	)
	err := walk(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch {
		case num == recordID && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			rec.ID = types.EntityID(v)
			return n, nil
		case num == recordDegree && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			rec.Degree = uint32(v)
			return n, nil
		case num == recordSlots && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n >= 0 && v > math.MaxUint16 {
				return 0, fmt.Errorf("stimulus slots %d out of range", v)
			}
			slots = int(v)
			return n, nil
		case num == recordStimulus && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return n, nil
			}
			var slot stimulusSlot
			err := walk(v, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
				switch {
				case num == stimCursor && typ == protowire.VarintType:
					c, m := protowire.ConsumeVarint(b)
					slot.cursor = int(c)
					return m, nil
				case num == stimTimeout && typ == protowire.Fixed64Type:
					t, m := protowire.ConsumeFixed64(b)
					slot.timeout = types.SimTime(math.Float64frombits(t))
					return m, nil
				case num == stimIncrement && typ == protowire.Fixed64Type:
					i, m := protowire.ConsumeFixed64(b)
					slot.increment = math.Float64frombits(i)
					return m, nil
				}
				return protowire.ConsumeFieldValue(num, typ, b), nil
			})
			if err != nil {
				return 0, err
			}
			stims = append(stims, slot)
			return n, nil
		}
		return protowire.ConsumeFieldValue(num, typ, b), nil
	})
	if err != nil {
		return rec, err
	}

	if slots < 0 {
		if len(stims) > 0 {
			return rec, fmt.Errorf("neighbor %d: stimulus entries without table", rec.ID)
		}
		return rec, nil
	}
	rec.Stimuli = entity.NewStimulusTable(slots)
	for _, s := range stims {
		if s.cursor < 0 || s.cursor >= slots {
			return rec, fmt.Errorf("neighbor %d: stimulus cursor %d out of range", rec.ID, s.cursor)
		}
		rec.Stimuli.Set(s.cursor, s.increment, s.timeout)
	}
	return rec, nil
}
