package journal

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/vmihailenco/msgpack/v5"

	"doggos/pkg/core"
	"doggos/pkg/tick"
)

// RecordKind 记录类型
type RecordKind uint8

const (
	RecordSpawn RecordKind = iota + 1
	RecordTick
	RecordRemove
)

// Record 权威端每个角色每个 tick 一条记录，状态取自物理步进之后
type Record struct {
	Kind    RecordKind       `msgpack:"k"`
	Tick    tick.Number      `msgpack:"t"`
	ActorID uint32           `msgpack:"a"`
	Applied bool             `msgpack:"ap,omitempty"`
	Input   core.InputSample `msgpack:"in"`
	State   core.BodyState   `msgpack:"s"`
}

// Writer 顺序写入 msgpack 记录
type Writer struct {
	mu  sync.Mutex
	buf *bufio.Writer
	enc *msgpack.Encoder
	n   uint64
}

// NewWriter 创建写入器
func NewWriter(w io.Writer) *Writer {
	buf := bufio.NewWriter(w)
	return &Writer{
		buf: buf,
		enc: msgpack.NewEncoder(buf),
	}
}

// Write 写入一条记录
func (w *Writer) Write(rec Record) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.enc.Encode(&rec); err != nil {
		return fmt.Errorf("写入记录失败: %w", err)
	}
	w.n++
	return nil
}

// Count 已写入的记录数
func (w *Writer) Count() uint64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.n
}

// Flush 刷新缓冲
func (w *Writer) Flush() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.buf.Flush()
}

// Reader 顺序读取记录
type Reader struct {
	dec *msgpack.Decoder
}

// NewReader 创建读取器
func NewReader(r io.Reader) *Reader {
	return &Reader{dec: msgpack.NewDecoder(bufio.NewReader(r))}
}

// Next 读取下一条记录，读完时返回 io.EOF
func (r *Reader) Next() (Record, error) {
	var rec Record
	if err := r.dec.Decode(&rec); err != nil {
		if errors.Is(err, io.EOF) {
			return Record{}, io.EOF
		}
		return Record{}, fmt.Errorf("读取记录失败: %w", err)
	}
	return rec, nil
}
