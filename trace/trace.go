// Package trace records translation and execution activity as JSON
// Lines, one record per line, for offline inspection and replay
// comparison against other engines.
package trace

// BlockRecord describes one finished translation.
type BlockRecord struct {
	PC     uint64 `json:"pc"`
	CFlags uint32 `json:"cflags,omitempty"`
	ICount int    `json:"icount"`
	Size   uint64 `json:"size"`
	Ops    int    `json:"ops,omitempty"`
	Passes int    `json:"passes,omitempty"`
}

// ExecRecord describes one executed instruction, captured through an
// instrumentation exec callback.
type ExecRecord struct {
	Vaddr uint64 `json:"vaddr"`
	Asm   string `json:"asm,omitempty"`
}

// MemRecord describes one instrumented memory access.
type MemRecord struct {
	Vaddr   uint64 `json:"vaddr"`
	Addr    uint64 `json:"addr"`
	Size    int    `json:"size"`
	IsStore bool   `json:"isStore"`
}

// Record is the envelope written to the stream; exactly one of the
// payload fields is set, discriminated by Kind.
type Record struct {
	Kind  string       `json:"kind"`
	Block *BlockRecord `json:"block,omitempty"`
	Exec  *ExecRecord  `json:"exec,omitempty"`
	Mem   *MemRecord   `json:"mem,omitempty"`
}

func NewBlockRecord(b *BlockRecord) *Record { return &Record{Kind: "block", Block: b} }

func NewExecRecord(e *ExecRecord) *Record { return &Record{Kind: "exec", Exec: e} }

func NewMemRecord(m *MemRecord) *Record { return &Record{Kind: "mem", Mem: m} }
