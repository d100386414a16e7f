package translator

import (
	"github.com/colorfulnotion/xlate/ir"
	"github.com/colorfulnotion/xlate/log"
	"github.com/colorfulnotion/xlate/plugin"
)

// Block flags. The low bits carry the requested instruction count; zero
// means "use the maximum".
const (
	CFCountMask uint32 = 0x7fff
	CFLastIO    uint32 = 0x8000 // accept I/O on the last instruction
)

// MaxInsnsPerTB is the architecture-independent ceiling on instructions
// per block.
const MaxInsnsPerTB = 512

// TranslationBlock identifies a translated guest code region and its
// accumulated metadata. It is owned by the execution engine and
// read-only once finalized.
type TranslationBlock struct {
	PC     uint64
	CFlags uint32

	// Filled in by translation.
	Size   uint64
	ICount int
	Code   *ir.Block

	// PluginMask is this block's instrumentation-event subscriptions,
	// stamped at creation time.
	PluginMask plugin.Event

	// JumpPC are the direct-jump patch slots for block chaining; a
	// chained successor's start PC, or 0 when unchained.
	JumpPC [2]uint64
}

// Cache memoizes finished blocks by start PC. The surrounding execution
// engine serializes access; the cache itself takes no locks.
type Cache struct {
	blocks map[uint64]*TranslationBlock
}

func NewCache() *Cache {
	return &Cache{blocks: make(map[uint64]*TranslationBlock)}
}

// Lookup returns the cached block starting at pc with compatible flags,
// or nil on a miss.
func (c *Cache) Lookup(pc uint64, cflags uint32) *TranslationBlock {
	tb := c.blocks[pc]
	if tb == nil || tb.CFlags != cflags {
		return nil
	}
	return tb
}

// Insert memoizes a finished block.
func (c *Cache) Insert(tb *TranslationBlock) {
	c.blocks[tb.PC] = tb
}

// Invalidate drops every block overlapping [start, end): required when
// the underlying guest memory is modified (self-modifying code).
func (c *Cache) Invalidate(start, end uint64) {
	for pc, tb := range c.blocks {
		if pc < end && pc+tb.Size > start {
			delete(c.blocks, pc)
			log.Debug(log.TranslatorMonitoring, "block invalidated", "pc", pc, "size", tb.Size)
		}
	}
}

// Flush drops every cached block.
func (c *Cache) Flush() {
	n := len(c.blocks)
	c.blocks = make(map[uint64]*TranslationBlock)
	log.Debug(log.TranslatorMonitoring, "block cache flushed", "blocks", n)
}

// Len returns the number of cached blocks.
func (c *Cache) Len() int { return len(c.blocks) }
