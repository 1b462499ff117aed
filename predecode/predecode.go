// Package predecode caches decoded instructions by flash address using the
// Akita cache directory.
//
// Flash is divided into blocks of BlockWords program words. A block holds
// the decoded form of each word that has been executed. Flash does not
// change while a program runs, so entries are only dropped by eviction or by
// Invalidate when a new program is loaded.
package predecode

import (
	akitacache "github.com/sarchlab/akita/v4/mem/cache"

	"github.com/sarchlab/avrsim/insts"
)

// Config holds predecode cache parameters.
type Config struct {
	// BlockWords is the number of program words per block.
	BlockWords int `json:"block_words" yaml:"block_words"`
	// Associativity is the number of ways per set.
	Associativity int `json:"associativity" yaml:"associativity"`
	// Sets is the number of sets.
	Sets int `json:"sets" yaml:"sets"`
}

// DefaultConfig returns a 2-way cache of 32 sets with 64-word blocks, which
// covers 8 KiB of flash without eviction.
func DefaultConfig() Config {
	return Config{
		BlockWords:    64,
		Associativity: 2,
		Sets:          32,
	}
}

// Statistics holds cache performance statistics.
type Statistics struct {
	Lookups   uint64
	Hits      uint64
	Misses    uint64
	Fills     uint64
	Evictions uint64
}

// Cache is a decoded-instruction cache. It implements the emulator's
// InstructionCache.
type Cache struct {
	config    Config
	blockSize uint64 // bytes

	// Akita cache directory for tag and LRU management
	directory *akitacache.DirectoryImpl

	// Decoded slots - indexed by (setID * associativity + wayID)
	dataStore [][]*insts.Instruction

	stats Statistics
}

// New creates a new cache with the given configuration.
func New(config Config) *Cache {
	blockSize := config.BlockWords * 2
	totalBlocks := config.Sets * config.Associativity

	dataStore := make([][]*insts.Instruction, totalBlocks)
	for i := range dataStore {
		dataStore[i] = make([]*insts.Instruction, config.BlockWords)
	}

	return &Cache{
		config:    config,
		blockSize: uint64(blockSize),
		directory: akitacache.NewDirectory(
			config.Sets,
			config.Associativity,
			blockSize,
			akitacache.NewLRUVictimFinder(),
		),
		dataStore: dataStore,
	}
}

// Config returns the cache configuration.
func (c *Cache) Config() Config {
	return c.config
}

// Stats returns cache statistics.
func (c *Cache) Stats() Statistics {
	return c.stats
}

// ResetStats clears cache statistics.
func (c *Cache) ResetStats() {
	c.stats = Statistics{}
}

func (c *Cache) blockIndex(block *akitacache.Block) int {
	return block.SetID*c.config.Associativity + block.WayID
}

func (c *Cache) split(pc uint32) (blockAddr uint64, slot int) {
	addr := uint64(pc)
	blockAddr = addr / c.blockSize * c.blockSize
	return blockAddr, int(addr-blockAddr) / 2
}

// Get returns the decoded instruction at byte address pc, if cached.
func (c *Cache) Get(pc uint32) (*insts.Instruction, bool) {
	c.stats.Lookups++

	blockAddr, slot := c.split(pc)
	block := c.directory.Lookup(0, blockAddr)
	if block == nil || !block.IsValid {
		c.stats.Misses++
		return nil, false
	}

	inst := c.dataStore[c.blockIndex(block)][slot]
	if inst == nil {
		c.stats.Misses++
		return nil, false
	}

	c.stats.Hits++
	c.directory.Visit(block) // Update LRU

	return inst, true
}

// Put stores the decoded instruction at byte address pc, allocating its
// block if needed.
func (c *Cache) Put(pc uint32, inst *insts.Instruction) {
	blockAddr, slot := c.split(pc)

	block := c.directory.Lookup(0, blockAddr)
	if block == nil || !block.IsValid {
		block = c.fill(blockAddr)
		if block == nil {
			return
		}
	}

	c.dataStore[c.blockIndex(block)][slot] = inst
	c.directory.Visit(block)
}

// fill claims a block for blockAddr, evicting the LRU way of its set.
func (c *Cache) fill(blockAddr uint64) *akitacache.Block {
	victim := c.directory.FindVictim(blockAddr)
	if victim == nil {
		return nil
	}

	if victim.IsValid {
		c.stats.Evictions++
	}

	slots := c.dataStore[c.blockIndex(victim)]
	for i := range slots {
		slots[i] = nil
	}

	victim.Tag = blockAddr
	victim.IsValid = true
	victim.IsDirty = false
	c.stats.Fills++

	return victim
}

// Invalidate drops every cached instruction.
func (c *Cache) Invalidate() {
	c.directory.Reset()
	for _, slots := range c.dataStore {
		for i := range slots {
			slots[i] = nil
		}
	}
}
