// Package chain implements the per-dataset append-only metadata chain:
// block storage, content hashing, and named refs. It is a
// content-hashed, directory-backed store: a hash-linked list of
// immutable blocks.
package chain

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"

	"github.com/Sumatoshi-tech/odfcore/internal/domain/metadata"
	"github.com/Sumatoshi-tech/odfcore/pkg/cache"
	"github.com/Sumatoshi-tech/odfcore/pkg/manifest"
)

// HeadRef is the only named ref this implementation maintains.
const HeadRef = "HEAD"

const (
	blocksDir = "blocks"
	refsDir   = "refs"
	dirPerm   = 0o750
)

// blockCacheSize bounds the in-memory block cache that each Chain
// handle carries on its own (Open builds a fresh one per handle):
// blocks are immutable once written and addressed by
// their own content hash, so a cached entry never needs invalidating.
const blockCacheSize = 64 * 1024 * 1024

// Chain is an append-only sequence of metadata blocks rooted at path
// on fs, plus its named refs. A Chain does not serialize its own
// calls; the repository is responsible for ensuring appends to one
// dataset are not issued concurrently.
type Chain struct {
	fs    afero.Fs
	path  string
	cache *cache.Cache[string, metadata.Block]
}

// Open returns a handle to a chain already created at path. It does
// not check that the chain exists; use ReadRef(HeadRef) to verify.
func Open(fs afero.Fs, path string) *Chain {
	return &Chain{fs: fs, path: path, cache: cache.New[string, metadata.Block](blockCacheSize)}
}

// Create initializes a new chain at path with genesis as its first
// block. genesis.PrevBlockHash must be empty and genesis.Source must
// be present.
func Create(fs afero.Fs, path string, genesis metadata.Block) (*Chain, error) {
	if genesis.PrevBlockHash != "" {
		return nil, fmt.Errorf("chain: genesis block must have empty prev_block_hash")
	}

	if genesis.Source == nil {
		return nil, fmt.Errorf("chain: genesis block must carry a source")
	}

	c := &Chain{fs: fs, path: path, cache: cache.New[string, metadata.Block](blockCacheSize)}

	if err := fs.MkdirAll(filepath.Join(path, blocksDir), dirPerm); err != nil {
		return nil, fmt.Errorf("chain: create blocks dir: %w", err)
	}

	if err := fs.MkdirAll(filepath.Join(path, refsDir), dirPerm); err != nil {
		return nil, fmt.Errorf("chain: create refs dir: %w", err)
	}

	if _, err := c.Append(genesis); err != nil {
		return nil, err
	}

	return c, nil
}

// Append computes block's content hash, writes it, and advances HEAD
// to it. block.PrevBlockHash must equal the chain's current HEAD (the
// empty string if the chain is still empty) — callers are responsible
// for reading HEAD immediately before constructing block.
func (c *Chain) Append(block metadata.Block) (string, error) {
	head, err := c.readRefOrEmpty(HeadRef)
	if err != nil {
		return "", err
	}

	if block.PrevBlockHash != head {
		return "", fmt.Errorf(
			"chain: append precondition failed: block.prev_block_hash %q does not match HEAD %q",
			block.PrevBlockHash, head,
		)
	}

	hash, err := HashBlock(block)
	if err != nil {
		return "", err
	}

	block.BlockHash = hash

	data, err := manifest.Marshal(manifest.KindMetadataBlock, block)
	if err != nil {
		return "", fmt.Errorf("chain: marshal block %s: %w", hash, err)
	}

	if err := afero.WriteFile(c.fs, c.blockPath(hash), data, 0o640); err != nil {
		return "", fmt.Errorf("chain: write block %s: %w", hash, err)
	}

	if err := afero.WriteFile(c.fs, c.refPath(HeadRef), []byte(hash), 0o640); err != nil {
		return "", fmt.Errorf("chain: advance HEAD to %s: %w", hash, err)
	}

	return hash, nil
}

// GetBlock reads the block stored under hash, through an in-memory
// cache: blocks are immutable and content-addressed, so a cache hit
// never goes stale.
func (c *Chain) GetBlock(hash string) (metadata.Block, error) {
	if block, ok := c.cache.Get(hash); ok {
		return block, nil
	}

	data, err := afero.ReadFile(c.fs, c.blockPath(hash))
	if err != nil {
		return metadata.Block{}, fmt.Errorf("chain: get block %s: %w", hash, err)
	}

	var block metadata.Block
	if err := manifest.Unmarshal(data, manifest.KindMetadataBlock, &block); err != nil {
		return metadata.Block{}, fmt.Errorf("chain: get block %s: %w", hash, err)
	}

	c.cache.Put(hash, block, int64(len(data)))

	return block, nil
}

// ReadRef returns the hash a named ref currently points to.
func (c *Chain) ReadRef(name string) (string, error) {
	data, err := afero.ReadFile(c.fs, c.refPath(name))
	if err != nil {
		return "", fmt.Errorf("chain: read ref %s: %w", name, err)
	}

	return string(data), nil
}

// readRefOrEmpty is ReadRef but treats a missing ref file as "" (an
// empty chain), which is the only state a freshly-created chain's
// refs directory can be in before its genesis block is appended.
func (c *Chain) readRefOrEmpty(name string) (string, error) {
	exists, err := afero.Exists(c.fs, c.refPath(name))
	if err != nil {
		return "", fmt.Errorf("chain: stat ref %s: %w", name, err)
	}

	if !exists {
		return "", nil
	}

	return c.ReadRef(name)
}

// IterBlocks returns a finite, forward-only iterator over the chain's
// blocks from HEAD back to genesis. Call Next until it returns false;
// iterate again (call IterBlocks again) to re-read from HEAD.
func (c *Chain) IterBlocks() (*BlockIterator, error) {
	head, err := c.readRefOrEmpty(HeadRef)
	if err != nil {
		return nil, err
	}

	return &BlockIterator{chain: c, next: head}, nil
}

// BlockIterator walks a chain from HEAD toward genesis.
type BlockIterator struct {
	chain *Chain
	next  string
	err   error
}

// Next advances the iterator. It returns false once the genesis
// block's predecessor (the empty hash) has been consumed, or once an
// error has occurred — check Err() in that case.
func (it *BlockIterator) Next() (metadata.Block, bool) {
	if it.err != nil || it.next == "" {
		return metadata.Block{}, false
	}

	block, err := it.chain.GetBlock(it.next)
	if err != nil {
		it.err = err

		return metadata.Block{}, false
	}

	it.next = block.PrevBlockHash

	return block, true
}

// Err returns the first error encountered during iteration, if any.
func (it *BlockIterator) Err() error {
	return it.err
}

// HashBlock computes the deterministic content hash of block, over
// every field except BlockHash itself — so block_hash is a pure
// function of the other fields, and append can assign it before
// persisting.
func HashBlock(block metadata.Block) (string, error) {
	unhashed := block
	unhashed.BlockHash = ""

	data, err := manifest.Marshal(manifest.KindMetadataBlock, unhashed)
	if err != nil {
		return "", fmt.Errorf("chain: hash block: %w", err)
	}

	sum := sha256.Sum256(data)

	return hex.EncodeToString(sum[:]), nil
}

func (c *Chain) blockPath(hash string) string {
	return filepath.Join(c.path, blocksDir, hash)
}

func (c *Chain) refPath(name string) string {
	return filepath.Join(c.path, refsDir, strings.ToUpper(name))
}
