// Package ipfs stores state snapshots as raw blocks in a local Kubo repo.
//
// It shells out to the "ipfs" CLI and needs no daemon. Snapshot CIDs are
// CIDv1 raw + sha2-256, so a block put here is addressable by the same CID
// localfs reports for it.
package ipfs

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/ipfs/go-cid"

	"xdao.co/diamond/cidutil"
	"xdao.co/diamond/storage"
)

// CAS runs block commands against the repo selected by Options.
type CAS struct {
	bin  string
	repo string
	pin  bool
}

var _ storage.CAS = (*CAS)(nil)

type Options struct {
	// Bin is the ipfs binary. Empty means "ipfs" on PATH.
	Bin string
	// Repo sets IPFS_PATH for every command. Empty inherits the environment.
	Repo string
	// Pin pins snapshots on Put so repo GC keeps them.
	Pin bool
}

func New(opts Options) *CAS {
	bin := opts.Bin
	if bin == "" {
		bin = "ipfs"
	}
	return &CAS{bin: bin, repo: opts.Repo, pin: opts.Pin}
}

// Available reports whether the configured binary can be found.
func (c *CAS) Available() bool {
	_, err := exec.LookPath(c.bin)
	return err == nil
}

func (c *CAS) Put(data []byte) (cid.Cid, error) {
	want, err := cidutil.CIDv1RawSHA256CID(data)
	if err != nil {
		return cid.Undef, err
	}

	args := []string{"block", "put", "--quiet", "--format=raw", "--mhtype=sha2-256", "--mhlen=32", "--cid-version=1"}
	if c.pin {
		args = append(args, "--pin")
	}
	out, err := c.run(data, append(args, "/dev/stdin")...)
	if err != nil {
		return cid.Undef, err
	}
	got, err := cid.Decode(strings.TrimSpace(string(out)))
	if err != nil {
		return cid.Undef, fmt.Errorf("ipfs: unexpected block put output: %w", err)
	}
	if !got.Equals(want) {
		return cid.Undef, storage.ErrCIDMismatch
	}
	return want, nil
}

func (c *CAS) Get(id cid.Cid) ([]byte, error) {
	if !id.Defined() {
		return nil, storage.ErrInvalidCID
	}
	out, err := c.run(nil, "block", "get", id.String())
	if err != nil {
		if isNotFound(err) {
			return nil, storage.ErrNotFound
		}
		return nil, err
	}
	got, err := cidutil.CIDv1RawSHA256CID(out)
	if err != nil {
		return nil, err
	}
	if !got.Equals(id) {
		return nil, storage.ErrCIDMismatch
	}
	return out, nil
}

func (c *CAS) Has(id cid.Cid) bool {
	if !id.Defined() {
		return false
	}
	_, err := c.run(nil, "block", "stat", id.String())
	return err == nil
}

func (c *CAS) run(stdin []byte, args ...string) ([]byte, error) {
	cmd := exec.Command(c.bin, args...)
	if c.repo != "" {
		cmd.Env = append(os.Environ(), "IPFS_PATH="+c.repo)
	}
	if stdin != nil {
		cmd.Stdin = bytes.NewReader(stdin)
	}
	out, err := cmd.Output()
	if err == nil {
		return out, nil
	}
	var ee *exec.ExitError
	if errors.As(err, &ee) {
		if s := strings.TrimSpace(string(ee.Stderr)); s != "" {
			return nil, fmt.Errorf("ipfs: %s", s)
		}
	}
	return nil, fmt.Errorf("ipfs: %w", err)
}

func isNotFound(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "not found")
}
