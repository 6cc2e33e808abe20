package stub

import (
	"context"
	"sync"
	"sync/atomic"

	"wallet-profiler/internal/solana"
)

var _ solana.RPCClient = (*RPCClient)(nil)

// RPCClient implements solana.RPCClient for testing.
type RPCClient struct {
	mu            sync.RWMutex
	Accounts      map[string]*solana.AccountInfo
	Balances      map[string]uint64
	TokenAccounts map[string][]solana.TokenAccount // keyed by owner + "/" + program

	// Err, when set, is returned by every call.
	Err error

	Calls atomic.Int64
}

// NewRPCClient creates a new stub RPC client.
func NewRPCClient() *RPCClient {
	return &RPCClient{
		Accounts:      make(map[string]*solana.AccountInfo),
		Balances:      make(map[string]uint64),
		TokenAccounts: make(map[string][]solana.TokenAccount),
	}
}

// SetTokenAccounts registers token accounts for owner under programID.
func (c *RPCClient) SetTokenAccounts(owner, programID string, accounts []solana.TokenAccount) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.TokenAccounts[owner+"/"+programID] = accounts
}

// GetAccountInfo returns the stored account, or nil when absent.
func (c *RPCClient) GetAccountInfo(_ context.Context, pubkey string) (*solana.AccountInfo, error) {
	c.Calls.Add(1)
	if c.Err != nil {
		return nil, c.Err
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.Accounts[pubkey], nil
}

// GetBalance returns the stored balance, zero when absent.
func (c *RPCClient) GetBalance(_ context.Context, pubkey string) (uint64, error) {
	c.Calls.Add(1)
	if c.Err != nil {
		return 0, c.Err
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.Balances[pubkey], nil
}

// GetTokenAccountsByOwner returns the stored token accounts.
func (c *RPCClient) GetTokenAccountsByOwner(_ context.Context, owner, programID string) ([]solana.TokenAccount, error) {
	c.Calls.Add(1)
	if c.Err != nil {
		return nil, c.Err
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	accounts := c.TokenAccounts[owner+"/"+programID]
	out := make([]solana.TokenAccount, len(accounts))
	copy(out, accounts)
	return out, nil
}
