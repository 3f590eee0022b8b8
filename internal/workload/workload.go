// Package workload generates reproducible blocks for tests and benchmarks.
// Every generator is driven by a seed, the same seed always yields the same
// genesis and the same transactions.
package workload

import (
	"fmt"
	"math/rand/v2"
	"sort"

	"github.com/holiman/uint256"

	"github.com/erigontech/pevm/common"
	"github.com/erigontech/pevm/core/state"
	"github.com/erigontech/pevm/core/types"
	"github.com/erigontech/pevm/core/types/accounts"
	"github.com/erigontech/pevm/core/vm"
)

const (
	BaseFee        = 7
	InitialBalance = 1_000_000_000_000
	TokenSupply    = 1_000_000
)

var Coinbase = common.HexToAddress("0x00000000000000000000000000000000c0ffee00")

// Workload is a genesis allocation plus the block to execute on top of it.
type Workload struct {
	Name string
	Txs  types.Transactions
	Env  *types.BlockEnv

	alloc   map[common.Address]*accounts.Account
	storage map[common.Address]map[common.Hash]uint256.Int
	codes   [][]byte
}

func newWorkload(name string) *Workload {
	env := types.NewBlockEnv(1, Coinbase)
	env.BaseFee.SetUint64(BaseFee)
	return &Workload{
		Name:    name,
		Env:     env,
		alloc:   map[common.Address]*accounts.Account{},
		storage: map[common.Address]map[common.Hash]uint256.Int{},
	}
}

// NewDB returns a fresh store holding the genesis state.
func (w *Workload) NewDB() *state.InMemoryDB {
	db := state.NewInMemoryDB()
	for _, code := range w.codes {
		db.PutCode(code)
	}
	for addr, acc := range w.alloc {
		db.PutAccount(addr, acc)
	}
	for addr, slots := range w.storage {
		for k, v := range slots {
			db.PutStorage(addr, k, v)
		}
	}
	return db
}

// Accounts is the number of accounts in the genesis allocation.
func (w *Workload) Accounts() int { return len(w.alloc) }

func (w *Workload) fund(addr common.Address, balance uint64) {
	acc := accounts.NewAccount()
	acc.Balance.SetUint64(balance)
	w.alloc[addr] = &acc
}

func (w *Workload) deployToken(addr common.Address) {
	if len(w.codes) == 0 {
		w.codes = append(w.codes, vm.TokenCode)
	}
	acc := accounts.NewAccount()
	acc.Nonce = 1
	acc.CodeHash = vm.TokenCodeHash
	w.alloc[addr] = &acc
}

func (w *Workload) setStorage(addr common.Address, key common.Hash, value uint64) {
	m, ok := w.storage[addr]
	if !ok {
		m = map[common.Hash]uint256.Int{}
		w.storage[addr] = m
	}
	m[key] = *uint256.NewInt(value)
}

func (w *Workload) push(tx *types.Transaction) {
	tx.Index = len(w.Txs)
	w.Txs = append(w.Txs, tx)
}

func newRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// account derives a distinct address per (namespace, i).
func account(namespace byte, i int) common.Address {
	var a common.Address
	a[0] = namespace
	a[12] = 0xee
	for j := 0; j < 7; j++ {
		a[19-j] = byte(i >> (8 * j))
	}
	return a
}

func gasPrice(rng *rand.Rand) uint256.Int {
	return *uint256.NewInt(BaseFee + 1 + rng.Uint64N(10))
}

func transfer(rng *rand.Rand, from, to common.Address, nonce uint64) *types.Transaction {
	return &types.Transaction{
		From:     from,
		To:       &to,
		Value:    *uint256.NewInt(1 + rng.Uint64N(1000)),
		Gas:      vm.TxGas,
		GasPrice: gasPrice(rng),
		Nonce:    nonce,
	}
}

// IndependentTransfers sends n transfers between disjoint pairs of accounts.
// Apart from the beneficiary credit no two transactions touch the same
// location.
func IndependentTransfers(seed uint64, n int) *Workload {
	rng := newRand(seed)
	w := newWorkload("independent")
	for i := 0; i < n; i++ {
		from, to := account(0x01, i), account(0x02, i)
		w.fund(from, InitialBalance)
		w.push(transfer(rng, from, to, 0))
	}
	return w
}

// SelfTransfers has n accounts each sending value to itself.
func SelfTransfers(seed uint64, n int) *Workload {
	rng := newRand(seed)
	w := newWorkload("self")
	for i := 0; i < n; i++ {
		a := account(0x03, i)
		w.fund(a, InitialBalance)
		w.push(transfer(rng, a, a, 0))
	}
	return w
}

// SameSender chains the transactions of one sender with increasing nonces,
// every one of them followed by an unrelated transfer.
func SameSender(seed uint64, n int) *Workload {
	rng := newRand(seed)
	w := newWorkload("same-sender")
	sender := account(0x04, 0)
	w.fund(sender, InitialBalance)
	var nonce uint64
	for i := 0; i < n; i++ {
		if i%2 == 0 {
			to := account(0x05, rng.IntN(16))
			w.push(transfer(rng, sender, to, nonce))
			nonce++
			continue
		}
		from := account(0x06, i)
		w.fund(from, InitialBalance)
		w.push(transfer(rng, from, account(0x07, i), 0))
	}
	return w
}

// SameNonce repeats nonce 0 of a single sender n times. Exactly the first
// transaction is valid.
func SameNonce(seed uint64, n int) *Workload {
	rng := newRand(seed)
	w := newWorkload("same-nonce")
	sender := account(0x08, 0)
	w.fund(sender, InitialBalance)
	for i := 0; i < n; i++ {
		w.push(transfer(rng, sender, account(0x09, i), 0))
	}
	return w
}

// TokenClusters deploys one token per cluster and has its holders trade it.
// Transactions of one cluster conflict on the token balances, different
// clusters never do.
func TokenClusters(seed uint64, clusters, n int) *Workload {
	const holders = 8
	rng := newRand(seed)
	w := newWorkload("token-clusters")
	if clusters <= 0 {
		clusters = 1
	}

	tokens := make([]common.Address, clusters)
	for c := range tokens {
		tokens[c] = account(0x0a, c)
		w.deployToken(tokens[c])
		for h := 0; h < holders; h++ {
			holder := account(0x0b, c*holders+h)
			w.fund(holder, InitialBalance)
			w.setStorage(tokens[c], vm.TokenBalanceSlot(holder), TokenSupply)
		}
	}

	nonces := map[common.Address]uint64{}
	for i := 0; i < n; i++ {
		c := rng.IntN(clusters)
		from := account(0x0b, c*holders+rng.IntN(holders))
		to := account(0x0b, c*holders+rng.IntN(holders))
		amount := uint256.NewInt(1 + rng.Uint64N(TokenSupply/100))
		w.push(&types.Transaction{
			From:     from,
			To:       &tokens[c],
			Gas:      200_000,
			GasPrice: gasPrice(rng),
			Nonce:    nonces[from],
			Data:     vm.TokenTransferData(to, amount),
		})
		nonces[from]++
	}
	return w
}

// DeployAndCall deploys tokens inside the block while other transactions
// already call into them. The deployer of every cluster mints to its
// holders, the holders trade. In every third cluster the account at the
// future contract address sends a transaction before the deployment, so the
// deployment collides and all calls land on a plain account.
func DeployAndCall(seed uint64, n int) *Workload {
	const holders = 4
	rng := newRand(seed)
	w := newWorkload("deploy-call")
	clusters := max(1, n/32)

	type cluster struct {
		idx      int
		deployer common.Address
		token    common.Address
		squatted bool
		stage    int
	}
	cs := make([]cluster, clusters)
	for c := range cs {
		cs[c].idx = c
		cs[c].deployer = account(0x0c, c)
		cs[c].token = vm.CreateAddress(cs[c].deployer, 0)
		w.fund(cs[c].deployer, InitialBalance)
		if c%3 == 2 {
			cs[c].squatted = true
			w.fund(cs[c].token, InitialBalance)
		} else {
			cs[c].stage = 1
		}
		for h := 0; h < holders; h++ {
			w.fund(account(0x0d, c*holders+h), InitialBalance)
		}
	}

	nonces := map[common.Address]uint64{}
	call := func(from, to common.Address, data []byte) *types.Transaction {
		tx := &types.Transaction{
			From:     from,
			To:       &to,
			Gas:      200_000,
			GasPrice: gasPrice(rng),
			Nonce:    nonces[from],
			Data:     data,
		}
		nonces[from]++
		return tx
	}

	for i := 0; i < n; i++ {
		c := &cs[rng.IntN(clusters)]
		holder := func() common.Address {
			return account(0x0d, c.idx*holders+rng.IntN(holders))
		}
		switch {
		case c.stage == 0:
			w.push(transfer(rng, c.token, holder(), nonces[c.token]))
			nonces[c.token]++
			c.stage++
		case c.stage == 1:
			w.push(&types.Transaction{
				From:     c.deployer,
				Gas:      1_000_000,
				GasPrice: gasPrice(rng),
				Nonce:    nonces[c.deployer],
				Data:     vm.TokenCode,
			})
			nonces[c.deployer]++
			c.stage++
		case rng.IntN(3) == 0:
			w.push(call(c.deployer, c.token, vm.TokenMintData(holder(), uint256.NewInt(100+rng.Uint64N(100)))))
		default:
			w.push(call(holder(), c.token, vm.TokenTransferData(holder(), uint256.NewInt(1+rng.Uint64N(50)))))
		}
	}
	return w
}

type generator func(seed uint64, n int) *Workload

var generators = map[string]generator{
	"independent":    IndependentTransfers,
	"self":           SelfTransfers,
	"same-sender":    SameSender,
	"same-nonce":     SameNonce,
	"token-clusters": func(seed uint64, n int) *Workload { return TokenClusters(seed, max(1, n/64), n) },
	"deploy-call":    DeployAndCall,
}

// Names lists the generators known to New.
func Names() []string {
	names := make([]string, 0, len(generators))
	for name := range generators {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// New builds the named workload with n transactions.
func New(name string, seed uint64, n int) (*Workload, error) {
	gen, ok := generators[name]
	if !ok {
		return nil, fmt.Errorf("unknown workload %q, have %v", name, Names())
	}
	return gen(seed, n), nil
}
