package store

import (
	"context"
	"errors"
	"math/big"
	"path/filepath"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/ethereum/go-ethereum/common"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	alice = common.HexToAddress("0x1111111111111111111111111111111111111111")
	bob   = common.HexToAddress("0x2222222222222222222222222222222222222222")
	carol = common.HexToAddress("0x3333333333333333333333333333333333333333")
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run failed: %v", err)
	}
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return mr, client
}

func backends(t *testing.T) map[string]func(t *testing.T) Store {
	return map[string]func(t *testing.T) Store{
		"memory": func(t *testing.T) Store {
			return NewMemoryStore()
		},
		"redis": func(t *testing.T) Store {
			_, client := newTestRedis(t)
			return NewRedisStore(client, "test")
		},
		"sqlite": func(t *testing.T) Store {
			s, err := OpenSQLite(filepath.Join(t.TempDir(), "ledger.db"))
			require.NoError(t, err)
			return s
		},
	}
}

func forEachBackend(t *testing.T, fn func(t *testing.T, s Store)) {
	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) {
			s := open(t)
			t.Cleanup(func() { _ = s.Close() })
			fn(t, s)
		})
	}
}

func TestNonceTracker(t *testing.T) {
	ctx := context.Background()

	forEachBackend(t, func(t *testing.T, s Store) {
		require.NoError(t, s.View(ctx, func(tx Tx) error {
			n, err := tx.Nonce(alice)
			require.NoError(t, err)
			assert.Equal(t, int64(0), n.Int64())
			return nil
		}))

		for i := int64(0); i < 3; i++ {
			require.NoError(t, s.Update(ctx, func(tx Tx) error {
				return tx.ConsumeNonce(alice, big.NewInt(i))
			}))
		}

		err := s.Update(ctx, func(tx Tx) error {
			return tx.ConsumeNonce(alice, big.NewInt(1))
		})
		assert.ErrorIs(t, err, ErrNonceMismatch)

		require.NoError(t, s.View(ctx, func(tx Tx) error {
			n, err := tx.Nonce(alice)
			require.NoError(t, err)
			assert.Equal(t, int64(3), n.Int64())

			other, err := tx.Nonce(bob)
			require.NoError(t, err)
			assert.Equal(t, int64(0), other.Int64())
			return nil
		}))
	})
}

func TestAllowanceStore(t *testing.T) {
	ctx := context.Background()

	forEachBackend(t, func(t *testing.T, s Store) {
		require.NoError(t, s.Update(ctx, func(tx Tx) error {
			return tx.SetAllowance(alice, bob, big.NewInt(100))
		}))

		err := s.Update(ctx, func(tx Tx) error {
			return tx.DecreaseAllowance(alice, bob, big.NewInt(101))
		})
		assert.ErrorIs(t, err, ErrInsufficientAllowance)

		require.NoError(t, s.Update(ctx, func(tx Tx) error {
			return tx.DecreaseAllowance(alice, bob, big.NewInt(40))
		}))

		require.NoError(t, s.View(ctx, func(tx Tx) error {
			a, err := tx.Allowance(alice, bob)
			require.NoError(t, err)
			assert.Equal(t, "60", a.String())

			reverse, err := tx.Allowance(bob, alice)
			require.NoError(t, err)
			assert.Equal(t, int64(0), reverse.Int64())

			grantor, ok, err := tx.Grantor(bob)
			require.NoError(t, err)
			assert.True(t, ok)
			assert.Equal(t, alice, grantor)
			return nil
		}))
	})
}

func TestGrantorTracksLatestNonZeroGrant(t *testing.T) {
	ctx := context.Background()

	forEachBackend(t, func(t *testing.T, s Store) {
		require.NoError(t, s.View(ctx, func(tx Tx) error {
			_, ok, err := tx.Grantor(bob)
			require.NoError(t, err)
			assert.False(t, ok)
			return nil
		}))

		require.NoError(t, s.Update(ctx, func(tx Tx) error {
			if err := tx.SetAllowance(alice, bob, big.NewInt(5)); err != nil {
				return err
			}
			if err := tx.SetAllowance(carol, bob, big.NewInt(7)); err != nil {
				return err
			}
			// Revocations don't move the grantor.
			return tx.SetAllowance(alice, bob, big.NewInt(0))
		}))

		require.NoError(t, s.View(ctx, func(tx Tx) error {
			grantor, ok, err := tx.Grantor(bob)
			require.NoError(t, err)
			assert.True(t, ok)
			assert.Equal(t, carol, grantor)
			return nil
		}))
	})
}

func TestEmergencyRegistry(t *testing.T) {
	ctx := context.Background()

	forEachBackend(t, func(t *testing.T, s Store) {
		require.NoError(t, s.View(ctx, func(tx Tx) error {
			addr, err := tx.EmergencyAddress(alice)
			require.NoError(t, err)
			assert.Equal(t, common.Address{}, addr)
			return nil
		}))

		require.NoError(t, s.Update(ctx, func(tx Tx) error {
			return tx.SetEmergencyAddress(alice, carol)
		}))

		require.NoError(t, s.View(ctx, func(tx Tx) error {
			addr, err := tx.EmergencyAddress(alice)
			require.NoError(t, err)
			assert.Equal(t, carol, addr)
			return nil
		}))
	})
}

func TestBalanceLedger(t *testing.T) {
	ctx := context.Background()

	forEachBackend(t, func(t *testing.T, s Store) {
		require.NoError(t, s.Update(ctx, func(tx Tx) error {
			return tx.Mint(alice, big.NewInt(1000))
		}))

		err := s.Update(ctx, func(tx Tx) error {
			return tx.MoveValue(alice, bob, big.NewInt(1001))
		})
		assert.ErrorIs(t, err, ErrInsufficientBalance)

		require.NoError(t, s.Update(ctx, func(tx Tx) error {
			if err := tx.MoveValue(alice, bob, big.NewInt(300)); err != nil {
				return err
			}
			if err := tx.MoveValue(bob, bob, big.NewInt(300)); err != nil {
				return err
			}
			return tx.Burn(bob, big.NewInt(100))
		}))

		require.NoError(t, s.View(ctx, func(tx Tx) error {
			a, _ := tx.BalanceOf(alice)
			b, _ := tx.BalanceOf(bob)
			supply, err := tx.TotalSupply()
			require.NoError(t, err)
			assert.Equal(t, "700", a.String())
			assert.Equal(t, "200", b.String())
			assert.Equal(t, "900", supply.String())
			return nil
		}))

		err = s.Update(ctx, func(tx Tx) error {
			ceiling := new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))
			return tx.Mint(carol, ceiling)
		})
		assert.ErrorIs(t, err, ErrOverflow)
	})
}

func TestSignatureLedger(t *testing.T) {
	ctx := context.Background()
	key := common.HexToHash("0xabcdef")

	forEachBackend(t, func(t *testing.T, s Store) {
		require.NoError(t, s.Update(ctx, func(tx Tx) error {
			return tx.MarkSignatureUsed(alice, key)
		}))

		require.NoError(t, s.View(ctx, func(tx Tx) error {
			used, err := tx.SignatureUsed(alice, key)
			require.NoError(t, err)
			assert.True(t, used)

			used, err = tx.SignatureUsed(bob, key)
			require.NoError(t, err)
			assert.False(t, used)
			return nil
		}))
	})
}

func TestFailedUpdateLeavesNoTrace(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("boom")

	forEachBackend(t, func(t *testing.T, s Store) {
		require.NoError(t, s.Update(ctx, func(tx Tx) error {
			return tx.SetAllowance(alice, bob, big.NewInt(10))
		}))

		err := s.Update(ctx, func(tx Tx) error {
			if err := tx.ConsumeNonce(alice, big.NewInt(0)); err != nil {
				return err
			}
			if err := tx.SetAllowance(alice, bob, big.NewInt(99)); err != nil {
				return err
			}
			if err := tx.SetEmergencyAddress(alice, carol); err != nil {
				return err
			}
			return boom
		})
		assert.ErrorIs(t, err, boom)

		require.NoError(t, s.View(ctx, func(tx Tx) error {
			n, _ := tx.Nonce(alice)
			a, _ := tx.Allowance(alice, bob)
			e, _ := tx.EmergencyAddress(alice)
			assert.Equal(t, int64(0), n.Int64())
			assert.Equal(t, "10", a.String())
			assert.Equal(t, common.Address{}, e)
			return nil
		}))
	})
}

func TestViewIsReadOnly(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s Store) {
		err := s.View(context.Background(), func(tx Tx) error {
			return tx.SetEmergencyAddress(alice, bob)
		})
		assert.ErrorIs(t, err, ErrReadOnly)
	})
}

func TestConcurrentNonceConsumption(t *testing.T) {
	ctx := context.Background()

	forEachBackend(t, func(t *testing.T, s Store) {
		const workers = 8
		var (
			wg        sync.WaitGroup
			mu        sync.Mutex
			successes int
		)

		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				err := s.Update(ctx, func(tx Tx) error {
					return tx.ConsumeNonce(alice, big.NewInt(0))
				})
				if err == nil {
					mu.Lock()
					successes++
					mu.Unlock()
				}
			}()
		}
		wg.Wait()

		assert.Equal(t, 1, successes, "exactly one consumer may win nonce 0")
		require.NoError(t, s.View(ctx, func(tx Tx) error {
			n, _ := tx.Nonce(alice)
			assert.Equal(t, int64(1), n.Int64())
			return nil
		}))
	})
}

// interleave returns a write made by another client while a transaction on
// s is still open. Redis applies it at once; the locking backends queue it
// behind the open transaction, so done closes once it has committed.
func interleave(t *testing.T, s Store, balance, extra *big.Int) (write func(), done <-chan struct{}) {
	t.Helper()
	ctx := context.Background()
	ch := make(chan struct{})

	if rs, ok := s.(*RedisStore); ok {
		return func() {
			defer close(ch)
			total := new(big.Int).Add(balance, extra)
			require.NoError(t, rs.client.Set(ctx, rs.prefix+":"+balanceKey(alice), total.String(), 0).Err())
		}, ch
	}
	return func() {
		go func() {
			defer close(ch)
			assert.NoError(t, s.Update(ctx, func(tx Tx) error {
				return tx.Mint(alice, extra)
			}))
		}()
	}, ch
}

func TestRepeatedReadsAreStable(t *testing.T) {
	ctx := context.Background()

	forEachBackend(t, func(t *testing.T, s Store) {
		require.NoError(t, s.Update(ctx, func(tx Tx) error {
			return tx.Mint(alice, big.NewInt(100))
		}))

		write, done := interleave(t, s, big.NewInt(100), big.NewInt(50))
		attempts := 0
		err := s.Update(ctx, func(tx Tx) error {
			attempts++
			first, err := tx.BalanceOf(alice)
			if err != nil {
				return err
			}
			if attempts == 1 {
				write()
			}
			second, err := tx.BalanceOf(alice)
			if err != nil {
				return err
			}
			assert.Equal(t, first.String(), second.String(), "balance changed inside one transaction")
			return tx.MoveValue(alice, bob, first)
		})
		require.NoError(t, err)
		<-done

		require.NoError(t, s.View(ctx, func(tx Tx) error {
			a, _ := tx.BalanceOf(alice)
			b, _ := tx.BalanceOf(bob)
			assert.Equal(t, "150", new(big.Int).Add(a, b).String())
			return nil
		}))
	})
}

func TestRedisStoreReplaysStaleSweep(t *testing.T) {
	ctx := context.Background()
	mr, client := newTestRedis(t)
	s := NewRedisStore(client, "test")

	other := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer other.Close()

	require.NoError(t, s.Update(ctx, func(tx Tx) error {
		return tx.Mint(alice, big.NewInt(100))
	}))

	attempts := 0
	err := s.Update(ctx, func(tx Tx) error {
		attempts++
		bal, err := tx.BalanceOf(alice)
		if err != nil {
			return err
		}
		if attempts == 1 {
			if err := other.Set(ctx, "test:"+balanceKey(alice), "10", 0).Err(); err != nil {
				return err
			}
		}
		return tx.MoveValue(alice, bob, bal)
	})
	require.NoError(t, err)
	assert.Equal(t, 2, attempts)

	require.NoError(t, s.View(ctx, func(tx Tx) error {
		a, _ := tx.BalanceOf(alice)
		b, _ := tx.BalanceOf(bob)
		assert.Equal(t, int64(0), a.Int64())
		assert.Equal(t, "10", b.String())
		return nil
	}))
}

func TestRedisStoreRetriesOnConflict(t *testing.T) {
	ctx := context.Background()
	mr, client := newTestRedis(t)
	s := NewRedisStore(client, "test")

	other := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer other.Close()

	attempts := 0
	err := s.Update(ctx, func(tx Tx) error {
		attempts++
		n, err := tx.Nonce(alice)
		if err != nil {
			return err
		}
		if attempts == 1 {
			// A concurrent writer bumps the watched nonce before EXEC.
			if err := other.Set(ctx, "test:"+nonceKey(alice), "5", 0).Err(); err != nil {
				return err
			}
		}
		return tx.ConsumeNonce(alice, n)
	})
	require.NoError(t, err)
	assert.Equal(t, 2, attempts)

	v, err := client.Get(ctx, "test:"+nonceKey(alice)).Result()
	require.NoError(t, err)
	assert.Equal(t, "6", v)
}

func TestSQLiteReopenKeepsState(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "ledger.db")

	s1, err := OpenSQLite(path)
	require.NoError(t, err)
	require.NoError(t, s1.Update(ctx, func(tx Tx) error {
		return tx.Mint(alice, big.NewInt(42))
	}))
	require.NoError(t, s1.Close())

	s2, err := OpenSQLite(path)
	require.NoError(t, err)
	defer s2.Close()

	require.NoError(t, s2.View(ctx, func(tx Tx) error {
		bal, err := tx.BalanceOf(alice)
		require.NoError(t, err)
		assert.Equal(t, "42", bal.String())
		return nil
	}))
}
