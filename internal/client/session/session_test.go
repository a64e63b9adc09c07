package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dmitrijs2005/fieldvisit/internal/client/models"
	"github.com/dmitrijs2005/fieldvisit/internal/client/storage"
	"github.com/dmitrijs2005/fieldvisit/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCreds struct {
	cleared int
	err     error
}

func (f *fakeCreds) Clear(context.Context) error {
	f.cleared++
	return f.err
}

// fakeKV is a map-backed KV with injectable failures.
type fakeKV struct {
	data   map[string][]byte
	getErr error
	setErr error
	delErr error
	block  chan struct{}
}

func newFakeKV() *fakeKV { return &fakeKV{data: map[string][]byte{}} }

func (f *fakeKV) Get(ctx context.Context, key string) ([]byte, error) {
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			<-f.block
		}
	}
	if f.getErr != nil {
		return nil, f.getErr
	}
	return f.data[key], nil
}

func (f *fakeKV) Set(_ context.Context, key string, value []byte) error {
	if f.setErr != nil {
		return f.setErr
	}
	f.data[key] = value
	return nil
}

func (f *fakeKV) Delete(_ context.Context, keys ...string) error {
	if f.delErr != nil {
		return f.delErr
	}
	for _, k := range keys {
		delete(f.data, k)
	}
	return nil
}

var (
	uma  = models.Identity{AccountID: 611922, RoleID: 4, RoleName: "PATIENT", FullName: "uma bindu"}
	andy = models.Identity{AccountID: 630776, RoleID: 4, RoleName: "PATIENT", FullName: "Andy joe"}
)

func badgerKV(t *testing.T) *storage.KV {
	t.Helper()
	db, err := storage.Open(storage.Config{InMemory: true})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return storage.NewKV(db)
}

func TestManager_RestoreAfterRestartYieldsSameIdentity(t *testing.T) {
	kv := badgerKV(t)
	ctx := context.Background()

	m := NewManager(kv, &fakeCreds{}, 0, logging.NewNop())
	require.NoError(t, m.SetLoginResult(ctx, uma))
	require.NoError(t, m.SetLinkedIdentities(ctx, []models.Identity{uma, andy}))
	require.NoError(t, m.Login(ctx, uma))
	require.NoError(t, m.Switch(ctx, andy))

	restarted := NewManager(kv, &fakeCreds{}, 0, logging.NewNop())
	require.True(t, restarted.Restore(ctx))

	cur, ok := restarted.Current()
	require.True(t, ok)
	assert.Equal(t, andy, cur)
	assert.Equal(t, []models.Identity{uma, andy}, restarted.Linked())
	lr, ok := restarted.LoginResult()
	require.True(t, ok)
	assert.Equal(t, uma, lr)
}

func TestManager_RestoreEmptyStorageIsNoSession(t *testing.T) {
	m := NewManager(badgerKV(t), &fakeCreds{}, 0, logging.NewNop())

	assert.False(t, m.Restore(context.Background()))
	_, ok := m.Current()
	assert.False(t, ok)
}

func TestManager_RestoreCorruptOrPartialIsNoSession(t *testing.T) {
	tests := []struct {
		name string
		data map[string][]byte
	}{
		{name: "garbage current user", data: map[string][]byte{KeyCurrentUser: []byte("{not json")}},
		{name: "current user without account", data: map[string][]byte{KeyCurrentUser: []byte(`{"fullName":"x"}`)}},
		{name: "garbage linked list", data: map[string][]byte{
			KeyCurrentUser: []byte(`{"accountId":1}`),
			KeyAllUsers:    []byte(`{"item1":[]}`),
		}},
		{name: "garbage login result", data: map[string][]byte{
			KeyCurrentUser: []byte(`{"accountId":1}`),
			KeyLoginResult: []byte(`[1,2]`),
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			kv := newFakeKV()
			kv.data = tt.data
			m := NewManager(kv, &fakeCreds{}, 0, logging.NewNop())

			require.NotPanics(t, func() { assert.False(t, m.Restore(context.Background())) })
			_, ok := m.Current()
			assert.False(t, ok)
			assert.Empty(t, m.Linked())
		})
	}
}

func TestManager_RestoreReadFailureIsNoSession(t *testing.T) {
	kv := newFakeKV()
	kv.getErr = errors.New("storage offline")
	m := NewManager(kv, &fakeCreds{}, 0, logging.NewNop())

	assert.False(t, m.Restore(context.Background()))
}

func TestManager_RestoreDoesNotHang(t *testing.T) {
	kv := newFakeKV()
	kv.block = make(chan struct{})
	defer close(kv.block)

	m := NewManager(kv, &fakeCreds{}, 50*time.Millisecond, logging.NewNop())

	start := time.Now()
	assert.False(t, m.Restore(context.Background()))
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestManager_LoginPersistFailureKeepsMemory(t *testing.T) {
	kv := newFakeKV()
	kv.setErr = errors.New("read-only")
	m := NewManager(kv, &fakeCreds{}, 0, logging.NewNop())

	err := m.Login(context.Background(), uma)
	require.Error(t, err)

	cur, ok := m.Current()
	require.True(t, ok)
	assert.Equal(t, uma, cur)
}

func TestManager_LogoutClearsEverything(t *testing.T) {
	kv := badgerKV(t)
	creds := &fakeCreds{}
	ctx := context.Background()

	m := NewManager(kv, creds, 0, logging.NewNop())
	require.NoError(t, m.SetLoginResult(ctx, uma))
	require.NoError(t, m.SetLinkedIdentities(ctx, []models.Identity{uma, andy}))
	require.NoError(t, m.Login(ctx, uma))

	require.NoError(t, m.Logout(ctx))

	_, ok := m.Current()
	assert.False(t, ok)
	_, ok = m.LoginResult()
	assert.False(t, ok)
	assert.Empty(t, m.Linked())
	assert.Equal(t, 1, creds.cleared)

	restarted := NewManager(kv, creds, 0, logging.NewNop())
	assert.False(t, restarted.Restore(ctx))
}

func TestManager_LogoutPartialFailureStillClearsMemory(t *testing.T) {
	kv := newFakeKV()
	kv.delErr = errors.New("storage locked")
	creds := &fakeCreds{err: errors.New("keychain locked")}
	ctx := context.Background()

	m := NewManager(kv, creds, 0, logging.NewNop())
	require.NoError(t, m.Login(ctx, uma))

	err := m.Logout(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, kv.delErr)
	assert.ErrorIs(t, err, creds.err)
	assert.Equal(t, 1, creds.cleared, "credential clear must be attempted even when storage fails")

	_, ok := m.Current()
	assert.False(t, ok)
}

func TestManager_LinkedReturnsCopy(t *testing.T) {
	m := NewManager(newFakeKV(), &fakeCreds{}, 0, logging.NewNop())
	require.NoError(t, m.SetLinkedIdentities(context.Background(), []models.Identity{uma}))

	got := m.Linked()
	got[0].FullName = "mutated"

	assert.Equal(t, "uma bindu", m.Linked()[0].FullName)
}
