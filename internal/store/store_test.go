package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rahul/steptable/internal/table"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "steptable.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStore_Snapshots(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	records := []table.Record{
		{Sequence: 1, Step: "打开首页", Expected: table.ExpectedResult{"首页加载"}},
		{Sequence: 2, Step: "点击登录", Expected: table.ExpectedResult{"弹出登录框", "焦点在用户名"}},
		{Sequence: 3, Step: "空结果"},
	}
	saved, err := s.SaveSnapshot(ctx, "https://example.test/case/1", "登录用例", records)
	require.NoError(t, err)
	require.NotEmpty(t, saved.ID)

	got, err := s.GetSnapshot(ctx, saved.ID)
	require.NoError(t, err)
	assert.Equal(t, records, got.Records)
	assert.Equal(t, "登录用例", got.Title)
	assert.WithinDuration(t, saved.CreatedAt, got.CreatedAt, time.Second)

	second, err := s.SaveSnapshot(ctx, "https://example.test/case/2", "", records[:1])
	require.NoError(t, err)

	list, err := s.ListSnapshots(ctx, 10)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, second.ID, list[0].ID)
	assert.Nil(t, list[0].Records)

	require.NoError(t, s.DeleteSnapshot(ctx, saved.ID))
	_, err = s.GetSnapshot(ctx, saved.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, s.DeleteSnapshot(ctx, saved.ID), ErrNotFound)
}

func TestStore_Operations(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	for _, op := range []Operation{
		{Action: "addTableRows", Source: "panel", Success: true, Detail: "3 -> 5"},
		{Action: "fillTableData", Source: "cli", Success: false, Detail: "item 3: not enough table rows"},
		{Action: "fillTableData", Source: "telegram", Success: true},
	} {
		require.NoError(t, s.RecordOperation(ctx, op))
	}

	ops, err := s.RecentOperations(ctx, 2)
	require.NoError(t, err)
	require.Len(t, ops, 2)
	assert.Equal(t, "cli", ops[0].Source)
	assert.False(t, ops[0].Success)
	assert.Equal(t, "telegram", ops[1].Source)
	assert.True(t, ops[1].Success)
}
