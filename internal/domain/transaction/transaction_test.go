package transaction

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingTx struct {
	committed  bool
	rolledBack bool
}

func (t *recordingTx) Commit() error {
	t.committed = true
	return nil
}

func (t *recordingTx) Rollback() error {
	if !t.committed {
		t.rolledBack = true
	}
	return nil
}

type recordingManager struct {
	tx  *recordingTx
	err error
}

func (m *recordingManager) Begin(context.Context) (Tx, error) {
	if m.err != nil {
		return nil, m.err
	}
	m.tx = &recordingTx{}
	return m.tx, nil
}

func TestRun(t *testing.T) {
	t.Run("成功時はコミットする", func(t *testing.T) {
		m := &recordingManager{}
		err := Run(context.Background(), m, func(Tx) error { return nil })
		require.NoError(t, err)
		assert.True(t, m.tx.committed)
		assert.False(t, m.tx.rolledBack)
	})

	t.Run("失敗時はロールバックしてエラーを返す", func(t *testing.T) {
		m := &recordingManager{}
		want := errors.New("boom")
		err := Run(context.Background(), m, func(Tx) error { return want })
		assert.ErrorIs(t, err, want)
		assert.False(t, m.tx.committed)
		assert.True(t, m.tx.rolledBack)
	})

	t.Run("開始に失敗した場合", func(t *testing.T) {
		want := errors.New("no conn")
		err := Run(context.Background(), &recordingManager{err: want}, func(Tx) error {
			t.Fatal("呼ばれてはいけない")
			return nil
		})
		assert.ErrorIs(t, err, want)
	})
}
