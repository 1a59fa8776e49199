package wal

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type record struct {
	Seq  int    `json:"seq"`
	Name string `json:"name"`
}

func readRecords(t *testing.T, w *WAL) []record {
	t.Helper()
	var out []record
	err := w.ReadAll(func(raw []byte) error {
		var r record
		if err := json.Unmarshal(raw, &r); err != nil {
			return err
		}
		out = append(out, r)
		return nil
	})
	require.NoError(t, err)
	return out
}

func TestWALWriteAndReplay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wal.log")

	w, err := NewWAL(path)
	require.NoError(t, err)
	require.NoError(t, w.Write(record{Seq: 1, Name: "a"}))
	require.NoError(t, w.Write(record{Seq: 2, Name: "b"}))
	require.NoError(t, w.Close())

	w, err = NewWAL(path)
	require.NoError(t, err)
	defer w.Close()

	assert.Equal(t, []record{{1, "a"}, {2, "b"}}, readRecords(t, w))

	// 讀完後繼續追加
	require.NoError(t, w.Write(record{Seq: 3, Name: "c"}))
	assert.Len(t, readRecords(t, w), 3)
}

func TestWALEmpty(t *testing.T) {
	w, err := NewWAL(filepath.Join(t.TempDir(), "wal.log"))
	require.NoError(t, err)
	defer w.Close()

	assert.Empty(t, readRecords(t, w))
}

func TestWALIgnoresTornTail(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wal.log")
	content := `{"seq":1,"name":"a"}` + "\n" + `{"seq":2,"na`
	require.NoError(t, os.WriteFile(path, []byte(content), FileModePrivate))

	w, err := NewWAL(path)
	require.NoError(t, err)
	defer w.Close()

	assert.Equal(t, []record{{1, "a"}}, readRecords(t, w))
}

func TestWALTruncatesTornTailBeforeAppend(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wal.log")
	content := `{"seq":1,"name":"a"}` + "\n" + `{"seq":2,"na`
	require.NoError(t, os.WriteFile(path, []byte(content), FileModePrivate))

	w, err := NewWAL(path)
	require.NoError(t, err)
	assert.Equal(t, []record{{1, "a"}}, readRecords(t, w))

	// crash 之後的新紀錄必須接在完整紀錄後面
	require.NoError(t, w.Write(record{Seq: 3, Name: "c"}))
	require.NoError(t, w.Close())

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, `{"seq":1,"name":"a"}`+"\n"+`{"seq":3,"name":"c"}`+"\n", string(raw))

	w, err = NewWAL(path)
	require.NoError(t, err)
	defer w.Close()
	assert.Equal(t, []record{{1, "a"}, {3, "c"}}, readRecords(t, w))
}

func TestWALTornFirstRecord(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wal.log")
	require.NoError(t, os.WriteFile(path, []byte(`{"seq":1`), FileModePrivate))

	w, err := NewWAL(path)
	require.NoError(t, err)
	assert.Empty(t, readRecords(t, w))
	require.NoError(t, w.Write(record{Seq: 1, Name: "a"}))
	require.NoError(t, w.Close())

	w, err = NewWAL(path)
	require.NoError(t, err)
	defer w.Close()
	assert.Equal(t, []record{{1, "a"}}, readRecords(t, w))
}
