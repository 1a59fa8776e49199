package wal

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"sync"
)

// 自己定義常用的權限常量
const (
	// rw-r--r-- (擁有者讀寫，其他人唯讀) - 適用於大多數檔案
	FileModeReadOnly fs.FileMode = 0644

	// rw------- (只有擁有者可讀寫) - 適用於私鑰、機密檔
	FileModePrivate fs.FileMode = 0600
)

// WAL 以 JSON Lines 格式追加寫入的日誌檔
type WAL struct {
	file *os.File
	mu   sync.Mutex
}

// NewWAL 開啟或建立一個 WAL 檔案
// O_RDWR讀寫模式
// O_APPEND 每次寫入時自動跳到文件末尾
// O_CREATE 如果文件不存在則建立
func NewWAL(path string) (*WAL, error) {
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_RDWR, FileModeReadOnly)
	if err != nil {
		return nil, fmt.Errorf("open wal %s: %w", path, err)
	}
	return &WAL{file: file}, nil
}

// Write 寫入一筆資料並刷入硬碟
// 回傳 nil 代表這筆資料已經持久化
func (w *WAL) Write(v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	raw = append(raw, '\n')

	w.mu.Lock()
	defer w.mu.Unlock()
	if _, err := w.file.Write(raw); err != nil {
		return err
	}
	return w.file.Sync()
}

// Close 關閉檔案
func (w *WAL) Close() error {
	return w.file.Close()
}

// ReadAll 從頭讀取所有資料
// callback 每次接收一筆原始 JSON，避免一次將所有資料載入記憶體。
// 檔尾若有寫到一半的紀錄 (crash 造成) 會被截掉，之後的 Write 才會接在完整的紀錄後面。
func (w *WAL) ReadAll(callback func(jsonRaw []byte) error) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	// 確保從頭讀取，寫入因 O_APPEND 仍會接在檔尾
	if _, err := w.file.Seek(0, io.SeekStart); err != nil {
		return err
	}

	decoder := json.NewDecoder(w.file)
	// lastGood 最後一筆完整紀錄結束的位置
	var lastGood int64
	for {
		var raw json.RawMessage
		if err := decoder.Decode(&raw); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			if errors.Is(err, io.ErrUnexpectedEOF) {
				return w.truncate(lastGood)
			}
			return fmt.Errorf("decode wal record: %w", err)
		}
		lastGood = decoder.InputOffset()
		if err := callback(raw); err != nil {
			return err
		}
	}
}

// truncate 截掉 offset 之後的殘缺紀錄，並補回換行讓下一筆從新的一行開始
func (w *WAL) truncate(offset int64) error {
	if err := w.file.Truncate(offset); err != nil {
		return fmt.Errorf("truncate torn wal tail: %w", err)
	}
	if offset > 0 {
		if _, err := w.file.Write([]byte{'\n'}); err != nil {
			return err
		}
	}
	return w.file.Sync()
}
