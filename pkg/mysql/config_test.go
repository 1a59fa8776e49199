package mysql

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConfig_DSN(t *testing.T) {
	cfg := Config{Host: "db", User: "ledger", Password: "secret", DBName: "balance"}
	assert.Equal(t, "ledger:secret@tcp(db:3306)/balance?charset=utf8mb4&parseTime=True&loc=UTC", cfg.DSN())

	cfg.Port = 13306
	assert.Contains(t, cfg.DSN(), "tcp(db:13306)")
}
