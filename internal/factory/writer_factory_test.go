package factory

import (
	"errors"
	"testing"

	"Go2NetSynth/internal/config"
	"Go2NetSynth/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type nopWriter struct{ closed *int }

func (nopWriter) Write(*model.Record) error { return nil }
func (w nopWriter) Close() error {
	*w.closed++
	return nil
}

func TestCreate(t *testing.T) {
	closed := 0
	RegisterWriter("test-ok", func(config.WriterDef) (model.Writer, error) { return nopWriter{&closed}, nil })
	RegisterWriter("test-down", func(config.WriterDef) (model.Writer, error) { return nil, errors.New("connection refused") })
	assert.Panics(t, func() {
		RegisterWriter("test-ok", func(config.WriterDef) (model.Writer, error) { return nil, nil })
	})
	assert.Contains(t, Types(), "test-ok")

	cfg := &config.Config{Writers: []config.WriterDef{
		{Type: "test-ok", Enabled: true},
		{Type: "test-ok", Enabled: false},
		{Type: "test-down", Enabled: true},
	}}
	writers, err := Create(cfg)
	require.NoError(t, err)
	require.Len(t, writers, 1)
	assert.Equal(t, "test-ok", writers[0].Type)

	CloseAll(writers)
	assert.Equal(t, 1, closed)

	cfg.Writers = append(cfg.Writers, config.WriterDef{Type: "parquet", Enabled: true})
	_, err = Create(cfg)
	assert.Error(t, err)
}
