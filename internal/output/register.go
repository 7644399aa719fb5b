package output

import (
	"Go2NetSynth/internal/config"
	"Go2NetSynth/internal/factory"
	"Go2NetSynth/internal/model"
)

func init() {
	factory.RegisterWriter("text", func(def config.WriterDef) (model.Writer, error) {
		return NewTextWriter(def.Text.RootPath)
	})
	factory.RegisterWriter("gob", func(def config.WriterDef) (model.Writer, error) {
		return NewGobWriter(def.Gob.RootPath)
	})
	factory.RegisterWriter("clickhouse", func(def config.WriterDef) (model.Writer, error) {
		return NewClickHouseWriter(def.ClickHouse)
	})
	factory.RegisterWriter("nats", func(def config.WriterDef) (model.Writer, error) {
		return NewNATSWriter(def.NATS)
	})
	factory.RegisterWriter("amqp", func(def config.WriterDef) (model.Writer, error) {
		return NewAMQPWriter(def.AMQP)
	})
}
