// internal/sink/influx.go
package sink

import (
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"go.uber.org/zap"
)

// InfluxConfig carries the InfluxDB v2 connection settings.
type InfluxConfig struct {
	Host        string
	Token       string
	Org         string
	Bucket      string
	Measurement string
}

// Influx delivers one point per group per cycle: measurement from the
// device map, group as a tag, registers as fields. Writes go through the
// client's async API; delivery failures are logged, never surfaced to the
// poll loop.
type Influx struct {
	client influxdb2.Client
	write  api.WriteAPI
	cfg    InfluxConfig
	done   chan struct{}
}

func NewInflux(cfg InfluxConfig, log *zap.Logger) *Influx {
	client := influxdb2.NewClient(cfg.Host, cfg.Token)
	write := client.WriteAPI(cfg.Org, cfg.Bucket)

	s := &Influx{client: client, write: write, cfg: cfg, done: make(chan struct{})}

	go func() {
		defer close(s.done)
		for err := range write.Errors() {
			log.Warn("influx write failed", zap.Error(err))
		}
	}()

	return s
}

func (s *Influx) Emit(group string, values map[string]any) {
	if len(values) == 0 {
		return
	}
	p := influxdb2.NewPoint(
		s.cfg.Measurement,
		map[string]string{"group": group},
		values,
		time.Now(),
	)
	s.write.WritePoint(p)
}

func (s *Influx) Close() error {
	s.write.Flush()
	s.client.Close()
	<-s.done
	return nil
}
