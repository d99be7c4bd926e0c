// Package archive ships status snapshots to long-term storage.
package archive

import (
	"context"
	"fmt"
	"sync"
	"time"

	"calibration_console/internal/logger"
	"calibration_console/internal/models"

	"github.com/InfluxCommunity/influxdb3-go/v2/influxdb3"
)

const (
	measurement   = "calib_status"
	defaultBatch  = 20
	flushInterval = 5 * time.Second
	writeTimeout  = 5 * time.Second
)

// pointWriter is the subset of *influxdb3.Client the sink uses.
type pointWriter interface {
	WritePoints(ctx context.Context, points []*influxdb3.Point, options ...influxdb3.WriteOption) error
	Close() error
}

type sample struct {
	snap models.StatusSnapshot
	at   time.Time
}

// InfluxSink batches status snapshots into InfluxDB 3.
type InfluxSink struct {
	client    pointWriter
	log       *logger.Logger
	batchSize int

	queue chan sample
	done  chan struct{}
	wg    sync.WaitGroup
	once  sync.Once
}

// InfluxConfig selects the target database.
type InfluxConfig struct {
	Host     string
	Token    string
	Database string
}

// NewInfluxSink connects to InfluxDB and starts the flush loop.
func NewInfluxSink(cfg InfluxConfig, log *logger.Logger) (*InfluxSink, error) {
	client, err := influxdb3.New(influxdb3.ClientConfig{
		Host:     cfg.Host,
		Token:    cfg.Token,
		Database: cfg.Database,
	})
	if err != nil {
		return nil, fmt.Errorf("create influxdb client: %w", err)
	}
	return newInfluxSink(client, log, defaultBatch, flushInterval), nil
}

func newInfluxSink(client pointWriter, log *logger.Logger, batchSize int, every time.Duration) *InfluxSink {
	s := &InfluxSink{
		client:    client,
		log:       log,
		batchSize: batchSize,
		queue:     make(chan sample, batchSize*4),
		done:      make(chan struct{}),
	}
	s.wg.Add(1)
	go s.loop(every)
	return s
}

// Archive queues one snapshot. When the queue is full the snapshot is dropped.
func (s *InfluxSink) Archive(snap models.StatusSnapshot, at time.Time) {
	select {
	case <-s.done:
		return
	default:
	}
	select {
	case s.queue <- sample{snap: snap, at: at}:
	default:
		if s.log != nil {
			s.log.Warnw("archive_queue_full", "time", snap.Time)
		}
	}
}

// Close flushes what is queued and closes the client.
func (s *InfluxSink) Close() error {
	s.once.Do(func() { close(s.done) })
	s.wg.Wait()
	return s.client.Close()
}

func (s *InfluxSink) loop(every time.Duration) {
	defer s.wg.Done()
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	batch := make([]sample, 0, s.batchSize)
	for {
		select {
		case <-s.done:
			for {
				select {
				case smp := <-s.queue:
					batch = append(batch, smp)
				default:
					s.flush(batch)
					return
				}
			}
		case smp := <-s.queue:
			batch = append(batch, smp)
			if len(batch) >= s.batchSize {
				s.flush(batch)
				batch = batch[:0]
			}
		case <-ticker.C:
			s.flush(batch)
			batch = batch[:0]
		}
	}
}

func (s *InfluxSink) flush(batch []sample) {
	if len(batch) == 0 {
		return
	}
	points := make([]*influxdb3.Point, 0, len(batch))
	for _, smp := range batch {
		points = append(points, toPoint(smp.snap, smp.at))
	}

	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	if err := s.client.WritePoints(ctx, points); err != nil && s.log != nil {
		s.log.Errorw("archive_write_failed", "err", err, "points", len(points))
	}
}

func toPoint(snap models.StatusSnapshot, at time.Time) *influxdb3.Point {
	return influxdb3.NewPoint(
		measurement,
		map[string]string{"session_start": snap.Start},
		map[string]any{
			"elapsed": snap.Time,
			"temp1":   snap.Temp1,
			"temp2":   snap.Temp2,
			"volt1":   snap.Volt1,
			"volt2":   snap.Volt2,
			"x":       snap.Coord[0],
			"y":       snap.Coord[1],
			"z":       snap.Coord[2],
		},
		at,
	)
}
