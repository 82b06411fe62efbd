package logger

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	mongoQueueSize = 4096
	mongoBatchSize = 50
	mongoDrainTick = 2 * time.Second
)

// Record is the document shape stored in MongoDB.
type Record struct {
	Time      time.Time `bson:"time"`
	Level     string    `bson:"level"`
	Msg       string    `bson:"msg"`
	RequestID string    `bson:"request_id,omitempty"`
	Method    string    `bson:"method,omitempty"`
	Path      string    `bson:"path,omitempty"`
	Status    int64     `bson:"status,omitempty"`
	Attrs     bson.M    `bson:"attrs,omitempty"`
}

// sink owns the connection and the batching goroutine shared by every
// MongoHandler derived through WithAttrs / WithGroup.
type sink struct {
	client *mongo.Client
	col    *mongo.Collection
	queue  chan Record
	done   chan struct{}
	once   sync.Once
	wg     sync.WaitGroup
}

// MongoHandler is a slog.Handler that ships records to MongoDB without
// blocking the caller. Records are dropped when the queue is full.
type MongoHandler struct {
	sink   *sink
	level  slog.Leveler
	attrs  []slog.Attr
	groups []string
}

// NewMongoHandler connects to uri and starts the background writer. Records
// below the level of inner are skipped.
func NewMongoHandler(uri, db, collection string, inner slog.Handler) (*MongoHandler, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri).
		SetConnectTimeout(5*time.Second).
		SetServerSelectionTimeout(5*time.Second).
		SetMaxPoolSize(10))
	if err != nil {
		return nil, fmt.Errorf("logger/mongo: connect: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("logger/mongo: ping: %w", err)
	}

	col := client.Database(db).Collection(collection)
	_, _ = col.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "time", Value: -1}},
	})

	s := &sink{
		client: client,
		col:    col,
		queue:  make(chan Record, mongoQueueSize),
		done:   make(chan struct{}),
	}
	s.wg.Add(1)
	go s.drain()

	return &MongoHandler{sink: s, level: levelOf(inner)}, nil
}

func levelOf(h slog.Handler) slog.Leveler {
	for _, l := range []slog.Level{slog.LevelDebug, slog.LevelInfo, slog.LevelWarn} {
		if h != nil && h.Enabled(context.Background(), l) {
			return l
		}
	}
	return slog.LevelError
}

func (h *MongoHandler) Enabled(_ context.Context, l slog.Level) bool {
	return l >= h.level.Level()
}

func (h *MongoHandler) Handle(_ context.Context, r slog.Record) error {
	select {
	case h.sink.queue <- toRecord(r, h.attrs, h.groups):
	default:
	}
	return nil
}

func (h *MongoHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := *h
	clone.attrs = append(append([]slog.Attr(nil), h.attrs...), qualify(attrs, h.groups)...)
	return &clone
}

func (h *MongoHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	clone := *h
	clone.groups = append(append([]string(nil), h.groups...), name)
	return &clone
}

// Close flushes queued records and disconnects. Safe to call more than once.
func (h *MongoHandler) Close() error {
	s := h.sink
	var err error
	s.once.Do(func() {
		close(s.done)
		s.wg.Wait()

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		err = s.client.Disconnect(ctx)
	})
	return err
}

func (s *sink) drain() {
	defer s.wg.Done()

	ticker := time.NewTicker(mongoDrainTick)
	defer ticker.Stop()

	batch := make([]interface{}, 0, mongoBatchSize)
	flush := func() {
		if len(batch) == 0 {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_, _ = s.col.InsertMany(ctx, batch)
		batch = batch[:0]
	}

	for {
		select {
		case rec := <-s.queue:
			batch = append(batch, rec)
			if len(batch) >= mongoBatchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		case <-s.done:
			for len(s.queue) > 0 {
				batch = append(batch, <-s.queue)
			}
			flush()
			return
		}
	}
}

// qualify prefixes attribute keys with the open groups ("a.b.key").
func qualify(attrs []slog.Attr, groups []string) []slog.Attr {
	if len(groups) == 0 {
		return attrs
	}
	prefix := strings.Join(groups, ".") + "."
	out := make([]slog.Attr, len(attrs))
	for i, a := range attrs {
		out[i] = slog.Attr{Key: prefix + a.Key, Value: a.Value}
	}
	return out
}

// toRecord flattens a slog record. Request fields are promoted to top-level
// document fields so they can be indexed.
func toRecord(r slog.Record, attrs []slog.Attr, groups []string) Record {
	rec := Record{
		Time:  r.Time,
		Level: r.Level.String(),
		Msg:   r.Message,
		Attrs: bson.M{},
	}

	put := func(a slog.Attr) bool {
		v := a.Value.Resolve()
		switch a.Key {
		case "request_id":
			rec.RequestID = v.String()
		case "method":
			rec.Method = v.String()
		case "path":
			rec.Path = v.String()
		case "status":
			if v.Kind() == slog.KindInt64 {
				rec.Status = v.Int64()
				return true
			}
			rec.Attrs[a.Key] = v.Any()
		default:
			rec.Attrs[a.Key] = v.Any()
		}
		return true
	}

	for _, a := range attrs {
		put(a)
	}
	var own []slog.Attr
	r.Attrs(func(a slog.Attr) bool {
		own = append(own, a)
		return true
	})
	for _, a := range qualify(own, groups) {
		put(a)
	}

	if len(rec.Attrs) == 0 {
		rec.Attrs = nil
	}
	return rec
}

// ─── Fan-out ──────────────────────────────────────────────────────────────────

// Tee sends each record to every handler that accepts its level.
type Tee struct {
	handlers []slog.Handler
}

// NewTee returns a handler writing to all hs.
func NewTee(hs ...slog.Handler) *Tee {
	return &Tee{handlers: hs}
}

func (t *Tee) Enabled(ctx context.Context, l slog.Level) bool {
	for _, h := range t.handlers {
		if h.Enabled(ctx, l) {
			return true
		}
	}
	return false
}

func (t *Tee) Handle(ctx context.Context, r slog.Record) error {
	var first error
	for _, h := range t.handlers {
		if !h.Enabled(ctx, r.Level) {
			continue
		}
		if err := h.Handle(ctx, r.Clone()); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func (t *Tee) WithAttrs(attrs []slog.Attr) slog.Handler {
	hs := make([]slog.Handler, len(t.handlers))
	for i, h := range t.handlers {
		hs[i] = h.WithAttrs(attrs)
	}
	return &Tee{handlers: hs}
}

func (t *Tee) WithGroup(name string) slog.Handler {
	hs := make([]slog.Handler, len(t.handlers))
	for i, h := range t.handlers {
		hs[i] = h.WithGroup(name)
	}
	return &Tee{handlers: hs}
}
