package middleware

import (
	"context"
	"log"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/spectraquiz/api-gateway/internal/models"
)

// RequestLogSink persists batches of request log rows.
type RequestLogSink interface {
	CreateBatch(ctx context.Context, logs []models.RequestLog) error
}

const logBatchSize = 100

// RequestLogger records per-request usage rows asynchronously. Entries go
// through a buffered channel to a background batch writer; when the channel
// is full the entry is dropped rather than blocking the request.
type RequestLogger struct {
	sink    RequestLogSink
	ch      chan models.RequestLog
	stop    chan struct{}
	done    chan struct{}
	started bool
}

func NewRequestLogger(sink RequestLogSink, bufferSize int) *RequestLogger {
	if bufferSize <= 0 {
		bufferSize = 1000
	}
	return &RequestLogger{
		sink: sink,
		ch:   make(chan models.RequestLog, bufferSize),
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}
}

// Start launches the batch writer. Rows are flushed when a batch fills or
// every five seconds, whichever comes first.
func (l *RequestLogger) Start() {
	if l.started {
		return
	}
	l.started = true

	go func() {
		defer close(l.done)

		batch := make([]models.RequestLog, 0, logBatchSize)
		ticker := time.NewTicker(5 * time.Second)
		defer ticker.Stop()

		flush := func() {
			if len(batch) == 0 {
				return
			}
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			if err := l.sink.CreateBatch(ctx, batch); err != nil {
				log.Printf("Failed to insert request logs: %v", err)
			}
			cancel()
			batch = make([]models.RequestLog, 0, logBatchSize)
		}

		for {
			select {
			case entry := <-l.ch:
				batch = append(batch, entry)
				if len(batch) >= logBatchSize {
					flush()
				}
			case <-ticker.C:
				flush()
			case <-l.stop:
				// Drain whatever is queued before exiting.
				for {
					select {
					case entry := <-l.ch:
						batch = append(batch, entry)
					default:
						flush()
						return
					}
				}
			}
		}
	}()
}

func (l *RequestLogger) Stop() {
	if !l.started {
		return
	}
	close(l.stop)
	<-l.done
	l.started = false
}

// Middleware returns the gin handler that queues one row per request.
func (l *RequestLogger) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start)

		var apiKeyID *uuid.UUID
		if v, exists := c.Get(ContextAPIKeyID); exists {
			if id, ok := v.(uuid.UUID); ok {
				apiKeyID = &id
			}
		}

		entry := models.RequestLog{
			Timestamp:      start,
			APIKeyID:       apiKeyID,
			Method:         c.Request.Method,
			Path:           c.Request.URL.Path,
			StatusCode:     c.Writer.Status(),
			ResponseTimeMs: int(duration.Milliseconds()),
			IPAddress:      c.ClientIP(),
			UserAgent:      c.Request.UserAgent(),
		}

		select {
		case l.ch <- entry:
		default:
			log.Println("Request log channel full, skipping log entry")
		}
	}
}
