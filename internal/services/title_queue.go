package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
)

// DefaultTitleQueue is the queue used when none is configured.
const DefaultTitleQueue = "session_titles"

// amqpChannel is the subset of *amqp.Channel the publisher uses.
type amqpChannel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

const (
	titlePublishTimeout = 5 * time.Second
	titlePublishBuffer  = 256
	titleRedialBackoff  = 2 * time.Second
)

// titleDialer opens a connection and a channel with the title queues
// declared. conn may be nil in tests.
type titleDialer func() (*amqp.Connection, amqpChannel, error)

type queuedTitle struct {
	job TitleJob
	log zerolog.Logger
}

// TitlePublisher is a TitleDispatcher that hands jobs to cmd/worker through
// RabbitMQ. Failed deliveries go to "<queue>.retry" and then "<queue>.dlq".
//
// Dispatch only enqueues into a bounded buffer; a single goroutine publishes,
// and redials when the connection closes. Jobs are dropped when the buffer is
// full.
type TitlePublisher struct {
	queue string
	dial  titleDialer

	// Owned by the publishing goroutine.
	conn     *amqp.Connection
	ch       amqpChannel
	closed   chan *amqp.Error
	lastDial time.Time

	jobs chan queuedTitle
	quit chan struct{}
	done chan struct{}
	stop sync.Once
}

// NewTitlePublisher dials url, declares the main, retry and dead-letter
// queues and starts publishing.
func NewTitlePublisher(url, queue string) (*TitlePublisher, error) {
	if queue == "" {
		queue = DefaultTitleQueue
	}
	dial := func() (*amqp.Connection, amqpChannel, error) {
		conn, err := amqp.Dial(url)
		if err != nil {
			return nil, nil, fmt.Errorf("rabbit dial: %w", err)
		}
		ch, err := conn.Channel()
		if err != nil {
			_ = conn.Close()
			return nil, nil, fmt.Errorf("rabbit channel: %w", err)
		}
		if err := DeclareTitleQueues(ch, queue); err != nil {
			_ = ch.Close()
			_ = conn.Close()
			return nil, nil, err
		}
		return conn, ch, nil
	}
	conn, ch, err := dial()
	if err != nil {
		return nil, err
	}
	return startTitlePublisher(queue, dial, conn, ch), nil
}

func startTitlePublisher(queue string, dial titleDialer, conn *amqp.Connection, ch amqpChannel) *TitlePublisher {
	p := &TitlePublisher{
		queue: queue,
		dial:  dial,
		jobs:  make(chan queuedTitle, titlePublishBuffer),
		quit:  make(chan struct{}),
		done:  make(chan struct{}),
	}
	p.attach(conn, ch)
	go p.run()
	return p
}

// DeclareTitleQueues declares queue with its retry and dead-letter queues.
// The worker calls it too so either side can start first.
func DeclareTitleQueues(ch *amqp.Channel, queue string) error {
	dlq := queue + ".dlq"
	retry := queue + ".retry"

	if _, err := ch.QueueDeclare(dlq, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare %s: %w", dlq, err)
	}
	if _, err := ch.QueueDeclare(retry, true, false, false, false, amqp.Table{
		"x-dead-letter-exchange":    "",
		"x-dead-letter-routing-key": queue,
		"x-message-ttl":             int32(30_000),
	}); err != nil {
		return fmt.Errorf("declare %s: %w", retry, err)
	}
	if _, err := ch.QueueDeclare(queue, true, false, false, false, amqp.Table{
		"x-dead-letter-exchange":    "",
		"x-dead-letter-routing-key": dlq,
	}); err != nil {
		return fmt.Errorf("declare %s: %w", queue, err)
	}
	return nil
}

// Queue returns the main queue name.
func (p *TitlePublisher) Queue() string { return p.queue }

// Dispatch enqueues job and returns without waiting for the broker.
func (p *TitlePublisher) Dispatch(ctx context.Context, job TitleJob) {
	log := zerolog.Ctx(ctx).With().Str("chat_id", job.ChatID).Logger()
	select {
	case <-p.quit:
		titleJobsTotal.WithLabelValues("dropped").Inc()
		log.Warn().Msg("title publisher closed; job dropped")
		return
	default:
	}
	select {
	case p.jobs <- queuedTitle{job: job, log: log}:
	default:
		titleJobsTotal.WithLabelValues("dropped").Inc()
		log.Warn().Msg("title publish buffer full; job dropped")
	}
}

// Close publishes what is still buffered, for at most titlePublishTimeout,
// then releases the channel and connection.
func (p *TitlePublisher) Close() {
	p.stop.Do(func() { close(p.quit) })
	<-p.done
}

func (p *TitlePublisher) run() {
	defer close(p.done)
	defer p.release()
	for {
		select {
		case it := <-p.jobs:
			p.deliver(context.Background(), it)
		case <-p.quit:
			p.drain()
			return
		}
	}
}

func (p *TitlePublisher) drain() {
	ctx, cancel := context.WithTimeout(context.Background(), titlePublishTimeout)
	defer cancel()
	for {
		select {
		case it := <-p.jobs:
			if ctx.Err() != nil {
				titleJobsTotal.WithLabelValues("dropped").Inc()
				continue
			}
			p.deliver(ctx, it)
		default:
			return
		}
	}
}

func (p *TitlePublisher) deliver(ctx context.Context, it queuedTitle) {
	select {
	case err := <-p.closed:
		it.log.Warn().Err(err).Msg("rabbitmq connection closed; redialing")
		if rerr := p.reconnect(); rerr != nil {
			it.log.Warn().Err(rerr).Msg("rabbitmq redial failed")
		}
	default:
	}

	err := p.publish(ctx, it.job)
	if errors.Is(err, amqp.ErrClosed) {
		if rerr := p.reconnect(); rerr == nil {
			err = p.publish(ctx, it.job)
		}
	}
	if err != nil {
		titleJobsTotal.WithLabelValues("publish_failed").Inc()
		it.log.Warn().Err(err).Msg("title job publish failed")
		return
	}
	titleJobsTotal.WithLabelValues("published").Inc()
}

func (p *TitlePublisher) publish(ctx context.Context, job TitleJob) error {
	if p.ch == nil {
		return amqp.ErrClosed
	}
	body, err := json.Marshal(job)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, titlePublishTimeout)
	defer cancel()

	return p.ch.PublishWithContext(ctx,
		"",
		p.queue,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now(),
			Body:         body,
		},
	)
}

// reconnect replaces the connection, at most once per titleRedialBackoff.
func (p *TitlePublisher) reconnect() error {
	if p.dial == nil {
		return errors.New("rabbit: no dialer")
	}
	if !p.lastDial.IsZero() && time.Since(p.lastDial) < titleRedialBackoff {
		return errors.New("rabbit: redial backoff")
	}
	p.lastDial = time.Now()
	conn, ch, err := p.dial()
	if err != nil {
		return err
	}
	p.release()
	p.attach(conn, ch)
	return nil
}

func (p *TitlePublisher) attach(conn *amqp.Connection, ch amqpChannel) {
	p.conn, p.ch, p.closed = conn, ch, nil
	if conn != nil {
		p.closed = conn.NotifyClose(make(chan *amqp.Error, 1))
	}
}

func (p *TitlePublisher) release() {
	if p.ch != nil {
		_ = p.ch.Close()
	}
	if p.conn != nil {
		_ = p.conn.Close()
	}
	p.conn, p.ch, p.closed = nil, nil, nil
}

// DecodeTitleJob parses a delivery body produced by Dispatch.
func DecodeTitleJob(body []byte) (TitleJob, error) {
	var job TitleJob
	if err := json.Unmarshal(body, &job); err != nil {
		return TitleJob{}, err
	}
	if job.ChatID == "" || job.UserID == "" {
		return TitleJob{}, fmt.Errorf("title job: missing chat_id or user_id")
	}
	return job, nil
}

// attemptsHeader counts deliveries of a job across retries.
const attemptsHeader = "x-attempts"

// TitleConsumer applies title jobs delivered from the main queue. A failed
// job is republished to "<queue>.retry" until MaxAttempts deliveries have
// failed, after which it is rejected into the dead-letter queue.
type TitleConsumer struct {
	Gen         *TitleGenerator
	Queue       string
	MaxAttempts int

	ch amqpChannel
}

// NewTitleConsumer builds a consumer that republishes retries on ch.
func NewTitleConsumer(gen *TitleGenerator, ch amqpChannel, queue string, maxAttempts int) *TitleConsumer {
	if queue == "" {
		queue = DefaultTitleQueue
	}
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &TitleConsumer{Gen: gen, Queue: queue, MaxAttempts: maxAttempts, ch: ch}
}

// Handle processes one delivery and settles it. The delivery is always
// acked or nacked exactly once.
func (c *TitleConsumer) Handle(ctx context.Context, d amqp.Delivery) {
	log := zerolog.Ctx(ctx)

	job, err := DecodeTitleJob(d.Body)
	if err != nil {
		titleJobsTotal.WithLabelValues("malformed").Inc()
		log.Warn().Err(err).Msg("title job malformed")
		_ = d.Nack(false, false)
		return
	}
	lg := log.With().Str("chat_id", job.ChatID).Logger()

	jobCtx, cancel := context.WithTimeout(lg.WithContext(ctx), defaultTitleTimeout)
	err = c.Gen.Apply(jobCtx, job)
	cancel()
	if err == nil {
		titleJobsTotal.WithLabelValues("applied").Inc()
		_ = d.Ack(false)
		return
	}

	attempts := deliveryAttempts(d) + 1
	if attempts >= c.MaxAttempts {
		titleJobsTotal.WithLabelValues("dead_lettered").Inc()
		lg.Error().Err(err).Int("attempts", attempts).Msg("title job dead-lettered")
		_ = d.Nack(false, false)
		return
	}
	if perr := c.retry(ctx, d, attempts); perr != nil {
		// Without a retry copy, requeue on the main queue rather than lose it.
		lg.Warn().Err(perr).Msg("title job retry publish failed")
		_ = d.Nack(false, true)
		return
	}
	titleJobsTotal.WithLabelValues("retried").Inc()
	lg.Warn().Err(err).Int("attempts", attempts).Msg("title job failed, retrying")
	_ = d.Ack(false)
}

func (c *TitleConsumer) retry(ctx context.Context, d amqp.Delivery, attempts int) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	return c.ch.PublishWithContext(ctx, "", c.Queue+".retry", false, false, amqp.Publishing{
		ContentType:  d.ContentType,
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now(),
		Headers:      amqp.Table{attemptsHeader: int32(attempts)},
		Body:         d.Body,
	})
}

// deliveryAttempts reads the failed-attempt count stamped by retry.
func deliveryAttempts(d amqp.Delivery) int {
	switch v := d.Headers[attemptsHeader].(type) {
	case int32:
		return int(v)
	case int64:
		return int(v)
	case int:
		return v
	}
	return 0
}
