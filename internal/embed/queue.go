package embed

import (
	"context"
	"sync"

	"github.com/fileseer/fileseer/internal/errors"
)

// DefaultQueueSize is the embed queue capacity. Full queue blocks
// producers, which is the backpressure that keeps extraction from
// racing ahead of a slow embedding backend.
const DefaultQueueSize = 64

// Queue serializes all embedding traffic through a single consumer
// goroutine. Backends never see concurrent calls regardless of how many
// indexing workers feed the queue, and submission order is completion
// order.
type Queue struct {
	text  TextEmbedder
	image ImageEmbedder
	jobs  chan *embedJob
	done  chan struct{}

	mu        sync.RWMutex
	closed    bool
	closeOnce sync.Once
	wg        sync.WaitGroup
}

type embedJob struct {
	texts     []string
	imageData []byte
	imageText string
	kind      jobKind
	result    chan embedResult
}

type jobKind int

const (
	jobTexts jobKind = iota
	jobImage
	jobImageText
)

type embedResult struct {
	vecs [][]float32
	vec  []float32
	err  error
}

// NewQueue creates a queue over the given backends. The image embedder
// may be nil when image indexing is disabled. Non-positive size falls
// back to DefaultQueueSize.
func NewQueue(text TextEmbedder, image ImageEmbedder, size int) *Queue {
	if size <= 0 {
		size = DefaultQueueSize
	}
	return &Queue{
		text:  text,
		image: image,
		jobs:  make(chan *embedJob, size),
		done:  make(chan struct{}),
	}
}

// Start launches the consumer goroutine. Jobs still in the queue when
// ctx is cancelled fail with the context error.
func (q *Queue) Start(ctx context.Context) {
	q.wg.Add(1)
	go func() {
		defer q.wg.Done()
		for {
			select {
			case <-ctx.Done():
				q.drain(ctx.Err())
				return
			case job, ok := <-q.jobs:
				if !ok {
					return
				}
				job.result <- q.process(ctx, job)
			}
		}
	}()
}

func (q *Queue) process(ctx context.Context, job *embedJob) embedResult {
	switch job.kind {
	case jobImage:
		if q.image == nil {
			return embedResult{err: errors.New(errors.ErrCodeEmbedderUnavailable, "no image embedder configured", nil)}
		}
		vec, err := q.image.EmbedImage(ctx, job.imageData)
		return embedResult{vec: vec, err: err}
	case jobImageText:
		if q.image == nil {
			return embedResult{err: errors.New(errors.ErrCodeEmbedderUnavailable, "no image embedder configured", nil)}
		}
		vec, err := q.image.EmbedText(ctx, job.imageText)
		return embedResult{vec: vec, err: err}
	default:
		vecs, err := q.text.EmbedBatch(ctx, job.texts)
		return embedResult{vecs: vecs, err: err}
	}
}

// drain fails every queued job after the consumer stops accepting work.
func (q *Queue) drain(cause error) {
	q.shutdown()
	for job := range q.jobs {
		job.result <- embedResult{err: errors.New(errors.ErrCodeEmbedderUnavailable, "embed queue stopped", cause)}
	}
}

// shutdown marks the queue closed and closes the job channel. The write
// lock waits out any submit still holding the read lock, so a send on the
// closed channel cannot happen.
func (q *Queue) shutdown() {
	q.closeOnce.Do(func() { close(q.done) })
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.closed {
		q.closed = true
		close(q.jobs)
	}
}

func (q *Queue) submit(ctx context.Context, job *embedJob) (embedResult, error) {
	job.result = make(chan embedResult, 1)

	q.mu.RLock()
	if q.closed {
		q.mu.RUnlock()
		return embedResult{}, errors.New(errors.ErrCodeEmbedderUnavailable, "embed queue is closed", nil)
	}
	select {
	case q.jobs <- job:
		q.mu.RUnlock()
	case <-q.done:
		q.mu.RUnlock()
		return embedResult{}, errors.New(errors.ErrCodeEmbedderUnavailable, "embed queue is closed", nil)
	case <-ctx.Done():
		q.mu.RUnlock()
		return embedResult{}, ctx.Err()
	}

	select {
	case res := <-job.result:
		return res, nil
	case <-ctx.Done():
		return embedResult{}, ctx.Err()
	}
}

// EmbedTexts embeds a batch of chunk texts in order.
func (q *Queue) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}
	res, err := q.submit(ctx, &embedJob{kind: jobTexts, texts: texts})
	if err != nil {
		return nil, err
	}
	return res.vecs, res.err
}

// EmbedImage embeds raw image bytes.
func (q *Queue) EmbedImage(ctx context.Context, data []byte) ([]float32, error) {
	res, err := q.submit(ctx, &embedJob{kind: jobImage, imageData: data})
	if err != nil {
		return nil, err
	}
	return res.vec, res.err
}

// EmbedImageQuery projects a query string into the image vector space.
func (q *Queue) EmbedImageQuery(ctx context.Context, text string) ([]float32, error) {
	res, err := q.submit(ctx, &embedJob{kind: jobImageText, imageText: text})
	if err != nil {
		return nil, err
	}
	return res.vec, res.err
}

// Depth reports how many jobs are waiting, for stats.
func (q *Queue) Depth() int { return len(q.jobs) }

// Close stops accepting jobs, waits for queued work to finish, and
// closes the backends.
func (q *Queue) Close() error {
	q.shutdown()
	q.wg.Wait()

	err := q.text.Close()
	if q.image != nil {
		if ierr := q.image.Close(); err == nil {
			err = ierr
		}
	}
	return err
}
