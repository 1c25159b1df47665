package runtime

import "github.com/streamforge/corex/memsys"

// Task is the unit a worker pool dequeues and executes (spec §5): a stage,
// the buffer to feed it, and the worker index the stage executes under.
type Task struct {
	Stage  *ExecutableStage
	Buf    memsys.Buffer
	Worker int
	Ctx    *PipelineExecutionContext
}

// Pool is a fixed fleet of worker goroutines draining a shared task queue.
// Stateful operators resolve concurrency by partitioning their own state
// per worker (thread-local slice stores, per-worker paged vectors) rather
// than by any locking done here (spec §5).
type Pool struct {
	tasks   chan Task
	done    chan struct{}
	onError func(Task, ExecutionResult)
}

// NewPool starts n worker goroutines, each looping `for task := range tasks`.
// onError, if non-nil, is invoked (from the worker goroutine) whenever a
// task's Execute returns Error, so callers can route it into a Failure
// reconfiguration.
func NewPool(n, queueDepth int, onError func(Task, ExecutionResult)) *Pool {
	p := &Pool{tasks: make(chan Task, queueDepth), done: make(chan struct{}), onError: onError}
	for i := 0; i < n; i++ {
		go p.loop()
	}
	return p
}

func (p *Pool) loop() {
	for task := range p.tasks {
		res := task.Stage.Execute(task.Buf, task.Ctx, task.Worker)
		task.Buf.Release()
		if res == Error && p.onError != nil {
			p.onError(task, res)
		}
	}
}

// Submit enqueues a task, blocking if the queue is full (the only
// documented suspension point besides buffer acquisition and network
// backpressure, per spec §5).
func (p *Pool) Submit(t Task) { p.tasks <- t }

// Close stops accepting new tasks (a later Submit panics); the workers exit
// once the already-queued tasks drain. It does not wait for them; callers coordinate draining through the QueryManager
// termination protocol instead.
func (p *Pool) Close() { close(p.tasks) }
