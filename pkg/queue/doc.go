// Package queue is a small task queue for work that must not run on the
// request path.
//
// Three pieces cooperate through narrow repository interfaces:
//
//   - Enqueuer serialises a payload into a Task and stores it
//   - Worker claims pending tasks and dispatches them to a registered Handler
//   - MemoryStorage keeps tasks in process and implements both repositories
//
// Handlers are typed by payload. NewTaskHandler derives the task name from the
// payload type, so enqueueing a value of that type routes it to the handler
// without any string keys:
//
//	storage := queue.NewMemoryStorage(queue.WithCapacity(256))
//	enq, _ := queue.NewEnqueuer(storage)
//	w, _ := queue.NewWorker(storage, queue.WithMaxConcurrentTasks(4))
//	_ = w.RegisterHandler(queue.NewTaskHandler[Message](func(ctx context.Context, m Message) error {
//		return send(ctx, m)
//	}))
//	_ = w.Start(ctx)
//	_ = enq.Enqueue(ctx, Message{To: "jane@example.com"}, queue.WithMaxRetries(0))
//
// A failing task is retried with linear backoff until it has failed
// MaxRetries+1 times, then moved to the dead letter queue. MaxRetries of zero
// means a single attempt.
package queue
