package renderer

import (
	"runtime"
	"sync"
)

// PixelTask is a contiguous run of pixels [Start, End) within one block
type PixelTask struct {
	Block  *Block
	Start  int
	End    int
	TaskID int
}

// TaskResult contains the result from rendering a task
type TaskResult struct {
	TaskID int
	Stats  RenderStats
}

// WorkerPool manages parallel pixel rendering
type WorkerPool struct {
	taskQueue   chan PixelTask
	resultQueue chan TaskResult
	workers     []*Worker
	numWorkers  int
	wg          sync.WaitGroup
}

// Worker handles individual pixel tasks
type Worker struct {
	ID          int
	renderer    *BlockRenderer
	hint        int // Simulation block hint, reused across this worker's rays
	taskQueue   chan PixelTask
	resultQueue chan TaskResult
}

// NewWorkerPool creates a worker pool whose queues hold maxTasks entries
func NewWorkerPool(renderer *BlockRenderer, numWorkers, maxTasks int) *WorkerPool {
	if numWorkers <= 0 {
		numWorkers = runtime.NumCPU()
	}

	wp := &WorkerPool{
		taskQueue:   make(chan PixelTask, maxTasks),
		resultQueue: make(chan TaskResult, maxTasks),
		numWorkers:  numWorkers,
	}

	for i := 0; i < numWorkers; i++ {
		wp.workers = append(wp.workers, &Worker{
			ID:          i,
			renderer:    renderer,
			hint:        -1,
			taskQueue:   wp.taskQueue,
			resultQueue: wp.resultQueue,
		})
	}

	return wp
}

// Start begins all workers
func (wp *WorkerPool) Start() {
	for _, worker := range wp.workers {
		wp.wg.Add(1)
		go worker.run(&wp.wg)
	}
}

// Stop gracefully shuts down all workers after queued tasks finish
func (wp *WorkerPool) Stop() {
	close(wp.taskQueue)
	wp.wg.Wait()
	close(wp.resultQueue)
}

// SubmitTask submits a task to the worker pool
func (wp *WorkerPool) SubmitTask(task PixelTask) {
	wp.taskQueue <- task
}

// GetResult retrieves a completed task result
func (wp *WorkerPool) GetResult() (TaskResult, bool) {
	result, ok := <-wp.resultQueue
	return result, ok
}

// GetNumWorkers returns the number of workers in the pool
func (wp *WorkerPool) GetNumWorkers() int {
	return wp.numWorkers
}

// run is the main worker loop
func (w *Worker) run(wg *sync.WaitGroup) {
	defer wg.Done()

	for task := range w.taskQueue {
		// Tasks never share pixels, so blocks are written without locking
		stats := w.renderer.RenderRange(task.Block, task.Start, task.End, &w.hint)
		w.resultQueue <- TaskResult{TaskID: task.TaskID, Stats: stats}
	}
}

// splitTasks cuts every block into runs of at most chunk pixels
func splitTasks(blocks []*Block, chunk int) []PixelTask {
	var tasks []PixelTask
	for _, b := range blocks {
		for start := 0; start < b.NumPixels(); start += chunk {
			tasks = append(tasks, PixelTask{
				Block:  b,
				Start:  start,
				End:    min(start+chunk, b.NumPixels()),
				TaskID: len(tasks),
			})
		}
	}
	return tasks
}
