package admin

import (
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/dmitrymomot/pgtask/pkg/httpserver"
	"github.com/dmitrymomot/pgtask/pkg/logger"
	"github.com/dmitrymomot/pgtask/pkg/queue"
)

// maxBodySize caps enqueue payloads.
const maxBodySize = 1 << 20

// Options configures the admin router.
type Options struct {
	Queue    queue.Queueable
	Registry *queue.Registry
	Logger   *slog.Logger
	// Checks back /readyz.
	Checks []httpserver.Check
	// CheckTimeout bounds each readiness check. Zero means no limit.
	CheckTimeout time.Duration
}

// RemovedResponse reports how many tasks a delete removed.
type RemovedResponse struct {
	Removed int64 `json:"removed"`
}

type handler struct {
	queue    queue.Queueable
	registry *queue.Registry
	logger   *slog.Logger
}

// Router mounts the health probes and the task endpoints:
//
//	GET    /healthz
//	GET    /readyz
//	POST   /tasks              enqueue tagged task metadata
//	DELETE /tasks?type=name    remove every task of a task type
//	DELETE /tasks/scheduled    remove tasks not yet due
//	GET    /tasks/{id}
//	DELETE /tasks/{id}
//
// Registry is only needed for POST /tasks; without it the route answers 501.
func Router(opts Options) (chi.Router, error) {
	if opts.Queue == nil {
		return nil, queue.ErrQueueNil
	}
	log := opts.Logger
	if log == nil {
		log = logger.Discard()
	}
	log = log.With(logger.Component("admin"))

	h := &handler{queue: opts.Queue, registry: opts.Registry, logger: log}

	r := chi.NewRouter()
	r.Use(middleware.RequestID, requestLogger(log), middleware.Recoverer)

	r.Get("/healthz", httpserver.LivenessHandler())
	r.Get("/readyz", httpserver.ReadinessHandler(log, opts.CheckTimeout, opts.Checks...))

	r.Route("/tasks", func(r chi.Router) {
		r.Post("/", h.enqueue)
		r.Delete("/", h.removeOfType)
		r.Delete("/scheduled", h.removeScheduled)
		r.Get("/{id}", h.find)
		r.Delete("/{id}", h.remove)
	})

	return r, nil
}

func (h *handler) enqueue(w http.ResponseWriter, r *http.Request) {
	if h.registry == nil {
		httpserver.WriteError(w, http.StatusNotImplemented, "enqueue is disabled")
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodySize))
	if err != nil {
		httpserver.WriteError(w, http.StatusRequestEntityTooLarge, err.Error())
		return
	}

	run, err := h.registry.Decode(body)
	if err != nil {
		httpserver.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	var task *queue.Task
	if run.Cron() != nil {
		task, err = h.queue.ScheduleTask(r.Context(), run)
	} else {
		task, err = h.queue.InsertTask(r.Context(), run)
	}
	if err != nil {
		h.internalError(w, r, "enqueue task", err)
		return
	}

	httpserver.WriteJSON(w, http.StatusCreated, task)
}

func (h *handler) find(w http.ResponseWriter, r *http.Request) {
	id, ok := taskID(w, r)
	if !ok {
		return
	}

	task, err := h.queue.FindTaskByID(r.Context(), id)
	if err != nil {
		h.internalError(w, r, "find task", err)
		return
	}
	if task == nil {
		httpserver.WriteError(w, http.StatusNotFound, queue.ErrTaskNotFound.Error())
		return
	}

	httpserver.WriteJSON(w, http.StatusOK, task)
}

func (h *handler) remove(w http.ResponseWriter, r *http.Request) {
	id, ok := taskID(w, r)
	if !ok {
		return
	}

	n, err := h.queue.RemoveTask(r.Context(), id)
	if err != nil {
		h.internalError(w, r, "remove task", err)
		return
	}
	if n == 0 {
		httpserver.WriteError(w, http.StatusNotFound, queue.ErrTaskNotFound.Error())
		return
	}

	httpserver.WriteJSON(w, http.StatusOK, RemovedResponse{Removed: n})
}

func (h *handler) removeOfType(w http.ResponseWriter, r *http.Request) {
	taskType := r.URL.Query().Get("type")
	if taskType == "" {
		httpserver.WriteError(w, http.StatusBadRequest, "type query parameter is required")
		return
	}

	n, err := h.queue.RemoveTasksOfType(r.Context(), taskType)
	if err != nil {
		h.internalError(w, r, "remove tasks of type", err)
		return
	}

	httpserver.WriteJSON(w, http.StatusOK, RemovedResponse{Removed: n})
}

func (h *handler) removeScheduled(w http.ResponseWriter, r *http.Request) {
	n, err := h.queue.RemoveAllScheduledTasks(r.Context())
	if err != nil {
		h.internalError(w, r, "remove scheduled tasks", err)
		return
	}

	httpserver.WriteJSON(w, http.StatusOK, RemovedResponse{Removed: n})
}

func (h *handler) internalError(w http.ResponseWriter, r *http.Request, op string, err error) {
	h.logger.ErrorContext(r.Context(), op+" failed", logger.Error(err))
	if r.Context().Err() != nil {
		// client went away
		return
	}
	httpserver.WriteError(w, http.StatusInternalServerError, op+" failed")
}

func taskID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpserver.WriteError(w, http.StatusBadRequest, "invalid task id")
		return uuid.Nil, false
	}
	return id, true
}
