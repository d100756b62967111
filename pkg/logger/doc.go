// Package logger builds *slog.Logger instances for pgtask services.
//
// New assembles a text or JSON handler from functional options and wraps it
// with a context handler. Attributes attached with ContextWithAttrs, and any
// registered ContextExtractor results, are added to every record logged with
// that context. Workers rely on this to tag whatever a task logs with its id
// and type. NewFromConfig does the same from an environment-parsed Config:
//
//	var cfg logger.Config
//	if err := config.Load(&cfg); err != nil {
//	    return err
//	}
//	log := logger.NewFromConfig(cfg)
//	logger.SetAsDefault(log)
//
// The attribute helpers (TaskID, TaskType, WorkerID, Error, ...) keep key
// names consistent between the queue workers, the scheduler and the admin
// API. Helpers given a nil or empty value return an empty attribute, which
// slog drops, so
//
//	log.Info("task finished", logger.TaskID(task.ID), logger.Error(err))
//
// needs no nil check.
package logger
