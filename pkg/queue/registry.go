package queue

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// discriminatorKey is the metadata key holding the variant name.
// Runnables must not use it for their own fields.
const discriminatorKey = "type"

// Variant binds a discriminator to a concrete Runnable type.
type Variant struct {
	name   string
	typ    reflect.Type
	decode func(data []byte) (Runnable, error)
	create func() Runnable
}

// VariantOf declares T as a task variant stored under name.
// An empty name falls back to the qualified Go type name, e.g. "tasks.SendEmail".
func VariantOf[T Runnable](name string) Variant {
	typ := reflect.TypeFor[T]()
	if name == "" {
		var zero T
		name = qualifiedStructName(zero)
	}

	return Variant{
		name: name,
		typ:  typ,
		decode: func(data []byte) (Runnable, error) {
			var t T
			if err := json.Unmarshal(data, &t); err != nil {
				return nil, err
			}
			return t, nil
		},
		create: func() Runnable {
			if typ.Kind() == reflect.Pointer {
				return reflect.New(typ.Elem()).Interface().(Runnable)
			}
			var t T
			return t
		},
	}
}

// Name returns the discriminator of the variant
func (v Variant) Name() string {
	return v.name
}

// Registry maps discriminators to Runnable types. It is immutable once built
// and safe for concurrent use.
type Registry struct {
	byName map[string]Variant
	byType map[reflect.Type]string
}

// NewRegistry builds a registry from the given variants
func NewRegistry(variants ...Variant) (*Registry, error) {
	r := &Registry{
		byName: make(map[string]Variant, len(variants)),
		byType: make(map[reflect.Type]string, len(variants)),
	}

	for _, v := range variants {
		if v.typ == nil || v.typ.Kind() == reflect.Interface {
			return nil, fmt.Errorf("variant %q must be a concrete type", v.name)
		}
		if _, exists := r.byName[v.name]; exists {
			return nil, fmt.Errorf("%w: discriminator %q", ErrTaskAlreadyRegistered, v.name)
		}
		if prev, exists := r.byType[v.typ]; exists {
			return nil, fmt.Errorf("%w: type %s already registered as %q", ErrTaskAlreadyRegistered, v.typ, prev)
		}
		r.byName[v.name] = v
		r.byType[v.typ] = v.name
	}

	return r, nil
}

// MustNewRegistry is like NewRegistry but panics on error
func MustNewRegistry(variants ...Variant) *Registry {
	r, err := NewRegistry(variants...)
	if err != nil {
		panic(err)
	}
	return r
}

// Names returns the registered discriminators in sorted order
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.byName))
	for name := range r.byName {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Discriminator returns the registered name of the runnable's type
func (r *Registry) Discriminator(run Runnable) (string, error) {
	if run == nil {
		return "", ErrRunnableNil
	}
	name, ok := r.byType[reflect.TypeOf(run)]
	if !ok {
		return "", fmt.Errorf("%w: %T", ErrUnregisteredRunnable, run)
	}
	return name, nil
}

// Encode serializes the runnable into task metadata: its JSON object with the
// discriminator added under the "type" key. Keys are sorted, so equal runnables
// always produce byte-identical metadata.
func (r *Registry) Encode(run Runnable) (json.RawMessage, error) {
	name, err := r.Discriminator(run)
	if err != nil {
		return nil, err
	}

	data, err := json.Marshal(run)
	if err != nil {
		return nil, fmt.Errorf("%w: %T: %w", ErrPayloadMarshal, run, err)
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil || fields == nil {
		return nil, fmt.Errorf("%w: %T", ErrPayloadNotObject, run)
	}

	tag, _ := json.Marshal(name)
	fields[discriminatorKey] = tag

	metadata, err := json.Marshal(fields)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPayloadMarshal, err)
	}
	return metadata, nil
}

// Decode reconstructs the concrete Runnable stored in task metadata.
// Every error it returns wraps ErrDecodeTask: the task can never succeed
// with the current set of registered variants.
func (r *Registry) Decode(metadata json.RawMessage) (Runnable, error) {
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(metadata, &head); err != nil {
		return nil, fmt.Errorf("%w: %w: %w", ErrDecodeTask, ErrCorruptMetadata, err)
	}

	v, ok := r.byName[head.Type]
	if !ok {
		return nil, fmt.Errorf("%w: %w: %q", ErrDecodeTask, ErrUnknownDiscriminator, head.Type)
	}

	run, err := v.decode(metadata)
	if err != nil {
		return nil, fmt.Errorf("%w: %w: variant %q: %w", ErrDecodeTask, ErrCorruptMetadata, v.name, err)
	}
	return run, nil
}

// Recurring returns a zero-value instance of every variant that declares a
// recurring schedule.
func (r *Registry) Recurring() []Runnable {
	var out []Runnable
	for _, name := range r.Names() {
		run := r.byName[name].create()
		if run.Cron().Recurring() {
			out = append(out, run)
		}
	}
	return out
}

// BuildTask prepares the record InsertTask persists: a new task eligible at now.
func (r *Registry) BuildTask(run Runnable, now time.Time) (*Task, error) {
	if run == nil {
		return nil, ErrRunnableNil
	}

	metadata, err := r.Encode(run)
	if err != nil {
		return nil, err
	}

	task := newTask(run, metadata, now, now)
	if run.Uniq() {
		task.UniqHash = hashOf(metadata, "")
	}
	return task, nil
}

// BuildScheduledTask prepares the record ScheduleTask persists. The due instant
// comes from the runnable's schedule. Recurring occurrences always carry a
// hash that includes the due instant, so a second attempt to materialize the
// same occurrence collapses into the first one.
func (r *Registry) BuildScheduledTask(run Runnable, now time.Time) (*Task, error) {
	if run == nil {
		return nil, ErrRunnableNil
	}

	sched := run.Cron()
	due, err := sched.Next(now)
	if err != nil {
		return nil, fmt.Errorf("schedule %T: %w", run, err)
	}

	metadata, err := r.Encode(run)
	if err != nil {
		return nil, err
	}

	task := newTask(run, metadata, due, now)
	switch {
	case sched.Recurring():
		task.UniqHash = hashOf(metadata, due.UTC().Format(time.RFC3339Nano))
	case run.Uniq():
		task.UniqHash = hashOf(metadata, "")
	}
	return task, nil
}

func newTask(run Runnable, metadata json.RawMessage, scheduledAt, now time.Time) *Task {
	taskType := strings.TrimSpace(run.TaskType())
	if taskType == "" {
		taskType = CommonType
	}

	return &Task{
		ID:          uuid.New(),
		Metadata:    metadata,
		TaskType:    taskType,
		State:       StateNew,
		Retries:     0,
		ScheduledAt: scheduledAt,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// hashOf returns the hex SHA-256 of metadata followed by an optional salt
func hashOf(metadata json.RawMessage, salt string) *string {
	h := sha256.New()
	h.Write(metadata)
	if salt != "" {
		h.Write([]byte{0})
		h.Write([]byte(salt))
	}
	sum := hex.EncodeToString(h.Sum(nil))
	return &sum
}

func qualifiedStructName(v any) string {
	return strings.TrimLeft(fmt.Sprintf("%T", v), "*")
}
