package queue

import (
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

// Schedule determines when a recurring task should run
type Schedule interface {
	Next(from time.Time) time.Time
	String() string
}

// cronParser accepts standard five-field expressions, an optional leading
// seconds field, and descriptors such as @hourly or @every 5m.
var cronParser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// cronSchedule wraps a parsed cron expression
type cronSchedule struct {
	expr     string
	schedule cron.Schedule
}

func (s cronSchedule) Next(from time.Time) time.Time {
	return s.schedule.Next(from)
}

func (s cronSchedule) String() string {
	return s.expr
}

// Cron parses a cron expression into a Schedule
func Cron(expr string) (Schedule, error) {
	sched, err := cronParser.Parse(expr)
	if err != nil {
		return nil, errors.Join(ErrInvalidSchedule, fmt.Errorf("cron %q: %w", expr, err))
	}
	// @every counts from the caller's clock; pin it to the same grid as EveryInterval
	if delay, ok := sched.(cron.ConstantDelaySchedule); ok {
		sched = intervalSchedule{every: delay.Delay}
	}
	return cronSchedule{expr: expr, schedule: sched}, nil
}

// MustCron is like Cron but panics on an invalid expression
func MustCron(expr string) Schedule {
	s, err := Cron(expr)
	if err != nil {
		panic(err)
	}
	return s
}

// intervalSchedule runs on a grid of interval-sized steps counted from the
// zero time, so every process derives the same occurrences whenever it looks.
type intervalSchedule struct {
	every time.Duration
}

func (s intervalSchedule) Next(from time.Time) time.Time {
	if s.every <= 0 {
		return time.Time{}
	}
	return from.Truncate(s.every).Add(s.every)
}

func (s intervalSchedule) String() string {
	return fmt.Sprintf("every %v", s.every)
}

// dailySchedule runs once per day at specified time
type dailySchedule struct {
	hour   int
	minute int
}

func (s dailySchedule) Next(from time.Time) time.Time {
	next := time.Date(
		from.Year(), from.Month(), from.Day(),
		s.hour, s.minute, 0, 0, from.Location(),
	)
	if !next.After(from) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

func (s dailySchedule) String() string {
	return fmt.Sprintf("daily at %02d:%02d", s.hour, s.minute)
}

// weeklySchedule runs once per week on specified day and time
type weeklySchedule struct {
	weekday time.Weekday
	hour    int
	minute  int
}

func (s weeklySchedule) Next(from time.Time) time.Time {
	daysUntil := (int(s.weekday) - int(from.Weekday()) + 7) % 7

	next := from.AddDate(0, 0, daysUntil)
	next = time.Date(
		next.Year(), next.Month(), next.Day(),
		s.hour, s.minute, 0, 0, next.Location(),
	)

	if !next.After(from) {
		next = next.AddDate(0, 0, 7)
	}
	return next
}

func (s weeklySchedule) String() string {
	return fmt.Sprintf("weekly on %s at %02d:%02d", s.weekday, s.hour, s.minute)
}

// hourlySchedule runs every hour at specified minute
type hourlySchedule struct {
	minute int
}

func (s hourlySchedule) Next(from time.Time) time.Time {
	next := time.Date(
		from.Year(), from.Month(), from.Day(),
		from.Hour(), s.minute, 0, 0, from.Location(),
	)
	if !next.After(from) {
		next = next.Add(time.Hour)
	}
	return next
}

func (s hourlySchedule) String() string {
	return fmt.Sprintf("hourly at :%02d", s.minute)
}

// monthlySchedule runs once per month on specified day and time
type monthlySchedule struct {
	day    int
	hour   int
	minute int
}

func (s monthlySchedule) Next(from time.Time) time.Time {
	year, month := from.Year(), from.Month()

	// Day 31 in a 30-day month clamps to the last day
	day := min(s.day, daysInMonth(year, month))
	next := time.Date(year, month, day, s.hour, s.minute, 0, 0, from.Location())

	if !next.After(from) {
		if month == time.December {
			year++
			month = time.January
		} else {
			month++
		}

		day = min(s.day, daysInMonth(year, month))
		next = time.Date(year, month, day, s.hour, s.minute, 0, 0, from.Location())
	}

	return next
}

func (s monthlySchedule) String() string {
	return fmt.Sprintf("monthly on day %d at %02d:%02d", s.day, s.hour, s.minute)
}

// EveryInterval creates a schedule that fires at every multiple of d.
// A non-positive d yields no occurrences.
func EveryInterval(d time.Duration) Schedule {
	return intervalSchedule{every: d}
}

// EveryMinute creates a schedule that runs every minute on the minute
func EveryMinute() Schedule {
	return MustCron("0 * * * * *")
}

// HourlyAt creates a schedule that runs every hour at specified minute
func HourlyAt(minute int) Schedule {
	return hourlySchedule{minute: minute}
}

// DailyAt creates a schedule that runs daily at specified time
func DailyAt(hour, minute int) Schedule {
	return dailySchedule{hour: hour, minute: minute}
}

// WeeklyOn creates a schedule that runs weekly on specified day and time
func WeeklyOn(weekday time.Weekday, hour, minute int) Schedule {
	return weeklySchedule{weekday: weekday, hour: hour, minute: minute}
}

// MonthlyOn creates a schedule that runs monthly on specified day and time
func MonthlyOn(day, hour, minute int) Schedule {
	return monthlySchedule{day: day, hour: hour, minute: minute}
}

func daysInMonth(year int, month time.Month) int {
	firstOfNext := time.Date(year, month+1, 1, 0, 0, 0, 0, time.UTC)
	return firstOfNext.AddDate(0, 0, -1).Day()
}

// Scheduled is what a Runnable returns from Cron: either a single instant
// or a recurring Schedule.
type Scheduled struct {
	at        time.Time
	recurring Schedule
}

// ScheduleOnce runs the task once at the given instant
func ScheduleOnce(at time.Time) *Scheduled {
	return &Scheduled{at: at}
}

// ScheduleRecurring runs the task on every occurrence of s
func ScheduleRecurring(s Schedule) *Scheduled {
	return &Scheduled{recurring: s}
}

// ScheduleCron runs the task on every occurrence of a cron expression.
// Invalid expressions yield nil, which callers treat as "no schedule".
func ScheduleCron(expr string) *Scheduled {
	s, err := Cron(expr)
	if err != nil {
		return nil
	}
	return ScheduleRecurring(s)
}

// Recurring reports whether the schedule repeats
func (s *Scheduled) Recurring() bool {
	return s != nil && s.recurring != nil
}

// Next returns the instant the task should run at when evaluated at now.
// One-shot instants in the past are clamped to now.
func (s *Scheduled) Next(now time.Time) (time.Time, error) {
	switch {
	case s == nil:
		return time.Time{}, ErrNoScheduleSpecified
	case s.recurring != nil:
		next := s.recurring.Next(now)
		if next.IsZero() {
			return time.Time{}, ErrInvalidSchedule
		}
		return next, nil
	case s.at.IsZero():
		return time.Time{}, ErrNoScheduleSpecified
	case s.at.Before(now):
		return now, nil
	default:
		return s.at, nil
	}
}

func (s *Scheduled) String() string {
	switch {
	case s == nil:
		return "none"
	case s.recurring != nil:
		return s.recurring.String()
	default:
		return "once at " + s.at.Format(time.RFC3339)
	}
}
