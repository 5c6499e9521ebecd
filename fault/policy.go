package fault

import (
	"fmt"
	"runtime/debug"

	"github.com/sirupsen/logrus"
	"github.com/tebeka/atexit"
)

// Action tells the caller what to do after an error was handled.
type Action int

// The possible actions.
const (
	Continue Action = iota
	Terminate
)

// A Rule maps a severity level to how it is logged and what happens next.
type Rule struct {
	LogLevel logrus.Level
	Action   Action
}

// Policy is the table of rules, indexed by level.
type Policy map[Level]Rule

// DefaultPolicy logs informational errors at debug level and only terminates
// the run on fatal errors.
func DefaultPolicy() Policy {
	return Policy{
		LevelInfo:  {LogLevel: logrus.DebugLevel, Action: Continue},
		LevelWarn:  {LogLevel: logrus.WarnLevel, Action: Continue},
		LevelError: {LogLevel: logrus.ErrorLevel, Action: Continue},
		LevelFatal: {LogLevel: logrus.ErrorLevel, Action: Terminate},
	}
}

// RuleFor returns the rule of a level. Unknown levels follow the rule of
// LevelError.
func (p Policy) RuleFor(level Level) Rule {
	if r, ok := p[level]; ok {
		return r
	}

	return p[LevelError]
}

// Guard runs fn. A panic inside fn is recovered and returned as an error. A
// panic value that is already an error keeps its level, if any.
func Guard(fn func() error) (err error) {
	defer func() {
		r := recover()
		if r == nil {
			return
		}

		switch v := r.(type) {
		case *Error:
			err = v
		case error:
			err = Wrap(LevelError, v, "panic")
		default:
			err = Errorf("panic: %v", v)
		}
	}()

	return fn()
}

// ExitFunc terminates the process.
type ExitFunc func(code int)

// A Boundary executes work and applies a policy to whatever goes wrong.
type Boundary struct {
	Policy Policy
	Log    *logrus.Entry
	Exit   ExitFunc
}

// NewBoundary creates a boundary with the default policy that logs to log and
// exits through atexit so that registered flush handlers still run.
func NewBoundary(log *logrus.Entry) *Boundary {
	return &Boundary{
		Policy: DefaultPolicy(),
		Log:    log,
		Exit:   atexit.Exit,
	}
}

// Outcome is the result of running a unit of work inside a boundary.
type Outcome struct {
	Err    error
	Level  Level
	Action Action
}

// Run executes fn. The returned outcome holds the error, if any, its level
// and the action the caller must take. When the action is Terminate the exit
// function has already been called.
func (b *Boundary) Run(fields logrus.Fields, fn func() error) Outcome {
	err := Guard(fn)
	if err == nil {
		return Outcome{Action: Continue}
	}

	level := Classify(err)
	rule := b.Policy.RuleFor(level)

	entry := b.Log.WithFields(fields).WithField("severity", level.String())
	entry.Log(rule.LogLevel, err.Error())

	if rule.Action == Terminate {
		entry.WithField("stack", string(debug.Stack())).
			Log(rule.LogLevel, fmt.Sprintf("terminating: %v", err))

		if b.Exit != nil {
			b.Exit(1)
		}
	}

	return Outcome{Err: err, Level: level, Action: rule.Action}
}
