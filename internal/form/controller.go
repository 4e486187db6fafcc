// Package form binds a validation engine to a live set of fields and gates
// submission: it never submits a known-invalid form and never runs two
// submissions at once.
package form

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alanyoungcy/tontine/internal/domain"
	"github.com/alanyoungcy/tontine/internal/validation"
)

// InvalidFormMessage is shown when the full pass on submit finds errors.
const InvalidFormMessage = "Veuillez corriger les erreurs dans le formulaire"

// FieldState is the validation state of one bound field.
type FieldState struct {
	Value validation.Value `json:"-"`
	Valid bool             `json:"valid"`
	Error string           `json:"error,omitempty"`
	Rule  string           `json:"rule,omitempty"`
}

// MessageKind classifies a user-facing message.
type MessageKind string

const (
	MessageSuccess MessageKind = "success"
	MessageError   MessageKind = "error"
)

// Message is the single user-facing message of a submission.
type Message struct {
	Kind MessageKind `json:"kind"`
	Text string      `json:"text"`
}

// View receives state changes as they happen.
type View interface {
	FieldChanged(field string, state FieldState)
	StrengthChanged(s validation.Strength)
	Busy(busy bool)
	Message(m Message)
}

// Navigator moves the user to another page.
type Navigator interface {
	Navigate(page Page)
}

// NavigatorFunc adapts a function to Navigator.
type NavigatorFunc func(Page)

func (f NavigatorFunc) Navigate(p Page) { f(p) }

// Success describes what to do after the backend accepted a submission.
type Success struct {
	Message string
	Next    Page
	Delay   time.Duration
	Data    any
}

// Action performs the network side of a submission.
type Action interface {
	Submit(ctx context.Context, p Payload) (Success, error)
	// Failure turns a submission error into the message shown to the user.
	Failure(err error) string
}

// Outcome is the result of Submit, suitable for rendering or JSON encoding.
type Outcome struct {
	OK      bool                  `json:"ok"`
	Message Message               `json:"message"`
	Next    Page                  `json:"next,omitempty"`
	DelayMS int64                 `json:"delay_ms,omitempty"`
	Fields  map[string]FieldState `json:"fields,omitempty"`
	Data    any                   `json:"data,omitempty"`
}

// Option configures a Controller.
type Option func(*Controller)

// WithView attaches a view observer.
func WithView(v View) Option { return func(c *Controller) { c.view = v } }

// WithNavigator sets where delayed navigation goes.
func WithNavigator(n Navigator) Option { return func(c *Controller) { c.nav = n } }

// WithAfterFunc replaces time.AfterFunc for delayed navigation.
func WithAfterFunc(fn func(time.Duration, func())) Option {
	return func(c *Controller) { c.after = fn }
}

// WithStrengthField reports the advisory password strength whenever field
// changes.
func WithStrengthField(field string) Option {
	return func(c *Controller) { c.strengthField = field }
}

// WithInvalidMessage overrides the message shown when the full pass fails.
func WithInvalidMessage(fn func(order []string, states map[string]FieldState) string) Option {
	return func(c *Controller) { c.invalidMessage = fn }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option { return func(c *Controller) { c.logger = l } }

// Controller owns the FormState of one form instance.
type Controller struct {
	engine         *validation.Engine
	action         Action
	view           View
	nav            Navigator
	after          func(time.Duration, func())
	strengthField  string
	invalidMessage func([]string, map[string]FieldState) string
	logger         *slog.Logger

	mu     sync.Mutex
	order  []string
	fields map[string]*FieldState

	busy atomic.Bool
}

// New creates a Controller. Call Bind before use.
func New(engine *validation.Engine, action Action, opts ...Option) *Controller {
	c := &Controller{
		engine: engine,
		action: action,
		after: func(d time.Duration, fn func()) {
			time.AfterFunc(d, fn)
		},
		invalidMessage: func([]string, map[string]FieldState) string { return InvalidFormMessage },
		logger:         slog.Default(),
		fields:         make(map[string]*FieldState),
	}
	for _, o := range opts {
		o(c)
	}
	c.logger = c.logger.With(slog.String("component", "form"))
	return c
}

// Bind initialises one invalid, empty FieldState per name, discarding any
// previous state.
func (c *Controller) Bind(fields ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.order = append([]string(nil), fields...)
	c.fields = make(map[string]*FieldState, len(fields))
	for _, f := range fields {
		c.fields[f] = &FieldState{Rule: c.engine.RuleName(f)}
	}
}

// OnFieldChange stores value and re-evaluates that field plus any bound
// field depending on it. It reports false for an unbound field.
func (c *Controller) OnFieldChange(field string, value validation.Value) (FieldState, bool) {
	c.mu.Lock()
	st, bound := c.fields[field]
	if !bound {
		c.mu.Unlock()
		return FieldState{}, false
	}
	st.Value = value
	snap := c.snapshotLocked()

	changed := []string{field}
	c.evaluateLocked(field, snap)
	for _, dep := range c.engine.Dependents(field) {
		if _, ok := c.fields[dep]; ok {
			c.evaluateLocked(dep, snap)
			changed = append(changed, dep)
		}
	}
	result := *st
	updates := c.copyLocked(changed)
	c.mu.Unlock()

	if c.view != nil {
		for _, f := range changed {
			c.view.FieldChanged(f, updates[f])
		}
		if field == c.strengthField {
			c.view.StrengthChanged(validation.PasswordStrength(value.Trimmed().Text))
		}
	}
	return result, true
}

// State returns the state of a bound field.
func (c *Controller) State(field string) (FieldState, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	st, ok := c.fields[field]
	if !ok {
		return FieldState{}, false
	}
	return *st, true
}

// States returns a copy of every field state.
func (c *Controller) States() map[string]FieldState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.copyLocked(c.order)
}

// Valid is the logical AND of every bound field's validity.
func (c *Controller) Valid() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, st := range c.fields {
		if !st.Valid {
			return false
		}
	}
	return true
}

// Submit re-evaluates every bound field and, only if all are valid, hands
// the trimmed payload to the action. The view gets exactly one message.
func (c *Controller) Submit(ctx context.Context) (Outcome, error) {
	if !c.busy.CompareAndSwap(false, true) {
		return Outcome{}, domain.ErrSubmitInFlight
	}
	defer c.busy.Store(false)

	c.mu.Lock()
	snap := c.snapshotLocked()
	valid := true
	for _, f := range c.order {
		if !c.evaluateLocked(f, snap).Valid {
			valid = false
		}
	}
	states := c.copyLocked(c.order)
	order := append([]string(nil), c.order...)
	payload := c.payloadLocked()
	c.mu.Unlock()

	if c.view != nil {
		for _, f := range order {
			c.view.FieldChanged(f, states[f])
		}
	}

	if !valid {
		msg := Message{Kind: MessageError, Text: c.invalidMessage(order, states)}
		c.notify(msg)
		return Outcome{Message: msg, Fields: states}, domain.ErrInvalidForm
	}

	c.setBusy(true)
	success, err := c.action.Submit(ctx, payload)
	c.setBusy(false)

	if err != nil {
		msg := Message{Kind: MessageError, Text: c.action.Failure(err)}
		c.notify(msg)
		c.logger.InfoContext(ctx, "submission failed", slog.String("error", err.Error()))
		return Outcome{Message: msg, Fields: states}, fmt.Errorf("form: submit: %w", err)
	}

	msg := Message{Kind: MessageSuccess, Text: success.Message}
	c.notify(msg)
	if success.Next != "" && c.nav != nil {
		next := success.Next
		c.after(success.Delay, func() { c.nav.Navigate(next) })
	}
	return Outcome{
		OK:      true,
		Message: msg,
		Next:    success.Next,
		DelayMS: success.Delay.Milliseconds(),
		Fields:  states,
		Data:    success.Data,
	}, nil
}

// FirstError returns the error of the first invalid field in bind order.
func FirstError(order []string, states map[string]FieldState) string {
	for _, f := range order {
		if st := states[f]; !st.Valid && st.Error != "" {
			return st.Error
		}
	}
	return InvalidFormMessage
}

func (c *Controller) evaluateLocked(field string, snap validation.Snapshot) *FieldState {
	st := c.fields[field]
	res := c.engine.Evaluate(field, st.Value, snap)
	st.Valid = res.Valid
	st.Error = res.Error
	return st
}

func (c *Controller) snapshotLocked() validation.Snapshot {
	values := make(map[string]validation.Value, len(c.fields))
	for f, st := range c.fields {
		values[f] = st.Value
	}
	return validation.NewSnapshot(values)
}

func (c *Controller) copyLocked(fields []string) map[string]FieldState {
	out := make(map[string]FieldState, len(fields))
	for _, f := range fields {
		if st, ok := c.fields[f]; ok {
			out[f] = *st
		}
	}
	return out
}

func (c *Controller) payloadLocked() Payload {
	p := make(Payload, len(c.fields))
	for f, st := range c.fields {
		p[f] = st.Value.Trimmed()
	}
	return p
}

func (c *Controller) setBusy(b bool) {
	if c.view != nil {
		c.view.Busy(b)
	}
}

func (c *Controller) notify(m Message) {
	if c.view != nil {
		c.view.Message(m)
	}
}

// IsInvalid reports whether err came from a failed validation pass.
func IsInvalid(err error) bool { return errors.Is(err, domain.ErrInvalidForm) }
