package manifest

import "fmt"

// UnboundBehavior configures what Bind does with a candidate or mapping
// entry that has no Go type binding and no structural field list.
type UnboundBehavior int

const (
	// ErrorUnbound fails the bind.
	ErrorUnbound UnboundBehavior = iota
	// WarnUnbound records a Diag warning and drops the entry.
	WarnUnbound
)

// Options controls binding behavior.
type Options struct {
	OnUnbound UnboundBehavior
}

// Diag carries non-fatal warnings produced during binding.
type Diag interface {
	HasWarnings() bool
	Warnings() []string
}

type simpleDiag struct{ ws []string }

func (d *simpleDiag) HasWarnings() bool        { return len(d.ws) > 0 }
func (d *simpleDiag) Warnings() []string       { return append([]string(nil), d.ws...) }
func (d *simpleDiag) warnf(f string, a ...any) { d.ws = append(d.ws, fmt.Sprintf(f, a...)) }
